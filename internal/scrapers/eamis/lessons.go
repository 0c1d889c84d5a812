package eamis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// FormatLessonName renders a lesson as
// `no--name(code)--teachers--campus--<weeks and units of each arrangement>`.
func FormatLessonName(lesson LessonData) string {
	arrangements := make([]string, len(lesson.ArrangeInfo))
	for i, arrange := range lesson.ArrangeInfo {
		arrangements[i] = fmt.Sprintf("%s周%d-%d节", arrange.WeekStateDigest, arrange.StartUnit, arrange.EndUnit)
	}
	return fmt.Sprintf(
		"%s--%s(%s)--%s--%s--<%s>",
		lesson.No, lesson.Name, lesson.Code, lesson.Teachers, lesson.CampusName,
		strings.Join(arrangements, ", "),
	)
}

// LessonsByNo indexes lessons by their lesson number, later lessons win
// when numbers repeat.
func LessonsByNo(lessons []LessonData) map[string]LessonData {
	out := make(map[string]LessonData, len(lessons))
	for _, lesson := range lessons {
		out[lesson.No] = lesson
	}
	return out
}

// minSearchSimilarity is the lowest similarity a search result may have.
const minSearchSimilarity = 0.7

type scoredLesson struct {
	lesson LessonData
	score  float64
}

func lessonScore(lesson LessonData, query string) float64 {
	if lesson.No == query || lesson.Code == query {
		return 2
	}
	if strings.Contains(lesson.Name, query) || strings.Contains(lesson.Teachers, query) {
		return 1.5
	}
	return max(
		matchr.JaroWinkler(strings.ToLower(query), strings.ToLower(lesson.Name), false),
		matchr.JaroWinkler(strings.ToLower(query), strings.ToLower(lesson.Teachers), false),
	)
}

// SearchLessons returns the lessons best matching query by number, code,
// name or teacher, best match first. A limit <= 0 returns every match.
func SearchLessons(lessons []LessonData, query string, limit int) []LessonData {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var scored []scoredLesson
	for _, lesson := range lessons {
		score := lessonScore(lesson, query)
		if score < minSearchSimilarity {
			continue
		}
		scored = append(scored, scoredLesson{lesson: lesson, score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]LessonData, len(scored))
	for i, s := range scored {
		out[i] = s.lesson
	}
	return out
}
