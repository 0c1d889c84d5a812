package eamis

import (
	"context"
	"fmt"
	"time"
)

const (
	report_client_prepare_catch = "client.prepare-catch"
	report_client_speed_catch   = "client.speed-catch"
)

// CatchEntry is the lessons to elect in a single profile, in order.
type CatchEntry struct {
	ProfileId string   `json:"profile"`
	LessonNos []string `json:"lessons"`
}

// CatchPlan is elected entry by entry, lesson by lesson.
type CatchPlan []CatchEntry

// CatchItem is a single lesson of a plan resolved to what ElectCourse needs.
// Err is set when the lesson could not be resolved.
type CatchItem struct {
	ProfileId  string
	SemesterId string
	LessonNo   string
	LessonId   int
	Err        error
}

type PreparedCatch struct {
	Items []CatchItem
	// Lessons is the lesson list of every profile that could be prepared.
	Lessons map[string][]LessonData
}

// CatchOutcome is the result of electing a single item of a plan.
type CatchOutcome struct {
	ProfileId string
	LessonNo  string
	LessonId  int
	Result    ElectResult
	Err       error
}

type preparedProfile struct {
	semesterId string
	lessons    []LessonData
	err        error
}

func (c *Client) prepareProfile(ctx context.Context, profileId string) preparedProfile {
	semesterId, err := c.SemesterId(ctx, profileId)
	if err != nil {
		return preparedProfile{err: err}
	}
	lessons, err := c.LessonData(ctx, profileId)
	if err != nil {
		return preparedProfile{err: err}
	}
	return preparedProfile{semesterId: semesterId, lessons: lessons}
}

// PrepareCatch resolves the semester and lesson ids of every lesson in plan.
// Failures to resolve a profile or a lesson are recorded on the affected
// items, only cancellation is returned as an error.
func (c *Client) PrepareCatch(ctx context.Context, plan CatchPlan) (PreparedCatch, error) {
	prepared := PreparedCatch{Lessons: map[string][]LessonData{}}
	profiles := map[string]preparedProfile{}

	for _, entry := range plan {
		profile, ok := profiles[entry.ProfileId]
		if !ok {
			profile = c.prepareProfile(ctx, entry.ProfileId)
			if profile.err != nil && isCancellation(profile.err) {
				return prepared, profile.err
			}
			profiles[entry.ProfileId] = profile
		}

		if profile.err != nil {
			c.tel.ReportWarning(report_client_prepare_catch, entry.ProfileId, profile.err)
			for _, no := range entry.LessonNos {
				prepared.Items = append(prepared.Items, CatchItem{
					ProfileId: entry.ProfileId,
					LessonNo:  no,
					Err:       fmt.Errorf("prepare profile %s: %w", entry.ProfileId, profile.err),
				})
			}
			continue
		}

		prepared.Lessons[entry.ProfileId] = profile.lessons
		byNo := LessonsByNo(profile.lessons)
		for _, no := range entry.LessonNos {
			item := CatchItem{
				ProfileId:  entry.ProfileId,
				SemesterId: profile.semesterId,
				LessonNo:   no,
			}
			lesson, ok := byNo[no]
			if ok {
				item.LessonId = lesson.Id
			} else {
				item.Err = fmt.Errorf("%w: %s in profile %s", ErrLessonNotFound, no, entry.ProfileId)
				c.tel.ReportWarning(report_client_prepare_catch, item.Err)
			}
			prepared.Items = append(prepared.Items, item)
		}
	}

	return prepared, nil
}

// SpeedCatch elects the prepared items one after another, waiting pacing
// before each request. Outcomes are sent in plan order as soon as they
// are known, items that failed to prepare still get an outcome carrying
// their error. The channel is closed once every item is done or ctx is
// cancelled.
func (c *Client) SpeedCatch(ctx context.Context, prepared PreparedCatch, pacing time.Duration) <-chan CatchOutcome {
	outcomes := make(chan CatchOutcome)

	go func() {
		defer close(outcomes)

		elected := 0
		for _, item := range prepared.Items {
			err := c.clock.Sleep(ctx, pacing)
			if err != nil {
				return
			}

			outcome := CatchOutcome{
				ProfileId: item.ProfileId,
				LessonNo:  item.LessonNo,
				LessonId:  item.LessonId,
				Err:       item.Err,
			}
			if item.Err == nil {
				outcome.Result, outcome.Err = c.ElectCourse(ctx, item.ProfileId, item.LessonId, item.SemesterId)
				if outcome.Err == nil && outcome.Result.Data.Elected {
					elected++
					c.tel.ReportCount(report_client_speed_catch, int64(elected))
				}
			}

			select {
			case outcomes <- outcome:
			case <-ctx.Done():
				return
			}
		}
	}()

	return outcomes
}

// Catch prepares plan then starts SpeedCatch on it.
func (c *Client) Catch(ctx context.Context, plan CatchPlan, pacing time.Duration) (PreparedCatch, <-chan CatchOutcome, error) {
	prepared, err := c.PrepareCatch(ctx, plan)
	if err != nil {
		return prepared, nil, err
	}
	return prepared, c.SpeedCatch(ctx, prepared, pacing), nil
}
