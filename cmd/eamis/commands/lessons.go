package commands

import (
	"fmt"
	"strings"

	"eamis-catcher/internal/scrapers/eamis"
	"eamis-catcher/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	lessonsSearch string
	lessonsLimit  int
)

func init() {
	lessonsCmd.Flags().StringVarP(&lessonsSearch, "search", "s", "", "Only show lessons matching this lesson number, code, name or teacher.")
	lessonsCmd.Flags().IntVarP(&lessonsLimit, "limit", "n", 20, "The maximum number of search results.")
	rootCmd.AddCommand(lessonsCmd)
}

func arrangements(lesson eamis.LessonData) string {
	out := make([]string, len(lesson.ArrangeInfo))
	for i, a := range lesson.ArrangeInfo {
		out[i] = fmt.Sprintf("周%d %s周 %d-%d节 %s", a.WeekDay, a.WeekStateDigest, a.StartUnit, a.EndUnit, a.Rooms)
	}
	return strings.Join(out, "\n")
}

var lessonsCmd = &cobra.Command{
	Use:   "lessons <profile> [--search <query>]",
	Short: "Lists the lessons offered in a profile.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := loadEnv(cmd.Context())
		defer e.Close()
		client := e.client(cmd.Context())
		profileId := args[0]

		// the data endpoint only answers after the profile was entered
		semesterId, err := client.SemesterId(cmd.Context(), profileId)
		if err != nil {
			serviceutil.Fatal("failed to enter profile", err)
		}
		lessons, err := client.LessonData(cmd.Context(), profileId)
		if err != nil {
			serviceutil.Fatal("failed to fetch lessons", err)
		}
		if lessonsSearch != "" {
			lessons = eamis.SearchLessons(lessons, lessonsSearch, lessonsLimit)
		}

		t := newTable()
		t.SetTitle(fmt.Sprintf("profile %s, semester %s", profileId, semesterId))
		t.AppendHeader(table.Row{"No", "Id", "Name", "Code", "Teachers", "Credits", "Campus", "Schedule", "Limit"})
		for _, l := range lessons {
			t.AppendRow(table.Row{
				l.No, l.Id, l.Name, l.Code, l.Teachers, l.Credits, l.CampusName,
				arrangements(l), l.LimitCount,
			})
		}
		t.AppendFooter(table.Row{"", "", "", "", "", "", "", "Total", len(lessons)})
		t.Render()
	},
}
