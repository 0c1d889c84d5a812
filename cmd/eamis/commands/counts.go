package commands

import (
	"sort"
	"strconv"

	"eamis-catcher/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(countsCmd)
}

// sortedLessonIds orders numeric lesson ids numerically, anything else
// after them lexically.
func sortedLessonIds[T any](counts map[string]T) []string {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return ids[i] < ids[j]
	})
	return ids
}

var countsCmd = &cobra.Command{
	Use:   "counts <semester>",
	Short: "Shows the enrollment counters of every lesson in a semester.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := loadEnv(cmd.Context())
		defer e.Close()
		client := e.client(cmd.Context())

		counts, err := client.StdCount(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to fetch counts", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Lesson", "Students", "Limit", "Planned limit", "Unplanned limit"})
		for _, id := range sortedLessonIds(counts) {
			c := counts[id]
			t.AppendRow(table.Row{id, c.Sc, c.Lc, c.Plc, c.Puplc})
		}
		t.Render()
	},
}
