package commands

import (
	"errors"
	"log/slog"
	"time"

	"eamis-catcher/internal/components/chrono"
	"eamis-catcher/internal/notify"
	"eamis-catcher/internal/scrapers/eamis"
	"eamis-catcher/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	catchAt     string
	catchPacing float64
)

func init() {
	catchCmd.Flags().StringVar(&catchAt, "at", "", "Wait until this RFC3339 time before starting.")
	catchCmd.Flags().Float64Var(&catchPacing, "pacing", -1, "Seconds to wait before each election request, defaults to pacing_seconds in the config.")
	rootCmd.AddCommand(catchCmd)
}

func lessonName(prepared eamis.PreparedCatch, o eamis.CatchOutcome) string {
	for _, lesson := range prepared.Lessons[o.ProfileId] {
		if lesson.No == o.LessonNo {
			return eamis.FormatLessonName(lesson)
		}
	}
	return o.LessonNo
}

func outcomeStatus(o eamis.CatchOutcome) string {
	status := "not elected"
	switch {
	case o.Err != nil:
		return o.Err.Error()
	case o.Result.Data.Elected:
		status = "elected"
	}
	if o.Result.Msg != nil && *o.Result.Msg != "" {
		status += ": " + *o.Result.Msg
	}
	return status
}

var catchCmd = &cobra.Command{
	Use:   "catch [<profile>:<lesson no>...] [--at <time>] [--pacing <seconds>]",
	Short: "Elects the lessons of a plan one after another.",
	Long:  "Elects the lessons given as arguments, or the plan in the config when there are none.",
	Run: func(cmd *cobra.Command, args []string) {
		e := loadEnv(cmd.Context())
		defer e.Close()
		ctx := cmd.Context()

		plan := e.config.Plan
		if len(args) > 0 {
			var err error
			plan, err = ParsePlan(args)
			if err != nil {
				serviceutil.Fatal("invalid plan", err)
			}
		}
		if len(plan) == 0 {
			serviceutil.Fatal("nothing to catch", errors.New("the plan is empty"))
		}
		pacing := e.config.Pacing()
		if catchPacing >= 0 {
			pacing = seconds(catchPacing)
		}

		if catchAt != "" {
			at, err := time.Parse(time.RFC3339, catchAt)
			if err != nil {
				serviceutil.Fatal("invalid --at", err)
			}
			slog.Info("waiting", "until", at.In(e.clock.Location()))
			err = chrono.WaitUntil(ctx, e.clock, at, 500*time.Millisecond)
			if err != nil {
				serviceutil.Fatal("interrupted while waiting", err)
			}
		}

		client := e.client(ctx)
		prepared, outcomes, err := client.Catch(ctx, plan, pacing)
		if err != nil {
			serviceutil.Fatal("failed to prepare plan", err)
		}

		var results []eamis.CatchOutcome
		for o := range outcomes {
			slog.Info("catch", "lesson", lessonName(prepared, o), "result", outcomeStatus(o))
			results = append(results, o)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Profile", "Lesson", "Result"})
		for _, o := range results {
			t.AppendRow(table.Row{o.ProfileId, lessonName(prepared, o), outcomeStatus(o)})
		}
		t.Render()

		notifier := notify.NewNotifier(e.config.Notify, e.tel)
		err = notifier.CatchSummary(ctx, results)
		if err != nil {
			slog.Warn("failed to send catch summary", "err", err)
		}
	},
}
