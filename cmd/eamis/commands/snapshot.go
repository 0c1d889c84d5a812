package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"eamis-catcher/internal/scrapers/eamis"
	"eamis-catcher/internal/store"
	"eamis-catcher/lib/snapshotfile"
	"eamis-catcher/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	snapshotOutput string
	snapshotDb     string
	snapshotShow   string
)

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "", "The file to write the snapshot to, defaults to snapshot_path in the config.")
	snapshotCmd.Flags().StringVar(&snapshotDb, "db", "", "Also archive the snapshot in this sqlite database, defaults to db in the config.")
	snapshotCmd.Flags().StringVar(&snapshotShow, "show", "", "Print the archived snapshot with this id instead of taking a new one.")
	rootCmd.AddCommand(snapshotCmd)
}

// fileCountChanges compares the student counts of two snapshots, lessons
// missing from either side are ignored.
func fileCountChanges(before, after eamis.FullData) []store.CountChange {
	var changes []store.CountChange
	for _, id := range sortedLessonIds(after.StdCount) {
		previous, ok := before.StdCount[id]
		if !ok {
			continue
		}
		current := after.StdCount[id]
		if previous.Sc != current.Sc {
			changes = append(changes, store.CountChange{LessonId: id, Before: previous.Sc, After: current.Sc})
		}
	}
	return changes
}

func renderChanges(title string, changes []store.CountChange) {
	if len(changes) == 0 {
		return
	}
	t := newTable()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Lesson", "Before", "After"})
	for _, c := range changes {
		t.AppendRow(table.Row{c.LessonId, c.Before, c.After})
	}
	t.Render()
}

// readPrevious returns the snapshot currently at path, ok is false when
// there is none or it can no longer be read.
func readPrevious(path string) (eamis.FullData, bool) {
	previous, err := snapshotfile.Read[eamis.FullData](path, eamis.FullDataShape())
	if errors.Is(err, os.ErrNotExist) {
		return eamis.FullData{}, false
	}
	if err != nil {
		slog.Warn("ignoring previous snapshot", "path", path, "err", err)
		return eamis.FullData{}, false
	}
	return previous, true
}

func archiveSnapshot(ctx context.Context, e env, dbPath string, data eamis.FullData) {
	archive, err := store.Open(dbPath, e.clock)
	if err != nil {
		serviceutil.Fatal("failed to open archive", err)
	}
	defer archive.Close()

	previous, err := archive.LatestSnapshot(ctx)
	if err != nil && !errors.Is(err, store.ErrNoSnapshot) {
		serviceutil.Fatal("failed to read archive", err)
	}
	id, err := archive.SaveSnapshot(ctx, data)
	if err != nil {
		serviceutil.Fatal("failed to archive snapshot", err)
	}
	slog.Info("archived snapshot", "id", id)
	if previous.Id == "" {
		return
	}

	changes, err := archive.CountChanges(ctx, previous.Id, id)
	if err != nil {
		serviceutil.Fatal("failed to compare snapshots", err)
	}
	renderChanges("changes since "+previous.TakenAt.Format("2006-01-02 15:04:05"), changes)
}

// archivedRows lists the lessons of an archived snapshot under the title of
// their profile.
func archivedRows(profiles []eamis.ElectProfile, lessons []store.ArchivedLesson) []table.Row {
	titles := make(map[string]string, len(profiles))
	for _, p := range profiles {
		titles[p.Id] = p.Title
	}
	rows := make([]table.Row, len(lessons))
	for i, l := range lessons {
		count := "-"
		if l.Count != nil {
			count = fmt.Sprintf("%d/%d", l.Count.Sc, l.Count.Lc)
		}
		rows[i] = table.Row{titles[l.ProfileId], l.Lesson.No, l.Lesson.Name, l.Lesson.Teachers, count}
	}
	return rows
}

func showSnapshot(ctx context.Context, e env, dbPath, id string) {
	if dbPath == "" {
		serviceutil.Fatal("failed to show snapshot", errors.New("no archive configured, pass --db"))
	}
	archive, err := store.Open(dbPath, e.clock)
	if err != nil {
		serviceutil.Fatal("failed to open archive", err)
	}
	defer archive.Close()

	profiles, err := archive.Profiles(ctx, id)
	if err != nil {
		serviceutil.Fatal("failed to read archive", err)
	}
	if len(profiles) == 0 {
		serviceutil.Fatal("failed to show snapshot "+id, store.ErrNoSnapshot)
	}
	lessons, err := archive.Lessons(ctx, id)
	if err != nil {
		serviceutil.Fatal("failed to read archive", err)
	}

	t := newTable()
	t.SetTitle("snapshot " + id)
	t.AppendHeader(table.Row{"Profile", "No", "Name", "Teachers", "Count"})
	t.AppendRows(archivedRows(profiles, lessons))
	t.AppendFooter(table.Row{"", "", "", "Total", len(lessons)})
	t.Render()
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [-o <path/to/snapshot.json>] [--db <path/to/archive.db>] [--show <id>]",
	Short: "Writes every lesson of every open profile and their counters to a file.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := loadEnv(cmd.Context())
		defer e.Close()

		dbPath := snapshotDb
		if dbPath == "" {
			dbPath = e.config.Db
		}
		if snapshotShow != "" {
			showSnapshot(cmd.Context(), e, dbPath, snapshotShow)
			return
		}

		client := e.client(cmd.Context())
		data, err := client.FullSnapshot(cmd.Context())
		var partial *eamis.PartialError
		if errors.As(err, &partial) {
			for _, f := range partial.Failures {
				slog.Warn("profile left out of snapshot", "profile", f.ProfileId, "err", f.Err)
			}
		} else if err != nil {
			serviceutil.Fatal("failed to take snapshot", err)
		}

		output := snapshotOutput
		if output == "" {
			output = e.config.SnapshotPath
		}

		previous, hasPrevious := eamis.FullData{}, false
		if dbPath == "" {
			previous, hasPrevious = readPrevious(output)
		}

		err = snapshotfile.Write(output, data)
		if err != nil {
			serviceutil.Fatal("failed to write snapshot", err)
		}
		slog.Info("wrote snapshot", "path", output, "profiles", len(data.Sections))

		if dbPath != "" {
			archiveSnapshot(cmd.Context(), e, dbPath, data)
			return
		}
		if hasPrevious && previous.SemesterId == data.SemesterId {
			renderChanges("changes since the previous snapshot", fileCountChanges(previous, data))
		}
	},
}
