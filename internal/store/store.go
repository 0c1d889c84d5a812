// Package store archives course snapshots in a SQLite database so that
// enrollment counters can be compared across runs.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"eamis-catcher/internal/components/chrono"
	"eamis-catcher/internal/scrapers/eamis"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// ErrNoSnapshot is returned when the archive holds no matching snapshot.
var ErrNoSnapshot = errors.New("no snapshot found")

type Store struct {
	db    *sql.DB
	clock chrono.API
}

func NewStore(database *sql.DB, clock chrono.API) Store {
	return Store{db: database, clock: clock}
}

// isRemote reports whether path is the url of a libsql server rather than
// a local database file.
func isRemote(path string) bool {
	for _, scheme := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(path, scheme) {
			return true
		}
	}
	return false
}

// Open opens the archive at path and applies the schema. path is either a
// local sqlite file, created when missing, or the url of a libsql server.
func Open(path string, clock chrono.API) (Store, error) {
	driver := "sqlite"
	if isRemote(path) {
		driver = "libsql"
	}
	database, err := sql.Open(driver, path)
	if err != nil {
		return Store{}, fmt.Errorf("open archive: %w", err)
	}

	if driver == "sqlite" {
		// sqlite serializes writers anyway, a single connection also keeps
		// in-memory databases alive across queries
		database.SetMaxOpenConns(1)
		if path != ":memory:" {
			_, err = database.Exec("PRAGMA journal_mode=WAL")
			if err != nil {
				database.Close()
				return Store{}, fmt.Errorf("open archive: %w", err)
			}
		}
	}

	_, err = database.Exec(Schema)
	if err != nil {
		database.Close()
		return Store{}, fmt.Errorf("apply archive schema: %w", err)
	}
	return NewStore(database, clock), nil
}

func (s Store) Close() error {
	return s.db.Close()
}

// SnapshotInfo describes an archived snapshot.
type SnapshotInfo struct {
	Id         string
	SemesterId string
	TakenAt    time.Time
}

// SaveSnapshot archives data and returns the id of the new snapshot.
func (s Store) SaveSnapshot(ctx context.Context, data eamis.FullData) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		"insert into snapshot(id, semester_id, taken_at) values (?, ?, ?)",
		id, data.SemesterId, s.clock.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}

	for i, section := range data.Sections {
		profile := section.Profile
		_, err = tx.ExecContext(
			ctx,
			"insert into profile(snapshot_id, position, id, title, tips) values (?, ?, ?, ?, ?)",
			id, i, profile.Id, profile.Title, profile.Tips,
		)
		if err != nil {
			return "", fmt.Errorf("insert profile %s: %w", profile.Id, err)
		}

		for j, lesson := range section.Lessons {
			buff, err := json.Marshal(lesson)
			if err != nil {
				return "", err
			}
			_, err = tx.ExecContext(
				ctx,
				`insert into lesson(snapshot_id, profile_id, position, id, no, name, teachers, data)
				values (?, ?, ?, ?, ?, ?, ?, ?)`,
				id, profile.Id, j, lesson.Id, lesson.No, lesson.Name, lesson.Teachers, string(buff),
			)
			if err != nil {
				return "", fmt.Errorf("insert lesson %d: %w", lesson.Id, err)
			}
		}
	}

	for lessonId, count := range data.StdCount {
		buff, err := json.Marshal(count)
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(
			ctx,
			"insert into std_count(snapshot_id, lesson_id, sc, lc, data) values (?, ?, ?, ?, ?)",
			id, lessonId, count.Sc, count.Lc, string(buff),
		)
		if err != nil {
			return "", fmt.Errorf("insert std count %s: %w", lessonId, err)
		}
	}

	return id, tx.Commit()
}

// LatestSnapshot returns the most recently taken snapshot.
func (s Store) LatestSnapshot(ctx context.Context) (SnapshotInfo, error) {
	row := s.db.QueryRowContext(
		ctx,
		"select id, semester_id, taken_at from snapshot order by taken_at desc, rowid desc limit 1",
	)
	var info SnapshotInfo
	var takenAt int64
	err := row.Scan(&info.Id, &info.SemesterId, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotInfo{}, ErrNoSnapshot
	}
	if err != nil {
		return SnapshotInfo{}, err
	}
	info.TakenAt = time.UnixMilli(takenAt).In(s.clock.Location())
	return info, nil
}

// ArchivedLesson is a lesson of an archived snapshot together with its
// counters, Count is nil when the snapshot has none for the lesson.
type ArchivedLesson struct {
	ProfileId string
	Lesson    eamis.LessonData
	Count     *eamis.StdCount
}

// Lessons returns every lesson of a snapshot in profile then document order.
func (s Store) Lessons(ctx context.Context, snapshotId string) ([]ArchivedLesson, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select lesson.profile_id, lesson.data, std_count.data
		from lesson
		join profile on profile.snapshot_id = lesson.snapshot_id and profile.id = lesson.profile_id
		left join std_count on std_count.snapshot_id = lesson.snapshot_id
			and std_count.lesson_id = cast(lesson.id as text)
		where lesson.snapshot_id = ?
		order by profile.position, lesson.position`,
		snapshotId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedLesson
	for rows.Next() {
		var lesson ArchivedLesson
		var lessonData string
		var countData sql.NullString
		err = rows.Scan(&lesson.ProfileId, &lessonData, &countData)
		if err != nil {
			return nil, err
		}
		err = json.Unmarshal([]byte(lessonData), &lesson.Lesson)
		if err != nil {
			return nil, fmt.Errorf("archived lesson: %w", err)
		}
		if countData.Valid {
			var count eamis.StdCount
			err = json.Unmarshal([]byte(countData.String), &count)
			if err != nil {
				return nil, fmt.Errorf("archived std count: %w", err)
			}
			lesson.Count = &count
		}
		out = append(out, lesson)
	}
	return out, rows.Err()
}

// Profiles returns the profiles of a snapshot in document order.
func (s Store) Profiles(ctx context.Context, snapshotId string) ([]eamis.ElectProfile, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"select id, title, tips from profile where snapshot_id = ? order by position",
		snapshotId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []eamis.ElectProfile
	for rows.Next() {
		var profile eamis.ElectProfile
		err = rows.Scan(&profile.Id, &profile.Title, &profile.Tips)
		if err != nil {
			return nil, err
		}
		out = append(out, profile)
	}
	return out, rows.Err()
}

// CountChange is how the student count of a lesson moved between two
// snapshots.
type CountChange struct {
	LessonId string
	Before   int
	After    int
}

// CountChanges compares the student counts of two snapshots, lessons
// missing from either side are ignored.
func (s Store) CountChanges(ctx context.Context, before, after string) ([]CountChange, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select a.lesson_id, a.sc, b.sc
		from std_count a
		join std_count b on b.lesson_id = a.lesson_id and b.snapshot_id = ?
		where a.snapshot_id = ? and a.sc != b.sc
		order by a.lesson_id`,
		after, before,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CountChange
	for rows.Next() {
		var change CountChange
		err = rows.Scan(&change.LessonId, &change.Before, &change.After)
		if err != nil {
			return nil, err
		}
		out = append(out, change)
	}
	return out, rows.Err()
}
