package eamis

import (
	"context"
	"fmt"
)

const report_client_full_snapshot = "client.full-snapshot"

// FullSnapshot fetches the lessons of every profile and the enrollment
// counters of their semester.
//
// Profiles that fail are skipped, the snapshot of the remaining profiles is
// returned together with a *PartialError. Profiles are expected to belong to
// a single semester, a *SemesterMismatchError is returned otherwise and the
// counters are not fetched.
func (c *Client) FullSnapshot(ctx context.Context) (FullData, error) {
	data := FullData{
		Sections: []Section{},
		StdCount: map[string]StdCount{},
	}

	profiles, err := c.Profiles(ctx)
	if err != nil {
		return data, fmt.Errorf("full snapshot: %w", err)
	}

	var failures []SectionError
	semesters := map[string]string{}
	for _, profile := range profiles {
		semesterId, err := c.SemesterId(ctx, profile.Id)
		if err == nil {
			var lessons []LessonData
			lessons, err = c.LessonData(ctx, profile.Id)
			if err == nil {
				semesters[profile.Id] = semesterId
				data.Sections = append(data.Sections, Section{
					Profile: profile,
					Lessons: lessons,
				})
				continue
			}
		}
		if isCancellation(err) {
			return data, err
		}
		c.tel.ReportWarning(report_client_full_snapshot, "skipped profile", profile.Id, err)
		failures = append(failures, SectionError{ProfileId: profile.Id, Err: err})
	}

	distinct := map[string]struct{}{}
	for _, semesterId := range semesters {
		distinct[semesterId] = struct{}{}
	}
	if len(distinct) > 1 {
		err := &SemesterMismatchError{Ids: semesters}
		c.tel.ReportBroken(report_client_full_snapshot, err)
		return data, err
	}
	for semesterId := range distinct {
		data.SemesterId = semesterId
	}

	if data.SemesterId != "" {
		counts, err := c.StdCount(ctx, data.SemesterId)
		if err != nil {
			return data, fmt.Errorf("full snapshot: %w", err)
		}
		data.StdCount = counts
	}

	if len(failures) > 0 {
		return data, &PartialError{Failures: failures}
	}
	return data, nil
}
