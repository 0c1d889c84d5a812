package eamis

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrLessonNotFound is returned when a lesson number does not exist in a profile.
var ErrLessonNotFound = errors.New("lesson not found")

// MarkupError is returned when a page does not have the structure the
// scraper expects, Raw is the page that could not be understood.
type MarkupError struct {
	Op  string
	Raw string
	Err error
}

func (e *MarkupError) Error() string {
	return fmt.Sprintf("eamis: %s: unexpected markup: %s", e.Op, e.Err.Error())
}

func (e *MarkupError) Unwrap() error {
	return e.Err
}

// AuthError is returned when the portal does not accept the credentials or
// session the client was created with.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("eamis: authentication failed: %s", e.Err.Error())
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ActivationError is returned when the landing page still redirects after
// authentication succeeded.
type ActivationError struct {
	Location string
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("eamis: activation failed: redirected to %s", e.Location)
}

// StatusError is returned for responses that are neither successful nor a redirect.
type StatusError struct {
	Method     string
	Url        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("eamis: %s %s: status %d: %s", e.Method, e.Url, e.StatusCode, body)
}

// SemesterMismatchError is returned by FullSnapshot when profiles do not
// share one semester, Ids maps profile id to semester id.
type SemesterMismatchError struct {
	Ids map[string]string
}

func (e *SemesterMismatchError) Error() string {
	profiles := make([]string, 0, len(e.Ids))
	for profile := range e.Ids {
		profiles = append(profiles, profile)
	}
	sort.Strings(profiles)

	pairs := make([]string, len(profiles))
	for i, profile := range profiles {
		pairs[i] = fmt.Sprintf("%s=%s", profile, e.Ids[profile])
	}
	return fmt.Sprintf("eamis: profiles belong to different semesters: %s", strings.Join(pairs, ", "))
}

// SectionError is the failure to fetch a single profile during a snapshot.
type SectionError struct {
	ProfileId string
	Err       error
}

func (e SectionError) Error() string {
	return fmt.Sprintf("profile %s: %s", e.ProfileId, e.Err.Error())
}

func (e SectionError) Unwrap() error {
	return e.Err
}

// PartialError is returned alongside a snapshot when some profiles failed.
type PartialError struct {
	Failures []SectionError
}

func (e *PartialError) Error() string {
	messages := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		messages[i] = f.Error()
	}
	return fmt.Sprintf(
		"eamis: %d profile(s) failed: %s",
		len(e.Failures), strings.Join(messages, "; "),
	)
}

func (e *PartialError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
