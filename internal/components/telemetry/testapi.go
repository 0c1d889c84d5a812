package telemetry

import (
	"fmt"
	"strings"
	"sync"
)

// Report is a single call recorded by TestAPI.
type Report struct {
	Kind   string
	Id     string
	Params []any
}

// TestAPI records every report so tests can assert on them.
type TestAPI struct {
	mutex   sync.Mutex
	reports []Report
}

func NewTestAPI() *TestAPI {
	return &TestAPI{}
}

func (t *TestAPI) record(kind, id string, params []any) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.reports = append(t.reports, Report{Kind: kind, Id: id, Params: params})
}

func (t *TestAPI) ReportBroken(id string, params ...any) {
	t.record("broken", id, params)
}

func (t *TestAPI) ReportWarning(id string, params ...any) {
	t.record("warning", id, params)
}

func (t *TestAPI) ReportDebug(msg string, params ...any) {
	t.record("debug", msg, params)
}

func (t *TestAPI) ReportCount(id string, count int64) {
	t.record("count", id, []any{count})
}

// Reports returns a copy of the recorded reports of the given kind,
// an empty kind returns all of them.
func (t *TestAPI) Reports(kind string) []Report {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var out []Report
	for _, r := range t.reports {
		if kind == "" || r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Broken returns the ids of all ReportBroken calls whose id contains substr.
func (t *TestAPI) Broken(substr string) []string {
	var ids []string
	for _, r := range t.Reports("broken") {
		if strings.Contains(r.Id, substr) {
			ids = append(ids, r.Id)
		}
	}
	return ids
}

func (t *TestAPI) String() string {
	var sb strings.Builder
	for _, r := range t.Reports("") {
		sb.WriteString(fmt.Sprintf("[%s] %s %v\n", r.Kind, r.Id, r.Params))
	}
	return sb.String()
}
