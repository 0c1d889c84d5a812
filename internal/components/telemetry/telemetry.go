package telemetry

import (
	"fmt"
)

// API is where components report what happened to them. Tests pass a
// TestAPI to assert on the reports, the cli passes a SlogAPI.
//
// Ids name the component and method that reported, ex. `client.lesson-data`
// or `client.speed-catch`, never a finer step of it. The failing step goes
// into the params or the wrapped error instead. Ids are lowercase, dashes
// join the words of a method. Every package declares its ids as
// `report_...` constants.
type API interface {
	// ReportBroken reports a failure that made an operation give up.
	ReportBroken(id string, params ...any)
	// ReportWarning reports something unexpected that the operation
	// recovered from, ex. a redirect or a retried election.
	ReportWarning(id string, params ...any)
	// ReportDebug is only shown when running verbosely.
	ReportDebug(msg string, params ...any)
	// ReportCount reports the value of a counter at this point in time.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with the namespace of the component that
// owns it, ex. `eamis: client.activate`.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
