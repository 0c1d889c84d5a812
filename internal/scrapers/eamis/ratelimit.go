package eamis

import (
	"fmt"
	"maps"
	"net/url"
	"strings"
	"sync"
	"time"

	"eamis-catcher/internal/components/chrono"

	"github.com/go-resty/resty/v2"
)

// RateLimitRule gates requests to a path on the completion times of the
// paths in Associated, a request is only sent once every associated path
// was last completed at least its interval ago.
type RateLimitRule struct {
	Associated map[string]time.Duration
}

const (
	PathLanding       = "/eams/stdElectCourse.action"
	PathDefaultPage   = "/eams/stdElectCourse!defaultPage.action"
	PathLessonData    = "/eams/stdElectCourse!data.action"
	PathStdCount      = "/eams/stdElectCourse!queryStdCount.action"
	PathBatchOperator = "/eams/stdElectCourse!batchOperator.action"
)

// DefaultRateLimits returns the intervals below which the portal starts
// replying with "do not click too fast" instead of the requested page.
func DefaultRateLimits() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		PathLanding: {Associated: map[string]time.Duration{
			PathLanding: 500 * time.Millisecond,
		}},
		PathDefaultPage: {Associated: map[string]time.Duration{
			PathDefaultPage: 500 * time.Millisecond,
			PathLessonData:  500 * time.Millisecond,
		}},
	}
}

// PathLimiter is an Authenticator that delays requests to gated paths
// according to its rules. The time a request completes is taken when its
// response arrives, not when it is sent.
type PathLimiter struct {
	host  string
	clock chrono.API

	mutex sync.Mutex
	rules map[string]RateLimitRule
	last  map[string]time.Time
}

func NewPathLimiter(host string, clock chrono.API) *PathLimiter {
	return &PathLimiter{
		host:  strings.ToLower(host),
		clock: clock,
		rules: map[string]RateLimitRule{},
		last:  map[string]time.Time{},
	}
}

// SetRule replaces the rule of a gated path, a rule without associated
// paths removes the gate.
func (l *PathLimiter) SetRule(path string, rule RateLimitRule) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if len(rule.Associated) == 0 {
		delete(l.rules, path)
		return
	}
	l.rules[path] = RateLimitRule{Associated: maps.Clone(rule.Associated)}
}

func (l *PathLimiter) Rules() map[string]RateLimitRule {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	out := make(map[string]RateLimitRule, len(l.rules))
	for path, rule := range l.rules {
		out[path] = RateLimitRule{Associated: maps.Clone(rule.Associated)}
	}
	return out
}

// LastCompletion returns when a request to path last completed.
func (l *PathLimiter) LastCompletion(path string) (time.Time, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	t, ok := l.last[path]
	return t, ok
}

func (l *PathLimiter) path(rawUrl string) (string, bool) {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return "", false
	}
	// relative urls are resolved against the session's base url
	if parsed.Host != "" && strings.ToLower(parsed.Hostname()) != l.host {
		return "", false
	}
	return parsed.Path, true
}

// readyTime returns the time a request to path may be sent and whether
// completions of path need to be tracked at all.
func (l *PathLimiter) readyTime(path string) (ready time.Time, gated, tracked bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	rule, gated := l.rules[path]
	tracked = gated
	for _, other := range l.rules {
		if _, ok := other.Associated[path]; ok {
			tracked = true
			break
		}
	}
	if !gated {
		return time.Time{}, false, tracked
	}

	for assoc, interval := range rule.Associated {
		// paths that never completed are treated as having completed at the zero time
		candidate := l.last[assoc].Add(interval)
		if candidate.After(ready) {
			ready = candidate
		}
	}
	return ready, true, tracked
}

func (l *PathLimiter) record(path string) {
	now := l.clock.Now()
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.last[path] = now
}

func (l *PathLimiter) Authenticate(req *resty.Request) error {
	path, ok := l.path(req.URL)
	if !ok {
		return nil
	}

	ready, gated, tracked := l.readyTime(path)
	if gated {
		wait := ready.Sub(l.clock.Now())
		if wait > 0 {
			err := l.clock.Sleep(req.Context(), wait)
			if err != nil {
				return fmt.Errorf("waiting to request %s: %w", path, err)
			}
		}
	}
	if tracked {
		OnResponse(req, func(*resty.Response) {
			l.record(path)
		})
	}
	return nil
}
