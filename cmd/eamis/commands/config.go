package commands

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"eamis-catcher/internal/components/telemetry"
	"eamis-catcher/internal/notify"
	"eamis-catcher/internal/scrapers/eamis"
)

type Config struct {
	BaseUrl string `json:"base_url"`
	// Cookies of a browser session that already passed single sign-on.
	Cookies map[string]string `json:"cookies"`
	// Headers are sent with every request.
	Headers           map[string]string `json:"headers"`
	RequestsPerSecond float64           `json:"requests_per_second"`
	// RateLimits maps a path to the minimum seconds since the last
	// completion of each associated path, rules replace the defaults of
	// the same path and an empty rule removes it.
	RateLimits    map[string]map[string]float64 `json:"rate_limits"`
	PacingSeconds float64                       `json:"pacing_seconds"`
	Plan          eamis.CatchPlan               `json:"plan"`
	SnapshotPath  string                        `json:"snapshot_path"`
	Db            string                        `json:"db"`
	Telemetry     telemetry.Config              `json:"telemetry"`
	Notify        notify.Config                 `json:"notify"`
}

func DefaultConfig() Config {
	return Config{
		BaseUrl:       eamis.DefaultBaseUrl,
		PacingSeconds: 0.5,
		SnapshotPath:  "eamis_snapshot.json",
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c Config) Pacing() time.Duration {
	return seconds(c.PacingSeconds)
}

func (c Config) RateLimitRules() map[string]eamis.RateLimitRule {
	rules := make(map[string]eamis.RateLimitRule, len(c.RateLimits))
	for path, associated := range c.RateLimits {
		rule := eamis.RateLimitRule{Associated: make(map[string]time.Duration, len(associated))}
		for assoc, s := range associated {
			rule.Associated[assoc] = seconds(s)
		}
		rules[path] = rule
	}
	return rules
}

// SessionCookies returns the configured cookies sorted by name.
func (c Config) SessionCookies() []*http.Cookie {
	names := make([]string, 0, len(c.Cookies))
	for name := range c.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	cookies := make([]*http.Cookie, len(names))
	for i, name := range names {
		cookies[i] = &http.Cookie{Name: name, Value: c.Cookies[name], Path: "/"}
	}
	return cookies
}

func (c Config) ClientOptions(tel telemetry.API, output telemetry.MessageOutput) eamis.ClientOptions {
	var auth []eamis.Authenticator
	if len(c.Headers) > 0 {
		auth = append(auth, eamis.HeaderAuth(c.Headers))
	}
	if c.RequestsPerSecond > 0 {
		auth = append(auth, eamis.NewThrottleAuth(c.RequestsPerSecond, 1))
	}

	return eamis.ClientOptions{
		SessionOptions: eamis.SessionOptions{
			BaseUrl:       c.BaseUrl,
			Telemetry:     tel,
			MessageOutput: output,
		},
		RateLimits: c.RateLimitRules(),
		Auth:       auth,
	}
}

// ParsePlan parses `<profile>:<lesson no>` arguments into a plan, lessons
// of consecutive arguments with the same profile are grouped together.
func ParsePlan(args []string) (eamis.CatchPlan, error) {
	var plan eamis.CatchPlan
	for _, arg := range args {
		profile, no, ok := strings.Cut(arg, ":")
		profile = strings.TrimSpace(profile)
		no = strings.TrimSpace(no)
		if !ok || profile == "" || no == "" {
			return nil, fmt.Errorf("invalid plan entry %q, expected <profile>:<lesson no>", arg)
		}

		last := len(plan) - 1
		if last >= 0 && plan[last].ProfileId == profile {
			plan[last].LessonNos = append(plan[last].LessonNos, no)
			continue
		}
		plan = append(plan, eamis.CatchEntry{ProfileId: profile, LessonNos: []string{no}})
	}
	return plan, nil
}
