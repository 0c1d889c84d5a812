package eamis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"eamis-catcher/internal/components/assert"
	"eamis-catcher/internal/components/chrono"
	"eamis-catcher/internal/components/telemetry"
	"eamis-catcher/lib/jsdata"
	"eamis-catcher/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	report_client_activate     = "client.activate"
	report_client_landing_page = "client.landing-page"
	report_client_profiles     = "client.profiles"
	report_client_default_page = "client.default-page"
	report_client_semester_id  = "client.semester-id"
	report_client_lesson_data  = "client.lesson-data"
	report_client_std_count    = "client.std-count"
)

type ClientOptions struct {
	SessionOptions
	// RateLimits are applied on top of DefaultRateLimits, a rule with no
	// associated paths removes the default rule for its path.
	RateLimits map[string]RateLimitRule
	// Auth is appended to the session's authenticator chain after the
	// path limiter.
	Auth []Authenticator
}

// Client drives the course election portal. A client must be activated
// before anything else is requested, and a profile's default page must be
// visited before its data can be requested. Both are done by the
// constructors and methods of the client itself.
//
// A client issues one request at a time, it must not be used from
// multiple goroutines at once.
type Client struct {
	session *Session
	tel     telemetry.API
	clock   chrono.API
}

func NewClient(opts ClientOptions) (*Client, error) {
	assert.NotNil(opts.Telemetry)
	if opts.Clock == nil {
		opts.Clock = chrono.NewStandardImpl()
	}

	session, err := NewSession(opts.SessionOptions)
	if err != nil {
		return nil, err
	}
	for path, rule := range DefaultRateLimits() {
		session.Limiter().SetRule(path, rule)
	}
	for path, rule := range opts.RateLimits {
		session.Limiter().SetRule(path, rule)
	}
	session.Auth().Append(opts.Auth...)

	return &Client{
		session: session,
		tel:     telemetry.NewScopedAPI("eamis", opts.Telemetry),
		clock:   opts.Clock,
	}, nil
}

func (c *Client) Session() *Session {
	return c.session
}

// Login is an external credential exchange. It may sign in to the single
// sign-on server through session.Http so the cookie jar holds its ticket
// granting cookie, the landing page visit of FromLogin then follows the
// portal, sso, portal redirect chain. It may also populate the session's
// cookies directly, or return an Authenticator to be appended to the
// session's chain. The returned Authenticator may be nil.
type Login interface {
	Login(ctx context.Context, session *Session) (Authenticator, error)
}

type LoginFunc func(ctx context.Context, session *Session) (Authenticator, error)

func (f LoginFunc) Login(ctx context.Context, session *Session) (Authenticator, error) {
	return f(ctx, session)
}

// FromSession creates a client out of the cookies of an already
// authenticated session and activates it.
func FromSession(ctx context.Context, opts ClientOptions, cookies []*http.Cookie) (*Client, error) {
	c, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	c.session.SetCookies(cookies)

	location, err := c.activate(ctx)
	if err != nil {
		return nil, err
	}
	if location != "" {
		target, err := c.session.Resolve(location)
		if err != nil || !strings.EqualFold(target.Hostname(), c.session.BaseUrl.Hostname()) {
			return nil, &AuthError{Err: fmt.Errorf("session was not accepted, redirected to %s", location)}
		}
		return nil, &ActivationError{Location: location}
	}
	return c, nil
}

// FromLogin creates a client, runs login against its session, then
// activates it.
func FromLogin(ctx context.Context, opts ClientOptions, login Login) (*Client, error) {
	assert.NotNil(login)

	c, err := NewClient(opts)
	if err != nil {
		return nil, err
	}

	auth, err := login.Login(ctx, c.session)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	if auth != nil {
		c.session.Auth().Append(auth)
	}

	// any page under the portal triggers the authentication
	_, err = c.LandingPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("trigger authentication: %w", err)
	}

	location, err := c.activate(ctx)
	if err != nil {
		return nil, err
	}
	if location != "" {
		return nil, &ActivationError{Location: location}
	}
	return c, nil
}

func isRedirect(res *resty.Response) bool {
	switch res.StatusCode() {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return res.Header().Get("Location") != ""
	}
	return false
}

// activate requests the landing page without following redirects, returning
// the redirect's location if there was one.
func (c *Client) activate(ctx context.Context) (string, error) {
	res, err := c.session.DocumentNoRedirect(ctx, PathLanding, nil)
	if err != nil {
		c.tel.ReportBroken(report_client_activate, err)
		return "", fmt.Errorf("activate: %w", err)
	}
	if !isRedirect(res) {
		return "", nil
	}
	location := res.Header().Get("Location")
	c.tel.ReportWarning(report_client_activate, "redirected", location)
	return location, nil
}

// Activate visits the landing page, the portal answers every other page
// with an error until this has been done once in a session. It reports
// false if the portal redirected instead of showing the landing page.
func (c *Client) Activate(ctx context.Context) (bool, error) {
	location, err := c.activate(ctx)
	if err != nil {
		return false, err
	}
	return location == "", nil
}

// LandingPage returns the landing page html, following redirects.
func (c *Client) LandingPage(ctx context.Context) ([]byte, error) {
	res, err := c.session.Document(ctx, PathLanding, nil)
	if err != nil {
		c.tel.ReportBroken(report_client_landing_page, err)
		return nil, fmt.Errorf("landing page: %w", err)
	}
	return res.Body(), nil
}

const noticeIdPrefix = "electIndexNotice"

func (c *Client) parseNotice(notice *goquery.Selection) (ElectProfile, error) {
	divs := notice.ChildrenFiltered("div")
	if divs.Length() < 3 {
		return ElectProfile{}, fmt.Errorf("expected at least 3 div children, got %d", divs.Length())
	}

	title := divs.Eq(0).Find("h3").First()
	if title.Length() == 0 {
		return ElectProfile{}, fmt.Errorf("could not find title")
	}
	tips := divs.Eq(1).Find("div").First()
	if tips.Length() == 0 {
		return ElectProfile{}, fmt.Errorf("could not find tips")
	}
	anchors := htmlutil.GetAnchors(c.session.BaseUrl, divs.Eq(2).Find("a[href]").First())
	if len(anchors) == 0 {
		return ElectProfile{}, fmt.Errorf("could not find entry link")
	}
	id := anchors[0].Url.Query().Get("electionProfile.id")
	if id == "" {
		return ElectProfile{}, fmt.Errorf("entry link %s has no profile id", anchors[0].Url)
	}

	return ElectProfile{
		Id:    id,
		Title: htmlutil.NormalizeText(title.Text()),
		Tips:  strings.TrimSpace(tips.Text()),
	}, nil
}

func (c *Client) parseProfiles(raw []byte) ([]ElectProfile, error) {
	doc, err := parseHtml("profiles", raw)
	if err != nil {
		return nil, err
	}
	fail := func(err error) error {
		return &MarkupError{Op: "profiles", Raw: string(raw), Err: err}
	}

	container := doc.Find(".ajax_container").First()
	if container.Length() == 0 {
		return nil, fail(fmt.Errorf("could not find .ajax_container"))
	}

	profiles := []ElectProfile{}
	var parseErr error
	container.Children().EachWithBreak(func(_ int, notice *goquery.Selection) bool {
		id, _ := notice.Attr("id")
		if !strings.HasPrefix(id, noticeIdPrefix) {
			return true
		}
		profile, err := c.parseNotice(notice)
		if err != nil {
			parseErr = fail(fmt.Errorf("notice %s: %w", id, err))
			return false
		}
		profiles = append(profiles, profile)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return profiles, nil
}

// Profiles lists the election profiles on the landing page in document order.
func (c *Client) Profiles(ctx context.Context) ([]ElectProfile, error) {
	page, err := c.LandingPage(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := c.parseProfiles(page)
	if err != nil {
		c.tel.ReportBroken(report_client_profiles, err)
		return nil, err
	}
	return profiles, nil
}

// DefaultPage visits a profile's default page, the portal fails requests for
// a profile's data until this has been done.
func (c *Client) DefaultPage(ctx context.Context, profileId string) ([]byte, error) {
	res, err := c.session.Document(ctx, PathDefaultPage, url.Values{
		"electionProfile.id": {profileId},
	})
	if err != nil {
		c.tel.ReportBroken(report_client_default_page, err, profileId)
		return nil, fmt.Errorf("default page: %w", err)
	}
	return res.Body(), nil
}

// SemesterId visits a profile's default page and reads the semester the
// profile belongs to from it.
func (c *Client) SemesterId(ctx context.Context, profileId string) (string, error) {
	page, err := c.DefaultPage(ctx, profileId)
	if err != nil {
		return "", err
	}

	semesterId, err := parseSemesterId(page)
	if err != nil {
		c.tel.ReportBroken(report_client_semester_id, err, profileId)
		return "", err
	}
	return semesterId, nil
}

func parseSemesterId(raw []byte) (string, error) {
	doc, err := parseHtml("semester-id", raw)
	if err != nil {
		return "", err
	}
	fail := func(err error) (string, error) {
		return "", &MarkupError{Op: "semester-id", Raw: string(raw), Err: err}
	}

	src, ok := doc.Find("#qr_script").First().Attr("src")
	if !ok {
		return fail(fmt.Errorf("could not find #qr_script[src]"))
	}
	parsed, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return fail(err)
	}
	semesterId := parsed.Query().Get("semesterId")
	if semesterId == "" {
		return fail(fmt.Errorf("qr script %q has no semester id", src))
	}
	return semesterId, nil
}

// LessonData lists every lesson of a profile, the profile's default page
// must have been visited beforehand.
func (c *Client) LessonData(ctx context.Context, profileId string) ([]LessonData, error) {
	res, err := c.session.Document(ctx, PathLessonData, url.Values{
		"profileId": {profileId},
	})
	if err != nil {
		c.tel.ReportBroken(report_client_lesson_data, fmt.Errorf("fetch: %w", err), profileId)
		return nil, fmt.Errorf("lesson data: %w", err)
	}

	lessons, err := decodeScript[[]LessonData](res.String(), "lessonJSONs", jsdata.Setup{}, lessonListShape)
	if err != nil {
		c.tel.ReportBroken(report_client_lesson_data, err, profileId)
		return nil, fmt.Errorf("lesson data: %w", err)
	}
	return lessons, nil
}

// StdCount returns the enrollment counters of every lesson in a semester
// keyed by lesson id.
func (c *Client) StdCount(ctx context.Context, semesterId string) (map[string]StdCount, error) {
	res, err := c.session.Document(ctx, PathStdCount, url.Values{
		"projectId":  {"1"},
		"semesterId": {semesterId},
	})
	if err != nil {
		c.tel.ReportBroken(report_client_std_count, fmt.Errorf("fetch: %w", err), semesterId)
		return nil, fmt.Errorf("std count: %w", err)
	}

	counts, err := decodeScript[map[string]StdCount](res.String(), "window.lessonId2Counts", jsdata.Setup{}, stdCountMapShape)
	if err != nil {
		c.tel.ReportBroken(report_client_std_count, err, semesterId)
		return nil, fmt.Errorf("std count: %w", err)
	}
	return counts, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
