package eamis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"eamis-catcher/internal/components/assert"
	"eamis-catcher/internal/components/chrono"
	"eamis-catcher/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const DefaultBaseUrl = "https://eamis.nankai.edu.cn"

// DefaultSsoHosts are the single sign-on servers the portal sends
// unauthenticated visitors to.
var DefaultSsoHosts = []string{"iam.nankai.edu.cn"}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// resty only knows how to decompress gzip
var documentHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Encoding": "gzip",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
}

var xhrHeaders = map[string]string{
	"Accept":           "*/*",
	"Accept-Encoding":  "gzip",
	"Accept-Language":  "zh-CN,zh;q=0.9,en;q=0.8",
	"X-Requested-With": "XMLHttpRequest",
}

type SessionOptions struct {
	// BaseUrl defaults to DefaultBaseUrl.
	BaseUrl   string
	Timeout   time.Duration
	UserAgent string
	// AllowedRedirectHosts are the hosts other than the portal's that
	// redirects may lead to, defaults to DefaultSsoHosts.
	AllowedRedirectHosts []string
	Telemetry            telemetry.API
	Clock                chrono.API
	// MessageOutput receives a dump of every http exchange when set.
	MessageOutput telemetry.MessageOutput
}

// Session owns the cookies of a portal session and sends every request
// through its authenticator chain. The path limiter is the first member
// of the chain.
type Session struct {
	BaseUrl *url.URL
	Http    *resty.Client

	jar     http.CookieJar
	auth    *Chain
	limiter *PathLimiter
}

type noRedirectKeyType int

var noRedirectKey noRedirectKeyType

// redirectPolicy follows redirects within the portal and to the single
// sign-on hosts, so a login can round trip through them and come back
// with a ticket.
func redirectPolicy(portalHost string, allowedHosts []string) resty.RedirectPolicy {
	allowed := map[string]bool{strings.ToLower(portalHost): true}
	for _, host := range allowedHosts {
		allowed[strings.ToLower(host)] = true
	}
	return resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if noRedirect, _ := req.Context().Value(noRedirectKey).(bool); noRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= 10 {
			return fmt.Errorf("stopped after %d redirects", len(via))
		}
		if !allowed[strings.ToLower(req.URL.Hostname())] {
			return fmt.Errorf("redirect to %s is not allowed", req.URL.Hostname())
		}
		return nil
	})
}

func NewSession(opts SessionOptions) (*Session, error) {
	assert.NotNil(opts.Telemetry)
	assert.NotNil(opts.Clock)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = browserUserAgent
	}
	if opts.AllowedRedirectHosts == nil {
		opts.AllowedRedirectHosts = DefaultSsoHosts
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", opts.BaseUrl)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(baseUrl.String())
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetTimeout(opts.Timeout)

	httpClient.SetRedirectPolicy(redirectPolicy(baseUrl.Hostname(), opts.AllowedRedirectHosts))

	limiter := NewPathLimiter(baseUrl.Hostname(), opts.Clock)
	auth := NewChain(limiter)

	tel := telemetry.NewScopedAPI("eamis_session", opts.Telemetry)
	telemetry.InstrumentResty(httpClient, tel, "eamis", opts.MessageOutput)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return auth.Authenticate(req)
	})
	httpClient.OnAfterResponse(runResponseHooks)

	return &Session{
		BaseUrl: baseUrl,
		Http:    httpClient,
		jar:     jar,
		auth:    auth,
		limiter: limiter,
	}, nil
}

// Auth returns the session's authenticator chain so strategies can be
// appended during setup.
func (s *Session) Auth() *Chain {
	return s.auth
}

func (s *Session) Limiter() *PathLimiter {
	return s.limiter
}

// SetCookies adds cookies obtained elsewhere (ex. an interactive login) to
// the session's cookie jar.
func (s *Session) SetCookies(cookies []*http.Cookie) {
	s.jar.SetCookies(s.BaseUrl, cookies)
}

// Resolve resolves a possibly relative reference against the base url.
func (s *Session) Resolve(ref string) (*url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return s.BaseUrl.ResolveReference(parsed), nil
}

func checkStatus(res *resty.Response) error {
	code := res.StatusCode()
	if code >= 200 && code < 400 {
		return nil
	}
	return &StatusError{
		Method:     res.Request.Method,
		Url:        res.Request.URL,
		StatusCode: code,
		Body:       res.String(),
	}
}

// Document requests a page the way a browser navigating to it would.
func (s *Session) Document(ctx context.Context, path string, query url.Values) (*resty.Response, error) {
	return s.document(ctx, path, query)
}

// DocumentNoRedirect is Document, except a redirect is returned as the
// response instead of being followed.
func (s *Session) DocumentNoRedirect(ctx context.Context, path string, query url.Values) (*resty.Response, error) {
	return s.document(context.WithValue(ctx, noRedirectKey, true), path, query)
}

func (s *Session) document(ctx context.Context, path string, query url.Values) (*resty.Response, error) {
	res, err := s.Http.R().
		SetContext(ctx).
		SetHeaders(documentHeaders).
		SetQueryParamsFromValues(query).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	err = checkStatus(res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

type XHROptions struct {
	Query url.Values
	// Form is sent url encoded as the request body.
	Form url.Values
	// Cookies are sent with this request only, on top of the session's cookies.
	Cookies []*http.Cookie
}

// XHR sends a request the way the portal's own scripts would.
func (s *Session) XHR(ctx context.Context, method, path string, opts XHROptions) (*resty.Response, error) {
	req := s.Http.R().
		SetContext(ctx).
		SetHeaders(xhrHeaders).
		SetQueryParamsFromValues(opts.Query).
		SetCookies(opts.Cookies)
	if opts.Form != nil {
		req.SetFormDataFromValues(opts.Form)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	err = checkStatus(res)
	if err != nil {
		return nil, err
	}
	return res, nil
}
