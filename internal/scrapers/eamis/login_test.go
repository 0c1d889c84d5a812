package eamis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"eamis-catcher/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

// fakeSso is a cas style sign-on server in front of a portal that only
// serves the landing page to sessions holding a JSESSIONID.
type fakeSso struct {
	portal    *httptest.Server
	sso       *httptest.Server
	portalUrl string
}

func newFakeSso(t *testing.T) *fakeSso {
	f := &fakeSso{}

	f.portal = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathLanding {
			http.NotFound(w, r)
			return
		}
		if _, err := r.Cookie("JSESSIONID"); err == nil {
			w.Write([]byte("<html><body>landing</body></html>"))
			return
		}
		if r.URL.Query().Get("ticket") == "ST-1" {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "granted", Path: "/"})
			http.Redirect(w, r, PathLanding, http.StatusFound)
			return
		}
		service := f.portalUrl + PathLanding
		http.Redirect(w, r, f.sso.URL+"/cas/login?service="+url.QueryEscape(service), http.StatusFound)
	}))
	t.Cleanup(f.portal.Close)
	// cookies are kept per host, the portal must not share one with the sso server
	f.portalUrl = strings.Replace(f.portal.URL, "127.0.0.1", "localhost", 1)

	f.sso = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cas/login" {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodPost {
			r.ParseForm()
			if r.PostForm.Get("username") != "student" || r.PostForm.Get("password") != "secret" {
				http.Error(w, "wrong password", http.StatusUnauthorized)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "CASTGC", Value: "TGT-1", Path: "/cas"})
			w.Write([]byte("signed in"))
			return
		}
		if _, err := r.Cookie("CASTGC"); err == nil {
			http.Redirect(w, r, r.URL.Query().Get("service")+"?ticket=ST-1", http.StatusFound)
			return
		}
		w.Write([]byte("<form>login</form>"))
	}))
	t.Cleanup(f.sso.Close)

	return f
}

func (f *fakeSso) login(password string) Login {
	return LoginFunc(func(ctx context.Context, session *Session) (Authenticator, error) {
		res, err := session.Http.R().
			SetContext(ctx).
			SetFormData(map[string]string{"username": "student", "password": password}).
			Post(f.sso.URL + "/cas/login")
		if err != nil {
			return nil, err
		}
		if res.IsError() {
			return nil, fmt.Errorf("sign in: %s", res.Status())
		}
		return nil, nil
	})
}

func (f *fakeSso) options(allowedHosts []string) ClientOptions {
	return ClientOptions{
		SessionOptions: SessionOptions{
			BaseUrl:              f.portalUrl,
			AllowedRedirectHosts: allowedHosts,
			Telemetry:            telemetry.NewTestAPI(),
		},
		RateLimits: noRateLimits(),
	}
}

func TestFromLoginSingleSignOn(t *testing.T) {
	f := newFakeSso(t)
	ctx := context.Background()

	client, err := FromLogin(ctx, f.options([]string{"127.0.0.1"}), f.login("secret"))
	require.NoError(t, err)

	page, err := client.LandingPage(ctx)
	require.NoError(t, err)
	require.Contains(t, string(page), "landing")

	activated, err := client.Activate(ctx)
	require.NoError(t, err)
	require.True(t, activated)
}

func TestFromLoginWrongPassword(t *testing.T) {
	f := newFakeSso(t)

	_, err := FromLogin(context.Background(), f.options([]string{"127.0.0.1"}), f.login("guess"))
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestFromLoginSsoHostNotAllowed(t *testing.T) {
	f := newFakeSso(t)

	// the defaults only allow the real sso server
	_, err := FromLogin(context.Background(), f.options(nil), f.login("secret"))
	require.ErrorContains(t, err, "redirect to 127.0.0.1 is not allowed")
}
