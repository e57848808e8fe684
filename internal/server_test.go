package internal

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alcorzop/portal-gateway/internal/auth"
	"github.com/alcorzop/portal-gateway/internal/config"
	"github.com/alcorzop/portal-gateway/internal/content"
	"github.com/alcorzop/portal-gateway/internal/middleware"
	"github.com/alcorzop/portal-gateway/internal/ratelimit"
	"github.com/alcorzop/portal-gateway/internal/telemetry/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testServerAdminPath = "/admin-38qaktjvhv"
	testServerEmail     = "admin@example.com"
	testServerPassword  = "s3cr3t-portal-pass"
)

// newTestServer wires the full request pipeline with in-memory fakes in
// place of postgres and redis.
func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(testServerPassword), bcrypt.MinCost)
	require.NoError(t, err)

	metricsManager, promRegistry := metrics.NewTestManagerAndRegistry()
	sessions := auth.NewService(auth.ServiceParams{Repo: auth.NewTestSessionRepo()})

	s := &Server{
		config: &config.Config{
			LoginWindowMinutes: 15,
			LoginMaxAttempts:   5,
		},
		versionInfo:  "test",
		adminPath:    testServerAdminPath,
		sessions:     sessions,
		principals:   auth.NewStaticPrincipals(testServerEmail, string(passwordHash)),
		loginLimiter: ratelimit.New(ratelimit.NewMemoryStore()),
		gateway:      middleware.NewGateway(testServerAdminPath, sessions, metricsManager),
		contentRepo:  content.NewTestRepo(),

		metricsManager: metricsManager,
		promRegistry:   promRegistry,
	}
	return s, s.Handler()
}

func TestServer_PublicRoutes(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "I'm OK, thanks ;)", rr.Body.String())

	req = httptest.NewRequest("GET", "/version", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "test", rr.Body.String())

	req = httptest.NewRequest("GET", "/documents", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_DefaultAdminPrefixIsDecoy(t *testing.T) {
	_, handler := newTestServer(t)

	for _, path := range []string{"/admin", "/admin/documents", "/admin/login"} {
		req := httptest.NewRequest("GET", path, nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code, "path %s", path)
	}
}

func TestServer_AdminAPIGated(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/admin/documents", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, `{"error":"unauthorized"}`, rr.Body.String())
}

func TestServer_FullAdminFlow(t *testing.T) {
	_, handler := newTestServer(t)

	// 1: unauthenticated admin UI request redirects to the login page
	req := httptest.NewRequest("GET", testServerAdminPath+"/documents", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, testServerAdminPath+"/login", location.Path)

	// 2: log in over the admin API
	form := url.Values{}
	form.Set("email", testServerEmail)
	form.Set("password", testServerPassword)
	form.Set("next", location.Query().Get("next"))
	req = httptest.NewRequest("POST", "/api/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, testServerAdminPath+"/documents", rr.Header().Get("Location"))

	var sessionCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)

	// 3: the admin content API now works, create a draft document
	body := `{"slug":"welcome","title":"Welcome","content":"hello"}`
	req = httptest.NewRequest("POST", "/api/admin/documents", strings.NewReader(body))
	req.AddCookie(sessionCookie)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	// 4: the draft stays hidden from the public site
	req = httptest.NewRequest("GET", "/documents/welcome", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)

	// 5: the auth probe confirms the session
	req = httptest.NewRequest("GET", "/api/admin/auth/check", nil)
	req.AddCookie(sessionCookie)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"ok":true,"principalId":1}`, rr.Body.String())

	// 6: logout revokes the session, the API locks again
	req = httptest.NewRequest("POST", "/api/admin/logout", nil)
	req.AddCookie(sessionCookie)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	req = httptest.NewRequest("GET", "/api/admin/documents", nil)
	req.AddCookie(sessionCookie)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestServer_LoginThrottledBeforePasswordCheck(t *testing.T) {
	_, handler := newTestServer(t)

	postLogin := func(password string) *httptest.ResponseRecorder {
		body := fmt.Sprintf(`{"email":%q,"password":%q}`, testServerEmail, password)
		req := httptest.NewRequest("POST", "/api/admin/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 5; i++ {
		rr := postLogin("wrong-password")
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	rr := postLogin(testServerPassword)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, `{"error":"rate"}`, rr.Body.String())
}
