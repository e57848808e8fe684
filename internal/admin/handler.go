// Package admin holds the HTTP surface of the admin access gateway:
// login, logout and the lightweight auth probe.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alcorzop/portal-gateway/internal/adminpath"
	"github.com/alcorzop/portal-gateway/internal/auth"
	"github.com/alcorzop/portal-gateway/internal/middleware"
	"github.com/alcorzop/portal-gateway/internal/ratelimit"
	"github.com/alcorzop/portal-gateway/internal/telemetry/metrics"
	"github.com/alcorzop/portal-gateway/internal/telemetry/tracing"
	"github.com/alcorzop/portal-gateway/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultLoginWindow      = 15 * time.Minute
	DefaultLoginMaxAttempts = 5
)

// machine readable failure codes, also used as ?error= values on the
// browser redirect path
const (
	failureInvalid    = "invalid"
	failureRate       = "rate"
	failureUnexpected = "unexpected"
)

type Handler struct {
	sessions     *auth.Service
	principals   auth.PrincipalRepo
	loginLimiter *ratelimit.Limiter
	loginWindow  time.Duration
	loginMax     int
	adminPath    string
	metrics      *metrics.Manager
}

type NewHandlerParams struct {
	Sessions     *auth.Service
	Principals   auth.PrincipalRepo
	LoginLimiter *ratelimit.Limiter
	LoginWindow  time.Duration
	LoginMax     int
	AdminPath    string
	Metrics      *metrics.Manager
}

func NewHandler(params NewHandlerParams) *Handler {
	if params.LoginWindow <= 0 {
		params.LoginWindow = DefaultLoginWindow
	}
	if params.LoginMax <= 0 {
		params.LoginMax = DefaultLoginMaxAttempts
	}
	return &Handler{
		sessions:     params.Sessions,
		principals:   params.Principals,
		loginLimiter: params.LoginLimiter,
		loginWindow:  params.LoginWindow,
		loginMax:     params.LoginMax,
		adminPath:    adminpath.Normalize(params.AdminPath),
		metrics:      params.Metrics,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	metricsManager *metrics.Manager,
) {
	adminAuthRouter := mainRouter.PathPrefix(middleware.AdminAPIPrefix).Subrouter()
	adminAuthRouter.
		HandleFunc("/login", handler.handleLogin).
		Methods("POST", "OPTIONS").Name("admin-login")
	adminAuthRouter.
		HandleFunc("/logout", handler.handleLogout).
		Methods("POST", "OPTIONS").Name("admin-logout")
	adminAuthRouter.
		HandleFunc("/auth/check", handler.handleAuthCheck).
		Methods("GET", "OPTIONS").Name("admin-auth-check")

	// coarse per-route limit on top of the per-ip/per-email throttling
	// done inside handleLogin
	if rateLimiter != nil {
		adminAuthRouter.Use(middleware.RateLimit(rateLimiter, "admin-auth", 30, metricsManager))
	}
}

func (handler *Handler) LoginPagePath() string {
	return adminpath.Join(handler.adminPath, middleware.LoginSuffix)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	var loginReq loginRequest
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
			log.Errorf("login, unmarshal json params: %s", err)
			handler.loginFailure(w, r, failureInvalid, http.StatusUnauthorized, "")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("login failed, parse form error: %s", err)
			handler.loginFailure(w, r, failureInvalid, http.StatusUnauthorized, "")
			return
		}
		loginReq = loginRequest{
			Email:    r.Form.Get("email"),
			Password: r.Form.Get("password"),
			Next:     r.Form.Get("next"),
		}
	}

	email := strings.ToLower(strings.TrimSpace(loginReq.Email))
	userIP := pkg.ReadUserIP(r)

	// both limiters run before any principal lookup or password
	// comparison; a throttled attempt must not touch either
	for _, key := range []string{
		"login|ip|" + userIP,
		"login|email|" + email,
	} {
		res, err := handler.loginLimiter.Check(ctx, key, handler.loginWindow, handler.loginMax)
		if err != nil {
			span.SetStatus(codes.Error, fmt.Sprintf("rate limit check: %s", err))
			log.Errorf("login, rate limit check [%s]: %s", key, err)
			handler.countLogin(failureUnexpected)
			handler.loginFailure(w, r, failureUnexpected, http.StatusInternalServerError, loginReq.Next)
			return
		}
		if !res.Allowed {
			log.Warnf("login throttled for [%s]", key)
			handler.countLogin(failureRate)
			handler.loginFailure(w, r, failureRate, http.StatusTooManyRequests, loginReq.Next)
			return
		}
	}

	if email == "" || loginReq.Password == "" {
		handler.countLogin(failureInvalid)
		handler.loginFailure(w, r, failureInvalid, http.StatusUnauthorized, loginReq.Next)
		return
	}

	// unknown email and wrong password are indistinguishable on purpose
	principal, err := handler.principals.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, auth.ErrPrincipalNotFound) {
			span.SetStatus(codes.Error, fmt.Sprintf("get principal: %s", err))
			log.Errorf("login, get principal: %s", err)
			handler.countLogin(failureUnexpected)
			handler.loginFailure(w, r, failureUnexpected, http.StatusInternalServerError, loginReq.Next)
			return
		}
		log.Tracef("[email] failed login attempt for: %s", email)
		handler.countLogin(failureInvalid)
		handler.loginFailure(w, r, failureInvalid, http.StatusUnauthorized, loginReq.Next)
		return
	}

	if !pkg.CheckPasswordHash(loginReq.Password, principal.PasswordHash) {
		log.Tracef("[password] failed login attempt for: %s", email)
		handler.countLogin(failureInvalid)
		handler.loginFailure(w, r, failureInvalid, http.StatusUnauthorized, loginReq.Next)
		return
	}

	credential, session, err := handler.sessions.Issue(ctx, principal.ID)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("issue session: %s", err))
		log.Errorf("login, issue session: %s", err)
		handler.countLogin(failureUnexpected)
		handler.loginFailure(w, r, failureUnexpected, http.StatusInternalServerError, loginReq.Next)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    credential,
		Path:     "/",
		MaxAge:   int(handler.sessions.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   pkg.RequestIsSecure(r),
	})

	log.Tracef("new login success, session %d", session.ID)
	handler.countLogin("success")
	if handler.metrics != nil {
		handler.metrics.CounterSessionsIssued.Inc()
	}

	if wantsJSONResponse(r) {
		pkg.WriteJSONResponseOK(w, `{"ok":true}`)
		return
	}
	http.Redirect(w, r, SafeRedirectTarget(loginReq.Next, handler.adminPath), http.StatusSeeOther)
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		if err := handler.sessions.Revoke(ctx, cookie.Value); err != nil {
			span.SetStatus(codes.Error, fmt.Sprintf("revoke session: %s", err))
			log.Errorf("logout, revoke session: %s", err)
		} else if handler.metrics != nil {
			handler.metrics.CounterSessionsRevoked.Inc()
		}
	}

	// clear the cookie regardless of whether a session was found
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   pkg.RequestIsSecure(r),
	})

	if wantsJSONResponse(r) {
		pkg.WriteJSONResponseOK(w, `{"ok":true}`)
		return
	}
	http.Redirect(w, r, handler.LoginPagePath(), http.StatusSeeOther)
}

func (handler *Handler) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.authCheck")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil {
		pkg.WriteResponse(w, pkg.ContentType.JSON, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	session, err := handler.sessions.Validate(ctx, cookie.Value)
	if err != nil {
		// fail closed, same response as a missing session
		span.SetStatus(codes.Error, fmt.Sprintf("validate session: %s", err))
		log.Errorf("auth check, validate session: %s", err)
	}
	if session == nil {
		pkg.WriteResponse(w, pkg.ContentType.JSON, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"ok":true,"principalId":%d}`, session.PrincipalID))
}

func (handler *Handler) loginFailure(w http.ResponseWriter, r *http.Request, code string, statusCode int, next string) {
	if wantsJSONResponse(r) {
		pkg.WriteResponse(w, pkg.ContentType.JSON, fmt.Sprintf(`{"error":"%s"}`, code), statusCode)
		return
	}

	loginURL := handler.LoginPagePath() + "?error=" + code
	if next != "" {
		loginURL += "&next=" + url.QueryEscape(next)
	}
	http.Redirect(w, r, loginURL, http.StatusSeeOther)
}

func (handler *Handler) countLogin(outcome string) {
	if handler.metrics == nil {
		return
	}
	handler.metrics.CounterLoginAttempts.WithLabelValues(outcome).Inc()
}

func wantsJSONResponse(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
