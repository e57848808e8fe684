package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/alcorzop/portal-gateway/internal/adminpath"
	"github.com/alcorzop/portal-gateway/internal/auth"
	"github.com/alcorzop/portal-gateway/internal/telemetry/metrics"
	"github.com/alcorzop/portal-gateway/pkg"

	log "github.com/sirupsen/logrus"
)

// AdminAPIPrefix is fixed and never obfuscated, unlike the admin UI prefix.
const AdminAPIPrefix = "/api/admin"

const LoginSuffix = "/login"

var staticPrefixes = []string{
	"/static/",
	"/assets/",
	"/favicon.ico",
}

type GatewayAction int

const (
	// let the request through untouched
	ActionPass GatewayAction = iota
	// pretend the path does not exist (guessed default admin prefix)
	ActionNotFound
	// unauthenticated admin API request
	ActionUnauthorized
	// unauthenticated admin UI request
	ActionRedirectToLogin
	// authenticated admin request, possibly with a path rewrite
	ActionServeAdmin
)

type GatewayDecision struct {
	Action GatewayAction
	// canonical path to substitute for the obfuscated one, for ActionServeAdmin
	RewritePath string
	// login URL carrying the original path as ?next=, for ActionRedirectToLogin
	RedirectTo string
}

// Gateway gates every admin route behind a valid session. All public
// traffic passes through it untouched.
type Gateway struct {
	adminPath      string
	sessionChecker auth.Checker
	metrics        *metrics.Manager
}

func NewGateway(adminPath string, sessionChecker auth.Checker, metricsManager *metrics.Manager) *Gateway {
	return &Gateway{
		adminPath:      adminpath.Normalize(adminPath),
		sessionChecker: sessionChecker,
		metrics:        metricsManager,
	}
}

func (g *Gateway) AdminPath() string {
	return g.adminPath
}

func (g *Gateway) LoginPagePath() string {
	return adminpath.Join(g.adminPath, LoginSuffix)
}

// Decide is the whole gating policy as a pure function of the request path
// and the authentication state. The HTTP side effects live in Handle.
func (g *Gateway) Decide(path string, authenticated bool) GatewayDecision {
	for _, prefix := range staticPrefixes {
		if strings.HasPrefix(path, prefix) {
			return GatewayDecision{Action: ActionPass}
		}
	}

	obfuscated := g.adminPath != adminpath.DefaultPath
	if obfuscated && adminpath.IsUnderPath(path, adminpath.DefaultPath) {
		// never confirm that the real admin prefix is elsewhere
		return GatewayDecision{Action: ActionNotFound}
	}

	isAdminAPI := adminpath.IsUnderPath(path, AdminAPIPrefix)
	isAdminUI := adminpath.IsUnderPath(path, g.adminPath)
	if !isAdminAPI && !isAdminUI {
		return GatewayDecision{Action: ActionPass}
	}

	isUILogin := path == g.LoginPagePath()
	isLogin := isUILogin || path == AdminAPIPrefix+LoginSuffix
	isAuthCheck := path == AdminAPIPrefix+"/auth/check"
	if isLogin || isAuthCheck {
		// reachable without a session; the obfuscated login page still
		// needs its prefix mapped to the canonical one for routing
		if isUILogin && obfuscated {
			return GatewayDecision{
				Action:      ActionServeAdmin,
				RewritePath: adminpath.DefaultPath + LoginSuffix,
			}
		}
		return GatewayDecision{Action: ActionPass}
	}

	if !authenticated {
		if isAdminAPI {
			return GatewayDecision{Action: ActionUnauthorized}
		}
		return GatewayDecision{
			Action:     ActionRedirectToLogin,
			RedirectTo: g.LoginPagePath() + "?next=" + url.QueryEscape(path),
		}
	}

	decision := GatewayDecision{Action: ActionServeAdmin}
	if isAdminUI && obfuscated {
		decision.RewritePath = adminpath.DefaultPath + strings.TrimPrefix(path, g.adminPath)
	}
	return decision
}

func (g *Gateway) Handle() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := g.Decide(r.URL.Path, false)
			if decision.Action != ActionPass && decision.Action != ActionNotFound {
				session := g.validate(r)
				decision = g.Decide(r.URL.Path, session != nil)
				if decision.Action == ActionServeAdmin {
					r = r.WithContext(contextWithSession(r.Context(), session))
				}
			}

			switch decision.Action {
			case ActionPass:
				next.ServeHTTP(w, r)
			case ActionNotFound:
				if g.metrics != nil {
					g.metrics.CounterDecoyResponses.Inc()
				}
				http.NotFound(w, r)
			case ActionUnauthorized:
				pkg.WriteResponse(w, pkg.ContentType.JSON, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			case ActionRedirectToLogin:
				http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
			case ActionServeAdmin:
				if decision.RewritePath != "" {
					r.URL.Path = decision.RewritePath
					r = r.WithContext(contextWithAdminUI(r.Context()))
				}
				next.ServeHTTP(w, r)
			}
		})
	}
}

// validate fails closed: any checker error counts as unauthenticated.
func (g *Gateway) validate(r *http.Request) *auth.Session {
	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil {
		return nil
	}
	session, err := g.sessionChecker.Validate(r.Context(), cookie.Value)
	if err != nil {
		log.Errorf("gateway: validate session for [%s]: %s", r.URL.Path, err)
		return nil
	}
	return session
}

type gatewayContextKey int

const (
	sessionContextKey gatewayContextKey = iota
	adminUIContextKey
)

func contextWithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext returns the validated session the gateway attached,
// or nil for requests that never passed the gate.
func SessionFromContext(ctx context.Context) *auth.Session {
	session, ok := ctx.Value(sessionContextKey).(*auth.Session)
	if !ok {
		return nil
	}
	return session
}

func contextWithAdminUI(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminUIContextKey, true)
}

// IsAdminUI reports whether the request arrived through the obfuscated
// admin prefix. Used to suppress public site chrome, not as access control.
func IsAdminUI(ctx context.Context) bool {
	isAdmin, ok := ctx.Value(adminUIContextKey).(bool)
	return ok && isAdmin
}
