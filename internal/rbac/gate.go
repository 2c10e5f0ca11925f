package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Outcome labels for gate observers.
const (
	OutcomeUnprotected = "unprotected"
	OutcomeAllowed     = "allowed"
	OutcomeDenied      = "denied"
)

// Decision is the gate's answer for one action.
type Decision struct {
	Allowed bool
	// Protected reports whether a permission is registered for the action.
	Protected bool
	// Redirect carries the configured denial target when Allowed is false.
	Redirect string
}

// PrincipalResolver loads the current principal from request context.
// A nil principal with a nil error means "not authenticated".
type PrincipalResolver func(ctx context.Context) (Principal, error)

// GateObserver receives one call per decision with the outcome label.
type GateObserver interface {
	GateDecision(outcome string)
}

// Gate is the request-time access decision: it maps an action slug to a
// registered permission and allows or denies based on the current principal.
//
// Actions without a registered permission are unprotected and always allowed.
// Registry failures are hard errors, never treated as unprotected.
type Gate struct {
	registry *Registry
	resolve  PrincipalResolver
	redirect string
	logger   *slog.Logger
	observer GateObserver

	mu       sync.Mutex
	override Principal
}

// NewGate constructs a Gate. redirect is the denial target handed back to
// callers on every deny.
func NewGate(registry *Registry, resolve PrincipalResolver, redirect string, logger *slog.Logger) *Gate {
	return &Gate{registry: registry, resolve: resolve, redirect: redirect, logger: logger}
}

// SetObserver installs a decision observer.
func (g *Gate) SetObserver(obs GateObserver) {
	g.observer = obs
}

// SetIdentity overrides principal resolution with a fixed principal. The
// override takes precedence over the resolver until cleared; callers that
// set it per request must clear it before the request ends.
func (g *Gate) SetIdentity(p Principal) {
	g.mu.Lock()
	g.override = p
	g.mu.Unlock()
}

// ClearIdentity removes the principal override.
func (g *Gate) ClearIdentity() {
	g.mu.Lock()
	g.override = nil
	g.mu.Unlock()
}

func (g *Gate) principal(ctx context.Context) (Principal, error) {
	g.mu.Lock()
	override := g.override
	g.mu.Unlock()
	if override != nil {
		return override, nil
	}
	if g.resolve == nil {
		return nil, nil
	}
	return g.resolve(ctx)
}

// Authorize decides whether the current principal may perform action.
func (g *Gate) Authorize(ctx context.Context, action string) (Decision, error) {
	perm, registered, err := g.registry.FindBySlug(ctx, action)
	if err != nil {
		return Decision{}, err
	}
	if !registered {
		g.observe(OutcomeUnprotected)
		return Decision{Allowed: true}, nil
	}

	principal, err := g.principal(ctx)
	if err != nil {
		return Decision{}, err
	}
	if principal == nil {
		g.observe(OutcomeDenied)
		return Decision{Protected: true, Redirect: g.redirect}, nil
	}

	ok, err := principal.HasPermission(ctx, perm)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		g.observe(OutcomeDenied)
		return Decision{Protected: true, Redirect: g.redirect}, nil
	}
	g.observe(OutcomeAllowed)
	return Decision{Allowed: true, Protected: true}, nil
}

func (g *Gate) observe(outcome string) {
	if g.observer != nil {
		g.observer.GateDecision(outcome)
	}
}

// Protect guards a route with an explicit action slug.
func (g *Gate) Protect(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, next, action)
		})
	}
}

// Middleware guards a subtree, deriving the action slug from the request
// path.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.serve(w, r, next, ActionFromRequest(r))
	})
}

func (g *Gate) serve(w http.ResponseWriter, r *http.Request, next http.Handler, action string) {
	decision, err := g.Authorize(r.Context(), action)
	if err != nil {
		if g.logger != nil {
			g.logger.Error("gate authorize", slog.String("action", action), slog.Any("error", err))
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if !decision.Allowed {
		http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
		return
	}
	next.ServeHTTP(w, r)
}

// ActionFromRequest normalizes the request path into a dot-joined action
// slug: "/api/roles/admin" becomes "api.roles.admin".
func ActionFromRequest(r *http.Request) string {
	segments := strings.FieldsFunc(r.URL.Path, func(c rune) bool { return c == '/' })
	for i, s := range segments {
		segments[i] = strings.ToLower(s)
	}
	return strings.Join(segments, ".")
}
