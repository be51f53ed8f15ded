// Package gateway is the per-request authentication gate placed in front of
// the wrapped application.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/metrics"
	"github.com/dmitrijs2005/authgate/internal/server/models"
)

// Authenticator resolves a session token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.SessionView, error)
}

// Decision labels, also used as metric label values.
const (
	DecisionExempt        = "exempt"
	DecisionLogout        = "logout"
	DecisionThemeRedirect = "theme_redirect"
	DecisionInternal      = "internal"
	DecisionAuthenticated = "authenticated"
	DecisionLoginRedirect = "login_redirect"
)

type Gateway struct {
	policy  Policy
	auth    Authenticator
	timeout time.Duration
	metrics *metrics.Metrics
	log     logging.Logger
}

type Option func(*Gateway)

func WithPolicy(p Policy) Option {
	return func(g *Gateway) { g.policy = p }
}

// WithTimeout bounds each session lookup.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

func New(auth Authenticator, opts ...Option) *Gateway {
	g := &Gateway{
		policy:  DefaultPolicy(),
		auth:    auth,
		timeout: 2 * time.Second,
		log:     logging.Nop{},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) Policy() Policy { return g.policy }

// Middleware gates next. It never writes a 5xx for a failed lookup; every
// failure ends in a login redirect.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, location := g.decide(r)
		g.metrics.GatewayDecision(decision)

		switch decision {
		case DecisionThemeRedirect:
			http.Redirect(w, r, location, http.StatusFound)
		case DecisionLoginRedirect:
			g.log.Info(r.Context(), "unauthenticated request redirected", "path", r.URL.Path)
			http.Redirect(w, r, g.policy.LoginPath, http.StatusFound)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// decide evaluates the policy in precedence order; the first match wins.
func (g *Gateway) decide(r *http.Request) (decision, location string) {
	path := r.URL.Path
	p := &g.policy

	if p.exactExempt(path) || p.prefixExempt(path) {
		return DecisionExempt, ""
	}
	if path == p.LogoutPath {
		return DecisionLogout, ""
	}

	q := r.URL.Query()
	if target, ok := p.themeRewrite(r.URL, q); ok {
		return DecisionThemeRedirect, target
	}

	internal := p.hasInternalParam(q)
	if internal && path != p.RootPath {
		return DecisionInternal, ""
	}

	if g.hasSession(r) {
		return DecisionAuthenticated, ""
	}
	return DecisionLoginRedirect, ""
}

// hasSession tries every known cookie in order. Errors, timeouts and panics
// all count as no session.
func (g *Gateway) hasSession(r *http.Request) bool {
	for _, token := range g.policy.SessionTokens(r) {
		ok, err := g.lookup(r.Context(), token)
		if err != nil {
			if !errors.Is(err, common.ErrorUnauthenticated) {
				g.log.Warn(r.Context(), "session lookup failed", "path", r.URL.Path, "token", logging.TokenHint(token), "error", err)
			}
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

type lookupResult struct {
	ok  bool
	err error
}

// lookup runs the authenticator off the request goroutine so an
// authenticator that ignores ctx still cannot hold the request past the
// timeout.
func (g *Gateway) lookup(ctx context.Context, token string) (bool, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	done := make(chan lookupResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- lookupResult{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		v, err := g.auth.Authenticate(ctx, token)
		done <- lookupResult{ok: err == nil && v != nil, err: err}
	}()

	select {
	case res := <-done:
		return res.ok, res.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
