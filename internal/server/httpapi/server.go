// Package httpapi is the HTTP face of the gateway: the session-bound
// handlers, the access log, and the gated reverse proxy to the wrapped
// application.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/gateway"
	"github.com/dmitrijs2005/authgate/internal/server/metrics"
	"github.com/dmitrijs2005/authgate/internal/server/models"
	"github.com/dmitrijs2005/authgate/internal/server/negotiate"
	"github.com/dmitrijs2005/authgate/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Sessions is what the handlers need from the session manager.
type Sessions interface {
	Login(ctx context.Context, account, password string, ttl time.Duration) (*services.LoginResult, error)
	Authenticate(ctx context.Context, token string) (*models.SessionView, error)
	Logout(ctx context.Context, token string) bool
	DeductPoints(ctx context.Context, userID, amount int64) (int64, error)
	UpdateProfile(ctx context.Context, userID int64, userName, email string) (*models.User, error)
	TTL() time.Duration
}

type HTTPServer struct {
	address    string
	sessions   Sessions
	gateway    *gateway.Gateway
	downstream http.Handler
	negotiator *negotiate.Negotiator
	metrics    *metrics.Metrics
	logger     logging.Logger
	now        func() time.Time

	shutdownTimeout time.Duration
}

func NewHTTPServer(address string, l logging.Logger, sessions Sessions, gw *gateway.Gateway, downstream http.Handler, mx *metrics.Metrics) *HTTPServer {
	return &HTTPServer{
		address:         address,
		sessions:        sessions,
		gateway:         gw,
		downstream:      downstream,
		negotiator:      negotiate.New(),
		metrics:         mx,
		logger:          l.With("module", "http_server"),
		now:             time.Now,
		shutdownTimeout: 10 * time.Second,
	}
}

// Router wires the routes. Anything not matched here goes through the
// gateway to the wrapped application.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Post("/login", s.handleLogin)
	r.Post("/login_check", s.handleLogin)
	r.Get("/logout", s.handleLogout)
	r.Post("/logout", s.handleLogout)
	r.Get("/auth_test", s.handleAuthTest)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/whoami", s.handleWhoami)
		r.Get("/api/user/info", s.handleWhoami)
		r.Get("/user_info", s.handleUserInfo)
		r.Post("/api/deduct_points", s.handleDeductPoints)
		r.Post("/api/user/update", s.handleUpdateProfile)
	})

	gated := s.gateway.Middleware(s.downstream)
	r.NotFound(gated.ServeHTTP)
	r.MethodNotAllowed(gated.ServeHTTP)

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(context.Background(), "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
