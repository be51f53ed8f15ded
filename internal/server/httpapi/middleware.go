package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/gateway"
	"github.com/dmitrijs2005/authgate/internal/server/models"
	"github.com/google/uuid"
)

type ctxKey string

const (
	requestIDKey ctxKey = "requestID"
	sessionKey   ctxKey = "session"
)

const requestIDHeader = "X-Request-Id"

// responseWriter captures the status code for the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach Hijack for proxied websockets.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		d := time.Since(start)
		s.metrics.ObserveRequest(r.Method, wrapped.statusCode, d)
		s.logger.Info(ctx, "request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", d,
		)
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requireSession resolves the session cookies in policy order and puts the
// view into the request context. Without one the request ends with 401.
func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		policy := s.gateway.Policy()

		var lastErr error
		for _, token := range policy.SessionTokens(r) {
			v, err := s.sessions.Authenticate(ctx, token)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey, v)))
				return
			}
			lastErr = err
			s.logger.Debug(ctx, "session rejected", "path", r.URL.Path, "token", logging.TokenHint(token), "error", err)
		}

		s.writeError(w, r, unauthenticated(lastErr))
	})
}

func sessionFrom(ctx context.Context) *models.SessionView {
	v, _ := ctx.Value(sessionKey).(*models.SessionView)
	return v
}

// sessionCookie is the cookie set on login.
func sessionCookie(token string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     gateway.PrimaryCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func clearCookie(name string) *http.Cookie {
	return &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true}
}
