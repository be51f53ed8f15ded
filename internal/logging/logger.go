// Package logging defines the structured-logging interface used across the
// gateway. The default implementation wraps log/slog.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "login succeeded", "account", account)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// TokenHint returns a short, non-secret prefix of a session token that is
// safe to put into log lines.
func TokenHint(token string) string {
	const visible = 6
	if token == "" {
		return ""
	}
	if len(token) <= visible {
		return "***"
	}
	return token[:visible] + "..."
}
