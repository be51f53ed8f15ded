package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/cache"
	"github.com/dmitrijs2005/authgate/internal/server/metrics"
	"github.com/dmitrijs2005/authgate/internal/server/models"
)

// LoginResult is what a successful login hands back to the transport.
type LoginResult struct {
	Session *models.Session
	User    *models.User
}

// SessionManager applies expiry policy and the cache-aside rules:
//   - reads try the cache, then the store, and fill the cache with the epoch
//     sampled before the store read;
//   - every mutation invalidates the affected entries before returning.
type SessionManager struct {
	store   *CredentialStore
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	log     logging.Logger
}

type ManagerOption func(*SessionManager)

func WithCache(c cache.Cache) ManagerOption {
	return func(m *SessionManager) { m.cache = c }
}

func WithMetrics(mx *metrics.Metrics) ManagerOption {
	return func(m *SessionManager) { m.metrics = mx }
}

func WithManagerLogger(l logging.Logger) ManagerOption {
	return func(m *SessionManager) { m.log = l }
}

func NewSessionManager(store *CredentialStore, ttl time.Duration, opts ...ManagerOption) *SessionManager {
	m := &SessionManager{
		store: store,
		cache: cache.None{},
		ttl:   ttl,
		log:   logging.Nop{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// TTL is the default session lifetime.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Login verifies credentials and opens a session. A non-positive ttl means
// the default.
func (m *SessionManager) Login(ctx context.Context, account, pw string, ttl time.Duration) (*LoginResult, error) {
	if ttl <= 0 {
		ttl = m.ttl
	}

	u, err := m.store.VerifyCredentials(ctx, account, pw)
	if err != nil {
		if errors.Is(err, common.ErrorInvalidCredentials) {
			m.metrics.Login("invalid")
			m.log.Info(ctx, "login rejected", "account", account)
		} else {
			m.metrics.Login("error")
			m.log.Error(ctx, "login failed", "account", account, "error", err)
		}
		return nil, err
	}

	sess, err := m.store.CreateSession(ctx, u.ID, ttl)
	if err != nil {
		m.metrics.Login("error")
		m.log.Error(ctx, "create session failed", "account", account, "error", err)
		return nil, err
	}

	m.metrics.Login("success")
	m.log.Info(ctx, "login succeeded", "account", account, "user_id", u.ID, "token", logging.TokenHint(sess.Token))
	return &LoginResult{Session: sess, User: u}, nil
}

// Authenticate resolves token to a live session view. Absent, expired and
// empty tokens yield ErrorUnauthenticated; store failures are returned as is
// so callers can tell them apart, and must still treat them as no session.
func (m *SessionManager) Authenticate(ctx context.Context, token string) (*models.SessionView, error) {
	if token == "" {
		return nil, common.ErrorUnauthenticated
	}

	v, err := m.cache.Load(ctx, token)
	switch {
	case err == nil:
		if !v.Expired(m.store.Now()) {
			m.metrics.CacheLookup(true)
			return v, nil
		}
		_ = m.cache.Delete(ctx, token)
	case !errors.Is(err, cache.ErrMiss):
		m.log.Warn(ctx, "session cache load failed", "token", logging.TokenHint(token), "error", err)
	}
	m.metrics.CacheLookup(false)

	epoch, epochErr := m.cache.Epoch(ctx)

	v, err = m.store.ReadSession(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthenticated
		}
		m.log.Error(ctx, "session lookup failed", "token", logging.TokenHint(token), "error", err)
		return nil, err
	}

	if epochErr == nil {
		if err := m.cache.Store(ctx, v, epoch); err != nil {
			m.log.Warn(ctx, "session cache store failed", "token", logging.TokenHint(token), "error", err)
		}
	}
	return v, nil
}

// Logout revokes token. It never fails from the caller's point of view; the
// result only reports whether a session row was removed.
func (m *SessionManager) Logout(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	removed, err := m.store.DeleteSession(ctx, token)
	if err != nil {
		m.log.Error(ctx, "session delete failed", "token", logging.TokenHint(token), "error", err)
	}
	if err := m.cache.Delete(ctx, token); err != nil {
		m.log.Error(ctx, "session cache delete failed", "token", logging.TokenHint(token), "error", err)
	}
	return removed
}

// DeductPoints removes amount points from userID in one atomic step. The
// balance is never driven below zero; a rejected deduction returns
// *InsufficientError and leaves the balance untouched.
func (m *SessionManager) DeductPoints(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrorBadRequest
	}

	balance, err := m.store.AdjustPoints(ctx, userID, -amount)
	if err == nil || errors.Is(err, common.ErrorInsufficient) {
		m.invalidateUser(ctx, userID)
	}
	if err != nil {
		m.log.Info(ctx, "points deduction rejected", "user_id", userID, "amount", amount, "error", err)
		return balance, err
	}
	return balance, nil
}

// UpdateProfile changes the user's display name and email.
func (m *SessionManager) UpdateProfile(ctx context.Context, userID int64, userName, email string) (*models.User, error) {
	u, err := m.store.UpdateProfile(ctx, userID, userName, email)
	if err != nil {
		return nil, err
	}
	m.invalidateUser(ctx, userID)
	return u, nil
}

// Sweep removes every expired session from the store.
func (m *SessionManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.store.SweepExpiredSessions(ctx)
	if err != nil {
		return 0, err
	}
	m.metrics.SessionsSwept(n)
	return n, nil
}

func (m *SessionManager) invalidateUser(ctx context.Context, userID int64) {
	if err := m.cache.InvalidateUser(ctx, userID); err != nil {
		m.log.Error(ctx, "session cache invalidation failed", "user_id", userID, "error", err)
	}
}
