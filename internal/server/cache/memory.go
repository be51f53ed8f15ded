package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authgate/internal/server/models"
)

type memoryEntry struct {
	view     models.SessionView
	deadline time.Time
}

// Memory is an in-process Cache guarded by a single mutex.
type Memory struct {
	mu     sync.Mutex
	epoch  uint64
	byTok  map[string]memoryEntry
	byUser map[int64]map[string]struct{}

	maxAge time.Duration
	now    func() time.Time
}

type MemoryOption func(*Memory)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory builds a cache whose entries live at most maxAge. A non-positive
// maxAge leaves only the session expiry as the bound.
func NewMemory(maxAge time.Duration, opts ...MemoryOption) *Memory {
	m := &Memory{
		byTok:  make(map[string]memoryEntry),
		byUser: make(map[int64]map[string]struct{}),
		maxAge: maxAge,
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Memory) Epoch(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch, nil
}

func (m *Memory) Load(_ context.Context, token string) (*models.SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byTok[token]
	if !ok {
		return nil, ErrMiss
	}
	if !m.now().Before(e.deadline) {
		m.removeLocked(token, e.view.UserID)
		return nil, ErrMiss
	}
	v := e.view
	return &v, nil
}

func (m *Memory) Store(_ context.Context, view *models.SessionView, epoch uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch {
		return nil
	}
	deadline := view.ExpiresAt
	if m.maxAge > 0 {
		if d := m.now().Add(m.maxAge); d.Before(deadline) {
			deadline = d
		}
	}
	if !m.now().Before(deadline) {
		return nil
	}

	m.byTok[view.Token] = memoryEntry{view: *view, deadline: deadline}
	toks, ok := m.byUser[view.UserID]
	if !ok {
		toks = make(map[string]struct{})
		m.byUser[view.UserID] = toks
	}
	toks[view.Token] = struct{}{}
	return nil
}

func (m *Memory) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	if e, ok := m.byTok[token]; ok {
		m.removeLocked(token, e.view.UserID)
	}
	return nil
}

func (m *Memory) InvalidateUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	for tok := range m.byUser[userID] {
		delete(m.byTok, tok)
	}
	delete(m.byUser, userID)
	return nil
}

// Len returns the number of entries, live or not yet evicted.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byTok)
}

func (m *Memory) removeLocked(token string, userID int64) {
	delete(m.byTok, token)
	if toks, ok := m.byUser[userID]; ok {
		delete(toks, token)
		if len(toks) == 0 {
			delete(m.byUser, userID)
		}
	}
}
