package services

import (
	"context"
	"time"
)

// RunSweeper sweeps once immediately and then every interval until ctx is
// done. Sweeps are idempotent, so overlapping with request traffic is fine.
func (m *SessionManager) RunSweeper(ctx context.Context, interval time.Duration) {
	m.sweepOnce(ctx)
	if interval <= 0 {
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.sweepOnce(ctx)
		}
	}
}

func (m *SessionManager) sweepOnce(ctx context.Context) {
	n, err := m.Sweep(ctx)
	if err != nil {
		m.log.Error(ctx, "session sweep failed", "error", err)
		return
	}
	if n > 0 {
		m.log.Info(ctx, "expired sessions swept", "count", n)
	}
}
