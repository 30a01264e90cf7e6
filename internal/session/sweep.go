package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartSweep runs the periodic expiry sweep until ctx is canceled. Every
// tick: nothing without a token; refresh when expired; one-shot warning
// plus proactive refresh when expiring. Both paths funnel through the
// same single-flight gate as the middleware.
func (m *Manager) StartSweep(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweepOnce(ctx)
			}
		}
	}()
}

func (m *Manager) sweepOnce(ctx context.Context) {
	if m.AccessToken(ctx) == "" {
		return
	}
	switch {
	case m.IsTokenExpired(ctx):
		if err := m.Refresh(ctx); err != nil {
			m.log.Debug("sweep refresh failed", zap.Error(err))
		}
	case m.IsTokenExpiring(ctx):
		m.mu.Lock()
		alreadyWarned := m.warned
		if !alreadyWarned {
			m.warned = true
		}
		warning := make([]func(), len(m.onWarning))
		copy(warning, m.onWarning)
		m.mu.Unlock()

		if alreadyWarned {
			return
		}
		for _, fn := range warning {
			fn()
		}
		if err := m.Refresh(ctx); err != nil {
			m.log.Debug("proactive refresh failed", zap.Error(err))
		}
	}
}
