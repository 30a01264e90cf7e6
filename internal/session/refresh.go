package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"deskhub.org/internal/obs"
	"deskhub.org/internal/store"
)

type refreshResult struct {
	err error
}

// Refresh rotates the token pair through a single-flight gate: at most one
// refresh call is in flight process-wide. A caller arriving while one is
// in flight is parked and shares its outcome instead of issuing a second
// network call. Failure is terminal for the session, never silently
// retried.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.refreshing {
		ch := make(chan refreshResult, 1)
		m.waiters = append(m.waiters, ch)
		m.mu.Unlock()

		obs.RefreshWaiters.Inc()
		defer obs.RefreshWaiters.Dec()
		select {
		case res := <-ch:
			return res.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.refreshing = true
	m.mu.Unlock()

	res := refreshResult{err: m.doRefresh(ctx)}

	m.mu.Lock()
	m.refreshing = false
	waiters := m.waiters
	m.waiters = nil
	m.mu.Unlock()

	// waiters observe the outcome only after the new pair (or the cleared
	// state) has been recorded
	for _, ch := range waiters {
		ch <- res
	}
	return res.err
}

func (m *Manager) doRefresh(ctx context.Context) error {
	rt, err := m.refreshToken(ctx)
	if err != nil || rt == "" {
		obs.RefreshTotal.WithLabelValues("no_refresh_token").Inc()
		_ = m.clearSession(ctx)
		return fmt.Errorf("%w: no refresh token", ErrRefreshExhausted)
	}

	payload, err := m.client.Refresh(ctx, rt)
	if err != nil {
		obs.RefreshTotal.WithLabelValues("failure").Inc()
		m.log.Warn("token refresh failed, ending session", zap.Error(err))
		_ = m.clearSession(ctx)
		return fmt.Errorf("%w: %v", ErrRefreshExhausted, err)
	}

	// a logout may have raced the network call; the stale result must not
	// resurrect a cleared session
	current, err := m.refreshToken(ctx)
	if err != nil || current != rt {
		obs.RefreshTotal.WithLabelValues("discarded").Inc()
		return ErrNoSession
	}

	expiresAt := payload.ExpiresAt
	if expiresAt == 0 {
		if t, expErr := tokenExpiry(payload.AccessToken); expErr == nil {
			expiresAt = t.Unix()
		}
	}

	staged := map[string][]byte{}
	for key, v := range map[string]any{
		store.KeyAccessToken:    payload.AccessToken,
		store.KeyRefreshToken:   payload.RefreshToken,
		store.KeyTokenExpiresAt: strconv.FormatInt(expiresAt, 10),
	} {
		b, mErr := json.Marshal(v)
		if mErr != nil {
			return fmt.Errorf("session: encode %s: %w", key, mErr)
		}
		staged[key] = b
	}
	if err := m.commit(ctx, staged); err != nil {
		obs.RefreshTotal.WithLabelValues("failure").Inc()
		return err
	}

	m.mu.Lock()
	m.warned = false
	m.mu.Unlock()

	obs.RefreshTotal.WithLabelValues("success").Inc()
	m.log.Debug("token pair rotated")
	return nil
}
