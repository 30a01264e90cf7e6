package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"deskhub.org/internal/store"
)

func seedSession(t *testing.T, st store.Store, access, refresh string) {
	t.Helper()
	ctx := context.Background()
	for key, v := range map[string]string{
		store.KeyAccessToken:  access,
		store.KeyRefreshToken: refresh,
	} {
		b, _ := json.Marshal(v)
		if err := st.Set(ctx, key, b); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	newAccess := signedToken(t, time.Now().Add(15*time.Minute))
	var calls int64
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/refresh" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		atomic.AddInt64(&calls, 1)
		time.Sleep(100 * time.Millisecond) // let callers pile up
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]string{
				"access_token":  newAccess,
				"refresh_token": "rt-2",
			},
		})
	})

	m, st := newTestManager(t, backend)
	seedSession(t, st, "stale-token", "rt-1")
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i > 0 {
				time.Sleep(20 * time.Millisecond) // arrive while in flight
			}
			errs[i] = m.Refresh(ctx)
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected exactly one refresh network call, got %d", got)
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := m.AccessToken(ctx); got != newAccess {
		t.Fatalf("all callers must observe the rotated token, got %q", got)
	}
}

func TestRefreshFailureIsTerminal(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "refresh token revoked"})
	})

	m, st := newTestManager(t, backend)
	seedSession(t, st, "stale-token", "rt-1")
	ctx := context.Background()

	expired := make(chan struct{}, 1)
	m.OnSessionExpired(func() { expired <- struct{}{} })

	err := m.Refresh(ctx)
	if !errors.Is(err, ErrRefreshExhausted) {
		t.Fatalf("expected ErrRefreshExhausted, got %v", err)
	}
	select {
	case <-expired:
	default:
		t.Fatal("terminal refresh failure must fire the session-expired signal")
	}
	if _, err := st.Get(ctx, store.KeyAccessToken); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("session state survived terminal refresh failure")
	}
}

func TestRefreshWithoutRefreshTokenShortCircuits(t *testing.T) {
	var calls int64
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
	})

	m, st := newTestManager(t, backend)
	ctx := context.Background()
	b, _ := json.Marshal("orphan-access")
	_ = st.Set(ctx, store.KeyAccessToken, b)

	if err := m.Refresh(ctx); !errors.Is(err, ErrRefreshExhausted) {
		t.Fatalf("expected ErrRefreshExhausted, got %v", err)
	}
	if atomic.LoadInt64(&calls) != 0 {
		t.Fatal("no network call may be attempted without a refresh token")
	}
}

func TestRefreshResultDiscardedAfterLogout(t *testing.T) {
	newAccess := signedToken(t, time.Now().Add(15*time.Minute))
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]string{
				"access_token":  newAccess,
				"refresh_token": "rt-2",
			},
		})
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	m, st := newTestManager(t, mux)
	seedSession(t, st, "stale-token", "rt-1")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- m.Refresh(ctx) }()

	time.Sleep(30 * time.Millisecond) // refresh now in flight
	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	close(release)

	if err := <-done; !errors.Is(err, ErrNoSession) {
		t.Fatalf("late refresh result must be discarded, got %v", err)
	}
	if _, err := st.Get(ctx, store.KeyAccessToken); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("discarded refresh resurrected the cleared session")
	}
}

func TestSweepWarnsOnceAndRefreshesProactively(t *testing.T) {
	now := time.Now()
	newAccess := signedToken(t, now.Add(30*time.Minute))
	var refreshCalls int64
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]string{
				"access_token":  newAccess,
				"refresh_token": "rt-2",
			},
		})
	})

	m, st := newTestManager(t, backend, WithClock(func() time.Time { return now }))
	seedSession(t, st, signedToken(t, now.Add(2*time.Minute)), "rt-1")
	ctx := context.Background()

	var warnings int64
	m.OnExpiryWarning(func() { atomic.AddInt64(&warnings, 1) })

	m.sweepOnce(ctx)
	if atomic.LoadInt64(&warnings) != 1 {
		t.Fatalf("expected one warning, got %d", warnings)
	}
	if atomic.LoadInt64(&refreshCalls) != 1 {
		t.Fatalf("expected proactive refresh, got %d calls", refreshCalls)
	}
	// successful rotation cleared the flag but the new token is fresh, so
	// the next sweep is a no-op
	m.sweepOnce(ctx)
	if atomic.LoadInt64(&warnings) != 1 {
		t.Fatalf("warning must be one-shot, got %d", warnings)
	}
	if atomic.LoadInt64(&refreshCalls) != 1 {
		t.Fatalf("fresh token must not trigger another refresh, got %d", refreshCalls)
	}
}

func TestSweepIgnoresMissingToken(t *testing.T) {
	var calls int64
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
	})
	m, _ := newTestManager(t, backend)
	m.sweepOnce(context.Background())
	if atomic.LoadInt64(&calls) != 0 {
		t.Fatal("sweep must do nothing without a token")
	}
}
