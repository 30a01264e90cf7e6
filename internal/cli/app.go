package cli

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"deskhub.org/internal/api"
	"deskhub.org/internal/config"
	"deskhub.org/internal/obs"
	"deskhub.org/internal/session"
	"deskhub.org/internal/store"
	"deskhub.org/internal/tickets"
	"deskhub.org/internal/transport"
)

// app wires the store, backend clients, session manager and ticket
// service from resolved configuration. One app per command invocation.
type app struct {
	cfg     *config.Agent
	store   store.Store
	session *session.Manager
	tickets *tickets.Service

	db *sql.DB
}

func newApp(ctx context.Context) (*app, error) {
	obs.Init()

	cfg, err := config.Resolve()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	if a.store, err = a.openStore(ctx); err != nil {
		return nil, err
	}

	// auth endpoints use a plain client; ticket calls go through the
	// token-attaching round tripper
	authClient, err := api.NewClient(cfg.BaseURL, api.WithLocale(cfg.Locale))
	if err != nil {
		return nil, err
	}
	a.session, err = session.NewManager(a.store, authClient,
		session.WithSweepInterval(cfg.SweepInterval))
	if err != nil {
		return nil, err
	}

	rt, err := transport.New(a.session, nil)
	if err != nil {
		return nil, err
	}
	ticketClient, err := api.NewClient(cfg.BaseURL, api.WithHTTPClient(rt.Client()))
	if err != nil {
		return nil, err
	}

	cache, err := tickets.NewCache(a.store, tickets.WithMaxAge(cfg.CacheMaxAge))
	if err != nil {
		return nil, err
	}
	queue, err := tickets.NewQueue(a.store, tickets.WithRetryCeiling(cfg.RetryCeiling))
	if err != nil {
		return nil, err
	}
	a.tickets, err = tickets.NewService(ticketClient, cache, queue, !cfg.Offline)
	if err != nil {
		return nil, err
	}
	a.tickets.OnDataLost(func(item tickets.PendingItem) {
		fmt.Printf("warning: a pending %s could not be saved and was dropped\n", item.Kind)
	})
	return a, nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.StoreBackend {
	case "postgres":
		db, err := sql.Open("pgx", a.cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		a.db = db
		st, err := store.NewSQLStore(db)
		if err != nil {
			return nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return st, nil
	default:
		return store.NewFileStore(a.cfg.StorePath)
	}
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
