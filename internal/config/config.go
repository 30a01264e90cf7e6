package config

import (
	"fmt"
	"strings"
	"time"
)

// Resolved configuration values from CLI flags, environment and config
// file. Populated by the root command before any subcommand runs.
var (
	BaseURL       string // backend base URL
	Locale        string // language header sent on login
	StoreBackend  string // "file" or "postgres"
	StorePath     string // state file path for the file backend
	StoreDSN      string // connection string for the postgres backend
	CacheMaxAge   string // ticket snapshot staleness window
	SweepInterval string // token expiry sweep interval
	RetryCeiling  int    // sync queue per-item attempt limit
	Offline       bool   // start in offline mode
)

// Agent holds the parsed, validated settings the wiring layer consumes.
type Agent struct {
	BaseURL       string
	Locale        string
	StoreBackend  string
	StorePath     string
	StoreDSN      string
	CacheMaxAge   time.Duration
	SweepInterval time.Duration
	RetryCeiling  int
	Offline       bool
}

// Resolve validates the collected values and parses durations.
func Resolve() (*Agent, error) {
	a := &Agent{
		BaseURL:      strings.TrimSpace(BaseURL),
		Locale:       strings.TrimSpace(Locale),
		StoreBackend: strings.ToLower(strings.TrimSpace(StoreBackend)),
		StorePath:    StorePath,
		StoreDSN:     StoreDSN,
		RetryCeiling: RetryCeiling,
		Offline:      Offline,
	}
	if a.BaseURL == "" {
		return nil, fmt.Errorf("config: base URL is required")
	}
	switch a.StoreBackend {
	case "file":
		if a.StorePath == "" {
			return nil, fmt.Errorf("config: store path is required for the file backend")
		}
	case "postgres":
		if a.StoreDSN == "" {
			return nil, fmt.Errorf("config: store DSN is required for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("config: unknown store backend %q", a.StoreBackend)
	}

	var err error
	if a.CacheMaxAge, err = time.ParseDuration(CacheMaxAge); err != nil {
		return nil, fmt.Errorf("config: cache max age: %w", err)
	}
	if a.SweepInterval, err = time.ParseDuration(SweepInterval); err != nil {
		return nil, fmt.Errorf("config: sweep interval: %w", err)
	}
	return a, nil
}
