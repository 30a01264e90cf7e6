package session

import "errors"

var (
	// ErrNoSession indicates no authenticated session exists (or it was
	// cleared while an operation was in flight).
	ErrNoSession = errors.New("session: no active session")

	// ErrRefreshExhausted indicates the refresh call itself failed. Always
	// terminal: the session state has been cleared by the time the caller
	// sees it.
	ErrRefreshExhausted = errors.New("session: refresh failed")
)
