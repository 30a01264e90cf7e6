package transport

import (
	"fmt"
	"io"
	"net/http"

	"deskhub.org/internal/session"
)

// RoundTripper attaches the current access token to every outbound call
// and transparently recovers from a single expired-token rejection by
// funneling through the session manager's single-flight refresh.
type RoundTripper struct {
	base http.RoundTripper
	sess *session.Manager
}

// New wraps base (nil means http.DefaultTransport) with token handling.
func New(sess *session.Manager, base http.RoundTripper) (*RoundTripper, error) {
	if sess == nil {
		return nil, fmt.Errorf("transport: session manager is required")
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &RoundTripper{base: base, sess: sess}, nil
}

// Client returns an http.Client using this round tripper.
func (t *RoundTripper) Client() *http.Client {
	return &http.Client{Transport: t}
}

func (t *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	attempt := cloneWithToken(req, t.currentToken(req))
	resp, err := t.base.RoundTrip(attempt)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// one refresh-and-retry cycle per 401; parked callers share the
	// in-flight refresh
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := t.sess.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("transport: authorization failed: %w", err)
	}

	retry, err := rewind(req)
	if err != nil {
		return nil, err
	}
	retry = cloneWithToken(retry, t.sess.AccessToken(ctx))
	// a second consecutive 401 is surfaced to the caller as-is
	return t.base.RoundTrip(retry)
}

// currentToken returns a token worth attaching: present and not expired.
// Otherwise the request goes out unauthenticated and the backend decides.
func (t *RoundTripper) currentToken(req *http.Request) string {
	ctx := req.Context()
	token := t.sess.AccessToken(ctx)
	if token == "" || t.sess.IsTokenExpired(ctx) {
		return ""
	}
	return token
}

func cloneWithToken(req *http.Request, token string) *http.Request {
	clone := req.Clone(req.Context())
	if token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	} else {
		clone.Header.Del("Authorization")
	}
	return clone
}

// rewind produces a request whose body can be sent again. Requests with a
// one-shot body cannot be retried.
func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("transport: cannot retry request with non-replayable body")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}
