package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 15 * time.Second

// Client talks JSON over HTTPS to the helpdesk backend. The backend is a
// black box; this client only knows the endpoint contracts.
type Client struct {
	baseURL string
	httpc   *http.Client
	locale  string
}

// Option configures Client behavior.
type Option func(*Client) error

// WithHTTPClient replaces the underlying HTTP client. Used to route
// ticket calls through the token-attaching round tripper.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) error {
		if c != nil {
			cl.httpc = c
		}
		return nil
	}
}

// WithLocale sets the language header sent on login.
func WithLocale(locale string) Option {
	return func(cl *Client) error {
		cl.locale = strings.TrimSpace(locale)
		return nil
	}
}

// NewClient constructs a backend client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api: base URL is required")
	}
	cl := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if err := opt(cl); err != nil {
			return nil, err
		}
	}
	return cl, nil
}

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Login exchanges credentials for a token pair and profile.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginPayload, error) {
	body := map[string]string{"username": username, "password": password}
	headers := map[string]string{}
	if c.locale != "" {
		headers["language"] = c.locale
	}
	env, err := c.post(ctx, "/auth/login", body, headers)
	if err != nil {
		return nil, err
	}
	var payload LoginPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("%w: login data: %v", ErrValidation, err)
	}
	if payload.AccessToken == "" || payload.RefreshToken == "" {
		return nil, fmt.Errorf("%w: login data missing tokens", ErrValidation)
	}
	return &payload, nil
}

// Refresh exchanges a refresh token for a fresh pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPayload, error) {
	env, err := c.post(ctx, "/refresh", map[string]string{"refresh_token": refreshToken}, nil)
	if err != nil {
		return nil, err
	}
	var payload TokenPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("%w: refresh data: %v", ErrValidation, err)
	}
	if payload.AccessToken == "" || payload.RefreshToken == "" {
		return nil, fmt.Errorf("%w: refresh data missing tokens", ErrValidation)
	}
	return &payload, nil
}

// Logout notifies the backend that the refresh token is retired.
// Best-effort on the caller's side; an error here never blocks local
// cleanup.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	_, err := c.post(ctx, "/logout", map[string]string{"refresh_token": refreshToken}, nil)
	return err
}

// ListTickets fetches one page of tickets.
func (c *Client) ListTickets(ctx context.Context, params ListTicketsParams) (*TicketPage, error) {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(params.PageSize))
	}
	if params.Status != "" {
		q.Set("status", params.Status)
	}
	if params.Priority != "" {
		q.Set("priority", params.Priority)
	}
	if params.Category != "" {
		q.Set("category", params.Category)
	}
	if params.Search != "" {
		q.Set("search", params.Search)
	}
	path := "/tickets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var wire struct {
		Success    bool       `json:"success"`
		Message    string     `json:"message"`
		Data       []Ticket   `json:"data"`
		Pagination Pagination `json:"pagination"`
	}
	if err := c.getJSON(ctx, path, &wire); err != nil {
		return nil, err
	}
	if !wire.Success {
		return nil, &StatusError{StatusCode: http.StatusOK, Message: wire.Message}
	}
	return &TicketPage{Tickets: wire.Data, Pagination: wire.Pagination}, nil
}

// CreateTicket submits a new ticket. The payload is forwarded untouched;
// it originates from the sync queue or the UI layer.
func (c *Client) CreateTicket(ctx context.Context, payload json.RawMessage) error {
	return c.mutate(ctx, http.MethodPost, "/tickets", payload)
}

// UpdateTicket applies a partial update to an existing ticket.
func (c *Client) UpdateTicket(ctx context.Context, id string, payload json.RawMessage) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: ticket id is required", ErrValidation)
	}
	return c.mutate(ctx, http.MethodPut, "/tickets/"+url.PathEscape(id), payload)
}

// DeleteTicket removes a ticket.
func (c *Client) DeleteTicket(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: ticket id is required", ErrValidation)
	}
	return c.mutate(ctx, http.MethodDelete, "/tickets/"+url.PathEscape(id), nil)
}

// Helpers -----------------------------------------------------------------

func (c *Client) post(ctx context.Context, path string, body any, headers map[string]string) (*envelope, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req, path)
}

func (c *Client) mutate(ctx context.Context, method, path string, payload json.RawMessage) error {
	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	_, err = c.do(req, path)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Op: "GET " + path, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &TransportError{Op: "GET " + path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Message: messageFrom(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, path, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, path string) (*envelope, error) {
	req.Header.Set("X-Request-ID", uuid.NewString())
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: req.Method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &TransportError{Op: req.Method + " " + path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: messageFrom(raw)}
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrValidation, path, err)
		}
	}
	if len(raw) > 0 && !env.Success {
		// failure-shaped response with HTTP 200: surface the backend's
		// reason verbatim
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}

func messageFrom(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		return env.Message
	}
	return strings.TrimSpace(string(raw))
}
