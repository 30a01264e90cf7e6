package api

import (
	"encoding/json"
	"time"
)

// UserPayload is the profile part of a login response.
type UserPayload struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// LoginPayload is the success branch of POST /auth/login. Roles and
// permissions stay raw here: their shape varies by backend version and is
// classified once by the rbac decoders.
type LoginPayload struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    int64           `json:"expires_at"`
	User         UserPayload     `json:"user"`
	Roles        json.RawMessage `json:"roles"`
	RoleIDs      json.RawMessage `json:"role_ids"`
	Permissions  json.RawMessage `json:"permissions"`
}

// TokenPayload is the success branch of POST /refresh.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Ticket is a single helpdesk ticket as served by the listing endpoint.
type Ticket struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body,omitempty"`
	Status     string    `json:"status"`
	Priority   string    `json:"priority,omitempty"`
	Category   string    `json:"category,omitempty"`
	Requester  string    `json:"requester,omitempty"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Pagination mirrors the backend envelope's pagination block.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// TicketPage is one page of the ticket listing.
type TicketPage struct {
	Tickets    []Ticket
	Pagination Pagination
}

// ListTicketsParams are the pagination and filter query parameters of the
// ticket listing endpoint. Zero values are omitted.
type ListTicketsParams struct {
	Page     int
	PageSize int
	Status   string
	Priority string
	Category string
	Search   string
}
