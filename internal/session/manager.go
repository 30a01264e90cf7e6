package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"deskhub.org/internal/api"
	"deskhub.org/internal/obs"
	"deskhub.org/internal/rbac"
	"deskhub.org/internal/store"
)

const (
	defaultExpiryMargin  = 5 * time.Minute
	defaultSweepInterval = 30 * time.Second
)

// Record is the authenticated identity. Created on login, replaced
// wholesale on profile refresh, deleted on logout.
type Record struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Manager owns the token pair, session record, permission set and role
// assignment. It is the only writer of those store keys.
type Manager struct {
	store  store.Store
	client *api.Client
	log    *zap.Logger
	now    func() time.Time

	expiryMargin  time.Duration
	sweepInterval time.Duration

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
	warned     bool

	onExpired []func()
	onWarning []func()
}

// ManagerOption configures Manager behavior.
type ManagerOption func(*Manager)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithExpiryMargin changes the "expiring soon" window.
func WithExpiryMargin(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.expiryMargin = d
		}
	}
}

// WithSweepInterval changes the periodic sweep cadence.
func WithSweepInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// WithLogger replaces the shared logger.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager constructs a Manager on top of a store and backend client.
func NewManager(st store.Store, client *api.Client, opts ...ManagerOption) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	if client == nil {
		return nil, fmt.Errorf("session: api client is required")
	}
	m := &Manager{
		store:         st,
		client:        client,
		log:           obs.Logger(),
		now:           time.Now,
		expiryMargin:  defaultExpiryMargin,
		sweepInterval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// OnSessionExpired registers a callback fired when the session ends
// terminally (logout, refresh failure, missing refresh token). The UI uses
// it to navigate to the login entry point.
func (m *Manager) OnSessionExpired(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpired = append(m.onExpired, fn)
}

// OnExpiryWarning registers a callback fired at most once per token pair
// when the access token enters the expiring window.
func (m *Manager) OnExpiryWarning(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWarning = append(m.onWarning, fn)
}

// Login authenticates against the backend and commits the resulting
// session state. Either everything from one attempt is persisted or
// nothing is: failure and transport errors leave the store untouched.
func (m *Manager) Login(ctx context.Context, username, password string) (*Record, error) {
	payload, err := m.client.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	record := Record{
		UserID:      payload.User.ID,
		Username:    payload.User.Username,
		DisplayName: payload.User.DisplayName,
		Email:       payload.User.Email,
	}

	perms, roles, roleIDs := resolveAuthority(payload)

	expiresAt := payload.ExpiresAt
	if expiresAt == 0 {
		if t, err := tokenExpiry(payload.AccessToken); err == nil {
			expiresAt = t.Unix()
		}
	}

	staged := map[string][]byte{}
	stage := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("session: encode %s: %w", key, err)
		}
		staged[key] = b
		return nil
	}
	if err := stage(store.KeyAccessToken, payload.AccessToken); err != nil {
		return nil, err
	}
	if err := stage(store.KeyRefreshToken, payload.RefreshToken); err != nil {
		return nil, err
	}
	if err := stage(store.KeyTokenExpiresAt, strconv.FormatInt(expiresAt, 10)); err != nil {
		return nil, err
	}
	if err := stage(store.KeyUserData, record); err != nil {
		return nil, err
	}
	if err := stage(store.KeyUserPermissions, perms); err != nil {
		return nil, err
	}
	if err := stage(store.KeyUserRoles, roles); err != nil {
		return nil, err
	}
	if err := stage(store.KeyUserRoleIDs, roleIDs); err != nil {
		return nil, err
	}
	if err := m.commit(ctx, staged); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.warned = false
	m.mu.Unlock()

	m.log.Info("session established",
		zap.String("user_id", record.UserID),
		zap.Strings("roles", roleStrings(roles)),
		zap.Int("permissions", len(perms)),
	)
	return &record, nil
}

// resolveAuthority reconciles the three authority representations using
// the precedence chain: numeric IDs win, then names, then permissions
// derived from roles, then the role heuristic. A logged-in user never
// ends up with zero resolvable access.
func resolveAuthority(payload *api.LoginPayload) ([]rbac.Permission, []rbac.Role, []int) {
	sets := rbac.DecodeRoles(payload.Roles)
	idSets := rbac.DecodeRoles(payload.RoleIDs)
	ids := sets.IDs
	if len(idSets.IDs) > 0 {
		ids = idSets.IDs
	}
	names := sets.Names

	switch {
	case len(ids) > 0:
		names = rbac.RoleIDsToNames(ids)
	case len(names) > 0:
		ids = rbac.RoleNamesToIDs(names)
	}

	perms := rbac.DecodePermissions(payload.Permissions)
	if len(names) == 0 && len(ids) == 0 {
		names = rbac.InferRoles(perms)
		ids = rbac.RoleNamesToIDs(names)
	}
	if len(perms) == 0 {
		perms = rbac.PermissionsForRoles(names)
	}
	return perms, names, ids
}

// commit writes the staged keys; a failed write rolls everything back so a
// partial login never survives.
func (m *Manager) commit(ctx context.Context, staged map[string][]byte) error {
	for key, value := range staged {
		if err := m.store.Set(ctx, key, value); err != nil {
			_ = m.store.Clear(ctx, store.SessionKeys...)
			return fmt.Errorf("session: persist %s: %w", key, err)
		}
	}
	return nil
}

// Logout notifies the backend (best effort) and unconditionally clears all
// session and cached data.
func (m *Manager) Logout(ctx context.Context) error {
	if rt, err := m.refreshToken(ctx); err == nil && rt != "" {
		go func() {
			notifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.client.Logout(notifyCtx, rt); err != nil {
				m.log.Debug("logout notify failed", zap.Error(err))
			}
		}()
	}
	return m.clearSession(ctx)
}

func (m *Manager) clearSession(ctx context.Context) error {
	err := m.store.Clear(ctx, store.SessionKeys...)
	m.mu.Lock()
	m.warned = false
	expired := make([]func(), len(m.onExpired))
	copy(expired, m.onExpired)
	m.mu.Unlock()
	for _, fn := range expired {
		fn()
	}
	return err
}

// Current returns the persisted session record.
func (m *Manager) Current(ctx context.Context) (*Record, error) {
	raw, err := m.store.Get(ctx, store.KeyUserData)
	if err != nil {
		return nil, ErrNoSession
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, ErrNoSession
	}
	return &rec, nil
}

// AccessToken returns the current access token, empty when absent.
func (m *Manager) AccessToken(ctx context.Context) string {
	raw, err := m.store.Get(ctx, store.KeyAccessToken)
	if err != nil {
		return ""
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return ""
	}
	return token
}

func (m *Manager) refreshToken(ctx context.Context) (string, error) {
	raw, err := m.store.Get(ctx, store.KeyRefreshToken)
	if err != nil {
		return "", err
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", err
	}
	return token, nil
}

// Permissions returns the persisted explicit permission set.
func (m *Manager) Permissions(ctx context.Context) []rbac.Permission {
	raw, err := m.store.Get(ctx, store.KeyUserPermissions)
	if err != nil {
		return nil
	}
	var perms []rbac.Permission
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil
	}
	return perms
}

// Roles returns the persisted role names.
func (m *Manager) Roles(ctx context.Context) []rbac.Role {
	raw, err := m.store.Get(ctx, store.KeyUserRoles)
	if err != nil {
		return nil
	}
	var roles []rbac.Role
	if err := json.Unmarshal(raw, &roles); err != nil {
		return nil
	}
	return roles
}

// RoleIDs returns the persisted numeric role identifiers.
func (m *Manager) RoleIDs(ctx context.Context) []int {
	raw, err := m.store.Get(ctx, store.KeyUserRoleIDs)
	if err != nil {
		return nil
	}
	var ids []int
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	return ids
}

// EffectivePermissions recomputes the authorization set on demand. Never
// stored, so never stale.
func (m *Manager) EffectivePermissions(ctx context.Context) []rbac.Permission {
	return rbac.Effective(m.Permissions(ctx), m.Roles(ctx), m.RoleIDs(ctx))
}

// HasPermission tests against the effective set, so a permission implied
// only by a role is honored even if the backend omitted it.
func (m *Manager) HasPermission(ctx context.Context, p rbac.Permission) bool {
	return rbac.HasPermission(m.EffectivePermissions(ctx), p)
}

// HasRole tests role membership.
func (m *Manager) HasRole(ctx context.Context, r rbac.Role) bool {
	return rbac.HasRole(m.Roles(ctx), r)
}

// HasRoleID tests numeric role membership.
func (m *Manager) HasRoleID(ctx context.Context, id int) bool {
	return rbac.HasRoleID(m.RoleIDs(ctx), id)
}

// IsAdmin is a convenience for route guards.
func (m *Manager) IsAdmin(ctx context.Context) bool {
	return m.HasRole(ctx, rbac.RoleAdmin) || m.HasRoleID(ctx, rbac.RoleIDAdmin)
}

func roleStrings(roles []rbac.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
