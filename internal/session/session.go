package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway"
	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway/cache"
)

// DefaultCookie is the login cookie name the web client expects.
const DefaultCookie = "soc_login"

// DefaultTTL bounds how long an idle login survives.
const DefaultTTL = time.Hour

// Manager keeps login sessions in the object cache, keyed by an opaque token
// carried in a cookie. Resolving a session slides its expiry.
type Manager struct {
	cache  cache.ObjectCache
	cookie string
	ttl    time.Duration
	logger *slog.Logger
}

// NewManager builds a session manager over the shared object cache.
func NewManager(c cache.ObjectCache, cookie string, ttl time.Duration, logger *slog.Logger) *Manager {
	if cookie == "" {
		cookie = DefaultCookie
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cache: c, cookie: cookie, ttl: ttl, logger: logger}
}

// Resolve returns the user bound to the request's session cookie. Missing or
// expired sessions, and cache failures, all resolve to anonymous.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) *gateway.User {
	c, err := r.Cookie(m.cookie)
	if err != nil || c.Value == "" {
		return nil
	}
	key := cache.SessionKey(c.Value)
	raw, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		m.logger.WarnContext(ctx, "session lookup failed", slog.Any("error", err))
		return nil
	}
	if !ok {
		return nil
	}
	var user gateway.User
	if err := json.Unmarshal(raw, &user); err != nil {
		m.logger.WarnContext(ctx, "session entry undecodable, dropping", slog.Any("error", err))
		_ = m.cache.Remove(ctx, key)
		return nil
	}
	if err := m.cache.Touch(ctx, key, m.ttl); err != nil {
		m.logger.WarnContext(ctx, "session touch failed", slog.Any("error", err))
	}
	return &user
}

// Bind creates a fresh session for the user and sets the login cookie.
func (m *Manager) Bind(ctx context.Context, w http.ResponseWriter, user gateway.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session: encode user: %w", err)
	}
	token := uuid.NewString()
	if err := m.cache.Set(ctx, cache.SessionKey(token), raw, m.ttl); err != nil {
		return fmt.Errorf("session: store: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy drops the request's session and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	c, err := r.Cookie(m.cookie)
	if err == nil && c.Value != "" {
		if err := m.cache.Remove(ctx, cache.SessionKey(c.Value)); err != nil {
			return fmt.Errorf("session: remove: %w", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
