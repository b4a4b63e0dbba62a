package gateway

import (
	"context"
	"net/http"
)

// Transport forwards one enveloped operation to the backend service that owns
// it and returns the correlated reply. Implementations must honor ctx
// cancellation and deadlines; the dispatcher maps a deadline overrun to a
// timeout error for the caller.
type Transport interface {
	Invoke(ctx context.Context, svc Service, ep Endpoint, env Envelope) (Reply, error)
}

// SessionStore resolves, binds and destroys the login session attached to a
// browser via cookie.
type SessionStore interface {
	// Resolve returns the user bound to the request's session cookie, or nil
	// when the request is anonymous or the session has expired.
	Resolve(ctx context.Context, r *http.Request) *User

	// Bind creates a fresh session for the user and sets the cookie on w.
	Bind(ctx context.Context, w http.ResponseWriter, user User) error

	// Destroy removes the request's session, if any, and clears the cookie.
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}
