package gateway

import "net/http"

// User is the authenticated principal carried in a session.
type User struct {
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Reputation int    `json:"reputation"`
}

// Session wraps the optional authenticated user, mirroring the shape backend
// services expect inside the request envelope.
type Session struct {
	User *User `json:"user,omitempty"`
}

// Envelope is the normalized representation of one inbound operation. It is
// built once per dispatch and treated as immutable afterwards; the only copy
// mutation is attaching a synthesized id before queueing an async write.
type Envelope struct {
	Session Session           `json:"session"`
	IP      string            `json:"ip,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Body    map[string]any    `json:"body,omitempty"`
	ID      string            `json:"id,omitempty"`
}

// Authenticated reports whether the envelope carries a logged-in principal.
func (e Envelope) Authenticated() bool {
	return e.Session.User != nil && e.Session.User.Username != ""
}

// Username returns the authenticated username, or "" when anonymous.
func (e Envelope) Username() string {
	if e.Session.User == nil {
		return ""
	}
	return e.Session.User.Username
}

// Param returns the named path parameter, or "" when absent.
func (e Envelope) Param(name string) string {
	return e.Params[name]
}

// BodyString returns the named body field as a string when it is one.
func (e Envelope) BodyString(key string) string {
	v, _ := e.Body[key].(string)
	return v
}

// HasBodyField reports whether the body carries the named field at all,
// regardless of its type.
func (e Envelope) HasBodyField(key string) bool {
	_, ok := e.Body[key]
	return ok
}

// MediaIDs extracts the media id list from the body. Both []string (from
// internal callers) and []any (from decoded JSON) are accepted.
func (e Envelope) MediaIDs() []string {
	switch raw := e.Body["media"].(type) {
	case []string:
		return raw
	case []any:
		ids := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids
	default:
		return nil
	}
}

// WithID returns a copy of the envelope carrying a synthesized object id for
// the queued backend write.
func (e Envelope) WithID(id string) Envelope {
	out := e
	out.ID = id
	return out
}

// Reply is the correlated response returned by the RPC transport: the HTTP
// status the backend chose plus the response body to relay.
type Reply struct {
	Status      int            `json:"status"`
	Response    map[string]any `json:"response"`
	ContentType string         `json:"content_type,omitempty"`
}

// Result is the finalized outcome of one dispatch, before it is serialized to
// the caller and applied to the cache. The HTTP body and any cache payload are
// derived from it as independent copies; the maps inside are never shared.
type Result struct {
	Status      int
	Body        map[string]any
	ContentType string
	// Queue marks locally synthesized successes whose durable write still has
	// to be fired at the backend.
	Queue bool
	// QueuedID carries the synthesized object id the queued write must use.
	QueuedID string
	// Local reports that the result was synthesized without waiting on the
	// backend.
	Local bool
}

// OK reports whether the result is a success both at the HTTP and the envelope
// level; only successful outcomes may mutate the cache.
func (r Result) OK() bool {
	if r.Status != http.StatusOK {
		return false
	}
	status, _ := r.Body["status"].(string)
	return status == StatusOK
}

func okBody(data map[string]any) map[string]any {
	body := map[string]any{"status": StatusOK}
	for k, v := range data {
		body[k] = v
	}
	return body
}

func errBody(msg string) map[string]any {
	return map[string]any{"status": StatusError, "error": msg}
}

func okResult(data map[string]any) Result {
	return Result{Status: http.StatusOK, Body: okBody(data), Local: true}
}

func errResult(status int, msg string) Result {
	return Result{Status: status, Body: errBody(msg), Local: true}
}
