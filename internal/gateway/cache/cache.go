package cache

import (
	"context"
	"time"
)

// DefaultTTL is the expiry applied to cached objects when the caller does not
// override it. Backend documents drift quickly, so entries stay short-lived.
const DefaultTTL = 60 * time.Second

// ObjectCache is the keyed store the dispatch engine keeps its soft state in.
// Values are opaque JSON payloads; absence of a key is never an error, it only
// means the caller must fall through to the backend.
type ObjectCache interface {
	// Get returns the stored payload for key, reporting whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key with the supplied TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Remove drops the entry for key. Removing an absent key is a no-op.
	Remove(ctx context.Context, key string) error
	// Touch extends the TTL of an existing entry without rewriting it.
	Touch(ctx context.Context, key string, ttl time.Duration) error
	// Size reports the number of live entries, for health reporting.
	Size(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}
