package gateway

import "context"

// Gateway is a durable key-value store used to mirror wallet state across
// process restarts. Values are opaque byte snapshots; writes overwrite the
// whole value for a key (last writer wins, no transactions).
type Gateway interface {
	// Get returns the stored value for key. The second return value is
	// false when the key has never been written.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	Close() error
}
