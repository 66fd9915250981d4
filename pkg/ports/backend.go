package ports

import "context"

// Backend is the raw key/value storage a persistence adapter writes snapshots to.
// It plays the role of browser session/local storage: one shared string-keyed
// namespace, no locking, last write wins.
type Backend interface {
	// Get returns the bytes stored under key.
	// Returns domain.ErrSnapshotNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists stored keys starting with prefix ("" lists everything).
	Keys(ctx context.Context, prefix string) ([]string, error)
}
