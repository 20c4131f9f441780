package interfaces

import "context"

// KVS is the interface for persistent key-value storage. A value is always
// replaced as a whole.
type KVS interface {
	// Get returns the value of key. found is false if the key has never been set.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value under key
	Set(ctx context.Context, key, value string) error
}
