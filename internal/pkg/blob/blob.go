// Package blob is the object-store gateway used for uploaded media. Every
// call may fail independently; callers decide whether a failure is fatal.
package blob

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Delete implementations that can tell the key
// was absent. Callers treat it as success.
var ErrNotFound = errors.New("blob not found")

// Object describes one stored blob.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is the opaque object store.
type Store interface {
	// Put writes payload under key, overwriting any existing object.
	Put(ctx context.Context, key string, payload []byte, contentType string) error
	// Presign returns a time-limited GET URL. found is false when the key is absent.
	Presign(ctx context.Context, key string, ttl time.Duration) (url string, found bool, err error)
	// Delete removes key.
	Delete(ctx context.Context, key string) error
	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Object, error)
}

// IgnoreNotFound maps ErrNotFound to nil.
func IgnoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
