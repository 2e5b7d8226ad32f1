package views

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("post not found")
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
)

const (
	maxFingerprintLen = 128
	maxMetaLen        = 512
	dayLayout         = "2006-01-02"
)

// Marker is the optional fast-path store for per-day view markers.
// *redis.Client from internal/pkg/redis satisfies it.
type Marker interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Options configures day boundaries and marker lifetime.
type Options struct {
	Location  *time.Location
	MarkerTTL time.Duration
}

// Meta is request metadata stored with a counted view.
type Meta struct {
	IP        string
	UserAgent string
	Referrer  string
}

// Result reports whether a view changed the counter.
type Result struct {
	Counted bool `json:"counted"`
}

type registerDTO struct {
	Fingerprint string `json:"fingerprint"`
	Referrer    string `json:"referrer"`
}
