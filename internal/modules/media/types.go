package media

import (
	"errors"
	"time"
)

var (
	ErrInvalidKey     = errors.New("invalid media key")
	ErrInvalidUpload  = errors.New("invalid upload")
	ErrUploadTooLarge = errors.New("upload too large")
	ErrKeyInUse       = errors.New("media key is referenced by saved content")
	ErrNotFound       = errors.New("media not found")
	ErrSweepRunning   = errors.New("orphan sweep already running")
	ErrDiscarded      = errors.New("media key was discarded")
)

// Options tunes the media service.
type Options struct {
	Prefix         string
	AllowedFormats []string
	MaxBytes       int64
	PresignTTL     time.Duration
	OrphanGrace    time.Duration
	BeaconMaxAge   time.Duration
	CleanupLimit   int
}

// UploadInput is one image handed to Upload.
type UploadInput struct {
	Kind        Kind
	FileName    string
	Payload     []byte
	ContentType string
}

// UploadResult is returned to the editor after a successful upload.
type UploadResult struct {
	Key        string `json:"key"`
	PreviewURL string `json:"preview_url"`
	Size       int64  `json:"size"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// CleanupResult reports what an unauthenticated cleanup request achieved.
type CleanupResult struct {
	DeletedCount int `json:"deleted_count"`
	SkippedCount int `json:"skipped_count"`
}

// SweepReport summarizes one orphan sweep.
type SweepReport struct {
	StalePending int `json:"stale_pending"`
	Unreferenced int `json:"unreferenced"`
	Failed       int `json:"failed"`
}

// cleanupDTO is the body of POST /media/cleanup. A bare JSON array is also accepted.
type cleanupDTO struct {
	Keys []string `json:"keys"`
}

type presignResponse struct {
	URL string `json:"url"`
}

type uploadItem struct {
	ID      string    `json:"id"`
	Key     string    `json:"key"`
	Folder  string    `json:"folder"`
	Status  string    `json:"status"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}
