package editor

import (
	"context"
	"errors"

	"github.com/vitrine/core/internal/models"
)

var (
	// ErrSessionClosed is returned by every operation once a session is
	// Saved or Purged.
	ErrSessionClosed = errors.New("editor session closed")
	// ErrExitPending is returned while an exit confirmation is outstanding.
	ErrExitPending = errors.New("exit confirmation pending")
	ErrNotExiting  = errors.New("no exit awaiting confirmation")
)

// State is the finalizer state of a session.
type State int

const (
	Editing State = iota
	Saved
	ExitPendingConfirmation
	Purged
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Saved:
		return "saved"
	case ExitPendingConfirmation:
		return "exit_pending_confirmation"
	case Purged:
		return "purged"
	}
	return "unknown"
}

// Kind selects the media folder an upload lands in.
type Kind string

const (
	KindCover Kind = "cover"
	KindBlock Kind = "block"
)

// Image is what the server returns for an upload.
type Image struct {
	Key        string `json:"key"`
	PreviewURL string `json:"preview_url"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// Draft is the content submitted on save. An empty ID creates the post.
type Draft struct {
	ID       string         `json:"-"`
	Title    string         `json:"title"`
	Slug     string         `json:"slug"`
	Body     []models.Block `json:"body"`
	CoverKey string         `json:"cover_key"`
	Publish  bool           `json:"publish,omitempty"`
}

// ExitDecision tells the UI whether to ask before leaving.
type ExitDecision struct {
	Prompt  bool
	AtRisk  int
	Message string
}

// PurgeReport summarises a confirmed exit.
type PurgeReport struct {
	Attempted int
	Deleted   int
}

type Uploader interface {
	Upload(ctx context.Context, kind Kind, name string, payload []byte) (Image, error)
}

// Remover deletes one uploaded blob. A single attempt per call.
type Remover interface {
	Delete(ctx context.Context, key string) error
}

// Saver persists a draft and returns the post ID.
type Saver interface {
	Save(ctx context.Context, draft Draft) (string, error)
}

// Beacon hands a batch of keys to a transport that outlives the session.
// It must not block and reports nothing back.
type Beacon interface {
	Send(keys []string)
}

// Backend is everything a session talks to.
type Backend interface {
	Uploader
	Remover
	Saver
	Beacon
}
