package editor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Session is the finalizer for one editor instance. It never deletes a key
// that is not in its own pending set, so content that reached the server
// through a save is only ever cleaned up by the server.
type Session struct {
	mu      sync.Mutex
	state   State
	tracker *Tracker
	backend Backend
	logger  *zap.Logger
	postID  string
}

func NewSession(tracker *Tracker, backend Backend, logger *zap.Logger) *Session {
	if tracker == nil {
		tracker = NewTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{state: Editing, tracker: tracker, backend: backend, logger: logger}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PostID is the ID assigned by the last successful save.
func (s *Session) PostID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postID
}

func (s *Session) Tracker() *Tracker { return s.tracker }

func (s *Session) editable() error {
	switch s.state {
	case Editing:
		return nil
	case ExitPendingConfirmation:
		return ErrExitPending
	}
	return ErrSessionClosed
}

// Upload stores an image and tracks its key as pending.
func (s *Session) Upload(ctx context.Context, kind Kind, name string, payload []byte) (Image, error) {
	s.mu.Lock()
	err := s.editable()
	s.mu.Unlock()
	if err != nil {
		return Image{}, err
	}

	img, err := s.backend.Upload(ctx, kind, name, payload)
	if err != nil {
		return Image{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Saved || s.state == Purged {
		// The session ended while the upload was in flight.
		s.deleteOnce(ctx, img.Key)
		return Image{}, ErrSessionClosed
	}
	s.tracker.Record(img.Key)
	return img, nil
}

// Replace swaps oldKey for newKey, typically a cover. newKey must come from
// Upload, which already tracks it. A pending oldKey is deleted straight away;
// a saved one is left for the server to release on the next successful save.
func (s *Session) Replace(ctx context.Context, oldKey, newKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	if oldKey != "" && oldKey != newKey {
		s.discard(ctx, oldKey)
	}
	return nil
}

// Remove is called when an image block is dropped before saving.
func (s *Session) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	s.discard(ctx, key)
	return nil
}

func (s *Session) discard(ctx context.Context, key string) {
	if !s.tracker.Contains(key) {
		return
	}
	s.deleteOnce(ctx, key)
	s.tracker.Release(key)
}

func (s *Session) deleteOnce(ctx context.Context, key string) bool {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Warn("upload delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Save persists the draft. On failure the session stays Editing with every
// pending key intact and the error is returned.
func (s *Session) Save(ctx context.Context, draft Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	if draft.ID == "" {
		draft.ID = s.postID
	}

	id, err := s.backend.Save(ctx, draft)
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	s.postID = id
	s.tracker.ReleaseAll()
	s.state = Saved
	return nil
}

// RequestExit starts an in-app navigation away. With nothing pending the
// session closes silently.
func (s *Session) RequestExit() (ExitDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Editing {
		if s.state == ExitPendingConfirmation {
			return s.decision(), nil
		}
		return ExitDecision{}, ErrSessionClosed
	}
	if s.tracker.Len() == 0 {
		s.state = Purged
		return ExitDecision{}, nil
	}
	s.state = ExitPendingConfirmation
	return s.decision(), nil
}

func (s *Session) decision() ExitDecision {
	n := s.tracker.Len()
	noun := "images"
	if n == 1 {
		noun = "image"
	}
	return ExitDecision{
		Prompt:  true,
		AtRisk:  n,
		Message: fmt.Sprintf("%d uploaded %s will be discarded. Leave anyway?", n, noun),
	}
}

// ConfirmExit deletes every pending key, one attempt each, and closes the
// session. Delete failures are logged and do not stop the exit.
func (s *Session) ConfirmExit(ctx context.Context) (PurgeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case ExitPendingConfirmation:
	case Editing:
		return PurgeReport{}, ErrNotExiting
	default:
		return PurgeReport{}, ErrSessionClosed
	}

	var report PurgeReport
	for _, key := range s.tracker.PendingKeys() {
		report.Attempted++
		if s.deleteOnce(ctx, key) {
			report.Deleted++
		}
	}
	s.tracker.ReleaseAll()
	s.state = Purged
	s.logger.Info("editor session purged",
		zap.Int("attempted", report.Attempted),
		zap.Int("deleted", report.Deleted),
	)
	return report, nil
}

func (s *Session) CancelExit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case ExitPendingConfirmation:
		s.state = Editing
		return nil
	case Editing:
		return ErrNotExiting
	}
	return ErrSessionClosed
}

// Unload is the tab-close path: pending keys go out in one beacon and the
// session closes without waiting for any outcome.
func (s *Session) Unload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Saved || s.state == Purged {
		return ErrSessionClosed
	}
	if keys := s.tracker.PendingKeys(); len(keys) > 0 {
		s.backend.Send(keys)
	}
	s.tracker.ReleaseAll()
	s.state = Purged
	return nil
}
