package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitrine/core/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeBackend struct {
	mu       sync.Mutex
	seq      int
	deletes  []string
	beacons  [][]string
	saves    []Draft
	failSave error
	failKeys map[string]bool
	onUpload func()
}

func (f *fakeBackend) Upload(ctx context.Context, kind Kind, name string, payload []byte) (Image, error) {
	if f.onUpload != nil {
		f.onUpload()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	key := fmt.Sprintf("blog/%s-%d-%s", kind, f.seq, name)
	return Image{Key: key, PreviewURL: "https://cdn.test/" + key}, nil
}

func (f *fakeBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	if f.failKeys[key] {
		return errors.New("network down")
	}
	return nil
}

func (f *fakeBackend) Save(ctx context.Context, d Draft) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, d)
	if f.failSave != nil {
		return "", f.failSave
	}
	return "post-1", nil
}

func (f *fakeBackend) Send(keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beacons = append(f.beacons, keys)
}

func (f *fakeBackend) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func upload(t *testing.T, s *Session, kind Kind, name string) string {
	t.Helper()
	img, err := s.Upload(context.Background(), kind, name, []byte("x"))
	require.NoError(t, err)
	return img.Key
}

func TestSavedKeysAreNeverDeleted(t *testing.T) {
	ctx := context.Background()
	exits := map[string]func(t *testing.T, s *Session){
		"request exit": func(t *testing.T, s *Session) {
			_, err := s.RequestExit()
			assert.ErrorIs(t, err, ErrSessionClosed)
		},
		"unload": func(t *testing.T, s *Session) {
			assert.ErrorIs(t, s.Unload(), ErrSessionClosed)
		},
	}
	for name, exit := range exits {
		t.Run(name, func(t *testing.T) {
			backend := &fakeBackend{}
			s := NewSession(nil, backend, nil)
			cover := upload(t, s, KindCover, "a.png")
			img := upload(t, s, KindBlock, "b.png")

			require.NoError(t, s.Save(ctx, Draft{
				Title: "t", Slug: "s", CoverKey: cover,
				Body: []models.Block{{Type: models.BlockImage, Key: img}},
			}))
			exit(t, s)

			assert.Empty(t, backend.deleted())
			assert.Empty(t, backend.beacons)
		})
	}
}

func TestConfirmExitDeletesEachPendingKeyOnce(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSession(nil, backend, nil)
	k1 := upload(t, s, KindBlock, "1.png")
	k2 := upload(t, s, KindBlock, "2.png")

	decision, err := s.RequestExit()
	require.NoError(t, err)
	assert.True(t, decision.Prompt)
	assert.Equal(t, 2, decision.AtRisk)
	assert.Contains(t, decision.Message, "2 uploaded images")
	assert.Equal(t, ExitPendingConfirmation, s.State())

	_, err = s.Upload(context.Background(), KindBlock, "3.png", nil)
	assert.ErrorIs(t, err, ErrExitPending)

	report, err := s.ConfirmExit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PurgeReport{Attempted: 2, Deleted: 2}, report)
	assert.Equal(t, []string{k1, k2}, backend.deleted())
	assert.Equal(t, Purged, s.State())

	_, err = s.ConfirmExit(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Len(t, backend.deleted(), 2)
}

func TestConfirmExitSwallowsDeleteFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	backend := &fakeBackend{failKeys: map[string]bool{}}
	s := NewSession(nil, backend, zap.New(core))
	bad := upload(t, s, KindBlock, "bad.png")
	upload(t, s, KindBlock, "good.png")
	backend.failKeys[bad] = true

	_, err := s.RequestExit()
	require.NoError(t, err)
	report, err := s.ConfirmExit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PurgeReport{Attempted: 2, Deleted: 1}, report)
	assert.Equal(t, Purged, s.State())
	assert.Equal(t, 1, logs.FilterMessage("upload delete failed").Len())
}

func TestCancelExitReturnsToEditing(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSession(nil, backend, nil)
	upload(t, s, KindBlock, "1.png")

	_, err := s.RequestExit()
	require.NoError(t, err)
	require.NoError(t, s.CancelExit())
	assert.Equal(t, Editing, s.State())
	assert.Equal(t, 1, s.Tracker().Len())
	assert.Empty(t, backend.deleted())

	assert.ErrorIs(t, s.CancelExit(), ErrNotExiting)
}

func TestExitWithoutPendingIsSilent(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSession(nil, backend, nil)

	decision, err := s.RequestExit()
	require.NoError(t, err)
	assert.False(t, decision.Prompt)
	assert.Equal(t, Purged, s.State())
	assert.Empty(t, backend.deleted())
}

func TestReplaceDeletesPendingOldKey(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSession(nil, backend, nil)
	k1 := upload(t, s, KindCover, "old.png")
	k2 := upload(t, s, KindCover, "new.png")

	require.NoError(t, s.Replace(context.Background(), k1, k2))

	assert.Equal(t, []string{k1}, backend.deleted())
	assert.Equal(t, []string{k2}, s.Tracker().PendingKeys())
}

func TestReplaceLeavesPersistedKeyToServer(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSession(nil, backend, nil)
	k2 := upload(t, s, KindCover, "new.png")

	require.NoError(t, s.Replace(context.Background(), "blog/covers/saved-earlier.png", k2))
	require.NoError(t, s.Remove(context.Background(), "blog/saved-block.png"))

	assert.Empty(t, backend.deleted())
	assert.Equal(t, []string{k2}, s.Tracker().PendingKeys())
}

func TestSaveClearsTracking(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSession(nil, backend, nil)
	keys := []string{
		upload(t, s, KindCover, "1.png"),
		upload(t, s, KindBlock, "2.png"),
		upload(t, s, KindBlock, "3.png"),
	}

	require.NoError(t, s.Save(context.Background(), Draft{Title: "t", Slug: "s", CoverKey: keys[0]}))
	assert.Equal(t, 0, s.Tracker().Len())
	assert.Equal(t, Saved, s.State())
	assert.Equal(t, "post-1", s.PostID())

	_, err := s.RequestExit()
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Empty(t, backend.deleted())
}

func TestFailedSaveKeepsPendingKeys(t *testing.T) {
	backend := &fakeBackend{failSave: errors.New("503")}
	s := NewSession(nil, backend, nil)
	k := upload(t, s, KindBlock, "1.png")

	err := s.Save(context.Background(), Draft{Title: "t", Slug: "s"})
	require.Error(t, err)
	assert.Equal(t, Editing, s.State())
	assert.Equal(t, []string{k}, s.Tracker().PendingKeys())

	backend.failSave = nil
	require.NoError(t, s.Save(context.Background(), Draft{Title: "t", Slug: "s"}))
	assert.Len(t, backend.saves, 2)
}

func TestUnloadSendsOneBeacon(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSession(nil, backend, nil)
	k1 := upload(t, s, KindBlock, "1.png")
	k2 := upload(t, s, KindBlock, "2.png")

	require.NoError(t, s.Unload())
	assert.ErrorIs(t, s.Unload(), ErrSessionClosed)

	assert.Equal(t, [][]string{{k1, k2}}, backend.beacons)
	assert.Empty(t, backend.deleted())
	assert.Equal(t, Purged, s.State())
}

func TestUnloadWithNothingPendingSendsNothing(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSession(nil, backend, nil)
	require.NoError(t, s.Unload())
	assert.Empty(t, backend.beacons)
}

func TestUploadFinishingAfterCloseIsDeleted(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSession(nil, backend, nil)
	backend.onUpload = func() {
		require.NoError(t, s.Unload())
	}

	_, err := s.Upload(context.Background(), KindBlock, "late.png", nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Len(t, backend.deleted(), 1)
	assert.Equal(t, 0, s.Tracker().Len())
}
