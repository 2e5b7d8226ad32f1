package media

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vitrine/core/internal/database/testdb"
	"github.com/vitrine/core/internal/models"
	"github.com/vitrine/core/internal/pkg/blob"
	"gorm.io/gorm"
)

// hookStore runs beforeDelete ahead of every blob delete.
type hookStore struct {
	*blob.MemoryStore
	beforeDelete func(key string)
}

func (h *hookStore) Delete(ctx context.Context, key string) error {
	if h.beforeDelete != nil {
		h.beforeDelete(key)
	}
	return h.MemoryStore.Delete(ctx, key)
}

type fixture struct {
	svc   *Service
	store *blob.MemoryStore
	db    *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t)
	store := blob.NewMemoryStore("https://cdn.test")
	svc := NewService(db, store, Options{
		Prefix:         "blog",
		AllowedFormats: []string{"png", "jpg", "jpeg", "gif", "webp"},
		MaxBytes:       1 << 20,
		PresignTTL:     time.Minute,
		OrphanGrace:    24 * time.Hour,
		BeaconMaxAge:   24 * time.Hour,
		CleanupLimit:   3,
	}, nil)
	return &fixture{svc: svc, store: store, db: db}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.White), imaging.PNG))
	return buf.Bytes()
}

func (f *fixture) upload(t *testing.T, kind Kind) string {
	t.Helper()
	res, err := f.svc.Upload(context.Background(), UploadInput{
		Kind:     kind,
		FileName: "Photo.png",
		Payload:  pngBytes(t, 4, 3),
	})
	require.NoError(t, err)
	return res.Key
}

func (f *fixture) ledger(t *testing.T, key string) *models.UploadModel {
	t.Helper()
	var row models.UploadModel
	err := f.db.Where("`key` = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	require.NoError(t, err)
	return &row
}

func (f *fixture) age(t *testing.T, key string, by time.Duration) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.UploadModel{}).
		Where("`key` = ?", key).
		UpdateColumn("created_at", time.Now().Add(-by)).Error)
}

func (f *fixture) savePost(t *testing.T, cover string, blockKeys ...string) *models.PostModel {
	t.Helper()
	post := &models.PostModel{
		Title:    "t",
		Slug:     "slug-" + uuid.NewString(),
		Status:   models.PostDraft,
		CoverKey: cover,
	}
	for _, k := range blockKeys {
		post.Body = append(post.Body, models.Block{Type: models.BlockImage, Key: k})
	}
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		return f.svc.Activate(tx, post.ID, post.ReferencedKeys())
	}))
	return post
}

// afterFirstUploadsQuery runs fn once, right after the next read of the
// uploads table, to interleave a concurrent writer.
func (f *fixture) afterFirstUploadsQuery(t *testing.T, fn func()) {
	t.Helper()
	fired := false
	require.NoError(t, f.db.Callback().Query().After("gorm:query").Register("test:interleave", func(db *gorm.DB) {
		if fired || db.Statement.Table != "uploads" {
			return
		}
		fired = true
		fn()
	}))
}

func (f *fixture) activate(t *testing.T, refID string, keys ...string) error {
	t.Helper()
	return f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.Activate(tx, refID, keys)
	})
}
