package media

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitrine/core/internal/models"
	"github.com/vitrine/core/internal/pkg/pagination"
	"gorm.io/gorm"
)

func TestUploadStoresPendingBlob(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Upload(context.Background(), UploadInput{
		Kind:     KindCover,
		FileName: "cover.png",
		Payload:  pngBytes(t, 8, 5),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Key, "blog/covers/"))
	assert.Contains(t, res.PreviewURL, res.Key)
	assert.Equal(t, 8, res.Width)
	assert.Equal(t, 5, res.Height)
	assert.True(t, f.store.Has(res.Key))

	row := f.ledger(t, res.Key)
	require.NotNil(t, row)
	assert.Equal(t, models.UploadPending, row.Status)
	assert.Equal(t, "blog/covers", row.Folder)
	assert.Equal(t, "image/png", row.ContentType)
}

func TestUploadRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, UploadInput{Kind: KindBlock, FileName: "notes.txt", Payload: []byte("hello")})
	assert.ErrorIs(t, err, ErrInvalidUpload)

	_, err = f.svc.Upload(ctx, UploadInput{Kind: KindBlock, FileName: "fake.png", Payload: []byte("not an image")})
	assert.ErrorIs(t, err, ErrInvalidUpload)

	_, err = f.svc.Upload(ctx, UploadInput{Kind: KindBlock, FileName: "big.png", Payload: make([]byte, 2<<20)})
	assert.ErrorIs(t, err, ErrUploadTooLarge)

	assert.Empty(t, f.store.Keys())
}

func TestUploadAcceptsWebPSignature(t *testing.T) {
	f := newFixture(t)
	payload := append([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), make([]byte, 16)...)

	res, err := f.svc.Upload(context.Background(), UploadInput{Kind: KindBlock, FileName: "a.webp", Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, "image/webp", f.ledger(t, res.Key).ContentType)
}

func TestUploadFailsWhenStoreFails(t *testing.T) {
	f := newFixture(t)
	f.store.FailPuts(true)

	_, err := f.svc.Upload(context.Background(), UploadInput{Kind: KindBlock, FileName: "a.png", Payload: pngBytes(t, 1, 1)})
	assert.Error(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.UploadModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.upload(t, KindBlock)
	require.NoError(t, f.svc.DeleteUpload(ctx, pending))
	assert.False(t, f.store.Has(pending))
	assert.Equal(t, models.UploadDiscarded, f.ledger(t, pending).Status)
	require.NoError(t, f.svc.DeleteUpload(ctx, pending), "deleting twice is a no-op")

	saved := f.upload(t, KindCover)
	f.savePost(t, saved)
	assert.ErrorIs(t, f.svc.DeleteUpload(ctx, saved), ErrKeyInUse)
	assert.True(t, f.store.Has(saved))

	assert.ErrorIs(t, f.svc.DeleteUpload(ctx, "other/"+pending), ErrInvalidKey)
}

func TestDeleteUploadWithoutLedgerRow(t *testing.T) {
	f := newFixture(t)
	key := f.svc.Keys().New(KindBlock, "crash.png")
	require.NoError(t, f.store.Put(context.Background(), key, []byte("x"), "image/png"))

	require.NoError(t, f.svc.DeleteUpload(context.Background(), key))
	assert.False(t, f.store.Has(key))
}

func TestCleanupOnlyDeletesYoungPendingKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	young := f.upload(t, KindBlock)
	old := f.upload(t, KindBlock)
	f.age(t, old, 48*time.Hour)
	active := f.upload(t, KindCover)
	f.savePost(t, active)

	res := f.svc.Cleanup(ctx, []string{young, young, old, active, "../etc/passwd"})
	assert.Equal(t, 1, res.DeletedCount)
	assert.Equal(t, 3, res.SkippedCount)

	assert.False(t, f.store.Has(young))
	assert.True(t, f.store.Has(old))
	assert.True(t, f.store.Has(active))
}

func TestCleanupIgnoresUnknownKeys(t *testing.T) {
	f := newFixture(t)
	key := f.svc.Keys().New(KindBlock, "ghost.png")
	require.NoError(t, f.store.Put(context.Background(), key, []byte("x"), "image/png"))

	res := f.svc.Cleanup(context.Background(), []string{key})
	assert.Zero(t, res.DeletedCount)
	assert.True(t, f.store.Has(key))
}

func TestCleanupCapsBatch(t *testing.T) {
	f := newFixture(t)
	keys := make([]string, 5)
	for i := range keys {
		keys[i] = f.upload(t, KindBlock)
	}

	res := f.svc.Cleanup(context.Background(), keys)
	assert.Equal(t, 3, res.DeletedCount)
	assert.Equal(t, 2, res.SkippedCount)
	assert.True(t, f.store.Has(keys[3]))
	assert.True(t, f.store.Has(keys[4]))
}

func TestCleanupSwallowsDeleteFailures(t *testing.T) {
	f := newFixture(t)
	a := f.upload(t, KindBlock)
	b := f.upload(t, KindBlock)
	f.store.FailDeletes(a)

	res := f.svc.Cleanup(context.Background(), []string{a, b})
	assert.Equal(t, 1, res.DeletedCount)
	assert.NotNil(t, f.ledger(t, a), "failed delete keeps the ledger row for the sweep")
	assert.Equal(t, []string{a, b}, f.store.DeleteCalls())
}

func TestPresign(t *testing.T) {
	f := newFixture(t)
	key := f.upload(t, KindBlock)

	url, err := f.svc.Presign(context.Background(), key)
	require.NoError(t, err)
	assert.Contains(t, url, key)

	require.NoError(t, f.svc.DeleteUpload(context.Background(), key))
	_, err = f.svc.Presign(context.Background(), key)
	assert.ErrorIs(t, err, ErrNotFound)

	urls := f.svc.PresignMany(context.Background(), []string{key, "bad"})
	assert.Empty(t, urls)
}

func TestActivateUpsertsLedger(t *testing.T) {
	f := newFixture(t)
	uploaded := f.upload(t, KindBlock)
	unknown := f.svc.Keys().New(KindBlock, "restored.png")

	post := f.savePost(t, "", uploaded, unknown)

	for _, key := range []string{uploaded, unknown} {
		row := f.ledger(t, key)
		require.NotNil(t, row, key)
		assert.Equal(t, models.UploadActive, row.Status)
		assert.Equal(t, post.ID, row.RefID)
	}
}

func TestDiscardKeepsKeysSharedWithOtherPosts(t *testing.T) {
	f := newFixture(t)
	shared := f.upload(t, KindBlock)
	solo := f.upload(t, KindBlock)

	first := f.savePost(t, "", shared, solo)
	f.savePost(t, "", shared)

	deleted := f.svc.Discard(context.Background(), first.ID, []string{shared, solo})
	assert.Equal(t, 1, deleted)
	assert.True(t, f.store.Has(shared))
	assert.False(t, f.store.Has(solo))
	assert.Equal(t, models.UploadDiscarded, f.ledger(t, solo).Status)
	assert.Equal(t, models.UploadActive, f.ledger(t, shared).Status)
}

func TestListPending(t *testing.T) {
	f := newFixture(t)
	f.upload(t, KindBlock)
	f.upload(t, KindBlock)
	f.savePost(t, f.upload(t, KindCover))

	rows, pag, err := f.svc.ListPending(context.Background(), pagination.Normalize(1, 10))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, int64(2), pag.Total)
}

func TestCleanupAndSaveNeverBothWin(t *testing.T) {
	ctx := context.Background()

	t.Run("save first", func(t *testing.T) {
		f := newFixture(t)
		key := f.upload(t, KindBlock)
		require.NoError(t, f.activate(t, "post-1", key))

		res := f.svc.Cleanup(ctx, []string{key})
		assert.Zero(t, res.DeletedCount)
		assert.True(t, f.store.Has(key))
		assert.Equal(t, models.UploadActive, f.ledger(t, key).Status)
	})

	t.Run("save while the blob is being deleted", func(t *testing.T) {
		f := newFixture(t)
		key := f.upload(t, KindBlock)
		hooked := &hookStore{MemoryStore: f.store}
		svc := NewService(f.db, hooked, f.svc.opts, nil)

		var saveErr error
		hooked.beforeDelete = func(string) {
			saveErr = f.db.Transaction(func(tx *gorm.DB) error {
				return svc.Activate(tx, "post-1", []string{key})
			})
		}

		res := svc.Cleanup(ctx, []string{key})
		assert.Equal(t, 1, res.DeletedCount)
		assert.ErrorIs(t, saveErr, ErrDiscarded)
		row := f.ledger(t, key)
		require.NotNil(t, row)
		assert.Equal(t, models.UploadDiscarded, row.Status)
		assert.Empty(t, row.RefID)
	})
}

func TestDeleteUploadLosesToConcurrentSave(t *testing.T) {
	f := newFixture(t)
	key := f.upload(t, KindBlock)
	f.afterFirstUploadsQuery(t, func() {
		require.NoError(t, f.activate(t, "post-1", key))
	})

	assert.ErrorIs(t, f.svc.DeleteUpload(context.Background(), key), ErrKeyInUse)
	assert.True(t, f.store.Has(key))
	assert.Equal(t, models.UploadActive, f.ledger(t, key).Status)
	assert.Empty(t, f.store.DeleteCalls())
}

func TestActivateRefusesDiscardedKeys(t *testing.T) {
	f := newFixture(t)
	gone := f.upload(t, KindBlock)
	kept := f.upload(t, KindBlock)
	require.NoError(t, f.svc.DeleteUpload(context.Background(), gone))

	err := f.activate(t, "post-1", kept, gone)
	require.ErrorIs(t, err, ErrDiscarded)
	assert.Contains(t, err.Error(), gone)
	assert.Equal(t, models.UploadPending, f.ledger(t, kept).Status, "rolled back with the save")
}

func TestDiscardOutlivesRequestContext(t *testing.T) {
	f := newFixture(t)
	key := f.upload(t, KindBlock)
	require.NoError(t, f.activate(t, "post-1", key))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 1, f.svc.Discard(ctx, "post-1", []string{key}))
	assert.False(t, f.store.Has(key))
}

func TestDiscardLogsLedgerFailures(t *testing.T) {
	f := newFixture(t)
	key := f.upload(t, KindBlock)
	require.NoError(t, f.db.Migrator().DropTable(&models.UploadModel{}))

	assert.Zero(t, f.svc.Discard(context.Background(), "post-1", []string{key}))
	assert.True(t, f.store.Has(key))
}
