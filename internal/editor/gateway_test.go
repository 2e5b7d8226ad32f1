package editor_test

import (
	"bytes"
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitrine/core/internal/database/testdb"
	"github.com/vitrine/core/internal/editor"
	"github.com/vitrine/core/internal/models"
	"github.com/vitrine/core/internal/modules/media"
	"github.com/vitrine/core/internal/modules/post"
	"github.com/vitrine/core/internal/modules/views"
	"github.com/vitrine/core/internal/pkg/blob"
	"github.com/vitrine/core/internal/pkg/fingerprint"
)

type server struct {
	url   string
	store *blob.MemoryStore
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testdb.Open(t)
	store := blob.NewMemoryStore("https://cdn.test")
	mediaSvc := media.NewService(db, store, media.Options{
		Prefix:       "blog",
		MaxBytes:     1 << 20,
		PresignTTL:   time.Minute,
		OrphanGrace:  time.Hour,
		BeaconMaxAge: time.Hour,
	}, nil)
	pass := func(c *gin.Context) { c.Next() }

	r := gin.New()
	api := r.Group("/api/v1")
	media.NewHandler(mediaSvc, media.NewSweeper(mediaSvc, nil)).RegisterRoutes(api, pass)
	post.NewHandler(post.NewService(db, mediaSvc, mediaSvc.Keys(), nil)).RegisterRoutes(api, pass)
	views.NewHandler(views.NewService(db, nil, views.Options{}, nil, nil)).RegisterRoutes(api)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &server{url: srv.URL + "/api/v1", store: store}
}

func png(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(3, 3, color.White), imaging.PNG))
	return buf.Bytes()
}

func newGateway(t *testing.T, srv *server) *editor.HTTPGateway {
	gw := editor.NewHTTPGateway(srv.url, "token", nil)
	t.Cleanup(gw.Close)
	return gw
}

func TestGatewaySaveKeepsReferencedUploads(t *testing.T) {
	srv := newServer(t)
	gw := newGateway(t, srv)
	ctx := context.Background()
	s := editor.NewSession(nil, gw, nil)

	cover, err := s.Upload(ctx, editor.KindCover, "cover.png", png(t))
	require.NoError(t, err)
	assert.Contains(t, cover.PreviewURL, cover.Key)
	inline, err := s.Upload(ctx, editor.KindBlock, "inline.png", png(t))
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, editor.Draft{
		Title:    "Hello",
		Slug:     "hello",
		CoverKey: cover.Key,
		Body:     []models.Block{{Type: models.BlockImage, Key: inline.Key}},
	}))
	assert.NotEmpty(t, s.PostID())
	assert.True(t, srv.store.Has(cover.Key))
	assert.True(t, srv.store.Has(inline.Key))

	err = gw.Delete(ctx, cover.Key)
	var apiErr *editor.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.True(t, srv.store.Has(cover.Key))
}

func TestGatewayConfirmExitRemovesUploads(t *testing.T) {
	srv := newServer(t)
	gw := newGateway(t, srv)
	ctx := context.Background()
	s := editor.NewSession(nil, gw, nil)

	a, err := s.Upload(ctx, editor.KindBlock, "a.png", png(t))
	require.NoError(t, err)
	b, err := s.Upload(ctx, editor.KindBlock, "b.png", png(t))
	require.NoError(t, err)

	_, err = s.RequestExit()
	require.NoError(t, err)
	report, err := s.ConfirmExit(ctx)
	require.NoError(t, err)
	assert.Equal(t, editor.PurgeReport{Attempted: 2, Deleted: 2}, report)
	assert.False(t, srv.store.Has(a.Key))
	assert.False(t, srv.store.Has(b.Key))
}

func TestGatewayUnloadBeaconCleansUp(t *testing.T) {
	srv := newServer(t)
	gw := newGateway(t, srv)
	ctx := context.Background()
	s := editor.NewSession(nil, gw, nil)

	img, err := s.Upload(ctx, editor.KindBlock, "gone.png", png(t))
	require.NoError(t, err)
	require.NoError(t, s.Unload())

	assert.Eventually(t, func() bool { return !srv.store.Has(img.Key) }, 2*time.Second, 10*time.Millisecond)
}

func TestGatewaySendNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	gw := editor.NewHTTPGateway(srv.URL, "", nil)
	t.Cleanup(gw.Close)
	t.Cleanup(func() { close(release) })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			gw.Send([]string{"blog/x.png"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked")
	}
}

func TestGatewayRegisterView(t *testing.T) {
	srv := newServer(t)
	gw := newGateway(t, srv)
	ctx := context.Background()

	_, err := gw.Save(ctx, editor.Draft{Title: "Hello", Slug: "hello", Publish: true})
	require.NoError(t, err)

	const firefox = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	reader := editor.Visit{
		Traits:    fingerprint.Traits{ScreenWidth: 1920, ScreenHeight: 1080, ColorDepth: 24, Timezone: "UTC", Language: "en-US", CPUCores: 8},
		UserAgent: firefox,
	}
	counted, err := gw.RegisterView(ctx, "hello", reader)
	require.NoError(t, err)
	assert.True(t, counted)

	counted, err = gw.RegisterView(ctx, "hello", reader)
	require.NoError(t, err)
	assert.False(t, counted, "same device, same day")

	other := reader
	other.Traits.Touch = true
	counted, err = gw.RegisterView(ctx, "hello", other)
	require.NoError(t, err)
	assert.True(t, counted)

	counted, err = gw.RegisterView(ctx, "hello", editor.Visit{Traits: reader.Traits})
	require.NoError(t, err)
	assert.False(t, counted, "the default Go user agent is treated as a bot")

	_, err = gw.RegisterView(ctx, "missing", reader)
	var apiErr *editor.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
