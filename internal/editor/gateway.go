package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const beaconQueueSize = 16

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// HTTPGateway talks to the server's media and post endpoints. Beacon sends
// are queued and delivered by a background goroutine without credentials;
// a full queue drops the batch.
type HTTPGateway struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger

	beacons   chan []string
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewHTTPGateway targets baseURL, e.g. "https://example.com/api/v1".
func NewHTTPGateway(baseURL, token string, logger *zap.Logger) *HTTPGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		beacons:    make(chan []string, beaconQueueSize),
		done:       make(chan struct{}),
	}
	g.wg.Add(1)
	go g.deliverBeacons()
	return g
}

// Close stops beacon delivery. Queued batches still in the channel are
// abandoned.
func (g *HTTPGateway) Close() {
	g.closeOnce.Do(func() {
		close(g.done)
		g.wg.Wait()
	})
}

func (g *HTTPGateway) Upload(ctx context.Context, kind Kind, name string, payload []byte) (Image, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return Image{}, err
	}
	if _, err := part.Write(payload); err != nil {
		return Image{}, err
	}
	if err := mw.Close(); err != nil {
		return Image{}, err
	}

	var img Image
	err = g.do(ctx, http.MethodPost, "/media/upload?kind="+url.QueryEscape(string(kind)), mw.FormDataContentType(), &body, true, &img)
	return img, err
}

func (g *HTTPGateway) Delete(ctx context.Context, key string) error {
	return g.do(ctx, http.MethodDelete, "/media/upload?key="+url.QueryEscape(key), "", nil, true, nil)
}

func (g *HTTPGateway) Save(ctx context.Context, draft Draft) (string, error) {
	b, err := json.Marshal(draft)
	if err != nil {
		return "", err
	}
	method, path := http.MethodPost, "/posts"
	if draft.ID != "" {
		method, path = http.MethodPut, "/posts/"+url.PathEscape(draft.ID)
	}

	var saved struct {
		ID string `json:"id"`
	}
	if err := g.do(ctx, method, path, "application/json", bytes.NewReader(b), true, &saved); err != nil {
		return "", err
	}
	return saved.ID, nil
}

// Send never blocks.
func (g *HTTPGateway) Send(keys []string) {
	if len(keys) == 0 {
		return
	}
	batch := append([]string(nil), keys...)
	select {
	case g.beacons <- batch:
	default:
		g.logger.Debug("cleanup beacon dropped", zap.Int("keys", len(batch)))
	}
}

func (g *HTTPGateway) deliverBeacons() {
	defer g.wg.Done()
	for {
		select {
		case <-g.done:
			return
		case keys := <-g.beacons:
			g.deliver(keys)
		}
	}
}

func (g *HTTPGateway) deliver(keys []string) {
	b, err := json.Marshal(map[string][]string{"keys": keys})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.do(ctx, http.MethodPost, "/media/cleanup", "application/json", bytes.NewReader(b), false, nil); err != nil {
		g.logger.Debug("cleanup beacon failed", zap.Error(err))
	}
}

func (g *HTTPGateway) do(ctx context.Context, method, path, contentType string, body io.Reader, auth bool, out interface{}, decorate ...func(*http.Request)) error {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	for _, fn := range decorate {
		fn(req)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth && g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope)
		if envelope.Message == "" {
			envelope.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: envelope.Message}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
