package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/vitrine/core/internal/pkg/fingerprint"
)

// Visit describes one reader opening a published post.
type Visit struct {
	Traits    fingerprint.Traits
	UserAgent string
	Referrer  string
}

// RegisterView reports a visit to the published post slug and returns
// whether the server counted it. The visitor is identified only by the
// fingerprint of its traits.
func (g *HTTPGateway) RegisterView(ctx context.Context, slug string, v Visit) (bool, error) {
	b, err := json.Marshal(map[string]string{
		"fingerprint": fingerprint.Compute(v.Traits),
		"referrer":    v.Referrer,
	})
	if err != nil {
		return false, err
	}

	var out struct {
		Counted bool `json:"counted"`
	}
	err = g.do(ctx, http.MethodPost, "/public/posts/"+url.PathEscape(slug)+"/views",
		"application/json", bytes.NewReader(b), false, &out,
		func(req *http.Request) {
			if v.UserAgent != "" {
				req.Header.Set("User-Agent", v.UserAgent)
			}
		})
	if err != nil {
		return false, err
	}
	return out.Counted, nil
}
