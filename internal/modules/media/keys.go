package media

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Kind selects the folder an upload lands in.
type Kind string

const (
	KindCover Kind = "cover"
	KindBlock Kind = "block"
)

const (
	coverFolder     = "covers"
	maxFileNameSize = 80
)

// ParseKind maps a query value to a Kind; empty means block.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindCover:
		return KindCover, nil
	case KindBlock, "":
		return KindBlock, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidUpload, raw)
}

// Keys builds and validates blob keys of the form
// <prefix>[/covers]/<ULID>-<sanitized-name>.
type Keys struct {
	prefix  string
	grammar *regexp.Regexp
}

// NewKeys returns a key scheme rooted at prefix.
func NewKeys(prefix string) *Keys {
	prefix = strings.Trim(prefix, "/")
	pattern := fmt.Sprintf(`^%s/(?:%s/)?[0-9A-HJKMNP-TV-Z]{26}-[a-z0-9._-]{1,%d}$`,
		regexp.QuoteMeta(prefix), coverFolder, maxFileNameSize)
	return &Keys{prefix: prefix, grammar: regexp.MustCompile(pattern)}
}

// Prefix returns the root folder followed by a slash.
func (k *Keys) Prefix() string {
	return k.prefix + "/"
}

// Folder returns the folder for kind.
func (k *Keys) Folder(kind Kind) string {
	if kind == KindCover {
		return k.prefix + "/" + coverFolder
	}
	return k.prefix
}

// New returns a fresh key for an upload named fileName. The ULID carries a
// millisecond timestamp plus entropy, so concurrent sessions never collide.
func (k *Keys) New(kind Kind, fileName string) string {
	return k.Folder(kind) + "/" + ulid.Make().String() + "-" + sanitizeFileName(fileName)
}

// Validate rejects anything outside the key grammar: foreign prefixes,
// traversal, absolute paths and backslashes.
func (k *Keys) Validate(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	case strings.HasPrefix(key, "/"),
		strings.Contains(key, ".."),
		strings.Contains(key, "\\"),
		strings.Contains(key, "//"):
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	case !strings.HasPrefix(key, k.Prefix()):
		return fmt.Errorf("%w: %q is outside %s", ErrInvalidKey, key, k.Prefix())
	case !k.grammar.MatchString(key):
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// FolderOf returns the folder part of a valid key.
func FolderOf(key string) string {
	if i := strings.LastIndex(key, "/"); i > 0 {
		return key[:i]
	}
	return ""
}

// sanitizeFileName lower-cases name and keeps only [a-z0-9._-], collapsing
// everything else into single hyphens. The extension survives truncation.
func sanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	var b strings.Builder
	lastHyphen := false
	for _, r := range stem {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen && b.Len() > 0 {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	clean := strings.Trim(b.String(), "-")
	if clean == "" {
		clean = "image"
	}
	if !isSafeExt(ext) {
		ext = ""
	}
	if limit := maxFileNameSize - len(ext); len(clean) > limit {
		clean = strings.TrimRight(clean[:limit], "-")
	}
	return clean + ext
}

func isSafeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 10 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
