package post

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vitrine/core/internal/models"
)

const (
	maxBlocks    = 500
	maxTitleSize = 200
	maxSlugSize  = 191
)

// KeyValidator checks that a media key belongs to this site.
type KeyValidator interface {
	Validate(key string) error
}

// normalizePost trims the payload and rejects malformed blocks or keys
// outside the media prefix.
func normalizePost(dto *SavePostDTO, keys KeyValidator) error {
	dto.Title = strings.TrimSpace(dto.Title)
	dto.Slug = strings.TrimSpace(dto.Slug)
	dto.CoverKey = strings.TrimSpace(dto.CoverKey)

	switch {
	case dto.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidPost)
	case utf8.RuneCountInString(dto.Title) > maxTitleSize:
		return fmt.Errorf("%w: title is too long", ErrInvalidPost)
	case dto.Slug == "":
		return fmt.Errorf("%w: slug is required", ErrInvalidPost)
	case len(dto.Slug) > maxSlugSize, strings.ContainsAny(dto.Slug, "/?# \t\n"):
		return fmt.Errorf("%w: slug %q is not allowed", ErrInvalidPost, dto.Slug)
	case len(dto.Body) > maxBlocks:
		return fmt.Errorf("%w: more than %d blocks", ErrInvalidPost, maxBlocks)
	}

	if dto.CoverKey != "" {
		if err := keys.Validate(dto.CoverKey); err != nil {
			return fmt.Errorf("%w: cover: %v", ErrInvalidPost, err)
		}
	}

	for i := range dto.Body {
		if err := normalizeBlock(&dto.Body[i], keys); err != nil {
			return fmt.Errorf("%w: block %d: %v", ErrInvalidPost, i, err)
		}
	}
	return nil
}

func normalizeBlock(b *models.Block, keys KeyValidator) error {
	b.Key = strings.TrimSpace(b.Key)
	switch b.Type {
	case models.BlockParagraph, models.BlockQuote:
		b.Key, b.Caption, b.Level, b.Language = "", "", 0, ""
	case models.BlockHeading:
		if b.Level == 0 {
			b.Level = 2
		}
		if b.Level < 1 || b.Level > 6 {
			return fmt.Errorf("heading level %d out of range", b.Level)
		}
		b.Text = strings.TrimSpace(b.Text)
		b.Key, b.Caption, b.Language = "", "", ""
	case models.BlockCode:
		b.Language = strings.ToLower(strings.TrimSpace(b.Language))
		b.Key, b.Caption, b.Level = "", "", 0
	case models.BlockImage:
		if b.Key == "" {
			return fmt.Errorf("image block needs a key")
		}
		if err := keys.Validate(b.Key); err != nil {
			return err
		}
		b.Text, b.Level, b.Language = "", 0, ""
	default:
		return fmt.Errorf("unknown block type %q", b.Type)
	}
	return nil
}

// droppedKeys returns keys in before that are absent from after.
func droppedKeys(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, k := range after {
		keep[k] = struct{}{}
	}
	var out []string
	for _, k := range before {
		if _, ok := keep[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
