package models

import "time"

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPublished PostStatus = "published"
	PostArchived  PostStatus = "archived"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	switch s {
	case PostDraft, PostPublished, PostArchived:
		return true
	}
	return false
}

// BlockType enumerates the body block kinds.
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockImage     BlockType = "image"
	BlockQuote     BlockType = "quote"
	BlockCode      BlockType = "code"
)

// Block is one typed element of a post body. Text holds markdown for
// paragraphs and plain text for everything else; Key and Caption are only
// meaningful for image blocks.
type Block struct {
	Type     BlockType `json:"type"`
	Text     string    `json:"text,omitempty"`
	Level    int       `json:"level,omitempty"`
	Language string    `json:"language,omitempty"`
	Key      string    `json:"key,omitempty"`
	Caption  string    `json:"caption,omitempty"`
}

// PostModel is a blog post.
type PostModel struct {
	Base
	Title       string     `json:"title"        gorm:"not null"`
	Slug        string     `json:"slug"         gorm:"size:191;uniqueIndex;not null"`
	Status      PostStatus `json:"status"       gorm:"size:16;index;not null;default:'draft'"`
	Body        []Block    `json:"body"         gorm:"type:longtext;serializer:json"`
	CoverKey    string     `json:"cover_key"    gorm:"size:512"`
	ViewCount   int64      `json:"view_count"   gorm:"column:view_count;not null;default:0"`
	PublishedAt *time.Time `json:"published_at" gorm:"index"`
}

func (PostModel) TableName() string { return "posts" }

// ReferencedKeys returns the cover key and every image block key, in body
// order, without duplicates or empty entries.
func (p PostModel) ReferencedKeys() []string {
	seen := make(map[string]struct{}, len(p.Body)+1)
	keys := make([]string, 0, len(p.Body)+1)
	add := func(key string) {
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	add(p.CoverKey)
	for _, b := range p.Body {
		if b.Type == BlockImage {
			add(b.Key)
		}
	}
	return keys
}
