package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferencedKeys(t *testing.T) {
	post := PostModel{
		CoverKey: "blog/covers/01A-cover.png",
		Body: []Block{
			{Type: BlockParagraph, Text: "hello"},
			{Type: BlockImage, Key: "blog/01B-a.png"},
			{Type: BlockImage, Key: ""},
			{Type: BlockImage, Key: "blog/01B-a.png"},
			{Type: BlockQuote, Key: "blog/ignored.png"},
			{Type: BlockImage, Key: "blog/01C-b.png"},
		},
	}

	assert.Equal(t, []string{
		"blog/covers/01A-cover.png",
		"blog/01B-a.png",
		"blog/01C-b.png",
	}, post.ReferencedKeys())

	assert.Empty(t, PostModel{}.ReferencedKeys())
}

func TestPostStatusValid(t *testing.T) {
	assert.True(t, PostDraft.Valid())
	assert.True(t, PostPublished.Valid())
	assert.True(t, PostArchived.Valid())
	assert.False(t, PostStatus("deleted").Valid())
}
