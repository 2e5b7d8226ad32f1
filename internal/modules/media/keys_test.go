package media

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysNewFollowsGrammar(t *testing.T) {
	keys := NewKeys("/blog/")

	cover := keys.New(KindCover, "My Holiday Pic!!.PNG")
	require.NoError(t, keys.Validate(cover))
	assert.True(t, strings.HasPrefix(cover, "blog/covers/"))
	assert.True(t, strings.HasSuffix(cover, "-my-holiday-pic.png"))
	assert.Equal(t, "blog/covers", FolderOf(cover))

	block := keys.New(KindBlock, "../../etc/passwd")
	require.NoError(t, keys.Validate(block))
	assert.Equal(t, "blog", FolderOf(block))
	assert.True(t, strings.HasSuffix(block, "-passwd"))

	assert.NotEqual(t, keys.New(KindBlock, "a.png"), keys.New(KindBlock, "a.png"))
}

func TestKeysValidateRejects(t *testing.T) {
	keys := NewKeys("blog")
	valid := keys.New(KindBlock, "a.png")
	id := strings.TrimPrefix(valid, "blog/")

	for _, key := range []string{
		"",
		"/" + valid,
		"other/" + id,
		"blog/../" + id,
		"blog\\" + id,
		"blog//" + id,
		"blog/x/" + id,
		"blog/not-a-ulid.png",
		"blogger/" + id,
		"blog/" + strings.ToLower(id),
	} {
		assert.ErrorIs(t, keys.Validate(key), ErrInvalidKey, "key %q", key)
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"Photo.PNG":          "photo.png",
		"  spaced  name.jpg": "spaced-name.jpg",
		"日本.gif":             "image.gif",
		"noext":              "noext",
		"weird.ex!t":         "weird",
		"C:\\tmp\\x.webp":    "x.webp",
		"a--b__c.png":        "a-b__c.png",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeFileName(in), "input %q", in)
	}

	long := sanitizeFileName(strings.Repeat("a", 200) + ".jpeg")
	assert.Len(t, long, maxFileNameSize)
	assert.True(t, strings.HasSuffix(long, ".jpeg"))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("COVER")
	require.NoError(t, err)
	assert.Equal(t, KindCover, k)

	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindBlock, k)

	_, err = ParseKind("avatar")
	assert.ErrorIs(t, err, ErrInvalidUpload)
}
