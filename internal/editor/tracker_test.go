package editor

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker(t *testing.T) {
	tr := NewTracker()
	tr.Record("a")
	tr.Record("b")
	tr.Record("a")
	tr.Record("")
	assert.Equal(t, []string{"a", "b"}, tr.PendingKeys())
	assert.True(t, tr.Contains("a"))

	tr.Release("a")
	tr.Release("missing")
	assert.Equal(t, []string{"b"}, tr.PendingKeys())
	assert.False(t, tr.Contains("a"))

	tr.ReleaseAll()
	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.PendingKeys())

	tr.Record("c")
	assert.Equal(t, []string{"c"}, tr.PendingKeys())
}

func TestTrackerConcurrentRecord(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Record(fmt.Sprintf("k%d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, tr.Len())
}
