package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fable/pkg/schema"
)

// Overlapping requests hit the story store from separate goroutines; the
// accessors must serialize access (unguarded map writes are a fatal runtime
// error, not a recoverable race).
func TestStoryStoreConcurrentAccess(t *testing.T) {
	s := &Server{Stories: make(map[string]schema.StoredStory)}

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			s.putStory(schema.StoredStory{ID: fmt.Sprintf("story-%d", i)})
		}(i)
		go func() {
			defer wg.Done()
			_ = s.snapshotStories()
			_ = s.storyCount()
		}()
		go func(i int) {
			defer wg.Done()
			if record, ok := s.getStory(fmt.Sprintf("story-%d", i)); ok {
				_ = record.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, s.storyCount())
}

func TestStoryStoreSnapshotIsDetached(t *testing.T) {
	s := &Server{Stories: make(map[string]schema.StoredStory)}
	s.putStory(schema.StoredStory{ID: "a"})

	snap := s.snapshotStories()
	s.removeStory("a")

	require.Len(t, snap, 1, "snapshot keeps its entries after a store delete")
	assert.Equal(t, 0, s.storyCount())
}

func TestStoryStoreRemoveIsIdempotent(t *testing.T) {
	s := &Server{Stories: make(map[string]schema.StoredStory)}
	s.putStory(schema.StoredStory{ID: "a"})

	s.removeStory("missing")
	s.removeStory("a")
	s.removeStory("a")

	_, ok := s.getStory("a")
	assert.False(t, ok)
}
