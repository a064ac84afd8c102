package sketch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *memStore) Set(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append([]byte(nil), data...)
	s.sets++
	return nil
}

func (s *memStore) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

func TestManagerInitFresh(t *testing.T) {
	m := NewManager(newMemStore())
	require.NoError(t, m.Init(context.Background()))

	stats := m.Snapshot()
	assert.Zero(t, stats.IndexedURLs)
	assert.Zero(t, stats.UniqueTemplates)
}

func TestManagerPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	m1 := NewManager(store)
	require.NoError(t, m1.Init(ctx))
	m1.MarkIndexed("https://example.com/page")
	m1.TrackTemplate("tmpl-1")
	m1.TrackTemplate("tmpl-2")
	m1.TrackColor("#FF0000")
	m1.TrackPattern("color:red;margin:0")
	require.NoError(t, m1.Save(ctx))

	m2 := NewManager(store)
	require.NoError(t, m2.Init(ctx))

	assert.True(t, m2.MaybeIndexed("https://example.com/page"))
	assert.False(t, m2.MaybeIndexed("https://other.example.org/x"))

	stats := m2.Snapshot()
	assert.Equal(t, uint64(1), stats.IndexedURLs)
	assert.Equal(t, uint64(2), stats.UniqueTemplates)
	assert.Equal(t, uint64(1), stats.UniqueColors)
	assert.Equal(t, uint64(1), stats.UniquePatterns)
}

func TestManagerSaveSkipsWhenClean(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	m := NewManager(store)
	require.NoError(t, m.Init(ctx))
	require.NoError(t, m.Save(ctx))
	after := store.setCount()

	// Nothing changed; a second save must not touch the store.
	require.NoError(t, m.Save(ctx))
	assert.Equal(t, after, store.setCount())

	m.TrackTemplate("t")
	require.NoError(t, m.Save(ctx))
	assert.Greater(t, store.setCount(), after)
}

func TestManagerSaveMergesConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	m1 := NewManager(store)
	require.NoError(t, m1.Init(ctx))
	m2 := NewManager(store)
	require.NoError(t, m2.Init(ctx))

	m1.MarkIndexed("https://a.example.com")
	m2.MarkIndexed("https://b.example.com")

	require.NoError(t, m1.Save(ctx))
	require.NoError(t, m2.Save(ctx))

	// A third instance must see both URLs even though m2 never saw m1's
	// in-memory state: Save merges with the persisted filter first.
	m3 := NewManager(store)
	require.NoError(t, m3.Init(ctx))
	assert.True(t, m3.MaybeIndexed("https://a.example.com"))
	assert.True(t, m3.MaybeIndexed("https://b.example.com"))
}

func TestManagerSaveKeepsURLCountExact(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	m1 := NewManager(store)
	require.NoError(t, m1.Init(ctx))
	m1.MarkIndexed("https://a.example.com/1")
	m1.MarkIndexed("https://a.example.com/2")
	m1.MarkIndexed("https://a.example.com/3")
	require.NoError(t, m1.Save(ctx))

	m2 := NewManager(store)
	require.NoError(t, m2.Init(ctx))
	m2.MarkIndexed("https://b.example.com/1")
	require.NoError(t, m2.Save(ctx))

	// The second instance loaded the persisted count as its own baseline, so
	// saving must not add that baseline back on top of the persisted state.
	m3 := NewManager(store)
	require.NoError(t, m3.Init(ctx))
	assert.Equal(t, uint64(4), m3.Snapshot().IndexedURLs)
}

func TestManagerRepeatedFlushesDoNotInflateURLCount(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	m := NewManager(store)
	require.NoError(t, m.Init(ctx))
	m.MarkIndexed("https://a.example.com")
	require.NoError(t, m.Save(ctx))

	// Dirty the state without touching the Bloom filter and flush again.
	m.TrackTemplate("t")
	require.NoError(t, m.Save(ctx))
	m.TrackTemplate("u")
	require.NoError(t, m.Save(ctx))

	fresh := NewManager(store)
	require.NoError(t, fresh.Init(ctx))
	assert.Equal(t, uint64(1), fresh.Snapshot().IndexedURLs)
}

func TestManagerURLNormalization(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemStore())
	require.NoError(t, m.Init(ctx))

	m.MarkIndexed("https://www.Example.com/pricing/")

	assert.True(t, m.MaybeIndexed("http://example.com/pricing"))
	assert.True(t, m.MaybeIndexed("EXAMPLE.COM/pricing/"))
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.Example.com/Page/", "example.com/page"},
		{"http://example.com", "example.com"},
		{"example.com/x", "example.com/x"},
		{"  https://a.b/  ", "a.b"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), "input %q", tt.in)
	}
}
