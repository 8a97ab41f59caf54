package buffercache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audioload/internal/media"
)

func testBuffer(contentID string) *media.Buffer {
	return &media.Buffer{
		ContentID:   contentID,
		Data:        make([]float32, 1024),
		SampleRate:  48000,
		NumChannels: 1,
		BitDepth:    16,
		DecodedAt:   time.Now(),
	}
}

func TestStore_PutAndLookup(t *testing.T) {
	t.Parallel()
	store := New(DefaultConfig(), nil)

	buf := testBuffer("clip-1")
	store.Put("clip-1", buf)

	got, ok := store.Lookup("clip-1")
	require.True(t, ok)
	assert.Same(t, buf, got)

	_, ok = store.Lookup("clip-2")
	assert.False(t, ok)
}

func TestStore_EmptyIdentifier(t *testing.T) {
	t.Parallel()
	store := New(DefaultConfig(), nil)

	store.Put("", testBuffer(""))
	_, ok := store.Lookup("")
	assert.False(t, ok)
	assert.Equal(t, 0, store.ItemCount())
}

func TestStore_NilBufferIgnored(t *testing.T) {
	t.Parallel()
	store := New(DefaultConfig(), nil)

	store.Put("clip-1", nil)
	_, ok := store.Lookup("clip-1")
	assert.False(t, ok)
}

func TestStore_PutOverwrites(t *testing.T) {
	t.Parallel()
	store := New(DefaultConfig(), nil)

	first := testBuffer("clip-1")
	second := testBuffer("clip-1")
	store.Put("clip-1", first)
	store.Put("clip-1", second)

	got, ok := store.Lookup("clip-1")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestStore_Expiry(t *testing.T) {
	t.Parallel()
	store := New(Config{TTL: 20 * time.Millisecond, CleanupInterval: time.Minute}, nil)

	store.Put("clip-1", testBuffer("clip-1"))
	_, ok := store.Lookup("clip-1")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	_, ok = store.Lookup("clip-1")
	assert.False(t, ok)
}

func TestStore_DeleteAndFlush(t *testing.T) {
	t.Parallel()
	store := New(DefaultConfig(), nil)

	store.Put("clip-1", testBuffer("clip-1"))
	store.Put("clip-2", testBuffer("clip-2"))
	require.Equal(t, 2, store.ItemCount())

	store.Delete("clip-1")
	_, ok := store.Lookup("clip-1")
	assert.False(t, ok)
	assert.Equal(t, 1, store.ItemCount())

	store.Flush()
	assert.Equal(t, 0, store.ItemCount())
}

func TestStore_MemoryUsage(t *testing.T) {
	t.Parallel()
	store := New(DefaultConfig(), nil)

	assert.Equal(t, 0, store.MemoryUsage())

	store.Put("clip-1", testBuffer("clip-1"))
	assert.Greater(t, store.MemoryUsage(), 4096, "sample data alone is 4 KiB")
}
