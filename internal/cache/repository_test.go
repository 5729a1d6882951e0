package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache(16, time.Hour)

	c.SetEx("k", []byte(`"v"`), 10*time.Millisecond)
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("k")
	require.False(t, ok, "entry should expire after its TTL")
}

func TestRepositoryWriteThrough(t *testing.T) {
	repo := NewRepository(NewLRUCache(16, time.Hour), time.Hour, WriteThrough)

	repo.AfterWrite("k", payload{Name: "a", Count: 1})

	var got payload
	require.True(t, repo.Get("k", &got))
	require.Equal(t, payload{Name: "a", Count: 1}, got)
}

func TestRepositoryInvalidateOnWrite(t *testing.T) {
	repo := NewRepository(NewLRUCache(16, time.Hour), time.Hour, InvalidateOnWrite)

	repo.Put("k", payload{Name: "stale", Count: 1})
	repo.AfterWrite("k", payload{Name: "fresh", Count: 2})

	var got payload
	require.False(t, repo.Get("k", &got), "write must drop the entry, not refresh it")
}

func TestRepositoryMalformedEntryIsMiss(t *testing.T) {
	c := NewLRUCache(16, time.Hour)
	repo := NewRepository(c, time.Hour, WriteThrough)

	c.SetEx("k", []byte("{not json"), time.Hour)

	var got payload
	require.False(t, repo.Get("k", &got))
	_, ok := c.Get("k")
	require.False(t, ok, "malformed entry should be evicted")
}

func TestCacheKeys(t *testing.T) {
	require.Equal(t, "session:s1", SessionKey("s1"))
	require.Equal(t, "session:s1:annotations", SessionAnnotationsKey("s1"))
}
