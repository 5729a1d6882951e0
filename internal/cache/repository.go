package cache

import (
	"encoding/json"
	"time"

	"github.com/peercode-live/peercode-go-collab-server/internal/logger"
)

// Policy selects what happens to a cache entry after a successful store
// write for its key.
type Policy int

const (
	// WriteThrough refreshes the entry with the written value.
	WriteThrough Policy = iota
	// InvalidateOnWrite drops the entry and lets the next read repopulate.
	InvalidateOnWrite
)

// Repository is the single get/put/invalidate surface services use, so
// session and annotation caching differ only in the policy parameter.
// Cache failures degrade to store reads and are never surfaced.
type Repository struct {
	cache  Cache
	ttl    time.Duration
	policy Policy
}

func NewRepository(cache Cache, ttl time.Duration, policy Policy) *Repository {
	return &Repository{cache: cache, ttl: ttl, policy: policy}
}

// Get deserializes the cached entry into out. A malformed entry is
// treated as a miss and evicted.
func (r *Repository) Get(key string, out any) bool {
	raw, ok := r.cache.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		logger.WarnF("Fail to decode cache entry %s, evicting, details: %v", key, err)
		r.cache.Del(key)
		return false
	}
	return true
}

func (r *Repository) Put(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.WarnF("Fail to encode cache entry %s, details: %v", key, err)
		return
	}
	r.cache.SetEx(key, raw, r.ttl)
}

func (r *Repository) Invalidate(keys ...string) {
	r.cache.Del(keys...)
}

// AfterWrite applies the repository's policy once the store write for key
// has succeeded. It must not be called on store failure, so the cache
// never diverges ahead of the store.
func (r *Repository) AfterWrite(key string, value any) {
	switch r.policy {
	case WriteThrough:
		r.Put(key, value)
	case InvalidateOnWrite:
		r.Invalidate(key)
	}
}
