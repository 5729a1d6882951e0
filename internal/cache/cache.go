// Package cache provides the process-local TTL key-value cache fronting
// the durable store. Values are opaque JSON; a lost or stale entry is
// never an error, only a read-through.
package cache

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Cache interface {
	Get(key string) ([]byte, bool)
	SetEx(key string, value []byte, ttl time.Duration)
	Del(keys ...string)
}

func SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func SessionAnnotationsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:annotations", sessionID)
}

type entry struct {
	value    []byte
	deadline time.Time
}

// LRUCache bounds memory with an expirable LRU while honoring per-entry
// TTLs shorter than the LRU-wide one.
type LRUCache struct {
	lru *expirable.LRU[string, entry]
}

func NewLRUCache(size int, defaultTTL time.Duration) *LRUCache {
	return &LRUCache{
		lru: expirable.NewLRU[string, entry](size, nil, defaultTTL),
	}
}

func (c *LRUCache) Get(key string) ([]byte, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.deadline) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *LRUCache) SetEx(key string, value []byte, ttl time.Duration) {
	c.lru.Add(key, entry{value: value, deadline: time.Now().Add(ttl)})
}

func (c *LRUCache) Del(keys ...string) {
	for _, key := range keys {
		c.lru.Remove(key)
	}
}
