package fetchcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemStore is the in-process store used when no Redis address is configured.
// The LRU bound is generous for this service's key space (one list key plus
// one key per distinct id/history query) and only guards against pathological
// callers.
type MemStore struct {
	lru *expirable.LRU[string, []byte]
}

const defaultMemEntries = 512

// NewMemStore builds a store whose entries expire after ttl. The expirable
// LRU fixes its TTL at construction, so the per-call ttl in Set is ignored;
// the cache always writes with the same TTL anyway.
func NewMemStore(ttl time.Duration, maxEntries int) *MemStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultMemEntries
	}
	return &MemStore{lru: expirable.NewLRU[string, []byte](maxEntries, nil, ttl)}
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *MemStore) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.lru.Add(key, val)
	return nil
}

func (m *MemStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.lru.Remove(k)
	}
	return nil
}
