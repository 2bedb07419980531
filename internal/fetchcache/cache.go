// Package fetchcache memoizes upstream read responses for a short TTL keyed
// by request identity (the fully-formed URL).
package fetchcache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/judev34/parking-montpellier-app/internal/observability"
)

// DefaultTTL is the validity window for cached responses.
const DefaultTTL = 120 * time.Second

type Status string

const (
	StatusHit  Status = "hit"
	StatusMiss Status = "miss"
)

// Store is a TTL'd byte store. Entries are immutable once written; a new Set
// for the same key fully replaces the previous entry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type FetchFunc func(ctx context.Context) ([]byte, error)

type Cache struct {
	store Store
	ttl   time.Duration
}

func New(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl}
}

// GetOrFetch returns the cached response for url when one is still valid,
// otherwise runs fetch, stores the result under the same identity and returns
// it. Fetch failures propagate and are never cached. Store errors degrade to
// a plain fetch: a broken cache must not take the read path down.
func (c *Cache) GetOrFetch(ctx context.Context, url string, fetch FetchFunc) ([]byte, Status, error) {
	key := Key(url)

	if v, ok, err := c.store.Get(ctx, key); err == nil && ok {
		observability.IncCacheHit()
		return v, StatusHit, nil
	}
	observability.IncCacheMiss()

	body, err := fetch(ctx)
	if err != nil {
		return nil, StatusMiss, err
	}
	// A failed write only costs a refetch next time; the value still serves.
	_ = c.store.Set(ctx, key, body, c.ttl)
	return body, StatusMiss, nil
}

// Invalidate drops the entries for the given request identities.
func (c *Cache) Invalidate(ctx context.Context, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}
	keys := make([]string, 0, len(urls))
	for _, u := range urls {
		keys = append(keys, Key(u))
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("cache del %d keys: %w", len(keys), err)
	}
	return nil
}

// Key derives the store key for a request URL: a sanitized, truncated echo of
// the URL for operator readability plus a hash of the exact identity.
func Key(rawURL string) string {
	safe := sanitizeForKey(strings.TrimSpace(rawURL))

	const maxEchoLen = 160
	if len(safe) > maxEchoLen {
		safe = safe[:maxEchoLen]
	}

	sum := xxhash.Sum64String(rawURL)
	return fmt.Sprintf("fetch:%s:u=%016x", safe, sum)
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '=' || r == '.' || r == '/':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
