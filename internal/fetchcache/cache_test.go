package fetchcache_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/judev34/parking-montpellier-app/internal/fetchcache"
	"github.com/judev34/parking-montpellier-app/internal/fetchcache/redisstore"
)

const listURL = "https://example.test/offstreetparking?limit=1000"

func countingFetch(calls *int, body string, err error) fetchcache.FetchFunc {
	return func(context.Context) ([]byte, error) {
		*calls++
		if err != nil {
			return nil, err
		}
		return []byte(body), nil
	}
}

func TestGetOrFetch_SecondCallServedFromCache(t *testing.T) {
	ctx := context.Background()
	c := fetchcache.New(fetchcache.NewMemStore(time.Minute, 0), time.Minute)

	calls := 0
	fetch := countingFetch(&calls, `[{"id":"urn:ngsi-ld:parking:1"}]`, nil)

	body, status, err := c.GetOrFetch(ctx, listURL, fetch)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if status != fetchcache.StatusMiss {
		t.Fatalf("first call status=%q", status)
	}

	again, status, err := c.GetOrFetch(ctx, listURL, fetch)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if status != fetchcache.StatusHit {
		t.Fatalf("second call status=%q", status)
	}
	if calls != 1 {
		t.Fatalf("remote called %d times, want 1", calls)
	}
	if string(body) != string(again) {
		t.Fatalf("cached value differs: %q vs %q", body, again)
	}
}

func TestGetOrFetch_FailuresAreNotCached(t *testing.T) {
	ctx := context.Background()
	c := fetchcache.New(fetchcache.NewMemStore(time.Minute, 0), time.Minute)

	calls := 0
	boom := errors.New("upstream down")
	fetch := func(context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return []byte("ok"), nil
	}

	if _, _, err := c.GetOrFetch(ctx, listURL, fetch); !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	body, _, err := c.GetOrFetch(ctx, listURL, fetch)
	if err != nil || string(body) != "ok" {
		t.Fatalf("retry should hit upstream again: body=%q err=%v", body, err)
	}
	if calls != 2 {
		t.Fatalf("remote called %d times, want 2", calls)
	}
}

func TestGetOrFetch_TTLExpiryTriggersRefetch(t *testing.T) {
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer func() { _ = rc.Close() }()

	c := fetchcache.New(rc, fetchcache.DefaultTTL)

	calls := 0
	fetch := countingFetch(&calls, "payload", nil)

	for i := 0; i < 3; i++ {
		if _, _, err := c.GetOrFetch(ctx, listURL, fetch); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("within TTL: remote called %d times, want 1", calls)
	}

	mr.FastForward(fetchcache.DefaultTTL + time.Second)

	if _, status, err := c.GetOrFetch(ctx, listURL, fetch); err != nil || status != fetchcache.StatusMiss {
		t.Fatalf("after TTL: status=%q err=%v", status, err)
	}
	if calls != 2 {
		t.Fatalf("after TTL: remote called %d times, want 2", calls)
	}
}

func TestInvalidate_DropsEntry(t *testing.T) {
	ctx := context.Background()
	c := fetchcache.New(fetchcache.NewMemStore(time.Minute, 0), time.Minute)

	calls := 0
	fetch := countingFetch(&calls, "payload", nil)

	if _, _, err := c.GetOrFetch(ctx, listURL, fetch); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if err := c.Invalidate(ctx, listURL); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, status, _ := c.GetOrFetch(ctx, listURL, fetch); status != fetchcache.StatusMiss {
		t.Fatalf("expected miss after invalidation, got %q", status)
	}
	if calls != 2 {
		t.Fatalf("remote called %d times, want 2", calls)
	}
}

func TestKey_StableAndDistinct(t *testing.T) {
	a := fetchcache.Key(listURL)
	if a != fetchcache.Key(listURL) {
		t.Fatal("key derivation is not deterministic")
	}
	b := fetchcache.Key(listURL + "&id=urn:ngsi-ld:parking:42")
	if a == b {
		t.Fatal("different URLs must map to different keys")
	}
	if !strings.HasPrefix(a, "fetch:") {
		t.Fatalf("key missing namespace prefix: %q", a)
	}
	long := fetchcache.Key(listURL + strings.Repeat("&x=1", 200))
	if len(long) > 220 {
		t.Fatalf("key echo not truncated: len=%d", len(long))
	}
}
