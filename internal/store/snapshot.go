package store

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
)

// Key suffixes for the two cached values.
const (
	snapshotKeySuffix   = ":markers"
	capturedAtKeySuffix = ":captured_at"
)

// SnapshotCache persists the last published marker set and its capture time
// as two keys written together.
type SnapshotCache struct {
	kv     KV
	prefix string
	now    func() time.Time
}

// NewSnapshotCache creates a cache over kv. prefix namespaces the keys.
func NewSnapshotCache(kv KV, prefix string) *SnapshotCache {
	if prefix == "" {
		prefix = "glow"
	}
	return &SnapshotCache{kv: kv, prefix: prefix, now: time.Now}
}

func (c *SnapshotCache) snapshotKey() string   { return c.prefix + snapshotKeySuffix }
func (c *SnapshotCache) capturedAtKey() string { return c.prefix + capturedAtKeySuffix }

// Write replaces the cached entry.
func (c *SnapshotCache) Write(ctx context.Context, entry readings.CacheEntry) error {
	data, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %v", readings.ErrCacheUnavailable, err)
	}

	items := map[string]string{
		c.snapshotKey():   string(data),
		c.capturedAtKey(): entry.CapturedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := c.kv.SetItems(ctx, items); err != nil {
		return fmt.Errorf("%w: %v", readings.ErrCacheUnavailable, err)
	}
	return nil
}

// Read returns the cached entry, or nil when either key is missing.
func (c *SnapshotCache) Read(ctx context.Context) (*readings.CacheEntry, error) {
	items, err := c.kv.GetItems(ctx, c.snapshotKey(), c.capturedAtKey())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", readings.ErrCacheUnavailable, err)
	}

	raw, okSnap := items[c.snapshotKey()]
	ts, okTS := items[c.capturedAtKey()]
	if !okSnap || !okTS {
		return nil, nil
	}

	capturedAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: parse capture time: %v", readings.ErrCacheUnavailable, err)
	}

	var ms readings.MarkerSet
	if err := json.Unmarshal([]byte(raw), &ms); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", readings.ErrCacheUnavailable, err)
	}

	return &readings.CacheEntry{Snapshot: ms, CapturedAt: capturedAt}, nil
}

// IsFresh reports whether entry is younger than ttl.
func (c *SnapshotCache) IsFresh(entry *readings.CacheEntry, ttl time.Duration) bool {
	return readings.IsFresh(entry, ttl, c.now())
}
