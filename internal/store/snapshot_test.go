package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
)

type failingKV struct{ err error }

func (f failingKV) GetItems(context.Context, ...string) (map[string]string, error) {
	return nil, f.err
}
func (f failingKV) SetItems(context.Context, map[string]string) error { return f.err }
func (f failingKV) Close() error                                      { return nil }

func sampleEntry() readings.CacheEntry {
	at := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	station := readings.Reading{
		ID: "s1", Label: "Cherry Beach", Lat: 43.6366, Lon: -79.3444,
		TemperatureC: 21, ObservedAt: at, Origin: readings.OriginStation,
	}
	u1 := readings.Reading{ID: "u1", Lat: 43.6400, Lon: -79.3800, TemperatureC: 18, ObservedAt: at, Origin: readings.OriginUser}
	u2 := readings.Reading{ID: "u2", Lat: 43.6401, Lon: -79.3799, TemperatureC: 19, ObservedAt: at.Add(time.Hour), Origin: readings.OriginUser}

	ms, err := readings.BuildMarkerSet([]readings.Reading{station}, []readings.Reading{u1, u2}, 1)
	if err != nil {
		panic(err)
	}
	return readings.CacheEntry{Snapshot: ms, CapturedAt: at}
}

func TestSnapshotCache_RoundTrip(t *testing.T) {
	cache := NewSnapshotCache(NewMemoryKV(), "test")
	ctx := context.Background()

	entry := sampleEntry()
	if err := cache.Write(ctx, entry); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := cache.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry, got nil")
	}
	if !got.CapturedAt.Equal(entry.CapturedAt) {
		t.Errorf("capturedAt = %v, want %v", got.CapturedAt, entry.CapturedAt)
	}
	if !reflect.DeepEqual(got.Snapshot, entry.Snapshot) {
		t.Errorf("snapshot mismatch:\n got  %+v\n want %+v", got.Snapshot, entry.Snapshot)
	}
}

func TestSnapshotCache_ReadEmpty(t *testing.T) {
	cache := NewSnapshotCache(NewMemoryKV(), "")
	got, err := cache.Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil entry, got %+v", got)
	}
}

func TestSnapshotCache_Overwrite(t *testing.T) {
	cache := NewSnapshotCache(NewMemoryKV(), "test")
	ctx := context.Background()

	first := sampleEntry()
	second := readings.CacheEntry{Snapshot: readings.MarkerSet{}, CapturedAt: first.CapturedAt.Add(time.Minute)}

	if err := cache.Write(ctx, first); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := cache.Write(ctx, second); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := cache.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Snapshot) != 0 || !got.CapturedAt.Equal(second.CapturedAt) {
		t.Fatalf("expected second entry, got %+v", got)
	}
}

func TestSnapshotCache_StorageFailure(t *testing.T) {
	cache := NewSnapshotCache(failingKV{err: errors.New("disk full")}, "test")
	ctx := context.Background()

	if err := cache.Write(ctx, sampleEntry()); !errors.Is(err, readings.ErrCacheUnavailable) {
		t.Errorf("write error = %v, want ErrCacheUnavailable", err)
	}
	if _, err := cache.Read(ctx); !errors.Is(err, readings.ErrCacheUnavailable) {
		t.Errorf("read error = %v, want ErrCacheUnavailable", err)
	}
}

func TestSnapshotCache_IsFresh(t *testing.T) {
	cache := NewSnapshotCache(NewMemoryKV(), "test")
	captured := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	entry := &readings.CacheEntry{CapturedAt: captured}
	ttl := 5 * time.Minute

	cache.now = func() time.Time { return captured.Add(4 * time.Minute) }
	if !cache.IsFresh(entry, ttl) {
		t.Error("expected entry to be fresh after 4 minutes")
	}

	cache.now = func() time.Time { return captured.Add(6 * time.Minute) }
	if cache.IsFresh(entry, ttl) {
		t.Error("expected entry to be stale after 6 minutes")
	}

	if cache.IsFresh(nil, ttl) {
		t.Error("nil entry is never fresh")
	}
}
