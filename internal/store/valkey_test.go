package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/valkey-io/valkey-go"
	"github.com/valkey-io/valkey-go/mock"
	"go.uber.org/mock/gomock"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
)

func newMockValkey(t *testing.T) (*ValkeyKV, *mock.Client) {
	t.Helper()
	client := mock.NewClient(gomock.NewController(t))
	return &ValkeyKV{client: client}, client
}

func TestValkeyGetItemsSkipsMissingKeys(t *testing.T) {
	kv, client := newMockValkey(t)
	client.EXPECT().
		Do(gomock.Any(), mock.Match("MGET", "glow:markers", "glow:captured_at")).
		Return(mock.Result(mock.ValkeyArray(mock.ValkeyString("[]"), mock.ValkeyNil())))

	got, err := kv.GetItems(context.Background(), "glow:markers", "glow:captured_at")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got["glow:markers"] != "[]" {
		t.Errorf("expected only the present key, got %v", got)
	}
}

func TestValkeyGetItemsError(t *testing.T) {
	kv, client := newMockValkey(t)
	client.EXPECT().
		Do(gomock.Any(), mock.Match("MGET", "k")).
		Return(mock.ErrorResult(errors.New("connection refused")))

	if _, err := kv.GetItems(context.Background(), "k"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestValkeyGetItemsNoKeys(t *testing.T) {
	kv, _ := newMockValkey(t)

	got, err := kv.GetItems(context.Background())
	if err != nil || len(got) != 0 {
		t.Errorf("expected an empty result without a round trip, got %v, %v", got, err)
	}
}

func TestValkeySetItemsSendsOneMset(t *testing.T) {
	kv, client := newMockValkey(t)
	client.EXPECT().
		Do(gomock.Any(), mock.Match("MSET", "a", "1", "b", "2")).
		Return(mock.Result(mock.ValkeyString("OK")))

	if err := kv.SetItems(context.Background(), map[string]string{"b": "2", "a": "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := kv.SetItems(context.Background(), nil); err != nil {
		t.Errorf("empty write should be a no-op, got %v", err)
	}
}

func TestValkeySetItemsError(t *testing.T) {
	kv, client := newMockValkey(t)
	client.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.ErrorResult(valkey.ErrClosing))

	if err := kv.SetItems(context.Background(), map[string]string{"a": "1"}); !errors.Is(err, valkey.ErrClosing) {
		t.Errorf("expected ErrClosing, got %v", err)
	}
}

func TestSnapshotCacheOnValkey(t *testing.T) {
	kv, client := newMockValkey(t)
	cache := NewSnapshotCache(kv, "glow")

	at := time.Date(2026, 7, 1, 15, 0, 0, 0, time.UTC)
	client.EXPECT().
		Do(gomock.Any(), mock.Match("MSET", "glow:captured_at", at.Format(time.RFC3339Nano), "glow:markers", "[]")).
		Return(mock.Result(mock.ValkeyString("OK")))

	if err := cache.Write(context.Background(), readings.CacheEntry{Snapshot: readings.MarkerSet{}, CapturedAt: at}); err != nil {
		t.Fatalf("write: %v", err)
	}
}
