package readings

import (
	"context"
)

// RawRecord is one loosely-shaped record as decoded from a feed.
type RawRecord map[string]any

// RawList is the envelope both feeds return.
type RawList struct {
	Items []RawRecord `json:"items"`
}

// Fetcher abstracts a reading source (station feed, user-point feed).
// Implementations bound their own latency; the engine imposes no timeout.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) (RawList, error)
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc struct {
	SourceName string
	Fn         func(ctx context.Context) (RawList, error)
}

func (f FetchFunc) Name() string { return f.SourceName }

func (f FetchFunc) Fetch(ctx context.Context) (RawList, error) { return f.Fn(ctx) }

// SnapshotStore is the contract the snapshot cache must satisfy.
// Read returns (nil, nil) when nothing has been written yet.
type SnapshotStore interface {
	Read(ctx context.Context) (*CacheEntry, error)
	Write(ctx context.Context, entry CacheEntry) error
}
