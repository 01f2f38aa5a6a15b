// Package sources implements the HTTP fetch collaborators for the station
// feed and the user-point feed.
package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/logging"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
)

const (
	StationFeedName   = "stations"
	UserPointFeedName = "user-points"

	maxBodyBytes = 16 << 20
)

// FeedConfig configures one HTTP feed. Zero Backoff means DefaultBackoff.
type FeedConfig struct {
	Name    string
	URL     string
	Client  *http.Client
	Backoff BackoffConfig
}

// Feed fetches a list of raw records from a JSON endpoint. It implements
// readings.Fetcher.
type Feed struct {
	name    string
	url     string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewFeed creates a feed with its own circuit breaker.
func NewFeed(cfg FeedConfig) *Feed {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoff
	}

	log := logging.With("sources")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("feed", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &Feed{
		name:    cfg.Name,
		url:     cfg.URL,
		httpCfg: HTTPClientConfig{Client: cfg.Client, Backoff: cfg.Backoff},
		circuit: cb,
	}
}

// NewStationFeed creates the fetcher for the monitoring-station feed.
func NewStationFeed(url string, client *http.Client) *Feed {
	return NewFeed(FeedConfig{Name: StationFeedName, URL: url, Client: client})
}

// NewUserPointFeed creates the fetcher for user-submitted points.
func NewUserPointFeed(url string, client *http.Client) *Feed {
	return NewFeed(FeedConfig{Name: UserPointFeedName, URL: url, Client: client})
}

func (f *Feed) Name() string {
	return f.name
}

// Fetch downloads and decodes the feed. Both an {"items": [...]} envelope
// and a bare array are accepted.
func (f *Feed) Fetch(ctx context.Context) (readings.RawList, error) {
	if f.url == "" {
		return readings.RawList{}, fmt.Errorf("%s: feed url not configured", f.name)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, f.httpCfg, f.circuit, buildRequest)
	if err != nil {
		return readings.RawList{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return readings.RawList{}, fmt.Errorf("%s: read body: %w", f.name, err)
	}
	return decodeRawList(body)
}

func decodeRawList(body []byte) (readings.RawList, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []readings.RawRecord
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return readings.RawList{}, fmt.Errorf("decode feed: %w", err)
		}
		return readings.RawList{Items: items}, nil
	}

	var list readings.RawList
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return readings.RawList{}, fmt.Errorf("decode feed: %w", err)
	}
	return list, nil
}
