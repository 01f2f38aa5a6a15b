// Package locate resolves a user-supplied place into a reference position
// for distance filtering and sorting.
package locate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/geo"
)

// ErrLocationUnavailable is returned when a query cannot be turned into a position.
var ErrLocationUnavailable = errors.New("location unavailable")

// Locator resolves a free-form query ("43.64,-79.38" or an address).
type Locator interface {
	Resolve(ctx context.Context, query string) (geo.Position, error)
}

// Coordinates resolves only "lat,lon" queries.
type Coordinates struct{}

func (Coordinates) Resolve(_ context.Context, query string) (geo.Position, error) {
	if p, ok := ParseCoordinates(query); ok {
		return p, nil
	}
	return geo.Position{}, fmt.Errorf("%w: %q is not a coordinate pair", ErrLocationUnavailable, query)
}

// ParseCoordinates parses "lat,lon" into a valid position.
func ParseCoordinates(query string) (geo.Position, bool) {
	latStr, lonStr, ok := strings.Cut(query, ",")
	if !ok {
		return geo.Position{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geo.Position{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return geo.Position{}, false
	}
	p := geo.Position{Lat: lat, Lon: lon}
	return p, p.Valid()
}

type geocodeFunc func(geocoder.Address) (geocoder.Location, error)

// GeocodeLocator resolves addresses through the Google geocoding API.
// Coordinate pairs are parsed locally. Successful lookups are memoized.
type GeocodeLocator struct {
	geocode geocodeFunc

	mu    sync.RWMutex
	cache map[string]geo.Position
}

// NewGeocodeLocator configures the geocoder with apiKey. An empty key
// disables address lookups.
func NewGeocodeLocator(apiKey string) *GeocodeLocator {
	l := &GeocodeLocator{cache: make(map[string]geo.Position)}
	if apiKey != "" {
		geocoder.ApiKey = apiKey
		l.geocode = geocoder.Geocoding
	}
	return l
}

func (l *GeocodeLocator) Resolve(ctx context.Context, query string) (geo.Position, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return geo.Position{}, fmt.Errorf("%w: empty query", ErrLocationUnavailable)
	}
	if p, ok := ParseCoordinates(query); ok {
		return p, nil
	}
	if l.geocode == nil {
		return geo.Position{}, fmt.Errorf("%w: geocoding not configured", ErrLocationUnavailable)
	}

	key := strings.ToLower(query)
	l.mu.RLock()
	p, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return p, nil
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := l.geocode(geocoder.Address{Street: query})
		done <- result{loc: loc, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return geo.Position{}, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return geo.Position{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, res.err)
	}

	p = geo.Position{Lat: res.loc.Latitude, Lon: res.loc.Longitude}
	if !p.Valid() {
		return geo.Position{}, fmt.Errorf("%w: geocoder returned %v", ErrLocationUnavailable, p)
	}

	l.mu.Lock()
	l.cache[key] = p
	l.mu.Unlock()
	return p, nil
}
