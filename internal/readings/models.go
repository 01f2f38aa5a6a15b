package readings

import (
	"sort"
	"time"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/geo"
)

// Origin tells where a reading came from.
type Origin string

const (
	OriginStation Origin = "station"
	OriginUser    Origin = "user"
)

// Reading is the canonical water-temperature observation.
// Label is set for station readings and empty for user submissions.
type Reading struct {
	ID           string    `json:"id"`
	Label        string    `json:"label,omitempty"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	TemperatureC float64   `json:"temperatureC"`
	ObservedAt   time.Time `json:"observedAt"` // always UTC
	Origin       Origin    `json:"origin"`
}

// Position returns the reading's coordinate.
func (r Reading) Position() geo.Position {
	return geo.Position{Lat: r.Lat, Lon: r.Lon}
}

// HistoryPoint is one entry of a group's temperature history.
type HistoryPoint struct {
	TemperatureC float64   `json:"temperatureC"`
	ObservedAt   time.Time `json:"observedAt"`
}

// ReadingGroup is a cluster of user readings sharing one marker.
//
// Anchor is the first member's position and never moves. Representative is
// the most recent member. History and Members are in insertion order.
type ReadingGroup struct {
	ID             string         `json:"id"`
	Anchor         geo.Position   `json:"anchor"`
	Representative Reading        `json:"representative"`
	MemberCount    int            `json:"memberCount"`
	History        []HistoryPoint `json:"history"`
	Members        []Reading      `json:"members"`
}

func newGroup(first Reading) *ReadingGroup {
	g := &ReadingGroup{
		ID:     first.ID,
		Anchor: first.Position(),
	}
	g.Representative = first
	g.append(first)
	return g
}

// add records a new member. The representative only changes when the new
// reading is strictly newer.
func (g *ReadingGroup) add(r Reading) {
	g.append(r)
	if r.ObservedAt.After(g.Representative.ObservedAt) {
		g.Representative = r
	}
}

func (g *ReadingGroup) append(r Reading) {
	g.Members = append(g.Members, r)
	g.History = append(g.History, HistoryPoint{TemperatureC: r.TemperatureC, ObservedAt: r.ObservedAt})
	g.MemberCount++
}

func (g ReadingGroup) clone() *ReadingGroup {
	c := g
	c.History = append([]HistoryPoint(nil), g.History...)
	c.Members = append([]Reading(nil), g.Members...)
	return &c
}

// SortedHistory returns the history ordered by observation time, oldest first.
func (g ReadingGroup) SortedHistory() []HistoryPoint {
	out := append([]HistoryPoint(nil), g.History...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.Before(out[j].ObservedAt)
	})
	return out
}

// MarkerKind discriminates the two marker shapes.
type MarkerKind string

const (
	KindReading MarkerKind = "reading"
	KindGroup   MarkerKind = "group"
)

// Marker is one displayable entry: a standalone reading or a group.
type Marker struct {
	Kind    MarkerKind    `json:"kind"`
	Reading *Reading      `json:"reading,omitempty"`
	Group   *ReadingGroup `json:"group,omitempty"`
}

// ReadingMarker wraps a standalone reading.
func ReadingMarker(r Reading) Marker {
	return Marker{Kind: KindReading, Reading: &r}
}

// GroupMarker wraps a group. Single-member groups are flattened to a
// standalone reading marker.
func GroupMarker(g ReadingGroup) Marker {
	if g.MemberCount == 1 {
		return ReadingMarker(g.Representative)
	}
	return Marker{Kind: KindGroup, Group: g.clone()}
}

// Primary returns the reading that drives the marker's display.
func (m Marker) Primary() Reading {
	if m.Kind == KindGroup && m.Group != nil {
		return m.Group.Representative
	}
	if m.Reading != nil {
		return *m.Reading
	}
	return Reading{}
}

func (m Marker) ID() string {
	if m.Kind == KindGroup && m.Group != nil {
		return m.Group.ID
	}
	return m.Primary().ID
}

func (m Marker) Origin() Origin { return m.Primary().Origin }

func (m Marker) TemperatureC() float64 { return m.Primary().TemperatureC }

func (m Marker) ObservedAt() time.Time { return m.Primary().ObservedAt }

// Position is the displayed position (the representative for groups).
func (m Marker) Position() geo.Position { return m.Primary().Position() }

// Anchor is the position used for clustering comparisons.
func (m Marker) Anchor() geo.Position {
	if m.Kind == KindGroup && m.Group != nil {
		return m.Group.Anchor
	}
	return m.Primary().Position()
}

// MemberCount is 1 for standalone readings.
func (m Marker) MemberCount() int {
	if m.Kind == KindGroup && m.Group != nil {
		return m.Group.MemberCount
	}
	return 1
}

// History returns the marker's history in time order.
func (m Marker) History() []HistoryPoint {
	if m.Kind == KindGroup && m.Group != nil {
		return m.Group.SortedHistory()
	}
	r := m.Primary()
	return []HistoryPoint{{TemperatureC: r.TemperatureC, ObservedAt: r.ObservedAt}}
}

// Readings returns every reading behind the marker in insertion order.
func (m Marker) Readings() []Reading {
	if m.Kind == KindGroup && m.Group != nil {
		return append([]Reading(nil), m.Group.Members...)
	}
	if m.Reading != nil {
		return []Reading{*m.Reading}
	}
	return nil
}

// MarkerSet is the published collection of markers. Station markers come
// first, then user markers in group creation order.
type MarkerSet []Marker

// Readings flattens the set back into readings, preserving marker order.
func (ms MarkerSet) Readings() []Reading {
	var out []Reading
	for _, m := range ms {
		out = append(out, m.Readings()...)
	}
	return out
}

// StationCount returns the number of station markers.
func (ms MarkerSet) StationCount() int {
	n := 0
	for _, m := range ms {
		if m.Origin() == OriginStation {
			n++
		}
	}
	return n
}

// Find looks a marker up by ID.
func (ms MarkerSet) Find(id string) (Marker, bool) {
	for _, m := range ms {
		if m.ID() == id {
			return m, true
		}
	}
	return Marker{}, false
}

// CacheEntry is the persisted snapshot of the last published set.
type CacheEntry struct {
	Snapshot   MarkerSet `json:"snapshot"`
	CapturedAt time.Time `json:"capturedAt"`
}

// IsFresh reports whether entry is younger than ttl at now.
func IsFresh(entry *CacheEntry, ttl time.Duration, now time.Time) bool {
	return entry != nil && now.Sub(entry.CapturedAt) < ttl
}
