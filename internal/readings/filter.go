package readings

import (
	"sort"
	"time"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/geo"
)

// FilterCriteria holds independently optional constraints. Nil fields
// impose nothing.
type FilterCriteria struct {
	MinTempC          *float64      `json:"minTempC,omitempty"`
	MaxTempC          *float64      `json:"maxTempC,omitempty"`
	MaxDistanceKm     *float64      `json:"maxDistanceKm,omitempty"`
	MaxAgeDays        *float64      `json:"maxAgeDays,omitempty"`
	ReferenceLocation *geo.Position `json:"referenceLocation,omitempty"`
}

// IsZero reports whether no criterion is set.
func (c FilterCriteria) IsZero() bool {
	return c.MinTempC == nil && c.MaxTempC == nil && c.MaxDistanceKm == nil &&
		c.MaxAgeDays == nil && c.ReferenceLocation == nil
}

// Check returns an *UnsatisfiableCriteriaError when a criterion lacks the
// data it needs. Apply excludes the affected entries in that case; callers
// use Check to tell the user a location is required.
func (c FilterCriteria) Check() error {
	if c.MaxDistanceKm != nil && c.ReferenceLocation == nil {
		return &UnsatisfiableCriteriaError{Criterion: "maxDistanceKm", Missing: "referenceLocation"}
	}
	return nil
}

// Filter applies FilterCriteria to marker sets.
type Filter struct {
	now func() time.Time
}

// NewFilter creates a Filter. A nil clock means time.Now.
func NewFilter(now func() time.Time) *Filter {
	if now == nil {
		now = time.Now
	}
	return &Filter{now: now}
}

// Apply returns the markers that pass every supplied criterion. The input
// set is never modified.
func (f *Filter) Apply(ms MarkerSet, c FilterCriteria) MarkerSet {
	if ms == nil {
		return nil
	}
	now := f.now()
	out := make(MarkerSet, 0, len(ms))
	for _, m := range ms {
		if matches(m, c, now) {
			out = append(out, m)
		}
	}
	return out
}

// Matches reports whether a single marker passes c.
func (f *Filter) Matches(m Marker, c FilterCriteria) bool {
	return matches(m, c, f.now())
}

func matches(m Marker, c FilterCriteria, now time.Time) bool {
	temp := m.TemperatureC()
	if c.MinTempC != nil && temp < *c.MinTempC {
		return false
	}
	if c.MaxTempC != nil && temp > *c.MaxTempC {
		return false
	}
	if c.MaxDistanceKm != nil {
		if c.ReferenceLocation == nil {
			return false
		}
		if geo.DistanceKm(*c.ReferenceLocation, m.Position()) > *c.MaxDistanceKm {
			return false
		}
	}
	if c.MaxAgeDays != nil {
		ageDays := now.Sub(m.ObservedAt()).Hours() / 24
		if ageDays > *c.MaxAgeDays {
			return false
		}
	}
	return true
}

// SortKey selects the ordering used by Sort.
type SortKey string

const (
	SortNone       SortKey = ""
	SortTempAsc    SortKey = "temp-asc"
	SortTempDesc   SortKey = "temp-desc"
	SortMostRecent SortKey = "recent"
	SortDistance   SortKey = "distance"
)

// Valid reports whether k is a known key.
func (k SortKey) Valid() bool {
	switch k {
	case SortNone, SortTempAsc, SortTempDesc, SortMostRecent, SortDistance:
		return true
	}
	return false
}

// Sort returns a reordered copy of ms. SortDistance without a reference
// location keeps the input order.
func Sort(ms MarkerSet, key SortKey, ref *geo.Position) MarkerSet {
	out := append(MarkerSet(nil), ms...)

	var less func(a, b Marker) bool
	switch key {
	case SortTempAsc:
		less = func(a, b Marker) bool { return a.TemperatureC() < b.TemperatureC() }
	case SortTempDesc:
		less = func(a, b Marker) bool { return a.TemperatureC() > b.TemperatureC() }
	case SortMostRecent:
		less = func(a, b Marker) bool { return a.ObservedAt().After(b.ObservedAt()) }
	case SortDistance:
		if ref == nil {
			return out
		}
		less = func(a, b Marker) bool {
			return geo.DistanceKm(*ref, a.Position()) < geo.DistanceKm(*ref, b.Position())
		}
	default:
		return out
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
