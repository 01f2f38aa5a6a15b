package readings

import (
	"math"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/geo"
)

// DefaultRadiusKm is the grouping radius for user submissions.
const DefaultRadiusKm = 1.0

// Cluster greedily groups user readings in input order. Each reading joins
// the first existing group whose anchor lies within radiusKm, otherwise it
// starts a new group anchored at its own position. Station readings are
// ignored. Groups are returned in creation order.
func Cluster(in []Reading, radiusKm float64) ([]ReadingGroup, error) {
	if err := checkRadius(radiusKm); err != nil {
		return nil, err
	}
	return cluster(in, radiusKm), nil
}

func cluster(in []Reading, radiusKm float64) []ReadingGroup {
	var groups []*ReadingGroup
	for _, r := range in {
		if r.Origin != OriginUser {
			continue
		}
		if g := firstWithin(groups, r.Position(), radiusKm); g != nil {
			g.add(r)
			continue
		}
		groups = append(groups, newGroup(r))
	}

	out := make([]ReadingGroup, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	return out
}

func firstWithin(groups []*ReadingGroup, p geo.Position, radiusKm float64) *ReadingGroup {
	for _, g := range groups {
		if geo.Within(g.Anchor, p, radiusKm) {
			return g
		}
	}
	return nil
}

func checkRadius(radiusKm float64) error {
	if math.IsNaN(radiusKm) || radiusKm <= 0 {
		return ErrInvalidRadius
	}
	return nil
}

// BuildMarkerSet dedupes stations, clusters user readings and assembles the
// publishable set.
func BuildMarkerSet(stations, users []Reading, radiusKm float64) (MarkerSet, error) {
	if err := checkRadius(radiusKm); err != nil {
		return nil, err
	}
	return buildMarkerSet(stations, users, radiusKm), nil
}

func buildMarkerSet(stations, users []Reading, radiusKm float64) MarkerSet {
	groups := cluster(users, radiusKm)
	deduped := DedupeStations(stations)
	ms := make(MarkerSet, 0, len(deduped)+len(groups))
	for _, r := range deduped {
		ms = append(ms, ReadingMarker(r))
	}
	for _, g := range groups {
		ms = append(ms, GroupMarker(g))
	}
	return ms
}

// Incorporate adds one new user reading to an existing set without
// re-clustering everything. The result equals BuildMarkerSet over the set's
// readings followed by r: only the first user marker whose anchor is within
// radiusKm changes, or a new marker is appended. The input is not modified.
func Incorporate(ms MarkerSet, r Reading, radiusKm float64) (MarkerSet, error) {
	if err := checkRadius(radiusKm); err != nil {
		return nil, err
	}
	if r.Origin != OriginUser {
		return nil, ErrNotUserSubmitted
	}
	if err := Validate(r); err != nil {
		return nil, err
	}

	out := make(MarkerSet, len(ms), len(ms)+1)
	copy(out, ms)

	for i, m := range out {
		if m.Origin() != OriginUser {
			continue
		}
		if !geo.Within(m.Anchor(), r.Position(), radiusKm) {
			continue
		}

		var g *ReadingGroup
		if m.Kind == KindGroup && m.Group != nil {
			g = m.Group.clone()
		} else {
			g = newGroup(m.Primary())
		}
		g.add(r)
		out[i] = Marker{Kind: KindGroup, Group: g}
		return out, nil
	}

	return append(out, ReadingMarker(r)), nil
}
