package readings

// DedupeStations keeps the first station reading for each label and drops
// later ones, whatever their data. The feed lists the most recent broadcast
// first. Non-station readings are not part of the output.
func DedupeStations(in []Reading) []Reading {
	seen := make(map[string]struct{}, len(in))
	out := make([]Reading, 0, len(in))
	for _, r := range in {
		if r.Origin != OriginStation {
			continue
		}
		if _, ok := seen[r.Label]; ok {
			continue
		}
		seen[r.Label] = struct{}{}
		out = append(out, r)
	}
	return out
}
