package readings

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fieldSpec lists the record keys tried, in order, for one canonical field.
// For numeric fields the first non-null key decides; timestamps fall through
// to the next key until one parses.
type fieldSpec struct {
	name string
	keys []string
}

var (
	idField        = fieldSpec{"id", []string{"_id", "id", "ID"}}
	labelField     = fieldSpec{"label", []string{"name", "Name", "beachName", "Beach Name", "label"}}
	latField       = fieldSpec{"latitude", []string{"lat", "Latitude"}}
	lonField       = fieldSpec{"longitude", []string{"lng", "lon", "Longitging", "Longitude"}}
	tempField      = fieldSpec{"temperature", []string{"temp", "Result"}}
	timestampField = fieldSpec{"timestamp", []string{"timestamp", "updatedAt", "createdAt"}}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts a raw station or user record into a Reading.
// fetchedAt is used when no timestamp field parses.
func Normalize(raw RawRecord, origin Origin, fetchedAt time.Time) (Reading, error) {
	lat, ok := resolveFloat(raw, latField)
	if !ok {
		return Reading{}, &MalformedReadingError{Field: latField.name, Reason: "is missing or not a finite number"}
	}
	lon, ok := resolveFloat(raw, lonField)
	if !ok {
		return Reading{}, &MalformedReadingError{Field: lonField.name, Reason: "is missing or not a finite number"}
	}
	temp, ok := resolveFloat(raw, tempField)
	if !ok {
		return Reading{}, &MalformedReadingError{Field: tempField.name, Reason: "is missing or not a finite number"}
	}

	observedAt, ok := resolveTime(raw, timestampField)
	if !ok {
		observedAt = fetchedAt
	}

	id, ok := resolveString(raw, idField)
	if !ok {
		id = uuid.NewString()
	}

	r := Reading{
		ID:           id,
		Lat:          lat,
		Lon:          lon,
		TemperatureC: temp,
		ObservedAt:   observedAt.UTC(),
		Origin:       origin,
	}

	if origin == OriginStation {
		label, ok := resolveString(raw, labelField)
		if !ok {
			return Reading{}, &MalformedReadingError{Field: labelField.name, Reason: "is required for station readings"}
		}
		r.Label = label
	}

	if err := Validate(r); err != nil {
		return Reading{}, err
	}
	return r, nil
}

// Validate checks the Reading invariants.
func Validate(r Reading) error {
	if !r.Position().Valid() {
		return &MalformedReadingError{Field: "position", Reason: "is outside WGS 84 range"}
	}
	if math.IsNaN(r.TemperatureC) || math.IsInf(r.TemperatureC, 0) {
		return &MalformedReadingError{Field: tempField.name, Reason: "is not finite"}
	}
	if r.ObservedAt.IsZero() {
		return &MalformedReadingError{Field: timestampField.name, Reason: "is missing"}
	}
	switch r.Origin {
	case OriginStation:
		if r.Label == "" {
			return &MalformedReadingError{Field: labelField.name, Reason: "is required for station readings"}
		}
	case OriginUser:
	default:
		return &MalformedReadingError{Field: "origin", Reason: "is unknown"}
	}
	return nil
}

func resolveFloat(raw RawRecord, spec fieldSpec) (float64, bool) {
	for _, key := range spec.keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		return asFloat(v)
	}
	return 0, false
}

func resolveTime(raw RawRecord, spec fieldSpec) (time.Time, bool) {
	for _, key := range spec.keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if t, ok := asTime(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func resolveString(raw RawRecord, spec fieldSpec) (string, bool) {
	for _, key := range spec.keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s = strings.TrimSpace(s); s != "" {
				return s, true
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64), true
		case int:
			return strconv.Itoa(s), true
		case int64:
			return strconv.FormatInt(s, 10), true
		}
	}
	return "", false
}

// asFloat decodes numbers, numeric strings and json.Number-like values.
func asFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case interface{ Float64() (float64, error) }:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// asTime accepts time values, common string layouts and unix epochs
// (seconds, or milliseconds when the magnitude says so).
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epoch(f)
		}
		return time.Time{}, false
	default:
		if f, ok := asFloat(v); ok {
			return epoch(f)
		}
		return time.Time{}, false
	}
}

func epoch(f float64) (time.Time, bool) {
	if f <= 0 {
		return time.Time{}, false
	}
	if f > 1e12 {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return time.Unix(int64(f), 0).UTC(), true
}
