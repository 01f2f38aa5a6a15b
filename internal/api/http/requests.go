package httpapi

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
)

// filterQuery holds the query parameters of the filter endpoint.
type filterQuery struct {
	MinTemp       *float64
	MaxTemp       *float64
	MaxDistanceKm *float64 `validate:"omitempty,gt=0"`
	MaxAgeDays    *float64 `validate:"omitempty,gte=0"`
	Lat           *float64 `validate:"omitempty,gte=-90,lte=90"`
	Lon           *float64 `validate:"omitempty,gte=-180,lte=180"`
	Near          string
	Sort          string `validate:"omitempty,oneof=temp-asc temp-desc recent distance"`
}

func (q *filterQuery) bind(c *fiber.Ctx) error {
	fields := []struct {
		name string
		dst  **float64
	}{
		{"minTemp", &q.MinTemp},
		{"maxTemp", &q.MaxTemp},
		{"maxDistanceKm", &q.MaxDistanceKm},
		{"maxAgeDays", &q.MaxAgeDays},
		{"lat", &q.Lat},
		{"lon", &q.Lon},
	}
	for _, f := range fields {
		v, err := optionalFloat(c.Query(f.name))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", f.name, err)
		}
		*f.dst = v
	}

	if (q.Lat == nil) != (q.Lon == nil) {
		return errors.New("lat and lon must be given together")
	}
	q.Near = strings.TrimSpace(c.Query("near"))
	q.Sort = c.Query("sort")
	return nil
}

func optionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New("not a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.New("not a finite number")
	}
	return &f, nil
}

// submissionRequest is the body of a user reading submission.
type submissionRequest struct {
	ID        string   `json:"id"`
	Lat       *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon       *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	Temp      *float64 `json:"temp" validate:"required"`
	Timestamp string   `json:"timestamp"`
}

func (s submissionRequest) record() readings.RawRecord {
	raw := readings.RawRecord{
		"lat":  *s.Lat,
		"lon":  *s.Lon,
		"temp": *s.Temp,
	}
	if s.ID != "" {
		raw["id"] = s.ID
	}
	if s.Timestamp != "" {
		raw["timestamp"] = s.Timestamp
	}
	return raw
}
