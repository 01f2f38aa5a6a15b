// Package notify fans engine publications out to NATS and WebSocket clients.
package notify

import (
	"time"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
)

// Event is the wire form of one publication.
type Event struct {
	Status       readings.Status    `json:"status"`
	State        readings.State     `json:"state"`
	CapturedAt   time.Time          `json:"capturedAt"`
	PublishedAt  time.Time          `json:"publishedAt"`
	MarkerCount  int                `json:"markerCount"`
	StationCount int                `json:"stationCount"`
	Markers      readings.MarkerSet `json:"markers,omitempty"`
}

// NewEvent builds an event. withMarkers controls whether the full marker
// set is embedded or only the counts.
func NewEvent(pub readings.Publication, withMarkers bool) Event {
	ev := Event{
		Status:       pub.Status,
		State:        pub.State,
		CapturedAt:   pub.CapturedAt,
		PublishedAt:  pub.PublishedAt,
		MarkerCount:  len(pub.Markers),
		StationCount: pub.Markers.StationCount(),
	}
	if withMarkers {
		ev.Markers = pub.Markers
	}
	return ev
}
