package metrics

import (
	"time"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
)

// Recorder counts engine diagnostics and forwards them to next.
type Recorder struct {
	next readings.Diagnostics
}

// NewRecorder wraps next. A nil next logs through readings.LogDiagnostics.
func NewRecorder(next readings.Diagnostics) *Recorder {
	if next == nil {
		next = readings.LogDiagnostics{}
	}
	return &Recorder{next: next}
}

func (r *Recorder) ReadingDropped(origin readings.Origin, err error) {
	ReadingsDropped.WithLabelValues(string(origin)).Inc()
	r.next.ReadingDropped(origin, err)
}

func (r *Recorder) FetchFailed(source string, err error) {
	FetchFailures.WithLabelValues(source).Inc()
	r.next.FetchFailed(source, err)
}

func (r *Recorder) AllSourcesFailed(err error) {
	AllSourcesFailed.Inc()
	r.next.AllSourcesFailed(err)
}

func (r *Recorder) CacheUnavailable(op string, err error) {
	CacheErrors.WithLabelValues(op).Inc()
	r.next.CacheUnavailable(op, err)
}

func (r *Recorder) RefreshCompleted(took time.Duration, markers int) {
	RefreshDuration.Observe(took.Seconds())
	PublishedMarkers.Set(float64(markers))
	r.next.RefreshCompleted(took, markers)
}
