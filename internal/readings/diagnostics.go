package readings

import (
	"time"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/logging"
)

// Diagnostics is the side-channel for failures that never abort a refresh.
type Diagnostics interface {
	ReadingDropped(origin Origin, err error)
	FetchFailed(source string, err error)
	AllSourcesFailed(err error)
	CacheUnavailable(op string, err error)
	RefreshCompleted(took time.Duration, markers int)
}

// LogDiagnostics writes diagnostics to the structured logger.
type LogDiagnostics struct{}

func (LogDiagnostics) ReadingDropped(origin Origin, err error) {
	logging.Warn().Str("origin", string(origin)).Err(err).Msg("dropped malformed reading")
}

func (LogDiagnostics) FetchFailed(source string, err error) {
	logging.Warn().Str("source", source).Err(err).Msg("reading source fetch failed")
}

func (LogDiagnostics) AllSourcesFailed(err error) {
	logging.Error().Err(err).Msg("no reading source succeeded; keeping last published markers")
}

func (LogDiagnostics) CacheUnavailable(op string, err error) {
	logging.Warn().Str("op", op).Err(err).Msg("snapshot cache unavailable")
}

func (LogDiagnostics) RefreshCompleted(took time.Duration, markers int) {
	logging.Debug().Dur("took", took).Int("markers", markers).Msg("refresh completed")
}
