package notify

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/logging"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
)

// DefaultSubject is where publication summaries are sent.
const DefaultSubject = "glow.markers.published"

type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher sends a summary of every publication to a NATS subject.
type NATSPublisher struct {
	conn    natsConn
	subject string
}

// NewNATSPublisher connects to NATS. Connection failures are retried in the
// background.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("glow-markers"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return newNATSPublisher(conn, subject), nil
}

func newNATSPublisher(conn natsConn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// Publish encodes pub without its markers and sends it.
func (p *NATSPublisher) Publish(pub readings.Publication) error {
	data, err := json.Marshal(NewEvent(pub, false))
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}

// Observe is an engine subscriber; failures are logged.
func (p *NATSPublisher) Observe(pub readings.Publication) {
	if err := p.Publish(pub); err != nil {
		logging.Warn().Str("subject", p.subject).Err(err).Msg("nats publish failed")
	}
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	_ = p.conn.Drain()
}
