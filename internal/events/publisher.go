package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subjects emitted by the learning session core. Consumers (notification
// fan-out, analytics) subscribe out of process.
const (
	SubjectAttemptSubmitted = "learning.attempt.submitted"
	SubjectGradeCompleted   = "learning.grade.completed"
	SubjectGradeConfirmed   = "learning.grade.confirmed"
	SubjectGradebookUpdated = "learning.gradebook.updated"
)

// Publisher emits domain events. Publishing is fire-and-forget: delivery
// failures are logged, never surfaced to the request path.
type Publisher interface {
	Publish(subject string, payload interface{})
}

type natsPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSPublisher wraps an established NATS connection.
func NewNATSPublisher(conn *nats.Conn, logger zerolog.Logger) Publisher {
	return &natsPublisher{
		conn:   conn,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

func (p *natsPublisher) Publish(subject string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Str("subject", subject).Msg("failed to encode event")
		return
	}

	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

type noopPublisher struct{}

// NewNoopPublisher is used when no broker is configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(string, interface{}) {}
