package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

// LogPublisher is the outbox sink used when no webhook is configured.
type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.EventEnvelope) error {
	p.log.WithFields(logrus.Fields{
		"topic":          topic,
		"event_id":       event.EventID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"audit_id":       event.AuditID,
		"actor":          event.Actor,
	}).Info("outbox publish")
	return nil
}
