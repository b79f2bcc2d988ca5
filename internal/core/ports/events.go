package ports

import (
	"context"
	"errors"
	"time"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

// ErrUndeliverable marks a publish error that retrying cannot fix, such as a
// receiver rejecting the request. The dispatcher dead-letters such rows at once.
var ErrUndeliverable = errors.New("undeliverable event")

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event domain.EventEnvelope) error
}

// OutboxRepository is the delivery queue filled by StateStore.AppendAudit.
type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt time.Time, errMsg string) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error
}
