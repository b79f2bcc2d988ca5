package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/mailroom/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

type OutboxRepository struct {
	db  *gormsqlite.DB
	now func() time.Time
}

func NewOutboxRepository(db *gormsqlite.DB) *OutboxRepository {
	return &OutboxRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []outboxEventModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("status = ? AND next_attempt_at <= ?", domain.OutboxPending, r.now()).
			Order("id ASC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox: %w", err)
	}

	result := make([]domain.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.OutboxEvent{
			ID:            row.ID,
			EventID:       row.EventID,
			Topic:         row.Topic,
			PayloadJSON:   json.RawMessage(row.PayloadJSON),
			Status:        row.Status,
			Attempts:      row.Attempts,
			NextAttemptAt: row.NextAttemptAt,
			LastError:     row.LastError,
			CreatedAt:     row.CreatedAt,
			DispatchedAt:  row.DispatchedAt,
		})
	}
	return result, nil
}

func (r *OutboxRepository) MarkDispatched(ctx context.Context, id int64) error {
	now := r.now()
	return r.update(ctx, id, "mark outbox dispatched", map[string]any{
		"status":        domain.OutboxDispatched,
		"dispatched_at": &now,
		"last_error":    "",
	})
}

// MarkFailed keeps the row pending and hides it from FetchPending until
// nextAttemptAt.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt time.Time, errMsg string) error {
	return r.update(ctx, id, "mark outbox failed", map[string]any{
		"attempts":        attempts,
		"next_attempt_at": nextAttemptAt.UTC(),
		"last_error":      errMsg,
	})
}

func (r *OutboxRepository) MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error {
	return r.update(ctx, id, "mark outbox dead", map[string]any{
		"status":     domain.OutboxDead,
		"attempts":   attempts,
		"last_error": errMsg,
	})
}

func (r *OutboxRepository) update(ctx context.Context, id int64, op string, values map[string]any) error {
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&outboxEventModel{}).Where("id = ?", id).Updates(values).Error
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
