package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/ports"
)

const (
	defaultOutboxInterval    = 2 * time.Second
	defaultOutboxBatchSize   = 50
	defaultOutboxMaxAttempts = 5
	maxOutboxBackoff         = 5 * time.Minute
)

type OutboxOptions struct {
	// Interval is the polling period; Wake shortens the wait after a mutation.
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Log         logrus.FieldLogger
	Now         func() time.Time
}

// DispatchStats counts what one pass over the pending rows did.
type DispatchStats struct {
	Delivered int
	Retried   int
	Dead      int
}

func (s DispatchStats) add(o DispatchStats) DispatchStats {
	return DispatchStats{Delivered: s.Delivered + o.Delivered, Retried: s.Retried + o.Retried, Dead: s.Dead + o.Dead}
}

// OutboxDispatcher delivers the rows written next to every persisted audit
// entry. A failed delivery is retried with a doubling delay and marked dead
// after MaxAttempts, or at once when the publisher reports ErrUndeliverable.
type OutboxDispatcher struct {
	repo      ports.OutboxRepository
	publisher ports.EventPublisher
	opts      OutboxOptions
	log       logrus.FieldLogger

	wake chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	totals struct {
		sync.Mutex
		DispatchStats
	}
}

func NewOutboxDispatcher(repo ports.OutboxRepository, publisher ports.EventPublisher, opts OutboxOptions) *OutboxDispatcher {
	if opts.Interval <= 0 {
		opts.Interval = defaultOutboxInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultOutboxBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultOutboxMaxAttempts
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &OutboxDispatcher{
		repo:      repo,
		publisher: publisher,
		opts:      opts,
		log:       opts.Log,
		wake:      make(chan struct{}, 1),
	}
}

// Attach wakes the dispatcher on every mutation event so new audit entries
// go out without waiting for the next poll.
func (d *OutboxDispatcher) Attach(bus *Bus) func() {
	return bus.Subscribe(func(context.Context, domain.Event) { d.Wake() })
}

func (d *OutboxDispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *OutboxDispatcher) Start(parent context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.wg.Add(1)
	go d.run(ctx)
}

// Close stops the loop and makes one last pass so rows written during
// shutdown are not left for the next start.
func (d *OutboxDispatcher) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	d.wg.Wait()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if _, err := d.DispatchPending(ctx); err != nil {
		return fmt.Errorf("final outbox pass: %w", err)
	}
	return nil
}

func (d *OutboxDispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-d.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if _, err := d.DispatchPending(ctx); err != nil && ctx.Err() == nil {
			d.log.WithError(err).Warn("outbox pass failed")
		}
		timer.Reset(d.opts.Interval)
	}
}

// DispatchPending publishes pending rows batch by batch until a batch comes
// back short or a repository call fails. Publisher failures are recorded on
// the row and do not stop the pass.
func (d *OutboxDispatcher) DispatchPending(ctx context.Context) (DispatchStats, error) {
	var stats DispatchStats
	defer func() { d.record(stats) }()

	for {
		rows, err := d.repo.FetchPending(ctx, d.opts.BatchSize)
		if err != nil {
			return stats, err
		}
		batch, err := d.deliver(ctx, rows)
		stats = stats.add(batch)
		if err != nil {
			return stats, err
		}
		// Rows that were only retried stay hidden until their next attempt,
		// so a full batch of retries cannot loop forever.
		if len(rows) < d.opts.BatchSize || batch.Delivered+batch.Dead == 0 {
			return stats, nil
		}
	}
}

func (d *OutboxDispatcher) deliver(ctx context.Context, rows []domain.OutboxEvent) (DispatchStats, error) {
	var stats DispatchStats
	for _, row := range rows {
		var envelope domain.EventEnvelope
		publishErr := json.Unmarshal(row.PayloadJSON, &envelope)
		if publishErr != nil {
			publishErr = fmt.Errorf("decode envelope: %w", publishErr)
		} else {
			publishErr = d.publisher.Publish(ctx, row.Topic, envelope)
		}

		if publishErr == nil {
			if err := d.repo.MarkDispatched(ctx, row.ID); err != nil {
				return stats, err
			}
			stats.Delivered++
			continue
		}

		dead, err := d.fail(ctx, row, publishErr)
		if err != nil {
			return stats, err
		}
		if dead {
			stats.Dead++
		} else {
			stats.Retried++
		}
	}
	return stats, nil
}

func (d *OutboxDispatcher) fail(ctx context.Context, row domain.OutboxEvent, cause error) (bool, error) {
	attempts := row.Attempts + 1
	entry := d.log.WithFields(logrus.Fields{
		"outbox_id": row.ID,
		"event_id":  row.EventID,
		"topic":     row.Topic,
		"attempts":  attempts,
	}).WithError(cause)

	if attempts >= d.opts.MaxAttempts || errors.Is(cause, ports.ErrUndeliverable) {
		if err := d.repo.MarkDead(ctx, row.ID, attempts, cause.Error()); err != nil {
			return false, err
		}
		entry.Error("outbox event dead")
		return true, nil
	}
	next := d.opts.Now().Add(retryDelay(attempts))
	if err := d.repo.MarkFailed(ctx, row.ID, attempts, next, cause.Error()); err != nil {
		return false, err
	}
	entry.WithField("next_attempt_at", next).Debug("outbox delivery failed")
	return false, nil
}

func (d *OutboxDispatcher) record(s DispatchStats) {
	d.totals.Lock()
	d.totals.DispatchStats = d.totals.add(s)
	d.totals.Unlock()
}

// Totals sums every pass since the dispatcher was built.
func (d *OutboxDispatcher) Totals() DispatchStats {
	d.totals.Lock()
	defer d.totals.Unlock()
	return d.totals.DispatchStats
}

// retryDelay doubles from one second: 1s, 2s, 4s, ... capped at five minutes.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 10 {
		return maxOutboxBackoff
	}
	return min(time.Second<<(attempt-1), maxOutboxBackoff)
}
