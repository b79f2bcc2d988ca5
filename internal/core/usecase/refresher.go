package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/ports"
)

const DefaultRefreshDelay = 600 * time.Millisecond

type companySink interface {
	RefreshCompanies(ctx context.Context, source ports.CompanySource) (int, error)
}

// Refresher re-reads the company collection from an upstream mailroom a short
// while after intake created a company implicitly, instead of patching state
// precisely. Requests made while a refresh is pending collapse into it.
// The source must not be the manager's own store: memory is authoritative
// there and a refresh would drop companies whose write-through failed.
type Refresher struct {
	source  ports.CompanySource
	sink    companySink
	delay   time.Duration
	timeout time.Duration
	log     logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
	wg     sync.WaitGroup

	completed atomic.Int64
}

func NewRefresher(source ports.CompanySource, sink companySink, delay time.Duration, log logrus.FieldLogger) *Refresher {
	if delay <= 0 {
		delay = DefaultRefreshDelay
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		source:  source,
		sink:    sink,
		delay:   delay,
		timeout: 5 * time.Second,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Attach subscribes the refresher to implicit company creation.
func (r *Refresher) Attach(bus *Bus) func() {
	return bus.Subscribe(func(_ context.Context, event domain.Event) {
		if event.Implicit {
			r.Schedule()
		}
	}, domain.EventCompanyCreated)
}

func (r *Refresher) Schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.timer != nil {
		return
	}
	r.wg.Add(1)
	r.timer = time.AfterFunc(r.delay, r.run)
}

// Completed reports how many refreshes have replaced the company collection.
func (r *Refresher) Completed() int64 {
	return r.completed.Load()
}

func (r *Refresher) Close() error {
	r.mu.Lock()
	r.closed = true
	if r.timer != nil && r.timer.Stop() {
		r.timer = nil
		r.wg.Done()
	}
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
	return nil
}

func (r *Refresher) run() {
	defer r.wg.Done()

	r.mu.Lock()
	r.timer = nil
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	n, err := r.sink.RefreshCompanies(ctx, r.source)
	if err != nil {
		r.log.WithError(err).Warn("company refresh failed")
		return
	}
	r.completed.Add(1)
	r.log.WithField("companies", n).Debug("company collection refreshed")
}
