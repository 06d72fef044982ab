package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"booking-sync/cache"
	"booking-sync/contract"
	"booking-sync/errors"
	"booking-sync/observability"

	"golang.org/x/time/rate"
)

var _ contract.Worker = (*PollWorker)(nil)

// FetchFunc retrieves the current server-side value of a resource.
type FetchFunc func(ctx context.Context) (any, error)

// retryBudget is the number of silent fetch failures tolerated before
// the error state is surfaced to consumers.
const retryBudget = 3

// PollWorker re-invokes a fetch on every tick while its consumer is
// mounted, and immediately on invalidation of its key. Polling is
// suspended while an alternative authoritative channel (push) covers
// the key; invalidation-triggered refetches still run in that mode.
type PollWorker struct {
	log      *slog.Logger
	store    *cache.Store
	key      cache.Key
	fetch    FetchFunc
	interval time.Duration
	limiter  *rate.Limiter
	watch    chan struct{}

	mu        sync.Mutex
	suspended bool
	failures  int
	lastErr   error
}

func NewPollWorker(
	log *slog.Logger,
	store *cache.Store,
	key cache.Key,
	fetch FetchFunc,
	interval time.Duration,
) *PollWorker {
	return &PollWorker{
		log:      log,
		store:    store,
		key:      key,
		fetch:    fetch,
		interval: interval,
		// Invalidations may arrive in bursts (push event racing a local
		// mutation); pace the resulting refetches instead of stampeding.
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 2),
		// Registered at construction so an invalidation fired between
		// mount and the first loop iteration is not lost.
		watch: store.Watch(key),
	}
}

// Suspend stops interval polling for the key. Used while push is
// authoritative.
func (p *PollWorker) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.suspended {
		p.log.Debug("Polling suspended", "key", p.key)
	}
	p.suspended = true
}

// Resume re-enables interval polling at the fallback interval.
func (p *PollWorker) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suspended {
		p.log.Debug("Polling resumed", "key", p.key)
	}
	p.suspended = false
}

func (p *PollWorker) Suspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}

// Err returns the surfaced error state once the silent retry budget is
// spent, nil otherwise. Cleared by the next successful fetch.
func (p *PollWorker) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > retryBudget {
		return fmt.Errorf("%w: %v", errors.ErrFetchBudgetExceeded, p.lastErr)
	}
	return nil
}

func (p *PollWorker) Run(ctx context.Context) error {
	defer p.store.Unwatch(p.key, p.watch)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Debug("Stopping worker", "key", p.key)
			return nil
		case <-ticker.C:
			if p.Suspended() {
				continue
			}
			p.refetch(ctx)
		case <-p.watch:
			// An invalidated key must be re-fetched regardless of the
			// polling mode; this is the path local mutations and push
			// events converge through.
			if err := p.limiter.Wait(ctx); err != nil {
				return nil
			}
			p.refetch(ctx)
		}
	}
}

func (p *PollWorker) refetch(ctx context.Context) {
	// Stamped at request start: a response from a fetch that started
	// earlier than an already-applied one must lose the comparison.
	started := time.Now().UTC()

	value, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Unmounted mid-flight, not a failure.
			return
		}
		observability.PollFetches.WithLabelValues("failure").Inc()
		p.mu.Lock()
		p.failures++
		p.lastErr = err
		failures := p.failures
		p.mu.Unlock()

		if failures > retryBudget {
			p.log.Warn("Fetch keeps failing, surfacing error state",
				"key", p.key, "failures", failures, "err", err)
		} else {
			p.log.Debug("Fetch failed, last good value stays visible",
				"key", p.key, "err", err)
		}
		return
	}

	observability.PollFetches.WithLabelValues("success").Inc()
	p.mu.Lock()
	p.failures = 0
	p.lastErr = nil
	p.mu.Unlock()

	if ctx.Err() != nil {
		// A completion arriving after unmount must never write to a
		// key nobody reads.
		return
	}
	if !p.store.Write(p.key, value, started) {
		p.log.Debug("Fetched snapshot was older than cache, discarded", "key", p.key)
	}
}
