package feedback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"thoreinstein.com/quill/pkg/activity"
	quillerrors "thoreinstein.com/quill/pkg/errors"
)

// Dispatcher sends payloads fire-and-forget. Send never blocks on the network
// and failures are only logged: there is no retry and no queue beyond the
// in-flight goroutines. Payloads over the rate limit are dropped.
type Dispatcher struct {
	submitter Submitter
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *slog.Logger

	wg sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

// Stats counts dispatcher outcomes.
type Stats struct {
	Sent    int
	Failed  int
	Dropped int
}

// NewDispatcher creates a Dispatcher allowing ratePerSec sustained sends with
// the given burst. Each send is bounded by timeout.
func NewDispatcher(s Submitter, ratePerSec float64, burst int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		submitter: s,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), burst),
		timeout:   timeout,
		logger:    logger,
	}
}

// Send submits payload in the background. It reports whether the payload was
// accepted for sending (false when rate limited).
func (d *Dispatcher) Send(payload activity.Payload) bool {
	if !d.limiter.Allow() {
		d.count(&d.stats.Dropped)
		d.logger.Warn("feedback event dropped by rate limit", "uri", payload.DocumentURI)
		return false
	}

	// The goroutine owns its copy of payload.
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.submitter.Submit(ctx, payload); err != nil {
			d.count(&d.stats.Failed)
			d.logger.Warn("feedback submission failed", "uri", payload.DocumentURI, "kind", failureKind(err), "error", err)
			return
		}
		d.count(&d.stats.Sent)
	}()
	return true
}

// Wait blocks until every in-flight send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Stats returns a snapshot of outcome counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Dispatcher) count(counter *int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	*counter++
}

// failureKind labels a submission error for logs. Auth failures mean the user
// must log in again; temporary ones clear up without intervention.
func failureKind(err error) string {
	switch {
	case quillerrors.IsAuthError(err):
		return "auth"
	case quillerrors.IsTemporary(err):
		return "temporary"
	case quillerrors.IsFeedbackError(err):
		return "rejected"
	default:
		return "unknown"
	}
}
