package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/sidecar/internal/detector"
	"github.com/loykin/sidecar/internal/metrics"
)

// Waiter polls the endpoint until it accepts connections or the budget runs out.
type Waiter struct {
	ProbeTimeout time.Duration
	Probe        ProbeFunc
	Logger       *slog.Logger
}

// WaitReady probes endpoint at most budget.MaxAttempts times, sleeping budget.Interval
// after every failed attempt, so an exhausted wait lasts at least budget.Upper(). It returns
// whether the endpoint became reachable and how many probes were made. Cancelling ctx ends
// the wait early.
func (w *Waiter) WaitReady(ctx context.Context, endpoint Endpoint, budget RetryBudget) (bool, int) {
	probe := w.Probe
	if probe == nil {
		probe = detector.Probe
	}
	log := w.Logger
	if log == nil {
		log = slog.Default()
	}
	addr := endpoint.Addr()

	attempts := 0
	for i := 1; i <= budget.MaxAttempts; i++ {
		if ctx.Err() != nil {
			return false, attempts
		}
		attempts = i
		log.Info("waiting for backend", "attempt", i, "max", budget.MaxAttempts, "addr", addr)
		live := probe(ctx, addr, w.ProbeTimeout)
		metrics.IncProbe(live)
		if live {
			return true, attempts
		}
		if budget.Interval <= 0 {
			continue
		}
		t := time.NewTimer(budget.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return false, attempts
		case <-t.C:
		}
	}
	return false, attempts
}
