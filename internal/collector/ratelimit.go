package collector

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/clock"
)

// pacer enforces both a minimum delay between consecutive requests and a
// sliding requests-per-minute cap. It is local to one collector instance;
// cross-process coordination is deliberately absent (the upstream's own
// limits must tolerate a worker-count multiplier).
type pacer struct {
	limiter  *rate.Limiter
	minDelay time.Duration
	clock    clock.Clock

	mu   sync.Mutex
	last time.Time
}

func newPacer(requestsPerMinute int, minDelay time.Duration, clk clock.Clock) *pacer {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &pacer{
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		minDelay: minDelay,
		clock:    clk,
	}
}

// wait blocks until the next request is allowed.
func (p *pacer) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	var sleep time.Duration
	if !p.last.IsZero() {
		if elapsed := p.clock.Since(p.last); elapsed < p.minDelay {
			sleep = p.minDelay - elapsed
		}
	}
	p.mu.Unlock()

	if sleep > 0 {
		p.clock.Sleep(sleep)
	}

	p.mu.Lock()
	p.last = p.clock.Now()
	p.mu.Unlock()
	return nil
}
