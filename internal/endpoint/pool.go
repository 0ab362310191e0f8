package endpoint

import (
	"fmt"
	"sync"
	"time"

	"github.com/lagrangedao/go-akash-deployer/constants"
	"github.com/lagrangedao/go-akash-deployer/internal/metrics"
)

// Pool hands out ledger endpoints round-robin, skipping the ones that failed
// within the cooldown window.
type Pool struct {
	endpoints []string
	cooldown  time.Duration
	now       func() time.Time

	lk     sync.Mutex
	cursor int
	failed map[string]time.Time
}

type Option func(*Pool)

func WithCooldown(d time.Duration) Option {
	return func(p *Pool) {
		p.cooldown = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		p.now = now
	}
}

func NewPool(endpoints []string, opts ...Option) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("endpoint pool needs at least one endpoint")
	}
	p := &Pool{
		endpoints: append([]string(nil), endpoints...),
		cooldown:  constants.EndpointCooldown,
		now:       time.Now,
		failed:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Endpoints returns the full candidate list in configured order.
func (p *Pool) Endpoints() []string {
	return append([]string(nil), p.endpoints...)
}

func (p *Pool) Next() string {
	p.lk.Lock()
	defer p.lk.Unlock()

	now := p.now()
	for attempts := 0; attempts < len(p.endpoints); attempts++ {
		ep := p.endpoints[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.endpoints)

		failedAt, ok := p.failed[ep]
		if !ok || now.Sub(failedAt) > p.cooldown {
			delete(p.failed, ep)
			return ep
		}
	}

	// every endpoint is cooling down, force a retry of the oldest failure
	var oldest string
	var oldestAt time.Time
	for _, ep := range p.endpoints {
		failedAt := p.failed[ep]
		if oldest == "" || failedAt.Before(oldestAt) {
			oldest, oldestAt = ep, failedAt
		}
	}
	delete(p.failed, oldest)
	return oldest
}

func (p *Pool) MarkFailed(ep string) {
	p.lk.Lock()
	defer p.lk.Unlock()
	p.failed[ep] = p.now()
	metrics.EndpointFailures.WithLabelValues(ep).Inc()
}
