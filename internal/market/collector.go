package market

import (
	"context"
	"time"

	"github.com/filswan/go-swan-lib/logs"

	"github.com/lagrangedao/go-akash-deployer/constants"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
	"github.com/lagrangedao/go-akash-deployer/internal/metrics"
)

// BidQuerier lists the bids placed on a deployment.
type BidQuerier interface {
	Bids(ctx context.Context, owner string, dseq uint64) ([]ledger.BidRecord, error)
}

// Collector waits for providers to bid on a deployment and picks one.
type Collector struct {
	querier  BidQuerier
	grace    time.Duration
	interval time.Duration
	timeout  time.Duration
}

type CollectorOption func(*Collector)

func WithTiming(grace, interval, timeout time.Duration) CollectorOption {
	return func(c *Collector) {
		c.grace = grace
		c.interval = interval
		c.timeout = timeout
	}
}

func NewCollector(querier BidQuerier, opts ...CollectorOption) *Collector {
	c := &Collector{
		querier:  querier,
		grace:    constants.BidGracePeriod,
		interval: constants.BidPollInterval,
		timeout:  constants.BidTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectAndSelect waits the grace period, then polls the bids of dseq on a
// fixed interval until a poll yields a usable bid or the timeout, measured
// from the call, expires. Poll errors are logged and the loop carries on.
func (c *Collector) CollectAndSelect(ctx context.Context, dseq uint64, owner string, preferred []string) (*ledger.Bid, error) {
	timeout := time.NewTimer(c.timeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout.C:
		return nil, &BidTimeoutError{DSeq: dseq, Waited: c.timeout.String()}
	case <-time.After(c.grace):
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	var invalid int
	for {
		records, err := c.querier.Bids(ctx, owner, dseq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logs.GetLogger().Warnf("failed query bids of deployment %d, error: %v", dseq, err)
		} else {
			var bids []*ledger.Bid
			bids, invalid = ValidBids(records)
			if bid := SelectBid(bids, preferred); bid != nil {
				metrics.BidsReceived.Observe(float64(len(bids)))
				logs.GetLogger().Infof("selected bid of %s at %s%s for deployment %d out of %d bids",
					bid.Provider(), bid.Price.Amount, bid.Price.Denom, dseq, len(bids))
				return bid, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			metrics.BidsReceived.Observe(0)
			return nil, &BidTimeoutError{DSeq: dseq, Waited: c.timeout.String(), Invalid: invalid}
		case <-ticker.C:
		}
	}
}
