package ledger

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/lagrangedao/go-akash-deployer/internal/endpoint"
)

// Querier runs read only ledger queries against the endpoint pool. An
// endpoint that turns out unavailable is marked failed and the query moves
// on to the next one.
type Querier struct {
	pool     *endpoint.Pool
	dial     Dialer
	attempts uint
	delay    time.Duration
}

func NewQuerier(pool *endpoint.Pool, dial Dialer) *Querier {
	return &Querier{
		pool:     pool,
		dial:     dial,
		attempts: uint(len(pool.Endpoints())) + 1,
		delay:    200 * time.Millisecond,
	}
}

func (q *Querier) Pool() *endpoint.Pool {
	return q.pool
}

// Dial returns a client for a specific endpoint, bypassing rotation.
func (q *Querier) Dial(ep string) Client {
	return q.dial(ep)
}

func query[T any](ctx context.Context, q *Querier, fn func(Client) (T, error)) (T, error) {
	return retry.DoWithData(
		func() (T, error) {
			ep := q.pool.Next()
			result, err := fn(q.dial(ep))
			if err != nil && IsEndpointUnavailable(err) {
				q.pool.MarkFailed(ep)
			}
			return result, err
		},
		retry.Context(ctx),
		retry.Attempts(q.attempts),
		retry.Delay(q.delay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(IsEndpointUnavailable),
		retry.LastErrorOnly(true),
	)
}

func (q *Querier) LatestHeight(ctx context.Context) (int64, error) {
	return query(ctx, q, func(c Client) (int64, error) {
		return c.LatestHeight(ctx)
	})
}

func (q *Querier) Account(ctx context.Context, address string) (*AccountInfo, error) {
	return query(ctx, q, func(c Client) (*AccountInfo, error) {
		return c.Account(ctx, address)
	})
}

func (q *Querier) Balance(ctx context.Context, address, denom string) (*Coin, error) {
	return query(ctx, q, func(c Client) (*Coin, error) {
		return c.Balance(ctx, address, denom)
	})
}

func (q *Querier) Simulate(ctx context.Context, txBytes []byte) (uint64, error) {
	return query(ctx, q, func(c Client) (uint64, error) {
		return c.Simulate(ctx, txBytes)
	})
}

func (q *Querier) Bids(ctx context.Context, owner string, dseq uint64) ([]BidRecord, error) {
	return query(ctx, q, func(c Client) ([]BidRecord, error) {
		return c.Bids(ctx, owner, dseq)
	})
}

func (q *Querier) Provider(ctx context.Context, owner string) (*Provider, error) {
	return query(ctx, q, func(c Client) (*Provider, error) {
		return c.Provider(ctx, owner)
	})
}

func (q *Querier) Deployment(ctx context.Context, id DeploymentID) (*DeploymentInfo, error) {
	return query(ctx, q, func(c Client) (*DeploymentInfo, error) {
		return c.Deployment(ctx, id)
	})
}

func (q *Querier) Deployments(ctx context.Context, owner, state string) ([]DeploymentInfo, error) {
	return query(ctx, q, func(c Client) ([]DeploymentInfo, error) {
		return c.Deployments(ctx, owner, state)
	})
}

func (q *Querier) Leases(ctx context.Context, owner string, dseq uint64) ([]Lease, error) {
	return query(ctx, q, func(c Client) ([]Lease, error) {
		return c.Leases(ctx, owner, dseq)
	})
}
