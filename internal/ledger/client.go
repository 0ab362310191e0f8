package ledger

import "context"

// Client talks to one ledger endpoint.
type Client interface {
	Endpoint() string

	LatestHeight(ctx context.Context) (int64, error)
	Account(ctx context.Context, address string) (*AccountInfo, error)
	Balance(ctx context.Context, address, denom string) (*Coin, error)

	// Simulate returns the gas used by txBytes without committing it.
	Simulate(ctx context.Context, txBytes []byte) (uint64, error)
	// BroadcastTx submits txBytes and returns once the endpoint checked it.
	BroadcastTx(ctx context.Context, txBytes []byte) (*TxResponse, error)
	// GetTx returns ErrNotFound until the transaction is part of a block.
	GetTx(ctx context.Context, hash string) (*TxResponse, error)

	Bids(ctx context.Context, owner string, dseq uint64) ([]BidRecord, error)
	Provider(ctx context.Context, owner string) (*Provider, error)
	Deployment(ctx context.Context, id DeploymentID) (*DeploymentInfo, error)
	Deployments(ctx context.Context, owner, state string) ([]DeploymentInfo, error)
	Leases(ctx context.Context, owner string, dseq uint64) ([]Lease, error)
}

// Dialer returns a Client for the given endpoint.
type Dialer func(endpoint string) Client
