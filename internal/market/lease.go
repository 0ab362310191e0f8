package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/filswan/go-swan-lib/logs"

	"github.com/lagrangedao/go-akash-deployer/constants"
	"github.com/lagrangedao/go-akash-deployer/internal/broadcast"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
)

type Broadcaster interface {
	Broadcast(ctx context.Context, signer ledger.Signer, msgs []ledger.Msg, memo string) (*broadcast.TxResult, error)
}

// Leaser turns an accepted bid into a lease.
type Leaser struct {
	broadcaster Broadcaster
}

func NewLeaser(broadcaster Broadcaster) *Leaser {
	return &Leaser{broadcaster: broadcaster}
}

// CreateLease accepts bid for deployment. The lease identity is taken from
// the bid, so no query is needed to learn the provider.
func (l *Leaser) CreateLease(ctx context.Context, deployment ledger.DeploymentID, bid *ledger.Bid, signer ledger.Signer) (*ledger.Lease, error) {
	if bid.ID.Owner != deployment.Owner || bid.ID.DSeq != deployment.DSeq {
		return nil, fmt.Errorf("bid %s/%d does not belong to deployment %s", bid.ID.Owner, bid.ID.DSeq, deployment)
	}

	msg := &ledger.MsgCreateLease{BidID: bid.ID}
	res, err := l.broadcaster.Broadcast(ctx, signer, []ledger.Msg{msg}, constants.MemoCreateLease)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := err.Error()
		var noSuccess *broadcast.NoEndpointSucceededError
		if errors.As(err, &noSuccess) {
			detail = noSuccess.RawLogs()
		}
		return nil, &LeaseRejectedError{BidID: bidString(bid.ID), Detail: detail, Err: err}
	}

	lease := &ledger.Lease{
		ID: ledger.LeaseID{
			Owner:    bid.ID.Owner,
			DSeq:     bid.ID.DSeq,
			GSeq:     bid.ID.GSeq,
			OSeq:     bid.ID.OSeq,
			Provider: bid.ID.Provider,
		},
		State:     "active",
		Price:     bid.Price,
		CreatedAt: res.Height,
	}
	logs.GetLogger().Infof("created lease %s, txhash: %s", lease.ID, res.TxHash)
	return lease, nil
}

func bidString(id ledger.BidID) string {
	return fmt.Sprintf("%s/%d/%d/%d/%s", id.Owner, id.DSeq, id.GSeq, id.OSeq, id.Provider)
}
