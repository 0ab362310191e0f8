package computing

import (
	"context"
	"errors"
	"fmt"

	"github.com/filswan/go-swan-lib/logs"
	"golang.org/x/sync/errgroup"

	"github.com/lagrangedao/go-akash-deployer/constants"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
)

const (
	StateRequested DeployState = "requested"
	StateVerifying DeployState = "verifying"
	StateClosing   DeployState = "closing"
	StateClosed    DeployState = "closed"
)

const deploymentActive = "active"

// TeardownResult is the outcome of closing one deployment.
type TeardownResult struct {
	DSeq   uint64      `json:"dseq"`
	State  DeployState `json:"state"`
	TxHash string      `json:"tx_hash,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func (r TeardownResult) Closed() bool {
	return r.State == StateClosed
}

// Teardown closes the given deployments of the signer, at most
// constants.TeardownParallelism at a time. Every target yields its own
// result. Without targets all active deployments of the signer are closed.
func (o *Orchestrator) Teardown(ctx context.Context, signer ledger.Signer, dseqs []uint64, observer Observer) ([]TeardownResult, error) {
	owner := signer.Address()
	if len(dseqs) == 0 {
		active, err := o.Ledger.Deployments(ctx, owner, deploymentActive)
		if err != nil {
			return nil, fmt.Errorf("failed list active deployments of %s, error: %w", owner, err)
		}
		for _, d := range active {
			dseqs = append(dseqs, d.Deployment.ID.DSeq)
		}
		if len(dseqs) == 0 {
			logs.GetLogger().Infof("no active deployments of %s", owner)
			return []TeardownResult{}, nil
		}
	}

	results := make([]TeardownResult, len(dseqs))
	group := new(errgroup.Group)
	group.SetLimit(constants.TeardownParallelism)
	for i, dseq := range dseqs {
		i, dseq := i, dseq
		group.Go(func() error {
			results[i] = o.closeDeployment(ctx, signer, dseq, observer)
			return nil
		})
	}
	_ = group.Wait()
	return results, nil
}

func (o *Orchestrator) closeDeployment(ctx context.Context, signer ledger.Signer, dseq uint64, observer Observer) TeardownResult {
	wf := &workflow{kind: "teardown", dseq: dseq, observer: observer}
	wf.enter(StateRequested, "")

	failed := func(err error) TeardownResult {
		wfErr := wf.fail(err)
		logs.GetLogger().Errorf("failed close deployment %d, error: %v", dseq, wfErr)
		return TeardownResult{DSeq: dseq, State: StateFailed, Error: err.Error()}
	}

	wf.enter(StateVerifying, "")
	id := ledger.DeploymentID{Owner: signer.Address(), DSeq: dseq}
	info, err := o.Ledger.Deployment(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return failed(fmt.Errorf("deployment %d not found", dseq))
		}
		return failed(err)
	}
	if info.Deployment.State != deploymentActive {
		return failed(fmt.Errorf("deployment %d already %s", dseq, info.Deployment.State))
	}

	wf.enter(StateClosing, "")
	tx, err := o.Broadcaster.Broadcast(ctx, signer, []ledger.Msg{&ledger.MsgCloseDeployment{ID: id}}, constants.MemoCloseDeployment)
	if err != nil {
		return failed(err)
	}

	wf.enter(StateClosed, tx.TxHash)
	return TeardownResult{DSeq: dseq, State: StateClosed, TxHash: tx.TxHash}
}
