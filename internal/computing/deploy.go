package computing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/filswan/go-swan-lib/logs"

	"github.com/lagrangedao/go-akash-deployer/constants"
	"github.com/lagrangedao/go-akash-deployer/internal/broadcast"
	"github.com/lagrangedao/go-akash-deployer/internal/certs"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
	"github.com/lagrangedao/go-akash-deployer/internal/metrics"
	"github.com/lagrangedao/go-akash-deployer/internal/provider"
	"github.com/lagrangedao/go-akash-deployer/yaml"
)

type DeployState string

const (
	StateCreated         DeployState = "created"
	StateBroadcasting    DeployState = "broadcasting"
	StateAwaitingBids    DeployState = "awaiting_bids"
	StateLeasing         DeployState = "leasing"
	StateSendingManifest DeployState = "sending_manifest"
	StateFinalizing      DeployState = "finalizing"
	StateReady           DeployState = "ready"
	StateDegraded        DeployState = "degraded"
	StateFailed          DeployState = "failed"
)

// WorkflowError reports the furthest state a deployment reached and the
// error that stopped it. DSeq is zero when the deployment was never created.
type WorkflowError struct {
	State DeployState
	DSeq  uint64
	Err   error
}

func (e *WorkflowError) Error() string {
	if e.DSeq == 0 {
		return fmt.Sprintf("deployment failed in state %s: %v", e.State, e.Err)
	}
	return fmt.Sprintf("deployment %d failed in state %s: %v", e.DSeq, e.State, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Transition is published every time a workflow changes state.
type Transition struct {
	Workflow string
	DSeq     uint64
	State    DeployState
	Detail   string
	At       time.Time
}

type Observer interface {
	OnTransition(t Transition)
}

type ObserverFunc func(t Transition)

func (f ObserverFunc) OnTransition(t Transition) {
	f(t)
}

type Ledger interface {
	LatestHeight(ctx context.Context) (int64, error)
	Deployment(ctx context.Context, id ledger.DeploymentID) (*ledger.DeploymentInfo, error)
	Deployments(ctx context.Context, owner, state string) ([]ledger.DeploymentInfo, error)
	Leases(ctx context.Context, owner string, dseq uint64) ([]ledger.Lease, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, signer ledger.Signer, msgs []ledger.Msg, memo string) (*broadcast.TxResult, error)
}

type CertProvider interface {
	GetOrCreate(ctx context.Context, signer ledger.Signer) (*certs.Certificate, error)
	Cached(address string) (*certs.Certificate, error)
}

type BidCollector interface {
	CollectAndSelect(ctx context.Context, dseq uint64, owner string, preferred []string) (*ledger.Bid, error)
}

type LeaseCreator interface {
	CreateLease(ctx context.Context, deployment ledger.DeploymentID, bid *ledger.Bid, signer ledger.Signer) (*ledger.Lease, error)
}

type ProviderClient interface {
	HostURI(ctx context.Context, provider string) (string, error)
	SendManifest(ctx context.Context, manifest []byte, lease ledger.LeaseID, cert *certs.Certificate) (string, error)
	Finalize(ctx context.Context, lease ledger.LeaseID, hostURI string, cert *certs.Certificate) (*provider.DeploymentEndpoint, error)
}

type URLRecorder interface {
	RecordURL(dseq uint64, url string) error
}

// Orchestrator drives deployments from SDL to a running lease and tears
// them down again.
type Orchestrator struct {
	Ledger      Ledger
	Broadcaster Broadcaster
	Certs       CertProvider
	Bids        BidCollector
	Leases      LeaseCreator
	Providers   ProviderClient
	URLs        URLRecorder

	Deposit            ledger.Coin
	PreferredProviders []string
	FinalizeAttempts   int
	FinalizeInterval   time.Duration
	// HeightPollInterval is how long a deployment waits for a new block
	// when the latest height was already used as a dseq.
	HeightPollInterval time.Duration

	dseqLk   sync.Mutex
	lastDSeq map[string]uint64
}

// DeployResult describes a deployment that reached a lease.
type DeployResult struct {
	DSeq     uint64                      `json:"dseq"`
	Owner    string                      `json:"owner"`
	Provider string                      `json:"provider"`
	State    DeployState                 `json:"state"`
	URL      string                      `json:"url"`
	Price    ledger.DecCoin              `json:"price"`
	TxHash   string                      `json:"tx_hash"`
	Services []provider.ServiceReadiness `json:"services"`
}

type workflow struct {
	kind     string
	dseq     uint64
	state    DeployState
	observer Observer
}

func (w *workflow) enter(state DeployState, detail string) {
	w.state = state
	metrics.WorkflowTransitions.WithLabelValues(w.kind, string(state)).Inc()
	logs.GetLogger().Infof("%s %d: %s %s", w.kind, w.dseq, state, detail)
	if w.observer != nil {
		w.observer.OnTransition(Transition{Workflow: w.kind, DSeq: w.dseq, State: state, Detail: detail, At: time.Now()})
	}
}

func (w *workflow) fail(err error) error {
	metrics.WorkflowFailures.WithLabelValues(w.kind, string(w.state)).Inc()
	wfErr := &WorkflowError{State: w.state, DSeq: w.dseq, Err: err}
	if w.observer != nil {
		w.observer.OnTransition(Transition{Workflow: w.kind, DSeq: w.dseq, State: StateFailed, Detail: wfErr.Error(), At: time.Now()})
	}
	return wfErr
}

// Deploy runs the deployment workflow for workload. A failure after the
// deployment was created leaves it on the ledger, Teardown closes it.
func (o *Orchestrator) Deploy(ctx context.Context, signer ledger.Signer, workload *yaml.Workload, observer Observer) (*DeployResult, error) {
	owner := signer.Address()
	wf := &workflow{kind: "deploy", observer: observer}
	wf.enter(StateCreated, owner)

	cert, err := o.Certs.GetOrCreate(ctx, signer)
	if err != nil {
		return nil, wf.fail(err)
	}

	wf.enter(StateBroadcasting, "")
	deploymentID, tx, err := o.createDeployment(ctx, signer, workload, wf)
	if err != nil {
		return nil, wf.fail(err)
	}

	wf.enter(StateAwaitingBids, tx.TxHash)
	bid, err := o.Bids.CollectAndSelect(ctx, wf.dseq, owner, o.PreferredProviders)
	if err != nil {
		return nil, wf.fail(err)
	}

	wf.enter(StateLeasing, bid.Provider())
	lease, err := o.Leases.CreateLease(ctx, deploymentID, bid, signer)
	if err != nil {
		return nil, wf.fail(err)
	}

	wf.enter(StateSendingManifest, lease.ID.String())
	manifest, err := workload.ManifestJSON()
	if err != nil {
		return nil, wf.fail(err)
	}
	hostURI, err := o.Providers.SendManifest(ctx, manifest, lease.ID, cert)
	if err != nil {
		return nil, wf.fail(err)
	}

	// the lease is live once the manifest is accepted, status errors only
	// degrade the result
	wf.enter(StateFinalizing, hostURI)
	endpoint, err := o.finalize(ctx, lease.ID, hostURI, cert)
	if err != nil {
		logs.GetLogger().Warnf("failed finalize deployment %d, error: %v", wf.dseq, err)
	}

	result := &DeployResult{
		DSeq:     wf.dseq,
		Owner:    owner,
		Provider: lease.ID.Provider,
		State:    StateDegraded,
		Price:    lease.Price,
		TxHash:   tx.TxHash,
	}
	if endpoint != nil {
		result.URL = endpoint.URL
		result.Services = endpoint.Services
		if endpoint.Ready() {
			result.State = StateReady
		}
	}
	if result.URL != "" && o.URLs != nil {
		if err := o.URLs.RecordURL(wf.dseq, result.URL); err != nil {
			logs.GetLogger().Errorf("failed record url of deployment %d, error: %v", wf.dseq, err)
		}
	}
	wf.enter(result.State, result.URL)
	return result, nil
}

// createDeployment picks the dseq and broadcasts the deployment. Height read
// and broadcast run under one lock and every dseq of an owner is strictly
// greater than the one before, so concurrent deployments never collide.
func (o *Orchestrator) createDeployment(ctx context.Context, signer ledger.Signer, workload *yaml.Workload, wf *workflow) (ledger.DeploymentID, *broadcast.TxResult, error) {
	owner := signer.Address()
	o.dseqLk.Lock()
	defer o.dseqLk.Unlock()

	dseq, err := o.nextDSeq(ctx, owner)
	if err != nil {
		return ledger.DeploymentID{}, nil, err
	}
	wf.dseq = dseq
	deploymentID := ledger.DeploymentID{Owner: owner, DSeq: dseq}

	msg := &ledger.MsgCreateDeployment{
		ID:        deploymentID,
		Groups:    workload.Groups,
		Version:   workload.Version,
		Deposit:   o.deposit(),
		Depositor: owner,
	}
	tx, err := o.Broadcaster.Broadcast(ctx, signer, []ledger.Msg{msg}, constants.MemoCreateDeployment)
	if err != nil {
		return deploymentID, nil, err
	}
	if o.lastDSeq == nil {
		o.lastDSeq = make(map[string]uint64)
	}
	o.lastDSeq[owner] = dseq
	return deploymentID, tx, nil
}

// nextDSeq returns the latest height once it is above the last dseq used by
// owner. Callers hold dseqLk.
func (o *Orchestrator) nextDSeq(ctx context.Context, owner string) (uint64, error) {
	interval := o.HeightPollInterval
	if interval <= 0 {
		interval = constants.HeightPollInterval
	}
	for {
		height, err := o.Ledger.LatestHeight(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed get latest height, error: %w", err)
		}
		if uint64(height) > o.lastDSeq[owner] {
			return uint64(height), nil
		}
		logs.GetLogger().Debugf("height %d already used by %s, waiting for the next block", height, owner)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// finalize takes status snapshots until every service is ready or the
// attempts run out, and returns the last snapshot.
func (o *Orchestrator) finalize(ctx context.Context, lease ledger.LeaseID, hostURI string, cert *certs.Certificate) (*provider.DeploymentEndpoint, error) {
	attempts := o.FinalizeAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var last *provider.DeploymentEndpoint
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.FinalizeInterval):
			}
		}
		endpoint, err := o.Providers.Finalize(ctx, lease, hostURI, cert)
		if err != nil {
			return nil, err
		}
		if endpoint != nil {
			last = endpoint
			if endpoint.Ready() {
				return endpoint, nil
			}
		}
	}
	return last, nil
}

func (o *Orchestrator) deposit() ledger.Coin {
	if o.Deposit.Amount == "" {
		return ledger.Coin{Denom: constants.DefaultDenom, Amount: constants.DefaultDeposit}
	}
	return o.Deposit
}
