package computing

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagrangedao/go-akash-deployer/internal/broadcast"
	"github.com/lagrangedao/go-akash-deployer/internal/certs"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
	"github.com/lagrangedao/go-akash-deployer/internal/market"
	"github.com/lagrangedao/go-akash-deployer/internal/provider"
	"github.com/lagrangedao/go-akash-deployer/yaml"
)

const owner = "akash1owner"

type testSigner struct{}

func (testSigner) Address() string                    { return owner }
func (testSigner) PubKey() []byte                     { return bytes.Repeat([]byte{2}, 33) }
func (testSigner) Sign(digest []byte) ([]byte, error) { return make([]byte, 64), nil }

type fakeLedger struct {
	lk          sync.Mutex
	height      int64
	deployments map[uint64]bool
	closed      map[uint64]bool
	leases      map[uint64][]ledger.Lease

	// blockEvery advances the height by one every blockEvery height reads
	blockEvery int
	reads      int
}

func (l *fakeLedger) LatestHeight(ctx context.Context) (int64, error) {
	l.lk.Lock()
	defer l.lk.Unlock()
	height := l.height
	if l.blockEvery > 0 {
		height += int64(l.reads / l.blockEvery)
	}
	l.reads++
	return height, nil
}

func (l *fakeLedger) Deployment(ctx context.Context, id ledger.DeploymentID) (*ledger.DeploymentInfo, error) {
	if l.closed[id.DSeq] {
		return &ledger.DeploymentInfo{Deployment: ledger.Deployment{ID: id, State: "closed"}}, nil
	}
	if !l.deployments[id.DSeq] {
		return nil, ledger.ErrNotFound
	}
	return &ledger.DeploymentInfo{Deployment: ledger.Deployment{ID: id, State: "active"}}, nil
}

func (l *fakeLedger) Deployments(ctx context.Context, owner, state string) ([]ledger.DeploymentInfo, error) {
	var infos []ledger.DeploymentInfo
	for dseq := range l.deployments {
		infos = append(infos, ledger.DeploymentInfo{
			Deployment: ledger.Deployment{ID: ledger.DeploymentID{Owner: owner, DSeq: dseq}, State: "active"},
			Groups: []ledger.Group{{Spec: ledger.GroupSpec{Resources: []ledger.ResourceUnit{{
				Count: 2,
				Resources: ledger.Resources{
					CPU:     ledger.ResourceValue{Val: 500},
					Memory:  ledger.ResourceValue{Val: 512},
					Storage: []ledger.Storage{{Quantity: ledger.ResourceValue{Val: 1024}}},
				},
			}}}}},
		})
	}
	return infos, nil
}

func (l *fakeLedger) Leases(ctx context.Context, owner string, dseq uint64) ([]ledger.Lease, error) {
	return l.leases[dseq], nil
}

type recordingBroadcaster struct {
	lk   sync.Mutex
	msgs []ledger.Msg
	err  error
}

func (b *recordingBroadcaster) Broadcast(ctx context.Context, signer ledger.Signer, msgs []ledger.Msg, memo string) (*broadcast.TxResult, error) {
	b.lk.Lock()
	defer b.lk.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.msgs = append(b.msgs, msgs...)
	return &broadcast.TxResult{TxHash: "HASH", Height: 101}, nil
}

type staticCerts struct{}

func (staticCerts) GetOrCreate(ctx context.Context, signer ledger.Signer) (*certs.Certificate, error) {
	return &certs.Certificate{Address: signer.Address()}, nil
}

func (staticCerts) Cached(address string) (*certs.Certificate, error) {
	return &certs.Certificate{Address: address}, nil
}

type staticBids struct {
	bid *ledger.Bid
	err error
}

func (b staticBids) CollectAndSelect(ctx context.Context, dseq uint64, owner string, preferred []string) (*ledger.Bid, error) {
	if b.err != nil {
		return nil, b.err
	}
	bid := *b.bid
	bid.ID.DSeq = dseq
	return &bid, nil
}

type directLeaser struct{}

func (directLeaser) CreateLease(ctx context.Context, deployment ledger.DeploymentID, bid *ledger.Bid, signer ledger.Signer) (*ledger.Lease, error) {
	id := ledger.LeaseID{Owner: bid.ID.Owner, DSeq: bid.ID.DSeq, GSeq: bid.ID.GSeq, OSeq: bid.ID.OSeq, Provider: bid.ID.Provider}
	return &ledger.Lease{ID: id, State: "active", Price: bid.Price}, nil
}

type fakeProvider struct {
	lk          sync.Mutex
	manifestErr error
	finalizeErr error
	snapshots   []*provider.DeploymentEndpoint
	calls       int
	manifest    []byte
}

func (p *fakeProvider) HostURI(ctx context.Context, owner string) (string, error) {
	return "https://provider.example:8443", nil
}

func (p *fakeProvider) SendManifest(ctx context.Context, manifest []byte, lease ledger.LeaseID, cert *certs.Certificate) (string, error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	p.manifest = manifest
	if p.manifestErr != nil {
		return "", p.manifestErr
	}
	return "https://provider.example:8443", nil
}

func (p *fakeProvider) Finalize(ctx context.Context, lease ledger.LeaseID, hostURI string, cert *certs.Certificate) (*provider.DeploymentEndpoint, error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	if p.finalizeErr != nil {
		return nil, p.finalizeErr
	}
	if len(p.snapshots) == 0 {
		return nil, nil
	}
	i := p.calls
	if i >= len(p.snapshots) {
		i = len(p.snapshots) - 1
	}
	p.calls++
	return p.snapshots[i], nil
}

type urlLog struct {
	urls map[uint64]string
}

func (u *urlLog) RecordURL(dseq uint64, url string) error {
	u.urls[dseq] = url
	return nil
}

type transitions struct {
	lk     sync.Mutex
	states []DeployState
}

func (t *transitions) OnTransition(tr Transition) {
	t.lk.Lock()
	defer t.lk.Unlock()
	t.states = append(t.states, tr.State)
}

func readyEndpoint(url string) *provider.DeploymentEndpoint {
	return &provider.DeploymentEndpoint{
		URL:      url,
		Services: []provider.ServiceReadiness{{Name: "web", Available: 1, Total: 1}},
	}
}

func testWorkload(t *testing.T) *yaml.Workload {
	workload, err := yaml.ParseSDL([]byte(testSDL))
	require.NoError(t, err)
	return workload
}

const testSDL = `
version: "2.0"
services:
  web:
    image: nginx
    expose:
      - port: 80
        as: 80
        to:
          - global: true
profiles:
  compute:
    web:
      resources:
        cpu:
          units: 0.5
        memory:
          size: 512Mi
        storage:
          size: 1Gi
  placement:
    dcloud:
      pricing:
        web:
          denom: uakt
          amount: 1000
deployment:
  web:
    dcloud:
      profile: web
      count: 1
`

func newTestOrchestrator(prov *fakeProvider, bids staticBids) (*Orchestrator, *recordingBroadcaster, *urlLog) {
	broadcaster := &recordingBroadcaster{}
	urls := &urlLog{urls: map[uint64]string{}}
	return &Orchestrator{
		Ledger:           &fakeLedger{height: 4242},
		Broadcaster:      broadcaster,
		Certs:            staticCerts{},
		Bids:             bids,
		Leases:           directLeaser{},
		Providers:        prov,
		URLs:             urls,
		FinalizeAttempts: 3,
		FinalizeInterval: time.Millisecond,
	}, broadcaster, urls
}

func providerBid() staticBids {
	return staticBids{bid: &ledger.Bid{
		ID:    ledger.BidID{Owner: owner, GSeq: 1, OSeq: 1, Provider: "akash1provider"},
		Price: ledger.DecCoin{Denom: "uakt", Amount: "9.5"},
	}}
}

func TestDeployReady(t *testing.T) {
	prov := &fakeProvider{snapshots: []*provider.DeploymentEndpoint{
		{URL: "", Services: []provider.ServiceReadiness{{Name: "web", Available: 0, Total: 1}}},
		readyEndpoint("http://1.2.3.4:8080"),
	}}
	o, broadcaster, urls := newTestOrchestrator(prov, providerBid())
	observer := &transitions{}

	result, err := o.Deploy(context.Background(), testSigner{}, testWorkload(t), observer)
	require.NoError(t, err)
	assert.Equal(t, StateReady, result.State)
	assert.Equal(t, uint64(4242), result.DSeq)
	assert.Equal(t, "akash1provider", result.Provider)
	assert.Equal(t, "http://1.2.3.4:8080", result.URL)
	assert.Equal(t, "http://1.2.3.4:8080", urls.urls[4242])
	assert.NotEmpty(t, prov.manifest)

	require.Len(t, broadcaster.msgs, 1)
	create, ok := broadcaster.msgs[0].(*ledger.MsgCreateDeployment)
	require.True(t, ok)
	assert.Equal(t, ledger.DeploymentID{Owner: owner, DSeq: 4242}, create.ID)
	assert.Equal(t, "1000000", create.Deposit.Amount)
	assert.Equal(t, owner, create.Depositor)

	assert.Equal(t, []DeployState{
		StateCreated, StateBroadcasting, StateAwaitingBids, StateLeasing,
		StateSendingManifest, StateFinalizing, StateReady,
	}, observer.states)
}

func TestDeployDegradedWhenServicesNeverReady(t *testing.T) {
	prov := &fakeProvider{snapshots: []*provider.DeploymentEndpoint{
		{URL: "http://1.2.3.4:8080", Services: []provider.ServiceReadiness{{Name: "web", Available: 0, Total: 1}}},
	}}
	o, _, _ := newTestOrchestrator(prov, providerBid())

	result, err := o.Deploy(context.Background(), testSigner{}, testWorkload(t), nil)
	require.NoError(t, err)
	assert.Equal(t, StateDegraded, result.State)
	assert.Equal(t, 3, prov.calls)
}

func TestDeployDegradedWithoutStatus(t *testing.T) {
	o, _, urls := newTestOrchestrator(&fakeProvider{}, providerBid())

	result, err := o.Deploy(context.Background(), testSigner{}, testWorkload(t), nil)
	require.NoError(t, err)
	assert.Equal(t, StateDegraded, result.State)
	assert.Empty(t, result.URL)
	assert.Empty(t, urls.urls)
}

func TestDeployReportsFurthestState(t *testing.T) {
	timeout := &market.BidTimeoutError{DSeq: 4242, Waited: "5m0s"}
	o, _, _ := newTestOrchestrator(&fakeProvider{}, staticBids{err: timeout})
	observer := &transitions{}

	_, err := o.Deploy(context.Background(), testSigner{}, testWorkload(t), observer)
	var wfErr *WorkflowError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, StateAwaitingBids, wfErr.State)
	assert.Equal(t, uint64(4242), wfErr.DSeq)

	var bidErr *market.BidTimeoutError
	assert.ErrorAs(t, err, &bidErr)
	assert.Equal(t, StateFailed, observer.states[len(observer.states)-1])
}

func TestDeployManifestRejected(t *testing.T) {
	rejected := &provider.ManifestRejectedError{StatusCode: 500, Body: "insufficient capacity"}
	o, _, _ := newTestOrchestrator(&fakeProvider{manifestErr: rejected}, providerBid())

	_, err := o.Deploy(context.Background(), testSigner{}, testWorkload(t), nil)
	var wfErr *WorkflowError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, StateSendingManifest, wfErr.State)
	assert.Contains(t, err.Error(), "insufficient capacity")
}

func TestDeployBroadcastFailure(t *testing.T) {
	o, broadcaster, _ := newTestOrchestrator(&fakeProvider{}, providerBid())
	broadcaster.err = errors.New("no endpoint succeeded")

	_, err := o.Deploy(context.Background(), testSigner{}, testWorkload(t), nil)
	var wfErr *WorkflowError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, StateBroadcasting, wfErr.State)
}

func TestDeployDegradedWhenStatusFails(t *testing.T) {
	prov := &fakeProvider{finalizeErr: errors.New("certificate rejected")}
	o, broadcaster, urls := newTestOrchestrator(prov, providerBid())
	obs := &transitions{}

	result, err := o.Deploy(context.Background(), testSigner{}, testWorkload(t), obs)
	require.NoError(t, err)
	assert.Equal(t, StateDegraded, result.State)
	assert.Equal(t, uint64(4242), result.DSeq)
	assert.NotEmpty(t, prov.manifest)
	assert.Empty(t, urls.urls)
	assert.Len(t, broadcaster.msgs, 1)
	assert.NotContains(t, obs.states, StateFailed)
}

func TestConcurrentDeploysUseDistinctDSeqs(t *testing.T) {
	o, broadcaster, _ := newTestOrchestrator(&fakeProvider{}, providerBid())
	o.Ledger = &fakeLedger{height: 4242, blockEvery: 2}
	o.HeightPollInterval = time.Millisecond

	const n = 4
	var wg sync.WaitGroup
	results := make([]*DeployResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		workload := testWorkload(t)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = o.Deploy(context.Background(), testSigner{}, workload, nil)
		}(i)
	}
	wg.Wait()

	seen := map[uint64]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[results[i].DSeq], "dseq %d reused", results[i].DSeq)
		seen[results[i].DSeq] = true
	}
	require.Len(t, broadcaster.msgs, n)
	for _, msg := range broadcaster.msgs {
		create := msg.(*ledger.MsgCreateDeployment)
		assert.True(t, seen[create.ID.DSeq])
	}
}

func TestDeployWaitsForNewBlock(t *testing.T) {
	o, broadcaster, _ := newTestOrchestrator(&fakeProvider{}, providerBid())
	ledgerFake := &fakeLedger{height: 4242, blockEvery: 3}
	o.Ledger = ledgerFake
	o.HeightPollInterval = time.Millisecond

	first, err := o.Deploy(context.Background(), testSigner{}, testWorkload(t), nil)
	require.NoError(t, err)
	second, err := o.Deploy(context.Background(), testSigner{}, testWorkload(t), nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(4242), first.DSeq)
	assert.Equal(t, uint64(4243), second.DSeq)
	assert.Equal(t, 4, ledgerFake.reads)
	assert.Len(t, broadcaster.msgs, 2)
}
