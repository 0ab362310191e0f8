package computing

import (
	"context"
	"fmt"

	"github.com/filswan/go-swan-lib/logs"

	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
	"github.com/lagrangedao/go-akash-deployer/internal/provider"
)

// DeploymentView is one row of the deployment overview.
type DeploymentView struct {
	DSeq      uint64                      `json:"dseq"`
	State     string                      `json:"state"`
	CPU       uint64                      `json:"cpu_millis"`
	Memory    uint64                      `json:"memory_bytes"`
	Storage   uint64                      `json:"storage_bytes"`
	Provider  string                      `json:"provider"`
	HostURI   string                      `json:"host_uri"`
	Price     ledger.DecCoin              `json:"price"`
	PublicURL string                      `json:"public_url"`
	Ready     bool                        `json:"ready"`
	Services  []provider.ServiceReadiness `json:"services"`
}

// List returns the active deployments of owner with their lease and the
// public address the provider reports. Provider failures leave the address
// empty and do not fail the listing.
func (o *Orchestrator) List(ctx context.Context, owner string) ([]DeploymentView, error) {
	deployments, err := o.Ledger.Deployments(ctx, owner, deploymentActive)
	if err != nil {
		return nil, fmt.Errorf("failed list deployments of %s, error: %w", owner, err)
	}

	views := make([]DeploymentView, 0, len(deployments))
	for _, info := range deployments {
		view := DeploymentView{
			DSeq:  info.Deployment.ID.DSeq,
			State: info.Deployment.State,
		}
		if len(info.Groups) > 0 {
			for _, unit := range info.Groups[0].Spec.Resources {
				count := uint64(unit.Count)
				view.CPU += unit.Resources.CPU.Val * count
				view.Memory += unit.Resources.Memory.Val * count
				for _, s := range unit.Resources.Storage {
					view.Storage += s.Quantity.Val * count
				}
			}
		}

		leases, err := o.Ledger.Leases(ctx, owner, view.DSeq)
		if err != nil {
			logs.GetLogger().Warnf("failed get leases of deployment %d, error: %v", view.DSeq, err)
			views = append(views, view)
			continue
		}
		lease := activeLease(leases)
		if lease == nil {
			views = append(views, view)
			continue
		}
		view.Provider = lease.ID.Provider
		view.Price = lease.Price
		o.describeLease(ctx, lease.ID, &view)
		views = append(views, view)
	}
	return views, nil
}

func (o *Orchestrator) describeLease(ctx context.Context, lease ledger.LeaseID, view *DeploymentView) {
	hostURI, err := o.Providers.HostURI(ctx, lease.Provider)
	if err != nil {
		logs.GetLogger().Warnf("failed get host of provider %s, error: %v", lease.Provider, err)
		return
	}
	view.HostURI = hostURI

	cert, err := o.Certs.Cached(lease.Owner)
	if err != nil || cert == nil {
		return
	}
	endpoint, err := o.Providers.Finalize(ctx, lease, hostURI, cert)
	if err != nil || endpoint == nil {
		return
	}
	view.PublicURL = endpoint.URL
	view.Services = endpoint.Services
	view.Ready = endpoint.Ready()
}

func activeLease(leases []ledger.Lease) *ledger.Lease {
	for i := range leases {
		if leases[i].State == deploymentActive {
			return &leases[i]
		}
	}
	if len(leases) > 0 {
		return &leases[0]
	}
	return nil
}
