package initializer

import (
	"fmt"
	"path/filepath"

	"github.com/filswan/go-swan-lib/logs"

	"github.com/lagrangedao/go-akash-deployer/conf"
	"github.com/lagrangedao/go-akash-deployer/constants"
	"github.com/lagrangedao/go-akash-deployer/internal/broadcast"
	"github.com/lagrangedao/go-akash-deployer/internal/certs"
	"github.com/lagrangedao/go-akash-deployer/internal/computing"
	"github.com/lagrangedao/go-akash-deployer/internal/endpoint"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
	"github.com/lagrangedao/go-akash-deployer/internal/market"
	"github.com/lagrangedao/go-akash-deployer/internal/provider"
	"github.com/lagrangedao/go-akash-deployer/internal/store"
	"github.com/lagrangedao/go-akash-deployer/wallet"
)

const storeRepo = "datastore"

// Deployer holds the components built from the repo config.
type Deployer struct {
	Querier      *ledger.Querier
	Broadcaster  *broadcast.Broadcaster
	Certs        *certs.Manager
	Store        *store.Store
	Orchestrator *computing.Orchestrator
	Signer       *wallet.Account

	wallet *wallet.LocalWallet
}

// ProjectInit loads the config of repoPath and wires the deployer for the
// configured wallet address.
func ProjectInit(repoPath string) (*Deployer, error) {
	if err := conf.InitConfig(repoPath); err != nil {
		return nil, err
	}
	cfg := conf.GetConfig()

	querier, err := NewQuerier(cfg)
	if err != nil {
		return nil, err
	}

	broadcaster, err := broadcast.NewBroadcaster(querier, broadcast.Config{
		ChainID:       cfg.CHAIN.ChainId,
		Denom:         cfg.CHAIN.Denom,
		GasPrice:      cfg.CHAIN.GasPrice,
		GasAdjustment: cfg.CHAIN.GasAdjustment,
	})
	if err != nil {
		return nil, err
	}

	localWallet, err := wallet.SetupWallet(wallet.WalletRepo)
	if err != nil {
		return nil, err
	}
	signer, err := localWallet.Account(cfg.WALLET.Address)
	if err != nil {
		localWallet.Close()
		return nil, fmt.Errorf("failed unlock wallet %s, error: %w", cfg.WALLET.Address, err)
	}

	db, err := store.Open(filepath.Join(repoPath, storeRepo))
	if err != nil {
		localWallet.Close()
		return nil, err
	}
	certManager := certs.NewManager(db, broadcaster)

	orchestrator := &computing.Orchestrator{
		Ledger:      querier,
		Broadcaster: broadcaster,
		Certs:       certManager,
		Bids: market.NewCollector(querier,
			market.WithTiming(cfg.BID.GracePeriod.Duration, cfg.BID.PollInterval.Duration, cfg.BID.Timeout.Duration)),
		Leases:             market.NewLeaser(broadcaster),
		Providers:          provider.NewClient(querier, constants.ProviderTimeout),
		URLs:               db,
		Deposit:            ledger.Coin{Denom: cfg.CHAIN.Denom, Amount: cfg.CHAIN.Deposit},
		PreferredProviders: cfg.BID.PreferredProviders,
		FinalizeAttempts:   constants.FinalizeAttempts,
		FinalizeInterval:   constants.FinalizeInterval,
	}

	logs.GetLogger().Infof("deployer initialized, account: %s, chain: %s, endpoints: %v",
		signer.Address(), cfg.CHAIN.ChainId, cfg.CHAIN.Endpoints)
	return &Deployer{
		Querier:      querier,
		Broadcaster:  broadcaster,
		Certs:        certManager,
		Store:        db,
		Orchestrator: orchestrator,
		Signer:       signer,
		wallet:       localWallet,
	}, nil
}

// NewQuerier builds a ledger querier over the configured endpoints. It needs
// no wallet.
func NewQuerier(cfg *conf.DeployerNode) (*ledger.Querier, error) {
	pool, err := endpoint.NewPool(cfg.CHAIN.Endpoints, endpoint.WithCooldown(constants.EndpointCooldown))
	if err != nil {
		return nil, err
	}
	return ledger.NewQuerier(pool, ledger.RestDialer(cfg.CHAIN.QueryTimeout.Duration)), nil
}

func (d *Deployer) Close() {
	if err := d.Store.Close(); err != nil {
		logs.GetLogger().Errorf("failed close datastore, error: %v", err)
	}
	if err := d.wallet.Close(); err != nil {
		logs.GetLogger().Errorf("failed close keystore, error: %v", err)
	}
}
