package certs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/filswan/go-swan-lib/logs"

	"github.com/lagrangedao/go-akash-deployer/constants"
	"github.com/lagrangedao/go-akash-deployer/internal/broadcast"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
)

// Store persists certificates across runs. GetCertificate returns nil
// without error when nothing is stored for the address.
type Store interface {
	GetCertificate(address string) (*Certificate, error)
	PutCertificate(cert *Certificate) error
}

// Broadcaster submits the certificate registration transaction.
type Broadcaster interface {
	Broadcast(ctx context.Context, signer ledger.Signer, msgs []ledger.Msg, memo string) (*broadcast.TxResult, error)
}

// CertificateBroadcastError means a fresh certificate could not be
// registered on the ledger. Nothing was cached or persisted.
type CertificateBroadcastError struct {
	Address string
	Err     error
}

func (e *CertificateBroadcastError) Error() string {
	return fmt.Sprintf("failed register certificate for %s: %v", e.Address, e.Err)
}

func (e *CertificateBroadcastError) Unwrap() error {
	return e.Err
}

// Manager hands out one client certificate per account. Concurrent callers
// for an account without a certificate share a single generation and
// registration.
type Manager struct {
	store       Store
	broadcaster Broadcaster
	now         func() time.Time

	lk    sync.RWMutex
	certs map[string]*Certificate
}

func NewManager(store Store, broadcaster Broadcaster) *Manager {
	return &Manager{
		store:       store,
		broadcaster: broadcaster,
		now:         time.Now,
		certs:       make(map[string]*Certificate),
	}
}

func (m *Manager) GetOrCreate(ctx context.Context, signer ledger.Signer) (*Certificate, error) {
	address := signer.Address()

	m.lk.RLock()
	cert, ok := m.certs[address]
	m.lk.RUnlock()
	if ok {
		return cert, nil
	}

	m.lk.Lock()
	defer m.lk.Unlock()
	if cert, ok := m.certs[address]; ok {
		return cert, nil
	}

	if m.store != nil {
		stored, err := m.store.GetCertificate(address)
		if err != nil {
			logs.GetLogger().Warnf("failed read stored certificate of %s, error: %v", address, err)
		} else if stored != nil {
			m.certs[address] = stored
			return stored, nil
		}
	}

	cert, err := Generate(address, m.now())
	if err != nil {
		return nil, err
	}

	msg := &ledger.MsgCreateCertificate{Owner: address, Cert: cert.Cert, PubKey: cert.PubKey}
	res, err := m.broadcaster.Broadcast(ctx, signer, []ledger.Msg{msg}, constants.MemoCreateCertificate)
	if err != nil {
		return nil, &CertificateBroadcastError{Address: address, Err: err}
	}
	logs.GetLogger().Infof("registered certificate for %s, txhash: %s", address, res.TxHash)

	if m.store != nil {
		if err := m.store.PutCertificate(cert); err != nil {
			logs.GetLogger().Errorf("failed persist certificate of %s, error: %v", address, err)
		}
	}
	m.certs[address] = cert
	return cert, nil
}

// Cached returns the known certificate of address without registering a
// new one. It returns nil when the account has none yet.
func (m *Manager) Cached(address string) (*Certificate, error) {
	m.lk.RLock()
	cert, ok := m.certs[address]
	m.lk.RUnlock()
	if ok {
		return cert, nil
	}
	if m.store == nil {
		return nil, nil
	}
	stored, err := m.store.GetCertificate(address)
	if err != nil || stored == nil {
		return nil, err
	}

	m.lk.Lock()
	defer m.lk.Unlock()
	if cert, ok := m.certs[address]; ok {
		return cert, nil
	}
	m.certs[address] = stored
	return stored, nil
}
