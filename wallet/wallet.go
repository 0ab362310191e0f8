package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/xerrors"

	"github.com/lagrangedao/go-akash-deployer/constants"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
)

const (
	WalletRepo  = "keystore"
	KNamePrefix = "wallet-"
)

var (
	ErrKeyInfoNotFound = fmt.Errorf("key info not found")
	ErrKeyExists       = fmt.Errorf("key already exists")
)

func SetupWallet(dir string) (*LocalWallet, error) {
	repoPath, exist := os.LookupEnv("DEPLOYER_PATH")
	if !exist {
		return nil, fmt.Errorf("missing DEPLOYER_PATH env, please set export DEPLOYER_PATH=xxx")
	}

	kstore, err := OpenOrInitKeystore(filepath.Join(repoPath, dir))
	if err != nil {
		return nil, err
	}

	return NewWallet(kstore)
}

type LocalWallet struct {
	keys     map[string]*KeyInfo
	keystore KeyStore

	lk sync.Mutex
}

func NewWallet(keystore KeyStore) (*LocalWallet, error) {
	w := &LocalWallet{
		keys:     make(map[string]*KeyInfo),
		keystore: keystore,
	}
	return w, nil
}

// Account unlocks the key of addr for signing.
func (w *LocalWallet) Account(addr string) (*Account, error) {
	ki, err := w.findKey(addr)
	if err != nil {
		return nil, err
	}
	if ki == nil {
		return nil, xerrors.Errorf("unlocking '%s': %w", addr, ErrKeyInfoNotFound)
	}
	return NewAccount(ki.PrivateKey)
}

func (w *LocalWallet) WalletSign(ctx context.Context, addr string, digest []byte) (string, error) {
	account, err := w.Account(addr)
	if err != nil {
		return "", err
	}
	sig, err := account.Sign(digest)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

func (w *LocalWallet) findKey(addr string) (*KeyInfo, error) {
	w.lk.Lock()
	defer w.lk.Unlock()

	k, ok := w.keys[addr]
	if ok {
		return k, nil
	}
	if w.keystore == nil {
		return nil, nil
	}

	ki, err := w.keystore.Get(KNamePrefix + addr)
	if err != nil {
		if xerrors.Is(err, ErrKeyInfoNotFound) {
			return nil, nil
		}
		return nil, xerrors.Errorf("getting from keystore: %w", err)
	}

	w.keys[addr] = &ki
	return &ki, nil
}

func (w *LocalWallet) WalletExport(ctx context.Context, addr string) (*KeyInfo, error) {
	k, err := w.findKey(addr)
	if err != nil {
		return nil, xerrors.Errorf("failed to find key to export: %w", err)
	}
	if k == nil {
		return nil, xerrors.Errorf("private key not found for %s", addr)
	}

	return k, nil
}

func (w *LocalWallet) WalletImport(ctx context.Context, ki *KeyInfo) (string, error) {
	if ki == nil || len(strings.TrimSpace(ki.PrivateKey)) == 0 {
		return "", fmt.Errorf("not found private key")
	}

	account, err := NewAccount(ki.PrivateKey)
	if err != nil {
		return "", err
	}
	return w.store(account.Address(), KeyInfo{PrivateKey: strings.TrimPrefix(ki.PrivateKey, "0x")})
}

// WalletImportMnemonic recovers the account of a bip39 mnemonic.
func (w *LocalWallet) WalletImportMnemonic(ctx context.Context, mnemonic, passphrase string) (string, error) {
	privateKey, err := PrivateKeyFromMnemonic(strings.TrimSpace(mnemonic), passphrase)
	if err != nil {
		return "", err
	}
	return w.WalletImport(ctx, &KeyInfo{PrivateKey: privateKey})
}

func (w *LocalWallet) WalletNew(ctx context.Context) (string, error) {
	privateK, err := crypto.GenerateKey()
	if err != nil {
		return "", err
	}

	address, err := addressOf(privateK)
	if err != nil {
		return "", err
	}
	return w.store(address, KeyInfo{PrivateKey: hex.EncodeToString(crypto.FromECDSA(privateK))})
}

func (w *LocalWallet) store(address string, ki KeyInfo) (string, error) {
	w.lk.Lock()
	defer w.lk.Unlock()

	if _, ok := w.keys[address]; ok {
		return "", xerrors.Errorf("%s: %w", address, ErrKeyExists)
	}
	if err := w.keystore.Put(KNamePrefix+address, ki); err != nil {
		return "", xerrors.Errorf("saving to keystore: %w", err)
	}
	w.keys[address] = &ki
	return address, nil
}

func (w *LocalWallet) WalletDelete(ctx context.Context, addr string) error {
	k, err := w.findKey(addr)
	if err != nil {
		return xerrors.Errorf("failed to delete key %s : %w", addr, err)
	}
	if k == nil {
		return nil // already not there
	}

	w.lk.Lock()
	defer w.lk.Unlock()

	if err := w.keystore.Delete(KNamePrefix + addr); err != nil {
		return xerrors.Errorf("wallet delete: failed to delete key %s: %w", addr, err)
	}
	delete(w.keys, addr)
	return nil
}

// BalanceQuerier reads account balances from the ledger.
type BalanceQuerier interface {
	Balance(ctx context.Context, address, denom string) (*ledger.Coin, error)
}

type WalletBalance struct {
	Address string
	Balance string
	Error   string
}

// WalletList returns every stored address with its balance in denom. A
// failed balance lookup is reported on its row.
func (w *LocalWallet) WalletList(ctx context.Context, querier BalanceQuerier, denom string) ([]WalletBalance, error) {
	addressList, err := w.addressList()
	if err != nil {
		return nil, err
	}

	var wallets []WalletBalance
	for _, addr := range addressList {
		row := WalletBalance{Address: addr}
		if querier != nil {
			coin, err := querier.Balance(ctx, addr, denom)
			if err != nil {
				row.Error = err.Error()
			} else {
				row.Balance = coin.String()
			}
		}
		wallets = append(wallets, row)
	}
	return wallets, nil
}

func (w *LocalWallet) addressList() ([]string, error) {
	all, err := w.keystore.List()
	if err != nil {
		return nil, xerrors.Errorf("listing keystore: %w", err)
	}

	addressList := make([]string, 0, len(all))
	for _, a := range all {
		if strings.HasPrefix(a, KNamePrefix) {
			addressList = append(addressList, strings.TrimPrefix(a, KNamePrefix))
		}
	}
	return addressList, nil
}

func addressOf(key *ecdsa.PrivateKey) (string, error) {
	return PubKeyToAddress(constants.AddressPrefix, crypto.CompressPubkey(&key.PublicKey))
}

// Close releases the keystore when it holds resources.
func (w *LocalWallet) Close() error {
	if closer, ok := w.keystore.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
