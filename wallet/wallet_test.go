package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newTestWallet(t *testing.T) *LocalWallet {
	t.Helper()
	ks, err := OpenOrInitKeystore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })
	w, err := NewWallet(ks)
	require.NoError(t, err)
	return w
}

func TestDeriveKeyBip32Vector(t *testing.T) {
	seed, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")

	master, err := deriveKey(seed, nil)
	require.NoError(t, err)
	assert.Equal(t, "e8f32e723decf4051aefac8e2c93c9c5b214313817cdb01a1494b917c8436b35", hex.EncodeToString(master))

	child, err := deriveKey(seed, []uint32{hardened})
	require.NoError(t, err)
	assert.Equal(t, "edb2e14f9ee77d26dd93b4ecede8d16ed408ce149b6cd80b0715a2d911a0afea", hex.EncodeToString(child))
}

func TestMnemonicImportIsDeterministic(t *testing.T) {
	w := newTestWallet(t)

	addr, err := w.WalletImportMnemonic(context.Background(), testMnemonic, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr, "akash1"))
	assert.NoError(t, ValidateAddress("akash", addr))

	key, err := PrivateKeyFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	account, err := NewAccount(key)
	require.NoError(t, err)
	assert.Equal(t, addr, account.Address())

	_, err = w.WalletImportMnemonic(context.Background(), testMnemonic, "")
	assert.True(t, errors.Is(err, ErrKeyExists))

	_, err = w.WalletImportMnemonic(context.Background(), "not a mnemonic", "")
	assert.Error(t, err)
}

func TestAccountSignVerifies(t *testing.T) {
	w := newTestWallet(t)
	addr, err := w.WalletNew(context.Background())
	require.NoError(t, err)

	account, err := w.Account(addr)
	require.NoError(t, err)
	assert.Len(t, account.PubKey(), 33)

	digest := sha256.Sum256([]byte("sign doc"))
	sig, err := account.Sign(digest[:])
	require.NoError(t, err)
	assert.Len(t, sig, 64)
	assert.True(t, Verify(account.PubKey(), digest[:], sig))

	other := sha256.Sum256([]byte("other doc"))
	assert.False(t, Verify(account.PubKey(), other[:], sig))
}

func TestWalletExportDelete(t *testing.T) {
	w := newTestWallet(t)
	addr, err := w.WalletNew(context.Background())
	require.NoError(t, err)

	ki, err := w.WalletExport(context.Background(), addr)
	require.NoError(t, err)
	assert.Len(t, ki.PrivateKey, 64)

	require.NoError(t, w.WalletDelete(context.Background(), addr))
	_, err = w.Account(addr)
	assert.True(t, errors.Is(err, ErrKeyInfoNotFound))
}

type stubBalances map[string]string

func (s stubBalances) Balance(ctx context.Context, address, denom string) (*ledger.Coin, error) {
	amount, ok := s[address]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &ledger.Coin{Denom: denom, Amount: amount}, nil
}

func TestWalletListReportsBalances(t *testing.T) {
	w := newTestWallet(t)
	funded, err := w.WalletNew(context.Background())
	require.NoError(t, err)
	empty, err := w.WalletNew(context.Background())
	require.NoError(t, err)

	rows, err := w.WalletList(context.Background(), stubBalances{funded: "5000000"}, "uakt")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byAddr := map[string]WalletBalance{}
	for _, row := range rows {
		byAddr[row.Address] = row
	}
	assert.Equal(t, "5000000uakt", byAddr[funded].Balance)
	assert.NotEmpty(t, byAddr[empty].Error)
}
