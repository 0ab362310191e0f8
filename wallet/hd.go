package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cosmos/go-bip39"
)

const hardened = hdkeychain.HardenedKeyStart

// cosmosHDPath is m/44'/118'/0'/0/0.
var cosmosHDPath = []uint32{44 + hardened, 118 + hardened, hardened, 0, 0}

// NewMnemonic returns a fresh 24 word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// PrivateKeyFromMnemonic derives the hex encoded account key of mnemonic on
// the default cosmos path.
func PrivateKeyFromMnemonic(mnemonic, passphrase string) (string, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return "", fmt.Errorf("invalid mnemonic")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return "", err
	}
	key, err := deriveKey(seed, cosmosHDPath)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// deriveKey walks path from the master key of seed and returns the raw
// secp256k1 private key. The network params only affect serialization.
func deriveKey(seed []byte, path []uint32) ([]byte, error) {
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed create master key, error: %w", err)
	}
	for _, idx := range path {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, fmt.Errorf("failed derive child key %d, error: %w", idx, err)
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return priv.Serialize(), nil
}
