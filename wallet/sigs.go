package wallet

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"

	"github.com/lagrangedao/go-akash-deployer/constants"
)

// Account is an unlocked key. It signs ledger transactions for its address.
type Account struct {
	key     *ecdsa.PrivateKey
	pubKey  []byte
	address string
}

func NewAccount(privateKey string) (*Account, error) {
	if len(strings.TrimSpace(privateKey)) == 0 {
		return nil, fmt.Errorf("invalid private key")
	}
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key, error: %w", err)
	}
	key, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid private key, error: %w", err)
	}

	pubKey := crypto.CompressPubkey(&key.PublicKey)
	address, err := PubKeyToAddress(constants.AddressPrefix, pubKey)
	if err != nil {
		return nil, err
	}
	return &Account{key: key, pubKey: pubKey, address: address}, nil
}

func (a *Account) Address() string {
	return a.address
}

// PubKey returns the 33 byte compressed public key.
func (a *Account) PubKey() []byte {
	return a.pubKey
}

// Sign signs a 32 byte digest and returns the 64 byte r||s signature the
// ledger expects, without the recovery id.
func (a *Account) Sign(digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(digest, a.key)
	if err != nil {
		return nil, err
	}
	return sig[:64], nil
}

// Verify checks a 64 byte signature over digest against a compressed public key.
func Verify(pubKey, digest, sig []byte) bool {
	if len(sig) != 64 {
		return false
	}
	return crypto.VerifySignature(pubKey, digest, sig)
}

// PubKeyToAddress renders the bech32 address of a compressed public key,
// ripemd160(sha256(pubKey)) under the given prefix.
func PubKeyToAddress(prefix string, pubKey []byte) (string, error) {
	sha := sha256.Sum256(pubKey)
	hasher := ripemd160.New()
	hasher.Write(sha[:])

	conv, err := bech32.ConvertBits(hasher.Sum(nil), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(prefix, conv)
}

// ValidateAddress reports whether addr is a well formed address for prefix.
func ValidateAddress(prefix, addr string) error {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return fmt.Errorf("invalid address %s, error: %w", addr, err)
	}
	if hrp != prefix {
		return fmt.Errorf("invalid address %s, expected prefix %s", addr, prefix)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return fmt.Errorf("invalid address %s, error: %w", addr, err)
	}
	if len(raw) != 20 {
		return fmt.Errorf("invalid address %s, expected 20 bytes got %d", addr, len(raw))
	}
	return nil
}
