package ledger

import (
	"crypto/sha256"
	"fmt"
)

const (
	typeSecp256k1PubKey = "/cosmos.crypto.secp256k1.PubKey"
	signModeDirect      = 1
)

// Signer is the key the orchestrator signs transactions with. PubKey is the
// 33 byte compressed secp256k1 public key and Sign returns the 64 byte
// r||s signature over the given digest.
type Signer interface {
	Address() string
	PubKey() []byte
	Sign(digest []byte) ([]byte, error)
}

// Fee is the amount paid for a transaction and the gas it may consume.
type Fee struct {
	Amount   Coin
	GasLimit uint64
}

// TxParams are the per transaction values besides the messages.
type TxParams struct {
	ChainID       string
	AccountNumber uint64
	Sequence      uint64
	Memo          string
	Fee           Fee
}

// SignTx builds the body and auth info of a transaction carrying msgs, signs
// them in direct mode and returns the raw transaction bytes ready for
// broadcast.
func SignTx(signer Signer, msgs []Msg, params TxParams) ([]byte, error) {
	body, err := marshalTxBody(msgs, params.Memo)
	if err != nil {
		return nil, err
	}
	authInfo := marshalAuthInfo(signer.PubKey(), params.Sequence, params.Fee)

	var signDoc []byte
	signDoc = appendBytes(signDoc, 1, body)
	signDoc = appendBytes(signDoc, 2, authInfo)
	signDoc = appendString(signDoc, 3, params.ChainID)
	signDoc = appendUvarint(signDoc, 4, params.AccountNumber)

	digest := sha256.Sum256(signDoc)
	sig, err := signer.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed sign transaction, error: %w", err)
	}

	var raw []byte
	raw = appendBytes(raw, 1, body)
	raw = appendBytes(raw, 2, authInfo)
	raw = appendBytes(raw, 3, sig)
	return raw, nil
}

func marshalTxBody(msgs []Msg, memo string) ([]byte, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("transaction has no messages")
	}
	var b []byte
	for _, msg := range msgs {
		value, err := msg.Marshal()
		if err != nil {
			return nil, fmt.Errorf("failed encode %s, error: %w", msg.TypeURL(), err)
		}
		b = appendMessage(b, 1, marshalAny(msg.TypeURL(), value))
	}
	b = appendString(b, 2, memo)
	return b, nil
}

func marshalAuthInfo(pubKey []byte, sequence uint64, fee Fee) []byte {
	single := appendUvarint(nil, 1, signModeDirect)
	modeInfo := appendMessage(nil, 1, single)

	var signerInfo []byte
	signerInfo = appendMessage(signerInfo, 1, marshalAny(typeSecp256k1PubKey, appendBytes(nil, 1, pubKey)))
	signerInfo = appendMessage(signerInfo, 2, modeInfo)
	signerInfo = appendUvarint(signerInfo, 3, sequence)

	var feeBytes []byte
	if fee.Amount.Amount != "" {
		feeBytes = appendMessage(feeBytes, 1, marshalCoin(fee.Amount))
	}
	feeBytes = appendUvarint(feeBytes, 2, fee.GasLimit)

	var b []byte
	b = appendMessage(b, 1, signerInfo)
	b = appendMessage(b, 2, feeBytes)
	return b
}

func marshalAny(typeURL string, value []byte) []byte {
	var b []byte
	b = appendString(b, 1, typeURL)
	b = appendBytes(b, 2, value)
	return b
}
