package ledger

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

type staticSigner struct {
	digests [][]byte
}

func (s *staticSigner) Address() string { return "akash1owner" }
func (s *staticSigner) PubKey() []byte  { return bytes.Repeat([]byte{2}, 33) }
func (s *staticSigner) Sign(digest []byte) ([]byte, error) {
	s.digests = append(s.digests, digest)
	return bytes.Repeat([]byte{7}, 64), nil
}

// readField returns the first length delimited field num of b.
func readField(b []byte, num protowire.Number) ([]byte, error) {
	for len(b) > 0 {
		n, typ, l := protowire.ConsumeTag(b)
		if l < 0 {
			return nil, protowire.ParseError(l)
		}
		b = b[l:]
		if n == num && typ == protowire.BytesType {
			v, l := protowire.ConsumeBytes(b)
			if l < 0 {
				return nil, protowire.ParseError(l)
			}
			return v, nil
		}
		l = protowire.ConsumeFieldValue(n, typ, b)
		if l < 0 {
			return nil, protowire.ParseError(l)
		}
		b = b[l:]
	}
	return nil, fmt.Errorf("field %d not present", num)
}

func TestSignTxLayout(t *testing.T) {
	signer := &staticSigner{}
	msg := &MsgCloseDeployment{ID: DeploymentID{Owner: "akash1owner", DSeq: 12}}

	raw, err := SignTx(signer, []Msg{msg}, TxParams{
		ChainID:       "akashnet-2",
		AccountNumber: 3,
		Sequence:      9,
		Memo:          "take down deployment",
		Fee:           Fee{Amount: Coin{Denom: "uakt", Amount: "5000"}, GasLimit: 200000},
	})
	require.NoError(t, err)
	require.Len(t, signer.digests, 1)
	assert.Len(t, signer.digests[0], 32)

	body, err := readField(raw, 1)
	require.NoError(t, err)
	memo, err := readField(body, 2)
	require.NoError(t, err)
	assert.Equal(t, "take down deployment", string(memo))

	anyMsg, err := readField(body, 1)
	require.NoError(t, err)
	typeURL, err := readField(anyMsg, 1)
	require.NoError(t, err)
	assert.Equal(t, TypeMsgCloseDeployment, string(typeURL))

	sig, err := readField(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{7}, 64), sig)
}

func TestSignTxRequiresMessages(t *testing.T) {
	_, err := SignTx(&staticSigner{}, nil, TxParams{ChainID: "akashnet-2"})
	assert.Error(t, err)
}

func TestDecCoinIsScaled(t *testing.T) {
	b, err := marshalDecCoin(DecCoin{Denom: "uakt", Amount: "9.5"})
	require.NoError(t, err)
	amount, err := readField(b, 2)
	require.NoError(t, err)
	assert.Equal(t, "9500000000000000000", string(amount))

	_, err = marshalDecCoin(DecCoin{Denom: "uakt", Amount: "cheap"})
	assert.Error(t, err)
}

func TestCreateDeploymentRejectsBadPrice(t *testing.T) {
	msg := &MsgCreateDeployment{
		ID: DeploymentID{Owner: "akash1owner", DSeq: 1},
		Groups: []GroupSpec{{
			Name:      "dcloud",
			Resources: []ResourceUnit{{Count: 1, Price: DecCoin{Denom: "uakt", Amount: ""}}},
		}},
	}
	_, err := msg.Marshal()
	assert.Error(t, err)
}
