package ledger

import (
	"fmt"
	"strconv"

	"cosmossdk.io/math"
	"google.golang.org/protobuf/encoding/protowire"
)

// Msg is a ledger message that can be packed into a transaction body.
type Msg interface {
	TypeURL() string
	Marshal() ([]byte, error)
}

const (
	TypeMsgCreateDeployment  = "/akash.deployment.v1beta3.MsgCreateDeployment"
	TypeMsgCloseDeployment   = "/akash.deployment.v1beta3.MsgCloseDeployment"
	TypeMsgCreateLease       = "/akash.market.v1beta4.MsgCreateLease"
	TypeMsgCreateCertificate = "/akash.cert.v1beta3.MsgCreateCertificate"
)

type MsgCreateDeployment struct {
	ID        DeploymentID
	Groups    []GroupSpec
	Version   []byte
	Deposit   Coin
	Depositor string
}

func (m *MsgCreateDeployment) TypeURL() string { return TypeMsgCreateDeployment }

func (m *MsgCreateDeployment) Marshal() ([]byte, error) {
	var b []byte
	b = appendMessage(b, 1, marshalDeploymentID(m.ID))
	for _, group := range m.Groups {
		gb, err := marshalGroupSpec(group)
		if err != nil {
			return nil, fmt.Errorf("failed encode group %s, error: %w", group.Name, err)
		}
		b = appendMessage(b, 2, gb)
	}
	b = appendBytes(b, 3, m.Version)
	b = appendMessage(b, 4, marshalCoin(m.Deposit))
	b = appendString(b, 5, m.Depositor)
	return b, nil
}

type MsgCloseDeployment struct {
	ID DeploymentID
}

func (m *MsgCloseDeployment) TypeURL() string { return TypeMsgCloseDeployment }

func (m *MsgCloseDeployment) Marshal() ([]byte, error) {
	return appendMessage(nil, 1, marshalDeploymentID(m.ID)), nil
}

type MsgCreateLease struct {
	BidID BidID
}

func (m *MsgCreateLease) TypeURL() string { return TypeMsgCreateLease }

func (m *MsgCreateLease) Marshal() ([]byte, error) {
	var id []byte
	id = appendString(id, 1, m.BidID.Owner)
	id = appendUvarint(id, 2, m.BidID.DSeq)
	id = appendUvarint(id, 3, uint64(m.BidID.GSeq))
	id = appendUvarint(id, 4, uint64(m.BidID.OSeq))
	id = appendString(id, 5, m.BidID.Provider)
	return appendMessage(nil, 1, id), nil
}

// MsgCreateCertificate registers a PEM encoded client certificate and its
// public key for owner.
type MsgCreateCertificate struct {
	Owner  string
	Cert   []byte
	PubKey []byte
}

func (m *MsgCreateCertificate) TypeURL() string { return TypeMsgCreateCertificate }

func (m *MsgCreateCertificate) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Owner)
	b = appendBytes(b, 2, m.Cert)
	b = appendBytes(b, 3, m.PubKey)
	return b, nil
}

func marshalDeploymentID(id DeploymentID) []byte {
	var b []byte
	b = appendString(b, 1, id.Owner)
	b = appendUvarint(b, 2, id.DSeq)
	return b
}

func marshalCoin(c Coin) []byte {
	var b []byte
	b = appendString(b, 1, c.Denom)
	b = appendString(b, 2, c.Amount)
	return b
}

// marshalDecCoin encodes the amount the way the ledger stores decimals: the
// integer value scaled by 10^18.
func marshalDecCoin(c DecCoin) ([]byte, error) {
	amount, err := math.LegacyNewDecFromStr(c.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid price amount %q, error: %w", c.Amount, err)
	}
	var b []byte
	b = appendString(b, 1, c.Denom)
	b = appendString(b, 2, amount.BigInt().String())
	return b, nil
}

func marshalAttributes(b []byte, num protowire.Number, attrs []Attribute) []byte {
	for _, attr := range attrs {
		var ab []byte
		ab = appendString(ab, 1, attr.Key)
		ab = appendString(ab, 2, attr.Value)
		b = appendMessage(b, num, ab)
	}
	return b
}

func marshalGroupSpec(g GroupSpec) ([]byte, error) {
	var signedBy []byte
	for _, s := range g.Requirements.SignedBy.AllOf {
		signedBy = appendString(signedBy, 1, s)
	}
	for _, s := range g.Requirements.SignedBy.AnyOf {
		signedBy = appendString(signedBy, 2, s)
	}
	var requirements []byte
	requirements = appendMessage(requirements, 1, signedBy)
	requirements = marshalAttributes(requirements, 2, g.Requirements.Attributes)

	var b []byte
	b = appendString(b, 1, g.Name)
	b = appendMessage(b, 2, requirements)
	for _, unit := range g.Resources {
		ub, err := marshalResourceUnit(unit)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, 3, ub)
	}
	return b, nil
}

func marshalResourceUnit(u ResourceUnit) ([]byte, error) {
	price, err := marshalDecCoin(u.Price)
	if err != nil {
		return nil, err
	}
	var b []byte
	b = appendMessage(b, 1, marshalResources(u.Resources))
	b = appendUvarint(b, 2, uint64(u.Count))
	b = appendMessage(b, 3, price)
	return b, nil
}

func marshalResources(r Resources) []byte {
	var b []byte
	b = appendUvarint(b, 1, uint64(r.ID))
	b = appendMessage(b, 2, appendMessage(nil, 1, marshalResourceValue(r.CPU)))
	b = appendMessage(b, 3, appendMessage(nil, 1, marshalResourceValue(r.Memory)))
	for _, s := range r.Storage {
		var sb []byte
		sb = appendString(sb, 1, s.Name)
		sb = appendMessage(sb, 2, marshalResourceValue(s.Quantity))
		b = appendMessage(b, 4, sb)
	}
	b = appendMessage(b, 5, appendMessage(nil, 1, marshalResourceValue(r.GPU)))
	for _, ep := range r.Endpoints {
		var eb []byte
		eb = appendUvarint(eb, 1, uint64(ep.Kind))
		eb = appendUvarint(eb, 2, uint64(ep.SequenceNumber))
		b = appendMessage(b, 6, eb)
	}
	return b
}

func marshalResourceValue(v ResourceValue) []byte {
	return appendBytes(nil, 1, []byte(strconv.FormatUint(v.Val, 10)))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendMessage always emits the field so that empty sub messages keep
// their presence.
func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendUvarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
