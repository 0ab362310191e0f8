package ledger

import (
	"fmt"
	"strconv"
)

type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

func (c Coin) String() string {
	return c.Amount + c.Denom
}

// DecCoin carries a decimal amount, bid and lease prices are quoted this way.
type DecCoin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type DeploymentID struct {
	Owner string `json:"owner"`
	DSeq  uint64 `json:"dseq,string"`
}

func (id DeploymentID) String() string {
	return fmt.Sprintf("%s/%d", id.Owner, id.DSeq)
}

type BidID struct {
	Owner    string `json:"owner"`
	DSeq     uint64 `json:"dseq,string"`
	GSeq     uint32 `json:"gseq"`
	OSeq     uint32 `json:"oseq"`
	Provider string `json:"provider"`
}

type Bid struct {
	ID         BidID       `json:"bid_id"`
	State      string      `json:"state"`
	Price      DecCoin     `json:"price"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

func (b *Bid) Provider() string {
	return b.ID.Provider
}

// BidRecord is one entry of the market bids query. Bid is nil when the
// ledger returned an entry without a bid payload.
type BidRecord struct {
	Bid *Bid `json:"bid"`
}

type LeaseID struct {
	Owner    string `json:"owner"`
	DSeq     uint64 `json:"dseq,string"`
	GSeq     uint32 `json:"gseq"`
	OSeq     uint32 `json:"oseq"`
	Provider string `json:"provider"`
}

func (id LeaseID) String() string {
	return fmt.Sprintf("%s/%d/%d/%d/%s", id.Owner, id.DSeq, id.GSeq, id.OSeq, id.Provider)
}

func (id LeaseID) DeploymentID() DeploymentID {
	return DeploymentID{Owner: id.Owner, DSeq: id.DSeq}
}

type Lease struct {
	ID        LeaseID `json:"lease_id"`
	State     string  `json:"state"`
	Price     DecCoin `json:"price"`
	CreatedAt int64   `json:"created_at,string"`
	ClosedOn  int64   `json:"closed_on,string"`
}

type Provider struct {
	Owner      string      `json:"owner"`
	HostURI    string      `json:"host_uri"`
	Attributes []Attribute `json:"attributes"`
}

type Deployment struct {
	ID        DeploymentID `json:"deployment_id"`
	State     string       `json:"state"`
	Version   []byte       `json:"version"`
	CreatedAt int64        `json:"created_at,string"`
}

// DeploymentInfo is a deployment together with its groups as returned by
// the deployment queries.
type DeploymentInfo struct {
	Deployment Deployment
	Groups     []Group
}

type Group struct {
	State string
	Spec  GroupSpec
}

type AccountInfo struct {
	Address       string `json:"address"`
	AccountNumber uint64 `json:"account_number,string"`
	Sequence      uint64 `json:"sequence,string"`
}

type TxResponse struct {
	Height int64  `json:"height,string"`
	TxHash string `json:"txhash"`
	Code   uint32 `json:"code"`
	RawLog string `json:"raw_log"`
}

// GroupSpec is the resource request of one deployment group.
type GroupSpec struct {
	Name         string
	Requirements PlacementRequirements
	Resources    []ResourceUnit
}

type PlacementRequirements struct {
	SignedBy   SignedBy
	Attributes []Attribute
}

type SignedBy struct {
	AllOf []string
	AnyOf []string
}

type ResourceUnit struct {
	Resources Resources
	Count     uint32
	Price     DecCoin
}

type Resources struct {
	ID        uint32
	CPU       ResourceValue
	Memory    ResourceValue
	Storage   []Storage
	GPU       ResourceValue
	Endpoints []Endpoint
}

// ResourceValue is an unsigned quantity, millicores for cpu and bytes for
// memory and storage.
type ResourceValue struct {
	Val uint64
}

func (v ResourceValue) String() string {
	return strconv.FormatUint(v.Val, 10)
}

type Storage struct {
	Name     string
	Quantity ResourceValue
}

type EndpointKind int32

const (
	EndpointSharedHTTP EndpointKind = 0
	EndpointRandomPort EndpointKind = 1
	EndpointLeasedIP   EndpointKind = 2
)

type Endpoint struct {
	Kind           EndpointKind
	SequenceNumber uint32
}
