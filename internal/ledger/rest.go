package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	pathLatestBlock = "/cosmos/base/tendermint/v1beta1/blocks/latest"
	pathAccount     = "/cosmos/auth/v1beta1/accounts/"
	pathBalance     = "/cosmos/bank/v1beta1/balances/%s/by_denom"
	pathSimulate    = "/cosmos/tx/v1beta1/simulate"
	pathTxs         = "/cosmos/tx/v1beta1/txs"
	pathBids        = "/akash/market/v1beta4/bids/list"
	pathLeases      = "/akash/market/v1beta4/leases/list"
	pathProvider    = "/akash/provider/v1beta3/providers/"
	pathDeployment  = "/akash/deployment/v1beta3/deployments/info"
	pathDeployments = "/akash/deployment/v1beta3/deployments/list"

	grpcCodeNotFound = 5
)

type restClient struct {
	endpoint string
	client   *resty.Client
}

// NewRestClient returns a Client backed by the REST gateway at endpoint.
func NewRestClient(endpoint string, timeout time.Duration) Client {
	return &restClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// RestDialer returns a Dialer producing REST clients with the given timeout.
func RestDialer(timeout time.Duration) Dialer {
	return func(endpoint string) Client {
		return NewRestClient(endpoint, timeout)
	}
}

func (c *restClient) Endpoint() string {
	return c.endpoint
}

func (c *restClient) LatestHeight(ctx context.Context) (int64, error) {
	var resp struct {
		Block struct {
			Header struct {
				Height int64 `json:"height,string"`
			} `json:"header"`
		} `json:"block"`
	}
	if err := c.get(ctx, pathLatestBlock, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Block.Header.Height, nil
}

func (c *restClient) Account(ctx context.Context, address string) (*AccountInfo, error) {
	var resp struct {
		Account AccountInfo `json:"account"`
	}
	if err := c.get(ctx, pathAccount+address, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Account, nil
}

func (c *restClient) Balance(ctx context.Context, address, denom string) (*Coin, error) {
	var resp struct {
		Balance Coin `json:"balance"`
	}
	if err := c.get(ctx, fmt.Sprintf(pathBalance, address), map[string]string{"denom": denom}, &resp); err != nil {
		return nil, err
	}
	return &resp.Balance, nil
}

func (c *restClient) Simulate(ctx context.Context, txBytes []byte) (uint64, error) {
	var resp struct {
		GasInfo struct {
			GasUsed uint64 `json:"gas_used,string"`
		} `json:"gas_info"`
	}
	if err := c.post(ctx, pathSimulate, map[string]interface{}{"tx_bytes": txBytes}, &resp); err != nil {
		return 0, err
	}
	return resp.GasInfo.GasUsed, nil
}

func (c *restClient) BroadcastTx(ctx context.Context, txBytes []byte) (*TxResponse, error) {
	var resp struct {
		TxResponse TxResponse `json:"tx_response"`
	}
	body := map[string]interface{}{
		"tx_bytes": txBytes,
		"mode":     "BROADCAST_MODE_SYNC",
	}
	if err := c.post(ctx, pathTxs, body, &resp); err != nil {
		return nil, err
	}
	return &resp.TxResponse, nil
}

func (c *restClient) GetTx(ctx context.Context, hash string) (*TxResponse, error) {
	var resp struct {
		TxResponse TxResponse `json:"tx_response"`
	}
	if err := c.get(ctx, pathTxs+"/"+hash, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.TxResponse, nil
}

func (c *restClient) Bids(ctx context.Context, owner string, dseq uint64) ([]BidRecord, error) {
	var resp struct {
		Bids []BidRecord `json:"bids"`
	}
	query := map[string]string{
		"filters.owner": owner,
		"filters.dseq":  strconv.FormatUint(dseq, 10),
	}
	if err := c.get(ctx, pathBids, query, &resp); err != nil {
		return nil, err
	}
	return resp.Bids, nil
}

func (c *restClient) Provider(ctx context.Context, owner string) (*Provider, error) {
	var resp struct {
		Provider Provider `json:"provider"`
	}
	if err := c.get(ctx, pathProvider+owner, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Provider, nil
}

func (c *restClient) Deployment(ctx context.Context, id DeploymentID) (*DeploymentInfo, error) {
	var resp restDeploymentInfo
	query := map[string]string{
		"id.owner": id.Owner,
		"id.dseq":  strconv.FormatUint(id.DSeq, 10),
	}
	if err := c.get(ctx, pathDeployment, query, &resp); err != nil {
		return nil, err
	}
	info, err := resp.toInfo()
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *restClient) Deployments(ctx context.Context, owner, state string) ([]DeploymentInfo, error) {
	var resp struct {
		Deployments []restDeploymentInfo `json:"deployments"`
	}
	query := map[string]string{"filters.owner": owner}
	if state != "" {
		query["filters.state"] = state
	}
	if err := c.get(ctx, pathDeployments, query, &resp); err != nil {
		return nil, err
	}
	infos := make([]DeploymentInfo, 0, len(resp.Deployments))
	for _, d := range resp.Deployments {
		info, err := d.toInfo()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (c *restClient) Leases(ctx context.Context, owner string, dseq uint64) ([]Lease, error) {
	var resp struct {
		Leases []struct {
			Lease Lease `json:"lease"`
		} `json:"leases"`
	}
	query := map[string]string{"filters.owner": owner}
	if dseq != 0 {
		query["filters.dseq"] = strconv.FormatUint(dseq, 10)
	}
	if err := c.get(ctx, pathLeases, query, &resp); err != nil {
		return nil, err
	}
	leases := make([]Lease, 0, len(resp.Leases))
	for _, l := range resp.Leases {
		leases = append(leases, l.Lease)
	}
	return leases, nil
}

func (c *restClient) get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(c.endpoint + path)
	return c.decode(ctx, path, resp, err, out)
}

func (c *restClient) post(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.endpoint + path)
	return c.decode(ctx, path, resp, err, out)
}

// decode sorts a response into not found, endpoint unavailable, a request
// error, or a payload decoded into out.
func (c *restClient) decode(ctx context.Context, path string, resp *resty.Response, err error, out interface{}) error {
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &EndpointUnavailableError{Endpoint: c.endpoint, Err: err}
	}

	status := resp.StatusCode()
	body := resp.Body()
	if status == http.StatusNotFound || (status >= http.StatusBadRequest && isNotFoundBody(body)) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return &EndpointUnavailableError{
			Endpoint: c.endpoint,
			Err:      fmt.Errorf("%s returned status %d: %s", path, status, string(body)),
		}
	}
	if status >= http.StatusMultipleChoices {
		return fmt.Errorf("%s returned status %d: %s", path, status, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed decode %s response, error: %w", path, err)
	}
	return nil
}

func isNotFoundBody(body []byte) bool {
	var status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return false
	}
	return status.Code == grpcCodeNotFound || strings.Contains(strings.ToLower(status.Message), "not found")
}

type restDeploymentInfo struct {
	Deployment Deployment  `json:"deployment"`
	Groups     []restGroup `json:"groups"`
}

type restGroup struct {
	State     string        `json:"state"`
	GroupSpec restGroupSpec `json:"group_spec"`
}

type restGroupSpec struct {
	Name         string `json:"name"`
	Requirements struct {
		SignedBy struct {
			AllOf []string `json:"all_of"`
			AnyOf []string `json:"any_of"`
		} `json:"signed_by"`
		Attributes []Attribute `json:"attributes"`
	} `json:"requirements"`
	Resources []struct {
		Resource restResources `json:"resource"`
		Count    uint32        `json:"count"`
		Price    DecCoin       `json:"price"`
	} `json:"resources"`
}

type restValue struct {
	Val string `json:"val"`
}

func (v restValue) parse() (ResourceValue, error) {
	if v.Val == "" {
		return ResourceValue{}, nil
	}
	n, err := strconv.ParseUint(v.Val, 10, 64)
	if err != nil {
		return ResourceValue{}, fmt.Errorf("invalid resource value %q, error: %w", v.Val, err)
	}
	return ResourceValue{Val: n}, nil
}

type restResources struct {
	ID  uint32 `json:"id"`
	CPU struct {
		Units restValue `json:"units"`
	} `json:"cpu"`
	Memory struct {
		Quantity restValue `json:"quantity"`
	} `json:"memory"`
	Storage []struct {
		Name     string    `json:"name"`
		Quantity restValue `json:"quantity"`
	} `json:"storage"`
	GPU struct {
		Units restValue `json:"units"`
	} `json:"gpu"`
	Endpoints []struct {
		Kind           string `json:"kind"`
		SequenceNumber uint32 `json:"sequence_number"`
	} `json:"endpoints"`
}

var endpointKinds = map[string]EndpointKind{
	"SHARED_HTTP": EndpointSharedHTTP,
	"RANDOM_PORT": EndpointRandomPort,
	"LEASED_IP":   EndpointLeasedIP,
}

func (d restDeploymentInfo) toInfo() (DeploymentInfo, error) {
	info := DeploymentInfo{Deployment: d.Deployment}
	for _, g := range d.Groups {
		group := Group{
			State: g.State,
			Spec: GroupSpec{
				Name: g.GroupSpec.Name,
				Requirements: PlacementRequirements{
					SignedBy: SignedBy{
						AllOf: g.GroupSpec.Requirements.SignedBy.AllOf,
						AnyOf: g.GroupSpec.Requirements.SignedBy.AnyOf,
					},
					Attributes: g.GroupSpec.Requirements.Attributes,
				},
			},
		}
		for _, unit := range g.GroupSpec.Resources {
			resources, err := unit.Resource.toResources()
			if err != nil {
				return DeploymentInfo{}, err
			}
			group.Spec.Resources = append(group.Spec.Resources, ResourceUnit{
				Resources: resources,
				Count:     unit.Count,
				Price:     unit.Price,
			})
		}
		info.Groups = append(info.Groups, group)
	}
	return info, nil
}

func (r restResources) toResources() (Resources, error) {
	var (
		res Resources
		err error
	)
	res.ID = r.ID
	if res.CPU, err = r.CPU.Units.parse(); err != nil {
		return res, err
	}
	if res.Memory, err = r.Memory.Quantity.parse(); err != nil {
		return res, err
	}
	if res.GPU, err = r.GPU.Units.parse(); err != nil {
		return res, err
	}
	for _, s := range r.Storage {
		quantity, err := s.Quantity.parse()
		if err != nil {
			return res, err
		}
		res.Storage = append(res.Storage, Storage{Name: s.Name, Quantity: quantity})
	}
	for _, ep := range r.Endpoints {
		kind, ok := endpointKinds[ep.Kind]
		if !ok {
			if n, err := strconv.Atoi(ep.Kind); err == nil {
				kind = EndpointKind(n)
			}
		}
		res.Endpoints = append(res.Endpoints, Endpoint{Kind: kind, SequenceNumber: ep.SequenceNumber})
	}
	return res, nil
}
