package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/go-resty/resty/v2"

	"github.com/lagrangedao/go-akash-deployer/constants"
	"github.com/lagrangedao/go-akash-deployer/internal/certs"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
)

// HostQuerier resolves a provider's service URI from the ledger.
type HostQuerier interface {
	Provider(ctx context.Context, owner string) (*ledger.Provider, error)
}

// Client talks to provider gateways over mutual TLS.
type Client struct {
	querier HostQuerier
	timeout time.Duration
}

func NewClient(querier HostQuerier, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = constants.ProviderTimeout
	}
	return &Client{querier: querier, timeout: timeout}
}

// HostURI looks up the gateway of provider.
func (c *Client) HostURI(ctx context.Context, provider string) (string, error) {
	p, err := c.querier.Provider(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("failed get provider %s, error: %w", provider, err)
	}
	if p.HostURI == "" {
		return "", fmt.Errorf("provider %s has no host uri", provider)
	}
	return strings.TrimRight(p.HostURI, "/"), nil
}

func (c *Client) rest(cert *certs.Certificate) (*resty.Client, error) {
	pair, err := cert.TLSCertificate()
	if err != nil {
		return nil, err
	}
	// provider gateways present self signed certificates
	tlsConfig := &tls.Config{
		Certificates:       []tls.Certificate{pair},
		InsecureSkipVerify: true,
	}
	return resty.New().
		SetTimeout(c.timeout).
		SetTLSClientConfig(tlsConfig).
		SetHeader("Accept", "application/json"), nil
}

// SendManifest uploads manifest to the provider of lease and returns the
// gateway it was accepted by. It does not retry.
func (c *Client) SendManifest(ctx context.Context, manifest []byte, lease ledger.LeaseID, cert *certs.Certificate) (string, error) {
	hostURI, err := c.HostURI(ctx, lease.Provider)
	if err != nil {
		return "", err
	}
	client, err := c.rest(cert)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/deployment/%d/manifest", hostURI, lease.DSeq)
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(manifest).
		Put(url)
	if err != nil {
		return "", fmt.Errorf("failed send manifest to %s, error: %w", url, err)
	}
	if !resp.IsSuccess() {
		return "", &ManifestRejectedError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	logs.GetLogger().Infof("manifest of deployment %d accepted by %s", lease.DSeq, hostURI)
	return hostURI, nil
}

// LeaseStatus fetches one status snapshot. A null or empty body returns
// nil without error.
func (c *Client) LeaseStatus(ctx context.Context, lease ledger.LeaseID, hostURI string, cert *certs.Certificate) (*LeaseStatus, error) {
	client, err := c.rest(cert)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/lease/%d/%d/%d/status", strings.TrimRight(hostURI, "/"), lease.DSeq, lease.GSeq, lease.OSeq)
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, &StatusUnavailableError{Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &StatusUnavailableError{Err: fmt.Errorf("status %d: %s", resp.StatusCode(), string(resp.Body()))}
	}

	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	var status LeaseStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, &StatusUnavailableError{Err: err}
	}
	return &status, nil
}

// Finalize takes a single status snapshot of lease and extracts its public
// address and service readiness. It returns nil when the provider has no
// status yet.
func (c *Client) Finalize(ctx context.Context, lease ledger.LeaseID, hostURI string, cert *certs.Certificate) (*DeploymentEndpoint, error) {
	status, err := c.LeaseStatus(ctx, lease, hostURI, cert)
	if err != nil {
		var unavailable *StatusUnavailableError
		if errors.As(err, &unavailable) {
			logs.GetLogger().Warnf("lease %s has no status yet: %v", lease, err)
			return nil, nil
		}
		return nil, err
	}
	if status == nil {
		return nil, nil
	}

	endpoint := &DeploymentEndpoint{
		URL:      status.PublicURL(),
		Services: status.Readiness(),
	}
	if endpoint.URL == "" {
		logs.GetLogger().Infof("lease %s exposes no public endpoint", lease)
	}
	return endpoint, nil
}
