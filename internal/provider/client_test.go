package provider

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagrangedao/go-akash-deployer/internal/certs"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
)

type staticHost string

func (h staticHost) Provider(ctx context.Context, owner string) (*ledger.Provider, error) {
	return &ledger.Provider{Owner: owner, HostURI: string(h)}, nil
}

var testLease = ledger.LeaseID{Owner: "akash1owner", DSeq: 55, GSeq: 1, OSeq: 1, Provider: "akash1prov"}

func newGateway(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewUnstartedServer(handler)
	srv.TLS = &tls.Config{ClientAuth: tls.RequireAnyClientCert}
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func testCert(t *testing.T) *certs.Certificate {
	t.Helper()
	cert, err := certs.Generate("akash1owner", time.Now())
	require.NoError(t, err)
	return cert
}

func TestSendManifest(t *testing.T) {
	var got []byte
	srv := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/deployment/55/manifest", r.URL.Path)
		if assert.Len(t, r.TLS.PeerCertificates, 1) {
			assert.Equal(t, "akash1owner", r.TLS.PeerCertificates[0].Subject.CommonName)
		}
		got, _ = io.ReadAll(r.Body)
	})

	c := NewClient(staticHost(srv.URL), 5*time.Second)
	hostURI, err := c.SendManifest(context.Background(), []byte(`[{"name":"dcloud"}]`), testLease, testCert(t))
	require.NoError(t, err)
	assert.Equal(t, srv.URL, hostURI)
	assert.Equal(t, `[{"name":"dcloud"}]`, string(got))
}

func TestSendManifestRejected(t *testing.T) {
	srv := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("insufficient capacity"))
	})

	c := NewClient(staticHost(srv.URL), 5*time.Second)
	_, err := c.SendManifest(context.Background(), []byte(`[]`), testLease, testCert(t))
	var rejected *ManifestRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusInternalServerError, rejected.StatusCode)
	assert.Equal(t, "insufficient capacity", rejected.Body)
}

func TestFinalizeForwardedPort(t *testing.T) {
	srv := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lease/55/1/1/status", r.URL.Path)
		w.Write([]byte(`{
			"services": {"web": {"name": "web", "available": 1, "total": 1, "uris": ["web.ingress.example.com"]}},
			"forwarded_ports": {"web": [{"host": "1.2.3.4", "port": 80, "externalPort": 8080, "proto": "TCP", "name": "web"}]}
		}`))
	})

	c := NewClient(staticHost(srv.URL), 5*time.Second)
	ep, err := c.Finalize(context.Background(), testLease, srv.URL, testCert(t))
	require.NoError(t, err)
	require.NotNil(t, ep)
	assert.Equal(t, "http://1.2.3.4:8080", ep.URL)
	assert.True(t, ep.Ready())
	assert.Equal(t, []ServiceReadiness{{Name: "web", Available: 1, Total: 1, URIs: []string{"web.ingress.example.com"}}}, ep.Services)
}

func TestFinalizeFallsBackToServiceURI(t *testing.T) {
	srv := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"services": {"web": {"available": 0, "total": 2, "uris": ["web.ingress.example.com"]}}}`))
	})

	c := NewClient(staticHost(srv.URL), 5*time.Second)
	ep, err := c.Finalize(context.Background(), testLease, srv.URL, testCert(t))
	require.NoError(t, err)
	assert.Equal(t, "web.ingress.example.com", ep.URL)
	assert.False(t, ep.Ready())
}

func TestFinalizeWithoutPublicEndpoint(t *testing.T) {
	srv := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"services": {"worker": {"available": 1, "total": 1}}}`))
	})

	c := NewClient(staticHost(srv.URL), 5*time.Second)
	ep, err := c.Finalize(context.Background(), testLease, srv.URL, testCert(t))
	require.NoError(t, err)
	require.NotNil(t, ep)
	assert.Empty(t, ep.URL)
	assert.True(t, ep.Ready())
}

func TestFinalizeNotReady(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"null body": func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("null")) },
		"empty":     func(w http.ResponseWriter, r *http.Request) {},
		"error":     func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
	} {
		t.Run(name, func(t *testing.T) {
			srv := newGateway(t, handler)
			c := NewClient(staticHost(srv.URL), 5*time.Second)
			ep, err := c.Finalize(context.Background(), testLease, srv.URL, testCert(t))
			assert.NoError(t, err)
			assert.Nil(t, ep)
		})
	}
}

func TestLeaseStatusUnavailable(t *testing.T) {
	srv := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := NewClient(staticHost(srv.URL), 5*time.Second)
	_, err := c.LeaseStatus(context.Background(), testLease, srv.URL, testCert(t))
	var unavailable *StatusUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}
