package certs

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagrangedao/go-akash-deployer/internal/broadcast"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
)

type testSigner struct{}

func (testSigner) Address() string                    { return "akash1owner" }
func (testSigner) PubKey() []byte                     { return bytes.Repeat([]byte{2}, 33) }
func (testSigner) Sign(digest []byte) ([]byte, error) { return make([]byte, 64), nil }

type countingBroadcaster struct {
	calls int32
	delay time.Duration
	err   error
}

func (b *countingBroadcaster) Broadcast(ctx context.Context, signer ledger.Signer, msgs []ledger.Msg, memo string) (*broadcast.TxResult, error) {
	atomic.AddInt32(&b.calls, 1)
	time.Sleep(b.delay)
	if b.err != nil {
		return nil, b.err
	}
	if _, ok := msgs[0].(*ledger.MsgCreateCertificate); !ok {
		return nil, errors.New("unexpected message")
	}
	return &broadcast.TxResult{TxHash: "CERT"}, nil
}

type memStore struct {
	lk    sync.Mutex
	certs map[string]*Certificate
	puts  int
}

func (s *memStore) GetCertificate(address string) (*Certificate, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.certs[address], nil
}

func (s *memStore) PutCertificate(cert *Certificate) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.certs[cert.Address] = cert
	s.puts++
	return nil
}

func TestGetOrCreateConcurrentCallersShareOneRegistration(t *testing.T) {
	bc := &countingBroadcaster{delay: 50 * time.Millisecond}
	store := &memStore{certs: map[string]*Certificate{}}
	m := NewManager(store, bc)

	const callers = 10
	results := make([]*Certificate, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cert, err := m.GetOrCreate(context.Background(), testSigner{})
			assert.NoError(t, err)
			results[i] = cert
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&bc.calls))
	assert.Equal(t, 1, store.puts)
	for _, cert := range results {
		require.NotNil(t, cert)
		assert.Equal(t, results[0].Cert, cert.Cert)
	}
}

func TestGetOrCreateUsesStore(t *testing.T) {
	existing, err := Generate("akash1owner", time.Now())
	require.NoError(t, err)
	bc := &countingBroadcaster{}
	m := NewManager(&memStore{certs: map[string]*Certificate{"akash1owner": existing}}, bc)

	cert, err := m.GetOrCreate(context.Background(), testSigner{})
	require.NoError(t, err)
	assert.Equal(t, existing.Cert, cert.Cert)
	assert.Equal(t, int32(0), atomic.LoadInt32(&bc.calls))
}

func TestGetOrCreateBroadcastFailureCachesNothing(t *testing.T) {
	bc := &countingBroadcaster{err: errors.New("out of gas")}
	store := &memStore{certs: map[string]*Certificate{}}
	m := NewManager(store, bc)

	_, err := m.GetOrCreate(context.Background(), testSigner{})
	var certErr *CertificateBroadcastError
	require.True(t, errors.As(err, &certErr))
	assert.Equal(t, 0, store.puts)

	bc.err = nil
	_, err = m.GetOrCreate(context.Background(), testSigner{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&bc.calls))
}

func TestGeneratedCertificateShape(t *testing.T) {
	cert, err := Generate("akash1owner", time.Now())
	require.NoError(t, err)

	block, _ := pem.Decode(cert.Cert)
	require.NotNil(t, block)
	parsed, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, "akash1owner", parsed.Subject.CommonName)
	assert.Equal(t, []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}, parsed.ExtKeyUsage)

	pub, _ := pem.Decode(cert.PubKey)
	require.NotNil(t, pub)
	assert.Equal(t, "EC PUBLIC KEY", pub.Type)

	_, err = cert.TLSCertificate()
	assert.NoError(t, err)
}

func TestCachedDoesNotRegister(t *testing.T) {
	broadcaster := &countingBroadcaster{}
	m := NewManager(&memStore{certs: map[string]*Certificate{}}, broadcaster)

	cert, err := m.Cached("akash1owner")
	require.NoError(t, err)
	assert.Nil(t, cert)

	created, err := m.GetOrCreate(context.Background(), testSigner{})
	require.NoError(t, err)
	cert, err = m.Cached("akash1owner")
	require.NoError(t, err)
	assert.Same(t, created, cert)
	assert.Equal(t, int32(1), atomic.LoadInt32(&broadcaster.calls))
}
