package ledger

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagrangedao/go-akash-deployer/internal/endpoint"
)

func TestQuerierRotatesPastUnavailableEndpoint(t *testing.T) {
	var downHits int32
	down := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&downHits, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	up := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"block":{"header":{"height":"4242"}}}`))
	})

	pool, err := endpoint.NewPool([]string{down.URL, up.URL})
	require.NoError(t, err)
	q := NewQuerier(pool, RestDialer(time.Second))

	height, err := q.LatestHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4242), height)
	assert.Equal(t, int32(1), atomic.LoadInt32(&downHits))

	// the failed endpoint is cooling down
	assert.Equal(t, up.URL, pool.Next())
}

func TestQuerierDoesNotRetryNotFound(t *testing.T) {
	var hits int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	pool, err := endpoint.NewPool([]string{srv.URL, srv.URL})
	require.NoError(t, err)
	q := NewQuerier(pool, RestDialer(time.Second))

	_, err = q.Provider(context.Background(), "akash1prov")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
