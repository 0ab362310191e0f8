package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
)

// scriptedBids returns the next response on every poll and repeats the last.
type scriptedBids struct {
	lk        sync.Mutex
	responses []func() ([]ledger.BidRecord, error)
	polls     int
}

func (s *scriptedBids) Bids(ctx context.Context, owner string, dseq uint64) ([]ledger.BidRecord, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	i := s.polls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.polls++
	return s.responses[i]()
}

func (s *scriptedBids) Polls() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.polls
}

func records(bids ...*ledger.Bid) func() ([]ledger.BidRecord, error) {
	return func() ([]ledger.BidRecord, error) {
		var out []ledger.BidRecord
		for _, b := range bids {
			out = append(out, ledger.BidRecord{Bid: b})
		}
		return out, nil
	}
}

func failing() ([]ledger.BidRecord, error) {
	return nil, errors.New("endpoint unavailable")
}

func fastCollector(q BidQuerier) *Collector {
	return NewCollector(q, WithTiming(5*time.Millisecond, 5*time.Millisecond, 300*time.Millisecond))
}

func TestCollectAndSelectKeepsPollingUntilBid(t *testing.T) {
	q := &scriptedBids{responses: []func() ([]ledger.BidRecord, error){
		records(),
		failing,
		records(bid("p1", "10"), bid("p2", "9.5")),
	}}

	selected, err := fastCollector(q).CollectAndSelect(context.Background(), 10, "akash1owner", nil)
	require.NoError(t, err)
	assert.Equal(t, "p2", selected.Provider())
	assert.Equal(t, 3, q.Polls())
}

func TestCollectAndSelectTimesOut(t *testing.T) {
	q := &scriptedBids{responses: []func() ([]ledger.BidRecord, error){
		func() ([]ledger.BidRecord, error) { return []ledger.BidRecord{{}}, nil },
	}}

	_, err := fastCollector(q).CollectAndSelect(context.Background(), 10, "akash1owner", nil)
	var timeout *BidTimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, uint64(10), timeout.DSeq)
	assert.Equal(t, 1, timeout.Invalid)
}

func TestCollectAndSelectCancelled(t *testing.T) {
	q := &scriptedBids{responses: []func() ([]ledger.BidRecord, error){records()}}
	c := NewCollector(q, WithTiming(time.Hour, time.Second, 2*time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := c.CollectAndSelect(ctx, 10, "akash1owner", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, q.Polls())
}
