package computing

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRuns returns its records in order, then keeps returning the last.
type scriptedRuns struct {
	lk      sync.Mutex
	records []*RunRecord
	err     error
	next    int
}

func (r *scriptedRuns) Get(runID string) (*RunRecord, error) {
	r.lk.Lock()
	defer r.lk.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	record := *r.records[r.next]
	if r.next < len(r.records)-1 {
		r.next++
	}
	return &record, nil
}

func watchRun(t *testing.T, runs RunReader) []map[string]interface{} {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrade.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewWsClient(conn)
		client.pollInterval = 5 * time.Millisecond
		client.HandleRunProgress(runs, "run-1")
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var messages []map[string]interface{}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return messages
		}
		if string(data) == PingMsg {
			continue
		}
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		messages = append(messages, msg)
	}
}

func TestWatchRunStreamsChangesUntilFinished(t *testing.T) {
	runs := &scriptedRuns{records: []*RunRecord{
		{RunID: "run-1", State: StateCreated, UpdatedAt: 1},
		{RunID: "run-1", State: StateCreated, UpdatedAt: 1},
		{RunID: "run-1", State: StateAwaitingBids, DSeq: 4242, UpdatedAt: 2},
		{RunID: "run-1", State: StateReady, DSeq: 4242, URL: "http://1.2.3.4:8080", UpdatedAt: 3},
	}}

	messages := watchRun(t, runs)
	require.Len(t, messages, 3)
	var states []string
	for _, msg := range messages {
		states = append(states, msg["state"].(string))
	}
	assert.Equal(t, []string{"created", "awaiting_bids", "ready"}, states)
	assert.Equal(t, "http://1.2.3.4:8080", messages[2]["url"])
}

func TestWatchRunReportsLookupError(t *testing.T) {
	runs := &scriptedRuns{err: errors.New("redis unavailable")}

	messages := watchRun(t, runs)
	require.Len(t, messages, 1)
	assert.Equal(t, "run-1", messages[0]["run_id"])
	assert.Equal(t, "redis unavailable", messages[0]["error"])
}
