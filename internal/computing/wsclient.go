package computing

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/gorilla/websocket"
)

const (
	PingMsg = "ping"
)

var upgrade = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type RunReader interface {
	Get(runID string) (*RunRecord, error)
}

// WsClient streams the progress of a run to a websocket client.
type WsClient struct {
	client           *websocket.Conn
	message          chan wsMessage
	stopCh           chan struct{}
	closeOnce        sync.Once
	checkFailedCount int
	pollInterval     time.Duration
	// messages queued or being written
	pending atomic.Int64
}

type wsMessage struct {
	data    []byte
	msgType int
}

func NewWsClient(client *websocket.Conn) *WsClient {
	wsClient := &WsClient{
		client:       client,
		message:      make(chan wsMessage, 5),
		stopCh:       make(chan struct{}),
		pollInterval: time.Second,
	}

	client.SetCloseHandler(func(code int, text string) error {
		logs.GetLogger().Infof("websocket client closed, code: %d", code)
		wsClient.Close()
		return nil
	})

	return wsClient
}

func (ws *WsClient) Close() {
	ws.closeOnce.Do(func() {
		close(ws.stopCh)
		if ws.client != nil {
			ws.client.Close()
		}
	})
}

// HandleRunProgress sends the run record every time it changes until the
// run finishes or the client goes away.
func (ws *WsClient) HandleRunProgress(runs RunReader, runID string) {
	ws.ReadMessage()
	ws.writeMessage()
	defer ws.Close()

	go func() {
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ws.send(wsMessage{data: []byte(PingMsg), msgType: websocket.TextMessage})
			case <-ws.stopCh:
				return
			}
		}
	}()

	ticker := time.NewTicker(ws.pollInterval)
	defer ticker.Stop()
	var lastUpdate int64
	for {
		record, err := runs.Get(runID)
		if err != nil {
			data, _ := json.Marshal(map[string]string{"run_id": runID, "error": err.Error()})
			ws.send(wsMessage{data: data, msgType: websocket.TextMessage})
			ws.flush()
			return
		}
		if record.UpdatedAt != lastUpdate {
			lastUpdate = record.UpdatedAt
			data, _ := json.Marshal(record)
			ws.send(wsMessage{data: data, msgType: websocket.TextMessage})
		}
		if record.Finished() {
			ws.flush()
			return
		}

		select {
		case <-ticker.C:
		case <-ws.stopCh:
			return
		}
	}
}

func (ws *WsClient) send(msg wsMessage) {
	ws.pending.Add(1)
	select {
	case ws.message <- msg:
	case <-ws.stopCh:
		ws.pending.Add(-1)
	}
}

// flush waits briefly for queued messages to be written before closing.
func (ws *WsClient) flush() {
	deadline := time.After(2 * time.Second)
	for ws.pending.Load() > 0 {
		select {
		case <-deadline:
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (ws *WsClient) writeMessage() {
	go func() {
		for {
			select {
			case msg := <-ws.message:
				err := ws.client.WriteMessage(msg.msgType, msg.data)
				ws.pending.Add(-1)
				if err != nil {
					logs.GetLogger().Warnf("failed write websocket message, error: %v", err)
					ws.Close()
					return
				}
				if string(msg.data) == PingMsg {
					ws.client.SetReadDeadline(time.Now().Add(10 * time.Second))
				}
			case <-ws.stopCh:
				return
			}
		}
	}()
}

func (ws *WsClient) ReadMessage() {
	go func() {
		for {
			select {
			case <-ws.stopCh:
				return
			default:
			}
			if _, _, err := ws.client.ReadMessage(); err != nil {
				if ws.checkFailedCount > 30 {
					ws.Close()
					return
				}
				ws.checkFailedCount++
				time.Sleep(600 * time.Millisecond)
			} else {
				ws.checkFailedCount = 0
			}
		}
	}()
}
