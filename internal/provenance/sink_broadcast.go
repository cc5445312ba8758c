package provenance

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// broadcastUpgrader allows every origin outside production and requires an
// explicit allowlist once PROVENANCE_ENV=production.
var broadcastUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     buildBroadcastCheckOrigin(),
}

func buildBroadcastCheckOrigin() func(r *http.Request) bool {
	env := os.Getenv("PROVENANCE_ENV")
	allowedRaw := os.Getenv("PROVENANCE_ALLOWED_ORIGINS")
	if env == "production" {
		allowed := make(map[string]bool)
		for _, origin := range strings.Split(allowedRaw, ",") {
			if o := strings.TrimSpace(origin); o != "" {
				allowed[o] = true
			}
		}
		return func(r *http.Request) bool { return allowed[r.Header.Get("Origin")] }
	}
	return func(r *http.Request) bool { return true }
}

// broadcastEvent is what subscribers receive over the websocket: the
// public descriptor fields plus the finished proof — the same fields every
// sink receives, never a machine's internal state.
type broadcastEvent struct {
	AgentID   string `json:"agentId"`
	SessionID string `json:"sessionId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Action    string `json:"action"`
	Proof     Proof  `json:"proof"`
}

// BroadcastSink fans out every accepted proof in real time to subscribed
// auditors over WebSocket. Grounded on the predecessor service's
// hub-and-spoke broadcast pattern, simplified to a single fan-out point (no
// routing, no capability matching — every subscriber receives every
// event).
type BroadcastSink struct {
	mu          sync.RWMutex
	subscribers map[*websocket.Conn]chan []byte
}

func NewBroadcastSink() *BroadcastSink {
	return &BroadcastSink{subscribers: make(map[*websocket.Conn]chan []byte)}
}

func (b *BroadcastSink) Name() string { return "websocket-broadcast" }

// HandleWebSocket upgrades an HTTP request to a subscriber connection.
func (b *BroadcastSink) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := broadcastUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	send := make(chan []byte, 64)
	b.mu.Lock()
	b.subscribers[conn] = send
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subscribers, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	for msg := range send {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (b *BroadcastSink) OnTransition(agentID, sessionID, from, to, action string, proof Proof) error {
	data, err := json.Marshal(broadcastEvent{
		AgentID: agentID, SessionID: sessionID,
		From: from, To: to, Action: action, Proof: proof,
	})
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- data:
		default:
			// Slow subscriber: drop rather than block the chain-append path.
		}
	}
	return nil
}
