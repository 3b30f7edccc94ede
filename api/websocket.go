package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/dtfscope/internal/dashboard"
	"github.com/seenimoa/dtfscope/internal/observability"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	defaultMaxLiveRenders = 4
)

// Message types.
const (
	MsgTypeSubscribe   = "subscribe"
	MsgTypeUnsubscribe = "unsubscribe"
	MsgTypeSubscribed  = "subscribed"
	MsgTypePing        = "ping"
	MsgTypePong        = "pong"
	MsgTypeState       = "state"
	MsgTypeDashboard   = "dashboard"
	MsgTypeError       = "error"
)

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// wsIncoming is a client message with its payload left raw.
type wsIncoming struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StateChange is pushed to subscribers while a render progresses.
type StateChange struct {
	Request dashboard.Request `json:"request"`
	From    dashboard.State   `json:"from"`
	To      dashboard.State   `json:"to"`
}

// handleWebSocket upgrades the connection and starts the client pumps.
// A client subscribes with {"type":"subscribe","data":{"search":..,"category":..}}
// (an empty search watches the first catalog category)
// and then receives a dashboard immediately and on every refresh tick.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.WithContext(r.Context()).Errorf("api: websocket upgrade: %v", err)
		return
	}

	client := &WSClient{
		id:   uuid.NewString(),
		hub:  s.wsHub,
		send: make(chan WSMessage, 64),
	}

	s.wsHub.Register(client)

	go wsWritePump(conn, client)
	go wsReadPump(conn, client, s)
}

// wsReadPump pumps messages from the WebSocket connection to the hub.
func wsReadPump(conn *websocket.Conn, client *WSClient, s *Server) {
	defer func() {
		client.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logx.Errorf("api: websocket read %s: %v", client.id, err)
			}
			break
		}

		var msg wsIncoming
		if err := json.Unmarshal(message, &msg); err != nil {
			client.trySend(WSMessage{Type: MsgTypeError, Data: "malformed message"})
			continue
		}

		switch msg.Type {
		case MsgTypeSubscribe:
			var req dashboard.Request
			if len(msg.Data) > 0 {
				if err := json.Unmarshal(msg.Data, &req); err != nil {
					client.trySend(WSMessage{Type: MsgTypeError, Data: "malformed subscribe request"})
					continue
				}
			}
			client.Subscribe(req)
			client.trySend(WSMessage{
				Type: MsgTypeSubscribed,
				Data: map[string]interface{}{"id": client.id, "request": req},
			})
			go s.pushDashboard(context.Background(), req, []*WSClient{client})
		case MsgTypeUnsubscribe:
			client.Unsubscribe()
		case MsgTypePing:
			client.trySend(WSMessage{Type: MsgTypePong})
		}
	}
}

// wsWritePump pumps messages from the hub to the WebSocket connection.
func wsWritePump(conn *websocket.Conn, client *WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// publishState forwards shell transitions to clients subscribed to req.
func (s *Server) publishState(_ context.Context, req dashboard.Request, from, to dashboard.State) {
	s.wsHub.Publish(req.Key(), WSMessage{
		Type: MsgTypeState,
		Data: StateChange{Request: req, From: from, To: to},
	})
}

// pushDashboard renders req once and sends the result to clients.
func (s *Server) pushDashboard(ctx context.Context, req dashboard.Request, clients []*WSClient) {
	v := s.shell.Render(ctx, req)
	msg := WSMessage{Type: MsgTypeDashboard, Data: dashboardPayload(v)}
	for _, c := range clients {
		c.trySend(msg)
	}
}

// runRefresher re-renders every subscribed request on each tick until ctx
// is done. Clients sharing a request share one render.
func (s *Server) runRefresher(ctx context.Context) {
	interval := s.cfg.Dashboard.RefreshInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshOnce(ctx)
		}
	}
}

func (s *Server) refreshOnce(ctx context.Context) {
	subs := s.wsHub.Subscriptions()
	if len(subs) == 0 {
		return
	}

	limit := s.cfg.Dashboard.MaxLiveRenders
	if limit <= 0 {
		limit = defaultMaxLiveRenders
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, sub := range subs {
		g.Go(func() error {
			s.pushDashboard(gctx, sub.Request, sub.Clients)
			return nil
		})
	}
	_ = g.Wait()
	logx.WithContext(ctx).Infof("api: refreshed %d live dashboards", len(subs))
}

// ============================================================
// WebSocket Hub
// ============================================================

// WSHub tracks WebSocket clients and routes messages to subscribers.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	closed     bool
	unregister chan *WSClient
	done       chan struct{}
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	id   string
	hub  *WSHub
	send chan WSMessage

	mu  sync.Mutex
	sub *dashboard.Request
}

// Subscription groups clients watching the same request.
type Subscription struct {
	Request dashboard.Request
	Clients []*WSClient
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
}

// Run processes unregistrations until ctx is done, then closes every client.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.closed = true
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			observability.SetWSClients(0)
			return
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *WSHub) remove(client *WSClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetWSClients(n)
}

// Publish sends msg to every client subscribed to the request key.
// Clients whose buffers are full are dropped.
func (h *WSHub) Publish(key string, msg WSMessage) {
	var slow []*WSClient

	h.mu.RLock()
	for client := range h.clients {
		req, ok := client.Subscription()
		if !ok || req.Key() != key {
			continue
		}
		select {
		case client.send <- msg:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		logx.Errorf("api: dropping slow websocket client %s", client.id)
		h.remove(client)
	}
}

// Subscriptions groups subscribed clients by request.
func (h *WSHub) Subscriptions() []Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()

	index := make(map[string]int)
	var subs []Subscription
	for client := range h.clients {
		req, ok := client.Subscription()
		if !ok {
			continue
		}
		i, seen := index[req.Key()]
		if !seen {
			i = len(subs)
			index[req.Key()] = i
			subs = append(subs, Subscription{Request: req})
		}
		subs[i].Clients = append(subs[i].Clients, client)
	}
	return subs
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub. The client can be sent to as soon as
// Register returns. After the hub has stopped the client is closed instead.
func (h *WSHub) Register(client *WSClient) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(client.send)
		return
	}
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetWSClients(n)
}

// send queues msg for client without blocking. The read lock keeps the
// channel open for the duration: it is only closed under the write lock,
// after the client has left h.clients.
func (h *WSHub) send(client *WSClient, msg WSMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return false
	}
	select {
	case client.send <- msg:
		return true
	default:
		return false
	}
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ID is the client's unique id.
func (c *WSClient) ID() string { return c.id }

// Subscribe points the client at req, replacing any earlier subscription.
func (c *WSClient) Subscribe(req dashboard.Request) {
	c.mu.Lock()
	c.sub = &req
	c.mu.Unlock()
}

// Unsubscribe stops live updates for the client.
func (c *WSClient) Unsubscribe() {
	c.mu.Lock()
	c.sub = nil
	c.mu.Unlock()
}

// Subscription returns the client's current request, if any.
func (c *WSClient) Subscription() (dashboard.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		return dashboard.Request{}, false
	}
	return *c.sub, true
}

// trySend queues msg without blocking. It reports false when the client has
// left the hub or its buffer is full.
func (c *WSClient) trySend(msg WSMessage) bool {
	return c.hub.send(c, msg)
}
