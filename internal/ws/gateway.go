package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/travelbuddy/internal/broker"
	"github.com/travelbuddy/internal/chat"
	"github.com/travelbuddy/internal/logger"
	"github.com/travelbuddy/internal/model"
)

// ChatService is the part of the chat facade the socket gateway needs. All
// authorization and persistence happens behind it; the gateway only moves
// frames.
type ChatService interface {
	Authorize(ctx context.Context, roomID, userID string) error
	PostMessage(ctx context.Context, roomID, userID, text string) (*model.Message, error)
}

// Gateway owns the set of live WebSocket connections and translates their
// frames into service calls and broker subscriptions. Fan-out itself lives in
// the broker; the gateway never walks room membership.
type Gateway struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	maxConns    int
	sendBufSize int
	svc         ChatService
	broker      broker.Broker
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
}

func NewGateway(svc ChatService, b broker.Broker, maxConns, sendBufSize int) *Gateway {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Gateway{
		clients:     make(map[*Client]struct{}),
		maxConns:    maxConns,
		sendBufSize: sendBufSize,
		svc:         svc,
		broker:      b,
		register:    make(chan *Client, 64),
		unregister:  make(chan *Client, 64),
		done:        make(chan struct{}),
	}
}

func (g *Gateway) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			g.shutdown()
			return
		case client := <-g.register:
			g.addClient(client)
		case client := <-g.unregister:
			g.removeClient(client)
		}
	}
}

func (g *Gateway) shutdown() {
	// Closing done first unblocks Register/Unregister senders: every closed
	// client's readPump calls Unregister on exit, and with more connections
	// than the channel buffer those sends would otherwise block forever while
	// shutdown waits on the pumps.
	close(g.done)

	// Collect all clients under the lock, do NOT perform I/O under mutex.
	g.mu.Lock()
	all := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		all = append(all, c)
	}
	g.clients = make(map[*Client]struct{})
	g.mu.Unlock()

	for _, c := range all {
		g.broker.Drop(c)
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

func (g *Gateway) addClient(c *Client) {
	g.mu.Lock()
	if len(g.clients) >= g.maxConns {
		g.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", g.maxConns, c.userID)
		c.Close()
		return
	}
	g.clients[c] = struct{}{}
	g.mu.Unlock()
}

func (g *Gateway) removeClient(c *Client) {
	g.mu.Lock()
	if _, ok := g.clients[c]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.clients, c)
	g.mu.Unlock()

	// Every channel subscription dies with the connection.
	g.broker.Drop(c)
	c.Close()
}

// HandleMessage dispatches incoming WebSocket frames.
func (g *Gateway) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventJoinRoom:
		g.handleJoinRoom(ctx, c, msg)
	case EventLeaveRoom:
		g.handleLeaveRoom(c, msg)
	case EventSendMessage:
		g.handleSendMessage(ctx, c, msg)
	default:
		c.enqueue(OutgoingMessage{Type: EventError, Payload: ErrorPayload{Reason: "unknown event type"}})
	}
}

// handleJoinRoom subscribes the connection to the room's live channel. The
// membership gate runs on every join; an evicted user cannot resubscribe.
func (g *Gateway) handleJoinRoom(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleJoinRoom", time.Now())()
	if msg.RoomID == "" {
		c.enqueue(OutgoingMessage{Type: EventError, Payload: ErrorPayload{Reason: "room_id required"}})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := g.svc.Authorize(ctx, msg.RoomID, c.userID); err != nil {
		c.enqueue(OutgoingMessage{Type: EventError, Payload: ErrorPayload{RoomID: msg.RoomID, Reason: reason(err)}})
		return
	}

	g.broker.Subscribe(msg.RoomID, c)
	c.enqueue(OutgoingMessage{Type: EventJoinedRoom, Payload: RoomPayload{RoomID: msg.RoomID}})
}

func (g *Gateway) handleLeaveRoom(c *Client, msg IncomingMessage) {
	if msg.RoomID == "" {
		return
	}
	g.broker.Unsubscribe(msg.RoomID, c)
	c.enqueue(OutgoingMessage{Type: EventLeftRoom, Payload: RoomPayload{RoomID: msg.RoomID}})
}

// handleSendMessage forwards the frame to the chat facade. Persistence and
// fan-out happen there; the sender hears the message back through its own
// channel subscription like everyone else.
func (g *Gateway) handleSendMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleSendMessage", time.Now())()
	if msg.RoomID == "" || msg.Content == "" {
		c.enqueue(OutgoingMessage{Type: EventError, Payload: ErrorPayload{RoomID: msg.RoomID, Reason: "room_id and content required"}})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := g.svc.PostMessage(ctx, msg.RoomID, c.userID, msg.Content); err != nil {
		logger.Errorf("ws send message room=%s user=%s: %v", msg.RoomID, c.userID, err)
		c.enqueue(OutgoingMessage{Type: EventError, Payload: ErrorPayload{RoomID: msg.RoomID, Reason: reason(err)}})
	}
}

// reason maps facade errors to user-facing strings without leaking internals.
func reason(err error) string {
	switch {
	case errors.Is(err, chat.ErrForbidden):
		return "not a member"
	case errors.Is(err, chat.ErrNotFound):
		return "not found"
	case errors.Is(err, chat.ErrInvalidInput):
		return "invalid input"
	default:
		return "internal error"
	}
}

func (g *Gateway) Register(c *Client) {
	// Once teardown has started nobody drains the register channel, so a
	// buffered send would strand the connection open.
	select {
	case <-g.done:
		c.Close()
		return
	default:
	}
	select {
	case g.register <- c:
	case <-g.done:
		c.Close()
	}
}

func (g *Gateway) Unregister(c *Client) {
	select {
	case g.unregister <- c:
	case <-g.done:
	}
}
