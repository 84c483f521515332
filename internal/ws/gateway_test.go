package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/travelbuddy/internal/broker"
	"github.com/travelbuddy/internal/model"
)

type noopService struct{}

func (noopService) Authorize(context.Context, string, string) error { return nil }
func (noopService) PostMessage(context.Context, string, string, string) (*model.Message, error) {
	return &model.Message{}, nil
}

// Registers every upgraded connection with the gateway the way the HTTP
// handler does.
func gatewayTestServer(g *Gateway) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		c := NewClient(g, conn, "user")
		c.Start(ctx, cancel)
		g.Register(c)
	}))
}

// More live connections than the unregister channel buffer: every pump exit
// during shutdown calls Unregister, and shutdown must keep absorbing those
// while it waits for the pumps, or Run never returns.
func TestGatewayShutdownWithManyClients(t *testing.T) {
	req := require.New(t)
	g := NewGateway(noopService{}, broker.NewMemory(), 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(runDone)
	}()

	srv := gatewayTestServer(g)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	const clients = 80
	conns := make([]*websocket.Conn, 0, clients)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()
	for i := 0; i < clients; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		req.NoError(err)
		conns = append(conns, conn)
	}

	req.Eventually(func() bool {
		g.mu.RLock()
		n := len(g.clients)
		g.mu.RUnlock()
		return n == clients
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		req.Fail("gateway.Run did not return after cancel")
	}
}

func TestGatewayRegisterAfterShutdownClosesClient(t *testing.T) {
	req := require.New(t)
	g := NewGateway(noopService{}, broker.NewMemory(), 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(runDone)
	}()

	srv := gatewayTestServer(g)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer conn.Close()

	cancel()
	<-runDone

	// A straggler connecting mid-teardown must not hang; the server side
	// closes it instead of registering it.
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer late.Close()

	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = late.ReadMessage()
	req.Error(err)
	var netErr net.Error
	if errors.As(err, &netErr) {
		req.False(netErr.Timeout(), "connection was left open instead of closed")
	}
}
