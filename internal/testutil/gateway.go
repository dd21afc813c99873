package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cory-johannsen/roomlink/internal/protocol"
)

// FakeGateway is an in-process WebSocket gateway for integration tests.
// Handshakes whose credentials differ from Token/RoomID are answered with 401.
type FakeGateway struct {
	URL    string
	Token  string
	RoomID string

	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader
	peers    chan *GatewayPeer

	mu      sync.Mutex
	headers []http.Header
}

// NewFakeGateway starts a gateway accepting the given credentials.
//
// Postcondition: The server is closed when the test ends.
func NewFakeGateway(t *testing.T, token, roomID string) *FakeGateway {
	t.Helper()
	g := &FakeGateway{
		Token:  token,
		RoomID: roomID,
		t:      t,
		peers:  make(chan *GatewayPeer, 8),
	}
	g.server = httptest.NewServer(http.HandlerFunc(g.handle))
	g.URL = "ws" + strings.TrimPrefix(g.server.URL, "http")
	t.Cleanup(g.server.Close)
	return g
}

func (g *FakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.headers = append(g.headers, r.Header.Clone())
	g.mu.Unlock()

	if r.Header.Get("api-token") != g.Token || r.Header.Get("room-id") != g.RoomID {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.t.Logf("upgrade failed: %v", err)
		return
	}
	g.peers <- &GatewayPeer{conn: conn, t: g.t}
}

// Handshakes returns the headers of every upgrade attempt so far.
func (g *FakeGateway) Handshakes() []http.Header {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]http.Header(nil), g.headers...)
}

// Accept waits for the next client connection.
//
// Postcondition: Returns the connected peer or fails the test on timeout.
func (g *FakeGateway) Accept(timeout time.Duration) *GatewayPeer {
	g.t.Helper()
	select {
	case p := <-g.peers:
		g.t.Cleanup(func() { _ = p.conn.Close() })
		return p
	case <-time.After(timeout):
		g.t.Fatalf("no client connected within %s", timeout)
		return nil
	}
}

// GatewayPeer is the server side of one client connection.
type GatewayPeer struct {
	conn *websocket.Conn
	t    *testing.T
	mu   sync.Mutex
}

// Next reads the next frame from the client.
func (p *GatewayPeer) Next(timeout time.Duration) []byte {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		p.t.Fatalf("reading from client: %v", err)
	}
	return data
}

// Expect reads frames until one tagged tag arrives, skipping heartbeats.
//
// Postcondition: Returns the matching frame or fails the test.
func (p *GatewayPeer) Expect(tag string, timeout time.Duration) []byte {
	p.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.t.Fatalf("no %s within %s", tag, timeout)
		}
		data := p.Next(remaining)
		got := protocol.PeekType(data)
		if got == tag {
			return data
		}
		if got != protocol.TypeKeepaliveRequest {
			p.t.Logf("skipping %s while waiting for %s", got, tag)
		}
	}
}

// Push writes a raw frame to the client.
func (p *GatewayPeer) Push(raw string) {
	p.t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		p.t.Fatalf("pushing to client: %v", err)
	}
}

// Send encodes msg with rid and writes it to the client.
func (p *GatewayPeer) Send(msg protocol.Message, rid string) {
	p.t.Helper()
	raw, err := protocol.Encode(msg, rid)
	if err != nil {
		p.t.Fatalf("encoding %s: %v", msg.Type(), err)
	}
	p.Push(string(raw))
}

// Reply answers the request frame req with msg under the same rid.
func (p *GatewayPeer) Reply(req []byte, msg protocol.Message) {
	p.t.Helper()
	p.Send(msg, protocol.PeekRID(req))
}

// Close sends a close frame with code and drops the connection.
func (p *GatewayPeer) Close(code int, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
	_ = p.conn.Close()
}
