package internal

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// captureBackend records every dispatched packet so tests can assert on what
// made it past the frontend.
type captureBackend struct {
	mu      sync.Mutex
	packets []*protocol.Packet
}

func (b *captureBackend) Identifier() string             { return "capture" }
func (b *captureBackend) Init(ctx context.Context) error { return nil }
func (b *captureBackend) SetUpClient(c *client.Client)   {}

func (b *captureBackend) Handle(ctx context.Context, c *client.Client, packet *protocol.Packet) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.packets = append(b.packets, packet)
	return nil
}

func (b *captureBackend) OnDisconnect(ctx context.Context, c *client.Client) {}

func (b *captureBackend) packetCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.packets)
}

func testFrontend(backend Backend, banned func(addr string) bool) *frontend {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &frontend{
		Backend:          backend,
		Config:           &core.Config{},
		Logger:           logger,
		Banned:           banned,
		connectedClients: make(map[string]*client.Client),
	}
}

func encodeAuthFrame(t *testing.T) []byte {
	t.Helper()
	data, err := protocol.Marshal(&protocol.AuthRequest{Token: "tok"})
	if err != nil {
		t.Fatalf("error marshaling auth payload: %v", err)
	}
	frame, err := protocol.EncodePacket(protocol.AuthRequestType, 1, data)
	if err != nil {
		t.Fatalf("error framing auth payload: %v", err)
	}
	return frame
}

// A proxied connection's ban decision must use the address from the PROXY
// preamble, even when the preamble and the first packet arrive in a single
// TCP segment.
func TestProcessPacketsBansProxiedPeer(t *testing.T) {
	preamble := "PROXY TCP4 203.0.113.7 192.0.2.1 40000 5555\n"
	stream := append([]byte(preamble), encodeAuthFrame(t)...)

	var consulted []string
	backend := &captureBackend{}
	f := testFrontend(backend, func(addr string) bool {
		consulted = append(consulted, addr)
		return addr == "203.0.113.7"
	})

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	go func() {
		_, _ = clientConn.Write(stream)
		_ = clientConn.Close()
	}()

	c := client.NewClient(serverConn)
	f.processPackets(context.Background(), c, "test-conn")

	if len(consulted) != 1 || consulted[0] != "203.0.113.7" {
		t.Errorf("ban list consulted with %v, want [203.0.113.7]", consulted)
	}
	if n := backend.packetCount(); n != 0 {
		t.Errorf("%d packets dispatched for a banned peer, want 0", n)
	}
}

func TestProcessPacketsDispatchesProxiedPeer(t *testing.T) {
	preamble := "PROXY TCP4 203.0.113.7 192.0.2.1 40000 5555\n"
	stream := append([]byte(preamble), encodeAuthFrame(t)...)

	backend := &captureBackend{}
	f := testFrontend(backend, func(addr string) bool { return false })

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	go func() {
		_, _ = clientConn.Write(stream)
		_ = clientConn.Close()
	}()

	c := client.NewClient(serverConn)
	f.processPackets(context.Background(), c, "test-conn")

	if n := backend.packetCount(); n != 1 {
		t.Fatalf("%d packets dispatched, want 1", n)
	}
	if got := c.PeerAddr(); got != "203.0.113.7" {
		t.Errorf("peer address = %q, want 203.0.113.7", got)
	}
}
