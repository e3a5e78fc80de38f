package client

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// Size of the outbound queue. A client that cannot drain this many packets
// is effectively dead and will be disconnected rather than block handlers.
const sendQueueSize = 256

var ErrClientClosed = errors.New("client connection is closed")

// Client represents one connected game client. All writes go through a
// per-connection FIFO queue drained by a single goroutine, so packets hit
// the socket whole and in enqueue order no matter how many handlers send
// concurrently.
type Client struct {
	connection net.Conn
	ipAddr     string
	port       string

	// Logical peer address. Defaults to the transport address but is
	// replaced when a reverse-proxy preamble carries the true source.
	peerAddr string

	sequence uint32

	sendQueue chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	// Debugging information used for logging purposes.
	DebugTags map[string]interface{}
}

func NewClient(connection net.Conn) *Client {
	addr, port, _ := net.SplitHostPort(connection.RemoteAddr().String())

	return &Client{
		connection: connection,
		ipAddr:     addr,
		port:       port,
		peerAddr:   addr,
		sendQueue:  make(chan []byte, sendQueueSize),
		closed:     make(chan struct{}),
		DebugTags:  make(map[string]interface{}),
	}
}

func (c *Client) IPAddr() string { return c.ipAddr }
func (c *Client) Port() string   { return c.port }

// PeerAddr returns the logical peer address used for ban-list decisions.
func (c *Client) PeerAddr() string { return c.peerAddr }

// SetPeerAddr overrides the logical peer address with one extracted from a
// proxy preamble.
func (c *Client) SetPeerAddr(addr *net.TCPAddr) {
	if addr != nil {
		c.peerAddr = addr.IP.String()
	}
}

// Read consumes the available bytes directly from the client's TCP connection.
func (c *Client) Read(b []byte) (int, error) {
	return c.connection.Read(b)
}

// Close the TCP connection and release the send loop.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.connection.Close()
	})
	return err
}

// NextSequence returns the next value of the client's monotonic outbound
// sequence counter.
func (c *Client) NextSequence() uint32 {
	return atomic.AddUint32(&c.sequence, 1)
}

// Send serializes a payload struct, frames it, and enqueues it for the send
// loop. Enqueue order is write order.
func (c *Client) Send(packetType uint16, payload interface{}) error {
	data, err := protocol.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshaling %s payload: %w", protocol.PacketTypeName(packetType), err)
	}
	frame, err := protocol.EncodePacket(packetType, c.NextSequence(), data)
	if err != nil {
		return fmt.Errorf("error framing %s packet: %w", protocol.PacketTypeName(packetType), err)
	}
	return c.SendRaw(frame)
}

// SendRaw enqueues pre-framed bytes for the send loop.
func (c *Client) SendRaw(frame []byte) error {
	select {
	case <-c.closed:
		return ErrClientClosed
	case c.sendQueue <- frame:
		return nil
	default:
		// Queue full; the connection is not keeping up.
		return fmt.Errorf("send queue full for client %s", c.ipAddr)
	}
}

// SendLoop drains the outbound queue onto the socket until the client is
// closed. It is run in its own goroutine by the frontend; the returned error
// is the first write failure, or nil on clean shutdown.
func (c *Client) SendLoop() error {
	for {
		select {
		case <-c.closed:
			return nil
		case frame := <-c.sendQueue:
			if err := c.transmit(frame); err != nil {
				return err
			}
		}
	}
}

// transmit writes the contents of data to the TCP connection until the whole
// frame has been flushed.
func (c *Client) transmit(data []byte) error {
	bytesSent := 0

	for bytesSent < len(data) {
		b, err := c.connection.Write(data[bytesSent:])
		if err != nil {
			return fmt.Errorf("failed to send to client %v: %w", c.ipAddr, err)
		}
		bytesSent += b
	}

	return nil
}
