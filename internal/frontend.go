package internal

import (
	"context"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	gamedebug "github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/debug"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// frontend implements the concurrent client connection logic.
//
// Data is read from any connected clients, framed, and passed to a backend
// instance, abstracting the lower level connection details away from the
// Backends. Each connection gets two goroutines: this read loop and the
// client's send loop, which drains the connection's outbound queue.
type frontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger

	// Banned, when set, is consulted with the connection's logical peer
	// address before any packet is dispatched.
	Banned func(addr string) bool

	mu               sync.Mutex
	connectedClients map[string]*client.Client
}

// Start opens a TCP socket for the server and starts the blocking loop for
// accepting client connections in its own goroutine, added to the WaitGroup.
// Context cancellations will stop the server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %v", f.Backend.Identifier(), err)
	}

	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}

	f.connectedClients = make(map[string]*client.Client)

	wg.Add(1)
	go f.startBlockingLoop(ctx, socket, wg)

	return nil
}

// createSocket opens a TCP socket to listen for client connections on the
// Address provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s", err.Error())
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %s", err.Error())
	}

	return socket, nil
}

// startBlockingLoop implements a connection handling loop that's purely
// responsible for accepting new connections and spinning off goroutines for
// the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, socket *net.TCPListener, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Printf("[%s] waiting for connections on %v", f.Backend.Identifier(), f.Address)

	connections := make(chan *net.TCPConn)
	go func() {
		for {
			// Poll until we can accept more clients.
			for f.connectedClientCount() >= f.Config.MaxConnections {
				time.Sleep(time.Second)
			}

			connection, err := socket.AcceptTCP()
			if err != nil {
				f.Logger.Warnf("failed to accept connection: %s", err.Error())
				continue
			}

			connections <- connection
		}
	}()

	clientWg := &sync.WaitGroup{}
handleLoop:
	for {
		select {
		case <-ctx.Done():
			_ = socket.Close()
			break handleLoop
		case connection := <-connections:
			clientWg.Add(1)
			// Note: If there is eventually a need to implement worker pooling
			// rather than spawning new goroutines for each client, this is
			// where it should be implemented.
			go f.acceptClient(ctx, connection, clientWg)
		}
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

func (f *frontend) connectedClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.connectedClients)
}

// acceptClient takes a connection and initiates a session by setting up the
// Client and starting its send loop. The goroutine then moves into the
// packet processing loop.
func (f *frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	c := client.NewClient(connection)
	f.Backend.SetUpClient(c)

	f.Logger.Infof("[%s] accepted connection from %s", f.Backend.Identifier(), c.IPAddr())

	f.mu.Lock()
	f.connectedClients[connection.RemoteAddr().String()] = c
	f.mu.Unlock()

	go func() {
		if err := c.SendLoop(); err != nil {
			f.Logger.Warnf("send loop for %s exited: %s", c.IPAddr(), err)
		}
	}()

	f.processPackets(ctx, c, connection.RemoteAddr().String())
}

// processPackets starts a blocking loop dedicated to reading data sent from
// a game client and only returns once the connection has closed.
func (f *frontend) processPackets(ctx context.Context, c *client.Client, remoteAddr string) {
	defer f.closeConnectionAndRecover(ctx, f.Backend.Identifier(), c, remoteAddr)

	framer := &protocol.Framer{}
	buffer := make([]byte, 2048)
	banChecked := false

	for {
		select {
		case <-ctx.Done():
			// For now just allow the deferred function to close the connection.
			return
		default:
		}

		bytesRead, err := c.Read(buffer)
		if err == io.EOF {
			return
		} else if err != nil {
			f.Logger.Warnf("socket error (%s) %s", c.IPAddr(), err)
			return
		}
		framer.Feed(buffer[:bytesRead])

		for {
			packet, err := framer.Next()
			if err != nil {
				f.Logger.Warnf("framing error from %s: %s", c.IPAddr(), err)
				return
			}
			if packet == nil {
				break
			}

			// Next has made the preamble determination by the time it yields
			// a packet, so the logical peer address is settled here. A proxy
			// preamble carries the client's real address; the ban check has
			// to see that one, not the transport address.
			if framer.PeerAddr != nil {
				c.SetPeerAddr(framer.PeerAddr)
				framer.PeerAddr = nil
			}
			if !banChecked {
				banChecked = true
				if f.Banned != nil && f.Banned(c.PeerAddr()) {
					f.Logger.Infof("[%s] rejected connection from banned address %s",
						f.Backend.Identifier(), c.PeerAddr())
					return
				}
			}

			if f.Config.Debugging.PacketLoggingEnabled {
				gamedebug.PrintPacket(f.Logger, "client", packet)
			}

			if err := f.Backend.Handle(ctx, c, packet); err != nil {
				f.Logger.Warn("error in client communication: " + err.Error())
				return
			}
		}
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics,
// disconnects the client, and removes them from the list regardless of the
// state of the connection.
func (f *frontend) closeConnectionAndRecover(ctx context.Context, serverName string, c *client.Client, remoteAddr string) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.IPAddr(), err, debug.Stack())
	}

	if err := c.Close(); err != nil {
		f.Logger.Warnf("failed to close client connection: %s", err)
	}

	f.mu.Lock()
	delete(f.connectedClients, remoteAddr)
	f.mu.Unlock()

	f.Backend.OnDisconnect(ctx, c)

	f.Logger.Infof("[%s] disconnected client %s", serverName, c.IPAddr())
}
