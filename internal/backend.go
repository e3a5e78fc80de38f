package internal

import (
	"context"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// Backend is an interface for a sub-server that handles a specific set of
// client interactions as part of the game flow.
type Backend interface {
	// Identifier returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend
	// to perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// SetUpClient performs any initialization on the Client needed to be
	// able to begin the session, such as arming the authentication timeout.
	SetUpClient(c *client.Client)

	// Handle is the main entry point for processing client packets. It is
	// responsible for dispatching every framed packet from a client as well
	// as sending any responses.
	Handle(ctx context.Context, c *client.Client, packet *protocol.Packet) error

	// OnDisconnect is invoked exactly once after a client's connection
	// drops, whatever the reason, so the Backend can release any state tied
	// to the session.
	OnDisconnect(ctx context.Context, c *client.Client)
}
