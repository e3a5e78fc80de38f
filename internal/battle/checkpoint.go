package battle

import (
	"context"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// handleEnterCheckpoint registers one of the requester's units inside a lane
// checkpoint. The state machine reacts on its own; both clients hear about
// transitions through CheckpointStatusNotification.
func (s *Server) handleEnterCheckpoint(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.EnterCheckpointRequest
	if err := s.decode(pkt, &request); err != nil {
		return err
	}

	user, err := s.requireUser(c)
	if err != nil {
		return err
	}
	g, err := s.requireGame(user)
	if err != nil {
		return err
	}

	g.Lock()
	defer g.Unlock()

	player, err := g.Player(user.ID())
	if err != nil {
		return err
	}
	if player.Unit(request.UnitID) == nil {
		return protocol.NewValidationError(protocol.CodeUnitNotFound,
			"unit %d is not yours or does not exist", request.UnitID)
	}

	return g.Checkpoint(request.IsTop).AddUnit(user.ID(), request.UnitID)
}

// handleExitCheckpoint removes one of the requester's units from a lane
// checkpoint.
func (s *Server) handleExitCheckpoint(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.ExitCheckpointRequest
	if err := s.decode(pkt, &request); err != nil {
		return err
	}

	user, err := s.requireUser(c)
	if err != nil {
		return err
	}
	g, err := s.requireGame(user)
	if err != nil {
		return err
	}

	g.Lock()
	defer g.Unlock()

	if !g.Checkpoint(request.IsTop).RemoveUnit(user.ID(), request.UnitID) {
		return protocol.NewValidationError(protocol.CodeCheckpointNotHeld,
			"unit %d is not inside the checkpoint", request.UnitID)
	}
	return nil
}
