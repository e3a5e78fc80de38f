package battle

import (
	"context"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/assets"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// handleMatchRequest queues the user for matchmaking under their chosen
// species. The matchmaker answers asynchronously with a MatchNotification
// or, after the wait limit, a MatchTimeoutNotification.
func (s *Server) handleMatchRequest(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.MatchRequest
	if err := s.decode(pkt, &request); err != nil {
		return err
	}

	user, err := s.requireUser(c)
	if err != nil {
		return err
	}
	if user.GameID() != "" {
		return protocol.NewValidationError(protocol.CodeGameNotStarted,
			"user %s is already in a game", user.ID())
	}

	switch request.Species {
	case protocol.SpeciesCat:
		user.SetSpecies(assets.SpeciesCat)
	case protocol.SpeciesDog:
		user.SetSpecies(assets.SpeciesDog)
	default:
		return protocol.NewValidationError(protocol.CodeInvalidAssetID,
			"unknown species %d", request.Species)
	}

	return s.Matchmaker.Enqueue(user)
}

// handleMatchCancel withdraws the user from matchmaking. Cancelling when not
// queued is not an error; the response reports whether anything happened.
func (s *Server) handleMatchCancel(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.MatchCancelRequest
	if err := s.decode(pkt, &request); err != nil {
		return err
	}

	user, err := s.requireUser(c)
	if err != nil {
		return err
	}

	cancelled := s.Matchmaker.Cancel(user)
	return c.Send(protocol.MatchCancelResponseType, &protocol.MatchCancelResponse{Cancelled: cancelled})
}
