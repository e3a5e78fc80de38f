package battle

import (
	"context"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/data"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// handleAuth validates the client's token and binds a session to the
// connection. Authentication is the only request an unauthenticated
// connection may send, and it must arrive before the auth timeout fires.
func (s *Server) handleAuth(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.AuthRequest
	if err := s.decode(pkt, &request); err != nil {
		return err
	}

	if s.Auth.IsBanned(c.PeerAddr()) {
		return protocol.NewProtocolError(protocol.CodeUserNotFound,
			"address %s is banned", c.PeerAddr())
	}

	userID, err := s.Auth.DecodeToken(request.Token)
	if err != nil {
		s.Logger.Warnf("[%s] rejected token from %s: %v", s.Name, c.IPAddr(), err)
		return protocol.NewProtocolError(protocol.CodeUserNotFound, "invalid token")
	}

	account, err := data.FindOrCreateAccount(s.DB, userID)
	if err != nil {
		return err
	}
	if account.Banned {
		s.Auth.AddBanAddress(c.PeerAddr())
		return protocol.NewProtocolError(protocol.CodeUserNotFound,
			"account %s is banned", userID)
	}

	user := s.Users.Add(userID, c)
	s.cancelAuthTimer(c)

	s.Logger.Infof("[%s] authenticated %s from %s", s.Name, user.ID(), c.IPAddr())
	return c.Send(protocol.AuthResponseType, &protocol.AuthResponse{UserID: userID})
}
