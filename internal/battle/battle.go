// The battle package implements the Backend for the game server: it owns
// packet dispatch for authenticated play, from matchmaking through combat to
// match teardown.
package battle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/assets"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/auth"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/data"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/debug"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/game"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/matchmaking"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/session"
)

// handlerFunc processes one decoded packet from an authenticated client.
type handlerFunc func(ctx context.Context, c *client.Client, pkt *protocol.Packet) error

// Server is the game server backend.
type Server struct {
	Name   string
	Config *core.Config
	Logger *logrus.Logger

	DB         *gorm.DB
	Assets     *assets.Store
	Auth       *auth.Service
	Users      *session.UserRegistry
	Games      *session.GameRegistry
	Matchmaker *matchmaking.Matchmaker

	// dispatch is built once in Init and read-only afterwards.
	dispatch map[uint16]handlerFunc

	mu         sync.Mutex
	authTimers map[*client.Client]*time.Timer
}

func (s *Server) Identifier() string {
	return s.Name
}

// Init builds the dispatch table. Every client request type must have a
// handler registered here; a missing entry is a startup error rather than a
// runtime surprise.
func (s *Server) Init(_ context.Context) error {
	s.authTimers = make(map[*client.Client]*time.Timer)
	s.dispatch = map[uint16]handlerFunc{
		protocol.AuthRequestType:             s.handleAuth,
		protocol.MatchRequestType:            s.handleMatchRequest,
		protocol.MatchCancelRequestType:      s.handleMatchCancel,
		protocol.PurchaseBuildingRequestType: s.handlePurchaseBuilding,
		protocol.SpawnUnitRequestType:        s.handleSpawnUnit,
		protocol.AttackUnitRequestType:       s.handleAttackUnit,
		protocol.LocationSyncRequestType:     s.handleLocationSync,
		protocol.EnterCheckpointRequestType:  s.handleEnterCheckpoint,
		protocol.ExitCheckpointRequestType:   s.handleExitCheckpoint,
		protocol.AttackBaseRequestType:       s.handleAttackBase,
		protocol.HealUnitRequestType:         s.handleHealUnit,
		protocol.BuffUnitRequestType:         s.handleBuffUnit,
		protocol.StunUnitRequestType:         s.handleStunUnit,
	}

	for packetType, handler := range s.dispatch {
		if handler == nil {
			return fmt.Errorf("nil handler registered for %s", protocol.PacketTypeName(packetType))
		}
	}
	return nil
}

// SetUpClient arms the authentication timeout: a connection that has not
// authenticated within the window is dropped.
func (s *Server) SetUpClient(c *client.Client) {
	timeout := s.Config.GameServer.AuthTimeout
	if timeout <= 0 {
		return
	}

	timer := time.AfterFunc(timeout, func() {
		if s.Users.FindByClient(c) == nil {
			s.Logger.Infof("[%s] dropping %s: no authentication within %v", s.Name, c.IPAddr(), timeout)
			_ = c.Close()
		}
	})

	s.mu.Lock()
	s.authTimers[c] = timer
	s.mu.Unlock()
}

// cancelAuthTimer stops and forgets the client's authentication timeout.
func (s *Server) cancelAuthTimer(c *client.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.authTimers[c]; ok {
		timer.Stop()
		delete(s.authTimers, c)
	}
}

// Handle checks the packet envelope and dispatches to the registered
// handler. Protocol violations terminate the connection; session and
// validation errors are reported to the requester and the connection lives
// on. The opponent never hears about a requester's errors.
func (s *Server) Handle(ctx context.Context, c *client.Client, pkt *protocol.Packet) error {
	if pkt.Version != protocol.ClientVersion {
		return s.reportError(c, protocol.NewProtocolError(protocol.CodeVersionMismatch,
			"unsupported protocol version %q", pkt.Version))
	}
	if !protocol.KnownPacketType(pkt.Type) {
		return s.reportError(c, protocol.NewProtocolError(protocol.CodeUnknownPacketType,
			"unknown packet type 0x%04x", pkt.Type))
	}

	handler, ok := s.dispatch[pkt.Type]
	if !ok {
		return s.reportError(c, protocol.NewProtocolError(protocol.CodeHandlerNotFound,
			"%s is not a client request", protocol.PacketTypeName(pkt.Type)))
	}

	// Everything except authentication itself requires an authenticated
	// session bound to this connection.
	if pkt.Type != protocol.AuthRequestType && s.Users.FindByClient(c) == nil {
		return s.reportError(c, protocol.NewProtocolError(protocol.CodeUserNotFound,
			"connection is not authenticated"))
	}

	if err := handler(ctx, c, pkt); err != nil {
		return s.reportError(c, err)
	}
	return nil
}

// reportError is the single error path for every handler: ServerErrors are
// reported back to the requester as an ErrorNotification, anything else is
// only logged. The returned error, if any, terminates the connection.
func (s *Server) reportError(c *client.Client, err error) error {
	var serverErr *protocol.ServerError
	if !errors.As(err, &serverErr) {
		s.Logger.Errorf("[%s] internal error for %s: %v", s.Name, c.IPAddr(), err)
		return nil
	}

	s.Logger.Warnf("[%s] rejected request from %s: %v", s.Name, c.IPAddr(), serverErr)

	notification := &protocol.ErrorNotification{Code: serverErr.Code, Message: serverErr.Message}
	if sendErr := c.Send(protocol.ErrorNotificationType, notification); sendErr != nil {
		s.Logger.Debugf("error notifying %s: %v", c.IPAddr(), sendErr)
	}

	if serverErr.Kind == protocol.KindProtocol {
		return serverErr
	}
	return nil
}

// OnDisconnect releases the session state tied to a dropped connection.
// A player who had a live match forfeits it.
func (s *Server) OnDisconnect(_ context.Context, c *client.Client) {
	s.cancelAuthTimer(c)

	user := s.Users.FindByClient(c)
	if user == nil {
		return
	}

	s.Matchmaker.Cancel(user)

	if gameID := user.GameID(); gameID != "" {
		if g := s.Games.Get(gameID); g != nil {
			s.Logger.Infof("[%s] %s disconnected from live game %s, forfeiting", s.Name, user.ID(), gameID)
			s.finishGame(g, user.ID())
		}
	}

	s.Users.Remove(user.ID())
}

// finishGame ends a match with loserID as the defeated side: both clients
// are notified, the result is persisted off the packet path, and the match
// is torn down.
func (s *Server) finishGame(g *game.Game, loserID string) {
	g.Lock()
	winner, err := g.Opponent(loserID)
	loser, loserErr := g.Player(loserID)
	g.Unlock()
	if err != nil {
		// Opponent already gone; just tear down.
		g.Stop()
		s.Games.Remove(g.ID())
		return
	}
	winnerID := winner.UserID()

	if loserErr == nil {
		if sendErr := loser.Client().Send(protocol.GameOverNotificationType,
			&protocol.GameOverNotification{Win: false}); sendErr != nil {
			s.Logger.Debugf("error sending game over to %s: %v", loserID, sendErr)
		}
	}
	if sendErr := winner.Client().Send(protocol.GameOverNotificationType,
		&protocol.GameOverNotification{Win: true}); sendErr != nil {
		s.Logger.Debugf("error sending game over to %s: %v", winnerID, sendErr)
	}

	result := &data.MatchResult{
		MatchID:   g.ID(),
		WinnerID:  winnerID,
		LoserID:   loserID,
		StartedAt: g.StartTime(),
		EndedAt:   time.Now(),
	}
	// Persistence must not hold up the packet path; a failed write costs a
	// stats entry, not the match.
	go func() {
		if err := data.RecordMatchResult(s.DB, result); err != nil {
			s.Logger.Errorf("error recording result for game %s: %v", g.ID(), err)
		}
	}()

	for _, id := range []string{winnerID, loserID} {
		if user := s.Users.Get(id); user != nil && user.GameID() == g.ID() {
			user.SetGameID("")
		}
	}

	g.Stop()
	s.Games.Remove(g.ID())
	s.Logger.Infof("[%s] game %s finished, winner %s", s.Name, g.ID(), winnerID)
}

// requireUser resolves the authenticated session for a connection.
func (s *Server) requireUser(c *client.Client) (*session.User, error) {
	user := s.Users.FindByClient(c)
	if user == nil {
		return nil, protocol.NewSessionError(protocol.CodeUserNotFound, "no session bound to this connection")
	}
	return user, nil
}

// requireGame resolves the user's live, started match.
func (s *Server) requireGame(user *session.User) (*game.Game, error) {
	gameID := user.GameID()
	if gameID == "" {
		return nil, protocol.NewSessionError(protocol.CodeGameNotFound, "user %s has no active game", user.ID())
	}
	g := s.Games.Get(gameID)
	if g == nil {
		return nil, protocol.NewSessionError(protocol.CodeGameNotFound, "game %s not found", gameID)
	}
	if !g.Started() || g.Over() {
		return nil, protocol.NewValidationError(protocol.CodeGameNotStarted, "game %s is not in progress", gameID)
	}
	return g, nil
}

// decode unmarshals a payload, mapping failures onto the protocol error the
// requester sees.
func (s *Server) decode(pkt *protocol.Packet, target interface{}) error {
	if err := protocol.Unmarshal(pkt.Payload, target); err != nil {
		return protocol.NewProtocolError(protocol.CodeDecodeFailure,
			"malformed %s payload: %v", protocol.PacketTypeName(pkt.Type), err)
	}
	if s.Config.Debugging.PacketLoggingEnabled {
		debug.PrintPayload(s.Logger, pkt.Type, target)
	}
	return nil
}
