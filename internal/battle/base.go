package battle

import (
	"context"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/game"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/session"
)

// handleAttackBase lets a unit strike the enemy base, which requires that
// the attacking player currently occupies the checkpoint on the unit's lane.
// Reducing the base to zero ends the match.
func (s *Server) handleAttackBase(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.AttackBaseRequest
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

	destroyed, loserID, err := s.applyBaseAttack(g, user, c, request.UnitID)
	if err != nil {
		return err
	}

	// Teardown happens outside the match lock: finishGame persists the
	// result and stops the match's timers.
	if destroyed {
		s.finishGame(g, loserID)
	}
	return nil
}

// applyBaseAttack performs the locked portion of a base attack and reports
// whether the base was destroyed.
func (s *Server) applyBaseAttack(g *game.Game, user *session.User, c *client.Client, unitID uint64) (bool, string, error) {
	g.Lock()
	defer g.Unlock()

	player, err := g.Player(user.ID())
	if err != nil {
		return false, "", err
	}
	opponent, err := g.Opponent(user.ID())
	if err != nil {
		return false, "", err
	}

	attacker := player.Unit(unitID)
	if attacker == nil {
		return false, "", protocol.NewValidationError(protocol.CodeUnitNotFound,
			"unit %d is not yours or does not exist", unitID)
	}

	// Base attacks are gated on lane control: the attacking player must
	// hold the checkpoint on the unit's lane.
	if !g.Checkpoint(attacker.ToTop()).OccupiedBy(user.ID()) {
		return false, "", protocol.NewValidationError(protocol.CodeCheckpointNotHeld,
			"your team does not occupy the checkpoint on this lane")
	}

	baseHP := opponent.DamageBase(attacker.Attack())

	if err := c.Send(protocol.AttackBaseResponseType, &protocol.AttackBaseResponse{BaseHP: baseHP}); err != nil {
		return false, "", err
	}
	if err := opponent.Client().Send(protocol.BaseHPNotificationType,
		&protocol.BaseHPNotification{BaseHP: baseHP}); err != nil {
		return false, "", err
	}

	return baseHP == 0, opponent.UserID(), nil
}
