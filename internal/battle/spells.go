package battle

import (
	"context"
	"time"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/game"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/session"
)

// spellContext bundles the state every spell handler needs after the shared
// validation: the match, the caster, their opponent, and the spell record.
type spellContext struct {
	game     *game.Game
	player   *game.PlayerState
	opponent *game.PlayerState
	spell    *game.Spell
	now      time.Time
}

// beginSpell performs the checks shared by all spells: session, match,
// mineral cost, and cooldown (with the configured jitter margin). Callers
// must already hold the match lock.
func (s *Server) beginSpell(g *game.Game, user *session.User, kind game.SpellKind) (*spellContext, error) {
	player, err := g.Player(user.ID())
	if err != nil {
		return nil, err
	}
	opponent, err := g.Opponent(user.ID())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := player.SpellAvailable(kind, now, s.Config.Game.SpellErrorMargin); err != nil {
		return nil, err
	}
	spell, err := player.MarkSpellCast(kind, now)
	if err != nil {
		return nil, err
	}

	return &spellContext{game: g, player: player, opponent: opponent, spell: spell, now: now}, nil
}

// handleHealUnit casts the heal spell on one of the caster's own units.
func (s *Server) handleHealUnit(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.HealUnitRequest
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

	// Target validation happens before the cost is committed.
	player, err := g.Player(user.ID())
	if err != nil {
		return err
	}
	target := player.Unit(request.UnitID)
	if target == nil {
		return protocol.NewValidationError(protocol.CodeUnitNotFound,
			"unit %d is not yours or does not exist", request.UnitID)
	}

	sc, err := s.beginSpell(g, user, game.SpellHeal)
	if err != nil {
		return err
	}

	hp := target.Heal(sc.spell.Magnitude)

	if err := c.Send(protocol.HealUnitResponseType,
		&protocol.HealUnitResponse{UnitID: target.ID(), HP: hp}); err != nil {
		return err
	}
	return sc.opponent.Client().Send(protocol.EnemyHealNotificationType,
		&protocol.EnemyHealNotification{UnitID: target.ID(), HP: hp})
}

// handleBuffUnit casts the attack-speed buff on a set of the caster's own
// units for the spell's duration.
func (s *Server) handleBuffUnit(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.BuffUnitRequest
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
	units := make([]*game.Unit, 0, len(request.UnitIDs))
	for _, unitID := range request.UnitIDs {
		unit := player.Unit(unitID)
		if unit == nil {
			return protocol.NewValidationError(protocol.CodeUnitNotFound,
				"unit %d is not yours or does not exist", unitID)
		}
		units = append(units, unit)
	}

	sc, err := s.beginSpell(g, user, game.SpellBuff)
	if err != nil {
		return err
	}

	for _, unit := range units {
		unit.ApplyBuff(sc.spell.Duration, sc.now)
	}

	durationMillis := int32(sc.spell.Duration.Milliseconds())
	if err := c.Send(protocol.BuffUnitResponseType,
		&protocol.BuffUnitResponse{UnitIDs: request.UnitIDs, Duration: durationMillis}); err != nil {
		return err
	}
	return sc.opponent.Client().Send(protocol.EnemyBuffNotificationType,
		&protocol.EnemyBuffNotification{UnitIDs: request.UnitIDs, Duration: durationMillis})
}

// handleStunUnit casts the stun spell on a set of opponent units, blocking
// their attacks for the spell's duration.
func (s *Server) handleStunUnit(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.StunUnitRequest
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
	opponent, err := g.Opponent(user.ID())
	if err != nil {
		return err
	}

	targets := make([]*game.Unit, 0, len(request.TargetIDs))
	for _, targetID := range request.TargetIDs {
		if player.Unit(targetID) != nil {
			return protocol.NewValidationError(protocol.CodeWrongTeamTarget,
				"unit %d is on your own team", targetID)
		}
		target := opponent.Unit(targetID)
		if target == nil {
			return protocol.NewValidationError(protocol.CodeUnitNotFound,
				"target unit %d does not exist", targetID)
		}
		targets = append(targets, target)
	}

	sc, err := s.beginSpell(g, user, game.SpellStun)
	if err != nil {
		return err
	}

	for _, target := range targets {
		target.Stun(sc.spell.Duration, sc.now)
	}

	durationMillis := int32(sc.spell.Duration.Milliseconds())
	if err := c.Send(protocol.StunUnitResponseType,
		&protocol.StunUnitResponse{TargetIDs: request.TargetIDs, Duration: durationMillis}); err != nil {
		return err
	}
	return sc.opponent.Client().Send(protocol.EnemyStunNotificationType,
		&protocol.EnemyStunNotification{TargetIDs: request.TargetIDs, Duration: durationMillis})
}
