package battle

import (
	"context"
	"time"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/assets"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/game"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// handleSpawnUnit validates cost and asset ownership, spawns the unit at
// the head of its lane path, and tells both clients. The server assigns the
// unit id; clients never pick their own.
func (s *Server) handleSpawnUnit(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.SpawnUnitRequest
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

	asset, ok := s.Assets.UnitByID(request.AssetID)
	if !ok {
		return protocol.NewValidationError(protocol.CodeInvalidAssetID,
			"unit asset %d does not exist", request.AssetID)
	}
	if asset.Species != user.Species() {
		return protocol.NewValidationError(protocol.CodeInvalidAssetID,
			"unit asset %d belongs to the %s faction", asset.ID, asset.Species)
	}
	path, ok := s.Assets.Path(asset.Species, request.ToTop)
	if !ok {
		return protocol.NewValidationError(protocol.CodeInvalidAssetID,
			"no path defined for %s", asset.Species)
	}

	g.Lock()
	defer g.Unlock()

	player, err := g.Player(user.ID())
	if err != nil {
		return err
	}
	if player.Mineral() < asset.Cost {
		return protocol.NewValidationError(protocol.CodeInsufficientMineral,
			"unit costs %d mineral, have %d", asset.Cost, player.Mineral())
	}

	player.SpendMineral(asset.Cost)
	unit := g.SpawnUnit(player, asset, path, request.ToTop, time.Now())

	response := &protocol.SpawnUnitResponse{AssetID: asset.ID, UnitID: unit.ID(), ToTop: request.ToTop}
	if err := c.Send(protocol.SpawnUnitResponseType, response); err != nil {
		return err
	}

	opponent, err := g.Opponent(user.ID())
	if err != nil {
		return err
	}
	return opponent.Client().Send(protocol.SpawnEnemyUnitNotificationType,
		&protocol.SpawnEnemyUnitNotification{AssetID: asset.ID, UnitID: unit.ID(), ToTop: request.ToTop})
}

// handleAttackUnit resolves one attack from the requester's unit against a
// set of opponent units: cooldown and target checks first, then damage,
// then death cleanup. Both clients receive the authoritative HP values.
func (s *Server) handleAttackUnit(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.AttackUnitRequest
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

	attacker := player.Unit(request.UnitID)
	if attacker == nil {
		return protocol.NewValidationError(protocol.CodeUnitNotFound,
			"unit %d is not yours or does not exist", request.UnitID)
	}

	now := time.Now()
	if !attacker.CanAttack(now) {
		return protocol.NewValidationError(protocol.CodeCooldownActive,
			"unit %d cannot attack yet", attacker.ID())
	}

	// All targets are validated before any damage lands so a bad id in the
	// list leaves no half-applied attack behind.
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

	attacker.MarkAttack(now)

	results := make([]protocol.UnitHP, 0, len(targets))
	var deadIDs []uint64
	for _, target := range targets {
		hp := target.ApplyDamage(attacker.Attack())
		results = append(results, protocol.UnitHP{UnitID: target.ID(), HP: hp})
		if target.IsDead() {
			deadIDs = append(deadIDs, target.ID())
		}
	}

	if err := c.Send(protocol.AttackUnitResponseType, &protocol.AttackUnitResponse{Targets: results}); err != nil {
		return err
	}
	if err := opponent.Client().Send(protocol.EnemyUnitAttackNotificationType,
		&protocol.EnemyUnitAttackNotification{UnitID: attacker.ID(), Targets: results}); err != nil {
		return err
	}

	if len(deadIDs) > 0 {
		s.removeDeadUnits(g, opponent, deadIDs)

		// The owner loses the units; the attacker is told they are gone.
		if err := opponent.Client().Send(protocol.UnitDeathNotificationType,
			&protocol.UnitDeathNotification{UnitIDs: deadIDs}); err != nil {
			return err
		}
		if err := c.Send(protocol.EnemyUnitDeathNotificationType,
			&protocol.EnemyUnitDeathNotification{UnitIDs: deadIDs}); err != nil {
			return err
		}
	}
	return nil
}

// removeDeadUnits deregisters dead units from their owner and pulls them out
// of any checkpoint they were occupying. Must run under the match lock.
func (s *Server) removeDeadUnits(g *game.Game, owner *game.PlayerState, unitIDs []uint64) {
	for _, unitID := range unitIDs {
		owner.RemoveUnit(unitID)
		g.Checkpoint(true).RemoveUnit(owner.UserID(), unitID)
		g.Checkpoint(false).RemoveUnit(owner.UserID(), unitID)
	}
}

// handleLocationSync reconciles a batch of client-reported unit positions.
// The requester only hears back about positions the server corrected; the
// opponent receives the full authoritative set.
func (s *Server) handleLocationSync(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.LocationSyncRequest
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

	now := time.Now()
	reconciler := g.Reconciler()

	all := make([]protocol.UnitPosition, 0, len(request.Positions))
	var corrected []protocol.UnitPosition
	for _, claimed := range request.Positions {
		unit := player.Unit(claimed.UnitID)
		if unit == nil {
			return protocol.NewValidationError(protocol.CodeUnitNotFound,
				"unit %d is not yours or does not exist", claimed.UnitID)
		}

		result, modified := reconciler.Reconcile(unit, assets.Point{X: claimed.X, Z: claimed.Z}, now)
		position := protocol.UnitPosition{UnitID: unit.ID(), X: result.X, Z: result.Z, Modified: modified}
		all = append(all, position)
		if modified {
			corrected = append(corrected, position)
		}
	}

	if len(corrected) > 0 {
		if err := c.Send(protocol.LocationSyncNotificationType,
			&protocol.LocationSyncNotification{Positions: corrected}); err != nil {
			return err
		}
	}

	opponent, err := g.Opponent(user.ID())
	if err != nil {
		return err
	}
	return opponent.Client().Send(protocol.LocationSyncNotificationType,
		&protocol.LocationSyncNotification{Positions: all})
}
