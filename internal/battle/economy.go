package battle

import (
	"context"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// handlePurchaseBuilding spends mineral on a building, which permanently
// raises the player's accrual rate. The opponent hears about the purchase
// but not the buyer's balance.
func (s *Server) handlePurchaseBuilding(_ context.Context, c *client.Client, pkt *protocol.Packet) error {
	var request protocol.PurchaseBuildingRequest
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

	asset, ok := s.Assets.BuildingByID(request.AssetID)
	if !ok {
		return protocol.NewValidationError(protocol.CodeInvalidAssetID,
			"building asset %d does not exist", request.AssetID)
	}

	g.Lock()
	defer g.Unlock()

	player, err := g.Player(user.ID())
	if err != nil {
		return err
	}
	if player.Mineral() < asset.Cost {
		return protocol.NewValidationError(protocol.CodeInsufficientMineral,
			"building costs %d mineral, have %d", asset.Cost, player.Mineral())
	}

	balance := player.SpendMineral(asset.Cost)
	player.AddBuilding(asset.ID, asset.MineralRateBonus)

	response := &protocol.PurchaseBuildingResponse{AssetID: asset.ID, Mineral: balance}
	if err := c.Send(protocol.PurchaseBuildingResponseType, response); err != nil {
		return err
	}

	opponent, err := g.Opponent(user.ID())
	if err != nil {
		return err
	}
	return opponent.Client().Send(protocol.EnemyBuildingNotificationType,
		&protocol.EnemyBuildingNotification{AssetID: asset.ID})
}
