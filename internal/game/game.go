// The game package holds the authoritative per-match state: two player
// states, the lane checkpoints, the resource economy, and the unit registry.
// All mutation goes through operations invoked by packet handlers holding
// the match lock.
package game

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/assets"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// MaxPlayers is the fixed match capacity.
const MaxPlayers = 2

// Rules are the tunable per-match parameters, sourced from config.
type Rules struct {
	MineralSyncInterval  time.Duration
	LocationSyncInterval time.Duration
	CheckpointDwellTime  time.Duration
	SpeedErrorMargin     float64
	SpellErrorMargin     time.Duration
}

func DefaultRules() Rules {
	return Rules{
		MineralSyncInterval:  3 * time.Second,
		LocationSyncInterval: time.Second,
		CheckpointDwellTime:  10 * time.Second,
		SpeedErrorMargin:     DefaultSpeedErrorMargin,
		SpellErrorMargin:     300 * time.Millisecond,
	}
}

// Game is one live match between exactly two players.
type Game struct {
	id     string
	logger *logrus.Logger
	rules  Rules

	reconciler *Reconciler

	mu        sync.Mutex
	players   map[string]*PlayerState
	started   bool
	startTime time.Time
	over      bool

	top    *Checkpoint
	bottom *Checkpoint

	unitCounter uint64

	scheduler gocron.Scheduler
}

// NewGame constructs a match with a fresh identifier. Checkpoint state
// changes fan out to both players as CheckpointStatusNotification packets.
func NewGame(logger *logrus.Logger, bounds assets.MapBounds, rules Rules) *Game {
	g := &Game{
		id:         uuid.NewString(),
		logger:     logger,
		rules:      rules,
		reconciler: NewReconciler(bounds, rules.SpeedErrorMargin),
		players:    make(map[string]*PlayerState, MaxPlayers),
	}
	g.top = NewCheckpoint(true, rules.CheckpointDwellTime, g.onCheckpointChange)
	g.bottom = NewCheckpoint(false, rules.CheckpointDwellTime, g.onCheckpointChange)
	return g
}

func (g *Game) ID() string              { return g.id }
func (g *Game) Rules() Rules            { return g.rules }
func (g *Game) Reconciler() *Reconciler { return g.reconciler }

// Lock serializes handler mutation for this match. Handlers take the match
// lock for the duration of a packet, which keeps the two participants'
// actions from interleaving mid-operation.
func (g *Game) Lock()   { g.mu.Lock() }
func (g *Game) Unlock() { g.mu.Unlock() }

// Checkpoint returns the lane checkpoint instance.
func (g *Game) Checkpoint(isTop bool) *Checkpoint {
	if isTop {
		return g.top
	}
	return g.bottom
}

// AddPlayer registers a participant. Fails once the match is at capacity;
// reaching capacity starts the match.
func (g *Game) AddPlayer(userID, species string, c *client.Client) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.players) >= MaxPlayers || g.started {
		return protocol.NewSessionError(protocol.CodeGameNotFound, "game %s is already full", g.id)
	}

	g.players[userID] = NewPlayerState(userID, species, c)

	if len(g.players) == MaxPlayers {
		g.startLocked()
	}
	return nil
}

// Player returns the participant's state, or a typed session error: a miss
// here means a desynchronized client or a race with disconnect. Callers must
// hold the match lock.
func (g *Game) Player(userID string) (*PlayerState, error) {
	player, ok := g.players[userID]
	if !ok {
		return nil, protocol.NewSessionError(protocol.CodePlayerNotFound,
			"player %s is not part of game %s", userID, g.id)
	}
	return player, nil
}

// Opponent returns the other participant's state. Callers must hold the
// match lock.
func (g *Game) Opponent(userID string) (*PlayerState, error) {
	for id, player := range g.players {
		if id != userID {
			return player, nil
		}
	}
	return nil, protocol.NewSessionError(protocol.CodeOpponentNotFound,
		"no opponent present in game %s", g.id)
}

// RemovePlayer drops a participant, reporting whether they were present.
func (g *Game) RemovePlayer(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.players[userID]; !ok {
		return false
	}
	delete(g.players, userID)
	return true
}

// PlayerCount returns the number of registered participants.
func (g *Game) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

func (g *Game) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}

func (g *Game) StartTime() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startTime
}

// startLocked flips the match to started, kicks off the scheduled jobs, and
// tells both clients the game is on.
func (g *Game) startLocked() {
	g.started = true
	g.startTime = time.Now()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		g.logger.Errorf("[%s] error creating match scheduler: %v", g.id, err)
		return
	}
	g.scheduler = scheduler

	if _, err := scheduler.NewJob(
		gocron.DurationJob(g.rules.MineralSyncInterval),
		gocron.NewTask(g.accrueMinerals),
	); err != nil {
		g.logger.Errorf("[%s] error scheduling mineral accrual: %v", g.id, err)
	}
	if g.rules.LocationSyncInterval > 0 {
		if _, err := scheduler.NewJob(
			gocron.DurationJob(g.rules.LocationSyncInterval),
			gocron.NewTask(g.syncLocations),
		); err != nil {
			g.logger.Errorf("[%s] error scheduling location sync: %v", g.id, err)
		}
	}
	scheduler.Start()

	notification := &protocol.GameStartNotification{
		GameID:    g.id,
		StartTime: g.startTime.UnixMilli(),
	}
	for _, player := range g.players {
		if err := player.Client().Send(protocol.GameStartNotificationType, notification); err != nil {
			g.logger.Warnf("[%s] error sending game start to %s: %v", g.id, player.UserID(), err)
		}
	}
}

// accrueMinerals runs on the match scheduler: each player earns their
// accrual rate and receives the authoritative balance.
func (g *Game) accrueMinerals() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.over {
		return
	}

	for _, player := range g.players {
		balance := player.AddMineral(player.MineralRate())
		sync := &protocol.MineralSyncNotification{Mineral: balance}
		if err := player.Client().Send(protocol.MineralSyncNotificationType, sync); err != nil {
			g.logger.Debugf("[%s] error syncing minerals to %s: %v", g.id, player.UserID(), err)
		}
	}
}

// syncLocations runs on the match scheduler: each player receives the
// server-advanced positions of every opposing unit. Units whose owner has
// gone quiet keep moving along their paths between client reports.
func (g *Game) syncLocations() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.over {
		return
	}

	now := time.Now()
	for userID, player := range g.players {
		var positions []protocol.UnitPosition
		for id, opponent := range g.players {
			if id == userID {
				continue
			}
			for _, unit := range opponent.Units() {
				p := g.reconciler.Advance(unit, now)
				positions = append(positions, protocol.UnitPosition{UnitID: unit.ID(), X: p.X, Z: p.Z})
			}
		}
		if len(positions) == 0 {
			continue
		}
		sync := &protocol.LocationSyncNotification{Positions: positions}
		if err := player.Client().Send(protocol.LocationSyncNotificationType, sync); err != nil {
			g.logger.Debugf("[%s] error syncing locations to %s: %v", g.id, player.UserID(), err)
		}
	}
}

// NextUnitID allocates a match-unique unit identifier. A per-match monotonic
// counter cannot collide, unlike time-plus-random schemes.
func (g *Game) NextUnitID() uint64 {
	g.unitCounter++
	return g.unitCounter
}

// SpawnUnit constructs and registers a unit for the player. Callers must
// hold the match lock and must have validated cost and asset beforehand.
func (g *Game) SpawnUnit(player *PlayerState, asset assets.UnitAsset, path []assets.Point, toTop bool, now time.Time) *Unit {
	unit := NewUnit(g.NextUnitID(), asset, path, toTop, now)
	player.AddUnit(unit)
	return unit
}

// Broadcast sends a packet to every participant.
func (g *Game) Broadcast(packetType uint16, payload interface{}) {
	g.mu.Lock()
	clients := make([]*client.Client, 0, len(g.players))
	for _, player := range g.players {
		clients = append(clients, player.Client())
	}
	g.mu.Unlock()

	for _, c := range clients {
		if err := c.Send(packetType, payload); err != nil {
			g.logger.Debugf("[%s] broadcast error: %v", g.id, err)
		}
	}
}

// onCheckpointChange fans a checkpoint transition out to both players and
// records captures. Runs off the handler path: handlers invoke checkpoint
// mutations while holding the match lock, so the bookkeeping reacquires it
// from a fresh goroutine.
func (g *Game) onCheckpointChange(isTop bool, status CheckpointStatus, holder string) {
	go func() {
		if status == CheckpointOccupied {
			g.mu.Lock()
			if player, ok := g.players[holder]; ok {
				lane := "bottom"
				if isTop {
					lane = "top"
				}
				player.AddCapturedCheckpoint(lane)
			}
			g.mu.Unlock()
		}

		g.Broadcast(protocol.CheckpointStatusNotificationType, &protocol.CheckpointStatusNotification{
			IsTop:      isTop,
			Status:     uint8(status),
			OccupierID: holder,
		})
	}()
}

// Stop tears the match down: all scheduled jobs and checkpoint timers are
// cancelled in one step so no callback fires after teardown.
func (g *Game) Stop() {
	g.mu.Lock()
	g.over = true
	scheduler := g.scheduler
	g.scheduler = nil
	g.mu.Unlock()

	g.top.Stop()
	g.bottom.Stop()

	if scheduler != nil {
		if err := scheduler.Shutdown(); err != nil {
			g.logger.Warnf("[%s] error shutting down match scheduler: %v", g.id, err)
		}
	}
}

// Over reports whether the match has been stopped.
func (g *Game) Over() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.over
}
