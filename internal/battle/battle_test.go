package battle

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/assets"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/auth"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/data"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/game"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/matchmaking"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/session"
)

const testSecret = "test-secret"

const (
	catUnitAssetID  uint32 = 2001
	dogUnitAssetID  uint32 = 3001
	buildingAssetID uint32 = 5001
)

func writeAssetFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"units.json": `{
			"units": [
				{"id": 2001, "species": "cat", "role": "normal", "maxHp": 100, "atk": 12, "def": 3, "spd": 2.5, "attackCooldownMs": 1200, "cost": 50},
				{"id": 3001, "species": "dog", "role": "normal", "maxHp": 110, "atk": 11, "def": 4, "spd": 2.4, "attackCooldownMs": 1200, "cost": 50}
			],
			"buildings": [
				{"id": 5001, "cost": 120, "mineralRateBonus": 2}
			]
		}`,
		"paths.json": `{
			"paths": {
				"cat": {
					"up": [{"x": -40, "z": 10}, {"x": 40, "z": 10}],
					"down": [{"x": -40, "z": -10}, {"x": 40, "z": -10}]
				},
				"dog": {
					"up": [{"x": 40, "z": 10}, {"x": -40, "z": 10}],
					"down": [{"x": 40, "z": -10}, {"x": -40, "z": -10}]
				}
			}
		}`,
		"map.json": `{
			"outer": [{"x": -50, "z": -40}, {"x": 50, "z": -40}, {"x": 50, "z": 40}, {"x": -50, "z": 40}],
			"centerLine": 0
		}`,
	}
	for name, contents := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

type packetSink struct {
	mu      sync.Mutex
	packets []*protocol.Packet
}

func (s *packetSink) waitFor(t *testing.T, packetType uint16) *protocol.Packet {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pkt := s.find(packetType); pkt != nil {
			return pkt
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s packet arrived", protocol.PacketTypeName(packetType))
	return nil
}

func (s *packetSink) find(packetType uint16) *protocol.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pkt := range s.packets {
		if pkt.Type == packetType {
			return pkt
		}
	}
	return nil
}

type env struct {
	server     *Server
	matchmaker *matchmaking.Matchmaker
	games      *session.GameRegistry
	db         *gorm.DB
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}
	if err := db.AutoMigrate(&data.Account{}, &data.MatchResult{}); err != nil {
		t.Fatalf("error auto migrating db: %s", err)
	}

	store, err := assets.Load(writeAssetFiles(t))
	if err != nil {
		t.Fatal(err)
	}

	cfg := &core.Config{}
	cfg.Game.SpellErrorMargin = 300 * time.Millisecond

	rules := game.DefaultRules()
	rules.MineralSyncInterval = time.Hour
	rules.LocationSyncInterval = time.Hour
	rules.CheckpointDwellTime = 30 * time.Millisecond

	users := session.NewUserRegistry()
	games := session.NewGameRegistry()
	authService := auth.NewService(testSecret, time.Minute)
	matchmaker := matchmaking.NewMatchmaker(logger, users, games, store.Bounds(), rules,
		500*time.Millisecond, 5*time.Minute)

	server := &Server{
		Name:       "BATTLE",
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Assets:     store,
		Auth:       authService,
		Users:      users,
		Games:      games,
		Matchmaker: matchmaker,
	}
	if err := server.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	return &env{server: server, matchmaker: matchmaker, games: games, db: db}
}

func (e *env) connect(t *testing.T) (*client.Client, *packetSink) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	c := client.NewClient(serverSide)
	e.server.SetUpClient(c)
	sink := &packetSink{}

	go c.SendLoop()
	go func() {
		framer := &protocol.Framer{}
		buf := make([]byte, 2048)
		for {
			n, err := clientSide.Read(buf)
			if err != nil {
				return
			}
			framer.Feed(buf[:n])
			for {
				pkt, err := framer.Next()
				if err != nil || pkt == nil {
					break
				}
				sink.mu.Lock()
				sink.packets = append(sink.packets, pkt)
				sink.mu.Unlock()
			}
		}
	}()

	t.Cleanup(func() {
		c.Close()
		clientSide.Close()
	})
	return c, sink
}

// send marshals the payload and pushes it through the dispatch path the way
// the frontend would.
func (e *env) send(t *testing.T, c *client.Client, packetType uint16, payload interface{}) error {
	t.Helper()
	raw, err := protocol.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	pkt := &protocol.Packet{Type: packetType, Version: protocol.ClientVersion, Sequence: 1, Payload: raw}
	return e.server.Handle(context.Background(), c, pkt)
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func (e *env) authenticate(t *testing.T, c *client.Client, sink *packetSink, userID string) {
	t.Helper()
	if err := e.send(t, c, protocol.AuthRequestType, &protocol.AuthRequest{Token: signToken(t, userID)}); err != nil {
		t.Fatalf("auth failed for %s: %v", userID, err)
	}
	sink.waitFor(t, protocol.AuthResponseType)
}

type match struct {
	game      *game.Game
	catClient *client.Client
	catSink   *packetSink
	dogClient *client.Client
	dogSink   *packetSink
}

// startMatch authenticates two players, queues them, and runs a matchmaking
// tick so both are in a started game. The cat is "alice", the dog "bob".
func (e *env) startMatch(t *testing.T) *match {
	t.Helper()

	catClient, catSink := e.connect(t)
	e.authenticate(t, catClient, catSink, "alice")
	dogClient, dogSink := e.connect(t)
	e.authenticate(t, dogClient, dogSink, "bob")

	if err := e.send(t, catClient, protocol.MatchRequestType, &protocol.MatchRequest{Species: protocol.SpeciesCat}); err != nil {
		t.Fatal(err)
	}
	if err := e.send(t, dogClient, protocol.MatchRequestType, &protocol.MatchRequest{Species: protocol.SpeciesDog}); err != nil {
		t.Fatal(err)
	}
	e.matchmaker.Tick()

	pkt := catSink.waitFor(t, protocol.MatchNotificationType)
	var notification protocol.MatchNotification
	if err := protocol.Unmarshal(pkt.Payload, &notification); err != nil {
		t.Fatal(err)
	}
	g := e.games.Get(notification.GameID)
	if g == nil {
		t.Fatal("match notification references an unknown game")
	}
	t.Cleanup(g.Stop)

	return &match{game: g, catClient: catClient, catSink: catSink, dogClient: dogClient, dogSink: dogSink}
}

// spawn pushes a SpawnUnitRequest through dispatch and returns the assigned
// unit id.
func (e *env) spawn(t *testing.T, c *client.Client, sink *packetSink, assetID uint32, toTop bool) uint64 {
	t.Helper()
	if err := e.send(t, c, protocol.SpawnUnitRequestType, &protocol.SpawnUnitRequest{AssetID: assetID, ToTop: toTop}); err != nil {
		t.Fatal(err)
	}
	pkt := sink.waitFor(t, protocol.SpawnUnitResponseType)
	var response protocol.SpawnUnitResponse
	if err := protocol.Unmarshal(pkt.Payload, &response); err != nil {
		t.Fatal(err)
	}
	return response.UnitID
}

func expectErrorCode(t *testing.T, sink *packetSink, code uint16) {
	t.Helper()
	pkt := sink.waitFor(t, protocol.ErrorNotificationType)
	var notification protocol.ErrorNotification
	if err := protocol.Unmarshal(pkt.Payload, &notification); err != nil {
		t.Fatal(err)
	}
	if notification.Code != code {
		t.Fatalf("error notification code 0x%04x, want 0x%04x", notification.Code, code)
	}
}

func TestHandleRejectsVersionMismatch(t *testing.T) {
	e := newTestEnv(t)
	c, sink := e.connect(t)

	raw, _ := protocol.Marshal(&protocol.AuthRequest{Token: "x"})
	pkt := &protocol.Packet{Type: protocol.AuthRequestType, Version: "9.9.9", Sequence: 1, Payload: raw}

	if err := e.server.Handle(context.Background(), c, pkt); err == nil {
		t.Error("version mismatch should terminate the connection")
	}
	expectErrorCode(t, sink, protocol.CodeVersionMismatch)
}

func TestHandleRejectsUnknownPacketType(t *testing.T) {
	e := newTestEnv(t)
	c, sink := e.connect(t)

	pkt := &protocol.Packet{Type: 0xEEEE, Version: protocol.ClientVersion, Sequence: 1}
	if err := e.server.Handle(context.Background(), c, pkt); err == nil {
		t.Error("unknown packet type should terminate the connection")
	}
	expectErrorCode(t, sink, protocol.CodeUnknownPacketType)
}

func TestHandleRejectsUnauthenticatedRequests(t *testing.T) {
	e := newTestEnv(t)
	c, sink := e.connect(t)

	err := e.send(t, c, protocol.MatchRequestType, &protocol.MatchRequest{Species: protocol.SpeciesCat})
	if err == nil {
		t.Error("unauthenticated request should terminate the connection")
	}
	expectErrorCode(t, sink, protocol.CodeUserNotFound)
}

func TestAuthCreatesAccountAndSession(t *testing.T) {
	e := newTestEnv(t)
	c, sink := e.connect(t)

	e.authenticate(t, c, sink, "alice")

	if e.server.Users.Get("alice") == nil {
		t.Error("no session registered after authentication")
	}
	account, err := data.FindAccountByUserID(e.db, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if account == nil {
		t.Error("no account row created on first login")
	}
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	e := newTestEnv(t)
	c, sink := e.connect(t)

	err := e.send(t, c, protocol.AuthRequestType, &protocol.AuthRequest{Token: "not-a-token"})
	if err == nil {
		t.Error("invalid token should terminate the connection")
	}
	expectErrorCode(t, sink, protocol.CodeUserNotFound)
}

func TestSpawnUnitScenario(t *testing.T) {
	e := newTestEnv(t)
	m := e.startMatch(t)

	unitID := e.spawn(t, m.catClient, m.catSink, catUnitAssetID, true)

	// The opponent sees the same unit id on the same lane.
	pkt := m.dogSink.waitFor(t, protocol.SpawnEnemyUnitNotificationType)
	var enemy protocol.SpawnEnemyUnitNotification
	if err := protocol.Unmarshal(pkt.Payload, &enemy); err != nil {
		t.Fatal(err)
	}
	if enemy.UnitID != unitID || enemy.AssetID != catUnitAssetID || !enemy.ToTop {
		t.Errorf("unexpected enemy spawn notification %+v", enemy)
	}

	m.game.Lock()
	player, err := m.game.Player("alice")
	if err != nil {
		m.game.Unlock()
		t.Fatal(err)
	}
	mineral := player.Mineral()
	unit := player.Unit(unitID)
	m.game.Unlock()

	if mineral != game.StartingMineral-50 {
		t.Errorf("mineral after spawn = %d, want %d", mineral, game.StartingMineral-50)
	}
	if unit == nil {
		t.Error("spawned unit not registered to its owner")
	}
}

func TestSpawnUnitRejectsEnemyFactionAsset(t *testing.T) {
	e := newTestEnv(t)
	m := e.startMatch(t)

	err := e.send(t, m.catClient, protocol.SpawnUnitRequestType,
		&protocol.SpawnUnitRequest{AssetID: dogUnitAssetID, ToTop: true})
	if err != nil {
		t.Fatalf("validation errors must not terminate the connection: %v", err)
	}
	expectErrorCode(t, m.catSink, protocol.CodeInvalidAssetID)
}

func TestAttackUnitKillsTarget(t *testing.T) {
	e := newTestEnv(t)
	m := e.startMatch(t)

	attackerID := e.spawn(t, m.catClient, m.catSink, catUnitAssetID, true)
	targetID := e.spawn(t, m.dogClient, m.dogSink, dogUnitAssetID, true)

	// Whittle the target down so the next hit is lethal. Cat attack 12 vs
	// dog defense 4 lands 8 damage per hit.
	m.game.Lock()
	bob, err := m.game.Player("bob")
	if err != nil {
		m.game.Unlock()
		t.Fatal(err)
	}
	bob.Unit(targetID).ApplyDamage(106)
	m.game.Unlock()

	if err := e.send(t, m.catClient, protocol.AttackUnitRequestType,
		&protocol.AttackUnitRequest{UnitID: attackerID, TargetIDs: []uint64{targetID}}); err != nil {
		t.Fatal(err)
	}

	pkt := m.catSink.waitFor(t, protocol.AttackUnitResponseType)
	var response protocol.AttackUnitResponse
	if err := protocol.Unmarshal(pkt.Payload, &response); err != nil {
		t.Fatal(err)
	}
	if len(response.Targets) != 1 || response.Targets[0].HP != 0 {
		t.Errorf("unexpected attack response %+v", response)
	}

	// The owner is told their unit died; the attacker gets the enemy-side
	// notification.
	pkt = m.dogSink.waitFor(t, protocol.UnitDeathNotificationType)
	var death protocol.UnitDeathNotification
	if err := protocol.Unmarshal(pkt.Payload, &death); err != nil {
		t.Fatal(err)
	}
	if len(death.UnitIDs) != 1 || death.UnitIDs[0] != targetID {
		t.Errorf("unexpected death notification %+v", death)
	}
	m.catSink.waitFor(t, protocol.EnemyUnitDeathNotificationType)

	m.game.Lock()
	gone := bob.Unit(targetID) == nil
	m.game.Unlock()
	if !gone {
		t.Error("dead unit still registered to its owner")
	}
}

func TestAttackUnitRejectsOwnTeamTarget(t *testing.T) {
	e := newTestEnv(t)
	m := e.startMatch(t)

	attackerID := e.spawn(t, m.catClient, m.catSink, catUnitAssetID, true)
	friendID := e.spawn(t, m.catClient, m.catSink, catUnitAssetID, false)

	err := e.send(t, m.catClient, protocol.AttackUnitRequestType,
		&protocol.AttackUnitRequest{UnitID: attackerID, TargetIDs: []uint64{friendID}})
	if err != nil {
		t.Fatalf("validation errors must not terminate the connection: %v", err)
	}
	expectErrorCode(t, m.catSink, protocol.CodeWrongTeamTarget)
}

func TestLocationSyncBroadcastRule(t *testing.T) {
	e := newTestEnv(t)
	m := e.startMatch(t)

	honestID := e.spawn(t, m.catClient, m.catSink, catUnitAssetID, true)
	cheaterID := e.spawn(t, m.catClient, m.catSink, catUnitAssetID, true)

	// The honest unit holds still at its spawn point; the other claims a
	// position far off the map.
	request := &protocol.LocationSyncRequest{
		Timestamp: time.Now().UnixMilli(),
		Positions: []protocol.UnitPosition{
			{UnitID: honestID, X: -40, Z: 10},
			{UnitID: cheaterID, X: 500, Z: 10},
		},
	}
	if err := e.send(t, m.catClient, protocol.LocationSyncRequestType, request); err != nil {
		t.Fatal(err)
	}

	// The requester only hears about corrected positions.
	pkt := m.catSink.waitFor(t, protocol.LocationSyncNotificationType)
	var own protocol.LocationSyncNotification
	if err := protocol.Unmarshal(pkt.Payload, &own); err != nil {
		t.Fatal(err)
	}
	if len(own.Positions) != 1 || own.Positions[0].UnitID != cheaterID || !own.Positions[0].Modified {
		t.Errorf("requester should only receive corrections, got %+v", own.Positions)
	}

	// The opponent receives the full authoritative set.
	pkt = m.dogSink.waitFor(t, protocol.LocationSyncNotificationType)
	var full protocol.LocationSyncNotification
	if err := protocol.Unmarshal(pkt.Payload, &full); err != nil {
		t.Fatal(err)
	}
	if len(full.Positions) != 2 {
		t.Fatalf("opponent should receive all positions, got %+v", full.Positions)
	}
}

func TestPurchaseBuilding(t *testing.T) {
	e := newTestEnv(t)
	m := e.startMatch(t)

	if err := e.send(t, m.catClient, protocol.PurchaseBuildingRequestType,
		&protocol.PurchaseBuildingRequest{AssetID: buildingAssetID}); err != nil {
		t.Fatal(err)
	}

	pkt := m.catSink.waitFor(t, protocol.PurchaseBuildingResponseType)
	var response protocol.PurchaseBuildingResponse
	if err := protocol.Unmarshal(pkt.Payload, &response); err != nil {
		t.Fatal(err)
	}
	if response.Mineral != game.StartingMineral-120 {
		t.Errorf("balance after purchase = %d, want %d", response.Mineral, game.StartingMineral-120)
	}

	m.dogSink.waitFor(t, protocol.EnemyBuildingNotificationType)

	// A second purchase exceeds the remaining balance.
	if err := e.send(t, m.catClient, protocol.PurchaseBuildingRequestType,
		&protocol.PurchaseBuildingRequest{AssetID: buildingAssetID}); err != nil {
		t.Fatal(err)
	}
	expectErrorCode(t, m.catSink, protocol.CodeInsufficientMineral)
}

func TestAttackBaseRequiresLaneCheckpoint(t *testing.T) {
	e := newTestEnv(t)
	m := e.startMatch(t)

	unitID := e.spawn(t, m.catClient, m.catSink, catUnitAssetID, true)

	err := e.send(t, m.catClient, protocol.AttackBaseRequestType, &protocol.AttackBaseRequest{UnitID: unitID})
	if err != nil {
		t.Fatalf("validation errors must not terminate the connection: %v", err)
	}
	expectErrorCode(t, m.catSink, protocol.CodeCheckpointNotHeld)

	// Occupy the top checkpoint, then the attack goes through.
	if err := e.send(t, m.catClient, protocol.EnterCheckpointRequestType,
		&protocol.EnterCheckpointRequest{IsTop: true, UnitID: unitID}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := e.send(t, m.catClient, protocol.AttackBaseRequestType, &protocol.AttackBaseRequest{UnitID: unitID}); err != nil {
		t.Fatal(err)
	}

	pkt := m.catSink.waitFor(t, protocol.AttackBaseResponseType)
	var response protocol.AttackBaseResponse
	if err := protocol.Unmarshal(pkt.Payload, &response); err != nil {
		t.Fatal(err)
	}
	if response.BaseHP != game.StartingBaseHP-12 {
		t.Errorf("base HP after attack = %d, want %d", response.BaseHP, game.StartingBaseHP-12)
	}
	m.dogSink.waitFor(t, protocol.BaseHPNotificationType)
}

func TestBaseDestructionEndsGame(t *testing.T) {
	e := newTestEnv(t)
	m := e.startMatch(t)

	unitID := e.spawn(t, m.catClient, m.catSink, catUnitAssetID, true)

	if err := e.send(t, m.catClient, protocol.EnterCheckpointRequestType,
		&protocol.EnterCheckpointRequest{IsTop: true, UnitID: unitID}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	// Leave exactly one hit's worth of base HP.
	m.game.Lock()
	bob, err := m.game.Player("bob")
	if err != nil {
		m.game.Unlock()
		t.Fatal(err)
	}
	bob.DamageBase(game.StartingBaseHP - 12)
	m.game.Unlock()

	if err := e.send(t, m.catClient, protocol.AttackBaseRequestType, &protocol.AttackBaseRequest{UnitID: unitID}); err != nil {
		t.Fatal(err)
	}

	pkt := m.catSink.waitFor(t, protocol.GameOverNotificationType)
	var over protocol.GameOverNotification
	if err := protocol.Unmarshal(pkt.Payload, &over); err != nil {
		t.Fatal(err)
	}
	if !over.Win {
		t.Error("attacker should be the winner")
	}

	pkt = m.dogSink.waitFor(t, protocol.GameOverNotificationType)
	if err := protocol.Unmarshal(pkt.Payload, &over); err != nil {
		t.Fatal(err)
	}
	if over.Win {
		t.Error("defender should be the loser")
	}

	if e.games.Get(m.game.ID()) != nil {
		t.Error("finished game still registered")
	}

	// The result write happens off the packet path.
	deadline := time.Now().Add(2 * time.Second)
	for {
		results, err := data.FindMatchResultsByUserID(e.db, "alice", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) == 1 {
			if results[0].WinnerID != "alice" || results[0].LoserID != "bob" {
				t.Errorf("unexpected match result %+v", results[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("match result never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealSpell(t *testing.T) {
	e := newTestEnv(t)
	m := e.startMatch(t)

	unitID := e.spawn(t, m.catClient, m.catSink, catUnitAssetID, true)

	m.game.Lock()
	alice, err := m.game.Player("alice")
	if err != nil {
		m.game.Unlock()
		t.Fatal(err)
	}
	alice.Unit(unitID).ApplyDamage(60)
	hpBefore := alice.Unit(unitID).HP()
	m.game.Unlock()

	if err := e.send(t, m.catClient, protocol.HealUnitRequestType, &protocol.HealUnitRequest{UnitID: unitID}); err != nil {
		t.Fatal(err)
	}

	pkt := m.catSink.waitFor(t, protocol.HealUnitResponseType)
	var response protocol.HealUnitResponse
	if err := protocol.Unmarshal(pkt.Payload, &response); err != nil {
		t.Fatal(err)
	}
	if response.HP <= hpBefore {
		t.Errorf("heal did not raise HP: %d -> %d", hpBefore, response.HP)
	}
	m.dogSink.waitFor(t, protocol.EnemyHealNotificationType)

	// An immediate re-cast trips the cooldown.
	if err := e.send(t, m.catClient, protocol.HealUnitRequestType, &protocol.HealUnitRequest{UnitID: unitID}); err != nil {
		t.Fatal(err)
	}
	expectErrorCode(t, m.catSink, protocol.CodeCooldownActive)
}

func TestStunSpellBlocksEnemyAttacks(t *testing.T) {
	e := newTestEnv(t)
	m := e.startMatch(t)

	targetID := e.spawn(t, m.dogClient, m.dogSink, dogUnitAssetID, true)

	if err := e.send(t, m.catClient, protocol.StunUnitRequestType,
		&protocol.StunUnitRequest{TargetIDs: []uint64{targetID}}); err != nil {
		t.Fatal(err)
	}
	m.catSink.waitFor(t, protocol.StunUnitResponseType)
	m.dogSink.waitFor(t, protocol.EnemyStunNotificationType)

	m.game.Lock()
	bob, err := m.game.Player("bob")
	if err != nil {
		m.game.Unlock()
		t.Fatal(err)
	}
	stunned := bob.Unit(targetID).IsStunned(time.Now())
	m.game.Unlock()
	if !stunned {
		t.Error("target unit not stunned")
	}
}

func TestRequesterErrorsAreNotSentToOpponent(t *testing.T) {
	e := newTestEnv(t)
	m := e.startMatch(t)

	// Trigger a validation error for the cat player.
	if err := e.send(t, m.catClient, protocol.SpawnUnitRequestType,
		&protocol.SpawnUnitRequest{AssetID: 9999, ToTop: true}); err != nil {
		t.Fatal(err)
	}
	expectErrorCode(t, m.catSink, protocol.CodeInvalidAssetID)

	time.Sleep(50 * time.Millisecond)
	if m.dogSink.find(protocol.ErrorNotificationType) != nil {
		t.Error("opponent received the requester's error notification")
	}
}

func TestDisconnectForfeitsLiveGame(t *testing.T) {
	e := newTestEnv(t)
	m := e.startMatch(t)

	e.server.OnDisconnect(context.Background(), m.catClient)

	pkt := m.dogSink.waitFor(t, protocol.GameOverNotificationType)
	var over protocol.GameOverNotification
	if err := protocol.Unmarshal(pkt.Payload, &over); err != nil {
		t.Fatal(err)
	}
	if !over.Win {
		t.Error("surviving player should win the forfeit")
	}
	if e.games.Get(m.game.ID()) != nil {
		t.Error("forfeited game still registered")
	}
	if e.server.Users.Get("alice") != nil {
		t.Error("disconnected user still registered")
	}
}
