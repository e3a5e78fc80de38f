// Packet type catalog and payload schemas shared by the server and clients.
//
// Every client request type has a mirrored response type sent back to the
// requester. In-match actions additionally have an "enemy" notification type
// fanned out to the opponent so both clients converge on the same state.
package protocol

// ClientVersion is the protocol version the server accepts. Packets carrying
// any other version string are rejected before their payload is decoded.
const ClientVersion = "1.0.0"

const (
	AuthRequestType  uint16 = 0x0001
	AuthResponseType uint16 = 0x0002

	MatchRequestType             uint16 = 0x0101
	MatchCancelRequestType       uint16 = 0x0102
	MatchCancelResponseType      uint16 = 0x0103
	MatchNotificationType        uint16 = 0x0104
	MatchTimeoutNotificationType uint16 = 0x0105

	GameStartNotificationType uint16 = 0x0201
	GameOverNotificationType  uint16 = 0x0202

	PurchaseBuildingRequestType       uint16 = 0x0301
	PurchaseBuildingResponseType      uint16 = 0x0302
	EnemyBuildingNotificationType     uint16 = 0x0303
	MineralSyncNotificationType       uint16 = 0x0304

	SpawnUnitRequestType           uint16 = 0x0401
	SpawnUnitResponseType          uint16 = 0x0402
	SpawnEnemyUnitNotificationType uint16 = 0x0403

	AttackUnitRequestType           uint16 = 0x0404
	AttackUnitResponseType          uint16 = 0x0405
	EnemyUnitAttackNotificationType uint16 = 0x0406
	UnitDeathNotificationType       uint16 = 0x0407
	EnemyUnitDeathNotificationType  uint16 = 0x0408

	LocationSyncRequestType      uint16 = 0x0409
	LocationSyncNotificationType uint16 = 0x040A

	EnterCheckpointRequestType       uint16 = 0x0501
	ExitCheckpointRequestType        uint16 = 0x0502
	CheckpointStatusNotificationType uint16 = 0x0503

	AttackBaseRequestType     uint16 = 0x0601
	AttackBaseResponseType    uint16 = 0x0602
	BaseHPNotificationType    uint16 = 0x0603

	HealUnitRequestType          uint16 = 0x0701
	HealUnitResponseType         uint16 = 0x0702
	EnemyHealNotificationType    uint16 = 0x0703
	BuffUnitRequestType          uint16 = 0x0704
	BuffUnitResponseType         uint16 = 0x0705
	EnemyBuffNotificationType    uint16 = 0x0706
	StunUnitRequestType          uint16 = 0x0707
	StunUnitResponseType         uint16 = 0x0708
	EnemyStunNotificationType    uint16 = 0x0709

	ErrorNotificationType uint16 = 0x0F01
)

var packetTypeNames = map[uint16]string{
	AuthRequestType:                  "AuthRequest",
	AuthResponseType:                 "AuthResponse",
	MatchRequestType:                 "MatchRequest",
	MatchCancelRequestType:           "MatchCancelRequest",
	MatchCancelResponseType:          "MatchCancelResponse",
	MatchNotificationType:            "MatchNotification",
	MatchTimeoutNotificationType:     "MatchTimeoutNotification",
	GameStartNotificationType:        "GameStartNotification",
	GameOverNotificationType:         "GameOverNotification",
	PurchaseBuildingRequestType:      "PurchaseBuildingRequest",
	PurchaseBuildingResponseType:     "PurchaseBuildingResponse",
	EnemyBuildingNotificationType:    "EnemyBuildingNotification",
	MineralSyncNotificationType:      "MineralSyncNotification",
	SpawnUnitRequestType:             "SpawnUnitRequest",
	SpawnUnitResponseType:            "SpawnUnitResponse",
	SpawnEnemyUnitNotificationType:   "SpawnEnemyUnitNotification",
	AttackUnitRequestType:            "AttackUnitRequest",
	AttackUnitResponseType:           "AttackUnitResponse",
	EnemyUnitAttackNotificationType:  "EnemyUnitAttackNotification",
	UnitDeathNotificationType:        "UnitDeathNotification",
	EnemyUnitDeathNotificationType:   "EnemyUnitDeathNotification",
	LocationSyncRequestType:          "LocationSyncRequest",
	LocationSyncNotificationType:     "LocationSyncNotification",
	EnterCheckpointRequestType:       "EnterCheckpointRequest",
	ExitCheckpointRequestType:        "ExitCheckpointRequest",
	CheckpointStatusNotificationType: "CheckpointStatusNotification",
	AttackBaseRequestType:            "AttackBaseRequest",
	AttackBaseResponseType:           "AttackBaseResponse",
	BaseHPNotificationType:           "BaseHPNotification",
	HealUnitRequestType:              "HealUnitRequest",
	HealUnitResponseType:             "HealUnitResponse",
	EnemyHealNotificationType:        "EnemyHealNotification",
	BuffUnitRequestType:              "BuffUnitRequest",
	BuffUnitResponseType:             "BuffUnitResponse",
	EnemyStunNotificationType:        "EnemyStunNotification",
	StunUnitRequestType:              "StunUnitRequest",
	StunUnitResponseType:             "StunUnitResponse",
	EnemyBuffNotificationType:        "EnemyBuffNotification",
	ErrorNotificationType:            "ErrorNotification",
}

// PacketTypeName returns a human-readable name for a packet type, primarily
// for logging. Unknown types are reported in hex.
func PacketTypeName(packetType uint16) string {
	if name, ok := packetTypeNames[packetType]; ok {
		return name
	}
	return "Unknown"
}

// KnownPacketType reports whether packetType is part of the protocol.
func KnownPacketType(packetType uint16) bool {
	_, ok := packetTypeNames[packetType]
	return ok
}

// Species values carried in matchmaking packets.
const (
	SpeciesCat uint8 = 0
	SpeciesDog uint8 = 1
)

type AuthRequest struct {
	Token string
}

type AuthResponse struct {
	UserID string
}

type MatchRequest struct {
	Species uint8
}

type MatchCancelRequest struct{}

type MatchCancelResponse struct {
	Cancelled bool
}

// MatchNotification tells an entrant a match was made and who they play.
type MatchNotification struct {
	GameID          string
	OpponentID      string
	OpponentSpecies uint8
}

type MatchTimeoutNotification struct{}

type GameStartNotification struct {
	GameID    string
	StartTime int64
}

type GameOverNotification struct {
	Win bool
}

type PurchaseBuildingRequest struct {
	AssetID uint32
}

type PurchaseBuildingResponse struct {
	AssetID uint32
	Mineral int32
}

type EnemyBuildingNotification struct {
	AssetID uint32
}

type MineralSyncNotification struct {
	Mineral int32
}

type SpawnUnitRequest struct {
	AssetID uint32
	ToTop   bool
}

type SpawnUnitResponse struct {
	AssetID uint32
	UnitID  uint64
	ToTop   bool
}

// SpawnEnemyUnitNotification mirrors SpawnUnitResponse for the opponent.
type SpawnEnemyUnitNotification struct {
	AssetID uint32
	UnitID  uint64
	ToTop   bool
}

type AttackUnitRequest struct {
	UnitID    uint64
	TargetIDs []uint64
}

// UnitHP carries a single unit's authoritative hit points after a mutation.
type UnitHP struct {
	UnitID uint64
	HP     int32
}

type AttackUnitResponse struct {
	Targets []UnitHP
}

type EnemyUnitAttackNotification struct {
	UnitID  uint64
	Targets []UnitHP
}

type UnitDeathNotification struct {
	UnitIDs []uint64
}

type EnemyUnitDeathNotification struct {
	UnitIDs []uint64
}

// UnitPosition is one unit's claimed or corrected location on the map plane.
type UnitPosition struct {
	UnitID   uint64
	X        float64
	Z        float64
	Modified bool
}

type LocationSyncRequest struct {
	Timestamp int64
	Positions []UnitPosition
}

type LocationSyncNotification struct {
	Positions []UnitPosition
}

type EnterCheckpointRequest struct {
	IsTop  bool
	UnitID uint64
}

type ExitCheckpointRequest struct {
	IsTop  bool
	UnitID uint64
}

// CheckpointStatusNotification is sent to both players whenever a
// checkpoint's occupation state changes. Status values are defined by the
// game package's state machine; OccupierID names the attempting or occupying
// player and is empty while the checkpoint is waiting.
type CheckpointStatusNotification struct {
	IsTop      bool
	Status     uint8
	OccupierID string
}

type AttackBaseRequest struct {
	UnitID uint64
}

type AttackBaseResponse struct {
	BaseHP int32
}

// BaseHPNotification reports a base's remaining HP to the player who owns it.
type BaseHPNotification struct {
	BaseHP int32
}

type HealUnitRequest struct {
	UnitID uint64
}

type HealUnitResponse struct {
	UnitID uint64
	HP     int32
}

type EnemyHealNotification struct {
	UnitID uint64
	HP     int32
}

type BuffUnitRequest struct {
	UnitIDs []uint64
}

type BuffUnitResponse struct {
	UnitIDs  []uint64
	Duration int32
}

type EnemyBuffNotification struct {
	UnitIDs  []uint64
	Duration int32
}

type StunUnitRequest struct {
	TargetIDs []uint64
}

type StunUnitResponse struct {
	TargetIDs []uint64
	Duration  int32
}

type EnemyStunNotification struct {
	TargetIDs []uint64
	Duration  int32
}

type ErrorNotification struct {
	Code    uint16
	Message string
}
