package game

import (
	"time"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/assets"
)

// How close a unit must get to its next waypoint before it is considered
// reached and the path index advances.
const waypointRadius = 1.0

// Unit is one spawned combat unit. Units are only ever mutated by handlers
// holding their match's lock, so the struct carries no locking of its own.
type Unit struct {
	id      uint64
	assetID uint32
	species string
	role    string

	maxHP   int32
	hp      int32
	attack  int32
	defense int32
	speed   float64

	// Attack cooldown as rated by the asset and as currently in effect
	// (buffs shorten the effective value for a window).
	baseAttackCooldown time.Duration
	attackCooldown     time.Duration

	lastAttackTime time.Time
	buffedUntil    time.Time
	stunnedUntil   time.Time

	toTop        bool
	path         []assets.Point
	position     assets.Point
	nextWaypoint int
	lastMoveTime time.Time
	spawnedAt    time.Time
}

// NewUnit constructs a Unit from static asset data plus placement
// parameters. The id must come from the owning game's unit id allocator.
func NewUnit(id uint64, asset assets.UnitAsset, path []assets.Point, toTop bool, now time.Time) *Unit {
	cooldown := time.Duration(asset.AttackCooldown) * time.Millisecond
	return &Unit{
		id:                 id,
		assetID:            asset.ID,
		species:            asset.Species,
		role:               asset.Role,
		maxHP:              asset.MaxHP,
		hp:                 asset.MaxHP,
		attack:             asset.Attack,
		defense:            asset.Defense,
		speed:              asset.Speed,
		baseAttackCooldown: cooldown,
		attackCooldown:     cooldown,
		toTop:              toTop,
		path:               path,
		position:           path[0],
		// Units spawn on the first waypoint and head for the second.
		nextWaypoint: 1,
		lastMoveTime: now,
		spawnedAt:    now,
	}
}

func (u *Unit) ID() uint64            { return u.id }
func (u *Unit) AssetID() uint32       { return u.assetID }
func (u *Unit) Species() string       { return u.species }
func (u *Unit) Role() string          { return u.role }
func (u *Unit) HP() int32             { return u.hp }
func (u *Unit) MaxHP() int32          { return u.maxHP }
func (u *Unit) Attack() int32         { return u.attack }
func (u *Unit) Speed() float64        { return u.speed }
func (u *Unit) ToTop() bool           { return u.toTop }
func (u *Unit) Position() assets.Point { return u.position }

func (u *Unit) IsDead() bool { return u.hp == 0 }

// ApplyDamage reduces HP by the attacker's power less this unit's defense
// (minimum 1), flooring at 0. Returns the remaining HP.
func (u *Unit) ApplyDamage(attackPower int32) int32 {
	damage := attackPower - u.defense
	if damage < 1 {
		damage = 1
	}
	u.hp -= damage
	if u.hp < 0 {
		u.hp = 0
	}
	return u.hp
}

// Heal raises HP by amount, capped at the unit's maximum. Returns the new HP.
func (u *Unit) Heal(amount int32) int32 {
	u.hp += amount
	if u.hp > u.maxHP {
		u.hp = u.maxHP
	}
	return u.hp
}

// CanAttack reports whether the unit's attack cooldown has elapsed and it is
// not stunned.
func (u *Unit) CanAttack(now time.Time) bool {
	if now.Before(u.stunnedUntil) {
		return false
	}
	return now.Sub(u.lastAttackTime) >= u.effectiveCooldown(now)
}

// MarkAttack records an attack for cooldown purposes.
func (u *Unit) MarkAttack(now time.Time) {
	u.lastAttackTime = now
}

func (u *Unit) effectiveCooldown(now time.Time) time.Duration {
	if now.Before(u.buffedUntil) {
		return u.attackCooldown
	}
	return u.baseAttackCooldown
}

// ApplyBuff halves the unit's attack cooldown until the buff expires.
func (u *Unit) ApplyBuff(duration time.Duration, now time.Time) {
	u.attackCooldown = u.baseAttackCooldown / 2
	u.buffedUntil = now.Add(duration)
}

// Stun prevents the unit from attacking until the stun expires.
func (u *Unit) Stun(duration time.Duration, now time.Time) {
	u.stunnedUntil = now.Add(duration)
}

func (u *Unit) IsStunned(now time.Time) bool {
	return now.Before(u.stunnedUntil)
}
