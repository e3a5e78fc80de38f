package game

import (
	"time"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// SpellKind identifies one of the player-castable spells.
type SpellKind uint8

const (
	SpellHeal SpellKind = iota
	SpellBuff
	SpellStun
)

// Spell tracks one spell's static parameters and cast history for a player.
type Spell struct {
	Kind      SpellKind
	Cost      int32
	Cooldown  time.Duration
	LastCast  time.Time
	Magnitude int32
	Duration  time.Duration
}

// Starting values applied to every player at match start.
const (
	StartingMineral    int32 = 200
	StartingMineralRate int32 = 5
	StartingBaseHP     int32 = 1000
)

func defaultSpells() map[SpellKind]*Spell {
	return map[SpellKind]*Spell{
		SpellHeal: {Kind: SpellHeal, Cost: 30, Cooldown: 10 * time.Second, Magnitude: 40},
		SpellBuff: {Kind: SpellBuff, Cost: 50, Cooldown: 20 * time.Second, Duration: 5 * time.Second},
		SpellStun: {Kind: SpellStun, Cost: 60, Cooldown: 25 * time.Second, Duration: 3 * time.Second},
	}
}

// PlayerState is the authoritative in-match state for one participant.
// Mutations happen exclusively from packet handlers holding the owning
// game's lock.
type PlayerState struct {
	userID  string
	species string
	client  *client.Client

	mineral     int32
	mineralRate int32

	buildings []uint32
	units     map[uint64]*Unit

	baseHP int32

	capturedCheckpoints []string
	spells              map[SpellKind]*Spell
}

func NewPlayerState(userID, species string, c *client.Client) *PlayerState {
	return &PlayerState{
		userID:      userID,
		species:     species,
		client:      c,
		mineral:     StartingMineral,
		mineralRate: StartingMineralRate,
		units:       make(map[uint64]*Unit),
		baseHP:      StartingBaseHP,
		spells:      defaultSpells(),
	}
}

func (p *PlayerState) UserID() string         { return p.userID }
func (p *PlayerState) Species() string        { return p.species }
func (p *PlayerState) Client() *client.Client { return p.client }

func (p *PlayerState) Mineral() int32     { return p.mineral }
func (p *PlayerState) MineralRate() int32 { return p.mineralRate }

// SpendMineral deducts amount without checking sufficiency; callers must
// pre-validate. Returns the new balance.
func (p *PlayerState) SpendMineral(amount int32) int32 {
	p.mineral -= amount
	return p.mineral
}

func (p *PlayerState) AddMineral(amount int32) int32 {
	p.mineral += amount
	return p.mineral
}

// SetMineral overwrites the balance, flooring at 0.
func (p *PlayerState) SetMineral(amount int32) int32 {
	if amount < 0 {
		amount = 0
	}
	p.mineral = amount
	return p.mineral
}

// AddBuilding records a purchase and applies its accrual-rate bonus.
func (p *PlayerState) AddBuilding(assetID uint32, rateBonus int32) {
	p.buildings = append(p.buildings, assetID)
	p.mineralRate += rateBonus
}

func (p *PlayerState) Buildings() []uint32 { return p.buildings }

func (p *PlayerState) AddUnit(unit *Unit) {
	p.units[unit.ID()] = unit
}

// Unit returns the player's unit by id, or nil.
func (p *PlayerState) Unit(id uint64) *Unit {
	return p.units[id]
}

func (p *PlayerState) RemoveUnit(id uint64) bool {
	if _, ok := p.units[id]; !ok {
		return false
	}
	delete(p.units, id)
	return true
}

// Units returns the player's live unit map. Callers must hold the game lock.
func (p *PlayerState) Units() map[uint64]*Unit {
	return p.units
}

func (p *PlayerState) BaseHP() int32 { return p.baseHP }

// DamageBase reduces base HP, flooring at 0. Returns the remaining HP.
func (p *PlayerState) DamageBase(amount int32) int32 {
	p.baseHP -= amount
	if p.baseHP < 0 {
		p.baseHP = 0
	}
	return p.baseHP
}

func (p *PlayerState) AddCapturedCheckpoint(id string) {
	p.capturedCheckpoints = append(p.capturedCheckpoints, id)
}

func (p *PlayerState) CapturedCheckpoints() []string { return p.capturedCheckpoints }

// Spell returns the player's spell record for kind, or a typed validation
// error if the kind is not part of the player's initialized spell set.
func (p *PlayerState) Spell(kind SpellKind) (*Spell, error) {
	spell, ok := p.spells[kind]
	if !ok {
		return nil, protocol.NewValidationError(protocol.CodeInvalidAssetID, "unknown spell kind %d", kind)
	}
	return spell, nil
}

// SpellAvailable checks cost and cooldown for a cast at time now. The error
// margin absorbs network jitter so legitimate near-cooldown casts are not
// rejected.
func (p *PlayerState) SpellAvailable(kind SpellKind, now time.Time, errorMargin time.Duration) error {
	spell, err := p.Spell(kind)
	if err != nil {
		return err
	}
	if p.mineral < spell.Cost {
		return protocol.NewValidationError(protocol.CodeInsufficientMineral,
			"spell costs %d mineral, have %d", spell.Cost, p.mineral)
	}
	if now.Sub(spell.LastCast) < spell.Cooldown-errorMargin {
		return protocol.NewValidationError(protocol.CodeCooldownActive, "spell %d is still cooling down", kind)
	}
	return nil
}

// MarkSpellCast deducts the spell's cost and records the cast time.
func (p *PlayerState) MarkSpellCast(kind SpellKind, now time.Time) (*Spell, error) {
	spell, err := p.Spell(kind)
	if err != nil {
		return nil, err
	}
	p.SpendMineral(spell.Cost)
	spell.LastCast = now
	return spell, nil
}

// ResetSpellCooldown clears the cast history for a spell kind.
func (p *PlayerState) ResetSpellCooldown(kind SpellKind) error {
	spell, err := p.Spell(kind)
	if err != nil {
		return err
	}
	spell.LastCast = time.Time{}
	return nil
}
