package game

import (
	"sync"
	"time"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
)

// CheckpointStatus is the coarse occupation state reported to clients. The
// holder field of the checkpoint distinguishes which player is attempting
// or occupying.
type CheckpointStatus uint8

const (
	CheckpointWaiting CheckpointStatus = iota
	CheckpointAttempting
	CheckpointOccupied
)

// Checkpoint is the occupation state machine for one contested lane zone.
// Each match owns exactly two instances (top and bottom lane).
//
// A team that holds sole presence for the full dwell time occupies the zone.
// While contested, the dwell timer pauses with its remaining time preserved;
// when contention clears it resumes if the original attempting team still
// holds sole presence, otherwise the attempt restarts for the newly-sole
// team. When every unit leaves, the timer is cleared but the status does not
// revert to waiting.
type Checkpoint struct {
	isTop     bool
	dwellTime time.Duration

	mu        sync.Mutex
	status    CheckpointStatus
	holder    string
	occupants map[string]map[uint64]struct{}

	timer        *time.Timer
	timerStarted time.Time
	remaining    time.Duration
	paused       bool
	stopped      bool

	// onChange is invoked (outside the lock) whenever the logical state
	// changes, for fanning out status notifications.
	onChange func(isTop bool, status CheckpointStatus, holder string)
}

func NewCheckpoint(isTop bool, dwellTime time.Duration, onChange func(bool, CheckpointStatus, string)) *Checkpoint {
	return &Checkpoint{
		isTop:     isTop,
		dwellTime: dwellTime,
		occupants: make(map[string]map[uint64]struct{}),
		onChange:  onChange,
	}
}

func (c *Checkpoint) IsTop() bool { return c.isTop }

// Snapshot returns the current status and holder.
func (c *Checkpoint) Snapshot() (CheckpointStatus, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.holder
}

// OccupiedBy reports whether team currently holds the zone, granting its
// units attack rights on the enemy base for this lane.
func (c *Checkpoint) OccupiedBy(team string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == CheckpointOccupied && c.holder == team
}

// AddUnit registers a unit's presence in the zone. Adding the same unit
// twice is a validation error.
func (c *Checkpoint) AddUnit(team string, unitID uint64) error {
	c.mu.Lock()

	set, ok := c.occupants[team]
	if !ok {
		set = make(map[uint64]struct{})
		c.occupants[team] = set
	}
	if _, dup := set[unitID]; dup {
		c.mu.Unlock()
		return protocol.NewValidationError(protocol.CodeDuplicateCheckpoint,
			"unit %d already inside the checkpoint", unitID)
	}
	set[unitID] = struct{}{}

	notify := c.recompute()
	c.mu.Unlock()

	c.fireChange(notify)
	return nil
}

// RemoveUnit removes a unit from the zone's occupying set, reporting whether
// it was present.
func (c *Checkpoint) RemoveUnit(team string, unitID uint64) bool {
	c.mu.Lock()

	set, ok := c.occupants[team]
	if !ok {
		c.mu.Unlock()
		return false
	}
	if _, present := set[unitID]; !present {
		c.mu.Unlock()
		return false
	}
	delete(set, unitID)

	notify := c.recompute()
	c.mu.Unlock()

	c.fireChange(notify)
	return true
}

// Stop cancels the dwell timer permanently. Called at match teardown so no
// callback can touch freed state.
func (c *Checkpoint) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.clearTimerLocked()
}

// recompute drives the state machine after an occupant change. Must be
// called with the lock held; returns true if the logical state changed and
// observers should be notified.
func (c *Checkpoint) recompute() bool {
	if c.stopped {
		return false
	}

	present := make([]string, 0, 2)
	for team, set := range c.occupants {
		if len(set) > 0 {
			present = append(present, team)
		}
	}

	switch len(present) {
	case 0:
		// Attempt abandoned: the timer is cleared but the status is not
		// reverted to waiting.
		c.clearTimerLocked()
		return false

	case 1:
		sole := present[0]
		switch c.status {
		case CheckpointWaiting:
			return c.beginAttemptLocked(sole)
		case CheckpointAttempting:
			if c.paused && sole == c.holder {
				c.resumeTimerLocked()
				return false
			}
			if c.timer == nil || sole != c.holder {
				// Timer was cleared, or the attempting team abandoned the
				// zone while the other stayed: restart for the sole team.
				return c.beginAttemptLocked(sole)
			}
			return false
		case CheckpointOccupied:
			if sole != c.holder {
				// Occupation can flip: the enemy holding sole presence
				// starts a fresh attempt.
				return c.beginAttemptLocked(sole)
			}
			return false
		}

	case 2:
		// Contested. Freeze the dwell with its remaining time preserved.
		if c.status == CheckpointAttempting && c.timer != nil && !c.paused {
			c.pauseTimerLocked()
		}
		return false
	}

	return false
}

func (c *Checkpoint) beginAttemptLocked(team string) bool {
	changed := c.status != CheckpointAttempting || c.holder != team
	c.status = CheckpointAttempting
	c.holder = team
	c.remaining = c.dwellTime
	c.paused = false
	c.startTimerLocked(c.remaining)
	return changed
}

func (c *Checkpoint) startTimerLocked(d time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerStarted = time.Now()
	c.timer = time.AfterFunc(d, c.dwellElapsed)
}

func (c *Checkpoint) pauseTimerLocked() {
	c.remaining -= time.Since(c.timerStarted)
	if c.remaining < 0 {
		c.remaining = 0
	}
	c.timer.Stop()
	c.timer = nil
	c.paused = true
}

func (c *Checkpoint) resumeTimerLocked() {
	c.paused = false
	c.startTimerLocked(c.remaining)
}

func (c *Checkpoint) clearTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.paused = false
	c.remaining = 0
}

// dwellElapsed fires when a team has held sole presence for the full dwell
// duration.
func (c *Checkpoint) dwellElapsed() {
	c.mu.Lock()
	if c.stopped || c.paused || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.status = CheckpointOccupied
	c.mu.Unlock()

	c.fireChange(true)
}

func (c *Checkpoint) fireChange(changed bool) {
	if !changed || c.onChange == nil {
		return
	}
	status, holder := c.Snapshot()
	c.onChange(c.isTop, status, holder)
}
