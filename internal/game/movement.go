package game

import (
	"math"
	"time"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/assets"
)

// DefaultSpeedErrorMargin is the multiplier applied to a unit's rated speed
// when validating client-reported movement; 1.05 tolerates 5% of jitter.
const DefaultSpeedErrorMargin = 1.05

// Reconciler validates client-reported unit positions against the server's
// expectation and substitutes a corrected value when a claim is impossible.
type Reconciler struct {
	bounds      assets.MapBounds
	speedMargin float64
}

func NewReconciler(bounds assets.MapBounds, speedMargin float64) *Reconciler {
	if speedMargin <= 0 {
		speedMargin = DefaultSpeedErrorMargin
	}
	return &Reconciler{bounds: bounds, speedMargin: speedMargin}
}

// Reconcile checks a claimed position for the unit at time now. If the claim
// passes the bounds, lane, and implied-speed checks it is accepted verbatim;
// otherwise the server-interpolated position is substituted and the update
// is marked modified. Either way the unit's position advances to the result.
// Callers must hold the owning game's lock.
func (r *Reconciler) Reconcile(unit *Unit, claimed assets.Point, now time.Time) (assets.Point, bool) {
	elapsed := now.Sub(unit.lastMoveTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	expected := r.expectedPosition(unit, elapsed)

	valid := r.inBounds(claimed) &&
		r.onLane(claimed, unit.toTop) &&
		impliedSpeed(unit.position, claimed, elapsed) <= unit.speed*r.speedMargin

	result := claimed
	if !valid {
		result = expected
	}

	unit.position = result
	unit.lastMoveTime = now
	r.advanceWaypoint(unit)

	return result, !valid
}

// Advance moves a unit along its fixed path by elapsed wall time, for ticks
// where the client reported nothing. Callers must hold the game's lock.
func (r *Reconciler) Advance(unit *Unit, now time.Time) assets.Point {
	elapsed := now.Sub(unit.lastMoveTime).Seconds()
	if elapsed > 0 {
		unit.position = r.expectedPosition(unit, elapsed)
		unit.lastMoveTime = now
		r.advanceWaypoint(unit)
	}
	return unit.position
}

// expectedPosition interpolates from the unit's last known position toward
// its current waypoint, scaled by min(1, speed*dt/distanceToWaypoint).
func (r *Reconciler) expectedPosition(unit *Unit, elapsedSeconds float64) assets.Point {
	if unit.nextWaypoint >= len(unit.path) {
		return unit.position
	}

	target := unit.path[unit.nextWaypoint]
	dist := distance(unit.position, target)
	if dist == 0 {
		return unit.position
	}

	fraction := unit.speed * elapsedSeconds / dist
	if fraction > 1 {
		fraction = 1
	}

	return assets.Point{
		X: unit.position.X + (target.X-unit.position.X)*fraction,
		Z: unit.position.Z + (target.Z-unit.position.Z)*fraction,
	}
}

// advanceWaypoint bumps the unit's path index past any waypoint it has
// reached.
func (r *Reconciler) advanceWaypoint(unit *Unit) {
	for unit.nextWaypoint < len(unit.path) &&
		distance(unit.position, unit.path[unit.nextWaypoint]) <= waypointRadius {
		unit.nextWaypoint++
	}
}

// inBounds checks the claim against the static map: inside the outer
// boundary polygon and, for the donut-shaped arena, outside the forbidden
// inner polygon.
func (r *Reconciler) inBounds(p assets.Point) bool {
	if !pointInPolygon(p, r.bounds.Outer) {
		return false
	}
	if len(r.bounds.Inner) >= 3 && pointInPolygon(p, r.bounds.Inner) {
		return false
	}
	return true
}

// onLane checks that the claim stays on the unit's side of the center line.
func (r *Reconciler) onLane(p assets.Point, toTop bool) bool {
	if toTop {
		return p.Z >= r.bounds.CenterLine
	}
	return p.Z <= r.bounds.CenterLine
}

func impliedSpeed(from, to assets.Point, elapsedSeconds float64) float64 {
	dist := distance(from, to)
	if dist == 0 {
		return 0
	}
	if elapsedSeconds <= 0 {
		return math.Inf(1)
	}
	return dist / elapsedSeconds
}

func distance(a, b assets.Point) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}

// pointInPolygon implements the even-odd ray casting rule.
func pointInPolygon(p assets.Point, polygon []assets.Point) bool {
	inside := false
	n := len(polygon)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := polygon[i], polygon[j]
		if (vi.Z > p.Z) != (vj.Z > p.Z) &&
			p.X < (vj.X-vi.X)*(p.Z-vi.Z)/(vj.Z-vi.Z)+vi.X {
			inside = !inside
		}
	}
	return inside
}
