package car

import (
	"math"

	"github.com/tsinghua-fib-lab/roadsim-go/geo"
	"github.com/tsinghua-fib-lab/roadsim-go/kernel"
	"github.com/tsinghua-fib-lab/roadsim-go/network"
)

// Run drives c's state machine for as long as the kernel simulation runs
// (spec.md §4.6). Spawners call this as the body of a kernel.Spawn.
func (c *Car) Run(t *kernel.Task) {
	for {
		switch c.State {
		case StateCrossing:
			if !c.runCrossing(t) {
				return
			}
		case StateCrossingCrossroad:
			if !c.runCrossingCrossroad(t) {
				return
			}
		case StateQueued:
			if !c.runQueued(t) {
				return
			}
		case StateWaiting:
			if !c.runWaiting(t) {
				return
			}
		case StateDespawning:
			c.runDespawning()
			return
		}
	}
}

const driveEpsilon = 1e-9

// driveTo suspends the car until it reaches target (km along the current
// lane), transitions to Queued if it catches its predecessor first, or
// is interrupted. ok is false only on interruption.
func (c *Car) driveTo(t *kernel.Task, target float64) (ok bool) {
	for {
		now := c.k.Now()
		if c.PositionAt(now) >= target-driveEpsilon {
			return true
		}
		events := []*kernel.Event{c.EnvironmentUpdateEvent}
		arrivalDT := c.timeToBeAtPosition(target, now)
		if !math.IsInf(arrivalDT, 1) && arrivalDT >= 0 {
			events = append(events, c.k.Timeout(arrivalDT))
		}
		ahead := c.CarAhead()
		if ahead != nil {
			events = append(events, ahead.UpdateEvent)
			reachDT := c.timeToReachCarAhead(now)
			if !math.IsInf(reachDT, 1) && reachDT >= 0 {
				events = append(events, c.k.Timeout(reachDT))
			}
		}
		if _, err := c.k.AnyOf(t, events...); err != nil {
			return false
		}
		now = c.k.Now()
		if ahead != nil {
			if d := c.distanceToCarAhead(now); d <= 0 {
				if d < -driveEpsilon {
					c.reportViolation(now)
				}
				c.State = StateQueued
				return true
			}
		}
	}
}

// reportViolation logs and, if the sink supports it, counts a physical
// violation: this car's position overran its predecessor's (spec.md §7).
func (c *Car) reportViolation(now float64) {
	log.WithField("car", c.ID).WithField("time", now).Warn("car overtook its predecessor")
	if vs, ok := c.sink.(ViolationSink); ok {
		vs.RecordPhysicalViolation(c.ID, now)
	}
}

// runCrossing implements spec.md §4.6's Crossing state.
func (c *Car) runCrossing(t *kernel.Task) bool {
	now := c.k.Now()
	speed := c.DesiredSpeed
	if c.Way != nil && float64(c.Way.MaxSpeed) < speed {
		speed = float64(c.Way.MaxSpeed)
	}
	c.SetSpeed(speed, now)

	pct := c.rng.UniformFloat(0.3, 0.8)
	if !c.driveTo(t, pct*c.Lane.Length) {
		return false
	}
	if c.State != StateCrossing {
		return true
	}

	if c.laneToSwitch != nil {
		c.performLaneChange(t)
		if c.State != StateCrossing {
			return true
		}
	}

	blockDist := geo.KmhToKmPerSec(c.Speed) * c.cfg.CrossroadBlockingTime
	target := c.Lane.Length - blockDist
	if target < 0 {
		target = 0
	}
	if !c.driveTo(t, target) {
		return false
	}
	if c.State != StateCrossing {
		return true
	}

	if c.CarAhead() == nil && c.canPreacquire() {
		c.tryPreacquireNextCrossingLane()
	}

	if !c.driveTo(t, c.Lane.Length) {
		return false
	}
	if c.State != StateCrossing {
		return true
	}
	c.State = StateWaiting
	return true
}

// canPreacquire implements §4.6 step 5's gate: first in lane, and either
// driving on a main way or no car is approaching from the right.
func (c *Car) canPreacquire() bool {
	if c.Crossroad == nil {
		c.Crossroad = c.net.CrossroadAt(c.Lane)
	}
	cr := c.Crossroad
	if cr == nil || c.Way == nil {
		return false
	}
	for _, mw := range cr.MainWays {
		if mw == c.Way {
			return true
		}
	}
	return !c.carApproachingFromRight(cr)
}

// carApproachingFromRight is the §4.6/§9 heuristic (spec.md explicitly
// leaves its exact arbitration unspecified): look at the right-side
// way's lanes feeding this crossroad and estimate whether their foremost
// car will reach the crossroad within CROSSROAD_BLOCKING_TIME.
func (c *Car) carApproachingFromRight(cr *network.Crossroad) bool {
	ct := cr.Turns[c.Way.ID]
	if ct.Right == nil {
		return false
	}
	now := c.k.Now()
	for _, lane := range incomingLanesAt(ct.Right, cr.Node) {
		last := lane.Queue.Last()
		if last == nil {
			continue
		}
		other, ok := last.Value.(*Car)
		if !ok {
			continue
		}
		dt := other.timeToBeAtPosition(lane.Length, now)
		if dt >= 0 && dt <= c.cfg.CrossroadBlockingTime {
			return true
		}
	}
	return false
}

func incomingLanesAt(w *network.Way, node *network.Node) []*network.Lane {
	if w.To() == node {
		return w.Lanes.Forward
	}
	return w.Lanes.Backward
}

func (c *Car) tryPreacquireNextCrossingLane() {
	if c.nextCrossingLane == nil {
		c.planNextPath()
	}
	if c.nextCrossingLane == nil {
		return
	}
	c.acquireCrossingLane(c.nextCrossingLane)
}

func (c *Car) acquireCrossingLane(cl *network.CrossingLane) bool {
	if c.hasHeld(cl) {
		return true
	}
	if !conflictFree(c.Crossroad, cl) {
		return false
	}
	if c.unlitMainWayConflict() {
		return false
	}
	if !cl.TryAcquire(c.ID) {
		return false
	}
	c.held = append(c.held, cl)
	return true
}

// unlitMainWayConflict implements the original simulator's unlit-
// crossroad right-of-way rule (SPEC_FULL.md supplemented feature 1): at
// a crossroad with no traffic light, a car not on one of the crossroad's
// main ways must yield to any main-way car currently Waiting or Crossing
// within CROSSROAD_BLOCKING_TIME of the same crossroad, in addition to
// the ordinary conflict-set check every car observes.
func (c *Car) unlitMainWayConflict() bool {
	cr := c.Crossroad
	if cr == nil || cr.Node.HasTrafficLight || len(cr.MainWays) == 0 {
		return false
	}
	for _, mw := range cr.MainWays {
		if mw == c.Way {
			return false
		}
	}
	now := c.k.Now()
	for _, mw := range cr.MainWays {
		for _, lane := range incomingLanesAt(mw, cr.Node) {
			last := lane.Queue.Last()
			if last == nil {
				continue
			}
			other, ok := last.Value.(*Car)
			if !ok || (other.State != StateWaiting && other.State != StateCrossing) {
				continue
			}
			if other.State == StateWaiting {
				return true // stopped at the lane end, already at the crossroad
			}
			dt := other.timeToBeAtPosition(lane.Length, now)
			if dt >= 0 && dt <= c.cfg.CrossroadBlockingTime {
				return true
			}
		}
	}
	return false
}

// conflictFree implements spec.md §4.4/§8's "conflict-free" exclusivity
// test: no other car currently holds any Crossing Lane in cl's conflict
// set.
func conflictFree(cr *network.Crossroad, cl *network.CrossingLane) bool {
	if cr == nil {
		return true
	}
	for _, other := range network.ConflictSet(cr, cl) {
		if len(other.Holders()) > 0 {
			return false
		}
	}
	return true
}

// runCrossingCrossroad implements spec.md §4.6's CrossingCrossroad state.
func (c *Car) runCrossingCrossroad(t *kernel.Task) bool {
	if !c.driveTo(t, c.Lane.Length) {
		return false
	}
	if c.State != StateCrossingCrossroad {
		return true
	}

	c.detachFromLane()
	if c.curCL != nil {
		c.curCL.Release(c.ID)
		c.removeHeld(c.curCL)
	}

	way := c.nextWay
	outgoing := c.nextOutgoingLane
	c.nextWay, c.nextCrossingLane, c.nextOutgoingLane = nil, nil, nil
	c.curCL = nil
	c.Crossroad = nil
	c.Way = way
	c.attachToLane(outgoing, 0)
	c.emitEvent(c.k.Now())
	c.State = StateCrossing
	c.planNextPath()
	return true
}

func (c *Car) removeHeld(cl *network.CrossingLane) {
	out := c.held[:0]
	for _, h := range c.held {
		if h != cl {
			out = append(out, h)
		}
	}
	c.held = out
}

// runQueued implements spec.md §4.6's Queued state.
func (c *Car) runQueued(t *kernel.Task) bool {
	for {
		ahead := c.CarAhead()
		if ahead == nil {
			c.State = StateCrossing
			return true
		}
		now := c.k.Now()
		newSpeed := ahead.Speed
		if c.DesiredSpeed < newSpeed {
			newSpeed = c.DesiredSpeed
		}
		if newSpeed != c.Speed {
			c.SetSpeed(newSpeed, now)
		}

		events := []*kernel.Event{c.EnvironmentUpdateEvent, ahead.UpdateEvent}
		laneEndDT := c.timeToBeAtPosition(c.Lane.Length, now)
		if !math.IsInf(laneEndDT, 1) && laneEndDT >= 0 {
			events = append(events, c.k.Timeout(laneEndDT))
		}
		if _, err := c.k.AnyOf(t, events...); err != nil {
			return false
		}

		now = c.k.Now()
		cur := c.CarAhead()
		if cur == nil || cur != ahead {
			continue
		}
		if cur.Speed > c.DesiredSpeed {
			c.State = StateCrossing
			return true
		}
		if c.PositionAt(now) >= c.Lane.Length-driveEpsilon {
			c.State = StateWaiting
			return true
		}
	}
}

// runWaiting implements spec.md §4.6's Waiting state.
func (c *Car) runWaiting(t *kernel.Task) bool {
	now := c.k.Now()
	c.SetSpeed(0, now)

	if c.nextCrossingLane == nil && !c.directUTurn {
		c.planNextPath()
	}
	if c.nextCrossingLane == nil && !c.directUTurn {
		c.State = StateDespawning
		return true
	}

	if c.Crossroad == nil {
		c.Crossroad = c.net.CrossroadAt(c.Lane)
	}

	if c.directUTurn {
		c.detachFromLane()
		way, outgoing := c.nextWay, c.nextOutgoingLane
		c.nextWay, c.nextOutgoingLane, c.directUTurn = nil, nil, false
		c.Way = way
		c.Crossroad = nil
		c.attachToLane(outgoing, 0)
		c.emitEvent(c.k.Now())
		c.State = StateCrossing
		c.planNextPath()
		return true
	}

	for {
		if c.acquireCrossingLane(c.nextCrossingLane) {
			break
		}
		if err := c.k.After(t, 1.0); err != nil {
			return false
		}
	}

	c.detachFromLane()
	c.Crossroad = c.net.CrossroadAt(c.Lane)
	c.curCL = c.nextCrossingLane
	c.Way = nil
	c.attachToLane(c.nextCrossingLane.Lane, 0)
	c.emitEvent(c.k.Now())
	c.State = StateCrossingCrossroad
	return true
}

func (c *Car) hasHeld(cl *network.CrossingLane) bool {
	for _, h := range c.held {
		if h == cl {
			return true
		}
	}
	return false
}

// runDespawning implements spec.md §4.6's Despawning state.
func (c *Car) runDespawning() {
	now := c.k.Now()
	c.emitEvent(now)
	for _, cl := range c.held {
		cl.Release(c.ID)
	}
	c.held = nil
	if c.releaseDefuse != nil {
		c.releaseDefuse.Defused = true
	}
	c.detachFromLane()
	c.Way = nil
	c.Lane = nil
	c.Crossroad = nil
	if c.OnDespawn != nil {
		c.OnDespawn(c)
	}
}
