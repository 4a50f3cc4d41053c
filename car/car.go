// Package car implements the per-vehicle cooperative process (spec.md
// §3/§4.6): a state machine over Crossing, CrossingCrossroad, Queued,
// Waiting and Despawning, suspended on the kernel's timeouts and events.
// Grounded on spec.md §4.6 directly (the teacher's own per-entity
// behavior tree lived in the dropped entity/person package, built on
// protobuf-typed trip/person data this spec has no use for); the
// suspend-on-timeout-or-event shape follows the same kernel.Task API
// kernel/kernel_test.go exercises.
package car

import (
	"math"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/roadsim-go/kernel"
	"github.com/tsinghua-fib-lab/roadsim-go/network"
	"github.com/tsinghua-fib-lab/roadsim-go/utils/container"
	"github.com/tsinghua-fib-lab/roadsim-go/utils/randengine"
)

var log = logrus.WithField("module", "car")

// MinGap is the minimum bumper-to-bumper gap between two cars, in km
// (spec.md GLOSSARY).
const MinGap = 0.001

// State is one of the five car states spec.md §3/§4.6 names.
type State int

const (
	StateCrossing State = iota
	StateCrossingCrossroad
	StateQueued
	StateWaiting
	StateDespawning
)

func (s State) String() string {
	switch s {
	case StateCrossing:
		return "crossing"
	case StateCrossingCrossroad:
		return "crossing_crossroad"
	case StateQueued:
		return "queued"
	case StateWaiting:
		return "waiting"
	case StateDespawning:
		return "despawning"
	default:
		return "unknown"
	}
}

// EventSink receives a calendar event for every car state change (spec.md
// §4.7). Implemented by calendar.Calendar.
type EventSink interface {
	RecordCarEvent(time float64, carID uint64, wayID int64, crossroadID int64, laneID uint32, positionPercent float64, speed float64)
}

// ViolationSink optionally receives a diagnostic whenever a car overtakes
// its predecessor (spec.md §7's "physical violation": a bug, not an
// expected event). A sink that implements only EventSink still works;
// this is checked via a type assertion at the one call site that detects
// the condition.
type ViolationSink interface {
	RecordPhysicalViolation(carID uint64, time float64)
}

// Config carries the tunable constants the car process consumes.
type Config struct {
	CrossroadBlockingTime float64 // seconds
}

// Car is one vehicle's full state (spec.md §3).
type Car struct {
	ID uint64

	Way       *network.Way       // nil while on a Crossing Lane
	Lane      *network.Lane      // current lane (may be a Crossing Lane's Lane)
	Crossroad *network.Crossroad // non-nil while CrossingCrossroad or Waiting at one
	curCL     *network.CrossingLane

	position   float64
	updateTime float64
	Speed      float64
	DesiredSpeed float64
	Length     float64
	State      State

	// Planned path for the next crossroad traversal (spec.md §4.6's
	// next_way/next_lanes), resolved into explicit crossing/outgoing
	// lanes rather than a generic slice, since the path is always
	// exactly "cross, then continue on the outgoing lane".
	nextWay          *network.Way
	nextCrossingLane *network.CrossingLane
	nextOutgoingLane *network.Lane
	laneToSwitch     *network.Lane
	// directUTurn marks a planned move that skips the Crossing Lane
	// system entirely: a dead-end Way's only feasible next move is back
	// onto its own opposite-direction lane, and no Crossing Lane connects
	// a Way to itself (spec.md §4.4 only generates lanes for ordered
	// pairs of *distinct* incident ways).
	directUTurn bool

	held          []*network.CrossingLane
	releaseDefuse *kernel.Task

	UpdateEvent            *kernel.Event
	EnvironmentUpdateEvent *kernel.Event

	k    *kernel.Kernel
	rng  *randengine.Engine
	net  *network.Network
	sink EventSink
	cfg  Config

	// OnDespawn is invoked once, from the Despawning state, after all
	// bookkeeping (release held crossing lanes, detach from queue) is
	// done. Set by the spawner so it can create a replacement car.
	OnDespawn func(*Car)

	qnode *container.ListNode[container.Positioned, struct{}]
}

// New creates a car at rest, not yet attached to any lane.
func New(id uint64, k *kernel.Kernel, rng *randengine.Engine, net *network.Network, sink EventSink, cfg Config) *Car {
	return &Car{
		ID:                     id,
		k:                      k,
		rng:                    rng,
		net:                    net,
		sink:                   sink,
		cfg:                    cfg,
		UpdateEvent:            k.NewEvent(),
		EnvironmentUpdateEvent: k.NewEvent(),
	}
}

// Pos implements container.Positioned so Car can be stored directly in a
// Lane's queue.
func (c *Car) Pos() float64 { return c.position }

// PositionAt returns the car's extrapolated position at time t (spec.md
// §3, "position(t) = position_anchor + speed·(t - update_time)/3600").
func (c *Car) PositionAt(t float64) float64 {
	return c.position + c.Speed*(t-c.updateTime)/3600
}

// reanchor re-anchors position and update_time to now, without emitting
// any event; callers that need the full side-effect set use SetSpeed.
func (c *Car) reanchor(now float64) {
	c.position = c.PositionAt(now)
	c.updateTime = now
}

// SetSpeed implements spec.md §4.6's "speed mutation side effects":
// re-anchor, emit a calendar event, wake the car behind, and reschedule
// the held-crossing-lane release timer.
func (c *Car) SetSpeed(speed, now float64) {
	c.reanchor(now)
	c.Speed = speed
	c.emitEvent(now)
	c.wakeBehind()
	c.rescheduleRelease(now)
}

func (c *Car) emitEvent(now float64) {
	wayID := int64(-1)
	if c.Way != nil {
		wayID = int64(c.Way.ID)
	}
	crossroadID := int64(-1)
	if c.Crossroad != nil {
		crossroadID = int64(c.Crossroad.ID)
	}
	laneID := uint32(0)
	laneLen := 0.0
	if c.Lane != nil {
		laneID = c.Lane.ID
		laneLen = c.Lane.Length
	}
	pct := 0.0
	if laneLen > 0 {
		pct = math.Abs(round4(c.position / laneLen * 100))
	}
	if c.sink != nil {
		c.sink.RecordCarEvent(now, c.ID, wayID, crossroadID, laneID, pct, c.Speed)
	}
	old := c.UpdateEvent
	c.UpdateEvent = c.k.NewEvent()
	old.Succeed()
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

func (c *Car) wakeBehind() {
	if c.qnode == nil {
		return
	}
	prev := c.qnode.Prev()
	if prev == nil {
		return
	}
	if behind, ok := prev.Value.(*Car); ok {
		old := behind.EnvironmentUpdateEvent
		behind.EnvironmentUpdateEvent = c.k.NewEvent()
		old.Succeed()
	}
}

// CarAhead returns the car immediately ahead in the same lane queue, or
// nil if this car is currently foremost.
func (c *Car) CarAhead() *Car {
	if c.qnode == nil {
		return nil
	}
	next := c.qnode.Next()
	if next == nil {
		return nil
	}
	ahead, _ := next.Value.(*Car)
	return ahead
}

// distanceToCarAhead implements spec.md §4.6's car-ahead arithmetic.
func (c *Car) distanceToCarAhead(now float64) float64 {
	ahead := c.CarAhead()
	if ahead == nil {
		return math.Inf(1)
	}
	return ahead.PositionAt(now) - c.PositionAt(now) - (ahead.Length + MinGap)
}

func (c *Car) timeToReachCarAhead(now float64) float64 {
	ahead := c.CarAhead()
	if ahead == nil || c.Speed <= ahead.Speed {
		return math.Inf(1)
	}
	d := c.distanceToCarAhead(now)
	return d / (c.Speed - ahead.Speed) * 3600
}

func (c *Car) timeToBeAtPosition(p, now float64) float64 {
	if c.Speed <= 0 {
		return math.Inf(1)
	}
	return (p - c.PositionAt(now)) / c.Speed * 3600
}

// AttachInitial places a freshly constructed car into lane's queue at
// pos. Used only by the spawner, once, before the car's process starts;
// every later move goes through attachToLane directly.
func (c *Car) AttachInitial(lane *network.Lane, pos float64) {
	c.attachToLane(lane, pos)
}

// attachToLane inserts c into lane's queue at pos, setting its owning
// Way/Crossroad accordingly.
func (c *Car) attachToLane(lane *network.Lane, pos float64) {
	c.Lane = lane
	c.position = pos
	c.updateTime = c.k.Now()
	c.qnode = lane.Queue.InsertSorted(pos, container.Positioned(c))
}

// detachFromLane removes c from its current lane's queue, if attached.
func (c *Car) detachFromLane() {
	if c.qnode == nil || c.Lane == nil {
		return
	}
	c.Lane.Queue.Remove(c.qnode)
	c.qnode = nil
}

// rescheduleRelease implements spec.md §4.6 step 4 of the speed mutation
// side effects: cancel any pending "release crossing lanes behind" timer
// and, if the car has fully cleared a held crossing lane, schedule its
// release. Gated on curCL, not held: held can also contain a lane
// pre-acquired via tryPreacquireNextCrossingLane while the car is still
// approaching it (curCL nil), and that lane isn't cleared — or even
// entered — yet.
func (c *Car) rescheduleRelease(now float64) {
	if c.releaseDefuse != nil {
		c.releaseDefuse.Defused = true
	}
	if c.curCL == nil || c.Lane == nil {
		return
	}
	dt := c.timeToBeAtPosition(c.Length+MinGap+0.0001, now)
	if math.IsInf(dt, 1) {
		return
	}
	if dt < 0 {
		dt = 0
	}
	heldSnapshot := append([]*network.CrossingLane(nil), c.held...)
	c.held = nil
	c.k.Spawn(func(t *kernel.Task) {
		c.releaseDefuse = t
		_ = c.k.After(t, dt)
		for _, cl := range heldSnapshot {
			cl.Release(c.ID)
		}
	})
}
