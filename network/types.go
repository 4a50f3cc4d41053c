// Package network implements the immutable road network (spec.md §3,
// §4.2–§4.4): Nodes, Ways, Lanes and Crossroads, assembled once from a
// prepared OSM-derived source and never mutated afterward. Grounded on
// the teacher's entity/road and entity/junction packages for the general
// shape of "stable integer id, lookup by id in the Network's maps",
// generalized from the teacher's protobuf-typed mapv2 entities to plain
// Go structs. The structs reference each other directly through exported
// pointers (Way.Nodes, Lane.Way, Lane.Left/Right, Crossroad.IncidentWays).
package network

import (
	"github.com/tsinghua-fib-lab/roadsim-go/geo"
	"github.com/tsinghua-fib-lab/roadsim-go/utils/container"
)

// Turn is one of the normalized turn tokens a lane permits (spec.md §3):
// merge_to_right/slight_right collapse to {Through,Right}, merge_to_left/
// slight_left collapse to {Through,Left}, the rest pass through unchanged.
type Turn int

const (
	TurnNone Turn = iota
	TurnLeft
	TurnRight
	TurnThrough
)

func (t Turn) String() string {
	switch t {
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	case TurnThrough:
		return "through"
	default:
		return "none"
	}
}

// TurnSet is the set of turns a lane permits. An empty set means "any
// turn permitted" (spec.md §3); use Permits to test membership.
type TurnSet map[Turn]bool

// Permits reports whether t is allowed, treating an empty set as
// permitting everything.
func (s TurnSet) Permits(t Turn) bool {
	if len(s) == 0 {
		return true
	}
	return s[t]
}

// HighwayClass ranks a Way's OSM highway tag by priority, highest first.
// Used to determine a Crossroad's main_ways (spec.md §3 GLOSSARY).
type HighwayClass int

const (
	HighwayMotorway HighwayClass = iota
	HighwayMotorwayLink
	HighwayTrunk
	HighwayTrunkLink
	HighwayPrimary
	HighwayPrimaryLink
	HighwaySecondary
	HighwaySecondaryLink
	HighwayTertiary
	HighwayTertiaryLink
	HighwayUnclassified
)

var highwayTagOrder = map[string]HighwayClass{
	"motorway":        HighwayMotorway,
	"motorway_link":   HighwayMotorwayLink,
	"trunk":           HighwayTrunk,
	"trunk_link":      HighwayTrunkLink,
	"primary":         HighwayPrimary,
	"primary_link":    HighwayPrimaryLink,
	"secondary":       HighwaySecondary,
	"secondary_link":  HighwaySecondaryLink,
	"tertiary":        HighwayTertiary,
	"tertiary_link":   HighwayTertiaryLink,
}

// ParseHighwayClass maps an OSM highway tag value to a priority class,
// defaulting to the lowest priority for unknown or missing tags (spec.md
// §7, "source-data defects ... repaired to defaults at load").
func ParseHighwayClass(tag string) HighwayClass {
	if c, ok := highwayTagOrder[tag]; ok {
		return c
	}
	return HighwayUnclassified
}

// Node is a stable geographic point, possibly traffic-lit (spec.md §3).
type Node struct {
	ID              uint64
	Pos             geo.Point
	HasTrafficLight bool
	Ways            []*Way
}

// WayLanes bundles a Way's per-direction ordered lane lists (spec.md §3).
// Forward runs outer-to-inner (rightmost to leftmost in a right-hand-
// drive country); Backward mirrors it.
type WayLanes struct {
	Forward  []*Lane
	Backward []*Lane
}

// Way is a directed-by-orientation polyline between two endpoint Nodes
// (spec.md §3).
type Way struct {
	ID         uint32
	Nodes      []*Node // endpoints and interior nodes, in order
	MaxSpeed   int     // km/h
	Highway    HighwayClass
	Lanes      WayLanes
	Polyline   geo.Polyline
	Length     float64 // km, sum of haversine distances between consecutive Nodes
}

// From and To return the Way's endpoint Nodes.
func (w *Way) From() *Node { return w.Nodes[0] }
func (w *Way) To() *Node   { return w.Nodes[len(w.Nodes)-1] }

// Lane is a polyline confined set of cars ordered by position (spec.md
// §3). Owner is exactly one of Way or Crossroad.
type Lane struct {
	ID             uint32
	Polyline       geo.Polyline
	IsForward      bool
	PermittedTurns TurnSet
	Left, Right    *Lane // neighbor lane references, nil if none
	Way            *Way  // nil for internal Crossing Lanes
	Crossroad      *Crossroad
	Length         float64
	Queue          *container.List[container.Positioned, struct{}]
}

// NewLane allocates a Lane with an initialized, empty queue.
func NewLane(id uint32, pl geo.Polyline, forward bool, turns TurnSet) *Lane {
	return &Lane{
		ID:             id,
		Polyline:       pl,
		IsForward:      forward,
		PermittedTurns: turns,
		Length:         pl.Length(),
		Queue:          &container.List[container.Positioned, struct{}]{},
	}
}

// CrossroadTurn classifies, for a given incident Way of a Crossroad, which
// other incident Ways are its through/left/right partners (spec.md §3/
// §4.3). Nil fields mean "no way classified into that bin".
type CrossroadTurn struct {
	Through, Left, Right *Way
}

// CrossingLane is an internal blockable Lane connecting one incident
// Way's lane to another's (spec.md §3). Capacity defaults to 5
// concurrent holders; Disabled is set by the traffic-light controller.
type CrossingLane struct {
	*Lane
	From, To     *Lane // the real Way lanes this crossing lane connects
	Capacity     int
	Disabled     bool
	holders      map[uint64]struct{}
}

// NewCrossingLane wraps lane as a CrossingLane with the given capacity.
func NewCrossingLane(lane *Lane, from, to *Lane, capacity int) *CrossingLane {
	return &CrossingLane{Lane: lane, From: from, To: to, Capacity: capacity, holders: make(map[uint64]struct{})}
}

// TryAcquire attempts to add holderID to the crossing lane's holder set.
// Non-blocking: fails immediately if disabled or at capacity (spec.md §3,
// §5 "acquisition is non-blocking; callers poll").
func (c *CrossingLane) TryAcquire(holderID uint64) bool {
	if c.Disabled {
		return false
	}
	if _, ok := c.holders[holderID]; ok {
		return true
	}
	if len(c.holders) >= c.Capacity {
		return false
	}
	c.holders[holderID] = struct{}{}
	return true
}

// Release removes holderID from the holder set. A no-op if absent.
func (c *CrossingLane) Release(holderID uint64) {
	delete(c.holders, holderID)
}

// Holders returns the current holder ids (order undefined).
func (c *CrossingLane) Holders() []uint64 {
	ids := make([]uint64, 0, len(c.holders))
	for id := range c.holders {
		ids = append(ids, id)
	}
	return ids
}

// Crossroad is the intersection at a Node (spec.md §3). ID is a
// synthetic uint32 assigned at assembly time for the §6 output format,
// which records crossroads by a compact integer id rather than by the
// (wider) Node.ID.
type Crossroad struct {
	ID            uint32
	Node          *Node
	IncidentWays  []*Way
	Turns         map[uint32]CrossroadTurn // keyed by Way.ID
	MainWays      []*Way
	CrossingLanes []*CrossingLane
}

// Network is the assembled, immutable road network (spec.md §3).
type Network struct {
	Nodes      map[uint64]*Node
	Ways       map[uint32]*Way
	Crossroads map[uint64]*Crossroad // keyed by Node.ID

	nextWayID       uint32
	nextLaneID      uint32
	nextCrossroadID uint32
}

func (n *Network) allocWayID() uint32 {
	id := n.nextWayID
	n.nextWayID++
	return id
}

func (n *Network) allocLaneID() uint32 {
	id := n.nextLaneID
	n.nextLaneID++
	return id
}

func (n *Network) allocCrossroadID() uint32 {
	id := n.nextCrossroadID
	n.nextCrossroadID++
	return id
}
