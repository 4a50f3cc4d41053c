package car

import (
	"github.com/tsinghua-fib-lab/roadsim-go/network"
	"github.com/tsinghua-fib-lab/roadsim-go/utils/randengine"
)

// planNextPath implements spec.md §4.6's random path choice: pick a next
// outgoing Way uniformly at random from feasible ones (reversing on the
// current Way, then despawning, as fallbacks), then a next lane uniformly
// at random from those reachable from the current lane; if none are
// directly reachable, schedule a lane change instead of picking a path.
func (c *Car) planNextPath() {
	cr := c.net.CrossroadAt(c.Lane)
	if cr == nil {
		return
	}
	c.Crossroad = cr

	var candidates []*network.Way
	for _, w := range cr.IncidentWays {
		if w != c.Way {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		if reverse := oppositeLane(c.Way, c.Lane); reverse != nil {
			c.nextWay = c.Way
			c.nextOutgoingLane = reverse
			c.nextCrossingLane = nil
			c.directUTurn = true
		}
		return // no feasible next option otherwise; Waiting will despawn
	}

	nextWay := randengine.Pick(c.rng, candidates)
	outgoing := outgoingLanesAt(nextWay, cr.Node)

	var reachable []*network.Lane
	var reachableCL []*network.CrossingLane
	for _, cl := range cr.CrossingLanesFrom(c.Lane) {
		if cl.To.Way != nextWay {
			continue
		}
		if !laneContains(outgoing, cl.To) {
			continue
		}
		reachable = append(reachable, cl.To)
		reachableCL = append(reachableCL, cl)
	}

	if len(reachable) == 0 {
		c.laneToSwitch = laneTowardWay(c.Lane, cr, nextWay)
		c.nextWay = nextWay
		return
	}

	idx := c.rng.Intn(len(reachable))
	c.nextWay = nextWay
	c.nextOutgoingLane = reachable[idx]
	c.nextCrossingLane = reachableCL[idx]
}

func outgoingLanesAt(w *network.Way, node *network.Node) []*network.Lane {
	if w.From() == node {
		return w.Lanes.Forward
	}
	return w.Lanes.Backward
}

func laneContains(lanes []*network.Lane, target *network.Lane) bool {
	for _, l := range lanes {
		if l == target {
			return true
		}
	}
	return false
}

// oppositeLane returns a lane of w running against cur's direction
// (forward vs backward), used as w's own "reverse direction" fallback
// (spec.md §4.6, "reverse direction on the current Way if possible").
// Returns nil when w has no lane in the opposite direction.
func oppositeLane(w *network.Way, cur *network.Lane) *network.Lane {
	if w == nil {
		return nil
	}
	if cur != nil && !cur.IsForward {
		if len(w.Lanes.Forward) > 0 {
			return w.Lanes.Forward[0]
		}
		return nil
	}
	if len(w.Lanes.Backward) > 0 {
		return w.Lanes.Backward[0]
	}
	return nil
}

// laneTowardWay picks a neighbor lane of c's current lane that is one
// step closer to reaching some lane of target way, used to set up a
// lane change (spec.md §4.6, "schedule a lane change to a lane that does
// reach it").
func laneTowardWay(from *network.Lane, cr *network.Crossroad, target *network.Way) *network.Lane {
	for _, cl := range cr.CrossingLanes {
		if cl.To.Way != target {
			continue
		}
		if from.Left != nil && canReach(cr, from.Left, target) {
			return from.Left
		}
		if from.Right != nil && canReach(cr, from.Right, target) {
			return from.Right
		}
	}
	if from.Left != nil {
		return from.Left
	}
	return from.Right
}

func canReach(cr *network.Crossroad, lane *network.Lane, target *network.Way) bool {
	for _, cl := range cr.CrossingLanesFrom(lane) {
		if cl.To.Way == target {
			return true
		}
	}
	return false
}
