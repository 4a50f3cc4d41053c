package network

import "github.com/tsinghua-fib-lab/roadsim-go/geo"

// DefaultCrossingLaneCapacity is used when the caller does not override
// it via config (spec.md §3 GLOSSARY, "default 5 concurrent holders").
const DefaultCrossingLaneCapacity = 5

// generateCrossingLanes implements spec.md §4.4: for every ordered pair
// of incident ways (from_way, to_way), from_way != to_way, enumerate
// feasible (from_lane, to_lane) pairs and build a Crossing Lane for each.
func (n *Network) generateCrossingLanes(cr *Crossroad) {
	for _, from := range cr.IncidentWays {
		fromLanes := incomingLanesAt(from, cr.Node)
		for _, to := range cr.IncidentWays {
			if to == from {
				continue
			}
			d := classifyDirection(cr, from, to)
			toLanes := outgoingLanesAt(to, cr.Node)
			for _, f := range fromLanes {
				if !f.PermittedTurns.Permits(d) {
					continue
				}
				for _, t := range toLanes {
					cr.CrossingLanes = append(cr.CrossingLanes, n.buildCrossingLane(cr, f, t))
				}
			}
		}
	}
}

func (n *Network) buildCrossingLane(cr *Crossroad, from, to *Lane) *CrossingLane {
	fromEnd := laneEndAt(from, cr.Node)
	toStart := laneStartAt(to, cr.Node)
	pl := geo.NewPolyline([]geo.Point{fromEnd, toStart})
	lane := NewLane(n.allocLaneID(), pl, true, TurnSet{})
	lane.Crossroad = cr
	return NewCrossingLane(lane, from, to, DefaultCrossingLaneCapacity)
}

// incomingLanesAt returns w's lanes that travel toward node.
func incomingLanesAt(w *Way, node *Node) []*Lane {
	if w.To() == node {
		return w.Lanes.Forward
	}
	return w.Lanes.Backward
}

// outgoingLanesAt returns w's lanes that travel away from node.
func outgoingLanesAt(w *Way, node *Node) []*Lane {
	if w.From() == node {
		return w.Lanes.Forward
	}
	return w.Lanes.Backward
}

func laneEndAt(lane *Lane, node *Node) geo.Point {
	pts := lane.Polyline.Points()
	return pts[len(pts)-1]
}

func laneStartAt(lane *Lane, node *Node) geo.Point {
	return lane.Polyline.Points()[0]
}

// CrossingLanesFrom returns every Crossing Lane of cr originating at lane.
func (cr *Crossroad) CrossingLanesFrom(lane *Lane) []*CrossingLane {
	var out []*CrossingLane
	for _, cl := range cr.CrossingLanes {
		if cl.From == lane {
			out = append(out, cl)
		}
	}
	return out
}

// CrossroadAt returns the Crossroad a car travelling along lane (in the
// direction its polyline runs) is heading toward, or nil if lane has no
// owning Way (e.g. a Crossing Lane, which has no "next" crossroad of its
// own — its destination is always its To lane's Way).
func (n *Network) CrossroadAt(lane *Lane) *Crossroad {
	if lane.Way == nil {
		return nil
	}
	var node *Node
	if lane.IsForward {
		node = lane.Way.To()
	} else {
		node = lane.Way.From()
	}
	return n.Crossroads[node.ID]
}

// ClassifyDirection returns the turn direction of the movement from
// from_way to to_way at cr, per cr's turn classification (spec.md §4.4).
func ClassifyDirection(cr *Crossroad, from, to *Way) Turn {
	return classifyDirection(cr, from, to)
}

// classifyDirection returns the turn direction of the movement from
// from_way to to_way at cr, per cr's turn classification (spec.md §4.4).
func classifyDirection(cr *Crossroad, from, to *Way) Turn {
	if from == to {
		return TurnNone
	}
	ct := cr.Turns[from.ID]
	switch to {
	case ct.Through:
		return TurnThrough
	case ct.Left:
		return TurnLeft
	case ct.Right:
		return TurnRight
	default:
		return TurnNone
	}
}

// isStrictlyLeftOf reports whether candidate is reachable from t by
// following Left neighbor references one or more times.
func isStrictlyLeftOf(candidate, t *Lane) bool {
	for l := t.Left; l != nil; l = l.Left {
		if l == candidate {
			return true
		}
	}
	return false
}

// isStrictlyRightOf reports whether candidate is reachable from t by
// following Right neighbor references one or more times.
func isStrictlyRightOf(candidate, t *Lane) bool {
	for l := t.Right; l != nil; l = l.Right {
		if l == candidate {
			return true
		}
	}
	return false
}

func endsInLane(x *CrossingLane, lane *Lane) bool { return x.To == lane }
func endsInWay(x *CrossingLane, way *Way) bool     { return x.To.Way == way }
func originatesInWay(x *CrossingLane, way *Way) bool { return x.From.Way == way }

// ConflictSet computes, for the movement traversed by x (from_way F,
// from_lane f, to_way T, to_lane t), the set of other Crossing Lanes of
// cr that conflict with x per spec.md §4.4's per-direction policy.
func ConflictSet(cr *Crossroad, x *CrossingLane) []*CrossingLane {
	f, t := x.From, x.To
	from, to := f.Way, t.Way
	d := classifyDirection(cr, from, to)
	if d == TurnNone {
		return nil
	}
	ct := cr.Turns[from.ID]
	rightWay, leftWay, throughWay := ct.Right, ct.Left, ct.Through

	var out []*CrossingLane
	for _, y := range cr.CrossingLanes {
		if y == x {
			continue
		}
		if y.From == x.From {
			// "Crossing Lanes that are successors of f itself are excluded."
			continue
		}
		if conflicts(y, d, f, t, from, to, rightWay, leftWay, throughWay) {
			out = append(out, y)
		}
	}
	return out
}

func conflicts(y *CrossingLane, d Turn, f, t *Lane, from, to *Way, rightWay, leftWay, throughWay *Way) bool {
	switch d {
	case TurnThrough:
		if endsInLane(y, t) {
			return true
		}
		if rightWay != nil && originatesInWay(y, rightWay) {
			return true
		}
		if leftWay != nil && originatesInWay(y, leftWay) {
			if (rightWay != nil && endsInWay(y, rightWay)) || isStrictlyLeftOf(y.To, t) {
				return true
			}
		}
		if throughWay != nil && originatesInWay(y, throughWay) {
			if rightWay != nil && endsInWay(y, rightWay) {
				return true
			}
		}
		return false
	case TurnLeft:
		if endsInLane(y, t) {
			return true
		}
		if rightWay != nil && originatesInWay(y, rightWay) {
			if endsInWay(y, from) || isStrictlyLeftOf(y.To, t) {
				return true
			}
		}
		if leftWay != nil && originatesInWay(y, leftWay) {
			if (throughWay != nil && endsInWay(y, throughWay)) || (rightWay != nil && endsInWay(y, rightWay)) {
				return true
			}
		}
		if throughWay != nil && originatesInWay(y, throughWay) {
			if endsInWay(y, from) || isStrictlyLeftOf(y.To, t) {
				return true
			}
		}
		return false
	case TurnRight:
		if endsInLane(y, t) || isStrictlyRightOf(y.To, t) {
			return true
		}
		return false
	default:
		return false
	}
}
