package network

import (
	"math"

	"github.com/tsinghua-fib-lab/roadsim-go/geo"
)

// classifyTurns implements spec.md §4.3: for every incident Way of cr,
// determine which of the other incident Ways is its through/left/right
// partner by bearing-angle bin, with the documented tie-breaking.
func (n *Network) classifyTurns(cr *Crossroad) {
	bearings := make(map[uint32]float64, len(cr.IncidentWays))
	for _, w := range cr.IncidentWays {
		bearings[w.ID] = bearingFromNode(cr.Node, w)
	}

	for _, wi := range cr.IncidentWays {
		others := make([]*Way, 0, len(cr.IncidentWays)-1)
		for _, wj := range cr.IncidentWays {
			if wj != wi {
				others = append(others, wj)
			}
		}
		cr.Turns[wi.ID] = classifyOne(bearings[wi.ID], others, bearings)
	}
}

// bearingFromNode returns the bearing from cr's Node to the adjacent
// intermediate node of w (the second node from the Node's side).
func bearingFromNode(node *Node, w *Way) float64 {
	var adjacent geo.Point
	if w.From() == node {
		if len(w.Nodes) > 1 {
			adjacent = w.Nodes[1].Pos
		} else {
			adjacent = w.To().Pos
		}
	} else {
		if len(w.Nodes) > 1 {
			adjacent = w.Nodes[len(w.Nodes)-2].Pos
		} else {
			adjacent = w.From().Pos
		}
	}
	return geo.BearingDeg(node.Pos, adjacent)
}

type binned struct {
	way   *Way
	delta float64
	bin   Turn // TurnRight, TurnThrough, TurnLeft, or TurnNone if unclassified
}

func classifyOne(theta float64, others []*Way, bearings map[uint32]float64) CrossroadTurn {
	if len(others) == 1 {
		// "If exactly one way is classified, promote it to through
		// regardless of bin" (spec.md §4.3).
		return CrossroadTurn{Through: others[0]}
	}

	entries := make([]binned, 0, len(others))
	for _, wj := range others {
		delta := mod360(bearings[wj.ID] - theta)
		entries = append(entries, binned{way: wj, delta: delta, bin: binOf(delta)})
	}

	var throughCandidates, rightCandidates, leftCandidates []binned
	for _, e := range entries {
		switch e.bin {
		case TurnThrough:
			throughCandidates = append(throughCandidates, e)
		case TurnRight:
			rightCandidates = append(rightCandidates, e)
		case TurnLeft:
			leftCandidates = append(leftCandidates, e)
		}
	}

	var through, left, right *Way

	if len(throughCandidates) > 0 {
		best := closestTo180(throughCandidates)
		through = best.way
		for _, e := range throughCandidates {
			if e.way == through {
				continue
			}
			// "re-assigned to left/right based on sign of (Δ-180)"
			if e.delta-180 < 0 {
				rightCandidates = append(rightCandidates, e)
			} else {
				leftCandidates = append(leftCandidates, e)
			}
		}
	}
	if len(rightCandidates) > 0 {
		right = closestToCenter(rightCandidates, 77.5).way
	}
	if len(leftCandidates) > 0 {
		left = closestToCenter(leftCandidates, 282.5).way
	}

	return CrossroadTurn{Through: through, Left: left, Right: right}
}

func mod360(x float64) float64 {
	return math.Mod(math.Mod(x, 360)+360, 360)
}

func binOf(delta float64) Turn {
	switch {
	case delta >= 20 && delta < 135:
		return TurnRight
	case delta >= 135 && delta < 225:
		return TurnThrough
	case delta >= 225 && delta <= 340:
		return TurnLeft
	default:
		return TurnNone
	}
}

func closestTo180(entries []binned) binned {
	best := entries[0]
	bestDist := absf(best.delta - 180)
	for _, e := range entries[1:] {
		d := absf(e.delta - 180)
		if d < bestDist {
			best, bestDist = e, d
		}
	}
	return best
}

func closestToCenter(entries []binned, center float64) binned {
	best := entries[0]
	bestDist := absf(best.delta - center)
	for _, e := range entries[1:] {
		d := absf(e.delta - center)
		if d < bestDist {
			best, bestDist = e, d
		}
	}
	return best
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// computeMainWays implements the GLOSSARY's "Main way" definition: the
// Ways sharing the highest Highway priority among cr's incident ways,
// only if at most two such Ways exist.
func (n *Network) computeMainWays(cr *Crossroad) {
	if len(cr.IncidentWays) == 0 {
		return
	}
	best := cr.IncidentWays[0].Highway
	for _, w := range cr.IncidentWays[1:] {
		if w.Highway < best {
			best = w.Highway
		}
	}
	var top []*Way
	for _, w := range cr.IncidentWays {
		if w.Highway == best {
			top = append(top, w)
		}
	}
	if len(top) <= 2 {
		cr.MainWays = top
	}
}
