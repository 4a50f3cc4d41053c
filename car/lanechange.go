package car

import (
	"math"

	"github.com/tsinghua-fib-lab/roadsim-go/kernel"
	"github.com/tsinghua-fib-lab/roadsim-go/network"
)

// performLaneChange implements spec.md §4.6's lane-change policy: move
// one lane toward c.laneToSwitch, retrying against a blocker until a
// safe gap opens or the attempt is abandoned (Despawning).
func (c *Car) performLaneChange(t *kernel.Task) {
	dest := c.laneToSwitch
	if dest == nil {
		return
	}
	for {
		now := c.k.Now()
		mirrorPos := c.PositionAt(now)
		blocker := findBlocker(dest, mirrorPos, c.Length)
		if blocker == nil {
			c.completeLaneChange(dest, mirrorPos, now)
			return
		}
		if blocker.Speed == 0 && blocker.State != StateQueued {
			c.State = StateDespawning
			return
		}

		endPos := blocker.PositionAt(now) + MinGap + blocker.Length + 0.005
		maxPos := c.Lane.Length - 0.01
		if endPos > maxPos {
			endPos = maxPos
		}
		if endPos < mirrorPos {
			endPos = mirrorPos
		}
		c.SetSpeed(blocker.Speed, now)

		events := []*kernel.Event{c.EnvironmentUpdateEvent, blocker.UpdateEvent}
		arrivalDT := c.timeToBeAtPosition(endPos, now)
		if !math.IsInf(arrivalDT, 1) && arrivalDT >= 0 {
			events = append(events, c.k.Timeout(arrivalDT))
		}
		if _, err := c.k.AnyOf(t, events...); err != nil {
			return
		}
	}
}

func (c *Car) completeLaneChange(dest *network.Lane, mirrorPos, now float64) {
	c.detachFromLane()
	c.attachToLane(dest, mirrorPos)
	c.laneToSwitch = nil
	c.emitEvent(now)
}

// findBlocker looks for a car in dest already occupying the span
// mirrorPos would need (self length + MinGap on either side).
func findBlocker(dest *network.Lane, mirrorPos, length float64) *Car {
	for _, v := range dest.Queue.Values() {
		other, ok := v.(*Car)
		if !ok {
			continue
		}
		guard := length + other.Length + MinGap
		if math.Abs(other.Pos()-mirrorPos) < guard {
			return other
		}
	}
	return nil
}
