// Package trafficlight implements the per-crossroad phase controller
// (spec.md §4.5): a cyclic A→B→C→B process that enables and disables
// subsets of a Crossroad's Crossing Lanes. Grounded on the teacher's
// per-entity background-process pattern (entity/junction, dropped tree,
// pattern retained) adapted to run as a kernel.Task instead of a fixed
// tick callback.
package trafficlight

import (
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/roadsim-go/kernel"
	"github.com/tsinghua-fib-lab/roadsim-go/network"
	"github.com/tsinghua-fib-lab/roadsim-go/utils/randengine"
)

var log = logrus.WithField("module", "trafficlight")

// EventSink receives a crossroad event per phase transition (spec.md
// §4.7). Implemented by calendar.Calendar; kept as an interface here so
// this package does not need to import calendar.
type EventSink interface {
	RecordCrossroadEvent(time float64, crossroadID uint32, enabledLaneIDs []uint32)
}

type phase int

const (
	phaseA phase = iota
	phaseB
	phaseC
)

// Controller runs one Crossroad's traffic-light cycle.
type Controller struct {
	Crossroad     *network.Crossroad
	IntervalSec   float64 // TRAFFIC_LIGHT_INTERVAL, phases A and C
	DisabledSec   float64 // TRAFFIC_LIGHT_DISABLED_TIME, phase B
	Sink          EventSink
}

// Run drives the controller's phase cycle for as long as the kernel
// simulation runs. Only invoked for crossroads whose Node.HasTrafficLight
// is true. Starts with a randomized offset into phase A so that multiple
// lights do not transition in lockstep (spec.md §4.5).
func (c *Controller) Run(k *kernel.Kernel, t *kernel.Task, rng *randengine.Engine) {
	if len(c.Crossroad.IncidentWays) == 0 {
		return
	}
	offset := rng.UniformFloat(0, c.IntervalSec)

	c.apply(k, phaseA)
	if err := k.After(t, offset); err != nil {
		return
	}
	for {
		c.apply(k, phaseB)
		if err := k.After(t, c.DisabledSec); err != nil {
			return
		}
		c.apply(k, phaseC)
		if err := k.After(t, c.IntervalSec); err != nil {
			return
		}
		c.apply(k, phaseB)
		if err := k.After(t, c.DisabledSec); err != nil {
			return
		}
		c.apply(k, phaseA)
		if err := k.After(t, c.IntervalSec); err != nil {
			return
		}
	}
}

// apply sets every Crossing Lane's Disabled flag for ph and emits the
// crossroad event, atomically within this single resume (spec.md §5,
// "a crossroad's phase transitions are atomic").
func (c *Controller) apply(k *kernel.Kernel, ph phase) {
	cr := c.Crossroad
	ways0 := cr.IncidentWays[0]
	ct := cr.Turns[ways0.ID]

	var enabled []uint32
	for _, cl := range cr.CrossingLanes {
		switch ph {
		case phaseA:
			cl.Disabled = !(cl.From.Way == ways0 || cl.From.Way == ct.Through)
		case phaseB:
			cl.Disabled = true
		case phaseC:
			cl.Disabled = !(cl.From.Way == ct.Left || cl.From.Way == ct.Right)
		}
		if !cl.Disabled {
			enabled = append(enabled, cl.ID)
		}
	}

	log.WithField("crossroad", cr.ID).WithField("phase", ph).Debug("phase transition")
	if c.Sink != nil {
		c.Sink.RecordCrossroadEvent(k.Now(), cr.ID, enabled)
	}
}
