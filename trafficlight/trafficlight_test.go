package trafficlight_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roadsim-go/kernel"
	"github.com/tsinghua-fib-lab/roadsim-go/network"
	"github.com/tsinghua-fib-lab/roadsim-go/trafficlight"
	"github.com/tsinghua-fib-lab/roadsim-go/utils/randengine"
)

type recordingSink struct {
	events [][]uint32
}

func (r *recordingSink) RecordCrossroadEvent(time float64, crossroadID uint32, enabledLaneIDs []uint32) {
	r.events = append(r.events, enabledLaneIDs)
}

func fourWayNetwork(t *testing.T) *network.Network {
	t.Helper()
	nodes := []network.NodeInput{
		{ID: 0, Lat: 0, Lng: 0, Tags: map[string]string{"highway": "traffic_signals"}},
		{ID: 1, Lat: 1, Lng: 0},
		{ID: 2, Lat: 0, Lng: 1},
		{ID: 3, Lat: -1, Lng: 0},
		{ID: 4, Lat: 0, Lng: -1},
	}
	ways := []network.WayInput{
		{NodeIDs: []uint64{0, 1}, Tags: map[string]string{"lanes": "2"}},
		{NodeIDs: []uint64{0, 2}, Tags: map[string]string{"lanes": "2"}},
		{NodeIDs: []uint64{0, 3}, Tags: map[string]string{"lanes": "2"}},
		{NodeIDs: []uint64{0, 4}, Tags: map[string]string{"lanes": "2"}},
	}
	n, err := network.Build(nodes, ways)
	require.NoError(t, err)
	return n
}

func TestPhaseCycleDisablesEverythingDuringPhaseB(t *testing.T) {
	n := fourWayNetwork(t)
	cr := n.Crossroads[0]
	require.NotEmpty(t, cr.CrossingLanes)

	k := kernel.New()
	sink := &recordingSink{}
	ctrl := &trafficlight.Controller{Crossroad: cr, IntervalSec: 20, DisabledSec: 5, Sink: sink}
	rng := randengine.New(1)

	k.Spawn(func(task *kernel.Task) {
		ctrl.Run(k, task, rng)
	})
	k.Run(20) // offset + first B

	sawAllDisabled := false
	for _, enabled := range sink.events {
		if len(enabled) == 0 {
			sawAllDisabled = true
		}
	}
	assert.True(t, sawAllDisabled)
}

func TestPhaseAEnablesOnlyWays0AndThroughPartner(t *testing.T) {
	n := fourWayNetwork(t)
	cr := n.Crossroads[0]
	ways0 := cr.IncidentWays[0]
	ct := cr.Turns[ways0.ID]

	k := kernel.New()
	sink := &recordingSink{}
	ctrl := &trafficlight.Controller{Crossroad: cr, IntervalSec: 20, DisabledSec: 5, Sink: sink}
	rng := randengine.New(1)

	k.Spawn(func(task *kernel.Task) {
		ctrl.Run(k, task, rng)
	})
	k.Run(0.001)

	require.NotEmpty(t, sink.events)
	firstEnabled := sink.events[0]
	for _, cl := range cr.CrossingLanes {
		wasEnabled := false
		for _, id := range firstEnabled {
			if id == cl.ID {
				wasEnabled = true
			}
		}
		if cl.From.Way == ways0 || cl.From.Way == ct.Through {
			assert.True(t, wasEnabled)
		} else {
			assert.False(t, wasEnabled)
		}
	}
}
