package network_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roadsim-go/network"
)

// fourWay builds a + intersection: node 0 is the crossroad, nodes 1..4
// sit north, east, south, west of it, each connected by a two-way Way.
func fourWay(t *testing.T) *network.Network {
	t.Helper()
	nodes := []network.NodeInput{
		{ID: 0, Lat: 0, Lng: 0},
		{ID: 1, Lat: 1, Lng: 0},  // north
		{ID: 2, Lat: 0, Lng: 1},  // east
		{ID: 3, Lat: -1, Lng: 0}, // south
		{ID: 4, Lat: 0, Lng: -1}, // west
	}
	ways := []network.WayInput{
		{NodeIDs: []uint64{0, 1}, Tags: map[string]string{"highway": "primary", "maxspeed": "50", "lanes": "2"}},
		{NodeIDs: []uint64{0, 2}, Tags: map[string]string{"highway": "primary", "maxspeed": "50", "lanes": "2"}},
		{NodeIDs: []uint64{0, 3}, Tags: map[string]string{"highway": "secondary", "maxspeed": "50", "lanes": "2"}},
		{NodeIDs: []uint64{0, 4}, Tags: map[string]string{"highway": "secondary", "maxspeed": "50", "lanes": "2"}},
	}
	n, err := network.Build(nodes, ways)
	require.NoError(t, err)
	return n
}

func TestBuildAssignsCrossroadPerEndpoint(t *testing.T) {
	n := fourWay(t)
	assert.Len(t, n.Crossroads, 5)
	center := n.Crossroads[0]
	assert.Len(t, center.IncidentWays, 4)
}

func TestTurnClassificationFourWay(t *testing.T) {
	n := fourWay(t)
	center := n.Crossroads[0]
	northWay := center.IncidentWays[0]
	ct := center.Turns[northWay.ID]
	require.NotNil(t, ct.Through)
	require.NotNil(t, ct.Left)
	require.NotNil(t, ct.Right)
	// North's through partner must be the south way.
	assert.True(t, ct.Through.From().Lat == -1 || ct.Through.To().Lat == -1)
}

func TestMainWaysHighestPriorityAtMostTwo(t *testing.T) {
	n := fourWay(t)
	center := n.Crossroads[0]
	assert.Len(t, center.MainWays, 2)
	for _, w := range center.MainWays {
		assert.Equal(t, network.HighwayPrimary, w.Highway)
	}
}

func TestLaneCountResolutionOnewayDefault(t *testing.T) {
	nodes := []network.NodeInput{{ID: 0, Lat: 0, Lng: 0}, {ID: 1, Lat: 0, Lng: 1}}
	ways := []network.WayInput{{NodeIDs: []uint64{0, 1}, Tags: map[string]string{"oneway": "yes"}}}
	n, err := network.Build(nodes, ways)
	require.NoError(t, err)
	var w *network.Way
	for _, x := range n.Ways {
		w = x
	}
	require.NotNil(t, w)
	assert.Len(t, w.Lanes.Forward, 1)
	assert.Len(t, w.Lanes.Backward, 0)
}

func TestWaySplitAtInteriorCrossroad(t *testing.T) {
	// A straight line 0-1-2 where 1 also terminates a side way, so 1
	// becomes a Crossroad and the 0-2 way must split into 0-1 and 1-2.
	nodes := []network.NodeInput{
		{ID: 0, Lat: 0, Lng: 0},
		{ID: 1, Lat: 0, Lng: 1},
		{ID: 2, Lat: 0, Lng: 2},
		{ID: 3, Lat: 1, Lng: 1},
	}
	ways := []network.WayInput{
		{NodeIDs: []uint64{0, 1, 2}, Tags: map[string]string{"lanes": "2"}},
		{NodeIDs: []uint64{1, 3}, Tags: map[string]string{"lanes": "2"}},
	}
	n, err := network.Build(nodes, ways)
	require.NoError(t, err)
	cr, ok := n.Crossroads[1]
	require.True(t, ok)
	assert.Len(t, cr.IncidentWays, 3)
}

func TestCrossingLaneConflictSetExcludesSameFromLane(t *testing.T) {
	n := fourWay(t)
	center := n.Crossroads[0]
	require.NotEmpty(t, center.CrossingLanes)
	x := center.CrossingLanes[0]
	set := network.ConflictSet(center, x)
	for _, y := range set {
		assert.NotEqual(t, x.From, y.From)
		assert.NotSame(t, x, y)
	}
}
