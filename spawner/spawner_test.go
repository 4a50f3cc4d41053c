package spawner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roadsim-go/car"
	"github.com/tsinghua-fib-lab/roadsim-go/kernel"
	"github.com/tsinghua-fib-lab/roadsim-go/network"
	"github.com/tsinghua-fib-lab/roadsim-go/spawner"
	"github.com/tsinghua-fib-lab/roadsim-go/utils/randengine"
)

type nullSink struct{}

func (nullSink) RecordCarEvent(time float64, carID uint64, wayID int64, crossroadID int64, laneID uint32, positionPercent float64, speed float64) {
}

func fourWay(t *testing.T) *network.Network {
	t.Helper()
	nodes := []network.NodeInput{
		{ID: 0, Lat: 0, Lng: 0},
		{ID: 1, Lat: 1, Lng: 0},
		{ID: 2, Lat: 0, Lng: 1},
		{ID: 3, Lat: -1, Lng: 0},
		{ID: 4, Lat: 0, Lng: -1},
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

func TestSpawnInitialFleetPlacesEveryCarOnADrivableLane(t *testing.T) {
	net := fourWay(t)
	k := kernel.New()
	rng := randengine.New(42)
	s := spawner.New(k, rng, net, nullSink{}, car.Config{CrossroadBlockingTime: 5})

	require.NoError(t, s.SpawnInitialFleet(6))
	assert.Equal(t, 6, s.Spawns)
	assert.Equal(t, 0, s.Despawns)

	occupied := 0
	for _, w := range net.Ways {
		for _, l := range append(append([]*network.Lane(nil), w.Lanes.Forward...), w.Lanes.Backward...) {
			occupied += l.Queue.Len()
		}
	}
	assert.Equal(t, 6, occupied)
}

func TestSpawnInitialFleetErrorsOnLanelessNetwork(t *testing.T) {
	// A network assembled with zero ways has nothing to place a car on.
	net, err := network.Build(nil, nil)
	require.NoError(t, err)
	k := kernel.New()
	rng := randengine.New(1)
	s := spawner.New(k, rng, net, nullSink{}, car.Config{})

	err = s.SpawnInitialFleet(1)
	assert.Error(t, err)
}

func TestOnSpawnHookFiresOncePerCar(t *testing.T) {
	net := fourWay(t)
	k := kernel.New()
	rng := randengine.New(3)
	s := spawner.New(k, rng, net, nullSink{}, car.Config{CrossroadBlockingTime: 5})

	count := 0
	s.OnSpawn = func() { count++ }

	require.NoError(t, s.SpawnInitialFleet(4))
	assert.Equal(t, 4, count)
}
