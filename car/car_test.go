package car_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roadsim-go/car"
	"github.com/tsinghua-fib-lab/roadsim-go/geo"
	"github.com/tsinghua-fib-lab/roadsim-go/kernel"
	"github.com/tsinghua-fib-lab/roadsim-go/network"
	"github.com/tsinghua-fib-lab/roadsim-go/utils/randengine"
)

// recordingSink collects every emitted car event, mirroring calendar.Calendar's
// RecordCarEvent shape without depending on that package.
type recordingSink struct {
	events     []float64 // times
	violations int
}

func (s *recordingSink) RecordCarEvent(time float64, carID uint64, wayID int64, crossroadID int64, laneID uint32, positionPercent float64, speed float64) {
	s.events = append(s.events, time)
}

func (s *recordingSink) RecordPhysicalViolation(carID uint64, time float64) {
	s.violations++
}

func straightLane(id uint32) *network.Lane {
	pl := geo.NewPolyline([]geo.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.02}})
	return network.NewLane(id, pl, true, network.TurnSet{network.TurnThrough: true})
}

func TestPositionAtExtrapolatesBySpeed(t *testing.T) {
	k := kernel.New()
	sink := &recordingSink{}
	c := car.New(1, k, randengine.New(1), nil, sink, car.Config{})
	lane := straightLane(1)
	c.Length = 0.004
	c.AttachInitial(lane, 0)
	c.SetSpeed(36, 0) // 36 km/h = 0.01 km/s

	assert.InDelta(t, 0.0, c.Pos(), 1e-9)
	assert.InDelta(t, 0.1, c.PositionAt(10), 1e-9)
	assert.Len(t, sink.events, 1)
}

func TestCarAheadFollowsQueueOrder(t *testing.T) {
	k := kernel.New()
	sink := &recordingSink{}
	lane := straightLane(1)

	behind := car.New(1, k, randengine.New(1), nil, sink, car.Config{})
	behind.Length = 0.004
	behind.AttachInitial(lane, 0)

	ahead := car.New(2, k, randengine.New(2), nil, sink, car.Config{})
	ahead.Length = 0.004
	ahead.AttachInitial(lane, 0.05)

	require.Equal(t, ahead, behind.CarAhead())
	assert.Nil(t, ahead.CarAhead())
}

func TestSetSpeedWakesCarBehind(t *testing.T) {
	k := kernel.New()
	sink := &recordingSink{}
	lane := straightLane(1)

	behind := car.New(1, k, randengine.New(1), nil, sink, car.Config{})
	behind.Length = 0.004
	behind.AttachInitial(lane, 0)

	ahead := car.New(2, k, randengine.New(2), nil, sink, car.Config{})
	ahead.Length = 0.004
	ahead.AttachInitial(lane, 0.05)

	before := behind.EnvironmentUpdateEvent
	ahead.SetSpeed(30, 0)
	assert.NotSame(t, before, behind.EnvironmentUpdateEvent)
}

// deadEndNetwork builds a single two-way Way whose far endpoint has no
// other incident way, forcing the dead-end u-turn fallback (the
// directUTurn path, DESIGN.md Open Question decision 4).
func deadEndNetwork(t *testing.T) *network.Network {
	t.Helper()
	nodes := []network.NodeInput{
		{ID: 0, Lat: 0, Lng: 0},
		{ID: 1, Lat: 0, Lng: 0.05},
	}
	ways := []network.WayInput{
		{NodeIDs: []uint64{0, 1}, Tags: map[string]string{"highway": "residential", "maxspeed": "30", "lanes": "2"}},
	}
	n, err := network.Build(nodes, ways)
	require.NoError(t, err)
	return n
}

func TestCarTakesDeadEndUTurnAndContinues(t *testing.T) {
	net := deadEndNetwork(t)
	k := kernel.New()
	rng := randengine.New(7)
	sink := &recordingSink{}

	way := net.Ways[0]
	lane := way.Lanes.Forward[0]

	c := car.New(1, k, rng, net, sink, car.Config{CrossroadBlockingTime: 5})
	c.Length = 0.004
	c.DesiredSpeed = 30
	c.Way = way
	c.State = car.StateCrossing
	c.AttachInitial(lane, lane.Length-0.01)

	done := make(chan struct{})
	k.Spawn(func(t *kernel.Task) {
		c.Run(t)
		close(done)
	})

	k.Run(120)

	assert.NotEmpty(t, sink.events)
	assert.Zero(t, sink.violations)
}
