// Package spawner creates and replaces the simulated fleet (spec.md
// §4.8): N initial cars placed by uniform random draw, one replacement
// per despawn so the fleet size stays stationary. Grounded on the
// teacher's entity/person/manager.go spawn/despawn bookkeeping
// (nextPersonID counter, data map keyed by id), generalized from its
// protobuf-request-driven add() to a seeded-random placement loop.
package spawner

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/roadsim-go/car"
	"github.com/tsinghua-fib-lab/roadsim-go/kernel"
	"github.com/tsinghua-fib-lab/roadsim-go/network"
	"github.com/tsinghua-fib-lab/roadsim-go/utils/randengine"
)

var log = logrus.WithField("module", "spawner")

// Car length and desired-speed sampling ranges (SPEC_FULL.md's
// supplemented feature 2, taken from original_source/'s TrafficSimulator
// spawn routine: length in [0.003, 0.006] km, desired speed in
// [0.5, 1.0] x way.max_speed km/h).
const (
	MinCarLength = 0.003
	MaxCarLength = 0.006
	MinSpeedFrac = 0.5
	MaxSpeedFrac = 1.0
)

// Spawner owns car creation and the spawn-on-despawn replacement loop.
type Spawner struct {
	k    *kernel.Kernel
	rng  *randengine.Engine
	net  *network.Network
	sink car.EventSink
	cfg  car.Config

	ways     []*network.Way
	nextID   uint64
	Despawns int
	Spawns   int

	// OnSpawn and OnDespawn, if set, are called once per spawn/despawn in
	// addition to the spawner's own bookkeeping, so the engine can mirror
	// fleet-size events into the calendar's diagnostic counters without
	// this package importing calendar.
	OnSpawn   func()
	OnDespawn func()
}

// New builds a Spawner over every Way in net that carries at least one
// lane in either direction (a Way with zero lanes cannot host a car).
func New(k *kernel.Kernel, rng *randengine.Engine, net *network.Network, sink car.EventSink, cfg car.Config) *Spawner {
	ways := lo.Filter(wayValues(net), func(w *network.Way, _ int) bool {
		return len(w.Lanes.Forward)+len(w.Lanes.Backward) > 0
	})
	return &Spawner{k: k, rng: rng, net: net, sink: sink, cfg: cfg, ways: ways, nextID: 1}
}

// wayValues returns every Way in net ordered by ID. Map iteration order
// is randomized per-process, and the result feeds randengine.Pick's
// positional draw (spec.md §8's "byte-identical output for identical
// seed"), so the order has to be fixed independently of Go's map.
func wayValues(net *network.Network) []*network.Way {
	out := make([]*network.Way, 0, len(net.Ways))
	for _, w := range net.Ways {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SpawnInitialFleet creates count cars, each uniformly placed per
// spec.md §4.8, and launches its process as a kernel task. Every car is
// wired to replace itself on despawn, keeping the fleet size constant.
func (s *Spawner) SpawnInitialFleet(count int) error {
	if len(s.ways) == 0 {
		return fmt.Errorf("spawner: network has no drivable way")
	}
	for i := 0; i < count; i++ {
		s.spawnOne()
	}
	return nil
}

func (s *Spawner) spawnOne() {
	id := s.nextID
	s.nextID++
	c := car.New(id, s.k, s.rng, s.net, s.sink, s.cfg)
	c.OnDespawn = s.onDespawn

	way := randengine.Pick(s.rng, s.ways)
	lane := s.pickLane(way)
	frac := s.rng.UniformFloat(0.2, 0.8)
	pos := lo.Clamp(frac*lane.Length, 0, lane.Length)

	speedFrac := s.rng.UniformFloat(MinSpeedFrac, MaxSpeedFrac)
	c.Length = s.rng.UniformFloat(MinCarLength, MaxCarLength)
	c.DesiredSpeed = speedFrac * float64(way.MaxSpeed)
	c.Way = way
	c.State = car.StateCrossing

	c.AttachInitial(lane, pos)

	s.Spawns++
	if s.OnSpawn != nil {
		s.OnSpawn()
	}
	s.k.Spawn(c.Run)
}

func (s *Spawner) pickLane(w *network.Way) *network.Lane {
	var all []*network.Lane
	all = append(all, w.Lanes.Forward...)
	all = append(all, w.Lanes.Backward...)
	return randengine.Pick(s.rng, all)
}

func (s *Spawner) onDespawn(_ *car.Car) {
	s.Despawns++
	if s.OnDespawn != nil {
		s.OnDespawn()
	}
	log.Debugf("despawn %d, respawning replacement", s.Despawns)
	s.spawnOne()
}
