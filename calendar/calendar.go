// Package calendar is the append-only event log (spec.md §4.7) and its
// binary wire encoder (spec.md §6). It implements car.EventSink and
// trafficlight.EventSink so the engine can wire it directly into both
// without either of those packages importing it back (the same
// dependency-inversion shape network/car/trafficlight already use).
// Grounded on the teacher's ecosim output-shape discipline (a single
// append-only ledger drained once at teardown); the binary codec itself
// has no teacher analogue since the teacher speaks protobuf over gRPC,
// a wire format this spec's Non-goals place out of scope for the
// engine layer itself, leaving the concrete byte layout to be built
// fresh from spec.md §6's field-by-field description.
package calendar

// CarEvent is one row of the car-event stream (spec.md §6 item 5).
type CarEvent struct {
	Time            float64
	CarID           uint64
	WayID           int64 // -1 when the car has no current Way (on a Crossing Lane)
	CrossroadID     int64 // -1 when the car has no current Crossroad
	LaneID          uint32
	PositionPercent float64
	Speed           float64
}

// CrossroadEvent is one row of the crossroad-event stream (spec.md §6
// item 6): a traffic-light phase transition and the lanes it enabled.
type CrossroadEvent struct {
	Time           float64
	CrossroadID    uint32
	EnabledLaneIDs []uint32
}

// Stats are the supplemented diagnostic counters (SPEC_FULL.md
// supplemented feature 3): operator-facing visibility that does not
// change the §6 binary wire format.
type Stats struct {
	CarEvents          int
	CrossroadEvents    int
	Spawns             int
	Despawns           int
	PhysicalViolations int
}

// Calendar accumulates every car and crossroad event emitted during a
// run. The kernel is single-threaded and cooperative (only one task
// runs per resume), so no internal locking is needed, matching
// utils/randengine's "single engine, no locking" discipline.
type Calendar struct {
	carEvents       []CarEvent
	crossroadEvents []CrossroadEvent
	stats           Stats
}

// New creates an empty Calendar.
func New() *Calendar {
	return &Calendar{}
}

// RecordCarEvent implements car.EventSink.
func (c *Calendar) RecordCarEvent(time float64, carID uint64, wayID int64, crossroadID int64, laneID uint32, positionPercent float64, speed float64) {
	c.carEvents = append(c.carEvents, CarEvent{
		Time:            time,
		CarID:           carID,
		WayID:           wayID,
		CrossroadID:     crossroadID,
		LaneID:          laneID,
		PositionPercent: positionPercent,
		Speed:           speed,
	})
	c.stats.CarEvents++
}

// RecordCrossroadEvent implements trafficlight.EventSink.
func (c *Calendar) RecordCrossroadEvent(time float64, crossroadID uint32, enabledLaneIDs []uint32) {
	ids := append([]uint32(nil), enabledLaneIDs...)
	c.crossroadEvents = append(c.crossroadEvents, CrossroadEvent{
		Time:           time,
		CrossroadID:    crossroadID,
		EnabledLaneIDs: ids,
	})
	c.stats.CrossroadEvents++
}

// RecordPhysicalViolation implements car.ViolationSink.
func (c *Calendar) RecordPhysicalViolation(carID uint64, time float64) {
	c.stats.PhysicalViolations++
}

// RecordSpawn and RecordDespawn are called by the engine's spawner
// wiring, not by car/spawner directly, to keep spawner.Spawner itself
// free of a calendar dependency.
func (c *Calendar) RecordSpawn()   { c.stats.Spawns++ }
func (c *Calendar) RecordDespawn() { c.stats.Despawns++ }

// CarEvents and CrossroadEvents return the accumulated event streams in
// emission order, for encoding or direct inspection in tests.
func (c *Calendar) CarEvents() []CarEvent             { return c.carEvents }
func (c *Calendar) CrossroadEvents() []CrossroadEvent { return c.crossroadEvents }

// CollectedStats returns a snapshot of the run's diagnostic counters.
func (c *Calendar) CollectedStats() Stats { return c.stats }
