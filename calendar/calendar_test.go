package calendar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roadsim-go/calendar"
	"github.com/tsinghua-fib-lab/roadsim-go/network"
)

func twoNodeNetwork(t *testing.T) *network.Network {
	t.Helper()
	nodes := []network.NodeInput{
		{ID: 1, Lat: 0, Lng: 0},
		{ID: 2, Lat: 0, Lng: 1},
	}
	ways := []network.WayInput{
		{NodeIDs: []uint64{1, 2}, Tags: map[string]string{"lanes": "1", "oneway": "yes", "maxspeed": "50"}},
	}
	n, err := network.Build(nodes, ways)
	require.NoError(t, err)
	return n
}

func TestRecordCarEventAccumulatesAndCounts(t *testing.T) {
	cal := calendar.New()
	cal.RecordCarEvent(1.5, 7, 3, -1, 4, 12.5, 10)
	cal.RecordCarEvent(2.5, 7, 3, -1, 4, 20.0, 10)

	events := cal.CarEvents()
	require.Len(t, events, 2)
	assert.Equal(t, uint64(7), events[0].CarID)
	assert.Equal(t, 2, cal.CollectedStats().CarEvents)
}

func TestRecordCrossroadEventCopiesLaneSlice(t *testing.T) {
	cal := calendar.New()
	ids := []uint32{1, 2, 3}
	cal.RecordCrossroadEvent(1.0, 9, ids)
	ids[0] = 999 // mutating the caller's slice must not affect the stored copy

	events := cal.CrossroadEvents()
	require.Len(t, events, 1)
	assert.Equal(t, []uint32{1, 2, 3}, events[0].EnabledLaneIDs)
}

func TestEncodeIsDeterministic(t *testing.T) {
	n := twoNodeNetwork(t)
	cal := calendar.New()
	cal.RecordCarEvent(0.1, 1, 0, -1, 0, 5.0, 10)
	cal.RecordCrossroadEvent(0.2, 0, []uint32{0})

	blob1, err := calendar.Encode(n, cal)
	require.NoError(t, err)
	blob2, err := calendar.Encode(n, cal)
	require.NoError(t, err)
	assert.Equal(t, blob1, blob2)
	assert.NotEmpty(t, blob1)
}

func TestEncodeHeaderCounts(t *testing.T) {
	n := twoNodeNetwork(t)
	cal := calendar.New()
	cal.RecordCarEvent(0.1, 1, 0, -1, 0, 5.0, 10)

	blob, err := calendar.Encode(n, cal)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(blob), 20)

	nodeCount := be32(blob[0:4])
	wayCount := be32(blob[4:8])
	crossroadCount := be32(blob[8:12])
	carEventCount := be32(blob[12:16])
	crossroadEventCount := be32(blob[16:20])

	assert.Equal(t, uint32(len(n.Nodes)), nodeCount)
	assert.Equal(t, uint32(len(n.Ways)), wayCount)
	assert.Equal(t, uint32(len(n.Crossroads)), crossroadCount)
	assert.Equal(t, uint32(1), carEventCount)
	assert.Equal(t, uint32(0), crossroadEventCount)
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
