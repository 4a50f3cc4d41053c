package engine_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roadsim-go/config"
	"github.com/tsinghua-fib-lab/roadsim-go/engine"
	"github.com/tsinghua-fib-lab/roadsim-go/network"
)

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

func testConfig() config.Config {
	cfg := config.Default()
	cfg.VehicleCount = 8
	cfg.TimeSpan = 30
	cfg.Seed = 123
	return cfg
}

func TestSimulateProducesNonEmptyBlobAndStats(t *testing.T) {
	net := fourWay(t)
	cfg := testConfig()

	result, err := engine.Simulate(net, cfg)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Blob)
	assert.Equal(t, 0, result.Stats.PhysicalViolations)
	assert.GreaterOrEqual(t, result.Stats.CarEvents, int(cfg.VehicleCount))
}

func TestSimulateIsDeterministicForSameSeed(t *testing.T) {
	cfg := testConfig()

	r1, err := engine.Simulate(fourWay(t), cfg)
	require.NoError(t, err)
	r2, err := engine.Simulate(fourWay(t), cfg)
	require.NoError(t, err)

	assert.Equal(t, r1.Blob, r2.Blob)
	assert.Equal(t, r1.Stats, r2.Stats)
}

func TestSimulateFleetSizeStaysStationary(t *testing.T) {
	net := fourWay(t)
	cfg := testConfig()

	result, err := engine.Simulate(net, cfg)
	require.NoError(t, err)
	assert.Equal(t, result.Stats.Spawns-int(cfg.VehicleCount), result.Stats.Despawns)
}

func TestLoadNetworkParsesPreparedNetworkFile(t *testing.T) {
	nf := engine.NetworkFile{
		Nodes: []engine.NodeRecord{
			{ID: 0, Lat: 0, Lng: 0},
			{ID: 1, Lat: 0, Lng: 0.05},
		},
		Ways: []engine.WayRecord{
			{NodeIDs: []uint64{0, 1}, Tags: map[string]string{"highway": "residential", "maxspeed": "30", "lanes": "2"}},
		},
	}
	raw, err := json.Marshal(nf)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "network.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	net, err := engine.LoadNetwork(path)
	require.NoError(t, err)
	assert.Len(t, net.Ways, 1)
	assert.Len(t, net.Nodes, 2)
}
