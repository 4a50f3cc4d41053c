package network

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/roadsim-go/geo"
)

var log = logrus.WithField("module", "network")

// NodeInput is one row of the prepared-network Node stream (spec.md §6).
type NodeInput struct {
	ID   uint64
	Lat  float64
	Lng  float64
	Tags map[string]string
}

// WayInput is one row of the prepared-network Way stream (spec.md §6).
// NodeIDs is ordered from the Way's origin endpoint to its destination
// endpoint, including interior nodes.
type WayInput struct {
	NodeIDs []uint64
	Tags    map[string]string
}

// Build assembles a Network from prepared Node and Way streams, following
// spec.md §4.2's four-step policy: resolve lane/turn tags, form a
// Crossroad at every Way endpoint, split Ways at interior nodes that
// became Crossroads, then classify turns and generate Crossing Lanes.
func Build(nodeInputs []NodeInput, wayInputs []WayInput) (*Network, error) {
	n := &Network{
		Nodes:      make(map[uint64]*Node, len(nodeInputs)),
		Ways:       make(map[uint32]*Way),
		Crossroads: make(map[uint64]*Crossroad),
	}

	for _, ni := range nodeInputs {
		n.Nodes[ni.ID] = &Node{
			ID:              ni.ID,
			Pos:             geo.Point{Lat: ni.Lat, Lng: ni.Lng},
			HasTrafficLight: ni.Tags["highway"] == "traffic_signals",
		}
	}

	var ways []*Way
	for _, wi := range wayInputs {
		w, err := n.buildWay(wi)
		if err != nil {
			log.WithError(err).Warn("network: dropping malformed way")
			continue
		}
		ways = append(ways, w)
	}

	// Step 2: a Crossroad at every Way endpoint.
	for _, w := range ways {
		n.ensureCrossroad(w.From())
		n.ensureCrossroad(w.To())
	}

	// Step 3: split Ways whose interior node is also a Crossroad endpoint
	// of some other Way (each such node was promoted to a Crossroad by
	// step 2 via its own incident ways; detect it here by checking
	// membership in n.Crossroads among interior nodes).
	final := make([]*Way, 0, len(ways))
	for _, w := range ways {
		final = append(final, n.splitAtInteriorCrossroads(w)...)
	}

	for _, w := range final {
		n.Ways[w.ID] = w
		n.registerWayWithEndpoints(w)
	}

	// Step 4: classify turns, main ways, generate Crossing Lanes. Visited
	// in ID order, not map iteration order: generateCrossingLanes draws
	// Crossing Lane IDs from a shared monotonic counter, so an
	// unordered walk would assign different lane_ids to the same
	// network content across runs (spec.md §8's byte-identical-output
	// guarantee).
	crossroads := make([]*Crossroad, 0, len(n.Crossroads))
	for _, cr := range n.Crossroads {
		crossroads = append(crossroads, cr)
	}
	sort.Slice(crossroads, func(i, j int) bool { return crossroads[i].ID < crossroads[j].ID })
	for _, cr := range crossroads {
		n.classifyTurns(cr)
		n.computeMainWays(cr)
		n.generateCrossingLanes(cr)
	}

	return n, nil
}

func (n *Network) ensureCrossroad(node *Node) *Crossroad {
	if cr, ok := n.Crossroads[node.ID]; ok {
		return cr
	}
	cr := &Crossroad{ID: n.allocCrossroadID(), Node: node, Turns: make(map[uint32]CrossroadTurn)}
	n.Crossroads[node.ID] = cr
	return cr
}

func (n *Network) registerWayWithEndpoints(w *Way) {
	for _, endpoint := range []*Node{w.From(), w.To()} {
		endpoint.Ways = append(endpoint.Ways, w)
		cr := n.ensureCrossroad(endpoint)
		if !containsWay(cr.IncidentWays, w) {
			cr.IncidentWays = append(cr.IncidentWays, w)
		}
	}
}

func containsWay(ways []*Way, w *Way) bool {
	for _, x := range ways {
		if x == w {
			return true
		}
	}
	return false
}

// splitAtInteriorCrossroads implements §4.2 step 3: if any interior node
// of w is already a Crossroad (i.e. is the endpoint of some other Way),
// w is cut into consecutive pieces at each such node, each piece
// preserving w's full lane configuration.
func (n *Network) splitAtInteriorCrossroads(w *Way) []*Way {
	interior := w.Nodes[1 : len(w.Nodes)-1]
	var cutIdx []int
	for i, node := range interior {
		if _, ok := n.Crossroads[node.ID]; ok {
			cutIdx = append(cutIdx, i+1) // index within w.Nodes
		}
	}
	if len(cutIdx) == 0 {
		return []*Way{w}
	}

	bounds := append([]int{0}, append(cutIdx, len(w.Nodes)-1)...)
	var pieces []*Way
	for i := 0; i < len(bounds)-1; i++ {
		nodes := w.Nodes[bounds[i] : bounds[i+1]+1]
		piece := &Way{
			ID:       n.allocWayID(),
			Nodes:    nodes,
			MaxSpeed: w.MaxSpeed,
			Highway:  w.Highway,
		}
		piece.Polyline = geo.NewPolyline(nodePoints(nodes))
		piece.Length = piece.Polyline.Length()
		// Each piece gets its own lanes with the original's per-direction
		// counts and turn sets, laid along the piece's own polyline.
		reversed := geo.NewPolyline(reversePoints(nodePoints(nodes)))
		piece.Lanes.Forward = make([]*Lane, len(w.Lanes.Forward))
		for j, l := range w.Lanes.Forward {
			piece.Lanes.Forward[j] = NewLane(n.allocLaneID(), piece.Polyline, true, l.PermittedTurns)
			piece.Lanes.Forward[j].Way = piece
		}
		piece.Lanes.Backward = make([]*Lane, len(w.Lanes.Backward))
		for j, l := range w.Lanes.Backward {
			piece.Lanes.Backward[j] = NewLane(n.allocLaneID(), reversed, false, l.PermittedTurns)
			piece.Lanes.Backward[j].Way = piece
		}
		linkNeighbors(piece.Lanes.Forward)
		linkNeighbors(piece.Lanes.Backward)
		pieces = append(pieces, piece)
	}
	return pieces
}

func nodePoints(nodes []*Node) []geo.Point {
	pts := make([]geo.Point, len(nodes))
	for i, nd := range nodes {
		pts[i] = nd.Pos
	}
	return pts
}

func (n *Network) buildWay(wi WayInput) (*Way, error) {
	if len(wi.NodeIDs) < 2 {
		return nil, fmt.Errorf("network: way needs >=2 nodes, got %d", len(wi.NodeIDs))
	}
	nodes := make([]*Node, len(wi.NodeIDs))
	for i, id := range wi.NodeIDs {
		nd, ok := n.Nodes[id]
		if !ok {
			return nil, fmt.Errorf("network: way references unknown node %d", id)
		}
		nodes[i] = nd
	}

	oneway := parseBool(wi.Tags["oneway"], false)
	maxSpeed := parseIntDefault(wi.Tags["maxspeed"], 50)
	highway := ParseHighwayClass(wi.Tags["highway"])

	fwdCount, bwdCount := resolveLaneCounts(wi.Tags, oneway)
	fwdCount -= parseIntDefault(wi.Tags["psv:lanes:forward"], 0) + parseIntDefault(wi.Tags["railway:lanes:forward"], 0)
	bwdCount -= parseIntDefault(wi.Tags["psv:lanes:backward"], 0) + parseIntDefault(wi.Tags["railway:lanes:backward"], 0)
	if fwdCount < 0 {
		fwdCount = 0
	}
	if bwdCount < 0 {
		bwdCount = 0
	}

	fwdTurns := parseTurnLanes(wi.Tags["turn:lanes:forward"], fwdCount)
	bwdTurns := parseTurnLanes(wi.Tags["turn:lanes:backward"], bwdCount)

	w := &Way{
		ID:       n.allocWayID(),
		Nodes:    nodes,
		MaxSpeed: maxSpeed,
		Highway:  highway,
	}
	w.Polyline = geo.NewPolyline(nodePoints(nodes))
	w.Length = w.Polyline.Length()

	pl := w.Polyline
	w.Lanes.Forward = make([]*Lane, fwdCount)
	for i := 0; i < fwdCount; i++ {
		w.Lanes.Forward[i] = NewLane(n.allocLaneID(), pl, true, fwdTurns[i])
		w.Lanes.Forward[i].Way = w
	}
	w.Lanes.Backward = make([]*Lane, bwdCount)
	reversed := geo.NewPolyline(reversePoints(nodePoints(nodes)))
	for i := 0; i < bwdCount; i++ {
		w.Lanes.Backward[i] = NewLane(n.allocLaneID(), reversed, false, bwdTurns[i])
		w.Lanes.Backward[i].Way = w
	}
	linkNeighbors(w.Lanes.Forward)
	linkNeighbors(w.Lanes.Backward)

	return w, nil
}

func linkNeighbors(lanes []*Lane) {
	for i, l := range lanes {
		if i > 0 {
			l.Right = lanes[i-1]
		}
		if i < len(lanes)-1 {
			l.Left = lanes[i+1]
		}
	}
}

func reversePoints(pts []geo.Point) []geo.Point {
	out := make([]geo.Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

// resolveLaneCounts implements §4.2 step 1's forward/backward split.
func resolveLaneCounts(tags map[string]string, oneway bool) (fwd, bwd int) {
	total, hasTotal := parseIntOK(tags["lanes"])
	explicitFwd, hasFwd := parseIntOK(tags["lanes:forward"])
	explicitBwd, hasBwd := parseIntOK(tags["lanes:backward"])

	if hasFwd || hasBwd {
		if hasFwd {
			fwd = explicitFwd
		}
		if hasBwd {
			bwd = explicitBwd
		}
		return fwd, bwd
	}

	if !hasTotal {
		total = 1
		if !oneway {
			total = 2
		}
	}
	if oneway {
		return total, 0
	}
	fwd = total / 2
	bwd = total - fwd
	return fwd, bwd
}

// parseTurnLanes parses an OSM turn:lanes string ("left|through|right",
// groups separated by ";" within a lane), normalizes each raw token, and
// reverses the array so index 0 is the outer lane (§4.2 step 1).
func parseTurnLanes(raw string, count int) []TurnSet {
	out := make([]TurnSet, count)
	for i := range out {
		out[i] = TurnSet{}
	}
	if raw == "" {
		return out
	}
	groups := strings.Split(raw, "|")
	for i := 0; i < len(groups) && i < count; i++ {
		set := TurnSet{}
		for _, token := range strings.Split(groups[i], ";") {
			for _, t := range normalizeTurn(strings.TrimSpace(token)) {
				set[t] = true
			}
		}
		out[i] = set
	}
	// reverse so index 0 becomes the outer lane
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func normalizeTurn(raw string) []Turn {
	switch raw {
	case "left":
		return []Turn{TurnLeft}
	case "right":
		return []Turn{TurnRight}
	case "through", "straight":
		return []Turn{TurnThrough}
	case "merge_to_right", "slight_right":
		return []Turn{TurnThrough, TurnRight}
	case "merge_to_left", "slight_left":
		return []Turn{TurnThrough, TurnLeft}
	case "none", "":
		return nil
	default:
		return nil
	}
}

func parseBool(s string, def bool) bool {
	switch s {
	case "yes", "true", "1", "-1":
		return true
	case "no", "false", "0":
		return false
	default:
		return def
	}
}

func parseIntDefault(s string, def int) int {
	if v, ok := parseIntOK(s); ok {
		return v
	}
	return def
}

func parseIntOK(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	// maxspeed sometimes carries a unit suffix like "50 mph"; take the
	// leading numeric field and fall back to the default on failure
	// (spec.md §7, source-data defects repaired at load).
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}
	return v, true
}
