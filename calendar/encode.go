package calendar

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/tsinghua-fib-lab/roadsim-go/network"
)

// Encode serializes net's topology and cal's accumulated event streams
// into the single binary blob spec.md §6 describes, big-endian, no
// padding, in the exact record order the spec lists. Nodes, Ways and
// Crossroads are written in ascending-id order regardless of the
// network's internal map iteration order, which is required for the
// byte-identical-output determinism property (spec.md §8).
func Encode(net *network.Network, cal *Calendar) ([]byte, error) {
	w := &writer{buf: &bytes.Buffer{}}

	nodes := sortedNodes(net)
	ways := sortedWays(net)
	crossroads := sortedCrossroads(net)

	w.write(uint32(len(nodes)))
	w.write(uint32(len(ways)))
	w.write(uint32(len(crossroads)))
	w.write(uint32(len(cal.carEvents)))
	w.write(uint32(len(cal.crossroadEvents)))

	for _, nd := range nodes {
		w.write(nd.ID)
		w.write(float32(nd.Pos.Lat))
		w.write(float32(nd.Pos.Lng))
	}

	for _, wy := range ways {
		lanes := make([]*network.Lane, 0, len(wy.Lanes.Forward)+len(wy.Lanes.Backward))
		lanes = append(lanes, wy.Lanes.Forward...)
		lanes = append(lanes, wy.Lanes.Backward...)

		w.write(wy.ID)
		w.write(uint32(wy.MaxSpeed))
		w.write(uint32(len(lanes)))
		for _, l := range lanes {
			w.writeLane(l)
		}
	}

	for _, cr := range crossroads {
		w.write(cr.ID)
		w.write(cr.Node.ID)
		w.write(cr.Node.HasTrafficLight)
		w.write(float32(cr.Node.Pos.Lat))
		w.write(float32(cr.Node.Pos.Lng))
		w.write(uint32(len(cr.CrossingLanes)))
		for _, cl := range cr.CrossingLanes {
			w.writeLane(cl.Lane)
		}
	}

	for _, ev := range cal.carEvents {
		w.write(float32(ev.Time))
		w.write(uint32(ev.CarID))
		w.write(int32(ev.WayID))
		w.write(int32(ev.CrossroadID))
		w.write(ev.LaneID)
		w.write(float32(ev.PositionPercent))
		w.write(float32(ev.Speed))
	}

	for _, ev := range cal.crossroadEvents {
		w.write(float32(ev.Time))
		w.write(ev.CrossroadID)
		w.write(uint32(len(ev.EnabledLaneIDs)))
		for _, id := range ev.EnabledLaneIDs {
			w.write(id)
		}
	}

	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// writer accumulates the first binary.Write error so Encode's call
// sites read top to bottom without per-field error checks.
type writer struct {
	buf *bytes.Buffer
	err error
}

func (w *writer) write(v any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.buf, binary.BigEndian, v)
}

// writeLane writes one lane sub-record: (lane_id, node_count, 9
// booleans) followed by node_count lat/lng pairs (spec.md §6 item 3).
// The four OSM sub-token booleans (merge_to_right, slight_right,
// merge_to_left, slight_left) are always written false: this repo's
// Turn model already folds those raw tags into {Through,Right} /
// {Through,Left} at parse time (network.normalizeTurn), so the original
// sub-token is not retained anywhere to re-derive it from.
func (w *writer) writeLane(l *network.Lane) {
	pts := l.Polyline.Points()
	w.write(l.ID)
	w.write(uint32(len(pts)))
	w.write(l.IsForward)
	w.write(len(l.PermittedTurns) == 0)
	w.write(l.PermittedTurns[network.TurnLeft])
	w.write(l.PermittedTurns[network.TurnRight])
	w.write(l.PermittedTurns[network.TurnThrough])
	w.write(false) // merge_to_right
	w.write(false) // merge_to_left
	w.write(false) // slight_right
	w.write(false) // slight_left
	for _, p := range pts {
		w.write(float32(p.Lat))
		w.write(float32(p.Lng))
	}
}

func sortedNodes(net *network.Network) []*network.Node {
	out := make([]*network.Node, 0, len(net.Nodes))
	for _, n := range net.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedWays(net *network.Network) []*network.Way {
	out := make([]*network.Way, 0, len(net.Ways))
	for _, w := range net.Ways {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedCrossroads(net *network.Network) []*network.Crossroad {
	out := make([]*network.Crossroad, 0, len(net.Crossroads))
	for _, cr := range net.Crossroads {
		out = append(out, cr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
