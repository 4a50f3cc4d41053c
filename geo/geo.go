// Package geo implements the geometry and unit conversions spec.md §1/§2
// requires: great-circle distance and bearing on lat/lng, and walking a
// polyline to recover a position. All distances are kilometers, all
// angles are degrees unless marked radians, all speeds km/h — conversions
// are explicit at every boundary, per spec.md §2.
//
// Grounded on the teacher's use of git.fiblab.net/general/common/v2/geometry
// in entity/lane/lane.go (ProjectToLane, GetPositionByS, GetDirectionByS):
// that package is a private-registry dependency built for a projected XY
// plane, not lat/lng great-circle math, so this package reimplements part
// of the same *shape* of API (polyline length table, position-by-distance)
// natively for geographic coordinates; it has no direction-by-distance or
// point-to-polyline projection using the standard library's math package — a
// system-boundary numeric routine with no ecosystem library offering more
// than math.Sin/Cos/Atan2 would (see DESIGN.md).
package geo

import "math"

const earthRadiusKm = 6371.0088

// Point is a geographic position in degrees.
type Point struct {
	Lat, Lng float64
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// HaversineKm returns the great-circle distance between a and b, in km.
func HaversineKm(a, b Point) float64 {
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLat := lat2 - lat1
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// BearingDeg returns the initial bearing from a to b, in degrees [0, 360).
func BearingDeg(a, b Point) float64 {
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLng := toRad(b.Lng - a.Lng)
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	theta := toDeg(math.Atan2(y, x))
	return math.Mod(theta+360, 360)
}

// Destination returns the point reached by travelling distKm km from p at
// bearing bearingDeg degrees.
func Destination(p Point, bearingDeg, distKm float64) Point {
	lat1 := toRad(p.Lat)
	lng1 := toRad(p.Lng)
	brng := toRad(bearingDeg)
	angDist := distKm / earthRadiusKm

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angDist) + math.Cos(lat1)*math.Sin(angDist)*math.Cos(brng))
	lng2 := lng1 + math.Atan2(
		math.Sin(brng)*math.Sin(angDist)*math.Cos(lat1),
		math.Cos(angDist)-math.Sin(lat1)*math.Sin(lat2),
	)
	return Point{Lat: toDeg(lat2), Lng: toDeg(lng2)}
}

// Polyline is an ordered list of points, walked by cumulative distance.
type Polyline struct {
	points     []Point
	cumulative []float64 // cumulative[i] = distance from points[0] to points[i]
}

// NewPolyline precomputes the cumulative-length table for pts.
func NewPolyline(pts []Point) Polyline {
	cum := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		cum[i] = cum[i-1] + HaversineKm(pts[i-1], pts[i])
	}
	return Polyline{points: pts, cumulative: cum}
}

// Length returns the polyline's total length in km.
func (p Polyline) Length() float64 {
	if len(p.cumulative) == 0 {
		return 0
	}
	return p.cumulative[len(p.cumulative)-1]
}

// Points returns the underlying point list.
func (p Polyline) Points() []Point { return p.points }

// AtDistance returns the point reached after walking distKm km along the
// polyline from its start, clamped to [0, Length()].
func (p Polyline) AtDistance(distKm float64) Point {
	n := len(p.points)
	if n == 0 {
		return Point{}
	}
	if n == 1 || distKm <= 0 {
		return p.points[0]
	}
	total := p.Length()
	if distKm >= total {
		return p.points[n-1]
	}
	i := 1
	for i < n-1 && p.cumulative[i] < distKm {
		i++
	}
	segLen := p.cumulative[i] - p.cumulative[i-1]
	if segLen <= 0 {
		return p.points[i-1]
	}
	frac := (distKm - p.cumulative[i-1]) / segLen
	return blend(p.points[i-1], p.points[i], frac)
}

func blend(a, b Point, frac float64) Point {
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*frac,
		Lng: a.Lng + (b.Lng-a.Lng)*frac,
	}
}

// SecondPoint returns the second point of the polyline as seen from its
// start, used by crossroad turn classification (§4.3) to compute the
// bearing from a node to its adjacent way.
func (p Polyline) SecondPoint() Point {
	if len(p.points) < 2 {
		return p.points[0]
	}
	return p.points[1]
}

// KmhToKmPerSec converts a km/h speed to km/s.
func KmhToKmPerSec(kmh float64) float64 { return kmh / 3600 }
