package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/roadsim-go/geo"
)

func TestHaversineKmZeroDistance(t *testing.T) {
	p := geo.Point{Lat: 50.0, Lng: 14.4}
	assert.InDelta(t, 0, geo.HaversineKm(p, p), 1e-9)
}

func TestHaversineKmKnownDistance(t *testing.T) {
	// Roughly 1 degree of longitude at the equator is ~111.2 km.
	a := geo.Point{Lat: 0, Lng: 0}
	b := geo.Point{Lat: 0, Lng: 1}
	assert.InDelta(t, 111.19, geo.HaversineKm(a, b), 0.5)
}

func TestDestinationRoundTrip(t *testing.T) {
	start := geo.Point{Lat: 49.2, Lng: 16.6}
	dest := geo.Destination(start, 90, 1.0)
	assert.InDelta(t, 1.0, geo.HaversineKm(start, dest), 1e-3)
}

func TestBearingDegRange(t *testing.T) {
	a := geo.Point{Lat: 49.2, Lng: 16.6}
	b := geo.Point{Lat: 49.3, Lng: 16.7}
	br := geo.BearingDeg(a, b)
	assert.True(t, br >= 0 && br < 360)
}

func TestPolylineAtDistanceEndpoints(t *testing.T) {
	pts := []geo.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.5}, {Lat: 0, Lng: 1}}
	pl := geo.NewPolyline(pts)
	start := pl.AtDistance(-1)
	assert.Equal(t, pts[0], start)
	end := pl.AtDistance(pl.Length() + 10)
	assert.Equal(t, pts[len(pts)-1], end)
}

func TestPolylineAtDistanceMidpoint(t *testing.T) {
	pts := []geo.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}}
	pl := geo.NewPolyline(pts)
	half := pl.Length() / 2
	mid := pl.AtDistance(half)
	assert.InDelta(t, 0.5, mid.Lng, 1e-6)
}

func TestKmhToKmPerSec(t *testing.T) {
	assert.InDelta(t, 50.0/3600, geo.KmhToKmPerSec(50), 1e-12)
	assert.True(t, math.Abs(geo.KmhToKmPerSec(0)) < 1e-12)
}
