// Package tiles implements slippy-map tile math, caching, proxying, and seeding.
package tiles

import "math"

// Coord identifies a single XYZ tile.
type Coord struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// maxZoom bounds all tile math. Public tile servers top out around z19,
// and 1<<z overflows int past 62.
const maxZoom = 22

// FromLatLng returns the tile containing the given point at a zoom level.
// Zoom is clamped to [0, 22].
func FromLatLng(lat, lng float64, zoom int) Coord {
	zoom = clamp(zoom, 0, maxZoom)
	n := float64(int(1) << uint(zoom))

	x := int((lng + 180.0) / 360.0 * n)

	latRad := lat * math.Pi / 180.0
	y := int((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n)

	max := int(n) - 1
	return Coord{Z: zoom, X: clamp(x, 0, max), Y: clamp(y, 0, max)}
}

// LatLng returns the north-west corner of the tile.
func (c Coord) LatLng() (lat, lng float64) {
	n := float64(int(1) << uint(c.Z))
	lng = float64(c.X)/n*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(c.Y)/n)))
	lat = latRad * 180.0 / math.Pi
	return lat, lng
}

// Range enumerates the tiles covering a bounding box at a single zoom level.
// The box is (minLng, minLat, maxLng, maxLat) in degrees.
func Range(minLng, minLat, maxLng, maxLat float64, zoom int) []Coord {
	// Tile Y grows southward, so the north edge gives the smallest Y.
	nw := FromLatLng(maxLat, minLng, zoom)
	se := FromLatLng(minLat, maxLng, zoom)

	var coords []Coord
	for x := nw.X; x <= se.X; x++ {
		for y := nw.Y; y <= se.Y; y++ {
			coords = append(coords, Coord{Z: zoom, X: x, Y: y})
		}
	}
	return coords
}

// CountRange returns the number of tiles covering a bounding box across a
// zoom span without materializing them.
func CountRange(minLng, minLat, maxLng, maxLat float64, minZoom, maxZoom int) int {
	total := 0
	for z := minZoom; z <= maxZoom; z++ {
		nw := FromLatLng(maxLat, minLng, z)
		se := FromLatLng(minLat, maxLng, z)
		total += (se.X - nw.X + 1) * (se.Y - nw.Y + 1)
	}
	return total
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
