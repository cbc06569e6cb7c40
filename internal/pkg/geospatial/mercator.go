package geospatial

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// TileSize is the pixel width of one web-mercator tile.
	TileSize = 256
	// MaxZoom is the deepest zoom level a fit will choose.
	MaxZoom = 18
	// MaxLatitude is the web-mercator latitude limit.
	MaxLatitude = 85.05112878
)

// Project maps a lon/lat point to normalized web-mercator coordinates in [0,1].
// y grows southward.
func Project(p orb.Point) (x, y float64) {
	lat := math.Max(-MaxLatitude, math.Min(MaxLatitude, p.Lat()))
	x = (p.Lon() + 180) / 360
	sin := math.Sin(toRad(lat))
	y = 0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)
	return x, y
}

// Unproject is the inverse of Project.
func Unproject(x, y float64) orb.Point {
	lon := x*360 - 180
	n := math.Pi - 2*math.Pi*y
	lat := 180 / math.Pi * math.Atan(math.Sinh(n))
	return orb.Point{lon, lat}
}

// FitBound returns the center and the deepest whole zoom at which b fits inside a
// width x height viewport with padding pixels on every side. A degenerate bound gets
// MaxZoom.
func FitBound(b orb.Bound, width, height, padding int) (orb.Point, float64) {
	x0, y0 := Project(orb.Point{b.Min.Lon(), b.Max.Lat()})
	x1, y1 := Project(orb.Point{b.Max.Lon(), b.Min.Lat()})
	center := Unproject((x0+x1)/2, (y0+y1)/2)

	availW := float64(width - 2*padding)
	availH := float64(height - 2*padding)
	if availW < 1 {
		availW = 1
	}
	if availH < 1 {
		availH = 1
	}

	zoom := float64(MaxZoom)
	if dx := x1 - x0; dx > 0 {
		zoom = math.Min(zoom, math.Log2(availW/(dx*TileSize)))
	}
	if dy := y1 - y0; dy > 0 {
		zoom = math.Min(zoom, math.Log2(availH/(dy*TileSize)))
	}
	zoom = math.Floor(zoom)
	if zoom < 0 {
		zoom = 0
	}
	return center, zoom
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
