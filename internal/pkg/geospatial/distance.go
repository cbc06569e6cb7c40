package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Distance returns the great-circle distance in meters between two lat/lon positions.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}

// PathLength returns the length in meters of a lon/lat path.
func PathLength(ls orb.LineString) float64 {
	return geo.LengthHaversine(ls)
}
