package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Ptr returns a pointer to a copy of p, for use as an optional location.
func (p GeoPoint) Ptr() *GeoPoint {
	return &p
}

// GeoLineString represents an ordered sequence of geographic coordinates.
type GeoLineString struct {
	Coordinates []GeoPoint `json:"coordinates"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether p lies inside b (edges inclusive).
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Center returns the midpoint of the box.
func (b Bounds) Center() GeoPoint {
	return GeoPoint{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// CountDistinct returns the number of distinct points in pts, stopping early once limit is
// reached (limit <= 0 means no limit).
func CountDistinct(pts []GeoPoint, limit int) int {
	seen := make(map[GeoPoint]struct{}, len(pts))
	for _, p := range pts {
		seen[p] = struct{}{}
		if limit > 0 && len(seen) >= limit {
			break
		}
	}
	return len(seen)
}
