package domain

import "slices"

// RouteSnapshot is the full set of externally supplied map inputs for one ride view.
// Each field is replaced wholesale; a nil DriverLocation or an empty route means absent.
type RouteSnapshot struct {
	DriverLocation *GeoPoint  `json:"driver_location,omitempty"`
	RideRoute      []GeoPoint `json:"ride_route,omitempty"`
	ApproachRoute  []GeoPoint `json:"approach_route,omitempty"`
	IsOffline      bool       `json:"is_offline"`
}

// HasDriver reports whether a driver location is present.
func (s RouteSnapshot) HasDriver() bool { return s.DriverLocation != nil }

// HasRoute reports whether either route array is present.
func (s RouteSnapshot) HasRoute() bool {
	return len(s.RideRoute) > 0 || len(s.ApproachRoute) > 0
}

// HasDrawableRoute reports whether either route has enough points to be drawn.
func (s RouteSnapshot) HasDrawableRoute() bool {
	return len(s.RideRoute) >= 2 || len(s.ApproachRoute) >= 2
}

// RoutesChanged reports whether a route array or the offline flag differs between s and o.
func (s RouteSnapshot) RoutesChanged(o RouteSnapshot) bool {
	return s.IsOffline != o.IsOffline ||
		!slices.Equal(s.RideRoute, o.RideRoute) ||
		!slices.Equal(s.ApproachRoute, o.ApproachRoute)
}

// Clone returns a deep copy so callers can hand snapshots across goroutines.
func (s RouteSnapshot) Clone() RouteSnapshot {
	out := RouteSnapshot{
		RideRoute:     slices.Clone(s.RideRoute),
		ApproachRoute: slices.Clone(s.ApproachRoute),
		IsOffline:     s.IsOffline,
	}
	if s.DriverLocation != nil {
		out.DriverLocation = s.DriverLocation.Ptr()
	}
	return out
}

// Optional carries a field replacement; Valid=false means "leave the field alone".
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some wraps v as a present replacement.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// SnapshotUpdate is a batch of field replacements applied to a RouteSnapshot in one step.
type SnapshotUpdate struct {
	DriverLocation Optional[*GeoPoint]
	RideRoute      Optional[[]GeoPoint]
	ApproachRoute  Optional[[]GeoPoint]
	IsOffline      Optional[bool]
}

// IsEmpty reports whether the update replaces nothing.
func (u SnapshotUpdate) IsEmpty() bool {
	return !u.DriverLocation.Valid && !u.RideRoute.Valid &&
		!u.ApproachRoute.Valid && !u.IsOffline.Valid
}

// ApplyTo returns s with every set field of u replaced.
func (u SnapshotUpdate) ApplyTo(s RouteSnapshot) RouteSnapshot {
	out := s
	if u.DriverLocation.Valid {
		out.DriverLocation = nil
		if u.DriverLocation.Value != nil {
			out.DriverLocation = u.DriverLocation.Value.Ptr()
		}
	}
	if u.RideRoute.Valid {
		out.RideRoute = slices.Clone(u.RideRoute.Value)
	}
	if u.ApproachRoute.Valid {
		out.ApproachRoute = slices.Clone(u.ApproachRoute.Value)
	}
	if u.IsOffline.Valid {
		out.IsOffline = u.IsOffline.Value
	}
	return out
}

// Merge combines u with a later update; fields set in later win.
func (u SnapshotUpdate) Merge(later SnapshotUpdate) SnapshotUpdate {
	out := u
	if later.DriverLocation.Valid {
		out.DriverLocation = later.DriverLocation
	}
	if later.RideRoute.Valid {
		out.RideRoute = later.RideRoute
	}
	if later.ApproachRoute.Valid {
		out.ApproachRoute = later.ApproachRoute
	}
	if later.IsOffline.Valid {
		out.IsOffline = later.IsOffline
	}
	return out
}

// Fields lists the names of the fields the update sets, for logging.
func (u SnapshotUpdate) Fields() []string {
	var f []string
	if u.DriverLocation.Valid {
		f = append(f, "driver_location")
	}
	if u.RideRoute.Valid {
		f = append(f, "ride_route")
	}
	if u.ApproachRoute.Valid {
		f = append(f, "approach_route")
	}
	if u.IsOffline.Valid {
		f = append(f, "is_offline")
	}
	return f
}

// FullUpdate returns an update that replaces every field with the values in s.
func FullUpdate(s RouteSnapshot) SnapshotUpdate {
	return SnapshotUpdate{
		DriverLocation: Some(s.DriverLocation),
		RideRoute:      Some(s.RideRoute),
		ApproachRoute:  Some(s.ApproachRoute),
		IsOffline:      Some(s.IsOffline),
	}
}
