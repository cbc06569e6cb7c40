package domain

import "time"

// RideUpdate is the broker/wire form of a SnapshotUpdate for one ride.
// A present route key replaces that route; an empty array clears it.
type RideUpdate struct {
	RideID         string      `json:"ride_id"`
	Time           time.Time   `json:"time"`
	DriverLocation *GeoPoint   `json:"driver_location,omitempty"`
	DriverAbsent   bool        `json:"driver_absent,omitempty"`
	RideRoute      *[]GeoPoint `json:"ride_route,omitempty"`
	ApproachRoute  *[]GeoPoint `json:"approach_route,omitempty"`
	Offline        *bool       `json:"offline,omitempty"`
	// Origin identifies the publishing process.
	Origin string `json:"origin,omitempty"`
}

// NewRideUpdate converts a SnapshotUpdate into its wire form.
func NewRideUpdate(rideID string, u SnapshotUpdate) RideUpdate {
	ev := RideUpdate{RideID: rideID, Time: time.Now().UTC()}
	if u.DriverLocation.Valid {
		if u.DriverLocation.Value != nil {
			ev.DriverLocation = u.DriverLocation.Value.Ptr()
		} else {
			ev.DriverAbsent = true
		}
	}
	if u.RideRoute.Valid {
		r := u.RideRoute.Value
		if r == nil {
			r = []GeoPoint{}
		}
		ev.RideRoute = &r
	}
	if u.ApproachRoute.Valid {
		r := u.ApproachRoute.Value
		if r == nil {
			r = []GeoPoint{}
		}
		ev.ApproachRoute = &r
	}
	if u.IsOffline.Valid {
		v := u.IsOffline.Value
		ev.Offline = &v
	}
	return ev
}

// Update converts the wire form back into a SnapshotUpdate.
func (e RideUpdate) Update() SnapshotUpdate {
	var u SnapshotUpdate
	switch {
	case e.DriverLocation != nil:
		u.DriverLocation = Some(e.DriverLocation.Ptr())
	case e.DriverAbsent:
		u.DriverLocation = Some[*GeoPoint](nil)
	}
	if e.RideRoute != nil {
		u.RideRoute = Some(*e.RideRoute)
	}
	if e.ApproachRoute != nil {
		u.ApproachRoute = Some(*e.ApproachRoute)
	}
	if e.Offline != nil {
		u.IsOffline = Some(*e.Offline)
	}
	return u
}

// DriverLocationReading is one sample delivered by the external location poller.
type DriverLocationReading struct {
	RideID   string    `json:"ride_id"`
	DriverID string    `json:"driver_id,omitempty"`
	Location *GeoPoint `json:"location"`
	Time     time.Time `json:"time"`
}
