package domain

// Role is a fixed logical slot to which at most one rendered primitive is bound.
type Role string

const (
	RoleDriver   Role = "driver"
	RolePickup   Role = "pickup"
	RoleDropoff  Role = "dropoff"
	RoleRide     Role = "ride"
	RoleApproach Role = "approach"
)

// MarkerRoles and PolylineRoles list the roles in teardown order.
var (
	MarkerRoles   = []Role{RoleDriver, RolePickup, RoleDropoff}
	PolylineRoles = []Role{RoleRide, RoleApproach}
)

// IsMarker reports whether r names a marker slot.
func (r Role) IsMarker() bool {
	return r == RoleDriver || r == RolePickup || r == RoleDropoff
}

// IsPolyline reports whether r names a polyline slot.
func (r Role) IsPolyline() bool {
	return r == RoleRide || r == RoleApproach
}

// MarkerHandle is an opaque reference to a rendered marker.
type MarkerHandle string

// PolylineHandle is an opaque reference to a rendered line.
type PolylineHandle string

// MarkerStyle describes how a marker is drawn.
type MarkerStyle struct {
	Icon   string `json:"icon"`
	Color  string `json:"color"`
	ZIndex int    `json:"z_index"`
}

// PolylineStyle describes how a line is drawn.
type PolylineStyle struct {
	Color   string  `json:"color"`
	Weight  int     `json:"weight"`
	Opacity float64 `json:"opacity"`
	Dashed  bool    `json:"dashed,omitempty"`
	ZIndex  int     `json:"z_index"`
}

// Default styles. The approach line sits above the ride line.
var (
	DriverMarkerStyle  = MarkerStyle{Icon: "car", Color: "#1f2937", ZIndex: 1000}
	PickupMarkerStyle  = MarkerStyle{Icon: "pickup", Color: "#16a34a", ZIndex: 900}
	DropoffMarkerStyle = MarkerStyle{Icon: "dropoff", Color: "#dc2626", ZIndex: 900}

	RidePolylineStyle     = PolylineStyle{Color: "#2563eb", Weight: 5, Opacity: 0.8, ZIndex: 400}
	ApproachPolylineStyle = PolylineStyle{Color: "#f59e0b", Weight: 4, Opacity: 0.9, Dashed: true, ZIndex: 410}
)

// ViewportState holds the one-shot auto-center latch. Only a full teardown resets it.
type ViewportState struct {
	HasAutoCentered bool `json:"has_auto_centered"`
}

// CanvasOp names a canvas mutation on the wire.
type CanvasOp string

const (
	OpAddMarker        CanvasOp = "add_marker"
	OpMoveMarker       CanvasOp = "move_marker"
	OpRemoveMarker     CanvasOp = "remove_marker"
	OpAddPolyline      CanvasOp = "add_polyline"
	OpRemovePolyline   CanvasOp = "remove_polyline"
	OpSetView          CanvasOp = "set_view"
	OpFitBounds        CanvasOp = "fit_bounds"
	OpInvalidateLayout CanvasOp = "invalidate_layout"
	OpDestroy          CanvasOp = "destroy"
)

// CanvasCommand is one rendered mutation, streamed to a browser view.
type CanvasCommand struct {
	Seq           uint64         `json:"seq"`
	Op            CanvasOp       `json:"op"`
	Role          Role           `json:"role,omitempty"`
	Handle        string         `json:"handle,omitempty"`
	Point         *GeoPoint      `json:"point,omitempty"`
	Points        []GeoPoint     `json:"points,omitempty"`
	Center        *GeoPoint      `json:"center,omitempty"`
	Zoom          float64        `json:"zoom,omitempty"`
	Padding       int            `json:"padding,omitempty"`
	Bounds        *Bounds        `json:"bounds,omitempty"`
	MarkerStyle   *MarkerStyle   `json:"marker_style,omitempty"`
	PolylineStyle *PolylineStyle `json:"polyline_style,omitempty"`
	Width         int            `json:"width,omitempty"`
	Height        int            `json:"height,omitempty"`
}
