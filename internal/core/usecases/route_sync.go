package usecases

import (
	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
)

// Defaults used when an engine is built with zero values.
const (
	DefaultAutoCenterZoom = 15
	DefaultFitPadding     = 50
)

// SyncOpKind names a planned canvas call.
type SyncOpKind int

const (
	SyncUpsertMarker SyncOpKind = iota
	SyncRemoveMarker
	SyncSetPolyline
	SyncRemovePolyline
	SyncSetView
	SyncFitBounds
)

func (k SyncOpKind) String() string {
	switch k {
	case SyncUpsertMarker:
		return "upsert_marker"
	case SyncRemoveMarker:
		return "remove_marker"
	case SyncSetPolyline:
		return "set_polyline"
	case SyncRemovePolyline:
		return "remove_polyline"
	case SyncSetView:
		return "set_view"
	case SyncFitBounds:
		return "fit_bounds"
	default:
		return "unknown"
	}
}

// SyncOp is one canvas call in a SyncPlan.
type SyncOp struct {
	Kind          SyncOpKind
	Role          domain.Role
	Point         domain.GeoPoint
	Points        []domain.GeoPoint
	MarkerStyle   domain.MarkerStyle
	PolylineStyle domain.PolylineStyle
	Zoom          float64
	Padding       int
}

// SyncPlan is the ordered set of canvas calls that brings a view in line with a snapshot,
// plus the viewport latch after those calls.
type SyncPlan struct {
	Ops           []SyncOp
	Viewport      domain.ViewportState
	AutoCentered  bool
	FittedBounds  bool
	RoutesRebuilt bool
}

// Apply executes the plan against canvas in order.
func (p SyncPlan) Apply(canvas ports.GeoCanvas) {
	for _, op := range p.Ops {
		switch op.Kind {
		case SyncUpsertMarker:
			canvas.AddOrMoveMarker(op.Role, op.Point, op.MarkerStyle)
		case SyncRemoveMarker:
			canvas.RemoveMarker(op.Role)
		case SyncSetPolyline:
			canvas.SetPolyline(op.Role, op.Points, op.PolylineStyle)
		case SyncRemovePolyline:
			canvas.RemovePolyline(op.Role)
		case SyncSetView:
			canvas.SetView(op.Point, op.Zoom)
		case SyncFitBounds:
			canvas.FitToBounds(op.Points, op.Padding)
		}
	}
}

// RouteSyncEngine decides which canvas calls a snapshot change requires. It holds no
// view state of its own and never touches a canvas.
type RouteSyncEngine struct {
	autoCenterZoom float64
	fitPadding     int
}

// NewRouteSyncEngine creates an engine. A non-positive zoom or negative padding falls back
// to the defaults.
func NewRouteSyncEngine(autoCenterZoom float64, fitPadding int) *RouteSyncEngine {
	if autoCenterZoom <= 0 {
		autoCenterZoom = DefaultAutoCenterZoom
	}
	if fitPadding < 0 {
		fitPadding = DefaultFitPadding
	}
	return &RouteSyncEngine{autoCenterZoom: autoCenterZoom, fitPadding: fitPadding}
}

// Plan computes the calls that move a view synced to prev onto next. A nil prev means the
// view has never been synced, so every route-affecting field counts as changed.
func (e *RouteSyncEngine) Plan(prev *domain.RouteSnapshot, next domain.RouteSnapshot, vp domain.ViewportState) SyncPlan {
	plan := SyncPlan{Viewport: vp}

	// Driver marker. An absent location keeps the last rendered position.
	if next.DriverLocation != nil {
		plan.Ops = append(plan.Ops, SyncOp{
			Kind:        SyncUpsertMarker,
			Role:        domain.RoleDriver,
			Point:       *next.DriverLocation,
			MarkerStyle: domain.DriverMarkerStyle,
		})
	}

	// One-shot auto-center. Once a drawable route has appeared, bounds fitting owns the
	// viewport and this rule is retired for good. A one-point route is never drawn, so it
	// only holds centering off while present.
	if !plan.Viewport.HasAutoCentered {
		switch {
		case next.HasDrawableRoute():
			plan.Viewport.HasAutoCentered = true
		case next.HasRoute():
		case next.DriverLocation != nil:
			plan.Ops = append(plan.Ops, SyncOp{
				Kind:  SyncSetView,
				Point: *next.DriverLocation,
				Zoom:  e.autoCenterZoom,
			})
			plan.Viewport.HasAutoCentered = true
			plan.AutoCentered = true
		}
	}

	if prev != nil && !prev.RoutesChanged(next) {
		return plan
	}
	plan.RoutesRebuilt = true

	plan.Ops = append(plan.Ops,
		SyncOp{Kind: SyncRemovePolyline, Role: domain.RoleRide},
		SyncOp{Kind: SyncRemovePolyline, Role: domain.RoleApproach},
		SyncOp{Kind: SyncRemoveMarker, Role: domain.RolePickup},
		SyncOp{Kind: SyncRemoveMarker, Role: domain.RoleDropoff},
	)

	if next.IsOffline {
		return plan
	}

	var region []domain.GeoPoint
	pickupPlaced := false

	if ride := next.RideRoute; len(ride) >= 2 {
		plan.Ops = append(plan.Ops,
			SyncOp{Kind: SyncSetPolyline, Role: domain.RoleRide, Points: ride, PolylineStyle: domain.RidePolylineStyle},
			SyncOp{Kind: SyncUpsertMarker, Role: domain.RolePickup, Point: ride[0], MarkerStyle: domain.PickupMarkerStyle},
			SyncOp{Kind: SyncUpsertMarker, Role: domain.RoleDropoff, Point: ride[len(ride)-1], MarkerStyle: domain.DropoffMarkerStyle},
		)
		pickupPlaced = true
		region = append(region, ride...)
	}

	if approach := next.ApproachRoute; len(approach) >= 2 {
		plan.Ops = append(plan.Ops, SyncOp{
			Kind:          SyncSetPolyline,
			Role:          domain.RoleApproach,
			Points:        approach,
			PolylineStyle: domain.ApproachPolylineStyle,
		})
		if !pickupPlaced {
			// The approach ends where the passenger is waiting.
			plan.Ops = append(plan.Ops, SyncOp{
				Kind:        SyncUpsertMarker,
				Role:        domain.RolePickup,
				Point:       approach[len(approach)-1],
				MarkerStyle: domain.PickupMarkerStyle,
			})
		}
		region = append(region, approach...)
	}

	if next.DriverLocation != nil {
		region = append(region, *next.DriverLocation)
	}

	if domain.CountDistinct(region, 2) >= 2 {
		plan.Ops = append(plan.Ops, SyncOp{Kind: SyncFitBounds, Points: region, Padding: e.fitPadding})
		plan.Viewport.HasAutoCentered = true
		plan.FittedBounds = true
	}

	return plan
}
