package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// Render size bounds for /map, in pixels.
const (
	minRenderSize = 16
	maxRenderSize = 4096
)

// RideState is the stored map input of a ride together with its live view count.
type RideState struct {
	RideID   string               `json:"ride_id"`
	Snapshot domain.RouteSnapshot `json:"snapshot"`
	Sessions int                  `json:"sessions"`
}

// RideSummary is one entry of the active ride list.
type RideSummary struct {
	RideID   string `json:"ride_id"`
	Sessions int    `json:"sessions"`
}

type routesRequest struct {
	RideRoute     *[]geoPointBody `json:"ride_route" validate:"omitempty,max=10000,dive"`
	ApproachRoute *[]geoPointBody `json:"approach_route" validate:"omitempty,max=10000,dive"`
}

type offlineRequest struct {
	Offline *bool `json:"offline" validate:"required"`
}

type rideUpdateRequest struct {
	DriverLocation *geoPointBody   `json:"driver_location"`
	DriverAbsent   bool            `json:"driver_absent" validate:"excluded_with=DriverLocation"`
	RideRoute      *[]geoPointBody `json:"ride_route" validate:"omitempty,max=10000,dive"`
	ApproachRoute  *[]geoPointBody `json:"approach_route" validate:"omitempty,max=10000,dive"`
	Offline        *bool           `json:"offline"`
}

func (r rideUpdateRequest) update(rideID string) domain.SnapshotUpdate {
	ev := domain.RideUpdate{
		RideID:        rideID,
		DriverAbsent:  r.DriverAbsent,
		RideRoute:     routeOf(r.RideRoute),
		ApproachRoute: routeOf(r.ApproachRoute),
		Offline:       r.Offline,
	}
	if r.DriverLocation != nil {
		ev.DriverLocation = r.DriverLocation.point().Ptr()
	}
	return ev.Update()
}

// ListRidesHandler returns the rides with a stored snapshot, most recently updated first.
func ListRidesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pg := pageParams(c.QueryInt("offset", 0), c.QueryInt("limit", 50), 200)

		total, err := deps.Feed.CountActiveRides(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		pg.Total = total

		ids := []string{}
		if pg.Offset < total {
			if ids, err = deps.Feed.ActiveRides(c.UserContext(), pg.Offset, pg.Limit); err != nil {
				return errFromDomain(c, err)
			}
		}

		rides := make([]RideSummary, len(ids))
		for i, id := range ids {
			rides[i] = RideSummary{RideID: id, Sessions: deps.Hub.Count(id)}
		}

		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: rides, Pagination: pg})
	}
}

// GetRideSnapshotHandler returns the stored map inputs of one ride.
func GetRideSnapshotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rideID := c.Params("id")
		if !validRideID(rideID) {
			return errBadRequest(c, "invalid ride id")
		}

		snap, err := deps.Feed.Snapshot(c.UserContext(), rideID)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(RideState{RideID: rideID, Snapshot: *snap, Sessions: deps.Hub.Count(rideID)})
	}
}

// RenderRideMapHandler renders the ride's map once and returns the scene as GeoJSON.
func RenderRideMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rideID := c.Params("id")
		if !validRideID(rideID) {
			return errBadRequest(c, "invalid ride id")
		}

		width := c.QueryInt("width", deps.Session.Width)
		height := c.QueryInt("height", deps.Session.Height)
		if width < minRenderSize || width > maxRenderSize || height < minRenderSize || height > maxRenderSize {
			return errBadRequest(c, "width and height must be between 16 and 4096 pixels")
		}

		data, err := deps.Render.RenderGeoJSON(c.UserContext(), rideID, width, height)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}

// UpdateDriverLocationHandler replaces the driver's location.
func UpdateDriverLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req geoPointBody
		if err := bindBody(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		return ingest(c, deps, domain.SnapshotUpdate{
			DriverLocation: domain.Some(req.point().Ptr()),
		})
	}
}

// ClearDriverLocationHandler marks the driver location as unknown.
func ClearDriverLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return ingest(c, deps, domain.SnapshotUpdate{
			DriverLocation: domain.Some[*domain.GeoPoint](nil),
		})
	}
}

// UpdateRoutesHandler replaces the ride route, the approach route, or both. An empty
// array clears a route; an omitted key leaves it unchanged.
func UpdateRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req routesRequest
		if err := bindBody(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		if req.RideRoute == nil && req.ApproachRoute == nil {
			return errBadRequest(c, "ride_route or approach_route is required")
		}

		var u domain.SnapshotUpdate
		if r := routeOf(req.RideRoute); r != nil {
			u.RideRoute = domain.Some(*r)
		}
		if r := routeOf(req.ApproachRoute); r != nil {
			u.ApproachRoute = domain.Some(*r)
		}
		return ingest(c, deps, u)
	}
}

// SetOfflineHandler toggles offline mode for the ride's map.
func SetOfflineHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req offlineRequest
		if err := bindBody(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		return ingest(c, deps, domain.SnapshotUpdate{IsOffline: domain.Some(*req.Offline)})
	}
}

// ApplyRideUpdateHandler applies any combination of field replacements in one batch.
func ApplyRideUpdateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req rideUpdateRequest
		if err := bindBody(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		return ingest(c, deps, req.update(c.Params("id")))
	}
}

func ingest(c *fiber.Ctx, deps *Dependencies, u domain.SnapshotUpdate) error {
	rideID := c.Params("id")
	if !validRideID(rideID) {
		return errBadRequest(c, "invalid ride id")
	}

	snap, err := deps.Feed.Ingest(c.UserContext(), rideID, "http", u)
	if err != nil {
		return errFromDomain(c, err)
	}
	return c.JSON(RideState{RideID: rideID, Snapshot: *snap, Sessions: deps.Hub.Count(rideID)})
}
