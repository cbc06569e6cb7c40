package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	snapshotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteSnapshot",
		Fields: graphql.Fields{
			"driver_location": &graphql.Field{Type: geoPointType},
			"ride_route":      &graphql.Field{Type: graphql.NewList(geoPointType)},
			"approach_route":  &graphql.Field{Type: graphql.NewList(geoPointType)},
			"is_offline":      &graphql.Field{Type: graphql.Boolean},
		},
	})

	rideType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Ride",
		Fields: graphql.Fields{
			"ride_id":  &graphql.Field{Type: graphql.String},
			"sessions": &graphql.Field{Type: graphql.Int},
			"snapshot": &graphql.Field{Type: snapshotType},
		},
	})

	rideState := func(rideID string, snap *domain.RouteSnapshot) any {
		return RideState{RideID: rideID, Snapshot: *snap, Sessions: deps.Hub.Count(rideID)}
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"ride": &graphql.Field{
				Type:        rideType,
				Description: "Stored map inputs of a ride",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := rideArg(p)
					if err != nil {
						return nil, err
					}
					snap, err := deps.Feed.Snapshot(p.Context, id)
					if err != nil {
						return nil, err
					}
					return rideState(id, snap), nil
				},
			},
			"activeRides": &graphql.Field{
				Type:        graphql.NewList(rideType),
				Description: "Rides with stored map inputs, most recently updated first",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ids, err := deps.Feed.ActiveRides(p.Context, 0, p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					rides := make([]RideSummary, len(ids))
					for i, id := range ids {
						rides[i] = RideSummary{RideID: id, Sessions: deps.Hub.Count(id)}
					}
					return rides, nil
				},
			},
			"rideMap": &graphql.Field{
				Type:        graphql.String,
				Description: "The ride's rendered map as a GeoJSON FeatureCollection",
				Args: graphql.FieldConfigArgument{
					"id":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"width":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 800},
					"height": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 600},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					w, h := p.Args["width"].(int), p.Args["height"].(int)
					if w < minRenderSize || w > maxRenderSize || h < minRenderSize || h > maxRenderSize {
						return nil, fmt.Errorf("width and height must be between %d and %d", minRenderSize, maxRenderSize)
					}
					id, err := rideArg(p)
					if err != nil {
						return nil, err
					}
					data, err := deps.Render.RenderGeoJSON(p.Context, id, w, h)
					if err != nil {
						return nil, err
					}
					return string(data), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"setDriverLocation": &graphql.Field{
				Type:        rideType,
				Description: "Replace the driver location; omit lat and lon to mark it unknown",
				Args: graphql.FieldConfigArgument{
					"id":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat": &graphql.ArgumentConfig{Type: graphql.Float},
					"lon": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := rideArg(p)
					if err != nil {
						return nil, err
					}
					lat, hasLat := p.Args["lat"].(float64)
					lon, hasLon := p.Args["lon"].(float64)
					if hasLat != hasLon {
						return nil, fmt.Errorf("lat and lon must be given together")
					}
					var loc *domain.GeoPoint
					if hasLat {
						if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
							return nil, fmt.Errorf("coordinates out of range")
						}
						loc = &domain.GeoPoint{Lat: lat, Lon: lon}
					}
					snap, err := deps.Feed.Ingest(p.Context, id, "graphql", domain.SnapshotUpdate{
						DriverLocation: domain.Some(loc),
					})
					if err != nil {
						return nil, err
					}
					return rideState(id, snap), nil
				},
			},
			"setOffline": &graphql.Field{
				Type:        rideType,
				Description: "Toggle offline mode of the ride's map",
				Args: graphql.FieldConfigArgument{
					"id":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"offline": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Boolean)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := rideArg(p)
					if err != nil {
						return nil, err
					}
					snap, err := deps.Feed.Ingest(p.Context, id, "graphql", domain.SnapshotUpdate{
						IsOffline: domain.Some(p.Args["offline"].(bool)),
					})
					if err != nil {
						return nil, err
					}
					return rideState(id, snap), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func rideArg(p graphql.ResolveParams) (string, error) {
	id, _ := p.Args["id"].(string)
	if !validRideID(id) {
		return "", fmt.Errorf("invalid ride id")
	}
	return id, nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
