package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
)

// SnapshotRepo implements ports.SnapshotRepository on the ride_snapshots table.
type SnapshotRepo struct {
	db *DB
}

var _ ports.SnapshotRepository = (*SnapshotRepo)(nil)

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

const selectSnapshot = `
	SELECT driver_lat, driver_lon, ride_route, approach_route, is_offline
	FROM ride_snapshots
	WHERE ride_id = $1`

func (r *SnapshotRepo) Get(ctx context.Context, rideID string) (*domain.RouteSnapshot, error) {
	snap, err := scanSnapshot(r.db.Pool.QueryRow(ctx, selectSnapshot, rideID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", rideID, err)
	}
	return snap, nil
}

// Apply locks the ride's row, replaces the fields set in u and writes the result back.
func (r *SnapshotRepo) Apply(ctx context.Context, rideID string, u domain.SnapshotUpdate) (*domain.RouteSnapshot, error) {
	var out domain.RouteSnapshot
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		var current domain.RouteSnapshot
		snap, err := scanSnapshot(tx.QueryRow(ctx, selectSnapshot+" FOR UPDATE", rideID))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return err
		default:
			current = *snap
		}

		out = u.ApplyTo(current)

		ride, err := json.Marshal(routeOrEmpty(out.RideRoute))
		if err != nil {
			return fmt.Errorf("encode ride route: %w", err)
		}
		approach, err := json.Marshal(routeOrEmpty(out.ApproachRoute))
		if err != nil {
			return fmt.Errorf("encode approach route: %w", err)
		}

		var lat, lon *float64
		if out.DriverLocation != nil {
			lat, lon = &out.DriverLocation.Lat, &out.DriverLocation.Lon
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO ride_snapshots (ride_id, driver_lat, driver_lon, ride_route, approach_route, is_offline, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (ride_id) DO UPDATE SET
				driver_lat = EXCLUDED.driver_lat,
				driver_lon = EXCLUDED.driver_lon,
				ride_route = EXCLUDED.ride_route,
				approach_route = EXCLUDED.approach_route,
				is_offline = EXCLUDED.is_offline,
				updated_at = NOW()
		`, rideID, lat, lon, ride, approach, out.IsOffline)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("apply snapshot %s: %w", rideID, err)
	}
	return &out, nil
}

func (r *SnapshotRepo) ListActive(ctx context.Context, offset, limit int) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT ride_id FROM ride_snapshots
		ORDER BY updated_at DESC, ride_id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SnapshotRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM ride_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func scanSnapshot(row pgx.Row) (*domain.RouteSnapshot, error) {
	var (
		lat, lon       *float64
		ride, approach []byte
		snap           domain.RouteSnapshot
	)
	if err := row.Scan(&lat, &lon, &ride, &approach, &snap.IsOffline); err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		snap.DriverLocation = &domain.GeoPoint{Lat: *lat, Lon: *lon}
	}
	if len(ride) > 0 {
		if err := json.Unmarshal(ride, &snap.RideRoute); err != nil {
			return nil, fmt.Errorf("decode ride route: %w", err)
		}
	}
	if len(approach) > 0 {
		if err := json.Unmarshal(approach, &snap.ApproachRoute); err != nil {
			return nil, fmt.Errorf("decode approach route: %w", err)
		}
	}
	return &snap, nil
}

func routeOrEmpty(pts []domain.GeoPoint) []domain.GeoPoint {
	if pts == nil {
		return []domain.GeoPoint{}
	}
	return pts
}
