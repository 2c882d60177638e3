package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wethinkt/go-cdrintel/internal/geofence"
)

// CreateGeofence validates and stores g, assigning an id and creation time
// when they are unset. The stored geofence is returned.
func (s *Store) CreateGeofence(ctx context.Context, g geofence.Geofence) (*geofence.Geofence, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	if g.Geometry.Type == "" {
		g.Geometry.Type = "Polygon"
	}
	geom, err := json.Marshal(g.Geometry)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}

	err = s.submit(ctx, "create geofence", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO geofences (id, name, description, geometry, suspect_name, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				geometry = EXCLUDED.geometry,
				suspect_name = EXCLUDED.suspect_name
		`, g.ID, g.Name, g.Description, string(geom), g.SuspectName, g.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGeofences returns all geofences, or only those of suspect when it is
// non-empty, oldest first.
func (s *Store) ListGeofences(ctx context.Context, suspect string) ([]geofence.Geofence, error) {
	query := "SELECT id, name, description, geometry, suspect_name, created_at FROM geofences"
	var args []any
	if suspect != "" {
		query += " WHERE suspect_name = ?"
		args = append(args, suspect)
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query geofences: %w", err)
	}
	defer rows.Close()

	var out []geofence.Geofence
	for rows.Next() {
		var (
			g       geofence.Geofence
			desc    sql.NullString
			geom    string
			created sql.NullTime
		)
		if err := rows.Scan(&g.ID, &g.Name, &desc, &geom, &g.SuspectName, &created); err != nil {
			return nil, fmt.Errorf("scan geofence: %w", err)
		}
		if err := json.Unmarshal([]byte(geom), &g.Geometry); err != nil {
			return nil, fmt.Errorf("decode geometry of %s: %w", g.ID, err)
		}
		g.Description = desc.String
		if created.Valid {
			g.CreatedAt = created.Time.UTC()
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Geofences implements geofence.Source.
func (s *Store) Geofences(ctx context.Context, suspect string) ([]geofence.Geofence, error) {
	return s.ListGeofences(ctx, suspect)
}

// DeleteGeofence removes a geofence, returning ErrNotFound when it does not
// exist.
func (s *Store) DeleteGeofence(ctx context.Context, id string) error {
	var affected int64
	err := s.submit(ctx, "delete geofence", func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM geofences WHERE id = ?", id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("geofence %s: %w", id, ErrNotFound)
	}
	return nil
}
