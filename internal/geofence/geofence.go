// Package geofence holds suspect geofence definitions, point-in-polygon
// evaluation of ingested records and the live alert broadcaster.
package geofence

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPolygon is returned for geometries that cannot enclose an area.
var ErrInvalidPolygon = errors.New("invalid polygon")

// Position is a [longitude, latitude] pair, GeoJSON order.
type Position [2]float64

func (p Position) Lon() float64 { return p[0] }
func (p Position) Lat() float64 { return p[1] }

// Polygon is a GeoJSON polygon geometry. The first ring is the outer
// boundary; further rings are holes.
type Polygon struct {
	Type        string       `json:"type" yaml:"type"`
	Coordinates [][]Position `json:"coordinates" yaml:"coordinates"`
}

// Geofence is a named area watched for one suspect.
type Geofence struct {
	ID          string    `json:"id" yaml:"id,omitempty"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Geometry    Polygon   `json:"geometry" yaml:"geometry"`
	SuspectName string    `json:"suspect_name" yaml:"suspect_name"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// Validate checks the geometry. Rings must have at least three distinct
// vertices; a closing vertex equal to the first is allowed.
func (p Polygon) Validate() error {
	if p.Type != "" && p.Type != "Polygon" {
		return fmt.Errorf("%w: unsupported geometry type %q", ErrInvalidPolygon, p.Type)
	}
	if len(p.Coordinates) == 0 {
		return fmt.Errorf("%w: no rings", ErrInvalidPolygon)
	}
	for i, ring := range p.Coordinates {
		if len(openRing(ring)) < 3 {
			return fmt.Errorf("%w: ring %d has fewer than 3 vertices", ErrInvalidPolygon, i)
		}
		for _, pos := range ring {
			if pos.Lat() < -90 || pos.Lat() > 90 || pos.Lon() < -180 || pos.Lon() > 180 {
				return fmt.Errorf("%w: position %v out of range", ErrInvalidPolygon, pos)
			}
		}
	}
	return nil
}

// Validate checks the geofence fields and geometry.
func (g Geofence) Validate() error {
	if g.Name == "" {
		return errors.New("geofence name is required")
	}
	if g.SuspectName == "" {
		return errors.New("geofence suspect_name is required")
	}
	return g.Geometry.Validate()
}

// Contains reports whether the point lies inside the outer ring and outside
// every hole. Points exactly on an edge may fall either way.
func (p Polygon) Contains(lat, lon float64) bool {
	if len(p.Coordinates) == 0 {
		return false
	}
	if !ringContains(p.Coordinates[0], lat, lon) {
		return false
	}
	for _, hole := range p.Coordinates[1:] {
		if ringContains(hole, lat, lon) {
			return false
		}
	}
	return true
}

// ringContains is the even-odd ray casting test.
func ringContains(ring []Position, lat, lon float64) bool {
	ring = openRing(ring)
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		yi, xi := ring[i].Lat(), ring[i].Lon()
		yj, xj := ring[j].Lat(), ring[j].Lon()
		if (yi > lat) != (yj > lat) && lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// openRing drops the closing vertex when it repeats the first one.
func openRing(ring []Position) []Position {
	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		return ring[:n-1]
	}
	return ring
}
