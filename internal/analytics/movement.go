package analytics

import (
	"fmt"
	"strings"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// MovementLayer selects how positions are grouped into paths.
type MovementLayer string

const (
	LayerDay  MovementLayer = "day"
	LayerIMEI MovementLayer = "imei"
)

// ParseMovementLayer validates a layer name; empty means day.
func ParseMovementLayer(s string) (MovementLayer, error) {
	switch l := MovementLayer(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LayerDay, nil
	case LayerDay, LayerIMEI:
		return l, nil
	default:
		return "", fmt.Errorf("unknown movement layer %q", s)
	}
}

var pathColors = []string{"#6366f1", "#ec4899", "#10b981", "#f59e0b", "#3b82f6"}

// Coordinate is a [longitude, latitude] pair.
type Coordinate [2]float64

// Path is an ordered sequence of positions.
type Path struct {
	Coordinates []Coordinate `json:"coordinates"`
	Color       string       `json:"color"`
	Label       string       `json:"label"`
}

// Marker is a single annotated position.
type Marker struct {
	Coordinates Coordinate `json:"coordinates"`
	Color       string     `json:"color"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
}

// Movement holds the movement paths and the earliest position markers.
type Movement struct {
	Paths   []Path   `json:"paths"`
	Markers []Marker `json:"markers"`
}

// BuildMovement groups located records by day or by IMEI. Groups with
// fewer than two positions produce no path.
func BuildMovement(recs []cdr.Record, layer MovementLayer) *Movement {
	mv := &Movement{Paths: []Path{}, Markers: []Marker{}}

	groups := make(map[string][]Coordinate)
	var order []string
	for i := range recs {
		r := &recs[i]
		if !r.HasCoordinates() {
			continue
		}
		c := Coordinate{*r.LocationLon, *r.LocationLat}

		var key string
		if layer == LayerIMEI {
			key = r.IMEI
			if key == "" {
				continue
			}
		} else {
			key = dateKey(r.CallStartTime)
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)

		if len(mv.Markers) < maxMarkers {
			cell := r.Location()
			if cell == "" {
				cell = "Unknown"
			}
			mv.Markers = append(mv.Markers, Marker{
				Coordinates: c,
				Color:       targetColor,
				Title:       "Cell: " + cell,
				Description: "Time: " + r.CallStartTime.UTC().Format("2006-01-02 15:04:05"),
			})
		}
	}

	idx := 0
	for _, key := range order {
		coords := groups[key]
		if len(coords) < 2 {
			continue
		}
		label := key
		if layer == LayerIMEI && len(key) > 12 {
			label = key[:12] + "..."
		}
		mv.Paths = append(mv.Paths, Path{
			Coordinates: coords,
			Color:       pathColors[idx%len(pathColors)],
			Label:       label,
		})
		idx++
	}
	return mv
}
