package geofence

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileDoc is the layout of a geofence definition file.
type fileDoc struct {
	Geofences []Geofence `yaml:"geofences"`
}

// LoadFile reads geofence definitions from a YAML (or JSON) file. Each
// geofence is validated; the first invalid one aborts the load.
func LoadFile(path string) ([]Geofence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geofence file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a geofence document: either a mapping with a "geofences"
// list or a bare list.
func Decode(r io.Reader) ([]Geofence, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geofences: %w", err)
	}

	var fences []Geofence
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err == nil && doc.Geofences != nil {
		fences = doc.Geofences
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fences); err != nil {
			return nil, fmt.Errorf("decode geofences: %w", err)
		}
	}

	for i, g := range fences {
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("geofence %d (%s): %w", i, g.Name, err)
		}
	}
	return fences, nil
}
