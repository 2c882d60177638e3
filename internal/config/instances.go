package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// InstanceType identifies the kind of long-running cdrintel process.
type InstanceType string

const (
	InstanceServer InstanceType = "server"
	InstanceWatch  InstanceType = "watch"
)

// Instance is one entry in the process registry. A server claims Port; a
// watcher claims Dir so that two watchers never ingest the same drop
// directory twice.
type Instance struct {
	Type      InstanceType `json:"type"`
	PID       int          `json:"pid"`
	Port      int          `json:"port,omitempty"`
	Host      string       `json:"host,omitempty"`
	Dir       string       `json:"dir,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

const instancesFile = "instances.json"

// registry is the on-disk list of running instances. Entries of dead
// processes are pruned on every access.
type registry struct {
	path string
}

func openRegistry() (registry, error) {
	dir, err := Dir()
	if err != nil {
		return registry{}, err
	}
	return registry{path: filepath.Join(dir, instancesFile)}, nil
}

func (r registry) load() ([]Instance, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []Instance
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.path, err)
	}
	return list, nil
}

func (r registry) save(list []Instance) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// update loads the live entries, applies fn and writes the result back when
// anything changed. A corrupt registry is replaced rather than blocking
// startup.
func (r registry) update(fn func([]Instance) []Instance) ([]Instance, error) {
	stored, _ := r.load()
	live := slices.DeleteFunc(slices.Clone(stored), func(inst Instance) bool {
		return !processAlive(inst.PID)
	})
	if fn != nil {
		live = fn(live)
	}
	if !slices.Equal(live, stored) {
		if err := r.save(live); err != nil {
			return live, err
		}
	}
	return live, nil
}

// RegisterInstance records inst in the registry.
func RegisterInstance(inst Instance) error {
	r, err := openRegistry()
	if err != nil {
		return err
	}
	_, err = r.update(func(list []Instance) []Instance { return append(list, inst) })
	return err
}

// UnregisterInstance drops every entry owned by pid.
func UnregisterInstance(pid int) error {
	r, err := openRegistry()
	if err != nil {
		return err
	}
	_, err = r.update(func(list []Instance) []Instance {
		return slices.DeleteFunc(list, func(inst Instance) bool { return inst.PID == pid })
	})
	return err
}

// ListInstances returns the entries whose process is still running.
func ListInstances() ([]Instance, error) {
	r, err := openRegistry()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(r.path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return r.update(nil)
}

// FindInstanceByPort returns the live instance bound to port. Port 0 means
// "any free port" and never conflicts.
func FindInstanceByPort(port int) *Instance {
	if port == 0 {
		return nil
	}
	return findInstance(func(inst Instance) bool { return inst.Port == port })
}

// FindWatcherByDir returns the live watcher that owns dir.
func FindWatcherByDir(dir string) *Instance {
	return findInstance(func(inst Instance) bool {
		return inst.Type == InstanceWatch && inst.Dir == dir
	})
}

func findInstance(match func(Instance) bool) *Instance {
	list, err := ListInstances()
	if err != nil {
		return nil
	}
	if i := slices.IndexFunc(list, match); i >= 0 {
		return &list[i]
	}
	return nil
}
