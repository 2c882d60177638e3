package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wethinkt/go-cdrintel/internal/applog"
	"github.com/wethinkt/go-cdrintel/internal/cdr"
	"github.com/wethinkt/go-cdrintel/internal/lookup"
)

// ErrTooFewSuspects is returned by the cross-suspect views when fewer than
// two distinct suspect names are given.
var ErrTooFewSuspects = errors.New("at least two suspects are required")

var suspectPalette = []string{"#ec4899", "#8b5cf6", "#10b981", "#f59e0b", "#3b82f6", "#ef4444", "#14b8a6"}

// DeviceDecoder resolves an IMEI to a device description.
type DeviceDecoder interface {
	Decode(ctx context.Context, imei string) (*lookup.Device, error)
}

// SuspectUsage is one suspect's share of a common number, tower or device.
type SuspectUsage struct {
	Name            string    `json:"name"`
	Count           int       `json:"count"`
	DurationSeconds float64   `json:"total_duration_seconds,omitempty"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
}

func (u *SuspectUsage) add(r *cdr.Record) {
	if u.Count == 0 || r.CallStartTime.Before(u.FirstSeen) {
		u.FirstSeen = r.CallStartTime
	}
	if r.CallStartTime.After(u.LastSeen) {
		u.LastSeen = r.CallStartTime
	}
	u.Count++
	if r.DurationSeconds != nil {
		u.DurationSeconds += *r.DurationSeconds
	}
}

// CommonNumber is a counterpart contacted by more than one suspect.
type CommonNumber struct {
	Number               string         `json:"number"`
	TotalCalls           int            `json:"total_calls"`
	TotalDurationSeconds float64        `json:"total_duration_seconds"`
	FirstContact         time.Time      `json:"first_contact"`
	LastContact          time.Time      `json:"last_contact"`
	Suspects             []SuspectUsage `json:"suspects"`
}

// CommonNumbers is the shared-contact graph of a group of suspects.
type CommonNumbers struct {
	Suspects []string       `json:"suspects"`
	Count    int            `json:"common_numbers_count"`
	Network  Network        `json:"network"`
	Numbers  []CommonNumber `json:"detailed_numbers"`
}

// SharedTower is a cell used by one or more of the suspects.
type SharedTower struct {
	TowerID    string         `json:"tower_id"`
	Lat        *float64       `json:"lat,omitempty"`
	Lon        *float64       `json:"lon,omitempty"`
	Suspects   []SuspectUsage `json:"suspects"`
	TotalUsage int            `json:"total_usage"`
	IsShared   bool           `json:"is_shared"`
}

// CommonTowers lists every tower of the suspects, with the shared ones
// repeated under CoLocations.
type CommonTowers struct {
	Suspects      []string                 `json:"suspects"`
	SuspectColors map[string]string        `json:"suspect_colors"`
	CoLocations   []SharedTower            `json:"co_locations"`
	SuspectTowers map[string][]SharedTower `json:"suspect_towers"`
}

// CommonDevice is a handset used by more than one suspect.
type CommonDevice struct {
	IMEI       string         `json:"imei"`
	Device     *lookup.Device `json:"device_info,omitempty"`
	SharedBy   []SuspectUsage `json:"shared_by"`
	TotalUsage int            `json:"total_usage"`
}

// CommonDevices lists the handsets shared between suspects.
type CommonDevices struct {
	Suspects []string       `json:"suspects"`
	Count    int            `json:"common_devices_count"`
	Devices  []CommonDevice `json:"common_devices"`
}

// SuspectNames trims, drops empty entries and removes duplicates while
// keeping the given order. Comma separated entries are split.
func SuspectNames(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// suspectRecords maps suspect names to their records.
type suspectRecords struct {
	names   []string
	records map[string][]cdr.Record
}

func (e *Engine) loadSuspects(ctx context.Context, names []string) (*suspectRecords, error) {
	names = SuspectNames(names)
	if len(names) < 2 {
		return nil, ErrTooFewSuspects
	}
	sr := &suspectRecords{names: names, records: make(map[string][]cdr.Record, len(names))}
	for _, name := range names {
		recs, _, err := e.src.Records(ctx, cdr.Scope{SuspectName: name})
		if err != nil {
			return nil, fmt.Errorf("load records of %s: %w", name, err)
		}
		sortByStart(recs)
		sr.records[name] = recs
	}
	applog.Log.Debug("Loaded cross-suspect scope", "suspects", names)
	return sr, nil
}

// usageTable accumulates per-key, per-suspect usage.
type usageTable struct {
	order []string
	rows  map[string]map[string]*SuspectUsage
}

func newUsageTable() *usageTable {
	return &usageTable{rows: make(map[string]map[string]*SuspectUsage)}
}

func (t *usageTable) add(key, suspect string, r *cdr.Record) {
	row, ok := t.rows[key]
	if !ok {
		row = make(map[string]*SuspectUsage)
		t.rows[key] = row
		t.order = append(t.order, key)
	}
	u, ok := row[suspect]
	if !ok {
		u = &SuspectUsage{Name: suspect}
		row[suspect] = u
	}
	u.add(r)
}

// usages returns the row of key in suspect order, with its total count.
func (t *usageTable) usages(key string, suspects []string) ([]SuspectUsage, int) {
	var (
		out   []SuspectUsage
		total int
	)
	for _, name := range suspects {
		if u, ok := t.rows[key][name]; ok {
			out = append(out, *u)
			total += u.Count
		}
	}
	return out, total
}

// ranked returns the keys ordered by total usage, then key.
func (t *usageTable) ranked(suspects []string) []string {
	totals := make(map[string]int, len(t.order))
	for _, k := range t.order {
		_, totals[k] = t.usages(k, suspects)
	}
	keys := append([]string(nil), t.order...)
	sort.SliceStable(keys, func(i, j int) bool {
		if totals[keys[i]] != totals[keys[j]] {
			return totals[keys[i]] > totals[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// FindCommonNumbers finds counterparts contacted by at least two of the
// suspects. The counterpart is taken relative to each suspect's own subject
// number, so both directions of traffic count.
func FindCommonNumbers(sr *suspectRecords) *CommonNumbers {
	table := newUsageTable()
	for _, name := range sr.names {
		recs := sr.records[name]
		subject := SubjectNumber(recs)
		for i := range recs {
			other := recs[i].Counterpart(subject)
			if other == "" || other == subject {
				continue
			}
			table.add(other, name, &recs[i])
		}
	}

	out := &CommonNumbers{
		Suspects: sr.names,
		Network:  Network{Nodes: []Node{}, Edges: []Edge{}},
		Numbers:  []CommonNumber{},
	}
	for i, name := range sr.names {
		out.Network.Nodes = append(out.Network.Nodes, Node{
			ID: name, Label: name, Type: "suspect", Color: suspectPalette[i%len(suspectPalette)], Value: 100,
		})
	}
	for _, number := range table.ranked(sr.names) {
		usages, total := table.usages(number, sr.names)
		if len(usages) < 2 {
			continue
		}
		cn := CommonNumber{Number: number, TotalCalls: total, Suspects: usages}
		for i, u := range usages {
			cn.TotalDurationSeconds += u.DurationSeconds
			if i == 0 || u.FirstSeen.Before(cn.FirstContact) {
				cn.FirstContact = u.FirstSeen
			}
			if u.LastSeen.After(cn.LastContact) {
				cn.LastContact = u.LastSeen
			}
		}
		out.Numbers = append(out.Numbers, cn)

		nodeID := "number_" + number
		out.Network.Nodes = append(out.Network.Nodes, Node{
			ID: nodeID, Label: truncateLabel(number), Type: "number", Color: contactColor, Value: min(50, max(10, total)),
		})
		for _, u := range usages {
			out.Network.Edges = append(out.Network.Edges, Edge{
				From:  u.Name,
				To:    nodeID,
				Value: u.Count,
				Label: fmt.Sprint(u.Count),
				Title: fmt.Sprintf("Calls: %d, Duration: %ds", u.Count, int(u.DurationSeconds)),
			})
		}
	}
	out.Count = len(out.Numbers)
	return out
}

// FindCommonTowers groups the suspects' records by cell. Every tower is
// listed under each suspect that used it; towers used by two or more
// suspects are also reported as co-locations. Coordinates come from the
// first located record on the tower.
func FindCommonTowers(sr *suspectRecords) *CommonTowers {
	table := newUsageTable()
	type position struct{ lat, lon *float64 }
	positions := make(map[string]position)
	for _, name := range sr.names {
		recs := sr.records[name]
		for i := range recs {
			r := &recs[i]
			cell := r.Location()
			if cell == "" {
				continue
			}
			table.add(cell, name, r)
			if _, ok := positions[cell]; !ok && r.HasCoordinates() {
				positions[cell] = position{r.LocationLat, r.LocationLon}
			}
		}
	}

	out := &CommonTowers{
		Suspects:      sr.names,
		SuspectColors: make(map[string]string, len(sr.names)),
		CoLocations:   []SharedTower{},
		SuspectTowers: make(map[string][]SharedTower, len(sr.names)),
	}
	for i, name := range sr.names {
		out.SuspectColors[name] = suspectPalette[i%len(suspectPalette)]
		out.SuspectTowers[name] = []SharedTower{}
	}
	for _, cell := range table.ranked(sr.names) {
		usages, total := table.usages(cell, sr.names)
		pos := positions[cell]
		tower := SharedTower{
			TowerID:    cell,
			Lat:        pos.lat,
			Lon:        pos.lon,
			Suspects:   usages,
			TotalUsage: total,
			IsShared:   len(usages) > 1,
		}
		if tower.IsShared {
			out.CoLocations = append(out.CoLocations, tower)
		}
		for _, u := range usages {
			out.SuspectTowers[u.Name] = append(out.SuspectTowers[u.Name], tower)
		}
	}
	return out
}

// FindCommonDevices finds IMEIs that appear in the records of at least two
// suspects.
func FindCommonDevices(sr *suspectRecords) *CommonDevices {
	table := newUsageTable()
	for _, name := range sr.names {
		recs := sr.records[name]
		for i := range recs {
			if recs[i].IMEI != "" {
				table.add(recs[i].IMEI, name, &recs[i])
			}
		}
	}

	out := &CommonDevices{Suspects: sr.names, Devices: []CommonDevice{}}
	for _, imei := range table.ranked(sr.names) {
		usages, total := table.usages(imei, sr.names)
		if len(usages) < 2 {
			continue
		}
		out.Devices = append(out.Devices, CommonDevice{IMEI: imei, SharedBy: usages, TotalUsage: total})
	}
	out.Count = len(out.Devices)
	return out
}

// CommonNumbers loads every suspect and finds their shared counterparts.
func (e *Engine) CommonNumbers(ctx context.Context, suspects []string) (*CommonNumbers, error) {
	sr, err := e.loadSuspects(ctx, suspects)
	if err != nil {
		return nil, err
	}
	return FindCommonNumbers(sr), nil
}

// CommonTowers loads every suspect and groups their records by tower.
func (e *Engine) CommonTowers(ctx context.Context, suspects []string) (*CommonTowers, error) {
	sr, err := e.loadSuspects(ctx, suspects)
	if err != nil {
		return nil, err
	}
	return FindCommonTowers(sr), nil
}

// CommonDevices loads every suspect and finds their shared handsets. When a
// device decoder is configured each shared IMEI is described; decode
// failures leave the description empty.
func (e *Engine) CommonDevices(ctx context.Context, suspects []string) (*CommonDevices, error) {
	sr, err := e.loadSuspects(ctx, suspects)
	if err != nil {
		return nil, err
	}
	out := FindCommonDevices(sr)
	if e.cfg.Devices == nil {
		return out, nil
	}
	for i := range out.Devices {
		dev, err := e.cfg.Devices.Decode(ctx, out.Devices[i].IMEI)
		if err != nil {
			applog.Log.Debug("Shared device not decoded", "imei", out.Devices[i].IMEI, "error", err)
			continue
		}
		out.Devices[i].Device = dev
	}
	return out, nil
}
