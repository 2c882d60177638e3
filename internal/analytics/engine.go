// Package analytics computes forensic views over a scoped set of CDR
// records (contact network, temporal heatmap, device timeline, movement,
// co-location, anomalies, summary statistics, country breakdown and SMS
// services) and cross-references between suspects.
//
// Every view is a pure function of the record slice; the Engine only
// resolves the scope through a RecordSource and hands the records over.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wethinkt/go-cdrintel/internal/applog"
	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// DefaultColocationWindow is the default co-location presence window.
const DefaultColocationWindow = 15 * time.Minute

const (
	maxContacts = 50
	maxMarkers  = 20
)

// RecordSource resolves a scope to its records in chronological order.
type RecordSource interface {
	Records(ctx context.Context, scope cdr.Scope) ([]cdr.Record, cdr.Scope, error)
}

// Config tunes the engine.
type Config struct {
	ColocationWindow time.Duration
	// HomeRegion is the ISO region of numbers without a country code.
	HomeRegion string
	// Devices describes shared handsets; nil skips decoding.
	Devices DeviceDecoder
}

// Engine runs the analyzers over records loaded from a RecordSource.
type Engine struct {
	src RecordSource
	cfg Config
}

// NewEngine creates an engine reading from src.
func NewEngine(src RecordSource, cfg Config) *Engine {
	if cfg.ColocationWindow <= 0 {
		cfg.ColocationWindow = DefaultColocationWindow
	}
	if cfg.HomeRegion == "" {
		cfg.HomeRegion = DefaultHomeRegion
	}
	return &Engine{src: src, cfg: cfg}
}

// load fetches the scoped records, sorted by start time.
func (e *Engine) load(ctx context.Context, scope cdr.Scope) ([]cdr.Record, cdr.Scope, error) {
	recs, resolved, err := e.src.Records(ctx, scope)
	if err != nil {
		return nil, scope, fmt.Errorf("load records: %w", err)
	}
	sortByStart(recs)
	applog.Log.Debug("Loaded analytics scope", "session_id", resolved.SessionID,
		"suspect", resolved.SuspectName, "records", len(recs))
	return recs, resolved, nil
}

// ContactNetwork loads the scope and builds its contact graph.
func (e *Engine) ContactNetwork(ctx context.Context, scope cdr.Scope) (*Network, error) {
	recs, _, err := e.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	return BuildNetwork(recs), nil
}

// Heatmap loads the scope and buckets it by date and hour.
func (e *Engine) Heatmap(ctx context.Context, scope cdr.Scope, filter HeatmapFilter) (*Heatmap, error) {
	recs, _, err := e.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	return BuildHeatmap(recs, filter), nil
}

// IMEITimeline loads the scope and builds the device timeline.
func (e *Engine) IMEITimeline(ctx context.Context, scope cdr.Scope) (*DeviceTimeline, error) {
	recs, _, err := e.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	return BuildDeviceTimeline(recs), nil
}

// Movement loads the scope and builds movement paths.
func (e *Engine) Movement(ctx context.Context, scope cdr.Scope, layer MovementLayer) (*Movement, error) {
	recs, _, err := e.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	return BuildMovement(recs, layer), nil
}

// Colocation loads the scope and detects co-locations. A non-positive
// window selects the configured default.
func (e *Engine) Colocation(ctx context.Context, scope cdr.Scope, window time.Duration) ([]Colocation, error) {
	recs, _, err := e.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		window = e.cfg.ColocationWindow
	}
	return DetectColocations(recs, window), nil
}

// Anomalies loads the scope and runs the anomaly heuristics.
func (e *Engine) Anomalies(ctx context.Context, scope cdr.Scope) ([]Anomaly, error) {
	recs, _, err := e.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	return DetectAnomalies(recs), nil
}

// Summary loads the scope and computes its summary statistics.
func (e *Engine) Summary(ctx context.Context, scope cdr.Scope) (*Summary, error) {
	recs, resolved, err := e.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	s := Summarize(recs)
	s.Scope = resolved
	return s, nil
}

// Overview loads the scope and builds the case overview.
func (e *Engine) Overview(ctx context.Context, scope cdr.Scope) (*Overview, error) {
	recs, _, err := e.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	return BuildOverview(recs, time.Now()), nil
}

func sortByStart(recs []cdr.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CallStartTime.Before(recs[j].CallStartTime)
	})
}

// SubjectNumber returns the party number appearing most often across both
// party fields. Ties go to the number seen first.
func SubjectNumber(recs []cdr.Record) string {
	counts := make(map[string]int)
	var order []string
	see := func(n string) {
		if n == "" {
			return
		}
		if _, ok := counts[n]; !ok {
			order = append(order, n)
		}
		counts[n]++
	}
	for i := range recs {
		see(recs[i].MSISDNA)
		see(recs[i].MSISDNB)
	}
	best, bestCount := "", 0
	for _, n := range order {
		if counts[n] > bestCount {
			best, bestCount = n, counts[n]
		}
	}
	return best
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// truncateLabel shortens long identifiers for graph labels.
func truncateLabel(s string) string {
	if len(s) > 15 {
		return s[:12] + "..."
	}
	return s
}
