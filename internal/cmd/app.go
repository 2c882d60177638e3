package cmd

import (
	"context"
	"fmt"

	"github.com/wethinkt/go-cdrintel/internal/analytics"
	"github.com/wethinkt/go-cdrintel/internal/applog"
	"github.com/wethinkt/go-cdrintel/internal/export"
	"github.com/wethinkt/go-cdrintel/internal/geofence"
	"github.com/wethinkt/go-cdrintel/internal/ingest"
	"github.com/wethinkt/go-cdrintel/internal/lookup"
	"github.com/wethinkt/go-cdrintel/internal/store"
	"github.com/wethinkt/go-cdrintel/internal/workstation"
)

// app wires the store, pipeline and analyzers from the loaded config.
type app struct {
	store     *store.Store
	cells     *lookup.CellDB
	alerts    *geofence.Broadcaster
	evaluator *geofence.Evaluator
	pipeline  *ingest.Pipeline
	engine    *analytics.Engine
	exporter  *export.Exporter
	devices   *lookup.DeviceDecoder
}

func lookupConfig() (lookup.Config, error) {
	cellDB, err := cfg.CellDBPath()
	if err != nil {
		return lookup.Config{}, err
	}
	return lookup.Config{
		Timeout:          cfg.Lookup.TimeoutDuration(),
		IMEIPrimaryURL:   cfg.Lookup.IMEIPrimaryURL,
		IMEISecondaryURL: cfg.Lookup.IMEISecondaryURL,
		OpenCellIDURL:    cfg.Lookup.OpenCellIDURL,
		OpenCellIDKey:    cfg.Lookup.OpenCellIDKey(),
		CellDBPath:       cellDB,
	}, nil
}

// openApp opens the store and builds every component on top of it.
// Callers must Close the result.
func openApp() (*app, error) {
	dbPath, err := cfg.StorePath()
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	st, err := store.Open(dbPath, store.Config{BatchSize: cfg.Store.BatchSize})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{store: st, alerts: geofence.NewBroadcaster()}
	a.evaluator = geofence.NewEvaluator(st, a.alerts, cfg.Geofence.CacheTTLDuration())

	lcfg, err := lookupConfig()
	if err != nil {
		st.Close()
		return nil, err
	}
	a.devices = lookup.NewDeviceDecoder(lcfg)

	pcfg := ingest.PipelineConfig{
		ChunkSize:   cfg.Ingest.ChunkSize,
		Geofences:   a.evaluator,
		Workstation: workstation.ID(),
	}
	if cfg.Lookup.EnrichOnIngest {
		cells, err := lookup.OpenCellDB(lcfg.CellDBPath)
		if err != nil {
			applog.Log.Warn("Cell database unavailable, coordinates will not be resolved", "error", err)
		} else {
			a.cells = cells
			pcfg.Enricher = lookup.NewCellEnricher(st, lookup.NewCellResolver(lcfg, cells), a.evaluator)
		}
	}
	a.pipeline = ingest.NewPipeline(st, pcfg)

	a.engine = analytics.NewEngine(st, analytics.Config{
		ColocationWindow: cfg.Analytics.WindowDuration(),
		HomeRegion:       cfg.Analytics.HomeRegion,
		Devices:          a.devices,
	})
	a.exporter = export.NewExporter(st, a.engine)
	return a, nil
}

// importGeofenceFile loads the configured geofence file into the store.
func (a *app) importGeofenceFile(ctx context.Context, path string) (int, error) {
	fences, err := geofence.LoadFile(path)
	if err != nil {
		return 0, err
	}
	for _, g := range fences {
		if _, err := a.store.CreateGeofence(ctx, g); err != nil {
			return 0, fmt.Errorf("store geofence %s: %w", g.Name, err)
		}
		a.evaluator.Invalidate(g.SuspectName)
	}
	return len(fences), nil
}

// Close releases the cell database and the store.
func (a *app) Close() error {
	if a.cells != nil {
		a.cells.Close()
	}
	return a.store.Close()
}
