package analytics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// Report bundles every view of a scope.
type Report struct {
	Scope       cdr.Scope       `json:"scope"`
	GeneratedAt time.Time       `json:"generated_at"`
	Overview    *Overview       `json:"overview"`
	Network     *Network        `json:"network"`
	Heatmap     *Heatmap        `json:"heatmap"`
	Devices     *DeviceTimeline `json:"imei_timeline"`
	Movement    *Movement       `json:"movement"`
	Colocations []Colocation    `json:"colocation"`
	Anomalies   []Anomaly       `json:"anomalies"`
	Summary     *Summary        `json:"summary"`
}

// Report loads the scope once and runs all analyzers concurrently over the
// shared, read-only record slice.
func (e *Engine) Report(ctx context.Context, scope cdr.Scope) (*Report, error) {
	recs, resolved, err := e.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	rep := &Report{Scope: resolved, GeneratedAt: now}

	g, gCtx := errgroup.WithContext(ctx)
	run := func(fn func()) {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			fn()
			return nil
		})
	}
	run(func() { rep.Overview = BuildOverview(recs, now) })
	run(func() { rep.Network = BuildNetwork(recs) })
	run(func() { rep.Heatmap = BuildHeatmap(recs, HeatmapAll) })
	run(func() { rep.Devices = BuildDeviceTimeline(recs) })
	run(func() { rep.Movement = BuildMovement(recs, LayerDay) })
	run(func() { rep.Colocations = DetectColocations(recs, e.cfg.ColocationWindow) })
	run(func() { rep.Anomalies = DetectAnomalies(recs) })
	run(func() {
		rep.Summary = Summarize(recs)
		rep.Summary.Scope = resolved
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rep, nil
}
