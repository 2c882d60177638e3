package lookup

import (
	"context"
	"fmt"

	"github.com/wethinkt/go-cdrintel/internal/applog"
	"github.com/wethinkt/go-cdrintel/internal/cdr"
	"github.com/wethinkt/go-cdrintel/internal/store"
)

// CellStore is the part of the record store the enricher needs.
type CellStore interface {
	CellsMissingCoordinates(ctx context.Context, sessionID string) ([]store.MissingCell, error)
	BackfillCoordinates(ctx context.Context, sessionID string, cell store.MissingCell, lat, lon float64, description string) ([]cdr.Record, error)
}

// RecordEvaluator checks a record that has just gained coordinates and
// returns the number of alerts it raised.
type RecordEvaluator interface {
	Evaluate(ctx context.Context, rec cdr.Record) int
}

// CellEnricher backfills coordinates for the cells of a session that were
// ingested without them.
type CellEnricher struct {
	store     CellStore
	resolver  *CellResolver
	evaluator RecordEvaluator
}

// NewCellEnricher creates an enricher writing resolved positions to st.
// Backfilled records are passed to ev when it is non-nil.
func NewCellEnricher(st CellStore, resolver *CellResolver, ev RecordEvaluator) *CellEnricher {
	return &CellEnricher{store: st, resolver: resolver, evaluator: ev}
}

// EnrichSession resolves every distinct unlocated cell of the session and
// returns the number of records updated and the alerts raised by them.
// Unresolved cells are left as is.
func (e *CellEnricher) EnrichSession(ctx context.Context, sessionID string) (updated, alerts int, err error) {
	cells, err := e.store.CellsMissingCoordinates(ctx, sessionID)
	if err != nil {
		return 0, 0, fmt.Errorf("list unlocated cells: %w", err)
	}

	resolved := 0
	for _, mc := range cells {
		if err := ctx.Err(); err != nil {
			return updated, alerts, err
		}
		p := e.resolver.Resolve(ctx, Cell{ID: mc.CellID, MCC: mc.MCC, MNC: mc.MNC, LAC: mc.LAC})
		if !p.Found() {
			continue
		}
		resolved++
		recs, err := e.store.BackfillCoordinates(ctx, sessionID, mc, p.Lat, p.Lon, p.Description)
		if err != nil {
			return updated, alerts, fmt.Errorf("backfill cell %s: %w", mc.CellID, err)
		}
		updated += len(recs)
		if e.evaluator == nil {
			continue
		}
		for _, rec := range recs {
			alerts += e.evaluator.Evaluate(ctx, rec)
		}
	}
	applog.Log.Info("Cell enrichment finished", "session_id", sessionID,
		"cells", len(cells), "resolved", resolved, "records", updated, "alerts", alerts)
	return updated, alerts, nil
}
