package geofence

import (
	"context"
	"sync"
	"time"

	"github.com/wethinkt/go-cdrintel/internal/applog"
	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// DefaultCacheTTL is how long a suspect's geofences are reused before they
// are reloaded from the source.
const DefaultCacheTTL = 30 * time.Second

// Source loads the geofences of one suspect.
type Source interface {
	Geofences(ctx context.Context, suspect string) ([]Geofence, error)
}

// Evaluator checks records against their suspect's geofences and publishes
// an Alert for every fence a record falls in.
type Evaluator struct {
	src Source
	bc  *Broadcaster
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	cache map[string]cachedFences
}

type cachedFences struct {
	fences  []Geofence
	expires time.Time
}

// NewEvaluator creates an evaluator. A non-positive ttl selects
// DefaultCacheTTL.
func NewEvaluator(src Source, bc *Broadcaster, ttl time.Duration) *Evaluator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Evaluator{
		src:   src,
		bc:    bc,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cachedFences),
	}
}

// Evaluate publishes alerts for rec and returns how many were raised.
// Records without coordinates or without a suspect are ignored, and lookup
// failures are logged rather than returned.
func (e *Evaluator) Evaluate(ctx context.Context, rec cdr.Record) int {
	if !rec.HasCoordinates() || rec.SuspectName == "" {
		return 0
	}
	fences, err := e.fencesFor(ctx, rec.SuspectName)
	if err != nil {
		applog.Log.Warn("Geofence lookup failed", "suspect", rec.SuspectName, "error", err)
		return 0
	}

	lat, lon := *rec.LocationLat, *rec.LocationLon
	raised := 0
	for _, g := range fences {
		if !g.Geometry.Contains(lat, lon) {
			continue
		}
		a := Alert{
			GeofenceID:  g.ID,
			Geofence:    g.Name,
			SuspectName: rec.SuspectName,
			MSISDN:      rec.MSISDNA,
			Timestamp:   rec.CallStartTime,
			Lat:         lat,
			Lon:         lon,
			CellID:      rec.Location(),
			RecordID:    rec.RecordID,
			SessionID:   rec.SessionID,
		}
		if e.bc != nil {
			e.bc.Publish(a)
		}
		alertsTotal.WithLabelValues(g.Name).Inc()
		raised++
	}
	return raised
}

func (e *Evaluator) fencesFor(ctx context.Context, suspect string) ([]Geofence, error) {
	e.mu.Lock()
	c, ok := e.cache[suspect]
	e.mu.Unlock()
	if ok && e.now().Before(c.expires) {
		return c.fences, nil
	}

	fences, err := e.src.Geofences(ctx, suspect)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cache[suspect] = cachedFences{fences: fences, expires: e.now().Add(e.ttl)}
	e.mu.Unlock()
	return fences, nil
}

// Invalidate drops cached geofences for suspect, or for everyone when
// suspect is empty.
func (e *Evaluator) Invalidate(suspect string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if suspect == "" {
		e.cache = make(map[string]cachedFences)
		return
	}
	delete(e.cache, suspect)
}
