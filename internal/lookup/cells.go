package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/wethinkt/go-cdrintel/internal/applog"
)

// Cell identifies a cell as it appears in a CDR. Radio parameters are
// optional.
type Cell struct {
	ID  string
	MCC *int
	MNC *int
	LAC *int
}

// Position is a resolved cell location. Source is SourceUnknown when no
// provider knew the cell.
type Position struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Range       int     `json:"range"`
	Description string  `json:"description,omitempty"`
	Source      Source  `json:"source"`
}

// Found reports whether the position was resolved.
func (p Position) Found() bool { return p.Source != SourceUnknown && p.Source != "" }

// CellResolver resolves cells through the local catalogue, then the
// OpenCelliD API.
type CellResolver struct {
	local  *CellDB
	apiURL string
	apiKey string
	client *http.Client
}

// NewCellResolver creates a resolver. local may be nil; the OpenCelliD
// provider is only consulted when an API key is configured.
func NewCellResolver(cfg Config, local *CellDB) *CellResolver {
	return &CellResolver{
		local:  local,
		apiURL: cfg.OpenCellIDURL,
		apiKey: cfg.OpenCellIDKey,
		client: newHTTPClient(cfg.Timeout),
	}
}

// Resolve returns the position of cell. It never fails; an unresolved cell
// has Source SourceUnknown.
func (r *CellResolver) Resolve(ctx context.Context, cell Cell) Position {
	if cell.ID == "" {
		return Position{Source: SourceUnknown}
	}
	if r.local != nil {
		p, ok, err := r.local.Lookup(ctx, cell)
		if err != nil {
			applog.Log.Warn("Local cell lookup failed", "cell_id", cell.ID, "error", err)
		}
		if ok {
			lookupsTotal.WithLabelValues("cell", string(SourceLocal)).Inc()
			return p
		}
	}
	if p, err := r.openCellID(ctx, cell); err != nil {
		applog.Log.Debug("OpenCelliD lookup failed", "cell_id", cell.ID, "error", err)
	} else if p.Found() {
		lookupsTotal.WithLabelValues("cell", string(p.Source)).Inc()
		if r.local != nil {
			if err := r.local.Put(ctx, cell, p); err != nil {
				applog.Log.Warn("Caching cell position failed", "cell_id", cell.ID, "error", err)
			}
		}
		return p
	}
	lookupsTotal.WithLabelValues("cell", string(SourceUnknown)).Inc()
	return Position{Source: SourceUnknown}
}

var digitRun = regexp.MustCompile(`\d+`)

// numericCellID extracts the numeric cell identity OpenCelliD expects.
func numericCellID(id string) (int64, bool) {
	m := digitRun.FindString(id)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 64)
	return n, err == nil && n > 0
}

type openCellIDResponse struct {
	Status string  `json:"status"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Range  int     `json:"range"`
}

func (r *CellResolver) openCellID(ctx context.Context, cell Cell) (Position, error) {
	if r.apiKey == "" || r.apiURL == "" || cell.MCC == nil || cell.MNC == nil || cell.LAC == nil {
		return Position{Source: SourceUnknown}, nil
	}
	cid, ok := numericCellID(cell.ID)
	if !ok {
		return Position{Source: SourceUnknown}, nil
	}

	q := url.Values{}
	q.Set("key", r.apiKey)
	q.Set("mcc", strconv.Itoa(*cell.MCC))
	q.Set("mnc", strconv.Itoa(*cell.MNC))
	q.Set("lac", strconv.Itoa(*cell.LAC))
	q.Set("cellid", strconv.FormatInt(cid, 10))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return Position{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Position{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Position{}, fmt.Errorf("opencellid returned %d", resp.StatusCode)
	}

	var body openCellIDResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Position{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Status != "ok" {
		return Position{Source: SourceUnknown}, nil
	}
	return Position{Lat: body.Lat, Lon: body.Lon, Range: body.Range, Source: SourceSecondary}, nil
}
