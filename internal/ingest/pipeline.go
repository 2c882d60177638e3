// Package ingest implements the CDR ingestion pipeline: header location,
// vendor column mapping, field normalization and record building, feeding
// a record store in chunks.
package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"

	"github.com/wethinkt/go-cdrintel/internal/applog"
	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// DefaultChunkSize is the number of records handed to the store at once.
const DefaultChunkSize = 500

// RecordSink receives built records and the session audit entry.
type RecordSink interface {
	InsertRecords(ctx context.Context, records []cdr.Record) error
	RecordSession(ctx context.Context, s cdr.Session) error
}

// AlertEvaluator is called for every accepted record and returns the number
// of alerts it raised.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, rec cdr.Record) int
}

// SessionEnricher runs after a session has been stored, for example to
// resolve missing coordinates. It returns the number of records updated and
// the alerts those updates raised.
type SessionEnricher interface {
	EnrichSession(ctx context.Context, sessionID string) (updated, alerts int, err error)
}

// PipelineConfig configures a Pipeline. Zero values select defaults and
// disable the optional collaborators.
type PipelineConfig struct {
	ChunkSize int
	Geofences AlertEvaluator
	Enricher  SessionEnricher

	// Workstation is recorded on every session for the custody trail.
	Workstation string
}

// Pipeline ingests CDR files into a RecordSink.
type Pipeline struct {
	sink RecordSink
	cfg  PipelineConfig
}

// NewPipeline creates a pipeline writing to sink.
func NewPipeline(sink RecordSink, cfg PipelineConfig) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Pipeline{sink: sink, cfg: cfg}
}

// Options are per-file ingestion parameters.
type Options struct {
	SuspectName string
	// SessionID overrides the generated session identifier.
	SessionID string
	// SubjectNumber overrides subject-number detection for direction
	// inference.
	SubjectNumber string
}

// Result summarises one ingested file.
type Result struct {
	RecordsInserted     int                 `json:"records_inserted"`
	SessionID           string              `json:"session_id"`
	SuspectName         string              `json:"suspect_name,omitempty"`
	FormatDetected      VendorColumnMap     `json:"format_detected"`
	Validation          cdr.ValidationStats `json:"validation"`
	HeaderRow           int                 `json:"header_row"`
	RowsDiscarded       int                 `json:"rows_discarded"`
	SubjectNumber       string              `json:"subject_number,omitempty"`
	FileHash            string              `json:"file_hash"`
	GeofenceAlerts      int                 `json:"geofence_alerts"`
	CoordinatesResolved int                 `json:"coordinates_resolved"`
}

// IngestFile ingests the file at path.
func (p *Pipeline) IngestFile(ctx context.Context, path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return p.Ingest(ctx, filepath.Base(path), f, opts)
}

// Ingest reads one file from r. name is used for format detection and
// provenance; a ".gz" suffix is decompressed first. Row-level problems are
// counted, never returned; only file-level problems produce an error.
func (p *Pipeline) Ingest(ctx context.Context, name string, r io.Reader, opts Options) (res *Result, err error) {
	defer applog.Log.Timed("ingest file", "name", name)()
	start := time.Now()

	if strings.EqualFold(filepath.Ext(name), ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open gzip input: %w", err)
		}
		defer zr.Close()
		r = zr
		name = name[:len(name)-len(".gz")]
	}

	format, err := DetectFormat(name)
	if err != nil {
		ingestFilesTotal.WithLabelValues("unknown", "error").Inc()
		return nil, err
	}
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		ingestFilesTotal.WithLabelValues(string(format), status).Inc()
		ingestDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	hasher := blake3.New()
	tee := io.TeeReader(r, hasher)

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	res = &Result{SessionID: sessionID, SuspectName: opts.SuspectName}

	var (
		header []string
		data   []DataRow
		colMap VendorColumnMap
	)
	switch format {
	case FormatJSON:
		doc, err := ReadJSON(tee)
		if err != nil {
			return nil, err
		}
		if res.SuspectName == "" {
			res.SuspectName = doc.SuspectName
		}
		var rows [][]string
		header, rows = jsonTable(doc.Records)
		for i, row := range rows {
			data = append(data, DataRow{Num: i + 1, Cells: row})
		}
		colMap = jsonColumnMap(header)
		res.FormatDetected = VendorColumnMap{Vendor: colMap.Vendor, Type: colMap.Type}

	default:
		var rows [][]string
		if format == FormatSpreadsheet {
			rows, err = ReadSpreadsheet(tee)
		} else {
			rows, err = ReadDelimited(tee)
		}
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, ErrNoHeader
		}
		res.HeaderRow = LocateHeader(rows)
		header, data, res.RowsDiscarded = TrimTable(rows, res.HeaderRow)
		colMap = MapColumns(header)
		res.FormatDetected = colMap
	}
	io.Copy(io.Discard, tee)
	res.FileHash = hex.EncodeToString(hasher.Sum(nil))

	applog.Log.Info("Ingesting CDR file", "name", name, "format", format,
		"vendor", colMap.Vendor, "rows", len(data), "session_id", sessionID)

	builder := NewBuilder(header, colMap, BuildOptions{
		SessionID:   sessionID,
		SuspectName: res.SuspectName,
		SourceName:  name,
	})
	res.SubjectNumber = opts.SubjectNumber
	if res.SubjectNumber == "" {
		res.SubjectNumber = DetectSubjectNumber(data, builder)
	}
	builder.SetSubjectNumber(res.SubjectNumber)

	if err := p.buildAndStore(ctx, builder, data, res); err != nil {
		return res, err
	}

	session := cdr.Session{
		ID:              sessionID,
		SuspectName:     res.SuspectName,
		SourceFile:      name,
		FileHash:        res.FileHash,
		Vendor:          colMap.Vendor,
		RecordsInserted: res.RecordsInserted,
		Validation:      res.Validation,
		IngestedAt:      time.Now().UTC(),
		Workstation:     p.cfg.Workstation,
	}
	if err := p.sink.RecordSession(ctx, session); err != nil {
		return res, fmt.Errorf("record session: %w", err)
	}
	ingestVendorTotal.WithLabelValues(colMap.Vendor).Inc()

	if p.cfg.Enricher != nil && res.RecordsInserted > 0 {
		n, alerts, err := p.cfg.Enricher.EnrichSession(ctx, sessionID)
		if err != nil {
			applog.Log.Warn("Session enrichment failed", "session_id", sessionID, "error", err)
		}
		res.CoordinatesResolved = n
		res.GeofenceAlerts += alerts
	}

	applog.Log.Info("Ingested CDR file", "name", name, "session_id", sessionID,
		"inserted", res.RecordsInserted, "missing_msisdn", res.Validation.MissingMSISDN,
		"missing_time", res.Validation.MissingTime, "other", res.Validation.Other)
	return res, nil
}

// buildAndStore builds every data row and writes accepted records in
// chunks. A failing row never stops the loop.
func (p *Pipeline) buildAndStore(ctx context.Context, b *Builder, data []DataRow, res *Result) error {
	chunk := make([]cdr.Record, 0, p.cfg.ChunkSize)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := p.sink.InsertRecords(ctx, chunk); err != nil {
			return fmt.Errorf("insert records: %w", err)
		}
		res.RecordsInserted += len(chunk)
		chunk = make([]cdr.Record, 0, p.cfg.ChunkSize)
		return nil
	}

	for _, row := range data {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, rr := b.Build(row.Cells, row.Num)
		rr.Count(&res.Validation)
		ingestRowsTotal.WithLabelValues(rr.Outcome.String()).Inc()
		if rr.Outcome != Accepted {
			applog.Log.Debug("Skipping row", "row", row.Num, "reason", rr.Outcome, "error", rr.Err)
			continue
		}

		if p.cfg.Geofences != nil {
			res.GeofenceAlerts += p.cfg.Geofences.Evaluate(ctx, rec)
		}
		chunk = append(chunk, rec)
		if len(chunk) >= p.cfg.ChunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}
