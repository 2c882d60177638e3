// Package export renders a scope of stored CDRs as canonical JSON
// (optionally gzip-compressed), CSV, KML or an analytics workbook.
//
// The canonical JSON document is accepted unchanged by the ingestion
// pipeline, so an export can be re-ingested elsewhere with its call ids and
// fields intact.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wethinkt/go-cdrintel/internal/analytics"
	"github.com/wethinkt/go-cdrintel/internal/applog"
	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// Format is an export output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatJSONGzip Format = "json.gz"
	FormatCSV      Format = "csv"
	FormatKML      Format = "kml"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat validates a format name; empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatJSONGzip, FormatCSV, FormatKML, FormatXLSX:
		return f, nil
	case "gz", "gzip":
		return FormatJSONGzip, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSONGzip:
		return "application/gzip"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatKML:
		return "application/vnd.google-earth.kml+xml"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// FileName suggests a download name for a scope.
func (f Format) FileName(scope cdr.Scope, at time.Time) string {
	name := scope.SessionID
	if name == "" {
		name = scope.SuspectName
	}
	if name == "" {
		name = "cdr"
	}
	return fmt.Sprintf("%s_cdr_export_%s.%s", name, at.Format("20060102_150405"), f)
}

// Document is the canonical JSON export.
type Document struct {
	SessionID   string       `json:"session_id,omitempty"`
	SuspectName string       `json:"suspect_name,omitempty"`
	ExportedAt  time.Time    `json:"exported_at"`
	Count       int          `json:"count"`
	Records     []cdr.Record `json:"records"`
}

// RecordSource resolves a scope to its records.
type RecordSource interface {
	Records(ctx context.Context, scope cdr.Scope) ([]cdr.Record, cdr.Scope, error)
}

// SummarySource builds the tabular analytics used by the workbook format.
type SummarySource interface {
	Summary(ctx context.Context, scope cdr.Scope) (*analytics.Summary, error)
}

// Exporter writes scopes in any supported format.
type Exporter struct {
	src      RecordSource
	analyses SummarySource
	now      func() time.Time
}

// NewExporter creates an exporter. analyses may be nil, which disables the
// workbook format.
func NewExporter(src RecordSource, analyses SummarySource) *Exporter {
	return &Exporter{src: src, analyses: analyses, now: time.Now}
}

// Export writes the scope to w and returns the number of records written.
func (e *Exporter) Export(ctx context.Context, scope cdr.Scope, format Format, w io.Writer) (int, error) {
	defer applog.Log.Timed("export", "format", format)()

	if format == FormatXLSX && e.analyses == nil {
		return 0, fmt.Errorf("workbook export not configured")
	}

	recs, resolved, err := e.src.Records(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("load records: %w", err)
	}
	doc := Document{
		SessionID:   resolved.SessionID,
		SuspectName: resolved.SuspectName,
		ExportedAt:  e.now().UTC(),
		Count:       len(recs),
		Records:     recs,
	}
	if doc.Records == nil {
		doc.Records = []cdr.Record{}
	}

	switch format {
	case FormatJSON:
		err = WriteJSON(w, &doc)
	case FormatJSONGzip:
		err = WriteJSONGzip(w, &doc)
	case FormatCSV:
		err = WriteCSV(w, recs)
	case FormatKML:
		err = WriteKML(w, &doc)
	case FormatXLSX:
		var sum *analytics.Summary
		if sum, err = e.analyses.Summary(ctx, resolved); err == nil {
			err = WriteWorkbook(w, sum, recs)
		}
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return 0, err
	}
	exportsTotal.WithLabelValues(string(format)).Inc()
	exportRecordsTotal.Add(float64(len(recs)))
	applog.Log.Info("Exported scope", "format", format, "session_id", resolved.SessionID,
		"suspect", resolved.SuspectName, "records", len(recs))
	return len(recs), nil
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// WriteJSONGzip writes doc as gzip-compressed JSON.
func WriteJSONGzip(w io.Writer, doc *Document) error {
	zw := gzip.NewWriter(w)
	if err := WriteJSON(zw, doc); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}
	return nil
}

var (
	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cdrintel",
		Subsystem: "export",
		Name:      "exports_total",
		Help:      "Completed exports by format.",
	}, []string{"format"})

	exportRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cdrintel",
		Subsystem: "export",
		Name:      "records_total",
		Help:      "Records written by exports.",
	})
)
