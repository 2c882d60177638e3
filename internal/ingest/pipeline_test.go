package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// memorySink collects records and sessions in memory.
type memorySink struct {
	mu       sync.Mutex
	records  []cdr.Record
	sessions []cdr.Session
	inserts  int
	failOn   int
}

func (m *memorySink) InsertRecords(_ context.Context, records []cdr.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.failOn > 0 && m.inserts == m.failOn {
		return errors.New("disk full")
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *memorySink) RecordSession(_ context.Context, s cdr.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
	return nil
}

type countingEvaluator struct{ seen int }

func (c *countingEvaluator) Evaluate(_ context.Context, rec cdr.Record) int {
	c.seen++
	if rec.Location() == "GEO1" {
		return 1
	}
	return 0
}

type stubEnricher struct {
	calls  []string
	alerts int
}

func (s *stubEnricher) EnrichSession(_ context.Context, id string) (int, int, error) {
	s.calls = append(s.calls, id)
	return 2, s.alerts, nil
}

const preambleCSV = `Call Detail Report,,,,
Target No,B Party No,Call Initiation Time,Call Dur (s),IMEI
9876543210,9123456780,2024-01-15 10:00:00,60,356938035643809
9876543210,,2024-01-15 11:00:00,30,356938035643809
9123456780,9876543210,bad time,10,
Total,,,,
`

func TestIngest_CSVWithPreamble(t *testing.T) {
	sink := &memorySink{}
	p := NewPipeline(sink, PipelineConfig{})

	res, err := p.Ingest(context.Background(), "cdr.csv", strings.NewReader(preambleCSV), Options{SuspectName: "Ravi"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.HeaderRow)
	assert.Equal(t, 1, res.RowsDiscarded)
	assert.Equal(t, 1, res.RecordsInserted)
	assert.Equal(t, 1, res.Validation.MissingMSISDN)
	assert.Equal(t, 1, res.Validation.MissingTime)
	assert.Equal(t, 0, res.Validation.Other)
	assert.Equal(t, "9876543210", res.SubjectNumber)
	assert.Len(t, res.FileHash, 64)
	assert.Equal(t, "Target No", res.FormatDetected.ColumnMapping[FieldCallingNumber])

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, res.SessionID, rec.SessionID)
	assert.Equal(t, "Ravi", rec.SuspectName)
	assert.Equal(t, "cdr.csv#row=3", rec.RawRowReference)
	assert.Equal(t, "356938035643809", rec.IMEI)
	assert.Equal(t, cdr.DirectionOutgoing, rec.Direction)
	require.NotNil(t, rec.DurationSeconds)
	assert.Equal(t, 60.0, *rec.DurationSeconds)

	require.Len(t, sink.sessions, 1)
	s := sink.sessions[0]
	assert.Equal(t, res.SessionID, s.ID)
	assert.Equal(t, "cdr.csv", s.SourceFile)
	assert.Equal(t, res.FileHash, s.FileHash)
	assert.Equal(t, 1, s.RecordsInserted)
}

func TestIngest_RowAccounting(t *testing.T) {
	var b strings.Builder
	b.WriteString("calling_number;called_number;call_start_time\n")
	for i := 0; i < 1203; i++ {
		switch i % 3 {
		case 0:
			b.WriteString("111;222;2024-01-15 10:00:00\n")
		case 1:
			b.WriteString("111;;2024-01-15 10:00:00\n")
		default:
			b.WriteString("111;333;\n")
		}
	}

	sink := &memorySink{}
	p := NewPipeline(sink, PipelineConfig{ChunkSize: 100})
	res, err := p.Ingest(context.Background(), "bulk.txt", strings.NewReader(b.String()), Options{})
	require.NoError(t, err)

	assert.Equal(t, 401, res.RecordsInserted)
	assert.Equal(t, 1203, res.RecordsInserted+res.Validation.Rejected())
	assert.Equal(t, 5, sink.inserts)
}

func TestIngest_JSONShapes(t *testing.T) {
	cases := map[string]string{
		"single": `{"calling_number":"111","called_number":"222","call_start_time":"2024-01-15T10:00:00"}`,
		"canonical": `{"msisdn_a":"111","msisdn_b":"222","call_start_time":"2024-01-15T10:00:00"}`,
		"array":  `[{"calling_number":"111","called_number":"222","call_start_time":"2024-01-15T10:00:00"}]`,
		"records": `{"suspect_name":"Ravi","records":[
			{"calling_number":"111","called_number":"222","call_start_time":"2024-01-15T10:00:00"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			sink := &memorySink{}
			res, err := NewPipeline(sink, PipelineConfig{}).Ingest(context.Background(), "in.json", strings.NewReader(body), Options{})
			require.NoError(t, err)
			assert.Equal(t, 1, res.RecordsInserted)
			assert.Equal(t, "json", res.FormatDetected.Vendor)
			assert.Equal(t, "json_import", res.FormatDetected.Type)
			assert.Nil(t, res.FormatDetected.ColumnMapping)
			if name == "records" {
				assert.Equal(t, "Ravi", res.SuspectName)
				assert.Equal(t, "Ravi", sink.records[0].SuspectName)
			}
		})
	}
}

func TestIngest_JSONMixedKeys(t *testing.T) {
	body := `{"records":[
		{"calling_number":"111","called_number":"222","call_start_time":"2024-01-15 10:00:00"},
		{"msisdn_a":"333","msisdn_b":"111","call_start_time":"2024-01-15 11:00:00","call_duration_sec":45}
	]}`
	sink := &memorySink{}
	res, err := NewPipeline(sink, PipelineConfig{}).Ingest(context.Background(), "mixed.json", strings.NewReader(body), Options{})
	require.NoError(t, err)
	require.Equal(t, 2, res.RecordsInserted)

	second := sink.records[1]
	assert.Equal(t, "333", second.CallingNumber)
	assert.Equal(t, "111", second.MSISDNB)
	require.NotNil(t, second.DurationSeconds)
	assert.Equal(t, 45.0, *second.DurationSeconds)
}

func TestIngest_InvalidJSONRoot(t *testing.T) {
	p := NewPipeline(&memorySink{}, PipelineConfig{})
	for _, body := range []string{`42`, `"text"`, `{"foo":"bar"}`, `{"records":"nope"}`} {
		_, err := p.Ingest(context.Background(), "bad.json", strings.NewReader(body), Options{})
		assert.ErrorIs(t, err, ErrInvalidJSONRoot, "body %s", body)
	}
}

func TestIngest_UnsupportedExtension(t *testing.T) {
	_, err := NewPipeline(&memorySink{}, PipelineConfig{}).Ingest(context.Background(), "cdr.pdf", strings.NewReader("x"), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestIngest_SinkFailureStops(t *testing.T) {
	sink := &memorySink{failOn: 1}
	_, err := NewPipeline(sink, PipelineConfig{}).Ingest(context.Background(), "cdr.csv", strings.NewReader(preambleCSV), Options{})
	require.Error(t, err)
	assert.Empty(t, sink.sessions)
}

func TestIngest_CollaboratorsInvoked(t *testing.T) {
	csv := "calling_number,called_number,call_start_time,cell_id\n" +
		"111,222,2024-01-15 10:00:00,GEO1\n" +
		"111,333,2024-01-15 10:05:00,C2\n"
	eval := &countingEvaluator{}
	enr := &stubEnricher{alerts: 1}
	sink := &memorySink{}
	p := NewPipeline(sink, PipelineConfig{Geofences: eval, Enricher: enr, Workstation: "ws-1"})

	res, err := p.Ingest(context.Background(), "cdr.csv", strings.NewReader(csv), Options{SessionID: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", res.SessionID)
	assert.Equal(t, 2, eval.seen)
	assert.Equal(t, 2, res.GeofenceAlerts, "one at ingest, one from backfilled coordinates")
	assert.Equal(t, []string{"fixed"}, enr.calls)
	assert.Equal(t, 2, res.CoordinatesResolved)
	require.Len(t, sink.sessions, 1)
	assert.Equal(t, "ws-1", sink.sessions[0].Workstation)
}

func TestIngest_JSONRoundTrip(t *testing.T) {
	first := &memorySink{}
	p := NewPipeline(first, PipelineConfig{})
	_, err := p.Ingest(context.Background(), "cdr.csv", strings.NewReader(preambleCSV), Options{SuspectName: "Ravi"})
	require.NoError(t, err)
	require.Len(t, first.records, 1)

	doc, err := json.Marshal(map[string]any{"suspect_name": "Ravi", "records": first.records})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, doc, 0644))

	second := &memorySink{}
	_, err = NewPipeline(second, PipelineConfig{}).IngestFile(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, second.records, 1)

	a, b := first.records[0], second.records[0]
	assert.Equal(t, a.CallingNumber, b.CallingNumber)
	assert.Equal(t, a.CalledNumber, b.CalledNumber)
	assert.True(t, a.CallStartTime.Equal(b.CallStartTime))
	assert.Equal(t, *a.DurationSeconds, *b.DurationSeconds)
	assert.Equal(t, a.IMEI, b.IMEI)
	assert.Equal(t, a.Direction, b.Direction)
	assert.Equal(t, a.CallID, b.CallID)
	assert.Equal(t, a.RawRowReference, b.RawRowReference)
	assert.Equal(t, "Ravi", b.SuspectName)
}

func TestIngest_SMSTextWithFooterWords(t *testing.T) {
	csv := "calling_number,called_number,call_start_time,call_type,sms_content\n" +
		"111,222,2024-01-15 10:00:00,SMS,Your total bill is 500\n" +
		"111,333,2024-01-15 10:05:00,SMS,see page 2\n" +
		"111,444,2024-01-15 10:10:00,SMS,ok\n" +
		"Total records: 3,,,,\n"

	sink := &memorySink{}
	p := NewPipeline(sink, PipelineConfig{})
	res, err := p.Ingest(context.Background(), "sms.csv", strings.NewReader(csv), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.RecordsInserted)
	assert.Equal(t, 1, res.RowsDiscarded)
	assert.Zero(t, res.Validation.Rejected())
}
