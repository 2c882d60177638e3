package ingest

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

func newTestBuilder(header []string, subject string) *Builder {
	b := NewBuilder(header, MapColumns(header), BuildOptions{
		SessionID:  "sess-1",
		SourceName: "input.csv",
	})
	b.SetSubjectNumber(subject)
	return b
}

func TestBuild_EndTimeRollsOverMidnight(t *testing.T) {
	b := newTestBuilder([]string{"Calling Number", "Called Number", "Date", "Start Time", "End Time"}, "")

	rec, res := b.Build([]string{"9876543210", "9123456780", "15/01/2024", "23:59:30", "00:01:00"}, 2)
	require.Equal(t, Accepted, res.Outcome, "err: %v", res.Err)

	assert.Equal(t, time.Date(2024, 1, 15, 23, 59, 30, 0, time.UTC), rec.CallStartTime)
	require.NotNil(t, rec.CallEndTime)
	assert.Equal(t, time.Date(2024, 1, 16, 0, 1, 0, 0, time.UTC), *rec.CallEndTime)
	require.NotNil(t, rec.DurationSeconds)
	assert.Equal(t, 90.0, *rec.DurationSeconds)
	require.NotNil(t, rec.CallDurationSec)
	assert.Equal(t, 90.0, *rec.CallDurationSec)
}

func TestBuild_CanonicalPairsAgree(t *testing.T) {
	b := newTestBuilder([]string{"A Number", "B Number", "Timestamp", "Cell ID", "Duration"}, "")

	rec, res := b.Build([]string{"+91 98765 43210", "9123456780.0", "2024-01-15 10:00:00", "40445-1234", "12"}, 5)
	require.Equal(t, Accepted, res.Outcome)

	assert.Equal(t, "+919876543210", rec.CallingNumber)
	assert.Equal(t, rec.CallingNumber, rec.MSISDNA)
	assert.Equal(t, "9123456780", rec.CalledNumber)
	assert.Equal(t, rec.CalledNumber, rec.MSISDNB)
	assert.Equal(t, "40445-1234", rec.CellTowerID)
	assert.Equal(t, rec.CellTowerID, rec.CellID)
	assert.Equal(t, "input.csv#row=5", rec.RawRowReference)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.NotEmpty(t, rec.RecordID)
	assert.Equal(t, cdr.CallVoice, rec.CallType)
	assert.Equal(t, cdr.StatusCompleted, rec.CallStatus)
}

func TestBuild_SynthesizesCallID(t *testing.T) {
	b := newTestBuilder([]string{"calling_number", "called_number", "call_start_time"}, "")

	rec, res := b.Build([]string{"111", "222", "2024-01-15 10:00:00"}, 2)
	require.Equal(t, Accepted, res.Outcome)

	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "111_"+strconv.FormatInt(start.Unix(), 10), rec.CallID)
}

func TestBuild_RejectionReasons(t *testing.T) {
	b := newTestBuilder([]string{"calling_number", "called_number", "call_start_time"}, "")

	rows := []struct {
		cells []string
		want  Outcome
	}{
		{[]string{"111", "222", "2024-01-15 10:00:00"}, Accepted},
		{[]string{"111", "", "2024-01-15 10:00:00"}, SkipMissingMSISDN},
		{[]string{"---", "222", "2024-01-15 10:00:00"}, SkipMissingMSISDN},
		{[]string{"nan", "222", "2024-01-15 10:00:00"}, SkipMissingMSISDN},
		{[]string{"111", "222", ""}, SkipMissingTime},
		{[]string{"111", "222", "not a time"}, SkipMissingTime},
		{[]string{"111"}, SkipMissingMSISDN},
	}

	var stats cdr.ValidationStats
	accepted := 0
	for i, r := range rows {
		_, res := b.Build(r.cells, i+2)
		assert.Equal(t, r.want, res.Outcome, "row %d", i)
		res.Count(&stats)
		if res.Outcome == Accepted {
			accepted++
		}
	}
	assert.Equal(t, 4, stats.MissingMSISDN)
	assert.Equal(t, 2, stats.MissingTime)
	assert.Equal(t, len(rows), accepted+stats.Rejected())
}

func TestBuild_PanicBecomesOther(t *testing.T) {
	b := newTestBuilder([]string{"calling_number", "called_number", "call_start_time"}, "")
	b.newID = func() string { panic("boom") }

	_, res := b.Build([]string{"111", "222", "2024-01-15 10:00:00"}, 9)
	assert.Equal(t, SkipOther, res.Outcome)
	assert.ErrorContains(t, res.Err, "row 9")
}

func TestBuild_DirectionFromSubject(t *testing.T) {
	b := newTestBuilder([]string{"calling_number", "called_number", "call_start_time"}, "111")

	out, _ := b.Build([]string{"111", "222", "2024-01-15 10:00:00"}, 2)
	in, _ := b.Build([]string{"222", "111", "2024-01-15 10:05:00"}, 3)
	assert.Equal(t, cdr.DirectionOutgoing, out.Direction)
	assert.Equal(t, cdr.DirectionIncoming, in.Direction)
}

func TestBuild_DirectionColumnWins(t *testing.T) {
	b := newTestBuilder([]string{"calling_number", "called_number", "call_start_time", "In/Out"}, "111")

	rec, _ := b.Build([]string{"111", "222", "2024-01-15 10:00:00", "IN"}, 2)
	assert.Equal(t, cdr.DirectionIncoming, rec.Direction)
}

func TestBuild_OutOfRangeCoordinatesDropped(t *testing.T) {
	b := newTestBuilder([]string{"calling_number", "called_number", "call_start_time", "latitude", "longitude"}, "")

	rec, res := b.Build([]string{"111", "222", "2024-01-15 10:00:00", "123.4", "77.5"}, 2)
	require.Equal(t, Accepted, res.Outcome)
	assert.Nil(t, rec.LocationLat)
	require.NotNil(t, rec.LocationLon)
	assert.Equal(t, 77.5, *rec.LocationLon)
	assert.False(t, rec.HasCoordinates())
}

func TestDetectSubjectNumber(t *testing.T) {
	header := []string{"calling_number", "called_number", "call_start_time"}
	b := newTestBuilder(header, "")

	rows := []DataRow{
		{Num: 2, Cells: []string{"111", "222", "x"}},
		{Num: 3, Cells: []string{"333", "111", "x"}},
		{Num: 4, Cells: []string{"111", "444", "x"}},
	}
	assert.Equal(t, "111", DetectSubjectNumber(rows, b))

	even := []DataRow{
		{Num: 2, Cells: []string{"555", "666", "x"}},
		{Num: 3, Cells: []string{"777", "888", "x"}},
	}
	assert.Equal(t, "555", DetectSubjectNumber(even, b))
}

func TestJSONColumnMap_FallbackKeys(t *testing.T) {
	header := []string{"call_start_time", "calling_number", "cell_id", "msisdn_a", "msisdn_b"}
	m := jsonColumnMap(header)

	assert.Equal(t, "json", m.Vendor)
	assert.Equal(t, "json_import", m.Type)
	assert.Equal(t, "calling_number", m.ColumnMapping[FieldCallingNumber])
	assert.Equal(t, "msisdn_b", m.ColumnMapping[FieldCalledNumber])
	assert.Equal(t, "cell_id", m.ColumnMapping[FieldCellTowerID])

	// a record carrying only the legacy key still resolves its calling number
	b := NewBuilder(header, m, BuildOptions{})
	rec, res := b.Build([]string{"2024-01-15T10:00:00Z", "", "C1", "999", "111"}, 1)
	require.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, "999", rec.CallingNumber)
	assert.Equal(t, "C1", rec.CellID)
}

func TestBuild_SeparateDateAndTimeColumns(t *testing.T) {
	header := []string{"Calling Number", "Called Number", "Call Date", "Call Time", "Duration"}
	b := newTestBuilder(header, "")

	first, res := b.Build([]string{"919876543210", "919123456780", "2024-01-05", "10:30:00", "60"}, 2)
	require.Equal(t, Accepted, res.Outcome, "err: %v", res.Err)
	second, res := b.Build([]string{"919876543210", "919123456780", "2024-01-05", "18:05:10", "30"}, 3)
	require.Equal(t, Accepted, res.Outcome, "err: %v", res.Err)

	assert.Equal(t, time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC), first.CallStartTime)
	assert.Equal(t, time.Date(2024, 1, 5, 18, 5, 10, 0, time.UTC), second.CallStartTime)
	assert.NotEqual(t, first.CallID, second.CallID)
	assert.Equal(t, "919876543210_"+strconv.FormatInt(first.CallStartTime.Unix(), 10), first.CallID)
}
