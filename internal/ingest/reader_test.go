package ingest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// workbook builds a one-sheet xlsx with a datetime cell, a time-only cell
// and a currency-styled amount that falls inside the date serial range.
func workbook(t *testing.T) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	header := []string{"Calling Number", "Called Number", "Call Start Time", "Duration", "Amount"}
	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}
	require.NoError(t, f.SetCellValue(sheet, "A2", int64(919876543210)))
	require.NoError(t, f.SetCellValue(sheet, "B2", int64(919123456780)))
	require.NoError(t, f.SetCellValue(sheet, "C2", time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)))
	require.NoError(t, f.SetCellValue(sheet, "D2", 60))
	require.NoError(t, f.SetCellValue(sheet, "E2", 45000.5))

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "E2", "E2", money))

	clock, err := f.NewStyle(&excelize.Style{NumFmt: 21})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(sheet, "F2", 0.4375))
	require.NoError(t, f.SetCellStyle(sheet, "F2", "F2", clock))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadSpreadsheet_DateCellsAreISO(t *testing.T) {
	rows, err := ReadSpreadsheet(workbook(t))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	row := rows[1]
	require.Len(t, row, 6)

	assert.Equal(t, "919876543210", row[0])
	assert.Equal(t, "2024-01-05 10:30:00", row[2])
	assert.Equal(t, "60", row[3])
	assert.NotContains(t, row[4], ":", "numeric formats are not dates")
	assert.NotContains(t, row[4], "2023")
	assert.Equal(t, "10:30:00", row[5])
}

func TestIngest_XLSXDates(t *testing.T) {
	sink := &memorySink{}
	res, err := NewPipeline(sink, PipelineConfig{}).Ingest(context.Background(), "cdr.xlsx", workbook(t), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.RecordsInserted)
	assert.Zero(t, res.Validation.Rejected())
	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.True(t, rec.CallStartTime.Equal(time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)), "got %s", rec.CallStartTime)
	assert.Equal(t, "919876543210", rec.CallingNumber)
}

func TestIsDateFormat(t *testing.T) {
	custom := func(s string) *excelize.Style { return &excelize.Style{CustomNumFmt: &s} }
	assert.True(t, isDateFormat(&excelize.Style{NumFmt: 22}))
	assert.True(t, isDateFormat(&excelize.Style{NumFmt: 46}))
	assert.True(t, isDateFormat(custom("dd/mm/yyyy hh:mm")))
	assert.False(t, isDateFormat(&excelize.Style{NumFmt: 4}))
	assert.False(t, isDateFormat(custom(`[$₹-4009]#,##0.00`)))
	assert.False(t, isDateFormat(custom(`0.00" days"`)))
	assert.False(t, isDateFormat(nil))
}
