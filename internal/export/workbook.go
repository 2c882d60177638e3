package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/wethinkt/go-cdrintel/internal/analytics"
	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// WorkbookSheets lists the analytics workbook sheets in order.
var WorkbookSheets = []string{
	"Summary", "Corrected", "MaxCall", "MaxCircleCall", "DailyFirstLast",
	"MaxDuration", "MaxIMEI", "DailyIMEIATracking", "MaxLocation", "DailyFirstLastLocation",
}

const maxColumnWidth = 50

// sheet accumulates rows for one worksheet and remembers which rows are
// headers.
type sheet struct {
	rows    [][]any
	headers []int
}

func (s *sheet) add(cells ...any) { s.rows = append(s.rows, cells) }
func (s *sheet) blank()           { s.rows = append(s.rows, nil) }

func (s *sheet) header(cells ...any) {
	s.headers = append(s.headers, len(s.rows)+1)
	s.add(cells...)
}

// WriteWorkbook writes the tabular analytics of a scope as a multi-sheet
// workbook. recs feed the Corrected sheet.
func WriteWorkbook(w io.Writer, sum *analytics.Summary, recs []cdr.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"366092"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Style: 1}, {Type: "right", Style: 1},
			{Type: "top", Style: 1}, {Type: "bottom", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	sheets := map[string]*sheet{
		"Summary":                summarySheet(sum.Totals),
		"Corrected":              correctedSheet(recs),
		"MaxCall":                maxCallSheet(sum.MaxCall),
		"MaxCircleCall":          maxCircleSheet(sum.MaxCircle),
		"DailyFirstLast":         dailyFirstLastSheet(sum.DailyFirstLast),
		"MaxDuration":            maxDurationSheet(sum.MaxDuration),
		"MaxIMEI":                maxIMEISheet(sum.MaxIMEI),
		"DailyIMEIATracking":     dailyIMEISheet(sum.DailyIMEI),
		"MaxLocation":            maxLocationSheet(sum.MaxLocation),
		"DailyFirstLastLocation": dailyLocationSheet(sum.DailyFirstLastLocation),
	}

	for i, name := range WorkbookSheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, sheets[name], headerStyle); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, s *sheet, style int) error {
	widths := make(map[int]int)
	for r, row := range s.rows {
		if len(row) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+1)
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, r+1, err)
		}
		for c, v := range row {
			widths[c] = max(widths[c], len(fmt.Sprint(v)))
		}
	}
	for _, r := range s.headers {
		if len(s.rows[r-1]) == 0 {
			continue
		}
		first, _ := excelize.CoordinatesToCellName(1, r)
		last, _ := excelize.CoordinatesToCellName(len(s.rows[r-1]), r)
		if err := f.SetCellStyle(name, first, last, style); err != nil {
			return fmt.Errorf("style %s header: %w", name, err)
		}
	}
	for c, width := range widths {
		col, _ := excelize.ColumnNumberToName(c + 1)
		if err := f.SetColWidth(name, col, col, float64(min(width+2, maxColumnWidth))); err != nil {
			return fmt.Errorf("size %s column %s: %w", name, col, err)
		}
	}
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func timeOrNA(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format(time.RFC3339)
}

func summarySheet(t analytics.Totals) *sheet {
	s := &sheet{}
	s.add("CDR Analysis Summary")
	s.blank()
	s.header("Metric", "Value")
	s.add("Total Calls", t.TotalCalls)
	s.add("Incoming Calls", t.IncomingCount)
	s.add("Outgoing Calls", t.OutgoingCount)
	s.add("Unique B-Numbers", t.UniqueBNumbers)
	s.add("Unique IMEIs", t.UniqueIMEIs)
	s.add("Unique Locations", t.UniqueLocations)
	s.add("First Activity Date", timeOrNA(t.FirstActivity))
	s.add("Last Activity Date", timeOrNA(t.LastActivity))
	return s
}

// correctedSheet lists records that carry both party numbers.
func correctedSheet(recs []cdr.Record) *sheet {
	s := &sheet{}
	var rows int
	for i := range recs {
		r := &recs[i]
		if r.MSISDNA == "" || r.MSISDNB == "" {
			continue
		}
		if rows == 0 {
			s.header("record_id", "msisdn_a", "msisdn_b", "call_type", "call_date",
				"call_start_time", "call_duration_sec", "imei", "imsi", "cell_id",
				"lac", "operator", "circle", "location_description", "raw_row_reference")
		}
		dur := 0.0
		if r.DurationSeconds != nil {
			dur = *r.DurationSeconds
		}
		s.add(r.RecordID, r.MSISDNA, r.MSISDNB, string(r.CallType), r.CallStartTime.Format("2006-01-02"),
			r.CallStartTime.Format(time.RFC3339), dur, r.IMEI, r.IMSI, r.Location(),
			istr(r.LAC), r.Operator, r.Circle, r.LocationDescription, r.RawRowReference)
		rows++
	}
	if rows == 0 {
		s.add("No corrected records found")
	}
	return s
}

func maxCallSheet(m analytics.MaxCall) *sheet {
	s := &sheet{}
	s.add("Most Frequently Called Number")
	s.blank()
	s.header("B-Number", "Total Call Count")
	s.add(orNA(m.BNumber), m.TotalCallCount)
	return s
}

func maxCircleSheet(m analytics.MaxCircle) *sheet {
	s := &sheet{}
	s.add("Circle/State with Highest Activity")
	s.blank()
	s.header("Circle", "Activity Count")
	s.add(orNA(m.Circle), m.ActivityCount)
	return s
}

func dailyFirstLastSheet(days []analytics.DayFirstLast) *sheet {
	s := &sheet{}
	if len(days) == 0 {
		s.add("No daily call data found")
		return s
	}
	s.header("Date", "First Call Time", "First Call B-Number", "Last Call Time", "Last Call B-Number")
	for _, d := range days {
		s.add(d.Date, d.FirstCallTime.Format(time.RFC3339), d.FirstCallBNumber,
			d.LastCallTime.Format(time.RFC3339), d.LastCallBNumber)
	}
	return s
}

func maxDurationSheet(m analytics.MaxDuration) *sheet {
	s := &sheet{}
	s.add("Longest Duration Call")
	s.blank()
	s.header("Field", "Value")
	s.add("B-Number", orNA(m.BNumber))
	s.add("Duration (seconds)", m.DurationSeconds)
	s.add("Date", orNA(m.Date))
	s.add("Call Start Time", timeOrNA(m.CallStartTime))
	s.add("Cell ID", orNA(m.CellID))
	s.add("Location Description", orNA(m.LocationDescription))
	return s
}

func maxIMEISheet(m analytics.MaxIMEI) *sheet {
	s := &sheet{}
	multi := "No"
	if m.MultiDeviceUsage {
		multi = "Yes"
	}
	s.add("IMEI Analysis")
	s.blank()
	s.add("Max IMEI", orNA(m.IMEI))
	s.add("Max IMEI Call Count", m.CallCount)
	s.add("Total IMEIs", m.TotalIMEIs)
	s.add("Multi-Device Usage", multi)
	s.blank()
	s.add("IMEI Ranking")
	s.header("IMEI", "Call Count")
	for _, u := range m.Ranking {
		s.add(u.IMEI, u.CallCount)
	}
	return s
}

func dailyIMEISheet(days []analytics.DayIMEIs) *sheet {
	s := &sheet{}
	if len(days) == 0 {
		s.add("No daily IMEI tracking data found")
		return s
	}
	s.header("Date", "IMEI", "Call Count")
	for _, d := range days {
		for _, u := range d.IMEIs {
			s.add(d.Date, u.IMEI, u.CallCount)
		}
	}
	return s
}

func maxLocationSheet(m analytics.MaxLocation) *sheet {
	s := &sheet{}
	s.add("Most Frequently Used Location")
	s.blank()
	s.header("Cell ID", "Usage Count")
	s.add(orNA(m.CellID), m.UsageCount)
	return s
}

func dailyLocationSheet(days []analytics.DayFirstLastLocation) *sheet {
	s := &sheet{}
	if len(days) == 0 {
		s.add("No daily location data found")
		return s
	}
	s.header("Date", "First Location Cell ID", "First Location Time", "First Location Description",
		"Last Location Cell ID", "Last Location Time", "Last Location Description")
	for _, d := range days {
		s.add(d.Date,
			d.FirstLocation.CellID, d.FirstLocation.Time.Format(time.RFC3339), d.FirstLocation.LocationDescription,
			d.LastLocation.CellID, d.LastLocation.Time.Format(time.RFC3339), d.LastLocation.LocationDescription)
	}
	return s
}
