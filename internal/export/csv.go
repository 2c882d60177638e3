package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// CSVHeader is the column order of CSV exports. The names match the
// canonical JSON keys so that a CSV export maps back onto the same fields
// when ingested.
var CSVHeader = []string{
	"record_id", "call_id", "session_id", "suspect_name",
	"msisdn_a", "msisdn_b", "call_start_time", "call_end_time", "duration_seconds",
	"call_type", "direction", "call_status",
	"imei", "imsi", "cell_id", "lac", "mcc", "mnc", "operator", "circle",
	"location_lat", "location_lon", "location_description",
	"cost", "data_volume_mb", "sms_content", "raw_row_reference",
}

// WriteCSV writes recs as CSV with CSVHeader.
func WriteCSV(w io.Writer, recs []cdr.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range recs {
		if err := cw.Write(csvRow(&recs[i])); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(r *cdr.Record) []string {
	var end string
	if r.CallEndTime != nil {
		end = r.CallEndTime.Format(time.RFC3339)
	}
	return []string{
		r.RecordID, r.CallID, r.SessionID, r.SuspectName,
		r.MSISDNA, r.MSISDNB, r.CallStartTime.Format(time.RFC3339), end, fstr(r.DurationSeconds),
		string(r.CallType), string(r.Direction), string(r.CallStatus),
		r.IMEI, r.IMSI, r.Location(), istr(r.LAC), istr(r.MCC), istr(r.MNC), r.Operator, r.Circle,
		fstr(r.LocationLat), fstr(r.LocationLon), r.LocationDescription,
		fstr(r.Cost), fstr(r.DataVolumeMB), r.SMSContent, r.RawRowReference,
	}
}

func fstr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func istr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
