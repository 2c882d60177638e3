package analytics

import (
	"sort"
	"time"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// DeviceSeries is the activity of one IMEI: active dates with the number
// of records on each.
type DeviceSeries struct {
	IMEI       string   `json:"imei"`
	Dates      []string `json:"dates"`
	CallCounts []int    `json:"call_counts"`
}

// DeviceSwitch marks a change of IMEI between consecutive records.
type DeviceSwitch struct {
	Timestamp time.Time `json:"timestamp"`
	FromIMEI  string    `json:"from_imei"`
	ToIMEI    string    `json:"to_imei"`
	Location  string    `json:"location"`
}

// DeviceTimeline is the per-device activity and the switches between
// devices.
type DeviceTimeline struct {
	Timeline []DeviceSeries `json:"timeline"`
	Switches []DeviceSwitch `json:"switches"`
}

// BuildDeviceTimeline walks records in time order. Records without an IMEI
// are skipped. Series are ordered by first appearance of the IMEI.
func BuildDeviceTimeline(recs []cdr.Record) *DeviceTimeline {
	tl := &DeviceTimeline{Timeline: []DeviceSeries{}, Switches: []DeviceSwitch{}}

	perDay := make(map[string]map[string]int)
	var order []string
	prev, lastCell := "", ""

	for i := range recs {
		r := &recs[i]
		if cell := r.Location(); cell != "" {
			lastCell = cell
		}
		if r.IMEI == "" {
			continue
		}

		days, ok := perDay[r.IMEI]
		if !ok {
			days = make(map[string]int)
			perDay[r.IMEI] = days
			order = append(order, r.IMEI)
		}
		days[dateKey(r.CallStartTime)]++

		if prev != "" && prev != r.IMEI {
			loc := lastCell
			if loc == "" {
				loc = "Unknown"
			}
			tl.Switches = append(tl.Switches, DeviceSwitch{
				Timestamp: r.CallStartTime,
				FromIMEI:  prev,
				ToIMEI:    r.IMEI,
				Location:  loc,
			})
		}
		prev = r.IMEI
	}

	for _, imei := range order {
		days := perDay[imei]
		s := DeviceSeries{IMEI: imei}
		for d := range days {
			s.Dates = append(s.Dates, d)
		}
		sort.Strings(s.Dates)
		for _, d := range s.Dates {
			s.CallCounts = append(s.CallCounts, days[d])
		}
		tl.Timeline = append(tl.Timeline, s)
	}
	return tl
}
