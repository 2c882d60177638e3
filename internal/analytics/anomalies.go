package analytics

import (
	"sort"
	"time"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
	"github.com/wethinkt/go-cdrintel/internal/i18n"
)

// Severity grades an anomaly.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

const (
	silenceRecentRatio   = 0.1
	silencePreviousRatio = 0.5
	highMobilityCells    = 5
)

// Anomaly is a heuristic finding with the evidence that triggered it.
type Anomaly struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Severity       Severity   `json:"severity"`
	Reason         string     `json:"reason"`
	Evidence       string     `json:"evidence"`
	SupportingData []IMEISpan `json:"supporting_data,omitempty"`
}

// IMEISpan is the first and last sighting of a device.
type IMEISpan struct {
	IMEI      string    `json:"imei"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// DetectAnomalies runs the device switching, sudden silence and high
// mobility heuristics over records sorted by start time.
func DetectAnomalies(recs []cdr.Record) []Anomaly {
	out := []Anomaly{}
	if a, ok := deviceSwitching(recs); ok {
		out = append(out, a)
	}
	if a, ok := suddenSilence(DailyCounts(recs)); ok {
		out = append(out, a)
	}
	if a, ok := highMobility(recs); ok {
		out = append(out, a)
	}
	return out
}

func deviceSwitching(recs []cdr.Record) (Anomaly, bool) {
	spans := make(map[string]*IMEISpan)
	var order []string
	for i := range recs {
		r := &recs[i]
		if r.IMEI == "" {
			continue
		}
		s, ok := spans[r.IMEI]
		if !ok {
			s = &IMEISpan{IMEI: r.IMEI, FirstSeen: r.CallStartTime, LastSeen: r.CallStartTime}
			spans[r.IMEI] = s
			order = append(order, r.IMEI)
		}
		if r.CallStartTime.Before(s.FirstSeen) {
			s.FirstSeen = r.CallStartTime
		}
		if r.CallStartTime.After(s.LastSeen) {
			s.LastSeen = r.CallStartTime
		}
	}
	if len(order) <= 1 {
		return Anomaly{}, false
	}

	data := make([]IMEISpan, 0, len(order))
	for _, imei := range order {
		data = append(data, *spans[imei])
	}
	n := len(order)
	return Anomaly{
		Title:          i18n.T("anomaly.imeiSwitch.title", "IMEI Device Switching Detected"),
		Description:    i18n.Tf("anomaly.imeiSwitch.description", "Target used %d different devices", n),
		Severity:       SeverityWarning,
		Reason:         i18n.T("anomaly.imeiSwitch.reason", "Multiple IMEIs detected in dataset"),
		Evidence:       i18n.Tf("anomaly.imeiSwitch.evidence", "IMEI count: %d", n),
		SupportingData: data,
	}, true
}

// suddenSilence flags a final day far below the average when the day
// before it was still active. At least three days are required.
func suddenSilence(counts []int) (Anomaly, bool) {
	if len(counts) <= 2 {
		return Anomaly{}, false
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	avg := float64(total) / float64(len(counts))
	last, prev := counts[len(counts)-1], counts[len(counts)-2]
	if float64(last) >= avg*silenceRecentRatio || float64(prev) <= avg*silencePreviousRatio {
		return Anomaly{}, false
	}
	return Anomaly{
		Title:       i18n.T("anomaly.silence.title", "Sudden Silence Detected"),
		Description: i18n.T("anomaly.silence.description", "Activity dropped significantly in recent days"),
		Severity:    SeverityInfo,
		Reason:      i18n.T("anomaly.silence.reason", "Recent activity is <10% of average"),
		Evidence:    i18n.Tf("anomaly.silence.evidence", "Average: %.1f, Recent: %d", avg, last),
	}, true
}

func highMobility(recs []cdr.Record) (Anomaly, bool) {
	cells := make(map[string]map[string]bool)
	for i := range recs {
		cell := recs[i].Location()
		if cell == "" {
			continue
		}
		d := dateKey(recs[i].CallStartTime)
		if cells[d] == nil {
			cells[d] = make(map[string]bool)
		}
		cells[d][cell] = true
	}
	days := 0
	for _, set := range cells {
		if len(set) > highMobilityCells {
			days++
		}
	}
	if days == 0 {
		return Anomaly{}, false
	}
	return Anomaly{
		Title:       i18n.T("anomaly.mobility.title", "High Mobility Pattern"),
		Description: i18n.Tf("anomaly.mobility.description", "%d days with >5 different locations", days),
		Severity:    SeverityInfo,
		Reason:      i18n.T("anomaly.mobility.reason", "Unusual location switching pattern"),
		Evidence:    i18n.Tf("anomaly.mobility.evidence", "High mobility days: %d", days),
	}, true
}

// DailyCounts returns the number of records per calendar date, in date
// order. Dates without activity are not represented.
func DailyCounts(recs []cdr.Record) []int {
	perDay := make(map[string]int)
	for i := range recs {
		perDay[dateKey(recs[i].CallStartTime)]++
	}
	dates := make([]string, 0, len(perDay))
	for d := range perDay {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	counts := make([]int, len(dates))
	for i, d := range dates {
		counts[i] = perDay[d]
	}
	return counts
}
