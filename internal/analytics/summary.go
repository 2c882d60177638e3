package analytics

import (
	"sort"
	"time"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// Totals are the headline counts of a scope.
type Totals struct {
	TotalCalls      int        `json:"total_calls"`
	IncomingCount   int        `json:"incoming_count"`
	OutgoingCount   int        `json:"outgoing_count"`
	UniqueBNumbers  int        `json:"unique_b_numbers"`
	UniqueIMEIs     int        `json:"unique_imeis"`
	UniqueLocations int        `json:"unique_locations"`
	FirstActivity   *time.Time `json:"first_activity_date"`
	LastActivity    *time.Time `json:"last_activity_date"`
}

// MaxCall is the most frequently contacted B-number.
type MaxCall struct {
	BNumber        string `json:"b_number"`
	TotalCallCount int    `json:"total_call_count"`
}

// MaxCircle is the circle (or operator when no circle is recorded) with
// the highest activity.
type MaxCircle struct {
	Circle        string `json:"circle"`
	ActivityCount int    `json:"activity_count"`
}

// DayFirstLast is the first and last call of one date.
type DayFirstLast struct {
	Date             string    `json:"date"`
	FirstCallTime    time.Time `json:"first_call_time"`
	FirstCallBNumber string    `json:"first_call_b_number"`
	LastCallTime     time.Time `json:"last_call_time"`
	LastCallBNumber  string    `json:"last_call_b_number"`
}

// MaxDuration is the single longest call.
type MaxDuration struct {
	BNumber             string     `json:"b_number"`
	DurationSeconds     float64    `json:"duration_seconds"`
	Date                string     `json:"date"`
	CallStartTime       *time.Time `json:"call_start_time"`
	CellID              string     `json:"cell_id"`
	LocationDescription string     `json:"location_description"`
}

// IMEIUsage is the call volume of one device.
type IMEIUsage struct {
	IMEI      string `json:"imei"`
	CallCount int    `json:"call_count"`
}

// MaxIMEI ranks devices by call volume.
type MaxIMEI struct {
	IMEI             string      `json:"max_imei"`
	CallCount        int         `json:"max_imei_call_count"`
	TotalIMEIs       int         `json:"total_imeis"`
	MultiDeviceUsage bool        `json:"multi_device_usage"`
	Ranking          []IMEIUsage `json:"imei_ranking"`
}

// DayIMEIs lists the devices used on one date.
type DayIMEIs struct {
	Date  string      `json:"date"`
	IMEIs []IMEIUsage `json:"imeis"`
}

// MaxLocation is the most used cell.
type MaxLocation struct {
	CellID     string `json:"cell_id"`
	UsageCount int    `json:"usage_count"`
}

// CellSighting is a cell observed at a point in time.
type CellSighting struct {
	CellID              string    `json:"cell_id"`
	Time                time.Time `json:"time"`
	LocationDescription string    `json:"location_description"`
}

// DayFirstLastLocation is the first and last cell of one date.
type DayFirstLastLocation struct {
	Date          string       `json:"date"`
	FirstLocation CellSighting `json:"first_location"`
	LastLocation  CellSighting `json:"last_location"`
}

// Summary gathers the tabular views of a scope.
type Summary struct {
	Scope                  cdr.Scope              `json:"scope"`
	Totals                 Totals                 `json:"summary"`
	MaxCall                MaxCall                `json:"max_call"`
	MaxCircle              MaxCircle              `json:"max_circle_call"`
	DailyFirstLast         []DayFirstLast         `json:"daily_first_last"`
	MaxDuration            MaxDuration            `json:"max_duration"`
	MaxIMEI                MaxIMEI                `json:"max_imei"`
	DailyIMEI              []DayIMEIs             `json:"daily_imei_tracking"`
	MaxLocation            MaxLocation            `json:"max_location"`
	DailyFirstLastLocation []DayFirstLastLocation `json:"daily_first_last_location"`
}

// Summarize computes every tabular view in a single pass over records
// sorted by start time.
func Summarize(recs []cdr.Record) *Summary {
	s := &Summary{
		DailyFirstLast:         []DayFirstLast{},
		DailyIMEI:              []DayIMEIs{},
		DailyFirstLastLocation: []DayFirstLastLocation{},
		MaxIMEI:                MaxIMEI{Ranking: []IMEIUsage{}},
	}

	bNumbers := newCounter()
	circles := newCounter()
	imeis := newCounter()
	cells := newCounter()
	dayIMEIs := make(map[string]*counter)
	days := make(map[string]*DayFirstLast)
	dayCells := make(map[string]*DayFirstLastLocation)
	var dates, cellDates []string
	var longest *cdr.Record

	for i := range recs {
		r := &recs[i]
		t := r.CallStartTime
		d := dateKey(t)

		s.Totals.TotalCalls++
		switch r.Direction {
		case cdr.DirectionIncoming:
			s.Totals.IncomingCount++
		case cdr.DirectionOutgoing:
			s.Totals.OutgoingCount++
		}
		if s.Totals.FirstActivity == nil || t.Before(*s.Totals.FirstActivity) {
			s.Totals.FirstActivity = &t
		}
		if s.Totals.LastActivity == nil || t.After(*s.Totals.LastActivity) {
			s.Totals.LastActivity = &t
		}

		bNumbers.add(r.MSISDNB)
		if r.Circle != "" {
			circles.add(r.Circle)
		} else {
			circles.add(r.Operator)
		}
		if r.IMEI != "" {
			imeis.add(r.IMEI)
			if dayIMEIs[d] == nil {
				dayIMEIs[d] = newCounter()
			}
			dayIMEIs[d].add(r.IMEI)
		}

		day, ok := days[d]
		if !ok {
			day = &DayFirstLast{Date: d, FirstCallTime: t, FirstCallBNumber: r.MSISDNB}
			days[d] = day
			dates = append(dates, d)
		}
		if t.Before(day.FirstCallTime) {
			day.FirstCallTime, day.FirstCallBNumber = t, r.MSISDNB
		}
		if !t.Before(day.LastCallTime) {
			day.LastCallTime, day.LastCallBNumber = t, r.MSISDNB
		}

		if cell := r.Location(); cell != "" {
			cells.add(cell)
			seen := CellSighting{CellID: cell, Time: t, LocationDescription: r.LocationDescription}
			dc, ok := dayCells[d]
			if !ok {
				dc = &DayFirstLastLocation{Date: d, FirstLocation: seen, LastLocation: seen}
				dayCells[d] = dc
				cellDates = append(cellDates, d)
			}
			if t.Before(dc.FirstLocation.Time) {
				dc.FirstLocation = seen
			}
			if !t.Before(dc.LastLocation.Time) {
				dc.LastLocation = seen
			}
		}

		if r.DurationSeconds != nil && *r.DurationSeconds > 0 &&
			(longest == nil || *r.DurationSeconds > *longest.DurationSeconds) {
			longest = r
		}
	}

	s.Totals.UniqueBNumbers = bNumbers.distinct()
	s.Totals.UniqueIMEIs = imeis.distinct()
	s.Totals.UniqueLocations = cells.distinct()

	s.MaxCall.BNumber, s.MaxCall.TotalCallCount = bNumbers.top()
	s.MaxCircle.Circle, s.MaxCircle.ActivityCount = circles.top()
	s.MaxLocation.CellID, s.MaxLocation.UsageCount = cells.top()

	ranking := imeis.ranked()
	s.MaxIMEI.TotalIMEIs = len(ranking)
	s.MaxIMEI.MultiDeviceUsage = len(ranking) > 1
	s.MaxIMEI.Ranking = ranking
	if len(ranking) > 0 {
		s.MaxIMEI.IMEI, s.MaxIMEI.CallCount = ranking[0].IMEI, ranking[0].CallCount
	}

	if longest != nil {
		t := longest.CallStartTime
		s.MaxDuration = MaxDuration{
			BNumber:             longest.MSISDNB,
			DurationSeconds:     *longest.DurationSeconds,
			Date:                dateKey(t),
			CallStartTime:       &t,
			CellID:              longest.Location(),
			LocationDescription: longest.LocationDescription,
		}
	}

	sort.Strings(dates)
	for _, d := range dates {
		s.DailyFirstLast = append(s.DailyFirstLast, *days[d])
		if c := dayIMEIs[d]; c != nil {
			s.DailyIMEI = append(s.DailyIMEI, DayIMEIs{Date: d, IMEIs: c.ranked()})
		}
	}
	sort.Strings(cellDates)
	for _, d := range cellDates {
		s.DailyFirstLastLocation = append(s.DailyFirstLastLocation, *dayCells[d])
	}
	return s
}

// counter counts occurrences of non-empty keys, remembering first
// appearance so that ties resolve deterministically.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if key == "" {
		return
	}
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) distinct() int { return len(c.order) }

func (c *counter) top() (string, int) {
	best, n := "", 0
	for _, k := range c.order {
		if c.counts[k] > n {
			best, n = k, c.counts[k]
		}
	}
	return best, n
}

func (c *counter) ranked() []IMEIUsage {
	out := make([]IMEIUsage, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, IMEIUsage{IMEI: k, CallCount: c.counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CallCount > out[j].CallCount })
	return out
}
