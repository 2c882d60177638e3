package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// HeatmapFilter restricts the records counted by the heatmap.
type HeatmapFilter string

const (
	HeatmapAll      HeatmapFilter = "all"
	HeatmapIncoming HeatmapFilter = "incoming"
	HeatmapOutgoing HeatmapFilter = "outgoing"
	HeatmapSMS      HeatmapFilter = "sms"
)

// ParseHeatmapFilter validates a filter name; empty means all.
func ParseHeatmapFilter(s string) (HeatmapFilter, error) {
	switch f := HeatmapFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return HeatmapAll, nil
	case HeatmapAll, HeatmapIncoming, HeatmapOutgoing, HeatmapSMS:
		return f, nil
	default:
		return "", fmt.Errorf("unknown heatmap filter %q", s)
	}
}

func (f HeatmapFilter) match(r *cdr.Record) bool {
	switch f {
	case HeatmapIncoming:
		return r.Direction == cdr.DirectionIncoming
	case HeatmapOutgoing:
		return r.Direction == cdr.DirectionOutgoing
	case HeatmapSMS:
		return r.CallType == cdr.CallSMS
	default:
		return true
	}
}

// Heatmap is a dense date by hour count matrix. Z[i][j] is the count for
// date Y[i] at hour X[j].
type Heatmap struct {
	X []int    `json:"x"`
	Y []string `json:"y"`
	Z [][]int  `json:"z"`
}

// BuildHeatmap buckets records by calendar date and hour of day. Only the
// hours and dates that occur are on the axes; empty cells are zero.
func BuildHeatmap(recs []cdr.Record, filter HeatmapFilter) *Heatmap {
	type bucket struct {
		date string
		hour int
	}
	counts := make(map[bucket]int)
	dates := make(map[string]bool)
	hours := make(map[int]bool)

	for i := range recs {
		r := &recs[i]
		if !filter.match(r) {
			continue
		}
		t := r.CallStartTime.UTC()
		b := bucket{date: dateKey(t), hour: t.Hour()}
		counts[b]++
		dates[b.date] = true
		hours[b.hour] = true
	}

	hm := &Heatmap{X: []int{}, Y: []string{}, Z: [][]int{}}
	for h := range hours {
		hm.X = append(hm.X, h)
	}
	sort.Ints(hm.X)
	for d := range dates {
		hm.Y = append(hm.Y, d)
	}
	sort.Strings(hm.Y)

	for _, d := range hm.Y {
		row := make([]int, len(hm.X))
		for j, h := range hm.X {
			row[j] = counts[bucket{date: d, hour: h}]
		}
		hm.Z = append(hm.Z, row)
	}
	return hm
}
