package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// Colocation is a cell where several counterparts of the subject were
// active within the same time window.
type Colocation struct {
	Date       string   `json:"date"`
	TimeWindow string   `json:"time_window"`
	Location   string   `json:"location"`
	MSISDNs    []string `json:"msisdns"`
	Repeated   bool     `json:"repeated"`
}

type presenceGroup struct {
	anchor  time.Time
	cell    string
	members map[string]bool
}

// DetectColocations groups located records by cell. A record joins the
// open group of its cell when it falls within window of the group's first
// record; otherwise it opens a new group. Groups with at least two distinct
// counterparts become events. Events at a cell that produced more than one
// event are marked repeated.
func DetectColocations(recs []cdr.Record, window time.Duration) []Colocation {
	out := []Colocation{}
	if window <= 0 {
		window = DefaultColocationWindow
	}
	subject := SubjectNumber(recs)

	open := make(map[string]*presenceGroup)
	var closed []*presenceGroup
	for i := range recs {
		r := &recs[i]
		cell := r.Location()
		if cell == "" {
			continue
		}
		member := r.Counterpart(subject)
		if member == "" || member == subject {
			continue
		}
		g, ok := open[cell]
		if ok && r.CallStartTime.Sub(g.anchor).Abs() > window {
			closed = append(closed, g)
			ok = false
		}
		if !ok {
			g = &presenceGroup{anchor: r.CallStartTime, cell: cell, members: make(map[string]bool)}
			open[cell] = g
		}
		g.members[member] = true
	}
	for _, g := range open {
		closed = append(closed, g)
	}

	var events []*presenceGroup
	perCell := make(map[string]int)
	for _, g := range closed {
		if len(g.members) > 1 {
			events = append(events, g)
			perCell[g.cell]++
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].anchor.Equal(events[j].anchor) {
			return events[i].anchor.Before(events[j].anchor)
		}
		return events[i].cell < events[j].cell
	})

	label := fmt.Sprintf("±%d minutes", int(window.Minutes()))
	for _, g := range events {
		msisdns := make([]string, 0, len(g.members))
		for m := range g.members {
			msisdns = append(msisdns, m)
		}
		sort.Strings(msisdns)
		out = append(out, Colocation{
			Date:       dateKey(g.anchor),
			TimeWindow: label,
			Location:   g.cell,
			MSISDNs:    msisdns,
			Repeated:   perCell[g.cell] > 1,
		})
	}
	return out
}
