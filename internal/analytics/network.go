package analytics

import (
	"fmt"
	"sort"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

const (
	targetColor  = "#ec4899"
	contactColor = "#6366f1"
)

// Node is a vertex of the contact graph.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
	Color string `json:"color"`
	Value int    `json:"value"`
}

// Edge links the target to one counterpart.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value int    `json:"value"`
	Label string `json:"label"`
	Title string `json:"title"`
}

// Network is the contact graph of a subject.
type Network struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type contactStats struct {
	number   string
	calls    int
	incoming int
	outgoing int
	duration float64
}

// BuildNetwork groups traffic by counterpart of the subject, merging both
// directions, and keeps the most frequent counterparts.
func BuildNetwork(recs []cdr.Record) *Network {
	net := &Network{Nodes: []Node{}, Edges: []Edge{}}
	subject := SubjectNumber(recs)
	if subject == "" {
		return net
	}

	stats := make(map[string]*contactStats)
	for i := range recs {
		r := &recs[i]
		other := r.Counterpart(subject)
		if other == "" || other == subject {
			continue
		}
		cs, ok := stats[other]
		if !ok {
			cs = &contactStats{number: other}
			stats[other] = cs
		}
		cs.calls++
		if r.Direction == cdr.DirectionIncoming {
			cs.incoming++
		} else {
			cs.outgoing++
		}
		if r.DurationSeconds != nil {
			cs.duration += *r.DurationSeconds
		}
	}

	ranked := make([]*contactStats, 0, len(stats))
	for _, cs := range stats {
		ranked = append(ranked, cs)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].calls != ranked[j].calls {
			return ranked[i].calls > ranked[j].calls
		}
		return ranked[i].number < ranked[j].number
	})
	if len(ranked) > maxContacts {
		ranked = ranked[:maxContacts]
	}

	net.Nodes = append(net.Nodes, Node{
		ID:    subject,
		Label: truncateLabel(subject),
		Type:  "target",
		Color: targetColor,
		Value: 100,
	})
	for _, cs := range ranked {
		net.Nodes = append(net.Nodes, Node{
			ID:    cs.number,
			Label: truncateLabel(cs.number),
			Type:  "contact",
			Color: contactColor,
			Value: min(50, max(10, cs.calls)),
		})
		net.Edges = append(net.Edges, Edge{
			From:  subject,
			To:    cs.number,
			Value: cs.calls,
			Label: fmt.Sprint(cs.calls),
			Title: fmt.Sprintf("Calls: %d, Duration: %ds", cs.calls, int(cs.duration)),
		})
	}
	return net
}
