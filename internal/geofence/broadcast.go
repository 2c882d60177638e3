package geofence

import (
	"sync"
	"time"

	"github.com/wethinkt/go-cdrintel/internal/applog"
)

// Alert is published when a record places a suspect inside one of their
// geofences.
type Alert struct {
	GeofenceID  string    `json:"geofence_id"`
	Geofence    string    `json:"geofence"`
	SuspectName string    `json:"suspect_name"`
	MSISDN      string    `json:"msisdn"`
	Timestamp   time.Time `json:"timestamp"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	CellID      string    `json:"cell_id,omitempty"`
	RecordID    string    `json:"record_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
}

// Broadcaster fans alerts out to live subscribers. Subscribers may watch a
// single suspect or, with an empty name, every suspect.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string][]*subscriber
}

type subscriber struct {
	ch     chan Alert
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string][]*subscriber)}
}

// Subscribe returns a channel receiving alerts for suspect ("" for all).
// Call the returned function to unsubscribe and close the channel.
func (b *Broadcaster) Subscribe(suspect string) (<-chan Alert, func()) {
	ch := make(chan Alert, 64)
	sub := &subscriber{ch: ch}

	b.mu.Lock()
	b.subs[suspect] = append(b.subs[suspect], sub)
	b.mu.Unlock()
	subscribersActive.Inc()

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subs[suspect]
		for i, s := range subs {
			if s == sub {
				b.subs[suspect] = append(subs[:i], subs[i+1:]...)
				if !s.closed {
					s.closed = true
					close(s.ch)
					subscribersActive.Dec()
				}
				break
			}
		}
		if len(b.subs[suspect]) == 0 {
			delete(b.subs, suspect)
		}
	}
	return ch, unsub
}

// Publish delivers a to the suspect's subscribers and to wildcard
// subscribers. Slow consumers whose buffers are full miss the alert.
func (b *Broadcaster) Publish(a Alert) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	targets := b.subs[a.SuspectName]
	if a.SuspectName != "" {
		targets = append(targets[:len(targets):len(targets)], b.subs[""]...)
	}
	for _, sub := range targets {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- a:
		default:
			alertsDroppedTotal.Inc()
			applog.Log.Warn("Dropping geofence alert for slow subscriber",
				"suspect", a.SuspectName, "geofence", a.GeofenceID)
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}
