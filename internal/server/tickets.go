package server

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"
)

// alertTicketTTL is how long a browser has to open the alert socket after
// asking for a ticket.
const alertTicketTTL = 30 * time.Second

var (
	errTicketUnknown = errors.New("unknown or already used ticket")
	errTicketExpired = errors.New("ticket expired")
	errTicketScope   = errors.New("ticket issued for another suspect")
)

// alertTicket is a one-shot credential for the geofence alert websocket.
// Browsers cannot set an Authorization header on a websocket upgrade, so
// they trade their bearer token for one of these and pass it as ?ticket=.
type alertTicket struct {
	suspect string
	expires time.Time
}

// TicketStore holds unredeemed alert tickets.
type TicketStore struct {
	mu      sync.Mutex
	pending map[string]alertTicket
	ttl     time.Duration
	now     func() time.Time
}

// NewTicketStore returns an empty store using alertTicketTTL.
func NewTicketStore() *TicketStore {
	return &TicketStore{
		pending: map[string]alertTicket{},
		ttl:     alertTicketTTL,
		now:     time.Now,
	}
}

// Issue mints a ticket valid for the alerts of suspect. An empty suspect
// covers every suspect's alerts.
func (ts *TicketStore) Issue(suspect string) (string, time.Time) {
	var raw [24]byte
	_, _ = rand.Read(raw[:])
	id := base64.RawURLEncoding.EncodeToString(raw[:])

	ts.mu.Lock()
	defer ts.mu.Unlock()
	expires := ts.now().Add(ts.ttl)
	ts.pending[id] = alertTicket{suspect: suspect, expires: expires}
	return id, expires
}

// Redeem consumes id. The ticket is gone afterwards whether or not it was
// valid for suspect.
func (ts *TicketStore) Redeem(id, suspect string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	t, ok := ts.pending[id]
	if !ok {
		return errTicketUnknown
	}
	delete(ts.pending, id)
	switch {
	case ts.now().After(t.expires):
		return errTicketExpired
	case t.suspect != suspect:
		return errTicketScope
	}
	return nil
}

// Prune drops expired tickets nobody redeemed and returns how many went.
func (ts *TicketStore) Prune() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	n := 0
	for id, t := range ts.pending {
		if now.After(t.expires) {
			delete(ts.pending, id)
			n++
		}
	}
	return n
}
