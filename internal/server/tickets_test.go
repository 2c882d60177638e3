package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move ticket time forward without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTickets() (*TicketStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 9, 18, 0, 0, 0, time.UTC)}
	ts := NewTicketStore()
	ts.now = clock.now
	return ts, clock
}

func TestTicketSingleUse(t *testing.T) {
	ts, clock := newTestTickets()

	id, expires := ts.Issue("Ravi")
	require.NotEmpty(t, id)
	assert.Equal(t, clock.t.Add(alertTicketTTL), expires)

	assert.NoError(t, ts.Redeem(id, "Ravi"))
	assert.ErrorIs(t, ts.Redeem(id, "Ravi"), errTicketUnknown)
}

func TestTicketsAreDistinct(t *testing.T) {
	ts, _ := newTestTickets()
	a, _ := ts.Issue("")
	b, _ := ts.Issue("")
	assert.NotEqual(t, a, b)
}

func TestTicketScopedToSuspect(t *testing.T) {
	ts, _ := newTestTickets()

	id, _ := ts.Issue("Ravi")
	assert.ErrorIs(t, ts.Redeem(id, "Meena"), errTicketScope)
	assert.ErrorIs(t, ts.Redeem(id, "Ravi"), errTicketUnknown, "a failed redeem still burns the ticket")

	all, _ := ts.Issue("")
	assert.ErrorIs(t, ts.Redeem(all, "Ravi"), errTicketScope)
}

func TestTicketExpiry(t *testing.T) {
	ts, clock := newTestTickets()

	id, _ := ts.Issue("Ravi")
	clock.advance(alertTicketTTL + time.Second)
	assert.ErrorIs(t, ts.Redeem(id, "Ravi"), errTicketExpired)
}

func TestTicketPrune(t *testing.T) {
	ts, clock := newTestTickets()

	ts.Issue("a")
	ts.Issue("b")
	clock.advance(alertTicketTTL / 2)
	fresh, _ := ts.Issue("c")
	clock.advance(alertTicketTTL/2 + time.Second)

	assert.Equal(t, 2, ts.Prune())
	assert.NoError(t, ts.Redeem(fresh, "c"))
}
