package i18n

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var ingestedAt = time.Date(2024, 3, 9, 18, 0, 0, 0, time.UTC)

func TestRelativeAt(t *testing.T) {
	Init("en")

	cases := map[time.Duration]string{
		-2 * time.Minute:    "just now",
		20 * time.Second:    "just now",
		61 * time.Second:    "1 min ago",
		45 * time.Minute:    "45 mins ago",
		70 * time.Minute:    "1 hour ago",
		23 * time.Hour:      "23 hours ago",
		25 * time.Hour:      "1 day ago",
		10 * 24 * time.Hour: "10 days ago",
	}
	for ago, want := range cases {
		assert.Equal(t, want, relativeAt(ingestedAt, ingestedAt.Add(ago)), "ago=%s", ago)
	}
}

func TestRelativeShortAt(t *testing.T) {
	Init("en")

	cases := map[time.Duration]string{
		2 * time.Hour:        "today",
		30 * time.Hour:       "1d ago",
		12 * 24 * time.Hour:  "12d ago",
		95 * 24 * time.Hour:  "3mo ago",
		800 * 24 * time.Hour: "2y ago",
	}
	for ago, want := range cases {
		assert.Equal(t, want, relativeShortAt(ingestedAt, ingestedAt.Add(ago)), "ago=%s", ago)
	}
}

func TestRelativeTimeShortZero(t *testing.T) {
	assert.Empty(t, RelativeTimeShort(time.Time{}))
}

func TestRelativeAtSpanish(t *testing.T) {
	Init("es")
	defer Init("en")

	assert.Equal(t, "hace 1 hora", relativeAt(ingestedAt, ingestedAt.Add(90*time.Minute)))
	assert.Equal(t, "hace 4 días", relativeAt(ingestedAt, ingestedAt.Add(4*24*time.Hour)))
	assert.Equal(t, "hace 2 meses", relativeShortAt(ingestedAt, ingestedAt.Add(61*24*time.Hour)))
}
