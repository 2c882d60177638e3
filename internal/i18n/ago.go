package i18n

import "time"

const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 365 * day
)

// RelativeTime renders how long ago t was, e.g. "3 hours ago". Session
// detail views use it next to the absolute ingestion timestamp.
func RelativeTime(t time.Time) string {
	return relativeAt(t, time.Now())
}

// RelativeTimeShort is the table-column form of RelativeTime: "today",
// "4d ago", "2mo ago". A zero time renders as the empty string.
func RelativeTimeShort(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return relativeShortAt(t, time.Now())
}

func relativeAt(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		// Timestamps slightly in the future come from operator clock skew.
		return T("common.time.justNow", "just now")
	case d < time.Hour:
		return Tn("common.time.minutesAgo", "{{.Count}} min ago", "{{.Count}} mins ago", int(d/time.Minute))
	case d < day:
		return Tn("common.time.hoursAgo", "{{.Count}} hour ago", "{{.Count}} hours ago", int(d/time.Hour))
	}
	return Tn("common.time.daysAgo", "{{.Count}} day ago", "{{.Count}} days ago", int(d/day))
}

func relativeShortAt(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < day:
		return T("common.time.short.today", "today")
	case d < month:
		return Tn("common.time.short.daysAgo", "{{.Count}}d ago", "{{.Count}}d ago", int(d/day))
	case d < year:
		return Tn("common.time.short.monthsAgo", "{{.Count}}mo ago", "{{.Count}}mo ago", int(d/month))
	}
	return Tn("common.time.short.yearsAgo", "{{.Count}}y ago", "{{.Count}}y ago", int(d/year))
}
