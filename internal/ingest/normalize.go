package ingest

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// timestampLayouts is tried in order; the first successful parse wins.
// Day-first layouts precede month-first ones.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2/1/2006 15:04:05",
	"1/2/2006 15:04:05",
	"2/1/2006 15:04",
	"1/2/2006 15:04",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2006/01/02 15:04:05",
	"02-Jan-2006 15:04:05",
	"2006-01-02",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"2006/01/02",
	"02-Jan-2006",
}

var dateLayouts = []string{
	"2006-01-02",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"2006/01/02",
	"02-Jan-2006",
	"20060102",
}

var (
	bareClockRe   = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)
	hmsDurationRe = regexp.MustCompile(`^(\d+):(\d{1,2}):(\d{1,2})$`)
	msDurationRe  = regexp.MustCompile(`^(\d+):(\d{1,2})$`)
	intFractionRe = regexp.MustCompile(`^(\+?\d+)\.\d*$`)
	sciNumberRe   = regexp.MustCompile(`^[+-]?\d+(\.\d+)?[eE][+-]?\d+$`)
)

// nullTokens are cell values treated as absent.
var nullTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"null": true,
	"n/a":  true,
	"na":   true,
}

// CleanValue trims v and maps null markers to the empty string.
func CleanValue(v string) string {
	v = strings.TrimSpace(v)
	if nullTokens[strings.ToLower(v)] {
		return ""
	}
	return v
}

// NormalizePhone keeps only digits and a leading '+'. A trailing decimal
// fraction left over from numeric spreadsheet cells is discarded first.
// It returns "" when nothing remains.
func NormalizePhone(v string) string {
	v = strings.TrimSpace(v)
	if m := intFractionRe.FindStringSubmatch(v); m != nil {
		v = m[1]
	}
	if sciNumberRe.MatchString(v) {
		v = expandScientific(v)
	}

	var b strings.Builder
	for i, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" || out == "+" {
		return ""
	}
	return out
}

// isSeparatorOnly reports values made only of '-', '_', '=' and spaces.
func isSeparatorOnly(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		switch r {
		case '-', '_', '=', ' ', '\t':
		default:
			return false
		}
	}
	return true
}

// IsBareClock reports whether v is a time of day without a date.
func IsBareClock(v string) bool {
	return bareClockRe.MatchString(strings.TrimSpace(v))
}

// ParseTimestamp parses v using the ordered layout list. Spreadsheet
// serial dates are accepted as a last resort.
func ParseTimestamp(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	if t, ok := parseSerialDate(v); ok {
		return t, true
	}
	return time.Time{}, false
}

// CombineDateTime joins a date value with a bare clock value. The date may
// itself be a full timestamp, in which case only its date part is used.
func CombineDateTime(date, clock string) (time.Time, bool) {
	d, ok := parseDate(date)
	if !ok {
		return time.Time{}, false
	}
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return d, true
	}
	if !IsBareClock(clock) {
		return time.Time{}, false
	}
	var c time.Time
	var err error
	if strings.Count(clock, ":") == 2 {
		c, err = time.Parse("15:04:05", clock)
	} else {
		c, err = time.Parse("15:04", clock)
	}
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC), true
}

func parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	if t, ok := ParseTimestamp(v); ok {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// parseSerialDate converts spreadsheet serial day numbers (days since
// 1899-12-30) within a plausible range.
func parseSerialDate(v string) (time.Time, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 20000 || f > 80000 {
		return time.Time{}, false
	}
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	secs := math.Round(f * 86400)
	return base.Add(time.Duration(secs) * time.Second), true
}

// ParseFloat is a best-effort float cast. Thousands separators are
// removed. Failure, NaN and infinities yield nil.
func ParseFloat(v string) *float64 {
	v = strings.ReplaceAll(CleanValue(v), ",", "")
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseDurationSeconds accepts plain seconds as well as H:MM:SS and M:SS
// clock durations.
func ParseDurationSeconds(v string) *float64 {
	v = CleanValue(v)
	if f := ParseFloat(v); f != nil {
		return f
	}
	if m := hmsDurationRe.FindStringSubmatch(v); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		s, _ := strconv.Atoi(m[3])
		f := float64(h*3600 + mi*60 + s)
		return &f
	}
	if m := msDurationRe.FindStringSubmatch(v); m != nil {
		mi, _ := strconv.Atoi(m[1])
		s, _ := strconv.Atoi(m[2])
		f := float64(mi*60 + s)
		return &f
	}
	return nil
}

// ParseInt is a best-effort integer cast; integral floats such as "404.0"
// are accepted.
func ParseInt(v string) *int {
	v = CleanValue(v)
	if v == "" {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	n := int(f)
	return &n
}

// NormalizeIdentifier renders IMEI/IMSI style identifiers as plain digit
// strings: scientific notation is expanded and a trailing decimal fraction
// is discarded. Non-numeric identifiers are returned trimmed.
func NormalizeIdentifier(v string) string {
	v = CleanValue(v)
	if v == "" {
		return ""
	}
	if sciNumberRe.MatchString(v) {
		return expandScientific(v)
	}
	if m := intFractionRe.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return v
}

func expandScientific(v string) string {
	f, _, err := big.ParseFloat(v, 10, 128, big.ToNearestEven)
	if err != nil {
		return v
	}
	i, _ := f.Int(nil)
	return i.String()
}

// InferCallType classifies a call-type cell. Unknown or empty values are
// treated as voice.
func InferCallType(v string) cdr.CallType {
	lower := strings.ToLower(v)
	switch {
	case strings.Contains(lower, "sms"), strings.Contains(lower, "text"):
		return cdr.CallSMS
	case strings.Contains(lower, "data"), strings.Contains(lower, "internet"), strings.Contains(lower, "gprs"):
		return cdr.CallData
	default:
		return cdr.CallVoice
	}
}

// DirectionHint classifies a direction cell. ok is false when the value
// carries no recognizable hint.
func DirectionHint(v string) (cdr.Direction, bool) {
	lower := strings.ToLower(strings.TrimSpace(v))
	if lower == "" {
		return "", false
	}
	switch {
	case strings.Contains(lower, "incoming"), strings.Contains(lower, "received"), strings.Contains(lower, "terminat"):
		return cdr.DirectionIncoming, true
	case strings.Contains(lower, "outgoing"), strings.Contains(lower, "originat"), strings.Contains(lower, "dialled"), strings.Contains(lower, "dialed"):
		return cdr.DirectionOutgoing, true
	}
	for _, tok := range tokens(normalizeName(lower)) {
		switch tok {
		case "in", "inc", "mt", "ic":
			return cdr.DirectionIncoming, true
		case "out", "mo", "og":
			return cdr.DirectionOutgoing, true
		}
	}
	return "", false
}

// InferDirection resolves the direction of a row. A recognizable direction
// cell wins; otherwise the calling number is compared with the subject
// number. With no subject number the row is treated as outgoing.
func InferDirection(hint, calling, subject string) cdr.Direction {
	if d, ok := DirectionHint(hint); ok {
		return d
	}
	if subject == "" {
		return cdr.DirectionOutgoing
	}
	if calling == subject {
		return cdr.DirectionOutgoing
	}
	return cdr.DirectionIncoming
}

// InferStatus classifies a call-status cell, defaulting to completed.
func InferStatus(v string) cdr.Status {
	if st, ok := cdr.ParseStatus(v); ok {
		return st
	}
	lower := strings.ToLower(v)
	switch {
	case strings.Contains(lower, "fail"), strings.Contains(lower, "drop"), strings.Contains(lower, "reject"):
		return cdr.StatusFailed
	case strings.Contains(lower, "miss"), strings.Contains(lower, "no answer"), strings.Contains(lower, "unanswered"):
		return cdr.StatusMissed
	case strings.Contains(lower, "busy"):
		return cdr.StatusBusy
	default:
		return cdr.StatusCompleted
	}
}
