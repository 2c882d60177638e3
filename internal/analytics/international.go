package analytics

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// DefaultHomeRegion is the region assumed for numbers written without a
// country code.
const DefaultHomeRegion = "IN"

const maxCountryCalls = 10

// CountryCall is one call sample of a country bucket.
type CountryCall struct {
	Number          string       `json:"number"`
	Timestamp       time.Time    `json:"timestamp"`
	DurationSeconds *float64     `json:"duration_seconds,omitempty"`
	Type            cdr.CallType `json:"type"`
}

// CountryTraffic aggregates the calls exchanged with one country.
type CountryTraffic struct {
	Region               string        `json:"region"`
	Country              string        `json:"country"`
	International        bool          `json:"international"`
	CallCount            int           `json:"call_count"`
	TotalDurationSeconds float64       `json:"total_duration_seconds"`
	Calls                []CountryCall `json:"calls"`
}

// InternationalCalls breaks the traffic of a scope down by the country of
// the other party.
type InternationalCalls struct {
	Scope              cdr.Scope        `json:"scope"`
	HomeRegion         string           `json:"home_region"`
	InternationalCount int              `json:"international_count"`
	Countries          []CountryTraffic `json:"countries"`
}

// NumberRegion returns the ISO region of a phone number, or "" when it
// cannot be placed. Numbers with a "+" or "00" prefix, and bare numbers
// longer than a national number, are read as international; anything else
// is read in the home region.
func NumberRegion(number, home string) string {
	n := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' || r == '.' {
			return -1
		}
		return r
	}, strings.TrimSpace(number))
	if strings.HasPrefix(n, "00") {
		n = "+" + n[2:]
	}
	digits := strings.TrimPrefix(n, "+")
	if digits == "" || strings.IndexFunc(digits, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return ""
	}

	if !strings.HasPrefix(n, "+") && len(digits) > 10 {
		if num, err := phonenumbers.Parse("+"+digits, ""); err == nil && phonenumbers.IsValidNumber(num) {
			return regionCode(num)
		}
	}
	num, err := phonenumbers.Parse(n, home)
	if err != nil {
		return ""
	}
	return regionCode(num)
}

func regionCode(num *phonenumbers.PhoneNumber) string {
	code := phonenumbers.GetRegionCodeForNumber(num)
	if code == "ZZ" {
		return ""
	}
	return code
}

// CountryName returns the English name of an ISO region code, or the code
// itself when it is not known.
func CountryName(code string) string {
	region, err := language.ParseRegion(code)
	if err != nil {
		return code
	}
	if name := display.English.Regions().Name(region); name != "" {
		return name
	}
	return code
}

// AnalyzeInternational groups records by the country of the other party:
// the called number of outgoing records and the calling number otherwise.
// Countries are ordered by call count; each keeps its first calls as
// samples.
func AnalyzeInternational(recs []cdr.Record, home string) *InternationalCalls {
	if home == "" {
		home = DefaultHomeRegion
	}
	home = strings.ToUpper(home)
	out := &InternationalCalls{HomeRegion: home, Countries: []CountryTraffic{}}

	buckets := make(map[string]*CountryTraffic)
	for i := range recs {
		r := &recs[i]
		number := r.MSISDNA
		if r.Direction == cdr.DirectionOutgoing {
			number = r.MSISDNB
		}
		region := NumberRegion(number, home)
		if region == "" {
			continue
		}
		b, ok := buckets[region]
		if !ok {
			b = &CountryTraffic{Region: region, Country: CountryName(region), International: region != home}
			buckets[region] = b
		}
		b.CallCount++
		if r.DurationSeconds != nil {
			b.TotalDurationSeconds += *r.DurationSeconds
		}
		if len(b.Calls) < maxCountryCalls {
			b.Calls = append(b.Calls, CountryCall{
				Number:          number,
				Timestamp:       r.CallStartTime,
				DurationSeconds: r.DurationSeconds,
				Type:            r.CallType,
			})
		}
		if b.International {
			out.InternationalCount++
		}
	}

	for _, b := range buckets {
		out.Countries = append(out.Countries, *b)
	}
	sort.Slice(out.Countries, func(i, j int) bool {
		a, b := out.Countries[i], out.Countries[j]
		if a.CallCount != b.CallCount {
			return a.CallCount > b.CallCount
		}
		return a.Region < b.Region
	})
	return out
}

// International loads the scope and breaks its traffic down by country.
func (e *Engine) International(ctx context.Context, scope cdr.Scope) (*InternationalCalls, error) {
	recs, resolved, err := e.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := AnalyzeInternational(recs, e.cfg.HomeRegion)
	out.Scope = resolved
	return out, nil
}
