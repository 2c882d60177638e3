package analytics

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

const maxExcerpt = 100

// smsServices is checked in order; a message is attributed to the first
// service with a matching pattern. Patterns of three characters or fewer
// must match a whole word.
var smsServices = []struct {
	name     string
	patterns []string
}{
	{"WhatsApp", []string{"whatsapp", "wa.me"}},
	{"Uber", []string{"uber"}},
	{"Swiggy", []string{"swiggy"}},
	{"Zomato", []string{"zomato"}},
	{"Paytm", []string{"paytm"}},
	{"Bank", []string{"bank", "otp", "pin", "verification", "transaction"}},
	{"PayPal", []string{"paypal"}},
	{"Amazon", []string{"amazon", "aws"}},
	{"Google", []string{"google", "gmail", "goog"}},
	{"Facebook", []string{"facebook", "fb.com", "messenger"}},
	{"Telegram", []string{"telegram"}},
	{"Instagram", []string{"instagram", "ig"}},
	{"Twitter", []string{"twitter", "x.com"}},
}

// ServiceHit is one SMS attributed to a service.
type ServiceHit struct {
	Timestamp time.Time `json:"timestamp"`
	Number    string    `json:"number"`
	Excerpt   string    `json:"sms_content"`
}

// ServiceDetection groups the SMS attributed to one service.
type ServiceDetection struct {
	Service    string       `json:"service"`
	Count      int          `json:"count"`
	Detections []ServiceHit `json:"detections"`
}

// SMSServices lists the services a subject receives or sends SMS about.
type SMSServices struct {
	Scope    cdr.Scope          `json:"scope"`
	Services []ServiceDetection `json:"services"`
}

// MatchService returns the service a message belongs to, judged by its
// text together with the other party's number or sender id, or "".
func MatchService(text, number string) string {
	combined := strings.ToLower(text + " " + number)
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(combined, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	for _, svc := range smsServices {
		for _, p := range svc.patterns {
			if len(p) <= 3 {
				if words[p] {
					return svc.name
				}
				continue
			}
			if strings.Contains(combined, p) {
				return svc.name
			}
		}
	}
	return ""
}

// DetectSMSServices attributes the SMS records of a scope to known
// services. Services are ordered by count, then name.
func DetectSMSServices(recs []cdr.Record) *SMSServices {
	subject := SubjectNumber(recs)
	byName := make(map[string]*ServiceDetection)
	for i := range recs {
		r := &recs[i]
		if r.CallType != cdr.CallSMS {
			continue
		}
		other := r.Counterpart(subject)
		svc := MatchService(r.SMSContent, other)
		if svc == "" {
			continue
		}
		d, ok := byName[svc]
		if !ok {
			d = &ServiceDetection{Service: svc}
			byName[svc] = d
		}
		d.Count++
		d.Detections = append(d.Detections, ServiceHit{
			Timestamp: r.CallStartTime,
			Number:    other,
			Excerpt:   excerpt(r.SMSContent),
		})
	}

	out := &SMSServices{Services: []ServiceDetection{}}
	for _, d := range byName {
		out.Services = append(out.Services, *d)
	}
	sort.Slice(out.Services, func(i, j int) bool {
		a, b := out.Services[i], out.Services[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Service < b.Service
	})
	return out
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) > maxExcerpt {
		return string(r[:maxExcerpt])
	}
	return s
}

// SMSServices loads the scope and attributes its SMS to services.
func (e *Engine) SMSServices(ctx context.Context, scope cdr.Scope) (*SMSServices, error) {
	recs, resolved, err := e.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := DetectSMSServices(recs)
	out.Scope = resolved
	return out, nil
}
