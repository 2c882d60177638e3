package analytics

import (
	"strings"
	"time"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
	"github.com/wethinkt/go-cdrintel/internal/i18n"
)

// RiskLevel grades a case.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

const (
	riskLocations    = 20
	riskCalls        = 1000
	extensiveNetwork = 50
	nightCallAlert   = 50
	nightStartHour   = 22
)

// Alert is a case-level finding shown alongside the overview.
type Alert struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Evidence    string   `json:"evidence"`
}

// Overview is the case header: key counts, a risk grade, a one-line
// narrative and alerts.
type Overview struct {
	CaseID          string    `json:"case_id"`
	TargetMSISDN    string    `json:"target_msisdn"`
	TotalCalls      int       `json:"total_calls"`
	UniqueContacts  int       `json:"unique_contacts"`
	UniqueIMEIs     int       `json:"unique_imeis"`
	UniqueLocations int       `json:"unique_locations"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Story           string    `json:"intelligence_story"`
	Alerts          []Alert   `json:"alerts"`
}

// CaseID derives the case identifier from the generation date.
func CaseID(now time.Time) string {
	return "CDR_INV_" + now.Format("2006_0102")
}

// BuildOverview summarises records into the case overview. now stamps the
// case identifier.
func BuildOverview(recs []cdr.Record, now time.Time) *Overview {
	ov := &Overview{CaseID: CaseID(now), RiskLevel: RiskLow, Alerts: []Alert{}}
	if len(recs) == 0 {
		ov.Story = i18n.T("overview.story.empty", "No data available.")
		return ov
	}

	contacts := newCounter()
	imeis := newCounter()
	cells := newCounter()
	first, last := recs[0].CallStartTime, recs[0].CallStartTime
	night := 0
	for i := range recs {
		r := &recs[i]
		contacts.add(r.MSISDNB)
		imeis.add(r.IMEI)
		cells.add(r.Location())
		if r.CallStartTime.Before(first) {
			first = r.CallStartTime
		}
		if r.CallStartTime.After(last) {
			last = r.CallStartTime
		}
		if r.CallStartTime.UTC().Hour() >= nightStartHour {
			night++
		}
	}

	ov.TargetMSISDN = SubjectNumber(recs)
	ov.TotalCalls = len(recs)
	ov.UniqueContacts = contacts.distinct()
	ov.UniqueIMEIs = imeis.distinct()
	ov.UniqueLocations = cells.distinct()

	score := 0
	if ov.UniqueIMEIs > 1 {
		score += 2
	}
	if ov.UniqueLocations > riskLocations {
		score++
	}
	if ov.TotalCalls > riskCalls {
		score++
	}
	switch {
	case score >= 3:
		ov.RiskLevel = RiskHigh
	case score >= 1:
		ov.RiskLevel = RiskMedium
	}

	parts := []string{
		i18n.Tf("overview.story.span", "Activity span: %d days", int(last.Sub(first).Hours()/24)),
	}
	if ov.UniqueIMEIs > 1 {
		parts = append(parts, i18n.Tf("overview.story.devices", "%d different devices detected", ov.UniqueIMEIs))
	}
	if ov.UniqueContacts > extensiveNetwork {
		parts = append(parts, i18n.Tf("overview.story.network",
			"Extensive contact network (%d unique contacts)", ov.UniqueContacts))
	}
	ov.Story = strings.Join(parts, ". ")

	if ov.UniqueIMEIs > 1 {
		ov.Alerts = append(ov.Alerts, Alert{
			Title:       i18n.T("overview.alert.device.title", "Device Change Detected"),
			Description: i18n.Tf("overview.alert.device.description", "%d different IMEIs detected in the dataset", ov.UniqueIMEIs),
			Severity:    SeverityWarning,
			Evidence:    i18n.Tf("overview.alert.device.evidence", "IMEI count: %d", ov.UniqueIMEIs),
		})
	}
	if night > nightCallAlert {
		ov.Alerts = append(ov.Alerts, Alert{
			Title:       i18n.T("overview.alert.night.title", "Night-time Activity Spike"),
			Description: i18n.Tf("overview.alert.night.description", "%d calls detected between 22:00-23:59", night),
			Severity:    SeverityInfo,
			Evidence:    i18n.Tf("overview.alert.night.evidence", "Night calls: %d", night),
		})
	}
	return ov
}
