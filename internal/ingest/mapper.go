package ingest

import (
	"strings"
	"unicode"
)

// Canonical field names produced by the column mapper.
const (
	FieldCallID              = "call_id"
	FieldCallingNumber       = "calling_number"
	FieldCalledNumber        = "called_number"
	FieldCallDate            = "call_date"
	FieldCallStartTime       = "call_start_time"
	FieldCallEndTime         = "call_end_time"
	FieldDuration            = "duration_seconds"
	FieldCallType            = "call_type"
	FieldDirection           = "direction"
	FieldCallStatus          = "call_status"
	FieldCellTowerID         = "cell_tower_id"
	FieldLocationLat         = "location_lat"
	FieldLocationLon         = "location_lon"
	FieldLocationDescription = "location_description"
	FieldLAC                 = "lac"
	FieldMNC                 = "mnc"
	FieldMCC                 = "mcc"
	FieldIMEI                = "imei"
	FieldIMSI                = "imsi"
	FieldOperator            = "operator"
	FieldCircle              = "circle"
	FieldCost                = "cost"
	FieldDataVolume          = "data_volume_mb"
	FieldSMSContent          = "sms_content"

	// Only present in canonical JSON input.
	FieldRawRowReference = "raw_row_reference"
	FieldSuspectName     = "suspect_name"
)

// fieldAliases lists the known source names of one canonical field.
type fieldAliases struct {
	field   string
	aliases []string
}

// exactOnlyAliases match only a column with the same normalized name. As
// ordinary aliases these bare words would swallow "end time" or "talk time".
var exactOnlyAliases = map[string][]string{
	FieldCallStartTime: {"time", "start"},
}

// names returns the aliases tried at strength want.
func (fa fieldAliases) names(want matchStrength) []string {
	extra := exactOnlyAliases[fa.field]
	if want != matchExact || len(extra) == 0 {
		return fa.aliases
	}
	return append(append([]string(nil), fa.aliases...), extra...)
}

// genericTokens never produce a token match on their own. They occur in
// most CDR headers ("Call Time", "Call Date", "BTS Location") and say
// nothing about which field a column holds.
var genericTokens = map[string]bool{
	"call": true, "calls": true, "number": true, "time": true, "date": true,
	"party": true, "type": true, "code": true, "data": true, "cell": true,
	"start": true, "record": true, "location": true, "area": true,
	"event": true, "device": true, "network": true, "mobile": true,
	"country": true, "subscriber": true, "status": true, "identity": true,
}

// vendorTable is the alias table of one switch vendor.
type vendorTable struct {
	vendor string
	fields []fieldAliases
}

// vendorTables is evaluated in order; the generic table comes first so its
// aliases take priority when two vendors claim the same column.
var vendorTables = []vendorTable{
	{vendor: "standard", fields: []fieldAliases{
		{FieldCallID, []string{"call_id", "record_id", "cdr_id"}},
		{FieldCallingNumber, []string{"calling_number", "caller", "from_number", "msisdn_a", "a_number"}},
		{FieldCalledNumber, []string{"called_number", "callee", "to_number", "msisdn_b", "b_number"}},
		{FieldCallDate, []string{"call_date", "date"}},
		{FieldCallStartTime, []string{"call_start_time", "start_time", "timestamp", "call_time"}},
		{FieldCallEndTime, []string{"call_end_time", "end_time"}},
		{FieldDuration, []string{"duration_seconds", "duration", "call_duration", "call_duration_sec"}},
		{FieldCallType, []string{"call_type", "type", "service_type"}},
		{FieldDirection, []string{"direction", "call_direction"}},
		{FieldCallStatus, []string{"call_status", "status"}},
		{FieldCellTowerID, []string{"cell_tower_id", "tower_id", "cell_id", "ci", "cell_identity"}},
		{FieldLocationLat, []string{"location_lat", "latitude", "lat"}},
		{FieldLocationLon, []string{"location_lon", "longitude", "lon", "long"}},
		{FieldLocationDescription, []string{"location_description", "address", "site_address"}},
		{FieldLAC, []string{"lac", "location_area_code", "location_area"}},
		{FieldMNC, []string{"mnc", "mobile_network_code", "network_code"}},
		{FieldMCC, []string{"mcc", "mobile_country_code", "country_code"}},
		{FieldIMEI, []string{"imei", "device_imei"}},
		{FieldIMSI, []string{"imsi", "subscriber_imsi"}},
		{FieldOperator, []string{"operator", "provider", "tsp"}},
		{FieldCircle, []string{"circle", "roaming_circle", "state"}},
		{FieldCost, []string{"cost", "charge", "amount"}},
		{FieldDataVolume, []string{"data_volume_mb", "data_volume", "volume_mb"}},
		{FieldSMSContent, []string{"sms_content", "message", "text"}},
	}},
	{vendor: "ericsson", fields: []fieldAliases{
		{FieldCallingNumber, []string{"a_number", "msisdn_a", "calling_party", "caller_id"}},
		{FieldCalledNumber, []string{"b_number", "msisdn_b", "called_party", "callee_id"}},
		{FieldCallStartTime, []string{"start_time", "event_time", "timestamp", "date_time"}},
		{FieldDuration, []string{"duration", "call_duration", "talk_time"}},
		{FieldCellTowerID, []string{"cell_id", "tower_id", "location_area_code"}},
		{FieldIMEI, []string{"imei", "device_id"}},
		{FieldIMSI, []string{"imsi", "subscriber_id"}},
	}},
	{vendor: "nokia", fields: []fieldAliases{
		{FieldCallingNumber, []string{"a_party", "originating_number", "msisdn_a"}},
		{FieldCalledNumber, []string{"b_party", "terminating_number", "msisdn_b"}},
		{FieldCallStartTime, []string{"event_time", "start_timestamp"}},
		{FieldDuration, []string{"duration", "call_length"}},
		{FieldCellTowerID, []string{"cell_identity", "ci", "cell_id"}},
		{FieldIMEI, []string{"equipment_id", "imei"}},
		{FieldIMSI, []string{"imsi"}},
	}},
	{vendor: "huawei", fields: []fieldAliases{
		{FieldCallingNumber, []string{"calling_number", "a_number", "msisdn_a"}},
		{FieldCalledNumber, []string{"called_number", "b_number", "msisdn_b"}},
		{FieldCallStartTime, []string{"start_time", "event_time"}},
		{FieldDuration, []string{"duration", "call_duration"}},
		{FieldCellTowerID, []string{"cell_id", "ci"}},
		{FieldIMEI, []string{"imei"}},
		{FieldIMSI, []string{"imsi"}},
	}},
}

// overrideRule maps a normalized column containing pattern to field. Rules
// run after every alias tier and only fill fields still unmapped.
type overrideRule struct {
	pattern string
	field   string
}

var overrideRules = []overrideRule{
	{"a party", FieldCallingNumber},
	{"target", FieldCallingNumber},
	{"originating", FieldCallingNumber},
	{"b party", FieldCalledNumber},
	{"other party", FieldCalledNumber},
	{"terminating", FieldCalledNumber},
	{"call initiation time", FieldCallStartTime},
	{"call start", FieldCallStartTime},
	{"call end", FieldCallEndTime},
	{"call termination time", FieldCallEndTime},
	{"bts location", FieldCellTowerID},
	{"first cgi", FieldCellTowerID},
	{"cgi", FieldCellTowerID},
	{"bts", FieldCellTowerID},
	{"call dur", FieldDuration},
	{"service", FieldCallType},
	{"in out", FieldDirection},
	{"handset", FieldIMEI},
	{"roaming", FieldCircle},
}

// VendorColumnMap is the mapping from canonical field names to source
// column names computed for one input file.
type VendorColumnMap struct {
	Vendor        string            `json:"vendor"`
	Type          string            `json:"type,omitempty"`
	ColumnMapping map[string]string `json:"column_mapping,omitempty"`
	ColumnsFound  []string          `json:"columns_found,omitempty"`
}

// Column returns the source column mapped to field, if any.
func (m VendorColumnMap) Column(field string) (string, bool) {
	c, ok := m.ColumnMapping[field]
	return c, ok
}

type matchStrength int

const (
	matchNone matchStrength = iota
	matchToken
	matchContains
	matchExact
)

// MapColumns builds the VendorColumnMap for a header row.
//
// Assignment runs in tiers of decreasing strength (exact, containment,
// shared token) so that a weak token match can never take a column another
// field names exactly. The override rules then fill fields still missing.
// Within a tier vendor tables are walked in order and the first match for a
// field wins. A column is claimed by at most one field.
func MapColumns(columns []string) VendorColumnMap {
	normCols := make([]string, len(columns))
	for i, c := range columns {
		normCols[i] = normalizeName(c)
	}

	mapping := make(map[string]string)
	claimed := make([]bool, len(columns))

	assign := func(field string, col int) {
		mapping[field] = columns[col]
		claimed[col] = true
	}

	aliasTier := func(want matchStrength) {
		for _, vt := range vendorTables {
			for _, fa := range vt.fields {
				if _, ok := mapping[fa.field]; ok {
					continue
				}
				if col := findColumn(normCols, claimed, fa.names(want), want); col >= 0 {
					assign(fa.field, col)
				}
			}
		}
	}

	aliasTier(matchExact)
	aliasTier(matchContains)
	aliasTier(matchToken)
	for _, rule := range overrideRules {
		if _, ok := mapping[rule.field]; ok {
			continue
		}
		for i, nc := range normCols {
			if !claimed[i] && nc != "" && strings.Contains(nc, rule.pattern) {
				assign(rule.field, i)
				break
			}
		}
	}

	found := make([]string, 0, len(columns))
	for _, nc := range normCols {
		if nc != "" {
			found = append(found, nc)
		}
	}

	return VendorColumnMap{
		Vendor:        detectVendor(normCols),
		ColumnMapping: mapping,
		ColumnsFound:  found,
	}
}

// findColumn returns the first unclaimed column that matches one of the
// aliases with exactly the wanted strength, trying aliases in order.
func findColumn(normCols []string, claimed []bool, aliases []string, want matchStrength) int {
	for _, alias := range aliases {
		na := normalizeName(alias)
		for i, nc := range normCols {
			if claimed[i] || nc == "" {
				continue
			}
			if matchColumn(nc, na) == want {
				return i
			}
		}
	}
	return -1
}

// matchColumn compares a normalized column name with a normalized alias.
// Containment is evaluated on whole tokens so short aliases such as "ci"
// do not match inside longer words.
func matchColumn(col, alias string) matchStrength {
	if col == alias {
		return matchExact
	}
	ct, at := tokens(col), tokens(alias)
	if containsSeq(ct, at) || containsSeq(at, ct) {
		return matchContains
	}
	for _, a := range at {
		if len(a) <= 3 || genericTokens[a] {
			continue
		}
		for _, c := range ct {
			if a == c {
				return matchToken
			}
		}
	}
	return matchNone
}

// detectVendor returns the vendor whose alias table recognises the most
// columns. The result is informational only.
func detectVendor(normCols []string) string {
	best, bestHits := "standard", 0
	for _, vt := range vendorTables {
		hits := 0
		for _, nc := range normCols {
			if nc == "" {
				continue
			}
			if vendorRecognises(vt, nc) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = vt.vendor, hits
		}
	}
	return best
}

func vendorRecognises(vt vendorTable, col string) bool {
	for _, fa := range vt.fields {
		for _, alias := range fa.names(matchExact) {
			if col == normalizeName(alias) {
				return true
			}
		}
	}
	return false
}

// exactAliasField returns the canonical field whose generic alias equals the
// normalized column name. It backs the direct-name fallback pass of the
// record builder.
func exactAliasField(col string) (string, bool) {
	nc := normalizeName(col)
	for _, fa := range vendorTables[0].fields {
		for _, alias := range fa.names(matchExact) {
			if nc == normalizeName(alias) {
				return fa.field, true
			}
		}
	}
	return "", false
}

// normalizeName lowercases s, turns separators and punctuation into spaces
// and collapses runs of whitespace.
func normalizeName(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space && b.Len() > 0 {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

func tokens(s string) []string {
	return strings.Fields(s)
}

// containsSeq reports whether needle occurs as a contiguous run in hay.
func containsSeq(hay, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j := range needle {
			if hay[i+j] != needle[j] {
				continue outer
			}
		}
		return true
	}
	return false
}
