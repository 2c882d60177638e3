package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapColumns_StandardNames(t *testing.T) {
	m := MapColumns([]string{"calling_number", "called_number", "call_start_time", "duration", "call_type", "IMEI", "Cell ID"})

	assert.Equal(t, "calling_number", m.ColumnMapping[FieldCallingNumber])
	assert.Equal(t, "called_number", m.ColumnMapping[FieldCalledNumber])
	assert.Equal(t, "call_start_time", m.ColumnMapping[FieldCallStartTime])
	assert.Equal(t, "duration", m.ColumnMapping[FieldDuration])
	assert.Equal(t, "call_type", m.ColumnMapping[FieldCallType])
	assert.Equal(t, "IMEI", m.ColumnMapping[FieldIMEI])
	assert.Equal(t, "Cell ID", m.ColumnMapping[FieldCellTowerID])
	assert.Equal(t, "standard", m.Vendor)
}

func TestMapColumns_OverrideRules(t *testing.T) {
	m := MapColumns([]string{"Target No", "B Party No", "Call Initiation Time", "BTS Location", "Call Dur (s)"})

	assert.Equal(t, "Target No", m.ColumnMapping[FieldCallingNumber])
	assert.Equal(t, "B Party No", m.ColumnMapping[FieldCalledNumber])
	assert.Equal(t, "Call Initiation Time", m.ColumnMapping[FieldCallStartTime])
	assert.Equal(t, "BTS Location", m.ColumnMapping[FieldCellTowerID])
	assert.Equal(t, "Call Dur (s)", m.ColumnMapping[FieldDuration])
}

func TestMapColumns_APartyHyphenated(t *testing.T) {
	m := MapColumns([]string{"A-Party", "B-Party", "Date", "Time"})

	assert.Equal(t, "A-Party", m.ColumnMapping[FieldCallingNumber])
	assert.Equal(t, "B-Party", m.ColumnMapping[FieldCalledNumber])
	assert.Equal(t, "Date", m.ColumnMapping[FieldCallDate])
	assert.Equal(t, "Time", m.ColumnMapping[FieldCallStartTime])
}

func TestMapColumns_ExactBeatsToken(t *testing.T) {
	// "call type" shares the token "call" with many aliases but must stay
	// with the call_type field.
	m := MapColumns([]string{"call type", "call duration", "a number", "b number", "event time"})

	assert.Equal(t, "call type", m.ColumnMapping[FieldCallType])
	assert.Equal(t, "call duration", m.ColumnMapping[FieldDuration])
	assert.Equal(t, "event time", m.ColumnMapping[FieldCallStartTime])
}

func TestMapColumns_ShortAliasNeedsWholeToken(t *testing.T) {
	m := MapColumns([]string{"circle", "msisdn_a", "msisdn_b", "timestamp"})

	_, mapped := m.ColumnMapping[FieldCellTowerID]
	assert.False(t, mapped, "ci alias must not match inside circle")
	assert.Equal(t, "circle", m.ColumnMapping[FieldCircle])
}

func TestMapColumns_ColumnClaimedOnce(t *testing.T) {
	m := MapColumns([]string{"msisdn", "other", "start time"})

	seen := map[string]string{}
	for field, col := range m.ColumnMapping {
		if prev, dup := seen[col]; dup {
			t.Fatalf("column %q mapped to both %s and %s", col, prev, field)
		}
		seen[col] = field
	}
}

func TestMapColumns_VendorIsInformational(t *testing.T) {
	m := MapColumns([]string{"equipment_id", "originating_number", "terminating_number", "start_timestamp"})

	assert.Equal(t, "nokia", m.Vendor)
	assert.Equal(t, "equipment_id", m.ColumnMapping[FieldIMEI])
	assert.Equal(t, "originating_number", m.ColumnMapping[FieldCallingNumber])
	assert.Equal(t, "terminating_number", m.ColumnMapping[FieldCalledNumber])
	assert.Equal(t, "start_timestamp", m.ColumnMapping[FieldCallStartTime])
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Call_Start-Time":  "call start time",
		"  A/Party  ":      "a party",
		"Duration (sec.)":  "duration sec",
		"IMEI":             "imei",
		"---":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeName(in), "normalizeName(%q)", in)
	}
}

func TestMapColumns_SeparateDateAndTime(t *testing.T) {
	m := MapColumns([]string{"Calling Number", "Called Number", "Call Date", "Call Time", "Duration"})

	assert.Equal(t, "Call Date", m.ColumnMapping[FieldCallDate])
	assert.Equal(t, "Call Time", m.ColumnMapping[FieldCallStartTime])
	_, mapped := m.ColumnMapping[FieldCallID]
	assert.False(t, mapped, "a column sharing only the word call is not a call id")
}

func TestMapColumns_GenericWordsDoNotMatch(t *testing.T) {
	m := MapColumns([]string{"Target No", "Other Party", "Call End Time", "Record Type", "BTS Location"})

	_, mapped := m.ColumnMapping[FieldCallStartTime]
	assert.False(t, mapped, "end time must not be taken as the start time")
	_, mapped = m.ColumnMapping[FieldCallID]
	assert.False(t, mapped)
	assert.Equal(t, "Call End Time", m.ColumnMapping[FieldCallEndTime])
	assert.Equal(t, "BTS Location", m.ColumnMapping[FieldCellTowerID])
	_, mapped = m.ColumnMapping[FieldLocationLat]
	assert.False(t, mapped)
}

func TestMapColumns_AliasesBeforeOverrides(t *testing.T) {
	// The caller alias fills calling_number before the target override
	// gets a chance at "Target MSISDN".
	m := MapColumns([]string{"Target MSISDN", "Caller", "B Party", "Start Time"})

	assert.Equal(t, "Caller", m.ColumnMapping[FieldCallingNumber])
	assert.Equal(t, "B Party", m.ColumnMapping[FieldCalledNumber])
}
