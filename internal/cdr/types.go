// Package cdr defines the canonical call-detail-record model shared by the
// ingestion pipeline, the record store and the analytics engine.
package cdr

import (
	"strings"
	"time"
)

// CallType classifies the communication channel of a record.
type CallType string

const (
	CallVoice CallType = "voice"
	CallSMS   CallType = "sms"
	CallData  CallType = "data"
)

// Direction is the direction of a record relative to the subject.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Status is the completion status of a call.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusMissed    Status = "missed"
	StatusBusy      Status = "busy"
)

// Record is one canonical communication event.
//
// The legacy and canonical party fields (CallingNumber/MSISDNA,
// CalledNumber/MSISDNB) and cell fields (CellTowerID/CellID) always carry
// the same value once a record has been built.
type Record struct {
	RecordID    string `json:"record_id"`
	CallID      string `json:"call_id"`
	SessionID   string `json:"session_id"`
	SuspectName string `json:"suspect_name,omitempty"`

	CallingNumber string `json:"calling_number"`
	CalledNumber  string `json:"called_number"`
	MSISDNA       string `json:"msisdn_a"`
	MSISDNB       string `json:"msisdn_b"`

	CallStartTime   time.Time  `json:"call_start_time"`
	CallEndTime     *time.Time `json:"call_end_time,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	CallDurationSec *float64   `json:"call_duration_sec,omitempty"`

	CallType   CallType  `json:"call_type"`
	Direction  Direction `json:"direction"`
	CallStatus Status    `json:"call_status"`

	IMEI        string `json:"imei,omitempty"`
	IMSI        string `json:"imsi,omitempty"`
	CellTowerID string `json:"cell_tower_id,omitempty"`
	CellID      string `json:"cell_id,omitempty"`
	LAC         *int   `json:"lac,omitempty"`
	MCC         *int   `json:"mcc,omitempty"`
	MNC         *int   `json:"mnc,omitempty"`
	Operator    string `json:"operator,omitempty"`
	Circle      string `json:"circle,omitempty"`

	LocationLat         *float64 `json:"location_lat,omitempty"`
	LocationLon         *float64 `json:"location_lon,omitempty"`
	LocationDescription string   `json:"location_description,omitempty"`

	Cost         *float64 `json:"cost,omitempty"`
	DataVolumeMB *float64 `json:"data_volume_mb,omitempty"`
	SMSContent   string   `json:"sms_content,omitempty"`

	RawRowReference string `json:"raw_row_reference,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (r *Record) HasCoordinates() bool {
	return r.LocationLat != nil && r.LocationLon != nil
}

// Location returns the cell identifier of the record, preferring the
// canonical field.
func (r *Record) Location() string {
	if r.CellID != "" {
		return r.CellID
	}
	return r.CellTowerID
}

// Counterpart returns the other party of the record relative to subject.
func (r *Record) Counterpart(subject string) string {
	if r.MSISDNA == subject {
		return r.MSISDNB
	}
	return r.MSISDNA
}

// Mirror copies values between legacy and canonical field pairs so both
// names always agree. Canonical fields win when both are set.
func (r *Record) Mirror() {
	r.MSISDNA = firstNonEmpty(r.MSISDNA, r.CallingNumber)
	r.CallingNumber = r.MSISDNA
	r.MSISDNB = firstNonEmpty(r.MSISDNB, r.CalledNumber)
	r.CalledNumber = r.MSISDNB
	r.CellID = firstNonEmpty(r.CellID, r.CellTowerID)
	r.CellTowerID = r.CellID
	if r.DurationSeconds == nil && r.CallDurationSec != nil {
		v := *r.CallDurationSec
		r.DurationSeconds = &v
	}
	if r.DurationSeconds != nil {
		v := *r.DurationSeconds
		r.CallDurationSec = &v
	}
}

// ApplyDefaults fills unset enum fields with their defaults.
func (r *Record) ApplyDefaults() {
	if r.CallType == "" {
		r.CallType = CallVoice
	}
	if r.Direction == "" {
		r.Direction = DirectionOutgoing
	}
	if r.CallStatus == "" {
		r.CallStatus = StatusCompleted
	}
}

// ParseCallType maps a stored or user-supplied value to a CallType.
func ParseCallType(s string) (CallType, bool) {
	switch CallType(strings.ToLower(strings.TrimSpace(s))) {
	case CallVoice:
		return CallVoice, true
	case CallSMS:
		return CallSMS, true
	case CallData:
		return CallData, true
	}
	return "", false
}

// ParseDirection maps a stored or user-supplied value to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionIncoming:
		return DirectionIncoming, true
	case DirectionOutgoing:
		return DirectionOutgoing, true
	}
	return "", false
}

// ParseStatus maps a stored or user-supplied value to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	case StatusMissed:
		return StatusMissed, true
	case StatusBusy:
		return StatusBusy, true
	}
	return "", false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
