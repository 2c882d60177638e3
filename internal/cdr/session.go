package cdr

import "time"

// ValidationStats counts rejected rows by reason. Together with the
// inserted count they account for every data row of an input file.
type ValidationStats struct {
	MissingMSISDN int `json:"missing_msisdn"`
	MissingTime   int `json:"missing_time"`
	Other         int `json:"other"`
}

// Rejected returns the total number of rejected rows.
func (v ValidationStats) Rejected() int {
	return v.MissingMSISDN + v.MissingTime + v.Other
}

// Session is the audit entry written for every ingestion batch.
type Session struct {
	ID              string          `json:"session_id"`
	SuspectName     string          `json:"suspect_name,omitempty"`
	SourceFile      string          `json:"source_file"`
	FileHash        string          `json:"file_hash"`
	Vendor          string          `json:"vendor"`
	RecordsInserted int             `json:"records_inserted"`
	Validation      ValidationStats `json:"validation"`
	IngestedAt      time.Time       `json:"ingested_at"`
	Workstation     string          `json:"workstation_id,omitempty"`
}

// Scope selects the record set an analyzer works on. SessionID takes
// precedence over SuspectName; when both are empty the most recently
// active session is used.
type Scope struct {
	SessionID   string `json:"session_id,omitempty"`
	SuspectName string `json:"suspect_name,omitempty"`
}

// IsZero reports whether no explicit selector was given.
func (s Scope) IsZero() bool {
	return s.SessionID == "" && s.SuspectName == ""
}
