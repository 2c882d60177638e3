package ingest

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// Outcome is the result class of building one row.
type Outcome int

const (
	Accepted Outcome = iota
	SkipMissingMSISDN
	SkipMissingTime
	SkipOther
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case SkipMissingMSISDN:
		return "missing_msisdn"
	case SkipMissingTime:
		return "missing_time"
	default:
		return "other"
	}
}

// RowResult describes what happened to one input row.
type RowResult struct {
	Outcome Outcome
	Err     error
}

// Count adds the result to the validation counters.
func (r RowResult) Count(stats *cdr.ValidationStats) {
	switch r.Outcome {
	case SkipMissingMSISDN:
		stats.MissingMSISDN++
	case SkipMissingTime:
		stats.MissingTime++
	case SkipOther:
		stats.Other++
	}
}

var (
	errMissingMSISDN = errors.New("calling or called number is empty")
	errMissingTime   = errors.New("call start time is missing or unparseable")
)

// BuildOptions carries the per-batch values stamped onto every record.
type BuildOptions struct {
	SessionID     string
	SuspectName   string
	SourceName    string
	SubjectNumber string
}

// Builder turns raw rows into canonical records using a column map.
type Builder struct {
	opts    BuildOptions
	columns map[string][]int // canonical field -> column indexes, in priority order
	newID   func() string
}

// NewBuilder prepares a builder for rows laid out as header. Unclaimed
// columns whose name equals a generic alias become fallbacks for their
// field, read when the mapped column is empty.
func NewBuilder(header []string, m VendorColumnMap, opts BuildOptions) *Builder {
	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	columns := make(map[string][]int)
	claimed := make(map[int]bool)
	for field, col := range m.ColumnMapping {
		if i, ok := index[col]; ok {
			columns[field] = []int{i}
			claimed[i] = true
		}
	}

	for i, h := range header {
		if claimed[i] {
			continue
		}
		if field, ok := exactAliasField(h); ok {
			columns[field] = append(columns[field], i)
			claimed[i] = true
		}
	}

	return &Builder{opts: opts, columns: columns, newID: uuid.NewString}
}

// SetSubjectNumber sets the number used to infer direction for rows without
// a usable direction cell.
func (b *Builder) SetSubjectNumber(n string) {
	b.opts.SubjectNumber = n
}

// Mapped reports whether field has a source column.
func (b *Builder) Mapped(field string) bool {
	_, ok := b.columns[field]
	return ok
}

func (b *Builder) value(row []string, field string) string {
	for _, i := range b.columns[field] {
		if i >= len(row) {
			continue
		}
		if v := CleanValue(row[i]); v != "" {
			return v
		}
	}
	return ""
}

// Build converts one row. rowNum is the 1-based row number in the source
// file and is kept as the record's provenance reference. A panic while
// processing the row is recovered and reported as SkipOther.
func (b *Builder) Build(row []string, rowNum int) (rec cdr.Record, res RowResult) {
	defer func() {
		if p := recover(); p != nil {
			rec = cdr.Record{}
			res = RowResult{Outcome: SkipOther, Err: fmt.Errorf("row %d: %v", rowNum, p)}
		}
	}()

	rawCalling := b.value(row, FieldCallingNumber)
	rawCalled := b.value(row, FieldCalledNumber)
	if isSeparatorOnly(rawCalling) || isSeparatorOnly(rawCalled) {
		return cdr.Record{}, RowResult{Outcome: SkipMissingMSISDN, Err: errMissingMSISDN}
	}
	calling := NormalizePhone(rawCalling)
	called := NormalizePhone(rawCalled)
	if calling == "" || called == "" {
		return cdr.Record{}, RowResult{Outcome: SkipMissingMSISDN, Err: errMissingMSISDN}
	}

	start, ok := b.startTime(row)
	if !ok {
		return cdr.Record{}, RowResult{Outcome: SkipMissingTime, Err: errMissingTime}
	}

	rec = cdr.Record{
		RecordID:            b.newID(),
		SessionID:           b.opts.SessionID,
		SuspectName:         b.opts.SuspectName,
		CallingNumber:       calling,
		CalledNumber:        called,
		CallStartTime:       start,
		CallType:            cdr.CallVoice,
		IMEI:                NormalizeIdentifier(b.value(row, FieldIMEI)),
		IMSI:                NormalizeIdentifier(b.value(row, FieldIMSI)),
		CellTowerID:         NormalizeIdentifier(b.value(row, FieldCellTowerID)),
		LAC:                 ParseInt(b.value(row, FieldLAC)),
		MCC:                 ParseInt(b.value(row, FieldMCC)),
		MNC:                 ParseInt(b.value(row, FieldMNC)),
		Operator:            b.value(row, FieldOperator),
		Circle:              b.value(row, FieldCircle),
		LocationLat:         boundedFloat(b.value(row, FieldLocationLat), 90),
		LocationLon:         boundedFloat(b.value(row, FieldLocationLon), 180),
		LocationDescription: b.value(row, FieldLocationDescription),
		Cost:                ParseFloat(b.value(row, FieldCost)),
		DataVolumeMB:        ParseFloat(b.value(row, FieldDataVolume)),
		SMSContent:          b.value(row, FieldSMSContent),
		CallStatus:          InferStatus(b.value(row, FieldCallStatus)),
	}
	if b.opts.SourceName != "" {
		rec.RawRowReference = fmt.Sprintf("%s#row=%d", b.opts.SourceName, rowNum)
	} else {
		rec.RawRowReference = fmt.Sprintf("row=%d", rowNum)
	}

	if v := b.value(row, FieldRawRowReference); v != "" {
		rec.RawRowReference = v
	}
	if rec.SuspectName == "" {
		rec.SuspectName = b.value(row, FieldSuspectName)
	}

	if end, ok := b.endTime(row, start); ok {
		rec.CallEndTime = &end
	}

	rec.DurationSeconds = ParseDurationSeconds(b.value(row, FieldDuration))
	if rec.DurationSeconds == nil && rec.CallEndTime != nil {
		if d := rec.CallEndTime.Sub(start).Seconds(); d >= 0 {
			rec.DurationSeconds = &d
		}
	}

	if v := b.value(row, FieldCallType); v != "" {
		rec.CallType = InferCallType(v)
	}
	rec.Direction = InferDirection(b.value(row, FieldDirection), calling, b.opts.SubjectNumber)

	rec.CallID = b.value(row, FieldCallID)
	if rec.CallID == "" {
		rec.CallID = fmt.Sprintf("%s_%d", calling, start.Unix())
	}

	rec.Mirror()
	rec.ApplyDefaults()
	return rec, RowResult{Outcome: Accepted}
}

// startTime resolves the start timestamp, combining a bare clock value or an
// absent value with the separate date column when there is one.
func (b *Builder) startTime(row []string) (time.Time, bool) {
	raw := b.value(row, FieldCallStartTime)
	date := b.value(row, FieldCallDate)

	if raw == "" || IsBareClock(raw) {
		if date == "" {
			return time.Time{}, false
		}
		return CombineDateTime(date, raw)
	}
	if t, ok := ParseTimestamp(raw); ok {
		return t, true
	}
	if date != "" {
		return CombineDateTime(date, raw)
	}
	return time.Time{}, false
}

// endTime parses the end timestamp. A bare clock value is placed on the
// start date, rolling over to the next day when it precedes the start.
func (b *Builder) endTime(row []string, start time.Time) (time.Time, bool) {
	raw := b.value(row, FieldCallEndTime)
	if raw == "" {
		return time.Time{}, false
	}
	if IsBareClock(raw) {
		end, ok := CombineDateTime(start.Format("2006-01-02"), raw)
		if !ok {
			return time.Time{}, false
		}
		if end.Before(start) {
			end = end.Add(24 * time.Hour)
		}
		return end, true
	}
	return ParseTimestamp(raw)
}

func boundedFloat(v string, limit float64) *float64 {
	f := ParseFloat(v)
	if f == nil || math.Abs(*f) > limit {
		return nil
	}
	return f
}

// DetectSubjectNumber returns the party number that occurs most often in
// the calling and called columns. Ties go to the number seen first, which
// makes the first row's calling number the answer for evenly spread files.
func DetectSubjectNumber(rows []DataRow, b *Builder) string {
	counts := make(map[string]int)
	var order []string
	see := func(n string) {
		if n == "" {
			return
		}
		if _, ok := counts[n]; !ok {
			order = append(order, n)
		}
		counts[n]++
	}
	for _, row := range rows {
		see(NormalizePhone(b.value(row.Cells, FieldCallingNumber)))
		see(NormalizePhone(b.value(row.Cells, FieldCalledNumber)))
	}

	best, bestCount := "", 0
	for _, n := range order {
		if counts[n] > bestCount {
			best, bestCount = n, counts[n]
		}
	}
	return best
}

// jsonFieldAliases maps keys of canonical JSON records onto mapper fields.
var jsonFieldAliases = map[string]string{
	"msisdn_a":          FieldCallingNumber,
	"msisdn_b":          FieldCalledNumber,
	"cell_id":           FieldCellTowerID,
	"call_duration_sec": FieldDuration,
}

// jsonColumnMap builds a column map for a set of JSON record keys. Keys that
// are canonical field names map to themselves; legacy pair names are used
// only when the canonical key is absent.
func jsonColumnMap(keys []string) VendorColumnMap {
	known := make(map[string]bool)
	for _, vt := range vendorTables[:1] {
		for _, fa := range vt.fields {
			known[fa.field] = true
		}
	}
	known[FieldRawRowReference] = true
	known[FieldSuspectName] = true

	mapping := make(map[string]string)
	for _, k := range keys {
		if known[k] {
			mapping[k] = k
		}
	}
	for _, k := range keys {
		if field, ok := jsonFieldAliases[k]; ok {
			if _, mapped := mapping[field]; !mapped {
				mapping[field] = k
			}
		}
	}
	return VendorColumnMap{Vendor: "json", Type: "json_import", ColumnMapping: mapping}
}

// normalizeKey lowercases a JSON key.
func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
