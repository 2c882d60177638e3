package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

const recordColumns = `record_id, call_id, session_id, suspect_name, msisdn_a, msisdn_b,
	call_start_time, call_end_time, duration_seconds, call_type, direction, call_status,
	imei, imsi, cell_id, lac, mcc, mnc, operator, circle,
	location_lat, location_lon, location_description, cost, data_volume_mb, sms_content,
	raw_row_reference`

// InsertRecords writes records in one transaction. Records whose
// record_id already exists are ignored.
func (s *Store) InsertRecords(ctx context.Context, records []cdr.Record) error {
	if len(records) == 0 {
		return nil
	}
	err := s.submit(ctx, "insert records", func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO cdr_records (`+recordColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			r.Mirror()
			_, err := stmt.ExecContext(ctx,
				r.RecordID, r.CallID, r.SessionID, r.SuspectName, r.MSISDNA, r.MSISDNB,
				r.CallStartTime.UTC(), nullTime(r.CallEndTime), nullFloat(r.DurationSeconds),
				string(r.CallType), string(r.Direction), string(r.CallStatus),
				r.IMEI, r.IMSI, r.CellID, nullInt(r.LAC), nullInt(r.MCC), nullInt(r.MNC),
				r.Operator, r.Circle,
				nullFloat(r.LocationLat), nullFloat(r.LocationLon), r.LocationDescription,
				nullFloat(r.Cost), nullFloat(r.DataVolumeMB), r.SMSContent,
				r.RawRowReference)
			if err != nil {
				return fmt.Errorf("insert record %s: %w", r.RecordID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	recordsWrittenTotal.Add(float64(len(records)))
	return nil
}

// Records returns the records selected by scope in chronological order,
// together with the scope that was actually applied. A session id wins over
// a suspect name; an empty scope selects the session of the most recent
// record. An empty store yields no records and no error.
func (s *Store) Records(ctx context.Context, scope cdr.Scope) ([]cdr.Record, cdr.Scope, error) {
	var (
		where string
		arg   string
	)
	switch {
	case scope.SessionID != "":
		where, arg = "session_id = ?", scope.SessionID
		scope.SuspectName = ""
	case scope.SuspectName != "":
		where, arg = "suspect_name = ?", scope.SuspectName
	default:
		latest, err := s.latestSessionID(ctx)
		if err != nil {
			return nil, scope, err
		}
		if latest == "" {
			return nil, scope, nil
		}
		scope.SessionID = latest
		where, arg = "session_id = ?", latest
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM cdr_records WHERE "+where+" ORDER BY call_start_time, record_id", arg)
	if err != nil {
		return nil, scope, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []cdr.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, scope, err
		}
		out = append(out, r)
	}
	return out, scope, rows.Err()
}

func (s *Store) latestSessionID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT session_id FROM cdr_records ORDER BY call_start_time DESC, record_id DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve latest session: %w", err)
	}
	return id, nil
}

func scanRecord(rows *sql.Rows) (cdr.Record, error) {
	var (
		r                                   cdr.Record
		suspect, imei, imsi, cell           sql.NullString
		operator, circle, locDesc, sms, raw sql.NullString
		callType, direction, status, callID sql.NullString
		end                                 sql.NullTime
		duration, lat, lon, cost, volume    sql.NullFloat64
		lac, mcc, mnc                       sql.NullInt64
	)
	err := rows.Scan(&r.RecordID, &callID, &r.SessionID, &suspect, &r.MSISDNA, &r.MSISDNB,
		&r.CallStartTime, &end, &duration, &callType, &direction, &status,
		&imei, &imsi, &cell, &lac, &mcc, &mnc, &operator, &circle,
		&lat, &lon, &locDesc, &cost, &volume, &sms, &raw)
	if err != nil {
		return r, fmt.Errorf("scan record: %w", err)
	}

	r.CallID = callID.String
	r.SuspectName = suspect.String
	r.CallStartTime = r.CallStartTime.UTC()
	if end.Valid {
		t := end.Time.UTC()
		r.CallEndTime = &t
	}
	r.DurationSeconds = floatPtr(duration)
	r.CallType = cdr.CallType(callType.String)
	r.Direction = cdr.Direction(direction.String)
	r.CallStatus = cdr.Status(status.String)
	r.IMEI = imei.String
	r.IMSI = imsi.String
	r.CellID = cell.String
	r.LAC, r.MCC, r.MNC = intPtr(lac), intPtr(mcc), intPtr(mnc)
	r.Operator = operator.String
	r.Circle = circle.String
	r.LocationLat, r.LocationLon = floatPtr(lat), floatPtr(lon)
	r.LocationDescription = locDesc.String
	r.Cost, r.DataVolumeMB = floatPtr(cost), floatPtr(volume)
	r.SMSContent = sms.String
	r.RawRowReference = raw.String

	r.Mirror()
	r.ApplyDefaults()
	return r, nil
}

// MissingCell identifies a cell whose records in a session lack
// coordinates.
type MissingCell struct {
	CellID string
	LAC    *int
	MCC    *int
	MNC    *int
}

// CellsMissingCoordinates lists the distinct cell keys of a session that
// have records without coordinates. A key is the cell id together with its
// LAC, MCC and MNC, so the same id in two areas is listed twice.
func (s *Store) CellsMissingCoordinates(ctx context.Context, sessionID string) ([]MissingCell, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cell_id, lac, mcc, mnc
		FROM cdr_records
		WHERE session_id = ? AND cell_id IS NOT NULL AND cell_id <> ''
			AND (location_lat IS NULL OR location_lon IS NULL)
		GROUP BY cell_id, lac, mcc, mnc
		ORDER BY cell_id, lac, mcc, mnc
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query missing cells: %w", err)
	}
	defer rows.Close()

	var cells []MissingCell
	for rows.Next() {
		var (
			c             MissingCell
			lac, mcc, mnc sql.NullInt64
		)
		if err := rows.Scan(&c.CellID, &lac, &mcc, &mnc); err != nil {
			return nil, fmt.Errorf("scan missing cell: %w", err)
		}
		c.LAC, c.MCC, c.MNC = intPtr(lac), intPtr(mcc), intPtr(mnc)
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

const missingCellMatch = `session_id = ? AND cell_id = ?
	AND lac IS NOT DISTINCT FROM ? AND mcc IS NOT DISTINCT FROM ? AND mnc IS NOT DISTINCT FROM ?
	AND (location_lat IS NULL OR location_lon IS NULL)`

// BackfillCoordinates sets the coordinates of every unlocated record in the
// session on cell and returns those records as updated.
func (s *Store) BackfillCoordinates(ctx context.Context, sessionID string, cell MissingCell, lat, lon float64, description string) ([]cdr.Record, error) {
	key := []any{sessionID, cell.CellID, nullInt(cell.LAC), nullInt(cell.MCC), nullInt(cell.MNC)}
	var updated []cdr.Record
	err := s.submit(ctx, "backfill coordinates", func(ctx context.Context, tx *sql.Tx) error {
		updated = nil
		rows, err := tx.QueryContext(ctx,
			"SELECT "+recordColumns+" FROM cdr_records WHERE "+missingCellMatch+" ORDER BY call_start_time, record_id", key...)
		if err != nil {
			return err
		}
		for rows.Next() {
			r, err := scanRecord(rows)
			if err != nil {
				rows.Close()
				return err
			}
			updated = append(updated, r)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if len(updated) == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE cdr_records
			SET location_lat = ?, location_lon = ?,
				location_description = CASE WHEN location_description IS NULL OR location_description = ''
					THEN ? ELSE location_description END
			WHERE `+missingCellMatch, append([]any{lat, lon, description}, key...)...)
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range updated {
		la, lo := lat, lon
		updated[i].LocationLat, updated[i].LocationLon = &la, &lo
		if updated[i].LocationDescription == "" {
			updated[i].LocationDescription = description
		}
	}
	return updated, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return int64(*i)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
