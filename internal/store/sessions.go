package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

// DefaultSessionLimit caps ListSessions when no limit is given.
const DefaultSessionLimit = 50

// SessionFilter selects sessions for listing.
type SessionFilter struct {
	SuspectName string
	Limit       int
	Offset      int
}

// RecordSession writes (or replaces) the audit entry of an ingestion batch.
func (s *Store) RecordSession(ctx context.Context, sess cdr.Session) error {
	return s.submit(ctx, "record session", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (session_id, suspect_name, source_file, file_hash, vendor,
				records_inserted, missing_msisdn, missing_time, other_rejected, ingested_at, workstation_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (session_id) DO UPDATE SET
				records_inserted = sessions.records_inserted + EXCLUDED.records_inserted,
				missing_msisdn = sessions.missing_msisdn + EXCLUDED.missing_msisdn,
				missing_time = sessions.missing_time + EXCLUDED.missing_time,
				other_rejected = sessions.other_rejected + EXCLUDED.other_rejected,
				ingested_at = EXCLUDED.ingested_at
		`, sess.ID, sess.SuspectName, sess.SourceFile, sess.FileHash, sess.Vendor,
			sess.RecordsInserted, sess.Validation.MissingMSISDN, sess.Validation.MissingTime,
			sess.Validation.Other, sess.IngestedAt.UTC(), sess.Workstation)
		return err
	})
}

const sessionColumns = `session_id, suspect_name, source_file, file_hash, vendor,
	records_inserted, missing_msisdn, missing_time, other_rejected, ingested_at, workstation_id`

// ListSessions returns ingestion sessions, most recent first.
func (s *Store) ListSessions(ctx context.Context, filter SessionFilter) ([]cdr.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions"
	var args []any
	if filter.SuspectName != "" {
		query += " WHERE suspect_name = ?"
		args = append(args, filter.SuspectName)
	}
	query += " ORDER BY ingested_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultSessionLimit
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []cdr.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// GetSession returns one session or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*cdr.Session, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE session_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query session: %w", err)
		}
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	sess, err := scanSession(rows)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func scanSession(rows *sql.Rows) (cdr.Session, error) {
	var (
		sess                                       cdr.Session
		suspect, source, hash, vendor, workstation sql.NullString
		ingested                                   sql.NullTime
	)
	err := rows.Scan(&sess.ID, &suspect, &source, &hash, &vendor, &sess.RecordsInserted,
		&sess.Validation.MissingMSISDN, &sess.Validation.MissingTime, &sess.Validation.Other, &ingested, &workstation)
	if err != nil {
		return sess, fmt.Errorf("scan session: %w", err)
	}
	sess.SuspectName = suspect.String
	sess.SourceFile = source.String
	sess.FileHash = hash.String
	sess.Vendor = vendor.String
	sess.Workstation = workstation.String
	if ingested.Valid {
		sess.IngestedAt = ingested.Time.UTC()
	}
	return sess, nil
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
