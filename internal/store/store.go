// Package store persists canonical CDR records, ingestion sessions and
// geofences in a local DuckDB database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/wethinkt/go-cdrintel/internal/applog"
)

// DefaultBatchSize bounds how many queued write requests one transaction
// absorbs.
const DefaultBatchSize = 64

// ErrNotFound is returned when a session or geofence does not exist.
var ErrNotFound = errors.New("not found")

// errClosed is returned for writes queued after Close.
var errClosed = errors.New("store closed")

const schema = `
CREATE TABLE IF NOT EXISTS cdr_records (
    record_id VARCHAR PRIMARY KEY,
    call_id VARCHAR,
    session_id VARCHAR NOT NULL,
    suspect_name VARCHAR,
    msisdn_a VARCHAR NOT NULL,
    msisdn_b VARCHAR NOT NULL,
    call_start_time TIMESTAMP NOT NULL,
    call_end_time TIMESTAMP,
    duration_seconds DOUBLE,
    call_type VARCHAR,
    direction VARCHAR,
    call_status VARCHAR,
    imei VARCHAR,
    imsi VARCHAR,
    cell_id VARCHAR,
    lac INTEGER,
    mcc INTEGER,
    mnc INTEGER,
    operator VARCHAR,
    circle VARCHAR,
    location_lat DOUBLE,
    location_lon DOUBLE,
    location_description VARCHAR,
    cost DOUBLE,
    data_volume_mb DOUBLE,
    sms_content VARCHAR,
    raw_row_reference VARCHAR
);

CREATE INDEX IF NOT EXISTS idx_cdr_records_session ON cdr_records (session_id);
CREATE INDEX IF NOT EXISTS idx_cdr_records_suspect ON cdr_records (suspect_name);

CREATE TABLE IF NOT EXISTS sessions (
    session_id VARCHAR PRIMARY KEY,
    suspect_name VARCHAR,
    source_file VARCHAR,
    file_hash VARCHAR,
    vendor VARCHAR,
    records_inserted INTEGER DEFAULT 0,
    missing_msisdn INTEGER DEFAULT 0,
    missing_time INTEGER DEFAULT 0,
    other_rejected INTEGER DEFAULT 0,
    ingested_at TIMESTAMP,
    workstation_id VARCHAR
);

CREATE TABLE IF NOT EXISTS geofences (
    id VARCHAR PRIMARY KEY,
    name VARCHAR NOT NULL,
    description VARCHAR,
    geometry VARCHAR NOT NULL,
    suspect_name VARCHAR NOT NULL,
    created_at TIMESTAMP
);
`

// Config tunes the store.
type Config struct {
	BatchSize int
}

// Store is the DuckDB-backed record store. Reads go straight to the
// database; all writes are serialized through a single writer goroutine.
type Store struct {
	db        *sql.DB
	path      string
	startedAt time.Time
	batchSize int

	writeCh chan writeRequest
	wg      sync.WaitGroup
	done    chan struct{}
	closeMu sync.RWMutex
	closed  bool
}

// writeRequest is one unit of work for the writer. fn runs inside a
// transaction and its outcome is reported on done.
type writeRequest struct {
	op   string
	fn   func(ctx context.Context, tx *sql.Tx) error
	done chan error
}

// Open opens (or creates) the database at path and starts the writer.
func Open(path string, cfg Config) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if _, err := db.Exec("SET enable_external_access=false"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set security settings: %w", err)
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	s := &Store{
		db:        db,
		path:      path,
		startedAt: time.Now(),
		batchSize: cfg.BatchSize,
		writeCh:   make(chan writeRequest, cfg.BatchSize*2),
		done:      make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writer()

	applog.Log.Info("Opened record store", "path", path)
	return s, nil
}

// submit queues fn for the writer and waits for its result.
func (s *Store) submit(ctx context.Context, op string, fn func(context.Context, *sql.Tx) error) error {
	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		return errClosed
	}
	req := writeRequest{op: op, fn: fn, done: make(chan error, 1)}
	select {
	case s.writeCh <- req:
		s.closeMu.RUnlock()
	case <-ctx.Done():
		s.closeMu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writer is the single goroutine that applies queued writes. Requests that
// are already waiting are coalesced into one transaction.
func (s *Store) writer() {
	defer s.wg.Done()

	for {
		select {
		case req := <-s.writeCh:
			batch := []writeRequest{req}
		collect:
			for len(batch) < s.batchSize {
				select {
				case next := <-s.writeCh:
					batch = append(batch, next)
				default:
					break collect
				}
			}
			s.flushBatch(batch)

		case <-s.done:
			var batch []writeRequest
			for {
				select {
				case req := <-s.writeCh:
					batch = append(batch, req)
				default:
					if len(batch) > 0 {
						s.flushBatch(batch)
					}
					return
				}
			}
		}
	}
}

// flushBatch applies a batch in one transaction. When the shared
// transaction fails, each request is retried alone so one bad request does
// not fail its neighbours.
func (s *Store) flushBatch(batch []writeRequest) {
	start := time.Now()
	defer func() { flushDurationSeconds.Observe(time.Since(start).Seconds()) }()

	if len(batch) == 1 {
		batch[0].done <- s.apply(batch)
		return
	}
	err := s.apply(batch)
	if err == nil {
		for _, req := range batch {
			req.done <- nil
		}
		applog.Log.Debug("Flushed write batch", "requests", len(batch))
		return
	}
	applog.Log.Warn("Batch transaction failed, retrying requests individually",
		"requests", len(batch), "error", err)
	for _, req := range batch {
		req.done <- s.apply([]writeRequest{req})
	}
}

func (s *Store) apply(batch []writeRequest) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	for _, req := range batch {
		if err := req.fn(ctx, tx); err != nil {
			tx.Rollback()
			writeErrorsTotal.WithLabelValues(req.op).Inc()
			return fmt.Errorf("%s: %w", req.op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Stats contains aggregate store statistics.
type Stats struct {
	TotalRecords  int64     `json:"total_records"`
	TotalSessions int64     `json:"total_sessions"`
	TotalSuspects int64     `json:"total_suspects"`
	DBSizeBytes   int64     `json:"db_size_bytes"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartedAt     time.Time `json:"started_at"`
}

// Stats returns record, session and suspect counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		StartedAt:     s.startedAt,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cdr_records").Scan(&stats.TotalRecords); err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&stats.TotalSessions); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT suspect_name) FROM cdr_records WHERE suspect_name IS NOT NULL AND suspect_name <> ''",
	).Scan(&stats.TotalSuspects); err != nil {
		return nil, fmt.Errorf("count suspects: %w", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.DBSizeBytes = info.Size()
		dbSizeBytes.Set(float64(info.Size()))
	}
	return stats, nil
}

// Close stops the writer after draining queued writes and closes the
// database.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}
