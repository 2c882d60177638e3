package lookup

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const cellSchema = `
CREATE TABLE IF NOT EXISTS cells (
	cell_id     TEXT NOT NULL,
	mcc         INTEGER,
	mnc         INTEGER,
	lac         INTEGER,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	range_m     INTEGER,
	description TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_cells_key
	ON cells(cell_id, IFNULL(mcc, -1), IFNULL(mnc, -1), IFNULL(lac, -1));
CREATE INDEX IF NOT EXISTS idx_cells_plain ON cells(REPLACE(cell_id, '-', ''));
`

// CellDB is a local SQLite catalogue of cell positions.
type CellDB struct {
	db *sql.DB
}

// OpenCellDB opens (creating if needed) the cell catalogue at path.
func OpenCellDB(path string) (*CellDB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open cell db: %w", err)
	}
	if _, err := db.Exec(cellSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cell schema: %w", err)
	}
	return &CellDB{db: db}, nil
}

// Close closes the database.
func (c *CellDB) Close() error {
	return c.db.Close()
}

// Lookup returns the position of cell. A match on cell id with the same
// radio parameters wins over a bare cell id match.
func (c *CellDB) Lookup(ctx context.Context, cell Cell) (Position, bool, error) {
	const q = `
		SELECT latitude, longitude, COALESCE(range_m, 0), COALESCE(description, '')
		  FROM cells
		 WHERE (cell_id = ? OR REPLACE(cell_id, '-', '') = ?)
		 ORDER BY (mcc IS ? AND mnc IS ? AND lac IS ?) DESC
		 LIMIT 1`
	plain := strings.ReplaceAll(cell.ID, "-", "")
	var p Position
	err := c.db.QueryRowContext(ctx, q, cell.ID, plain,
		nullInt(cell.MCC), nullInt(cell.MNC), nullInt(cell.LAC)).
		Scan(&p.Lat, &p.Lon, &p.Range, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, fmt.Errorf("query cell %s: %w", cell.ID, err)
	}
	p.Source = SourceLocal
	return p, true, nil
}

// Put inserts or replaces one cell position.
func (c *CellDB) Put(ctx context.Context, cell Cell, p Position) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cells (cell_id, mcc, mnc, lac, latitude, longitude, range_m, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cell.ID, nullInt(cell.MCC), nullInt(cell.MNC), nullInt(cell.LAC),
		p.Lat, p.Lon, p.Range, p.Description)
	if err != nil {
		return fmt.Errorf("put cell %s: %w", cell.ID, err)
	}
	return nil
}

// ImportCSV loads cell positions from a CSV with a header row. Two header
// layouts are understood: the OpenCelliD export (mcc, net, area, cell,
// lon, lat, range) and a plain layout (cell_id, latitude, longitude with
// optional mcc, mnc, lac, description). Rows with unusable coordinates are
// skipped. Returns the number of rows stored.
func (c *CellDB) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	pick := func(names ...string) int {
		for _, n := range names {
			if i, ok := col[n]; ok {
				return i
			}
		}
		return -1
	}
	iCell := pick("cell_id", "cellid", "cell")
	iLat := pick("latitude", "lat")
	iLon := pick("longitude", "lon", "lng")
	if iCell < 0 || iLat < 0 || iLon < 0 {
		return 0, errors.New("cell csv needs cell id, latitude and longitude columns")
	}
	iMCC, iMNC, iLAC := pick("mcc"), pick("mnc", "net"), pick("lac", "area")
	iRange, iDesc := pick("range", "range_m"), pick("description", "address", "location")

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO cells (cell_id, mcc, mnc, lac, latitude, longitude, range_m, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	field := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	optInt := func(row []string, i int) any {
		if v, err := strconv.Atoi(field(row, i)); err == nil {
			return v
		}
		return nil
	}

	n := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, fmt.Errorf("read row: %w", err)
		}
		id := field(row, iCell)
		lat, latErr := strconv.ParseFloat(field(row, iLat), 64)
		lon, lonErr := strconv.ParseFloat(field(row, iLon), 64)
		if id == "" || latErr != nil || lonErr != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, optInt(row, iMCC), optInt(row, iMNC), optInt(row, iLAC),
			lat, lon, optInt(row, iRange), field(row, iDesc)); err != nil {
			return n, fmt.Errorf("insert cell %s: %w", id, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return n, nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
