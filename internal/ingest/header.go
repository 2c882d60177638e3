package ingest

import (
	"strings"
	"unicode"
)

// headerScanRows is how many leading rows are considered as header candidates.
const headerScanRows = 20

// minHeaderNames is the minimum number of valid column names a header row
// must carry.
const minHeaderNames = 3

var headerKeywords = []string{
	"number", "time", "date", "duration", "call", "msisdn",
	"imei", "imsi", "cell", "tower", "location",
}

var footerKeywords = []string{"total", "page", "summary", "disclaimer", "note:"}

// LocateHeader returns the index of the row that most likely holds the
// column names. Rows are scored by their count of valid names plus a bonus
// for names that look like CDR fields. It returns 0 when no row qualifies.
func LocateHeader(rows [][]string) int {
	best, bestScore := 0, 0
	for i, row := range rows {
		if i >= headerScanRows {
			break
		}
		if nonEmptyCells(row) < minHeaderNames {
			continue
		}

		valid, score := 0, 0
		for _, cell := range row {
			name := strings.TrimSpace(cell)
			if name == "" || isPlaceholder(name) {
				continue
			}
			valid++
			score++
			if hasKeywordStem(name) {
				score += 2
			}
		}
		if valid < minHeaderNames {
			continue
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// DataRow is a data row together with its 1-based row number in the
// source file.
type DataRow struct {
	Num   int
	Cells []string
}

// TrimTable splits rows into the header at headerIdx and the data rows below
// it. Blank rows are skipped anywhere. Footer rows are only recognised in
// the trailing block after the last data row, so a record whose SMS text
// mentions a "total" is still built and counted. It returns the number of
// rows skipped below the header.
func TrimTable(rows [][]string, headerIdx int) (header []string, data []DataRow, discarded int) {
	if headerIdx < 0 || headerIdx >= len(rows) {
		return nil, nil, 0
	}
	header = make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		header[i] = strings.TrimSpace(h)
	}

	end := len(rows)
	for end > headerIdx+1 && (nonEmptyCells(rows[end-1]) == 0 || isFooterRow(rows[end-1])) {
		end--
		discarded++
	}

	for i := headerIdx + 1; i < end; i++ {
		if nonEmptyCells(rows[i]) == 0 {
			discarded++
			continue
		}
		data = append(data, DataRow{Num: i + 1, Cells: rows[i]})
	}
	return header, data, discarded
}

func nonEmptyCells(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

// isPlaceholder reports names produced by spreadsheet tools for unnamed
// columns, and separator-only cells.
func isPlaceholder(name string) bool {
	if strings.HasPrefix(strings.ToLower(name), "unnamed") {
		return true
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func hasKeywordStem(name string) bool {
	for _, tok := range tokens(normalizeName(name)) {
		for _, kw := range headerKeywords {
			if strings.HasPrefix(tok, kw) {
				return true
			}
		}
	}
	return false
}

// isFooterRow reports rows such as "Total records: 120" or "Page 3 of 4":
// the first non-empty cell starts with a footer keyword.
func isFooterRow(row []string) bool {
	for _, cell := range row {
		lower := strings.ToLower(strings.TrimSpace(cell))
		if lower == "" {
			continue
		}
		for _, kw := range footerKeywords {
			if strings.HasPrefix(lower, kw) {
				return true
			}
		}
		return false
	}
	return false
}
