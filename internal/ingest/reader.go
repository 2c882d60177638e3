package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sentinel errors for file-level failures.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidJSONRoot   = errors.New("invalid JSON structure: expected a record object, an object with a records array, or an array of records")
	ErrNoHeader          = errors.New("no header row found")
)

// Format is the detected container format of an input file.
type Format string

const (
	FormatDelimited   Format = "delimited"
	FormatSpreadsheet Format = "spreadsheet"
	FormatJSON        Format = "json"
)

// DetectFormat maps a file name to its input format.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt":
		return FormatDelimited, nil
	case ".xlsx", ".xlsm":
		return FormatSpreadsheet, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Supported reports whether name is an ingestible file, including
// gzip-compressed variants such as "cdr.csv.gz".
func Supported(name string) bool {
	if strings.EqualFold(filepath.Ext(name), ".gz") {
		name = name[:len(name)-len(".gz")]
	}
	_, err := DetectFormat(name)
	return err == nil
}

// ReadDelimited reads all rows of a delimited text file. The delimiter is
// sniffed from the first lines; malformed lines are skipped.
func ReadDelimited(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	peek, _ := br.Peek(8192)

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(peek)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("read delimited: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// sniffDelimiter picks the candidate delimiter that occurs most often in
// the sample, defaulting to a comma.
func sniffDelimiter(sample []byte) rune {
	lines := bytes.SplitN(sample, []byte("\n"), 10)
	best, bestCount := ',', 0
	for _, d := range []rune{',', '\t', ';', '|'} {
		n := 0
		for _, l := range lines {
			n += bytes.Count(l, []byte(string(d)))
		}
		if n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// ReadSpreadsheet returns the rows of the first non-empty worksheet as
// displayed, except that cells styled as dates or times are rendered as
// ISO timestamps. The display form of a date depends on the workbook's
// locale ("1/5/24 10:30") and is not reliably parseable.
func ReadSpreadsheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		dates := dateStyles{f: f, known: map[int]bool{}}
		for i := range rows {
			if i >= len(raw) {
				break
			}
			for j := range rows[i] {
				if j >= len(raw[i]) || raw[i][j] == rows[i][j] {
					continue
				}
				if v, ok := dates.render(sheet, i, j, raw[i][j]); ok {
					rows[i][j] = v
				}
			}
		}
		return rows, nil
	}
	return nil, nil
}

// dateStyles renders date-styled numeric cells, remembering which style
// ids carry a date or time number format.
type dateStyles struct {
	f     *excelize.File
	known map[int]bool
}

func (d dateStyles) render(sheet string, row, col int, raw string) (string, bool) {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil || serial < 0 {
		return "", false
	}
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return "", false
	}
	id, err := d.f.GetCellStyle(sheet, cell)
	if err != nil {
		return "", false
	}
	isDate, seen := d.known[id]
	if !seen {
		style, err := d.f.GetStyle(id)
		isDate = err == nil && isDateFormat(style)
		d.known[id] = isDate
	}
	if !isDate {
		return "", false
	}

	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	t = t.Round(time.Second)
	switch {
	case serial < 1:
		return t.Format("15:04:05"), true
	case serial == math.Trunc(serial):
		return t.Format("2006-01-02"), true
	default:
		return t.Format("2006-01-02 15:04:05"), true
	}
}

// isDateFormat reports built-in date and time formats (ids 14-22 and 45-47)
// and custom formats using date or time placeholders outside of literals.
func isDateFormat(s *excelize.Style) bool {
	if s == nil {
		return false
	}
	if (s.NumFmt >= 14 && s.NumFmt <= 22) || (s.NumFmt >= 45 && s.NumFmt <= 47) {
		return true
	}
	if s.CustomNumFmt == nil {
		return false
	}
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(*s.CustomNumFmt) {
		switch {
		case r == '"':
			quoted = !quoted
		case r == '[' && !quoted:
			bracket = true
		case r == ']' && !quoted:
			bracket = false
		case !quoted && !bracket:
			b.WriteRune(r)
		}
	}
	return strings.ContainsAny(b.String(), "ydhs")
}

// JSONDocument is the decoded content of a JSON input file.
type JSONDocument struct {
	SuspectName string
	Records     []map[string]any
}

// ReadJSON decodes a single record object, an object with a "records"
// array (optionally carrying "suspect_name"), or a bare array of records.
func ReadJSON(r io.Reader) (*JSONDocument, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	doc := &JSONDocument{}
	switch v := root.(type) {
	case map[string]any:
		if raw, ok := v["records"]; ok {
			list, ok := raw.([]any)
			if !ok {
				return nil, ErrInvalidJSONRoot
			}
			doc.Records = objects(list)
			if s, ok := v["suspect_name"].(string); ok {
				doc.SuspectName = s
			}
		} else if isRecordObject(v) {
			doc.Records = []map[string]any{v}
		} else {
			return nil, ErrInvalidJSONRoot
		}
	case []any:
		doc.Records = objects(v)
	default:
		return nil, ErrInvalidJSONRoot
	}
	return doc, nil
}

// recordKeys mark a JSON object as a single record rather than an
// unrelated document. Canonical exports use the msisdn_a spelling.
var recordKeys = []string{"calling_number", "call_id", "msisdn_a", "call_start_time"}

func isRecordObject(v map[string]any) bool {
	for _, k := range recordKeys {
		if _, ok := v[k]; ok {
			return true
		}
	}
	return false
}

// objects keeps the object elements of list. Non-object elements become
// empty records so they are counted as rejected rows rather than vanishing.
func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		} else {
			out = append(out, map[string]any{})
		}
	}
	return out
}

// jsonTable flattens JSON records into a header and string rows so they go
// through the same builder as tabular input.
func jsonTable(records []map[string]any) (header []string, rows [][]string) {
	seen := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			nk := normalizeKey(k)
			if !seen[nk] {
				seen[nk] = true
				header = append(header, nk)
			}
		}
	}
	sort.Strings(header)

	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	for _, rec := range records {
		row := make([]string, len(header))
		for k, v := range rec {
			row[pos[normalizeKey(k)]] = jsonScalar(v)
		}
		rows = append(rows, row)
	}
	return header, rows
}

func jsonScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
