// Package rows loads host records for formula evaluation from files and
// SQL databases.
package rows

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format identifies the encoding of a row file
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// FormatFromPath picks the row format from the file extension, ignoring a
// trailing .gz. compressed reports whether the file is gzip compressed.
func FormatFromPath(path string) (format Format, compressed bool, err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".gz" {
		compressed = true
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(path, filepath.Ext(path))))
	}
	switch ext {
	case ".json":
		return FormatJSON, compressed, nil
	case ".csv":
		return FormatCSV, compressed, nil
	}
	return "", compressed, fmt.Errorf("unsupported row file type: %s", path)
}

// LoadFile reads rows from a .json or .csv file, optionally gzip
// compressed (.json.gz, .csv.gz)
func LoadFile(path string) ([]formula.Row, error) {
	format, compressed, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rows: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("reading gzip %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	rows, err := Read(r, format)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return rows, nil
}

// Read decodes rows in the given format
func Read(r io.Reader, format Format) ([]formula.Row, error) {
	switch format {
	case FormatJSON:
		return readJSON(r)
	case FormatCSV:
		return readCSV(r)
	}
	return nil, fmt.Errorf("unsupported row format: %s", format)
}

// readJSON expects an array of objects
func readJSON(r io.Reader) ([]formula.Row, error) {
	var records []map[string]any
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding json rows: %w", err)
	}
	rows := make([]formula.Row, len(records))
	for i, rec := range records {
		rows[i] = rec
	}
	return rows, nil
}

// readCSV uses the first record as the header. numeric and boolean cells
// are converted, empty cells become nil.
func readCSV(r io.Reader) ([]formula.Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return []formula.Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	rows := []formula.Row{}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv record: %w", err)
		}
		row := make(formula.Row, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = ParseCell(record[i])
			} else {
				row[name] = nil
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseCell converts a text cell to a number, a boolean, nil for blank
// text, or leaves it as text
func ParseCell(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if num, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return num
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

// Write encodes rows in the given format. columns fixes the CSV column
// order; when empty the sorted union of all keys is used.
func Write(w io.Writer, rows []formula.Row, columns []string, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)

	case FormatCSV:
		if len(columns) == 0 {
			columns = Columns(rows)
		}
		cw := csv.NewWriter(w)
		if err := cw.Write(columns); err != nil {
			return err
		}
		for _, row := range rows {
			record := make([]string, len(columns))
			for i, name := range columns {
				record[i] = formula.ValueOf(row[name]).String()
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
	return fmt.Errorf("unsupported row format: %s", format)
}

// Columns returns the sorted union of the keys of all rows
func Columns(rows []formula.Row) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}
