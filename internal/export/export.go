// Package export turns ordered result rows into downloadable tabular bytes.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"sitecheck/internal/checker"
)

// utf8BOM makes spreadsheet tools detect the CSV encoding correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// UnionSchema derives the export column set: the job's active columns
// extended with Alt-N columns up to the maximum seen across all rows.
// Individual rows may carry fewer alts than the widest one.
func UnionSchema(opts checker.CheckOptions, rows []checker.Row) []string {
	maxAlts := 0
	for _, row := range rows {
		for key := range row {
			n, ok := altIndex(key)
			if ok && n > maxAlts {
				maxAlts = n
			}
		}
	}
	return checker.ActiveColumns(opts, maxAlts)
}

func altIndex(column string) (int, bool) {
	rest, ok := strings.CutPrefix(column, "Alt-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// RowsToCSV renders the rows in schema order as UTF-8 CSV with a BOM
// prefix. Row keys outside the schema are ignored; missing keys render
// empty.
func RowsToCSV(schema []string, rows []checker.Row) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(schema); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(schema))
	for _, row := range rows {
		for i, col := range schema {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// RowsToXLSX renders the rows as a single-sheet XLSX workbook.
func RowsToXLSX(schema []string, rows []checker.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	const sheet = "Sheet1"
	header := make([]interface{}, len(schema))
	for i, col := range schema {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}

	for i, row := range rows {
		values := make([]interface{}, len(schema))
		for c, col := range schema {
			values[c] = row[col]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("xlsx cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write xlsx row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
