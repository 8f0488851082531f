package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/geoclimate-etl/internal/domain"
)

// columnOrder is the per-region output order: the source variables in
// canonical order with the derived TAVG appended.
var columnOrder = append(append([]domain.Variable(nil), domain.Variables...), domain.VarTAVG)

// Columns returns the ordered output column set for the rows: for each region
// (sorted by name), one column per variable plus TAVG. The set is exactly the
// union of pairs observed across the rows.
func Columns(rows []RegionDayRow) []string {
	present := make(map[string]bool)
	for _, row := range rows {
		for col := range row.Cells {
			present[col] = true
		}
	}

	var cols []string
	for _, region := range Regions(rows) {
		for _, v := range columnOrder {
			if col := ColumnName(region, v); present[col] {
				cols = append(cols, col)
			}
		}
	}
	return cols
}

// WriteCSV renders the rows as CSV: a DATE index column followed by the
// {Region}_{Variable} columns, dates ascending. Missing cells are written as
// empty fields, never as zero.
func WriteCSV(w io.Writer, rows []RegionDayRow) error {
	cols := Columns(rows)

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"DATE"}, cols...)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(cols)+1)
	for _, row := range rows {
		record[0] = row.Date
		for i, col := range cols {
			cell, ok := row.Cells[col]
			if ok && cell.Present {
				record[i+1] = strconv.FormatFloat(cell.Value, 'g', -1, 64)
			} else {
				record[i+1] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", row.Date, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the rows to path, creating parent directories.
func WriteCSVFile(path string, rows []RegionDayRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
