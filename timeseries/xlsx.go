package timeseries

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// LoadPriceXLSX reads a workbook sheet with "date" and "close" header columns.
// An empty sheet name selects the first sheet. Dates may be text or Excel serials.
func LoadPriceXLSX(r io.Reader, sheet string) (*Series, error) {
	return LoadXLSXFromReader(r, sheet, DefaultCSVOptions())
}

// LoadXLSXFromReader reads a dated series from a workbook using the column names in opts.
func LoadXLSXFromReader(r io.Reader, sheet string, opts *CSVOptions) (*Series, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoData
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) <= opts.SkipRows+1 {
		return nil, ErrNoData
	}
	rows = rows[opts.SkipRows:]

	dateIdx, valueIdx, err := columnIndices(rows[0], opts.DateColumn, opts.ValueColumn)
	if err != nil {
		return nil, err
	}

	var (
		values     []float64
		timestamps []time.Time
	)
	for i, record := range rows[1:] {
		row := i + 1
		if valueIdx >= len(record) || dateIdx >= len(record) {
			continue
		}
		valStr := cleanCell(record[valueIdx])
		if isMissing(valStr) {
			continue
		}
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid value %q", row, valStr)
		}

		ts, err := parseCellDate(cleanCell(record[dateIdx]), opts.DateFormat)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		values = append(values, val)
		timestamps = append(timestamps, ts)
	}

	if len(values) == 0 {
		return nil, ErrNoData
	}
	return &Series{Timestamps: timestamps, Values: values, Name: opts.ValueColumn}, nil
}

func parseCellDate(s, preferred string) (time.Time, error) {
	if t, err := ParseDate(s, preferred); err == nil {
		return t, nil
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q", s)
	}
	return excelize.ExcelDateToTime(serial, false)
}
