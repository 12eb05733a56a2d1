package timeseries

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNoData is returned when an input yields no usable observations.
var ErrNoData = errors.New("no valid data found")

// CSVOptions holds options for CSV loading.
type CSVOptions struct {
	DateColumn  string // Column name for dates (default: "date")
	ValueColumn string // Column name for values (default: "close")
	DateFormat  string // Preferred date layout, tried before the built-in layouts
	HasHeader   bool   // Whether CSV has header row (default: true)
	Delimiter   rune   // Field delimiter (default: ',')
	SkipRows    int    // Number of rows to skip at start
}

// DefaultCSVOptions returns options for a price file with date and close columns.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		DateColumn:  "date",
		ValueColumn: "close",
		DateFormat:  "2006-01-02",
		HasHeader:   true,
		Delimiter:   ',',
	}
}

// dateLayouts are tried in order after CSVOptions.DateFormat.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
}

// ParseDate parses s with the preferred layout, then the built-in layouts.
func ParseDate(s, preferred string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if preferred != "" {
		if t, err := time.Parse(preferred, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// isMissing reports whether a cell is one of the usual NA markers.
func isMissing(s string) bool {
	switch s {
	case "", "NA", "N/A", "NaN", "nan", "null", "NULL", "-":
		return true
	}
	return false
}

func cleanCell(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\""))
}

// LoadCSV loads a time series from a CSV file.
func LoadCSV(filename string, opts *CSVOptions) (*Series, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadCSVFromReader(file, opts)
}

// LoadCSVFromReader loads a dated series from an io.Reader.
// Rows with a missing value are skipped. A date that cannot be parsed or a
// non-numeric value is an error: the row number is reported.
func LoadCSVFromReader(r io.Reader, opts *CSVOptions) (*Series, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}
	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}

	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	for i := 0; i < opts.SkipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, err
		}
	}

	dateIdx, valueIdx := 0, 1
	if opts.HasHeader {
		header, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, ErrNoData
			}
			return nil, err
		}
		dateIdx, valueIdx, err = columnIndices(header, opts.DateColumn, opts.ValueColumn)
		if err != nil {
			return nil, err
		}
	}

	var (
		values     []float64
		timestamps []time.Time
	)
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row++

		if valueIdx >= len(record) || dateIdx >= len(record) {
			return nil, fmt.Errorf("row %d: expected at least %d fields, got %d", row, max(valueIdx, dateIdx)+1, len(record))
		}

		valStr := cleanCell(record[valueIdx])
		if isMissing(valStr) {
			continue
		}
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid value %q", row, valStr)
		}

		ts, err := ParseDate(cleanCell(record[dateIdx]), opts.DateFormat)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		values = append(values, val)
		timestamps = append(timestamps, ts)
	}

	if len(values) == 0 {
		return nil, ErrNoData
	}

	return &Series{
		Timestamps: timestamps,
		Values:     values,
		Name:       opts.ValueColumn,
	}, nil
}

// LoadPriceCSV reads a CSV with "date" and "close" columns.
func LoadPriceCSV(r io.Reader) (*Series, error) {
	return LoadCSVFromReader(r, DefaultCSVOptions())
}

// columnIndices locates the date and value columns, matching names case-insensitively.
func columnIndices(header []string, dateCol, valueCol string) (dateIdx, valueIdx int, err error) {
	if dateCol == "" {
		dateCol = "date"
	}
	if valueCol == "" {
		valueCol = "close"
	}
	dateIdx, valueIdx = -1, -1
	for i, h := range header {
		h = cleanCell(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(h, valueCol):
			valueIdx = i
		case strings.EqualFold(h, dateCol):
			dateIdx = i
		}
	}
	if dateIdx == -1 {
		return 0, 0, fmt.Errorf("date column %q not found in header", dateCol)
	}
	if valueIdx == -1 {
		return 0, 0, fmt.Errorf("value column %q not found in header", valueCol)
	}
	return dateIdx, valueIdx, nil
}

// SaveCSV writes the series as "ds,y" rows. Undated series use a 1-based index.
func SaveCSV(series *Series, w io.Writer) error {
	bw := bufio.NewWriter(w)
	dated := series.HasTimestamps()

	if dated {
		bw.WriteString("ds,y\n")
	} else {
		bw.WriteString("index,y\n")
	}

	for i, v := range series.Values {
		if dated {
			bw.WriteString(series.Timestamps[i].Format("2006-01-02"))
		} else {
			bw.WriteString(strconv.Itoa(i + 1))
		}
		bw.WriteString(",")
		bw.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		bw.WriteString("\n")
	}

	return bw.Flush()
}

// SaveCSVFile writes the series to filename.
func SaveCSVFile(series *Series, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := SaveCSV(series, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
