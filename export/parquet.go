package export

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/sartorproj/stockarima/arima"
	"github.com/sartorproj/stockarima/timeseries"
)

// Row kinds written to the parquet file.
const (
	KindObserved = "observed"
	KindForecast = "forecast"
)

type parquetRow struct {
	RunID string   `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Date  int64    `parquet:"name=date, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Kind  string   `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Step  int32    `parquet:"name=step, type=INT32"`
	Value float64  `parquet:"name=value, type=DOUBLE"`
	Lower *float64 `parquet:"name=lower, type=DOUBLE, repetitiontype=OPTIONAL"`
	Upper *float64 `parquet:"name=upper, type=DOUBLE, repetitiontype=OPTIONAL"`
}

type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

// Parquet encodes the observed series followed by the forecast rows.
// Observed rows have step 0 and no bounds.
func Parquet(runID string, observed *timeseries.Series, fc *arima.Forecast, compression string) ([]byte, error) {
	var rows []parquetRow
	for i, v := range observed.Values {
		var ms int64
		if observed.HasTimestamps() {
			ms = observed.Timestamps[i].UnixMilli()
		}
		rows = append(rows, parquetRow{RunID: runID, Date: ms, Kind: KindObserved, Value: v})
	}
	if fc != nil {
		for i, mean := range fc.Mean {
			row := parquetRow{
				RunID: runID,
				Kind:  KindForecast,
				Step:  int32(i + 1),
				Value: mean,
				Lower: finite(fc.Lower[i]),
				Upper: finite(fc.Upper[i]),
			}
			if i < len(fc.Timestamps) {
				row.Date = fc.Timestamps[i].UnixMilli()
			}
			rows = append(rows, row)
		}
	}

	mem := newMemFile()
	pw, err := writer.NewParquetWriter(mem, new(parquetRow), 1)
	if err != nil {
		return nil, fmt.Errorf("new parquet writer: %w", err)
	}

	switch strings.ToLower(compression) {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	case "zstd":
		pw.CompressionType = parquet.CompressionCodec_ZSTD
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, rec := range rows {
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}

	return mem.Bytes(), nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
