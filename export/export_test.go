package export

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/stockarima/arima"
	"github.com/sartorproj/stockarima/timeseries"
)

type putRecorder struct {
	keys  []string
	types []string
	meta  []map[string]string
}

func (p *putRecorder) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, io.EOF
}

func (p *putRecorder) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	p.keys = append(p.keys, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	p.types = append(p.types, aws.ToString(in.ContentType))
	p.meta = append(p.meta, in.Metadata)
	return &s3.PutObjectOutput{}, nil
}

func weekly() *timeseries.Series {
	start := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	ts := make([]time.Time, 4)
	for i := range ts {
		ts[i] = start.AddDate(0, 0, 7*i)
	}
	s, _ := timeseries.NewWithTimestamps(ts, []float64{0.01, -0.02, 0.015, 0.003})
	return s
}

func TestParquet(t *testing.T) {
	fc := &arima.Forecast{
		Steps:      2,
		Timestamps: []time.Time{time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC)},
		Mean:       []float64{0.001, 0.002},
		Lower:      []float64{-0.04, math.NaN()},
		Upper:      []float64{0.042, 0.05},
	}

	for _, compression := range []string{"", "snappy", "gzip"} {
		data, err := Parquet("run-1", weekly(), fc, compression)
		require.NoError(t, err, compression)
		require.Greater(t, len(data), 8)
		assert.Equal(t, "PAR1", string(data[:4]))
		assert.Equal(t, "PAR1", string(data[len(data)-4:]))
	}

	data, err := Parquet("run-1", weekly(), nil, "snappy")
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(data[:4]))
}

func TestCSVAndJSON(t *testing.T) {
	data, err := CSV(weekly())
	require.NoError(t, err)
	assert.Contains(t, string(data), "ds,y\n2024-01-07,0.01\n")

	out, err := JSON(map[string]interface{}{"order": "(3,0,1)", "steps": 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"order":"(3,0,1)","steps":2}`, string(out))
}

func TestWriterLocalOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.json")
	var w *Writer

	key, err := w.Write(context.Background(), path, []byte("{}"), "application/json")
	require.NoError(t, err)
	assert.Empty(t, key)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestWriterUploads(t *testing.T) {
	api := &putRecorder{}
	w := &Writer{S3: api, Bucket: "runs", Prefix: "stockarima/AAPL", RunID: "abc", Version: "dev"}
	path := filepath.Join(t.TempDir(), "returns.parquet")

	key, err := w.Write(context.Background(), path, []byte("PAR1"), ContentType(path))
	require.NoError(t, err)
	assert.Equal(t, "stockarima/AAPL/abc/returns.parquet", key)
	require.Len(t, api.keys, 1)
	assert.Equal(t, "runs/stockarima/AAPL/abc/returns.parquet", api.keys[0])
	assert.Equal(t, "application/octet-stream", api.types[0])
	assert.Equal(t, "abc", api.meta[0]["run-id"])
	assert.Equal(t, "dev", api.meta[0]["stockarima-version"])
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", ContentType("a.json"))
	assert.Equal(t, "text/csv", ContentType("weekly.csv"))
	assert.Equal(t, "image/png", ContentType("acf.png"))
}
