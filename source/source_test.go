package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"

	"github.com/sartorproj/stockarima/config"
	"github.com/sartorproj/stockarima/timeseries"
)

const pricesCSV = "date,close\n2021-01-04,10\n2021-01-05,12\n2021-01-11,20\n"

func fastClient() *HTTPClient {
	return &HTTPClient{
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		Limiter:    rate.NewLimiter(rate.Inf, 1),
		NewBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
		},
	}
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, errors.New("read only")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "csv", Format("prices.csv"))
	assert.Equal(t, "xlsx", Format("s3://bucket/history/AAPL.XLSX"))
	assert.Equal(t, "xlsx", Format("https://example.com/a.xlsx?token=1"))
	assert.Equal(t, "csv", Format("https://example.com/download"))
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(pricesCSV), 0o644))

	o := &Opener{}
	for _, uri := range []string{path, "file://" + path} {
		rc, err := o.Open(context.Background(), uri)
		require.NoError(t, err, uri)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, pricesCSV, string(data))
	}

	_, err := o.Open(context.Background(), "ftp://host/prices.csv")
	assert.Error(t, err)
}

func TestOpenRelativeFileURI(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "prices.csv"), []byte(pricesCSV), 0o644))
	t.Chdir(dir)

	o := &Opener{}
	for _, uri := range []string{"file://data/prices.csv", "file://localhost" + filepath.Join(dir, "data", "prices.csv")} {
		rc, err := o.Open(context.Background(), uri)
		require.NoError(t, err, uri)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, pricesCSV, string(data), uri)
	}

	_, err := o.Open(context.Background(), "file://")
	assert.ErrorContains(t, err, "no path")
}

func TestOpenS3(t *testing.T) {
	o := &Opener{S3: &fakeS3{objects: map[string]string{"market-data/AAPL.csv": pricesCSV}}}

	series, err := o.Load(context.Background(), "s3://market-data/AAPL.csv", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, series.Len())

	_, err = (&Opener{}).Open(context.Background(), "s3://market-data/AAPL.csv")
	assert.ErrorIs(t, err, ErrNoS3)
}

func TestHTTPRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, pricesCSV)
	}))
	defer srv.Close()

	o := &Opener{HTTP: fastClient()}
	series, err := o.Load(context.Background(), srv.URL+"/prices.csv", "", "", timeseries.DefaultCSVOptions())
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12, 20}, series.Values)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fastClient().Get(context.Background(), srv.URL)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := fastClient().Get(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{{"Date", "Close"}, {"2021-01-04", 10.0}, {"2021-01-05", 12.0}}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	o := &Opener{HTTP: fastClient()}
	series, err := o.Load(context.Background(), srv.URL+"/history.xlsx", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12}, series.Values)
}

func TestNew(t *testing.T) {
	o := New(config.Default().Input, nil)
	require.NotNil(t, o.HTTP)
	assert.Equal(t, rate.Limit(2), o.HTTP.Limiter.Limit())
	assert.Equal(t, 30*time.Second, o.HTTP.HTTPClient.Timeout)
}
