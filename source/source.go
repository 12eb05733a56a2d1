package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/sartorproj/stockarima/config"
	"github.com/sartorproj/stockarima/storage"
	"github.com/sartorproj/stockarima/timeseries"
)

// ErrNoS3 is returned when an s3:// input is opened without an S3 client.
var ErrNoS3 = errors.New("s3 input requested but no s3 client is configured")

// Opener resolves input URIs to readers.
type Opener struct {
	HTTP *HTTPClient
	S3   storage.ObjectAPI
}

// New returns an Opener with an HTTP client built from the input section.
// s3api may be nil when no s3:// inputs are used.
func New(cfg config.InputConfig, s3api storage.ObjectAPI) *Opener {
	return &Opener{
		HTTP: NewHTTPClient(HTTPOptions{
			Timeout:           cfg.HTTP.Timeout,
			RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
			BurstSize:         cfg.HTTP.BurstSize,
			MaxElapsed:        cfg.HTTP.MaxElapsed,
		}),
		S3: s3api,
	}
}

// Open returns a reader for uri: a local path, file://, s3://bucket/key or http(s)://.
func (o *Opener) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	switch scheme(uri) {
	case "s3":
		if o.S3 == nil {
			return nil, ErrNoS3
		}
		bucket, key, err := storage.ParseURI(uri)
		if err != nil {
			return nil, err
		}
		return storage.Download(ctx, o.S3, bucket, key)
	case "http", "https":
		if o.HTTP == nil {
			o.HTTP = NewHTTPClient(HTTPOptions{})
		}
		return o.HTTP.Get(ctx, uri)
	case "file":
		u, err := url.Parse(uri)
		if err != nil {
			return nil, err
		}
		// file://data.csv puts the first path element in the host
		p := u.Path
		if u.Host != "" && u.Host != "localhost" {
			p = u.Host + u.Path
		}
		if p == "" {
			return nil, fmt.Errorf("no path in %q", uri)
		}
		return os.Open(p)
	case "":
		return os.Open(uri)
	default:
		return nil, fmt.Errorf("unsupported input scheme in %q", uri)
	}
}

// Load opens uri and parses a dated price series from it.
// format is "csv" or "xlsx"; empty detects it from the URI.
func (o *Opener) Load(ctx context.Context, uri, format, sheet string, opts *timeseries.CSVOptions) (*timeseries.Series, error) {
	if format == "" {
		format = Format(uri)
	}

	rc, err := o.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	switch format {
	case "xlsx":
		// excelize needs the whole workbook in memory anyway.
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", uri, err)
		}
		return timeseries.LoadXLSXFromReader(bytes.NewReader(data), sheet, opts)
	default:
		return timeseries.LoadCSVFromReader(rc, opts)
	}
}

// Format returns "xlsx" for .xlsx/.xlsm paths and "csv" otherwise.
func Format(uri string) string {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	default:
		return "csv"
	}
}

func scheme(uri string) string {
	i := strings.Index(uri, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(uri[:i])
}
