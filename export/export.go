package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/sartorproj/stockarima/storage"
	"github.com/sartorproj/stockarima/timeseries"
)

// JSON encodes v as indented JSON.
func JSON(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return append(data, '\n'), nil
}

// CSV encodes a series as "ds,y" rows.
func CSV(series *timeseries.Series) ([]byte, error) {
	var buf bytes.Buffer
	if err := timeseries.SaveCSV(series, &buf); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Writer stores artifacts on disk and, when S3 is set, uploads them under
// Prefix/<run id>/<file name>.
type Writer struct {
	S3      storage.ObjectAPI
	Bucket  string
	Prefix  string
	RunID   string
	Version string
}

// Write writes data to localPath (skipped when empty) and uploads it.
// It returns the S3 key, or "" when nothing was uploaded.
func (w *Writer) Write(ctx context.Context, localPath string, data []byte, contentType string) (string, error) {
	if localPath != "" {
		if dir := filepath.Dir(localPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(localPath, data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", localPath, err)
		}
	}
	if w == nil || w.S3 == nil || localPath == "" {
		return "", nil
	}

	key := w.Key(filepath.Base(localPath))
	meta := map[string]string{"run-id": w.RunID}
	if w.Version != "" {
		meta["stockarima-version"] = w.Version
	}
	if err := storage.Upload(ctx, w.S3, w.Bucket, key, data, contentType, meta); err != nil {
		return "", err
	}
	return key, nil
}

// Key returns the object key for a file of this run.
func (w *Writer) Key(name string) string {
	return path.Join(w.Prefix, w.RunID, name)
}

// ContentType returns the MIME type used for an artifact file name.
func ContentType(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
