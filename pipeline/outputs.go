package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"

	"github.com/sartorproj/stockarima/chart"
	"github.com/sartorproj/stockarima/export"
	"github.com/sartorproj/stockarima/logger"
)

func (r *run) writer() *export.Writer {
	w := &export.Writer{RunID: r.res.RunID, Version: r.deps.Version}
	if r.cfg.Output.Upload && r.deps.S3 != nil {
		w.S3 = r.deps.S3
		w.Bucket = r.cfg.Storage.S3.Bucket
		w.Prefix = r.cfg.Output.S3Prefix
	}
	return w
}

func (r *run) outputs(ctx context.Context) error {
	out := r.cfg.Output
	if out.Upload && r.deps.S3 == nil {
		return fmt.Errorf("output.upload is set but no s3 client is configured")
	}
	w := r.writer()

	save := func(path string, data []byte) error {
		key, err := w.Write(ctx, path, data, export.ContentType(path))
		if err != nil {
			return err
		}
		r.res.Artifacts = append(r.res.Artifacts, path)
		fields := logger.Fields{"path": path, "bytes": len(data)}
		if key != "" {
			fields["s3_key"] = key
		}
		r.log.WithFields(fields).Info("artifact written")
		return nil
	}

	if out.JSONPath != "" {
		r.res.Duration = r.deps.Now().Sub(r.res.StartedAt)
		data, err := export.JSON(r.res.Document())
		if err != nil {
			return err
		}
		if err := save(out.JSONPath, data); err != nil {
			return err
		}
	}
	if out.ParquetPath != "" {
		data, err := export.Parquet(r.res.RunID, r.res.Returns, r.res.Forecast, out.Compression)
		if err != nil {
			return err
		}
		if err := save(out.ParquetPath, data); err != nil {
			return err
		}
	}
	if out.CSVPath != "" {
		data, err := export.CSV(r.res.Weekly)
		if err != nil {
			return err
		}
		if err := save(out.CSVPath, data); err != nil {
			return err
		}
	}
	if out.PlotsDir != "" {
		plots, err := r.plots()
		if err != nil {
			return fmt.Errorf("plot: %w", err)
		}
		for _, np := range plots {
			data, err := chart.PNG(np.plot)
			if err != nil {
				return fmt.Errorf("render %s: %w", np.name, err)
			}
			if err := save(filepath.Join(out.PlotsDir, np.name), data); err != nil {
				return err
			}
		}
	}
	return nil
}

type namedPlot struct {
	name string
	plot *plot.Plot
}

func (r *run) plots() ([]namedPlot, error) {
	res := r.res
	var out []namedPlot
	add := func(name string, p *plot.Plot, err error) error {
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, namedPlot{name: name, plot: p})
		return nil
	}

	p, err := chart.Line("Weekly mean close", res.Weekly.Name, res.Weekly)
	if err := add("weekly_close.png", p, err); err != nil {
		return nil, err
	}
	p, err = chart.Line("Weekly log-returns", "log return", res.Returns)
	if err := add("log_returns.png", p, err); err != nil {
		return nil, err
	}
	p, err = chart.Correlogram("Autocorrelation", res.ACF.Values, res.ACF.Bounds)
	if err := add("acf.png", p, err); err != nil {
		return nil, err
	}
	p, err = chart.Correlogram("Partial autocorrelation", res.PACF.Values, res.PACF.Bounds)
	if err := add("pacf.png", p, err); err != nil {
		return nil, err
	}
	if len(res.Forecast.Timestamps) > 0 {
		p, err = chart.Forecast(fmt.Sprintf("ARIMA%s forecast", res.Order), res.Returns, res.Forecast, 52)
		if err := add("forecast.png", p, err); err != nil {
			return nil, err
		}
	}
	return out, nil
}
