// Package stockarima models the weekly log-returns of a stock's closing price
// with an ARIMA model and forecasts the next weeks.
//
// The analysis follows the usual Box-Jenkins steps: daily closes are sorted
// and averaged into weekly buckets (weeks end on Sunday), turned into log
// returns, checked for stationarity with the Augmented Dickey-Fuller test,
// read through their ACF and PACF, and fitted with ARIMA(3,0,1) by exact
// Gaussian maximum likelihood. The fitted model forecasts two weeks ahead.
//
// # Packages
//
//   - timeseries: dated series, CSV and XLSX loading, calendar resampling
//   - stats: ADF and KPSS tests, ACF, PACF, Ljung-Box
//   - arima: model estimation, forecasting with intervals, result summaries
//   - selection: correlogram-based order suggestion and information-criterion search
//   - pipeline: the end-to-end run, its JSON document and text report
//   - source, storage: reading inputs from disk, HTTP and S3
//   - export, chart: JSON, CSV and Parquet outputs and PNG plots
//   - recorder: run history in SQLite or PostgreSQL
//   - scheduler: periodic runs on a cron schedule
//   - config, logger: YAML configuration and structured logging
//
// # Quick Start
//
//	cfg := config.Default()
//	cfg.Input.URI = "prices.csv"
//	res, err := pipeline.Run(ctx, cfg, pipeline.Deps{Loader: source.New(cfg.Input, nil)})
//	if err != nil {
//		return err
//	}
//	res.Report(os.Stdout)
//
// The stockarima command wraps the same run with flags, outputs and a
// scheduled serve mode.
package stockarima
