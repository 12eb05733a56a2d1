// Command stockarima fits an ARIMA model to the weekly log-returns of a
// daily closing-price file and prints a two-step forecast.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/sartorproj/stockarima/config"
	"github.com/sartorproj/stockarima/logger"
	"github.com/sartorproj/stockarima/pipeline"
	"github.com/sartorproj/stockarima/recorder"
	"github.com/sartorproj/stockarima/scheduler"
	"github.com/sartorproj/stockarima/source"
	"github.com/sartorproj/stockarima/storage"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "stockarima: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stockarima", flag.ContinueOnError)
	var (
		cfgPath = fs.String("config", os.Getenv("CONFIG_PATH"), "YAML config file (defaults are used when empty)")
		envFile = fs.String("env", ".env", "dotenv file loaded before the config")
		input   = fs.String("input", "", "price file: path, file://, http(s):// or s3://bucket/key")
		steps   = fs.Int("steps", 0, "forecast horizon in weeks")
		order   = fs.String("order", "", "ARIMA order p,d,q")
		auto    = fs.Bool("auto", false, "select the order by information criterion")
		holdout = fs.Int("holdout", -1, "weeks held out to score the model")
		plots   = fs.String("plots", "", "directory for PNG plots")
		jsonOut = fs.String("json", "", "write the result document to this path")
		parquet = fs.String("parquet", "", "write returns and forecast as Parquet to this path")
		upload  = fs.Bool("upload", false, "also upload outputs to storage.s3.bucket")
		serve   = fs.Bool("serve", false, "run on schedule.cron until interrupted")
		history = fs.Int("history", 0, "print the last N recorded runs and exit")
		quiet   = fs.Bool("quiet", false, "do not print the report")
		showVer = fs.Bool("version", false, "print the version and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVer {
		fmt.Fprintln(stdout, version)
		return nil
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	if *input != "" {
		cfg.Input.URI = *input
	}
	if *steps > 0 {
		cfg.Model.Steps = *steps
	}
	if *order != "" {
		cfg.Model.Order = *order
		cfg.Model.Auto = false
	}
	if *auto {
		cfg.Model.Auto = true
	}
	if *holdout >= 0 {
		cfg.Model.Holdout = *holdout
	}
	if *plots != "" {
		cfg.Output.PlotsDir = *plots
	}
	if *jsonOut != "" {
		cfg.Output.JSONPath = *jsonOut
	}
	if *parquet != "" {
		cfg.Output.ParquetPath = *parquet
	}
	if *upload {
		cfg.Output.Upload = true
	}
	if *history > 0 && cfg.Input.URI == "" {
		// history only needs the database section
		cfg.Input.URI = "-"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	log := logger.GetLogger()
	l := cfg.Logging
	if err := log.Configure(l.Level, l.Format, l.Output, l.MaxAge); err != nil {
		return err
	}
	entry := log.WithComponent("main").WithFields(logger.Fields{"version": version})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := recorder.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		entry.WithError(err).Warn("init recorder failed, using noop")
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	if *history > 0 {
		return printHistory(ctx, stdout, rec, *history)
	}

	var s3api storage.ObjectAPI
	if strings.HasPrefix(cfg.Input.URI, "s3://") || cfg.Output.Upload {
		client, err := storage.NewS3Client(ctx, cfg.Storage.S3)
		if err != nil {
			return err
		}
		s3api = client
	}

	deps := pipeline.Deps{
		Loader:   source.New(cfg.Input, s3api),
		Recorder: rec,
		S3:       s3api,
		Log:      log,
		Version:  version,
	}

	once := func(ctx context.Context) error {
		res, err := pipeline.Run(ctx, cfg, deps)
		if err != nil {
			return err
		}
		if *quiet {
			return nil
		}
		return res.Report(stdout)
	}

	if !*serve {
		return once(ctx)
	}

	sched, err := scheduler.NewScheduler(ctx, cfg.Schedule.Cron, once, log)
	if err != nil {
		return err
	}
	sched.Start()
	if os.Getenv("RUN_ON_START") == "true" {
		entry.Info("RUN_ON_START enabled, running now")
		go func() {
			if err := sched.RunNow(); err != nil && !errors.Is(err, scheduler.ErrStopped) {
				entry.WithError(err).Error("startup run failed")
			}
		}()
	}
	entry.WithFields(logger.Fields{"cron": cfg.Schedule.Cron}).Info("serving, press Ctrl+C to stop")

	<-ctx.Done()
	entry.Info("shutdown signal received, stopping")
	sched.Stop()
	return nil
}

func printHistory(ctx context.Context, w io.Writer, rec recorder.Recorder, limit int) error {
	sr, ok := rec.(*recorder.SQLRecorder)
	if !ok {
		return errors.New("history needs database.driver and database.dsn")
	}
	runs, err := sr.Runs(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "started\trun\torder\tn\tadf p\taic\tnext mean")
	for _, r := range runs {
		next := "-"
		if len(r.Forecasts) > 0 {
			next = fmt.Sprintf("%.6f", r.Forecasts[0].Mean)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%.2f\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.RunID, r.Order, r.NObs, r.ADFPValue, r.AIC, next)
	}
	return tw.Flush()
}
