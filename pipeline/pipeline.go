package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sartorproj/stockarima/arima"
	"github.com/sartorproj/stockarima/config"
	"github.com/sartorproj/stockarima/logger"
	"github.com/sartorproj/stockarima/recorder"
	"github.com/sartorproj/stockarima/selection"
	"github.com/sartorproj/stockarima/stats"
	"github.com/sartorproj/stockarima/storage"
	"github.com/sartorproj/stockarima/timeseries"
)

// ErrTooFewWeeks is returned when resampling leaves too little data to model.
var ErrTooFewWeeks = errors.New("not enough weekly observations")

// Loader reads a dated price series. *source.Opener implements it.
type Loader interface {
	Load(ctx context.Context, uri, format, sheet string, opts *timeseries.CSVOptions) (*timeseries.Series, error)
}

// Deps are the collaborators of a run. Only Loader is required.
type Deps struct {
	Loader   Loader
	Recorder recorder.Recorder
	S3       storage.ObjectAPI // used for output.upload
	Log      *logger.Log
	Version  string
	Now      func() time.Time
}

// Holdout compares forecasts of a model fitted without the last weeks to
// the observed values of those weeks.
type Holdout struct {
	Weeks     int
	Actual    []float64
	Predicted []float64
	RMSE      float64
	MAE       float64
	MAPE      float64
}

// Result carries everything a run computed.
type Result struct {
	RunID     string
	Input     string
	StartedAt time.Time
	Duration  time.Duration

	Prices  *timeseries.Series // sorted input
	Weekly  *timeseries.Series
	Returns *timeseries.Series

	ADF  *stats.ADFResult
	KPSS *stats.KPSSResult
	ACF  *stats.ACFResult
	PACF *stats.PACFResult

	Suggested *selection.Suggestion
	Search    *selection.Result
	Order     arima.Order
	Model     *arima.Model
	Summary   *arima.Summary
	Forecast  *arima.Forecast
	// ImpliedClose is the weekly close implied by the cumulative forecast returns.
	ImpliedClose []float64
	Holdout      *Holdout

	Timings   []Timing
	Artifacts []string
}

// Timing is the wall time of one step.
type Timing struct {
	Step     string
	Duration time.Duration
}

type run struct {
	cfg  *config.Config
	deps Deps
	log  *logger.Entry
	res  *Result
}

// Run loads the input, resamples it to weekly means, models the weekly
// log-returns and writes the configured outputs.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*Result, error) {
	if deps.Loader == nil {
		return nil, errors.New("pipeline: no loader")
	}
	if deps.Log == nil {
		deps.Log = logger.GetLogger()
	}
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := &run{
		cfg:  cfg,
		deps: deps,
		res: &Result{
			RunID:     uuid.NewString(),
			Input:     cfg.Input.URI,
			StartedAt: deps.Now(),
		},
	}
	r.log = deps.Log.WithComponent("pipeline").WithFields(logger.Fields{"run_id": r.res.RunID})
	r.log.WithFields(logger.Fields{"input": cfg.Input.URI}).Info("run started")

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"load", r.load},
		{"resample", r.resample},
		{"returns", r.returns},
		{"adf", r.stationarity},
		{"acf", r.correlograms},
		{"order", r.order},
		{"holdout", r.holdout},
		{"fit", r.fit},
		{"forecast", r.forecast},
		{"outputs", r.outputs},
		{"record", r.record},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		start := time.Now()
		if err := s.fn(ctx); err != nil {
			r.log.WithError(err).WithFields(logger.Fields{"step": s.name}).Error("run failed")
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		elapsed := time.Since(start)
		r.res.Timings = append(r.res.Timings, Timing{Step: s.name, Duration: elapsed})
		logger.LogPerformanceEntry(r.log, "pipeline", s.name, elapsed, nil)
	}

	r.res.Duration = deps.Now().Sub(r.res.StartedAt)
	r.log.WithFields(logger.Fields{
		"order":       r.res.Order.String(),
		"duration_ms": r.res.Duration.Milliseconds(),
	}).Info("run finished")
	return r.res, nil
}

func (r *run) load(ctx context.Context) error {
	series, err := r.deps.Loader.Load(ctx, r.cfg.Input.URI, r.cfg.Input.Format, r.cfg.Input.Sheet, r.cfg.CSVOptions())
	if err != nil {
		return err
	}
	if !series.HasTimestamps() {
		return timeseries.ErrNoTimestamps
	}
	r.res.Prices = series.Sort()
	logger.LogDataFlowEntry(r.log, r.cfg.Input.URI, "pipeline", series.Len(), "daily_close")
	return nil
}

func (r *run) resample(context.Context) error {
	rule, err := r.cfg.ResampleRule()
	if err != nil {
		return err
	}
	agg, err := timeseries.ParseAggregation(r.cfg.Resample.Aggregation)
	if err != nil {
		return err
	}
	weekly, err := r.res.Prices.Resample(rule, agg)
	if err != nil {
		return err
	}
	if weekly.Len() < 2 {
		return fmt.Errorf("%w: %d weeks", ErrTooFewWeeks, weekly.Len())
	}
	r.res.Weekly = weekly
	empty := weekly.Len() - weekly.DropNaN().Len()
	if empty > 0 {
		r.log.WithFields(logger.Fields{"empty_weeks": empty}).Warn("weeks without data, adjacent returns are dropped")
	}
	r.log.WithFields(logger.Fields{
		"rows":  weekly.Len(),
		"first": weekly.Timestamps[0].Format("2006-01-02"),
		"last":  weekly.Timestamps[weekly.Len()-1].Format("2006-01-02"),
	}).Debug("resampled")
	return nil
}

func (r *run) returns(context.Context) error {
	returns := r.res.Weekly.LogReturns().DropNaN()
	if returns.Len() < 10 {
		return fmt.Errorf("%w: %d log-returns", ErrTooFewWeeks, returns.Len())
	}
	returns.Name = "log_return"
	r.res.Returns = returns
	return nil
}

func (r *run) stationarity(context.Context) error {
	a := r.cfg.Analysis
	adf, err := stats.ADF(r.res.Returns, &stats.ADFOptions{
		Regression: a.ADFRegression,
		MaxLag:     a.ADFMaxLag,
		Autolag:    a.ADFAutolag,
	})
	if err != nil {
		return err
	}
	r.res.ADF = adf
	r.res.KPSS = stats.KPSS(r.res.Returns, "c", 0)

	fields := logger.Fields{
		"adf_statistic": adf.Statistic,
		"adf_pvalue":    adf.PValue,
		"adf_lags":      adf.Lags,
	}
	if !adf.IsStationary {
		r.log.WithFields(fields).Warn("log-returns look non-stationary")
	} else {
		r.log.WithFields(fields).Info("stationarity")
	}
	return nil
}

func (r *run) correlograms(context.Context) error {
	a := r.cfg.Analysis
	lags := a.ACFLags
	if lags <= 0 {
		lags = stats.DefaultLags(r.res.Returns.Len())
	}
	r.res.ACF = stats.ACFWithConfidence(r.res.Returns, lags, a.Alpha)
	r.res.PACF = stats.PACFWithConfidence(r.res.Returns, lags, a.Alpha)
	if r.res.ACF == nil || r.res.PACF == nil {
		return errors.New("returns have zero variance")
	}

	s, err := selection.Suggest(r.res.Returns, lags, r.cfg.Model.MaxP, r.cfg.Model.MaxQ, a.Alpha)
	if err != nil {
		return err
	}
	r.res.Suggested = s
	r.log.WithFields(logger.Fields{
		"lags":      lags,
		"pacf_lags": s.PACFLags,
		"acf_lags":  s.ACFLags,
		"p":         s.P,
		"q":         s.Q,
	}).Info("correlograms")
	return nil
}

func (r *run) order(context.Context) error {
	m := r.cfg.Model
	if !m.Auto {
		order, err := arima.ParseOrder(m.Order)
		if err != nil {
			return err
		}
		r.res.Order = order
		return nil
	}

	sc := selection.DefaultConfig()
	sc.MaxP, sc.MaxQ = m.MaxP, m.MaxQ
	sc.Criterion = m.Criterion
	sc.Stepwise = m.Stepwise
	sc.Method = m.Method
	sc.OnCandidate = func(c selection.Candidate) {
		entry := r.log.WithFields(logger.Fields{"order": c.Order.String(), "criterion": c.Criterion})
		if c.Err != nil {
			entry.WithError(c.Err).Debug("candidate failed")
			return
		}
		entry.Debug("candidate")
	}

	found, err := selection.Search(r.res.Returns, sc)
	if err != nil {
		return err
	}
	r.res.Search = found
	r.res.Order = found.Order
	r.log.WithFields(logger.Fields{
		"order":            found.Order.String(),
		"models_evaluated": found.ModelsEvaluated,
	}).Info("order selected")
	return nil
}

func (r *run) newModel() *arima.Model {
	o := r.res.Order
	return arima.New(o.P, o.D, o.Q,
		arima.WithMethod(r.cfg.Model.Method),
		arima.WithMaxIter(r.cfg.Model.MaxIter),
	)
}

func (r *run) holdout(context.Context) error {
	weeks := r.cfg.Model.Holdout
	if weeks <= 0 {
		return nil
	}
	n := r.res.Returns.Len()
	if weeks >= n-10 {
		return fmt.Errorf("holdout of %d weeks leaves too few of %d observations", weeks, n)
	}

	train := r.res.Returns.Slice(0, n-weeks)
	test := r.res.Returns.Slice(n-weeks, n)
	model := r.newModel()
	if err := model.Fit(train); err != nil {
		return err
	}
	predicted, err := model.Predict(weeks)
	if err != nil {
		return err
	}

	h := &Holdout{Weeks: weeks, Actual: test.Values, Predicted: predicted}
	h.RMSE, h.MAE, h.MAPE = metrics(test.Values, predicted)
	r.res.Holdout = h
	r.log.WithFields(logger.Fields{"weeks": weeks, "rmse": h.RMSE, "mae": h.MAE}).Info("holdout")
	return nil
}

func (r *run) fit(context.Context) error {
	model := r.newModel()
	if err := model.Fit(r.res.Returns); err != nil {
		return err
	}
	r.res.Model = model
	r.res.Summary = model.Summary()
	if !model.Converged() {
		r.log.WithFields(logger.Fields{"order": r.res.Order.String()}).Warn("optimizer did not converge")
	}
	r.log.WithFields(logger.Fields{
		"order":  r.res.Order.String(),
		"aic":    model.AIC,
		"bic":    model.BIC,
		"sigma2": model.Variance,
	}).Info("model fitted")
	return nil
}

func (r *run) forecast(context.Context) error {
	fc, err := r.res.Model.Forecast(r.cfg.Model.Steps, r.cfg.Model.Alpha)
	if err != nil {
		return err
	}
	r.res.Forecast = fc

	last := r.res.Weekly.Values[r.res.Weekly.Len()-1]
	implied := make([]float64, len(fc.Mean))
	cum := 0.0
	for i, v := range fc.Mean {
		cum += v
		implied[i] = last * math.Exp(cum)
	}
	r.res.ImpliedClose = implied
	return nil
}

func (r *run) record(ctx context.Context) error {
	res := r.res
	rec := &recorder.RunRecord{
		RunID:        res.RunID,
		StartedAt:    res.StartedAt,
		Duration:     r.deps.Now().Sub(res.StartedAt),
		Input:        res.Input,
		NObs:         res.Returns.Len(),
		Order:        res.Order.String(),
		Method:       res.Model.Method,
		ADFStatistic: res.ADF.Statistic,
		ADFPValue:    res.ADF.PValue,
		ADFLags:      res.ADF.Lags,
		AIC:          res.Model.AIC,
		BIC:          res.Model.BIC,
		LogLik:       res.Model.LogLik,
		Sigma2:       res.Model.Variance,
	}
	for i, mean := range res.Forecast.Mean {
		p := recorder.ForecastPoint{
			Step:  i + 1,
			Mean:  mean,
			Lower: res.Forecast.Lower[i],
			Upper: res.Forecast.Upper[i],
		}
		if i < len(res.Forecast.Timestamps) {
			p.Date = res.Forecast.Timestamps[i]
		}
		rec.Forecasts = append(rec.Forecasts, p)
	}
	return r.deps.Recorder.RecordRun(ctx, rec)
}

// metrics calculates forecast accuracy metrics
func metrics(actual, predicted []float64) (rmse, mae, mape float64) {
	n := min(len(actual), len(predicted))
	if n == 0 {
		return
	}
	nonzero := 0
	for i := 0; i < n; i++ {
		d := actual[i] - predicted[i]
		rmse += d * d
		mae += math.Abs(d)
		if actual[i] != 0 {
			mape += math.Abs(d) / math.Abs(actual[i]) * 100
			nonzero++
		}
	}
	if nonzero > 0 {
		mape /= float64(nonzero)
	} else {
		mape = math.NaN()
	}
	return math.Sqrt(rmse / float64(n)), mae / float64(n), mape
}
