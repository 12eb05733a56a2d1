package recorder

import (
	"context"
	"time"
)

// ForecastPoint is one forecast step of a run.
type ForecastPoint struct {
	Step  int
	Date  time.Time
	Mean  float64
	Lower float64
	Upper float64
}

// RunRecord holds the outcome of one analysis run.
type RunRecord struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Input     string
	NObs      int
	Order     string
	Method    string

	ADFStatistic float64
	ADFPValue    float64
	ADFLags      int

	AIC    float64
	BIC    float64
	LogLik float64
	Sigma2 float64

	Forecasts []ForecastPoint
}

// Recorder persists analysis runs.
type Recorder interface {
	RecordRun(ctx context.Context, run *RunRecord) error
	Close() error
}
