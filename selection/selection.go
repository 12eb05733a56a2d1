package selection

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sartorproj/stockarima/arima"
	"github.com/sartorproj/stockarima/stats"
	"github.com/sartorproj/stockarima/timeseries"
)

// ErrNoModel is returned when no candidate order could be fitted.
var ErrNoModel = errors.New("no candidate model could be fitted")

// Config holds configuration for the order search.
type Config struct {
	MaxP        int    // Maximum AR order (default: 5)
	MaxD        int    // Maximum differencing order (default: 2)
	MaxQ        int    // Maximum MA order (default: 5)
	D           int    // Fixed differencing order; negative means test for it
	Stepwise    bool   // Use stepwise search instead of exhaustive
	Criterion   string // Information criterion: "aic", "aicc" or "bic" (default: "aic")
	StationTest string // Stationarity test: "adf" or "kpss" (default: "kpss")
	Method      string // Estimation method passed to arima (default: "mle")

	// OnCandidate, when set, is called after every fitted or failed candidate.
	OnCandidate func(Candidate)
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxP:        5,
		MaxD:        2,
		MaxQ:        5,
		D:           -1,
		Stepwise:    true,
		Criterion:   "aic",
		StationTest: "kpss",
		Method:      arima.MethodMLE,
	}
}

// Candidate is one evaluated order.
type Candidate struct {
	Order     arima.Order
	AIC       float64
	AICc      float64
	BIC       float64
	Criterion float64
	Err       error
}

// Result represents the outcome of an order search.
type Result struct {
	Model *arima.Model
	Order arima.Order

	// Model metrics
	AIC       float64
	BIC       float64
	LogLik    float64
	Criterion float64

	// Search information
	Candidates      []Candidate
	ModelsEvaluated int
}

// Search selects the ARIMA order with the lowest information criterion.
func Search(series *timeseries.Series, config *Config) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}
	switch strings.ToLower(config.Criterion) {
	case "", "aic", "aicc", "bic":
	default:
		return nil, fmt.Errorf("unknown criterion %q", config.Criterion)
	}

	d := config.D
	if d < 0 {
		d = determineDifferencing(series, config.MaxD, config.StationTest)
	}

	s := &searcher{
		series: series,
		d:      d,
		config: config,
		seen:   make(map[[2]int]bool),
		best:   &Result{Criterion: math.Inf(1)},
	}
	if config.Stepwise {
		s.stepwise()
	} else {
		s.grid()
	}

	if s.best.Model == nil {
		return nil, ErrNoModel
	}
	s.best.Candidates = s.candidates
	s.best.ModelsEvaluated = s.evaluated
	return s.best, nil
}

// determineDifferencing determines the optimal differencing order.
// Uses both KPSS and ADF tests for more robust detection.
func determineDifferencing(series *timeseries.Series, maxD int, testType string) int {
	if maxD <= 0 {
		maxD = 2
	}
	currentSeries := series

	for d := 0; d < maxD; d++ {
		isStationary := false

		if testType == "adf" {
			result, err := stats.ADF(currentSeries, nil)
			isStationary = err == nil && result.IsStationary
		} else {
			// KPSS: H0 = stationary, ADF: H0 = unit root
			kpssResult := stats.KPSS(currentSeries, "c", 0)
			adfResult, err := stats.ADF(currentSeries, nil)

			kpssStationary := kpssResult != nil && kpssResult.IsStationary
			adfStationary := err == nil && adfResult.IsStationary

			// Stationary if both tests agree, or if KPSS strongly suggests it
			if kpssStationary && adfStationary {
				isStationary = true
			} else if kpssStationary && kpssResult.PValue > 0.1 {
				isStationary = true
			}
		}

		if isStationary {
			return d
		}

		currentSeries = currentSeries.Diff()
		if currentSeries.Len() < 10 {
			return d
		}
	}

	return maxD
}

type searcher struct {
	series     *timeseries.Series
	d          int
	config     *Config
	seen       map[[2]int]bool
	candidates []Candidate
	evaluated  int
	best       *Result
	bestP      int
	bestQ      int
}

func (s *searcher) criterion(m *arima.Model) float64 {
	switch strings.ToLower(s.config.Criterion) {
	case "bic":
		return m.BIC
	case "aicc":
		return m.AICc
	default:
		return m.AIC
	}
}

// try fits one order and reports whether it became the best so far.
func (s *searcher) try(p, q int) bool {
	if p < 0 || q < 0 || p > s.config.MaxP || q > s.config.MaxQ {
		return false
	}
	if s.seen[[2]int{p, q}] {
		return false
	}
	s.seen[[2]int{p, q}] = true

	var opts []arima.Option
	if s.config.Method != "" {
		opts = append(opts, arima.WithMethod(s.config.Method))
	}
	model := arima.New(p, s.d, q, opts...)
	cand := Candidate{Order: model.Order}
	if err := model.Fit(s.series); err != nil {
		cand.Err = err
		cand.Criterion = math.Inf(1)
		s.record(cand)
		return false
	}

	s.evaluated++
	cand.AIC = model.AIC
	cand.AICc = model.AICc
	cand.BIC = model.BIC
	cand.Criterion = s.criterion(model)
	s.record(cand)

	if cand.Criterion < s.best.Criterion {
		s.best = &Result{
			Model:     model,
			Order:     model.Order,
			AIC:       model.AIC,
			BIC:       model.BIC,
			LogLik:    model.LogLik,
			Criterion: cand.Criterion,
		}
		s.bestP, s.bestQ = p, q
		return true
	}
	return false
}

func (s *searcher) record(c Candidate) {
	s.candidates = append(s.candidates, c)
	if s.config.OnCandidate != nil {
		s.config.OnCandidate(c)
	}
}

// grid evaluates every p <= MaxP, q <= MaxQ.
func (s *searcher) grid() {
	for p := 0; p <= s.config.MaxP; p++ {
		for q := 0; q <= s.config.MaxQ; q++ {
			s.try(p, q)
		}
	}
}

// stepwise starts from a few simple orders and moves to the best neighbour
// until no neighbour improves the criterion.
func (s *searcher) stepwise() {
	for _, start := range [][2]int{{2, 2}, {0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		s.try(start[0], start[1])
	}

	improved := s.best.Model != nil
	for improved {
		improved = false
		p, q := s.bestP, s.bestQ
		neighbors := [][2]int{
			{p + 1, q}, {p - 1, q},
			{p, q + 1}, {p, q - 1},
			{p + 1, q + 1}, {p - 1, q - 1},
		}
		for _, nb := range neighbors {
			if s.try(nb[0], nb[1]) {
				improved = true
			}
		}
	}
}
