package arima

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// Forecast holds point forecasts and prediction intervals on the original scale.
type Forecast struct {
	Steps      int
	Alpha      float64
	Timestamps []time.Time // empty when the series has no time index
	Mean       []float64
	StdErr     []float64
	Lower      []float64
	Upper      []float64
}

// Forecast predicts steps values ahead with (1-alpha) prediction intervals.
// Differencing is integrated back, so the forecasts are on the scale of the fitted series.
func (m *Model) Forecast(steps int, alpha float64) (*Forecast, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, ErrInvalidSteps
	}
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}

	means, vars := m.ss.forecast(m.filtered, steps)
	for i := range means {
		means[i] += m.Intercept
	}
	if m.Order.D > 0 {
		means = m.integrate(means)
		psi := psiWeights(m.ARCoeffs, m.MACoeffs, m.Order.D, steps)
		cum := 0.0
		for h := range vars {
			cum += psi[h] * psi[h]
			vars[h] = cum
		}
	}

	z := distuv.UnitNormal.Quantile(1 - alpha/2)
	fc := &Forecast{
		Steps:  steps,
		Alpha:  alpha,
		Mean:   means,
		StdErr: make([]float64, steps),
		Lower:  make([]float64, steps),
		Upper:  make([]float64, steps),
	}
	for h := 0; h < steps; h++ {
		se := math.Sqrt(vars[h] * m.Variance)
		fc.StdErr[h] = se
		fc.Lower[h] = means[h] - z*se
		fc.Upper[h] = means[h] + z*se
	}

	if m.data.HasTimestamps() {
		if step := m.data.Step(); step > 0 {
			last := m.data.Timestamps[m.data.Len()-1]
			fc.Timestamps = make([]time.Time, steps)
			for h := range fc.Timestamps {
				fc.Timestamps[h] = last.Add(time.Duration(h+1) * step)
			}
		}
	}

	return fc, nil
}

// Predict generates point forecasts for the specified number of steps ahead.
func (m *Model) Predict(steps int) ([]float64, error) {
	fc, err := m.Forecast(steps, 0.05)
	if err != nil {
		return nil, err
	}
	return fc.Mean, nil
}

// integrate undoes differencing to return forecasts on original scale.
func (m *Model) integrate(forecasts []float64) []float64 {
	d := m.Order.D

	// last value of the series differenced 0..d-1 times
	lasts := make([]float64, d)
	current := m.data
	for k := 0; k < d; k++ {
		lasts[k] = current.Values[current.Len()-1]
		current = current.Diff()
	}

	result := make([]float64, len(forecasts))
	copy(result, forecasts)
	for k := d - 1; k >= 0; k-- {
		for j := range result {
			if j == 0 {
				result[j] += lasts[k]
			} else {
				result[j] += result[j-1]
			}
		}
	}

	return result
}
