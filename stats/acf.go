package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/stockarima/timeseries"
)

// DefaultLags returns the default number of lags for a series of length n: min(10*log10(n), n-1).
func DefaultLags(n int) int {
	if n < 2 {
		return 0
	}
	lags := int(10 * math.Log10(float64(n)))
	if lags > n-1 {
		lags = n - 1
	}
	return lags
}

// ACF calculates the Autocorrelation Function for the given series.
// Returns ACF values for lags 0 to maxLag.
func ACF(series *timeseries.Series, maxLag int) []float64 {
	n := series.Len()
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	mean := series.Mean()
	variance := 0.0
	for _, v := range series.Values {
		diff := v - mean
		variance += diff * diff
	}

	if variance == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (series.Values[i] - mean) * (series.Values[i-k] - mean)
		}
		acf[k] = sum / variance
	}

	return acf
}

// PACF calculates the Partial Autocorrelation Function using the Durbin-Levinson algorithm.
// Returns PACF values for lags 0 to maxLag, with PACF[0] = 1.
func PACF(series *timeseries.Series, maxLag int) []float64 {
	n := series.Len()
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 1 {
		return nil
	}

	acf := ACF(series, maxLag)
	if acf == nil {
		return nil
	}
	return durbinLevinson(acf)
}

// durbinLevinson turns autocorrelations into partial autocorrelations.
func durbinLevinson(acf []float64) []float64 {
	maxLag := len(acf) - 1
	pacf := make([]float64, maxLag+1)
	pacf[0] = 1.0

	prev := make([]float64, maxLag+1)
	cur := make([]float64, maxLag+1)

	prev[1] = acf[1]
	pacf[1] = acf[1]

	for k := 2; k <= maxLag; k++ {
		num := acf[k]
		den := 1.0
		for j := 1; j < k; j++ {
			num -= prev[j] * acf[k-j]
			den -= prev[j] * acf[j]
		}

		if den == 0 {
			pacf[k] = 0
			copy(cur, prev)
			cur[k] = 0
			prev, cur = cur, prev
			continue
		}

		cur[k] = num / den
		pacf[k] = cur[k]
		for j := 1; j < k; j++ {
			cur[j] = prev[j] - cur[k]*prev[k-j]
		}
		prev, cur = cur, prev
	}

	return pacf
}

// criticalZ returns the two-sided standard normal quantile for alpha.
func criticalZ(alpha float64) float64 {
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}
	return distuv.UnitNormal.Quantile(1 - alpha/2)
}

// ACFResult represents the result of ACF analysis.
// Bounds[k] is the half-width of the confidence band around zero at lag k.
type ACFResult struct {
	Lags   []int
	Values []float64
	Bounds []float64
	Alpha  float64
}

// ACFWithConfidence calculates ACF with Bartlett confidence bounds.
// The bound at lag k grows with the squared autocorrelations below k.
func ACFWithConfidence(series *timeseries.Series, maxLag int, alpha float64) *ACFResult {
	acf := ACF(series, maxLag)
	if acf == nil {
		return nil
	}

	n := float64(series.Len())
	z := criticalZ(alpha)

	lags := make([]int, len(acf))
	bounds := make([]float64, len(acf))
	cum := 0.0
	for k := range acf {
		lags[k] = k
		if k == 0 {
			continue
		}
		bounds[k] = z * math.Sqrt((1+2*cum)/n)
		cum += acf[k] * acf[k]
	}

	return &ACFResult{
		Lags:   lags,
		Values: acf,
		Bounds: bounds,
		Alpha:  alpha,
	}
}

// PACFResult represents the result of PACF analysis.
type PACFResult struct {
	Lags   []int
	Values []float64
	Bounds []float64
	Alpha  float64
}

// PACFWithConfidence calculates PACF with bounds of z/sqrt(n) at every lag.
func PACFWithConfidence(series *timeseries.Series, maxLag int, alpha float64) *PACFResult {
	pacf := PACF(series, maxLag)
	if pacf == nil {
		return nil
	}

	bound := criticalZ(alpha) / math.Sqrt(float64(series.Len()))

	lags := make([]int, len(pacf))
	bounds := make([]float64, len(pacf))
	for i := range lags {
		lags[i] = i
		if i > 0 {
			bounds[i] = bound
		}
	}

	return &PACFResult{
		Lags:   lags,
		Values: pacf,
		Bounds: bounds,
		Alpha:  alpha,
	}
}

// SignificantLags returns the lags where ACF/PACF values exceed their bounds.
func SignificantLags(values, bounds []float64) []int {
	var significant []int
	for i := 1; i < len(values) && i < len(bounds); i++ { // Skip lag 0
		if math.Abs(values[i]) > bounds[i] {
			significant = append(significant, i)
		}
	}
	return significant
}

// LeadingSignificant returns the last lag of the first unbroken run of
// significant lags starting at lag 1, or 0 when lag 1 is not significant.
func LeadingSignificant(values, bounds []float64) int {
	last := 0
	for i := 1; i < len(values) && i < len(bounds); i++ {
		if math.Abs(values[i]) <= bounds[i] {
			break
		}
		last = i
	}
	return last
}
