package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/stockarima/timeseries"
)

// LjungBoxResult represents the result of a Ljung-Box test.
type LjungBoxResult struct {
	Statistic float64
	PValue    float64
	Lags      int
	DOF       int // Degrees of freedom
}

// LjungBox performs the Ljung-Box test for autocorrelation in residuals.
// The null hypothesis is that there is no autocorrelation up to lag h.
// If p-value < 0.05, we reject the null and conclude there is significant autocorrelation.
// fitdf is the number of parameters estimated in the model (p + q for ARIMA).
func LjungBox(series *timeseries.Series, lags, fitdf int) *LjungBoxResult {
	n := series.Len()
	if n < 10 || lags < 1 {
		return nil
	}

	if lags >= n {
		lags = n - 1
	}

	acf := ACF(series, lags)
	if acf == nil {
		return nil
	}

	q := 0.0
	for k := 1; k <= lags; k++ {
		q += (acf[k] * acf[k]) / float64(n-k)
	}
	q *= float64(n * (n + 2))

	dof := lags - fitdf
	if dof < 1 {
		dof = 1
	}

	return &LjungBoxResult{
		Statistic: q,
		PValue:    chiSquaredSF(q, dof),
		Lags:      lags,
		DOF:       dof,
	}
}

// chiSquaredSF returns P(X > x) for a chi-squared variable with k degrees of freedom.
func chiSquaredSF(x float64, k int) float64 {
	if x <= 0 {
		return 1
	}
	return distuv.ChiSquared{K: float64(k)}.Survival(x)
}

// JarqueBeraResult represents the result of a Jarque-Bera normality test.
type JarqueBeraResult struct {
	Statistic float64
	PValue    float64
	Skew      float64
	Kurtosis  float64 // Not excess: 3 for a normal sample
}

// JarqueBera tests whether values are normally distributed.
// Skew and kurtosis are the biased moment estimators.
func JarqueBera(values []float64) *JarqueBeraResult {
	n := len(values)
	if n < 3 {
		return nil
	}

	m2 := stat.Moment(2, values, nil)
	if m2 == 0 {
		return nil
	}
	skew := stat.Moment(3, values, nil) / math.Pow(m2, 1.5)
	kurt := stat.Moment(4, values, nil) / (m2 * m2)

	jb := float64(n) / 6 * (skew*skew + (kurt-3)*(kurt-3)/4)

	return &JarqueBeraResult{
		Statistic: jb,
		PValue:    chiSquaredSF(jb, 2),
		Skew:      skew,
		Kurtosis:  kurt,
	}
}

// DurbinWatsonResult represents the result of a Durbin-Watson test.
type DurbinWatsonResult struct {
	Statistic float64
	// d ≈ 2: no autocorrelation
	// d < 2: positive autocorrelation
	// d > 2: negative autocorrelation
}

// DurbinWatson calculates the Durbin-Watson statistic for first-order autocorrelation.
func DurbinWatson(residuals []float64) *DurbinWatsonResult {
	n := len(residuals)
	if n < 2 {
		return nil
	}

	numerator := 0.0
	denominator := 0.0

	for i := 1; i < n; i++ {
		diff := residuals[i] - residuals[i-1]
		numerator += diff * diff
	}

	for _, r := range residuals {
		denominator += r * r
	}

	if denominator == 0 {
		return nil
	}

	return &DurbinWatsonResult{
		Statistic: numerator / denominator,
	}
}
