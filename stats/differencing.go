package stats

import (
	"math"

	"github.com/sartorproj/stockarima/timeseries"
)

// NDiffs determines the number of first differences required for stationarity.
// Uses KPSS test by default. Returns a value in 0..maxD.
// maxD is the maximum number of differences to consider (default 2).
// testType can be "kpss" (default) or "adf".
func NDiffs(series *timeseries.Series, maxD int, testType string) int {
	if maxD <= 0 {
		maxD = 2
	}
	if testType == "" {
		testType = "kpss"
	}

	current := series
	for d := 0; d < maxD; d++ {
		if isStationary(current, testType) {
			return d
		}

		current = current.Diff()
		if current.Len() < 10 {
			return d
		}
	}

	return maxD
}

func isStationary(series *timeseries.Series, testType string) bool {
	if testType == "adf" {
		result, err := ADF(series, nil)
		return err == nil && result.IsStationary
	}
	result := KPSS(series, "c", 0)
	return result != nil && result.IsStationary
}

// AICc calculates the corrected Akaike Information Criterion.
// AICc = AIC + 2(k)(k+1)/(n-k-1) where k is number of parameters.
// This corrects for small sample sizes.
func AICc(aic float64, nObs int, nParams int) float64 {
	k := float64(nParams)
	n := float64(nObs)

	if n-k-1 <= 0 {
		return math.Inf(1)
	}

	correction := 2 * k * (k + 1) / (n - k - 1)
	return aic + correction
}

// InformationCriteria holds the usual likelihood-based model selection criteria.
type InformationCriteria struct {
	AIC    float64
	AICc   float64
	BIC    float64
	HQIC   float64
	LogLik float64
}

// CalculateIC calculates all information criteria.
// logLik is the log-likelihood, nObs is the number of observations,
// nParams is the number of estimated parameters.
func CalculateIC(logLik float64, nObs int, nParams int) *InformationCriteria {
	k := float64(nParams)
	n := float64(nObs)

	aic := -2*logLik + 2*k

	return &InformationCriteria{
		AIC:    aic,
		AICc:   AICc(aic, nObs, nParams),
		BIC:    -2*logLik + k*math.Log(n),
		HQIC:   -2*logLik + 2*k*math.Log(math.Log(n)),
		LogLik: logLik,
	}
}
