package stats

import (
	"math"
	"testing"

	"github.com/sartorproj/stockarima/timeseries"
)

func TestNDiffs(t *testing.T) {
	// Test with stationary data (should need 0 differences)
	n := 100
	stationary := make([]float64, n)
	for i := 0; i < n; i++ {
		stationary[i] = float64(i%10-5) + float64((i*7)%11-5)*0.5
	}
	stationarySeries := timeseries.New(stationary)

	d := NDiffs(stationarySeries, 2, "kpss")
	t.Logf("Stationary series ndiffs: %d", d)
	// Stationary data should need 0 or at most 1 difference
	if d > 1 {
		t.Errorf("Stationary series should need at most 1 difference, got %d", d)
	}

	// Test with random walk (non-stationary, should need 1 difference)
	randomWalk := make([]float64, n)
	randomWalk[0] = 0
	for i := 1; i < n; i++ {
		randomWalk[i] = randomWalk[i-1] + float64((i*7)%11-5)*0.3
	}
	rwSeries := timeseries.New(randomWalk)

	d = NDiffs(rwSeries, 2, "kpss")
	t.Logf("Random walk ndiffs: %d", d)
	// Random walk should typically need at least 1 difference
	if d < 1 {
		t.Logf("Random walk may need differencing, got d=%d", d)
	}

	// Test with trend (should need 1-2 differences)
	trend := make([]float64, n)
	for i := 0; i < n; i++ {
		trend[i] = 100 + float64(i)*2 + float64((i*3)%7-3)*0.5
	}
	trendSeries := timeseries.New(trend)

	d = NDiffs(trendSeries, 2, "kpss")
	t.Logf("Trend series ndiffs: %d", d)
	if d < 1 {
		t.Errorf("Trending series should need at least 1 difference, got %d", d)
	}

	d = NDiffs(timeseries.New(noise(200, 3)), 2, "adf")
	if d != 0 {
		t.Errorf("White noise should need no differencing under ADF, got %d", d)
	}
}

func TestAICc(t *testing.T) {
	// Test AICc calculation
	// AICc = AIC + 2*k*(k+1)/(n-k-1)

	tests := []struct {
		aic     float64
		nObs    int
		nParams int
	}{
		{100.0, 50, 3},
		{200.0, 100, 5},
		{150.0, 30, 4},
	}

	for _, tt := range tests {
		aicc := AICc(tt.aic, tt.nObs, tt.nParams)

		// AICc should always be >= AIC for finite sample sizes
		if aicc < tt.aic {
			t.Errorf("AICc (%f) should be >= AIC (%f)", aicc, tt.aic)
		}

		// Verify the formula
		k := float64(tt.nParams)
		n := float64(tt.nObs)
		expectedCorrection := 2 * k * (k + 1) / (n - k - 1)
		expectedAICc := tt.aic + expectedCorrection

		if math.Abs(aicc-expectedAICc) > 1e-10 {
			t.Errorf("AICc calculation incorrect: got %f, expected %f", aicc, expectedAICc)
		}

		t.Logf("AIC=%.2f, n=%d, k=%d -> AICc=%.2f (correction=%.4f)",
			tt.aic, tt.nObs, tt.nParams, aicc, expectedCorrection)
	}

	// Test edge case: n-k-1 <= 0 should return Inf
	aicc := AICc(100.0, 5, 5)
	if !math.IsInf(aicc, 1) {
		t.Errorf("AICc should be +Inf when n-k-1 <= 0, got %f", aicc)
	}
}

func TestCalculateIC(t *testing.T) {
	// Test full IC calculation
	logLik := -50.0
	nObs := 100
	nParams := 3

	ic := CalculateIC(logLik, nObs, nParams)

	// AIC = -2*logLik + 2*k
	expectedAIC := -2*logLik + 2*float64(nParams)
	if math.Abs(ic.AIC-expectedAIC) > 1e-10 {
		t.Errorf("AIC calculation incorrect: got %f, expected %f", ic.AIC, expectedAIC)
	}

	// BIC = -2*logLik + k*log(n)
	expectedBIC := -2*logLik + float64(nParams)*math.Log(float64(nObs))
	if math.Abs(ic.BIC-expectedBIC) > 1e-10 {
		t.Errorf("BIC calculation incorrect: got %f, expected %f", ic.BIC, expectedBIC)
	}

	// AICc should be >= AIC
	if ic.AICc < ic.AIC {
		t.Errorf("AICc should be >= AIC")
	}

	// HQIC = -2*logLik + 2*k*log(log(n))
	expectedHQIC := -2*logLik + 2*float64(nParams)*math.Log(math.Log(float64(nObs)))
	if math.Abs(ic.HQIC-expectedHQIC) > 1e-10 {
		t.Errorf("HQIC calculation incorrect: got %f, expected %f", ic.HQIC, expectedHQIC)
	}

	t.Logf("LogLik=%.2f, n=%d, k=%d -> AIC=%.2f, AICc=%.2f, BIC=%.2f",
		logLik, nObs, nParams, ic.AIC, ic.AICc, ic.BIC)
}
