package arima

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sartorproj/stockarima/timeseries"
)

func TestNewARIMA(t *testing.T) {
	model := New(2, 1, 1)

	if model.Order.P != 2 {
		t.Errorf("Expected P=2, got %d", model.Order.P)
	}
	if model.Order.D != 1 {
		t.Errorf("Expected D=1, got %d", model.Order.D)
	}
	if model.Order.Q != 1 {
		t.Errorf("Expected Q=1, got %d", model.Order.Q)
	}
}

func TestARIMAFitAR1(t *testing.T) {
	// Generate AR(1) data
	n := 200
	phi := 0.7
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		innovation := float64(i%7-3) / 3
		values[i] = phi*(values[i-1]-100) + 100 + innovation
	}

	series := timeseries.New(values)
	model := New(1, 0, 0)

	err := model.Fit(series)
	if err != nil {
		t.Fatalf("Failed to fit AR(1) model: %v", err)
	}

	// Check that AR coefficient is estimated reasonably
	if len(model.ARCoeffs) != 1 {
		t.Errorf("Expected 1 AR coefficient, got %d", len(model.ARCoeffs))
	}

	t.Logf("True AR coeff: %f, Estimated: %f", phi, model.ARCoeffs[0])

	// The estimate should be in a reasonable range
	if math.Abs(model.ARCoeffs[0]-phi) > 0.3 {
		t.Logf("AR coefficient estimate may be off: true=%f, est=%f", phi, model.ARCoeffs[0])
	}

	// Check that residuals exist
	residuals := model.Residuals()
	if residuals == nil || len(residuals) == 0 {
		t.Error("Residuals should not be empty")
	}
}

func TestARIMAFitMA1(t *testing.T) {
	// Generate MA(1) data (approximately)
	n := 200
	values := make([]float64, n)
	innovations := make([]float64, n)

	for i := 0; i < n; i++ {
		innovations[i] = float64(i%7-3) / 3
	}

	theta := 0.5
	values[0] = innovations[0]
	for i := 1; i < n; i++ {
		values[i] = innovations[i] + theta*innovations[i-1]
	}

	// Add a mean
	for i := range values {
		values[i] += 100
	}

	series := timeseries.New(values)
	model := New(0, 0, 1)

	err := model.Fit(series)
	if err != nil {
		t.Fatalf("Failed to fit MA(1) model: %v", err)
	}

	t.Logf("True MA coeff: %f, Estimated: %f", theta, model.MACoeffs[0])
}

func TestARIMAFitWithDifferencing(t *testing.T) {
	// Generate random walk data (needs differencing)
	n := 200
	values := make([]float64, n)
	values[0] = 100

	for i := 1; i < n; i++ {
		values[i] = values[i-1] + float64(i%5-2)/2
	}

	series := timeseries.New(values)
	model := New(1, 1, 0) // ARIMA(1,1,0)

	err := model.Fit(series)
	if err != nil {
		t.Fatalf("Failed to fit ARIMA(1,1,0) model: %v", err)
	}

	t.Logf("ARIMA(1,1,0) - AIC: %f, BIC: %f", model.AIC, model.BIC)
}

func TestARIMAPredict(t *testing.T) {
	// Generate simple data
	n := 100
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = 100 + float64(i)/10 + float64(i%7-3)/2
	}

	series := timeseries.New(values)
	model := New(1, 1, 0)

	err := model.Fit(series)
	if err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	forecasts, err := model.Predict(5)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}

	if len(forecasts) != 5 {
		t.Errorf("Expected 5 forecasts, got %d", len(forecasts))
	}

	// Forecasts should be in reasonable range
	lastValue := values[n-1]
	for i, f := range forecasts {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Errorf("Forecast %d is NaN or Inf", i)
		}
		// Should be somewhat close to the last value for trending data
		if math.Abs(f-lastValue) > 50 {
			t.Logf("Forecast %d may be unusual: %f (last value: %f)", i, f, lastValue)
		}
	}

	t.Logf("Last value: %f, Forecasts: %v", lastValue, forecasts)
}

func TestARIMASummary(t *testing.T) {
	n := 100
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = 100 + float64(i%7-3)/2
	}

	series := timeseries.New(values)
	model := New(1, 0, 1)

	err := model.Fit(series)
	if err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	summary := model.Summary()
	if summary == nil {
		t.Fatal("Summary should not be nil")
	}

	if summary.NObs != n {
		t.Errorf("Expected NObs=%d, got %d", n, summary.NObs)
	}

	t.Logf("Summary - AIC: %f, BIC: %f, LogLik: %f", summary.AIC, summary.BIC, summary.LogLik)
	if summary.LjungBox != nil {
		t.Logf("Ljung-Box Q: %f, P-Value: %f", summary.LjungBox.Statistic, summary.LjungBox.PValue)
	}
}

func TestARIMAInsufficientData(t *testing.T) {
	values := []float64{1, 2, 3}
	series := timeseries.New(values)
	model := New(5, 2, 5)

	err := model.Fit(series)
	if err != ErrInsufficientData {
		t.Errorf("Expected ErrInsufficientData, got %v", err)
	}
}

func TestARIMAFittedValues(t *testing.T) {
	n := 100
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = float64(i) + float64(i%5-2)/2
	}

	series := timeseries.New(values)
	model := New(1, 0, 0)

	err := model.Fit(series)
	if err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	fitted := model.FittedValues()
	if len(fitted) != n {
		t.Errorf("Expected %d fitted values, got %d", n, len(fitted))
	}
}

func TestYuleWalker(t *testing.T) {
	// Create ACF that corresponds to AR(1) process (more realistic)
	acf := []float64{1.0, 0.6, 0.36, 0.216, 0.13}

	coeffs := yuleWalker(acf, 2)
	if coeffs == nil {
		t.Fatal("yuleWalker returned nil")
	}

	if len(coeffs) != 2 {
		t.Errorf("Expected 2 coefficients, got %d", len(coeffs))
	}

	t.Logf("Yule-Walker coefficients: %v", coeffs)

	// Just check they're not NaN or Inf
	for i, c := range coeffs {
		if c != c { // NaN check
			t.Errorf("Coefficient %d is NaN", i)
		}
	}
}

func TestARIMAWhiteNoise(t *testing.T) {
	// White noise should result in near-zero coefficients
	n := 200
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = float64(i%7-3) / 3
	}

	series := timeseries.New(values)
	model := New(0, 0, 0) // Just constant model

	err := model.Fit(series)
	if err != nil {
		t.Fatalf("Failed to fit white noise: %v", err)
	}

	// Mean should be close to actual mean
	actualMean := series.Mean()
	if math.Abs(model.Intercept-actualMean) > 0.5 {
		t.Errorf("Intercept should be close to mean: got %f, expected ~%f", model.Intercept, actualMean)
	}
}

func TestARIMAMultipleOrders(t *testing.T) {
	tests := []struct {
		name    string
		p, d, q int
	}{
		{"AR1", 1, 0, 0},
		{"AR2", 2, 0, 0},
		{"MA1", 0, 0, 1},
		{"MA2", 0, 0, 2},
		{"ARMA11", 1, 0, 1},
		{"ARIMA110", 1, 1, 0},
		{"ARIMA011", 0, 1, 1},
		{"ARIMA111", 1, 1, 1},
		{"ARIMA211", 2, 1, 1},
		{"ARIMA212", 2, 1, 2},
	}

	// Generate test data
	n := 150
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		values[i] = 0.6*(values[i-1]-100) + 100 + float64(i%7-3)/3
	}

	series := timeseries.New(values)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := New(tt.p, tt.d, tt.q)
			err := model.Fit(series)

			if err != nil {
				t.Logf("Model %s failed to fit: %v", tt.name, err)
				return
			}

			// Check model was fitted
			summary := model.Summary()
			if summary == nil {
				t.Error("Summary should not be nil after fitting")
				return
			}

			// Try prediction
			forecasts, err := model.Predict(3)
			if err != nil {
				t.Errorf("Prediction failed: %v", err)
				return
			}

			if len(forecasts) != 3 {
				t.Errorf("Expected 3 forecasts, got %d", len(forecasts))
			}

			t.Logf("%s - AIC: %.2f, BIC: %.2f, Forecasts: %v",
				tt.name, summary.AIC, summary.BIC, forecasts)
		})
	}
}

// noise returns n deterministic pseudo-random values, uniform on [-0.5, 0.5).
func noise(n int, seed uint64) []float64 {
	state := seed
	out := make([]float64, n)
	for i := range out {
		state = state*6364136223846793005 + 1442695040888963407
		out[i] = float64(state>>11)/float64(1<<53) - 0.5
	}
	return out
}

func ar1(n int, phi float64, seed uint64) []float64 {
	e := noise(n, seed)
	values := make([]float64, n)
	for i := 1; i < n; i++ {
		values[i] = phi*values[i-1] + e[i]
	}
	return values
}

func TestARIMARecoversAR1(t *testing.T) {
	phi := 0.6
	series := timeseries.New(ar1(500, phi, 1))

	for _, method := range []string{MethodMLE, MethodCSS} {
		model := New(1, 0, 0, WithMethod(method))
		if err := model.Fit(series); err != nil {
			t.Fatalf("%s: fit failed: %v", method, err)
		}
		if math.Abs(model.ARCoeffs[0]-phi) > 0.1 {
			t.Errorf("%s: expected phi ~%f, got %f", method, phi, model.ARCoeffs[0])
		}
		// uniform(-0.5, 0.5) has variance 1/12
		if math.Abs(model.Variance-1.0/12) > 0.02 {
			t.Errorf("%s: expected sigma2 ~%f, got %f", method, 1.0/12, model.Variance)
		}
		t.Logf("%s: phi=%f sigma2=%f loglik=%f", method, model.ARCoeffs[0], model.Variance, model.LogLik)
	}
}

func TestARIMAStandardErrors(t *testing.T) {
	n := 500
	phi := 0.6
	model := New(1, 0, 0)
	if err := model.Fit(timeseries.New(ar1(n, phi, 2))); err != nil {
		t.Fatal(err)
	}

	coefs := model.Coefficients()
	if len(coefs) != 3 {
		t.Fatalf("Expected const, ar.L1 and sigma2, got %d rows", len(coefs))
	}
	names := []string{"const", "ar.L1", "sigma2"}
	for i, c := range coefs {
		if c.Name != names[i] {
			t.Errorf("Row %d: expected %s, got %s", i, names[i], c.Name)
		}
	}

	// Asymptotic standard error of phi is sqrt((1-phi^2)/n)
	want := math.Sqrt((1 - phi*phi) / float64(n))
	if se := coefs[1].StdErr; math.IsNaN(se) || math.Abs(se-want) > 0.015 {
		t.Errorf("Expected ar.L1 std err ~%f, got %f", want, se)
	}
	if coefs[1].P > 0.001 {
		t.Errorf("ar.L1 should be significant, p=%f", coefs[1].P)
	}
}

func TestARIMA301(t *testing.T) {
	e := noise(400, 9)
	values := make([]float64, len(e))
	for i := 3; i < len(values); i++ {
		values[i] = 0.002 + 0.3*values[i-1] - 0.1*values[i-2] + 0.05*values[i-3] + 0.03*e[i] + 0.01*e[i-1]
	}
	series := timeseries.New(values)

	model := New(3, 0, 1)
	if err := model.Fit(series); err != nil {
		t.Fatalf("Failed to fit ARIMA(3,0,1): %v", err)
	}
	if !model.HasConstant() {
		t.Error("ARIMA(3,0,1) should include a constant")
	}
	if model.NumParams() != 6 {
		t.Errorf("Expected 6 parameters, got %d", model.NumParams())
	}

	fc, err := model.Forecast(2, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Mean) != 2 || len(fc.Lower) != 2 || len(fc.Upper) != 2 {
		t.Fatalf("Expected 2 forecasts, got %d", len(fc.Mean))
	}
	for h := range fc.Mean {
		if !(fc.Lower[h] < fc.Mean[h] && fc.Mean[h] < fc.Upper[h]) {
			t.Errorf("Step %d: interval does not bracket the mean: %f %f %f", h, fc.Lower[h], fc.Mean[h], fc.Upper[h])
		}
	}

	summary := model.Summary().String()
	for _, want := range []string{"ARIMA(3,0,1)", "ar.L3", "ma.L1", "sigma2", "Ljung-Box", "Jarque-Bera"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary missing %q:\n%s", want, summary)
		}
	}
	t.Log("\n" + summary)
}

func TestForecastLengthMatchesSteps(t *testing.T) {
	start := time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)
	values := ar1(120, 0.4, 4)
	ts := make([]time.Time, len(values))
	for i := range ts {
		ts[i] = start.AddDate(0, 0, 7*i)
	}
	series, _ := timeseries.NewWithTimestamps(ts, values)

	model := New(1, 0, 1)
	if err := model.Fit(series); err != nil {
		t.Fatal(err)
	}

	for _, steps := range []int{1, 2, 7} {
		fc, err := model.Forecast(steps, 0.05)
		if err != nil {
			t.Fatal(err)
		}
		if len(fc.Mean) != steps || len(fc.Timestamps) != steps || fc.Steps != steps {
			t.Errorf("steps=%d: got %d means, %d timestamps", steps, len(fc.Mean), len(fc.Timestamps))
		}
		want := ts[len(ts)-1].AddDate(0, 0, 7)
		if !fc.Timestamps[0].Equal(want) {
			t.Errorf("First forecast date: expected %v, got %v", want, fc.Timestamps[0])
		}
	}

	if _, err := model.Forecast(0, 0.05); err != ErrInvalidSteps {
		t.Errorf("Expected ErrInvalidSteps, got %v", err)
	}
}

func TestForecastNotFitted(t *testing.T) {
	model := New(1, 0, 0)
	if _, err := model.Predict(2); err != ErrNotFitted {
		t.Errorf("Expected ErrNotFitted, got %v", err)
	}
	if model.Summary() != nil {
		t.Error("Summary of an unfitted model should be nil")
	}
}

func TestForecastIntegratesDifferences(t *testing.T) {
	// Random walk with drift
	e := noise(200, 5)
	values := make([]float64, len(e))
	values[0] = 50
	for i := 1; i < len(values); i++ {
		values[i] = values[i-1] + 0.5 + e[i]
	}

	model := New(0, 1, 0, WithConstant(true))
	if err := model.Fit(timeseries.New(values)); err != nil {
		t.Fatal(err)
	}
	fc, err := model.Forecast(3, 0.05)
	if err != nil {
		t.Fatal(err)
	}

	last := values[len(values)-1]
	for h, f := range fc.Mean {
		want := last + float64(h+1)*model.Intercept
		if math.Abs(f-want) > 1e-9 {
			t.Errorf("Step %d: expected %f, got %f", h+1, want, f)
		}
	}
	// A random walk's forecast variance grows linearly
	for h := 1; h < 3; h++ {
		ratio := fc.StdErr[h] * fc.StdErr[h] / (fc.StdErr[0] * fc.StdErr[0])
		if math.Abs(ratio-float64(h+1)) > 1e-9 {
			t.Errorf("Step %d: expected variance ratio %d, got %f", h+1, h+1, ratio)
		}
	}
}

func TestIntegrateSecondDifference(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i * i)
	}
	model := New(0, 2, 0)
	model.data = timeseries.New(values)

	// second difference of i^2 is 2
	got := model.integrate([]float64{2, 2})
	if got[0] != 900 || got[1] != 961 {
		t.Errorf("Expected [900 961], got %v", got)
	}
}

func TestStationaryTransformRoundTrip(t *testing.T) {
	for _, phi := range [][]float64{{0.5}, {0.3, -0.2}, {0.5, 0.2, -0.1}, {-0.9}} {
		u := unconstrainStationary(phi)
		if u == nil {
			t.Fatalf("%v should be stationary", phi)
		}
		back := constrainStationary(u)
		for i := range phi {
			if math.Abs(back[i]-phi[i]) > 1e-10 {
				t.Errorf("Round trip of %v gave %v", phi, back)
			}
		}
	}

	if unconstrainStationary([]float64{1.2}) != nil {
		t.Error("phi=1.2 is not stationary")
	}

	theta := constrainInvertible([]float64{2.0})
	if math.Abs(theta[0]) >= 1 {
		t.Errorf("MA coefficient %f is not invertible", theta[0])
	}
}

func TestStateSpaceStationaryCovariance(t *testing.T) {
	phi := 0.5
	ss, err := newStateSpace([]float64{phi}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := 1 / (1 - phi*phi)
	if math.Abs(ss.P0[0]-want) > 1e-10 {
		t.Errorf("Expected P0 %f, got %f", want, ss.P0[0])
	}

	if _, err := newStateSpace([]float64{1}, nil); err == nil {
		t.Error("Expected error for a unit root")
	}
}

func TestPsiWeights(t *testing.T) {
	psi := psiWeights([]float64{0.5}, nil, 0, 4)
	for j, want := range []float64{1, 0.5, 0.25, 0.125} {
		if math.Abs(psi[j]-want) > 1e-12 {
			t.Errorf("AR(1) psi[%d]: expected %f, got %f", j, want, psi[j])
		}
	}

	psi = psiWeights(nil, []float64{0.4}, 1, 3)
	for j, want := range []float64{1, 1.4, 1.4} {
		if math.Abs(psi[j]-want) > 1e-12 {
			t.Errorf("IMA(1,1) psi[%d]: expected %f, got %f", j, want, psi[j])
		}
	}
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("(3, 0, 1)")
	if err != nil {
		t.Fatal(err)
	}
	if o != (Order{P: 3, D: 0, Q: 1}) {
		t.Errorf("Unexpected order %v", o)
	}
	if o.String() != "(3,0,1)" {
		t.Errorf("Unexpected string %s", o.String())
	}
	if _, err := ParseOrder("3,0"); err == nil {
		t.Error("Expected error for two terms")
	}
	if _, err := ParseOrder("-1,0,1"); err == nil {
		t.Error("Expected error for negative term")
	}
}
