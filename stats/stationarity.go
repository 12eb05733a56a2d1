package stats

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/stockarima/timeseries"
)

// ErrTooShort is returned when a series is too short for the requested test.
var ErrTooShort = errors.New("series too short for the selected regression")

// ADFOptions configures the Augmented Dickey-Fuller test.
type ADFOptions struct {
	// Regression is "c" (constant), "ct" (constant and trend) or "n" (none).
	Regression string
	// MaxLag is the largest lag of the differenced series; negative selects
	// ceil(12*(n/100)^(1/4)).
	MaxLag int
	// Autolag is "aic", "bic", "t-stat", or "" to use MaxLag directly.
	Autolag string
}

// DefaultADFOptions returns constant-only regression with AIC lag selection.
func DefaultADFOptions() *ADFOptions {
	return &ADFOptions{Regression: "c", MaxLag: -1, Autolag: "aic"}
}

// ADFResult represents the result of an Augmented Dickey-Fuller test.
type ADFResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	NObs         int
	CriticalVals map[string]float64 // Critical values at 1%, 5%, 10%
	ICBest       float64            // Information criterion at the chosen lag (autolag only)
	Regression   string
	IsStationary bool
}

// ADF performs the Augmented Dickey-Fuller test for unit root.
// The null hypothesis is that the series has a unit root (is non-stationary).
// If p-value < 0.05, we reject the null and conclude the series is stationary.
//
// With Autolag set, every lag up to MaxLag is fitted on a common sample and the
// best one is refitted on all observations it allows.
func ADF(series *timeseries.Series, opts *ADFOptions) (*ADFResult, error) {
	if opts == nil {
		opts = DefaultADFOptions()
	}
	regression := strings.ToLower(opts.Regression)
	if regression == "" {
		regression = "c"
	}
	ntrend := 0
	switch regression {
	case "c":
		ntrend = 1
	case "ct":
		ntrend = 2
	case "n":
	default:
		return nil, fmt.Errorf("unknown regression %q", opts.Regression)
	}
	autolag := strings.ToLower(opts.Autolag)
	switch autolag {
	case "", "aic", "bic", "t-stat":
	default:
		return nil, fmt.Errorf("unknown autolag %q", opts.Autolag)
	}

	x := series.Values
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("series contains non-finite values")
		}
	}
	n := len(x)

	maxLag := opts.MaxLag
	if maxLag < 0 {
		maxLag = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
		maxLag = min(n/2-ntrend-1, maxLag)
	}
	if maxLag < 0 || n-1-maxLag <= maxLag+ntrend+1 {
		return nil, ErrTooShort
	}

	xdiff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		xdiff[i-1] = x[i] - x[i-1]
	}

	usedLag := maxLag
	icBest := math.NaN()
	if autolag != "" {
		var err error
		usedLag, icBest, err = adfAutolag(x, xdiff, maxLag, regression, autolag)
		if err != nil {
			return nil, err
		}
	}

	y, design := adfDesign(x, xdiff, usedLag, usedLag, regression, false)
	res, err := OLS(y, design)
	if err != nil {
		return nil, fmt.Errorf("adf regression: %w", err)
	}

	adfStat := res.TValues[0]
	nobs := len(y)
	pValue := MacKinnonP(adfStat, regression)

	return &ADFResult{
		Statistic:    adfStat,
		PValue:       pValue,
		Lags:         usedLag,
		NObs:         nobs,
		CriticalVals: MacKinnonCrit(regression, nobs),
		ICBest:       icBest,
		Regression:   regression,
		IsStationary: pValue < 0.05,
	}, nil
}

// adfDesign builds the response and regressors for lag k on the sample that
// allows sampleLag lags. Columns are the lagged level, k lagged differences,
// then the deterministic terms; trendFirst moves the deterministic terms to the front.
func adfDesign(x, xdiff []float64, k, sampleLag int, regression string, trendFirst bool) ([]float64, *mat.Dense) {
	nobs := len(xdiff) - sampleLag
	start := sampleLag

	ntrend := 0
	switch regression {
	case "c":
		ntrend = 1
	case "ct":
		ntrend = 2
	}
	cols := 1 + k + ntrend

	y := make([]float64, nobs)
	design := mat.NewDense(nobs, cols, nil)
	for i := 0; i < nobs; i++ {
		t := start + i
		y[i] = xdiff[t]

		row := make([]float64, 0, cols)
		if trendFirst {
			row = appendTrend(row, regression, i)
		}
		row = append(row, x[t])
		for j := 1; j <= k; j++ {
			row = append(row, xdiff[t-j])
		}
		if !trendFirst {
			row = appendTrend(row, regression, i)
		}
		design.SetRow(i, row)
	}
	return y, design
}

func appendTrend(row []float64, regression string, i int) []float64 {
	switch regression {
	case "c":
		row = append(row, 1)
	case "ct":
		row = append(row, 1, float64(i+1))
	}
	return row
}

// adfAutolag fits lags 0..maxLag on the sample of maxLag and picks one.
func adfAutolag(x, xdiff []float64, maxLag int, regression, method string) (int, float64, error) {
	fits := make([]*OLSResult, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		y, design := adfDesign(x, xdiff, k, maxLag, regression, true)
		res, err := OLS(y, design)
		if err != nil {
			return 0, 0, fmt.Errorf("adf lag %d: %w", k, err)
		}
		fits[k] = res
	}

	switch method {
	case "t-stat":
		const stop = 1.6448536269514722
		best := 0
		ic := 0.0
		for k := maxLag; k >= 0; k-- {
			tv := fits[k].TValues
			ic = math.Abs(tv[len(tv)-1])
			best = k
			if ic >= stop {
				break
			}
		}
		return best, ic, nil
	case "bic":
		best := 0
		for k := 1; k <= maxLag; k++ {
			if fits[k].BIC() < fits[best].BIC() {
				best = k
			}
		}
		return best, fits[best].BIC(), nil
	default:
		best := 0
		for k := 1; k <= maxLag; k++ {
			if fits[k].AIC() < fits[best].AIC() {
				best = k
			}
		}
		return best, fits[best].AIC(), nil
	}
}

// MacKinnon (1994) response surface coefficients for a single series.
var (
	tauMax  = map[string]float64{"n": math.Inf(1), "c": 2.74, "ct": 0.7}
	tauMin  = map[string]float64{"n": -19.04, "c": -18.83, "ct": -16.18}
	tauStar = map[string]float64{"n": -1.04, "c": -1.61, "ct": -2.89}

	tauSmallP = map[string][]float64{
		"n":  {0.6344, 1.2378, 0.032496},
		"c":  {2.1659, 1.4412, 0.038269},
		"ct": {3.2512, 1.6047, 0.049588},
	}
	tauLargeP = map[string][]float64{
		"n":  {0.4797, 0.93557, -0.06999, 0.033066},
		"c":  {1.7339, 0.93202, -0.12745, -0.010368},
		"ct": {2.5261, 0.61654, -0.37956, -0.060285},
	}

	// MacKinnon (2010) finite-sample critical values: b0 + b1/n + b2/n^2 + b3/n^3.
	tau2010 = map[string][3][4]float64{
		"n": {
			{-2.56574, -2.2358, -3.627, 0},
			{-1.94100, -0.2686, -3.365, 31.223},
			{-1.61682, 0.2656, -2.714, 25.364},
		},
		"c": {
			{-3.43035, -6.5393, -16.786, -79.433},
			{-2.86154, -2.8903, -4.234, -40.040},
			{-2.56677, -1.5384, -2.809, 0},
		},
		"ct": {
			{-3.95877, -9.0531, -28.428, -134.155},
			{-3.41049, -4.3904, -9.036, -45.374},
			{-3.12705, -2.5856, -3.925, -22.380},
		},
	}
)

func polyval(coef []float64, x float64) float64 {
	y := 0.0
	for i := len(coef) - 1; i >= 0; i-- {
		y = y*x + coef[i]
	}
	return y
}

// MacKinnonP returns the approximate p-value of a unit-root t statistic.
func MacKinnonP(tstat float64, regression string) float64 {
	if _, ok := tauMax[regression]; !ok {
		regression = "c"
	}
	switch {
	case tstat > tauMax[regression]:
		return 1
	case tstat < tauMin[regression]:
		return 0
	}
	coef := tauLargeP[regression]
	if tstat <= tauStar[regression] {
		coef = tauSmallP[regression]
	}
	return distuv.UnitNormal.CDF(polyval(coef, tstat))
}

// MacKinnonCrit returns the 1%, 5% and 10% critical values for nobs observations.
func MacKinnonCrit(regression string, nobs int) map[string]float64 {
	table, ok := tau2010[regression]
	if !ok {
		table = tau2010["c"]
	}
	inv := 1 / float64(nobs)
	return map[string]float64{
		"1%":  polyval(table[0][:], inv),
		"5%":  polyval(table[1][:], inv),
		"10%": polyval(table[2][:], inv),
	}
}

// KPSSResult represents the result of a KPSS test.
type KPSSResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	CriticalVals map[string]float64
	IsStationary bool
}

var (
	kpssPVals = []float64{0.10, 0.05, 0.025, 0.01}
	kpssCrit  = map[string][]float64{
		"c":  {0.347, 0.463, 0.574, 0.739},
		"ct": {0.119, 0.146, 0.176, 0.216},
	}
)

// KPSS performs the Kwiatkowski-Phillips-Schmidt-Shin test for stationarity.
// The null hypothesis is that the series is stationary.
// If p-value < 0.05, we reject the null and conclude the series is non-stationary.
func KPSS(series *timeseries.Series, regression string, nlags int) *KPSSResult {
	n := series.Len()
	if n < 10 {
		return nil
	}
	if regression != "ct" {
		regression = "c"
	}

	// Default lag selection
	if nlags <= 0 {
		nlags = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	if nlags >= n {
		nlags = n - 1
	}

	residuals := make([]float64, n)
	if regression == "ct" {
		ts := make([]float64, n)
		for i := range ts {
			ts[i] = float64(i)
		}
		a, b := stat.LinearRegression(ts, series.Values, nil, false)
		for i, v := range series.Values {
			residuals[i] = v - a - b*ts[i]
		}
	} else {
		mean := series.Mean()
		for i, v := range series.Values {
			residuals[i] = v - mean
		}
	}

	// Long-run variance with Bartlett weights
	s2 := 0.0
	for _, r := range residuals {
		s2 += r * r
	}
	s2 /= float64(n)
	for l := 1; l <= nlags; l++ {
		cov := 0.0
		for i := l; i < n; i++ {
			cov += residuals[i] * residuals[i-l]
		}
		cov /= float64(n)
		weight := 1.0 - float64(l)/float64(nlags+1)
		s2 += 2 * weight * cov
	}
	if s2 <= 0 {
		s2 = 1e-10
	}

	etaSq := 0.0
	cum := 0.0
	for _, r := range residuals {
		cum += r
		etaSq += cum * cum
	}
	kpssStat := etaSq / (float64(n) * float64(n) * s2)

	crit := kpssCrit[regression]
	pValue := interpolateDescending(kpssStat, crit, kpssPVals)

	return &KPSSResult{
		Statistic: kpssStat,
		PValue:    pValue,
		Lags:      nlags,
		CriticalVals: map[string]float64{
			"10%":  crit[0],
			"5%":   crit[1],
			"2.5%": crit[2],
			"1%":   crit[3],
		},
		IsStationary: pValue >= 0.05,
	}
}

// interpolateDescending maps x onto pvals by linear interpolation over the
// increasing crit table, clamping at the ends.
func interpolateDescending(x float64, crit, pvals []float64) float64 {
	if x <= crit[0] {
		return pvals[0]
	}
	last := len(crit) - 1
	if x >= crit[last] {
		return pvals[last]
	}
	for i := 1; i <= last; i++ {
		if x <= crit[i] {
			w := (x - crit[i-1]) / (crit[i] - crit[i-1])
			return pvals[i-1] + w*(pvals[i]-pvals[i-1])
		}
	}
	return pvals[last]
}
