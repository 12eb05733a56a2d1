package arima

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/stockarima/stats"
	"github.com/sartorproj/stockarima/timeseries"
)

var (
	// ErrInsufficientData is returned when the series is too short for the order.
	ErrInsufficientData = errors.New("insufficient data points for the specified order")
	// ErrNotFitted is returned by methods that need a fitted model.
	ErrNotFitted = errors.New("model must be fitted before prediction")
	// ErrInvalidSteps is returned when a forecast horizon is below one.
	ErrInvalidSteps = errors.New("steps must be at least 1")
)

// Estimation methods.
const (
	MethodMLE = "mle" // exact likelihood via the Kalman filter
	MethodCSS = "css" // conditional sum of squares
)

// Order represents ARIMA model order (p, d, q).
type Order struct {
	P int // AR order (number of autoregressive terms)
	D int // Differencing order
	Q int // MA order (number of moving average terms)
}

// String formats the order as "(p,d,q)".
func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// ParseOrder parses "p,d,q" (parentheses optional).
func ParseOrder(s string) (Order, error) {
	var o Order
	s = strings.Trim(strings.TrimSpace(s), "()")
	if _, err := fmt.Sscanf(strings.ReplaceAll(s, " ", ""), "%d,%d,%d", &o.P, &o.D, &o.Q); err != nil {
		return o, fmt.Errorf("invalid order %q: want p,d,q", s)
	}
	if o.P < 0 || o.D < 0 || o.Q < 0 {
		return o, fmt.Errorf("invalid order %q: negative term", s)
	}
	return o, nil
}

// Coefficient is one row of the parameter table.
type Coefficient struct {
	Name     string
	Estimate float64
	StdErr   float64
	Z        float64
	P        float64
}

// Model represents an ARIMA model.
type Model struct {
	Order     Order
	Method    string
	ARCoeffs  []float64 // AR coefficients (phi)
	MACoeffs  []float64 // MA coefficients (theta)
	Intercept float64   // Mean of the differenced series when a constant is included
	Variance  float64   // Innovation variance (sigma2)
	AIC       float64
	AICc      float64 // Corrected AIC for small sample sizes
	BIC       float64
	HQIC      float64
	LogLik    float64

	constant    bool
	constantSet bool
	maxIter     int

	fitted     bool
	data       *timeseries.Series
	diffData   *timeseries.Series
	residuals  []float64
	fittedVals []float64
	coefs      []Coefficient
	ss         *stateSpace
	filtered   *filterResult
	evals      int
	converged  bool
}

// Option configures a Model.
type Option func(*Model)

// WithMethod selects MethodMLE (default) or MethodCSS.
func WithMethod(method string) Option {
	return func(m *Model) { m.Method = strings.ToLower(method) }
}

// WithConstant sets whether a mean is estimated. The default is true when D == 0.
func WithConstant(include bool) Option {
	return func(m *Model) {
		m.constant = include
		m.constantSet = true
	}
}

// WithMaxIter bounds the optimizer's iterations.
func WithMaxIter(n int) Option {
	return func(m *Model) { m.maxIter = n }
}

// New creates a new ARIMA model with the specified order.
func New(p, d, q int, opts ...Option) *Model {
	m := &Model{
		Order:    Order{P: p, D: d, Q: q},
		Method:   MethodMLE,
		ARCoeffs: make([]float64, p),
		MACoeffs: make([]float64, q),
		maxIter:  2000,
	}
	for _, opt := range opts {
		opt(m)
	}
	if !m.constantSet {
		m.constant = d == 0
	}
	return m
}

// HasConstant reports whether the model estimates a mean.
func (m *Model) HasConstant() bool {
	return m.constant
}

// NumParams returns the number of estimated parameters, sigma2 included.
func (m *Model) NumParams() int {
	k := m.Order.P + m.Order.Q + 1
	if m.constant {
		k++
	}
	return k
}

// Fit fits the ARIMA model to the given time series data.
func (m *Model) Fit(series *timeseries.Series) error {
	if m.Order.P < 0 || m.Order.D < 0 || m.Order.Q < 0 {
		return fmt.Errorf("invalid order %s", m.Order)
	}
	if m.Method != MethodMLE && m.Method != MethodCSS {
		return fmt.Errorf("unknown estimation method %q", m.Method)
	}
	if series.Len() < m.Order.P+m.Order.Q+m.Order.D+10 {
		return ErrInsufficientData
	}
	for _, v := range series.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("series contains non-finite values")
		}
	}

	m.data = series

	// Apply differencing
	diffSeries := series
	for i := 0; i < m.Order.D; i++ {
		diffSeries = diffSeries.Diff()
		if diffSeries.Len() == 0 {
			return errors.New("differencing resulted in empty series")
		}
	}
	m.diffData = diffSeries

	y := diffSeries.Values
	scale := stat.StdDev(y, nil)
	if scale == 0 || math.IsNaN(scale) {
		return errors.New("differenced series has zero variance")
	}

	if err := m.estimate(y, scale); err != nil {
		return err
	}

	m.calculateIC()
	m.fitted = true
	return nil
}

// layout of the unconstrained parameter vector: [mean?, ar..., ma...]
func (m *Model) decode(x []float64) (mu float64, ar, ma []float64) {
	i := 0
	if m.constant {
		mu = x[0]
		i = 1
	}
	ar = constrainStationary(x[i : i+m.Order.P])
	ma = constrainInvertible(x[i+m.Order.P : i+m.Order.P+m.Order.Q])
	if ar == nil {
		ar = []float64{}
	}
	if ma == nil {
		ma = []float64{}
	}
	return mu, ar, ma
}

// estimate fits on y/scale so the optimizer sees unit-variance data.
func (m *Model) estimate(y []float64, scale float64) error {
	p, q := m.Order.P, m.Order.Q
	n := len(y)

	z := make([]float64, n)
	for i, v := range y {
		z[i] = v / scale
	}
	zMean := 0.0
	if m.constant {
		zMean = stat.Mean(z, nil)
	}
	demeaned := make([]float64, n)
	for i, v := range z {
		demeaned[i] = v - zMean
	}

	ar0, ma0 := startingValues(demeaned, p, q)
	x0 := make([]float64, 0, p+q+1)
	if m.constant {
		x0 = append(x0, zMean)
	}
	if u := unconstrainStationary(ar0); u != nil {
		x0 = append(x0, u...)
	} else {
		x0 = append(x0, make([]float64, p)...)
	}
	if u := unconstrainInvertible(ma0); u != nil {
		x0 = append(x0, u...)
	} else {
		x0 = append(x0, make([]float64, q)...)
	}

	objective := func(x []float64) float64 {
		mu, ar, ma := m.decode(x)
		ll, ok := m.profileLogLik(z, mu, ar, ma)
		if !ok {
			return 1e10
		}
		return -ll / float64(n)
	}

	best := x0
	if len(x0) > 0 {
		problem := optimize.Problem{Func: objective}
		settings := &optimize.Settings{
			MajorIterations: m.maxIter,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-10,
				Relative:   1e-10,
				Iterations: 200,
			},
		}
		res, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
		if res == nil || math.IsNaN(res.F) || res.F >= 1e10 {
			if err == nil {
				err = errors.New("no feasible parameters")
			}
			return fmt.Errorf("optimizer: %w", err)
		}
		best = res.X
		m.evals = res.FuncEvaluations
		m.converged = err == nil && res.Status != optimize.IterationLimit && res.Status != optimize.FunctionEvaluationLimit
	} else {
		m.converged = true
	}

	muZ, ar, ma := m.decode(best)
	m.ARCoeffs = ar
	m.MACoeffs = ma
	m.Intercept = muZ * scale

	return m.finish(y, z, scale, muZ)
}

// profileLogLik evaluates the objective on the scaled series.
func (m *Model) profileLogLik(z []float64, mu float64, ar, ma []float64) (float64, bool) {
	if m.Method == MethodCSS {
		ll, _ := cssLogLik(z, mu, ar, ma)
		return ll, !math.IsNaN(ll) && !math.IsInf(ll, 0)
	}
	ss, err := newStateSpace(ar, ma)
	if err != nil {
		return 0, false
	}
	fr, err := ss.filter(demean(z, mu))
	if err != nil {
		return 0, false
	}
	ll, s2 := fr.concentratedLogLik()
	return ll, s2 > 0 && !math.IsNaN(ll)
}

// finish computes residuals, sigma2, log-likelihood and standard errors on the original scale.
func (m *Model) finish(y, z []float64, scale, muZ float64) error {
	ss, err := newStateSpace(m.ARCoeffs, m.MACoeffs)
	if err != nil {
		return err
	}
	fr, err := ss.filter(demean(y, m.Intercept))
	if err != nil {
		return err
	}
	m.ss = ss
	m.filtered = fr

	if m.Method == MethodCSS {
		ll, resid := cssLogLik(y, m.Intercept, m.ARCoeffs, m.MACoeffs)
		m.LogLik = ll
		m.residuals = resid
		sse := 0.0
		for _, r := range resid[m.Order.P:] {
			sse += r * r
		}
		m.Variance = sse / float64(len(resid)-m.Order.P)
	} else {
		m.LogLik, m.Variance = fr.concentratedLogLik()
		m.residuals = append([]float64(nil), fr.v...)
	}

	m.fittedVals = make([]float64, len(y))
	for i, v := range y {
		m.fittedVals[i] = v - m.residuals[i]
	}

	m.coefs = m.standardErrors(z, scale, muZ)
	return nil
}

func demean(y []float64, mu float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = v - mu
	}
	return out
}

// cssLogLik returns the conditional log-likelihood and residuals, treating
// the first p residuals and all pre-sample shocks as zero.
func cssLogLik(y []float64, mu float64, ar, ma []float64) (float64, []float64) {
	n := len(y)
	p := len(ar)
	resid := make([]float64, n)
	sse := 0.0
	for t := p; t < n; t++ {
		pred := 0.0
		for i, a := range ar {
			pred += a * (y[t-i-1] - mu)
		}
		for j, th := range ma {
			if t-j-1 >= 0 {
				pred += th * resid[t-j-1]
			}
		}
		resid[t] = y[t] - mu - pred
		sse += resid[t] * resid[t]
	}
	nEff := float64(n - p)
	if nEff <= 0 || sse <= 0 {
		return math.NaN(), resid
	}
	sigma2 := sse / nEff
	return -nEff / 2 * (math.Log(2*math.Pi) + math.Log(sigma2) + 1), resid
}

// standardErrors inverts the numerical Hessian of the log-likelihood in
// [mean?, ar..., ma..., sigma2] on the scaled data, then rescales.
func (m *Model) standardErrors(z []float64, scale, muZ float64) []Coefficient {
	p, q := m.Order.P, m.Order.Q
	sigma2Z := m.Variance / (scale * scale)

	theta := make([]float64, 0, m.NumParams())
	if m.constant {
		theta = append(theta, muZ)
	}
	theta = append(theta, m.ARCoeffs...)
	theta = append(theta, m.MACoeffs...)
	theta = append(theta, sigma2Z)

	loglik := func(x []float64) float64 {
		i := 0
		mu := 0.0
		if m.constant {
			mu = x[0]
			i = 1
		}
		ar := x[i : i+p]
		ma := x[i+p : i+p+q]
		s2 := x[len(x)-1]
		if s2 <= 0 {
			return math.NaN()
		}
		if m.Method == MethodCSS {
			_, resid := cssLogLik(z, mu, ar, ma)
			sse := 0.0
			for _, r := range resid[p:] {
				sse += r * r
			}
			nEff := float64(len(z) - p)
			return -nEff/2*math.Log(2*math.Pi*s2) - sse/(2*s2)
		}
		ss, err := newStateSpace(ar, ma)
		if err != nil {
			return math.NaN()
		}
		fr, err := ss.filter(demean(z, mu))
		if err != nil {
			return math.NaN()
		}
		return fr.logLik(s2)
	}

	k := len(theta)
	var hess mat.SymDense
	fd.Hessian(&hess, loglik, theta, &fd.Settings{Formula: fd.Central, Step: 1e-4})

	neg := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			neg.SetSym(i, j, -hess.At(i, j))
		}
	}

	se := make([]float64, k)
	for i := range se {
		se[i] = math.NaN()
	}
	var chol mat.Cholesky
	if chol.Factorize(neg) {
		var cov mat.SymDense
		if err := chol.InverseTo(&cov); err == nil {
			for i := 0; i < k; i++ {
				if v := cov.At(i, i); v > 0 {
					se[i] = math.Sqrt(v)
				}
			}
		}
	}

	names := m.paramNames()
	estimates := m.Params()
	out := make([]Coefficient, k)
	for i := range out {
		s := se[i]
		switch {
		case m.constant && i == 0:
			s *= scale
		case i == k-1:
			s *= scale * scale
		}
		c := Coefficient{Name: names[i], Estimate: estimates[i], StdErr: s, Z: math.NaN(), P: math.NaN()}
		if s > 0 {
			c.Z = c.Estimate / s
			c.P = 2 * distuv.UnitNormal.Survival(math.Abs(c.Z))
		}
		out[i] = c
	}
	return out
}

func (m *Model) paramNames() []string {
	var names []string
	if m.constant {
		names = append(names, "const")
	}
	for i := 1; i <= m.Order.P; i++ {
		names = append(names, fmt.Sprintf("ar.L%d", i))
	}
	for i := 1; i <= m.Order.Q; i++ {
		names = append(names, fmt.Sprintf("ma.L%d", i))
	}
	return append(names, "sigma2")
}

// Params returns the estimates in the order const, ar.L1.., ma.L1.., sigma2.
func (m *Model) Params() []float64 {
	var out []float64
	if m.constant {
		out = append(out, m.Intercept)
	}
	out = append(out, m.ARCoeffs...)
	out = append(out, m.MACoeffs...)
	return append(out, m.Variance)
}

// Coefficients returns the parameter table of a fitted model.
func (m *Model) Coefficients() []Coefficient {
	if !m.fitted {
		return nil
	}
	return append([]Coefficient(nil), m.coefs...)
}

// Converged reports whether the optimizer stopped on its convergence test.
func (m *Model) Converged() bool {
	return m.converged
}

// calculateIC calculates AIC, AICc, BIC and HQIC.
func (m *Model) calculateIC() {
	n := len(m.residuals)
	if m.Method == MethodCSS {
		n -= m.Order.P
	}
	ic := stats.CalculateIC(m.LogLik, n, m.NumParams())
	m.AIC = ic.AIC
	m.AICc = ic.AICc
	m.BIC = ic.BIC
	m.HQIC = ic.HQIC
}

// Residuals returns the one-step-ahead prediction errors on the differenced scale.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	result := make([]float64, len(m.residuals))
	copy(result, m.residuals)
	return result
}

// FittedValues returns one-step-ahead predictions on the differenced scale.
func (m *Model) FittedValues() []float64 {
	if !m.fitted {
		return nil
	}
	result := make([]float64, len(m.fittedVals))
	copy(result, m.fittedVals)
	return result
}

// NObs returns the number of observations used in estimation.
func (m *Model) NObs() int {
	if m.diffData == nil {
		return 0
	}
	return m.diffData.Len()
}
