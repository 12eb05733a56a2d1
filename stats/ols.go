package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a regression design matrix is rank deficient.
var ErrSingular = errors.New("singular design matrix")

// OLSResult holds the output of an ordinary least squares fit.
type OLSResult struct {
	Params    []float64
	StdErrors []float64
	TValues   []float64
	Residuals []float64
	SSR       float64
	LogLik    float64
	NObs      int
	K         int
}

// AIC returns -2*LogLik + 2*K.
func (r *OLSResult) AIC() float64 {
	return -2*r.LogLik + 2*float64(r.K)
}

// BIC returns -2*LogLik + log(n)*K.
func (r *OLSResult) BIC() float64 {
	return -2*r.LogLik + math.Log(float64(r.NObs))*float64(r.K)
}

// OLS regresses y on the columns of x.
// The log-likelihood is the Gaussian one with the variance estimated as SSR/n.
func OLS(y []float64, x *mat.Dense) (*OLSResult, error) {
	n, k := x.Dims()
	if n != len(y) {
		return nil, errors.New("ols: row count does not match response length")
	}
	if n <= k {
		return nil, errors.New("ols: not enough observations")
	}

	var qr mat.QR
	qr.Factorize(x)

	yv := mat.NewVecDense(n, append([]float64(nil), y...))
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, yv); err != nil {
		return nil, ErrSingular
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	resid := make([]float64, n)
	ssr := 0.0
	for i := 0; i < n; i++ {
		resid[i] = y[i] - fitted.AtVec(i)
		ssr += resid[i] * resid[i]
	}

	var xtx, inv mat.Dense
	xtx.Mul(x.T(), x)
	if err := inv.Inverse(&xtx); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, ErrSingular
		}
	}

	s2 := ssr / float64(n-k)
	params := make([]float64, k)
	se := make([]float64, k)
	tv := make([]float64, k)
	for i := 0; i < k; i++ {
		params[i] = beta.AtVec(i)
		se[i] = math.Sqrt(s2 * inv.At(i, i))
		tv[i] = params[i] / se[i]
	}

	nf := float64(n)
	llf := -nf / 2 * (math.Log(2*math.Pi) + math.Log(ssr/nf) + 1)

	return &OLSResult{
		Params:    params,
		StdErrors: se,
		TValues:   tv,
		Residuals: resid,
		SSR:       ssr,
		LogLik:    llf,
		NObs:      n,
		K:         k,
	}, nil
}
