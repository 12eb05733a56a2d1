package arima

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sartorproj/stockarima/stats"
	"github.com/sartorproj/stockarima/timeseries"
)

// constrainStationary maps unconstrained reals to the coefficients of a
// stationary AR polynomial through partial autocorrelations in (-1, 1).
func constrainStationary(u []float64) []float64 {
	n := len(u)
	if n == 0 {
		return nil
	}
	y := make([]float64, n)
	prev := make([]float64, n)
	for k := 0; k < n; k++ {
		r := u[k] / math.Sqrt(1+u[k]*u[k])
		for i := 0; i < k; i++ {
			y[i] = prev[i] + r*prev[k-i-1]
		}
		y[k] = r
		copy(prev, y)
	}
	out := make([]float64, n)
	for i, v := range y {
		out[i] = -v
	}
	return out
}

// unconstrainStationary inverts constrainStationary. It returns nil when the
// coefficients are not stationary.
func unconstrainStationary(phi []float64) []float64 {
	n := len(phi)
	if n == 0 {
		return nil
	}
	y := make([]float64, n)
	for i, v := range phi {
		y[i] = -v
	}
	r := make([]float64, n)
	for k := n - 1; k >= 0; k-- {
		rk := y[k]
		if math.Abs(rk) >= 1 {
			return nil
		}
		r[k] = rk
		if k == 0 {
			break
		}
		next := make([]float64, k)
		for i := 0; i < k; i++ {
			next[i] = (y[i] - rk*y[k-i-1]) / (1 - rk*rk)
		}
		y = next
	}
	u := make([]float64, n)
	for i, v := range r {
		u[i] = v / math.Sqrt(1-v*v)
	}
	return u
}

// constrainInvertible maps unconstrained reals to invertible MA coefficients.
func constrainInvertible(u []float64) []float64 {
	c := constrainStationary(u)
	for i := range c {
		c[i] = -c[i]
	}
	return c
}

func unconstrainInvertible(theta []float64) []float64 {
	neg := make([]float64, len(theta))
	for i, v := range theta {
		neg[i] = -v
	}
	return unconstrainStationary(neg)
}

// startingValues returns AR and MA starting estimates for a demeaned series.
// Hannan-Rissanen is tried first; failing that the AR part comes from
// Yule-Walker and the MA part starts at zero.
func startingValues(y []float64, p, q int) (ar, ma []float64) {
	ar, ma = hannanRissanen(y, p, q)
	if ar != nil && unconstrainStationary(ar) == nil && p > 0 {
		ar = nil
	}
	if ma != nil && unconstrainInvertible(ma) == nil && q > 0 {
		ma = nil
	}
	if ar == nil {
		ar = make([]float64, p)
		if p > 0 {
			if acf := stats.ACF(timeseries.New(y), p); acf != nil {
				if yw := yuleWalker(acf, p); yw != nil && unconstrainStationary(yw) != nil {
					ar = yw
				}
			}
		}
	}
	if ma == nil {
		ma = make([]float64, q)
	}
	return ar, ma
}

// hannanRissanen estimates ARMA(p, q) by two least squares regressions: a long
// autoregression supplies residuals, which then enter as MA regressors.
func hannanRissanen(y []float64, p, q int) (ar, ma []float64) {
	n := len(y)
	if p == 0 && q == 0 {
		return []float64{}, []float64{}
	}

	if q == 0 {
		params := lagRegression(y, nil, p, 0, p)
		if params == nil {
			return nil, nil
		}
		return params, []float64{}
	}

	m := max(int(math.Floor(math.Pow(math.Log(float64(n)), 2))), 2*max(p, q))
	if m > n/4 {
		m = n / 4
	}
	if m < 1 {
		return nil, nil
	}
	long := lagRegression(y, nil, m, 0, m)
	if long == nil {
		return nil, nil
	}

	resid := make([]float64, n)
	for t := m; t < n; t++ {
		pred := 0.0
		for i := 0; i < m; i++ {
			pred += long[i] * y[t-i-1]
		}
		resid[t] = y[t] - pred
	}

	params := lagRegression(y, resid, p, q, m+q)
	if params == nil {
		return nil, nil
	}
	return params[:p], params[p:]
}

// lagRegression regresses y[t] on p lags of y and q lags of e for t >= start.
func lagRegression(y, e []float64, p, q, start int) []float64 {
	n := len(y)
	rows := n - start
	cols := p + q
	if cols == 0 || rows <= cols+1 {
		return nil
	}
	x := mat.NewDense(rows, cols, nil)
	resp := make([]float64, rows)
	for i := 0; i < rows; i++ {
		t := start + i
		resp[i] = y[t]
		for j := 0; j < p; j++ {
			x.Set(i, j, y[t-j-1])
		}
		for j := 0; j < q; j++ {
			x.Set(i, p+j, e[t-j-1])
		}
	}
	res, err := stats.OLS(resp, x)
	if err != nil {
		return nil
	}
	return res.Params
}

// yuleWalker estimates AR coefficients using Yule-Walker equations.
func yuleWalker(acf []float64, order int) []float64 {
	if order <= 0 || len(acf) <= order {
		return nil
	}

	phi := make([]float64, order)
	phi[0] = acf[1]
	if order == 1 {
		return phi
	}

	// Levinson-Durbin recursion
	v := 1 - phi[0]*phi[0]
	for i := 1; i < order; i++ {
		if v <= 0 {
			break
		}
		lambda := acf[i+1]
		for j := 0; j < i; j++ {
			lambda -= phi[j] * acf[i-j]
		}
		lambda /= v

		newPhi := make([]float64, i+1)
		for j := 0; j < i; j++ {
			newPhi[j] = phi[j] - lambda*phi[i-1-j]
		}
		newPhi[i] = lambda
		copy(phi, newPhi)

		v *= 1 - lambda*lambda
	}

	return phi
}

// psiWeights returns the first h coefficients of the MA(infinity)
// representation of an ARIMA process with d differences.
func psiWeights(ar, ma []float64, d, h int) []float64 {
	// phi*(B) = phi(B)(1-B)^d
	full := []float64{1}
	for _, a := range ar {
		full = append(full, -a)
	}
	for i := 0; i < d; i++ {
		next := make([]float64, len(full)+1)
		for j, c := range full {
			next[j] += c
			next[j+1] -= c
		}
		full = next
	}

	psi := make([]float64, h)
	if h == 0 {
		return psi
	}
	psi[0] = 1
	for j := 1; j < h; j++ {
		v := 0.0
		if j <= len(ma) {
			v = ma[j-1]
		}
		for i := 1; i < len(full) && i <= j; i++ {
			v -= full[i] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}
