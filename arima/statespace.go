package arima

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var errNonStationary = errors.New("arima: parameters are not stationary")

// stateSpace is the Harvey representation of a zero-mean ARMA(p, q):
//
//	alpha[t+1] = T alpha[t] + R eps[t+1]
//	y[t]       = alpha[t][0]
//
// with r = max(p, q+1) states and unit innovation variance.
type stateSpace struct {
	r  int
	T  []float64 // r*r, row-major
	R  []float64
	P0 []float64 // stationary state covariance
}

func newStateSpace(ar, ma []float64) (*stateSpace, error) {
	r := max(len(ar), len(ma)+1)
	ss := &stateSpace{
		r: r,
		T: make([]float64, r*r),
		R: make([]float64, r),
	}
	for i := 0; i < r; i++ {
		if i < len(ar) {
			ss.T[i*r] = ar[i]
		}
		if i+1 < r {
			ss.T[i*r+i+1] = 1
		}
	}
	ss.R[0] = 1
	for j, th := range ma {
		ss.R[j+1] = th
	}

	p0, err := solveLyapunov(ss.T, ss.R, r)
	if err != nil {
		return nil, err
	}
	ss.P0 = p0
	return ss, nil
}

// solveLyapunov returns P with P = T P T' + R R' via (I - T kron T) vec(P) = vec(R R').
func solveLyapunov(t, rv []float64, r int) ([]float64, error) {
	tm := mat.NewDense(r, r, append([]float64(nil), t...))
	var kron mat.Dense
	kron.Kronecker(tm, tm)

	n := r * r
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := -kron.At(i, j)
			if i == j {
				v++
			}
			a.Set(i, j, v)
		}
	}
	b := mat.NewVecDense(n, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < r; j++ {
			b.SetVec(i*r+j, rv[i]*rv[j])
		}
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, errNonStationary
	}
	p := make([]float64, n)
	for i := range p {
		p[i] = x.AtVec(i)
	}
	if p[0] <= 0 || math.IsNaN(p[0]) {
		return nil, errNonStationary
	}
	return p, nil
}

// filterResult holds the output of a Kalman pass with unit innovation variance.
type filterResult struct {
	v     []float64 // one-step prediction errors
	f     []float64 // their variances, in units of sigma2
	a     []float64 // predicted state after the last observation
	p     []float64 // and its covariance
	sumLF float64   // sum of log f
	sumSS float64   // sum of v^2 / f
}

// filter runs the Kalman filter over a zero-mean series.
func (ss *stateSpace) filter(y []float64) (*filterResult, error) {
	r := ss.r
	n := len(y)
	a := make([]float64, r)
	p := append([]float64(nil), ss.P0...)

	res := &filterResult{v: make([]float64, n), f: make([]float64, n)}

	tp := make([]float64, r*r)
	k := make([]float64, r)
	aNext := make([]float64, r)
	pNext := make([]float64, r*r)

	for t := 0; t < n; t++ {
		v := y[t] - a[0]
		f := p[0]
		if f <= 1e-12 || math.IsNaN(f) {
			return nil, errNonStationary
		}
		res.v[t] = v
		res.f[t] = f
		res.sumLF += math.Log(f)
		res.sumSS += v * v / f

		// TP = T*P
		for i := 0; i < r; i++ {
			for j := 0; j < r; j++ {
				s := 0.0
				for l := 0; l < r; l++ {
					s += ss.T[i*r+l] * p[l*r+j]
				}
				tp[i*r+j] = s
			}
		}
		// K = T P Z' / F
		for i := 0; i < r; i++ {
			k[i] = tp[i*r] / f
		}
		for i := 0; i < r; i++ {
			s := k[i] * v
			for l := 0; l < r; l++ {
				s += ss.T[i*r+l] * a[l]
			}
			aNext[i] = s
		}
		// P = T P T' + R R' - K K' F
		for i := 0; i < r; i++ {
			for j := 0; j < r; j++ {
				s := 0.0
				for l := 0; l < r; l++ {
					s += tp[i*r+l] * ss.T[j*r+l]
				}
				pNext[i*r+j] = s + ss.R[i]*ss.R[j] - k[i]*k[j]*f
			}
		}
		a, aNext = aNext, a
		p, pNext = pNext, p
	}

	res.a = a
	res.p = p
	return res, nil
}

// concentratedLogLik is the exact Gaussian log-likelihood with sigma2 replaced by its MLE.
func (fr *filterResult) concentratedLogLik() (loglik, sigma2 float64) {
	n := float64(len(fr.v))
	sigma2 = fr.sumSS / n
	loglik = -n/2*(math.Log(2*math.Pi)+1+math.Log(sigma2)) - fr.sumLF/2
	return loglik, sigma2
}

// logLik is the exact Gaussian log-likelihood for a given sigma2.
func (fr *filterResult) logLik(sigma2 float64) float64 {
	n := float64(len(fr.v))
	return -n/2*math.Log(2*math.Pi) - n/2*math.Log(sigma2) - fr.sumLF/2 - fr.sumSS/(2*sigma2)
}

// forecast projects the final state h steps ahead. Means are for the zero-mean
// series; variances are in units of sigma2.
func (ss *stateSpace) forecast(fr *filterResult, h int) (means, vars []float64) {
	r := ss.r
	a := append([]float64(nil), fr.a...)
	p := append([]float64(nil), fr.p...)
	means = make([]float64, h)
	vars = make([]float64, h)

	tmp := make([]float64, r)
	tp := make([]float64, r*r)
	for step := 0; step < h; step++ {
		means[step] = a[0]
		vars[step] = p[0]

		for i := 0; i < r; i++ {
			s := 0.0
			for l := 0; l < r; l++ {
				s += ss.T[i*r+l] * a[l]
			}
			tmp[i] = s
		}
		copy(a, tmp)

		for i := 0; i < r; i++ {
			for j := 0; j < r; j++ {
				s := 0.0
				for l := 0; l < r; l++ {
					s += ss.T[i*r+l] * p[l*r+j]
				}
				tp[i*r+j] = s
			}
		}
		for i := 0; i < r; i++ {
			for j := 0; j < r; j++ {
				s := 0.0
				for l := 0; l < r; l++ {
					s += tp[i*r+l] * ss.T[j*r+l]
				}
				p[i*r+j] = s + ss.R[i]*ss.R[j]
			}
		}
	}
	return means, vars
}
