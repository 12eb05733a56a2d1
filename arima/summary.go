package arima

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/sartorproj/stockarima/stats"
	"github.com/sartorproj/stockarima/timeseries"
)

// Summary describes a fitted model and its residual diagnostics.
type Summary struct {
	Order        Order
	Method       string
	Coefficients []Coefficient
	ARCoeffs     []float64
	MACoeffs     []float64
	Intercept    float64
	Variance     float64
	AIC          float64
	AICc         float64 // Corrected AIC
	BIC          float64
	HQIC         float64
	LogLik       float64
	NObs         int
	Converged    bool
	LjungBox1    *stats.LjungBoxResult // lag 1, as in the usual results table
	LjungBox     *stats.LjungBoxResult // lag 10, adjusted for p+q
	JarqueBera   *stats.JarqueBeraResult
	DurbinWatson *stats.DurbinWatsonResult
}

// Summary returns a summary of the fitted model.
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}

	resid := m.residuals
	if m.Method == MethodCSS {
		resid = resid[m.Order.P:]
	}
	residSeries := timeseries.New(resid)

	return &Summary{
		Order:        m.Order,
		Method:       m.Method,
		Coefficients: m.Coefficients(),
		ARCoeffs:     append([]float64(nil), m.ARCoeffs...),
		MACoeffs:     append([]float64(nil), m.MACoeffs...),
		Intercept:    m.Intercept,
		Variance:     m.Variance,
		AIC:          m.AIC,
		AICc:         m.AICc,
		BIC:          m.BIC,
		HQIC:         m.HQIC,
		LogLik:       m.LogLik,
		NObs:         len(m.data.Values),
		Converged:    m.converged,
		LjungBox1:    stats.LjungBox(residSeries, 1, 0),
		LjungBox:     stats.LjungBox(residSeries, 10, m.Order.P+m.Order.Q),
		JarqueBera:   stats.JarqueBera(resid),
		DurbinWatson: stats.DurbinWatson(resid),
	}
}

// String renders the summary as a plain-text results table.
func (s *Summary) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "ARIMA%s results (%s)\n", s.Order, s.Method)
	fmt.Fprintf(&b, "No. observations: %d    Log likelihood: %.3f\n", s.NObs, s.LogLik)
	fmt.Fprintf(&b, "AIC: %.3f  AICc: %.3f  BIC: %.3f  HQIC: %.3f\n", s.AIC, s.AICc, s.BIC, s.HQIC)
	if !s.Converged {
		b.WriteString("Warning: optimizer stopped before convergence\n")
	}
	b.WriteString("\n")

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tcoef\tstd err\tz\tP>|z|\t")
	for _, c := range s.Coefficients {
		fmt.Fprintf(tw, "%s\t%.4f\t%s\t%s\t%s\t\n", c.Name, c.Estimate, fmtStat(c.StdErr, 4), fmtStat(c.Z, 3), fmtStat(c.P, 3))
	}
	tw.Flush()
	b.WriteString("\n")

	if s.LjungBox1 != nil {
		fmt.Fprintf(&b, "Ljung-Box (L1) (Q): %.2f  Prob(Q): %.2f\n", s.LjungBox1.Statistic, s.LjungBox1.PValue)
	}
	if s.LjungBox != nil {
		fmt.Fprintf(&b, "Ljung-Box (L%d) (Q): %.2f  Prob(Q): %.2f\n", s.LjungBox.Lags, s.LjungBox.Statistic, s.LjungBox.PValue)
	}
	if s.JarqueBera != nil {
		fmt.Fprintf(&b, "Jarque-Bera (JB): %.2f  Prob(JB): %.2f  Skew: %.2f  Kurtosis: %.2f\n",
			s.JarqueBera.Statistic, s.JarqueBera.PValue, s.JarqueBera.Skew, s.JarqueBera.Kurtosis)
	}
	if s.DurbinWatson != nil {
		fmt.Fprintf(&b, "Durbin-Watson: %.3f\n", s.DurbinWatson.Statistic)
	}

	return b.String()
}

func fmtStat(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "nan"
	}
	return fmt.Sprintf("%.*f", prec, v)
}
