package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// Report prints the run the way an analyst reads it: data shape, the
// stationarity test, the correlogram reading, the model table and the forecast.
func (res *Result) Report(w io.Writer) error {
	var b strings.Builder
	rule := strings.Repeat("=", 72)

	fmt.Fprintf(&b, "%s\nRun %s\nInput: %s\n%s\n", rule, res.RunID, res.Input, rule)
	fmt.Fprintf(&b, "Daily observations: %d (%s to %s)\n", res.Prices.Len(),
		res.Prices.Timestamps[0].Format("2006-01-02"),
		res.Prices.Timestamps[res.Prices.Len()-1].Format("2006-01-02"))
	fmt.Fprintf(&b, "Weekly observations: %d, log-returns: %d\n", res.Weekly.Len(), res.Returns.Len())

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nweek\tclose\tlog return")
	head := res.Weekly.Len()
	if head > 5 {
		head = 5
	}
	returns := make(map[time.Time]float64, res.Returns.Len())
	for i, ts := range res.Returns.Timestamps {
		returns[ts] = res.Returns.Values[i]
	}
	for i := 0; i < head; i++ {
		ret := "NaN"
		if v, ok := returns[res.Weekly.Timestamps[i]]; ok {
			ret = fmt.Sprintf("%.6f", v)
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%s\n", res.Weekly.Timestamps[i].Format("2006-01-02"), res.Weekly.Values[i], ret)
	}
	tw.Flush()

	if adf := res.ADF; adf != nil {
		fmt.Fprintf(&b, "\nAugmented Dickey-Fuller (regression %q)\n", adf.Regression)
		fmt.Fprintf(&b, "ADF Statistic: %f\np-value: %g\nLags used: %d, observations: %d\n", adf.Statistic, adf.PValue, adf.Lags, adf.NObs)
		keys := make([]string, 0, len(adf.CriticalVals))
		for k := range adf.CriticalVals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "Critical Value (%s): %.3f\n", k, adf.CriticalVals[k])
		}
		verdict := "non-stationary"
		if adf.IsStationary {
			verdict = "stationary"
		}
		fmt.Fprintf(&b, "Log-returns are %s at the 5%% level\n", verdict)
	}
	if kpss := res.KPSS; kpss != nil {
		fmt.Fprintf(&b, "KPSS Statistic: %f, p-value: %g\n", kpss.Statistic, kpss.PValue)
	}

	if s := res.Suggested; s != nil {
		fmt.Fprintf(&b, "\nSignificant PACF lags: %v\nSignificant ACF lags: %v\n", s.PACFLags, s.ACFLags)
		fmt.Fprintf(&b, "Correlogram reading: p=%d, q=%d\n", s.P, s.Q)
	}
	if res.Search != nil {
		fmt.Fprintf(&b, "Search selected ARIMA%s after %d models\n", res.Search.Order, res.Search.ModelsEvaluated)
	}

	if res.Summary != nil {
		b.WriteString("\n")
		b.WriteString(res.Summary.String())
	}

	if fc := res.Forecast; fc != nil {
		fmt.Fprintf(&b, "\nForecast (%d steps, %.0f%% interval)\n", fc.Steps, 100*(1-fc.Alpha))
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "step\tdate\tmean\tlower\tupper\timplied close\t")
		for i := range fc.Mean {
			date := ""
			if i < len(fc.Timestamps) {
				date = fc.Timestamps[i].Format("2006-01-02")
			}
			implied := ""
			if i < len(res.ImpliedClose) {
				implied = fmt.Sprintf("%.4f", res.ImpliedClose[i])
			}
			fmt.Fprintf(tw, "%d\t%s\t%.6f\t%.6f\t%.6f\t%s\t\n", i+1, date, fc.Mean[i], fc.Lower[i], fc.Upper[i], implied)
		}
		tw.Flush()
	}

	if h := res.Holdout; h != nil {
		fmt.Fprintf(&b, "\nHoldout (%d weeks): RMSE=%.6f MAE=%.6f MAPE=%.2f%%\n", h.Weeks, h.RMSE, h.MAE, h.MAPE)
	}

	if len(res.Artifacts) > 0 {
		b.WriteString("\nArtifacts:\n")
		for _, a := range res.Artifacts {
			fmt.Fprintf(&b, "  %s\n", a)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
