package pipeline

import (
	"math"
	"strconv"
	"time"

	"github.com/sartorproj/stockarima/timeseries"
)

// Float marshals NaN and infinities as JSON null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func floats(values []float64) []Float {
	if values == nil {
		return nil
	}
	out := make([]Float, len(values))
	for i, v := range values {
		out[i] = Float(v)
	}
	return out
}

// Point is one dated observation.
type Point struct {
	Date  string `json:"date"`
	Value Float  `json:"value"`
}

// CoefficientDoc is one row of the parameter table.
type CoefficientDoc struct {
	Name     string `json:"name"`
	Estimate Float  `json:"coef"`
	StdErr   Float  `json:"std_err"`
	Z        Float  `json:"z"`
	P        Float  `json:"p_value"`
}

// ModelDoc describes the fitted model.
type ModelDoc struct {
	ModelName       string           `json:"model_name"`
	Order           string           `json:"order"`
	Method          string           `json:"method"`
	AIC             Float            `json:"aic"`
	AICc            Float            `json:"aicc"`
	BIC             Float            `json:"bic"`
	HQIC            Float            `json:"hqic"`
	LogLik          Float            `json:"log_likelihood"`
	Sigma2          Float            `json:"sigma2"`
	Converged       bool             `json:"converged"`
	Coefficients    []CoefficientDoc `json:"coefficients"`
	ModelsEvaluated int              `json:"models_evaluated,omitempty"`
	SuggestedOrder  string           `json:"suggested_order,omitempty"` // ACF/PACF suggested order
}

// ForecastDoc is one forecast step.
type ForecastDoc struct {
	Step         int    `json:"step"`
	Date         string `json:"date,omitempty"`
	Mean         Float  `json:"mean"`
	StdErr       Float  `json:"std_err"`
	Lower        Float  `json:"lower"`
	Upper        Float  `json:"upper"`
	ImpliedClose Float  `json:"implied_close"`
}

// HoldoutDoc holds the holdout accuracy metrics.
type HoldoutDoc struct {
	Weeks     int     `json:"weeks"`
	RMSE      Float   `json:"rmse"`
	MAE       Float   `json:"mae"`
	MAPE      Float   `json:"mape"`
	Actual    []Float `json:"actual"`
	Predicted []Float `json:"predicted"`
}

// Document is the JSON export of a run.
type Document struct {
	RunID        string                 `json:"run_id"`
	Input        string                 `json:"input"`
	StartedAt    time.Time              `json:"started_at"`
	DurationMS   int64                  `json:"duration_ms"`
	NObs         int                    `json:"n_obs"`
	Weekly       []Point                `json:"weekly_close"`
	Returns      []Point                `json:"log_returns"`
	Stationarity map[string]interface{} `json:"stationarity"`
	ACF          []Float                `json:"acf"`
	ACFBounds    []Float                `json:"acf_bounds"`
	PACF         []Float                `json:"pacf"`
	PACFBounds   []Float                `json:"pacf_bounds"`
	Model        ModelDoc               `json:"model"`
	Forecast     []ForecastDoc          `json:"forecast"`
	Alpha        float64                `json:"alpha"`
	Diagnostics  map[string]interface{} `json:"diagnostics"`
	Holdout      *HoldoutDoc            `json:"holdout,omitempty"`
}

func points(s *timeseries.Series) []Point {
	out := make([]Point, s.Len())
	for i, v := range s.Values {
		out[i] = Point{Date: s.Timestamps[i].Format("2006-01-02"), Value: Float(v)}
	}
	return out
}

// Document converts the result into its JSON export form.
func (res *Result) Document() *Document {
	doc := &Document{
		RunID:        res.RunID,
		Input:        res.Input,
		StartedAt:    res.StartedAt,
		DurationMS:   res.Duration.Milliseconds(),
		NObs:         res.Returns.Len(),
		Weekly:       points(res.Weekly),
		Returns:      points(res.Returns),
		Stationarity: make(map[string]interface{}),
		Diagnostics:  make(map[string]interface{}),
	}

	if adf := res.ADF; adf != nil {
		doc.Stationarity["adf_statistic"] = Float(adf.Statistic)
		doc.Stationarity["adf_pvalue"] = Float(adf.PValue)
		doc.Stationarity["adf_lags"] = adf.Lags
		doc.Stationarity["adf_nobs"] = adf.NObs
		doc.Stationarity["adf_regression"] = adf.Regression
		doc.Stationarity["adf_icbest"] = Float(adf.ICBest)
		doc.Stationarity["adf_stationary"] = adf.IsStationary
		crit := make(map[string]Float, len(adf.CriticalVals))
		for k, v := range adf.CriticalVals {
			crit[k] = Float(v)
		}
		doc.Stationarity["adf_critical_values"] = crit
	}
	if kpss := res.KPSS; kpss != nil {
		doc.Stationarity["kpss_statistic"] = Float(kpss.Statistic)
		doc.Stationarity["kpss_pvalue"] = Float(kpss.PValue)
		doc.Stationarity["kpss_stationary"] = kpss.IsStationary
	}
	if res.ACF != nil {
		doc.ACF, doc.ACFBounds = floats(res.ACF.Values), floats(res.ACF.Bounds)
	}
	if res.PACF != nil {
		doc.PACF, doc.PACFBounds = floats(res.PACF.Values), floats(res.PACF.Bounds)
	}

	if m := res.Model; m != nil {
		doc.Model = ModelDoc{
			ModelName: "ARIMA",
			Order:     res.Order.String(),
			Method:    m.Method,
			AIC:       Float(m.AIC),
			AICc:      Float(m.AICc),
			BIC:       Float(m.BIC),
			HQIC:      Float(m.HQIC),
			LogLik:    Float(m.LogLik),
			Sigma2:    Float(m.Variance),
			Converged: m.Converged(),
		}
		for _, c := range m.Coefficients() {
			doc.Model.Coefficients = append(doc.Model.Coefficients, CoefficientDoc{
				Name: c.Name, Estimate: Float(c.Estimate), StdErr: Float(c.StdErr), Z: Float(c.Z), P: Float(c.P),
			})
		}
	}
	if res.Search != nil {
		doc.Model.ModelName = "Auto-ARIMA"
		doc.Model.ModelsEvaluated = res.Search.ModelsEvaluated
	}
	if s := res.Suggested; s != nil {
		doc.Model.SuggestedOrder = "(" + strconv.Itoa(s.P) + "," + strconv.Itoa(res.Order.D) + "," + strconv.Itoa(s.Q) + ")"
	}

	if fc := res.Forecast; fc != nil {
		doc.Alpha = fc.Alpha
		for i := range fc.Mean {
			f := ForecastDoc{
				Step:   i + 1,
				Mean:   Float(fc.Mean[i]),
				StdErr: Float(fc.StdErr[i]),
				Lower:  Float(fc.Lower[i]),
				Upper:  Float(fc.Upper[i]),
			}
			if i < len(fc.Timestamps) {
				f.Date = fc.Timestamps[i].Format("2006-01-02")
			}
			if i < len(res.ImpliedClose) {
				f.ImpliedClose = Float(res.ImpliedClose[i])
			}
			doc.Forecast = append(doc.Forecast, f)
		}
	}

	if s := res.Summary; s != nil {
		if s.LjungBox != nil {
			doc.Diagnostics["ljung_box_lags"] = s.LjungBox.Lags
			doc.Diagnostics["ljung_box_q"] = Float(s.LjungBox.Statistic)
			doc.Diagnostics["ljung_box_pvalue"] = Float(s.LjungBox.PValue)
		}
		if s.JarqueBera != nil {
			doc.Diagnostics["jarque_bera"] = Float(s.JarqueBera.Statistic)
			doc.Diagnostics["jarque_bera_pvalue"] = Float(s.JarqueBera.PValue)
			doc.Diagnostics["skew"] = Float(s.JarqueBera.Skew)
			doc.Diagnostics["kurtosis"] = Float(s.JarqueBera.Kurtosis)
		}
		if s.DurbinWatson != nil {
			doc.Diagnostics["durbin_watson"] = Float(s.DurbinWatson.Statistic)
		}
	}

	if h := res.Holdout; h != nil {
		doc.Holdout = &HoldoutDoc{
			Weeks:     h.Weeks,
			RMSE:      Float(h.RMSE),
			MAE:       Float(h.MAE),
			MAPE:      Float(h.MAPE),
			Actual:    floats(h.Actual),
			Predicted: floats(h.Predicted),
		}
	}
	return doc
}
