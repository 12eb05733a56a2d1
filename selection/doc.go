// Package selection chooses ARIMA orders for a series.
//
// Two approaches are provided. Suggest reads the order off the correlograms,
// the way an analyst inspects ACF and PACF plots. Search fits candidate models
// and keeps the one with the lowest information criterion.
//
// # Reading the Correlograms
//
// For a stationary series, a PACF that cuts off after lag p suggests AR(p) and
// an ACF that cuts off after lag q suggests MA(q):
//
//	s, err := selection.Suggest(returns, 0, 5, 5, 0.05)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Suggested ARMA(%d,%d), significant PACF lags %v\n", s.P, s.Q, s.PACFLags)
//
// # Searching Orders
//
//	config := selection.DefaultConfig()
//	config.MaxP, config.MaxQ = 3, 3
//	config.Criterion = "bic"
//
//	result, err := selection.Search(series, config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Best model: ARIMA%s, %d models evaluated\n", result.Order, result.ModelsEvaluated)
//	forecasts, _ := result.Model.Predict(2)
//
// When Config.D is negative the differencing order is chosen with KPSS and
// ADF tests before the search starts.
//
// # Search Methods
//
//   - Stepwise (default): starts from a few simple orders and moves to better neighbours
//   - Grid: every p <= MaxP and q <= MaxQ (set Stepwise=false)
//
// Set Config.OnCandidate to observe every candidate as it is evaluated.
package selection
