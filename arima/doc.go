// Package arima implements AutoRegressive Integrated Moving Average (ARIMA) models.
//
// An ARIMA(p,d,q) model combines:
//   - AR(p): AutoRegressive component with p lags
//   - I(d): Integration (differencing) of order d
//   - MA(q): Moving Average component with q lags
//
// # Estimation
//
// Fit differences the series d times and estimates an ARMA(p,q) on the result.
// The default method ("mle") maximises the exact Gaussian likelihood computed by
// a Kalman filter over the state-space form of the model; "css" minimises the
// conditional sum of squares instead. Parameters are searched in a transformed
// space so every candidate is stationary and invertible. Standard errors come
// from the numerical Hessian at the optimum.
//
// # Basic Usage
//
//	// ARIMA(3,0,1) on weekly log-returns
//	model := arima.New(3, 0, 1)
//	if err := model.Fit(returns); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(model.Summary())
//
//	fc, _ := model.Forecast(2, 0.05)
//	for i, ts := range fc.Timestamps {
//	    fmt.Printf("%s %.5f [%.5f, %.5f]\n", ts.Format("2006-01-02"), fc.Mean[i], fc.Lower[i], fc.Upper[i])
//	}
//
// # Options
//
//	model := arima.New(1, 1, 1,
//	    arima.WithMethod(arima.MethodCSS),
//	    arima.WithConstant(true),
//	    arima.WithMaxIter(5000),
//	)
//
// # Residual Analysis
//
// Summary reports Ljung-Box, Jarque-Bera and Durbin-Watson statistics on the
// one-step-ahead residuals. Residuals and FittedValues are on the differenced scale.
//
// For order selection, use the selection package.
package arima
