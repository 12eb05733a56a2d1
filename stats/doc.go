// Package stats provides statistical tests and analysis functions for time series.
//
// This package includes stationarity tests, autocorrelation functions, and
// diagnostic tests for ARIMA model validation.
//
// # Stationarity Tests
//
// Test whether a time series is stationary:
//
//	// Augmented Dickey-Fuller test
//	// H0: Series has unit root (non-stationary)
//	adf, err := stats.ADF(series, stats.DefaultADFOptions())
//	fmt.Printf("ADF: stat=%.4f, p=%.4f, lags=%d\n",
//	    adf.Statistic, adf.PValue, adf.Lags)
//
//	// Fixed lag, constant and trend
//	adf, err = stats.ADF(series, &stats.ADFOptions{Regression: "ct", MaxLag: 4})
//
//	// KPSS test
//	// H0: Series is stationary
//	kpss := stats.KPSS(series, "c", 0)
//
// The ADF lag is chosen by AIC over 0..ceil(12*(n/100)^(1/4)) on a common
// sample, then the regression is refitted with every usable observation.
// P-values use MacKinnon's (1994) response surface, critical values his
// (2010) finite-sample tables.
//
// # Differencing Analysis
//
//	d := stats.NDiffs(series, 2, "kpss")
//
// # Autocorrelation Functions
//
//	lags := stats.DefaultLags(series.Len())
//
//	acf := stats.ACF(series, lags)
//	pacf := stats.PACF(series, lags)
//
//	// With 95% confidence bounds (Bartlett's formula for the ACF)
//	acfResult := stats.ACFWithConfidence(series, lags, 0.05)
//	significant := stats.SignificantLags(acfResult.Values, acfResult.Bounds)
//
// # Residual Diagnostics
//
//	// Ljung-Box test for autocorrelation
//	lb := stats.LjungBox(residuals, 10, p+q)
//	if lb.PValue > 0.05 {
//	    // Residuals are white noise (good)
//	}
//
//	// Normality
//	jb := stats.JarqueBera(residuals.Values)
//
//	// Durbin-Watson test
//	dw := stats.DurbinWatson(residuals.Values)
//
// # Information Criteria
//
//	ic := stats.CalculateIC(logLik, nObs, nParams) // AIC, AICc, BIC, HQIC
package stats
