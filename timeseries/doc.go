// Package timeseries provides time series data structures and utilities.
//
// This package includes the Series type for representing dated price data,
// along with functions for loading, resampling and transformation.
//
// # Creating a Series
//
// Create an undated series from a slice, or a dated one with timestamps:
//
//	values := []float64{100, 102, 105, 103, 108, 110}
//	series := timeseries.New(values)
//
//	dated, err := timeseries.NewWithTimestamps(days, values)
//
// # Loading Prices
//
// Load a price file with "date" and "close" columns:
//
//	series, err := timeseries.LoadCSV("prices.csv", timeseries.DefaultCSVOptions())
//
//	// From any reader
//	series, err := timeseries.LoadPriceCSV(resp.Body)
//
//	// From a workbook, first sheet
//	series, err := timeseries.LoadPriceXLSX(file, "")
//
// Rows with a missing close (NA, NaN, empty) are skipped. A row whose date
// cannot be parsed is an error.
//
// # Resampling
//
// Bucket daily prices into calendar weeks ending on Sunday:
//
//	weekly, err := series.ResampleWeekly()
//
//	// Other rules and aggregations
//	monthly, err := series.Resample(timeseries.Rule{Frequency: timeseries.Monthly}, timeseries.Last)
//
// The input is sorted first. Weeks without observations are omitted.
//
// # Basic Statistics
//
//	mean := series.Mean()
//	std := series.Std()
//	median := series.Median()
//
// # Transformations
//
//	diff := series.Diff()          // First difference
//	diff2 := series.DiffN(2)       // Lag-2 difference
//	logged := series.Log()         // Natural log
//	returns := series.LogReturns() // ln(x[t]) - ln(x[t-1])
//	clean := series.DropNaN()
//
// # Slicing and Manipulation
//
//	subset := series.Slice(10, 50)
//	last := series.Tail(20)
//	lagged := series.Lag(1)
//	copy := series.Copy()
//
// # Writing
//
//	err := timeseries.SaveCSV(series, w) // "ds,y" rows
package timeseries
