package selection

import (
	"errors"

	"github.com/sartorproj/stockarima/stats"
	"github.com/sartorproj/stockarima/timeseries"
)

// Suggestion is an order read off the correlograms.
type Suggestion struct {
	P        int   // last lag of the leading significant PACF run
	Q        int   // last lag of the leading significant ACF run
	PACFLags []int // every significant PACF lag
	ACFLags  []int // every significant ACF lag
}

// Suggest proposes p from the PACF cutoff and q from the ACF cutoff of a
// stationary series, capped at maxP and maxQ. maxLag <= 0 uses stats.DefaultLags.
func Suggest(series *timeseries.Series, maxLag, maxP, maxQ int, alpha float64) (*Suggestion, error) {
	if maxLag <= 0 {
		maxLag = stats.DefaultLags(series.Len())
	}
	acf := stats.ACFWithConfidence(series, maxLag, alpha)
	pacf := stats.PACFWithConfidence(series, maxLag, alpha)
	if acf == nil || pacf == nil {
		return nil, errors.New("series too short or constant for correlograms")
	}

	s := &Suggestion{
		P:        stats.LeadingSignificant(pacf.Values, pacf.Bounds),
		Q:        stats.LeadingSignificant(acf.Values, acf.Bounds),
		PACFLags: stats.SignificantLags(pacf.Values, pacf.Bounds),
		ACFLags:  stats.SignificantLags(acf.Values, acf.Bounds),
	}
	if maxP >= 0 && s.P > maxP {
		s.P = maxP
	}
	if maxQ >= 0 && s.Q > maxQ {
		s.Q = maxQ
	}
	return s, nil
}
