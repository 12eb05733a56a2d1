package timeseries

import (
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrLengthMismatch is returned when timestamps and values differ in length.
	ErrLengthMismatch = errors.New("timestamps and values must have the same length")
	// ErrNoTimestamps is returned by operations that need a time index.
	ErrNoTimestamps = errors.New("series has no timestamps")
)

// Series represents a time series with timestamps and values.
type Series struct {
	Timestamps []time.Time
	Values     []float64
	Name       string
}

// New creates a new time series from values.
// The series has no time index; use NewWithTimestamps for dated data.
func New(values []float64) *Series {
	return &Series{Values: values}
}

// NewWithTimestamps creates a time series with explicit timestamps.
func NewWithTimestamps(timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, ErrLengthMismatch
	}
	return &Series{
		Timestamps: timestamps,
		Values:     values,
	}, nil
}

// Len returns the length of the series.
func (s *Series) Len() int {
	return len(s.Values)
}

// HasTimestamps reports whether every value carries a timestamp.
func (s *Series) HasTimestamps() bool {
	return len(s.Values) > 0 && len(s.Timestamps) == len(s.Values)
}

// Mean calculates the arithmetic mean of the series.
func (s *Series) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return stat.Mean(s.Values, nil)
}

// Variance calculates the sample variance of the series.
func (s *Series) Variance() float64 {
	if len(s.Values) < 2 {
		return 0
	}
	return stat.Variance(s.Values, nil)
}

// Std calculates the standard deviation of the series.
func (s *Series) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Min returns the minimum value in the series.
func (s *Series) Min() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	min := s.Values[0]
	for _, v := range s.Values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// Max returns the maximum value in the series.
func (s *Series) Max() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	max := s.Values[0]
	for _, v := range s.Values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Median returns the median value of the series.
func (s *Series) Median() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Sort returns a copy of the series ordered by timestamp.
// Rows with equal timestamps keep their input order.
func (s *Series) Sort() *Series {
	out := s.Copy()
	if !out.HasTimestamps() {
		return out
	}
	idx := make([]int, out.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return s.Timestamps[idx[a]].Before(s.Timestamps[idx[b]])
	})
	for i, j := range idx {
		out.Timestamps[i] = s.Timestamps[j]
		out.Values[i] = s.Values[j]
	}
	return out
}

// IsSorted reports whether timestamps are non-decreasing.
func (s *Series) IsSorted() bool {
	for i := 1; i < len(s.Timestamps); i++ {
		if s.Timestamps[i].Before(s.Timestamps[i-1]) {
			return false
		}
	}
	return true
}

// IsStrictlyIncreasing reports whether timestamps are strictly increasing.
func (s *Series) IsStrictlyIncreasing() bool {
	for i := 1; i < len(s.Timestamps); i++ {
		if !s.Timestamps[i].After(s.Timestamps[i-1]) {
			return false
		}
	}
	return true
}

// Diff calculates the first difference of the series (d=1).
func (s *Series) Diff() *Series {
	return s.DiffN(1)
}

// DiffN calculates the lag-n difference x[t] - x[t-n].
func (s *Series) DiffN(n int) *Series {
	if n <= 0 || len(s.Values) <= n {
		return &Series{Values: []float64{}, Name: s.Name + "_diff"}
	}

	result := make([]float64, len(s.Values)-n)
	for i := n; i < len(s.Values); i++ {
		result[i-n] = s.Values[i] - s.Values[i-n]
	}

	return &Series{
		Timestamps: s.tailTimestamps(n),
		Values:     result,
		Name:       s.Name + "_diff",
	}
}

// Log applies natural logarithm transformation.
func (s *Series) Log() *Series {
	result := make([]float64, len(s.Values))
	for i, v := range s.Values {
		if v > 0 {
			result[i] = math.Log(v)
		} else {
			result[i] = math.NaN()
		}
	}

	return &Series{
		Timestamps: copyTimes(s.Timestamps),
		Values:     result,
		Name:       s.Name + "_log",
	}
}

// LogReturns returns ln(x[t]) - ln(x[t-1]).
// The result is one element shorter than the series and is indexed by t.
func (s *Series) LogReturns() *Series {
	r := s.Log().Diff()
	r.Name = s.Name + "_logret"
	return r
}

// DropNaN removes rows whose value is NaN or infinite.
func (s *Series) DropNaN() *Series {
	withTS := s.HasTimestamps()
	out := &Series{Name: s.Name, Values: make([]float64, 0, len(s.Values))}
	if withTS {
		out.Timestamps = make([]time.Time, 0, len(s.Values))
	}
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out.Values = append(out.Values, v)
		if withTS {
			out.Timestamps = append(out.Timestamps, s.Timestamps[i])
		}
	}
	return out
}

// Lag returns a lagged version of the series.
func (s *Series) Lag(k int) *Series {
	if k <= 0 || k >= len(s.Values) {
		return &Series{Values: []float64{}}
	}

	result := make([]float64, len(s.Values)-k)
	copy(result, s.Values[:len(s.Values)-k])

	return &Series{
		Timestamps: s.tailTimestamps(k),
		Values:     result,
		Name:       s.Name + "_lag",
	}
}

// Slice returns a slice of the series from start to end (exclusive).
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > len(s.Values) {
		end = len(s.Values)
	}
	if start >= end {
		return &Series{Values: []float64{}, Name: s.Name}
	}

	values := make([]float64, end-start)
	copy(values, s.Values[start:end])

	var timestamps []time.Time
	if len(s.Timestamps) >= end {
		timestamps = copyTimes(s.Timestamps[start:end])
	}

	return &Series{
		Timestamps: timestamps,
		Values:     values,
		Name:       s.Name,
	}
}

// Tail returns the last n observations.
func (s *Series) Tail(n int) *Series {
	return s.Slice(s.Len()-n, s.Len())
}

// Copy creates a deep copy of the series.
func (s *Series) Copy() *Series {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)

	return &Series{
		Timestamps: copyTimes(s.Timestamps),
		Values:     values,
		Name:       s.Name,
	}
}

// Step returns the median spacing between consecutive timestamps, or 0.
func (s *Series) Step() time.Duration {
	if len(s.Timestamps) < 2 {
		return 0
	}
	gaps := make([]float64, len(s.Timestamps)-1)
	for i := 1; i < len(s.Timestamps); i++ {
		gaps[i-1] = float64(s.Timestamps[i].Sub(s.Timestamps[i-1]))
	}
	sort.Float64s(gaps)
	return time.Duration(gaps[len(gaps)/2])
}

func (s *Series) tailTimestamps(n int) []time.Time {
	if len(s.Timestamps) <= n {
		return nil
	}
	return copyTimes(s.Timestamps[n:])
}

func copyTimes(ts []time.Time) []time.Time {
	if ts == nil {
		return nil
	}
	out := make([]time.Time, len(ts))
	copy(out, ts)
	return out
}
