package timeseries

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Frequency is a calendar bucket size used by Resample.
type Frequency int

const (
	Daily Frequency = iota
	Weekly
	Monthly
)

// String returns the short name of the frequency.
func (f Frequency) String() string {
	switch f {
	case Daily:
		return "D"
	case Weekly:
		return "W"
	case Monthly:
		return "M"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// ParseFrequency parses "D", "W" or "M" (case-insensitive, long names accepted).
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "day", "daily":
		return Daily, nil
	case "w", "week", "weekly", "":
		return Weekly, nil
	case "m", "month", "monthly":
		return Monthly, nil
	}
	return 0, fmt.Errorf("unknown frequency %q", s)
}

// Aggregation reduces the values that fall into one bucket.
type Aggregation int

const (
	Mean Aggregation = iota
	Last
	First
	Sum
	Max
	Min
)

// ParseAggregation parses an aggregation name such as "mean" or "last".
func ParseAggregation(s string) (Aggregation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean", "":
		return Mean, nil
	case "last":
		return Last, nil
	case "first":
		return First, nil
	case "sum":
		return Sum, nil
	case "max":
		return Max, nil
	case "min":
		return Min, nil
	}
	return 0, fmt.Errorf("unknown aggregation %q", s)
}

// Rule describes how to bucket a series.
// Weekly buckets end on WeekEnd (zero value: Sunday) and are labelled with that day.
// Monthly buckets are labelled with the last day of the month.
type Rule struct {
	Frequency Frequency
	WeekEnd   time.Weekday
}

// WeeklyRule is the week-ending-Sunday rule.
var WeeklyRule = Rule{Frequency: Weekly, WeekEnd: time.Sunday}

// Label returns the bucket label for t.
// A bucket covers whole calendar days in t's location.
func (r Rule) Label(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch r.Frequency {
	case Weekly:
		ahead := (int(r.WeekEnd) - int(day.Weekday()) + 7) % 7
		return day.AddDate(0, 0, ahead)
	case Monthly:
		return time.Date(day.Year(), day.Month()+1, 0, 0, 0, 0, 0, day.Location())
	default:
		return day
	}
}

// Resample buckets the series by rule and reduces each bucket with agg.
// The input is sorted by timestamp first, so the result does not depend on row order.
// NaN values are ignored. Weekly and monthly results carry every label between
// the first and last non-empty bucket; a bucket without any finite value is NaN.
// Daily buckets without data are omitted.
func (s *Series) Resample(rule Rule, agg Aggregation) (*Series, error) {
	if !s.HasTimestamps() {
		return nil, ErrNoTimestamps
	}
	sorted := s.Sort()

	out := &Series{Name: s.Name}
	var (
		label  time.Time
		bucket []float64
	)
	flush := func() {
		if len(bucket) == 0 {
			return
		}
		out.Timestamps = append(out.Timestamps, label)
		out.Values = append(out.Values, reduce(bucket, agg))
		bucket = bucket[:0]
	}

	for i, ts := range sorted.Timestamps {
		l := rule.Label(ts)
		if i == 0 || !l.Equal(label) {
			flush()
			label = l
		}
		v := sorted.Values[i]
		if math.IsNaN(v) {
			continue
		}
		bucket = append(bucket, v)
	}
	flush()

	if rule.Frequency == Daily || out.Len() < 2 {
		return out, nil
	}
	return out.fillBins(rule), nil
}

// fillBins inserts NaN rows for the labels missing between the first and last row.
func (s *Series) fillBins(rule Rule) *Series {
	last := s.Timestamps[s.Len()-1]
	out := &Series{Name: s.Name}
	i := 0
	for l := s.Timestamps[0]; !l.After(last); l = rule.next(l) {
		v := math.NaN()
		if i < s.Len() && s.Timestamps[i].Equal(l) {
			v = s.Values[i]
			i++
		}
		out.Timestamps = append(out.Timestamps, l)
		out.Values = append(out.Values, v)
	}
	return out
}

// next returns the label following l.
func (r Rule) next(l time.Time) time.Time {
	switch r.Frequency {
	case Weekly:
		return l.AddDate(0, 0, 7)
	case Monthly:
		return time.Date(l.Year(), l.Month()+2, 0, 0, 0, 0, 0, l.Location())
	default:
		return l.AddDate(0, 0, 1)
	}
}

// ResampleWeekly is Resample with WeeklyRule and Mean aggregation.
func (s *Series) ResampleWeekly() (*Series, error) {
	return s.Resample(WeeklyRule, Mean)
}

func reduce(values []float64, agg Aggregation) float64 {
	switch agg {
	case Last:
		return values[len(values)-1]
	case First:
		return values[0]
	case Sum:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum
	case Max:
		m := values[0]
		for _, v := range values[1:] {
			m = math.Max(m, v)
		}
		return m
	case Min:
		m := values[0]
		for _, v := range values[1:] {
			m = math.Min(m, v)
		}
		return m
	default:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	}
}
