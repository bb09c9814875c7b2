package domain

import "math"

// MonthlyStat summarizes one station/year/month/element. Mean, Min and Max are
// NaN when there was no data even after the climatological fallback.
type MonthlyStat struct {
	Mean     float64
	Min      float64
	Max      float64
	Count    int  // number of values summarized
	Fallback bool // computed from every year's values for the calendar month
}

// HasData reports whether the statistic was computed from at least one value.
func (s MonthlyStat) HasData() bool { return s.Count > 0 }

// Summarize computes mean, min and max of values.
func Summarize(values []int) MonthlyStat {
	if len(values) == 0 {
		return MonthlyStat{Mean: math.NaN(), Min: math.NaN(), Max: math.NaN()}
	}
	lo, hi := values[0], values[0]
	sum := 0
	for _, v := range values {
		sum += v
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return MonthlyStat{
		Mean:  float64(sum) / float64(len(values)),
		Min:   float64(lo),
		Max:   float64(hi),
		Count: len(values),
	}
}

// Pick returns the value of one statistic.
func (s MonthlyStat) Pick(stat Statistic) float64 {
	switch stat {
	case StatAvg:
		return s.Mean
	case StatMin:
		return s.Min
	case StatMax:
		return s.Max
	default:
		return math.NaN()
	}
}
