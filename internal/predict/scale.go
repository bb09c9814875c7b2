package predict

import "math"

// MinMaxScale returns a copy of x with every column mapped onto [0, 1] using
// that column's minimum and maximum. Constant columns map to 0. NaN cells are
// replaced by the mean of the column's scaled values, or 0 when the whole
// column is NaN.
func MinMaxScale(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	if len(x) == 0 {
		return out
	}
	width := len(x[0])
	for i := range x {
		out[i] = make([]float64, width)
	}

	for j := 0; j < width; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := range x {
			v := x[i][j]
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}

		sum, n := 0.0, 0
		for i := range x {
			v := x[i][j]
			if math.IsNaN(v) {
				out[i][j] = math.NaN()
				continue
			}
			var s float64
			if hi > lo {
				s = (v - lo) / (hi - lo)
			}
			out[i][j] = s
			sum += s
			n++
		}

		fill := 0.0
		if n > 0 {
			fill = sum / float64(n)
		}
		for i := range out {
			if math.IsNaN(out[i][j]) {
				out[i][j] = fill
			}
		}
	}
	return out
}
