package regime

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes columns to zero mean and unit population variance
// using statistics of the batch it is fitted on.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// FitTransform fits the scaler on x (rows of equal width) and returns the
// standardized copy. Constant columns get scale 1.
func (s *Scaler) FitTransform(x [][]float64) [][]float64 {
	if len(x) == 0 {
		return nil
	}
	d := len(x[0])
	n := float64(len(x))
	s.Mean = make([]float64, d)
	s.Scale = make([]float64, d)

	col := make([]float64, len(x))
	for j := 0; j < d; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, variance := stat.MeanVariance(col, nil)
		if len(x) < 2 {
			variance = 0
		}
		// MeanVariance is unbiased; the scaler uses the population form.
		popStd := math.Sqrt(variance * (n - 1) / n)
		if popStd == 0 || math.IsNaN(popStd) {
			popStd = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = popStd
	}

	out := make([][]float64, len(x))
	for i, row := range x {
		z := make([]float64, d)
		for j, v := range row {
			z[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = z
	}
	return out
}
