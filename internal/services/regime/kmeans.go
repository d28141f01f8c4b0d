package regime

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// kmeans clusters x into k groups with k-means++ seeding followed by Lloyd
// iterations. It is the initializer for the mixture fit and is fully
// determined by rng.
func kmeans(x [][]float64, k, maxIter int, rng *rand.Rand) []int {
	centers := seedCenters(x, k, rng)
	labels := make([]int, len(x))
	for i := range labels {
		labels[i] = -1
	}

	d := len(x[0])
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, row := range x {
			best := nearest(row, centers)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, d)
		}
		for i, row := range x {
			floats.Add(sums[labels[i]], row)
			counts[labels[i]]++
		}
		for c := range centers {
			// an empty cluster keeps its previous center
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centers[c] = sums[c]
		}
	}
	return labels
}

func seedCenters(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(x)
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(x[rng.Intn(n)]))

	d2 := make([]float64, n)
	for len(centers) < k {
		total := 0.0
		for i, row := range x {
			dist := floats.Distance(row, centers[nearest(row, centers)], 2)
			d2[i] = dist * dist
			total += d2[i]
		}
		if total == 0 {
			centers = append(centers, clone(x[rng.Intn(n)]))
			continue
		}
		target := rng.Float64() * total
		pick := n - 1
		acc := 0.0
		for i, w := range d2 {
			acc += w
			if acc >= target {
				pick = i
				break
			}
		}
		centers = append(centers, clone(x[pick]))
	}
	return centers
}

func nearest(row []float64, centers [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if dist := floats.Distance(row, center, 2); dist < bestDist {
			best, bestDist = c, dist
		}
	}
	return best
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
