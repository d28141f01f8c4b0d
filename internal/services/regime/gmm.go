package regime

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

var ErrSingularCovariance = errors.New("regime: component covariance is not positive definite")

// Mixture is a full-covariance Gaussian mixture fitted by expectation
// maximization.
type Mixture struct {
	Components int
	MaxIter    int
	Tol        float64
	RegCovar   float64
	KMeansIter int
	Seed       int64

	Weights     []float64
	Means       [][]float64
	Covariances []*mat.SymDense
	Converged   bool
	Iterations  int
	LowerBound  float64
}

// FitPredict fits the mixture on x and returns the most probable component
// of every row.
func (m *Mixture) FitPredict(x [][]float64) ([]int, error) {
	n := len(x)
	if n < m.Components {
		return nil, fmt.Errorf("%w: %d samples for %d components", ErrInsufficientSamples, n, m.Components)
	}

	rng := rand.New(rand.NewSource(m.Seed))
	init := kmeans(x, m.Components, m.KMeansIter, rng)
	resp := make([][]float64, n)
	for i, c := range init {
		resp[i] = make([]float64, m.Components)
		resp[i][c] = 1
	}
	m.mStep(x, resp)

	m.Converged = false
	m.LowerBound = math.Inf(-1)
	for iter := 1; iter <= m.MaxIter; iter++ {
		prev := m.LowerBound
		lb, err := m.eStep(x, resp)
		if err != nil {
			return nil, fmt.Errorf("e-step %d: %w", iter, err)
		}
		m.mStep(x, resp)
		m.LowerBound = lb
		m.Iterations = iter
		if math.Abs(lb-prev) < m.Tol {
			m.Converged = true
			break
		}
	}

	// Final e-step so labels agree with the fitted parameters.
	if _, err := m.eStep(x, resp); err != nil {
		return nil, fmt.Errorf("final e-step: %w", err)
	}
	labels := make([]int, n)
	for i := range resp {
		labels[i] = floats.MaxIdx(resp[i])
	}
	return labels, nil
}

// eStep fills resp with posterior responsibilities and returns the mean
// log-likelihood per sample.
func (m *Mixture) eStep(x [][]float64, resp [][]float64) (float64, error) {
	dists := make([]*distmv.Normal, m.Components)
	for k := range dists {
		nd, ok := distmv.NewNormal(m.Means[k], m.Covariances[k], nil)
		if !ok {
			return 0, fmt.Errorf("component %d: %w", k, ErrSingularCovariance)
		}
		dists[k] = nd
	}

	logW := make([]float64, m.Components)
	for k, w := range m.Weights {
		logW[k] = math.Log(w)
	}

	total := 0.0
	lp := make([]float64, m.Components)
	for i, row := range x {
		for k, nd := range dists {
			lp[k] = logW[k] + nd.LogProb(row)
		}
		norm := floats.LogSumExp(lp)
		total += norm
		for k := range lp {
			resp[i][k] = math.Exp(lp[k] - norm)
		}
	}
	return total / float64(len(x)), nil
}

// mStep re-estimates weights, means and covariances from resp.
func (m *Mixture) mStep(x [][]float64, resp [][]float64) {
	n := len(x)
	d := len(x[0])
	eps := 10 * (math.Nextafter(1, 2) - 1)

	m.Weights = make([]float64, m.Components)
	m.Means = make([][]float64, m.Components)
	m.Covariances = make([]*mat.SymDense, m.Components)

	for k := 0; k < m.Components; k++ {
		nk := eps
		mean := make([]float64, d)
		for i, row := range x {
			r := resp[i][k]
			nk += r
			floats.AddScaled(mean, r, row)
		}
		floats.Scale(1/nk, mean)

		cov := mat.NewSymDense(d, nil)
		diff := make([]float64, d)
		for i, row := range x {
			r := resp[i][k]
			if r == 0 {
				continue
			}
			floats.SubTo(diff, row, mean)
			cov.SymRankOne(cov, r, mat.NewVecDense(d, diff))
		}
		cov.ScaleSym(1/nk, cov)
		for j := 0; j < d; j++ {
			cov.SetSym(j, j, cov.At(j, j)+m.RegCovar)
		}

		m.Weights[k] = nk / float64(n)
		m.Means[k] = mean
		m.Covariances[k] = cov
	}
}
