package regime

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"RegimeLab/internal/domain/models"
	domsvc "RegimeLab/internal/domain/service"
)

var (
	ErrInsufficientSamples = errors.New("regime: not enough observations to fit")
	ErrInvalidFeature      = errors.New("regime: feature value is not finite")
	ErrEmptyComponent      = errors.New("regime: fitted component has no observations")
)

// Config controls the mixture fit.
type Config struct {
	Components int
	Seed       int64
	MaxIter    int
	Tol        float64
	RegCovar   float64
	KMeansIter int
}

func DefaultConfig() Config {
	return Config{Components: 3, Seed: 42, MaxIter: 100, Tol: 1e-3, RegCovar: 1e-6, KMeansIter: 300}
}

// Model fits a Gaussian mixture on (LogSectorVol, LogVIX) and relabels the
// raw clusters by ascending mean LogVIX. Each FitPredict call refits from
// scratch on the batch it is given.
type Model struct {
	cfg Config

	mu    sync.RWMutex
	stats []models.RegimeStat
}

func NewModel(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// FitPredict classifies every observation. The result is parallel to obs.
func (m *Model) FitPredict(obs []models.Observation) ([]models.Regime, error) {
	k := m.cfg.Components
	if k < 1 {
		return nil, fmt.Errorf("components must be positive, got %d", k)
	}
	if len(obs) < k {
		return nil, fmt.Errorf("%w: %d observations for %d components", ErrInsufficientSamples, len(obs), k)
	}

	x := make([][]float64, len(obs))
	for i, o := range obs {
		if !finite(o.LogSectorVol) || !finite(o.LogVIX) {
			return nil, fmt.Errorf("%w: row %d (%s)", ErrInvalidFeature, i, o.Date.Format("2006-01-02"))
		}
		x[i] = []float64{o.LogSectorVol, o.LogVIX}
	}

	var sc Scaler
	z := sc.FitTransform(x)

	mix := &Mixture{
		Components: k,
		MaxIter:    m.cfg.MaxIter,
		Tol:        m.cfg.Tol,
		RegCovar:   m.cfg.RegCovar,
		KMeansIter: m.cfg.KMeansIter,
		Seed:       m.cfg.Seed,
	}
	raw, err := mix.FitPredict(z)
	if err != nil {
		return nil, fmt.Errorf("fit mixture: %w", err)
	}

	ranked := rankByVIX(obs, raw, k)
	var labels map[int]models.RegimeLabel
	if k == 3 {
		labels, err = threeRegimeLabels(ranked)
		if err != nil {
			return nil, err
		}
	} else {
		labels = ordinalLabels(ranked)
	}

	rankOf := make(map[int]int, len(ranked))
	stats := make([]models.RegimeStat, len(ranked))
	for rank, c := range ranked {
		rankOf[c.cluster] = rank
		stats[rank] = models.RegimeStat{
			ID:         models.RegimeID(rank),
			Label:      labels[rank],
			RawCluster: c.cluster,
			Count:      c.count,
			MeanLogVIX: c.meanVIX,
			Weight:     mix.Weights[c.cluster],
		}
	}

	out := make([]models.Regime, len(obs))
	for i, c := range raw {
		rank := rankOf[c]
		out[i] = models.Regime{ID: models.RegimeID(rank), Label: labels[rank]}
	}

	m.mu.Lock()
	m.stats = stats
	m.mu.Unlock()
	return out, nil
}

// Stats describes the regimes of the last successful fit, ordered by ID.
func (m *Model) Stats() []models.RegimeStat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.RegimeStat, len(m.stats))
	copy(out, m.stats)
	return out
}

type clusterVIX struct {
	cluster int
	count   int
	meanVIX float64
}

// rankByVIX orders the populated clusters by mean unscaled LogVIX. Ties keep
// the lower cluster index first.
func rankByVIX(obs []models.Observation, raw []int, k int) []clusterVIX {
	sums := make([]float64, k)
	counts := make([]int, k)
	for i, c := range raw {
		sums[c] += obs[i].LogVIX
		counts[c]++
	}
	out := make([]clusterVIX, 0, k)
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			continue
		}
		out = append(out, clusterVIX{cluster: c, count: counts[c], meanVIX: sums[c] / float64(counts[c])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].meanVIX < out[j].meanVIX })
	return out
}

// threeRegimeLabels names the calm, transition and crisis regimes. All three
// clusters must be populated.
func threeRegimeLabels(ranked []clusterVIX) (map[int]models.RegimeLabel, error) {
	if len(ranked) != 3 {
		return nil, fmt.Errorf("%w: %d of 3 populated", ErrEmptyComponent, len(ranked))
	}
	return map[int]models.RegimeLabel{
		0: models.LabelBullCalm,
		1: models.LabelTransition,
		2: models.LabelCrisisCrash,
	}, nil
}

func ordinalLabels(ranked []clusterVIX) map[int]models.RegimeLabel {
	out := make(map[int]models.RegimeLabel, len(ranked))
	for rank := range ranked {
		out[rank] = models.OrdinalLabel(rank)
	}
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

var _ domsvc.RegimeClassifier = (*Model)(nil)
