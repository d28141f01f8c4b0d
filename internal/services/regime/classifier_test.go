package regime

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
)

// syntheticObservations builds well separated clusters, one per center, in
// interleaved order so cluster membership is independent of position.
func syntheticObservations(centers [][2]float64, perCluster int, seed int64) ([]models.Observation, []int) {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	var obs []models.Observation
	var truth []int
	for i := 0; i < perCluster; i++ {
		for c, ctr := range centers {
			obs = append(obs, models.Observation{
				Date:         start.AddDate(0, 0, len(obs)),
				LogSectorVol: ctr[0] + rng.NormFloat64()*0.03,
				LogVIX:       ctr[1] + rng.NormFloat64()*0.03,
				Regime:       models.RegimeUnknown,
			})
			truth = append(truth, c)
		}
	}
	return obs, truth
}

func TestFitPredictOrdersRegimesByVIX(t *testing.T) {
	// centers deliberately listed out of VIX order
	centers := [][2]float64{{2.0, 3.6}, {0.5, 2.5}, {1.2, 3.0}}
	obs, truth := syntheticObservations(centers, 40, 7)

	m := NewModel(DefaultConfig())
	regimes, err := m.FitPredict(obs)
	require.NoError(t, err)
	require.Len(t, regimes, len(obs))

	want := map[int]models.RegimeID{0: 2, 1: 0, 2: 1}
	for i, r := range regimes {
		assert.Equal(t, want[truth[i]], r.ID, "row %d", i)
	}

	byID := map[models.RegimeID]models.RegimeLabel{
		0: models.LabelBullCalm,
		1: models.LabelTransition,
		2: models.LabelCrisisCrash,
	}
	for _, r := range regimes {
		assert.Equal(t, byID[r.ID], r.Label)
	}

	stats := m.Stats()
	require.Len(t, stats, 3)
	for i := 1; i < len(stats); i++ {
		assert.Less(t, stats[i-1].MeanLogVIX, stats[i].MeanLogVIX)
		assert.Equal(t, models.RegimeID(i), stats[i].ID)
	}
	total := 0
	for _, s := range stats {
		total += s.Count
	}
	assert.Equal(t, len(obs), total)
}

func TestFitPredictIsDeterministic(t *testing.T) {
	obs, _ := syntheticObservations([][2]float64{{0, 2.4}, {1, 3.1}, {2, 3.9}}, 25, 11)

	first, err := NewModel(DefaultConfig()).FitPredict(obs)
	require.NoError(t, err)
	second, err := NewModel(DefaultConfig()).FitPredict(obs)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	m := NewModel(DefaultConfig())
	a, err := m.FitPredict(obs)
	require.NoError(t, err)
	b, err := m.FitPredict(obs)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFitPredictOrdinalLabels(t *testing.T) {
	obs, truth := syntheticObservations([][2]float64{{1.5, 3.5}, {0.2, 2.3}}, 30, 3)

	cfg := DefaultConfig()
	cfg.Components = 2
	regimes, err := NewModel(cfg).FitPredict(obs)
	require.NoError(t, err)

	for i, r := range regimes {
		wantID := models.RegimeID(1 - truth[i])
		assert.Equal(t, wantID, r.ID)
		assert.Equal(t, models.OrdinalLabel(int(wantID)), r.Label)
	}
	assert.Equal(t, models.RegimeLabel("Regime_0 (VIX_Rank_0)"), models.OrdinalLabel(0))
}

func TestFitPredictInsufficientSamples(t *testing.T) {
	obs, _ := syntheticObservations([][2]float64{{0, 2}}, 2, 1)
	_, err := NewModel(DefaultConfig()).FitPredict(obs)
	assert.ErrorIs(t, err, ErrInsufficientSamples)

	_, err = NewModel(DefaultConfig()).FitPredict(nil)
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestFitPredictRejectsNonFiniteFeatures(t *testing.T) {
	obs, _ := syntheticObservations([][2]float64{{0, 2.4}, {1, 3.1}, {2, 3.9}}, 5, 2)
	obs[4].LogVIX = math.NaN()

	_, err := NewModel(DefaultConfig()).FitPredict(obs)
	assert.ErrorIs(t, err, ErrInvalidFeature)

	obs[4].LogVIX = 3
	obs[6].LogSectorVol = math.Inf(1)
	_, err = NewModel(DefaultConfig()).FitPredict(obs)
	assert.ErrorIs(t, err, ErrInvalidFeature)
}

func TestThreeRegimeLabelsRequiresAllComponents(t *testing.T) {
	_, err := threeRegimeLabels([]clusterVIX{{cluster: 0, count: 4}, {cluster: 2, count: 3}})
	assert.ErrorIs(t, err, ErrEmptyComponent)

	labels, err := threeRegimeLabels([]clusterVIX{{cluster: 1}, {cluster: 0}, {cluster: 2}})
	require.NoError(t, err)
	assert.Equal(t, models.LabelCrisisCrash, labels[2])
}

func TestRankByVIXSkipsEmptyClustersAndBreaksTies(t *testing.T) {
	obs := []models.Observation{{LogVIX: 3}, {LogVIX: 1}, {LogVIX: 3}, {LogVIX: 1}}
	ranked := rankByVIX(obs, []int{2, 3, 0, 3}, 4)

	require.Len(t, ranked, 3)
	assert.Equal(t, 3, ranked[0].cluster)
	assert.Equal(t, 2, ranked[0].count)
	// clusters 0 and 2 tie on mean VIX; the lower index ranks first
	assert.Equal(t, 0, ranked[1].cluster)
	assert.Equal(t, 2, ranked[2].cluster)
}

func TestScalerFitTransform(t *testing.T) {
	x := [][]float64{{1, 5}, {3, 5}, {5, 5}}
	var s Scaler
	z := s.FitTransform(x)

	assert.InDelta(t, 3.0, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(8.0/3.0), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1])
	assert.InDelta(t, -math.Sqrt(1.5), z[0][0], 1e-12)
	assert.InDelta(t, 0.0, z[1][0], 1e-12)
	assert.Equal(t, 0.0, z[2][1])
}

func TestMixtureFitsSeparatedData(t *testing.T) {
	x := [][]float64{{-5, -5}, {-5.1, -4.8}, {-4.8, -5.2}, {5, 5}, {5.1, 4.8}, {4.8, 5.2}}
	mix := &Mixture{Components: 2, MaxIter: 100, Tol: 1e-3, RegCovar: 1e-6, KMeansIter: 300, Seed: 42}
	labels, err := mix.FitPredict(x)
	require.NoError(t, err)

	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[3], labels[4])
	assert.NotEqual(t, labels[0], labels[3])
	assert.InDelta(t, 1.0, mix.Weights[0]+mix.Weights[1], 1e-9)
	assert.True(t, mix.Converged)
}
