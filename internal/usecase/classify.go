package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	domsvc "RegimeLab/internal/domain/service"
	applogger "RegimeLab/pkg/logger"
)

// ClassifyOptions overrides the configured model for one fit. Zero values
// keep the configured setting.
type ClassifyOptions struct {
	Components int
	Seed       *int64
}

// ClassifierFactory builds a fresh classifier for every fit so that no model
// state is shared between runs.
type ClassifierFactory func(opts ClassifyOptions) domsvc.RegimeClassifier

// LabeledSet is a feature table together with its fitted regimes.
type LabeledSet struct {
	Observations []models.Observation `json:"-"`
	Regimes      []models.Regime      `json:"-"`
	Stats        []models.RegimeStat  `json:"stats"`
	Refitted     bool                 `json:"refitted"`
}

// Components is the number of regime ranks in the set, the highest ID plus one.
func (s LabeledSet) Components() int {
	k := 0
	for _, st := range s.Stats {
		if int(st.ID)+1 > k {
			k = int(st.ID) + 1
		}
	}
	return k
}

// Classifier labels observations with a freshly fitted model.
type Classifier struct {
	newModel ClassifierFactory
	metrics  domrepo.Metrics
	log      *applogger.Logger
}

func NewClassifier(newModel ClassifierFactory, metrics domrepo.Metrics, log *applogger.Logger) *Classifier {
	if log == nil {
		log = applogger.Nop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Classifier{newModel: newModel, metrics: metrics, log: log}
}

// Label fits a model on obs and returns a copy of obs with Regime set.
func (c *Classifier) Label(obs []models.Observation, opts ClassifyOptions) (LabeledSet, error) {
	start := time.Now()
	model := c.newModel(opts)
	regimes, err := model.FitPredict(obs)
	c.metrics.RecordLatency("classify", time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordError("classify")
		return LabeledSet{}, fmt.Errorf("classify: %w", err)
	}

	labeled := make([]models.Observation, len(obs))
	copy(labeled, obs)
	for i := range labeled {
		labeled[i].Regime = regimes[i].ID
	}
	stats := model.Stats()
	for _, s := range stats {
		c.log.Info("regime fitted",
			applogger.Int("id", int(s.ID)),
			applogger.String("label", string(s.Label)),
			applogger.Int("count", s.Count),
			applogger.Float64("mean_log_vix", s.MeanLogVIX),
		)
	}
	return LabeledSet{Observations: labeled, Regimes: regimes, Stats: stats, Refitted: true}, nil
}

// Existing describes regimes already present on obs without refitting.
// Every observation must carry a regime id.
func Existing(obs []models.Observation) (LabeledSet, error) {
	if len(obs) == 0 {
		return LabeledSet{}, models.ErrEmptyInput
	}
	components := 0
	for _, o := range obs {
		if !o.HasRegime() {
			return LabeledSet{}, fmt.Errorf("%w: %s", models.ErrMissingRegime, o.Date.Format("2006-01-02"))
		}
		if int(o.Regime)+1 > components {
			components = int(o.Regime) + 1
		}
	}

	byID := make(map[models.RegimeID]*models.RegimeStat)
	regimes := make([]models.Regime, len(obs))
	for i, o := range obs {
		label := models.DefaultLabel(o.Regime, components)
		regimes[i] = models.Regime{ID: o.Regime, Label: label}
		s, ok := byID[o.Regime]
		if !ok {
			s = &models.RegimeStat{ID: o.Regime, Label: label, RawCluster: -1}
			byID[o.Regime] = s
		}
		s.Count++
		s.MeanLogVIX += o.LogVIX
	}

	stats := make([]models.RegimeStat, 0, len(byID))
	for _, s := range byID {
		s.MeanLogVIX /= float64(s.Count)
		s.Weight = float64(s.Count) / float64(len(obs))
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return LabeledSet{Observations: obs, Regimes: regimes, Stats: stats}, nil
}

// ClassifyTable loads the feature table, labels it and writes it to path.
type ClassifyTable struct {
	source     domrepo.ObservationSource
	writer     domrepo.LabeledWriter
	classifier *Classifier
	log        *applogger.Logger
}

func NewClassifyTable(source domrepo.ObservationSource, writer domrepo.LabeledWriter, classifier *Classifier, log *applogger.Logger) *ClassifyTable {
	if log == nil {
		log = applogger.Nop()
	}
	return &ClassifyTable{source: source, writer: writer, classifier: classifier, log: log}
}

func (uc *ClassifyTable) Run(ctx context.Context, path string, opts ClassifyOptions) (LabeledSet, error) {
	obs, err := uc.source.LoadObservations(ctx)
	if err != nil {
		return LabeledSet{}, fmt.Errorf("load observations: %w", err)
	}
	set, err := uc.classifier.Label(obs, opts)
	if err != nil {
		return LabeledSet{}, err
	}
	if err := uc.writer.WriteLabeled(path, set.Observations, set.Regimes); err != nil {
		return LabeledSet{}, fmt.Errorf("write labeled table: %w", err)
	}
	uc.log.Info("labeled table written",
		applogger.String("path", path),
		applogger.Int("rows", len(set.Observations)),
	)
	return set, nil
}
