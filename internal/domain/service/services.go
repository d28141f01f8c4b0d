package service

import (
	"RegimeLab/internal/domain/models"
)

// RegimeClassifier assigns a semantic regime to every observation.
type RegimeClassifier interface {
	FitPredict(obs []models.Observation) ([]models.Regime, error)
	Stats() []models.RegimeStat
}

// ChartRenderer draws the report charts into files.
type ChartRenderer interface {
	RegimeScatter(obs []models.Observation, path string) error
	CumulativeGrowth(strategy, benchmark models.ReturnSeries, path string) error
	Drawdown(strategy, benchmark models.ReturnSeries, path string) error
}

// SummaryWriter writes the text metrics report.
type SummaryWriter interface {
	WriteSummary(r *models.Report, path string) error
}
