package chart

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"RegimeLab/internal/domain/models"
	domsvc "RegimeLab/internal/domain/service"
	"RegimeLab/internal/services/performance"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var ErrNoPoints = errors.New("chart: nothing to plot")

var (
	strategyColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	benchmarkColor = color.RGBA{R: 127, G: 127, B: 127, A: 255}
	regimeColors   = map[models.RegimeLabel]color.Color{
		models.LabelBullCalm:    color.RGBA{R: 44, G: 160, B: 44, A: 255},
		models.LabelTransition:  color.RGBA{R: 255, G: 127, B: 14, A: 255},
		models.LabelCrisisCrash: color.RGBA{R: 214, G: 39, B: 40, A: 255},
	}
)

type Config struct {
	Width  vg.Length
	Height vg.Length
}

func DefaultConfig() Config {
	return Config{Width: 12 * vg.Inch, Height: 6 * vg.Inch}
}

// Renderer draws the report charts as PNG (or any extension plot.Save
// understands) using gonum/plot.
type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) *Renderer {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg = DefaultConfig()
	}
	return &Renderer{cfg: cfg}
}

// RegimeScatter plots the benchmark price with each day colored by regime.
// Observations must already carry a regime id.
func (r *Renderer) RegimeScatter(obs []models.Observation, path string) error {
	if len(obs) == 0 {
		return ErrNoPoints
	}
	p := newTimePlot("Market Regimes", "Benchmark price")

	price := make(plotter.XYs, 0, len(obs))
	byRegime := make(map[models.RegimeID]plotter.XYs)
	var ids []models.RegimeID
	for _, o := range obs {
		if !finite(o.BenchmarkPrice) {
			continue
		}
		pt := plotter.XY{X: unix(o.Date), Y: o.BenchmarkPrice}
		price = append(price, pt)
		if _, ok := byRegime[o.Regime]; !ok {
			ids = append(ids, o.Regime)
		}
		byRegime[o.Regime] = append(byRegime[o.Regime], pt)
	}
	if len(price) == 0 {
		return ErrNoPoints
	}

	line, err := plotter.NewLine(price)
	if err != nil {
		return fmt.Errorf("price line: %w", err)
	}
	line.Color = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	p.Add(line)

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	labels := regimeLabels(ids)
	for _, id := range ids {
		sc, err := plotter.NewScatter(byRegime[id])
		if err != nil {
			return fmt.Errorf("regime %d scatter: %w", id, err)
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		sc.GlyphStyle.Color = regimeColor(labels[id], int(id))
		p.Add(sc)
		p.Legend.Add(string(labels[id]), sc)
	}
	return r.save(p, path)
}

// CumulativeGrowth plots growth of one unit for both series.
func (r *Renderer) CumulativeGrowth(strategy, benchmark models.ReturnSeries, path string) error {
	return r.comparison("Cumulative Growth", "Growth of 1", strategy, benchmark, performance.CumulativeGrowth, path)
}

// Drawdown plots the running drawdown of both series.
func (r *Renderer) Drawdown(strategy, benchmark models.ReturnSeries, path string) error {
	return r.comparison("Drawdown", "Drawdown", strategy, benchmark, performance.Drawdown, path)
}

func (r *Renderer) comparison(title, ylabel string, strategy, benchmark models.ReturnSeries, transform func([]float64) []float64, path string) error {
	strategy, benchmark = performance.Align(strategy, benchmark)
	if strategy.Len() == 0 {
		return ErrNoPoints
	}
	p := newTimePlot(title, ylabel)
	for _, s := range []struct {
		series models.ReturnSeries
		color  color.Color
	}{
		{benchmark, benchmarkColor},
		{strategy, strategyColor},
	} {
		xys := toXYs(s.series.Dates(), transform(s.series.Values()))
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("%s line: %w", s.series.Name, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1.2)
		p.Add(line)
		p.Legend.Add(s.series.Name, line)
	}
	return r.save(p, path)
}

func (r *Renderer) save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	if err := p.Save(r.cfg.Width, r.cfg.Height, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	return nil
}

func newTimePlot(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())
	return p
}

func toXYs(dates []time.Time, values []float64) plotter.XYs {
	out := make(plotter.XYs, 0, len(dates))
	for i, d := range dates {
		if finite(values[i]) {
			out = append(out, plotter.XY{X: unix(d), Y: values[i]})
		}
	}
	return out
}

// regimeLabels rebuilds the display label for each id present.
func regimeLabels(ids []models.RegimeID) map[models.RegimeID]models.RegimeLabel {
	out := make(map[models.RegimeID]models.RegimeLabel, len(ids))
	components := 0
	for _, id := range ids {
		if int(id)+1 > components {
			components = int(id) + 1
		}
	}
	for _, id := range ids {
		if id == models.RegimeUnknown {
			out[id] = "Unclassified"
			continue
		}
		out[id] = models.DefaultLabel(id, components)
	}
	return out
}

func regimeColor(label models.RegimeLabel, idx int) color.Color {
	if c, ok := regimeColors[label]; ok {
		return c
	}
	if idx < 0 {
		return benchmarkColor
	}
	return plotutil.Color(idx)
}

func unix(t time.Time) float64 { return float64(t.Unix()) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

var _ domsvc.ChartRenderer = (*Renderer)(nil)
