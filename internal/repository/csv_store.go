package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/util"
)

// Column names of the feature and signal tables.
const (
	ColDate         = "Date"
	ColSectorVol    = "Log_Sector_Vol"
	ColVIX          = "Log_VIX"
	ColRegime       = "Regime"
	ColRegimeLabel  = "Regime_Label"
	ColSignalBasket = "Signal_Basket"
)

// CSVStore reads the feature and signal tables from CSV files and writes
// labeled feature tables back.
type CSVStore struct {
	observationsPath string
	signalsPath      string
	benchmark        string
	l                *applogger.Logger
}

func NewCSVStore(observationsPath, signalsPath, benchmark string, l *applogger.Logger) *CSVStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CSVStore{observationsPath: observationsPath, signalsPath: signalsPath, benchmark: benchmark, l: l}
}

func (s *CSVStore) priceCol() string  { return s.benchmark + "_Price" }
func (s *CSVStore) returnCol() string { return s.benchmark + "_Return" }

// LoadObservations reads the feature table. A Regime column is optional; its
// empty cells leave the observation unclassified.
func (s *CSVStore) LoadObservations(ctx context.Context) ([]models.Observation, error) {
	f, err := os.Open(s.observationsPath)
	if err != nil {
		return nil, fmt.Errorf("open observations: %w", err)
	}
	defer f.Close()

	obs, err := ReadObservations(ctx, f, s.benchmark)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.observationsPath, err)
	}
	s.l.Info("observations loaded",
		applogger.String("path", s.observationsPath),
		applogger.Int("rows", len(obs)),
	)
	return obs, nil
}

// ReadObservations parses a feature table from r.
func ReadObservations(ctx context.Context, r io.Reader, benchmark string) ([]models.Observation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, models.ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header, ColDate, benchmark+"_Price", benchmark+"_Return", ColSectorVol, ColVIX)
	if err != nil {
		return nil, err
	}
	regimeCol := indexOf(header, ColRegime)

	var out []models.Observation
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		o := models.Observation{Regime: models.RegimeUnknown}
		if o.Date, err = util.ParseDate(rec[idx[0]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fields := []*float64{&o.BenchmarkPrice, &o.BenchmarkReturn, &o.LogSectorVol, &o.LogVIX}
		for i, dst := range fields {
			v, err := parseFinite(rec[idx[i+1]])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, header[idx[i+1]], err)
			}
			*dst = v
		}
		if regimeCol >= 0 {
			if o.Regime, err = parseRegime(rec[regimeCol]); err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, ColRegime, err)
			}
		}
		if n := len(out); n > 0 && !o.Date.After(out[n-1].Date) {
			return nil, fmt.Errorf("line %d: %w: %s after %s", line, models.ErrUnsortedDates,
				util.FormatDate(o.Date), util.FormatDate(out[n-1].Date))
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return nil, models.ErrEmptyInput
	}
	return out, nil
}

// LoadSignals reads the basket signal table. Empty basket cells are kept with
// Valid unset so the backtest can report them as missing. A missing file
// means no signals.
func (s *CSVStore) LoadSignals(ctx context.Context) ([]models.SignalRow, error) {
	if s.signalsPath == "" {
		return nil, nil
	}
	f, err := os.Open(s.signalsPath)
	if errors.Is(err, os.ErrNotExist) {
		s.l.Warn("signals file not found", applogger.String("path", s.signalsPath))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open signals: %w", err)
	}
	defer f.Close()

	rows, err := ReadSignals(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.signalsPath, err)
	}
	s.l.Info("signals loaded",
		applogger.String("path", s.signalsPath),
		applogger.Int("rows", len(rows)),
	)
	return rows, nil
}

// ReadSignals parses a signal table from r. An empty table yields no rows.
func ReadSignals(ctx context.Context, r io.Reader) ([]models.SignalRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header, ColDate, ColSignalBasket)
	if err != nil {
		return nil, err
	}

	var out []models.SignalRow
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		d, err := util.ParseDate(rec[idx[0]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(out); n > 0 && !d.After(out[n-1].Date) {
			return nil, fmt.Errorf("line %d: %w", line, models.ErrUnsortedDates)
		}
		basket := strings.TrimSpace(rec[idx[1]])
		out = append(out, models.SignalRow{Date: d, Basket: basket, Valid: basket != ""})
	}
	return out, nil
}

// WriteLabeled writes obs with their regime ids and labels to path,
// creating the parent directory when needed.
func (s *CSVStore) WriteLabeled(path string, obs []models.Observation, regimes []models.Regime) error {
	if len(obs) != len(regimes) {
		return fmt.Errorf("write labeled: %d observations for %d regimes", len(obs), len(regimes))
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{ColDate, s.priceCol(), s.returnCol(), ColSectorVol, ColVIX, ColRegime, ColRegimeLabel}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, o := range obs {
		rec := []string{
			util.FormatDate(o.Date),
			formatFloat(o.BenchmarkPrice),
			formatFloat(o.BenchmarkReturn),
			formatFloat(o.LogSectorVol),
			formatFloat(o.LogVIX),
			strconv.Itoa(int(regimes[i].ID)),
			string(regimes[i].Label),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	s.l.Info("labeled observations written", applogger.String("path", path), applogger.Int("rows", len(obs)))
	return nil
}

func columnIndex(header []string, names ...string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		j := indexOf(header, n)
		if j < 0 {
			return nil, fmt.Errorf("%w: %s", models.ErrMissingColumn, n)
		}
		out[i] = j
	}
	return out, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == name {
			return i
		}
	}
	return -1
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", models.ErrInvalidValue, s)
	}
	return v, nil
}

func parseRegime(s string) (models.RegimeID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.RegimeUnknown, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != math.Trunc(v) || v < 0 {
		return models.RegimeUnknown, fmt.Errorf("%w: regime %q", models.ErrInvalidValue, s)
	}
	return models.RegimeID(v), nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

var (
	_ domrepo.ObservationSource = (*CSVStore)(nil)
	_ domrepo.SignalSource      = (*CSVStore)(nil)
)
