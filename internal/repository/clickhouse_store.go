package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	applogger "RegimeLab/pkg/logger"
)

const insertChunk = 2000

// CHStore reads observations and signals from ClickHouse and persists run
// results there.
type CHStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHStore(db *sql.DB, database string, l *applogger.Logger) *CHStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHStore{db: db, database: database, l: l}
}

// SchemaStatements returns the idempotent DDL for database.
func SchemaStatements(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.observations (
            date Date,
            benchmark_price Float64,
            benchmark_return Float64,
            log_sector_vol Float64,
            log_vix Float64,
            regime Int8 DEFAULT -1
        ) ENGINE = ReplacingMergeTree ORDER BY date`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signals (
            date Date,
            basket String
        ) ENGINE = ReplacingMergeTree ORDER BY date`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.regime_labels (
            run_id String,
            date Date,
            regime Int8,
            label LowCardinality(String),
            created_at DateTime DEFAULT now()
        ) ENGINE = MergeTree ORDER BY (run_id, date)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.backtest_returns (
            run_id String,
            path LowCardinality(String),
            date Date,
            strategy Float64,
            benchmark Float64,
            created_at DateTime DEFAULT now()
        ) ENGINE = MergeTree ORDER BY (run_id, date)`, database),
	}
}

func (s *CHStore) table(name string) string { return s.database + "." + name }

func (s *CHStore) LoadObservations(ctx context.Context) ([]models.Observation, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT date, benchmark_price, benchmark_return, log_sector_vol, log_vix, regime
        FROM %s
        ORDER BY date ASC
    `, s.table("observations"))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.l.Error("clickhouse load_observations query error", applogger.Error(err))
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var o models.Observation
		var regime int8
		if err := rows.Scan(&o.Date, &o.BenchmarkPrice, &o.BenchmarkReturn, &o.LogSectorVol, &o.LogVIX, &regime); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Date = o.Date.UTC()
		o.Regime = models.RegimeID(regime)
		if o.Regime < 0 {
			o.Regime = models.RegimeUnknown
		}
		if n := len(out); n > 0 && !o.Date.After(out[n-1].Date) {
			return nil, fmt.Errorf("%w: %s", models.ErrUnsortedDates, o.Date.Format("2006-01-02"))
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return nil, models.ErrEmptyInput
	}
	s.l.Info("clickhouse load_observations ok",
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHStore) LoadSignals(ctx context.Context) ([]models.SignalRow, error) {
	q := fmt.Sprintf("SELECT date, basket FROM %s ORDER BY date ASC", s.table("signals"))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.l.Error("clickhouse load_signals query error", applogger.Error(err))
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []models.SignalRow
	for rows.Next() {
		var r models.SignalRow
		if err := rows.Scan(&r.Date, &r.Basket); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		r.Date = r.Date.UTC()
		r.Basket = strings.TrimSpace(r.Basket)
		r.Valid = r.Basket != ""
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// SaveRegimes writes one label row per observation under runID.
func (s *CHStore) SaveRegimes(ctx context.Context, runID string, obs []models.Observation, regimes []models.Regime) error {
	if len(obs) != len(regimes) {
		return fmt.Errorf("save regimes: %d observations for %d regimes", len(obs), len(regimes))
	}
	rows := make([][]interface{}, len(obs))
	for i, o := range obs {
		rows[i] = []interface{}{runID, o.Date, int8(regimes[i].ID), string(regimes[i].Label)}
	}
	return s.insert(ctx, "regime_labels", []string{"run_id", "date", "regime", "label"}, rows)
}

// SaveReturns writes the aligned strategy and benchmark series under runID.
func (s *CHStore) SaveReturns(ctx context.Context, runID string, res models.BacktestResult) error {
	if res.Strategy.Len() != res.Benchmark.Len() {
		return fmt.Errorf("save returns: series lengths differ (%d vs %d)", res.Strategy.Len(), res.Benchmark.Len())
	}
	rows := make([][]interface{}, res.Strategy.Len())
	for i, p := range res.Strategy.Points {
		rows[i] = []interface{}{runID, string(res.Path), p.Date, p.Value, res.Benchmark.Points[i].Value}
	}
	return s.insert(ctx, "backtest_returns", []string{"run_id", "path", "date", "strategy", "benchmark"}, rows)
}

// insert writes rows as multi-row VALUES statements of at most insertChunk rows.
func (s *CHStore) insert(ctx context.Context, table string, cols []string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	for lo := 0; lo < len(rows); lo += insertChunk {
		hi := lo + insertChunk
		if hi > len(rows) {
			hi = len(rows)
		}
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*len(cols))
		for _, r := range rows[lo:hi] {
			values = append(values, placeholder)
			args = append(args, r...)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table(table), strings.Join(cols, ", "), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert error",
				applogger.String("table", table),
				applogger.Int("rows", hi-lo),
				applogger.Error(err),
			)
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	s.l.Info("clickhouse insert ok",
		applogger.String("table", table),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var (
	_ domrepo.ObservationSource = (*CHStore)(nil)
	_ domrepo.SignalSource      = (*CHStore)(nil)
	_ domrepo.ResultStore       = (*CHStore)(nil)
)
