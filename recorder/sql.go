package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLRecorder persists runs to SQLite or PostgreSQL.
type SQLRecorder struct {
	db       *sql.DB
	postgres bool
	mu       sync.Mutex
}

// Open returns the recorder for driver: "sqlite", "postgres", or "" for a NoopRecorder.
func Open(driver, dsn string) (Recorder, error) {
	switch driver {
	case "":
		return NewNoopRecorder(), nil
	case "sqlite":
		return NewSQLiteRecorder(dsn)
	case "postgres":
		return NewPostgresRecorder(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

// NewPostgresRecorder connects to PostgreSQL and runs migrations.
func NewPostgresRecorder(dsn string) (*SQLRecorder, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := &SQLRecorder{db: db, postgres: true}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLRecorder) migrate() error {
	id := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	dbl := "REAL"
	if r.postgres {
		id = "id BIGSERIAL PRIMARY KEY"
		dbl = "DOUBLE PRECISION"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id        TEXT PRIMARY KEY,
			started_at    BIGINT NOT NULL,
			duration_ms   BIGINT,
			input         TEXT,
			nobs          INTEGER,
			arima_order   TEXT,
			method        TEXT,
			adf_statistic ` + dbl + `,
			adf_pvalue    ` + dbl + `,
			adf_lags      INTEGER,
			aic           ` + dbl + `,
			bic           ` + dbl + `,
			loglik        ` + dbl + `,
			sigma2        ` + dbl + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS forecasts (
			` + id + `,
			run_id      TEXT NOT NULL REFERENCES runs(run_id),
			step        INTEGER NOT NULL,
			target_date BIGINT,
			mean        ` + dbl + `,
			lower_bound ` + dbl + `,
			upper_bound ` + dbl + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forecasts_run ON forecasts(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// bind rewrites ? placeholders to $n for PostgreSQL.
func (r *SQLRecorder) bind(query string) string {
	if !r.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// RecordRun stores the run and its forecasts in one transaction.
func (r *SQLRecorder) RecordRun(ctx context.Context, run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, r.bind(`INSERT INTO runs
		(run_id, started_at, duration_ms, input, nobs, arima_order, method,
		 adf_statistic, adf_pvalue, adf_lags, aic, bic, loglik, sigma2)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		run.RunID, run.StartedAt.Unix(), run.Duration.Milliseconds(), run.Input, run.NObs,
		run.Order, run.Method,
		nullable(run.ADFStatistic), nullable(run.ADFPValue), run.ADFLags,
		nullable(run.AIC), nullable(run.BIC), nullable(run.LogLik), nullable(run.Sigma2),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, f := range run.Forecasts {
		var date sql.NullInt64
		if !f.Date.IsZero() {
			date = sql.NullInt64{Int64: f.Date.Unix(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, r.bind(`INSERT INTO forecasts
			(run_id, step, target_date, mean, lower_bound, upper_bound)
			VALUES (?,?,?,?,?,?)`),
			run.RunID, f.Step, date, nullable(f.Mean), nullable(f.Lower), nullable(f.Upper),
		); err != nil {
			return fmt.Errorf("insert forecast step %d: %w", f.Step, err)
		}
	}

	return tx.Commit()
}

// Runs returns up to limit most recent runs, newest first, with their forecasts.
func (r *SQLRecorder) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.bind(`SELECT run_id, started_at, duration_ms, input, nobs,
		arima_order, method, adf_statistic, adf_pvalue, adf_lags, aic, bic, loglik, sigma2
		FROM runs ORDER BY started_at DESC, run_id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			run                               RunRecord
			started, durationMs               int64
			adfStat, adfP, aic, bic, ll, sig2 sql.NullFloat64
		)
		if err := rows.Scan(&run.RunID, &started, &durationMs, &run.Input, &run.NObs,
			&run.Order, &run.Method, &adfStat, &adfP, &run.ADFLags, &aic, &bic, &ll, &sig2); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.Unix(started, 0).UTC()
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.ADFStatistic = orNaN(adfStat)
		run.ADFPValue = orNaN(adfP)
		run.AIC = orNaN(aic)
		run.BIC = orNaN(bic)
		run.LogLik = orNaN(ll)
		run.Sigma2 = orNaN(sig2)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range runs {
		fc, err := r.forecasts(ctx, runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].Forecasts = fc
	}
	return runs, nil
}

func (r *SQLRecorder) forecasts(ctx context.Context, runID string) ([]ForecastPoint, error) {
	rows, err := r.db.QueryContext(ctx, r.bind(`SELECT step, target_date, mean, lower_bound, upper_bound
		FROM forecasts WHERE run_id = ? ORDER BY step`), runID)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	var out []ForecastPoint
	for rows.Next() {
		var (
			f                  ForecastPoint
			date               sql.NullInt64
			mean, lower, upper sql.NullFloat64
		)
		if err := rows.Scan(&f.Step, &date, &mean, &lower, &upper); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		if date.Valid {
			f.Date = time.Unix(date.Int64, 0).UTC()
		}
		f.Mean, f.Lower, f.Upper = orNaN(mean), orNaN(lower), orNaN(upper)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *SQLRecorder) Close() error {
	return r.db.Close()
}

// nullable stores non-finite values as NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
