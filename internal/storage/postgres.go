// Package storage persists probing experiment results to Postgres.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"channelprober/internal/experiment"

	_ "github.com/lib/pq"
)

// PostgresStore provides storage for probing experiment results.
type PostgresStore struct {
	db *sql.DB
}

// Config contains database connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewPostgresStore creates a new database connection with connection pooling.
func NewPostgresStore(config Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// InitSchema creates the database schema.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	schema := `
	-- One row per scenario run and amount-selection method
	CREATE TABLE IF NOT EXISTS probing_runs (
		id SERIAL PRIMARY KEY,
		scenario TEXT NOT NULL,
		run INT NOT NULL,
		method TEXT NOT NULL,  -- 'naive' or 'optimal'
		gain_ratio DOUBLE PRECISION NOT NULL,
		probing_speed DOUBLE PRECISION NOT NULL,
		total_probes INT NOT NULL,
		total_jams INT NOT NULL,
		initial_bits DOUBLE PRECISION NOT NULL,
		resolved_bits DOUBLE PRECISION NOT NULL,
		recorded_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE(scenario, run, method, recorded_at)
	);

	CREATE INDEX IF NOT EXISTS idx_probing_runs_scenario ON probing_runs (scenario);
	CREATE INDEX IF NOT EXISTS idx_probing_runs_method ON probing_runs (method);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// InsertRunResults stores all results of an experiment report, two rows
// per run (one per method), in a single transaction.
func (s *PostgresStore) InsertRunResults(ctx context.Context, results []experiment.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO probing_runs (scenario, run, method, gain_ratio, probing_speed,
			total_probes, total_jams, initial_bits, resolved_bits)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, result := range results {
		naive := result.Naive
		if _, err := stmt.ExecContext(ctx, result.Scenario, result.Run, "naive",
			naive.GainRatio, naive.ProbingSpeed, naive.TotalProbes, naive.TotalJams,
			naive.InitialBits, naive.ResolvedBits); err != nil {
			return fmt.Errorf("failed to insert naive run: %w", err)
		}
		optimal := result.Optimal
		if _, err := stmt.ExecContext(ctx, result.Scenario, result.Run, "optimal",
			optimal.GainRatio, optimal.ProbingSpeed, optimal.TotalProbes, optimal.TotalJams,
			optimal.InitialBits, optimal.ResolvedBits); err != nil {
			return fmt.Errorf("failed to insert optimal run: %w", err)
		}
	}

	return tx.Commit()
}

// StoredRun is one persisted probing run outcome.
type StoredRun struct {
	Scenario     string
	Run          int
	Method       string
	GainRatio    float64
	ProbingSpeed float64
	TotalProbes  int
	TotalJams    int
	RecordedAt   time.Time
}

// RecentRuns retrieves the most recent stored runs for a scenario.
func (s *PostgresStore) RecentRuns(ctx context.Context, scenario string, limit int) ([]StoredRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario, run, method, gain_ratio, probing_speed, total_probes, total_jams, recorded_at
		FROM probing_runs
		WHERE scenario = $1
		ORDER BY recorded_at DESC, run ASC
		LIMIT $2
	`, scenario, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []StoredRun
	for rows.Next() {
		var r StoredRun
		if err := rows.Scan(&r.Scenario, &r.Run, &r.Method, &r.GainRatio,
			&r.ProbingSpeed, &r.TotalProbes, &r.TotalJams, &r.RecordedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
