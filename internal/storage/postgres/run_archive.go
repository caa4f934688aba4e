// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/webcrawler/internal/crawler"
	"github.com/JakeFAU/webcrawler/internal/wordcount"
)

const defaultTable = "crawl_runs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for crawl runs.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// RunArchive stores finished crawl runs in Postgres.
type RunArchive struct {
	pool  pool
	table string
}

// NewRunArchive connects to Postgres using the provided config.
func NewRunArchive(ctx context.Context, cfg Config) (*RunArchive, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunArchive{pool: p, table: table}, nil
}

// NewRunArchiveWithPool constructs an archive from an existing pool (primarily for testing).
func NewRunArchiveWithPool(p pool, table string) (*RunArchive, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunArchive{pool: p, table: table}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RunArchive) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the runs table when it does not exist.
func (s *RunArchive) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	started_at   TIMESTAMPTZ,
	finished_at  TIMESTAMPTZ,
	error_text   TEXT NOT NULL DEFAULT '',
	parameters   JSONB NOT NULL,
	word_counts  JSONB,
	urls_visited INTEGER NOT NULL DEFAULT 0,
	duration_ms  BIGINT NOT NULL DEFAULT 0
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// SaveRun inserts or replaces a run row.
func (s *RunArchive) SaveRun(ctx context.Context, run crawler.Run) error {
	if s == nil || s.pool == nil {
		return errors.New("run archive is not configured")
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}
	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	var (
		counts      []byte
		urlsVisited int
	)
	if run.Result != nil {
		counts, err = json.Marshal(run.Result.WordCounts)
		if err != nil {
			return fmt.Errorf("marshal word counts: %w", err)
		}
		urlsVisited = run.Result.URLsVisited
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	status,
	submitted_at,
	started_at,
	finished_at,
	error_text,
	parameters,
	word_counts,
	urls_visited,
	duration_ms
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	started_at = EXCLUDED.started_at,
	finished_at = EXCLUDED.finished_at,
	error_text = EXCLUDED.error_text,
	word_counts = EXCLUDED.word_counts,
	urls_visited = EXCLUDED.urls_visited,
	duration_ms = EXCLUDED.duration_ms`, s.table)

	args := []any{
		run.ID,
		string(run.Status),
		run.Submitted,
		run.Started,
		run.Finished,
		run.ErrorText,
		params,
		counts,
		urlsVisited,
		run.DurationMs,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// GetRun loads a run by ID. Unknown IDs return crawler.ErrRunNotFound.
func (s *RunArchive) GetRun(ctx context.Context, runID string) (crawler.Run, error) {
	query := fmt.Sprintf(`
SELECT id, status, submitted_at, started_at, finished_at, error_text,
	parameters, word_counts, urls_visited, duration_ms
FROM %s WHERE id = $1`, s.table)

	var (
		run         crawler.Run
		status      string
		params      []byte
		counts      []byte
		urlsVisited int
	)
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.ID,
		&status,
		&run.Submitted,
		&run.Started,
		&run.Finished,
		&run.ErrorText,
		&params,
		&counts,
		&urlsVisited,
		&run.DurationMs,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Run{}, fmt.Errorf("get %s: %w", runID, crawler.ErrRunNotFound)
	}
	if err != nil {
		return crawler.Run{}, fmt.Errorf("select run: %w", err)
	}
	run.Status = crawler.RunStatus(status)
	if err := json.Unmarshal(params, &run.Parameters); err != nil {
		return crawler.Run{}, fmt.Errorf("decode parameters: %w", err)
	}
	if counts != nil {
		var wc wordcount.Counts
		if err := json.Unmarshal(counts, &wc); err != nil {
			return crawler.Run{}, fmt.Errorf("decode word counts: %w", err)
		}
		run.Result = &crawler.Result{WordCounts: wc, URLsVisited: urlsVisited}
	}
	return run, nil
}
