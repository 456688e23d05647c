package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
	"github.com/finsightlab/hybrid-retrieval/internal/infrastructure/resilience"
)

// FactStore serves the structured retrieval source from the facts table.
// Compiled queries are expected to project the fixed candidate columns
// (doc_id, page, row_index, section, content, match_score); anything the
// store cannot execute or scan is absorbed into an empty result so the
// fusion path degrades instead of failing.
type FactStore struct {
	db            *sql.DB
	executor      *resilience.Executor
	minMatchScore float64
	logger        *slog.Logger
}

type FactStoreConfig struct {
	MinMatchScore float64
}

func NewFactStore(db *sql.DB, executor *resilience.Executor, cfg FactStoreConfig, logger *slog.Logger) *FactStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactStore{
		db:            db,
		executor:      executor,
		minMatchScore: cfg.MinMatchScore,
		logger:        logger,
	}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *FactStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent service startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS facts (
	doc_id TEXT NOT NULL,
	page INTEGER NOT NULL,
	row_index INTEGER NOT NULL,
	entity TEXT NOT NULL,
	metric TEXT NOT NULL,
	period TEXT NOT NULL,
	value_text TEXT NOT NULL,
	section TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (doc_id, page, row_index)
);

CREATE INDEX IF NOT EXISTS idx_facts_metric_period ON facts(metric, period);
CREATE INDEX IF NOT EXISTS idx_facts_entity ON facts(entity);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *FactStore) SearchStructured(ctx context.Context, compiled domain.CompiledQuery, topK int) []domain.Candidate {
	if compiled.SQL == "" {
		return nil
	}

	var candidates []domain.Candidate
	err := s.execute(ctx, "facts_search", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, compiled.SQL, compiled.Args...)
		if err != nil {
			return fmt.Errorf("query facts: %w", err)
		}
		defer rows.Close()

		candidates = candidates[:0]
		for rows.Next() {
			var c domain.Candidate
			if err := rows.Scan(&c.DocumentID, &c.Page, &c.ChunkIndex, &c.Section, &c.Text, &c.RawScore); err != nil {
				return fmt.Errorf("scan fact row: %w", err)
			}
			if c.RawScore < s.minMatchScore {
				continue
			}
			c.Source = domain.SourceStructured
			candidates = append(candidates, c)
			if topK > 0 && len(candidates) >= topK {
				break
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate fact rows: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("structured_search_failed", "error", err)
		return nil
	}
	return candidates
}

func (s *FactStore) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if s.executor == nil {
		return fn(ctx)
	}
	return s.executor.Execute(ctx, operation, fn, classifyPostgresError)
}

func classifyPostgresError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// The caller already gave up; retrying only delays the fan-out join.
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
