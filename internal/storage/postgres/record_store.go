// Package postgres provides a Postgres-backed harvest.RecordStore.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/journal-harvester/internal/harvest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool and table names.
type Config struct {
	DSN             string
	ArticlesTable   string
	IssuesTable     string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// RecordStore writes issues and articles rows into Postgres.
type RecordStore struct {
	pool     pool
	articles string
	issues   string

	mu    sync.Mutex
	index map[string]harvest.Status
}

// Open connects to Postgres and prepares the tables.
func Open(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(ctx, p, cfg.ArticlesTable, cfg.IssuesTable)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
// It creates missing tables and loads the persisted article URLs.
func NewWithPool(ctx context.Context, p pool, articlesTable, issuesTable string) (*RecordStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if articlesTable == "" {
		articlesTable = "articles"
	}
	if issuesTable == "" {
		issuesTable = "issues"
	}
	for _, table := range []string{articlesTable, issuesTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	s := &RecordStore{pool: p, articles: articlesTable, issues: issuesTable}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	if err := s.loadIndex(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RecordStore) migrate(ctx context.Context) error {
	articles := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	url TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	authors JSONB NOT NULL,
	keywords TEXT NOT NULL,
	publication_date TEXT NOT NULL,
	abstract TEXT NOT NULL,
	artifact_url TEXT NOT NULL,
	doi TEXT NOT NULL,
	local_filename TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.articles)
	if _, err := s.pool.Exec(ctx, articles); err != nil {
		return fmt.Errorf("create %s: %w", s.articles, err)
	}
	issues := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	volume TEXT NOT NULL,
	number TEXT NOT NULL,
	publication_date TEXT NOT NULL,
	url TEXT NOT NULL,
	articles INTEGER NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.issues)
	if _, err := s.pool.Exec(ctx, issues); err != nil {
		return fmt.Errorf("create %s: %w", s.issues, err)
	}
	return nil
}

func (s *RecordStore) loadIndex(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT url, status FROM %s`, s.articles))
	if err != nil {
		return fmt.Errorf("load article urls: %w", err)
	}
	defer rows.Close()

	index := map[string]harvest.Status{}
	for rows.Next() {
		var url, status string
		if err := rows.Scan(&url, &status); err != nil {
			return fmt.Errorf("scan article url: %w", err)
		}
		index[url] = harvest.Status(status)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load article urls: %w", err)
	}
	s.index = index
	return nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// HasArticle reports whether a row for url has been persisted.
func (s *RecordStore) HasArticle(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[url]
	return ok
}

// AppendArticle inserts one articles row.
func (s *RecordStore) AppendArticle(ctx context.Context, article harvest.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := article.Record()
	query := fmt.Sprintf(`
INSERT INTO %s (
	title,
	authors,
	keywords,
	publication_date,
	abstract,
	url,
	artifact_url,
	doi,
	local_filename,
	status
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.articles)
	args := make([]any, len(rec))
	for i, v := range rec {
		args[i] = v
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	s.index[article.URL] = article.Status
	return nil
}

// AppendIssue inserts one issues row.
func (s *RecordStore) AppendIssue(ctx context.Context, issue harvest.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := issue.Record()
	query := fmt.Sprintf(`
INSERT INTO %s (
	volume,
	number,
	publication_date,
	url,
	articles,
	status
) VALUES (
	$1,$2,$3,$4,$5,$6
)`, s.issues)
	if _, err := s.pool.Exec(ctx, query, rec[0], rec[1], rec[2], rec[3], issue.Articles, rec[5]); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}
