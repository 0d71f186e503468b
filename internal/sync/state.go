package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/huyndo/tpcn-advisor/internal/catalog"
)

// StateStore keeps a local audit trail of sync runs and the last scraped
// version of every product, so operators can answer "when did this SKU
// last change" without diffing backup files.
type StateStore struct {
	db *sqlx.DB
}

// RunRecord is one row of the sync_runs table.
type RunRecord struct {
	ID            int64     `db:"id"`
	StartedAt     time.Time `db:"started_at"`
	FinishedAt    time.Time `db:"finished_at"`
	URLsFound     int       `db:"urls_found"`
	PagesParsed   int       `db:"pages_parsed"`
	PagesFailed   int       `db:"pages_failed"`
	ProductsTotal int       `db:"products_total"`
	Changed       bool      `db:"changed"`
	OutputHash    string    `db:"output_hash"`
}

// ProductRecord is one row of the catalog_products table.
type ProductRecord struct {
	SKU         string    `db:"sku"`
	Name        string    `db:"name"`
	Link        string    `db:"link"`
	ContentHash string    `db:"content_hash"`
	FirstSeen   time.Time `db:"first_seen"`
	LastSeen    time.Time `db:"last_seen"`
}

// OpenState opens or creates the sqlite state database and migrates its
// schema.
func OpenState(path string) (*StateStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("state path required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve state path: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", abs)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping state db: %w", err)
	}

	store := &StateStore{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *StateStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *StateStore) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range stateSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

var stateSchema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_products (
                sku TEXT PRIMARY KEY,
                name TEXT NOT NULL,
                link TEXT NOT NULL DEFAULT '',
                content_hash TEXT NOT NULL,
                first_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                last_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE TABLE IF NOT EXISTS sync_runs (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                started_at DATETIME NOT NULL,
                finished_at DATETIME NOT NULL,
                urls_found INTEGER NOT NULL,
                pages_parsed INTEGER NOT NULL,
                pages_failed INTEGER NOT NULL,
                products_total INTEGER NOT NULL,
                changed INTEGER NOT NULL,
                output_hash TEXT NOT NULL DEFAULT ''
        );`,
	`CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);`,
}

// UpsertProducts records the scraped products, preserving first_seen for
// SKUs already known.
func (s *StateStore) UpsertProducts(ctx context.Context, products []catalog.Product) error {
	if s == nil || s.db == nil {
		return errors.New("state store not initialised")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	const stmt = `INSERT INTO catalog_products (sku, name, link, content_hash)
                VALUES (?, ?, ?, ?)
                ON CONFLICT(sku) DO UPDATE SET
                        name = excluded.name,
                        link = excluded.link,
                        content_hash = excluded.content_hash,
                        last_seen = CURRENT_TIMESTAMP`
	for _, p := range products {
		if _, err := tx.ExecContext(ctx, stmt, p.SKU, p.Name, p.Link, hashJSON(p)); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *StateStore) RecordRun(ctx context.Context, run RunRecord) error {
	if s == nil || s.db == nil {
		return errors.New("state store not initialised")
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO sync_runs
                (started_at, finished_at, urls_found, pages_parsed, pages_failed, products_total, changed, output_hash)
                VALUES (:started_at, :finished_at, :urls_found, :pages_parsed, :pages_failed, :products_total, :changed, :output_hash)`, run)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// LastRun returns the most recent run, or sql.ErrNoRows when none exist.
func (s *StateStore) LastRun(ctx context.Context) (RunRecord, error) {
	var run RunRecord
	err := s.db.GetContext(ctx, &run, `SELECT id, started_at, finished_at, urls_found,
                pages_parsed, pages_failed, products_total, changed, output_hash
                FROM sync_runs ORDER BY id DESC LIMIT 1`)
	if err != nil {
		return RunRecord{}, err
	}
	return run, nil
}

// ProductState returns the stored record for one SKU, or sql.ErrNoRows.
func (s *StateStore) ProductState(ctx context.Context, sku string) (ProductRecord, error) {
	var record ProductRecord
	err := s.db.GetContext(ctx, &record, `SELECT sku, name, link, content_hash, first_seen, last_seen
                FROM catalog_products WHERE sku = ?`, sku)
	if err != nil {
		return ProductRecord{}, err
	}
	return record, nil
}

func (s *StateStore) ProductCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM catalog_products`); err != nil {
		return 0, err
	}
	return count, nil
}
