// Package postgres implements ledger.Repository on PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/ledger"
)

//go:embed 001_create_transactions.sql
var migrationSQL string

const columns = `id, date, description, amount, type, category, merchant, account_name,
	is_transfer, potential_transfer, linked_tx_id`

// Config holds the PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxPoolSize int
}

// Store is a ledger.Repository backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New connects, pings and applies the schema.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Store, error) {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("New: parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("New: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("New: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("New: migrate: %w", err)
	}

	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Str("database", cfg.Database).Msg("connected to PostgreSQL")
	return &Store{pool: pool, log: log}, nil
}

// InsertMany implements ledger.Repository. All rows are written in one database
// transaction; ids come back in input order.
func (s *Store) InsertMany(ctx context.Context, txs []*domain.Transaction) ([]string, error) {
	if len(txs) == 0 {
		return []string{}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("InsertMany: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, t := range txs {
		batch.Queue(`
			INSERT INTO transactions (
				date, description, amount, type, category, merchant, account_name,
				is_transfer, potential_transfer, linked_tx_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			t.Date, t.Description, t.Amount, string(t.Type), t.Category, t.Merchant, t.AccountName,
			t.IsTransfer, t.PotentialTransfer, t.LinkedTxID,
		)
	}

	results := tx.SendBatch(ctx, batch)
	ids := make([]string, len(txs))
	for i := range txs {
		if err := results.QueryRow().Scan(&ids[i]); err != nil {
			results.Close()
			return nil, fmt.Errorf("InsertMany: insert record %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("InsertMany: close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("InsertMany: commit: %w", err)
	}
	return ids, nil
}

// Get implements ledger.Repository.
func (s *Store) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+columns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("Get: %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return t, nil
}

// List implements ledger.Repository.
func (s *Store) List(ctx context.Context, filter ledger.Filter) ([]*domain.Transaction, error) {
	query, args := buildListQuery(filter)
	txs, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return txs, nil
}

func buildListQuery(filter ledger.Filter) (string, []interface{}) {
	var where []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.Account != "" {
		add("account_name = $%d", filter.Account)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.DescriptionPattern != "" {
		add("description ~* $%d", filter.DescriptionPattern)
	}
	if filter.MinAmount != nil {
		add("amount >= $%d", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		add("amount <= $%d", *filter.MaxAmount)
	}
	if filter.TransfersOnly {
		where = append(where, "is_transfer")
	}

	query := `SELECT ` + columns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.EffectiveLimit())
	query += fmt.Sprintf(" ORDER BY seq DESC LIMIT $%d", len(args))
	return query, args
}

// FindTransferCandidates implements ledger.Repository.
func (s *Store) FindTransferCandidates(ctx context.Context, amount float64, excludeAccount string) ([]*domain.Transaction, error) {
	txs, err := s.query(ctx, `
		SELECT `+columns+` FROM transactions
		WHERE linked_tx_id IS NULL
		  AND account_name <> $2
		  AND ABS(amount - $1) < 0.005
		ORDER BY seq`,
		amount, excludeAccount,
	)
	if err != nil {
		return nil, fmt.Errorf("FindTransferCandidates: %w", err)
	}
	return txs, nil
}

// ListTransfers implements ledger.Repository.
func (s *Store) ListTransfers(ctx context.Context) ([]*domain.Transaction, error) {
	txs, err := s.query(ctx, `SELECT `+columns+` FROM transactions WHERE is_transfer ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("ListTransfers: %w", err)
	}
	return txs, nil
}

// SetLink implements ledger.Repository.
func (s *Store) SetLink(ctx context.Context, id, partnerID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions SET is_transfer = TRUE, linked_tx_id = $2, updated_at = NOW()
		WHERE id = $1`, id, partnerID)
	if err != nil {
		return fmt.Errorf("SetLink: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("SetLink: %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// ClaimLink implements ledger.Repository. The unlinked check is part of the UPDATE, so
// concurrent claims serialize on the row lock and only one sees a row affected.
func (s *Store) ClaimLink(ctx context.Context, id, partnerID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions SET is_transfer = TRUE, linked_tx_id = $2, updated_at = NOW()
		WHERE id = $1 AND linked_tx_id IS NULL`, id, partnerID)
	if err != nil {
		return false, fmt.Errorf("ClaimLink: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("ClaimLink: check existence: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("ClaimLink: %s: %w", id, ledger.ErrNotFound)
	}
	return false, nil
}

// ClearLink implements ledger.Repository.
func (s *Store) ClearLink(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions SET is_transfer = FALSE, linked_tx_id = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ClearLink: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ClearLink: %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// UpdateCategoryByKeyword implements ledger.Repository.
func (s *Store) UpdateCategoryByKeyword(ctx context.Context, keyword, category string) (int64, error) {
	if keyword == "" {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions SET category = $2, updated_at = NOW()
		WHERE strpos(lower(description), lower($1)) > 0`, keyword, category)
	if err != nil {
		return 0, fmt.Errorf("UpdateCategoryByKeyword: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAll implements ledger.Repository.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, fmt.Errorf("DeleteAll: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close implements ledger.Repository.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.log.Info().Msg("closed PostgreSQL connection pool")
	}
	return nil
}

func (s *Store) query(ctx context.Context, sql string, args ...interface{}) ([]*domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var txType string
	if err := row.Scan(
		&t.ID, &t.Date, &t.Description, &t.Amount, &txType, &t.Category, &t.Merchant, &t.AccountName,
		&t.IsTransfer, &t.PotentialTransfer, &t.LinkedTxID,
	); err != nil {
		return nil, err
	}
	t.Type = domain.TxType(txType)
	return &t, nil
}

var _ ledger.Repository = (*Store)(nil)
