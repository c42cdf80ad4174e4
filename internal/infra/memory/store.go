// Package memory is an in-process ledger.Repository used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/ledger"
)

// Store keeps transactions in insertion order and is safe for concurrent use.
// Data is lost on restart.
type Store struct {
	mu    sync.RWMutex
	order []string
	txs   map[string]*domain.Transaction
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{txs: make(map[string]*domain.Transaction)}
}

// InsertMany implements ledger.Repository.
func (s *Store) InsertMany(ctx context.Context, txs []*domain.Transaction) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("InsertMany: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(txs))
	for i, tx := range txs {
		if tx == nil {
			return nil, fmt.Errorf("InsertMany: record %d is nil", i)
		}
		ids[i] = uuid.New().String()
	}
	for i, tx := range txs {
		c := tx.Clone()
		c.ID = ids[i]
		s.txs[c.ID] = c
		s.order = append(s.order, c.ID)
	}
	return ids, nil
}

// Get implements ledger.Repository.
func (s *Store) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, fmt.Errorf("Get: %s: %w", id, ledger.ErrNotFound)
	}
	return tx.Clone(), nil
}

// List implements ledger.Repository. Results are newest first.
func (s *Store) List(ctx context.Context, filter ledger.Filter) ([]*domain.Transaction, error) {
	var pattern *regexp.Regexp
	if filter.DescriptionPattern != "" {
		re, err := regexp.Compile("(?i)" + filter.DescriptionPattern)
		if err != nil {
			return nil, fmt.Errorf("List: description pattern: %w", err)
		}
		pattern = re
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.EffectiveLimit()
	var result []*domain.Transaction
	for i := len(s.order) - 1; i >= 0 && len(result) < limit; i-- {
		tx := s.txs[s.order[i]]
		if filter.Account != "" && tx.AccountName != filter.Account {
			continue
		}
		if filter.Category != "" && tx.Category != filter.Category {
			continue
		}
		if pattern != nil && !pattern.MatchString(tx.Description) {
			continue
		}
		if filter.MinAmount != nil && tx.Amount < *filter.MinAmount {
			continue
		}
		if filter.MaxAmount != nil && tx.Amount > *filter.MaxAmount {
			continue
		}
		if filter.TransfersOnly && !tx.IsTransfer {
			continue
		}
		result = append(result, tx.Clone())
	}
	return result, nil
}

// FindTransferCandidates implements ledger.Repository.
func (s *Store) FindTransferCandidates(ctx context.Context, amount float64, excludeAccount string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, id := range s.order {
		tx := s.txs[id]
		if tx.LinkedTxID != nil || tx.AccountName == excludeAccount {
			continue
		}
		if !domain.AmountsEqual(tx.Amount, amount) {
			continue
		}
		result = append(result, tx.Clone())
	}
	return result, nil
}

// ListTransfers implements ledger.Repository.
func (s *Store) ListTransfers(ctx context.Context) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, id := range s.order {
		if tx := s.txs[id]; tx.IsTransfer {
			result = append(result, tx.Clone())
		}
	}
	return result, nil
}

// SetLink implements ledger.Repository.
func (s *Store) SetLink(ctx context.Context, id, partnerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return fmt.Errorf("SetLink: %s: %w", id, ledger.ErrNotFound)
	}
	tx.LinkTo(partnerID)
	return nil
}

// ClaimLink implements ledger.Repository. The check and the write happen under one lock.
func (s *Store) ClaimLink(ctx context.Context, id, partnerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return false, fmt.Errorf("ClaimLink: %s: %w", id, ledger.ErrNotFound)
	}
	if tx.LinkedTxID != nil {
		return false, nil
	}
	tx.LinkTo(partnerID)
	return true, nil
}

// ClearLink implements ledger.Repository.
func (s *Store) ClearLink(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return fmt.Errorf("ClearLink: %s: %w", id, ledger.ErrNotFound)
	}
	tx.Unlink()
	return nil
}

// UpdateCategoryByKeyword implements ledger.Repository.
func (s *Store) UpdateCategoryByKeyword(ctx context.Context, keyword, category string) (int64, error) {
	needle := strings.ToLower(keyword)
	if needle == "" {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, tx := range s.txs {
		if strings.Contains(strings.ToLower(tx.Description), needle) {
			tx.Category = category
			n++
		}
	}
	return n, nil
}

// DeleteAll implements ledger.Repository.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.txs))
	s.txs = make(map[string]*domain.Transaction)
	s.order = nil
	return n, nil
}

// Close implements ledger.Repository.
func (s *Store) Close() error { return nil }

var _ ledger.Repository = (*Store)(nil)
