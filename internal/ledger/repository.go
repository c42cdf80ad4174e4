// Package ledger defines the persisted transaction store consumed by the transfer engine
// and the HTTP layer. Implementations live under internal/infra.
package ledger

import (
	"context"
	"errors"

	"github.com/dvloznov/fintrack/internal/domain"
)

// ErrNotFound is returned when a point lookup or update targets an unknown ID.
var ErrNotFound = errors.New("transaction not found")

// DefaultListLimit caps List when Filter.Limit is zero.
const DefaultListLimit = 100

// Filter narrows List. Zero values mean "no constraint".
type Filter struct {
	Account            string
	Category           string
	DescriptionPattern string // regular expression, case-insensitive
	MinAmount          *float64
	MaxAmount          *float64
	TransfersOnly      bool
	Limit              int
}

// EffectiveLimit returns Limit or DefaultListLimit when unset.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Repository is the persisted transaction store.
//
// InsertMany is all-or-nothing and returns IDs in input order. FindTransferCandidates
// returns unlinked records with the given amount in an account other than excludeAccount,
// in the store's natural (insertion) order. ClaimLink is the conditional update that
// guards an existing record against receiving two inbound links: it succeeds only when
// the record is still unlinked.
type Repository interface {
	InsertMany(ctx context.Context, txs []*domain.Transaction) ([]string, error)
	Get(ctx context.Context, id string) (*domain.Transaction, error)
	List(ctx context.Context, filter Filter) ([]*domain.Transaction, error)
	FindTransferCandidates(ctx context.Context, amount float64, excludeAccount string) ([]*domain.Transaction, error)
	ListTransfers(ctx context.Context) ([]*domain.Transaction, error)

	SetLink(ctx context.Context, id, partnerID string) error
	ClaimLink(ctx context.Context, id, partnerID string) (bool, error)
	ClearLink(ctx context.Context, id string) error

	UpdateCategoryByKeyword(ctx context.Context, keyword, category string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	Close() error
}
