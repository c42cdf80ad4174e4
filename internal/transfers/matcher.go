// Package transfers pairs the two sides of internal transfers and keeps those links
// consistent in the ledger.
package transfers

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/fintrack/internal/dates"
	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/logger"
)

// DefaultWindowDays is the inclusive date distance allowed between the two sides.
const DefaultWindowDays = 5

// CandidateFinder looks up persisted, unlinked records with the given amount that belong
// to an account other than excludeAccount, in the store's natural order.
type CandidateFinder interface {
	FindTransferCandidates(ctx context.Context, amount float64, excludeAccount string) ([]*domain.Transaction, error)
}

// Partner is the match found for one batch record. Exactly one of the two forms is set:
// an in-batch partner is referenced by its batch index until it has been persisted, a
// stored partner by its real ID.
type Partner struct {
	Index int
	ID    string
}

// InBatch reports whether the partner is a batch mate.
func (p *Partner) InBatch() bool { return p.ID == "" }

// Plan is the matcher's output. Partners is parallel to the batch; nil means unmatched.
type Plan struct {
	Partners []*Partner
}

// Matched returns the number of batch records that found a partner.
func (p *Plan) Matched() int {
	n := 0
	for _, pt := range p.Partners {
		if pt != nil {
			n++
		}
	}
	return n
}

// Matcher decides which potential transfers are the two sides of one movement of money.
type Matcher struct {
	finder     CandidateFinder
	windowDays int
}

// NewMatcher creates a Matcher. A non-positive window falls back to DefaultWindowDays.
func NewMatcher(finder CandidateFinder, windowDays int) *Matcher {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Matcher{finder: finder, windowDays: windowDays}
}

// Match walks the batch in order. Each potential transfer is first paired with the
// earliest eligible batch mate and, failing that, with the first eligible stored record.
// First match wins; there is no ranking among several plausible partners.
//
// Match does not modify the batch. Records matched to a stored partner cannot reserve it
// in the store until they have IDs of their own, so a stored candidate taken by an
// earlier record of the same batch is skipped for later ones.
func (m *Matcher) Match(ctx context.Context, batch []*domain.Transaction) (*Plan, error) {
	log := logger.FromContext(ctx)

	plan := &Plan{Partners: make([]*Partner, len(batch))}
	normalized := make([]civil.Date, len(batch))
	valid := make([]bool, len(batch))
	for i, tx := range batch {
		normalized[i], valid[i] = dates.Normalize(tx.Date)
	}
	reserved := make(map[string]bool)

	for i, tx := range batch {
		if !m.eligible(tx, plan, i) {
			continue
		}
		if !valid[i] {
			log.Debug().Int("index", i).Str("date", tx.Date).Msg("skipping potential transfer with unparseable date")
			continue
		}

		if j, ok := m.matchInBatch(batch, plan, normalized, valid, i); ok {
			plan.Partners[i] = &Partner{Index: j}
			plan.Partners[j] = &Partner{Index: i}
			log.Debug().Int("index", i).Int("partner_index", j).Msg("matched transfer within batch")
			continue
		}

		id, err := m.matchInStore(ctx, tx, normalized[i], reserved)
		if err != nil {
			return nil, fmt.Errorf("Match: record %d: %w", i, err)
		}
		if id != "" {
			reserved[id] = true
			plan.Partners[i] = &Partner{Index: -1, ID: id}
			log.Debug().Int("index", i).Str("partner_id", id).Msg("matched transfer against ledger")
		}
	}

	return plan, nil
}

func (m *Matcher) eligible(tx *domain.Transaction, plan *Plan, i int) bool {
	return tx.PotentialTransfer && tx.LinkedTxID == nil && plan.Partners[i] == nil
}

func (m *Matcher) matchInBatch(batch []*domain.Transaction, plan *Plan, normalized []civil.Date, valid []bool, i int) (int, bool) {
	tx := batch[i]
	for j, other := range batch {
		if j == i || !m.eligible(other, plan, j) || !valid[j] {
			continue
		}
		if !domain.IsNegation(tx.Amount, other.Amount) {
			continue
		}
		if dates.DaysApart(normalized[i], normalized[j]) > m.windowDays {
			continue
		}
		if other.AccountName == tx.AccountName {
			continue
		}
		return j, true
	}
	return 0, false
}

func (m *Matcher) matchInStore(ctx context.Context, tx *domain.Transaction, date civil.Date, reserved map[string]bool) (string, error) {
	candidates, err := m.finder.FindTransferCandidates(ctx, -tx.Amount, tx.AccountName)
	if err != nil {
		return "", fmt.Errorf("find candidates: %w", err)
	}
	for _, c := range candidates {
		if c.ID == "" || reserved[c.ID] || c.AccountName == tx.AccountName {
			continue
		}
		d, ok := dates.Normalize(c.Date)
		if !ok || dates.DaysApart(date, d) > m.windowDays {
			continue
		}
		return c.ID, nil
	}
	return "", nil
}
