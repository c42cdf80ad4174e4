package transfers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/ledger"
	"github.com/dvloznov/fintrack/internal/logger"
)

// Linker writes matched batches to the ledger and owns every later change to transfer links.
type Linker struct {
	repo     ledger.Repository
	attempts uint
	delay    time.Duration
}

// LinkerOption configures a Linker.
type LinkerOption func(*Linker)

// WithRetry sets how often a best-effort link update is attempted.
func WithRetry(attempts uint, delay time.Duration) LinkerOption {
	return func(l *Linker) {
		l.attempts = attempts
		l.delay = delay
	}
}

// NewLinker creates a Linker over repo.
func NewLinker(repo ledger.Repository, opts ...LinkerOption) *Linker {
	l := &Linker{repo: repo, attempts: 3, delay: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Persist inserts the batch and then applies plan.
//
// The insert is all-or-nothing and its failure is returned. Everything after it is a
// best-effort consistency pass: failures are logged and the affected records are returned
// unlinked. Stored partners are claimed with a conditional update, so a record that lost
// the race to another ingestion is stored as an ordinary transaction.
//
// The returned records are copies carrying their persisted IDs and final links.
func (l *Linker) Persist(ctx context.Context, batch []*domain.Transaction, plan *Plan) ([]*domain.Transaction, error) {
	if len(batch) == 0 {
		return []*domain.Transaction{}, nil
	}
	if plan == nil {
		plan = &Plan{Partners: make([]*Partner, len(batch))}
	}
	if len(plan.Partners) != len(batch) {
		return nil, fmt.Errorf("Persist: plan covers %d records, batch has %d", len(plan.Partners), len(batch))
	}

	out := make([]*domain.Transaction, len(batch))
	for i, tx := range batch {
		out[i] = tx.Clone()
		out[i].Unlink()
	}

	ids, err := l.repo.InsertMany(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("Persist: insert batch: %w", err)
	}
	if len(ids) != len(out) {
		return nil, fmt.Errorf("Persist: store returned %d ids for %d records", len(ids), len(out))
	}
	for i, id := range ids {
		out[i].ID = id
	}

	l.resolveBatchLinks(ctx, out, plan)
	l.claimStoredPartners(ctx, out, plan)

	return out, nil
}

// resolveBatchLinks turns batch-index partners into real IDs on both sides. Each pair is
// written once; if the second side fails the first is cleared again, so a pair is either
// stored in both directions or not at all.
func (l *Linker) resolveBatchLinks(ctx context.Context, out []*domain.Transaction, plan *Plan) {
	log := logger.FromContext(ctx)

	for i, p := range plan.Partners {
		if p == nil || !p.InBatch() {
			continue
		}
		j := p.Index
		if j < 0 || j >= len(out) || j == i {
			log.Error().Int("index", i).Int("partner_index", j).Msg("ignoring invalid batch partner")
			continue
		}
		back := plan.Partners[j]
		if back != nil && (!back.InBatch() || back.Index != i) {
			log.Error().Int("index", i).Int("partner_index", j).Msg("ignoring batch partner that points elsewhere")
			continue
		}
		if back != nil && j < i {
			// written when j was visited
			continue
		}

		self, partner := out[i], out[j]
		if err := l.setLink(ctx, self.ID, partner.ID); err != nil {
			log.Error().Err(err).Str("tx_id", self.ID).Str("partner_id", partner.ID).Msg("failed to resolve batch transfer link")
			continue
		}
		if err := l.setLink(ctx, partner.ID, self.ID); err != nil {
			log.Error().Err(err).Str("tx_id", partner.ID).Str("partner_id", self.ID).Msg("failed to resolve batch transfer link, clearing other side")
			if err := l.clearLink(ctx, self.ID); err != nil {
				log.Error().Err(err).Str("tx_id", self.ID).Msg("failed to clear half-written batch link")
				// the store still holds self -> partner
				self.LinkTo(partner.ID)
			}
			continue
		}
		self.LinkTo(partner.ID)
		partner.LinkTo(self.ID)
	}
}

// claimStoredPartners back-links stored partners to the newly persisted records.
func (l *Linker) claimStoredPartners(ctx context.Context, out []*domain.Transaction, plan *Plan) {
	log := logger.FromContext(ctx)

	for i, p := range plan.Partners {
		if p == nil || p.InBatch() {
			continue
		}
		self := out[i]

		won, err := l.repo.ClaimLink(ctx, p.ID, self.ID)
		if err != nil {
			log.Error().Err(err).Str("tx_id", self.ID).Str("partner_id", p.ID).Msg("failed to claim stored transfer partner")
			continue
		}
		if !won {
			log.Warn().Str("tx_id", self.ID).Str("partner_id", p.ID).Msg("stored transfer partner already linked, leaving record unlinked")
			continue
		}

		if err := l.setLink(ctx, self.ID, p.ID); err != nil {
			log.Error().Err(err).Str("tx_id", self.ID).Str("partner_id", p.ID).Msg("failed to link record to claimed partner, releasing claim")
			if err := l.clearLink(ctx, p.ID); err != nil {
				log.Error().Err(err).Str("tx_id", p.ID).Msg("failed to release claimed partner")
			}
			continue
		}
		self.LinkTo(p.ID)
	}
}

// Link pairs a and b as a manual override, without checking that they look like a
// transfer. Previous partners still pointing back at either side are released first.
func (l *Linker) Link(ctx context.Context, a, b string) error {
	if a == b {
		return fmt.Errorf("Link: cannot link %s to itself", a)
	}
	txA, err := l.repo.Get(ctx, a)
	if err != nil {
		return fmt.Errorf("Link: get %s: %w", a, err)
	}
	txB, err := l.repo.Get(ctx, b)
	if err != nil {
		return fmt.Errorf("Link: get %s: %w", b, err)
	}

	for _, tx := range []*domain.Transaction{txA, txB} {
		old := tx.PartnerID()
		if old == "" || old == a || old == b {
			continue
		}
		if err := l.releaseIfPointingAt(ctx, old, tx.ID); err != nil {
			return fmt.Errorf("Link: release previous partner %s: %w", old, err)
		}
	}

	if err := l.setLink(ctx, a, b); err != nil {
		return fmt.Errorf("Link: %s -> %s: %w", a, b, err)
	}
	if err := l.setLink(ctx, b, a); err != nil {
		if clearErr := l.clearLink(ctx, a); clearErr != nil {
			return fmt.Errorf("Link: %s -> %s: %w (clearing %s also failed: %v)", b, a, err, a, clearErr)
		}
		return fmt.Errorf("Link: %s -> %s: %w", b, a, err)
	}
	return nil
}

// Unlink clears id and its partner. A partner that is missing or no longer points back
// is not an error.
func (l *Linker) Unlink(ctx context.Context, id string) error {
	tx, err := l.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("Unlink: get %s: %w", id, err)
	}
	if err := l.clearLink(ctx, id); err != nil {
		return fmt.Errorf("Unlink: clear %s: %w", id, err)
	}
	partner := tx.PartnerID()
	if partner == "" {
		return nil
	}
	if err := l.clearLink(ctx, partner); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return fmt.Errorf("Unlink: clear partner %s: %w", partner, err)
	}
	return nil
}

// Pairs returns every persisted transfer once, outgoing side as Source. Records whose
// partner is missing or does not point back are left out.
func (l *Linker) Pairs(ctx context.Context) ([]domain.TransferPair, error) {
	linked, err := l.repo.ListTransfers(ctx)
	if err != nil {
		return nil, fmt.Errorf("Pairs: %w", err)
	}

	byID := make(map[string]*domain.Transaction, len(linked))
	for _, tx := range linked {
		byID[tx.ID] = tx
	}

	pairs := []domain.TransferPair{}
	seen := make(map[string]bool)
	for _, tx := range linked {
		if seen[tx.ID] {
			continue
		}
		partner, ok := byID[tx.PartnerID()]
		if !ok || partner.PartnerID() != tx.ID {
			continue
		}
		seen[tx.ID], seen[partner.ID] = true, true

		source, target := tx, partner
		if source.Amount > target.Amount {
			source, target = target, source
		}
		pairs = append(pairs, domain.TransferPair{Source: source, Target: target})
	}
	return pairs, nil
}

func (l *Linker) releaseIfPointingAt(ctx context.Context, id, target string) error {
	tx, err := l.repo.Get(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if tx.PartnerID() != target {
		return nil
	}
	return l.clearLink(ctx, id)
}

func (l *Linker) setLink(ctx context.Context, id, partnerID string) error {
	return l.retry(ctx, func() error { return l.repo.SetLink(ctx, id, partnerID) })
}

func (l *Linker) clearLink(ctx context.Context, id string) error {
	return l.retry(ctx, func() error { return l.repo.ClearLink(ctx, id) })
}

func (l *Linker) retry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ledger.ErrNotFound) && !errors.Is(err, context.Canceled)
		}),
		retry.Attempts(l.attempts),
		retry.Delay(l.delay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}
