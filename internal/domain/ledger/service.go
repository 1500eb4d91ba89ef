package ledger

import (
	"context"
	"fmt"
	"time"

	"branchstock/internal/core/apperror"
	appctx "branchstock/internal/core/context"
	"branchstock/internal/core/id"
	"branchstock/internal/core/tx"
	"branchstock/internal/core/types"
	"branchstock/internal/domain/variant"
	"branchstock/pkg/logger"
)

// VariantReader provides the cached quantity for reconciliation.
type VariantReader interface {
	GetVariant(ctx context.Context, variantID id.ID) (*variant.Variant, error)
}

// Service provides business operations for the stock ledger.
type Service struct {
	repo     Repository
	variants VariantReader
	roTx     tx.ReadOnlyManager
}

// NewService creates a new ledger service.
func NewService(repo Repository, variants VariantReader, roTx tx.ReadOnlyManager) *Service {
	return &Service{repo: repo, variants: variants, roTx: roTx}
}

// Append validates and persists one entry. Pure insert, no business
// logic; the caller is responsible for the matching quantity adjustment
// in the same transaction.
func (s *Service) Append(ctx context.Context, e *Entry) (*Entry, error) {
	if id.IsNil(e.ID) {
		e.ID = id.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ActorID == "" {
		e.ActorID = appctx.GetActorID(ctx)
	}
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.repo.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("append entry: %w", err)
	}
	return e, nil
}

// AppendBatch persists many entries in one round-trip.
func (s *Service) AppendBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	actor := appctx.GetActorID(ctx)
	for _, e := range entries {
		if id.IsNil(e.ID) {
			e.ID = id.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.ActorID == "" {
			e.ActorID = actor
		}
		if err := e.Validate(ctx); err != nil {
			return err
		}
	}
	return s.repo.AppendBatch(ctx, entries)
}

// SumForVariant returns the net ledger quantity for a variant at a
// branch. Audit path only; the hot path reads the cached quantity.
func (s *Service) SumForVariant(ctx context.Context, variantID, branchID id.ID) (types.Quantity, error) {
	return s.repo.SumForVariant(ctx, variantID, branchID)
}

// History returns ledger entries matching the filter.
func (s *Service) History(ctx context.Context, filter HistoryFilter) ([]*Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.History(ctx, filter)
}

// ReconcileVariant compares the ledger sum against the variant's cached
// on-hand quantity for its branch. A non-zero delta means the cache has
// drifted from the source of truth. Both reads run in one read-only
// transaction so a transfer committing in between cannot fake a drift.
func (s *Service) ReconcileVariant(ctx context.Context, variantID id.ID) (*Reconciliation, error) {
	var rec *Reconciliation
	err := s.roTx.ReadOnly(ctx, func(ctx context.Context) error {
		v, err := s.variants.GetVariant(ctx, variantID)
		if err != nil {
			return err
		}
		if v.BranchID == nil {
			return apperror.NewValidation("variant is not branch-scoped").
				WithDetail("variant_id", variantID.String())
		}

		sum, err := s.repo.SumForVariant(ctx, variantID, *v.BranchID)
		if err != nil {
			return fmt.Errorf("sum ledger: %w", err)
		}

		rec = &Reconciliation{
			VariantID: variantID,
			BranchID:  *v.BranchID,
			LedgerSum: sum,
			CachedQty: v.OnHand,
			Delta:     v.OnHand - sum,
			Healthy:   v.OnHand == sum,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !rec.Healthy {
		logger.Warn(ctx, "reconciliation mismatch",
			"variant_id", variantID,
			"ledger_sum", rec.LedgerSum.String(),
			"cached", rec.CachedQty.String(),
		)
	}
	return rec, nil
}
