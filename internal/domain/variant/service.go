package variant

import (
	"context"
	"fmt"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
	"branchstock/pkg/logger"
)

// Service provides business operations for the variant store.
// It is the single mutation point for cached on-hand quantities; every
// other component routes quantity changes through AdjustQuantity.
type Service struct {
	repo Repository
}

// NewService creates a new variant service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetVariant retrieves a variant by id.
func (s *Service) GetVariant(ctx context.Context, variantID id.ID) (*Variant, error) {
	return s.repo.GetByID(ctx, variantID)
}

// CreateVariant validates and persists a new variant.
func (s *Service) CreateVariant(ctx context.Context, v *Variant) error {
	if err := v.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return fmt.Errorf("create variant: %w", err)
	}
	return nil
}

// AdjustQuantity applies delta to the cached on-hand quantity under
// optimistic concurrency. ConcurrentModification means the caller's read
// is stale; re-read and retry.
func (s *Service) AdjustQuantity(ctx context.Context, variantID id.ID, delta types.Quantity, expectedVersion int) error {
	if delta.IsZero() {
		return nil
	}
	if err := s.repo.AdjustQuantity(ctx, variantID, delta, expectedVersion); err != nil {
		return err
	}

	logger.Debug(ctx, "quantity adjusted",
		"variant_id", variantID,
		"delta", delta.String(),
	)
	return nil
}

// MarkAsParent transitions a variant to the parent kind, used the first
// time a serialized unit is attached. Idempotent.
func (s *Service) MarkAsParent(ctx context.Context, variantID id.ID) error {
	v, err := s.repo.GetByID(ctx, variantID)
	if err != nil {
		return err
	}
	if v.Kind == KindParent {
		return nil
	}
	if v.Kind == KindChild {
		return apperror.NewValidation("child variant cannot become a parent").
			WithDetail("variant_id", variantID.String())
	}
	return s.repo.MarkAsParent(ctx, variantID)
}

// FindOrCreateAtBranch returns the variant row for source's product at the
// given branch, creating one with zero stock on first use. Transfers into
// a branch that has never stocked the product go through here.
func (s *Service) FindOrCreateAtBranch(ctx context.Context, source *Variant, branchID id.ID) (*Variant, error) {
	existing, err := s.repo.GetByProductAndBranch(ctx, source.ProductID, branchID)
	if err == nil {
		return existing, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("find variant at branch: %w", err)
	}

	dest := New(source.ProductID, &branchID, source.Name)
	dest.Kind = source.Kind
	dest.ParentID = source.ParentID
	dest.CostPrice = source.CostPrice
	dest.SellingPrice = source.SellingPrice

	if err := s.repo.Create(ctx, dest); err != nil {
		return nil, fmt.Errorf("create variant at branch: %w", err)
	}

	logger.Info(ctx, "variant created at branch",
		"variant_id", dest.ID,
		"product_id", source.ProductID,
		"branch_id", branchID,
	)
	return dest, nil
}

// ReassignChildren moves per-unit child rows under a new parent at a new
// branch, so child rows stay colocated with their serial units when a
// transfer lands them elsewhere. The destination row is promoted to a
// parent on first use, same as unit registration does.
func (s *Service) ReassignChildren(ctx context.Context, childIDs []id.ID, branchID, parentID id.ID) error {
	if len(childIDs) == 0 {
		return nil
	}

	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.Kind != KindParent {
		if err := s.MarkAsParent(ctx, parentID); err != nil {
			return err
		}
	}

	return s.repo.ReassignChildren(ctx, childIDs, branchID, parentID)
}

// DeactivateVariant soft-deactivates a variant. A variant still carrying
// stock or an open hold cannot be retired.
func (s *Service) DeactivateVariant(ctx context.Context, variantID id.ID) error {
	v, err := s.repo.GetByID(ctx, variantID)
	if err != nil {
		return err
	}
	if !v.OnHand.IsZero() || !v.Reserved.IsZero() {
		return apperror.NewValidation("variant still has stock").
			WithDetail("variant_id", variantID.String()).
			WithDetail("on_hand", v.OnHand.String()).
			WithDetail("reserved", v.Reserved.String())
	}

	if err := s.repo.Deactivate(ctx, variantID); err != nil {
		return err
	}

	logger.Info(ctx, "variant deactivated", "variant_id", variantID)
	return nil
}

// ChildVariants lists the per-unit child rows under a parent.
func (s *Service) ChildVariants(ctx context.Context, parentID id.ID) ([]*Variant, error) {
	return s.repo.ListByParent(ctx, parentID)
}
