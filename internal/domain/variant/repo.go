package variant

import (
	"context"

	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
)

// Repository defines storage operations for variants.
type Repository interface {
	GetByID(ctx context.Context, variantID id.ID) (*Variant, error)

	// GetByProductAndBranch finds the variant row for a product at a branch.
	// Returns NotFound when the product has no row there yet.
	GetByProductAndBranch(ctx context.Context, productID, branchID id.ID) (*Variant, error)

	Create(ctx context.Context, v *Variant) error

	// AdjustQuantity applies delta to on_hand under optimistic concurrency.
	// The update is conditional on the stored version matching
	// expectedVersion and on the resulting on_hand staying non-negative.
	// Zero rows affected yields ConcurrentModification or a negative-stock
	// validation error depending on the re-read state.
	AdjustQuantity(ctx context.Context, variantID id.ID, delta types.Quantity, expectedVersion int) error

	// MarkAsParent transitions the variant kind to parent. Idempotent.
	MarkAsParent(ctx context.Context, variantID id.ID) error

	// Deactivate soft-deactivates a variant. Rows referenced by ledger
	// entries are never hard-deleted.
	Deactivate(ctx context.Context, variantID id.ID) error

	// ReassignChildren moves child variant rows to a new branch and
	// parent, keeping them colocated with their serial units.
	ReassignChildren(ctx context.Context, childIDs []id.ID, branchID, parentID id.ID) error

	ListByParent(ctx context.Context, parentID id.ID) ([]*Variant, error)
}
