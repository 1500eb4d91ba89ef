package branch

import (
	"context"

	"branchstock/internal/core/id"
)

// Repository defines storage operations for branches.
type Repository interface {
	GetByID(ctx context.Context, branchID id.ID) (*Branch, error)
	GetByCode(ctx context.Context, code string) (*Branch, error)
	List(ctx context.Context, onlyActive bool) ([]*Branch, error)
	Create(ctx context.Context, b *Branch) error
	Update(ctx context.Context, b *Branch) error
	Deactivate(ctx context.Context, branchID id.ID) error
}
