// Package inventory_repo provides PostgreSQL implementations for the
// inventory domain repositories.
package inventory_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
	"branchstock/internal/domain/variant"
	"branchstock/internal/infrastructure/storage/postgres"
)

const variantsTable = "variants"

// VariantRepo implements variant.Repository.
type VariantRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewVariantRepo creates a new variant repository.
func NewVariantRepo(txManager *postgres.TxManager) *VariantRepo {
	return &VariantRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var variantColumns = []string{
	"id", "product_id", "branch_id", "name",
	"cost_price", "selling_price",
	"on_hand", "reserved", "kind", "parent_id",
	"version", "is_active", "created_at", "updated_at",
}

// GetByID retrieves a variant by id.
func (r *VariantRepo) GetByID(ctx context.Context, variantID id.ID) (*variant.Variant, error) {
	q := r.builder.Select(variantColumns...).
		From(variantsTable).
		Where(squirrel.Eq{"id": variantID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var v variant.Variant
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &v, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("variant", variantID)
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}

	return &v, nil
}

// GetByProductAndBranch finds the variant row for a product at a branch.
// Child rows are excluded; pools are standalone or parent variants.
func (r *VariantRepo) GetByProductAndBranch(ctx context.Context, productID, branchID id.ID) (*variant.Variant, error) {
	q := r.builder.Select(variantColumns...).
		From(variantsTable).
		Where(squirrel.Eq{
			"product_id": productID,
			"branch_id":  branchID,
			"is_active":  true,
		}).
		Where(squirrel.NotEq{"kind": variant.KindChild}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var v variant.Variant
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &v, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("variant", fmt.Sprintf("product=%s branch=%s", productID, branchID))
		}
		return nil, fmt.Errorf("get variant by product and branch: %w", err)
	}

	return &v, nil
}

// Create inserts a variant.
func (r *VariantRepo) Create(ctx context.Context, v *variant.Variant) error {
	q := r.builder.Insert(variantsTable).
		Columns(variantColumns...).
		Values(
			v.ID, v.ProductID, v.BranchID, v.Name,
			v.CostPrice, v.SellingPrice,
			v.OnHand, v.Reserved, v.Kind, v.ParentID,
			v.Version, v.IsActive, v.CreatedAt, v.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert variant: %w", err)
	}

	return nil
}

// AdjustQuantity applies delta to on_hand, conditional on the stored
// version and on the result staying non-negative. The single UPDATE is
// what makes concurrent adjusters safe without long-held locks.
func (r *VariantRepo) AdjustQuantity(ctx context.Context, variantID id.ID, delta types.Quantity, expectedVersion int) error {
	sql := `
		UPDATE variants
		SET on_hand = on_hand + $1,
			version = version + 1,
			updated_at = $2
		WHERE id = $3
		  AND version = $4
		  AND on_hand + $1 >= 0
	`

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, delta, time.Now().UTC(), variantID, expectedVersion)
	if err != nil {
		return fmt.Errorf("adjust quantity: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish a stale version from the negative-stock guard
		current, err := r.GetByID(ctx, variantID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return apperror.NewConcurrentModification("variant", variantID)
		}
		return apperror.NewInsufficientStock(
			variantID.String(), delta.Abs().Float64(), current.OnHand.Float64(),
		)
	}

	return nil
}

// MarkAsParent transitions the kind to parent. Idempotent.
func (r *VariantRepo) MarkAsParent(ctx context.Context, variantID id.ID) error {
	q := r.builder.Update(variantsTable).
		Set("kind", variant.KindParent).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": variantID}).
		Where(squirrel.NotEq{"kind": variant.KindChild})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark as parent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("variant", variantID)
	}

	return nil
}

// Deactivate soft-deactivates a variant.
func (r *VariantRepo) Deactivate(ctx context.Context, variantID id.ID) error {
	q := r.builder.Update(variantsTable).
		Set("is_active", false).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": variantID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("deactivate variant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("variant", variantID)
	}

	return nil
}

// ReassignChildren moves child rows to a new branch and parent. The kind
// guard keeps a bad id list from touching standalone or parent rows.
func (r *VariantRepo) ReassignChildren(ctx context.Context, childIDs []id.ID, branchID, parentID id.ID) error {
	if len(childIDs) == 0 {
		return nil
	}

	q := r.builder.Update(variantsTable).
		Set("branch_id", branchID).
		Set("parent_id", parentID).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": childIDs, "kind": variant.KindChild})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("reassign children: %w", err)
	}
	if result.RowsAffected() != int64(len(childIDs)) {
		return apperror.NewConflict("some child rows were not reassigned").
			WithDetail("expected", len(childIDs)).
			WithDetail("reassigned", result.RowsAffected())
	}

	return nil
}

// ListByParent returns the child variant rows under a parent.
func (r *VariantRepo) ListByParent(ctx context.Context, parentID id.ID) ([]*variant.Variant, error) {
	q := r.builder.Select(variantColumns...).
		From(variantsTable).
		Where(squirrel.Eq{"parent_id": parentID}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var variants []*variant.Variant
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &variants, sql, args...); err != nil {
		return nil, fmt.Errorf("select children: %w", err)
	}

	return variants, nil
}
