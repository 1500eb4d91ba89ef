package inventory_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/domain/catalogs/branch"
	"branchstock/internal/infrastructure/storage/postgres"
)

const branchesTable = "branches"

// BranchRepo implements branch.Repository.
type BranchRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewBranchRepo creates a new branch repository.
func NewBranchRepo(txManager *postgres.TxManager) *BranchRepo {
	return &BranchRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var branchColumns = []string{
	"id", "code", "name", "address", "phone",
	"is_active", "created_at", "updated_at",
}

// GetByID retrieves a branch by id.
func (r *BranchRepo) GetByID(ctx context.Context, branchID id.ID) (*branch.Branch, error) {
	q := r.builder.Select(branchColumns...).
		From(branchesTable).
		Where(squirrel.Eq{"id": branchID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b branch.Branch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("branch", branchID)
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}

	return &b, nil
}

// GetByCode retrieves a branch by its code.
func (r *BranchRepo) GetByCode(ctx context.Context, code string) (*branch.Branch, error) {
	q := r.builder.Select(branchColumns...).
		From(branchesTable).
		Where(squirrel.Eq{"code": code}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b branch.Branch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("branch", code)
		}
		return nil, fmt.Errorf("get branch by code: %w", err)
	}

	return &b, nil
}

// List returns branches, optionally only active ones.
func (r *BranchRepo) List(ctx context.Context, onlyActive bool) ([]*branch.Branch, error) {
	q := r.builder.Select(branchColumns...).
		From(branchesTable).
		OrderBy("code")

	if onlyActive {
		q = q.Where(squirrel.Eq{"is_active": true})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var branches []*branch.Branch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &branches, sql, args...); err != nil {
		return nil, fmt.Errorf("select branches: %w", err)
	}

	return branches, nil
}

// Create inserts a branch; a duplicate code conflicts.
func (r *BranchRepo) Create(ctx context.Context, b *branch.Branch) error {
	q := r.builder.Insert(branchesTable).
		Columns(branchColumns...).
		Values(
			b.ID, b.Code, b.Name, b.Address, b.Phone,
			b.IsActive, b.CreatedAt, b.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewConflict("branch code already exists").
				WithDetail("code", b.Code)
		}
		return fmt.Errorf("insert branch: %w", err)
	}

	return nil
}

// Update writes mutable branch fields.
func (r *BranchRepo) Update(ctx context.Context, b *branch.Branch) error {
	q := r.builder.Update(branchesTable).
		Set("name", b.Name).
		Set("address", b.Address).
		Set("phone", b.Phone).
		Set("is_active", b.IsActive).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": b.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update branch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("branch", b.ID)
	}

	return nil
}

// Deactivate soft-deactivates a branch.
func (r *BranchRepo) Deactivate(ctx context.Context, branchID id.ID) error {
	q := r.builder.Update(branchesTable).
		Set("is_active", false).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": branchID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("deactivate branch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("branch", branchID)
	}

	return nil
}
