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
	"branchstock/internal/domain/serial"
	"branchstock/internal/infrastructure/storage/postgres"
)

const serialUnitsTable = "serial_units"

// SerialRepo implements serial.Repository.
type SerialRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewSerialRepo creates a new serial unit repository.
func NewSerialRepo(txManager *postgres.TxManager) *SerialRepo {
	return &SerialRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var serialColumns = []string{
	"id", "parent_variant_id", "child_variant_id",
	"serial", "serial_number", "mac", "condition",
	"cost_price", "selling_price",
	"status", "branch_id", "source_kind", "source_id",
	"notes", "created_at", "updated_at",
}

// Create inserts a unit. The unique constraint on serial is what closes
// the check-then-insert race; a 23505 violation becomes DuplicateSerial.
func (r *SerialRepo) Create(ctx context.Context, u *serial.Unit) error {
	q := r.builder.Insert(serialUnitsTable).
		Columns(serialColumns...).
		Values(
			u.ID, u.ParentVariantID, u.ChildVariantID,
			u.Serial, u.SerialNumber, u.MAC, u.Condition,
			u.CostPrice, u.SellingPrice,
			u.Status, u.BranchID, u.SourceKind, u.SourceID,
			u.Notes, u.CreatedAt, u.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicateSerial(u.Serial)
		}
		return fmt.Errorf("insert unit: %w", err)
	}

	return nil
}

// GetByID retrieves a unit by id.
func (r *SerialRepo) GetByID(ctx context.Context, unitID id.ID) (*serial.Unit, error) {
	q := r.builder.Select(serialColumns...).
		From(serialUnitsTable).
		Where(squirrel.Eq{"id": unitID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var u serial.Unit
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &u, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("serial unit", unitID)
		}
		return nil, fmt.Errorf("get unit: %w", err)
	}

	return &u, nil
}

// GetBySerial looks a unit up by its serial/IMEI.
func (r *SerialRepo) GetBySerial(ctx context.Context, serialNo string) (*serial.Unit, error) {
	q := r.builder.Select(serialColumns...).
		From(serialUnitsTable).
		Where(squirrel.Eq{"serial": serialNo}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var u serial.Unit
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &u, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("serial unit", serialNo)
		}
		return nil, fmt.Errorf("get unit by serial: %w", err)
	}

	return &u, nil
}

// ChangeStatus performs a guarded transition, conditional on the stored
// status matching from.
func (r *SerialRepo) ChangeStatus(ctx context.Context, unitID id.ID, from, to serial.Status) error {
	q := r.builder.Update(serialUnitsTable).
		Set("status", to).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": unitID, "status": from})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("change status: %w", err)
	}

	if result.RowsAffected() == 0 {
		current, err := r.GetByID(ctx, unitID)
		if err != nil {
			return err
		}
		return apperror.NewInvalidTransition(
			unitID.String(), string(from), string(to), string(current.Status),
		)
	}

	return nil
}

// ListByParent enumerates units under a parent variant.
func (r *SerialRepo) ListByParent(ctx context.Context, parentVariantID id.ID) ([]*serial.Unit, error) {
	q := r.builder.Select(serialColumns...).
		From(serialUnitsTable).
		Where(squirrel.Eq{"parent_variant_id": parentVariantID}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var units []*serial.Unit
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &units, sql, args...); err != nil {
		return nil, fmt.Errorf("select units: %w", err)
	}

	return units, nil
}

// CountActiveByParent counts units still backing the parent's on-hand
// quantity. In-transit units count: the source quantity is decremented
// only when their transfer completes.
func (r *SerialRepo) CountActiveByParent(ctx context.Context, parentVariantID id.ID) (int64, error) {
	sql := `
		SELECT COUNT(*)
		FROM serial_units
		WHERE parent_variant_id = $1
		  AND status IN ('available', 'reserved', 'transferred')
	`

	var count int64
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, parentVariantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active units: %w", err)
	}

	return count, nil
}

// MoveToBranch relocates units to a branch under a new parent variant,
// one guarded update per unit in a single round-trip. The status
// condition in each WHERE is what stops a unit sold or damaged after
// pinning from being silently resurrected at the destination.
func (r *SerialRepo) MoveToBranch(ctx context.Context, unitIDs []id.ID, branchID, parentVariantID id.ID, from, to serial.Status) error {
	if len(unitIDs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	queries := make([]postgres.BatchQuery, 0, len(unitIDs))
	for _, unitID := range unitIDs {
		q := r.builder.Update(serialUnitsTable).
			Set("branch_id", branchID).
			Set("parent_variant_id", parentVariantID).
			Set("status", to).
			Set("updated_at", now).
			Where(squirrel.Eq{"id": unitID, "status": from})

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	executor := postgres.NewBatchExecutor(r.txManager)
	affected, err := executor.ExecuteBatch(ctx, queries)
	if err != nil {
		return fmt.Errorf("move units: %w", err)
	}
	for i, n := range affected {
		if n == 0 {
			return apperror.NewConflict("unit is no longer movable").
				WithDetail("unit_id", unitIDs[i].String()).
				WithDetail("expected_status", string(from))
		}
	}

	return nil
}
