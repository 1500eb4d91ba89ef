package inventory_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/domain/transfer"
	"branchstock/internal/infrastructure/storage/postgres"
)

const transfersTable = "transfers"

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewTransferRepo creates a new transfer repository.
func NewTransferRepo(txManager *postgres.TxManager) *TransferRepo {
	return &TransferRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var transferColumns = []string{
	"id", "number", "variant_id", "from_branch_id", "to_branch_id",
	"quantity", "serial_unit_ids", "status", "reservation_id",
	"requested_by", "approved_by", "completed_by",
	"notes", "failure_reason",
	"requested_at", "approved_at", "in_transit_at",
	"completed_at", "cancelled_at", "failed_at",
	"created_at", "updated_at",
}

// Create inserts a transfer.
func (r *TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	q := r.builder.Insert(transfersTable).
		Columns(transferColumns...).
		Values(
			t.ID, t.Number, t.VariantID, t.FromBranchID, t.ToBranchID,
			t.Quantity, t.SerialUnitIDs, t.Status, t.ReservationID,
			t.RequestedBy, t.ApprovedBy, t.CompletedBy,
			t.Notes, t.FailureReason,
			t.RequestedAt, t.ApprovedAt, t.InTransitAt,
			t.CompletedAt, t.CancelledAt, t.FailedAt,
			t.CreatedAt, t.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}

	return nil
}

// GetByID retrieves a transfer by id.
func (r *TransferRepo) GetByID(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	q := r.builder.Select(transferColumns...).
		From(transfersTable).
		Where(squirrel.Eq{"id": transferID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t transfer.Transfer
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("transfer", transferID)
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}

	return &t, nil
}

// UpdateStatus transitions from -> to conditionally on the stored status.
// The per-transition timestamp and actor columns are written together
// with the status in one statement.
func (r *TransferRepo) UpdateStatus(ctx context.Context, transferID id.ID, from, to transfer.Status, patch transfer.StatusPatch) error {
	if patch.At.IsZero() {
		patch.At = time.Now().UTC()
	}

	q := r.builder.Update(transfersTable).
		Set("status", to).
		Set("updated_at", patch.At).
		Where(squirrel.Eq{"id": transferID, "status": from})

	switch to {
	case transfer.StatusApproved:
		q = q.Set("approved_at", patch.At).Set("approved_by", patch.ApprovedBy)
	case transfer.StatusInTransit:
		q = q.Set("in_transit_at", patch.At).Set("reservation_id", patch.ReservationID)
	case transfer.StatusCompleted:
		q = q.Set("completed_at", patch.At).Set("completed_by", patch.CompletedBy)
	case transfer.StatusCancelled:
		q = q.Set("cancelled_at", patch.At).Set("failure_reason", patch.FailureReason)
	case transfer.StatusFailed:
		q = q.Set("failed_at", patch.At).Set("failure_reason", patch.FailureReason)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	if result.RowsAffected() == 0 {
		current, err := r.GetByID(ctx, transferID)
		if err != nil {
			return err
		}
		return apperror.NewInvalidState(
			transferID.String(), string(current.Status), string(from),
		)
	}

	return nil
}

// FindActiveDuplicate looks for a non-terminal transfer with the same
// variant, route and requester created after since.
func (r *TransferRepo) FindActiveDuplicate(ctx context.Context, variantID, fromBranchID, toBranchID id.ID, requestedBy string, since time.Time) (*transfer.Transfer, error) {
	q := r.builder.Select(transferColumns...).
		From(transfersTable).
		Where(squirrel.Eq{
			"variant_id":     variantID,
			"from_branch_id": fromBranchID,
			"to_branch_id":   toBranchID,
			"requested_by":   requestedBy,
		}).
		Where(squirrel.Eq{"status": []transfer.Status{
			transfer.StatusPending, transfer.StatusApproved, transfer.StatusInTransit,
		}}).
		Where(squirrel.GtOrEq{"created_at": since}).
		OrderBy("created_at DESC").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t transfer.Transfer
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("transfer", "duplicate probe")
		}
		return nil, fmt.Errorf("find duplicate: %w", err)
	}

	return &t, nil
}

// ListByBranch returns transfers where the branch is source or
// destination, newest first.
func (r *TransferRepo) ListByBranch(ctx context.Context, branchID id.ID, filter transfer.ListFilter) ([]*transfer.Transfer, error) {
	q := r.builder.Select(transferColumns...).
		From(transfersTable).
		Where(squirrel.Or{
			squirrel.Eq{"from_branch_id": branchID},
			squirrel.Eq{"to_branch_id": branchID},
		})

	q = applyTransferFilter(q, filter)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var transfers []*transfer.Transfer
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &transfers, sql, args...); err != nil {
		return nil, fmt.Errorf("select transfers: %w", err)
	}

	return transfers, nil
}

// ListByVariant returns a variant's transfers, newest first.
func (r *TransferRepo) ListByVariant(ctx context.Context, variantID id.ID, filter transfer.ListFilter) ([]*transfer.Transfer, error) {
	q := r.builder.Select(transferColumns...).
		From(transfersTable).
		Where(squirrel.Eq{"variant_id": variantID})

	q = applyTransferFilter(q, filter)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var transfers []*transfer.Transfer
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &transfers, sql, args...); err != nil {
		return nil, fmt.Errorf("select transfers: %w", err)
	}

	return transfers, nil
}

func applyTransferFilter(q squirrel.SelectBuilder, filter transfer.ListFilter) squirrel.SelectBuilder {
	if len(filter.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": filter.Statuses})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.ToDate})
	}

	q = q.OrderBy("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

// StatsByBranch aggregates counts per status for a branch.
func (r *TransferRepo) StatsByBranch(ctx context.Context, branchID id.ID) (*transfer.Stats, error) {
	sql := `
		SELECT
			COUNT(*) FILTER (WHERE from_branch_id = $1)                    AS outbound,
			COUNT(*) FILTER (WHERE to_branch_id = $1)                      AS inbound,
			COUNT(*) FILTER (WHERE status = 'pending')                     AS pending,
			COUNT(*) FILTER (WHERE status = 'in_transit')                  AS in_transit,
			COUNT(*) FILTER (WHERE status = 'completed')                   AS completed,
			COUNT(*) FILTER (WHERE status = 'cancelled')                   AS cancelled,
			COUNT(*) FILTER (WHERE status = 'failed')                      AS failed
		FROM transfers
		WHERE from_branch_id = $1 OR to_branch_id = $1
	`

	stats := transfer.Stats{BranchID: branchID}
	querier := r.txManager.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, branchID).Scan(
		&stats.Outbound, &stats.Inbound,
		&stats.Pending, &stats.InTransit,
		&stats.Completed, &stats.Cancelled, &stats.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}

	return &stats, nil
}
