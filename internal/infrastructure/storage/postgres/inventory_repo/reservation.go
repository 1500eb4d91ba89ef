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
	"branchstock/internal/domain/reservation"
	"branchstock/internal/infrastructure/storage/postgres"
)

const reservationsTable = "reservations"

// ReservationRepo implements reservation.Repository.
type ReservationRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewReservationRepo creates a new reservation repository.
func NewReservationRepo(txManager *postgres.TxManager) *ReservationRepo {
	return &ReservationRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var reservationColumns = []string{
	"id", "variant_id", "branch_id", "quantity",
	"reference_kind", "reference_id",
	"expires_at", "created_at", "released_at",
}

// ReserveQuantity increments the variant's reserved counter as a single
// conditional update; availability is checked in the WHERE clause, so no
// two callers can jointly oversell.
func (r *ReservationRepo) ReserveQuantity(ctx context.Context, variantID id.ID, quantity types.Quantity) error {
	sql := `
		UPDATE variants
		SET reserved = reserved + $1,
			updated_at = $2
		WHERE id = $3
		  AND on_hand - reserved >= $1
	`

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, quantity, time.Now().UTC(), variantID)
	if err != nil {
		return fmt.Errorf("reserve quantity: %w", err)
	}

	if result.RowsAffected() == 0 {
		var onHand, reserved int64
		err := querier.QueryRow(ctx,
			"SELECT on_hand, reserved FROM variants WHERE id = $1", variantID,
		).Scan(&onHand, &reserved)
		if err != nil {
			if pgxscan.NotFound(err) {
				return apperror.NewNotFound("variant", variantID)
			}
			return fmt.Errorf("read variant: %w", err)
		}
		available := types.NewQuantityFromInt64Scaled(onHand - reserved)
		return apperror.NewInsufficientStock(
			variantID.String(), quantity.Float64(), available.Float64(),
		)
	}

	return nil
}

// ReleaseQuantity decrements the reserved counter, failing closed when
// the release would drive it negative.
func (r *ReservationRepo) ReleaseQuantity(ctx context.Context, variantID id.ID, quantity types.Quantity) error {
	sql := `
		UPDATE variants
		SET reserved = reserved - $1,
			updated_at = $2
		WHERE id = $3
		  AND reserved >= $1
	`

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, quantity, time.Now().UTC(), variantID)
	if err != nil {
		return fmt.Errorf("release quantity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewOverRelease(variantID.String(), quantity.Float64())
	}

	return nil
}

// Create inserts a reservation record.
func (r *ReservationRepo) Create(ctx context.Context, hold *reservation.Reservation) error {
	q := r.builder.Insert(reservationsTable).
		Columns(reservationColumns...).
		Values(
			hold.ID, hold.VariantID, hold.BranchID, hold.Quantity,
			hold.ReferenceKind, hold.ReferenceID,
			hold.ExpiresAt, hold.CreatedAt, hold.ReleasedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	return nil
}

// GetByID retrieves a reservation by id.
func (r *ReservationRepo) GetByID(ctx context.Context, reservationID id.ID) (*reservation.Reservation, error) {
	q := r.builder.Select(reservationColumns...).
		From(reservationsTable).
		Where(squirrel.Eq{"id": reservationID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var hold reservation.Reservation
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &hold, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("reservation", reservationID)
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	return &hold, nil
}

// GetActiveByReference finds the unreleased hold for a document.
func (r *ReservationRepo) GetActiveByReference(ctx context.Context, kind reservation.ReferenceKind, referenceID id.ID) (*reservation.Reservation, error) {
	q := r.builder.Select(reservationColumns...).
		From(reservationsTable).
		Where(squirrel.Eq{
			"reference_kind": kind,
			"reference_id":   referenceID,
			"released_at":    nil,
		}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var hold reservation.Reservation
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &hold, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("reservation", referenceID)
		}
		return nil, fmt.Errorf("get reservation by reference: %w", err)
	}

	return &hold, nil
}

// MarkReleased stamps released_at, conditional on the hold being
// unreleased so a release applies at most once.
func (r *ReservationRepo) MarkReleased(ctx context.Context, reservationID id.ID, at time.Time) error {
	sql := `
		UPDATE reservations
		SET released_at = $1
		WHERE id = $2
		  AND released_at IS NULL
	`

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, at, reservationID)
	if err != nil {
		return fmt.Errorf("mark released: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConflict("reservation already released").
			WithDetail("reservation_id", reservationID.String())
	}

	return nil
}

// ListExpired returns unreleased holds past their expiry.
func (r *ReservationRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*reservation.Reservation, error) {
	q := r.builder.Select(reservationColumns...).
		From(reservationsTable).
		Where(squirrel.Eq{"released_at": nil}).
		Where(squirrel.Lt{"expires_at": now}).
		OrderBy("expires_at").
		Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var holds []*reservation.Reservation
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &holds, sql, args...); err != nil {
		return nil, fmt.Errorf("select expired: %w", err)
	}

	return holds, nil
}
