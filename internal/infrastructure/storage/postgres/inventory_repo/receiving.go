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
	"branchstock/internal/domain/receiving"
	"branchstock/internal/infrastructure/storage/postgres"
)

const (
	poLinesTable        = "po_lines"
	purchaseOrdersTable = "purchase_orders"
)

// ReceivingRepo implements receiving.Repository.
type ReceivingRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewReceivingRepo creates a new receiving repository.
func NewReceivingRepo(txManager *postgres.TxManager) *ReceivingRepo {
	return &ReceivingRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var lineColumns = []string{
	"id", "order_id", "variant_id", "branch_id",
	"quantity_ordered", "quantity_received", "unit_cost",
	"status", "created_at", "updated_at",
}

// GetLine retrieves one PO line.
func (r *ReceivingRepo) GetLine(ctx context.Context, lineID id.ID) (*receiving.Line, error) {
	q := r.builder.Select(lineColumns...).
		From(poLinesTable).
		Where(squirrel.Eq{"id": lineID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var line receiving.Line
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &line, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("po line", lineID)
		}
		return nil, fmt.Errorf("get line: %w", err)
	}

	return &line, nil
}

// GetLineForUpdate locks the line row so concurrent deliveries serialize.
func (r *ReceivingRepo) GetLineForUpdate(ctx context.Context, lineID id.ID) (*receiving.Line, error) {
	sql := `
		SELECT id, order_id, variant_id, branch_id,
			   quantity_ordered, quantity_received, unit_cost,
			   status, created_at, updated_at
		FROM po_lines
		WHERE id = $1
		FOR UPDATE
	`

	var line receiving.Line
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &line, sql, lineID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("po line", lineID)
		}
		return nil, fmt.Errorf("get line for update: %w", err)
	}

	return &line, nil
}

// UpdateLineReceived writes the new cumulative quantity and status.
func (r *ReceivingRepo) UpdateLineReceived(ctx context.Context, lineID id.ID, received types.Quantity, status receiving.LineStatus) error {
	q := r.builder.Update(poLinesTable).
		Set("quantity_received", received).
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": lineID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update line: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("po line", lineID)
	}

	return nil
}

// ListLinesByOrder returns all lines of an order.
func (r *ReceivingRepo) ListLinesByOrder(ctx context.Context, orderID id.ID) ([]*receiving.Line, error) {
	q := r.builder.Select(lineColumns...).
		From(poLinesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []*receiving.Line
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}

	return lines, nil
}

// GetOrderInfo returns the order-level fields the gate consults.
func (r *ReceivingRepo) GetOrderInfo(ctx context.Context, orderID id.ID) (*receiving.OrderInfo, error) {
	q := r.builder.Select("id", "status", "payment_status").
		From(purchaseOrdersTable).
		Where(squirrel.Eq{"id": orderID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var info receiving.OrderInfo
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &info, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("purchase order", orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return &info, nil
}

// UpdateOrderStatus writes the derived order status.
func (r *ReceivingRepo) UpdateOrderStatus(ctx context.Context, orderID id.ID, status receiving.OrderStatus) error {
	q := r.builder.Update(purchaseOrdersTable).
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": orderID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase order", orderID)
	}

	return nil
}
