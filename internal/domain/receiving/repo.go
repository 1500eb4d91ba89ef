package receiving

import (
	"context"

	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
)

// Repository defines storage operations for PO receiving state.
type Repository interface {
	GetLine(ctx context.Context, lineID id.ID) (*Line, error)

	// GetLineForUpdate locks the line row for the rest of the
	// transaction so concurrent deliveries serialize per line.
	GetLineForUpdate(ctx context.Context, lineID id.ID) (*Line, error)

	// UpdateLineReceived writes the new cumulative quantity and status.
	UpdateLineReceived(ctx context.Context, lineID id.ID, received types.Quantity, status LineStatus) error

	ListLinesByOrder(ctx context.Context, orderID id.ID) ([]*Line, error)

	GetOrderInfo(ctx context.Context, orderID id.ID) (*OrderInfo, error)

	UpdateOrderStatus(ctx context.Context, orderID id.ID, status OrderStatus) error
}
