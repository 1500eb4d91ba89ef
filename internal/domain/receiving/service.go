package receiving

import (
	"context"
	"fmt"

	"branchstock/internal/core/apperror"
	appctx "branchstock/internal/core/context"
	"branchstock/internal/core/id"
	"branchstock/internal/core/tx"
	"branchstock/internal/core/types"
	"branchstock/internal/domain/ledger"
	"branchstock/internal/domain/serial"
	"branchstock/internal/domain/variant"
	"branchstock/pkg/logger"
)

// SerialRegistry is the subset of the serial registry receiving needs.
type SerialRegistry interface {
	RegisterUnit(ctx context.Context, parentVariantID id.ID, input serial.RegisterInput) (*serial.Unit, error)
}

// VariantStore is the subset of the variant service receiving needs.
type VariantStore interface {
	GetVariant(ctx context.Context, variantID id.ID) (*variant.Variant, error)
	AdjustQuantity(ctx context.Context, variantID id.ID, delta types.Quantity, expectedVersion int) error
}

// LedgerWriter writes receive entries.
type LedgerWriter interface {
	Append(ctx context.Context, e *ledger.Entry) (*ledger.Entry, error)
	AppendBatch(ctx context.Context, entries []*ledger.Entry) error
}

// Config holds receiving policy.
type Config struct {
	// GateExpression overrides the default receivability rule (CEL).
	GateExpression string
}

// Service applies purchase order deliveries.
type Service struct {
	repo      Repository
	serials   SerialRegistry
	variants  VariantStore
	entries   LedgerWriter
	gate      *Gate
	txManager tx.Manager
}

// NewService creates a new receiving service.
func NewService(
	repo Repository,
	serials SerialRegistry,
	variants VariantStore,
	entries LedgerWriter,
	txManager tx.Manager,
	cfg Config,
) (*Service, error) {
	gate, err := NewGate(cfg.GateExpression)
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:      repo,
		serials:   serials,
		variants:  variants,
		entries:   entries,
		gate:      gate,
		txManager: txManager,
	}, nil
}

// ReceiveLine applies one delivery to a PO line. Serialized items are
// registered as units (duplicate serials fail the whole delivery with
// DuplicateSerial); an unserialized remainder credits the variant
// directly. The line and order statuses are recomputed, and receiving
// beyond the ordered quantity is flagged as an OVER_RECEIPT warning
// rather than rejected.
func (s *Service) ReceiveLine(ctx context.Context, lineID id.ID, receivedQty types.Quantity, serials []SerialInput) (*ReceiveResult, error) {
	if !receivedQty.IsPositive() {
		return nil, apperror.NewValidation("received quantity must be positive").
			WithDetail("quantity", receivedQty.String())
	}
	if int64(len(serials)) > receivedQty.Units() {
		return nil, apperror.NewValidation("more serials than received quantity").
			WithDetail("serials", len(serials)).
			WithDetail("quantity", receivedQty.String())
	}

	actor := appctx.GetActorID(ctx)
	var result *ReceiveResult

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		line, err := s.repo.GetLineForUpdate(ctx, lineID)
		if err != nil {
			return err
		}

		order, err := s.repo.GetOrderInfo(ctx, line.OrderID)
		if err != nil {
			return err
		}

		allowed, err := s.gate.Allows(line, order)
		if err != nil {
			return err
		}
		if !allowed {
			return apperror.NewReceivingGateRejected(lineID.String()).
				WithDetail("rule", s.gate.Expression())
		}

		created := make([]*serial.Unit, 0, len(serials))
		unitEntries := make([]*ledger.Entry, 0, len(serials))
		for _, in := range serials {
			unit, err := s.serials.RegisterUnit(ctx, line.VariantID, serial.RegisterInput{
				Serial:       in.Serial,
				SerialNumber: in.SerialNumber,
				MAC:          in.MAC,
				Condition:    in.Condition,
				BranchID:     line.BranchID,
				SourceKind:   serial.SourcePurchaseOrder,
				SourceID:     &line.OrderID,
				Notes:        in.Notes,
			})
			if err != nil {
				return err
			}
			created = append(created, unit)

			unitEntries = append(unitEntries, &ledger.Entry{
				VariantID:     line.VariantID,
				SerialUnitID:  &unit.ID,
				BranchID:      line.BranchID,
				Type:          ledger.EntryReceive,
				Quantity:      types.NewQuantityFromInt(1),
				ReferenceKind: ledger.RefPurchaseOrder,
				ReferenceID:   &line.OrderID,
				ActorID:       actor,
			})
		}
		if err := s.entries.AppendBatch(ctx, unitEntries); err != nil {
			return err
		}

		// Unserialized remainder goes straight through the variant store
		remainder := receivedQty - types.NewQuantityFromInt(int64(len(serials)))
		if remainder.IsPositive() {
			v, err := s.variants.GetVariant(ctx, line.VariantID)
			if err != nil {
				return err
			}
			if err := s.variants.AdjustQuantity(ctx, line.VariantID, remainder, v.Version); err != nil {
				return err
			}
			if _, err := s.entries.Append(ctx, &ledger.Entry{
				VariantID:     line.VariantID,
				BranchID:      line.BranchID,
				Type:          ledger.EntryReceive,
				Quantity:      remainder,
				ReferenceKind: ledger.RefPurchaseOrder,
				ReferenceID:   &line.OrderID,
				ActorID:       actor,
			}); err != nil {
				return err
			}
		}

		line.QuantityReceived += receivedQty
		line.Status = LinePartialReceived
		if line.QuantityReceived >= line.QuantityOrdered {
			line.Status = LineReceived
		}
		if err := s.repo.UpdateLineReceived(ctx, lineID, line.QuantityReceived, line.Status); err != nil {
			return fmt.Errorf("update line: %w", err)
		}

		orderStatus, err := s.recomputeOrderStatus(ctx, line.OrderID)
		if err != nil {
			return err
		}

		result = &ReceiveResult{
			Line:         line,
			OrderStatus:  orderStatus,
			CreatedUnits: created,
		}
		if line.QuantityReceived > line.QuantityOrdered {
			result.Warnings = append(result.Warnings, apperror.WarnOverReceipt)
			logger.Warn(ctx, "over-receipt on purchase order line",
				"line_id", lineID,
				"ordered", line.QuantityOrdered.String(),
				"received", line.QuantityReceived.String(),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "delivery received",
		"line_id", lineID,
		"quantity", receivedQty.String(),
		"serialized", len(serials),
		"line_status", string(result.Line.Status),
		"order_status", string(result.OrderStatus),
	)
	return result, nil
}

// recomputeOrderStatus derives the order status from its lines: received
// only when every line is fully received, partial when anything arrived.
func (s *Service) recomputeOrderStatus(ctx context.Context, orderID id.ID) (OrderStatus, error) {
	lines, err := s.repo.ListLinesByOrder(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("list order lines: %w", err)
	}

	allReceived := true
	anyReceived := false
	for _, l := range lines {
		if l.Status != LineReceived {
			allReceived = false
		}
		if l.QuantityReceived.IsPositive() {
			anyReceived = true
		}
	}

	status := OrderOpen
	switch {
	case allReceived && len(lines) > 0:
		status = OrderReceived
	case anyReceived:
		status = OrderPartialReceived
	}

	if err := s.repo.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return "", fmt.Errorf("update order status: %w", err)
	}
	return status, nil
}

// GetLine retrieves one PO line.
func (s *Service) GetLine(ctx context.Context, lineID id.ID) (*Line, error) {
	return s.repo.GetLine(ctx, lineID)
}
