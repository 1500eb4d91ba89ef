// Package receiving provides the Receiving Reconciler: applying purchase
// order deliveries to variants, serial units and the stock ledger.
package receiving

import (
	"time"

	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
	"branchstock/internal/domain/serial"
)

// LineStatus tracks delivery progress on one PO line.
type LineStatus string

const (
	LinePending         LineStatus = "pending"
	LinePartialReceived LineStatus = "partial_received"
	LineReceived        LineStatus = "received"
)

// OrderStatus tracks delivery progress on the whole order.
type OrderStatus string

const (
	OrderOpen            OrderStatus = "open"
	OrderPartialReceived OrderStatus = "partial_received"
	OrderReceived        OrderStatus = "received"
)

// Line is one purchase order line with cumulative receiving state.
type Line struct {
	ID id.ID `db:"id" json:"id"`

	OrderID   id.ID `db:"order_id" json:"orderId"`
	VariantID id.ID `db:"variant_id" json:"variantId"`
	BranchID  id.ID `db:"branch_id" json:"branchId"`

	QuantityOrdered  types.Quantity `db:"quantity_ordered" json:"quantityOrdered"`
	QuantityReceived types.Quantity `db:"quantity_received" json:"quantityReceived"`

	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	Status LineStatus `db:"status" json:"status"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// OpenQuantity returns what is still undelivered. Never negative.
func (l *Line) OpenQuantity() types.Quantity {
	open := l.QuantityOrdered - l.QuantityReceived
	if open.IsNegative() {
		return 0
	}
	return open
}

// OrderInfo carries the order-level fields the receiving gate consults.
type OrderInfo struct {
	ID            id.ID       `db:"id" json:"id"`
	Status        OrderStatus `db:"status" json:"status"`
	PaymentStatus string      `db:"payment_status" json:"paymentStatus"`
}

// SerialInput is one delivered serial identifier with its attributes.
type SerialInput struct {
	Serial       string  `json:"serial"`
	SerialNumber *string `json:"serialNumber,omitempty"`
	MAC          *string `json:"mac,omitempty"`
	Condition    string  `json:"condition,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// ReceiveResult reports the outcome of one delivery application.
type ReceiveResult struct {
	Line         *Line          `json:"line"`
	OrderStatus  OrderStatus    `json:"orderStatus"`
	CreatedUnits []*serial.Unit `json:"createdUnits"`

	// Warnings carries non-fatal flags such as OVER_RECEIPT
	Warnings []string `json:"warnings,omitempty"`
}
