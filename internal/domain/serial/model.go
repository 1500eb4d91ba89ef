// Package serial provides the Serial Unit Registry: individually
// identified (IMEI-tracked) physical items linked to a parent variant.
package serial

import (
	"context"
	"strings"
	"time"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
)

// Status of a serial unit.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusReserved    Status = "reserved"
	StatusSold        Status = "sold"
	StatusDamaged     Status = "damaged"
	StatusTransferred Status = "transferred"
)

// Transitions are one-directional except the two return legs: reserved
// goes back to available on release, transferred lands as available when
// the move completes or is returned to the source.
var allowedTransitions = map[Status][]Status{
	StatusAvailable:   {StatusReserved, StatusSold, StatusDamaged, StatusTransferred},
	StatusReserved:    {StatusAvailable},
	StatusTransferred: {StatusAvailable},
	StatusSold:        {},
	StatusDamaged:     {},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// SourceKind records which document created a unit.
type SourceKind string

const (
	SourcePurchaseOrder SourceKind = "purchase_order"
	SourceTransfer      SourceKind = "transfer"
	SourceAdjustment    SourceKind = "adjustment"
)

// Unit represents one physical, individually identifiable item.
type Unit struct {
	ID id.ID `db:"id" json:"id"`

	// ParentVariantID references the aggregating parent variant
	ParentVariantID id.ID `db:"parent_variant_id" json:"parentVariantId"`

	// ChildVariantID references the per-unit child variant row
	ChildVariantID id.ID `db:"child_variant_id" json:"childVariantId"`

	// Serial is the IMEI / primary serial, globally unique across all
	// branches and all time. Enforced by a storage constraint.
	Serial string `db:"serial" json:"serial"`

	// SerialNumber is an optional secondary identifier
	SerialNumber *string `db:"serial_number" json:"serialNumber,omitempty"`

	// MAC is an optional hardware address
	MAC *string `db:"mac" json:"mac,omitempty"`

	Condition string `db:"condition" json:"condition,omitempty"`

	// Price overrides; nil falls back to the parent variant
	CostPrice    *types.Money `db:"cost_price" json:"costPrice,omitempty"`
	SellingPrice *types.Money `db:"selling_price" json:"sellingPrice,omitempty"`

	Status Status `db:"status" json:"status"`

	BranchID id.ID `db:"branch_id" json:"branchId"`

	// SourceKind / SourceID reference the document that created the unit
	SourceKind SourceKind `db:"source_kind" json:"sourceKind"`
	SourceID   *id.ID     `db:"source_id" json:"sourceId,omitempty"`

	// Notes is free-form operator text
	Notes *string `db:"notes" json:"notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsActive reports whether the unit still counts toward its parent's
// on-hand quantity. An in-transit unit still does: the source quantity
// is only decremented when the transfer completes.
func (u *Unit) IsActive() bool {
	return u.Status == StatusAvailable || u.Status == StatusReserved || u.Status == StatusTransferred
}

// Validate checks required fields.
func (u *Unit) Validate(_ context.Context) error {
	if strings.TrimSpace(u.Serial) == "" {
		return apperror.NewValidation("serial is required").
			WithDetail("field", "serial")
	}
	if id.IsNil(u.ParentVariantID) {
		return apperror.NewValidation("parent variant reference is required").
			WithDetail("field", "parentVariantId")
	}
	if id.IsNil(u.BranchID) {
		return apperror.NewValidation("branch reference is required").
			WithDetail("field", "branchId")
	}
	return nil
}
