// Package transfer provides the Transfer Orchestrator: a state machine
// moving stock between two branch-scoped variant pools.
package transfer

import (
	"context"
	"time"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
)

// Status of a transfer.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusCompleted, StatusFailed},
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

// Transfer is a request to move quantity (or specific serial units) of a
// variant from one branch to another.
type Transfer struct {
	ID id.ID `db:"id" json:"id"`

	// Number is the human-facing document number (TRF-2026-00001)
	Number string `db:"number" json:"number"`

	VariantID    id.ID `db:"variant_id" json:"variantId"`
	FromBranchID id.ID `db:"from_branch_id" json:"fromBranchId"`
	ToBranchID   id.ID `db:"to_branch_id" json:"toBranchId"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// SerialUnitIDs pins the transfer to specific units when serialized
	SerialUnitIDs []id.ID `db:"serial_unit_ids" json:"serialUnitIds,omitempty"`

	Status Status `db:"status" json:"status"`

	// ReservationID is set once stock is held (in_transit)
	ReservationID *id.ID `db:"reservation_id" json:"reservationId,omitempty"`

	RequestedBy string  `db:"requested_by" json:"requestedBy"`
	ApprovedBy  *string `db:"approved_by" json:"approvedBy,omitempty"`
	CompletedBy *string `db:"completed_by" json:"completedBy,omitempty"`

	Notes *string `db:"notes" json:"notes,omitempty"`

	// FailureReason records why a transfer moved to failed or cancelled
	FailureReason *string `db:"failure_reason" json:"failureReason,omitempty"`

	RequestedAt time.Time  `db:"requested_at" json:"requestedAt"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	InTransitAt *time.Time `db:"in_transit_at" json:"inTransitAt,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	FailedAt    *time.Time `db:"failed_at" json:"failedAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsSerialized reports whether the transfer pins specific units.
func (t *Transfer) IsSerialized() bool {
	return len(t.SerialUnitIDs) > 0
}

// Validate checks structural fields of a new transfer request.
func (t *Transfer) Validate(_ context.Context) error {
	if id.IsNil(t.VariantID) {
		return apperror.NewValidation("variant reference is required").
			WithDetail("field", "variantId")
	}
	if id.IsNil(t.FromBranchID) || id.IsNil(t.ToBranchID) {
		return apperror.NewValidation("both branches are required")
	}
	if t.FromBranchID == t.ToBranchID {
		return apperror.NewValidation("source and destination branch must differ").
			WithDetail("branch_id", t.FromBranchID.String())
	}
	if !t.Quantity.IsPositive() {
		return apperror.NewValidation("transfer quantity must be positive").
			WithDetail("quantity", t.Quantity.String())
	}
	if t.IsSerialized() && t.Quantity.Units() != int64(len(t.SerialUnitIDs)) {
		return apperror.NewValidation("quantity must match the number of serial units").
			WithDetail("quantity", t.Quantity.String()).
			WithDetail("units", len(t.SerialUnitIDs))
	}
	if t.RequestedBy == "" {
		return apperror.NewValidation("requesting actor is required").
			WithDetail("field", "requestedBy")
	}
	return nil
}

// Stats aggregates transfer counts for a branch.
type Stats struct {
	BranchID   id.ID `json:"branchId"`
	Outbound   int64 `json:"outbound"`
	Inbound    int64 `json:"inbound"`
	Pending    int64 `json:"pending"`
	InTransit  int64 `json:"inTransit"`
	Completed  int64 `json:"completed"`
	Cancelled  int64 `json:"cancelled"`
	Failed     int64 `json:"failed"`
}
