// Package reservation provides short-lived quantity holds that prevent
// overselling while a transfer or sale is in flight.
package reservation

import (
	"time"

	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
)

// ReferenceKind identifies what a hold belongs to.
type ReferenceKind string

const (
	RefTransfer ReferenceKind = "transfer"
	RefSale     ReferenceKind = "sale"
)

// Reservation is a time-boxed hold on variant quantity at a branch.
// The held amount also lives in the variant row's reserved counter; this
// record lets the sweep attribute holds back to their documents.
type Reservation struct {
	ID id.ID `db:"id" json:"id"`

	VariantID id.ID `db:"variant_id" json:"variantId"`
	BranchID  id.ID `db:"branch_id" json:"branchId"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`

	ReferenceKind ReferenceKind `db:"reference_kind" json:"referenceKind"`
	ReferenceID   *id.ID        `db:"reference_id" json:"referenceId,omitempty"`

	// ExpiresAt is when the sweep may reclaim the hold
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`

	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	ReleasedAt *time.Time `db:"released_at" json:"releasedAt,omitempty"`
}

// IsReleased reports whether the hold has already been returned.
func (r *Reservation) IsReleased() bool {
	return r.ReleasedAt != nil
}
