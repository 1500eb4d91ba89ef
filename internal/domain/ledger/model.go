// Package ledger provides the Stock Ledger: an append-only movement log
// that is the source of truth for cached on-hand quantities.
package ledger

import (
	"context"
	"time"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
)

// EntryType is the movement kind.
type EntryType string

const (
	EntryReceive     EntryType = "receive"
	EntryTransferOut EntryType = "transfer_out"
	EntryTransferIn  EntryType = "transfer_in"
	EntrySale        EntryType = "sale"
	EntryAdjustment  EntryType = "adjustment"
	EntryReturn      EntryType = "return"
)

// ReferenceKind identifies the originating document of an entry.
type ReferenceKind string

const (
	RefPurchaseOrder ReferenceKind = "purchase_order"
	RefTransfer      ReferenceKind = "transfer"
	RefSale          ReferenceKind = "sale"
	RefManual        ReferenceKind = "manual"
)

// Entry is an immutable record of a quantity change. Entries are never
// updated or deleted; corrections are new entries.
type Entry struct {
	ID id.ID `db:"id" json:"id"`

	// Seq totally orders entries; assigned by storage on append
	Seq int64 `db:"seq" json:"seq"`

	VariantID id.ID `db:"variant_id" json:"variantId"`

	// SerialUnitID is set for per-unit movements
	SerialUnitID *id.ID `db:"serial_unit_id" json:"serialUnitId,omitempty"`

	BranchID id.ID `db:"branch_id" json:"branchId"`

	Type EntryType `db:"entry_type" json:"type"`

	// Quantity is the signed delta applied to the branch pool
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	ReferenceKind ReferenceKind `db:"reference_kind" json:"referenceKind"`
	ReferenceID   *id.ID        `db:"reference_id" json:"referenceId,omitempty"`

	// ActorID records who triggered the movement
	ActorID string `db:"actor_id" json:"actorId"`

	Note string `db:"note" json:"note,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Validate checks entry fields before append.
func (e *Entry) Validate(_ context.Context) error {
	if id.IsNil(e.VariantID) {
		return apperror.NewValidation("variant reference is required").
			WithDetail("field", "variantId")
	}
	if id.IsNil(e.BranchID) {
		return apperror.NewValidation("branch reference is required").
			WithDetail("field", "branchId")
	}
	if e.Quantity.IsZero() {
		return apperror.NewValidation("quantity delta must not be zero").
			WithDetail("field", "quantity")
	}
	switch e.Type {
	case EntryReceive, EntryTransferIn, EntryReturn:
		if e.Quantity.IsNegative() {
			return apperror.NewValidation("inbound entry requires a positive delta").
				WithDetail("type", string(e.Type))
		}
	case EntryTransferOut, EntrySale:
		if e.Quantity.IsPositive() {
			return apperror.NewValidation("outbound entry requires a negative delta").
				WithDetail("type", string(e.Type))
		}
	case EntryAdjustment:
		// either sign
	default:
		return apperror.NewValidation("invalid entry type").
			WithDetail("type", string(e.Type))
	}
	return nil
}

// Reconciliation compares the ledger sum against the cached quantity.
type Reconciliation struct {
	VariantID id.ID          `json:"variantId"`
	BranchID  id.ID          `json:"branchId"`
	LedgerSum types.Quantity `json:"ledgerSum"`
	CachedQty types.Quantity `json:"cachedQty"`
	Delta     types.Quantity `json:"delta"`
	Healthy   bool           `json:"healthy"`
}
