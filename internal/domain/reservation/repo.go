package reservation

import (
	"context"
	"time"

	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
)

// Repository defines storage operations for reservations. The quantity
// counters on variant rows are mutated here too, as a single conditional
// update each, so concurrent callers are safe without read-then-write.
type Repository interface {
	// ReserveQuantity increments the variant's reserved counter only if
	// on_hand - reserved >= quantity. Zero rows yields InsufficientStock.
	ReserveQuantity(ctx context.Context, variantID id.ID, quantity types.Quantity) error

	// ReleaseQuantity decrements the reserved counter only if
	// reserved >= quantity. Zero rows yields OverRelease.
	ReleaseQuantity(ctx context.Context, variantID id.ID, quantity types.Quantity) error

	Create(ctx context.Context, r *Reservation) error

	GetByID(ctx context.Context, reservationID id.ID) (*Reservation, error)

	// GetActiveByReference finds the unreleased hold for a document.
	GetActiveByReference(ctx context.Context, kind ReferenceKind, referenceID id.ID) (*Reservation, error)

	// MarkReleased stamps released_at; conditional on the hold being
	// unreleased so a release is applied at most once.
	MarkReleased(ctx context.Context, reservationID id.ID, at time.Time) error

	// ListExpired returns unreleased holds with expires_at before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)
}
