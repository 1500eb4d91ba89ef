package transfer

import (
	"context"
	"time"

	"branchstock/internal/core/id"
)

// StatusPatch carries the fields written alongside a status transition.
type StatusPatch struct {
	ApprovedBy    *string
	CompletedBy   *string
	ReservationID *id.ID
	FailureReason *string
	At            time.Time
}

// Repository defines storage operations for transfers.
type Repository interface {
	Create(ctx context.Context, t *Transfer) error

	GetByID(ctx context.Context, transferID id.ID) (*Transfer, error)

	// UpdateStatus transitions from -> to conditionally on the stored
	// status still being from. Zero rows yields InvalidState carrying the
	// current status.
	UpdateStatus(ctx context.Context, transferID id.ID, from, to Status, patch StatusPatch) error

	// FindActiveDuplicate looks for a non-terminal transfer with the same
	// variant, route and requester created after since.
	FindActiveDuplicate(ctx context.Context, variantID, fromBranchID, toBranchID id.ID, requestedBy string, since time.Time) (*Transfer, error)

	// ListByBranch returns transfers where the branch is source or
	// destination, newest first.
	ListByBranch(ctx context.Context, branchID id.ID, filter ListFilter) ([]*Transfer, error)

	// ListByVariant returns a variant's transfer history, newest first.
	ListByVariant(ctx context.Context, variantID id.ID, filter ListFilter) ([]*Transfer, error)

	// StatsByBranch aggregates counts per status for a branch.
	StatsByBranch(ctx context.Context, branchID id.ID) (*Stats, error)
}

// ListFilter narrows transfer listings.
type ListFilter struct {
	Statuses []Status
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}
