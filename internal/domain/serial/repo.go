package serial

import (
	"context"

	"branchstock/internal/core/id"
)

// Repository defines storage operations for serial units.
type Repository interface {
	// Create inserts a unit. A unique constraint on serial closes the
	// check-then-insert race; violations surface as DuplicateSerial.
	Create(ctx context.Context, u *Unit) error

	GetByID(ctx context.Context, unitID id.ID) (*Unit, error)

	GetBySerial(ctx context.Context, serial string) (*Unit, error)

	// ChangeStatus performs a guarded transition, conditional on the
	// stored status matching from. Zero rows yields InvalidTransition.
	ChangeStatus(ctx context.Context, unitID id.ID, from, to Status) error

	ListByParent(ctx context.Context, parentVariantID id.ID) ([]*Unit, error)

	// CountActiveByParent counts available and reserved units under a
	// parent, used for parent availability checks and reconciliation.
	CountActiveByParent(ctx context.Context, parentVariantID id.ID) (int64, error)

	// MoveToBranch relocates units to a branch under a new parent
	// variant. Each unit's update is conditional on its stored status
	// matching from; any unit in a different status fails the whole
	// call with Conflict.
	MoveToBranch(ctx context.Context, unitIDs []id.ID, branchID, parentVariantID id.ID, from, to Status) error
}
