package serial

import (
	"context"
	"fmt"
	"time"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/core/tx"
	"branchstock/internal/core/types"
	"branchstock/internal/domain/variant"
	"branchstock/pkg/logger"
)

// VariantStore is the subset of the variant service the registry needs.
type VariantStore interface {
	GetVariant(ctx context.Context, variantID id.ID) (*variant.Variant, error)
	CreateVariant(ctx context.Context, v *variant.Variant) error
	MarkAsParent(ctx context.Context, variantID id.ID) error
	AdjustQuantity(ctx context.Context, variantID id.ID, delta types.Quantity, expectedVersion int) error
	ReassignChildren(ctx context.Context, childIDs []id.ID, branchID, parentID id.ID) error
}

// Service provides business operations for the serial unit registry.
type Service struct {
	repo      Repository
	variants  VariantStore
	txManager tx.Manager
}

// NewService creates a new serial registry service.
func NewService(repo Repository, variants VariantStore, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		variants:  variants,
		txManager: txManager,
	}
}

// RegisterInput carries the attributes of a unit being registered.
type RegisterInput struct {
	Serial       string
	SerialNumber *string
	MAC          *string
	Condition    string
	CostPrice    *types.Money
	SellingPrice *types.Money
	BranchID     id.ID
	SourceKind   SourceKind
	SourceID     *id.ID
	Notes        *string
}

// RegisterUnit creates a serial unit and its backing child variant row
// atomically, marking the parent as a parent kind on first use and
// crediting its on-hand quantity by one. A duplicate serial anywhere
// fails the whole transaction with DuplicateSerial.
func (s *Service) RegisterUnit(ctx context.Context, parentVariantID id.ID, input RegisterInput) (*Unit, error) {
	var unit *Unit

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		parent, err := s.variants.GetVariant(ctx, parentVariantID)
		if err != nil {
			return err
		}

		if parent.Kind != variant.KindParent {
			if err := s.variants.MarkAsParent(ctx, parentVariantID); err != nil {
				return err
			}
		}

		child := variant.New(parent.ProductID, &input.BranchID, parent.Name)
		child.Kind = variant.KindChild
		child.ParentID = &parentVariantID
		child.CostPrice = parent.CostPrice
		child.SellingPrice = parent.SellingPrice
		if input.CostPrice != nil {
			child.CostPrice = *input.CostPrice
		}
		if input.SellingPrice != nil {
			child.SellingPrice = *input.SellingPrice
		}
		if err := s.variants.CreateVariant(ctx, child); err != nil {
			return fmt.Errorf("create child variant: %w", err)
		}

		now := time.Now().UTC()
		unit = &Unit{
			ID:              id.New(),
			ParentVariantID: parentVariantID,
			ChildVariantID:  child.ID,
			Serial:          input.Serial,
			SerialNumber:    input.SerialNumber,
			MAC:             input.MAC,
			Condition:       input.Condition,
			CostPrice:       input.CostPrice,
			SellingPrice:    input.SellingPrice,
			Status:          StatusAvailable,
			BranchID:        input.BranchID,
			SourceKind:      input.SourceKind,
			SourceID:        input.SourceID,
			Notes:           input.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := unit.Validate(ctx); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, unit); err != nil {
			return err
		}

		return s.variants.AdjustQuantity(ctx, parentVariantID, types.NewQuantityFromInt(1), parent.Version)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "serial unit registered",
		"unit_id", unit.ID,
		"parent_variant_id", parentVariantID,
		"serial", unit.Serial,
		"branch_id", unit.BranchID,
	)
	return unit, nil
}

// FindBySerial looks a unit up by its serial/IMEI.
func (s *Service) FindBySerial(ctx context.Context, serialNo string) (*Unit, error) {
	return s.repo.GetBySerial(ctx, serialNo)
}

// GetUnit retrieves a unit by id.
func (s *Service) GetUnit(ctx context.Context, unitID id.ID) (*Unit, error) {
	return s.repo.GetByID(ctx, unitID)
}

// ChangeStatus performs a guarded status transition. The from status must
// match the current stored status, which prevents lost updates from
// concurrent sale and transfer attempts on the same unit.
func (s *Service) ChangeStatus(ctx context.Context, unitID id.ID, from, to Status) error {
	if !CanTransition(from, to) {
		return apperror.NewInvalidTransition(unitID.String(), string(from), string(to), string(from))
	}
	return s.repo.ChangeStatus(ctx, unitID, from, to)
}

// FindUnitsByParent enumerates the units under a parent variant. Child
// enumeration is always a query, never a stored pointer graph.
func (s *Service) FindUnitsByParent(ctx context.Context, parentVariantID id.ID) ([]*Unit, error) {
	return s.repo.ListByParent(ctx, parentVariantID)
}

// ActiveUnitCount counts units still contributing to the parent's
// on-hand quantity.
func (s *Service) ActiveUnitCount(ctx context.Context, parentVariantID id.ID) (int64, error) {
	return s.repo.CountActiveByParent(ctx, parentVariantID)
}

// MoveUnits lands in-transit units at a branch under the given parent
// variant: each unit flips from transferred back to available and its
// child variant row follows to the same branch and parent. Conditional
// on every unit still being in transit; anything else fails the whole
// call. Must run inside the caller's transaction.
func (s *Service) MoveUnits(ctx context.Context, unitIDs []id.ID, branchID, parentVariantID id.ID) error {
	if len(unitIDs) == 0 {
		return nil
	}

	childIDs := make([]id.ID, 0, len(unitIDs))
	for _, unitID := range unitIDs {
		u, err := s.repo.GetByID(ctx, unitID)
		if err != nil {
			return err
		}
		childIDs = append(childIDs, u.ChildVariantID)
	}

	if err := s.repo.MoveToBranch(ctx, unitIDs, branchID, parentVariantID, StatusTransferred, StatusAvailable); err != nil {
		return err
	}

	return s.variants.ReassignChildren(ctx, childIDs, branchID, parentVariantID)
}
