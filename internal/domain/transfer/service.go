package transfer

import (
	"context"
	"fmt"
	"time"

	"branchstock/internal/core/apperror"
	appctx "branchstock/internal/core/context"
	"branchstock/internal/core/id"
	"branchstock/internal/core/tx"
	"branchstock/internal/core/types"
	"branchstock/internal/domain/ledger"
	"branchstock/internal/domain/reservation"
	"branchstock/internal/domain/serial"
	"branchstock/internal/domain/variant"
	"branchstock/pkg/logger"
	"branchstock/pkg/numerator"
)

// BranchValidator checks that a transfer route is usable.
type BranchValidator interface {
	ValidateTransferPair(ctx context.Context, fromID, toID id.ID) error
}

// VariantStore is the subset of the variant service transfers need.
type VariantStore interface {
	GetVariant(ctx context.Context, variantID id.ID) (*variant.Variant, error)
	AdjustQuantity(ctx context.Context, variantID id.ID, delta types.Quantity, expectedVersion int) error
	FindOrCreateAtBranch(ctx context.Context, source *variant.Variant, branchID id.ID) (*variant.Variant, error)
}

// SerialRegistry is the subset of the serial registry transfers need.
type SerialRegistry interface {
	GetUnit(ctx context.Context, unitID id.ID) (*serial.Unit, error)
	ActiveUnitCount(ctx context.Context, parentVariantID id.ID) (int64, error)
	ChangeStatus(ctx context.Context, unitID id.ID, from, to serial.Status) error
	MoveUnits(ctx context.Context, unitIDs []id.ID, branchID, parentVariantID id.ID) error
}

// ReservationHolder is the subset of the reservation service transfers need.
type ReservationHolder interface {
	Reserve(ctx context.Context, variantID, branchID id.ID, quantity types.Quantity, kind reservation.ReferenceKind, referenceID *id.ID) (*reservation.Reservation, error)
	Release(ctx context.Context, reservationID id.ID) error
	ReleaseByReference(ctx context.Context, kind reservation.ReferenceKind, referenceID id.ID) (bool, error)
}

// LedgerAppender writes movement entries.
type LedgerAppender interface {
	Append(ctx context.Context, e *ledger.Entry) (*ledger.Entry, error)
}

// Config holds transfer policy.
type Config struct {
	// DuplicateWindow is how far back to look for a same-route transfer
	// by the same requester before rejecting a new request.
	DuplicateWindow time.Duration
}

// DefaultConfig returns standard transfer policy.
func DefaultConfig() Config {
	return Config{DuplicateWindow: 5 * time.Minute}
}

// Service orchestrates branch-to-branch stock transfers.
type Service struct {
	repo         Repository
	branches     BranchValidator
	variants     VariantStore
	serials      SerialRegistry
	reservations ReservationHolder
	entries      LedgerAppender
	numbers      numerator.Generator
	txManager    tx.Manager
	cfg          Config
}

// NewService creates a new transfer service.
func NewService(
	repo Repository,
	branches BranchValidator,
	variants VariantStore,
	serials SerialRegistry,
	reservations ReservationHolder,
	entries LedgerAppender,
	numbers numerator.Generator,
	txManager tx.Manager,
	cfg Config,
) *Service {
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = DefaultConfig().DuplicateWindow
	}
	return &Service{
		repo:         repo,
		branches:     branches,
		variants:     variants,
		serials:      serials,
		reservations: reservations,
		entries:      entries,
		numbers:      numbers,
		txManager:    txManager,
		cfg:          cfg,
	}
}

// RequestInput carries a new transfer request.
type RequestInput struct {
	VariantID     id.ID
	Quantity      types.Quantity
	SerialUnitIDs []id.ID
	FromBranchID  id.ID
	ToBranchID    id.ID
	RequestedBy   string
	Notes         *string
}

// Request validates availability and creates a pending transfer.
// No stock moves yet; reservation happens at in_transit.
func (s *Service) Request(ctx context.Context, input RequestInput) (*Transfer, error) {
	if input.RequestedBy == "" {
		input.RequestedBy = appctx.GetActorID(ctx)
	}
	if input.Quantity.IsZero() && len(input.SerialUnitIDs) > 0 {
		input.Quantity = types.NewQuantityFromInt(int64(len(input.SerialUnitIDs)))
	}

	now := time.Now().UTC()
	t := &Transfer{
		ID:            id.New(),
		VariantID:     input.VariantID,
		FromBranchID:  input.FromBranchID,
		ToBranchID:    input.ToBranchID,
		Quantity:      input.Quantity,
		SerialUnitIDs: input.SerialUnitIDs,
		Status:        StatusPending,
		RequestedBy:   input.RequestedBy,
		Notes:         input.Notes,
		RequestedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := t.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.branches.ValidateTransferPair(ctx, t.FromBranchID, t.ToBranchID); err != nil {
		return nil, err
	}

	if err := s.checkAvailability(ctx, t); err != nil {
		return nil, err
	}

	// Stop double-submission from retried UI actions
	since := now.Add(-s.cfg.DuplicateWindow)
	dup, err := s.repo.FindActiveDuplicate(ctx, t.VariantID, t.FromBranchID, t.ToBranchID, t.RequestedBy, since)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if dup != nil {
		return nil, apperror.NewDuplicateTransfer(
			t.VariantID.String(), t.FromBranchID.String(), t.ToBranchID.String(),
		).WithDetail("existing_transfer_id", dup.ID.String())
	}

	number, err := s.numbers.GetNextNumber(ctx, numerator.DefaultConfig("TRF"), nil, now)
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	t.Number = number

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create transfer: %w", err)
	}

	logger.Info(ctx, "transfer requested",
		"transfer_id", t.ID,
		"number", t.Number,
		"variant_id", t.VariantID,
		"from", t.FromBranchID,
		"to", t.ToBranchID,
		"quantity", t.Quantity.String(),
	)
	return t, nil
}

// checkAvailability verifies the source pool can cover the request.
func (s *Service) checkAvailability(ctx context.Context, t *Transfer) error {
	v, err := s.variants.GetVariant(ctx, t.VariantID)
	if err != nil {
		return err
	}
	if v.BranchID == nil || *v.BranchID != t.FromBranchID {
		return apperror.NewValidation("variant is not stocked at the source branch").
			WithDetail("variant_id", t.VariantID.String()).
			WithDetail("branch_id", t.FromBranchID.String())
	}

	if t.IsSerialized() {
		for _, unitID := range t.SerialUnitIDs {
			u, err := s.serials.GetUnit(ctx, unitID)
			if err != nil {
				return err
			}
			if u.ParentVariantID != t.VariantID {
				return apperror.NewValidation("unit belongs to a different variant").
					WithDetail("unit_id", unitID.String())
			}
			if u.BranchID != t.FromBranchID {
				return apperror.NewValidation("unit is not at the source branch").
					WithDetail("unit_id", unitID.String()).
					WithDetail("serial", u.Serial)
			}
			if u.Status != serial.StatusAvailable {
				return apperror.NewValidation("unit is not available").
					WithDetail("unit_id", unitID.String()).
					WithDetail("status", string(u.Status))
			}
		}
	}

	if v.Kind == variant.KindParent {
		// Parent availability is backed by its active children
		active, err := s.serials.ActiveUnitCount(ctx, t.VariantID)
		if err != nil {
			return fmt.Errorf("count active units: %w", err)
		}
		if t.Quantity.Units() > active {
			return apperror.NewInsufficientStock(
				t.VariantID.String(), t.Quantity.Float64(), float64(active),
			)
		}
	}

	if v.Available() < t.Quantity {
		return apperror.NewInsufficientStock(
			t.VariantID.String(), t.Quantity.Float64(), v.Available().Float64(),
		)
	}
	return nil
}

// Approve authorizes a pending transfer. Repeat calls fail with
// InvalidState rather than silently succeeding.
func (s *Service) Approve(ctx context.Context, transferID id.ID, approvedBy string) error {
	if approvedBy == "" {
		approvedBy = appctx.GetActorID(ctx)
	}
	err := s.repo.UpdateStatus(ctx, transferID, StatusPending, StatusApproved, StatusPatch{
		ApprovedBy: &approvedBy,
		At:         time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "transfer approved", "transfer_id", transferID, "approved_by", approvedBy)
	return nil
}

// MarkInTransit moves an approved transfer to in_transit, reserving the
// quantity at the source branch in the same transaction. Pinned units
// are flipped to transferred, so a concurrent sale fails its guarded
// transition instead of racing the move; a unit sold or damaged since
// the request aborts shipping here.
func (s *Service) MarkInTransit(ctx context.Context, transferID id.ID) error {
	t, err := s.repo.GetByID(ctx, transferID)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		hold, err := s.reservations.Reserve(ctx,
			t.VariantID, t.FromBranchID, t.Quantity,
			reservation.RefTransfer, &t.ID,
		)
		if err != nil {
			return err
		}
		for _, unitID := range t.SerialUnitIDs {
			if err := s.serials.ChangeStatus(ctx, unitID, serial.StatusAvailable, serial.StatusTransferred); err != nil {
				return err
			}
		}
		return s.repo.UpdateStatus(ctx, transferID, StatusApproved, StatusInTransit, StatusPatch{
			ReservationID: &hold.ID,
			At:            time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "transfer in transit", "transfer_id", transferID)
	return nil
}

// Complete finalizes an in-transit transfer: one transaction writes the
// paired transfer_out/transfer_in ledger entries, moves the cached
// quantities, relocates serial units and releases the hold. Any step
// failing aborts the whole transaction; the transfer is then moved to
// failed by a separate post-abort write and TransferFailed is returned.
func (s *Service) Complete(ctx context.Context, transferID id.ID, completedBy string) error {
	if completedBy == "" {
		completedBy = appctx.GetActorID(ctx)
	}

	t, err := s.repo.GetByID(ctx, transferID)
	if err != nil {
		return err
	}
	if t.Status != StatusInTransit {
		return apperror.NewInvalidState(transferID.String(), string(t.Status), string(StatusInTransit))
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		source, err := s.variants.GetVariant(ctx, t.VariantID)
		if err != nil {
			return err
		}
		if source.OnHand < t.Quantity {
			return apperror.NewInsufficientStock(
				t.VariantID.String(), t.Quantity.Float64(), source.OnHand.Float64(),
			)
		}

		if _, err := s.entries.Append(ctx, &ledger.Entry{
			VariantID:     t.VariantID,
			BranchID:      t.FromBranchID,
			Type:          ledger.EntryTransferOut,
			Quantity:      t.Quantity.Neg(),
			ReferenceKind: ledger.RefTransfer,
			ReferenceID:   &t.ID,
			ActorID:       completedBy,
		}); err != nil {
			return err
		}

		if t.ReservationID != nil {
			if err := s.reservations.Release(ctx, *t.ReservationID); err != nil {
				return err
			}
		}

		if err := s.variants.AdjustQuantity(ctx, source.ID, t.Quantity.Neg(), source.Version); err != nil {
			return err
		}

		dest, err := s.variants.FindOrCreateAtBranch(ctx, source, t.ToBranchID)
		if err != nil {
			return err
		}

		if _, err := s.entries.Append(ctx, &ledger.Entry{
			VariantID:     dest.ID,
			BranchID:      t.ToBranchID,
			Type:          ledger.EntryTransferIn,
			Quantity:      t.Quantity,
			ReferenceKind: ledger.RefTransfer,
			ReferenceID:   &t.ID,
			ActorID:       completedBy,
		}); err != nil {
			return err
		}

		if err := s.variants.AdjustQuantity(ctx, dest.ID, t.Quantity, dest.Version); err != nil {
			return err
		}

		if t.IsSerialized() {
			// Units land under the destination parent so its on-hand
			// quantity keeps matching its active children
			if err := s.serials.MoveUnits(ctx, t.SerialUnitIDs, t.ToBranchID, dest.ID); err != nil {
				return err
			}
		}

		return s.repo.UpdateStatus(ctx, transferID, StatusInTransit, StatusCompleted, StatusPatch{
			CompletedBy: &completedBy,
			At:          time.Now().UTC(),
		})
	})
	if err != nil {
		s.failAfterAbort(ctx, t, err)
		return apperror.NewTransferFailed(transferID.String(), err)
	}

	logger.Info(ctx, "transfer completed",
		"transfer_id", transferID,
		"number", t.Number,
		"completed_by", completedBy,
	)
	return nil
}

// failAfterAbort records the failure after the completion transaction has
// rolled back, releasing the hold that the aborted transaction could not
// and returning in-transit units to the source branch.
func (s *Service) failAfterAbort(ctx context.Context, t *Transfer, cause error) {
	reason := cause.Error()
	if err := s.repo.UpdateStatus(ctx, t.ID, StatusInTransit, StatusFailed, StatusPatch{
		FailureReason: &reason,
		At:            time.Now().UTC(),
	}); err != nil {
		logger.Error(ctx, "failed-status write failed",
			"transfer_id", t.ID,
			"error", err,
		)
		return
	}

	if t.ReservationID != nil {
		if err := s.reservations.Release(ctx, *t.ReservationID); err != nil {
			logger.Error(ctx, "post-abort reservation release failed",
				"transfer_id", t.ID,
				"reservation_id", *t.ReservationID,
				"error", err,
			)
		}
	}

	if t.IsSerialized() {
		if err := s.returnUnits(ctx, t); err != nil {
			logger.Error(ctx, "post-abort unit return failed",
				"transfer_id", t.ID,
				"error", err,
			)
		}
	}
}

// returnUnits puts a failed transfer's units back in play at the source
// branch under the source parent.
func (s *Service) returnUnits(ctx context.Context, t *Transfer) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.serials.MoveUnits(ctx, t.SerialUnitIDs, t.FromBranchID, t.VariantID)
	})
}

// Cancel aborts a transfer that has not yet shipped. Only pending and
// approved transfers can be cancelled; anything later fails with
// InvalidState. Any hold attributed to the transfer is released.
func (s *Service) Cancel(ctx context.Context, transferID id.ID, reason *string) error {
	t, err := s.repo.GetByID(ctx, transferID)
	if err != nil {
		return err
	}
	if t.Status != StatusPending && t.Status != StatusApproved {
		return apperror.NewInvalidState(transferID.String(), string(t.Status), "pending|approved")
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, transferID, t.Status, StatusCancelled, StatusPatch{
			FailureReason: reason,
			At:            time.Now().UTC(),
		}); err != nil {
			return err
		}
		// No hold should exist before in_transit, but release one if a
		// previous run left it behind
		if _, err := s.reservations.ReleaseByReference(ctx, reservation.RefTransfer, transferID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "transfer cancelled", "transfer_id", transferID)
	return nil
}

// Fail moves an in-transit transfer to failed and returns its units to
// the source branch. Used by the reservation sweep when a hold expires.
func (s *Service) Fail(ctx context.Context, transferID id.ID, reason string) error {
	t, err := s.repo.GetByID(ctx, transferID)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, transferID, StatusInTransit, StatusFailed, StatusPatch{
			FailureReason: &reason,
			At:            time.Now().UTC(),
		}); err != nil {
			return err
		}
		if t.IsSerialized() {
			return s.serials.MoveUnits(ctx, t.SerialUnitIDs, t.FromBranchID, t.VariantID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Warn(ctx, "transfer failed", "transfer_id", transferID, "reason", reason)
	return nil
}

// GetTransfer retrieves a transfer by id.
func (s *Service) GetTransfer(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return s.repo.GetByID(ctx, transferID)
}

// GetTransferHistory lists transfers touching a branch.
func (s *Service) GetTransferHistory(ctx context.Context, branchID id.ID, filter ListFilter) ([]*Transfer, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.ListByBranch(ctx, branchID, filter)
}

// GetVariantHistory lists a variant's transfers.
func (s *Service) GetVariantHistory(ctx context.Context, variantID id.ID, filter ListFilter) ([]*Transfer, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.ListByVariant(ctx, variantID, filter)
}

// GetStats aggregates transfer counts for a branch.
func (s *Service) GetStats(ctx context.Context, branchID id.ID) (*Stats, error) {
	return s.repo.StatsByBranch(ctx, branchID)
}
