package reservation

import (
	"context"
	"fmt"
	"time"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/core/tx"
	"branchstock/internal/core/types"
	"branchstock/pkg/logger"
)

// Config holds reservation policy.
type Config struct {
	// DefaultTTL bounds how long a hold may stay unconverted before the
	// sweep reclaims it.
	DefaultTTL time.Duration

	// SweepBatchSize caps how many expired holds one sweep pass processes.
	SweepBatchSize int
}

// DefaultConfig returns standard reservation policy.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:     30 * time.Minute,
		SweepBatchSize: 100,
	}
}

// Service provides business operations for reservations.
type Service struct {
	repo      Repository
	txManager tx.Manager
	cfg       Config
}

// NewService creates a new reservation service.
func NewService(repo Repository, txManager tx.Manager, cfg Config) *Service {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = DefaultConfig().SweepBatchSize
	}
	return &Service{repo: repo, txManager: txManager, cfg: cfg}
}

// Reserve places a hold on variant quantity at a branch. The increment is
// one conditional update, so concurrent callers can never jointly exceed
// the available quantity. InsufficientStock when availability is short.
func (s *Service) Reserve(ctx context.Context, variantID, branchID id.ID, quantity types.Quantity, kind ReferenceKind, referenceID *id.ID) (*Reservation, error) {
	if !quantity.IsPositive() {
		return nil, apperror.NewValidation("reservation quantity must be positive").
			WithDetail("quantity", quantity.String())
	}

	now := time.Now().UTC()
	hold := &Reservation{
		ID:            id.New(),
		VariantID:     variantID,
		BranchID:      branchID,
		Quantity:      quantity,
		ReferenceKind: kind,
		ReferenceID:   referenceID,
		ExpiresAt:     now.Add(s.cfg.DefaultTTL),
		CreatedAt:     now,
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.ReserveQuantity(ctx, variantID, quantity); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, hold); err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "quantity reserved",
		"reservation_id", hold.ID,
		"variant_id", variantID,
		"quantity", quantity.String(),
		"expires_at", hold.ExpiresAt,
	)
	return hold, nil
}

// Release returns a hold's quantity to the available pool. A hold is
// released at most once; releasing an already-released hold fails closed
// with OverRelease rather than letting reserved go negative.
func (s *Service) Release(ctx context.Context, reservationID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		hold, err := s.repo.GetByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if hold.IsReleased() {
			return apperror.NewOverRelease(hold.VariantID.String(), hold.Quantity.Float64())
		}
		if err := s.repo.MarkReleased(ctx, reservationID, time.Now().UTC()); err != nil {
			return err
		}
		return s.repo.ReleaseQuantity(ctx, hold.VariantID, hold.Quantity)
	})
}

// ReleaseByReference releases the active hold belonging to a document, if
// one exists. Returns false when no active hold was found.
func (s *Service) ReleaseByReference(ctx context.Context, kind ReferenceKind, referenceID id.ID) (bool, error) {
	hold, err := s.repo.GetActiveByReference(ctx, kind, referenceID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := s.Release(ctx, hold.ID); err != nil {
		return false, err
	}
	return true, nil
}

// SweepExpired releases holds whose TTL has passed and returns them so
// the caller can fail their transfers. Per-hold failures are logged and
// do not stop the pass.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) ([]*Reservation, error) {
	expired, err := s.repo.ListExpired(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}

	released := make([]*Reservation, 0, len(expired))
	for _, hold := range expired {
		if err := s.Release(ctx, hold.ID); err != nil {
			logger.Error(ctx, "sweep release failed",
				"reservation_id", hold.ID,
				"error", err,
			)
			continue
		}
		released = append(released, hold)
	}

	if len(released) > 0 {
		logger.Info(ctx, "expired reservations swept",
			"count", len(released),
		)
	}
	return released, nil
}
