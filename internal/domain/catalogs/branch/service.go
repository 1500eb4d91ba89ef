package branch

import (
	"context"
	"fmt"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/pkg/logger"
)

// Service provides business operations for the branch catalog.
type Service struct {
	repo Repository
}

// NewService creates a new branch service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetBranch retrieves a branch by id.
func (s *Service) GetBranch(ctx context.Context, branchID id.ID) (*Branch, error) {
	return s.repo.GetByID(ctx, branchID)
}

// ListBranches returns branches, optionally only active ones.
func (s *Service) ListBranches(ctx context.Context, onlyActive bool) ([]*Branch, error) {
	return s.repo.List(ctx, onlyActive)
}

// CreateBranch validates and persists a new branch.
func (s *Service) CreateBranch(ctx context.Context, b *Branch) error {
	if err := b.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	logger.Info(ctx, "branch created", "id", b.ID, "code", b.Code)
	return nil
}

// ValidateTransferPair checks that source and destination are distinct,
// existing, active branches. Every transfer request passes through here
// before anything is written.
func (s *Service) ValidateTransferPair(ctx context.Context, fromID, toID id.ID) error {
	if fromID == toID {
		return apperror.NewValidation("source and destination branch must differ").
			WithDetail("branch_id", fromID.String())
	}

	from, err := s.repo.GetByID(ctx, fromID)
	if err != nil {
		return fmt.Errorf("source branch: %w", err)
	}
	if !from.CanShipStock() {
		return apperror.NewValidation("source branch is not active").
			WithDetail("branch_id", fromID.String()).
			WithDetail("code", from.Code)
	}

	to, err := s.repo.GetByID(ctx, toID)
	if err != nil {
		return fmt.Errorf("destination branch: %w", err)
	}
	if !to.CanReceiveStock() {
		return apperror.NewValidation("destination branch is not active").
			WithDetail("branch_id", toID.String()).
			WithDetail("code", to.Code)
	}

	return nil
}
