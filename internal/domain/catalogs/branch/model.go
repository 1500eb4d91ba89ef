// Package branch provides the Branch catalog.
// Branches are independently stocked physical locations sharing one
// transactional store.
package branch

import (
	"context"
	"strings"
	"time"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
)

// Branch represents a stocked physical location.
type Branch struct {
	ID id.ID `db:"id" json:"id"`

	// Code is a short unique mnemonic (e.g. "NBO-01")
	Code string `db:"code" json:"code"`

	Name string `db:"name" json:"name"`

	// Address is the physical address
	Address *string `db:"address" json:"address,omitempty"`

	Phone *string `db:"phone" json:"phone,omitempty"`

	// IsActive indicates if the branch participates in stock operations
	IsActive bool `db:"is_active" json:"isActive"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBranch creates a new active Branch with required fields.
func NewBranch(code, name string) *Branch {
	now := time.Now().UTC()
	return &Branch{
		ID:        id.New(),
		Code:      code,
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks required fields.
func (b *Branch) Validate(_ context.Context) error {
	if strings.TrimSpace(b.Code) == "" {
		return apperror.NewValidation("branch code is required").
			WithDetail("field", "code")
	}
	if strings.TrimSpace(b.Name) == "" {
		return apperror.NewValidation("branch name is required").
			WithDetail("field", "name")
	}
	return nil
}

// CanShipStock returns true if the branch can be a transfer source.
func (b *Branch) CanShipStock() bool {
	return b.IsActive
}

// CanReceiveStock returns true if the branch can be a transfer destination.
func (b *Branch) CanReceiveStock() bool {
	return b.IsActive
}
