// Package variant provides the Variant Store: canonical records of
// sellable SKU configurations with branch-scoped cached quantities.
package variant

import (
	"context"
	"strings"
	"time"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
)

// Kind classifies a variant row.
type Kind string

const (
	// KindStandalone is an ordinary unserialized variant.
	KindStandalone Kind = "standalone"

	// KindParent aggregates serialized child units. Its on-hand quantity
	// tracks the count of active children plus any unserialized remainder.
	KindParent Kind = "parent"

	// KindChild is the per-unit variant row backing one serial unit.
	KindChild Kind = "child"
)

// Variant represents one sellable SKU configuration scoped to a branch.
type Variant struct {
	ID id.ID `db:"id" json:"id"`

	// ProductID references the owning product (external catalog)
	ProductID id.ID `db:"product_id" json:"productId"`

	// BranchID scopes the variant to one branch; nil means shared
	BranchID *id.ID `db:"branch_id" json:"branchId,omitempty"`

	Name string `db:"name" json:"name"`

	CostPrice    types.Money `db:"cost_price" json:"costPrice"`
	SellingPrice types.Money `db:"selling_price" json:"sellingPrice"`

	// OnHand is the cached quantity, derived from the stock ledger.
	// Mutated only through AdjustQuantity.
	OnHand types.Quantity `db:"on_hand" json:"onHand"`

	// Reserved is the quantity held by in-flight transfers and sales.
	Reserved types.Quantity `db:"reserved" json:"reserved"`

	Kind Kind `db:"kind" json:"kind"`

	// ParentID is set only on child variants
	ParentID *id.ID `db:"parent_id" json:"parentId,omitempty"`

	// Version for optimistic concurrency on quantity adjustments
	Version int `db:"version" json:"version"`

	IsActive bool `db:"is_active" json:"isActive"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates a standalone variant at a branch with zero stock.
func New(productID id.ID, branchID *id.ID, name string) *Variant {
	now := time.Now().UTC()
	return &Variant{
		ID:        id.New(),
		ProductID: productID,
		BranchID:  branchID,
		Name:      name,
		Kind:      KindStandalone,
		Version:   1,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Available returns the quantity not held by reservations.
func (v *Variant) Available() types.Quantity {
	return v.OnHand - v.Reserved
}

// Validate checks structural invariants.
func (v *Variant) Validate(_ context.Context) error {
	if strings.TrimSpace(v.Name) == "" {
		return apperror.NewValidation("variant name is required").
			WithDetail("field", "name")
	}
	if id.IsNil(v.ProductID) {
		return apperror.NewValidation("product reference is required").
			WithDetail("field", "productId")
	}
	switch v.Kind {
	case KindStandalone, KindParent:
		if v.ParentID != nil {
			return apperror.NewValidation("only child variants may reference a parent").
				WithDetail("kind", string(v.Kind))
		}
	case KindChild:
		if v.ParentID == nil || id.IsNil(*v.ParentID) {
			return apperror.NewValidation("child variant requires a parent reference").
				WithDetail("field", "parentId")
		}
	default:
		return apperror.NewValidation("invalid variant kind").
			WithDetail("kind", string(v.Kind))
	}
	return nil
}
