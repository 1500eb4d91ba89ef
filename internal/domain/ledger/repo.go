package ledger

import (
	"context"
	"time"

	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
)

// Repository defines storage operations for the stock ledger.
type Repository interface {
	// Append inserts one entry and fills in its assigned sequence number.
	Append(ctx context.Context, e *Entry) error

	// AppendBatch inserts many entries at once (COPY), used by receiving
	// when a delivery registers many serialized units.
	AppendBatch(ctx context.Context, entries []*Entry) error

	// SumForVariant returns the net quantity for a variant at a branch.
	SumForVariant(ctx context.Context, variantID, branchID id.ID) (types.Quantity, error)

	// History returns entries matching the filter, ordered by sequence.
	History(ctx context.Context, filter HistoryFilter) ([]*Entry, error)
}

// HistoryFilter narrows ledger history queries.
type HistoryFilter struct {
	VariantID *id.ID
	BranchID  *id.ID
	Types     []EntryType
	FromDate  *time.Time
	ToDate    *time.Time
	Limit     int
	Offset    int
}
