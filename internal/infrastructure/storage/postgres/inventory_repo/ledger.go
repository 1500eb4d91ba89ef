package inventory_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
	"branchstock/internal/domain/ledger"
	"branchstock/internal/infrastructure/storage/postgres"
)

const stockLedgerTable = "stock_ledger"

// LedgerRepo implements ledger.Repository. Entries are append-only; this
// repo has no update or delete path at all.
type LedgerRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new stock ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts one entry; seq is assigned by the database.
func (r *LedgerRepo) Append(ctx context.Context, e *ledger.Entry) error {
	sql := `
		INSERT INTO stock_ledger (
			id, variant_id, serial_unit_id, branch_id, entry_type,
			quantity, reference_kind, reference_id, actor_id, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq
	`

	querier := r.txManager.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql,
		e.ID, e.VariantID, e.SerialUnitID, e.BranchID, e.Type,
		e.Quantity, e.ReferenceKind, e.ReferenceID, e.ActorID, e.Note, e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	return nil
}

// AppendBatch inserts many entries. Uses COPY when inside a transaction;
// seq values are assigned by the database and not read back.
func (r *LedgerRepo) AppendBatch(ctx context.Context, entries []*ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	columns := []string{
		"id", "variant_id", "serial_unit_id", "branch_id", "entry_type",
		"quantity", "reference_kind", "reference_id", "actor_id", "note", "created_at",
	}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []any{
				e.ID, e.VariantID, e.SerialUnitID, e.BranchID, e.Type,
				e.Quantity, e.ReferenceKind, e.ReferenceID, e.ActorID, e.Note, e.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, stockLedgerTable, columns, rows); err != nil {
			return fmt.Errorf("copy entries: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(stockLedgerTable).Columns(columns...)
	for _, e := range entries {
		q = q.Values(
			e.ID, e.VariantID, e.SerialUnitID, e.BranchID, e.Type,
			e.Quantity, e.ReferenceKind, e.ReferenceID, e.ActorID, e.Note, e.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entries: %w", err)
	}

	return nil
}

// SumForVariant returns the net quantity for a variant at a branch.
func (r *LedgerRepo) SumForVariant(ctx context.Context, variantID, branchID id.ID) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM stock_ledger
		WHERE variant_id = $1 AND branch_id = $2
	`

	var sum int64
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, variantID, branchID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum entries: %w", err)
	}

	return types.NewQuantityFromInt64Scaled(sum), nil
}

// History returns entries matching the filter, ordered by sequence.
func (r *LedgerRepo) History(ctx context.Context, filter ledger.HistoryFilter) ([]*ledger.Entry, error) {
	q := BuildHistoryQuery(r.builder, filter)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []*ledger.Entry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}

	return entries, nil
}

// BuildHistoryQuery translates a HistoryFilter into a select builder.
func BuildHistoryQuery(builder squirrel.StatementBuilderType, filter ledger.HistoryFilter) squirrel.SelectBuilder {
	q := builder.Select(
		"id", "seq", "variant_id", "serial_unit_id", "branch_id",
		"entry_type", "quantity", "reference_kind", "reference_id",
		"actor_id", "note", "created_at",
	).From(stockLedgerTable)

	if filter.VariantID != nil {
		q = q.Where(squirrel.Eq{"variant_id": *filter.VariantID})
	}
	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if len(filter.Types) > 0 {
		q = q.Where(squirrel.Eq{"entry_type": filter.Types})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.ToDate})
	}

	q = q.OrderBy("seq")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return q
}
