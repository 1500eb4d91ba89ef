package inventory_repo

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"

	"branchstock/internal/core/id"
	"branchstock/internal/domain/ledger"
)

func TestBuildHistoryQuery(t *testing.T) {
	builder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	variantID := id.New()
	branchID := id.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	const cols = "SELECT id, seq, variant_id, serial_unit_id, branch_id, " +
		"entry_type, quantity, reference_kind, reference_id, actor_id, note, created_at " +
		"FROM stock_ledger"

	tests := []struct {
		name     string
		filter   ledger.HistoryFilter
		wantSQL  string
		wantArgs int
	}{
		{
			name:     "no filter",
			filter:   ledger.HistoryFilter{},
			wantSQL:  cols + " ORDER BY seq",
			wantArgs: 0,
		},
		{
			name:     "by variant with limit",
			filter:   ledger.HistoryFilter{VariantID: &variantID, Limit: 100},
			wantSQL:  cols + " WHERE variant_id = $1 ORDER BY seq LIMIT 100",
			wantArgs: 1,
		},
		{
			name: "branch and types",
			filter: ledger.HistoryFilter{
				BranchID: &branchID,
				Types:    []ledger.EntryType{ledger.EntryReceive, ledger.EntryTransferIn},
			},
			wantSQL:  cols + " WHERE branch_id = $1 AND entry_type IN ($2,$3) ORDER BY seq",
			wantArgs: 3,
		},
		{
			name:     "from date with paging",
			filter:   ledger.HistoryFilter{FromDate: &from, Limit: 50, Offset: 50},
			wantSQL:  cols + " WHERE created_at >= $1 ORDER BY seq LIMIT 50 OFFSET 50",
			wantArgs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := BuildHistoryQuery(builder, tt.filter).ToSql()
			if err != nil {
				t.Fatalf("ToSql failed: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", tt.wantSQL, sql)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("Args count mismatch\nwant: %d\ngot:  %d", tt.wantArgs, len(args))
			}
		})
	}
}
