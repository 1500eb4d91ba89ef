package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"branchstock/internal/core/id"
)

// ArchiveEntry is a single ledger row in an archive stream.
type ArchiveEntry struct {
	ID          id.ID     `json:"id"`
	Seq         int64     `json:"seq"`
	VariantID   id.ID     `json:"variant_id"`
	BranchID    id.ID     `json:"branch_id"`
	EntryType   string    `json:"entry_type"`
	Quantity    int64     `json:"quantity"`
	ReferenceID *id.ID    `json:"reference_id,omitempty"`
	ActorID     string    `json:"actor_id"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Archiver exports stock ledger history as a zstd-compressed NDJSON stream.
// Entries older than the cutoff never change, so the export is a stable
// snapshot suitable for cold storage.
type Archiver struct {
	txManager *TxManager
}

// NewArchiver creates a new ledger archiver.
func NewArchiver(txManager *TxManager) *Archiver {
	return &Archiver{txManager: txManager}
}

// ExportLedger streams ledger entries created before the cutoff to w,
// one JSON object per line, zstd-compressed. Returns the number of
// entries written.
func (a *Archiver) ExportLedger(ctx context.Context, w io.Writer, before time.Time) (int64, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, fmt.Errorf("create zstd encoder: %w", err)
	}

	sql := `
		SELECT id, seq, variant_id, branch_id, entry_type, quantity,
			   reference_id, actor_id, note, created_at
		FROM stock_ledger
		WHERE created_at < $1
		ORDER BY seq
	`

	rows, err := a.txManager.GetQuerier(ctx).Query(ctx, sql, before)
	if err != nil {
		_ = enc.Close()
		return 0, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	jsonEnc := json.NewEncoder(enc)
	var count int64
	for rows.Next() {
		var e ArchiveEntry
		err := rows.Scan(
			&e.ID, &e.Seq, &e.VariantID, &e.BranchID, &e.EntryType, &e.Quantity,
			&e.ReferenceID, &e.ActorID, &e.Note, &e.CreatedAt,
		)
		if err != nil {
			_ = enc.Close()
			return count, fmt.Errorf("scan entry: %w", err)
		}
		if err := jsonEnc.Encode(e); err != nil {
			_ = enc.Close()
			return count, fmt.Errorf("encode entry: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		_ = enc.Close()
		return count, err
	}

	if err := enc.Close(); err != nil {
		return count, fmt.Errorf("flush archive: %w", err)
	}
	return count, nil
}

// ReadArchive decodes a zstd NDJSON archive produced by ExportLedger.
func ReadArchive(r io.Reader) ([]ArchiveEntry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	var entries []ArchiveEntry
	jsonDec := json.NewDecoder(dec.IOReadCloser())
	for {
		var e ArchiveEntry
		if err := jsonDec.Decode(&e); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
