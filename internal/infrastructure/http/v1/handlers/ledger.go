package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"branchstock/internal/core/apperror"
	"branchstock/internal/domain/ledger"
	"branchstock/internal/infrastructure/http/v1/dto"
	"branchstock/internal/infrastructure/storage/postgres"
	"branchstock/pkg/logger"
)

// LedgerHandler serves movement history and archive export.
type LedgerHandler struct {
	BaseHandler
	entries  *ledger.Service
	archiver *postgres.Archiver
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(entries *ledger.Service, archiver *postgres.Archiver) *LedgerHandler {
	return &LedgerHandler{entries: entries, archiver: archiver}
}

// History handles GET /ledger?variantId=&branchId=&types=&from=&to=
func (h *LedgerHandler) History(c *gin.Context) {
	filter := ledger.HistoryFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	variantID, ok := h.ParseIDQuery(c, "variantId")
	if !ok {
		return
	}
	filter.VariantID = variantID

	branchID, ok := h.ParseIDQuery(c, "branchId")
	if !ok {
		return
	}
	filter.BranchID = branchID

	if raw := c.Query("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			filter.Types = append(filter.Types, ledger.EntryType(strings.TrimSpace(t)))
		}
	}
	if from := c.Query("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from date, expected RFC3339"))
			return
		}
		filter.FromDate = &parsed
	}
	if to := c.Query("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to date, expected RFC3339"))
			return
		}
		filter.ToDate = &parsed
	}

	entries, err := h.entries.History(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse[*ledger.Entry]{
		Items:  entries,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Export handles GET /ledger/export?before=
// Streams entries older than the cutoff as zstd-compressed NDJSON.
func (h *LedgerHandler) Export(c *gin.Context) {
	before := time.Now().UTC()
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid before date, expected RFC3339"))
			return
		}
		before = parsed
	}

	filename := fmt.Sprintf("ledger-%s.ndjson.zst", before.Format("20060102-150405"))
	c.Header("Content-Type", "application/zstd")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	count, err := h.archiver.ExportLedger(c.Request.Context(), c.Writer, before)
	if err != nil {
		// Headers are already out; all we can do is log and cut the stream.
		logger.Error(c.Request.Context(), "ledger export failed", "error", err, "exported", count)
		return
	}

	logger.Info(c.Request.Context(), "ledger exported", "entries", count, "before", before)
}
