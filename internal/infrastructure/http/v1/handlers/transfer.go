package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
	"branchstock/internal/domain/transfer"
	"branchstock/internal/infrastructure/http/v1/dto"
)

// TransferHandler serves the transfer lifecycle endpoints.
type TransferHandler struct {
	BaseHandler
	transfers *transfer.Service
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(transfers *transfer.Service) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// Request handles POST /transfers
func (h *TransferHandler) Request(c *gin.Context) {
	var req dto.RequestTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	variantID, err := id.Parse(req.VariantID)
	if err != nil {
		h.Error(c, err)
		return
	}
	fromBranchID, err := id.Parse(req.FromBranchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	toBranchID, err := id.Parse(req.ToBranchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	unitIDs := make([]id.ID, 0, len(req.SerialUnitIDs))
	for _, raw := range req.SerialUnitIDs {
		unitID, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid serial unit id: "+raw))
			return
		}
		unitIDs = append(unitIDs, unitID)
	}

	input := transfer.RequestInput{
		VariantID:     variantID,
		Quantity:      types.NewQuantityFromFloat64(req.Quantity),
		SerialUnitIDs: unitIDs,
		FromBranchID:  fromBranchID,
		ToBranchID:    toBranchID,
		RequestedBy:   h.GetUserID(c),
		Notes:         req.Notes,
	}

	t, err := h.transfers.Request(c.Request.Context(), input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, t)
}

// Get handles GET /transfers/:id
func (h *TransferHandler) Get(c *gin.Context) {
	transferID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	t, err := h.transfers.GetTransfer(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, t)
}

// Approve handles POST /transfers/:id/approve
func (h *TransferHandler) Approve(c *gin.Context) {
	transferID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.transfers.Approve(c.Request.Context(), transferID, h.GetUserID(c)); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.MessageResponse{Message: "transfer approved"})
}

// MarkInTransit handles POST /transfers/:id/in-transit
func (h *TransferHandler) MarkInTransit(c *gin.Context) {
	transferID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.transfers.MarkInTransit(c.Request.Context(), transferID); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.MessageResponse{Message: "transfer in transit"})
}

// Complete handles POST /transfers/:id/complete
func (h *TransferHandler) Complete(c *gin.Context) {
	transferID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.transfers.Complete(c.Request.Context(), transferID, h.GetUserID(c)); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.MessageResponse{Message: "transfer completed"})
}

// Cancel handles POST /transfers/:id/cancel
func (h *TransferHandler) Cancel(c *gin.Context) {
	transferID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CancelTransferRequest
	if c.Request.ContentLength > 0 {
		if !h.BindJSON(c, &req) {
			return
		}
	}

	if err := h.transfers.Cancel(c.Request.Context(), transferID, req.Reason); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.MessageResponse{Message: "transfer cancelled"})
}

// List handles GET /transfers?branchId=&variantId=&status=&from=&to=
func (h *TransferHandler) List(c *gin.Context) {
	filter := transfer.ListFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if status := c.Query("status"); status != "" {
		filter.Statuses = []transfer.Status{transfer.Status(status)}
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

	branchID, ok := h.ParseIDQuery(c, "branchId")
	if !ok {
		return
	}
	variantID, ok := h.ParseIDQuery(c, "variantId")
	if !ok {
		return
	}

	var (
		transfers []*transfer.Transfer
		err       error
	)
	switch {
	case branchID != nil:
		transfers, err = h.transfers.GetTransferHistory(c.Request.Context(), *branchID, filter)
	case variantID != nil:
		transfers, err = h.transfers.GetVariantHistory(c.Request.Context(), *variantID, filter)
	default:
		h.Error(c, apperror.NewValidation("branchId or variantId query parameter is required"))
		return
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse[*transfer.Transfer]{
		Items:  transfers,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Stats handles GET /transfers/stats?branchId=
func (h *TransferHandler) Stats(c *gin.Context) {
	branchID, ok := h.ParseIDQuery(c, "branchId")
	if !ok {
		return
	}
	if branchID == nil {
		h.Error(c, apperror.NewValidation("branchId query parameter is required"))
		return
	}

	stats, err := h.transfers.GetStats(c.Request.Context(), *branchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, stats)
}
