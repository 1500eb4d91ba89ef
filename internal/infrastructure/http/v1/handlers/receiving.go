package handlers

import (
	"github.com/gin-gonic/gin"

	"branchstock/internal/core/types"
	"branchstock/internal/domain/receiving"
	"branchstock/internal/infrastructure/http/v1/dto"
)

// ReceivingHandler serves purchase order line deliveries.
type ReceivingHandler struct {
	BaseHandler
	receiving *receiving.Service
}

// NewReceivingHandler creates a new receiving handler.
func NewReceivingHandler(svc *receiving.Service) *ReceivingHandler {
	return &ReceivingHandler{receiving: svc}
}

// ReceiveLine handles POST /receiving/lines/:id/receive
func (h *ReceivingHandler) ReceiveLine(c *gin.Context) {
	lineID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ReceiveLineRequest
	if !h.BindJSON(c, &req) {
		return
	}

	serials := make([]receiving.SerialInput, 0, len(req.Serials))
	for _, s := range req.Serials {
		serials = append(serials, receiving.SerialInput{
			Serial:       s.Serial,
			SerialNumber: s.SerialNumber,
			MAC:          s.MAC,
			Condition:    s.Condition,
			Notes:        s.Notes,
		})
	}

	result, err := h.receiving.ReceiveLine(c.Request.Context(), lineID, types.NewQuantityFromFloat64(req.Quantity), serials)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// GetLine handles GET /receiving/lines/:id
func (h *ReceivingHandler) GetLine(c *gin.Context) {
	lineID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	line, err := h.receiving.GetLine(c.Request.Context(), lineID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, line)
}
