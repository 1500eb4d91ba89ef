package handlers

import (
	"github.com/gin-gonic/gin"

	"branchstock/internal/core/apperror"
	"branchstock/internal/domain/serial"
	"branchstock/internal/infrastructure/http/v1/dto"
)

// UnitHandler serves serial unit lookups and status changes.
type UnitHandler struct {
	BaseHandler
	serials *serial.Service
}

// NewUnitHandler creates a new unit handler.
func NewUnitHandler(serials *serial.Service) *UnitHandler {
	return &UnitHandler{serials: serials}
}

// Get handles GET /units/:id
func (h *UnitHandler) Get(c *gin.Context) {
	unitID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	unit, err := h.serials.GetUnit(c.Request.Context(), unitID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, unit)
}

// GetBySerial handles GET /units/by-serial/:serial
func (h *UnitHandler) GetBySerial(c *gin.Context) {
	serialNo := c.Param("serial")
	if serialNo == "" {
		h.Error(c, apperror.NewValidation("serial is required"))
		return
	}

	unit, err := h.serials.FindBySerial(c.Request.Context(), serialNo)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, unit)
}

// ChangeStatus handles POST /units/:id/status
func (h *UnitHandler) ChangeStatus(c *gin.Context) {
	unitID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ChangeUnitStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	err := h.serials.ChangeStatus(c.Request.Context(), unitID, serial.Status(req.From), serial.Status(req.To))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.MessageResponse{Message: "status changed"})
}
