package handlers

import (
	"github.com/gin-gonic/gin"

	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
	"branchstock/internal/domain/ledger"
	"branchstock/internal/domain/serial"
	"branchstock/internal/domain/variant"
	"branchstock/internal/infrastructure/http/v1/dto"
)

// VariantHandler serves variant reads, unit registration and reconciliation.
type VariantHandler struct {
	BaseHandler
	variants *variant.Service
	serials  *serial.Service
	entries  *ledger.Service
}

// NewVariantHandler creates a new variant handler.
func NewVariantHandler(variants *variant.Service, serials *serial.Service, entries *ledger.Service) *VariantHandler {
	return &VariantHandler{variants: variants, serials: serials, entries: entries}
}

// Create handles POST /variants
func (h *VariantHandler) Create(c *gin.Context) {
	var req dto.CreateVariantRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, err)
		return
	}

	var branchID *id.ID
	if req.BranchID != nil {
		parsed, err := id.Parse(*req.BranchID)
		if err != nil {
			h.Error(c, err)
			return
		}
		branchID = &parsed
	}

	v := variant.New(productID, branchID, req.Name)
	if req.CostPrice != nil {
		v.CostPrice = types.NewMoney(*req.CostPrice)
	}
	if req.SellingPrice != nil {
		v.SellingPrice = types.NewMoney(*req.SellingPrice)
	}

	if err := h.variants.CreateVariant(c.Request.Context(), v); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, v)
}

// Get handles GET /variants/:id
func (h *VariantHandler) Get(c *gin.Context) {
	variantID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	v, err := h.variants.GetVariant(c.Request.Context(), variantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, v)
}

// Deactivate handles DELETE /variants/:id
func (h *VariantHandler) Deactivate(c *gin.Context) {
	variantID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.variants.DeactivateVariant(c.Request.Context(), variantID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// ListChildren handles GET /variants/:id/children
func (h *VariantHandler) ListChildren(c *gin.Context) {
	variantID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	children, err := h.variants.ChildVariants(c.Request.Context(), variantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse[*variant.Variant]{Items: children})
}

// ListUnits handles GET /variants/:id/units
func (h *VariantHandler) ListUnits(c *gin.Context) {
	variantID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	units, err := h.serials.FindUnitsByParent(c.Request.Context(), variantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse[*serial.Unit]{Items: units})
}

// RegisterUnit handles POST /variants/:id/units
func (h *VariantHandler) RegisterUnit(c *gin.Context) {
	variantID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.RegisterUnitRequest
	if !h.BindJSON(c, &req) {
		return
	}

	branchID, err := id.Parse(req.BranchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	input := serial.RegisterInput{
		Serial:       req.Serial,
		SerialNumber: req.SerialNumber,
		MAC:          req.MAC,
		Condition:    req.Condition,
		BranchID:     branchID,
		SourceKind:   serial.SourceKind(req.SourceKind),
		Notes:        req.Notes,
	}
	if input.SourceKind == "" {
		input.SourceKind = serial.SourceAdjustment
	}
	if req.CostPrice != nil {
		cost := types.NewMoney(*req.CostPrice)
		input.CostPrice = &cost
	}
	if req.SellingPrice != nil {
		price := types.NewMoney(*req.SellingPrice)
		input.SellingPrice = &price
	}
	if req.SourceID != nil {
		sourceID, err := id.Parse(*req.SourceID)
		if err != nil {
			h.Error(c, err)
			return
		}
		input.SourceID = &sourceID
	}

	unit, err := h.serials.RegisterUnit(c.Request.Context(), variantID, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, unit)
}

// Reconcile handles GET /variants/:id/reconcile
func (h *VariantHandler) Reconcile(c *gin.Context) {
	variantID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	rec, err := h.entries.ReconcileVariant(c.Request.Context(), variantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, rec)
}
