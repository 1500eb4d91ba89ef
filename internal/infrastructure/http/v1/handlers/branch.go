package handlers

import (
	"github.com/gin-gonic/gin"

	"branchstock/internal/domain/catalogs/branch"
	"branchstock/internal/infrastructure/http/v1/dto"
)

// BranchHandler serves the branch catalog.
type BranchHandler struct {
	BaseHandler
	branches *branch.Service
}

// NewBranchHandler creates a new branch handler.
func NewBranchHandler(branches *branch.Service) *BranchHandler {
	return &BranchHandler{branches: branches}
}

// Create handles POST /branches
func (h *BranchHandler) Create(c *gin.Context) {
	var req dto.CreateBranchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	b := branch.NewBranch(req.Code, req.Name)
	b.Address = req.Address
	b.Phone = req.Phone

	if err := h.branches.CreateBranch(c.Request.Context(), b); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, b)
}

// Get handles GET /branches/:id
func (h *BranchHandler) Get(c *gin.Context) {
	branchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	b, err := h.branches.GetBranch(c.Request.Context(), branchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, b)
}

// List handles GET /branches?all=true
func (h *BranchHandler) List(c *gin.Context) {
	onlyActive := c.Query("all") != "true"

	branches, err := h.branches.ListBranches(c.Request.Context(), onlyActive)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse[*branch.Branch]{Items: branches})
}
