package dto

// CreateBranchRequest creates a branch catalog entry.
type CreateBranchRequest struct {
	Code    string  `json:"code" binding:"required"`
	Name    string  `json:"name" binding:"required"`
	Address *string `json:"address"`
	Phone   *string `json:"phone"`
}

// CreateVariantRequest creates a standalone variant at a branch.
type CreateVariantRequest struct {
	ProductID    string   `json:"productId" binding:"required"`
	BranchID     *string  `json:"branchId"`
	Name         string   `json:"name" binding:"required"`
	CostPrice    *float64 `json:"costPrice"`
	SellingPrice *float64 `json:"sellingPrice"`
}

// RegisterUnitRequest registers one serialized unit under a parent variant.
type RegisterUnitRequest struct {
	Serial       string   `json:"serial" binding:"required"`
	SerialNumber *string  `json:"serialNumber"`
	MAC          *string  `json:"mac"`
	Condition    string   `json:"condition"`
	CostPrice    *float64 `json:"costPrice"`
	SellingPrice *float64 `json:"sellingPrice"`
	BranchID     string   `json:"branchId" binding:"required"`
	SourceKind   string   `json:"sourceKind"`
	SourceID     *string  `json:"sourceId"`
	Notes        *string  `json:"notes"`
}

// ChangeUnitStatusRequest moves a serial unit between lifecycle states.
type ChangeUnitStatusRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// RequestTransferRequest creates a new transfer.
type RequestTransferRequest struct {
	VariantID     string   `json:"variantId" binding:"required"`
	Quantity      float64  `json:"quantity"`
	SerialUnitIDs []string `json:"serialUnitIds"`
	FromBranchID  string   `json:"fromBranchId" binding:"required"`
	ToBranchID    string   `json:"toBranchId" binding:"required"`
	Notes         *string  `json:"notes"`
}

// CancelTransferRequest carries the optional cancellation reason.
type CancelTransferRequest struct {
	Reason *string `json:"reason"`
}

// SerialInputRequest is one delivered serial identifier.
type SerialInputRequest struct {
	Serial       string  `json:"serial" binding:"required"`
	SerialNumber *string `json:"serialNumber"`
	MAC          *string `json:"mac"`
	Condition    string  `json:"condition"`
	Notes        *string `json:"notes"`
}

// ReceiveLineRequest applies a delivery to a PO line.
type ReceiveLineRequest struct {
	Quantity float64              `json:"quantity" binding:"required,gt=0"`
	Serials  []SerialInputRequest `json:"serials"`
}
