package handler

import (
	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DisputeHandler handles dispute assignment and resolution.
type DisputeHandler struct {
	disputeSvc ports.DisputeService
}

// NewDisputeHandler creates a new DisputeHandler.
func NewDisputeHandler(disputeSvc ports.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputeSvc: disputeSvc}
}

// Open handles POST /api/v1/disputes.
func (h *DisputeHandler) Open(c *gin.Context) {
	var req dto.DisputeOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	purchaseID, err := uuid.Parse(req.PurchaseID)
	if err != nil {
		response.Error(c, apperror.Validation("purchase_id must be a valid UUID"))
		return
	}

	dispute, err := h.disputeSvc.Open(c.Request.Context(), purchaseID, domain.DisputeOpener(req.OpenedBy))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dispute)
}

// Get handles GET /api/v1/disputes/:id.
func (h *DisputeHandler) Get(c *gin.Context) {
	disputeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	dispute, err := h.disputeSvc.GetByID(c.Request.Context(), disputeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dispute)
}

// Assign handles POST /api/v1/disputes/:id/assign (conciliator). The caller
// claims the dispute for themselves; the first claim wins.
func (h *DisputeHandler) Assign(c *gin.Context) {
	conciliatorID, ok := currentUserID(c)
	if !ok {
		return
	}

	disputeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	dispute, err := h.disputeSvc.Assign(c.Request.Context(), disputeID, conciliatorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dispute)
}

// Reassign handles POST /api/v1/disputes/:id/reassign (conciliator).
func (h *DisputeHandler) Reassign(c *gin.Context) {
	conciliatorID, ok := currentUserID(c)
	if !ok {
		return
	}

	disputeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	dispute, err := h.disputeSvc.Reassign(c.Request.Context(), disputeID, conciliatorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dispute)
}

// Resolve handles POST /api/v1/disputes/:id/resolve (conciliator).
func (h *DisputeHandler) Resolve(c *gin.Context) {
	conciliatorID, ok := currentUserID(c)
	if !ok {
		return
	}

	disputeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.DisputeResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.disputeSvc.Resolve(c.Request.Context(), ports.ResolveDisputeRequest{
		DisputeID:        disputeID,
		ConciliatorID:    conciliatorID,
		ResolutionType:   domain.ResolutionType(req.ResolutionType),
		Explanation:      req.Explanation,
		RefundPercentage: req.RefundPercentage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
