package handler

import (
	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AffiliationHandler handles the referral approval workflow.
type AffiliationHandler struct {
	affiliationSvc ports.AffiliationService
}

// NewAffiliationHandler creates a new AffiliationHandler.
func NewAffiliationHandler(affiliationSvc ports.AffiliationService) *AffiliationHandler {
	return &AffiliationHandler{affiliationSvc: affiliationSvc}
}

// Create handles POST /api/v1/affiliations. The caller becomes the
// affiliate of the referred user.
func (h *AffiliationHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.AffiliationCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	referredID, err := uuid.Parse(req.ReferredUserID)
	if err != nil {
		response.Error(c, apperror.Validation("referred_user_id must be a valid UUID"))
		return
	}

	affiliation, err := h.affiliationSvc.Create(c.Request.Context(), userID, referredID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, affiliation)
}

// Get handles GET /api/v1/affiliations/:id.
func (h *AffiliationHandler) Get(c *gin.Context) {
	affiliationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	affiliation, err := h.affiliationSvc.GetByID(c.Request.Context(), affiliationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, affiliation)
}

// Approve handles POST /api/v1/affiliations/:id/approve. Only the affiliate
// who owns the referral may approve it; the approval fee moves from their
// wallet to the platform wallet.
func (h *AffiliationHandler) Approve(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	affiliationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.affiliationSvc.Approve(c.Request.Context(), affiliationID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
