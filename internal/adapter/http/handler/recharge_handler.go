package handler

import (
	"errors"
	"io"

	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// RechargeHandler handles the add-funds approval workflow.
type RechargeHandler struct {
	rechargeSvc ports.RechargeService
}

// NewRechargeHandler creates a new RechargeHandler.
func NewRechargeHandler(rechargeSvc ports.RechargeService) *RechargeHandler {
	return &RechargeHandler{rechargeSvc: rechargeSvc}
}

// Create handles POST /api/v1/recharges.
func (h *RechargeHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.RechargeCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	recharge, err := h.rechargeSvc.Request(c.Request.Context(), ports.RechargeRequest{
		UserID:           userID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		PaymentMethod:    req.PaymentMethod,
		VoucherReference: req.VoucherReference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, recharge)
}

// Get handles GET /api/v1/recharges/:id.
func (h *RechargeHandler) Get(c *gin.Context) {
	rechargeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	recharge, err := h.rechargeSvc.GetByID(c.Request.Context(), rechargeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, recharge)
}

// Approve handles POST /api/v1/recharges/:id/approve (admin). The payment
// reference is optional, so an empty request body is accepted.
func (h *RechargeHandler) Approve(c *gin.Context) {
	rechargeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.RechargeApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.rechargeSvc.Approve(c.Request.Context(), rechargeID, req.ExternalTransactionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Reject handles POST /api/v1/recharges/:id/reject (admin).
func (h *RechargeHandler) Reject(c *gin.Context) {
	rechargeID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.RechargeRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	recharge, err := h.rechargeSvc.Reject(c.Request.Context(), rechargeID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, recharge)
}
