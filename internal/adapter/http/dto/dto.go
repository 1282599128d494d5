package dto

import "marketplace-ledger/internal/core/domain"

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Username   string  `json:"username" binding:"required,min=3,max=50"`
	Password   string  `json:"password" binding:"required,min=8,max=128"`
	Role       string  `json:"role" binding:"omitempty,oneof=member affiliate conciliator admin"`
	ReferrerID *string `json:"referrer_id,omitempty" binding:"omitempty,uuid"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// DebitRequest is the request body for an ad-hoc wallet debit.
type DebitRequest struct {
	Amount         string `json:"amount" binding:"required,money_amount"`
	Currency       string `json:"currency" binding:"omitempty,len=3"`
	Description    string `json:"description" binding:"omitempty,max=255"`
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=100"`
}

// CreditRequest is the request body for an ad-hoc wallet credit.
type CreditRequest struct {
	Amount         string `json:"amount" binding:"required,money_amount"`
	Currency       string `json:"currency" binding:"omitempty,len=3"`
	Description    string `json:"description" binding:"omitempty,max=255"`
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=100"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	DestinationUserID string `json:"destination_user_id" binding:"required,uuid"`
	Amount            string `json:"amount" binding:"required,money_amount"`
	Currency          string `json:"currency" binding:"omitempty,len=3"`
	Description       string `json:"description" binding:"omitempty,max=255"`
	IdempotencyKey    string `json:"idempotency_key" binding:"omitempty,max=100"`
}

// RechargeCreateRequest is the request body for claiming a deposit.
type RechargeCreateRequest struct {
	Amount           string  `json:"amount" binding:"required,money_amount"`
	Currency         string  `json:"currency" binding:"omitempty,len=3"`
	PaymentMethod    string  `json:"payment_method" binding:"required,max=50"`
	VoucherReference *string `json:"voucher_reference,omitempty" binding:"omitempty,max=100"`
}

// RechargeApproveRequest carries the external payment reference confirmed by
// the reviewing admin. The reference is optional: not every payment method
// produces one.
type RechargeApproveRequest struct {
	ExternalTransactionID string `json:"external_transaction_id,omitempty" binding:"omitempty,max=100"`
}

// RechargeRejectRequest carries the admin's rejection reason.
type RechargeRejectRequest struct {
	Reason string `json:"reason" binding:"required,min=10,max=500"`
}

// AffiliationCreateRequest records a referral for later approval.
type AffiliationCreateRequest struct {
	ReferredUserID string `json:"referred_user_id" binding:"required,uuid"`
}

// DisputeOpenRequest opens a dispute over a purchase.
type DisputeOpenRequest struct {
	PurchaseID string `json:"purchase_id" binding:"required,uuid"`
	OpenedBy   string `json:"opened_by" binding:"required,oneof=seller provider"`
}

// DisputeResolveRequest carries a conciliator's verdict. RefundPercentage is
// required only for partial_refund resolutions.
type DisputeResolveRequest struct {
	ResolutionType   string `json:"resolution_type" binding:"required,oneof=refund_seller favor_provider partial_refund no_action"`
	RefundPercentage *int   `json:"refund_percentage,omitempty" binding:"omitempty,gte=1,lte=100"`
	Explanation      string `json:"explanation" binding:"required,min=20,max=1000"`
}

// TransactionListQuery is the query string for the transaction history
// endpoint. From and To are RFC 3339 timestamps.
type TransactionListQuery struct {
	Page     int    `form:"page,default=1" binding:"omitempty,gte=1"`
	PageSize int    `form:"page_size,default=20" binding:"omitempty,gte=1,lte=100"`
	Type     string `form:"type" binding:"omitempty,oneof=credit debit transfer"`
	From     string `form:"from" binding:"omitempty"`
	To       string `form:"to" binding:"omitempty"`
}

// TransactionListResponse wraps a paginated transaction history page.
type TransactionListResponse struct {
	Items      []domain.Transaction `json:"items"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
}
