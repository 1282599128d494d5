package domain

import (
	"strings"
	"time"

	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// RechargeStatus represents the state of an add-funds request.
type RechargeStatus string

const (
	RechargeStatusPending   RechargeStatus = "pending"
	RechargeStatusCompleted RechargeStatus = "completed"
	RechargeStatusFailed    RechargeStatus = "failed"
	RechargeStatusCancelled RechargeStatus = "cancelled"
)

// MinRejectionReasonLen is the minimum length of a recharge rejection reason.
const MinRejectionReasonLen = 10

// Recharge is a user-submitted request to add funds, reviewed by an admin.
// Only pending recharges may be approved or rejected; Completed, Failed and
// Cancelled are terminal.
type Recharge struct {
	ID                    uuid.UUID      `json:"id"`
	WalletID              uuid.UUID      `json:"wallet_id"`
	Amount                Money          `json:"amount"`
	PaymentMethod         string         `json:"payment_method"`
	Status                RechargeStatus `json:"status"`
	ExternalTransactionID *string        `json:"external_transaction_id,omitempty"`
	VoucherReference      *string        `json:"voucher_reference,omitempty"`
	RejectionReason       *string        `json:"rejection_reason,omitempty"`
	RequestedAt           time.Time      `json:"requested_at"`
	CompletedAt           *time.Time     `json:"completed_at,omitempty"`
}

// NewRecharge creates a pending recharge request.
func NewRecharge(walletID uuid.UUID, amount Money, paymentMethod string, voucherReference *string) (*Recharge, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount("must be positive")
	}
	return &Recharge{
		ID:               uuid.New(),
		WalletID:         walletID,
		Amount:           amount,
		PaymentMethod:    paymentMethod,
		Status:           RechargeStatusPending,
		VoucherReference: voucherReference,
		RequestedAt:      time.Now().UTC(),
	}, nil
}

// IsTerminal reports whether the recharge reached a final state.
func (r *Recharge) IsTerminal() bool {
	return r.Status != RechargeStatusPending
}

// Approve transitions a pending recharge to Completed. Re-approving a
// terminal recharge is a state conflict, never a silent no-op.
func (r *Recharge) Approve(externalTransactionID string, now time.Time) error {
	if r.Status != RechargeStatusPending {
		return apperror.ErrInvalidState("recharge is not pending")
	}
	r.Status = RechargeStatusCompleted
	if externalTransactionID != "" {
		r.ExternalTransactionID = &externalTransactionID
	}
	r.CompletedAt = &now
	return nil
}

// Reject transitions a pending recharge to Cancelled. The reason is
// mandatory and must carry enough text to be useful to the requester.
func (r *Recharge) Reject(reason string) error {
	if r.Status != RechargeStatusPending {
		return apperror.ErrInvalidState("recharge is not pending")
	}
	if len(strings.TrimSpace(reason)) < MinRejectionReasonLen {
		return apperror.Validation("rejection reason must be at least 10 characters")
	}
	r.Status = RechargeStatusCancelled
	r.RejectionReason = &reason
	return nil
}
