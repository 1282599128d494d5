package domain

import (
	"time"

	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// ApprovalStatus represents the state of a referral.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
)

// Affiliation records one user referring another. Approval is one-way and
// happens at most once; it charges the configured fee to the affiliate.
type Affiliation struct {
	ID                    uuid.UUID      `json:"id"`
	AffiliateID           uuid.UUID      `json:"affiliate_id"`
	ReferredUserID        uuid.UUID      `json:"referred_user_id"`
	ApprovalStatus        ApprovalStatus `json:"approval_status"`
	ApprovalFee           *Money         `json:"approval_fee,omitempty"`
	ApprovedAt            *time.Time     `json:"approved_at,omitempty"`
	ApprovalTransactionID *uuid.UUID     `json:"approval_transaction_id,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
}

// NewAffiliation creates a pending referral record.
func NewAffiliation(affiliateID, referredUserID uuid.UUID) *Affiliation {
	return &Affiliation{
		ID:             uuid.New(),
		AffiliateID:    affiliateID,
		ReferredUserID: referredUserID,
		ApprovalStatus: ApprovalStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
}

// Approve stamps the referral as approved with the fee charged and the
// backing journal entry. A second approval fails with a state conflict.
func (a *Affiliation) Approve(fee Money, transactionID uuid.UUID, now time.Time) error {
	if a.ApprovalStatus != ApprovalStatusPending {
		return apperror.ErrInvalidState("affiliation is not pending")
	}
	a.ApprovalStatus = ApprovalStatusApproved
	a.ApprovalFee = &fee
	a.ApprovalTransactionID = &transactionID
	a.ApprovedAt = &now
	return nil
}

// ReferralFeeConfig is the fee charged to an affiliate on referral approval.
// Exactly one config may be active at a time.
type ReferralFeeConfig struct {
	ID        uuid.UUID `json:"id"`
	Fee       Money     `json:"fee"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
