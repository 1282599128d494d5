package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the shape of a journal entry.
type TransactionType string

const (
	// TransactionTypeCredit is a single-wallet credit (no source wallet).
	TransactionTypeCredit TransactionType = "credit"
	// TransactionTypeDebit is a single-wallet debit (no destination wallet).
	TransactionTypeDebit TransactionType = "debit"
	// TransactionTypeTransfer moves funds between two wallets.
	TransactionTypeTransfer TransactionType = "transfer"
)

// RelatedEntityType identifies the business record a journal entry originated from.
type RelatedEntityType string

const (
	RelatedEntityRecharge    RelatedEntityType = "recharge"
	RelatedEntityAffiliation RelatedEntityType = "affiliation"
	RelatedEntityDispute     RelatedEntityType = "dispute"
	RelatedEntityPurchase    RelatedEntityType = "purchase"
	RelatedEntityManual      RelatedEntityType = "manual"
)

// TransactionMetadata is the structured side-channel carried by a journal
// entry. Each workflow fills only the fields it owns; the whole struct is
// stored as JSONB.
type TransactionMetadata struct {
	VoucherReference      string `json:"voucher_reference,omitempty"`
	ExternalTransactionID string `json:"external_transaction_id,omitempty"`
	RefundPercentage      *int   `json:"refund_percentage,omitempty"`
	Reason                string `json:"reason,omitempty"`
	ExchangeRate          string `json:"exchange_rate,omitempty"`
}

// Transaction is an immutable journal entry backing exactly one balance
// change. The idempotency key is globally unique: at most one entry exists
// per logical business attempt, however often it is retried.
type Transaction struct {
	ID                  uuid.UUID            `json:"id"`
	Type                TransactionType      `json:"type"`
	Amount              Money                `json:"amount"`
	SourceWalletID      *uuid.UUID           `json:"source_wallet_id,omitempty"`
	DestinationWalletID *uuid.UUID           `json:"destination_wallet_id,omitempty"`
	RelatedEntityType   RelatedEntityType    `json:"related_entity_type"`
	RelatedEntityID     string               `json:"related_entity_id"`
	IdempotencyKey      string               `json:"idempotency_key"`
	Description         string               `json:"description"`
	Metadata            *TransactionMetadata `json:"metadata,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}

// Idempotency keys are derived deterministically from the originating
// business entity so retried approvals reuse the same key.

// RechargeIdempotencyKey builds the key for a recharge approval.
func RechargeIdempotencyKey(rechargeID uuid.UUID) string {
	return "recharge:" + rechargeID.String()
}

// AffiliationIdempotencyKey builds the key for a referral approval.
func AffiliationIdempotencyKey(affiliationID uuid.UUID) string {
	return "affiliation:" + affiliationID.String()
}

// DisputeIdempotencyKey builds the key for a dispute resolution.
func DisputeIdempotencyKey(disputeID uuid.UUID) string {
	return "dispute:" + disputeID.String()
}
