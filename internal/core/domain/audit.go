package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegister           AuditAction = "REGISTER"
	AuditActionLogin              AuditAction = "LOGIN"
	AuditActionTransfer           AuditAction = "TRANSFER"
	AuditActionAdminCredit        AuditAction = "ADMIN_CREDIT"
	AuditActionAdminDebit         AuditAction = "ADMIN_DEBIT"
	AuditActionWalletFreeze       AuditAction = "WALLET_FREEZE"
	AuditActionWalletUnfreeze     AuditAction = "WALLET_UNFREEZE"
	AuditActionWalletClose        AuditAction = "WALLET_CLOSE"
	AuditActionRechargeRequest    AuditAction = "RECHARGE_REQUEST"
	AuditActionRechargeApprove    AuditAction = "RECHARGE_APPROVE"
	AuditActionRechargeReject     AuditAction = "RECHARGE_REJECT"
	AuditActionAffiliationRequest AuditAction = "AFFILIATION_REQUEST"
	AuditActionAffiliationApprove AuditAction = "AFFILIATION_APPROVE"
	AuditActionDisputeOpen        AuditAction = "DISPUTE_OPEN"
	AuditActionDisputeAssign      AuditAction = "DISPUTE_ASSIGN"
	AuditActionDisputeReassign    AuditAction = "DISPUTE_REASSIGN"
	AuditActionDisputeResolve     AuditAction = "DISPUTE_RESOLVE"
)

// AuditLog records a single audited action. Unlike the transaction journal,
// which only sees balance-affecting events, the audit trail also covers
// privileged actions that move no money (freezes, rejections, assignments).
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
