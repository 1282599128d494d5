package domain

import (
	"strings"
	"time"

	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// DisputeStatus represents the state of a purchase dispute.
type DisputeStatus string

const (
	DisputeStatusPending  DisputeStatus = "pending"
	DisputeStatusAssigned DisputeStatus = "assigned"
	DisputeStatusResolved DisputeStatus = "resolved"
)

// DisputeOpener identifies which party opened the dispute.
type DisputeOpener string

const (
	DisputeOpenerSeller   DisputeOpener = "seller"
	DisputeOpenerProvider DisputeOpener = "provider"
)

// ResolutionType determines the monetary effect of resolving a dispute.
type ResolutionType string

const (
	// ResolutionRefundSeller moves 100% of the purchase amount to the seller.
	ResolutionRefundSeller ResolutionType = "refund_seller"
	// ResolutionFavorProvider closes the dispute with funds unchanged.
	ResolutionFavorProvider ResolutionType = "favor_provider"
	// ResolutionPartialRefund moves amount × refundPercentage / 100 to the seller.
	ResolutionPartialRefund ResolutionType = "partial_refund"
	// ResolutionNoAction closes the dispute without a ledger call.
	ResolutionNoAction ResolutionType = "no_action"
)

// MinResolutionLen is the minimum length of a resolution explanation.
const MinResolutionLen = 20

// Dispute is raised against a completed purchase and walked through
// Pending → Assigned → Resolved by a conciliator. Resolution is irreversible.
type Dispute struct {
	ID                    uuid.UUID       `json:"id"`
	PurchaseID            uuid.UUID       `json:"purchase_id"`
	OpenedBy              DisputeOpener   `json:"opened_by"`
	Status                DisputeStatus   `json:"status"`
	AssignedConciliatorID *uuid.UUID      `json:"assigned_conciliator_id,omitempty"`
	ResolutionType        *ResolutionType `json:"resolution_type,omitempty"`
	RefundPercentage      *int            `json:"refund_percentage,omitempty"`
	Resolution            *string         `json:"resolution,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	AssignedAt            *time.Time      `json:"assigned_at,omitempty"`
	ResolvedAt            *time.Time      `json:"resolved_at,omitempty"`
}

// NewDispute opens a pending dispute over a purchase.
func NewDispute(purchaseID uuid.UUID, openedBy DisputeOpener) *Dispute {
	return &Dispute{
		ID:         uuid.New(),
		PurchaseID: purchaseID,
		OpenedBy:   openedBy,
		Status:     DisputeStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

// Assign claims a pending dispute for a conciliator. The single-winner
// guarantee under concurrency is enforced by the repository's conditional
// update; this method validates the entity-level transition.
func (d *Dispute) Assign(conciliatorID uuid.UUID, now time.Time) error {
	if d.Status == DisputeStatusResolved {
		return apperror.ErrDuplicateResolution()
	}
	if d.Status != DisputeStatusPending {
		return apperror.ErrInvalidState("dispute is already assigned")
	}
	d.Status = DisputeStatusAssigned
	d.AssignedConciliatorID = &conciliatorID
	d.AssignedAt = &now
	return nil
}

// Reassign moves an unresolved dispute to another conciliator.
func (d *Dispute) Reassign(conciliatorID uuid.UUID, now time.Time) error {
	if d.Status == DisputeStatusResolved {
		return apperror.ErrDuplicateResolution()
	}
	d.Status = DisputeStatusAssigned
	d.AssignedConciliatorID = &conciliatorID
	d.AssignedAt = &now
	return nil
}

// Resolve closes an assigned dispute. partial_refund requires a percentage
// in (0, 100); the other resolution types reject one.
func (d *Dispute) Resolve(rt ResolutionType, explanation string, refundPercentage *int, now time.Time) error {
	if d.Status == DisputeStatusResolved {
		return apperror.ErrDuplicateResolution()
	}
	if d.Status != DisputeStatusAssigned {
		return apperror.ErrInvalidState("dispute has not been assigned")
	}
	if len(strings.TrimSpace(explanation)) < MinResolutionLen {
		return apperror.Validation("resolution explanation must be at least 20 characters")
	}
	switch rt {
	case ResolutionPartialRefund:
		if refundPercentage == nil || *refundPercentage <= 0 || *refundPercentage >= 100 {
			return apperror.Validation("partial refund requires a percentage between 1 and 99")
		}
	case ResolutionRefundSeller, ResolutionFavorProvider, ResolutionNoAction:
		if refundPercentage != nil {
			return apperror.Validation("refund percentage only applies to partial refunds")
		}
	default:
		return apperror.Validation("unknown resolution type")
	}
	d.Status = DisputeStatusResolved
	d.ResolutionType = &rt
	d.RefundPercentage = refundPercentage
	d.Resolution = &explanation
	d.ResolvedAt = &now
	return nil
}

// MovesFunds reports whether this resolution type triggers a ledger transfer.
func (rt ResolutionType) MovesFunds() bool {
	return rt == ResolutionRefundSeller || rt == ResolutionPartialRefund
}
