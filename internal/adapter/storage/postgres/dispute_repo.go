package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DisputeRepo implements ports.DisputeRepository.
type DisputeRepo struct {
	pool Pool
}

// NewDisputeRepo creates a new DisputeRepo.
func NewDisputeRepo(pool Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

const disputeColumns = `id, purchase_id, opened_by, status, assigned_conciliator_id,
		resolution_type, refund_percentage, resolution, created_at, assigned_at, resolved_at`

// Create inserts a pending dispute.
func (r *DisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	query := `INSERT INTO disputes (` + disputeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.PurchaseID, d.OpenedBy, d.Status, d.AssignedConciliatorID,
		d.ResolutionType, d.RefundPercentage, d.Resolution,
		d.CreatedAt, d.AssignedAt, d.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

// GetByID fetches a dispute by id.
func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`

	d := &domain.Dispute{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.PurchaseID, &d.OpenedBy, &d.Status, &d.AssignedConciliatorID,
		&d.ResolutionType, &d.RefundPercentage, &d.Resolution,
		&d.CreatedAt, &d.AssignedAt, &d.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dispute by id: %w", err)
	}
	return d, nil
}

// ClaimPending atomically assigns a pending dispute to a conciliator.
// The WHERE clause makes concurrent claims race on the row version: only
// one UPDATE matches, the rest see zero affected rows.
func (r *DisputeRepo) ClaimPending(ctx context.Context, disputeID, conciliatorID uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE disputes
		SET status = $1, assigned_conciliator_id = $2, assigned_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := r.pool.Exec(ctx, query,
		domain.DisputeStatusAssigned, conciliatorID, at,
		disputeID, domain.DisputeStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim dispute: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Update persists the dispute's assignment and resolution fields.
func (r *DisputeRepo) Update(ctx context.Context, d *domain.Dispute) error {
	query := `UPDATE disputes SET status = $1, assigned_conciliator_id = $2,
		resolution_type = $3, refund_percentage = $4, resolution = $5,
		assigned_at = $6, resolved_at = $7 WHERE id = $8`

	tag, err := r.pool.Exec(ctx, query,
		d.Status, d.AssignedConciliatorID, d.ResolutionType, d.RefundPercentage,
		d.Resolution, d.AssignedAt, d.ResolvedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update dispute: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dispute not found: %s", d.ID)
	}
	return nil
}
