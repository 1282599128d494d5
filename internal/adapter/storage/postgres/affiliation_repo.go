package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AffiliationRepo implements ports.AffiliationRepository.
type AffiliationRepo struct {
	pool Pool
}

// NewAffiliationRepo creates a new AffiliationRepo.
func NewAffiliationRepo(pool Pool) *AffiliationRepo {
	return &AffiliationRepo{pool: pool}
}

const affiliationColumns = `id, affiliate_id, referred_user_id, approval_status,
		approval_fee, approval_fee_currency, approved_at, approval_transaction_id, created_at`

// Create inserts a pending affiliation.
func (r *AffiliationRepo) Create(ctx context.Context, a *domain.Affiliation) error {
	query := `INSERT INTO affiliations (` + affiliationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	fee, feeCurrency := feeColumns(a.ApprovalFee)
	_, err := r.pool.Exec(ctx, query,
		a.ID, a.AffiliateID, a.ReferredUserID, a.ApprovalStatus,
		fee, feeCurrency, a.ApprovedAt, a.ApprovalTransactionID, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert affiliation: %w", err)
	}
	return nil
}

// GetByID fetches an affiliation by id.
func (r *AffiliationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Affiliation, error) {
	query := `SELECT ` + affiliationColumns + ` FROM affiliations WHERE id = $1`
	a, err := scanAffiliation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get affiliation by id: %w", err)
	}
	return a, nil
}

// Update persists the approval fields.
func (r *AffiliationRepo) Update(ctx context.Context, a *domain.Affiliation) error {
	query := `UPDATE affiliations SET approval_status = $1, approval_fee = $2,
		approval_fee_currency = $3, approved_at = $4, approval_transaction_id = $5
		WHERE id = $6`

	fee, feeCurrency := feeColumns(a.ApprovalFee)
	tag, err := r.pool.Exec(ctx, query,
		a.ApprovalStatus, fee, feeCurrency, a.ApprovedAt, a.ApprovalTransactionID, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update affiliation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("affiliation not found: %s", a.ID)
	}
	return nil
}

// ListByAffiliate returns the affiliate's referrals, newest first.
func (r *AffiliationRepo) ListByAffiliate(ctx context.Context, affiliateID uuid.UUID) ([]domain.Affiliation, error) {
	query := `SELECT ` + affiliationColumns + ` FROM affiliations
		WHERE affiliate_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("list affiliations: %w", err)
	}
	defer rows.Close()

	var out []domain.Affiliation
	for rows.Next() {
		a, err := scanAffiliation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan affiliation: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate affiliations: %w", err)
	}
	return out, nil
}

func feeColumns(fee *domain.Money) (*decimal.Decimal, *string) {
	if fee == nil {
		return nil, nil
	}
	d := fee.Decimal()
	c := fee.Currency()
	return &d, &c
}

func scanAffiliation(row pgx.Row) (*domain.Affiliation, error) {
	a := &domain.Affiliation{}
	var (
		fee         *decimal.Decimal
		feeCurrency *string
	)
	err := row.Scan(
		&a.ID, &a.AffiliateID, &a.ReferredUserID, &a.ApprovalStatus,
		&fee, &feeCurrency, &a.ApprovedAt, &a.ApprovalTransactionID, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if fee != nil && feeCurrency != nil {
		money, err := domain.NewMoneyFromDecimal(*fee, *feeCurrency)
		if err != nil {
			return nil, err
		}
		a.ApprovalFee = &money
	}
	return a, nil
}
