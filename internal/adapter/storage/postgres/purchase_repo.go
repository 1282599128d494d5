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

// PurchaseRepo implements ports.PurchaseRepository.
type PurchaseRepo struct {
	pool Pool
}

// NewPurchaseRepo creates a new PurchaseRepo.
func NewPurchaseRepo(pool Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

// Create inserts a purchase record.
func (r *PurchaseRepo) Create(ctx context.Context, p *domain.Purchase) error {
	query := `INSERT INTO purchases (id, seller_id, provider_id, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.SellerID, p.ProviderID, p.Amount.Decimal(), p.Amount.Currency(),
		p.Status, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// GetByID fetches a purchase by id.
func (r *PurchaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Purchase, error) {
	query := `SELECT id, seller_id, provider_id, amount, currency, status, created_at
		FROM purchases WHERE id = $1`

	p := &domain.Purchase{}
	var (
		amount   decimal.Decimal
		currency string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.SellerID, &p.ProviderID, &amount, &currency, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get purchase by id: %w", err)
	}
	money, err := domain.NewMoneyFromDecimal(amount, currency)
	if err != nil {
		return nil, fmt.Errorf("get purchase by id: %w", err)
	}
	p.Amount = money
	return p, nil
}

// UpdateStatus sets the purchase status.
func (r *PurchaseRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PurchaseStatus) error {
	query := `UPDATE purchases SET status = $1 WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update purchase status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase not found: %s", id)
	}
	return nil
}
