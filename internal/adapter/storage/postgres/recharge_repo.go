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

// RechargeRepo implements ports.RechargeRepository.
type RechargeRepo struct {
	pool Pool
}

// NewRechargeRepo creates a new RechargeRepo.
func NewRechargeRepo(pool Pool) *RechargeRepo {
	return &RechargeRepo{pool: pool}
}

const rechargeColumns = `id, wallet_id, amount, currency, payment_method, status,
		external_transaction_id, voucher_reference, rejection_reason, requested_at, completed_at`

// Create inserts a pending recharge request.
func (r *RechargeRepo) Create(ctx context.Context, rec *domain.Recharge) error {
	query := `INSERT INTO recharges (` + rechargeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.WalletID, rec.Amount.Decimal(), rec.Amount.Currency(),
		rec.PaymentMethod, rec.Status, rec.ExternalTransactionID,
		rec.VoucherReference, rec.RejectionReason, rec.RequestedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recharge: %w", err)
	}
	return nil
}

// GetByID fetches a recharge by id.
func (r *RechargeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recharge, error) {
	query := `SELECT ` + rechargeColumns + ` FROM recharges WHERE id = $1`
	rec, err := scanRecharge(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get recharge by id: %w", err)
	}
	return rec, nil
}

// Update persists a recharge's mutable review fields.
func (r *RechargeRepo) Update(ctx context.Context, rec *domain.Recharge) error {
	query := `UPDATE recharges SET status = $1, external_transaction_id = $2,
		rejection_reason = $3, completed_at = $4 WHERE id = $5`

	tag, err := r.pool.Exec(ctx, query,
		rec.Status, rec.ExternalTransactionID, rec.RejectionReason, rec.CompletedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update recharge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recharge not found: %s", rec.ID)
	}
	return nil
}

// ListByWallet returns the wallet's recharge requests, newest first.
func (r *RechargeRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Recharge, error) {
	query := `SELECT ` + rechargeColumns + ` FROM recharges
		WHERE wallet_id = $1 ORDER BY requested_at DESC`

	rows, err := r.pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("list recharges: %w", err)
	}
	defer rows.Close()

	var out []domain.Recharge
	for rows.Next() {
		rec, err := scanRecharge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recharge: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recharges: %w", err)
	}
	return out, nil
}

func scanRecharge(row pgx.Row) (*domain.Recharge, error) {
	rec := &domain.Recharge{}
	var (
		amount   decimal.Decimal
		currency string
	)
	err := row.Scan(
		&rec.ID, &rec.WalletID, &amount, &currency,
		&rec.PaymentMethod, &rec.Status, &rec.ExternalTransactionID,
		&rec.VoucherReference, &rec.RejectionReason, &rec.RequestedAt, &rec.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	money, err := domain.NewMoneyFromDecimal(amount, currency)
	if err != nil {
		return nil, err
	}
	rec.Amount = money
	return rec, nil
}
