package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// FeeConfigRepo implements ports.FeeConfigRepository. At most one config is
// active at a time; inserting an active one deactivates the rest.
type FeeConfigRepo struct {
	pool Pool
}

// NewFeeConfigRepo creates a new FeeConfigRepo.
func NewFeeConfigRepo(pool Pool) *FeeConfigRepo {
	return &FeeConfigRepo{pool: pool}
}

// Create inserts a fee config. An active config supersedes all prior ones.
func (r *FeeConfigRepo) Create(ctx context.Context, cfg *domain.ReferralFeeConfig) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if cfg.Active {
		if _, err := tx.Exec(ctx, `UPDATE referral_fee_configs SET active = FALSE WHERE active`); err != nil {
			return fmt.Errorf("deactivate fee configs: %w", err)
		}
	}

	query := `INSERT INTO referral_fee_configs (id, fee, currency, active, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, query,
		cfg.ID, cfg.Fee.Decimal(), cfg.Fee.Currency(), cfg.Active, cfg.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert fee config: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetActive returns the active fee config, or nil when none is configured.
func (r *FeeConfigRepo) GetActive(ctx context.Context) (*domain.ReferralFeeConfig, error) {
	query := `SELECT id, fee, currency, active, created_at
		FROM referral_fee_configs WHERE active LIMIT 1`

	cfg := &domain.ReferralFeeConfig{}
	var (
		fee      decimal.Decimal
		currency string
	)
	err := r.pool.QueryRow(ctx, query).Scan(&cfg.ID, &fee, &currency, &cfg.Active, &cfg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active fee config: %w", err)
	}
	money, err := domain.NewMoneyFromDecimal(fee, currency)
	if err != nil {
		return nil, fmt.Errorf("get active fee config: %w", err)
	}
	cfg.Fee = money
	return cfg, nil
}
