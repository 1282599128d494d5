package ports

import (
	"context"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// Create inserts a user inside a transaction so the user and their
	// wallet are persisted as one unit at registration.
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside a transaction and take a row lock;
// the ledger service relies on them for pessimistic concurrency control.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance domain.Money) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, status domain.WalletStatus) error
}

// TransactionRepository defines persistence for the append-only journal.
// Journal rows are immutable: there is no update or delete.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	ListByWallet(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for journal listing.
type TransactionListParams struct {
	WalletID uuid.UUID
	Type     *domain.TransactionType
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// IdempotencyRepository defines persistence for cached executor results.
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
}

// RechargeRepository defines persistence for recharge requests.
type RechargeRepository interface {
	Create(ctx context.Context, r *domain.Recharge) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Recharge, error)
	Update(ctx context.Context, r *domain.Recharge) error
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Recharge, error)
}

// AffiliationRepository defines persistence for referrals.
type AffiliationRepository interface {
	Create(ctx context.Context, a *domain.Affiliation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Affiliation, error)
	Update(ctx context.Context, a *domain.Affiliation) error
	ListByAffiliate(ctx context.Context, affiliateID uuid.UUID) ([]domain.Affiliation, error)
}

// FeeConfigRepository defines persistence for referral fee configuration.
type FeeConfigRepository interface {
	Create(ctx context.Context, cfg *domain.ReferralFeeConfig) error
	// GetActive returns the currently active fee config, or nil when none is.
	GetActive(ctx context.Context) (*domain.ReferralFeeConfig, error)
}

// PurchaseRepository defines persistence for the purchase records the
// dispute workflow resolves against.
type PurchaseRepository interface {
	Create(ctx context.Context, p *domain.Purchase) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Purchase, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PurchaseStatus) error
}

// DisputeRepository defines persistence for disputes.
type DisputeRepository interface {
	Create(ctx context.Context, d *domain.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error)
	// ClaimPending atomically transitions a pending dispute to assigned.
	// Returns false when the dispute was not pending, so exactly one of
	// several concurrent claimants wins.
	ClaimPending(ctx context.Context, disputeID, conciliatorID uuid.UUID, at time.Time) (bool, error)
	Update(ctx context.Context, d *domain.Dispute) error
}

// AuditRepository persists the audit trail. Entries are written outside
// any business transaction: losing one must never fail the action itself.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
