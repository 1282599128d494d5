package ports

import (
	"context"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// --- Transfer Executor ---

// ExecuteRequest is the wallet-addressed input to the transfer executor.
// Exactly one of the following shapes is valid:
//   - source only:              debit
//   - destination only:         credit
//   - source and destination:   transfer
type ExecuteRequest struct {
	SourceWalletID      *uuid.UUID
	DestinationWalletID *uuid.UUID
	Amount              domain.Money
	IdempotencyKey      string
	RelatedEntityType   domain.RelatedEntityType
	RelatedEntityID     string
	Description         string
	Metadata            *domain.TransactionMetadata
}

// WalletBalanceChange reports one wallet's balance before and after an
// executor run.
type WalletBalanceChange struct {
	Wallet          *domain.Wallet `json:"wallet"`
	PreviousBalance domain.Money   `json:"previous_balance"`
	NewBalance      domain.Money   `json:"new_balance"`
}

// LedgerResult is the outcome of one executor invocation. It is cached
// verbatim under the idempotency key, so a retried request observes the
// original balances, not the current ones.
type LedgerResult struct {
	Transaction *domain.Transaction  `json:"transaction"`
	Source      *WalletBalanceChange `json:"source,omitempty"`
	Destination *WalletBalanceChange `json:"destination,omitempty"`
}

// DebitWalletRequest debits a user's wallet. Amount is a decimal string.
// Currency, when set, must match the wallet's; an empty IdempotencyKey is
// replaced with a random one (single attempt, no retry protection).
type DebitWalletRequest struct {
	UserID         uuid.UUID
	Amount         string
	Currency       string
	Description    string
	IdempotencyKey string
}

// CreditWalletRequest credits a user's wallet.
type CreditWalletRequest struct {
	UserID         uuid.UUID
	Amount         string
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       *domain.TransactionMetadata
}

// TransferRequest moves funds between two users' wallets.
type TransferRequest struct {
	SourceUserID      uuid.UUID
	DestinationUserID uuid.UUID
	Amount            string
	Currency          string
	IdempotencyKey    string
	RelatedEntityType domain.RelatedEntityType
	RelatedEntityID   string
	Description       string
	Metadata          *domain.TransactionMetadata
}

// LedgerService is the only path that mutates wallet balances. Every
// workflow funnels through Execute; the user-addressed operations are
// conveniences for the API layer that resolve wallets and parse amounts
// before delegating to Execute.
type LedgerService interface {
	Execute(ctx context.Context, req ExecuteRequest) (*LedgerResult, error)
	DebitWallet(ctx context.Context, req DebitWalletRequest) (*LedgerResult, error)
	CreditWallet(ctx context.Context, req CreditWalletRequest) (*LedgerResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*LedgerResult, error)
}

// --- Workflows ---

// RechargeService manages the add-funds approval workflow.
type RechargeService interface {
	Request(ctx context.Context, req RechargeRequest) (*domain.Recharge, error)
	Approve(ctx context.Context, rechargeID uuid.UUID, externalTransactionID string) (*RechargeApprovalResult, error)
	Reject(ctx context.Context, rechargeID uuid.UUID, reason string) (*domain.Recharge, error)
	GetByID(ctx context.Context, rechargeID uuid.UUID) (*domain.Recharge, error)
}

// RechargeRequest is a user's claim of deposited funds awaiting review.
type RechargeRequest struct {
	UserID           uuid.UUID
	Amount           string
	Currency         string
	PaymentMethod    string
	VoucherReference *string
}

// RechargeApprovalResult bundles the completed recharge with its ledger effect.
type RechargeApprovalResult struct {
	Recharge *domain.Recharge `json:"recharge"`
	Ledger   *LedgerResult    `json:"ledger"`
}

// AffiliationService manages the referral approval workflow.
type AffiliationService interface {
	Create(ctx context.Context, affiliateID, referredUserID uuid.UUID) (*domain.Affiliation, error)
	Approve(ctx context.Context, affiliationID, actorUserID uuid.UUID) (*AffiliationApprovalResult, error)
	GetByID(ctx context.Context, affiliationID uuid.UUID) (*domain.Affiliation, error)
}

// AffiliationApprovalResult is the outcome of approving a referral.
type AffiliationApprovalResult struct {
	Affiliation     *domain.Affiliation `json:"affiliation"`
	Transaction     *domain.Transaction `json:"transaction"`
	AffiliateWallet *domain.Wallet      `json:"affiliate_wallet"`
	AdminWallet     *domain.Wallet      `json:"admin_wallet"`
}

// DisputeService manages dispute assignment and resolution.
type DisputeService interface {
	Open(ctx context.Context, purchaseID uuid.UUID, openedBy domain.DisputeOpener) (*domain.Dispute, error)
	Assign(ctx context.Context, disputeID, conciliatorID uuid.UUID) (*domain.Dispute, error)
	Reassign(ctx context.Context, disputeID, conciliatorID uuid.UUID) (*domain.Dispute, error)
	Resolve(ctx context.Context, req ResolveDisputeRequest) (*DisputeResolutionResult, error)
	GetByID(ctx context.Context, disputeID uuid.UUID) (*domain.Dispute, error)
}

// ResolveDisputeRequest carries a conciliator's verdict.
type ResolveDisputeRequest struct {
	DisputeID        uuid.UUID
	ConciliatorID    uuid.UUID
	ResolutionType   domain.ResolutionType
	Explanation      string
	RefundPercentage *int
}

// DisputeResolutionResult bundles the resolved dispute with its ledger
// effect; Ledger is nil for resolutions that move no funds.
type DisputeResolutionResult struct {
	Dispute *domain.Dispute `json:"dispute"`
	Ledger  *LedgerResult   `json:"ledger,omitempty"`
}

// --- Wallet lifecycle & reporting ---

// WalletService covers wallet queries and the administrative lifecycle.
type WalletService interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	Freeze(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error)
	Unfreeze(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error)
	Close(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// --- Authentication glue ---

// AuthService registers marketplace participants and issues tokens.
// Registration creates the user's wallet; it is the only place wallets are
// created.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error)
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Username string
	Password string
	Role     domain.Role
	// ReferrerID, when set, records an affiliation for the referring user.
	ReferrerID *uuid.UUID
}

// RegisterResponse holds the created user and wallet.
type RegisterResponse struct {
	User   *domain.User   `json:"user"`
	Wallet *domain.Wallet `json:"wallet"`
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.Role
}

// HashService handles password hashing.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// AuditService records privileged actions. Log is fire-and-forget: it must
// never block or fail the request being audited.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Infrastructure ---

// IdempotencyCache is the fast-path idempotency check in front of the
// authoritative database record.
type IdempotencyCache interface {
	// Get returns the cached response JSON, or nil when absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventPublisher emits ledger events for downstream consumers
// (notifications, analytics). Publishing is best-effort after commit.
type EventPublisher interface {
	PublishTransactionRecorded(ctx context.Context, txn *domain.Transaction) error
}
