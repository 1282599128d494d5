package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RechargeServiceImpl implements ports.RechargeService.
//
// Approval credits the wallet through the ledger first and updates the
// recharge row second. The ledger call uses the recharge's deterministic
// idempotency key, so a retry after a crash between the two steps replays
// the original credit instead of minting a second one.
type RechargeServiceImpl struct {
	rechargeRepo ports.RechargeRepository
	walletRepo   ports.WalletRepository
	ledger       ports.LedgerService
	currency     string
	log          zerolog.Logger
}

// NewRechargeService creates a new RechargeServiceImpl.
func NewRechargeService(
	rechargeRepo ports.RechargeRepository,
	walletRepo ports.WalletRepository,
	ledger ports.LedgerService,
	currency string,
	log zerolog.Logger,
) *RechargeServiceImpl {
	return &RechargeServiceImpl{
		rechargeRepo: rechargeRepo,
		walletRepo:   walletRepo,
		ledger:       ledger,
		currency:     currency,
		log:          log,
	}
}

// Request records a pending recharge claim against the user's wallet.
func (s *RechargeServiceImpl) Request(ctx context.Context, req ports.RechargeRequest) (*domain.Recharge, error) {
	wallet, err := s.walletRepo.GetByOwnerID(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if err := wallet.StatusError(); err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}
	if currency != wallet.Balance.Currency() {
		return nil, apperror.ErrCurrencyMismatch(wallet.Balance.Currency(), currency)
	}
	amount, err := domain.NewMoney(req.Amount, currency)
	if err != nil {
		return nil, err
	}

	recharge, err := domain.NewRecharge(wallet.ID, amount, req.PaymentMethod, req.VoucherReference)
	if err != nil {
		return nil, err
	}
	if err := s.rechargeRepo.Create(ctx, recharge); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create recharge: %w", err))
	}

	s.log.Info().
		Str("recharge_id", recharge.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("amount", amount.String()).
		Msg("recharge requested")

	return recharge, nil
}

// Approve credits the wallet and marks the recharge completed.
func (s *RechargeServiceImpl) Approve(ctx context.Context, rechargeID uuid.UUID, externalTransactionID string) (*ports.RechargeApprovalResult, error) {
	recharge, err := s.getRecharge(ctx, rechargeID)
	if err != nil {
		return nil, err
	}
	if recharge.Status != domain.RechargeStatusPending {
		return nil, apperror.ErrInvalidState("recharge is not pending")
	}

	// The recharge row flips to completed only after the ledger call, so a
	// retry after a crash between the two steps finds it still pending and
	// the executor replays the original credit under the recharge's key.
	metadata := &domain.TransactionMetadata{ExternalTransactionID: externalTransactionID}
	if recharge.VoucherReference != nil {
		metadata.VoucherReference = *recharge.VoucherReference
	}
	result, err := s.ledger.Execute(ctx, ports.ExecuteRequest{
		DestinationWalletID: &recharge.WalletID,
		Amount:              recharge.Amount,
		IdempotencyKey:      domain.RechargeIdempotencyKey(recharge.ID),
		RelatedEntityType:   domain.RelatedEntityRecharge,
		RelatedEntityID:     recharge.ID.String(),
		Description:         "recharge approval",
		Metadata:            metadata,
	})
	if err != nil {
		return nil, err
	}

	if err := recharge.Approve(externalTransactionID, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.rechargeRepo.Update(ctx, recharge); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update recharge: %w", err))
	}
	s.log.Info().
		Str("recharge_id", recharge.ID.String()).
		Str("tx_id", result.Transaction.ID.String()).
		Msg("recharge approved")

	return &ports.RechargeApprovalResult{Recharge: recharge, Ledger: result}, nil
}

// Reject cancels a pending recharge with a reviewer-supplied reason.
// No ledger entry is written.
func (s *RechargeServiceImpl) Reject(ctx context.Context, rechargeID uuid.UUID, reason string) (*domain.Recharge, error) {
	recharge, err := s.getRecharge(ctx, rechargeID)
	if err != nil {
		return nil, err
	}
	if err := recharge.Reject(reason); err != nil {
		return nil, err
	}
	if err := s.rechargeRepo.Update(ctx, recharge); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update recharge: %w", err))
	}

	s.log.Info().
		Str("recharge_id", recharge.ID.String()).
		Str("reason", reason).
		Msg("recharge rejected")

	return recharge, nil
}

// GetByID returns a recharge by id.
func (s *RechargeServiceImpl) GetByID(ctx context.Context, rechargeID uuid.UUID) (*domain.Recharge, error) {
	return s.getRecharge(ctx, rechargeID)
}

func (s *RechargeServiceImpl) getRecharge(ctx context.Context, id uuid.UUID) (*domain.Recharge, error) {
	recharge, err := s.rechargeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get recharge: %w", err))
	}
	if recharge == nil {
		return nil, apperror.ErrNotFound("recharge")
	}
	return recharge, nil
}
