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

// AffiliationServiceImpl implements ports.AffiliationService.
//
// Approving a referral charges the platform's configured fee from the
// affiliate's wallet into the admin wallet. The charge runs through the
// ledger with the affiliation's deterministic idempotency key, so the fee
// is collected at most once no matter how often approval is retried.
type AffiliationServiceImpl struct {
	affRepo       ports.AffiliationRepository
	feeRepo       ports.FeeConfigRepository
	userRepo      ports.UserRepository
	walletRepo    ports.WalletRepository
	ledger        ports.LedgerService
	adminWalletID uuid.UUID
	log           zerolog.Logger
}

// NewAffiliationService creates a new AffiliationServiceImpl.
// adminWalletID comes from configuration and receives collected fees.
func NewAffiliationService(
	affRepo ports.AffiliationRepository,
	feeRepo ports.FeeConfigRepository,
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	ledger ports.LedgerService,
	adminWalletID uuid.UUID,
	log zerolog.Logger,
) *AffiliationServiceImpl {
	return &AffiliationServiceImpl{
		affRepo:       affRepo,
		feeRepo:       feeRepo,
		userRepo:      userRepo,
		walletRepo:    walletRepo,
		ledger:        ledger,
		adminWalletID: adminWalletID,
		log:           log,
	}
}

// Create records a pending referral of referredUserID by affiliateID.
func (s *AffiliationServiceImpl) Create(ctx context.Context, affiliateID, referredUserID uuid.UUID) (*domain.Affiliation, error) {
	if affiliateID == referredUserID {
		return nil, apperror.Validation("users cannot refer themselves")
	}
	affiliate, err := s.userRepo.GetByID(ctx, affiliateID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get affiliate: %w", err))
	}
	if affiliate == nil {
		return nil, apperror.ErrNotFound("affiliate")
	}

	affiliation := domain.NewAffiliation(affiliateID, referredUserID)
	if err := s.affRepo.Create(ctx, affiliation); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create affiliation: %w", err))
	}

	s.log.Info().
		Str("affiliation_id", affiliation.ID.String()).
		Str("affiliate_id", affiliateID.String()).
		Msg("affiliation created")

	return affiliation, nil
}

// Approve charges the referral fee from the affiliate to the admin wallet
// and stamps the affiliation approved. Only the owning affiliate may
// approve; a second approval fails with a state conflict.
func (s *AffiliationServiceImpl) Approve(ctx context.Context, affiliationID, actorUserID uuid.UUID) (*ports.AffiliationApprovalResult, error) {
	affiliation, err := s.affRepo.GetByID(ctx, affiliationID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get affiliation: %w", err))
	}
	if affiliation == nil {
		return nil, apperror.ErrNotFound("affiliation")
	}
	if affiliation.AffiliateID != actorUserID {
		return nil, apperror.ErrForbidden()
	}
	if affiliation.ApprovalStatus != domain.ApprovalStatusPending {
		return nil, apperror.ErrInvalidState("affiliation is not pending")
	}

	feeConfig, err := s.feeRepo.GetActive(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get fee config: %w", err))
	}
	if feeConfig == nil {
		return nil, apperror.ErrConfigurationMissing("referral fee")
	}
	if s.adminWalletID == uuid.Nil {
		return nil, apperror.ErrAdminWalletMissing()
	}
	adminWallet, err := s.walletRepo.GetByID(ctx, s.adminWalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get admin wallet: %w", err))
	}
	if adminWallet == nil {
		return nil, apperror.ErrAdminWalletMissing()
	}

	affiliateWallet, err := s.walletRepo.GetByOwnerID(ctx, affiliation.AffiliateID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get affiliate wallet: %w", err))
	}
	if affiliateWallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	// Fail fast on an obviously short balance. The executor re-checks
	// under the row lock; this check only avoids lock churn.
	short, err := affiliateWallet.Balance.LessThan(feeConfig.Fee)
	if err != nil {
		return nil, err
	}
	if short {
		return nil, apperror.ErrInsufficientBalance(feeConfig.Fee.String(), affiliateWallet.Balance.String())
	}

	result, err := s.ledger.Execute(ctx, ports.ExecuteRequest{
		SourceWalletID:      &affiliateWallet.ID,
		DestinationWalletID: &s.adminWalletID,
		Amount:              feeConfig.Fee,
		IdempotencyKey:      domain.AffiliationIdempotencyKey(affiliation.ID),
		RelatedEntityType:   domain.RelatedEntityAffiliation,
		RelatedEntityID:     affiliation.ID.String(),
		Description:         "referral approval fee",
	})
	if err != nil {
		return nil, err
	}

	if err := affiliation.Approve(feeConfig.Fee, result.Transaction.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.affRepo.Update(ctx, affiliation); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update affiliation: %w", err))
	}

	s.log.Info().
		Str("affiliation_id", affiliation.ID.String()).
		Str("tx_id", result.Transaction.ID.String()).
		Str("fee", feeConfig.Fee.String()).
		Msg("affiliation approved")

	out := &ports.AffiliationApprovalResult{
		Affiliation: affiliation,
		Transaction: result.Transaction,
	}
	if result.Source != nil {
		out.AffiliateWallet = result.Source.Wallet
	}
	if result.Destination != nil {
		out.AdminWallet = result.Destination.Wallet
	}
	return out, nil
}

// GetByID returns an affiliation by id.
func (s *AffiliationServiceImpl) GetByID(ctx context.Context, affiliationID uuid.UUID) (*domain.Affiliation, error) {
	affiliation, err := s.affRepo.GetByID(ctx, affiliationID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get affiliation: %w", err))
	}
	if affiliation == nil {
		return nil, apperror.ErrNotFound("affiliation")
	}
	return affiliation, nil
}
