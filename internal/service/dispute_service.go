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

// DisputeServiceImpl implements ports.DisputeService.
//
// Assignment goes through a conditional claim in the repository so exactly
// one of several concurrent conciliators wins a pending dispute. Resolution
// that moves funds runs the refund through the ledger before persisting the
// verdict; the dispute's deterministic idempotency key makes the refund
// single-shot across retries.
type DisputeServiceImpl struct {
	disputeRepo  ports.DisputeRepository
	purchaseRepo ports.PurchaseRepository
	userRepo     ports.UserRepository
	walletRepo   ports.WalletRepository
	ledger       ports.LedgerService
	log          zerolog.Logger
}

// NewDisputeService creates a new DisputeServiceImpl.
func NewDisputeService(
	disputeRepo ports.DisputeRepository,
	purchaseRepo ports.PurchaseRepository,
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	ledger ports.LedgerService,
	log zerolog.Logger,
) *DisputeServiceImpl {
	return &DisputeServiceImpl{
		disputeRepo:  disputeRepo,
		purchaseRepo: purchaseRepo,
		userRepo:     userRepo,
		walletRepo:   walletRepo,
		ledger:       ledger,
		log:          log,
	}
}

// Open raises a dispute over a completed purchase and marks the purchase
// disputed.
func (s *DisputeServiceImpl) Open(ctx context.Context, purchaseID uuid.UUID, openedBy domain.DisputeOpener) (*domain.Dispute, error) {
	purchase, err := s.purchaseRepo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get purchase: %w", err))
	}
	if purchase == nil {
		return nil, apperror.ErrNotFound("purchase")
	}
	if purchase.Status == domain.PurchaseStatusDisputed {
		return nil, apperror.ErrInvalidState("purchase is already disputed")
	}

	dispute := domain.NewDispute(purchaseID, openedBy)
	if err := s.disputeRepo.Create(ctx, dispute); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create dispute: %w", err))
	}
	if err := s.purchaseRepo.UpdateStatus(ctx, purchaseID, domain.PurchaseStatusDisputed); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark purchase disputed: %w", err))
	}

	s.log.Info().
		Str("dispute_id", dispute.ID.String()).
		Str("purchase_id", purchaseID.String()).
		Str("opened_by", string(openedBy)).
		Msg("dispute opened")

	return dispute, nil
}

// Assign claims a pending dispute for a conciliator. When several
// conciliators race for the same dispute exactly one claim succeeds.
func (s *DisputeServiceImpl) Assign(ctx context.Context, disputeID, conciliatorID uuid.UUID) (*domain.Dispute, error) {
	if err := s.requireConciliator(ctx, conciliatorID); err != nil {
		return nil, err
	}

	claimed, err := s.disputeRepo.ClaimPending(ctx, disputeID, conciliatorID, time.Now().UTC())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("claim dispute: %w", err))
	}
	if !claimed {
		dispute, err := s.getDispute(ctx, disputeID)
		if err != nil {
			return nil, err
		}
		return nil, apperror.ErrInvalidState(fmt.Sprintf("dispute is %s, not pending", dispute.Status))
	}

	s.log.Info().
		Str("dispute_id", disputeID.String()).
		Str("conciliator_id", conciliatorID.String()).
		Msg("dispute assigned")

	return s.getDispute(ctx, disputeID)
}

// Reassign moves an unresolved dispute to another conciliator.
func (s *DisputeServiceImpl) Reassign(ctx context.Context, disputeID, conciliatorID uuid.UUID) (*domain.Dispute, error) {
	if err := s.requireConciliator(ctx, conciliatorID); err != nil {
		return nil, err
	}
	dispute, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := dispute.Reassign(conciliatorID, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.disputeRepo.Update(ctx, dispute); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update dispute: %w", err))
	}

	s.log.Info().
		Str("dispute_id", disputeID.String()).
		Str("conciliator_id", conciliatorID.String()).
		Msg("dispute reassigned")

	return dispute, nil
}

// Resolve records the conciliator's verdict. Refund resolutions move funds
// from the provider back to the seller before the verdict is persisted.
func (s *DisputeServiceImpl) Resolve(ctx context.Context, req ports.ResolveDisputeRequest) (*ports.DisputeResolutionResult, error) {
	dispute, err := s.getDispute(ctx, req.DisputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status == domain.DisputeStatusResolved {
		return nil, apperror.ErrDuplicateResolution()
	}
	if dispute.AssignedConciliatorID == nil || *dispute.AssignedConciliatorID != req.ConciliatorID {
		return nil, apperror.ErrForbidden()
	}

	// Validates state, explanation length and refund percentage. The
	// mutation is in memory only until Update below succeeds.
	if err := dispute.Resolve(req.ResolutionType, req.Explanation, req.RefundPercentage, time.Now().UTC()); err != nil {
		return nil, err
	}

	var ledgerResult *ports.LedgerResult
	if req.ResolutionType.MovesFunds() {
		ledgerResult, err = s.executeRefund(ctx, dispute, req)
		if err != nil {
			return nil, err
		}
	}

	if err := s.disputeRepo.Update(ctx, dispute); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update dispute: %w", err))
	}

	event := s.log.Info().
		Str("dispute_id", dispute.ID.String()).
		Str("resolution", string(req.ResolutionType))
	if ledgerResult != nil {
		event = event.Str("tx_id", ledgerResult.Transaction.ID.String())
	}
	event.Msg("dispute resolved")

	return &ports.DisputeResolutionResult{Dispute: dispute, Ledger: ledgerResult}, nil
}

// GetByID returns a dispute by id.
func (s *DisputeServiceImpl) GetByID(ctx context.Context, disputeID uuid.UUID) (*domain.Dispute, error) {
	return s.getDispute(ctx, disputeID)
}

// executeRefund moves the refundable share of the purchase amount from the
// provider's wallet back to the seller's.
func (s *DisputeServiceImpl) executeRefund(ctx context.Context, dispute *domain.Dispute, req ports.ResolveDisputeRequest) (*ports.LedgerResult, error) {
	purchase, err := s.purchaseRepo.GetByID(ctx, dispute.PurchaseID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get purchase: %w", err))
	}
	if purchase == nil {
		return nil, apperror.ErrNotFound("purchase")
	}

	amount := purchase.Amount
	if req.ResolutionType == domain.ResolutionPartialRefund {
		amount, err = purchase.Amount.Percent(*req.RefundPercentage)
		if err != nil {
			return nil, err
		}
	}

	providerWallet, err := s.walletRepo.GetByOwnerID(ctx, purchase.ProviderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get provider wallet: %w", err))
	}
	if providerWallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	sellerWallet, err := s.walletRepo.GetByOwnerID(ctx, purchase.SellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get seller wallet: %w", err))
	}
	if sellerWallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	return s.ledger.Execute(ctx, ports.ExecuteRequest{
		SourceWalletID:      &providerWallet.ID,
		DestinationWalletID: &sellerWallet.ID,
		Amount:              amount,
		IdempotencyKey:      domain.DisputeIdempotencyKey(dispute.ID),
		RelatedEntityType:   domain.RelatedEntityDispute,
		RelatedEntityID:     dispute.ID.String(),
		Description:         "dispute refund",
		Metadata: &domain.TransactionMetadata{
			RefundPercentage: req.RefundPercentage,
			Reason:           req.Explanation,
		},
	})
}

func (s *DisputeServiceImpl) getDispute(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	dispute, err := s.disputeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get dispute: %w", err))
	}
	if dispute == nil {
		return nil, apperror.ErrNotFound("dispute")
	}
	return dispute, nil
}

func (s *DisputeServiceImpl) requireConciliator(ctx context.Context, userID uuid.UUID) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return apperror.ErrNotFound("user")
	}
	if !user.IsConciliator() {
		return apperror.ErrForbidden()
	}
	return nil
}
