package service

import (
	"context"
	"fmt"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletServiceImpl implements ports.WalletService. Lifecycle transitions
// are validated by the wallet itself; this layer loads the row under a
// lock and persists the new status in the same transaction.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(walletRepo ports.WalletRepository, txRepo ports.TransactionRepository, transactor ports.DBTransactor, log zerolog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{walletRepo: walletRepo, txRepo: txRepo, transactor: transactor, log: log}
}

// GetByUserID returns the user's wallet.
func (s *WalletServiceImpl) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByOwnerID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

// Freeze suspends a wallet.
func (s *WalletServiceImpl) Freeze(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	return s.transition(ctx, walletID, (*domain.Wallet).Freeze, "wallet frozen")
}

// Unfreeze reactivates a frozen wallet.
func (s *WalletServiceImpl) Unfreeze(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	return s.transition(ctx, walletID, (*domain.Wallet).Unfreeze, "wallet unfrozen")
}

// Close permanently closes a wallet. The wallet must hold a zero balance.
func (s *WalletServiceImpl) Close(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	return s.transition(ctx, walletID, (*domain.Wallet).Close, "wallet closed")
}

// ListTransactions pages through the wallet's journal entries.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	txns, total, err := s.txRepo.ListByWallet(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

// transition applies a lifecycle change under the wallet's row lock, so a
// precondition such as a zero balance still holds when the status flips. A
// concurrent ledger movement either commits before the lock is taken and
// fails the precondition here, or blocks until the new status is committed
// and is rejected by its own status check.
func (s *WalletServiceImpl) transition(ctx context.Context, walletID uuid.UUID, apply func(*domain.Wallet) error, logMsg string) (*domain.Wallet, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if err := apply(wallet); err != nil {
		return nil, err
	}
	if err := s.walletRepo.UpdateStatus(ctx, dbTx, walletID, wallet.Status); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update wallet status: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit wallet status: %w", err))
	}

	s.log.Info().Str("wallet_id", walletID.String()).Msg(logMsg)
	return wallet, nil
}
