package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// pgUniqueViolation is the SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

// LedgerServiceImpl implements ports.LedgerService. It is the single
// write path to wallet balances: every balance mutation runs through
// Execute, inside one database transaction covering the wallet rows,
// the journal entry and the idempotency record.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	transactor ports.DBTransactor
	publisher  ports.EventPublisher
	metrics    *metrics.Collector
	currency   string
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl. currency is the
// platform currency applied when a request does not name one.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	collector *metrics.Collector,
	currency string,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		transactor: transactor,
		publisher:  publisher,
		metrics:    collector,
		currency:   currency,
		log:        log,
	}
}

// Execute runs one atomic balance movement with pessimistic locking.
//
// Idempotency is checked in two layers: Redis first (fast path, advisory),
// then the database record (authoritative). A concurrent duplicate that
// loses the race on the unique idempotency key re-reads and returns the
// winner's result, so callers observe exactly one journal entry per key.
func (s *LedgerServiceImpl) Execute(ctx context.Context, req ports.ExecuteRequest) (*ports.LedgerResult, error) {
	txType, err := classify(req)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount("must be positive")
	}
	if req.IdempotencyKey == "" {
		return nil, apperror.Validation("idempotency_key is required")
	}

	start := time.Now()

	// Layer 1: Redis idempotency check
	cached, err := s.idempCache.Get(ctx, req.IdempotencyKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", req.IdempotencyKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		s.metrics.RecordIdempotentReplay()
		return unmarshalLedgerResult(cached)
	}

	// Layer 2: DB idempotency check
	rec, err := s.idempRepo.Get(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if rec != nil {
		s.metrics.RecordIdempotentReplay()
		return unmarshalLedgerResult(rec.ResponseJSON)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock wallets in ascending id order so two concurrent transfers over
	// the same pair never deadlock.
	var source, destination *domain.Wallet
	for _, id := range lockOrder(req.SourceWalletID, req.DestinationWalletID) {
		w, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, apperror.ErrLockTimeout(fmt.Errorf("lock wallet %s: %w", id, err))
		}
		if w == nil {
			return nil, apperror.ErrWalletNotFound()
		}
		switch {
		case req.SourceWalletID != nil && id == *req.SourceWalletID:
			source = w
		default:
			destination = w
		}
	}

	var result ports.LedgerResult
	if source != nil {
		prev := source.Balance
		if err := source.Debit(req.Amount); err != nil {
			s.metrics.RecordTransfer(string(txType), time.Since(start), false)
			return nil, err
		}
		result.Source = &ports.WalletBalanceChange{Wallet: source, PreviousBalance: prev, NewBalance: source.Balance}
	}
	if destination != nil {
		prev := destination.Balance
		if err := destination.Credit(req.Amount); err != nil {
			s.metrics.RecordTransfer(string(txType), time.Since(start), false)
			return nil, err
		}
		result.Destination = &ports.WalletBalanceChange{Wallet: destination, PreviousBalance: prev, NewBalance: destination.Balance}
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:                  uuid.New(),
		Type:                txType,
		Amount:              req.Amount,
		SourceWalletID:      req.SourceWalletID,
		DestinationWalletID: req.DestinationWalletID,
		RelatedEntityType:   req.RelatedEntityType,
		RelatedEntityID:     req.RelatedEntityID,
		IdempotencyKey:      req.IdempotencyKey,
		Description:         req.Description,
		Metadata:            req.Metadata,
		CreatedAt:           now,
	}
	result.Transaction = txn

	if source != nil {
		if err := s.walletRepo.UpdateBalance(ctx, dbTx, source.ID, source.Balance); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update source balance: %w", err))
		}
	}
	if destination != nil {
		if err := s.walletRepo.UpdateBalance(ctx, dbTx, destination.ID, destination.Balance); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update destination balance: %w", err))
		}
	}

	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		if isUniqueViolation(err) {
			return s.replayWinner(ctx, dbTx, req.IdempotencyKey)
		}
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	respJSON, err := json.Marshal(&result)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	idempRec := &domain.IdempotencyRecord{
		Key:           req.IdempotencyKey,
		TransactionID: txn.ID,
		ResponseJSON:  respJSON,
		CreatedAt:     now,
	}
	if err := s.idempRepo.Create(ctx, dbTx, idempRec); err != nil {
		if isUniqueViolation(err) {
			return s.replayWinner(ctx, dbTx, req.IdempotencyKey)
		}
		return nil, apperror.InternalError(fmt.Errorf("save idempotency record: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Post-commit: cache and event publishing are best-effort.
	if err := s.idempCache.Set(ctx, req.IdempotencyKey, respJSON, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", req.IdempotencyKey).Msg("failed to cache idempotency in redis")
	}
	if s.publisher != nil {
		if err := s.publisher.PublishTransactionRecorded(ctx, txn); err != nil {
			s.log.Warn().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to publish transaction event")
		}
	}

	s.metrics.RecordTransfer(string(txType), time.Since(start), true)
	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("type", string(txType)).
		Str("amount", req.Amount.String()).
		Str("key", req.IdempotencyKey).
		Msg("ledger entry recorded")

	return &result, nil
}

// DebitWallet resolves the user's wallet and debits it.
func (s *LedgerServiceImpl) DebitWallet(ctx context.Context, req ports.DebitWalletRequest) (*ports.LedgerResult, error) {
	wallet, amount, err := s.resolve(ctx, req.UserID, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, ports.ExecuteRequest{
		SourceWalletID:    &wallet.ID,
		Amount:            amount,
		IdempotencyKey:    orRandomKey(req.IdempotencyKey),
		RelatedEntityType: domain.RelatedEntityManual,
		Description:       req.Description,
	})
}

// CreditWallet resolves the user's wallet and credits it.
func (s *LedgerServiceImpl) CreditWallet(ctx context.Context, req ports.CreditWalletRequest) (*ports.LedgerResult, error) {
	wallet, amount, err := s.resolve(ctx, req.UserID, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, ports.ExecuteRequest{
		DestinationWalletID: &wallet.ID,
		Amount:              amount,
		IdempotencyKey:      orRandomKey(req.IdempotencyKey),
		RelatedEntityType:   domain.RelatedEntityManual,
		Description:         req.Description,
		Metadata:            req.Metadata,
	})
}

// Transfer moves funds between two users' wallets.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.LedgerResult, error) {
	if req.SourceUserID == req.DestinationUserID {
		return nil, apperror.Validation("source and destination must differ")
	}
	src, amount, err := s.resolve(ctx, req.SourceUserID, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	dst, err := s.walletRepo.GetByOwnerID(ctx, req.DestinationUserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get destination wallet: %w", err))
	}
	if dst == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	entityType := req.RelatedEntityType
	if entityType == "" {
		entityType = domain.RelatedEntityManual
	}
	return s.Execute(ctx, ports.ExecuteRequest{
		SourceWalletID:      &src.ID,
		DestinationWalletID: &dst.ID,
		Amount:              amount,
		IdempotencyKey:      orRandomKey(req.IdempotencyKey),
		RelatedEntityType:   entityType,
		RelatedEntityID:     req.RelatedEntityID,
		Description:         req.Description,
		Metadata:            req.Metadata,
	})
}

// resolve looks up the user's wallet and parses the amount in the wallet's
// currency. An explicit currency that differs from the wallet's is rejected
// here rather than deep inside the executor.
func (s *LedgerServiceImpl) resolve(ctx context.Context, userID uuid.UUID, amount, currency string) (*domain.Wallet, domain.Money, error) {
	wallet, err := s.walletRepo.GetByOwnerID(ctx, userID)
	if err != nil {
		return nil, domain.Money{}, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, domain.Money{}, apperror.ErrWalletNotFound()
	}
	if currency == "" {
		currency = s.currency
	}
	if currency != wallet.Balance.Currency() {
		return nil, domain.Money{}, apperror.ErrCurrencyMismatch(wallet.Balance.Currency(), currency)
	}
	m, err := domain.NewMoney(amount, currency)
	if err != nil {
		return nil, domain.Money{}, err
	}
	return wallet, m, nil
}

// replayWinner handles losing the idempotency race: the in-flight
// transaction is rolled back and the winner's committed record is returned.
func (s *LedgerServiceImpl) replayWinner(ctx context.Context, dbTx pgx.Tx, key string) (*ports.LedgerResult, error) {
	_ = dbTx.Rollback(ctx)
	rec, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("read winning idempotency record: %w", err))
	}
	if rec == nil {
		// The winner committed the journal row but we cannot see its
		// record yet. Surface a retryable error instead of guessing.
		return nil, apperror.InternalError(fmt.Errorf("idempotency key %s taken but record not visible", key))
	}
	s.metrics.RecordIdempotentReplay()
	s.log.Info().Str("key", key).Msg("duplicate in flight, returning winner result")
	return unmarshalLedgerResult(rec.ResponseJSON)
}

func classify(req ports.ExecuteRequest) (domain.TransactionType, error) {
	switch {
	case req.SourceWalletID != nil && req.DestinationWalletID != nil:
		if *req.SourceWalletID == *req.DestinationWalletID {
			return "", apperror.Validation("source and destination must differ")
		}
		return domain.TransactionTypeTransfer, nil
	case req.SourceWalletID != nil:
		return domain.TransactionTypeDebit, nil
	case req.DestinationWalletID != nil:
		return domain.TransactionTypeCredit, nil
	default:
		return "", apperror.Validation("at least one wallet is required")
	}
}

// lockOrder returns the wallet ids to lock, ascending by id bytes.
func lockOrder(a, b *uuid.UUID) []uuid.UUID {
	switch {
	case a == nil:
		return []uuid.UUID{*b}
	case b == nil:
		return []uuid.UUID{*a}
	case bytes.Compare(a[:], b[:]) <= 0:
		return []uuid.UUID{*a, *b}
	default:
		return []uuid.UUID{*b, *a}
	}
}

func orRandomKey(key string) string {
	if key != "" {
		return key
	}
	return "adhoc:" + uuid.NewString()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func unmarshalLedgerResult(data []byte) (*ports.LedgerResult, error) {
	var result ports.LedgerResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached result: %w", err))
	}
	return &result, nil
}
