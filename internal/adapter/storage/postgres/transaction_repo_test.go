package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(t *testing.T) *domain.Transaction {
	t.Helper()
	amount, err := domain.NewMoney("25.50", "USD")
	require.NoError(t, err)
	src := uuid.New()
	dst := uuid.New()
	return &domain.Transaction{
		ID:                  uuid.New(),
		Type:                domain.TransactionTypeTransfer,
		Amount:              amount,
		SourceWalletID:      &src,
		DestinationWalletID: &dst,
		RelatedEntityType:   domain.RelatedEntityRecharge,
		RelatedEntityID:     uuid.NewString(),
		IdempotencyKey:      "recharge:" + uuid.NewString(),
		Description:         "recharge approval",
		CreatedAt:           time.Now().UTC().Truncate(time.Microsecond),
	}
}

func transactionTestColumns() []string {
	return []string{
		"id", "type", "amount", "currency", "source_wallet_id", "destination_wallet_id",
		"related_entity_type", "related_entity_id", "idempotency_key", "description",
		"metadata", "created_at",
	}
}

func transactionRow(t *testing.T, txn *domain.Transaction) *pgxmock.Rows {
	t.Helper()
	var metadata []byte
	if txn.Metadata != nil {
		var err error
		metadata, err = json.Marshal(txn.Metadata)
		require.NoError(t, err)
	}
	return pgxmock.NewRows(transactionTestColumns()).AddRow(
		txn.ID, txn.Type, txn.Amount.Decimal(), txn.Amount.Currency(),
		txn.SourceWalletID, txn.DestinationWalletID,
		txn.RelatedEntityType, txn.RelatedEntityID,
		txn.IdempotencyKey, txn.Description, metadata, txn.CreatedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(t)
	txn.Metadata = &domain.TransactionMetadata{ExternalTransactionID: "ext-123"}
	metadata, err := json.Marshal(txn.Metadata)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.Type, txn.Amount.Decimal(), txn.Amount.Currency(),
			txn.SourceWalletID, txn.DestinationWalletID,
			txn.RelatedEntityType, txn.RelatedEntityID,
			txn.IdempotencyKey, txn.Description, metadata, txn.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(t)
	pct := 50
	txn.Metadata = &domain.TransactionMetadata{RefundPercentage: &pct, Reason: "partial refund"}

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE idempotency_key").
		WithArgs(txn.IdempotencyKey).
		WillReturnRows(transactionRow(t, txn))

	result, err := repo.GetByIdempotencyKey(context.Background(), txn.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.Equal(t, "25.5000", result.Amount.String())
	require.NotNil(t, result.Metadata)
	require.NotNil(t, result.Metadata.RefundPercentage)
	assert.Equal(t, 50, *result.Metadata.RefundPercentage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByIdempotencyKey_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE idempotency_key").
		WithArgs("recharge:missing").
		WillReturnRows(pgxmock.NewRows(transactionTestColumns()))

	result, err := repo.GetByIdempotencyKey(context.Background(), "recharge:missing")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	txn := newTestTransaction(t)
	txn.SourceWalletID = &walletID

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM transactions`).
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE .+ ORDER BY created_at DESC").
		WithArgs(walletID, 20, 0).
		WillReturnRows(transactionRow(t, txn))

	txns, total, err := repo.ListByWallet(context.Background(), ports.TransactionListParams{
		WalletID: walletID,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, txns, 1)
	assert.Equal(t, txn.ID, txns[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByWallet_TypeFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	txType := domain.TransactionTypeCredit

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM transactions`).
		WithArgs(walletID, txType).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE .+ ORDER BY created_at DESC").
		WithArgs(walletID, txType, 20, 0).
		WillReturnRows(pgxmock.NewRows(transactionTestColumns()))

	txns, total, err := repo.ListByWallet(context.Background(), ports.TransactionListParams{
		WalletID: walletID,
		Type:     &txType,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, txns)
	assert.NoError(t, mock.ExpectationsWereMet())
}
