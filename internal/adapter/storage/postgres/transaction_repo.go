package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository. The journal is
// append-only: rows are inserted once and never updated or deleted, and the
// idempotency key carries a unique constraint.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, type, amount, currency, source_wallet_id, destination_wallet_id,
		related_entity_type, related_entity_id, idempotency_key, description, metadata, created_at`

// Create appends a journal entry inside the given transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	var metadata []byte
	if txn.Metadata != nil {
		var err error
		metadata, err = json.Marshal(txn.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	_, err := tx.Exec(ctx, query,
		txn.ID, txn.Type, txn.Amount.Decimal(), txn.Amount.Currency(),
		txn.SourceWalletID, txn.DestinationWalletID,
		txn.RelatedEntityType, txn.RelatedEntityID,
		txn.IdempotencyKey, txn.Description, metadata, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a journal entry by id.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, id), "get transaction by id")
}

// GetByIdempotencyKey fetches the journal entry recorded under a key.
func (r *TransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, key), "get transaction by key")
}

// ListByWallet pages through entries touching a wallet, newest first,
// optionally filtered by type and time range.
func (r *TransactionRepo) ListByWallet(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	conds := []string{"(source_wallet_id = $1 OR destination_wallet_id = $1)"}
	args := []any{params.WalletID}

	if params.Type != nil {
		args = append(args, *params.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if params.From != nil {
		args = append(args, *params.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if params.To != nil {
		args = append(args, *params.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM transactions WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransactionRow(rows)
		if err != nil {
			return nil, 0, err
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, total, nil
}

func scanTransaction(row pgx.Row, op string) (*domain.Transaction, error) {
	txn, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return txn, nil
}

func scanTransactionRow(row pgx.Row) (*domain.Transaction, error) {
	txn := &domain.Transaction{}
	var (
		amount   decimal.Decimal
		currency string
		metadata []byte
	)
	err := row.Scan(
		&txn.ID, &txn.Type, &amount, &currency,
		&txn.SourceWalletID, &txn.DestinationWalletID,
		&txn.RelatedEntityType, &txn.RelatedEntityID,
		&txn.IdempotencyKey, &txn.Description, &metadata, &txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	money, err := domain.NewMoneyFromDecimal(amount, currency)
	if err != nil {
		return nil, fmt.Errorf("scan transaction amount: %w", err)
	}
	txn.Amount = money
	if len(metadata) > 0 {
		txn.Metadata = &domain.TransactionMetadata{}
		if err := json.Unmarshal(metadata, txn.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal transaction metadata: %w", err)
		}
	}
	return txn, nil
}
