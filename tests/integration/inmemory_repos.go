package integration

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// The in-memory repos mimic the PostgreSQL adapter closely enough to run
// the full service stack: not-found reads return nil, nil; unique key
// collisions return a pgconn.PgError with SQLSTATE 23505; and writes made
// through a pgx.Tx stay invisible until the transaction commits.

// --- In-Memory Transactor ---

// inMemoryTransactor serializes transactions with one global mutex, the
// way row locks serialize them in PostgreSQL. Begin blocks until the
// previous transaction commits or rolls back.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &memTx{mu: &t.mu}, nil
}

// memTx buffers repo writes and applies them on Commit, so a rolled back
// transaction leaves no trace. Commit and Rollback release the transactor
// lock exactly once.
type memTx struct {
	mu     *sync.Mutex
	staged []func()
	done   bool
}

func (t *memTx) stage(fn func()) {
	t.staged = append(t.staged, fn)
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	for _, fn := range t.staged {
		fn()
	}
	t.staged = nil
	t.done = true
	t.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.staged = nil
	t.done = true
	t.mu.Unlock()
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *memTx) Conn() *pgx.Conn                                               { return nil }

// stageOn buffers fn on the transaction when one is in play, otherwise
// applies it immediately.
func stageOn(tx pgx.Tx, fn func()) {
	if mt, ok := tx.(*memTx); ok && mt != nil {
		mt.stage(fn)
		return
	}
	fn()
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, tx pgx.Tx, user *domain.User) error {
	r.mu.RLock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			r.mu.RUnlock()
			return uniqueViolation("users_username_key")
		}
	}
	r.mu.RUnlock()
	cp := *user
	stageOn(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.users[cp.ID] = &cp
	})
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error {
	cp := *wallet
	stageOn(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.wallets[cp.ID] = &cp
	})
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.OwnerID == ownerID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance domain.Money) error {
	stageOn(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if w, ok := r.wallets[walletID]; ok {
			w.Balance = balance
			w.UpdatedAt = time.Now().UTC()
		}
	})
	return nil
}

func (r *inMemoryWalletRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, status domain.WalletStatus) error {
	r.mu.RLock()
	_, ok := r.wallets[walletID]
	r.mu.RUnlock()
	if !ok {
		return pgx.ErrNoRows
	}
	stageOn(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if w, ok := r.wallets[walletID]; ok {
			w.Status = status
			w.UpdatedAt = time.Now().UTC()
		}
	})
	return nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*domain.Transaction
	byKey        map[string]uuid.UUID
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{
		transactions: make(map[uuid.UUID]*domain.Transaction),
		byKey:        make(map[string]uuid.UUID),
	}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	r.mu.RLock()
	_, taken := r.byKey[txn.IdempotencyKey]
	r.mu.RUnlock()
	if taken {
		return uniqueViolation("transactions_idempotency_key_key")
	}
	cp := *txn
	stageOn(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.transactions[cp.ID] = &cp
		r.byKey[cp.IdempotencyKey] = cp.ID
	})
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := *r.transactions[id]
	return &cp, nil
}

func (r *inMemoryTransactionRepo) ListByWallet(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		touches := (t.SourceWalletID != nil && *t.SourceWalletID == params.WalletID) ||
			(t.DestinationWalletID != nil && *t.DestinationWalletID == params.WalletID)
		if !touches {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		if params.From != nil && t.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && t.CreatedAt.After(*params.To) {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// count reports how many journal entries exist, used by concurrency tests
// to assert exactly-once recording.
func (r *inMemoryTransactionRepo) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transactions)
}

// --- In-Memory Idempotency Repo ---

type inMemoryIdempotencyRepo struct {
	mu      sync.RWMutex
	records map[string]*domain.IdempotencyRecord
}

func newInMemoryIdempotencyRepo() *inMemoryIdempotencyRepo {
	return &inMemoryIdempotencyRepo{records: make(map[string]*domain.IdempotencyRecord)}
}

func (r *inMemoryIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	r.mu.RLock()
	_, taken := r.records[rec.Key]
	r.mu.RUnlock()
	if taken {
		return uniqueViolation("idempotency_records_pkey")
	}
	cp := *rec
	stageOn(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.records[cp.Key] = &cp
	})
	return nil
}

func (r *inMemoryIdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// --- In-Memory Recharge Repo ---

type inMemoryRechargeRepo struct {
	mu        sync.RWMutex
	recharges map[uuid.UUID]*domain.Recharge
}

func newInMemoryRechargeRepo() *inMemoryRechargeRepo {
	return &inMemoryRechargeRepo{recharges: make(map[uuid.UUID]*domain.Recharge)}
}

func (r *inMemoryRechargeRepo) Create(ctx context.Context, rec *domain.Recharge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.recharges[cp.ID] = &cp
	return nil
}

func (r *inMemoryRechargeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recharge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recharges[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *inMemoryRechargeRepo) Update(ctx context.Context, rec *domain.Recharge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recharges[rec.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *rec
	r.recharges[cp.ID] = &cp
	return nil
}

func (r *inMemoryRechargeRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Recharge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Recharge
	for _, rec := range r.recharges {
		if rec.WalletID == walletID {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestedAt.After(result[j].RequestedAt) })
	return result, nil
}

// --- In-Memory Affiliation Repo ---

type inMemoryAffiliationRepo struct {
	mu           sync.RWMutex
	affiliations map[uuid.UUID]*domain.Affiliation
}

func newInMemoryAffiliationRepo() *inMemoryAffiliationRepo {
	return &inMemoryAffiliationRepo{affiliations: make(map[uuid.UUID]*domain.Affiliation)}
}

func (r *inMemoryAffiliationRepo) Create(ctx context.Context, a *domain.Affiliation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.affiliations[cp.ID] = &cp
	return nil
}

func (r *inMemoryAffiliationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Affiliation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.affiliations[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAffiliationRepo) Update(ctx context.Context, a *domain.Affiliation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.affiliations[a.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *a
	r.affiliations[cp.ID] = &cp
	return nil
}

func (r *inMemoryAffiliationRepo) ListByAffiliate(ctx context.Context, affiliateID uuid.UUID) ([]domain.Affiliation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Affiliation
	for _, a := range r.affiliations {
		if a.AffiliateID == affiliateID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// --- In-Memory Fee Config Repo ---

type inMemoryFeeConfigRepo struct {
	mu      sync.RWMutex
	configs []*domain.ReferralFeeConfig
}

func newInMemoryFeeConfigRepo() *inMemoryFeeConfigRepo {
	return &inMemoryFeeConfigRepo{}
}

func (r *inMemoryFeeConfigRepo) Create(ctx context.Context, cfg *domain.ReferralFeeConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cfg
	r.configs = append(r.configs, &cp)
	return nil
}

func (r *inMemoryFeeConfigRepo) GetActive(ctx context.Context) (*domain.ReferralFeeConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.configs) - 1; i >= 0; i-- {
		if r.configs[i].Active {
			cp := *r.configs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

// --- In-Memory Purchase Repo ---

type inMemoryPurchaseRepo struct {
	mu        sync.RWMutex
	purchases map[uuid.UUID]*domain.Purchase
}

func newInMemoryPurchaseRepo() *inMemoryPurchaseRepo {
	return &inMemoryPurchaseRepo{purchases: make(map[uuid.UUID]*domain.Purchase)}
}

func (r *inMemoryPurchaseRepo) Create(ctx context.Context, p *domain.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.purchases[cp.ID] = &cp
	return nil
}

func (r *inMemoryPurchaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.purchases[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPurchaseRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PurchaseStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.Status = status
	return nil
}

// --- In-Memory Dispute Repo ---

type inMemoryDisputeRepo struct {
	mu       sync.RWMutex
	disputes map[uuid.UUID]*domain.Dispute
}

func newInMemoryDisputeRepo() *inMemoryDisputeRepo {
	return &inMemoryDisputeRepo{disputes: make(map[uuid.UUID]*domain.Dispute)}
}

func (r *inMemoryDisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.disputes[cp.ID] = &cp
	return nil
}

func (r *inMemoryDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.disputes[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

// ClaimPending mirrors the conditional UPDATE of the PostgreSQL adapter:
// the status check and the assignment happen under one lock, so exactly
// one concurrent claimant wins.
func (r *inMemoryDisputeRepo) ClaimPending(ctx context.Context, disputeID, conciliatorID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[disputeID]
	if !ok || d.Status != domain.DisputeStatusPending {
		return false, nil
	}
	d.Status = domain.DisputeStatusAssigned
	d.AssignedConciliatorID = &conciliatorID
	d.AssignedAt = &at
	return true, nil
}

func (r *inMemoryDisputeRepo) Update(ctx context.Context, d *domain.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.disputes[d.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *d
	r.disputes[cp.ID] = &cp
	return nil
}
