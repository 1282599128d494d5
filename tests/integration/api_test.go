package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	httpHandler "marketplace-ledger/internal/adapter/http/handler"
	redisStorage "marketplace-ledger/internal/adapter/storage/redis"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/service"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/logger"
	"marketplace-ledger/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds the full application stack with in-memory repos and
// miniredis, exercising the real HTTP layer, middleware, handlers,
// services and Redis stores end-to-end.

type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis

	userRepo     *inMemoryUserRepo
	walletRepo   *inMemoryWalletRepo
	txRepo       *inMemoryTransactionRepo
	idempRepo    *inMemoryIdempotencyRepo
	rechargeRepo *inMemoryRechargeRepo
	affRepo      *inMemoryAffiliationRepo
	feeRepo      *inMemoryFeeConfigRepo
	purchaseRepo *inMemoryPurchaseRepo
	disputeRepo  *inMemoryDisputeRepo
	transactor   *inMemoryTransactor

	ledgerSvc   ports.LedgerService
	walletSvc   ports.WalletService
	rechargeSvc ports.RechargeService
	disputeSvc  ports.DisputeService

	// adminWalletID is the platform wallet that collects referral fees.
	adminWalletID uuid.UUID
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)

	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")

	app := &testApp{
		redis:        mr,
		userRepo:     newInMemoryUserRepo(),
		walletRepo:   newInMemoryWalletRepo(),
		txRepo:       newInMemoryTransactionRepo(),
		idempRepo:    newInMemoryIdempotencyRepo(),
		rechargeRepo: newInMemoryRechargeRepo(),
		affRepo:      newInMemoryAffiliationRepo(),
		feeRepo:      newInMemoryFeeConfigRepo(),
		purchaseRepo: newInMemoryPurchaseRepo(),
		disputeRepo:  newInMemoryDisputeRepo(),
		transactor:   newInMemoryTransactor(),
	}

	// Platform wallet for referral fees, normally provisioned out of band
	// and named in configuration.
	adminWallet := app.seedWallet(t, uuid.New())
	app.adminWalletID = adminWallet.ID

	log := logger.New("error", false)
	collector := metrics.NewCollector()
	var publisher ports.EventPublisher // event publishing disabled in tests

	app.ledgerSvc = service.NewLedgerService(
		app.walletRepo, app.txRepo, app.idempRepo, idempotencyCache,
		app.transactor, publisher, collector, "USD", log,
	)
	authSvc := service.NewAuthService(
		app.userRepo, app.walletRepo, app.affRepo, hashSvc, tokenSvc,
		app.transactor, "USD", log,
	)
	app.walletSvc = service.NewWalletService(app.walletRepo, app.txRepo, app.transactor, log)
	app.rechargeSvc = service.NewRechargeService(app.rechargeRepo, app.walletRepo, app.ledgerSvc, "USD", log)
	affiliationSvc := service.NewAffiliationService(
		app.affRepo, app.feeRepo, app.userRepo, app.walletRepo,
		app.ledgerSvc, app.adminWalletID, log,
	)
	app.disputeSvc = service.NewDisputeService(
		app.disputeRepo, app.purchaseRepo, app.userRepo, app.walletRepo,
		app.ledgerSvc, log,
	)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		LedgerSvc:      app.ledgerSvc,
		WalletSvc:      app.walletSvc,
		RechargeSvc:    app.rechargeSvc,
		AffiliationSvc: affiliationSvc,
		DisputeSvc:     app.disputeSvc,
		TokenSvc:       tokenSvc,
		Metrics:        collector,
		Logger:         log,
	})
	app.server = httptest.NewServer(router)
	return app
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// seedWallet writes a wallet straight to storage, bypassing registration.
func (a *testApp) seedWallet(t *testing.T, ownerID uuid.UUID) *domain.Wallet {
	t.Helper()
	ctx := context.Background()
	w := domain.NewWallet(ownerID, "USD")
	tx, err := a.transactor.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, a.walletRepo.Create(ctx, tx, w))
	require.NoError(t, tx.Commit(ctx))
	return w
}

// --- HTTP helpers ---

func (a *testApp) doJSON(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		ErrorCode string `json:"error_code"`
	}
	decodeBody(t, resp, &body)
	return body.ErrorCode
}

type walletJSON struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Balance struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"balance"`
	Status string `json:"status"`
}

type account struct {
	token    string
	userID   uuid.UUID
	walletID uuid.UUID
}

// register creates a user over HTTP and logs them in.
func (a *testApp) register(t *testing.T, username, role string) account {
	t.Helper()
	body := map[string]string{
		"username": username,
		"password": "StrongPass123!",
	}
	if role != "" {
		body["role"] = role
	}
	resp := a.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var reg struct {
		Data struct {
			User struct {
				ID string `json:"id"`
			} `json:"user"`
			Wallet walletJSON `json:"wallet"`
		} `json:"data"`
	}
	decodeBody(t, resp, &reg)
	require.Equal(t, "0.0000", reg.Data.Wallet.Balance.Amount)

	resp = a.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "StrongPass123!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	decodeBody(t, resp, &login)

	return account{
		token:    login.Data.Token,
		userID:   uuid.MustParse(reg.Data.User.ID),
		walletID: uuid.MustParse(reg.Data.Wallet.ID),
	}
}

// credit tops up a user's wallet through the admin credit endpoint.
func (a *testApp) credit(t *testing.T, admin account, userID uuid.UUID, amount string) {
	t.Helper()
	resp := a.doJSON(t, http.MethodPost, "/api/v1/ledger/users/"+userID.String()+"/credit", admin.token,
		map[string]string{"amount": amount})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

// balance reads a wallet balance over HTTP as its owner.
func (a *testApp) balance(t *testing.T, acct account) string {
	t.Helper()
	resp := a.doJSON(t, http.MethodGet, "/api/v1/wallets/me", acct.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Data walletJSON `json:"data"`
	}
	decodeBody(t, resp, &body)
	return body.Data.Balance.Amount
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_RegisterLoginAndWallet(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	alice := app.register(t, "alice", "")
	assert.Equal(t, "0.0000", app.balance(t, alice))

	// Same username again is rejected.
	resp := app.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice",
		"password": "AnotherPass456!",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "AUTH_002", errorCode(t, resp))

	// Wallet queries require a token.
	resp = app.doJSON(t, http.MethodGet, "/api/v1/wallets/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestIntegration_RechargeApprovalCreditsWallet(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	member := app.register(t, "member1", "")
	admin := app.register(t, "admin1", "admin")

	// Member claims a 150 USD deposit.
	resp := app.doJSON(t, http.MethodPost, "/api/v1/recharges", member.token, map[string]string{
		"amount":         "150.00",
		"payment_method": "bank_transfer",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	decodeBody(t, resp, &created)
	assert.Equal(t, "pending", created.Data.Status)
	assert.Equal(t, "0.0000", app.balance(t, member))

	// Members cannot approve their own recharge.
	resp = app.doJSON(t, http.MethodPost, "/api/v1/recharges/"+created.Data.ID+"/approve", member.token,
		map[string]string{"external_transaction_id": "BANK-REF-001"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Admin approval credits the wallet.
	resp = app.doJSON(t, http.MethodPost, "/api/v1/recharges/"+created.Data.ID+"/approve", admin.token,
		map[string]string{"external_transaction_id": "BANK-REF-001"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var approved struct {
		Data struct {
			Recharge struct {
				Status string `json:"status"`
			} `json:"recharge"`
			Ledger struct {
				Transaction struct {
					ID string `json:"id"`
				} `json:"transaction"`
			} `json:"ledger"`
		} `json:"data"`
	}
	decodeBody(t, resp, &approved)
	assert.Equal(t, "completed", approved.Data.Recharge.Status)
	assert.Equal(t, "150.0000", app.balance(t, member))

	// Re-approving a completed recharge is a state conflict, not a second credit.
	resp = app.doJSON(t, http.MethodPost, "/api/v1/recharges/"+created.Data.ID+"/approve", admin.token,
		map[string]string{"external_transaction_id": "BANK-REF-001"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, "150.0000", app.balance(t, member))
	assert.Equal(t, 1, app.txRepo.count())

	// Admin debit brings the balance down to 100.
	resp = app.doJSON(t, http.MethodPost, "/api/v1/ledger/users/"+member.userID.String()+"/debit", admin.token,
		map[string]string{"amount": "50.00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, "100.0000", app.balance(t, member))
}

func TestIntegration_RechargeRejection(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	member := app.register(t, "member2", "")
	admin := app.register(t, "admin2", "admin")

	resp := app.doJSON(t, http.MethodPost, "/api/v1/recharges", member.token, map[string]string{
		"amount":         "75.00",
		"payment_method": "voucher",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decodeBody(t, resp, &created)

	resp = app.doJSON(t, http.MethodPost, "/api/v1/recharges/"+created.Data.ID+"/reject", admin.token,
		map[string]string{"reason": "voucher reference does not match any deposit"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rejected struct {
		Data struct {
			Status          string  `json:"status"`
			RejectionReason *string `json:"rejection_reason"`
		} `json:"data"`
	}
	decodeBody(t, resp, &rejected)
	assert.Equal(t, "cancelled", rejected.Data.Status)
	require.NotNil(t, rejected.Data.RejectionReason)

	// No funds moved, and a rejected recharge cannot be approved.
	assert.Equal(t, "0.0000", app.balance(t, member))
	resp = app.doJSON(t, http.MethodPost, "/api/v1/recharges/"+created.Data.ID+"/approve", admin.token,
		map[string]string{"external_transaction_id": "BANK-REF-002"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "WFL_001", errorCode(t, resp))
}

func TestIntegration_TransferBetweenUsers(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	alice := app.register(t, "alice_t", "")
	bob := app.register(t, "bob_t", "")
	admin := app.register(t, "admin_t", "admin")

	app.credit(t, admin, alice.userID, "100.00")

	resp := app.doJSON(t, http.MethodPost, "/api/v1/ledger/transfers", alice.token, map[string]string{
		"destination_user_id": bob.userID.String(),
		"amount":              "30.00",
		"description":         "service payment",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, "70.0000", app.balance(t, alice))
	assert.Equal(t, "30.0000", app.balance(t, bob))

	// Overspending fails and moves nothing.
	resp = app.doJSON(t, http.MethodPost, "/api/v1/ledger/transfers", alice.token, map[string]string{
		"destination_user_id": bob.userID.String(),
		"amount":              "500.00",
	})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "WLT_001", errorCode(t, resp))
	assert.Equal(t, "70.0000", app.balance(t, alice))
	assert.Equal(t, "30.0000", app.balance(t, bob))

	// The journal shows both sides of the transfer.
	resp = app.doJSON(t, http.MethodGet, "/api/v1/wallets/me/transactions", bob.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Data struct {
			Items []struct {
				Type string `json:"type"`
			} `json:"items"`
			Total int64 `json:"total"`
		} `json:"data"`
	}
	decodeBody(t, resp, &listing)
	require.Equal(t, int64(1), listing.Data.Total)
	assert.Equal(t, "transfer", listing.Data.Items[0].Type)
}

func TestIntegration_ReferralApprovalChargesFee(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	affiliate := app.register(t, "affiliate1", "affiliate")
	member := app.register(t, "referred1", "")
	admin := app.register(t, "admin3", "admin")

	app.credit(t, admin, affiliate.userID, "25.00")

	fee, err := domain.NewMoney("10.00", "USD")
	require.NoError(t, err)
	require.NoError(t, app.feeRepo.Create(context.Background(), &domain.ReferralFeeConfig{
		ID:        uuid.New(),
		Fee:       fee,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}))

	resp := app.doJSON(t, http.MethodPost, "/api/v1/affiliations", affiliate.token, map[string]string{
		"referred_user_id": member.userID.String(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"approval_status"`
		} `json:"data"`
	}
	decodeBody(t, resp, &created)
	assert.Equal(t, "pending", created.Data.Status)

	resp = app.doJSON(t, http.MethodPost, "/api/v1/affiliations/"+created.Data.ID+"/approve", affiliate.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var approved struct {
		Data struct {
			Affiliation struct {
				Status string `json:"approval_status"`
				Fee    *struct {
					Amount string `json:"amount"`
				} `json:"approval_fee"`
			} `json:"affiliation"`
		} `json:"data"`
	}
	decodeBody(t, resp, &approved)
	assert.Equal(t, "approved", approved.Data.Affiliation.Status)
	require.NotNil(t, approved.Data.Affiliation.Fee)
	assert.Equal(t, "10.0000", approved.Data.Affiliation.Fee.Amount)

	// Fee moved from the affiliate to the platform wallet.
	assert.Equal(t, "15.0000", app.balance(t, affiliate))
	adminWallet, err := app.walletRepo.GetByID(context.Background(), app.adminWalletID)
	require.NoError(t, err)
	assert.Equal(t, "10.0000", adminWallet.Balance.String())

	// A second approval conflicts instead of charging twice.
	resp = app.doJSON(t, http.MethodPost, "/api/v1/affiliations/"+created.Data.ID+"/approve", affiliate.token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "WFL_001", errorCode(t, resp))
	assert.Equal(t, "15.0000", app.balance(t, affiliate))
}

func TestIntegration_DisputePartialRefund(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	seller := app.register(t, "seller1", "")
	provider := app.register(t, "provider1", "")
	conciliator := app.register(t, "conciliator1", "conciliator")
	admin := app.register(t, "admin4", "admin")

	app.credit(t, admin, provider.userID, "100.00")

	amount, err := domain.NewMoney("40.00", "USD")
	require.NoError(t, err)
	purchase := &domain.Purchase{
		ID:         uuid.New(),
		SellerID:   seller.userID,
		ProviderID: provider.userID,
		Amount:     amount,
		Status:     domain.PurchaseStatusCompleted,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, app.purchaseRepo.Create(context.Background(), purchase))

	resp := app.doJSON(t, http.MethodPost, "/api/v1/disputes", seller.token, map[string]string{
		"purchase_id": purchase.ID.String(),
		"opened_by":   "seller",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var opened struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	decodeBody(t, resp, &opened)
	assert.Equal(t, "pending", opened.Data.Status)

	// Only conciliators may claim a dispute.
	resp = app.doJSON(t, http.MethodPost, "/api/v1/disputes/"+opened.Data.ID+"/assign", seller.token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = app.doJSON(t, http.MethodPost, "/api/v1/disputes/"+opened.Data.ID+"/assign", conciliator.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 50% of the 40 USD purchase flows back to the seller.
	resp = app.doJSON(t, http.MethodPost, "/api/v1/disputes/"+opened.Data.ID+"/resolve", conciliator.token, map[string]any{
		"resolution_type":   "partial_refund",
		"refund_percentage": 50,
		"explanation":       "both sides share responsibility for the failed delivery",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var resolved struct {
		Data struct {
			Dispute struct {
				Status string `json:"status"`
			} `json:"dispute"`
			Ledger *struct {
				Transaction struct {
					Amount struct {
						Amount string `json:"amount"`
					} `json:"amount"`
				} `json:"transaction"`
			} `json:"ledger"`
		} `json:"data"`
	}
	decodeBody(t, resp, &resolved)
	assert.Equal(t, "resolved", resolved.Data.Dispute.Status)
	require.NotNil(t, resolved.Data.Ledger)
	assert.Equal(t, "20.0000", resolved.Data.Ledger.Transaction.Amount.Amount)

	assert.Equal(t, "20.0000", app.balance(t, seller))
	assert.Equal(t, "80.0000", app.balance(t, provider))

	// Re-resolving an already resolved dispute conflicts.
	resp = app.doJSON(t, http.MethodPost, "/api/v1/disputes/"+opened.Data.ID+"/resolve", conciliator.token, map[string]any{
		"resolution_type": "no_action",
		"explanation":     "second opinion after the dispute was already settled",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "WFL_003", errorCode(t, resp))
	assert.Equal(t, "20.0000", app.balance(t, seller))
}

func TestIntegration_FrozenWalletRejectsMovement(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	member := app.register(t, "member3", "")
	admin := app.register(t, "admin5", "admin")
	app.credit(t, admin, member.userID, "60.00")

	resp := app.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/wallets/%s/freeze", member.walletID), admin.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = app.doJSON(t, http.MethodPost, "/api/v1/ledger/users/"+member.userID.String()+"/debit", admin.token,
		map[string]string{"amount": "10.00"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "WLT_003", errorCode(t, resp))

	resp = app.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/wallets/%s/unfreeze", member.walletID), admin.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = app.doJSON(t, http.MethodPost, "/api/v1/ledger/users/"+member.userID.String()+"/debit", admin.token,
		map[string]string{"amount": "10.00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, "50.0000", app.balance(t, member))
}

func TestIntegration_ConcurrentDuplicateKeysRecordOnce(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	ctx := context.Background()
	wallet := app.seedWallet(t, uuid.New())
	amount, err := domain.NewMoney("40.00", "USD")
	require.NoError(t, err)

	const attempts = 10
	results := make([]*ports.LedgerResult, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = app.ledgerSvc.Execute(ctx, ports.ExecuteRequest{
				DestinationWalletID: &wallet.ID,
				Amount:              amount,
				IdempotencyKey:      "recharge:dup-1",
				RelatedEntityType:   domain.RelatedEntityRecharge,
				RelatedEntityID:     "dup-1",
			})
		}(i)
	}
	wg.Wait()

	// Every caller observes the same committed transaction, and the wallet
	// was credited exactly once.
	var winnerTx uuid.UUID
	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i].Transaction)
		if winnerTx == uuid.Nil {
			winnerTx = results[i].Transaction.ID
		}
		assert.Equal(t, winnerTx, results[i].Transaction.ID)
	}
	assert.Equal(t, 1, app.txRepo.count())
	stored, err := app.walletRepo.GetByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, "40.0000", stored.Balance.String())
}

func TestIntegration_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	ctx := context.Background()
	wallet := app.seedWallet(t, uuid.New())
	seed, err := domain.NewMoney("100.00", "USD")
	require.NoError(t, err)
	_, err = app.ledgerSvc.Execute(ctx, ports.ExecuteRequest{
		DestinationWalletID: &wallet.ID,
		Amount:              seed,
		IdempotencyKey:      "recharge:seed-overdraw",
		RelatedEntityType:   domain.RelatedEntityRecharge,
	})
	require.NoError(t, err)

	debit, err := domain.NewMoney("30.00", "USD")
	require.NoError(t, err)

	const attempts = 5
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = app.ledgerSvc.Execute(ctx, ports.ExecuteRequest{
				SourceWalletID:    &wallet.ID,
				Amount:            debit,
				IdempotencyKey:    fmt.Sprintf("purchase:overdraw-%d", i),
				RelatedEntityType: domain.RelatedEntityPurchase,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i := 0; i < attempts; i++ {
		if errs[i] == nil {
			succeeded++
		} else {
			assertErrorCode(t, errs[i], "WLT_001")
		}
	}
	// 100 / 30: exactly three debits fit, the rest fail cleanly.
	assert.Equal(t, 3, succeeded)
	stored, err := app.walletRepo.GetByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0000", stored.Balance.String())
}

// A close racing a credit must never leave a closed wallet holding funds:
// whichever side takes the row lock second sees the other's committed state.
func TestIntegration_ConcurrentCloseNeverStrandsFunds(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	ctx := context.Background()
	wallet := app.seedWallet(t, uuid.New())
	amount, err := domain.NewMoney("50.00", "USD")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var creditErr, closeErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, creditErr = app.ledgerSvc.Execute(ctx, ports.ExecuteRequest{
			DestinationWalletID: &wallet.ID,
			Amount:              amount,
			IdempotencyKey:      "recharge:close-race",
			RelatedEntityType:   domain.RelatedEntityRecharge,
		})
	}()
	go func() {
		defer wg.Done()
		_, closeErr = app.walletSvc.Close(ctx, wallet.ID)
	}()
	wg.Wait()

	stored, err := app.walletRepo.GetByID(ctx, wallet.ID)
	require.NoError(t, err)
	if closeErr == nil {
		// Close took the lock first, so the credit saw a closed wallet.
		assertErrorCode(t, creditErr, "WLT_004")
		assert.Equal(t, domain.WalletStatusClosed, stored.Status)
		assert.True(t, stored.Balance.IsZero())
	} else {
		// Credit committed first; close re-read the balance under the lock
		// and refused to strand the funds.
		require.NoError(t, creditErr)
		assertErrorCode(t, closeErr, "WLT_005")
		assert.Equal(t, domain.WalletStatusActive, stored.Status)
		assert.Equal(t, "50.0000", stored.Balance.String())
	}
}

func TestIntegration_ConcurrentDisputeClaimsSingleWinner(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	ctx := context.Background()
	seller := app.register(t, "seller_claim", "")
	provider := app.register(t, "provider_claim", "")

	amount, err := domain.NewMoney("10.00", "USD")
	require.NoError(t, err)
	purchase := &domain.Purchase{
		ID:         uuid.New(),
		SellerID:   seller.userID,
		ProviderID: provider.userID,
		Amount:     amount,
		Status:     domain.PurchaseStatusCompleted,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, app.purchaseRepo.Create(ctx, purchase))

	dispute, err := app.disputeSvc.Open(ctx, purchase.ID, domain.DisputeOpenerSeller)
	require.NoError(t, err)

	const claimants = 4
	conciliators := make([]account, claimants)
	for i := 0; i < claimants; i++ {
		conciliators[i] = app.register(t, fmt.Sprintf("conciliator_claim_%d", i), "conciliator")
	}

	errs := make([]error, claimants)
	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = app.disputeSvc.Assign(ctx, dispute.ID, conciliators[i].userID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < claimants; i++ {
		if errs[i] == nil {
			winners++
		} else {
			assertErrorCode(t, errs[i], "WFL_001")
		}
	}
	assert.Equal(t, 1, winners)

	claimed, err := app.disputeSvc.GetByID(ctx, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusAssigned, claimed.Status)
	require.NotNil(t, claimed.AssignedConciliatorID)
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}
