package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/core/ports/mocks"
	"marketplace-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func authedContext(w *httptest.ResponseRecorder, userID uuid.UUID, role domain.Role) (*gin.Context, *gin.Engine) {
	c, r := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, userID)
	c.Set(middleware.CtxUserRole, role)
	return c, r
}

// --- Auth ---

func TestRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	user := &domain.User{ID: uuid.New(), Username: "alice", Role: domain.RoleMember}
	wallet := &domain.Wallet{ID: uuid.New(), OwnerID: user.ID}
	mockAuth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		Username: "alice",
		Password: "password123",
	}).Return(&ports.RegisterResponse{User: user, Wallet: wallet}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Username: "alice",
		Password: "password123",
	})

	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]any)
	userData := data["user"].(map[string]any)
	assert.Equal(t, "alice", userData["username"])
}

func TestRegister_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/auth/register", map[string]string{})

	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_UsernameTaken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrUsernameExists())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Username: "taken",
		Password: "password123",
	})

	h.Register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_002")
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Now().Add(24 * time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "alice", "password123").Return("jwt-token", expiry, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Username: "alice",
		Password: "password123",
	})

	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jwt-token")
}

// --- Wallets ---

func TestWalletGetOwn_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	userID := uuid.New()
	balance, err := domain.NewMoney("150.00", "USD")
	require.NoError(t, err)
	mockWallet.EXPECT().GetByUserID(gomock.Any(), userID).Return(&domain.Wallet{
		ID:      uuid.New(),
		OwnerID: userID,
		Balance: balance,
		Status:  domain.WalletStatusActive,
	}, nil)

	w := httptest.NewRecorder()
	c, _ := authedContext(w, userID, domain.RoleMember)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/wallets/me", nil)

	h.GetOwn(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "150.0000")
}

func TestWalletFreeze_PropagatesError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	walletID := uuid.New()
	mockWallet.EXPECT().Freeze(gomock.Any(), walletID).Return(nil, apperror.ErrWalletNotFound())

	w := httptest.NewRecorder()
	c, _ := authedContext(w, uuid.New(), domain.RoleAdmin)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/wallets/"+walletID.String()+"/freeze", nil)
	c.Params = gin.Params{{Key: "id", Value: walletID.String()}}

	h.Freeze(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "WLT_002")
}

// --- Ledger ---

func TestTransfer_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(mockLedger)

	sourceID := uuid.New()
	destID := uuid.New()
	amount, err := domain.NewMoney("25.00", "USD")
	require.NoError(t, err)

	mockLedger.EXPECT().Transfer(gomock.Any(), ports.TransferRequest{
		SourceUserID:      sourceID,
		DestinationUserID: destID,
		Amount:            "25.00",
		IdempotencyKey:    "client-key-1",
	}).Return(&ports.LedgerResult{
		Transaction: &domain.Transaction{
			ID:     uuid.New(),
			Type:   domain.TransactionTypeTransfer,
			Amount: amount,
		},
	}, nil)

	w := httptest.NewRecorder()
	c, _ := authedContext(w, sourceID, domain.RoleMember)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/ledger/transfers", dto.TransferRequest{
		DestinationUserID: destID.String(),
		Amount:            "25.00",
		IdempotencyKey:    "client-key-1",
	})

	h.Transfer(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "transfer")
}

func TestTransfer_BadAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewLedgerHandler(mocks.NewMockLedgerService(ctrl))

	w := httptest.NewRecorder()
	c, _ := authedContext(w, uuid.New(), domain.RoleMember)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/ledger/transfers", map[string]string{
		"destination_user_id": uuid.NewString(),
		"amount":              "-5.00",
	})

	h.Transfer(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDebit_InsufficientBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(mockLedger)

	targetID := uuid.New()
	mockLedger.EXPECT().DebitWallet(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrInsufficientBalance("50.0000", "10.0000"))

	w := httptest.NewRecorder()
	c, _ := authedContext(w, uuid.New(), domain.RoleAdmin)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/ledger/users/"+targetID.String()+"/debit", dto.DebitRequest{
		Amount: "50.00",
	})
	c.Params = gin.Params{{Key: "id", Value: targetID.String()}}

	h.Debit(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "WLT_001")
}

// --- Recharges ---

func TestRechargeApprove_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRecharge := mocks.NewMockRechargeService(ctrl)
	h := NewRechargeHandler(mockRecharge)

	rechargeID := uuid.New()
	amount, err := domain.NewMoney("75.50", "USD")
	require.NoError(t, err)
	mockRecharge.EXPECT().Approve(gomock.Any(), rechargeID, "bank-tx-991").
		Return(&ports.RechargeApprovalResult{
			Recharge: &domain.Recharge{
				ID:     rechargeID,
				Amount: amount,
				Status: domain.RechargeStatusCompleted,
			},
		}, nil)

	w := httptest.NewRecorder()
	c, _ := authedContext(w, uuid.New(), domain.RoleAdmin)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/recharges/"+rechargeID.String()+"/approve",
		dto.RechargeApproveRequest{ExternalTransactionID: "bank-tx-991"})
	c.Params = gin.Params{{Key: "id", Value: rechargeID.String()}}

	h.Approve(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "completed")
}

// Not every payment method produces an external reference, so approval
// works without a request body at all.
func TestRechargeApprove_NoExternalReference(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRecharge := mocks.NewMockRechargeService(ctrl)
	h := NewRechargeHandler(mockRecharge)

	rechargeID := uuid.New()
	amount, err := domain.NewMoney("20.00", "USD")
	require.NoError(t, err)
	mockRecharge.EXPECT().Approve(gomock.Any(), rechargeID, "").
		Return(&ports.RechargeApprovalResult{
			Recharge: &domain.Recharge{
				ID:     rechargeID,
				Amount: amount,
				Status: domain.RechargeStatusCompleted,
			},
		}, nil)

	w := httptest.NewRecorder()
	c, _ := authedContext(w, uuid.New(), domain.RoleAdmin)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/recharges/"+rechargeID.String()+"/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: rechargeID.String()}}

	h.Approve(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRechargeReject_ShortReason(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewRechargeHandler(mocks.NewMockRechargeService(ctrl))

	rechargeID := uuid.New()
	w := httptest.NewRecorder()
	c, _ := authedContext(w, uuid.New(), domain.RoleAdmin)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/recharges/"+rechargeID.String()+"/reject",
		dto.RechargeRejectRequest{Reason: "too short"})
	c.Params = gin.Params{{Key: "id", Value: rechargeID.String()}}

	h.Reject(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Disputes ---

func TestDisputeResolve_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDispute := mocks.NewMockDisputeService(ctrl)
	h := NewDisputeHandler(mockDispute)

	disputeID := uuid.New()
	conciliatorID := uuid.New()
	pct := 50
	explanation := "partial responsibility on both sides of the purchase"

	mockDispute.EXPECT().Resolve(gomock.Any(), ports.ResolveDisputeRequest{
		DisputeID:        disputeID,
		ConciliatorID:    conciliatorID,
		ResolutionType:   domain.ResolutionPartialRefund,
		Explanation:      explanation,
		RefundPercentage: &pct,
	}).Return(&ports.DisputeResolutionResult{
		Dispute: &domain.Dispute{ID: disputeID, Status: domain.DisputeStatusResolved},
	}, nil)

	w := httptest.NewRecorder()
	c, _ := authedContext(w, conciliatorID, domain.RoleConciliator)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/disputes/"+disputeID.String()+"/resolve",
		dto.DisputeResolveRequest{
			ResolutionType:   "partial_refund",
			RefundPercentage: &pct,
			Explanation:      explanation,
		})
	c.Params = gin.Params{{Key: "id", Value: disputeID.String()}}

	h.Resolve(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "resolved")
}

func TestDisputeAssign_AlreadyClaimed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDispute := mocks.NewMockDisputeService(ctrl)
	h := NewDisputeHandler(mockDispute)

	disputeID := uuid.New()
	conciliatorID := uuid.New()
	mockDispute.EXPECT().Assign(gomock.Any(), disputeID, conciliatorID).
		Return(nil, apperror.ErrInvalidState("dispute is assigned, not pending"))

	w := httptest.NewRecorder()
	c, _ := authedContext(w, conciliatorID, domain.RoleConciliator)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/disputes/"+disputeID.String()+"/assign", nil)
	c.Params = gin.Params{{Key: "id", Value: disputeID.String()}}

	h.Assign(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "WFL_001")
}

func TestDisputeOpen_InvalidOpener(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewDisputeHandler(mocks.NewMockDisputeService(ctrl))

	w := httptest.NewRecorder()
	c, _ := authedContext(w, uuid.New(), domain.RoleMember)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/disputes", map[string]string{
		"purchase_id": uuid.NewString(),
		"opened_by":   "bystander",
	})

	h.Open(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
