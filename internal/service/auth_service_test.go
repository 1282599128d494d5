package service

import (
	"context"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type authTestDeps struct {
	svc        *AuthServiceImpl
	userRepo   *mocks.MockUserRepository
	walletRepo *mocks.MockWalletRepository
	affRepo    *mocks.MockAffiliationRepository
	hashSvc    *mocks.MockHashService
	tokenSvc   *mocks.MockTokenService
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		userRepo:   mocks.NewMockUserRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		affRepo:    mocks.NewMockAffiliationRepository(ctrl),
		hashSvc:    mocks.NewMockHashService(ctrl),
		tokenSvc:   mocks.NewMockTokenService(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewAuthService(
		d.userRepo, d.walletRepo, d.affRepo, d.hashSvc,
		d.tokenSvc, d.transactor, "USD", zerolog.Nop(),
	)
	return d
}

func TestAuthService_Register_CreatesUserAndWallet(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.userRepo.EXPECT().GetByUsername(ctx, "alice").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("s3cret").Return("$argon2id$hash", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)

	var createdUser *domain.User
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ any, u *domain.User) error {
			createdUser = u
			return nil
		})
	d.walletRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ any, w *domain.Wallet) error {
			assert.Equal(t, createdUser.ID, w.OwnerID)
			assert.True(t, w.Balance.IsZero())
			assert.Equal(t, domain.WalletStatusActive, w.Status)
			return nil
		})

	resp, err := d.svc.Register(ctx, ports.RegisterRequest{
		Username: "alice",
		Password: "s3cret",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, domain.RoleMember, resp.User.Role)
	assert.Equal(t, "$argon2id$hash", resp.User.PasswordHash)
	assert.Equal(t, resp.User.ID, resp.Wallet.OwnerID)
	assert.Equal(t, "0.0000", resp.Wallet.Balance.String())
}

func TestAuthService_Register_WithReferrer(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	referrerID := uuid.New()

	d.userRepo.EXPECT().GetByUsername(ctx, "bob").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("pw").Return("hash", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.affRepo.EXPECT().Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, a *domain.Affiliation) error {
			assert.Equal(t, referrerID, a.AffiliateID)
			assert.Equal(t, domain.ApprovalStatusPending, a.ApprovalStatus)
			return nil
		})

	_, err := d.svc.Register(ctx, ports.RegisterRequest{
		Username:   "bob",
		Password:   "pw",
		Role:       domain.RoleMember,
		ReferrerID: &referrerID,
	})
	require.NoError(t, err)
}

func TestAuthService_Register_UsernameTaken(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.userRepo.EXPECT().GetByUsername(ctx, "alice").
		Return(&domain.User{ID: uuid.New(), Username: "alice"}, nil)

	_, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "alice", Password: "pw"})
	assertAppCode(t, err, "AUTH_002")
}

func TestAuthService_Register_UnknownRole(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Register(context.Background(), ports.RegisterRequest{
		Username: "alice", Password: "pw", Role: "superuser",
	})
	assertAppCode(t, err, "VAL_003")
}

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	expiresAt := time.Now().Add(time.Hour)

	d.userRepo.EXPECT().GetByUsername(ctx, "alice").Return(&domain.User{
		ID: userID, Username: "alice", PasswordHash: "hash", Role: domain.RoleAdmin,
	}, nil)
	d.hashSvc.EXPECT().Verify("pw", "hash").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(userID, domain.RoleAdmin).Return("token", expiresAt, nil)

	token, exp, err := d.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "token", token)
	assert.Equal(t, expiresAt, exp)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.userRepo.EXPECT().GetByUsername(ctx, "alice").Return(&domain.User{
		ID: uuid.New(), Username: "alice", PasswordHash: "hash",
	}, nil)
	d.hashSvc.EXPECT().Verify("wrong", "hash").Return(false, nil)

	_, _, err := d.svc.Login(ctx, "alice", "wrong")
	assertAppCode(t, err, "AUTH_001")
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.userRepo.EXPECT().GetByUsername(ctx, "ghost").Return(nil, nil)

	_, _, err := d.svc.Login(ctx, "ghost", "pw")
	assertAppCode(t, err, "AUTH_001")
}
