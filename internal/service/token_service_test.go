package service

import (
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-chars-long", time.Hour, "marketplace-ledger")
	userID := uuid.New()

	token, expiresAt, err := svc.Generate(userID, domain.RoleConciliator)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, domain.RoleConciliator, claims.Role)
}

func TestJWTTokenService_Validate_WrongSecret(t *testing.T) {
	svc := NewJWTTokenService("secret-one-aaaaaaaaaaaaaaaaaaaaaa", time.Hour, "marketplace-ledger")
	other := NewJWTTokenService("secret-two-bbbbbbbbbbbbbbbbbbbbbb", time.Hour, "marketplace-ledger")

	token, _, err := svc.Generate(uuid.New(), domain.RoleMember)
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_Expired(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-chars-long", -time.Minute, "marketplace-ledger")

	token, _, err := svc.Generate(uuid.New(), domain.RoleMember)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_Garbage(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-chars-long", time.Hour, "marketplace-ledger")
	_, err := svc.Validate("not.a.token")
	assert.Error(t, err)
}
