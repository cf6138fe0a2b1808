package auth

import (
	"testing"
	"time"

	"kitchenline/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(t *testing.T, secret string) *jwtService {
	t.Helper()

	cfg := &config.Config{Auth: &config.AuthConfig{TokenExpiry: time.Hour}}
	cfg.SecretKey.Access = secret

	svc, err := NewJWTService(cfg)
	require.NoError(t, err)

	return svc.(*jwtService)
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := newTestJWTService(t, "test_access_secret_key_very_long_for_testing")

	token, expiresAt, err := svc.GenerateSessionToken("uid-1", []string{"cook"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", claims.Subject)
	assert.Equal(t, []string{"cook"}, claims.Roles)
	assert.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestJWTService_MissingSecret(t *testing.T) {
	_, err := NewJWTService(&config.Config{})
	assert.Error(t, err)
}

func TestJWTService_RejectsForeignSignature(t *testing.T) {
	issuer := newTestJWTService(t, "secret-one-secret-one-secret-one")
	verifier := newTestJWTService(t, "secret-two-secret-two-secret-two")

	token, _, err := issuer.GenerateSessionToken("uid-1", nil)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestJWTService_RejectsExpired(t *testing.T) {
	svc := newTestJWTService(t, "test_access_secret_key_very_long_for_testing")
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := svc.GenerateSessionToken("uid-1", nil)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestJWTService_RejectsNoneAlgorithm(t *testing.T) {
	svc := newTestJWTService(t, "test_access_secret_key_very_long_for_testing")

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "uid-1",
		"iss": tokenIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}
