package auth

import (
	"strings"
	"testing"

	"kitchenline/config"
	domainerrors "kitchenline/internal/domain/errors"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher() *bcryptHasher {
	return NewBcryptHasher(&config.Config{Auth: &config.AuthConfig{BcryptCost: bcrypt.MinCost}}).(*bcryptHasher)
}

func TestBcryptHasher_Hash(t *testing.T) {
	hasher := newTestHasher()

	hash, err := hasher.Hash("StrongPass123!")
	require.NoError(t, err)
	assert.NotEqual(t, "StrongPass123!", hash)
	assert.True(t, hasher.Check("StrongPass123!", hash))
	assert.False(t, hasher.Check("strongpass123!", hash))
}

func TestBcryptHasher_HashRejectsLength(t *testing.T) {
	hasher := newTestHasher()

	for _, password := range []string{"", "short", strings.Repeat("x", 73)} {
		_, err := hasher.Hash(password)
		assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed), "password of length %d", len(password))
	}
}

func TestBcryptHasher_Cost(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, newTestHasher().cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(&config.Config{}).(*bcryptHasher).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(&config.Config{Auth: &config.AuthConfig{BcryptCost: 99}}).(*bcryptHasher).cost)
}

func TestBcryptHasher_CheckInvalidHash(t *testing.T) {
	assert.False(t, newTestHasher().Check("StrongPass123!", "not-a-hash"))
}
