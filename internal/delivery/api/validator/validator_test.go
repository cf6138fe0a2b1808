package validator

import (
	"testing"

	domainerrors "kitchenline/internal/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email string `json:"email" validate:"required,email"`
	Count int    `json:"count,omitempty" validate:"gte=1"`
}

func TestValidate(t *testing.T) {
	v := New()

	require.NoError(t, v.Validate(&sample{Email: "may@example.com", Count: 1}))

	err := v.Validate(&sample{Email: "nope"})
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	assert.Contains(t, err.Error(), "email failed email")
	assert.Contains(t, err.Error(), "count failed gte")
}
