package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	t.Run("Matches By Kind", func(t *testing.T) {
		err := fmt.Errorf("failed to debit: %w", E(InsufficientFunds, "balance 10 below 20", nil))

		assert.True(t, errors.Is(err, ErrInsufficientFunds))
		assert.False(t, errors.Is(err, ErrWalletNotFound))
		assert.Equal(t, InsufficientFunds, KindOf(err))
	})

	t.Run("Unwraps Cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := E(ProviderVerificationError, "verify failed", cause)

		assert.ErrorIs(t, err, cause)
		assert.ErrorIs(t, err, ErrProviderVerification)
		assert.Equal(t, "verify failed: connection reset", err.Error())
	})

	t.Run("Plain Errors Are Other", func(t *testing.T) {
		assert.Equal(t, Other, KindOf(errors.New("boom")))
	})
}

func TestValidationErrs(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.NoError(t, ValidationErrs().Err())
	})

	t.Run("Aggregates", func(t *testing.T) {
		ve := ValidationErrs()
		ve.Add("phone", "cannot be empty")
		ve.Add("network", "cannot be empty")

		err := ve.Err()
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Contains(t, err.Error(), "phone: cannot be empty")
		assert.Contains(t, err.Error(), "network: cannot be empty")
	})
}
