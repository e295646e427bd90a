package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvalidMatchesValidation(t *testing.T) {
	err := fmt.Errorf("create: %w", Invalid("email", "is required"))
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "create: email: is required", err.Error())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "email", verr.Field)
}

func TestUserSafeMessage(t *testing.T) {
	require.Empty(t, UserSafeMessage(nil))
	require.Equal(t, "item not found", UserSafeMessage(fmt.Errorf("item %w", ErrNotFound)))
	require.Equal(t, "internal error", UserSafeMessage(errors.New("pq: connection refused")))
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 0, 45)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 3, p.TotalPages)
	require.Zero(t, p.Offset())
	require.Equal(t, 40, NewPagination(3, 20, 45).Offset())
}
