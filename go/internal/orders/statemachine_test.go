package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/tableside/go/internal/models"
)

func TestCanTransition(t *testing.T) {
	n, p, c := models.OrderStatusNew, models.OrderStatusPending, models.OrderStatusCompleted

	allowed := [][2]models.OrderStatus{{n, p}, {p, p}, {n, c}, {p, c}}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	rejected := [][2]models.OrderStatus{{n, n}, {p, n}, {c, n}, {c, p}, {c, c}}
	for _, tr := range rejected {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestValidateTransition_UnknownCurrent(t *testing.T) {
	err := validateTransition(models.OrderStatus("archived"), models.OrderStatusPending)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "not_found", ErrorCode(ErrNotFound))
	assert.Equal(t, "validation_failed", ErrorCode(ErrValidationFailed))
	assert.Equal(t, "invalid_transition", ErrorCode(ErrInvalidTransition))
	assert.Equal(t, "store_unavailable", ErrorCode(ErrStoreUnavailable))
}
