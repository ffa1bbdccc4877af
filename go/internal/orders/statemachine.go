package orders

import (
	"fmt"

	"github.com/mcdev12/tableside/go/internal/models"
)

// allowedTransitions is the complete order state machine. Re-entering
// pending is legal and re-stamps the countdown reference.
var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusNew:       {models.OrderStatusPending, models.OrderStatusCompleted},
	models.OrderStatusPending:   {models.OrderStatusPending, models.OrderStatusCompleted},
	models.OrderStatusCompleted: {}, // terminal
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to models.OrderStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// validateTransition returns ErrInvalidTransition when from -> to is not allowed.
func validateTransition(from, to models.OrderStatus) error {
	if _, known := allowedTransitions[from]; !known {
		return fmt.Errorf("%w: unknown current status %q", ErrInvalidTransition, from)
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: order is already %s", ErrInvalidTransition, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
