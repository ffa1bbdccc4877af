package models

import "time"

// Waiter is a staff identity used for passkey-gated access.
type Waiter struct {
	ID          int64     `json:"id"`
	WaiterName  string    `json:"waiterName"`
	PasskeyHash string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}
