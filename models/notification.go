package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Notification is the payload handed to the best-effort side channel after
// a transaction commits. Delivery failures never reach the caller.
type Notification struct {
	Event         string           `json:"event"`
	CustomerID    uuid.UUID        `json:"customerId"`
	Email         string           `json:"email,omitempty"`
	ContainerID   uuid.UUID        `json:"containerId"`
	ContainerType string           `json:"containerType,omitempty"`
	Restaurant    string           `json:"restaurant,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}
