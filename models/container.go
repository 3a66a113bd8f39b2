package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ContainerStatus string

const (
	StatusAvailable ContainerStatus = "available"
	StatusActive    ContainerStatus = "active"
	StatusReturned  ContainerStatus = "returned"
	StatusLost      ContainerStatus = "lost"
	StatusDamaged   ContainerStatus = "damaged"
)

func (s ContainerStatus) IsValid() bool {
	switch s {
	case StatusAvailable, StatusActive, StatusReturned, StatusLost, StatusDamaged:
		return true
	}
	return false
}

type Container struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	QRCode           string          `db:"qr_code" json:"qrCode"`
	ContainerTypeID  uuid.UUID       `db:"container_type_id" json:"containerTypeId"`
	CustomerID       *uuid.UUID      `db:"customer_id" json:"customerId,omitempty"`
	RestaurantID     *uuid.UUID      `db:"restaurant_id" json:"restaurantId,omitempty"`
	Status           ContainerStatus `db:"status" json:"status"`
	UsesCount        int             `db:"uses_count" json:"usesCount"`
	RegistrationDate *time.Time      `db:"registration_date" json:"registrationDate,omitempty"`
	LastUsed         *time.Time      `db:"last_used" json:"lastUsed,omitempty"`
	PurchaseDate     *time.Time      `db:"purchase_date" json:"purchaseDate,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// IsExpired reports the derived expiry view: an active container whose
// usage counter has reached the type ceiling. Never persisted as a status.
func (c *Container) IsExpired(maxUses int) bool {
	return c.Status == StatusActive && c.UsesCount >= maxUses
}

type ContainerType struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	MaxUses     int             `db:"max_uses" json:"maxUses"`
	// RebateValue is a legacy default; live rebate pricing comes from
	// RestaurantContainerRebate.
	RebateValue decimal.Decimal `db:"rebate_value" json:"rebateValue"`
	IsActive    bool            `db:"is_active" json:"isActive"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// RestaurantContainerRebate is the authoritative rebate price for one
// (restaurant, container type) pair. At most one row per pair.
type RestaurantContainerRebate struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	RestaurantID    uuid.UUID       `db:"restaurant_id" json:"restaurantId"`
	ContainerTypeID uuid.UUID       `db:"container_type_id" json:"containerTypeId"`
	RebateValue     decimal.Decimal `db:"rebate_value" json:"rebateValue"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}
