package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ActivityType string

const (
	ActivityRegistration ActivityType = "registration"
	ActivityReturn       ActivityType = "return"
	ActivityRebate       ActivityType = "rebate"
	ActivityStatusChange ActivityType = "status_change"
)

func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityRegistration, ActivityReturn, ActivityRebate, ActivityStatusChange:
		return true
	}
	return false
}

type ActivityStatus string

const (
	ActivityCompleted ActivityStatus = "completed"
	ActivityPending   ActivityStatus = "pending"
	ActivityCancelled ActivityStatus = "cancelled"
)

// Activity is one append-only ledger row. Rows are written in the same
// transaction as the container mutation they record and never updated.
type Activity struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"userId"`
	ContainerID     uuid.UUID       `db:"container_id" json:"containerId"`
	ContainerTypeID uuid.UUID       `db:"container_type_id" json:"containerTypeId"`
	RestaurantID    *uuid.UUID      `db:"restaurant_id" json:"restaurantId,omitempty"`
	Type            ActivityType    `db:"activity_type" json:"type"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Status          ActivityStatus  `db:"status" json:"status"`
	Location        string          `db:"location" json:"location"`
	Notes           string          `db:"notes" json:"notes"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Rebate is the financial record of one cash rebate payout, kept separate
// from the ledger row so staff and restaurant totals aggregate over money
// movements only.
type Rebate struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ContainerID uuid.UUID       `db:"container_id" json:"containerId"`
	CustomerID  uuid.UUID       `db:"customer_id" json:"customerId"`
	StaffID     uuid.UUID       `db:"staff_id" json:"staffId"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Location    string          `db:"location" json:"location"`
	Date        time.Time       `db:"rebate_date" json:"date"`
}

// ActivityFilter narrows the activity report. Every set dimension must
// match (conjunction); an empty dimension places no restriction.
type ActivityFilter struct {
	From             *time.Time
	To               *time.Time
	Types            []ActivityType
	RestaurantIDs    []uuid.UUID
	CustomerIDs      []uuid.UUID
	ContainerTypeIDs []uuid.UUID
}

type CustomerStats struct {
	ActiveContainers   int             `json:"activeContainers"`
	ReturnedContainers int             `json:"returnedContainers"`
	LostContainers     int             `json:"lostContainers"`
	DamagedContainers  int             `json:"damagedContainers"`
	ExpiredContainers  int             `json:"expiredContainers"`
	TotalRebate        decimal.Decimal `json:"totalRebate"`
}

type RestaurantStats struct {
	ActiveContainers   int             `json:"activeContainers"`
	ReturnedContainers int             `json:"returnedContainers"`
	LostContainers     int             `json:"lostContainers"`
	DamagedContainers  int             `json:"damagedContainers"`
	ExpiredContainers  int             `json:"expiredContainers"`
	TotalRebatePaid    decimal.Decimal `json:"totalRebatePaid"`
}
