package models

import (
	"time"

	"github.com/google/uuid"
)

type UserType string

const (
	UserTypeAdmin    UserType = "admin"
	UserTypeStaff    UserType = "staff"
	UserTypeCustomer UserType = "customer"
)

func (t UserType) IsValid() bool {
	return t == UserTypeAdmin || t == UserTypeStaff || t == UserTypeCustomer
}

type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	Password     string     `db:"password" json:"-"`
	UserType     UserType   `db:"user_type" json:"userType"`
	RestaurantID *uuid.UUID `db:"restaurant_id" json:"restaurantId,omitempty"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ArchivedAt   *time.Time `db:"archived_at" json:"archived_at,omitempty"`
}

// UserInfo is the narrow view the transaction engine needs about a user:
// enough to authorize staff actions and address notifications.
type UserInfo struct {
	ID           uuid.UUID
	Email        string
	UserType     UserType
	RestaurantID *uuid.UUID
}
