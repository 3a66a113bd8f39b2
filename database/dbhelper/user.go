package dbhelper

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aqro/aqro-server/database"
	"github.com/aqro/aqro-server/models"
)

// GetUserByPassword resolves login credentials. Inactive staff accounts are
// pending approval and cannot sign in.
func GetUserByPassword(email, password string) (*models.User, error) {
	var u models.User
	err := database.Aqro.QueryRow(`
		SELECT id, name, email, password, user_type, restaurant_id, is_active
		FROM users
		WHERE LOWER(email) = LOWER($1) AND archived_at IS NULL`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.UserType, &u.RestaurantID, &u.IsActive)
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, fmt.Errorf("incorrect password")
	}
	if !u.IsActive {
		return nil, fmt.Errorf("account is not active")
	}

	return &u, nil
}

// GetUserInfoByID is the UserLookup capability the engine is wired with:
// id to email, type and restaurant scope, nothing more.
func GetUserInfoByID(id uuid.UUID) (*models.UserInfo, error) {
	var info models.UserInfo
	err := database.Aqro.QueryRow(`
		SELECT id, email, user_type, restaurant_id
		FROM users
		WHERE id = $1 AND archived_at IS NULL`, id).
		Scan(&info.ID, &info.Email, &info.UserType, &info.RestaurantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func GetRestaurantByID(id uuid.UUID) (*models.Restaurant, error) {
	var r models.Restaurant
	err := database.Aqro.QueryRow(`
		SELECT id, name, address, is_active, created_at
		FROM restaurants
		WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.Address, &r.IsActive, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func IsRestaurantExists(id uuid.UUID) (bool, error) {
	var exists bool
	err := database.Aqro.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM restaurants WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
