package dbhelper

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aqro/aqro-server/database"
	"github.com/aqro/aqro-server/models"
)

func GetRebateMapping(restaurantID, containerTypeID uuid.UUID) (*models.RestaurantContainerRebate, error) {
	var m models.RestaurantContainerRebate
	err := database.Aqro.QueryRow(`
		SELECT id, restaurant_id, container_type_id, rebate_value, created_at, updated_at
		FROM restaurant_container_rebates
		WHERE restaurant_id = $1 AND container_type_id = $2`, restaurantID, containerTypeID).
		Scan(&m.ID, &m.RestaurantID, &m.ContainerTypeID, &m.RebateValue, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertRebateMapping keeps the (restaurant, container type) pair unique:
// a second write for the same pair updates the value in place.
func UpsertRebateMapping(tx *sql.Tx, restaurantID, containerTypeID uuid.UUID, rebateValue decimal.Decimal) error {
	_, err := tx.Exec(`
		INSERT INTO restaurant_container_rebates (restaurant_id, container_type_id, rebate_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (restaurant_id, container_type_id)
		DO UPDATE SET rebate_value = EXCLUDED.rebate_value, updated_at = now()`,
		restaurantID, containerTypeID, rebateValue)
	return err
}

func ListRebateMappingsByType(containerTypeID uuid.UUID) ([]models.RestaurantContainerRebate, error) {
	rows, err := database.Aqro.Query(`
		SELECT id, restaurant_id, container_type_id, rebate_value, created_at, updated_at
		FROM restaurant_container_rebates
		WHERE container_type_id = $1
		ORDER BY created_at`, containerTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []models.RestaurantContainerRebate
	for rows.Next() {
		var m models.RestaurantContainerRebate
		if err := rows.Scan(&m.ID, &m.RestaurantID, &m.ContainerTypeID, &m.RebateValue, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

func InsertRebate(tx *sql.Tx, r *models.Rebate) error {
	_, err := tx.Exec(`
		INSERT INTO rebates (container_id, customer_id, staff_id, amount, location, rebate_date)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ContainerID, r.CustomerID, r.StaffID, r.Amount, r.Location, r.Date)
	return err
}

func GetStaffRebateTotal(staffID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := database.Aqro.QueryRow(`
		SELECT COALESCE(SUM(amount), 0) FROM rebates WHERE staff_id = $1`, staffID).Scan(&total)
	return total, err
}

// GetRestaurantRebateTotal sums payouts made by the restaurant's staff.
func GetRestaurantRebateTotal(restaurantID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := database.Aqro.QueryRow(`
		SELECT COALESCE(SUM(r.amount), 0)
		FROM rebates r
		JOIN users u ON r.staff_id = u.id
		WHERE u.restaurant_id = $1`, restaurantID).Scan(&total)
	return total, err
}
