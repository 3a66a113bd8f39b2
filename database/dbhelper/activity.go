package dbhelper

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/aqro/aqro-server/database"
	"github.com/aqro/aqro-server/models"
)

func InsertActivity(tx *sql.Tx, a *models.Activity) error {
	_, err := tx.Exec(`
		INSERT INTO activities (user_id, container_id, container_type_id, restaurant_id, activity_type, amount, status, location, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.UserID, a.ContainerID, a.ContainerTypeID, a.RestaurantID,
		a.Type, a.Amount, a.Status, a.Location, a.Notes, a.CreatedAt)
	return err
}

// ListActivities applies the report filter as a conjunction: every set
// dimension narrows the result, an empty one places no restriction.
func ListActivities(filter models.ActivityFilter, limit int) ([]models.Activity, error) {
	query := `
		SELECT id, user_id, container_id, container_type_id, restaurant_id, activity_type, amount, status, location, notes, created_at
		FROM activities`

	var conditions []string
	var args []interface{}

	addCondition := func(clause string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.From != nil {
		addCondition("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		addCondition("created_at <= $%d", *filter.To)
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		addCondition("activity_type = ANY($%d)", pq.Array(types))
	}
	if len(filter.RestaurantIDs) > 0 {
		addCondition("restaurant_id = ANY($%d)", pq.Array(filter.RestaurantIDs))
	}
	if len(filter.CustomerIDs) > 0 {
		addCondition("user_id = ANY($%d)", pq.Array(filter.CustomerIDs))
	}
	if len(filter.ContainerTypeIDs) > 0 {
		addCondition("container_type_id = ANY($%d)", pq.Array(filter.ContainerTypeIDs))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := database.Aqro.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.ContainerID, &a.ContainerTypeID, &a.RestaurantID,
			&a.Type, &a.Amount, &a.Status, &a.Location, &a.Notes, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// GetCustomerStats counts the customer's containers by status plus the
// derived expired view (active with the usage ceiling reached) and sums
// their rebate payouts.
func GetCustomerStats(customerID uuid.UUID) (*models.CustomerStats, error) {
	var stats models.CustomerStats
	err := database.Aqro.QueryRow(`
		SELECT
			COUNT(*) FILTER (WHERE c.status = 'active'),
			COUNT(*) FILTER (WHERE c.status = 'returned'),
			COUNT(*) FILTER (WHERE c.status = 'lost'),
			COUNT(*) FILTER (WHERE c.status = 'damaged'),
			COUNT(*) FILTER (WHERE c.status = 'active' AND c.uses_count >= ct.max_uses)
		FROM containers c
		JOIN container_types ct ON c.container_type_id = ct.id
		WHERE c.customer_id = $1`, customerID).
		Scan(&stats.ActiveContainers, &stats.ReturnedContainers, &stats.LostContainers,
			&stats.DamagedContainers, &stats.ExpiredContainers)
	if err != nil {
		return nil, err
	}

	err = database.Aqro.QueryRow(`
		SELECT COALESCE(SUM(amount), 0) FROM rebates WHERE customer_id = $1`, customerID).
		Scan(&stats.TotalRebate)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func GetRestaurantStats(restaurantID uuid.UUID) (*models.RestaurantStats, error) {
	var stats models.RestaurantStats
	err := database.Aqro.QueryRow(`
		SELECT
			COUNT(*) FILTER (WHERE c.status = 'active'),
			COUNT(*) FILTER (WHERE c.status = 'returned'),
			COUNT(*) FILTER (WHERE c.status = 'lost'),
			COUNT(*) FILTER (WHERE c.status = 'damaged'),
			COUNT(*) FILTER (WHERE c.status = 'active' AND c.uses_count >= ct.max_uses)
		FROM containers c
		JOIN container_types ct ON c.container_type_id = ct.id
		WHERE c.restaurant_id = $1`, restaurantID).
		Scan(&stats.ActiveContainers, &stats.ReturnedContainers, &stats.LostContainers,
			&stats.DamagedContainers, &stats.ExpiredContainers)
	if err != nil {
		return nil, err
	}

	total, err := GetRestaurantRebateTotal(restaurantID)
	if err != nil {
		return nil, err
	}
	stats.TotalRebatePaid = total
	return &stats, nil
}
