package dbhelper

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aqro/aqro-server/database"
	"github.com/aqro/aqro-server/models"
)

func CreateContainerType(name, description string, maxUses int, rebateValue decimal.Decimal) (uuid.UUID, error) {
	var id uuid.UUID
	err := database.Aqro.QueryRow(`
		INSERT INTO container_types (name, description, max_uses, rebate_value)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, name, description, maxUses, rebateValue).Scan(&id)
	return id, err
}

func GetContainerTypeByID(id uuid.UUID) (*models.ContainerType, error) {
	var ct models.ContainerType
	err := database.Aqro.QueryRow(`
		SELECT id, name, description, max_uses, rebate_value, is_active, created_at
		FROM container_types
		WHERE id = $1`, id).
		Scan(&ct.ID, &ct.Name, &ct.Description, &ct.MaxUses, &ct.RebateValue, &ct.IsActive, &ct.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

func ListContainerTypes(includeInactive bool) ([]models.ContainerType, error) {
	query := `
		SELECT id, name, description, max_uses, rebate_value, is_active, created_at
		FROM container_types`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name`

	rows, err := database.Aqro.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []models.ContainerType
	for rows.Next() {
		var ct models.ContainerType
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.Description, &ct.MaxUses, &ct.RebateValue, &ct.IsActive, &ct.CreatedAt); err != nil {
			return nil, err
		}
		types = append(types, ct)
	}
	return types, rows.Err()
}

func UpdateContainerType(id uuid.UUID, name, description string, maxUses int, rebateValue decimal.Decimal, isActive bool) error {
	res, err := database.Aqro.Exec(`
		UPDATE container_types
		SET name = $2, description = $3, max_uses = $4, rebate_value = $5, is_active = $6
		WHERE id = $1`, id, name, description, maxUses, rebateValue, isActive)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func SoftDeleteContainerType(id uuid.UUID) error {
	res, err := database.Aqro.Exec(`
		UPDATE container_types SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountContainersByType guards hard deletion: a referenced type can only be
// soft-deleted.
func CountContainersByType(id uuid.UUID) (int, error) {
	var count int
	err := database.Aqro.QueryRow(`
		SELECT COUNT(*) FROM containers WHERE container_type_id = $1`, id).Scan(&count)
	return count, err
}

func HardDeleteContainerType(id uuid.UUID) error {
	_, err := database.Aqro.Exec(`DELETE FROM container_types WHERE id = $1`, id)
	return err
}
