package dbhelper

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aqro/aqro-server/database"
	"github.com/aqro/aqro-server/engine"
	"github.com/aqro/aqro-server/models"
)

const containerColumns = `
	id, qr_code, container_type_id, customer_id, restaurant_id, status,
	uses_count, registration_date, last_used, purchase_date, created_at`

func scanContainer(row *sql.Row) (*models.Container, error) {
	var c models.Container
	err := row.Scan(
		&c.ID, &c.QRCode, &c.ContainerTypeID, &c.CustomerID, &c.RestaurantID,
		&c.Status, &c.UsesCount, &c.RegistrationDate, &c.LastUsed,
		&c.PurchaseDate, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func GetContainerByQRCode(qrCode string) (*models.Container, error) {
	return scanContainer(database.Aqro.QueryRow(`
		SELECT`+containerColumns+`
		FROM containers
		WHERE qr_code = $1`, qrCode))
}

func GetContainerByID(id uuid.UUID) (*models.Container, error) {
	return scanContainer(database.Aqro.QueryRow(`
		SELECT`+containerColumns+`
		FROM containers
		WHERE id = $1`, id))
}

func QRCodeExists(qrCode string) (bool, error) {
	var exists bool
	err := database.Aqro.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM containers WHERE qr_code = $1)`, qrCode).Scan(&exists)
	return exists, err
}

func InsertContainer(tx *sql.Tx, c *models.Container) error {
	_, err := tx.Exec(`
		INSERT INTO containers (id, qr_code, container_type_id, customer_id, restaurant_id, status, uses_count, purchase_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.QRCode, c.ContainerTypeID, c.CustomerID, c.RestaurantID,
		c.Status, c.UsesCount, c.PurchaseDate, c.CreatedAt)
	return err
}

// ClaimContainer assigns the container to a customer only while no one
// holds it. The WHERE clause is the race guard: concurrent registrations
// see zero rows affected and lose cleanly.
func ClaimContainer(tx *sql.Tx, containerID, customerID uuid.UUID, now time.Time) (bool, error) {
	res, err := tx.Exec(`
		UPDATE containers
		SET customer_id = $2, status = 'active', registration_date = $3
		WHERE id = $1 AND customer_id IS NULL`, containerID, customerID, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// IncrementContainerUses bumps the counter only while it is below the
// ceiling, so the ceiling can never be crossed by concurrent rebates.
func IncrementContainerUses(tx *sql.Tx, containerID uuid.UUID, maxUses int, now time.Time) (bool, error) {
	res, err := tx.Exec(`
		UPDATE containers
		SET uses_count = uses_count + 1, last_used = $3
		WHERE id = $1 AND uses_count < $2`, containerID, maxUses, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func SetContainerStatus(tx *sql.Tx, containerID uuid.UUID, status models.ContainerStatus, now time.Time) error {
	_, err := tx.Exec(`
		UPDATE containers
		SET status = $2, last_used = $3
		WHERE id = $1`, containerID, status, now)
	return err
}

// UpdateContainer applies the allow-listed admin update. COALESCE leaves
// nil fields unchanged; the CASE arm writes an explicit NULL when the
// owner is being cleared, which is the only way customer_id ever becomes
// claimable again.
func UpdateContainer(tx *sql.Tx, cmd engine.UpdateContainerCommand) error {
	_, err := tx.Exec(`
		UPDATE containers
		SET status = COALESCE($2, status),
			container_type_id = COALESCE($3, container_type_id),
			customer_id = CASE WHEN $4 THEN NULL ELSE COALESCE($5, customer_id) END,
			restaurant_id = COALESCE($6, restaurant_id)
		WHERE id = $1`,
		cmd.ContainerID, cmd.Status, cmd.ContainerTypeID, cmd.ClearCustomer, cmd.CustomerID, cmd.RestaurantID)
	return err
}

func ListContainersByCustomer(customerID uuid.UUID) ([]models.Container, error) {
	rows, err := database.Aqro.Query(`
		SELECT`+containerColumns+`
		FROM containers
		WHERE customer_id = $1
		ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var containers []models.Container
	for rows.Next() {
		var c models.Container
		if err := rows.Scan(
			&c.ID, &c.QRCode, &c.ContainerTypeID, &c.CustomerID, &c.RestaurantID,
			&c.Status, &c.UsesCount, &c.RegistrationDate, &c.LastUsed,
			&c.PurchaseDate, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		containers = append(containers, c)
	}
	return containers, rows.Err()
}
