package dbhelper

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/aqro/aqro-server/database"
	"github.com/aqro/aqro-server/engine"
	"github.com/aqro/aqro-server/models"
)

// Store adapts the package's query helpers to the engine's Store interface.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) ContainerByQRCode(_ context.Context, qrCode string) (*models.Container, error) {
	return GetContainerByQRCode(qrCode)
}

func (s *Store) ContainerByID(_ context.Context, id uuid.UUID) (*models.Container, error) {
	return GetContainerByID(id)
}

func (s *Store) ContainerTypeByID(_ context.Context, id uuid.UUID) (*models.ContainerType, error) {
	return GetContainerTypeByID(id)
}

func (s *Store) RestaurantByID(_ context.Context, id uuid.UUID) (*models.Restaurant, error) {
	return GetRestaurantByID(id)
}

func (s *Store) RebateMapping(_ context.Context, restaurantID, containerTypeID uuid.UUID) (*models.RestaurantContainerRebate, error) {
	return GetRebateMapping(restaurantID, containerTypeID)
}

func (s *Store) QRCodeExists(_ context.Context, qrCode string) (bool, error) {
	return QRCodeExists(qrCode)
}

func (s *Store) Transact(_ context.Context, fn func(tx engine.Tx) error) error {
	return database.Tx(func(tx *sql.Tx) error {
		return fn(&storeTx{tx: tx})
	})
}

// UserByID satisfies engine.UserLookup so the one Store value covers both
// capabilities.
func (s *Store) UserByID(_ context.Context, id uuid.UUID) (*models.UserInfo, error) {
	return GetUserInfoByID(id)
}

type storeTx struct {
	tx *sql.Tx
}

func (t *storeTx) ClaimContainer(containerID, customerID uuid.UUID, now time.Time) (bool, error) {
	return ClaimContainer(t.tx, containerID, customerID, now)
}

func (t *storeTx) IncrementUses(containerID uuid.UUID, maxUses int, now time.Time) (bool, error) {
	return IncrementContainerUses(t.tx, containerID, maxUses, now)
}

func (t *storeTx) SetContainerStatus(containerID uuid.UUID, status models.ContainerStatus, now time.Time) error {
	return SetContainerStatus(t.tx, containerID, status, now)
}

func (t *storeTx) UpdateContainer(cmd engine.UpdateContainerCommand) error {
	return UpdateContainer(t.tx, cmd)
}

func (t *storeTx) InsertContainer(c *models.Container) error {
	return InsertContainer(t.tx, c)
}

func (t *storeTx) InsertActivity(a *models.Activity) error {
	return InsertActivity(t.tx, a)
}

func (t *storeTx) InsertRebate(r *models.Rebate) error {
	return InsertRebate(t.tx, r)
}
