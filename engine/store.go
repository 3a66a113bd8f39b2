package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aqro/aqro-server/models"
)

// Store is the persistence surface the engine runs against. Reads happen
// outside the write unit; every write of one operation goes through a
// single Transact closure so the container mutation, the ledger row and
// the rebate row commit or fail together.
//
// Lookup methods return (nil, nil) when the row does not exist; the engine
// turns absence into its own NotFoundError.
type Store interface {
	ContainerByQRCode(ctx context.Context, qrCode string) (*models.Container, error)
	ContainerByID(ctx context.Context, id uuid.UUID) (*models.Container, error)
	ContainerTypeByID(ctx context.Context, id uuid.UUID) (*models.ContainerType, error)
	RestaurantByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	RebateMapping(ctx context.Context, restaurantID, containerTypeID uuid.UUID) (*models.RestaurantContainerRebate, error)
	QRCodeExists(ctx context.Context, qrCode string) (bool, error)

	Transact(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write half of the store, scoped to one transaction.
//
// ClaimContainer and IncrementUses are conditional writes: they report
// false instead of mutating when the guard no longer holds, which is what
// keeps concurrent registrations and rebates from overwriting each other.
type Tx interface {
	// ClaimContainer assigns the container to the customer and activates
	// it, only if no customer holds it. Returns false when the claim lost.
	ClaimContainer(containerID, customerID uuid.UUID, now time.Time) (bool, error)

	// IncrementUses bumps the usage counter and stamps lastUsed, only
	// while usesCount < maxUses. Returns false when the ceiling was hit.
	IncrementUses(containerID uuid.UUID, maxUses int, now time.Time) (bool, error)

	SetContainerStatus(containerID uuid.UUID, status models.ContainerStatus, now time.Time) error
	UpdateContainer(cmd UpdateContainerCommand) error
	InsertContainer(c *models.Container) error
	InsertActivity(a *models.Activity) error
	InsertRebate(r *models.Rebate) error
}

// UserLookup resolves the identity facts the engine needs about a user.
// Injected so the engine never reaches into a global user registry.
type UserLookup interface {
	UserByID(ctx context.Context, id uuid.UUID) (*models.UserInfo, error)
}

// Notifier receives the best-effort side-channel event after a commit.
// Implementations must not block and must swallow their own failures.
type Notifier interface {
	Notify(n models.Notification)
}
