package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aqro/aqro-server/models"
)

// Engine drives the container lifecycle: register, return, rebate and
// lost/damaged marking. Every operation validates the current state, runs
// its writes in one transaction, and hands the side-channel event to the
// notifier after the commit.
type Engine struct {
	store    Store
	users    UserLookup
	notifier Notifier
}

func New(store Store, users UserLookup, notifier Notifier) *Engine {
	return &Engine{store: store, users: users, notifier: notifier}
}

// RegisterCommand assigns a scanned container to a customer.
type RegisterCommand struct {
	QRCode     string
	CustomerID uuid.UUID
}

// RegisterResult carries the soft-conflict flags: scanning a container you
// already own is a success, scanning someone else's is a reportable outcome,
// not an error.
type RegisterResult struct {
	Container          *models.Container `json:"container"`
	AlreadyRegistered  bool              `json:"alreadyRegistered"`
	OwnedByCurrentUser bool              `json:"ownedByCurrentUser"`
}

func (e *Engine) Register(ctx context.Context, cmd RegisterCommand) (*RegisterResult, error) {
	c, err := e.store.ContainerByQRCode(ctx, cmd.QRCode)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &NotFoundError{Resource: "container"}
	}

	if c.CustomerID != nil {
		owned := *c.CustomerID == cmd.CustomerID
		return &RegisterResult{
			Container:          c,
			AlreadyRegistered:  true,
			OwnedByCurrentUser: owned,
		}, nil
	}

	now := time.Now()
	claimed := false
	err = e.store.Transact(ctx, func(tx Tx) error {
		var txErr error
		claimed, txErr = tx.ClaimContainer(c.ID, cmd.CustomerID, now)
		if txErr != nil {
			return txErr
		}
		if !claimed {
			return nil
		}
		return tx.InsertActivity(&models.Activity{
			UserID:          cmd.CustomerID,
			ContainerID:     c.ID,
			ContainerTypeID: c.ContainerTypeID,
			RestaurantID:    c.RestaurantID,
			Type:            models.ActivityRegistration,
			Status:          models.ActivityCompleted,
			CreatedAt:       now,
		})
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the race to another registration between our read and the
		// conditional claim. Re-read to see who won: a double-submitted
		// scan by the same customer still owns the container.
		fresh, freshErr := e.store.ContainerByQRCode(ctx, cmd.QRCode)
		if freshErr != nil {
			return nil, freshErr
		}
		if fresh != nil {
			c = fresh
		}
		owned := c.CustomerID != nil && *c.CustomerID == cmd.CustomerID
		return &RegisterResult{Container: c, AlreadyRegistered: true, OwnedByCurrentUser: owned}, nil
	}

	c.CustomerID = &cmd.CustomerID
	c.Status = models.StatusActive
	c.RegistrationDate = &now

	e.notify(ctx, "container_registered", c, cmd.CustomerID, "", nil)

	return &RegisterResult{Container: c, AlreadyRegistered: false, OwnedByCurrentUser: true}, nil
}

// ReturnCommand records a container handed back at a staff member's
// restaurant.
type ReturnCommand struct {
	ContainerID uuid.UUID
	StaffID     uuid.UUID
}

func (e *Engine) ProcessReturn(ctx context.Context, cmd ReturnCommand) (*models.Container, error) {
	c, err := e.store.ContainerByID(ctx, cmd.ContainerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &NotFoundError{Resource: "container"}
	}
	if c.CustomerID == nil {
		return nil, &InvalidStateError{Message: "container is not registered to any customer"}
	}
	if c.Status == models.StatusReturned {
		return nil, &InvalidStateError{Message: "container has already been returned"}
	}

	restaurant, err := e.staffRestaurant(ctx, cmd.StaffID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = e.store.Transact(ctx, func(tx Tx) error {
		if txErr := tx.SetContainerStatus(c.ID, models.StatusReturned, now); txErr != nil {
			return txErr
		}
		return tx.InsertActivity(&models.Activity{
			UserID:          *c.CustomerID,
			ContainerID:     c.ID,
			ContainerTypeID: c.ContainerTypeID,
			RestaurantID:    &restaurant.ID,
			Type:            models.ActivityReturn,
			Status:          models.ActivityCompleted,
			Location:        restaurant.Name,
			CreatedAt:       now,
		})
	})
	if err != nil {
		return nil, err
	}

	c.Status = models.StatusReturned
	c.LastUsed = &now

	e.notify(ctx, "container_returned", c, *c.CustomerID, restaurant.Name, nil)

	return c, nil
}

// RebateCommand pays out one reuse rebate, priced strictly from the
// (restaurant, container type) mapping.
type RebateCommand struct {
	ContainerID uuid.UUID
	StaffID     uuid.UUID
}

type RebateResult struct {
	Container *models.Container `json:"container"`
	Amount    decimal.Decimal   `json:"amount"`
	UsesCount int               `json:"usesCount"`
	MaxUses   int               `json:"maxUses"`
}

func (e *Engine) ProcessRebate(ctx context.Context, cmd RebateCommand) (*RebateResult, error) {
	c, err := e.store.ContainerByID(ctx, cmd.ContainerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &NotFoundError{Resource: "container"}
	}
	if c.CustomerID == nil {
		return nil, &InvalidStateError{Message: "container is not registered to any customer"}
	}

	ct, err := e.store.ContainerTypeByID(ctx, c.ContainerTypeID)
	if err != nil {
		return nil, err
	}
	if ct == nil {
		return nil, &NotFoundError{Resource: "container type"}
	}
	if c.UsesCount >= ct.MaxUses {
		return nil, &InvalidStateError{
			Message:     "container has no remaining uses",
			CurrentUses: c.UsesCount,
			MaxUses:     ct.MaxUses,
		}
	}

	restaurant, err := e.staffRestaurant(ctx, cmd.StaffID)
	if err != nil {
		return nil, err
	}

	mapping, err := e.store.RebateMapping(ctx, restaurant.ID, c.ContainerTypeID)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, &NotFoundError{Resource: "rebate mapping for this restaurant and container type"}
	}

	now := time.Now()
	err = e.store.Transact(ctx, func(tx Tx) error {
		bumped, txErr := tx.IncrementUses(c.ID, ct.MaxUses, now)
		if txErr != nil {
			return txErr
		}
		if !bumped {
			return &InvalidStateError{
				Message:     "container has no remaining uses",
				CurrentUses: ct.MaxUses,
				MaxUses:     ct.MaxUses,
			}
		}
		if txErr := tx.InsertRebate(&models.Rebate{
			ContainerID: c.ID,
			CustomerID:  *c.CustomerID,
			StaffID:     cmd.StaffID,
			Amount:      mapping.RebateValue,
			Location:    restaurant.Name,
			Date:        now,
		}); txErr != nil {
			return txErr
		}
		return tx.InsertActivity(&models.Activity{
			UserID:          *c.CustomerID,
			ContainerID:     c.ID,
			ContainerTypeID: c.ContainerTypeID,
			RestaurantID:    &restaurant.ID,
			Type:            models.ActivityRebate,
			Amount:          mapping.RebateValue,
			Status:          models.ActivityCompleted,
			Location:        restaurant.Name,
			CreatedAt:       now,
		})
	})
	if err != nil {
		return nil, err
	}

	c.UsesCount++
	c.LastUsed = &now

	amount := mapping.RebateValue
	e.notify(ctx, "rebate_processed", c, *c.CustomerID, restaurant.Name, &amount)

	return &RebateResult{
		Container: c,
		Amount:    mapping.RebateValue,
		UsesCount: c.UsesCount,
		MaxUses:   ct.MaxUses,
	}, nil
}

// MarkStatusCommand flags an active container as lost or damaged.
type MarkStatusCommand struct {
	ContainerID uuid.UUID
	RequesterID uuid.UUID
	Requester   models.UserType
	NewStatus   models.ContainerStatus
}

func (e *Engine) MarkStatus(ctx context.Context, cmd MarkStatusCommand) (*models.Container, error) {
	if cmd.NewStatus != models.StatusLost && cmd.NewStatus != models.StatusDamaged {
		return nil, &InvalidStateError{Message: fmt.Sprintf("cannot mark container as %q", cmd.NewStatus)}
	}

	c, err := e.store.ContainerByID(ctx, cmd.ContainerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &NotFoundError{Resource: "container"}
	}
	if c.Status != models.StatusActive {
		return nil, &InvalidStateError{Message: fmt.Sprintf("only active containers can be marked %s, current status is %s", cmd.NewStatus, c.Status)}
	}
	if c.CustomerID == nil {
		return nil, &InvalidStateError{Message: "container is not registered to any customer"}
	}
	if cmd.Requester == models.UserTypeCustomer {
		if c.CustomerID == nil || *c.CustomerID != cmd.RequesterID {
			return nil, &AuthorizationError{Message: "container is not registered to this customer"}
		}
	}

	oldStatus := c.Status
	now := time.Now()
	err = e.store.Transact(ctx, func(tx Tx) error {
		if txErr := tx.SetContainerStatus(c.ID, cmd.NewStatus, now); txErr != nil {
			return txErr
		}
		return tx.InsertActivity(&models.Activity{
			UserID:          *c.CustomerID,
			ContainerID:     c.ID,
			ContainerTypeID: c.ContainerTypeID,
			RestaurantID:    c.RestaurantID,
			Type:            models.ActivityStatusChange,
			Status:          models.ActivityCompleted,
			Notes:           fmt.Sprintf("From %s to %s", oldStatus, cmd.NewStatus),
			CreatedAt:       now,
		})
	})
	if err != nil {
		return nil, err
	}

	c.Status = cmd.NewStatus
	c.LastUsed = &now
	return c, nil
}

// CreateContainerCommand provisions a new container under an existing type.
// Only the listed fields ever reach the row.
type CreateContainerCommand struct {
	QRCode          string
	ContainerTypeID uuid.UUID
	RestaurantID    *uuid.UUID
	PurchaseDate    *time.Time
}

func (e *Engine) CreateContainer(ctx context.Context, cmd CreateContainerCommand) (*models.Container, error) {
	ct, err := e.store.ContainerTypeByID(ctx, cmd.ContainerTypeID)
	if err != nil {
		return nil, err
	}
	if ct == nil {
		return nil, &NotFoundError{Resource: "container type"}
	}

	exists, err := e.store.QRCodeExists(ctx, cmd.QRCode)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &InvalidStateError{Message: "a container with this QR code already exists"}
	}

	now := time.Now()
	c := &models.Container{
		ID:              uuid.New(),
		QRCode:          cmd.QRCode,
		ContainerTypeID: cmd.ContainerTypeID,
		RestaurantID:    cmd.RestaurantID,
		Status:          models.StatusAvailable,
		UsesCount:       0,
		PurchaseDate:    cmd.PurchaseDate,
		CreatedAt:       now,
	}
	err = e.store.Transact(ctx, func(tx Tx) error {
		return tx.InsertContainer(c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateContainerCommand is the allow-listed admin update; nil fields are
// left unchanged. ClearCustomer distinguishes "unassign the owner" from
// "leave the owner alone". Clearing the owner is what makes a returned
// container registrable again for a new lifecycle.
type UpdateContainerCommand struct {
	ContainerID     uuid.UUID
	Status          *models.ContainerStatus
	ContainerTypeID *uuid.UUID
	CustomerID      *uuid.UUID
	ClearCustomer   bool
	RestaurantID    *uuid.UUID
}

func (e *Engine) UpdateContainer(ctx context.Context, cmd UpdateContainerCommand) (*models.Container, error) {
	c, err := e.store.ContainerByID(ctx, cmd.ContainerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &NotFoundError{Resource: "container"}
	}

	if cmd.Status != nil && !cmd.Status.IsValid() {
		return nil, &InvalidStateError{Message: fmt.Sprintf("invalid container status %q", *cmd.Status)}
	}
	if cmd.ContainerTypeID != nil {
		ct, ctErr := e.store.ContainerTypeByID(ctx, *cmd.ContainerTypeID)
		if ctErr != nil {
			return nil, ctErr
		}
		if ct == nil {
			return nil, &NotFoundError{Resource: "container type"}
		}
	}

	err = e.store.Transact(ctx, func(tx Tx) error {
		return tx.UpdateContainer(cmd)
	})
	if err != nil {
		return nil, err
	}

	return e.store.ContainerByID(ctx, cmd.ContainerID)
}

func (e *Engine) staffRestaurant(ctx context.Context, staffID uuid.UUID) (*models.Restaurant, error) {
	staff, err := e.users.UserByID(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if staff == nil {
		return nil, &NotFoundError{Resource: "staff user"}
	}
	if staff.RestaurantID == nil {
		return nil, &AuthorizationError{Message: "staff member is not assigned to a restaurant"}
	}
	restaurant, err := e.store.RestaurantByID(ctx, *staff.RestaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		return nil, &NotFoundError{Resource: "restaurant"}
	}
	return restaurant, nil
}

// notify assembles the side-channel payload and hands it off. Everything in
// here is best-effort: a failed email lookup only degrades the payload.
func (e *Engine) notify(ctx context.Context, event string, c *models.Container, customerID uuid.UUID, restaurant string, amount *decimal.Decimal) {
	if e.notifier == nil {
		return
	}

	email := ""
	if customer, err := e.users.UserByID(ctx, customerID); err != nil {
		logrus.WithError(err).Warn("could not resolve customer for notification")
	} else if customer != nil {
		email = customer.Email
	}

	typeName := ""
	if ct, err := e.store.ContainerTypeByID(ctx, c.ContainerTypeID); err == nil && ct != nil {
		typeName = ct.Name
	}

	e.notifier.Notify(models.Notification{
		Event:         event,
		CustomerID:    customerID,
		Email:         email,
		ContainerID:   c.ID,
		ContainerType: typeName,
		Restaurant:    restaurant,
		Amount:        amount,
		Timestamp:     time.Now(),
	})
}
