package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aqro/aqro-server/models"
)

type fakeStore struct {
	containers  map[uuid.UUID]*models.Container
	byQR        map[string]uuid.UUID
	types       map[uuid.UUID]*models.ContainerType
	restaurants map[uuid.UUID]*models.Restaurant
	mappings    map[string]*models.RestaurantContainerRebate

	activities []models.Activity
	rebates    []models.Rebate
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		containers:  make(map[uuid.UUID]*models.Container),
		byQR:        make(map[string]uuid.UUID),
		types:       make(map[uuid.UUID]*models.ContainerType),
		restaurants: make(map[uuid.UUID]*models.Restaurant),
		mappings:    make(map[string]*models.RestaurantContainerRebate),
	}
}

func mappingKey(restaurantID, containerTypeID uuid.UUID) string {
	return restaurantID.String() + "|" + containerTypeID.String()
}

func (s *fakeStore) ContainerByQRCode(_ context.Context, qrCode string) (*models.Container, error) {
	id, ok := s.byQR[qrCode]
	if !ok {
		return nil, nil
	}
	c := *s.containers[id]
	return &c, nil
}

func (s *fakeStore) ContainerByID(_ context.Context, id uuid.UUID) (*models.Container, error) {
	c, ok := s.containers[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) ContainerTypeByID(_ context.Context, id uuid.UUID) (*models.ContainerType, error) {
	ct, ok := s.types[id]
	if !ok {
		return nil, nil
	}
	return ct, nil
}

func (s *fakeStore) RestaurantByID(_ context.Context, id uuid.UUID) (*models.Restaurant, error) {
	r, ok := s.restaurants[id]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (s *fakeStore) RebateMapping(_ context.Context, restaurantID, containerTypeID uuid.UUID) (*models.RestaurantContainerRebate, error) {
	m, ok := s.mappings[mappingKey(restaurantID, containerTypeID)]
	if !ok {
		return nil, nil
	}
	return m, nil
}

func (s *fakeStore) QRCodeExists(_ context.Context, qrCode string) (bool, error) {
	_, ok := s.byQR[qrCode]
	return ok, nil
}

func (s *fakeStore) Transact(_ context.Context, fn func(tx Tx) error) error {
	return fn(s)
}

func (s *fakeStore) ClaimContainer(containerID, customerID uuid.UUID, now time.Time) (bool, error) {
	c := s.containers[containerID]
	if c.CustomerID != nil {
		return false, nil
	}
	c.CustomerID = &customerID
	c.Status = models.StatusActive
	c.RegistrationDate = &now
	return true, nil
}

func (s *fakeStore) IncrementUses(containerID uuid.UUID, maxUses int, now time.Time) (bool, error) {
	c := s.containers[containerID]
	if c.UsesCount >= maxUses {
		return false, nil
	}
	c.UsesCount++
	c.LastUsed = &now
	return true, nil
}

func (s *fakeStore) SetContainerStatus(containerID uuid.UUID, status models.ContainerStatus, now time.Time) error {
	c := s.containers[containerID]
	c.Status = status
	c.LastUsed = &now
	return nil
}

func (s *fakeStore) UpdateContainer(cmd UpdateContainerCommand) error {
	c := s.containers[cmd.ContainerID]
	if cmd.Status != nil {
		c.Status = *cmd.Status
	}
	if cmd.ContainerTypeID != nil {
		c.ContainerTypeID = *cmd.ContainerTypeID
	}
	if cmd.ClearCustomer {
		c.CustomerID = nil
	} else if cmd.CustomerID != nil {
		c.CustomerID = cmd.CustomerID
	}
	if cmd.RestaurantID != nil {
		c.RestaurantID = cmd.RestaurantID
	}
	return nil
}

func (s *fakeStore) InsertContainer(c *models.Container) error {
	cp := *c
	s.containers[c.ID] = &cp
	s.byQR[c.QRCode] = c.ID
	return nil
}

func (s *fakeStore) InsertActivity(a *models.Activity) error {
	s.activities = append(s.activities, *a)
	return nil
}

func (s *fakeStore) InsertRebate(r *models.Rebate) error {
	s.rebates = append(s.rebates, *r)
	return nil
}

func (s *fakeStore) activitiesOfType(t models.ActivityType) []models.Activity {
	var out []models.Activity
	for _, a := range s.activities {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

type fakeUsers struct {
	users map[uuid.UUID]*models.UserInfo
}

func (f *fakeUsers) UserByID(_ context.Context, id uuid.UUID) (*models.UserInfo, error) {
	return f.users[id], nil
}

type recordingNotifier struct {
	events []models.Notification
}

func (n *recordingNotifier) Notify(ev models.Notification) {
	n.events = append(n.events, ev)
}

type fixture struct {
	store    *fakeStore
	users    *fakeUsers
	notifier *recordingNotifier
	engine   *Engine

	customerID   uuid.UUID
	otherID      uuid.UUID
	staffID      uuid.UUID
	restaurantID uuid.UUID
	typeID       uuid.UUID
	containerID  uuid.UUID
	qrCode       string
}

func newFixture(t *testing.T, maxUses int) *fixture {
	t.Helper()

	f := &fixture{
		store:        newFakeStore(),
		users:        &fakeUsers{users: make(map[uuid.UUID]*models.UserInfo)},
		notifier:     &recordingNotifier{},
		customerID:   uuid.New(),
		otherID:      uuid.New(),
		staffID:      uuid.New(),
		restaurantID: uuid.New(),
		typeID:       uuid.New(),
		containerID:  uuid.New(),
		qrCode:       "AQRO-AB12CD-123456",
	}
	f.engine = New(f.store, f.users, f.notifier)

	f.store.restaurants[f.restaurantID] = &models.Restaurant{ID: f.restaurantID, Name: "Green Fork", IsActive: true}
	f.store.types[f.typeID] = &models.ContainerType{ID: f.typeID, Name: "Coffee Cup", MaxUses: maxUses, IsActive: true}
	f.store.containers[f.containerID] = &models.Container{
		ID:              f.containerID,
		QRCode:          f.qrCode,
		ContainerTypeID: f.typeID,
		Status:          models.StatusAvailable,
	}
	f.store.byQR[f.qrCode] = f.containerID

	f.users.users[f.customerID] = &models.UserInfo{ID: f.customerID, Email: "customer@example.com", UserType: models.UserTypeCustomer}
	f.users.users[f.otherID] = &models.UserInfo{ID: f.otherID, Email: "other@example.com", UserType: models.UserTypeCustomer}
	f.users.users[f.staffID] = &models.UserInfo{ID: f.staffID, Email: "staff@example.com", UserType: models.UserTypeStaff, RestaurantID: &f.restaurantID}

	return f
}

func (f *fixture) register(t *testing.T, customerID uuid.UUID) *RegisterResult {
	t.Helper()
	res, err := f.engine.Register(context.Background(), RegisterCommand{QRCode: f.qrCode, CustomerID: customerID})
	require.NoError(t, err)
	return res
}

func (f *fixture) setMapping(value string) {
	v := decimal.RequireFromString(value)
	f.store.mappings[mappingKey(f.restaurantID, f.typeID)] = &models.RestaurantContainerRebate{
		ID:              uuid.New(),
		RestaurantID:    f.restaurantID,
		ContainerTypeID: f.typeID,
		RebateValue:     v,
	}
}

func TestRegisterIsIdempotentForOwner(t *testing.T) {
	f := newFixture(t, 3)

	first := f.register(t, f.customerID)
	require.False(t, first.AlreadyRegistered)
	require.True(t, first.OwnedByCurrentUser)

	second := f.register(t, f.customerID)
	require.True(t, second.AlreadyRegistered)
	require.True(t, second.OwnedByCurrentUser)

	require.Len(t, f.store.activitiesOfType(models.ActivityRegistration), 1)
}

func TestRegisterForeignContainerIsSoftConflict(t *testing.T) {
	f := newFixture(t, 3)

	f.register(t, f.customerID)
	res := f.register(t, f.otherID)

	require.True(t, res.AlreadyRegistered)
	require.False(t, res.OwnedByCurrentUser)

	c := f.store.containers[f.containerID]
	require.Equal(t, f.customerID, *c.CustomerID)
	require.Len(t, f.store.activitiesOfType(models.ActivityRegistration), 1)
}

// staleReadStore serves the first container read from a snapshot while
// writes and later reads go to the live store, reproducing a racing
// registration that lands between the engine's read and its conditional
// claim.
type staleReadStore struct {
	*fakeStore
	snapshot models.Container
	reads    int
}

func (s *staleReadStore) ContainerByQRCode(ctx context.Context, qrCode string) (*models.Container, error) {
	s.reads++
	if s.reads == 1 {
		cp := s.snapshot
		return &cp, nil
	}
	return s.fakeStore.ContainerByQRCode(ctx, qrCode)
}

func TestRegisterRaceLoserGetsSoftConflict(t *testing.T) {
	f := newFixture(t, 3)

	stale := &staleReadStore{fakeStore: f.store, snapshot: *f.store.containers[f.containerID]}
	f.engine = New(stale, f.users, f.notifier)

	// The other customer wins before our claim runs.
	winner := f.otherID
	claimed, err := f.store.ClaimContainer(f.containerID, winner, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	res := f.register(t, f.customerID)
	require.True(t, res.AlreadyRegistered)
	require.False(t, res.OwnedByCurrentUser)
	require.Equal(t, winner, *f.store.containers[f.containerID].CustomerID)
	require.Len(t, f.store.activitiesOfType(models.ActivityRegistration), 0)
}

func TestRegisterRaceDoubleSubmitReportsOwnership(t *testing.T) {
	f := newFixture(t, 3)

	stale := &staleReadStore{fakeStore: f.store, snapshot: *f.store.containers[f.containerID]}
	f.engine = New(stale, f.users, f.notifier)

	// The same customer's earlier submission wins between our read and the
	// claim. The loser must still be told the container is theirs.
	claimed, err := f.store.ClaimContainer(f.containerID, f.customerID, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	res := f.register(t, f.customerID)
	require.True(t, res.AlreadyRegistered)
	require.True(t, res.OwnedByCurrentUser)
	require.Len(t, f.store.activitiesOfType(models.ActivityRegistration), 0)
}

func TestClearedOwnerAllowsNewCycle(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, f.customerID)

	_, err := f.engine.ProcessReturn(context.Background(), ReturnCommand{ContainerID: f.containerID, StaffID: f.staffID})
	require.NoError(t, err)

	// A return leaves the owner on record for history.
	require.NotNil(t, f.store.containers[f.containerID].CustomerID)

	c, err := f.engine.UpdateContainer(context.Background(), UpdateContainerCommand{
		ContainerID:   f.containerID,
		ClearCustomer: true,
	})
	require.NoError(t, err)
	require.Nil(t, c.CustomerID)

	res := f.register(t, f.otherID)
	require.False(t, res.AlreadyRegistered)
	require.True(t, res.OwnedByCurrentUser)
	require.Equal(t, f.otherID, *f.store.containers[f.containerID].CustomerID)
	require.Len(t, f.store.activitiesOfType(models.ActivityRegistration), 2)
}

func TestRegisterUnknownQRCode(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.engine.Register(context.Background(), RegisterCommand{QRCode: "AQRO-ZZZZZZ-000000", CustomerID: f.customerID})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRebateCeiling(t *testing.T) {
	f := newFixture(t, 3)
	f.setMapping("1.50")
	f.register(t, f.customerID)

	for i := 0; i < 3; i++ {
		res, err := f.engine.ProcessRebate(context.Background(), RebateCommand{ContainerID: f.containerID, StaffID: f.staffID})
		require.NoError(t, err)
		require.Equal(t, i+1, res.UsesCount)
	}

	_, err := f.engine.ProcessRebate(context.Background(), RebateCommand{ContainerID: f.containerID, StaffID: f.staffID})
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, 3, invalid.CurrentUses)
	require.Equal(t, 3, invalid.MaxUses)

	require.Equal(t, 3, f.store.containers[f.containerID].UsesCount)
	require.Len(t, f.store.rebates, 3)
}

func TestRebateAmountComesFromMapping(t *testing.T) {
	f := newFixture(t, 3)
	f.setMapping("1.50")
	// legacy default must never be used
	f.store.types[f.typeID].RebateValue = decimal.RequireFromString("9.99")
	f.register(t, f.customerID)

	res, err := f.engine.ProcessRebate(context.Background(), RebateCommand{ContainerID: f.containerID, StaffID: f.staffID})
	require.NoError(t, err)
	require.True(t, res.Amount.Equal(decimal.RequireFromString("1.50")))

	require.Len(t, f.store.rebates, 1)
	require.True(t, f.store.rebates[0].Amount.Equal(decimal.RequireFromString("1.50")))

	rebateActivities := f.store.activitiesOfType(models.ActivityRebate)
	require.Len(t, rebateActivities, 1)
	require.True(t, rebateActivities[0].Amount.Equal(decimal.RequireFromString("1.50")))
}

func TestRebateWithoutMappingHardFails(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, f.customerID)
	activitiesBefore := len(f.store.activities)

	_, err := f.engine.ProcessRebate(context.Background(), RebateCommand{ContainerID: f.containerID, StaffID: f.staffID})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	require.Len(t, f.store.rebates, 0)
	require.Len(t, f.store.activities, activitiesBefore)
	require.Equal(t, 0, f.store.containers[f.containerID].UsesCount)
}

func TestRebateRequiresStaffRestaurant(t *testing.T) {
	f := newFixture(t, 3)
	f.setMapping("1.50")
	f.register(t, f.customerID)

	orphanStaff := uuid.New()
	f.users.users[orphanStaff] = &models.UserInfo{ID: orphanStaff, UserType: models.UserTypeStaff}

	_, err := f.engine.ProcessRebate(context.Background(), RebateCommand{ContainerID: f.containerID, StaffID: orphanStaff})
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestReturnIsNotIdempotent(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, f.customerID)

	c, err := f.engine.ProcessReturn(context.Background(), ReturnCommand{ContainerID: f.containerID, StaffID: f.staffID})
	require.NoError(t, err)
	require.Equal(t, models.StatusReturned, c.Status)

	_, err = f.engine.ProcessReturn(context.Background(), ReturnCommand{ContainerID: f.containerID, StaffID: f.staffID})
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)

	returns := f.store.activitiesOfType(models.ActivityReturn)
	require.Len(t, returns, 1)
	require.Equal(t, "Green Fork", returns[0].Location)
}

func TestReturnUnregisteredContainer(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.engine.ProcessReturn(context.Background(), ReturnCommand{ContainerID: f.containerID, StaffID: f.staffID})
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)
}

func TestMarkStatusPreconditions(t *testing.T) {
	f := newFixture(t, 3)

	// available containers cannot be marked damaged
	_, err := f.engine.MarkStatus(context.Background(), MarkStatusCommand{
		ContainerID: f.containerID,
		RequesterID: f.customerID,
		Requester:   models.UserTypeCustomer,
		NewStatus:   models.StatusDamaged,
	})
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)

	f.register(t, f.customerID)

	c, err := f.engine.MarkStatus(context.Background(), MarkStatusCommand{
		ContainerID: f.containerID,
		RequesterID: f.customerID,
		Requester:   models.UserTypeCustomer,
		NewStatus:   models.StatusDamaged,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusDamaged, c.Status)

	changes := f.store.activitiesOfType(models.ActivityStatusChange)
	require.Len(t, changes, 1)
	require.Equal(t, "From active to damaged", changes[0].Notes)
}

func TestMarkStatusRequiresOwnership(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, f.customerID)

	_, err := f.engine.MarkStatus(context.Background(), MarkStatusCommand{
		ContainerID: f.containerID,
		RequesterID: f.otherID,
		Requester:   models.UserTypeCustomer,
		NewStatus:   models.StatusLost,
	})
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestMarkStatusRejectsArbitraryStatus(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, f.customerID)

	_, err := f.engine.MarkStatus(context.Background(), MarkStatusCommand{
		ContainerID: f.containerID,
		RequesterID: f.customerID,
		Requester:   models.UserTypeCustomer,
		NewStatus:   models.StatusReturned,
	})
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)
}

func TestExpiredContainerCanStillBeReturned(t *testing.T) {
	f := newFixture(t, 1)
	f.setMapping("0.75")
	f.register(t, f.customerID)

	_, err := f.engine.ProcessRebate(context.Background(), RebateCommand{ContainerID: f.containerID, StaffID: f.staffID})
	require.NoError(t, err)

	c := f.store.containers[f.containerID]
	require.True(t, c.IsExpired(1))
	require.Equal(t, models.StatusActive, c.Status)

	// further rebates are refused but a return still goes through
	_, err = f.engine.ProcessRebate(context.Background(), RebateCommand{ContainerID: f.containerID, StaffID: f.staffID})
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)

	returned, err := f.engine.ProcessReturn(context.Background(), ReturnCommand{ContainerID: f.containerID, StaffID: f.staffID})
	require.NoError(t, err)
	require.Equal(t, models.StatusReturned, returned.Status)
}

func TestCreateContainer(t *testing.T) {
	f := newFixture(t, 3)

	c, err := f.engine.CreateContainer(context.Background(), CreateContainerCommand{
		QRCode:          "AQRO-NEW111-654321",
		ContainerTypeID: f.typeID,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusAvailable, c.Status)
	require.Equal(t, 0, c.UsesCount)
	require.Nil(t, c.CustomerID)

	// duplicate QR codes are rejected up front
	_, err = f.engine.CreateContainer(context.Background(), CreateContainerCommand{
		QRCode:          "AQRO-NEW111-654321",
		ContainerTypeID: f.typeID,
	})
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)

	// unknown container type is a hard stop
	_, err = f.engine.CreateContainer(context.Background(), CreateContainerCommand{
		QRCode:          "AQRO-NEW222-654321",
		ContainerTypeID: uuid.New(),
	})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestNotificationsFireOnTransactions(t *testing.T) {
	f := newFixture(t, 3)
	f.setMapping("1.50")

	f.register(t, f.customerID)
	_, err := f.engine.ProcessRebate(context.Background(), RebateCommand{ContainerID: f.containerID, StaffID: f.staffID})
	require.NoError(t, err)
	_, err = f.engine.ProcessReturn(context.Background(), ReturnCommand{ContainerID: f.containerID, StaffID: f.staffID})
	require.NoError(t, err)

	require.Len(t, f.notifier.events, 3)
	require.Equal(t, "container_registered", f.notifier.events[0].Event)
	require.Equal(t, "rebate_processed", f.notifier.events[1].Event)
	require.Equal(t, "container_returned", f.notifier.events[2].Event)

	require.Equal(t, "customer@example.com", f.notifier.events[0].Email)
	require.NotNil(t, f.notifier.events[1].Amount)
	require.True(t, f.notifier.events[1].Amount.Equal(decimal.RequireFromString("1.50")))
}

func TestNilNotifierIsTolerated(t *testing.T) {
	f := newFixture(t, 3)
	f.engine = New(f.store, f.users, nil)

	res := f.register(t, f.customerID)
	require.True(t, res.OwnedByCurrentUser)
}

func TestRebateActivityAndRowStayConsistent(t *testing.T) {
	f := newFixture(t, 5)
	f.setMapping("2.25")
	f.register(t, f.customerID)

	for i := 0; i < 5; i++ {
		_, err := f.engine.ProcessRebate(context.Background(), RebateCommand{ContainerID: f.containerID, StaffID: f.staffID})
		require.NoError(t, err, fmt.Sprintf("rebate %d", i+1))
	}

	require.Len(t, f.store.rebates, 5)
	require.Len(t, f.store.activitiesOfType(models.ActivityRebate), 5)
	for i, r := range f.store.rebates {
		require.True(t, r.Amount.Equal(decimal.RequireFromString("2.25")))
		require.True(t, f.store.activitiesOfType(models.ActivityRebate)[i].Amount.Equal(r.Amount))
	}
}
