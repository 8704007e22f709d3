package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldwork/taskd/internal/models"
	"github.com/fieldwork/taskd/internal/realtime"
)

type fakeStore struct {
	created []models.Notification
	failFor map[primitive.ObjectID]bool
}

func (f *fakeStore) CreateNotification(_ context.Context, n models.Notification) (models.Notification, error) {
	if f.failFor[n.UserID] {
		return models.Notification{}, errors.New("write rejected")
	}
	n.ID = primitive.NewObjectID()
	n.CreatedAt = time.Now().UTC()
	f.created = append(f.created, n)
	return n, nil
}

type fakeDirectory struct {
	byRole map[models.Role][]models.User
	active []primitive.ObjectID
}

func (f *fakeDirectory) ListUsersByRole(_ context.Context, role models.Role, _ bool) ([]models.User, error) {
	return f.byRole[role], nil
}

func (f *fakeDirectory) ListActiveUserIDs(_ context.Context) ([]primitive.ObjectID, error) {
	return f.active, nil
}

type publishedEvent struct {
	room  string
	event string
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (f *fakePublisher) Publish(room, event string, _ interface{}) error {
	f.events = append(f.events, publishedEvent{room: room, event: event})
	return f.err
}

type fakePresence struct {
	present map[string]bool
}

func (f *fakePresence) IsPresent(userID string) bool {
	return f.present[userID]
}

func newTestDispatcher(store *fakeStore, dir *fakeDirectory, pub *fakePublisher, pres *fakePresence) *Dispatcher {
	if store.failFor == nil {
		store.failFor = map[primitive.ObjectID]bool{}
	}
	if pres.present == nil {
		pres.present = map[string]bool{}
	}
	return NewDispatcher(store, dir, pub, pres, nil)
}

func TestNotifyUserAlwaysReturnsPersistedRecord(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	d := newTestDispatcher(store, &fakeDirectory{}, pub, &fakePresence{})

	// Target absent from presence: record persists, nothing pushed.
	userID := primitive.NewObjectID()
	n, err := d.NotifyUser(context.Background(), userID, Payload{Title: "t", Message: "m", Type: models.NotifyInfo})
	require.NoError(t, err)
	assert.False(t, n.ID.IsZero())
	assert.False(t, n.CreatedAt.IsZero())
	assert.Empty(t, pub.events)
}

func TestNotifyUserPushesWhenPresent(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	userID := primitive.NewObjectID()
	pres := &fakePresence{present: map[string]bool{userID.Hex(): true}}
	d := newTestDispatcher(store, &fakeDirectory{}, pub, pres)

	_, err := d.NotifyUser(context.Background(), userID, Payload{Title: "t"})
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, realtime.UserRoom(userID.Hex()), pub.events[0].room)
	assert.Equal(t, EventNotification, pub.events[0].event)
}

func TestNotifyUserPushFailureIsNotAnError(t *testing.T) {
	store := &fakeStore{}
	userID := primitive.NewObjectID()
	pub := &fakePublisher{err: errors.New("transport down")}
	pres := &fakePresence{present: map[string]bool{userID.Hex(): true}}
	d := newTestDispatcher(store, &fakeDirectory{}, pub, pres)

	n, err := d.NotifyUser(context.Background(), userID, Payload{Title: "t"})
	require.NoError(t, err)
	assert.False(t, n.ID.IsZero())
}

func TestNotifyUsersIsolatesFailures(t *testing.T) {
	a, b, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	store := &fakeStore{failFor: map[primitive.ObjectID]bool{b: true}}
	d := newTestDispatcher(store, &fakeDirectory{}, &fakePublisher{}, &fakePresence{})

	persisted, err := d.NotifyUsers(context.Background(), []primitive.ObjectID{a, b, c}, Payload{Title: "t"})
	require.Error(t, err)
	require.Len(t, persisted, 2)
	assert.Equal(t, a, persisted[0].UserID)
	assert.Equal(t, c, persisted[1].UserID)
}

func TestNotifyRolePersistsForAllPushesToPresent(t *testing.T) {
	m1, m2, m3 := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	store := &fakeStore{}
	dir := &fakeDirectory{byRole: map[models.Role][]models.User{
		models.RoleManager: {{ID: m1}, {ID: m2}, {ID: m3}},
	}}
	pub := &fakePublisher{}
	// M2 has no open connection.
	pres := &fakePresence{present: map[string]bool{m1.Hex(): true, m3.Hex(): true}}
	d := newTestDispatcher(store, dir, pub, pres)

	persisted, err := d.NotifyRole(context.Background(), models.RoleManager, Payload{Title: "t"})
	require.NoError(t, err)
	assert.Len(t, persisted, 3)

	rooms := make([]string, 0, len(pub.events))
	for _, e := range pub.events {
		rooms = append(rooms, e.room)
	}
	assert.Contains(t, rooms, realtime.UserRoom(m1.Hex()))
	assert.Contains(t, rooms, realtime.UserRoom(m3.Hex()))
	assert.NotContains(t, rooms, realtime.UserRoom(m2.Hex()))
	assert.Contains(t, rooms, realtime.RoleRoom(models.RoleManager))
}

func TestNotifyAllBroadcastsGlobally(t *testing.T) {
	u1, u2 := primitive.NewObjectID(), primitive.NewObjectID()
	store := &fakeStore{}
	dir := &fakeDirectory{active: []primitive.ObjectID{u1, u2}}
	pub := &fakePublisher{}
	d := newTestDispatcher(store, dir, pub, &fakePresence{})

	persisted, err := d.NotifyAll(context.Background(), Payload{Title: "t"})
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
	require.NotEmpty(t, pub.events)
	assert.Equal(t, realtime.RoomGlobal, pub.events[len(pub.events)-1].room)
}
