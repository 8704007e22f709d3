// Package notify implements the notification dispatcher: the single path by
// which any component causes users to receive a notification. Every dispatch
// is durably recorded before any real-time push; the push itself is
// best-effort and its failure never reaches the caller.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldwork/taskd/internal/models"
	"github.com/fieldwork/taskd/internal/realtime"
)

// EventNotification is the event name used for every notification publish.
const EventNotification = "notification"

// Payload carries the client-supplied notification content. Identity, read
// state and the creation timestamp are filled in by persistence.
type Payload struct {
	Title     string
	Message   string
	Type      models.NotificationType
	Priority  models.Priority
	Category  string
	ExpiresAt *time.Time
}

// Store persists notification records.
type Store interface {
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
}

// Directory resolves notification targets from the user collection.
type Directory interface {
	ListUsersByRole(ctx context.Context, role models.Role, activeOnly bool) ([]models.User, error)
	ListActiveUserIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

// Publisher pushes an event into a room.
type Publisher interface {
	Publish(room, event string, payload interface{}) error
}

// Presence answers whether a user currently holds an open connection.
type Presence interface {
	IsPresent(userID string) bool
}

// Dispatcher persists notifications and pushes them to present users. All
// collaborators are injected at construction; there is no ambient global.
type Dispatcher struct {
	store     Store
	directory Directory
	publisher Publisher
	presence  Presence
	logger    *slog.Logger
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(store Store, directory Directory, publisher Publisher, presence Presence, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, directory: directory, publisher: publisher, presence: presence, logger: logger}
}

// NotifyUser persists one notification and, if the target is present,
// publishes the persisted record to the user's room. The persisted record is
// returned regardless of delivery outcome; a push failure is logged only.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID primitive.ObjectID, p Payload) (models.Notification, error) {
	n, err := d.store.CreateNotification(ctx, models.Notification{
		UserID:    userID,
		Title:     p.Title,
		Message:   p.Message,
		Type:      p.Type,
		Priority:  p.Priority,
		Category:  p.Category,
		ExpiresAt: p.ExpiresAt,
	})
	if err != nil {
		return models.Notification{}, err
	}

	uid := userID.Hex()
	if d.presence.IsPresent(uid) {
		if err := d.publisher.Publish(realtime.UserRoom(uid), EventNotification, n); err != nil {
			d.logger.Warn("realtime push failed",
				slog.String("user", uid), slog.String("error", err.Error()))
		}
	}
	return n, nil
}

// NotifyUsers fans NotifyUser out over the targets. Each target is attempted
// independently: one failed persistence never aborts the rest and never
// rolls back the successes. The failures come back collected alongside the
// records that did persist.
func (d *Dispatcher) NotifyUsers(ctx context.Context, userIDs []primitive.ObjectID, p Payload) ([]models.Notification, error) {
	var (
		persisted []models.Notification
		errs      *multierror.Error
	)
	for _, id := range userIDs {
		n, err := d.NotifyUser(ctx, id, p)
		if err != nil {
			d.logger.Error("notification persistence failed",
				slog.String("user", id.Hex()), slog.String("error", err.Error()))
			errs = multierror.Append(errs, err)
			continue
		}
		persisted = append(persisted, n)
	}
	return persisted, errs.ErrorOrNil()
}

// NotifyRole notifies every active user holding the role, then publishes
// once to the shared role room. The extra room publish covers connections
// whose user was absent from the resolved list, an accepted
// eventual-consistency gap.
func (d *Dispatcher) NotifyRole(ctx context.Context, role models.Role, p Payload) ([]models.Notification, error) {
	users, err := d.directory.ListUsersByRole(ctx, role, true)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	persisted, errs := d.NotifyUsers(ctx, ids, p)

	if err := d.publisher.Publish(realtime.RoleRoom(role), EventNotification, p); err != nil {
		d.logger.Warn("role broadcast failed",
			slog.String("role", role.String()), slog.String("error", err.Error()))
	}
	return persisted, errs
}

// NotifyAll notifies every active user, plus one global broadcast.
func (d *Dispatcher) NotifyAll(ctx context.Context, p Payload) ([]models.Notification, error) {
	ids, err := d.directory.ListActiveUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	persisted, errs := d.NotifyUsers(ctx, ids, p)

	if err := d.publisher.Publish(realtime.RoomGlobal, EventNotification, p); err != nil {
		d.logger.Warn("global broadcast failed", slog.String("error", err.Error()))
	}
	return persisted, errs
}
