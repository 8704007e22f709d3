package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fieldwork/taskd/internal/models"
	"github.com/fieldwork/taskd/internal/storage"
)

// CreateNotification persists a notification and returns it with its
// generated identity and creation timestamp filled in.
func (s *Store) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	n.ID = primitive.NewObjectID()
	n.Read = false
	n.ReadAt = nil
	n.CreatedAt = time.Now().UTC()

	if _, err := s.db.Collection(collNotifications).InsertOne(ctx, n); err != nil {
		return models.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a user's notifications, newest first, skipping
// expired ones. When unreadOnly is set, read notifications are filtered out.
func (s *Store) ListNotifications(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error) {
	filter := bson.M{
		"user_id": userID,
		"$or": []bson.M{
			{"expires_at": bson.M{"$exists": false}},
			{"expires_at": nil},
			{"expires_at": bson.M{"$gt": time.Now().UTC()}},
		},
	}
	if unreadOnly {
		filter["read"] = false
	}
	cur, err := s.db.Collection(collNotifications).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	var notifications []models.Notification
	if err := cur.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead sets the read flag and timestamp for one
// notification owned by the given user.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := s.db.Collection(collNotifications).UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true, "read_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification of a user read.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.db.Collection(collNotifications).UpdateMany(ctx,
		bson.M{"user_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

// CountUnreadNotifications counts a user's unread, unexpired notifications.
func (s *Store) CountUnreadNotifications(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.db.Collection(collNotifications).CountDocuments(ctx, bson.M{
		"user_id": userID,
		"read":    false,
		"$or": []bson.M{
			{"expires_at": bson.M{"$exists": false}},
			{"expires_at": nil},
			{"expires_at": bson.M{"$gt": time.Now().UTC()}},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}
