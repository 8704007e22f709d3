package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fieldwork/taskd/internal/models"
	"github.com/fieldwork/taskd/internal/storage"
)

// CreateUser persists a new user. Email uniqueness is enforced by index.
func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if strings.TrimSpace(u.Email) == "" {
		return models.User{}, fmt.Errorf("user email must not be empty")
	}
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.db.Collection(collUsers).InsertOne(ctx, u); err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUser fetches a single user by id.
func (s *Store) GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, storage.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail fetches a user by canonicalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, storage.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by creation date.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	cur, err := s.db.Collection(collUsers).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// ListUsersByRole returns users holding the given role, optionally only
// active accounts.
func (s *Store) ListUsersByRole(ctx context.Context, role models.Role, activeOnly bool) ([]models.User, error) {
	filter := bson.M{"role": role}
	if activeOnly {
		filter["active"] = true
	}
	cur, err := s.db.Collection(collUsers).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// ListActiveUserIDs returns the ids of every active user.
func (s *Store) ListActiveUserIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	cur, err := s.db.Collection(collUsers).Find(ctx, bson.M{"active": true},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode user ids: %w", err)
	}
	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// UpdateUserFields applies a partial update to a user document.
func (s *Store) UpdateUserFields(ctx context.Context, id primitive.ObjectID, fields bson.M) (models.User, error) {
	fields["updated_at"] = time.Now().UTC()
	res, err := s.db.Collection(collUsers).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.User{}, storage.ErrNotFound
	}
	return s.GetUser(ctx, id)
}

// DeactivateUser marks an account inactive; it keeps the document so task
// and log references stay resolvable.
func (s *Store) DeactivateUser(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.UpdateUserFields(ctx, id, bson.M{"active": false})
	return err
}
