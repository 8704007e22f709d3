package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fieldwork/taskd/internal/models"
	"github.com/fieldwork/taskd/internal/storage"
)

// CreateSession records an issued token so logout can revoke it.
func (s *Store) CreateSession(ctx context.Context, sess models.LoginSession) (models.LoginSession, error) {
	sess.ID = primitive.NewObjectID()
	sess.IssuedAt = time.Now().UTC()
	if _, err := s.db.Collection(collSessions).InsertOne(ctx, sess); err != nil {
		return models.LoginSession{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// RevokeSession marks the session holding the given token id revoked.
// Revoking an unknown or already revoked token is a no-op.
func (s *Store) RevokeSession(ctx context.Context, tokenID string) error {
	_, err := s.db.Collection(collSessions).UpdateOne(ctx,
		bson.M{"token_id": tokenID},
		bson.M{"$set": bson.M{"revoked": true}})
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether the token id belongs to a revoked
// session. Unknown tokens are treated as revoked.
func (s *Store) IsSessionRevoked(ctx context.Context, tokenID string) (bool, error) {
	var sess models.LoginSession
	err := s.db.Collection(collSessions).FindOne(ctx, bson.M{"token_id": tokenID}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return true, storage.ErrNotFound
	}
	if err != nil {
		return true, fmt.Errorf("lookup session: %w", err)
	}
	return sess.Revoked, nil
}
