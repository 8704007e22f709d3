// Package mongo implements the document store on MongoDB collections.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collUsers         = "users"
	collProjects      = "projects"
	collTasks         = "tasks"
	collNotifications = "notifications"
	collReports       = "reports"
	collSessions      = "login_sessions"
)

// Store wraps access to the MongoDB database and exposes high level helpers
// per collection.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// Open connects to MongoDB, verifies the connection and ensures indexes.
func Open(ctx context.Context, uri, dbName string, logger *slog.Logger) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("empty mongodb uri")
	}
	if logger == nil {
		logger = slog.Default()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName), logger: logger}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Close releases the client connection pool.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	type indexSet struct {
		coll   string
		models []mongo.IndexModel
	}
	sets := []indexSet{
		{collUsers, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		}},
		{collTasks, []mongo.IndexModel{
			{Keys: bson.D{{Key: "project_id", Value: 1}}},
			{Keys: bson.D{{Key: "assigned_to", Value: 1}}},
		}},
		{collNotifications, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		}},
		{collReports, []mongo.IndexModel{
			{Keys: bson.D{{Key: "project_id", Value: 1}}},
		}},
		{collSessions, []mongo.IndexModel{
			{Keys: bson.D{{Key: "token_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
	}

	for _, set := range sets {
		if _, err := s.db.Collection(set.coll).Indexes().CreateMany(ctx, set.models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", set.coll, err)
		}
	}
	return nil
}
