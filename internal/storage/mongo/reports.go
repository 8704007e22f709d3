package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fieldwork/taskd/internal/models"
	"github.com/fieldwork/taskd/internal/storage"
)

// CreateReport records a generated report file.
func (s *Store) CreateReport(ctx context.Context, r models.Report) (models.Report, error) {
	r.ID = primitive.NewObjectID()
	r.CreatedAt = time.Now().UTC()
	if _, err := s.db.Collection(collReports).InsertOne(ctx, r); err != nil {
		return models.Report{}, fmt.Errorf("insert report: %w", err)
	}
	return r, nil
}

// GetReport fetches one report record by id.
func (s *Store) GetReport(ctx context.Context, id primitive.ObjectID) (models.Report, error) {
	var r models.Report
	err := s.db.Collection(collReports).FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Report{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

// ListReportsByProject returns a project's report records, newest first.
func (s *Store) ListReportsByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.Report, error) {
	cur, err := s.db.Collection(collReports).Find(ctx, bson.M{"project_id": projectID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	var reports []models.Report
	if err := cur.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	return reports, nil
}
