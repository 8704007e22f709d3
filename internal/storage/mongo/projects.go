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

// CreateProject persists a new project in the planning state with zeroed
// derived fields.
func (s *Store) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return models.Project{}, fmt.Errorf("project name must not be empty")
	}
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.Name = strings.TrimSpace(p.Name)
	if p.Status == "" {
		p.Status = models.ProjectPlanning
	}
	p.TasksCount = 0
	p.CompletedTasks = 0
	p.CompletionPercentage = 0
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.db.Collection(collProjects).InsertOne(ctx, p); err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	var p models.Project
	err := s.db.Collection(collProjects).FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Project{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects retrieves all projects ordered by creation date.
func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.findProjects(ctx, bson.M{})
}

// ListProjectsByManager retrieves the projects assigned to one manager.
func (s *Store) ListProjectsByManager(ctx context.Context, managerID primitive.ObjectID) ([]models.Project, error) {
	return s.findProjects(ctx, bson.M{"manager_id": managerID})
}

func (s *Store) findProjects(ctx context.Context, filter bson.M) ([]models.Project, error) {
	cur, err := s.db.Collection(collProjects).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var projects []models.Project
	if err := cur.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	return projects, nil
}

// UpdateProjectFields applies a partial update to a project document. The
// write is a single-document $set, so the derived fields land atomically
// with respect to any reader.
func (s *Store) UpdateProjectFields(ctx context.Context, id primitive.ObjectID, fields bson.M) (models.Project, error) {
	fields["updated_at"] = time.Now().UTC()
	res, err := s.db.Collection(collProjects).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.Project{}, storage.ErrNotFound
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project along with its tasks and reports.
func (s *Store) DeleteProject(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.db.Collection(collProjects).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	if _, err := s.db.Collection(collTasks).DeleteMany(ctx, bson.M{"project_id": id}); err != nil {
		return fmt.Errorf("delete project tasks: %w", err)
	}
	if _, err := s.db.Collection(collReports).DeleteMany(ctx, bson.M{"project_id": id}); err != nil {
		return fmt.Errorf("delete project reports: %w", err)
	}
	return nil
}
