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

// CreateTask persists a new task with its initial status-log entry.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, fmt.Errorf("task title must not be empty")
	}
	now := time.Now().UTC()
	t.ID = primitive.NewObjectID()
	t.Title = strings.TrimSpace(t.Title)
	if t.Status == "" {
		t.Status = models.TaskAssigned
	}
	if p := models.ProgressForStatus(t.Status); p >= 0 {
		t.Progress = p
	}
	t.StatusLog = []models.StatusLogEntry{{
		Status:    t.Status,
		ChangedBy: t.AssignedBy,
		ChangedAt: now,
	}}
	t.CreatedAt = now
	t.UpdatedAt = now

	if _, err := s.db.Collection(collTasks).InsertOne(ctx, t); err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id primitive.ObjectID) (models.Task, error) {
	var t models.Task
	err := s.db.Collection(collTasks).FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasksByProject returns the full task set of a project. The propagation
// engine depends on this being the complete set, not a cached subset.
func (s *Store) ListTasksByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.Task, error) {
	return s.findTasks(ctx, bson.M{"project_id": projectID})
}

// ListTasksByAssignee returns the tasks assigned to one technician.
func (s *Store) ListTasksByAssignee(ctx context.Context, userID primitive.ObjectID) ([]models.Task, error) {
	return s.findTasks(ctx, bson.M{"assigned_to": userID})
}

func (s *Store) findTasks(ctx context.Context, filter bson.M) ([]models.Task, error) {
	cur, err := s.db.Collection(collTasks).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var tasks []models.Task
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTaskFields applies a partial update to a task document.
func (s *Store) UpdateTaskFields(ctx context.Context, id primitive.ObjectID, fields bson.M) (models.Task, error) {
	fields["updated_at"] = time.Now().UTC()
	res, err := s.db.Collection(collTasks).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.Task{}, storage.ErrNotFound
	}
	return s.GetTask(ctx, id)
}

// AppendStatusLog appends one transition entry to a task's status log.
func (s *Store) AppendStatusLog(ctx context.Context, id primitive.ObjectID, entry models.StatusLogEntry) error {
	res, err := s.db.Collection(collTasks).UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$push": bson.M{"status_log": entry}})
	if err != nil {
		return fmt.Errorf("append status log: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.db.Collection(collTasks).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
