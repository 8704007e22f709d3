package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account document. PasswordHash never leaves the server.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	Active       bool               `bson:"active" json:"active"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// Project groups tasks under one manager. TasksCount, CompletedTasks,
// CompletionPercentage and the completed/in-progress statuses are derived
// from the task set by the propagation engine and are never settable by a
// client. Task membership lives on Task.ProjectID; the project document does
// not carry a task-id array.
type Project struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                 string             `bson:"name" json:"name"`
	Description          string             `bson:"description,omitempty" json:"description,omitempty"`
	ManagerID            primitive.ObjectID `bson:"manager_id" json:"manager_id"`
	Status               ProjectStatus      `bson:"status" json:"status"`
	TasksCount           int                `bson:"tasks_count" json:"tasks_count"`
	CompletedTasks       int                `bson:"completed_tasks" json:"completed_tasks"`
	CompletionPercentage int                `bson:"completion_percentage" json:"completion_percentage"`
	StartDate            *time.Time         `bson:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate              *time.Time         `bson:"end_date,omitempty" json:"end_date,omitempty"`
	CreatedAt            time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at" json:"updated_at"`
}

// StatusLogEntry records one task status transition. The log is append-only.
type StatusLogEntry struct {
	Status    TaskStatus         `bson:"status" json:"status"`
	ChangedBy primitive.ObjectID `bson:"changed_by" json:"changed_by"`
	ChangedAt time.Time          `bson:"changed_at" json:"changed_at"`
	Comment   string             `bson:"comment,omitempty" json:"comment,omitempty"`
}

// Task is a unit of work assigned by a manager to a technician.
// Progress is the single canonical completion field: 100 iff completed,
// 0 iff freshly assigned. DelayReason is required exactly when the status
// is delayed.
type Task struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	ProjectID   primitive.ObjectID `bson:"project_id" json:"project_id"`
	AssignedTo  primitive.ObjectID `bson:"assigned_to" json:"assigned_to"`
	AssignedBy  primitive.ObjectID `bson:"assigned_by" json:"assigned_by"`
	Status      TaskStatus         `bson:"status" json:"status"`
	Progress    int                `bson:"progress" json:"progress"`
	DelayReason string             `bson:"delay_reason,omitempty" json:"delay_reason,omitempty"`
	StatusLog   []StatusLogEntry   `bson:"status_log,omitempty" json:"status_log,omitempty"`
	DueDate     *time.Time         `bson:"due_date,omitempty" json:"due_date,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Notification is created by the dispatcher only and is immutable once
// written except for the read flag.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title     string             `bson:"title" json:"title"`
	Message   string             `bson:"message" json:"message"`
	Type      NotificationType   `bson:"type" json:"type"`
	Priority  Priority           `bson:"priority" json:"priority"`
	Category  string             `bson:"category,omitempty" json:"category,omitempty"`
	Read      bool               `bson:"read" json:"read"`
	ReadAt    *time.Time         `bson:"read_at,omitempty" json:"read_at,omitempty"`
	ExpiresAt *time.Time         `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Report records a generated PDF project report on disk.
type Report struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID   primitive.ObjectID `bson:"project_id" json:"project_id"`
	GeneratedBy primitive.ObjectID `bson:"generated_by" json:"generated_by"`
	FileName    string             `bson:"file_name" json:"file_name"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// LoginSession tracks an issued token so logout can revoke it.
type LoginSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	TokenID   string             `bson:"token_id" json:"token_id"`
	IssuedAt  time.Time          `bson:"issued_at" json:"issued_at"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expires_at"`
	Revoked   bool               `bson:"revoked" json:"revoked"`
}

// ProgressForStatus returns the canonical progress value forced by a status,
// or -1 when the status does not constrain progress.
func ProgressForStatus(s TaskStatus) int {
	switch s {
	case TaskCompleted:
		return 100
	case TaskAssigned:
		return 0
	}
	return -1
}
