package models

// TaskStatus enumerates the lifecycle states of a task.
type TaskStatus string

const (
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskDelayed    TaskStatus = "delayed"
)

// ValidTaskStatuses enumerates the statuses a client may set on a task.
var ValidTaskStatuses = map[TaskStatus]struct{}{
	TaskAssigned:   {},
	TaskInProgress: {},
	TaskCompleted:  {},
	TaskDelayed:    {},
}

// ProjectStatus enumerates the lifecycle states of a project. The completed
// and in-progress states are derived from the task set; delayed and on-hold
// are set by people and are sticky until changed by people.
type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectDelayed    ProjectStatus = "delayed"
	ProjectOnHold     ProjectStatus = "on-hold"
)

// ValidProjectStatuses enumerates the statuses accepted on project updates.
var ValidProjectStatuses = map[ProjectStatus]struct{}{
	ProjectPlanning:   {},
	ProjectInProgress: {},
	ProjectCompleted:  {},
	ProjectDelayed:    {},
	ProjectOnHold:     {},
}

// NotificationType classifies a notification for client rendering.
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
	NotifySystem  NotificationType = "system"
)

// Priority orders notifications for the client.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)
