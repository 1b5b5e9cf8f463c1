package models

import "time"

// Task is a minimal task record used for company-scope checks and hour
// rollups.
type Task struct {
	ID             string    `db:"id" json:"id"`
	CompanyID      string    `db:"company_id" json:"company_id"`
	ProjectID      string    `db:"project_id" json:"project_id,omitempty"`
	Title          string    `db:"title" json:"title"`
	Status         string    `db:"status" json:"status"`
	EstimatedHours float64   `db:"estimated_hours" json:"estimated_hours,omitempty"`
	ActualHours    float64   `db:"actual_hours" json:"actual_hours"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// AddHours records a stopped entry's hours against the task.
func (t *Task) AddHours(hours float64) {
	t.ActualHours += hours
}
