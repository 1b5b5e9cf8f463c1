package db

import (
	"time"

	"github.com/timedock/timeledger/internal/models"
)

// EntryFilter narrows a time entry listing. Zero values mean "no filter".
type EntryFilter struct {
	CompanyID string
	UserID    string
	ProjectID string
	TaskID    string
	Status    models.Status
	Approval  models.ApprovalStatus
	Billable  *bool
	From      *time.Time // inclusive, matched against start time
	To        *time.Time // exclusive, matched against start time
	Limit     int
	Offset    int
}

// EntryRepository defines the persistence operations the ledger needs.
// Lookups return (nil, nil) when no record matches so callers can collapse
// "missing" and "out of scope" into one signal.
type EntryRepository interface {
	// CreateEntry persists a new time entry.
	CreateEntry(e *models.TimeEntry) error

	// GetEntry retrieves a time entry by ID.
	GetEntry(id string) (*models.TimeEntry, error)

	// UpdateEntry replaces an existing time entry.
	UpdateEntry(e *models.TimeEntry) error

	// DeleteEntry removes a time entry.
	DeleteEntry(id string) error

	// FindRunning returns the user's running entry, if any.
	FindRunning(userID string) (*models.TimeEntry, error)

	// FindOverlapping returns the user's entries whose [start, end)
	// interval intersects the given one. Running entries count as
	// open-ended.
	FindOverlapping(userID string, start, end time.Time) ([]*models.TimeEntry, error)

	// FindForPayroll returns the user's stopped, approved entries whose
	// start time falls in [periodStart, periodEnd).
	FindForPayroll(userID string, periodStart, periodEnd time.Time) ([]*models.TimeEntry, error)

	// ListEntries returns entries matching the filter, newest start first.
	ListEntries(f EntryFilter) ([]*models.TimeEntry, error)
}

// UserRepository defines user persistence for payroll and authorization.
type UserRepository interface {
	CreateUser(u *models.User) error
	GetUser(id string) (*models.User, error)
	UpdateUser(u *models.User) error
	ListActiveUsers(companyID string) ([]*models.User, error)
}

// ProjectRepository defines project persistence for scope checks and
// hour rollups.
type ProjectRepository interface {
	CreateProject(p *models.Project) error
	GetProject(id string) (*models.Project, error)
	UpdateProject(p *models.Project) error
}

// TaskRepository defines task persistence for scope checks and hour
// rollups.
type TaskRepository interface {
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	UpdateTask(t *models.Task) error
}

// Store combines all repositories behind one handle.
type Store interface {
	EntryRepository
	UserRepository
	ProjectRepository
	TaskRepository
}

// Ensure the implementations satisfy the interfaces at compile time.
var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)
