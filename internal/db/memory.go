package db

import (
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/timedock/timeledger/internal/models"
)

// MemoryStore is a Store held entirely in process memory. Every method is
// safe for concurrent use and returns deep copies, so callers can mutate
// results freely.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]*models.TimeEntry
	users    map[string]*models.User
	projects map[string]*models.Project
	tasks    map[string]*models.Task
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]*models.TimeEntry),
		users:    make(map[string]*models.User),
		projects: make(map[string]*models.Project),
		tasks:    make(map[string]*models.Task),
	}
}

func copyEntry(e *models.TimeEntry) *models.TimeEntry {
	c := *e
	if e.EndTime != nil {
		end := *e.EndTime
		c.EndTime = &end
	}
	c.Tags = append([]string(nil), e.Tags...)
	c.Breaks = append([]models.Break(nil), e.Breaks...)
	for i := range c.Breaks {
		if c.Breaks[i].EndTime != nil {
			end := *c.Breaks[i].EndTime
			c.Breaks[i].EndTime = &end
		}
	}
	if e.Approval.At != nil {
		at := *e.Approval.At
		c.Approval.At = &at
	}
	if e.Edit.At != nil {
		at := *e.Edit.At
		c.Edit.At = &at
	}
	return &c
}

// CreateEntry persists a new time entry.
func (s *MemoryStore) CreateEntry(e *models.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = copyEntry(e)
	return nil
}

// GetEntry retrieves a time entry by ID, (nil, nil) if absent.
func (s *MemoryStore) GetEntry(id string) (*models.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	return copyEntry(e), nil
}

// UpdateEntry replaces an existing time entry.
func (s *MemoryStore) UpdateEntry(e *models.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; !ok {
		return sql.ErrNoRows
	}
	s.entries[e.ID] = copyEntry(e)
	return nil
}

// DeleteEntry removes a time entry.
func (s *MemoryStore) DeleteEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.entries, id)
	return nil
}

// FindRunning returns the user's running entry, (nil, nil) if none.
func (s *MemoryStore) FindRunning(userID string) (*models.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.UserID == userID && e.Status == models.StatusRunning {
			return copyEntry(e), nil
		}
	}
	return nil, nil
}

// FindOverlapping returns the user's entries intersecting [start, end).
func (s *MemoryStore) FindOverlapping(userID string, start, end time.Time) ([]*models.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TimeEntry
	for _, e := range s.entries {
		if e.UserID == userID && e.Overlaps(start, end) {
			out = append(out, copyEntry(e))
		}
	}
	sortByStartAsc(out)
	return out, nil
}

// FindForPayroll returns the user's stopped, approved entries starting in
// [periodStart, periodEnd).
func (s *MemoryStore) FindForPayroll(userID string, periodStart, periodEnd time.Time) ([]*models.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TimeEntry
	for _, e := range s.entries {
		if e.UserID != userID || e.Status != models.StatusStopped {
			continue
		}
		if e.Approval.Status != models.ApprovalApproved {
			continue
		}
		if e.StartTime.Before(periodStart) || !e.StartTime.Before(periodEnd) {
			continue
		}
		out = append(out, copyEntry(e))
	}
	sortByStartAsc(out)
	return out, nil
}

// ListEntries returns entries matching the filter, newest start first.
func (s *MemoryStore) ListEntries(f EntryFilter) ([]*models.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TimeEntry
	for _, e := range s.entries {
		if !matchesFilter(e, f) {
			continue
		}
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	// Pagination applies only with an explicit limit, mirroring the SQL
	// implementation.
	if f.Limit > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
		if len(out) > f.Limit {
			out = out[:f.Limit]
		}
	}
	return out, nil
}

func matchesFilter(e *models.TimeEntry, f EntryFilter) bool {
	if f.CompanyID != "" && e.CompanyID != f.CompanyID {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.ProjectID != "" && e.ProjectID != f.ProjectID {
		return false
	}
	if f.TaskID != "" && e.TaskID != f.TaskID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Approval != "" && e.Approval.Status != f.Approval {
		return false
	}
	if f.Billable != nil && e.Billable != *f.Billable {
		return false
	}
	if f.From != nil && e.StartTime.Before(*f.From) {
		return false
	}
	if f.To != nil && !e.StartTime.Before(*f.To) {
		return false
	}
	return true
}

func sortByStartAsc(entries []*models.TimeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartTime.Before(entries[j].StartTime)
	})
}

// CreateUser persists a new user.
func (s *MemoryStore) CreateUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *u
	s.users[u.ID] = &c
	return nil
}

// GetUser retrieves a user by ID, (nil, nil) if absent.
func (s *MemoryStore) GetUser(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

// UpdateUser replaces an existing user.
func (s *MemoryStore) UpdateUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return sql.ErrNoRows
	}
	c := *u
	s.users[u.ID] = &c
	return nil
}

// ListActiveUsers returns the company's active users ordered by name.
func (s *MemoryStore) ListActiveUsers(companyID string) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.User
	for _, u := range s.users {
		if u.CompanyID == companyID && u.Status == "active" {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FullName() < out[j].FullName()
	})
	return out, nil
}

// CreateProject persists a new project.
func (s *MemoryStore) CreateProject(p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.projects[p.ID] = &c
	return nil
}

// GetProject retrieves a project by ID, (nil, nil) if absent.
func (s *MemoryStore) GetProject(id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

// UpdateProject replaces an existing project.
func (s *MemoryStore) UpdateProject(p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return sql.ErrNoRows
	}
	c := *p
	s.projects[p.ID] = &c
	return nil
}

// CreateTask persists a new task.
func (s *MemoryStore) CreateTask(t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *t
	s.tasks[t.ID] = &c
	return nil
}

// GetTask retrieves a task by ID, (nil, nil) if absent.
func (s *MemoryStore) GetTask(id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

// UpdateTask replaces an existing task.
func (s *MemoryStore) UpdateTask(t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return sql.ErrNoRows
	}
	c := *t
	s.tasks[t.ID] = &c
	return nil
}
