package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/timedock/timeledger/internal/models"
)

// Repository provides CRUD operations for all models over SQLite.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository instance.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

const entryColumns = `id, user_id, company_id, project_id, task_id, start_time, end_time,
	duration, description, tags, billable, rate, status, manual, source,
	activity, breaks, approval, edit, created_at, updated_at`

// =====================================================
// TimeEntry operations
// =====================================================

// CreateEntry persists a new time entry.
func (r *Repository) CreateEntry(e *models.TimeEntry) error {
	tags, breaks, activity, approval, edit, err := marshalEntryBlobs(e)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO time_entries (` + entryColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		e.ID, e.UserID, e.CompanyID, e.ProjectID, e.TaskID,
		e.StartTime.Unix(), nullableUnix(e.EndTime), e.Duration, e.Description,
		tags, boolToInt(e.Billable), e.Rate, string(e.Status), boolToInt(e.Manual),
		e.Source, activity, breaks, approval, edit,
		e.CreatedAt.Unix(), e.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("inserting time entry: %w", err)
	}
	return nil
}

// GetEntry retrieves a time entry by ID, (nil, nil) if absent.
func (r *Repository) GetEntry(id string) (*models.TimeEntry, error) {
	entries, err := r.queryEntries(
		`SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// UpdateEntry replaces an existing time entry.
func (r *Repository) UpdateEntry(e *models.TimeEntry) error {
	tags, breaks, activity, approval, edit, err := marshalEntryBlobs(e)
	if err != nil {
		return err
	}

	query := `
	UPDATE time_entries
	SET project_id = ?, task_id = ?, start_time = ?, end_time = ?, duration = ?,
		description = ?, tags = ?, billable = ?, rate = ?, status = ?,
		activity = ?, breaks = ?, approval = ?, edit = ?, updated_at = ?
	WHERE id = ?
	`
	result, err := r.db.Exec(query,
		e.ProjectID, e.TaskID, e.StartTime.Unix(), nullableUnix(e.EndTime), e.Duration,
		e.Description, tags, boolToInt(e.Billable), e.Rate, string(e.Status),
		activity, breaks, approval, edit, e.UpdatedAt.Unix(),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating time entry: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteEntry removes a time entry.
func (r *Repository) DeleteEntry(id string) error {
	result, err := r.db.Exec(`DELETE FROM time_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting time entry: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindRunning returns the user's running entry, (nil, nil) if none.
func (r *Repository) FindRunning(userID string) (*models.TimeEntry, error) {
	entries, err := r.queryEntries(
		`SELECT `+entryColumns+` FROM time_entries
		 WHERE user_id = ? AND status = 'running' LIMIT 1`, userID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// FindOverlapping returns the user's entries intersecting [start, end).
// Running entries are open-ended so they overlap anything starting after
// them.
func (r *Repository) FindOverlapping(userID string, start, end time.Time) ([]*models.TimeEntry, error) {
	return r.queryEntries(
		`SELECT `+entryColumns+` FROM time_entries
		 WHERE user_id = ?
		   AND start_time < ?
		   AND (end_time IS NULL OR end_time > ?)
		 ORDER BY start_time ASC`,
		userID, end.Unix(), start.Unix())
}

// FindForPayroll returns the user's stopped, approved entries starting in
// [periodStart, periodEnd).
func (r *Repository) FindForPayroll(userID string, periodStart, periodEnd time.Time) ([]*models.TimeEntry, error) {
	return r.queryEntries(
		`SELECT `+entryColumns+` FROM time_entries
		 WHERE user_id = ?
		   AND status = 'stopped'
		   AND json_extract(approval, '$.status') = 'approved'
		   AND start_time >= ? AND start_time < ?
		 ORDER BY start_time ASC`,
		userID, periodStart.Unix(), periodEnd.Unix())
}

// ListEntries returns entries matching the filter, newest start first.
func (r *Repository) ListEntries(f EntryFilter) ([]*models.TimeEntry, error) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if f.CompanyID != "" {
		add("company_id = ?", f.CompanyID)
	}
	if f.UserID != "" {
		add("user_id = ?", f.UserID)
	}
	if f.ProjectID != "" {
		add("project_id = ?", f.ProjectID)
	}
	if f.TaskID != "" {
		add("task_id = ?", f.TaskID)
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.Approval != "" {
		add("json_extract(approval, '$.status') = ?", string(f.Approval))
	}
	if f.Billable != nil {
		add("billable = ?", boolToInt(*f.Billable))
	}
	if f.From != nil {
		add("start_time >= ?", f.From.Unix())
	}
	if f.To != nil {
		add("start_time < ?", f.To.Unix())
	}

	query := `SELECT ` + entryColumns + ` FROM time_entries`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY start_time DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	return r.queryEntries(query, args...)
}

func (r *Repository) queryEntries(query string, args ...interface{}) ([]*models.TimeEntry, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying time entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (*models.TimeEntry, error) {
	var e models.TimeEntry
	var startUnix, createdUnix, updatedUnix int64
	var endUnix sql.NullInt64
	var billable, manual int
	var status, tags, activity, breaks, approval, edit string

	if err := rows.Scan(
		&e.ID, &e.UserID, &e.CompanyID, &e.ProjectID, &e.TaskID,
		&startUnix, &endUnix, &e.Duration, &e.Description, &tags,
		&billable, &e.Rate, &status, &manual, &e.Source,
		&activity, &breaks, &approval, &edit, &createdUnix, &updatedUnix,
	); err != nil {
		return nil, fmt.Errorf("scanning time entry: %w", err)
	}

	e.StartTime = time.Unix(startUnix, 0).UTC()
	if endUnix.Valid {
		end := time.Unix(endUnix.Int64, 0).UTC()
		e.EndTime = &end
	}
	e.Billable = billable != 0
	e.Manual = manual != 0
	e.Status = models.Status(status)
	e.CreatedAt = time.Unix(createdUnix, 0).UTC()
	e.UpdatedAt = time.Unix(updatedUnix, 0).UTC()

	if err := unmarshalEntryBlobs(&e, tags, breaks, activity, approval, edit); err != nil {
		return nil, err
	}
	return &e, nil
}

func marshalEntryBlobs(e *models.TimeEntry) (tags, breaks, activity, approval, edit string, err error) {
	blobs := []struct {
		name string
		v    interface{}
		out  *string
	}{
		{"tags", e.Tags, &tags},
		{"breaks", e.Breaks, &breaks},
		{"activity", e.Activity, &activity},
		{"approval", e.Approval, &approval},
		{"edit", e.Edit, &edit},
	}
	for _, b := range blobs {
		data, merr := sonic.Marshal(b.v)
		if merr != nil {
			return "", "", "", "", "", fmt.Errorf("marshaling entry %s: %w", b.name, merr)
		}
		*b.out = string(data)
	}
	return tags, breaks, activity, approval, edit, nil
}

func unmarshalEntryBlobs(e *models.TimeEntry, tags, breaks, activity, approval, edit string) error {
	blobs := []struct {
		name string
		data string
		v    interface{}
	}{
		{"tags", tags, &e.Tags},
		{"breaks", breaks, &e.Breaks},
		{"activity", activity, &e.Activity},
		{"approval", approval, &e.Approval},
		{"edit", edit, &e.Edit},
	}
	for _, b := range blobs {
		if b.data == "" {
			continue
		}
		if err := sonic.Unmarshal([]byte(b.data), b.v); err != nil {
			return fmt.Errorf("unmarshaling entry %s: %w", b.name, err)
		}
	}
	return nil
}

// =====================================================
// User operations
// =====================================================

// CreateUser persists a new user.
func (r *Repository) CreateUser(u *models.User) error {
	query := `
	INSERT INTO users (id, company_id, email, first_name, last_name, role,
		hourly_rate, overtime_rate, currency, timezone, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, u.ID, u.CompanyID, u.Email, u.FirstName, u.LastName,
		string(u.Role), u.HourlyRate, u.OvertimeRate, u.Currency, u.Timezone,
		u.Status, u.CreatedAt.Unix(), u.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID, (nil, nil) if absent.
func (r *Repository) GetUser(id string) (*models.User, error) {
	users, err := r.queryUsers(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// UpdateUser replaces an existing user.
func (r *Repository) UpdateUser(u *models.User) error {
	query := `
	UPDATE users
	SET email = ?, first_name = ?, last_name = ?, role = ?, hourly_rate = ?,
		overtime_rate = ?, currency = ?, timezone = ?, status = ?, updated_at = ?
	WHERE id = ?
	`
	result, err := r.db.Exec(query, u.Email, u.FirstName, u.LastName, string(u.Role),
		u.HourlyRate, u.OvertimeRate, u.Currency, u.Timezone, u.Status,
		u.UpdatedAt.Unix(), u.ID)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListActiveUsers returns the company's active users ordered by name.
func (r *Repository) ListActiveUsers(companyID string) ([]*models.User, error) {
	return r.queryUsers(
		`SELECT `+userColumns+` FROM users
		 WHERE company_id = ? AND status = 'active'
		 ORDER BY first_name, last_name`, companyID)
}

const userColumns = `id, company_id, email, first_name, last_name, role,
	hourly_rate, overtime_rate, currency, timezone, status, created_at, updated_at`

func (r *Repository) queryUsers(query string, args ...interface{}) ([]*models.User, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		var role string
		var createdUnix, updatedUnix int64
		if err := rows.Scan(&u.ID, &u.CompanyID, &u.Email, &u.FirstName, &u.LastName,
			&role, &u.HourlyRate, &u.OvertimeRate, &u.Currency, &u.Timezone,
			&u.Status, &createdUnix, &updatedUnix); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		u.Role = models.Role(role)
		u.CreatedAt = time.Unix(createdUnix, 0).UTC()
		u.UpdatedAt = time.Unix(updatedUnix, 0).UTC()
		users = append(users, &u)
	}
	return users, rows.Err()
}

// =====================================================
// Project operations
// =====================================================

// CreateProject persists a new project.
func (r *Repository) CreateProject(p *models.Project) error {
	stats, err := sonic.Marshal(p.Stats)
	if err != nil {
		return fmt.Errorf("marshaling project stats: %w", err)
	}
	query := `
	INSERT INTO projects (id, company_id, name, color, archived, stats, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, p.ID, p.CompanyID, p.Name, p.Color,
		boolToInt(p.Archived), string(stats), p.CreatedAt.Unix(), p.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID, (nil, nil) if absent.
func (r *Repository) GetProject(id string) (*models.Project, error) {
	query := `SELECT id, company_id, name, color, archived, stats, created_at, updated_at
			  FROM projects WHERE id = ?`
	var p models.Project
	var archived int
	var stats string
	var createdUnix, updatedUnix int64
	err := r.db.QueryRow(query, id).Scan(&p.ID, &p.CompanyID, &p.Name, &p.Color,
		&archived, &stats, &createdUnix, &updatedUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}
	p.Archived = archived != 0
	p.CreatedAt = time.Unix(createdUnix, 0).UTC()
	p.UpdatedAt = time.Unix(updatedUnix, 0).UTC()
	if stats != "" {
		if err := sonic.Unmarshal([]byte(stats), &p.Stats); err != nil {
			return nil, fmt.Errorf("unmarshaling project stats: %w", err)
		}
	}
	return &p, nil
}

// UpdateProject replaces an existing project.
func (r *Repository) UpdateProject(p *models.Project) error {
	stats, err := sonic.Marshal(p.Stats)
	if err != nil {
		return fmt.Errorf("marshaling project stats: %w", err)
	}
	query := `UPDATE projects SET name = ?, color = ?, archived = ?, stats = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.Exec(query, p.Name, p.Color, boolToInt(p.Archived),
		string(stats), p.UpdatedAt.Unix(), p.ID)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// =====================================================
// Task operations
// =====================================================

// CreateTask persists a new task.
func (r *Repository) CreateTask(t *models.Task) error {
	query := `
	INSERT INTO tasks (id, company_id, project_id, title, status, estimated_hours, actual_hours, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, t.ID, t.CompanyID, t.ProjectID, t.Title, t.Status,
		t.EstimatedHours, t.ActualHours, t.CreatedAt.Unix(), t.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID, (nil, nil) if absent.
func (r *Repository) GetTask(id string) (*models.Task, error) {
	query := `SELECT id, company_id, project_id, title, status, estimated_hours, actual_hours, created_at, updated_at
			  FROM tasks WHERE id = ?`
	var t models.Task
	var createdUnix, updatedUnix int64
	err := r.db.QueryRow(query, id).Scan(&t.ID, &t.CompanyID, &t.ProjectID, &t.Title,
		&t.Status, &t.EstimatedHours, &t.ActualHours, &createdUnix, &updatedUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}
	t.CreatedAt = time.Unix(createdUnix, 0).UTC()
	t.UpdatedAt = time.Unix(updatedUnix, 0).UTC()
	return &t, nil
}

// UpdateTask replaces an existing task.
func (r *Repository) UpdateTask(t *models.Task) error {
	query := `UPDATE tasks SET title = ?, status = ?, estimated_hours = ?, actual_hours = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.Exec(query, t.Title, t.Status, t.EstimatedHours,
		t.ActualHours, t.UpdatedAt.Unix(), t.ID)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}
