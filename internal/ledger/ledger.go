// Package ledger implements the time entry state machine: timers, breaks,
// manual entries, edits, approvals, and the payroll facade on top of them.
package ledger

import (
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	"github.com/timedock/timeledger/internal/clock"
	"github.com/timedock/timeledger/internal/db"
	"github.com/timedock/timeledger/internal/errors"
	"github.com/timedock/timeledger/internal/logging"
	"github.com/timedock/timeledger/internal/models"
	"github.com/timedock/timeledger/internal/payroll"
	"github.com/timedock/timeledger/internal/uuid"
)

// lockStripes bounds the number of per-user mutexes.
const lockStripes = 64

// Actor identifies the caller of a ledger operation. Authorization and
// company scoping derive from it, never from the payload.
type Actor struct {
	UserID    string
	CompanyID string
	Role      models.Role
}

// Ledger coordinates time entry operations against a Store. All methods
// are safe for concurrent use; the check-then-insert window of Start and
// CreateManual is closed by a per-user mutex stripe.
type Ledger struct {
	store db.Store
	clock clock.Clock
	calc  *payroll.Calculator
	locks [lockStripes]sync.Mutex
}

// New creates a Ledger over the given store and clock with the default
// payroll rules.
func New(store db.Store, clk clock.Clock) *Ledger {
	return &Ledger{
		store: store,
		clock: clk,
		calc:  payroll.NewCalculator(),
	}
}

// SetPayrollRules overrides the weekly overtime threshold and multiplier.
func (l *Ledger) SetPayrollRules(weeklyThreshold, overtimeMultiplier float64) {
	l.calc = &payroll.Calculator{
		WeeklyThreshold:    weeklyThreshold,
		OvertimeMultiplier: overtimeMultiplier,
	}
}

func (l *Ledger) userLock(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &l.locks[h.Sum32()%lockStripes]
}

// StartInput carries the optional fields of a new running entry.
type StartInput struct {
	ProjectID   string
	TaskID      string
	Description string
	Tags        []string
	Billable    *bool // nil means billable
	Rate        float64
	Source      string
}

// Start opens a running entry for the actor. At most one entry per user
// may be running; a second start fails with TIMER_RUNNING and leaves the
// first untouched.
func (l *Ledger) Start(actor Actor, in StartInput) (*models.TimeEntry, error) {
	if err := l.checkAssociations(actor, in.ProjectID, in.TaskID); err != nil {
		return nil, err
	}

	mu := l.userLock(actor.UserID)
	mu.Lock()
	defer mu.Unlock()

	running, err := l.store.FindRunning(actor.UserID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to check running entry", err)
	}
	if running != nil {
		return nil, errors.Newf(errors.ErrTimerRunning, "a timer is already running (entry %s)", running.ID)
	}

	now := l.clock.Now()
	e := &models.TimeEntry{
		ID:          uuid.New(),
		UserID:      actor.UserID,
		CompanyID:   actor.CompanyID,
		ProjectID:   in.ProjectID,
		TaskID:      in.TaskID,
		StartTime:   now,
		Description: in.Description,
		Tags:        in.Tags,
		Billable:    in.Billable == nil || *in.Billable,
		Rate:        in.Rate,
		Status:      models.StatusRunning,
		Source:      in.Source,
		Approval:    models.Approval{Status: models.ApprovalPending},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := l.store.CreateEntry(e); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to create entry", err)
	}

	logging.Info("timer started", logging.Fields{
		"entry_id": e.ID,
		"user_id":  actor.UserID,
	})
	return e, nil
}

// Stop ends a running or paused entry. The open break is closed first,
// then the duration and activity level are derived and project and task
// hour rollups applied.
func (l *Ledger) Stop(actor Actor, entryID string) (*models.TimeEntry, error) {
	e, err := l.loadVisible(actor, entryID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.StatusRunning && e.Status != models.StatusPaused {
		return nil, errors.Newf(errors.ErrInvalidState, "entry %s is already stopped", entryID)
	}

	now := l.clock.Now()
	e.CloseOpenBreak(now)
	end := now
	e.EndTime = &end
	e.Status = models.StatusStopped
	e.RecomputeDuration()
	e.RefreshActivity()
	e.Touch(now)

	if err := l.saveEntry(e); err != nil {
		return nil, err
	}
	l.rollupHours(e, now)

	logging.Info("timer stopped", logging.Fields{
		"entry_id": e.ID,
		"user_id":  e.UserID,
		"duration": e.Duration,
	})
	return e, nil
}

// Pause moves a running entry to paused and opens a break. An empty break
// type defaults to short. Break time counts toward the entry duration; it
// is recorded for reporting, not netted out.
func (l *Ledger) Pause(actor Actor, entryID string, breakType models.BreakType) (*models.TimeEntry, error) {
	e, err := l.loadVisible(actor, entryID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.StatusRunning {
		return nil, errors.Newf(errors.ErrInvalidState, "entry %s is not running", entryID)
	}
	if breakType == "" {
		breakType = models.BreakShort
	}

	now := l.clock.Now()
	e.Status = models.StatusPaused
	e.Breaks = append(e.Breaks, models.Break{StartTime: now, Type: breakType})
	e.Touch(now)

	if err := l.saveEntry(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Resume moves a paused entry back to running and closes the open break.
func (l *Ledger) Resume(actor Actor, entryID string) (*models.TimeEntry, error) {
	e, err := l.loadVisible(actor, entryID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.StatusPaused {
		return nil, errors.Newf(errors.ErrInvalidState, "entry %s is not paused", entryID)
	}

	now := l.clock.Now()
	e.CloseOpenBreak(now)
	e.Status = models.StatusRunning
	e.Touch(now)

	if err := l.saveEntry(e); err != nil {
		return nil, err
	}
	return e, nil
}

// ManualInput describes a manually logged, already finished interval.
type ManualInput struct {
	Start       time.Time
	End         time.Time
	ProjectID   string
	TaskID      string
	Description string
	Tags        []string
	Billable    *bool
	Rate        float64
}

// CreateManual records a finished entry for a past interval. The interval
// must be well formed and must not intersect any of the user's existing
// entries under [start, end) semantics.
func (l *Ledger) CreateManual(actor Actor, in ManualInput) (*models.TimeEntry, error) {
	if !in.Start.Before(in.End) {
		return nil, errors.New(errors.ErrValidation, "end time must be after start time")
	}
	if err := l.checkAssociations(actor, in.ProjectID, in.TaskID); err != nil {
		return nil, err
	}

	mu := l.userLock(actor.UserID)
	mu.Lock()
	defer mu.Unlock()

	overlapping, err := l.store.FindOverlapping(actor.UserID, in.Start, in.End)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to check overlap", err)
	}
	if len(overlapping) > 0 {
		return nil, errors.Newf(errors.ErrEntryOverlap, "interval overlaps entry %s", overlapping[0].ID)
	}

	now := l.clock.Now()
	end := in.End
	e := &models.TimeEntry{
		ID:          uuid.New(),
		UserID:      actor.UserID,
		CompanyID:   actor.CompanyID,
		ProjectID:   in.ProjectID,
		TaskID:      in.TaskID,
		StartTime:   in.Start,
		EndTime:     &end,
		Description: in.Description,
		Tags:        in.Tags,
		Billable:    in.Billable == nil || *in.Billable,
		Rate:        in.Rate,
		Status:      models.StatusStopped,
		Manual:      true,
		Source:      "manual",
		Approval:    models.Approval{Status: models.ApprovalPending},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e.RecomputeDuration()
	e.RefreshActivity()

	if err := l.store.CreateEntry(e); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to create entry", err)
	}

	logging.Info("manual entry created", logging.Fields{
		"entry_id": e.ID,
		"user_id":  actor.UserID,
		"duration": e.Duration,
	})
	return e, nil
}

// UpdateInput lists the fields Update may change. Nil pointers leave the
// field as is. Status and duration are never writable; duration is always
// derived from the timestamps.
type UpdateInput struct {
	Description *string
	ProjectID   *string
	TaskID      *string
	Tags        *[]string
	Billable    *bool
	Start       *time.Time
	End         *time.Time
	Reason      string
}

// Update edits a stopped entry. The first edit stamps the edit block with
// the pre-edit duration; later edits never overwrite it. Owners may edit
// while the entry is still pending; managers may edit any entry in their
// company.
func (l *Ledger) Update(actor Actor, entryID string, in UpdateInput) (*models.TimeEntry, error) {
	e, err := l.loadVisible(actor, entryID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.StatusStopped {
		return nil, errors.Newf(errors.ErrInvalidState, "entry %s is not stopped", entryID)
	}
	if e.UserID == actor.UserID && !actor.Role.IsManagerial() &&
		e.Approval.Status != models.ApprovalPending {
		return nil, errors.New(errors.ErrPermission, "entry is already decided")
	}

	start := e.StartTime
	end := *e.EndTime
	if in.Start != nil {
		start = *in.Start
	}
	if in.End != nil {
		end = *in.End
	}
	if !start.Before(end) {
		return nil, errors.New(errors.ErrValidation, "end time must be after start time")
	}
	if in.Start != nil || in.End != nil {
		overlapping, err := l.store.FindOverlapping(e.UserID, start, end)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to check overlap", err)
		}
		for _, o := range overlapping {
			if o.ID != e.ID {
				return nil, errors.Newf(errors.ErrEntryOverlap, "interval overlaps entry %s", o.ID)
			}
		}
	}

	now := l.clock.Now()
	// The edit block captures the duration before this mutation.
	e.MarkEdited(actor.UserID, in.Reason, now)

	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.ProjectID != nil || in.TaskID != nil {
		projectID, taskID := e.ProjectID, e.TaskID
		if in.ProjectID != nil {
			projectID = *in.ProjectID
		}
		if in.TaskID != nil {
			taskID = *in.TaskID
		}
		if err := l.checkAssociations(actor, projectID, taskID); err != nil {
			return nil, err
		}
		e.ProjectID, e.TaskID = projectID, taskID
	}
	if in.Tags != nil {
		e.Tags = *in.Tags
	}
	if in.Billable != nil {
		e.Billable = *in.Billable
	}
	e.StartTime = start
	e.EndTime = &end
	e.RecomputeDuration()
	e.RefreshActivity()
	e.Touch(now)

	if err := l.saveEntry(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes a non-running entry. A running entry must be stopped
// first.
func (l *Ledger) Delete(actor Actor, entryID string) error {
	e, err := l.loadVisible(actor, entryID)
	if err != nil {
		return err
	}
	if e.Status == models.StatusRunning {
		return errors.Newf(errors.ErrInvalidState, "entry %s is running, stop it first", entryID)
	}
	if e.UserID == actor.UserID && !actor.Role.IsManagerial() &&
		e.Approval.Status == models.ApprovalApproved {
		return errors.New(errors.ErrPermission, "approved entries can only be deleted by a manager")
	}

	if err := l.store.DeleteEntry(e.ID); err != nil {
		if err == sql.ErrNoRows {
			return errors.Newf(errors.ErrEntryNotFound, "entry %s not found", entryID)
		}
		return errors.Wrap(errors.ErrDatabase, "failed to delete entry", err)
	}

	logging.Info("entry deleted", logging.Fields{
		"entry_id": e.ID,
		"user_id":  e.UserID,
	})
	return nil
}

// Current returns the actor's running entry, or nil when no timer runs.
func (l *Ledger) Current(actor Actor) (*models.TimeEntry, error) {
	e, err := l.store.FindRunning(actor.UserID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to look up running entry", err)
	}
	return e, nil
}

// EntryList is a filtered listing with hour totals over the page.
type EntryList struct {
	Entries       []*models.TimeEntry `json:"entries"`
	Count         int                 `json:"count"`
	TotalHours    float64             `json:"total_hours"`
	BillableHours float64             `json:"billable_hours"`
}

// List returns the entries visible to the actor. The filter is forced to
// the actor's company, and non-managers only ever see their own entries.
func (l *Ledger) List(actor Actor, f db.EntryFilter) (*EntryList, error) {
	f.CompanyID = actor.CompanyID
	if !actor.Role.IsManagerial() {
		f.UserID = actor.UserID
	}

	entries, err := l.store.ListEntries(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list entries", err)
	}

	var totalSeconds, billableSeconds int64
	for _, e := range entries {
		totalSeconds += e.Duration
		if e.Billable {
			billableSeconds += e.Duration
		}
	}
	return &EntryList{
		Entries:       entries,
		Count:         len(entries),
		TotalHours:    payroll.Round2(float64(totalSeconds) / 3600),
		BillableHours: payroll.Round2(float64(billableSeconds) / 3600),
	}, nil
}

// Approve marks a pending, stopped entry approved. Managers and admins
// only, and never on their own entries.
func (l *Ledger) Approve(actor Actor, entryID, notes string) (*models.TimeEntry, error) {
	return l.decide(actor, entryID, notes, models.ApprovalApproved)
}

// Reject marks a pending, stopped entry rejected. Same rules as Approve.
func (l *Ledger) Reject(actor Actor, entryID, notes string) (*models.TimeEntry, error) {
	return l.decide(actor, entryID, notes, models.ApprovalRejected)
}

func (l *Ledger) decide(actor Actor, entryID, notes string, status models.ApprovalStatus) (*models.TimeEntry, error) {
	if !actor.Role.IsManagerial() {
		return nil, errors.New(errors.ErrPermission, "only managers can decide entries")
	}

	e, err := l.loadVisible(actor, entryID)
	if err != nil {
		return nil, err
	}
	if e.UserID == actor.UserID {
		return nil, errors.New(errors.ErrPermission, "cannot decide your own entries")
	}
	if e.Status != models.StatusStopped {
		return nil, errors.Newf(errors.ErrApprovalNotReady, "entry %s timer is still running", entryID)
	}
	if e.Approval.Status != models.ApprovalPending {
		return nil, errors.Newf(errors.ErrApprovalDecided, "entry %s is already %s", entryID, e.Approval.Status)
	}

	now := l.clock.Now()
	at := now
	e.Approval = models.Approval{
		Status: status,
		By:     actor.UserID,
		At:     &at,
		Notes:  notes,
	}
	e.Touch(now)

	if err := l.saveEntry(e); err != nil {
		return nil, err
	}

	logging.Info("entry decided", logging.Fields{
		"entry_id": e.ID,
		"status":   string(status),
		"by":       actor.UserID,
	})
	return e, nil
}

// RecordActivity adds keyboard and mouse event counts to a running or
// paused entry. The level stays unset until the entry stops.
func (l *Ledger) RecordActivity(actor Actor, entryID string, keyboard, mouse int) (*models.TimeEntry, error) {
	if keyboard < 0 || mouse < 0 {
		return nil, errors.New(errors.ErrValidation, "activity counts cannot be negative")
	}

	e, err := l.loadVisible(actor, entryID)
	if err != nil {
		return nil, err
	}
	if e.Status == models.StatusStopped {
		return nil, errors.Newf(errors.ErrInvalidState, "entry %s is already stopped", entryID)
	}

	e.Activity.Keyboard += keyboard
	e.Activity.Mouse += mouse
	e.RefreshActivity()
	e.Touch(l.clock.Now())

	if err := l.saveEntry(e); err != nil {
		return nil, err
	}
	return e, nil
}

// CalculatePayroll builds a pay statement for one employee over a period.
// Managers may run it for anyone in their company; users only for
// themselves. Rates and currency come from the employee record.
func (l *Ledger) CalculatePayroll(actor Actor, userID string, periodStart, periodEnd time.Time, bonuses []payroll.Bonus, deductions []payroll.Deduction) (*payroll.Statement, error) {
	if userID != actor.UserID && !actor.Role.IsManagerial() {
		return nil, errors.New(errors.ErrPermission, "cannot run payroll for another user")
	}
	if !periodStart.Before(periodEnd) {
		return nil, errors.New(errors.ErrValidation, "period end must be after period start")
	}

	u, err := l.store.GetUser(userID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load user", err)
	}
	if u == nil || u.CompanyID != actor.CompanyID {
		return nil, errors.Newf(errors.ErrUserNotFound, "user %s not found", userID)
	}

	entries, err := l.store.FindForPayroll(userID, periodStart, periodEnd)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load payroll entries", err)
	}

	stmt := l.calc.Calculate(entries, payroll.Input{
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		HourlyRate:   u.HourlyRate,
		OvertimeRate: u.OvertimeRate,
		Bonuses:      bonuses,
		Deductions:   deductions,
		Currency:     u.Currency,
	})
	return &stmt, nil
}

// PayrollSummary builds the company-wide hours and estimated-pay overview
// for a period. Managers and admins only.
func (l *Ledger) PayrollSummary(actor Actor, periodStart, periodEnd time.Time) (*payroll.Summary, error) {
	if !actor.Role.IsManagerial() {
		return nil, errors.New(errors.ErrPermission, "only managers can run the payroll summary")
	}
	if !periodStart.Before(periodEnd) {
		return nil, errors.New(errors.ErrValidation, "period end must be after period start")
	}

	users, err := l.store.ListActiveUsers(actor.CompanyID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list users", err)
	}

	entriesByUser := make(map[string][]*models.TimeEntry, len(users))
	for _, u := range users {
		entries, err := l.store.FindForPayroll(u.ID, periodStart, periodEnd)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to load payroll entries", err)
		}
		entriesByUser[u.ID] = entries
	}

	summary := payroll.Summarize(users, entriesByUser, payroll.Period{Start: periodStart, End: periodEnd})
	return &summary, nil
}

// loadVisible fetches an entry and applies the visibility rules: wrong
// company and, for non-managers, wrong owner both collapse into not found.
func (l *Ledger) loadVisible(actor Actor, entryID string) (*models.TimeEntry, error) {
	e, err := l.store.GetEntry(entryID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load entry", err)
	}
	if e == nil || e.CompanyID != actor.CompanyID {
		return nil, errors.Newf(errors.ErrEntryNotFound, "entry %s not found", entryID)
	}
	if e.UserID != actor.UserID && !actor.Role.IsManagerial() {
		return nil, errors.Newf(errors.ErrEntryNotFound, "entry %s not found", entryID)
	}
	return e, nil
}

func (l *Ledger) saveEntry(e *models.TimeEntry) error {
	if err := l.store.UpdateEntry(e); err != nil {
		if err == sql.ErrNoRows {
			return errors.Newf(errors.ErrEntryNotFound, "entry %s not found", e.ID)
		}
		return errors.Wrap(errors.ErrDatabase, "failed to update entry", err)
	}
	return nil
}

// checkAssociations verifies the referenced project and task exist and
// belong to the actor's company.
func (l *Ledger) checkAssociations(actor Actor, projectID, taskID string) error {
	if projectID != "" {
		p, err := l.store.GetProject(projectID)
		if err != nil {
			return errors.Wrap(errors.ErrDatabase, "failed to load project", err)
		}
		if p == nil || p.CompanyID != actor.CompanyID {
			return errors.Newf(errors.ErrProjectNotFound, "project %s not found", projectID)
		}
	}
	if taskID != "" {
		t, err := l.store.GetTask(taskID)
		if err != nil {
			return errors.Wrap(errors.ErrDatabase, "failed to load task", err)
		}
		if t == nil || t.CompanyID != actor.CompanyID {
			return errors.Newf(errors.ErrTaskNotFound, "task %s not found", taskID)
		}
	}
	return nil
}

// rollupHours records a stopped entry's hours against its project and
// task. Rollup failures are logged and swallowed so a stop never fails
// after the entry itself is saved.
func (l *Ledger) rollupHours(e *models.TimeEntry, now time.Time) {
	hours := float64(e.Duration) / 3600

	if e.ProjectID != "" {
		p, err := l.store.GetProject(e.ProjectID)
		if err == nil && p != nil {
			p.AddHours(hours, e.Billable, now)
			p.UpdatedAt = now
			err = l.store.UpdateProject(p)
		}
		if err != nil {
			logging.Error("project rollup failed", err, logging.Fields{
				"entry_id":   e.ID,
				"project_id": e.ProjectID,
			})
		}
	}

	if e.TaskID != "" {
		t, err := l.store.GetTask(e.TaskID)
		if err == nil && t != nil {
			t.AddHours(hours)
			t.UpdatedAt = now
			err = l.store.UpdateTask(t)
		}
		if err != nil {
			logging.Error("task rollup failed", err, logging.Fields{
				"entry_id": e.ID,
				"task_id":  e.TaskID,
			})
		}
	}
}
