package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timedock/timeledger/internal/clock"
	"github.com/timedock/timeledger/internal/db"
	"github.com/timedock/timeledger/internal/errors"
	"github.com/timedock/timeledger/internal/models"
	"github.com/timedock/timeledger/internal/payroll"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	store   *db.MemoryStore
	clock   *clock.Fake
	ledger  *Ledger
	worker  Actor
	other   Actor
	manager Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := db.NewMemoryStore()
	clk := clock.NewFake(ts("2024-01-01T09:00:00Z"))

	f := &fixture{
		store:   store,
		clock:   clk,
		ledger:  New(store, clk),
		worker:  Actor{UserID: "u-worker", CompanyID: "c1", Role: models.RoleUser},
		other:   Actor{UserID: "u-other", CompanyID: "c1", Role: models.RoleUser},
		manager: Actor{UserID: "u-manager", CompanyID: "c1", Role: models.RoleManager},
	}

	users := []*models.User{
		{ID: "u-worker", CompanyID: "c1", FirstName: "Ada", LastName: "Lovelace",
			Email: "ada@example.com", Role: models.RoleUser, HourlyRate: 20,
			Currency: "USD", Status: "active"},
		{ID: "u-other", CompanyID: "c1", FirstName: "Bob", LastName: "Beta",
			Email: "bob@example.com", Role: models.RoleUser, HourlyRate: 15,
			Currency: "USD", Status: "active"},
		{ID: "u-manager", CompanyID: "c1", FirstName: "Mia", LastName: "Manager",
			Email: "mia@example.com", Role: models.RoleManager, HourlyRate: 40,
			Currency: "USD", Status: "active"},
	}
	for _, u := range users {
		require.NoError(t, store.CreateUser(u))
	}
	require.NoError(t, store.CreateProject(&models.Project{ID: "p1", CompanyID: "c1", Name: "Website"}))
	require.NoError(t, store.CreateProject(&models.Project{ID: "p-foreign", CompanyID: "c2", Name: "Elsewhere"}))
	require.NoError(t, store.CreateTask(&models.Task{ID: "t1", CompanyID: "c1", ProjectID: "p1", Title: "Build"}))
	return f
}

// stoppedEntry runs a full start/stop cycle and returns the stopped entry.
func (f *fixture) stoppedEntry(t *testing.T, actor Actor, d time.Duration) *models.TimeEntry {
	t.Helper()
	e, err := f.ledger.Start(actor, StartInput{})
	require.NoError(t, err)
	f.clock.Advance(d)
	e, err = f.ledger.Stop(actor, e.ID)
	require.NoError(t, err)
	return e
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)

	e, err := f.ledger.Start(f.worker, StartInput{
		ProjectID:   "p1",
		TaskID:      "t1",
		Description: "homepage",
		Tags:        []string{"frontend"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, e.Status)
	assert.True(t, e.Billable, "entries default to billable")
	assert.Equal(t, models.ApprovalPending, e.Approval.Status)
	assert.Nil(t, e.EndTime)

	f.clock.Advance(2 * time.Hour)
	e, err = f.ledger.Stop(f.worker, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStopped, e.Status)
	assert.Equal(t, int64(7200), e.Duration)
	require.NotNil(t, e.EndTime)
}

func TestStartRejectsSecondTimer(t *testing.T) {
	f := newFixture(t)

	first, err := f.ledger.Start(f.worker, StartInput{})
	require.NoError(t, err)

	_, err = f.ledger.Start(f.worker, StartInput{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTimerRunning))

	// The first timer keeps running.
	cur, err := f.ledger.Current(f.worker)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, first.ID, cur.ID)

	// A different user is unaffected.
	_, err = f.ledger.Start(f.other, StartInput{})
	assert.NoError(t, err)
}

func TestStartConcurrent(t *testing.T) {
	f := newFixture(t)

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Start(f.worker, StartInput{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		if err == nil {
			ok++
		} else if errors.Is(err, errors.ErrTimerRunning) {
			conflicts++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactly one start must win")
	assert.Equal(t, attempts-1, conflicts)
}

func TestStartUnknownProjectOrTask(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Start(f.worker, StartInput{ProjectID: "nope"})
	assert.True(t, errors.Is(err, errors.ErrProjectNotFound))

	// Another company's project is invisible, not forbidden.
	_, err = f.ledger.Start(f.worker, StartInput{ProjectID: "p-foreign"})
	assert.True(t, errors.Is(err, errors.ErrProjectNotFound))

	_, err = f.ledger.Start(f.worker, StartInput{TaskID: "nope"})
	assert.True(t, errors.Is(err, errors.ErrTaskNotFound))
}

func TestStopWrongState(t *testing.T) {
	f := newFixture(t)
	e := f.stoppedEntry(t, f.worker, time.Hour)

	_, err := f.ledger.Stop(f.worker, e.ID)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	_, err = f.ledger.Stop(f.worker, "missing")
	assert.True(t, errors.Is(err, errors.ErrEntryNotFound))
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t)

	e, err := f.ledger.Start(f.worker, StartInput{})
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	e, err = f.ledger.Pause(f.worker, e.ID, models.BreakLunch)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, e.Status)
	require.Len(t, e.Breaks, 1)
	assert.Nil(t, e.Breaks[0].EndTime)
	assert.Equal(t, models.BreakLunch, e.Breaks[0].Type)

	// Pausing a paused entry fails.
	_, err = f.ledger.Pause(f.worker, e.ID, "")
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	f.clock.Advance(15 * time.Minute)
	e, err = f.ledger.Resume(f.worker, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, e.Status)
	require.NotNil(t, e.Breaks[0].EndTime)
	assert.Equal(t, int64(900), e.Breaks[0].Duration)

	// Resuming a running entry fails.
	_, err = f.ledger.Resume(f.worker, e.ID)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	// Break time counts toward the wall-clock duration.
	f.clock.Advance(15 * time.Minute)
	e, err = f.ledger.Stop(f.worker, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), e.Duration)
}

func TestStopClosesOpenBreak(t *testing.T) {
	f := newFixture(t)

	e, err := f.ledger.Start(f.worker, StartInput{})
	require.NoError(t, err)
	f.clock.Advance(20 * time.Minute)
	_, err = f.ledger.Pause(f.worker, e.ID, "")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	e, err = f.ledger.Stop(f.worker, e.ID)
	require.NoError(t, err)

	require.Len(t, e.Breaks, 1)
	require.NotNil(t, e.Breaks[0].EndTime)
	assert.Equal(t, int64(600), e.Breaks[0].Duration)
	assert.Equal(t, models.BreakShort, e.Breaks[0].Type)
	assert.Equal(t, int64(1800), e.Duration)
}

func TestActivityClassifiedAtStop(t *testing.T) {
	f := newFixture(t)

	e, err := f.ledger.Start(f.worker, StartInput{})
	require.NoError(t, err)

	e, err = f.ledger.RecordActivity(f.worker, e.ID, 20, 10)
	require.NoError(t, err)
	assert.Equal(t, 30, e.Activity.Total)
	assert.Empty(t, e.Activity.Level, "level stays unset while running")

	f.clock.Advance(10 * time.Minute)
	e, err = f.ledger.Stop(f.worker, e.ID)
	require.NoError(t, err)
	// 30 events over 10 minutes is 3 per minute.
	assert.Equal(t, models.ActivityIdle, e.Activity.Level)

	_, err = f.ledger.RecordActivity(f.worker, e.ID, 1, 1)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	_, err = f.ledger.RecordActivity(f.worker, e.ID, -1, 0)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestStopRollsUpProjectAndTask(t *testing.T) {
	f := newFixture(t)

	e, err := f.ledger.Start(f.worker, StartInput{ProjectID: "p1", TaskID: "t1"})
	require.NoError(t, err)
	f.clock.Advance(90 * time.Minute)
	_, err = f.ledger.Stop(f.worker, e.ID)
	require.NoError(t, err)

	p, err := f.store.GetProject("p1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, p.Stats.TotalHours)
	assert.Equal(t, 1.5, p.Stats.BillableHours)
	require.NotNil(t, p.Stats.LastActivity)

	task, err := f.store.GetTask("t1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, task.ActualHours)
}

func TestCreateManual(t *testing.T) {
	f := newFixture(t)

	e, err := f.ledger.CreateManual(f.worker, ManualInput{
		Start:       ts("2024-01-01T06:00:00Z"),
		End:         ts("2024-01-01T08:00:00Z"),
		Description: "early review",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusStopped, e.Status)
	assert.True(t, e.Manual)
	assert.Equal(t, "manual", e.Source)
	assert.Equal(t, int64(7200), e.Duration)
	assert.Equal(t, models.ApprovalPending, e.Approval.Status)
}

func TestCreateManualValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.CreateManual(f.worker, ManualInput{
		Start: ts("2024-01-01T08:00:00Z"),
		End:   ts("2024-01-01T08:00:00Z"),
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = f.ledger.CreateManual(f.worker, ManualInput{
		Start: ts("2024-01-01T08:00:00Z"),
		End:   ts("2024-01-01T07:00:00Z"),
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestCreateManualOverlap(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.CreateManual(f.worker, ManualInput{
		Start: ts("2024-01-01T06:00:00Z"),
		End:   ts("2024-01-01T08:00:00Z"),
	})
	require.NoError(t, err)

	// Any intersection is rejected.
	_, err = f.ledger.CreateManual(f.worker, ManualInput{
		Start: ts("2024-01-01T07:00:00Z"),
		End:   ts("2024-01-01T09:00:00Z"),
	})
	assert.True(t, errors.Is(err, errors.ErrEntryOverlap))

	// Touching endpoints do not overlap under half-open intervals.
	_, err = f.ledger.CreateManual(f.worker, ManualInput{
		Start: ts("2024-01-01T08:00:00Z"),
		End:   ts("2024-01-01T08:30:00Z"),
	})
	assert.NoError(t, err)

	// Another user may log the same interval.
	_, err = f.ledger.CreateManual(f.other, ManualInput{
		Start: ts("2024-01-01T06:30:00Z"),
		End:   ts("2024-01-01T07:30:00Z"),
	})
	assert.NoError(t, err)
}

func TestCreateManualOverlapsRunningTimer(t *testing.T) {
	f := newFixture(t)

	// Running timer started at 09:00 is open-ended.
	_, err := f.ledger.Start(f.worker, StartInput{})
	require.NoError(t, err)

	_, err = f.ledger.CreateManual(f.worker, ManualInput{
		Start: ts("2024-01-01T10:00:00Z"),
		End:   ts("2024-01-01T11:00:00Z"),
	})
	assert.True(t, errors.Is(err, errors.ErrEntryOverlap))

	// Before the running timer's start is fine.
	_, err = f.ledger.CreateManual(f.worker, ManualInput{
		Start: ts("2024-01-01T07:00:00Z"),
		End:   ts("2024-01-01T08:00:00Z"),
	})
	assert.NoError(t, err)
}

func TestUpdateStampsEditOnce(t *testing.T) {
	f := newFixture(t)
	e := f.stoppedEntry(t, f.worker, time.Hour)

	newEnd := e.StartTime.Add(2 * time.Hour)
	e, err := f.ledger.Update(f.worker, e.ID, UpdateInput{
		End:    &newEnd,
		Reason: "forgot to stop the timer",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7200), e.Duration)
	assert.True(t, e.Edit.IsEdited)
	assert.Equal(t, int64(3600), e.Edit.OriginalDuration)
	assert.Equal(t, "forgot to stop the timer", e.Edit.Reason)
	assert.Equal(t, f.worker.UserID, e.Edit.By)

	// A second edit keeps the original duration from the first.
	desc := "updated"
	e, err = f.ledger.Update(f.worker, e.ID, UpdateInput{Description: &desc, Reason: "typo"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), e.Edit.OriginalDuration)
	assert.Equal(t, "forgot to stop the timer", e.Edit.Reason)
}

func TestUpdateRules(t *testing.T) {
	f := newFixture(t)

	running, err := f.ledger.Start(f.worker, StartInput{})
	require.NoError(t, err)
	desc := "nope"
	_, err = f.ledger.Update(f.worker, running.ID, UpdateInput{Description: &desc})
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	f.clock.Advance(time.Hour)
	_, err = f.ledger.Stop(f.worker, running.ID)
	require.NoError(t, err)

	e := f.stoppedEntry(t, f.worker, time.Hour)

	// start >= end is invalid.
	badEnd := e.StartTime
	_, err = f.ledger.Update(f.worker, e.ID, UpdateInput{End: &badEnd})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	// Moving the interval onto an existing entry is rejected.
	newStart := running.StartTime
	_, err = f.ledger.Update(f.worker, e.ID, UpdateInput{Start: &newStart})
	assert.True(t, errors.Is(err, errors.ErrEntryOverlap))

	// Unknown project reference is rejected.
	badProject := "nope"
	_, err = f.ledger.Update(f.worker, e.ID, UpdateInput{ProjectID: &badProject})
	assert.True(t, errors.Is(err, errors.ErrProjectNotFound))

	// Owners cannot edit once the entry is decided; managers can.
	_, err = f.ledger.Approve(f.manager, e.ID, "")
	require.NoError(t, err)
	_, err = f.ledger.Update(f.worker, e.ID, UpdateInput{Description: &desc})
	assert.True(t, errors.Is(err, errors.ErrPermission))
	_, err = f.ledger.Update(f.manager, e.ID, UpdateInput{Description: &desc})
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)

	running, err := f.ledger.Start(f.worker, StartInput{})
	require.NoError(t, err)
	err = f.ledger.Delete(f.worker, running.ID)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	f.clock.Advance(time.Hour)
	_, err = f.ledger.Stop(f.worker, running.ID)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Delete(f.worker, running.ID))

	got, err := f.store.GetEntry(running.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Approved entries need a manager to delete.
	e := f.stoppedEntry(t, f.worker, time.Hour)
	_, err = f.ledger.Approve(f.manager, e.ID, "")
	require.NoError(t, err)
	err = f.ledger.Delete(f.worker, e.ID)
	assert.True(t, errors.Is(err, errors.ErrPermission))
	assert.NoError(t, f.ledger.Delete(f.manager, e.ID))
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)
	e := f.stoppedEntry(t, f.worker, time.Hour)

	// Another plain user cannot see, edit, or delete the entry.
	_, err := f.ledger.Stop(f.other, e.ID)
	assert.True(t, errors.Is(err, errors.ErrEntryNotFound))
	err = f.ledger.Delete(f.other, e.ID)
	assert.True(t, errors.Is(err, errors.ErrEntryNotFound))

	// A manager from another company cannot either.
	foreign := Actor{UserID: "u-m2", CompanyID: "c2", Role: models.RoleManager}
	_, err = f.ledger.Approve(foreign, e.ID, "")
	assert.True(t, errors.Is(err, errors.ErrEntryNotFound))

	// The company's manager can see it.
	_, err = f.ledger.Approve(f.manager, e.ID, "ok")
	assert.NoError(t, err)
}

func TestApprovalWorkflow(t *testing.T) {
	f := newFixture(t)
	e := f.stoppedEntry(t, f.worker, time.Hour)

	// Plain users cannot decide.
	_, err := f.ledger.Approve(f.other, e.ID, "")
	assert.True(t, errors.Is(err, errors.ErrPermission))

	e, err = f.ledger.Approve(f.manager, e.ID, "looks right")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, e.Approval.Status)
	assert.Equal(t, f.manager.UserID, e.Approval.By)
	require.NotNil(t, e.Approval.At)
	assert.Equal(t, "looks right", e.Approval.Notes)

	// Decisions are final in both directions.
	_, err = f.ledger.Approve(f.manager, e.ID, "")
	assert.True(t, errors.Is(err, errors.ErrApprovalDecided))
	_, err = f.ledger.Reject(f.manager, e.ID, "")
	assert.True(t, errors.Is(err, errors.ErrApprovalDecided))
}

func TestApprovalGuards(t *testing.T) {
	f := newFixture(t)

	// A running entry is not ready for a decision.
	running, err := f.ledger.Start(f.worker, StartInput{})
	require.NoError(t, err)
	_, err = f.ledger.Approve(f.manager, running.ID, "")
	assert.True(t, errors.Is(err, errors.ErrApprovalNotReady))

	// Managers cannot decide their own entries.
	own := f.stoppedEntry(t, f.manager, time.Hour)
	_, err = f.ledger.Approve(f.manager, own.ID, "")
	assert.True(t, errors.Is(err, errors.ErrPermission))
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	e := f.stoppedEntry(t, f.worker, time.Hour)

	e, err := f.ledger.Reject(f.manager, e.ID, "wrong project")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, e.Approval.Status)

	// Rejected entries never reach payroll.
	stmt, err := f.ledger.CalculatePayroll(f.manager, f.worker.UserID,
		ts("2024-01-01T00:00:00Z"), ts("2024-02-01T00:00:00Z"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stmt.Hours.Total)
}

func TestCurrent(t *testing.T) {
	f := newFixture(t)

	cur, err := f.ledger.Current(f.worker)
	require.NoError(t, err)
	assert.Nil(t, cur)

	e, err := f.ledger.Start(f.worker, StartInput{})
	require.NoError(t, err)

	cur, err = f.ledger.Current(f.worker)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, e.ID, cur.ID)

	// Only running timers count as current.
	_, err = f.ledger.Pause(f.worker, e.ID, "")
	require.NoError(t, err)
	cur, err = f.ledger.Current(f.worker)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestListScopingAndTotals(t *testing.T) {
	f := newFixture(t)

	f.stoppedEntry(t, f.worker, 2*time.Hour)
	f.clock.Advance(time.Hour)
	f.stoppedEntry(t, f.other, time.Hour)

	// Non-managers only see their own entries even when asking for more.
	list, err := f.ledger.List(f.worker, db.EntryFilter{UserID: f.other.UserID})
	require.NoError(t, err)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, f.worker.UserID, list.Entries[0].UserID)
	assert.Equal(t, 2.0, list.TotalHours)
	assert.Equal(t, 2.0, list.BillableHours)

	// Managers see the whole company.
	list, err = f.ledger.List(f.manager, db.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, list.Entries, 2)
	assert.Equal(t, 3.0, list.TotalHours)
	assert.Equal(t, 2, list.Count)

	// And can narrow to one user.
	list, err = f.ledger.List(f.manager, db.EntryFilter{UserID: f.other.UserID})
	require.NoError(t, err)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, f.other.UserID, list.Entries[0].UserID)
}

func TestCalculatePayrollFacade(t *testing.T) {
	f := newFixture(t)

	// 45 hours in one week at rate 20: 9h on Monday through Friday.
	for day := 1; day <= 5; day++ {
		f.clock.Set(time.Date(2024, 1, day, 9, 0, 0, 0, time.UTC))
		e := f.stoppedEntry(t, f.worker, 9*time.Hour)
		_, err := f.ledger.Approve(f.manager, e.ID, "")
		require.NoError(t, err)
	}

	stmt, err := f.ledger.CalculatePayroll(f.manager, f.worker.UserID,
		ts("2024-01-01T00:00:00Z"), ts("2024-02-01T00:00:00Z"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 40.0, stmt.Hours.Regular)
	assert.Equal(t, 5.0, stmt.Hours.Overtime)
	assert.Equal(t, 800.0, stmt.Earnings.Regular)
	assert.Equal(t, 150.0, stmt.Earnings.Overtime)
	assert.Equal(t, 950.0, stmt.Earnings.Gross)
	assert.Equal(t, "USD", stmt.Currency)
}

func TestCalculatePayrollAuthorization(t *testing.T) {
	f := newFixture(t)

	// Users may run their own payroll but nobody else's.
	_, err := f.ledger.CalculatePayroll(f.worker, f.worker.UserID,
		ts("2024-01-01T00:00:00Z"), ts("2024-02-01T00:00:00Z"), nil, nil)
	assert.NoError(t, err)

	_, err = f.ledger.CalculatePayroll(f.worker, f.other.UserID,
		ts("2024-01-01T00:00:00Z"), ts("2024-02-01T00:00:00Z"), nil, nil)
	assert.True(t, errors.Is(err, errors.ErrPermission))

	_, err = f.ledger.CalculatePayroll(f.manager, "nope",
		ts("2024-01-01T00:00:00Z"), ts("2024-02-01T00:00:00Z"), nil, nil)
	assert.True(t, errors.Is(err, errors.ErrUserNotFound))

	_, err = f.ledger.CalculatePayroll(f.manager, f.worker.UserID,
		ts("2024-02-01T00:00:00Z"), ts("2024-01-01T00:00:00Z"), nil, nil)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestCalculatePayrollWithBonuses(t *testing.T) {
	f := newFixture(t)

	e := f.stoppedEntry(t, f.worker, 10*time.Hour)
	_, err := f.ledger.Approve(f.manager, e.ID, "")
	require.NoError(t, err)

	stmt, err := f.ledger.CalculatePayroll(f.manager, f.worker.UserID,
		ts("2024-01-01T00:00:00Z"), ts("2024-02-01T00:00:00Z"),
		[]payroll.Bonus{{Type: "spot", Amount: 50}},
		[]payroll.Deduction{{Type: "tax", Amount: 25}})
	require.NoError(t, err)

	assert.Equal(t, 200.0, stmt.Earnings.Regular)
	assert.Equal(t, 250.0, stmt.Earnings.Gross)
	assert.Equal(t, 225.0, stmt.NetPay)
}

func TestPayrollSummaryFacade(t *testing.T) {
	f := newFixture(t)

	e := f.stoppedEntry(t, f.worker, 8*time.Hour)
	_, err := f.ledger.Approve(f.manager, e.ID, "")
	require.NoError(t, err)

	// Pending work is excluded from the summary.
	f.clock.Advance(time.Hour)
	f.stoppedEntry(t, f.other, 4*time.Hour)

	summary, err := f.ledger.PayrollSummary(f.manager,
		ts("2024-01-01T00:00:00Z"), ts("2024-02-01T00:00:00Z"))
	require.NoError(t, err)

	require.Len(t, summary.Rows, 3)
	assert.Equal(t, 3, summary.Totals.Employees)
	assert.Equal(t, 8.0, summary.Totals.TotalHours)
	assert.Equal(t, 160.0, summary.Totals.TotalEstimatedPay)

	_, err = f.ledger.PayrollSummary(f.worker,
		ts("2024-01-01T00:00:00Z"), ts("2024-02-01T00:00:00Z"))
	assert.True(t, errors.Is(err, errors.ErrPermission))
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)

	// Start at 09:00, work, pause for lunch, resume, stop at 17:00.
	e, err := f.ledger.Start(f.worker, StartInput{ProjectID: "p1", Description: "release prep"})
	require.NoError(t, err)

	f.clock.Set(ts("2024-01-01T12:00:00Z"))
	_, err = f.ledger.Pause(f.worker, e.ID, models.BreakLunch)
	require.NoError(t, err)

	f.clock.Set(ts("2024-01-01T13:00:00Z"))
	_, err = f.ledger.Resume(f.worker, e.ID)
	require.NoError(t, err)

	_, err = f.ledger.RecordActivity(f.worker, e.ID, 9000, 3000)
	require.NoError(t, err)

	f.clock.Set(ts("2024-01-01T17:00:00Z"))
	e, err = f.ledger.Stop(f.worker, e.ID)
	require.NoError(t, err)

	// 8h wall clock with the 1h lunch recorded, not subtracted.
	assert.Equal(t, int64(8*3600), e.Duration)
	assert.Equal(t, "08:00:00", e.FormattedDuration())
	require.Len(t, e.Breaks, 1)
	assert.Equal(t, int64(3600), e.Breaks[0].Duration)
	// 12000 events over 480 minutes is 25 per minute.
	assert.Equal(t, models.ActivityLow, e.Activity.Level)

	e, err = f.ledger.Approve(f.manager, e.ID, "")
	require.NoError(t, err)

	stmt, err := f.ledger.CalculatePayroll(f.manager, f.worker.UserID,
		ts("2024-01-01T00:00:00Z"), ts("2024-01-08T00:00:00Z"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 8.0, stmt.Hours.Total)
	assert.Equal(t, 160.0, stmt.Earnings.Gross)
}
