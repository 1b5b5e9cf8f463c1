// Package models provides data model definitions for the time ledger.
package models

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a time entry.
type Status string

const (
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

// ApprovalStatus gates whether an entry counts toward payroll.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ActivityLevel is a coarse classification of input intensity.
type ActivityLevel string

const (
	ActivityIdle   ActivityLevel = "idle"
	ActivityLow    ActivityLevel = "low"
	ActivityMedium ActivityLevel = "medium"
	ActivityHigh   ActivityLevel = "high"
)

// BreakType categorizes a pause within an entry.
type BreakType string

const (
	BreakShort BreakType = "short"
	BreakLunch BreakType = "lunch"
	BreakOther BreakType = "other"
)

// Activity holds input event counters for an entry and the level derived
// from them.
type Activity struct {
	Keyboard int           `json:"keyboard"`
	Mouse    int           `json:"mouse"`
	Total    int           `json:"total"`
	Level    ActivityLevel `json:"level,omitempty"`
}

// Break is a pause interval recorded while an entry is paused. Break time
// is reported separately and never subtracted from the entry duration.
type Break struct {
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Duration  int64      `json:"duration"` // seconds
	Type      BreakType  `json:"type"`
}

// Approval tracks the manager decision on an entry. Only pending entries
// may be decided, and a decision is final.
type Approval struct {
	Status ApprovalStatus `json:"status"`
	By     string         `json:"by,omitempty"`
	At     *time.Time     `json:"at,omitempty"`
	Notes  string         `json:"notes,omitempty"`
}

// Edit records the first post-stop modification of an entry.
// OriginalDuration is set once and never overwritten.
type Edit struct {
	IsEdited         bool       `json:"is_edited"`
	OriginalDuration int64      `json:"original_duration,omitempty"`
	By               string     `json:"by,omitempty"`
	At               *time.Time `json:"at,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}

// TimeEntry represents a single tracked interval of work.
type TimeEntry struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	CompanyID   string     `db:"company_id" json:"company_id"`
	ProjectID   string     `db:"project_id" json:"project_id,omitempty"`
	TaskID      string     `db:"task_id" json:"task_id,omitempty"`
	StartTime   time.Time  `db:"start_time" json:"start_time"`
	EndTime     *time.Time `db:"end_time" json:"end_time,omitempty"`
	Duration    int64      `db:"duration" json:"duration"` // seconds, derived
	Description string     `db:"description" json:"description,omitempty"`
	Tags        []string   `db:"tags" json:"tags,omitempty"`
	Billable    bool       `db:"billable" json:"billable"`
	Rate        float64    `db:"rate" json:"rate,omitempty"` // hourly, 0 = unset
	Status      Status     `db:"status" json:"status"`
	Manual      bool       `db:"manual" json:"manual"`
	Source      string     `db:"source" json:"source,omitempty"`
	Activity    Activity   `db:"activity" json:"activity"`
	Breaks      []Break    `db:"breaks" json:"breaks,omitempty"`
	Approval    Approval   `db:"approval" json:"approval"`
	Edit        Edit       `db:"edit" json:"edit"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for TimeEntry.
func (TimeEntry) TableName() string {
	return "time_entries"
}

// Touch updates the UpdatedAt timestamp.
func (e *TimeEntry) Touch(now time.Time) {
	e.UpdatedAt = now
}

// RecomputeDuration derives Duration from the start and end timestamps.
// It is a no-op while the entry is still running.
func (e *TimeEntry) RecomputeDuration() {
	if e.EndTime == nil {
		e.Duration = 0
		return
	}
	e.Duration = e.EndTime.Sub(e.StartTime).Milliseconds() / 1000
}

// ClassifyActivity derives the activity level from the keyboard and mouse
// counters over the entry duration. The level stays unset while the entry
// is running or has zero duration.
func (e *TimeEntry) ClassifyActivity() ActivityLevel {
	if e.EndTime == nil || e.Duration <= 0 {
		return ""
	}
	perMinute := float64(e.Activity.Keyboard+e.Activity.Mouse) / (float64(e.Duration) / 60)
	switch {
	case perMinute < 10:
		return ActivityIdle
	case perMinute < 50:
		return ActivityLow
	case perMinute < 150:
		return ActivityMedium
	default:
		return ActivityHigh
	}
}

// RefreshActivity recomputes the total counter and the derived level.
func (e *TimeEntry) RefreshActivity() {
	e.Activity.Total = e.Activity.Keyboard + e.Activity.Mouse
	e.Activity.Level = e.ClassifyActivity()
}

// BillableAmount returns the monetary value of the entry, zero if it is
// not billable or carries no rate.
func (e *TimeEntry) BillableAmount() float64 {
	if !e.Billable || e.Rate == 0 {
		return 0
	}
	return float64(e.Duration) / 3600 * e.Rate
}

// OpenBreak returns the most recent break without an end time, or nil.
func (e *TimeEntry) OpenBreak() *Break {
	if len(e.Breaks) == 0 {
		return nil
	}
	last := &e.Breaks[len(e.Breaks)-1]
	if last.EndTime == nil {
		return last
	}
	return nil
}

// CloseOpenBreak sets the end time and duration of the open break, if any.
func (e *TimeEntry) CloseOpenBreak(now time.Time) {
	br := e.OpenBreak()
	if br == nil {
		return
	}
	end := now
	br.EndTime = &end
	br.Duration = end.Sub(br.StartTime).Milliseconds() / 1000
}

// MarkEdited populates the edit block on the first post-stop mutation.
// Subsequent calls leave the original duration untouched.
func (e *TimeEntry) MarkEdited(by, reason string, now time.Time) {
	if e.Edit.IsEdited {
		return
	}
	at := now
	e.Edit = Edit{
		IsEdited:         true,
		OriginalDuration: e.Duration,
		By:               by,
		At:               &at,
		Reason:           reason,
	}
}

// Overlaps reports whether the entry's [start, end) interval intersects
// the given interval. Running entries are treated as open-ended.
func (e *TimeEntry) Overlaps(start, end time.Time) bool {
	if !start.Before(end) {
		return false
	}
	if e.EndTime == nil {
		return e.StartTime.Before(end)
	}
	return e.StartTime.Before(end) && start.Before(*e.EndTime)
}

// FormattedDuration renders the duration as HH:MM:SS.
func (e *TimeEntry) FormattedDuration() string {
	d := e.Duration
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", d/3600, (d%3600)/60, d%60)
}
