package models

import "time"

// ProjectStats holds hour rollups maintained by the ledger when timers
// stop against the project.
type ProjectStats struct {
	TotalHours    float64    `json:"total_hours"`
	BillableHours float64    `json:"billable_hours"`
	LastActivity  *time.Time `json:"last_activity,omitempty"`
}

// Project is a minimal project record used for company-scope checks and
// hour rollups.
type Project struct {
	ID        string       `db:"id" json:"id"`
	CompanyID string       `db:"company_id" json:"company_id"`
	Name      string       `db:"name" json:"name"`
	Color     string       `db:"color" json:"color,omitempty"`
	Archived  bool         `db:"archived" json:"archived"`
	Stats     ProjectStats `db:"stats" json:"stats"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Project.
func (Project) TableName() string {
	return "projects"
}

// AddHours records a stopped entry's hours against the project.
func (p *Project) AddHours(hours float64, billable bool, at time.Time) {
	p.Stats.TotalHours += hours
	if billable {
		p.Stats.BillableHours += hours
	}
	t := at
	p.Stats.LastActivity = &t
}
