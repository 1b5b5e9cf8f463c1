package models

import "time"

// Role controls which ledger operations a caller may perform. Managers
// and admins may approve entries and read other users' data.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// IsManagerial reports whether the role may approve entries and see
// company-wide data.
func (r Role) IsManagerial() bool {
	return r == RoleManager || r == RoleAdmin
}

// User is the payroll-relevant subset of an employee record.
type User struct {
	ID           string    `db:"id" json:"id"`
	CompanyID    string    `db:"company_id" json:"company_id"`
	Email        string    `db:"email" json:"email"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Role         Role      `db:"role" json:"role"`
	HourlyRate   float64   `db:"hourly_rate" json:"hourly_rate,omitempty"`
	OvertimeRate float64   `db:"overtime_rate" json:"overtime_rate,omitempty"`
	Currency     string    `db:"currency" json:"currency"`
	Timezone     string    `db:"timezone" json:"timezone"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
