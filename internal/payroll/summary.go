package payroll

import (
	"github.com/timedock/timeledger/internal/models"
)

// EmployeeRef identifies an employee in reports.
type EmployeeRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SummaryRow is one employee's line in a period summary.
type SummaryRow struct {
	Employee      EmployeeRef `json:"employee"`
	TotalHours    float64     `json:"total_hours"`
	BillableHours float64     `json:"billable_hours"`
	EstimatedPay  float64     `json:"estimated_pay"`
	EntriesCount  int         `json:"entries_count"`
}

// SummaryTotals aggregates a summary across employees.
type SummaryTotals struct {
	Employees          int     `json:"employees"`
	TotalHours         float64 `json:"total_hours"`
	TotalBillableHours float64 `json:"total_billable_hours"`
	TotalEstimatedPay  float64 `json:"total_estimated_pay"`
}

// Summary is the company-wide payroll overview for a period.
type Summary struct {
	Period Period        `json:"period"`
	Rows   []SummaryRow  `json:"rows"`
	Totals SummaryTotals `json:"totals"`
}

// Summarize builds a per-employee hours and estimated-pay overview.
// Rows follow the order of users; entriesByUser values are expected to be
// the stopped, approved entries of the period (extra entries are skipped
// the same way Calculate skips them).
func Summarize(users []*models.User, entriesByUser map[string][]*models.TimeEntry, period Period) Summary {
	summary := Summary{Period: period}

	for _, u := range users {
		var totalSeconds, billableSeconds int64
		var count int
		for _, e := range entriesByUser[u.ID] {
			if e.Status != models.StatusStopped || e.Approval.Status != models.ApprovalApproved {
				continue
			}
			if e.StartTime.Before(period.Start) || !e.StartTime.Before(period.End) {
				continue
			}
			totalSeconds += e.Duration
			if e.Billable {
				billableSeconds += e.Duration
			}
			count++
		}

		totalHours := float64(totalSeconds) / 3600
		row := SummaryRow{
			Employee:      EmployeeRef{ID: u.ID, Name: u.FullName(), Email: u.Email},
			TotalHours:    Round2(totalHours),
			BillableHours: Round2(float64(billableSeconds) / 3600),
			EstimatedPay:  Round2(totalHours * u.HourlyRate),
			EntriesCount:  count,
		}
		summary.Rows = append(summary.Rows, row)

		summary.Totals.TotalHours += row.TotalHours
		summary.Totals.TotalBillableHours += row.BillableHours
		summary.Totals.TotalEstimatedPay += row.EstimatedPay
	}

	summary.Totals.Employees = len(summary.Rows)
	summary.Totals.TotalHours = Round2(summary.Totals.TotalHours)
	summary.Totals.TotalBillableHours = Round2(summary.Totals.TotalBillableHours)
	summary.Totals.TotalEstimatedPay = Round2(summary.Totals.TotalEstimatedPay)
	return summary
}
