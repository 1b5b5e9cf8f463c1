// Package payroll computes pay statements from approved time entries.
// Everything here is a pure function of its inputs: no clock, no store,
// no hidden state, so results are deterministic and directly testable.
package payroll

import (
	"math"
	"sort"
	"time"

	"github.com/timedock/timeledger/internal/models"
)

const (
	// DefaultWeeklyThreshold is the weekly hours above which overtime
	// applies.
	DefaultWeeklyThreshold = 40.0

	// DefaultOvertimeMultiplier derives the overtime rate from the
	// hourly rate when no explicit overtime rate is given.
	DefaultOvertimeMultiplier = 1.5
)

// Bonus is a one-off addition to gross pay.
type Bonus struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

// Deduction is a one-off subtraction from gross pay.
type Deduction struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

// Input carries the parameters for a single-employee calculation.
type Input struct {
	PeriodStart  time.Time
	PeriodEnd    time.Time
	HourlyRate   float64
	OvertimeRate float64 // 0 means HourlyRate * multiplier
	Bonuses      []Bonus
	Deductions   []Deduction
	Currency     string
}

// Period is the reporting interval of a statement.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Hours is the regular/overtime breakdown, rounded to 2 decimals.
type Hours struct {
	Regular  float64 `json:"regular"`
	Overtime float64 `json:"overtime"`
	Total    float64 `json:"total"`
}

// Rates records the rates the calculation used.
type Rates struct {
	Regular  float64 `json:"regular"`
	Overtime float64 `json:"overtime"`
}

// Earnings is the pay breakdown before deductions.
type Earnings struct {
	Regular    float64 `json:"regular"`
	Overtime   float64 `json:"overtime"`
	Bonuses    []Bonus `json:"bonuses,omitempty"`
	BonusTotal float64 `json:"bonus_total"`
	Gross      float64 `json:"gross"`
}

// Deductions is the deduction breakdown.
type Deductions struct {
	Items []Deduction `json:"items,omitempty"`
	Total float64     `json:"total"`
}

// Statement is the full payroll result for one employee and period.
type Statement struct {
	Period     Period     `json:"period"`
	Hours      Hours      `json:"hours"`
	Rates      Rates      `json:"rates"`
	Earnings   Earnings   `json:"earnings"`
	Deductions Deductions `json:"deductions"`
	NetPay     float64    `json:"net_pay"`
	Currency   string     `json:"currency"`
}

// Calculator buckets hours by ISO week and applies the overtime rules.
type Calculator struct {
	WeeklyThreshold    float64
	OvertimeMultiplier float64
}

// NewCalculator returns a Calculator with the standard 40-hour week and
// 1.5x overtime.
func NewCalculator() *Calculator {
	return &Calculator{
		WeeklyThreshold:    DefaultWeeklyThreshold,
		OvertimeMultiplier: DefaultOvertimeMultiplier,
	}
}

// WeekStart returns the Monday 00:00 UTC of the ISO week containing t.
// Sunday counts as day 7 of the previous week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	back := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -back)
}

// Calculate produces a Statement for one employee. Only stopped, approved
// entries starting inside [PeriodStart, PeriodEnd) count; anything else in
// the slice is skipped, so callers may pass pre-filtered or raw sets.
// An empty entry set yields a valid zero statement.
func (c *Calculator) Calculate(entries []*models.TimeEntry, in Input) Statement {
	// Seconds per week, summed as integers so the result is exact and
	// independent of input order.
	weekSeconds := make(map[int64]int64)
	for _, e := range entries {
		if e.Status != models.StatusStopped || e.Approval.Status != models.ApprovalApproved {
			continue
		}
		if e.StartTime.Before(in.PeriodStart) || !e.StartTime.Before(in.PeriodEnd) {
			continue
		}
		weekSeconds[WeekStart(e.StartTime).Unix()] += e.Duration
	}

	weeks := make([]int64, 0, len(weekSeconds))
	for w := range weekSeconds {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i] < weeks[j] })

	var regularHours, overtimeHours, totalHours float64
	for _, w := range weeks {
		weekHours := float64(weekSeconds[w]) / 3600
		totalHours += weekHours
		if weekHours > c.WeeklyThreshold {
			regularHours += c.WeeklyThreshold
			overtimeHours += weekHours - c.WeeklyThreshold
		} else {
			regularHours += weekHours
		}
	}

	rate := in.HourlyRate
	overtimeRate := in.OvertimeRate
	if overtimeRate == 0 {
		overtimeRate = rate * c.OvertimeMultiplier
	}

	regularPay := regularHours * rate
	overtimePay := overtimeHours * overtimeRate

	var bonusTotal float64
	for _, b := range in.Bonuses {
		bonusTotal += b.Amount
	}
	grossPay := regularPay + overtimePay + bonusTotal

	var deductionTotal float64
	for _, d := range in.Deductions {
		deductionTotal += d.Amount
	}
	netPay := grossPay - deductionTotal

	return Statement{
		Period: Period{Start: in.PeriodStart, End: in.PeriodEnd},
		Hours: Hours{
			Regular:  Round2(regularHours),
			Overtime: Round2(overtimeHours),
			Total:    Round2(totalHours),
		},
		Rates: Rates{Regular: rate, Overtime: overtimeRate},
		Earnings: Earnings{
			Regular:    Round2(regularPay),
			Overtime:   Round2(overtimePay),
			Bonuses:    in.Bonuses,
			BonusTotal: Round2(bonusTotal),
			Gross:      Round2(grossPay),
		},
		Deductions: Deductions{
			Items: in.Deductions,
			Total: Round2(deductionTotal),
		},
		NetPay:   Round2(netPay),
		Currency: in.Currency,
	}
}

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
