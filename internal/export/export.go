// Package export renders time entry listings as CSV or JSON for reports
// and downstream payroll systems.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"github.com/timedock/timeledger/internal/errors"
	"github.com/timedock/timeledger/internal/models"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON:
		return Format(s), nil
	default:
		return "", errors.Newf(errors.ErrValidation, "unknown export format %q", s)
	}
}

var csvHeader = []string{
	"id", "user_id", "project_id", "task_id", "start_time", "end_time",
	"duration", "duration_hms", "billable", "status", "approval",
	"activity_level", "description",
}

// Entries writes the entries to w in the given format. CSV rows carry
// one entry each; JSON output is an indented array.
func Entries(w io.Writer, entries []*models.TimeEntry, format Format) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, entries)
	case FormatJSON:
		return writeJSON(w, entries)
	default:
		return errors.Newf(errors.ErrValidation, "unknown export format %q", format)
	}
}

func writeCSV(w io.Writer, entries []*models.TimeEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, e := range entries {
		end := ""
		if e.EndTime != nil {
			end = e.EndTime.UTC().Format(time.RFC3339)
		}
		row := []string{
			e.ID,
			e.UserID,
			e.ProjectID,
			e.TaskID,
			e.StartTime.UTC().Format(time.RFC3339),
			end,
			strconv.FormatInt(e.Duration, 10),
			e.FormattedDuration(),
			strconv.FormatBool(e.Billable),
			string(e.Status),
			string(e.Approval.Status),
			string(e.Activity.Level),
			e.Description,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, entries []*models.TimeEntry) error {
	if entries == nil {
		entries = []*models.TimeEntry{}
	}
	out, err := sonic.ConfigDefault.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling entries: %w", err)
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}
