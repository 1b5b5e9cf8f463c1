package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"github.com/tj/go-naturaldate"

	"github.com/timedock/timeledger/internal/clock"
	"github.com/timedock/timeledger/internal/config"
	"github.com/timedock/timeledger/internal/db"
	"github.com/timedock/timeledger/internal/export"
	"github.com/timedock/timeledger/internal/ledger"
	"github.com/timedock/timeledger/internal/logging"
	"github.com/timedock/timeledger/internal/models"
)

var rootCmd = &cobra.Command{
	Use:   "timeledger",
	Short: "Track work time, breaks, and payroll from the terminal",
	Long:  "timeledger keeps a local ledger of time entries with breaks, approvals, and weekly overtime payroll.",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a timer",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the active timer",
	RunE:  runStop,
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the running timer and open a break",
	RunE:  runPause,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the paused timer",
	RunE:  runResume,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active timer and today's entries",
	RunE:  runStatus,
}

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Log a finished entry for a past interval",
	RunE:  runManual,
}

var approveCmd = &cobra.Command{
	Use:   "approve <entry-id>",
	Short: "Approve a stopped entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

var rejectCmd = &cobra.Command{
	Use:   "reject <entry-id>",
	Short: "Reject a stopped entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runReject,
}

var payrollCmd = &cobra.Command{
	Use:   "payroll",
	Short: "Print a pay statement for a period as JSON",
	RunE:  runPayroll,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the company payroll summary for a period as JSON",
	RunE:  runSummary,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export entries for a period as CSV or JSON",
	RunE:  runExport,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the active configuration",
	RunE:  runConfig,
}

func init() {
	startCmd.Flags().StringP("project", "p", "", "Project ID")
	startCmd.Flags().StringP("task", "t", "", "Task ID")
	startCmd.Flags().StringP("message", "m", "", "Description")
	startCmd.Flags().StringArray("tag", nil, "Tag (repeatable)")
	startCmd.Flags().Bool("nonbillable", false, "Mark the entry as not billable")

	pauseCmd.Flags().String("type", "short", "Break type: short, lunch, other")

	manualCmd.Flags().String("from", "", "Start of the interval (e.g. \"today at 9am\")")
	manualCmd.Flags().String("to", "", "End of the interval (e.g. \"2 hours ago\")")
	manualCmd.Flags().StringP("project", "p", "", "Project ID")
	manualCmd.Flags().StringP("task", "t", "", "Task ID")
	manualCmd.Flags().StringP("message", "m", "", "Description")
	_ = manualCmd.MarkFlagRequired("from")
	_ = manualCmd.MarkFlagRequired("to")

	approveCmd.Flags().String("notes", "", "Decision notes")
	rejectCmd.Flags().String("notes", "", "Decision notes")

	payrollCmd.Flags().String("employee", "", "Employee user ID (defaults to yourself)")
	payrollCmd.Flags().String("from", "", "Period start")
	payrollCmd.Flags().String("to", "", "Period end")
	_ = payrollCmd.MarkFlagRequired("from")
	_ = payrollCmd.MarkFlagRequired("to")

	summaryCmd.Flags().String("from", "", "Period start")
	summaryCmd.Flags().String("to", "", "Period end")
	_ = summaryCmd.MarkFlagRequired("from")
	_ = summaryCmd.MarkFlagRequired("to")

	exportCmd.Flags().String("from", "", "Period start")
	exportCmd.Flags().String("to", "", "Period end")
	exportCmd.Flags().String("format", "csv", "Output format: csv or json")
	exportCmd.Flags().StringP("output", "o", "", "Output file (defaults to stdout)")
	_ = exportCmd.MarkFlagRequired("from")
	_ = exportCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(manualCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(payrollCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles everything a command needs.
type app struct {
	cfg    *config.Config
	store  *db.Repository
	ledger *ledger.Ledger
	actor  ledger.Actor
	close  func()
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(os.Stderr, cfg.LogLevel)

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := db.NewRepository(database)
	led := ledger.New(store, clock.System{})
	led.SetPayrollRules(cfg.Payroll.WeeklyThreshold, cfg.Payroll.OvertimeMultiplier)

	actor := ledger.Actor{
		UserID:    cfg.Identity.UserID,
		CompanyID: cfg.Identity.CompanyID,
		Role:      models.Role(cfg.Identity.Role),
	}
	if err := ensureIdentity(store, cfg); err != nil {
		database.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		store:  store,
		ledger: led,
		actor:  actor,
		close:  func() { database.Close() },
	}, nil
}

// ensureIdentity creates the configured user on first run so payroll has
// a record to read rates from.
func ensureIdentity(store *db.Repository, cfg *config.Config) error {
	u, err := store.GetUser(cfg.Identity.UserID)
	if err != nil {
		return err
	}
	if u != nil {
		return nil
	}
	now := time.Now()
	return store.CreateUser(&models.User{
		ID:        cfg.Identity.UserID,
		CompanyID: cfg.Identity.CompanyID,
		FirstName: cfg.Identity.UserID,
		Role:      models.Role(cfg.Identity.Role),
		Currency:  cfg.Payroll.Currency,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := naturaldate.Parse(s, time.Now(), naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse time %q: %w", s, err)
	}
	return t, nil
}

// activeEntry finds the running entry, or failing that the paused one.
func activeEntry(a *app) (*models.TimeEntry, error) {
	cur, err := a.ledger.Current(a.actor)
	if err != nil {
		return nil, err
	}
	if cur != nil {
		return cur, nil
	}
	paused, err := a.ledger.List(a.actor, db.EntryFilter{
		UserID: a.actor.UserID,
		Status: models.StatusPaused,
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(paused.Entries) == 0 {
		return nil, fmt.Errorf("no active timer")
	}
	return paused.Entries[0], nil
}

func printJSON(v any) error {
	out, err := sonic.ConfigDefault.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	project, _ := cmd.Flags().GetString("project")
	task, _ := cmd.Flags().GetString("task")
	message, _ := cmd.Flags().GetString("message")
	tags, _ := cmd.Flags().GetStringArray("tag")
	nonbillable, _ := cmd.Flags().GetBool("nonbillable")

	billable := !nonbillable
	e, err := a.ledger.Start(a.actor, ledger.StartInput{
		ProjectID:   project,
		TaskID:      task,
		Description: message,
		Tags:        tags,
		Billable:    &billable,
		Source:      "cli",
	})
	if err != nil {
		return err
	}
	fmt.Printf("Started %s at %s\n", e.ID, e.StartTime.Local().Format("15:04:05"))
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	active, err := activeEntry(a)
	if err != nil {
		return err
	}
	e, err := a.ledger.Stop(a.actor, active.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Stopped %s after %s\n", e.ID, e.FormattedDuration())
	return nil
}

func runPause(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	breakType, _ := cmd.Flags().GetString("type")
	cur, err := a.ledger.Current(a.actor)
	if err != nil {
		return err
	}
	if cur == nil {
		return fmt.Errorf("no running timer")
	}
	e, err := a.ledger.Pause(a.actor, cur.ID, models.BreakType(breakType))
	if err != nil {
		return err
	}
	fmt.Printf("Paused %s (%s break)\n", e.ID, breakType)
	return nil
}

func runResume(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	active, err := activeEntry(a)
	if err != nil {
		return err
	}
	e, err := a.ledger.Resume(a.actor, active.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Resumed %s\n", e.ID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	cur, err := a.ledger.Current(a.actor)
	if err != nil {
		return err
	}
	if cur != nil {
		elapsed := time.Since(cur.StartTime).Round(time.Second)
		fmt.Printf("Running: %s (%s) since %s\n", cur.ID, elapsed, cur.StartTime.Local().Format("15:04:05"))
	} else {
		fmt.Println("No running timer")
	}

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	list, err := a.ledger.List(a.actor, db.EntryFilter{From: &dayStart, To: &dayEnd})
	if err != nil {
		return err
	}

	fmt.Printf("Today: %d entries, %.2fh total, %.2fh billable\n",
		list.Count, list.TotalHours, list.BillableHours)
	for _, e := range list.Entries {
		desc := e.Description
		if desc == "" {
			desc = "(no description)"
		}
		fmt.Printf("  %s  %s  %-8s  %s\n",
			e.StartTime.Local().Format("15:04"), e.FormattedDuration(), e.Status, desc)
	}
	return nil
}

func runManual(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	from, err := parseWhen(fromStr)
	if err != nil {
		return err
	}
	to, err := parseWhen(toStr)
	if err != nil {
		return err
	}

	project, _ := cmd.Flags().GetString("project")
	task, _ := cmd.Flags().GetString("task")
	message, _ := cmd.Flags().GetString("message")

	e, err := a.ledger.CreateManual(a.actor, ledger.ManualInput{
		Start:       from,
		End:         to,
		ProjectID:   project,
		TaskID:      task,
		Description: message,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Logged %s (%s)\n", e.ID, e.FormattedDuration())
	return nil
}

func runApprove(cmd *cobra.Command, args []string) error {
	return decide(cmd, args[0], true)
}

func runReject(cmd *cobra.Command, args []string) error {
	return decide(cmd, args[0], false)
}

func decide(cmd *cobra.Command, entryID string, approve bool) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	notes, _ := cmd.Flags().GetString("notes")
	var e *models.TimeEntry
	if approve {
		e, err = a.ledger.Approve(a.actor, entryID, notes)
	} else {
		e, err = a.ledger.Reject(a.actor, entryID, notes)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Entry %s %s\n", e.ID, e.Approval.Status)
	return nil
}

func runPayroll(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	employee, _ := cmd.Flags().GetString("employee")
	if employee == "" {
		employee = a.actor.UserID
	}
	from, to, err := parsePeriod(cmd)
	if err != nil {
		return err
	}

	stmt, err := a.ledger.CalculatePayroll(a.actor, employee, from, to, nil, nil)
	if err != nil {
		return err
	}
	return printJSON(stmt)
}

func runSummary(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	from, to, err := parsePeriod(cmd)
	if err != nil {
		return err
	}
	summary, err := a.ledger.PayrollSummary(a.actor, from, to)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	from, to, err := parsePeriod(cmd)
	if err != nil {
		return err
	}
	formatStr, _ := cmd.Flags().GetString("format")
	format, err := export.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	list, err := a.ledger.List(a.actor, db.EntryFilter{From: &from, To: &to})
	if err != nil {
		return err
	}

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return export.Entries(out, list.Entries, format)
}

func parsePeriod(cmd *cobra.Command) (time.Time, time.Time, error) {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	from, err := parseWhen(fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseWhen(toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	fmt.Printf("Config file: %s\n", path)
	fmt.Printf("Data dir:    %s\n", cfg.DataDir)
	fmt.Printf("Log level:   %s\n", cfg.LogLevel)
	fmt.Printf("Identity:    %s @ %s (%s)\n",
		cfg.Identity.UserID, cfg.Identity.CompanyID, cfg.Identity.Role)
	fmt.Printf("Payroll:     %.1fh week, %.1fx overtime, %s\n",
		cfg.Payroll.WeeklyThreshold, cfg.Payroll.OvertimeMultiplier,
		strings.ToUpper(cfg.Payroll.Currency))
	return nil
}
