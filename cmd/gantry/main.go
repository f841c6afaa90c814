package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oskarwestin/gantry/internal/api"
	"github.com/oskarwestin/gantry/internal/calendar"
	"github.com/oskarwestin/gantry/internal/config"
	"github.com/oskarwestin/gantry/internal/db"
	"github.com/oskarwestin/gantry/internal/plan"
	"github.com/oskarwestin/gantry/internal/repository"
	"github.com/oskarwestin/gantry/internal/schedule"
	"github.com/oskarwestin/gantry/internal/timeline"
	"github.com/oskarwestin/gantry/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:   "gantry",
	Short: "Terminal capacity planner for machine-shop work centers",
	Long:  `Gantry plans tasks onto machines against their working calendars and renders the plan as a Gantt timeline.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		database, err := db.OpenAndMigrate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening plan cache: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := tui.Run(database, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Autoschedule a machine's plan without the TUI",
	Long: `Load a machine's in-plan tasks and working calendar, pack them
sequentially from the given start instant, and save the result.

Examples:
  gantry schedule -M VMC-3 -s "2026-09-01 06:00"
  gantry schedule -M VMC-3 -s 2026-09-01 -c finish_time
  gantry schedule -M VMC-3 -s 2026-09-01 --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		machine, _ := cmd.Flags().GetString("machine")
		startArg, _ := cmd.Flags().GetString("start")
		critArg, _ := cmd.Flags().GetString("criterion")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		if machine == "" {
			machine = cfg.DefaultMachine
		}
		if machine == "" {
			return fmt.Errorf("no machine given and no default_machine configured")
		}

		start, err := parseStart(startArg, loc)
		if err != nil {
			return err
		}
		crit := schedule.Criterion(critArg)
		if crit != schedule.ByOrder && crit != schedule.ByFinishTime {
			return fmt.Errorf("criterion must be %q or %q", schedule.ByOrder, schedule.ByFinishTime)
		}

		client := api.NewClient(cfg.BackendURL, cfg.APIToken)
		ctx := context.Background()

		session := plan.NewSession(machine, 0)
		tasks, err := client.Tasks(ctx, machine)
		if err != nil {
			return err
		}
		session.SetTasks(tasks)

		cal, err := client.Calendar(ctx, machine)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: calendar unavailable, scheduling around the clock: %v\n", err)
			cal = nil
		}
		session.SetCalendar(cal, loc)

		switch err := session.Autoschedule(start, crit); {
		case errors.Is(err, schedule.ErrNothingToSchedule):
			fmt.Println("Nothing to schedule.")
			return nil
		case errors.Is(err, calendar.ErrHorizonExhausted):
			return fmt.Errorf("no working time found in calendar horizon")
		case err != nil:
			return err
		}

		for _, t := range session.InPlan() {
			fmt.Printf("%2d  %-10s %-30s %s -> %s\n",
				t.OrderOrZero(), t.Key, t.Name,
				fmtMs(t.PlannedStartMs, loc), fmtMs(t.PlannedEndMs, loc))
		}

		if dryRun {
			fmt.Println("\nDry run, nothing saved.")
			return nil
		}

		patches := session.ChangeSet()
		if len(patches) == 0 {
			fmt.Println("\nNo changes to save.")
			return nil
		}
		if err := client.SavePlan(ctx, patches); err != nil {
			logError(err)
			return err
		}
		fmt.Printf("\nSaved %d change(s).\n", len(patches))
		return nil
	},
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Print a machine's plan as a text timeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		machine, _ := cmd.Flags().GetString("machine")
		periodArg, _ := cmd.Flags().GetString("period")
		anchorArg, _ := cmd.Flags().GetString("date")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		if machine == "" {
			machine = cfg.DefaultMachine
		}
		if machine == "" {
			return fmt.Errorf("no machine given and no default_machine configured")
		}

		period := timeline.Period(periodArg)
		switch period {
		case timeline.PeriodDay, timeline.PeriodWeek, timeline.PeriodMonth, timeline.PeriodYear:
		default:
			return fmt.Errorf("period must be day, week, month or year")
		}

		anchor := time.Now().In(loc)
		if anchorArg != "" {
			anchor, err = time.ParseInLocation("2006-01-02", anchorArg, loc)
			if err != nil {
				return fmt.Errorf("invalid date %q, want YYYY-MM-DD", anchorArg)
			}
		}

		client := api.NewClient(cfg.BackendURL, cfg.APIToken)
		tasks, err := client.Tasks(context.Background(), machine)
		if err != nil {
			return err
		}
		session := plan.NewSession(machine, 0)
		session.SetTasks(tasks)

		printTimeline(session, period, anchor)
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List or retry saves that failed",
	RunE: func(cmd *cobra.Command, args []string) error {
		retry, _ := cmd.Flags().GetBool("retry")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		database, err := db.OpenAndMigrate()
		if err != nil {
			return err
		}
		defer db.Close()

		stash := repository.NewStashRepo(database)
		saves, err := stash.All()
		if err != nil {
			return err
		}
		if len(saves) == 0 {
			fmt.Println("No pending saves.")
			return nil
		}

		client := api.NewClient(cfg.BackendURL, cfg.APIToken)
		for _, s := range saves {
			fmt.Printf("%s: %d item(s), stashed %s\n", s.MachineKey, len(s.Items), s.CreatedAt.Format("2006-01-02 15:04"))
			if s.LastError != "" {
				fmt.Printf("  last error: %s\n", s.LastError)
			}
			if !retry {
				continue
			}
			if err := client.SavePlan(context.Background(), s.Items); err != nil {
				fmt.Printf("  retry failed: %v\n", err)
				_ = stash.Put(s.MachineKey, s.Items, err.Error())
				continue
			}
			_ = stash.Delete(s.MachineKey)
			fmt.Println("  retried and saved.")
		}
		return nil
	},
}

func parseStart(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("start date is required")
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", value, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid start %q, want YYYY-MM-DD [HH:MM]", value)
}

func fmtMs(ms *int64, loc *time.Location) string {
	if ms == nil {
		return "-"
	}
	return time.UnixMilli(*ms).In(loc).Format("2006-01-02 15:04")
}

// printTimeline renders the grid the way the gantt screen does, sized
// for a plain terminal dump.
func printTimeline(session *plan.Session, period timeline.Period, anchor time.Time) {
	const paneWidth = 120
	const labelWidth = 24

	vr := timeline.ComputeRange(period, anchor)
	cw := timeline.CellWidth(period, paneWidth)
	total := int(timeline.TotalWidth(period, anchor, cw))

	header := make([]byte, total)
	for i := range header {
		header[i] = ' '
	}
	x := 0.0
	for _, c := range timeline.HeaderCells(period, anchor, cw) {
		copy(header[int(x):], c.Primary)
		x += c.Width
	}
	fmt.Printf("%-*s %s\n", labelWidth, vr.Start.Format("2006-01-02"), string(header))

	for _, t := range session.InPlan() {
		geo, ok := timeline.Bar(*t, vr, period, cw)
		if !ok {
			continue
		}
		row := make([]byte, total)
		for i := range row {
			row[i] = '.'
		}
		start := int(geo.Left + 0.5)
		end := min(total, start+max(1, int(geo.Width+0.5)))
		for i := start; i < end && i >= 0; i++ {
			row[i] = '#'
		}
		name := t.Name
		if len(name) > labelWidth {
			name = name[:labelWidth]
		}
		fmt.Printf("%-*s %s\n", labelWidth, name, string(row))
	}
}

func init() {
	scheduleCmd.Flags().StringP("machine", "M", "", "Machine key (default: default_machine from config)")
	scheduleCmd.Flags().StringP("start", "s", "", "Start instant, YYYY-MM-DD [HH:MM]")
	scheduleCmd.Flags().StringP("criterion", "c", string(schedule.ByOrder), "Packing order: order or finish_time")
	scheduleCmd.Flags().Bool("dry-run", false, "Compute and print without saving")

	timelineCmd.Flags().StringP("machine", "M", "", "Machine key (default: default_machine from config)")
	timelineCmd.Flags().StringP("period", "p", string(timeline.PeriodWeek), "View period: day, week, month or year")
	timelineCmd.Flags().StringP("date", "d", "", "Anchor date, YYYY-MM-DD (default: today)")

	pendingCmd.Flags().Bool("retry", false, "Retry each pending save")

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(pendingCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logError(err error) {
	logPath, pathErr := config.ErrorLogPath()
	if pathErr != nil {
		return
	}

	if err2 := config.EnsureDirectories(); err2 != nil {
		return
	}

	f, fileErr := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if fileErr != nil {
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "[%s] %v\n", time.Now().Format(time.RFC3339), err)
}
