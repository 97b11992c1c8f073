package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/holelung/Face-recognition-attendance-check/internal/attendance"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "List and record attendance",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance for a day",
	Long: `List attendance records for one calendar day in ATTENDANCE_TIMEZONE.

Example:
  attendance attendance list
  attendance attendance list --date 2024-03-04`,
	RunE: runAttendanceList,
}

var attendanceRecordCmd = &cobra.Command{
	Use:   "record <studentId>",
	Short: "Record a student as present today",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendanceRecord,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd)
	attendanceCmd.AddCommand(attendanceRecordCmd)

	attendanceListCmd.Flags().String("date", "", "Day to list (YYYY-MM-DD), defaults to today")
	attendanceListCmd.Flags().Bool("json", false, "Output as JSON")
}

func openRecorder() (*attendance.Recorder, *backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	b, err := openBackend(cfg, log, false)
	if err != nil {
		return nil, nil, err
	}
	rec, err := newRecorder(cfg, b, log)
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	return rec, b, nil
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	date := mustGetString(cmd, "date")
	jsonOutput := mustGetBool(cmd, "json")

	rec, b, err := openRecorder()
	if err != nil {
		return err
	}
	defer b.Close()

	day := rec.Day(time.Now())
	if date != "" {
		if day, err = rec.ParseDay(date); err != nil {
			return err
		}
	}

	records, err := rec.ListDay(context.Background(), day)
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Printf("No attendance recorded on %s.\n", day)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STUDENT\tTIME\tSTATUS")
	fmt.Fprintln(w, "-------\t----\t------")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.IdentityID, r.Timestamp.Format("15:04:05"), r.Status)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d present on %s\n", len(records), day)
	return nil
}

func runAttendanceRecord(cmd *cobra.Command, args []string) error {
	rec, b, err := openRecorder()
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := rec.Record(context.Background(), args[0], time.Time{})
	if err != nil {
		return fmt.Errorf("failed to record attendance: %w", err)
	}

	if res.Outcome == attendance.Suppressed {
		fmt.Printf("%s already present on %s (since %s)\n", res.Record.IdentityID, res.Record.Day, res.Record.Timestamp.Format("15:04:05"))
		return nil
	}
	fmt.Printf("Recorded %s present on %s\n", res.Record.IdentityID, res.Record.Day)
	return nil
}
