package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Inspect registered students",
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered students",
	Long: `List students in registration order.

Example:
  attendance students list
  attendance students list --name jiri --json`,
	RunE: runStudentsList,
}

func init() {
	rootCmd.AddCommand(studentsCmd)
	studentsCmd.AddCommand(studentsListCmd)

	studentsListCmd.Flags().String("name", "", "Only show students whose name contains this (ignores case and diacritics)")
	studentsListCmd.Flags().Bool("json", false, "Output as JSON")
}

// studentSummary is the CLI view of a student; descriptors and photos are counted, not printed.
type studentSummary struct {
	StudentID   string `json:"studentId"`
	Name        string `json:"name"`
	Descriptors int    `json:"descriptors"`
	Photos      int    `json:"photos"`
	Version     int64  `json:"version"`
}

func filterStudents(identities []database.Identity, name string) []studentSummary {
	out := make([]studentSummary, 0, len(identities))
	for _, ident := range identities {
		if !facematch.StudentNameContains(ident.DisplayName, name) {
			continue
		}
		out = append(out, studentSummary{
			StudentID:   ident.ID,
			Name:        ident.DisplayName,
			Descriptors: len(ident.Descriptors),
			Photos:      len(ident.Photos),
			Version:     ident.Version,
		})
	}
	return out
}

func runStudentsList(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	b, err := openBackend(cfg, log, false)
	if err != nil {
		return err
	}
	defer b.Close()

	identities, err := b.identities.ListIdentities(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list students: %w", err)
	}
	students := filterStudents(identities, name)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(students)
	}

	if len(students) == 0 {
		fmt.Println("No students found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDESCRIPTORS\tVERSION")
	fmt.Fprintln(w, "--\t----\t-----------\t-------")
	for _, s := range students {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", s.StudentID, s.Name, s.Descriptors, s.Version)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d students\n", len(students))
	return nil
}
