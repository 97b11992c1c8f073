package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
	"github.com/holelung/Face-recognition-attendance-check/internal/registrar"
)

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Bulk import students from a JSON file",
	Long: `Import students from a JSON array. Two record shapes are accepted:

  {"name": "...", "studentId": "...", "photos": [...], "faceDescriptor": [...]}
  {"displayName": "...", "id": "...", "photos": [...], "descriptors": [[...], ...]}

faceDescriptor may hold one descriptor or a list of descriptors. Descriptor i
is stored with photo i; when there are fewer photos the last one is reused.

Example:
  attendance import students.json
  attendance import students.json --append-existing`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("append-existing", false, "Append descriptors to students that already exist instead of skipping them")
}

// importRecord accepts both the web client's student shape and the native identity shape.
type importRecord struct {
	Name           string          `json:"name"`
	StudentID      string          `json:"studentId"`
	FaceDescriptor json.RawMessage `json:"faceDescriptor"`

	DisplayName string      `json:"displayName"`
	ID          string      `json:"id"`
	Descriptors [][]float64 `json:"descriptors"`

	Photos []string `json:"photos"`
}

// importStudent is a normalized import record.
type importStudent struct {
	ID          string
	Name        string
	Descriptors []facematch.FaceVector
	Photos      []string
}

func (r importRecord) normalize() (importStudent, error) {
	s := importStudent{ID: r.StudentID, Name: r.Name, Photos: r.Photos}
	if s.ID == "" {
		s.ID = r.ID
	}
	if s.Name == "" {
		s.Name = r.DisplayName
	}

	raw := r.Descriptors
	if len(r.FaceDescriptor) > 0 && string(r.FaceDescriptor) != "null" {
		var nested [][]float64
		if err := json.Unmarshal(r.FaceDescriptor, &nested); err != nil {
			var single []float64
			if err := json.Unmarshal(r.FaceDescriptor, &single); err != nil {
				return s, fmt.Errorf("student %q: faceDescriptor is neither a descriptor nor a list of descriptors", s.ID)
			}
			nested = [][]float64{single}
		}
		raw = append(nested, raw...)
	}
	for _, d := range raw {
		s.Descriptors = append(s.Descriptors, facematch.FromFloat64(d))
	}

	if len(s.Descriptors) == 0 {
		return s, fmt.Errorf("student %q has no descriptors", s.ID)
	}
	if len(s.Photos) == 0 {
		return s, fmt.Errorf("student %q has no photos", s.ID)
	}
	return s, nil
}

func (s importStudent) photoFor(i int) string {
	return s.Photos[min(i, len(s.Photos)-1)]
}

func readImportFile(path string) ([]importStudent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var records []importRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	students := make([]importStudent, 0, len(records))
	var errs []error
	for _, r := range records {
		s, err := r.normalize()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		students = append(students, s)
	}
	return students, errors.Join(errs...)
}

type importStats struct {
	Created  int
	Appended int
	Skipped  int
	Failed   int
}

// importStudents registers each student and appends its remaining descriptors.
func importStudents(ctx context.Context, reg *registrar.Registrar, students []importStudent, appendExisting bool,
	log logrus.FieldLogger, step func(),
) importStats {
	var stats importStats
	for _, s := range students {
		first := 0
		if _, err := reg.RegisterNew(ctx, s.Name, s.ID, s.Descriptors[0], s.photoFor(0)); err != nil {
			if !errors.Is(err, database.ErrDuplicateIdentity) {
				log.WithError(err).WithField("student_id", s.ID).Warn("import failed")
				stats.Failed++
				step()
				continue
			}
			if !appendExisting {
				stats.Skipped++
				step()
				continue
			}
		} else {
			stats.Created++
			first = 1
		}

		for i := first; i < len(s.Descriptors); i++ {
			if _, err := reg.AppendToExisting(ctx, s.ID, s.Descriptors[i], s.photoFor(i)); err != nil {
				log.WithError(err).WithField("student_id", s.ID).Warn("descriptor append failed")
				stats.Failed++
				continue
			}
			stats.Appended++
		}
		step()
	}
	return stats
}

func runImport(cmd *cobra.Command, args []string) error {
	appendExisting := mustGetBool(cmd, "append-existing")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	students, err := readImportFile(args[0])
	if err != nil {
		if len(students) == 0 {
			return err
		}
		log.WithError(err).Warn("some records were invalid and will be skipped")
	}

	b, err := openBackend(cfg, log, false)
	if err != nil {
		return err
	}
	defer b.Close()

	reg := registrar.New(b.identities, cfg.Registrar.MaxRetries, log)

	bar := progressbar.NewOptions(len(students),
		progressbar.OptionSetDescription("Importing students"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("students"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	stats := importStudents(context.Background(), reg, students, appendExisting, log, func() { bar.Add(1) })
	bar.Finish()

	fmt.Printf("\nCreated: %d, descriptors appended: %d, skipped: %d, failed: %d\n",
		stats.Created, stats.Appended, stats.Skipped, stats.Failed)
	if stats.Failed > 0 {
		return fmt.Errorf("%d import operations failed", stats.Failed)
	}
	return nil
}
