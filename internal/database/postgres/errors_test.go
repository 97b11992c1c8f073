package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/holelung/Face-recognition-attendance-check/internal/database"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "deadlock", err: &pq.Error{Code: "40P01"}, transient: true},
		{name: "serialization failure", err: &pq.Error{Code: "40001"}, transient: true},
		{name: "connection failure", err: &pq.Error{Code: "08006"}, transient: true},
		{name: "too many connections", err: &pq.Error{Code: "53300"}, transient: true},
		{name: "admin shutdown", err: &pq.Error{Code: "57P01"}, transient: true},
		{name: "unique violation", err: &pq.Error{Code: "23505"}, transient: false},
		{name: "syntax error", err: &pq.Error{Code: "42601"}, transient: false},
		{name: "bad conn", err: driver.ErrBadConn, transient: true},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), transient: true},
		{name: "plain", err: errors.New("boom"), transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			if got := database.IsRetryable(err); got != tt.transient {
				t.Errorf("IsRetryable(classify(%v)) = %v, want %v", tt.err, got, tt.transient)
			}
			if !errors.Is(err, tt.err) {
				t.Error("classified error must wrap the original")
			}
		})
	}

	if classify("op", nil) != nil {
		t.Error("classify(nil) must be nil")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: codeUniqueViolation})
	if !hasCode(err, codeUniqueViolation) {
		t.Error("expected unique violation to be detected through wrapping")
	}
	if hasCode(err, codeForeignKeyViolation) {
		t.Error("unexpected foreign key match")
	}
	if hasCode(errors.New("x"), codeUniqueViolation) {
		t.Error("plain error has no code")
	}
}

func TestPendingMigrationFiles(t *testing.T) {
	files, err := pendingMigrationFiles(map[string]bool{})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 || files[0] != "001_init.sql" {
		t.Errorf("expected 001_init.sql first, got %v", files)
	}

	files, err = pendingMigrationFiles(map[string]bool{"001_init.sql": true})
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if f == "001_init.sql" {
			t.Error("applied migration returned as pending")
		}
	}
}
