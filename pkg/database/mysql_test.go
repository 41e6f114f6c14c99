package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"dev/bravebird/page-capture/pkg/models"
)

type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *models.RunStatus:
			*p = r.values[i].(models.RunStatus)
		case *models.OutcomeKind:
			*p = r.values[i].(models.OutcomeKind)
		case *int64:
			*p = r.values[i].(int64)
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			if err := scanNullTime(d, r.values[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func scanNullTime(dest, value interface{}) error {
	type scanner interface{ Scan(interface{}) error }
	s, ok := dest.(scanner)
	if !ok {
		return errors.New("unsupported destination")
	}
	return s.Scan(value)
}

func TestScanRun(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	completed := created.Add(3 * time.Second)

	row := fakeRow{values: []interface{}{
		"run-1", "http://localhost:3000", "/tmp/run-1.png", models.StatusFailed,
		models.KindElementTimeout, "waiting for text=Digital Dukan", int64(3000),
		created, nil, completed,
	}}

	run, err := scanRun(row)
	if err != nil {
		t.Fatalf("scanRun() error = %v", err)
	}
	if run.ID != "run-1" || run.Status != models.StatusFailed || run.ErrorKind != models.KindElementTimeout {
		t.Errorf("run = %+v", run)
	}
	if run.StartedAt != nil {
		t.Errorf("StartedAt = %v, want nil", run.StartedAt)
	}
	if run.CompletedAt == nil || !run.CompletedAt.Equal(completed) {
		t.Errorf("CompletedAt = %v, want %v", run.CompletedAt, completed)
	}
}

func TestScanRunError(t *testing.T) {
	want := errors.New("boom")
	if _, err := scanRun(fakeRow{err: want}); !errors.Is(err, want) {
		t.Errorf("scanRun() error = %v, want %v", err, want)
	}
}

// TestCaptureRunLifecycle needs a scratch MySQL database in MYSQL_TEST_DSN
func TestCaptureRunLifecycle(t *testing.T) {
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}

	db, err := New(dsn)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	run := &models.CaptureRun{
		ID:         uuid.New().String(),
		TargetURL:  "",
		OutputPath: "/tmp/screenshots/run.png",
		Status:     models.StatusPending,
	}
	if err := db.CreateCaptureRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	if err := db.UpdateCaptureRunStatus(ctx, run.ID, models.StatusRunning, ""); err != nil {
		t.Fatal(err)
	}

	err = db.CompleteCaptureRun(ctx, models.CaptureResult{
		RunID:        run.ID,
		Status:       models.StatusFailed,
		Kind:         models.KindNavigationError,
		TargetURL:    "http://localhost:3000",
		ErrorMessage: "connection refused",
		Duration:     120,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := db.GetCaptureRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("run not found")
	}
	if got.Status != models.StatusFailed || got.ErrorKind != models.KindNavigationError {
		t.Errorf("run = %+v", got)
	}
	if got.TargetURL != "http://localhost:3000" {
		t.Errorf("TargetURL = %q, want the navigated target", got.TargetURL)
	}
	if got.OutputPath != run.OutputPath {
		t.Errorf("OutputPath = %q, want %q kept on failure", got.OutputPath, run.OutputPath)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Errorf("timestamps not set: %+v", got)
	}

	missing, err := db.GetCaptureRun(ctx, uuid.New().String())
	if err != nil || missing != nil {
		t.Errorf("GetCaptureRun(unknown) = %v, %v", missing, err)
	}

	runs, err := db.ListCaptureRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) == 0 {
		t.Error("ListCaptureRuns() returned nothing")
	}
}
