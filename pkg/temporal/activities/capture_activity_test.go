package activities

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"dev/bravebird/page-capture/pkg/capture"
	"dev/bravebird/page-capture/pkg/capture/capturetest"
	"dev/bravebird/page-capture/pkg/models"
)

type fakeRecorder struct {
	mu       sync.Mutex
	statuses map[string][]models.RunStatus
	results  []models.CaptureResult
	err      error
}

func (r *fakeRecorder) UpdateCaptureRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.statuses == nil {
		r.statuses = make(map[string][]models.RunStatus)
	}
	r.statuses[id] = append(r.statuses[id], status)
	return nil
}

func (r *fakeRecorder) CompleteCaptureRun(ctx context.Context, result models.CaptureResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.results = append(r.results, result)
	return nil
}

func testDefaults() capture.Options {
	opts := capture.DefaultOptions()
	opts.WaitTimeout = 50 * time.Millisecond
	opts.NavigationTimeout = 50 * time.Millisecond
	return opts
}

func TestCaptureActivity(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()

	dir := t.TempDir()
	b := &capturetest.Browser{}
	acts := NewActivities(b, testDefaults(), dir, nil)
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.CaptureActivity, models.CaptureInput{RunID: "run-1"})
	require.NoError(t, err)

	var result models.CaptureResult
	require.NoError(t, val.Get(&result))

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, models.KindSuccess, result.Kind)
	assert.Equal(t, filepath.Join(dir, "run-1.png"), result.ArtifactPath)
	assert.Equal(t, capture.DefaultTargetURL, result.TargetURL)
	assert.Equal(t, 1, b.Closes())

	data, err := os.ReadFile(result.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, capturetest.PNG, data)
}

func TestCaptureActivityReportsFailureInResult(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()

	b := &capturetest.Browser{Missing: map[string]bool{"Digital Dukan": true}}
	acts := NewActivities(b, testDefaults(), t.TempDir(), nil)
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.CaptureActivity, models.CaptureInput{RunID: "run-2"})
	require.NoError(t, err)

	var result models.CaptureResult
	require.NoError(t, val.Get(&result))

	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, models.KindElementTimeout, result.Kind)
	assert.Contains(t, result.ErrorMessage, "Digital Dukan")
	assert.Empty(t, result.ArtifactPath)
	assert.Equal(t, 1, b.Closes())
}

func TestRecordActivities(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()

	store := &fakeRecorder{}
	acts := NewActivities(&capturetest.Browser{}, testDefaults(), t.TempDir(), store)
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.RecordRunStatusActivity, "run-3", models.StatusRunning)
	require.NoError(t, err)

	result := models.CaptureResult{RunID: "run-3", Status: models.StatusSuccess, Kind: models.KindSuccess}
	_, err = env.ExecuteActivity(acts.RecordRunResultActivity, result)
	require.NoError(t, err)

	assert.Equal(t, []models.RunStatus{models.StatusRunning}, store.statuses["run-3"])
	assert.Equal(t, []models.CaptureResult{result}, store.results)
}

func TestRecordActivitiesStoreError(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()

	acts := NewActivities(&capturetest.Browser{}, testDefaults(), t.TempDir(), &fakeRecorder{err: errors.New("db down")})
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.RecordRunStatusActivity, "run-4", models.StatusRunning)
	assert.Error(t, err)
}

func TestOptionsFor(t *testing.T) {
	defaults := testDefaults()
	acts := NewActivities(nil, defaults, "/tmp/screenshots", nil)

	tests := []struct {
		name  string
		input models.CaptureInput
		check func(t *testing.T, opts capture.Options)
	}{
		{
			name:  "Defaults with run artifact",
			input: models.CaptureInput{RunID: "abc"},
			check: func(t *testing.T, opts capture.Options) {
				assert.Equal(t, defaults.TargetURL, opts.TargetURL)
				assert.Equal(t, "/tmp/screenshots/abc.png", opts.OutputPath)
				assert.Equal(t, defaults.Criteria, opts.Criteria)
			},
		},
		{
			name:  "No run ID keeps default output",
			input: models.CaptureInput{},
			check: func(t *testing.T, opts capture.Options) {
				assert.Equal(t, defaults.OutputPath, opts.OutputPath)
			},
		},
		{
			name: "Overrides",
			input: models.CaptureInput{
				RunID:          "abc",
				TargetURL:      "http://localhost:4000",
				OutputPath:     "/tmp/explicit.png",
				Criteria:       []models.ReadinessCriterion{{Kind: models.CriterionText, Value: "Khata"}},
				TimeoutSeconds: 5,
			},
			check: func(t *testing.T, opts capture.Options) {
				assert.Equal(t, "http://localhost:4000", opts.TargetURL)
				assert.Equal(t, "/tmp/explicit.png", opts.OutputPath)
				assert.Len(t, opts.Criteria, 1)
				assert.Equal(t, 5*time.Second, opts.WaitTimeout)
				assert.Equal(t, 5*time.Second, opts.NavigationTimeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, acts.optionsFor(tt.input))
		})
	}
}
