package activities

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.temporal.io/sdk/activity"

	"dev/bravebird/page-capture/pkg/capture"
	"dev/bravebird/page-capture/pkg/models"
)

const heartbeatInterval = 5 * time.Second

// RunRecorder persists run progress
type RunRecorder interface {
	UpdateCaptureRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
	CompleteCaptureRun(ctx context.Context, result models.CaptureResult) error
}

// Activities holds activity implementations
type Activities struct {
	Launcher      capture.Launcher
	Defaults      capture.Options
	ScreenshotDir string

	// Store is optional; without it runs are not persisted
	Store RunRecorder
}

// NewActivities creates new activities
func NewActivities(launcher capture.Launcher, defaults capture.Options, screenshotDir string, store RunRecorder) *Activities {
	return &Activities{
		Launcher:      launcher,
		Defaults:      defaults,
		ScreenshotDir: screenshotDir,
		Store:         store,
	}
}

// CaptureActivity runs one complete capture. The browser session lives and
// dies inside this call, so no browser state crosses activity boundaries.
// Capture failures are reported in the result, not as activity errors.
func (a *Activities) CaptureActivity(ctx context.Context, input models.CaptureInput) (models.CaptureResult, error) {
	logger := activity.GetLogger(ctx)

	opts := a.optionsFor(input)
	logger.Info("Starting page capture", "runID", input.RunID, "url", opts.TargetURL, "output", opts.OutputPath)

	stop := a.heartbeat(ctx)
	out := capture.New(a.Launcher, opts).Run(ctx)
	stop()

	if out.ReleaseErr != nil {
		logger.Warn("Failed to close browser session", "runID", input.RunID, "error", out.ReleaseErr)
	}

	result := ResultFromOutcome(input.RunID, opts.TargetURL, out)
	if out.OK() {
		logger.Info("Page captured", "runID", input.RunID, "path", result.ArtifactPath, "durationMs", result.Duration)
	} else {
		logger.Warn("Page capture failed", "runID", input.RunID, "kind", result.Kind, "error", result.ErrorMessage)
	}
	return result, nil
}

// RecordRunStatusActivity marks a run with a new status
func (a *Activities) RecordRunStatusActivity(ctx context.Context, runID string, status models.RunStatus) error {
	if a.Store == nil {
		return nil
	}
	if err := a.Store.UpdateCaptureRunStatus(ctx, runID, status, ""); err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

// RecordRunResultActivity stores the final result of a run
func (a *Activities) RecordRunResultActivity(ctx context.Context, result models.CaptureResult) error {
	if a.Store == nil {
		return nil
	}
	if err := a.Store.CompleteCaptureRun(ctx, result); err != nil {
		return fmt.Errorf("failed to store run result: %w", err)
	}
	return nil
}

// optionsFor applies per-run overrides to the worker defaults
func (a *Activities) optionsFor(input models.CaptureInput) capture.Options {
	opts := a.Defaults
	opts.Criteria = append([]models.ReadinessCriterion(nil), a.Defaults.Criteria...)

	if input.TargetURL != "" {
		opts.TargetURL = input.TargetURL
	}
	if len(input.Criteria) > 0 {
		opts.Criteria = input.Criteria
	}
	if input.TimeoutSeconds > 0 {
		timeout := time.Duration(input.TimeoutSeconds) * time.Second
		opts.NavigationTimeout = timeout
		opts.WaitTimeout = timeout
	}

	switch {
	case input.OutputPath != "":
		opts.OutputPath = input.OutputPath
	case input.RunID != "" && a.ScreenshotDir != "":
		opts.OutputPath = filepath.Join(a.ScreenshotDir, ArtifactName(input.RunID))
	}
	return opts
}

func (a *Activities) heartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, "capturing")
			}
		}
	}()
	return func() { close(done) }
}

// ArtifactName is the screenshot file name used for a run
func ArtifactName(runID string) string {
	return runID + ".png"
}

// ResultFromOutcome converts a capture outcome to a workflow result
func ResultFromOutcome(runID, targetURL string, out capture.Outcome) models.CaptureResult {
	result := models.CaptureResult{
		RunID:     runID,
		Kind:      out.Kind,
		TargetURL: targetURL,
		Duration:  out.Duration.Milliseconds(),
	}
	if out.OK() {
		result.Status = models.StatusSuccess
		result.ArtifactPath = out.ArtifactPath
	} else {
		result.Status = models.StatusFailed
		result.ErrorMessage = out.Err.Error()
	}
	return result
}
