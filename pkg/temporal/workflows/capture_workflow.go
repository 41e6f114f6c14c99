package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"dev/bravebird/page-capture/pkg/models"
)

const (
	ProgressQuery = "getProgress"

	// Navigation plus two readiness waits at their default timeouts, with headroom
	defaultCaptureTimeout = 3 * time.Minute
)

// CaptureWorkflow runs a single page capture and records its result
func CaptureWorkflow(ctx workflow.Context, input models.CaptureInput) (models.CaptureResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting page capture workflow", "runID", input.RunID, "url", input.TargetURL)

	result := models.CaptureResult{
		RunID:     input.RunID,
		Status:    models.StatusPending,
		TargetURL: input.TargetURL,
	}

	// Register query handler for real-time progress
	err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (models.CaptureResult, error) {
		return result, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	// Bookkeeping writes are safe to retry
	recordCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	})

	// A capture is attempted exactly once
	captureTimeout := defaultCaptureTimeout
	if input.TimeoutSeconds > 0 {
		// One navigation and up to two waits share the per-step timeout
		captureTimeout = 3*time.Duration(input.TimeoutSeconds)*time.Second + time.Minute
	}
	captureCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: captureTimeout,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	result.Status = models.StatusRunning
	if err := workflow.ExecuteActivity(recordCtx, "RecordRunStatusActivity", input.RunID, models.StatusRunning).Get(ctx, nil); err != nil {
		logger.Warn("Failed to record run start", "runID", input.RunID, "error", err.Error())
	}

	var captured models.CaptureResult
	err = workflow.ExecuteActivity(captureCtx, "CaptureActivity", input).Get(ctx, &captured)
	if err != nil {
		captured = models.CaptureResult{
			RunID:        input.RunID,
			Status:       models.StatusFailed,
			Kind:         models.KindActivityError,
			TargetURL:    input.TargetURL,
			ErrorMessage: "Capture activity failed: " + err.Error(),
		}
	}
	result = captured

	if err := workflow.ExecuteActivity(recordCtx, "RecordRunResultActivity", result).Get(ctx, nil); err != nil {
		logger.Warn("Failed to record run result", "runID", input.RunID, "error", err.Error())
	}

	logger.Info("Workflow completed", "status", result.Status, "kind", result.Kind, "duration", result.Duration)
	return result, nil
}
