package capture

import (
	"errors"
	"fmt"
	"time"

	"dev/bravebird/page-capture/pkg/models"
)

// LaunchError means no usable browser session could be set up
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to start browser session: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// NavigationError means the target was unreachable or did not finish loading in time
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ElementTimeoutError means a readiness criterion never became true
type ElementTimeoutError struct {
	Criterion models.ReadinessCriterion
	Timeout   time.Duration
	Err       error
}

func (e *ElementTimeoutError) Error() string {
	return fmt.Sprintf("waiting for %s (timeout %s) failed: %v", e.Criterion, e.Timeout, e.Err)
}

func (e *ElementTimeoutError) Unwrap() error { return e.Err }

// CaptureError means the screenshot could not be rendered or written
type CaptureError struct {
	Path string
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture to %s failed: %v", e.Path, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// KindOf maps an error returned by a run to its outcome kind
func KindOf(err error) models.OutcomeKind {
	var (
		launchErr  *LaunchError
		navErr     *NavigationError
		elementErr *ElementTimeoutError
		captureErr *CaptureError
	)

	switch {
	case err == nil:
		return models.KindSuccess
	case errors.As(err, &launchErr):
		return models.KindLaunchError
	case errors.As(err, &navErr):
		return models.KindNavigationError
	case errors.As(err, &elementErr):
		return models.KindElementTimeout
	case errors.As(err, &captureErr):
		return models.KindCaptureError
	default:
		return models.KindCaptureError
	}
}
