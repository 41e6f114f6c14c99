package models

import (
	"time"
)

// ==================== Capture Types ====================

// Viewport is the page size in CSS pixels
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CriterionKind is the kind of readiness check
type CriterionKind string

const (
	CriterionSelector CriterionKind = "selector" // CSS selector must match an element
	CriterionText     CriterionKind = "text"     // Some element's text must contain the value
)

// ReadinessCriterion is a presence check that must hold before capture
type ReadinessCriterion struct {
	Kind  CriterionKind `json:"kind"`
	Value string        `json:"value"`
}

func (c ReadinessCriterion) String() string {
	return string(c.Kind) + "=" + c.Value
}

// OutcomeKind classifies how a capture run ended
type OutcomeKind string

const (
	KindSuccess         OutcomeKind = "success"
	KindLaunchError     OutcomeKind = "launch_error"
	KindNavigationError OutcomeKind = "navigation_error"
	KindElementTimeout  OutcomeKind = "element_timeout"
	KindCaptureError    OutcomeKind = "capture_error"
	KindActivityError   OutcomeKind = "activity_error" // Worker-side failure outside the capture itself
)

// ==================== Run Types ====================

// RunStatus represents the status of a capture run
type RunStatus string

const (
	StatusPending RunStatus = "pending"
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
)

// IsTerminal reports whether no further updates are expected for the run
func (s RunStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CaptureRun is the persisted record of one capture run
type CaptureRun struct {
	ID           string      `json:"id" db:"id"`
	TargetURL    string      `json:"target_url" db:"target_url"`
	OutputPath   string      `json:"output_path" db:"output_path"`
	Status       RunStatus   `json:"status" db:"status"`
	ErrorKind    OutcomeKind `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage string      `json:"error_message,omitempty" db:"error_message"`
	Duration     int64       `json:"duration_ms" db:"duration_ms"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	StartedAt    *time.Time  `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at" db:"completed_at"`
}

// ==================== Workflow Types ====================

// CaptureInput is the input for the capture workflow. Empty fields fall back
// to the worker's configured defaults.
type CaptureInput struct {
	RunID          string               `json:"run_id"`
	TargetURL      string               `json:"target_url,omitempty"`
	OutputPath     string               `json:"output_path,omitempty"`
	Criteria       []ReadinessCriterion `json:"criteria,omitempty"`
	TimeoutSeconds int                  `json:"timeout_seconds,omitempty"`
}

// CaptureResult is the result of a capture workflow
type CaptureResult struct {
	RunID        string      `json:"run_id"`
	Status       RunStatus   `json:"status"`
	Kind         OutcomeKind `json:"kind"`
	TargetURL    string      `json:"target_url"`
	ArtifactPath string      `json:"artifact_path,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Duration     int64       `json:"duration_ms"`
}

// ==================== API Request/Response Types ====================

// CaptureRequest is the body of POST /api/captures
type CaptureRequest struct {
	TargetURL string   `json:"target_url"`
	WaitFor   []string `json:"wait_for"`  // CSS selectors
	WaitText  []string `json:"wait_text"` // Text fragments
}

// ==================== WebSocket Message Types ====================

// WSMessage represents a WebSocket message for real-time updates
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
