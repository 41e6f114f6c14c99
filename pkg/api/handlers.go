package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.temporal.io/sdk/client"

	"dev/bravebird/page-capture/pkg/models"
	"dev/bravebird/page-capture/pkg/temporal/activities"
	"dev/bravebird/page-capture/pkg/temporal/workflows"
)

// RunStore is the run history used by the API
type RunStore interface {
	CreateCaptureRun(ctx context.Context, run *models.CaptureRun) error
	GetCaptureRun(ctx context.Context, id string) (*models.CaptureRun, error)
	ListCaptureRuns(ctx context.Context, limit int) ([]models.CaptureRun, error)
	UpdateCaptureRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
}

// Handlers contains API handlers
type Handlers struct {
	store            RunStore
	temporalClient   client.Client
	taskQueue        string
	screenshotDir    string
	defaultTargetURL string

	pollInterval time.Duration
	// maxIdlePolls ends a stream whose run never shows up
	maxIdlePolls int
	upgrader     websocket.Upgrader
}

// NewHandlers creates new API handlers. store may be nil. defaultTargetURL
// is recorded for runs that do not name a target.
func NewHandlers(store RunStore, temporalClient client.Client, taskQueue, screenshotDir, defaultTargetURL string) *Handlers {
	return &Handlers{
		store:            store,
		temporalClient:   temporalClient,
		taskQueue:        taskQueue,
		screenshotDir:    screenshotDir,
		defaultTargetURL: defaultTargetURL,
		pollInterval:     500 * time.Millisecond,
		maxIdlePolls:     120,
		upgrader: websocket.Upgrader{
			// A handshake timeout also clears the server write deadline after upgrade
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts all routes on router
func (h *Handlers) Register(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()

	// Captures
	apiRouter.HandleFunc("/captures", h.ListCaptures).Methods("GET")
	apiRouter.HandleFunc("/captures", h.CreateCapture).Methods("POST")
	apiRouter.HandleFunc("/captures/{id}", h.GetCapture).Methods("GET")

	// WebSocket for real-time updates
	apiRouter.HandleFunc("/captures/{id}/stream", h.StreamCaptureUpdates).Methods("GET")

	// Screenshots
	apiRouter.HandleFunc("/artifacts/{filename}", h.ServeArtifact).Methods("GET")
}

// WorkflowID is the Temporal workflow ID used for a run
func WorkflowID(runID string) string {
	return "page-capture-" + runID
}

// Health reports liveness
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==================== Capture Handlers ====================

// CreateCapture starts a capture run
func (h *Handlers) CreateCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	criteria, err := criteriaFromRequest(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	targetURL := req.TargetURL
	if targetURL == "" {
		targetURL = h.defaultTargetURL
	}

	runID := uuid.New().String()
	input := models.CaptureInput{
		RunID:     runID,
		TargetURL: targetURL,
		Criteria:  criteria,
	}

	if h.store != nil {
		run := &models.CaptureRun{
			ID:         runID,
			TargetURL:  targetURL,
			OutputPath: filepath.Join(h.screenshotDir, activities.ArtifactName(runID)),
			Status:     models.StatusPending,
		}
		if err := h.store.CreateCaptureRun(ctx, run); err != nil {
			http.Error(w, "Failed to create run: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	workflowOptions := client.StartWorkflowOptions{
		ID:        WorkflowID(runID),
		TaskQueue: h.taskQueue,
	}

	we, err := h.temporalClient.ExecuteWorkflow(ctx, workflowOptions, "CaptureWorkflow", input)
	if err != nil {
		if h.store != nil {
			if serr := h.store.UpdateCaptureRunStatus(ctx, runID, models.StatusFailed, err.Error()); serr != nil {
				log.Printf("Failed to mark run %s failed: %v", runID, serr)
			}
		}
		http.Error(w, "Failed to start workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSONStatus(w, http.StatusAccepted, map[string]interface{}{
		"run_id":               runID,
		"temporal_workflow_id": we.GetID(),
		"temporal_run_id":      we.GetRunID(),
		"status":               models.StatusPending,
	})
}

// ListCaptures lists recent runs
func (h *Handlers) ListCaptures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.store.ListCaptureRuns(ctx, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, runs)
}

// GetCapture retrieves a run
func (h *Handlers) GetCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.store.GetCaptureRun(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	respondJSON(w, run)
}

// StreamCaptureUpdates streams run updates via WebSocket until the run ends
func (h *Handlers) StreamCaptureUpdates(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The connection is hijacked, so a departed client only shows up as a read error
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var lastStatus models.RunStatus
	idle := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update, ok := h.currentState(ctx, runID)
			if !ok {
				idle++
				if idle >= h.maxIdlePolls {
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run not found"))
					return
				}
				continue
			}
			idle = 0
			if update.Status == lastStatus {
				continue
			}

			msg := models.WSMessage{
				Type:    "run_update",
				Payload: update,
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			lastStatus = update.Status

			if update.Status.IsTerminal() {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(update.Status)))
				return
			}
		}
	}
}

// currentState asks the workflow first and falls back to the database
func (h *Handlers) currentState(ctx context.Context, runID string) (models.CaptureResult, bool) {
	if h.temporalClient != nil {
		resp, err := h.temporalClient.QueryWorkflow(ctx, WorkflowID(runID), "", workflows.ProgressQuery)
		if err == nil {
			var result models.CaptureResult
			if resp.Get(&result) == nil && result.Status != "" {
				return result, true
			}
		}
	}

	if h.store != nil {
		run, err := h.store.GetCaptureRun(ctx, runID)
		if err == nil && run != nil {
			return models.CaptureResult{
				RunID:        run.ID,
				Status:       run.Status,
				Kind:         run.ErrorKind,
				TargetURL:    run.TargetURL,
				ArtifactPath: run.OutputPath,
				ErrorMessage: run.ErrorMessage,
				Duration:     run.Duration,
			}, true
		}
	}
	return models.CaptureResult{}, false
}

// ==================== Screenshot Handlers ====================

// ServeArtifact serves a screenshot file
func (h *Handlers) ServeArtifact(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	// Only PNG files directly inside the screenshot directory
	name := filepath.Base(filename)
	if filepath.Ext(name) != ".png" || strings.HasPrefix(name, ".") {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}
	filePath := filepath.Join(h.screenshotDir, name)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, filePath)
}

// ==================== Helpers ====================

func criteriaFromRequest(req models.CaptureRequest) ([]models.ReadinessCriterion, error) {
	var criteria []models.ReadinessCriterion
	for _, s := range req.WaitFor {
		if s == "" {
			return nil, fmt.Errorf("wait_for entries must not be empty")
		}
		criteria = append(criteria, models.ReadinessCriterion{Kind: models.CriterionSelector, Value: s})
	}
	for _, s := range req.WaitText {
		if s == "" {
			return nil, fmt.Errorf("wait_text entries must not be empty")
		}
		criteria = append(criteria, models.ReadinessCriterion{Kind: models.CriterionText, Value: s})
	}
	return criteria, nil
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondJSONStatus(w, http.StatusOK, data)
}

func respondJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
