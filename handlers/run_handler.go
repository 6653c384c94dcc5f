// Package handlers exposes the thin HTTP surface: trigger a run, read its
// status, download finished videos.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/AitomaLab/ugc-engine/pipeline"
	"github.com/AitomaLab/ugc-engine/scheduler"
	"github.com/AitomaLab/ugc-engine/store"
)

// JobRunner starts a job end to end. *scheduler.Runner satisfies it.
type JobRunner interface {
	ExecuteJob(ctx context.Context, job *store.Job, runID string) error
}

// JobGetter loads a job row. *store.Store satisfies it.
type JobGetter interface {
	GetJob(ctx context.Context, id string) (*store.Job, error)
}

type RunHandler struct {
	runner    JobRunner
	jobs      JobGetter
	runStore  *pipeline.RunStore
	outputDir string
	logger    *slog.Logger
}

func NewRunHandler(runner JobRunner, jobs JobGetter, runStore *pipeline.RunStore, outputDir string, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runner:    runner,
		jobs:      jobs,
		runStore:  runStore,
		outputDir: outputDir,
		logger:    logger,
	}
}

// TriggerRun fires a job in the background and answers 202 with a run id
// the client can poll.
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to load job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	if job.Status == store.StatusSuccess {
		http.Error(w, "Job already completed", http.StatusConflict)
		return
	}

	runID := uuid.New().String()
	h.runStore.Add(runID, &pipeline.RunResult{
		RunID:     runID,
		JobID:     job.ID,
		Status:    pipeline.RunStarted,
		StartedAt: time.Now(),
	})

	go func() {
		if err := h.runner.ExecuteJob(context.Background(), job, runID); err != nil {
			if errors.Is(err, scheduler.ErrAlreadyRunning) {
				h.runStore.Fail(runID, "job is already running")
			}
			h.logger.Error("Run failed",
				slog.String("job_id", job.ID),
				slog.String("run_id", runID),
				slog.String("error", err.Error()))
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"run_id":  runID,
		"job_id":  job.ID,
		"message": "Video generation started",
	})
}

// GetRunStatus returns the in-memory record for a run.
func (h *RunHandler) GetRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]

	result, ok := h.runStore.Get(runID)
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// ServeVideo streams a finished video from the output directory. The
// filename must be a bare name, no path components.
func (h *RunHandler) ServeVideo(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	if filename == "" || strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	http.ServeFile(w, r, filepath.Join(h.outputDir, filename))
}

func (h *RunHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
