package pipeline

import (
	"log/slog"
	"sync"
	"time"
)

type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunResult is the in-memory record backing the status endpoint. Finished
// runs are kept for a while and then expired by the cleanup loop.
type RunResult struct {
	RunID        string    `json:"run_id"`
	JobID        string    `json:"job_id"`
	Status       RunStatus `json:"status"`
	Progress     string    `json:"progress,omitempty"`
	VideoPath    string    `json:"video_path,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
}

type RunStore struct {
	mu     sync.RWMutex
	runs   map[string]*RunResult
	stop   chan struct{}
	logger *slog.Logger
}

func NewRunStore(logger *slog.Logger) *RunStore {
	return &RunStore{
		runs:   make(map[string]*RunResult),
		logger: logger,
	}
}

func (rs *RunStore) Add(runID string, result *RunResult) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.runs[runID] = result
}

func (rs *RunStore) Get(runID string) (*RunResult, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	result, ok := rs.runs[runID]
	if !ok {
		return nil, false
	}
	copied := *result
	return &copied, true
}

func (rs *RunStore) SetProgress(runID, progress string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if r, ok := rs.runs[runID]; ok {
		r.Progress = progress
	}
}

func (rs *RunStore) Complete(runID, videoPath string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if r, ok := rs.runs[runID]; ok {
		r.Status = RunCompleted
		r.VideoPath = videoPath
		r.CompletedAt = timeProvider.Now()
	}
}

func (rs *RunStore) Fail(runID, message string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if r, ok := rs.runs[runID]; ok {
		r.Status = RunFailed
		r.ErrorMessage = message
		r.CompletedAt = timeProvider.Now()
	}
}

// StartCleanup expires finished runs older than threshold, checking every
// interval. Call StopCleanup on shutdown.
func (rs *RunStore) StartCleanup(threshold, interval time.Duration) {
	rs.stop = make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				rs.cleanup(threshold)
			case <-rs.stop:
				ticker.Stop()
				return
			}
		}
	}()
}

func (rs *RunStore) StopCleanup() {
	if rs.stop != nil {
		close(rs.stop)
	}
}

func (rs *RunStore) cleanup(threshold time.Duration) {
	now := timeProvider.Now()
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for runID, r := range rs.runs {
		if !r.CompletedAt.IsZero() && now.Sub(r.CompletedAt) > threshold {
			delete(rs.runs, runID)
			rs.logger.Debug("Expired run result", slog.String("run_id", runID))
		}
	}
}
