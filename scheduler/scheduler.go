// Package scheduler claims queued video jobs from the store and runs them
// through the pipeline with a bounded number of concurrent runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AitomaLab/ugc-engine/config"
	"github.com/AitomaLab/ugc-engine/notify"
	"github.com/AitomaLab/ugc-engine/pipeline"
	"github.com/AitomaLab/ugc-engine/scene"
	"github.com/AitomaLab/ugc-engine/store"
)

// ErrAlreadyRunning reports a duplicate trigger for a job that is in flight.
var ErrAlreadyRunning = errors.New("job is already running")

const staleClaimAge = 2 * time.Hour

// progressSteps maps stage labels to the coarse percent stored on the job
// row. Matching is by substring, first hit wins.
var progressSteps = []struct {
	key     string
	percent int
}{
	{"Building scenes", 5},
	{"Generating scenes", 10},
	{"Gen: Hook", 20},
	{"Gen: Reaction", 40},
	{"Gen: App Demo", 60},
	{"Gen: Cta", 80},
	{"Subtitling", 90},
	{"Assembling", 95},
}

func progressPercent(label string) (int, bool) {
	for _, s := range progressSteps {
		if strings.Contains(label, s.key) {
			return s.percent, true
		}
	}
	return 0, false
}

// JobStore is the slice of the persistence layer the runner needs.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*store.Job, error)
	ClaimQueuedJobs(ctx context.Context, limit int) ([]*store.Job, error)
	SetProgress(ctx context.Context, id string, progress int) error
	MarkComplete(ctx context.Context, id, finalVideoURL string) error
	MarkFailed(ctx context.Context, id, message string) error
	RequeueJob(ctx context.Context, id string) error
	ResetStaleClaims(ctx context.Context, maxAge time.Duration) (int, error)
	GetPersona(ctx context.Context, id string) (*scene.Persona, error)
	GetAppClip(ctx context.Context, id string) (*scene.Clip, error)
	PickAppClip(ctx context.Context, category string) (*scene.Clip, error)
	GetProduct(ctx context.Context, id string) (*scene.Product, error)
}

// Publisher uploads the finished video and returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, localPath, objectName string) (string, error)
}

// Coordinator runs one pipeline. *pipeline.Coordinator satisfies it.
type Coordinator interface {
	Run(ctx context.Context, input pipeline.RunInput, report pipeline.ProgressFunc) (string, error)
}

// Runner executes single jobs end to end: resolve inputs, run the pipeline,
// publish and record the outcome. Shared by the scheduler loop and the
// on-demand HTTP trigger.
type Runner struct {
	cfg         *config.Config
	store       JobStore
	coordinator Coordinator
	publisher   Publisher
	notifier    notify.Notifier
	runStore    *pipeline.RunStore
	logger      *slog.Logger

	running sync.Map
	sem     chan struct{}
}

func NewRunner(
	cfg *config.Config,
	jobStore JobStore,
	coordinator Coordinator,
	publisher Publisher,
	notifier notify.Notifier,
	runStore *pipeline.RunStore,
	logger *slog.Logger,
) *Runner {
	maxRuns := cfg.MaxConcurrentRuns
	if maxRuns < 1 {
		maxRuns = 1
	}
	return &Runner{
		cfg:         cfg,
		store:       jobStore,
		coordinator: coordinator,
		publisher:   publisher,
		notifier:    notifier,
		runStore:    runStore,
		logger:      logger,
		sem:         make(chan struct{}, maxRuns),
	}
}

// FreeSlots reports how many more runs can start right now.
func (r *Runner) FreeSlots() int {
	return cap(r.sem) - len(r.sem)
}

// ExecuteJob runs one claimed job. runID names the in-memory run record for
// the status endpoint. Blocks while the concurrency gate is full.
func (r *Runner) ExecuteJob(ctx context.Context, job *store.Job, runID string) error {
	if _, loaded := r.running.LoadOrStore(job.ID, struct{}{}); loaded {
		return ErrAlreadyRunning
	}
	defer r.running.Delete(job.ID)

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-r.sem }()

	r.logger.Info("Starting video job",
		slog.String("job_id", job.ID),
		slog.String("run_id", runID))

	input, err := ResolveInput(ctx, r.store, r.logger, job)
	if err != nil {
		return r.fail(ctx, job.ID, runID, fmt.Errorf("data fetch failed: %w", err))
	}

	report := func(label string) {
		r.runStore.SetProgress(runID, label)
		if percent, ok := progressPercent(label); ok {
			if err := r.store.SetProgress(ctx, job.ID, percent); err != nil {
				r.logger.Warn("Failed to update job progress",
					slog.String("job_id", job.ID),
					slog.String("error", err.Error()))
			}
		}
	}

	finalPath, err := r.coordinator.Run(ctx, *input, report)
	if err != nil {
		return r.fail(ctx, job.ID, runID, err)
	}

	finalURL, err := r.publisher.Publish(ctx, finalPath, filepath.Base(finalPath))
	if err != nil {
		return r.fail(ctx, job.ID, runID, fmt.Errorf("failed to publish video: %w", err))
	}

	if err := r.store.MarkComplete(ctx, job.ID, finalURL); err != nil {
		r.logger.Error("Failed to mark job complete",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	}
	r.runStore.Complete(runID, finalPath)
	r.notifier.RunCompleted(job.ID, finalURL)

	r.logger.Info("Video job complete",
		slog.String("job_id", job.ID),
		slog.String("video_url", finalURL))
	return nil
}

func (r *Runner) fail(ctx context.Context, jobID, runID string, err error) error {
	clean := store.CleanFailure(err)
	r.logger.Error("Video job failed",
		slog.String("job_id", jobID),
		slog.String("error", err.Error()))

	if markErr := r.store.MarkFailed(ctx, jobID, clean); markErr != nil {
		r.logger.Error("Failed to mark job failed",
			slog.String("job_id", jobID),
			slog.String("error", markErr.Error()))
	}
	r.runStore.Fail(runID, clean)
	r.notifier.RunFailed(jobID, clean)
	return err
}

// ResolveInput loads everything the pipeline needs from the job row.
// Product jobs take the composite path and carry no app clip; a missing
// clip on a regular job is fine, the scene builder synthesizes a demo.
func ResolveInput(ctx context.Context, js JobStore, logger *slog.Logger, job *store.Job) (*pipeline.RunInput, error) {
	persona, err := js.GetPersona(ctx, job.PersonaID)
	if err != nil {
		return nil, fmt.Errorf("persona %s: %w", job.PersonaID, err)
	}

	input := &pipeline.RunInput{
		JobID: job.ID,
		Request: scene.ContentRequest{
			Hook:     job.Hook,
			Length:   fmt.Sprintf("%ds", job.LengthSeconds),
			Category: job.Theme,
			Caption:  job.Caption,
			Theme:    job.Theme,
			Model:    job.Model,
			LipSync:  job.LipSync,
		},
		Persona:   *persona,
		SkipMusic: job.SkipMusic,
	}

	if job.ProductID != nil {
		product, err := js.GetProduct(ctx, *job.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", *job.ProductID, err)
		}
		input.Product = product
		return input, nil
	}

	if job.ClipID != nil {
		clip, err := js.GetAppClip(ctx, *job.ClipID)
		if err != nil {
			return nil, fmt.Errorf("app clip %s: %w", *job.ClipID, err)
		}
		input.Clip = clip
		return input, nil
	}

	clip, err := js.PickAppClip(ctx, job.Theme)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("No app clips available, demo scene will be synthesized",
				slog.String("job_id", job.ID))
			return input, nil
		}
		return nil, err
	}
	input.Clip = clip
	return input, nil
}

// Scheduler polls the store for queued jobs and hands them to the runner.
type Scheduler struct {
	runner   *Runner
	store    JobStore
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(runner *Runner, jobStore JobStore, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		store:    jobStore,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start runs the claim loop until Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Scheduler started", slog.Duration("interval", s.interval))

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stop:
			s.wg.Wait()
			return
		case <-ctx.Done():
			s.wg.Wait()
			return
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) tick(ctx context.Context) {
	if n, err := s.store.ResetStaleClaims(ctx, staleClaimAge); err != nil {
		s.logger.Warn("Failed to reset stale claims", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.Info("Requeued stale claimed jobs", slog.Int("count", n))
	}

	free := s.runner.FreeSlots()
	if free == 0 {
		return
	}

	jobs, err := s.store.ClaimQueuedJobs(ctx, free)
	if err != nil {
		s.logger.Error("Failed to claim queued jobs", slog.String("error", err.Error()))
		return
	}

	for _, job := range jobs {
		job := job
		runID := job.ID
		s.runner.runStore.Add(runID, &pipeline.RunResult{
			RunID:     runID,
			JobID:     job.ID,
			Status:    pipeline.RunStarted,
			StartedAt: time.Now(),
		})

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.runner.ExecuteJob(ctx, job, runID); errors.Is(err, ErrAlreadyRunning) {
				if reqErr := s.store.RequeueJob(ctx, job.ID); reqErr != nil {
					s.logger.Error("Failed to requeue duplicate job",
						slog.String("job_id", job.ID),
						slog.String("error", reqErr.Error()))
				}
			}
		}()
	}
}
