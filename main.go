package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/AitomaLab/ugc-engine/config"
	"github.com/AitomaLab/ugc-engine/generation"
	"github.com/AitomaLab/ugc-engine/handlers"
	"github.com/AitomaLab/ugc-engine/logging"
	"github.com/AitomaLab/ugc-engine/notify"
	"github.com/AitomaLab/ugc-engine/pipeline"
	"github.com/AitomaLab/ugc-engine/scene"
	"github.com/AitomaLab/ugc-engine/scheduler"
	"github.com/AitomaLab/ugc-engine/server"
	"github.com/AitomaLab/ugc-engine/services/generation_service"
	"github.com/AitomaLab/ugc-engine/services/speech_service"
	"github.com/AitomaLab/ugc-engine/services/storage_service"
	"github.com/AitomaLab/ugc-engine/store"
	"github.com/AitomaLab/ugc-engine/video"
)

func main() {
	runJobID := flag.String("run", "", "run a single job by id and exit")
	skipMusic := flag.Bool("skip-music", false, "skip background music generation")
	dryRun := flag.Bool("dry-run", false, "print the scene plan for -run without generating anything")
	flag.Parse()

	cfg := config.Load()

	logger, err := initLogger(cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if !*dryRun {
		if err := video.CheckBinaries(); err != nil {
			log.Fatalf("Missing media tooling: %v", err)
		}
	}

	ctx := context.Background()

	pool, err := store.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer pool.Close()
	st := store.New(pool, logger)

	if *dryRun {
		if *runJobID == "" {
			log.Fatal("-dry-run requires -run <job-id>")
		}
		if err := printScenePlan(ctx, st, logger, *runJobID); err != nil {
			log.Fatalf("Dry run failed: %v", err)
		}
		return
	}

	runner, runStore := buildRunner(&cfg, st, logger)

	if *runJobID != "" {
		runOnce(ctx, st, runner, runStore, *runJobID, *skipMusic)
		return
	}

	runStore.StartCleanup(24*time.Hour, time.Hour)
	defer runStore.StopCleanup()

	sched := scheduler.New(runner, st, cfg.CheckInterval, logger)
	go sched.Start(ctx)
	defer sched.Stop()

	h := handlers.NewRunHandler(runner, st, runStore, cfg.OutputDir, logger)
	r := server.SetupRoutes(h)
	n := setupNegroni(r)

	if cfg.Environment == "production" {
		server.ServeProduction(n, cfg.Domains, cfg.CertCacheDir)
	} else {
		srv := &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      n,
			IdleTimeout:  time.Minute,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		logger.Info("Serving HTTP", slog.String("port", cfg.HTTPPort))
		server.ServeDevelopment(srv)
	}
}

func buildRunner(cfg *config.Config, st *store.Store, logger *slog.Logger) (*scheduler.Runner, *pipeline.RunStore) {
	speech := speech_service.NewElevenLabsService(cfg.ElevenLabsAPIURL, cfg.ElevenLabsAPIKey, cfg.ElevenLabsModelID, logger)

	registry := generation_service.NewRegistry()
	registry.Register("jobs", generation_service.NewKieJobsBackend(cfg.KieAPIURL, cfg.KieAPIKey, logger))
	registry.Register("veo", generation_service.NewVeoBackend(cfg.KieAPIURL, cfg.KieAPIKey, logger))
	registry.Register("music", generation_service.NewMusicBackend(cfg.KieAPIURL, cfg.KieAPIKey, logger))

	storage, err := storage_service.NewMinIOStorage(cfg.Storage, logger)
	if err != nil {
		log.Fatalf("Object storage setup failed: %v", err)
	}
	fetcher := storage_service.NewHTTPFetcher()

	ffmpeg := video.NewFFmpegExecutor(logger)
	orchestrator := generation.NewOrchestrator(cfg, speech, registry, storage, fetcher, ffmpeg, logger)
	assembler := video.NewAssembler(ffmpeg, logger)

	runStore := pipeline.NewRunStore(logger)
	coordinator := pipeline.NewCoordinator(cfg, scene.NewBuilder(), orchestrator, assembler, st, logger)
	notifier := notify.New(cfg, logger)

	return scheduler.NewRunner(cfg, st, coordinator, storage, notifier, runStore, logger), runStore
}

func runOnce(ctx context.Context, st *store.Store, runner *scheduler.Runner, runStore *pipeline.RunStore, jobID string, skipMusic bool) {
	job, err := st.GetJob(ctx, jobID)
	if err != nil {
		log.Fatalf("Failed to load job %s: %v", jobID, err)
	}
	if skipMusic {
		job.SkipMusic = true
	}

	runStore.Add(job.ID, &pipeline.RunResult{
		RunID:     job.ID,
		JobID:     job.ID,
		Status:    pipeline.RunStarted,
		StartedAt: time.Now(),
	})

	if err := runner.ExecuteJob(ctx, job, job.ID); err != nil {
		os.Exit(1)
	}
}

// printScenePlan resolves the job's inputs and prints the scenes that would
// be generated, without calling any external service.
func printScenePlan(ctx context.Context, st *store.Store, logger *slog.Logger, jobID string) error {
	job, err := st.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	input, err := scheduler.ResolveInput(ctx, st, logger, job)
	if err != nil {
		return err
	}

	specs := scene.NewBuilder().Build(input.Request, input.Persona, input.Clip, input.Product)

	fmt.Printf("Job %s: %d scenes, %.1fs total\n", job.ID, len(specs), scene.TotalDuration(specs))
	for i, s := range specs {
		fmt.Printf("\n[%d] %s (%s, %.1fs, trim %s)\n", i+1, s.Name, s.Kind, s.TargetDuration, s.Trim)
		if s.SubtitleText != "" {
			fmt.Printf("    script: %s\n", s.SubtitleText)
		}
		if s.VideoURL != "" {
			fmt.Printf("    clip:   %s\n", s.VideoURL)
		}
	}
	return nil
}

func setupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	n.UseHandler(r)
	return n
}

func initLogger(logDir string) (*slog.Logger, error) {
	fileHandler, err := logging.NewDailyFileHandler(logDir, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	if err != nil {
		return nil, err
	}
	return slog.New(fileHandler), nil
}
