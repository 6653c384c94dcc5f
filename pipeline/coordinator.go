// Package pipeline coordinates a whole video run: scene planning, sequential
// generation, subtitles, optional music and final assembly.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AitomaLab/ugc-engine/config"
	"github.com/AitomaLab/ugc-engine/scene"
	"github.com/AitomaLab/ugc-engine/store"
	"github.com/AitomaLab/ugc-engine/subtitle"
)

// ProgressFunc receives human-readable stage labels as the run advances.
// It is called before each stage starts.
type ProgressFunc func(label string)

// SceneRealizer produces local clips from scene specs.
// *generation.Orchestrator satisfies it.
type SceneRealizer interface {
	Realize(ctx context.Context, spec scene.Spec, index int, model, workDir string) (scene.Realized, error)
	GenerateMusic(ctx context.Context, theme, workDir string) (string, error)
}

// VideoAssembler runs the assembly stages. *video.Assembler satisfies it.
type VideoAssembler interface {
	Assemble(ctx context.Context, scenes []scene.Realized, assPath, musicPath, workDir, outputPath string) error
}

// AssetSink records per-scene telemetry. *store.Store satisfies it; a nil
// sink disables telemetry.
type AssetSink interface {
	LogAsset(ctx context.Context, asset store.Asset)
}

// RunInput is everything a run needs, already resolved from the job row.
type RunInput struct {
	JobID     string
	Request   scene.ContentRequest
	Persona   scene.Persona
	Clip      *scene.Clip
	Product   *scene.Product
	SkipMusic bool
}

type Coordinator struct {
	cfg       *config.Config
	builder   *scene.Builder
	realizer  SceneRealizer
	assembler VideoAssembler
	assets    AssetSink
	logger    *slog.Logger
}

func NewCoordinator(
	cfg *config.Config,
	builder *scene.Builder,
	realizer SceneRealizer,
	assembler VideoAssembler,
	assets AssetSink,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		builder:   builder,
		realizer:  realizer,
		assembler: assembler,
		assets:    assets,
		logger:    logger,
	}
}

// Run executes the full pipeline for one job and returns the final video
// path. Scratch files are cleaned up on both outcomes; the final artifact in
// the output directory survives.
func (c *Coordinator) Run(ctx context.Context, input RunInput, report ProgressFunc) (string, error) {
	workDir := filepath.Join(c.cfg.TempDir, "run_"+uuid.New().String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			c.logger.Warn("Failed to clean scratch directory",
				slog.String("dir", workDir),
				slog.String("error", err.Error()))
		}
	}()

	c.safeReport(report, "Building scenes")
	specs := c.builder.Build(input.Request, input.Persona, input.Clip, input.Product)

	c.safeReport(report, "Generating scenes")
	realized := make([]scene.Realized, 0, len(specs))
	for i, spec := range specs {
		c.safeReport(report, fmt.Sprintf("Gen: %s (%d/%d)", displayName(spec.Name), i+1, len(specs)))

		r, err := c.realizer.Realize(ctx, spec, i, input.Request.Model, workDir)
		if err != nil {
			c.logAsset(ctx, store.Asset{
				JobID:     input.JobID,
				SceneName: spec.Name,
				AssetType: assetTypeFor(spec.Kind),
				Model:     input.Request.Model,
				Duration:  spec.TargetDuration,
				Status:    store.StatusFailed,
				ErrorMsg:  err.Error(),
			})
			return "", fmt.Errorf("scene generation failed: %w", err)
		}
		c.logAsset(ctx, store.Asset{
			JobID:     input.JobID,
			SceneName: spec.Name,
			AssetType: assetTypeFor(spec.Kind),
			SourceURL: r.Path,
			Model:     input.Request.Model,
			Duration:  spec.TargetDuration,
			Status:    "Ready",
		})
		realized = append(realized, r)
	}

	c.safeReport(report, "Subtitling")
	track := subtitle.Compile(specs)
	assPath := ""
	if len(track.Cues) > 0 {
		assPath = filepath.Join(workDir, "subtitles.ass")
		if err := subtitle.WriteASS(track, assPath); err != nil {
			return "", fmt.Errorf("failed to write subtitle track: %w", err)
		}
	}

	musicPath := ""
	if !input.SkipMusic {
		c.safeReport(report, "Adding Music")
		path, err := c.realizer.GenerateMusic(ctx, input.Request.Theme, workDir)
		if err != nil {
			c.logger.Warn("Music generation failed, continuing without music",
				slog.String("job_id", input.JobID),
				slog.String("error", err.Error()))
		} else {
			musicPath = path
		}
	}

	c.safeReport(report, "Assembling")
	if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(c.cfg.OutputDir, outputFileName(input))
	if err := c.assembler.Assemble(ctx, realized, assPath, musicPath, workDir, outputPath); err != nil {
		return "", fmt.Errorf("video assembly failed: %w", err)
	}

	c.logAsset(ctx, store.Asset{
		JobID:     input.JobID,
		SceneName: "final",
		AssetType: "video",
		SourceURL: outputPath,
		Model:     input.Request.Model,
		Duration:  scene.TotalDuration(specs),
		Status:    "Ready",
	})
	c.logger.Info("Pipeline run complete",
		slog.String("job_id", input.JobID),
		slog.String("output", outputPath))
	return outputPath, nil
}

// safeReport shields the run from a panicking progress callback.
func (c *Coordinator) safeReport(report ProgressFunc, label string) {
	if report == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("Progress callback panicked",
				slog.String("label", label),
				slog.Any("panic", r))
		}
	}()
	report(label)
}

func (c *Coordinator) logAsset(ctx context.Context, asset store.Asset) {
	if c.assets == nil {
		return
	}
	c.assets.LogAsset(ctx, asset)
}

func assetTypeFor(kind scene.Kind) string {
	if kind == scene.KindClip {
		return "clip"
	}
	return "video"
}

// displayName turns a scene key like "app_demo" into the label used in
// progress updates ("App Demo").
func displayName(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func outputFileName(input RunInput) string {
	slug := strings.ToLower(strings.ReplaceAll(input.Persona.Name, " ", "_"))
	if slug == "" {
		slug = "video"
	}
	short := input.JobID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%s_%s.mp4", slug, time.Now().Format("20060102_150405"), short)
}
