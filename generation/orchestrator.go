package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/AitomaLab/ugc-engine/config"
	"github.com/AitomaLab/ugc-engine/poll"
	"github.com/AitomaLab/ugc-engine/scene"
	"github.com/AitomaLab/ugc-engine/services/generation_service"
	"github.com/AitomaLab/ugc-engine/services/speech_service"
	"github.com/AitomaLab/ugc-engine/services/storage_service"
)

// SceneError attributes a generation failure to the scene that produced it.
type SceneError struct {
	Scene string
	Index int
	Err   error
}

func (e *SceneError) Error() string {
	return fmt.Sprintf("scene %s (%d): %v", e.Scene, e.Index, e.Err)
}

func (e *SceneError) Unwrap() error {
	return e.Err
}

// AudioOverlayer replaces a clip's audio track with a voiceover.
// *video.FFmpegExecutor satisfies it.
type AudioOverlayer interface {
	OverlayAudio(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// Orchestrator turns scene specs into local video files by driving the
// speech, generation and storage services. One instance serves all runs.
type Orchestrator struct {
	cfg      *config.Config
	speech   speech_service.Service
	backends *generation_service.Registry
	stager   storage_service.Stager
	fetcher  storage_service.Fetcher
	overlay  AudioOverlayer
	logger   *slog.Logger
}

func NewOrchestrator(
	cfg *config.Config,
	speech speech_service.Service,
	backends *generation_service.Registry,
	stager storage_service.Stager,
	fetcher storage_service.Fetcher,
	overlay AudioOverlayer,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		speech:   speech,
		backends: backends,
		stager:   stager,
		fetcher:  fetcher,
		overlay:  overlay,
		logger:   logger,
	}
}

// Realize produces the clip for one scene under workDir and returns the
// realized scene pointing at the local file. model overrides the configured
// video model for direct scenes; empty keeps the default. Any failure is
// wrapped in a SceneError so the caller can attribute it.
func (o *Orchestrator) Realize(ctx context.Context, spec scene.Spec, index int, model, workDir string) (scene.Realized, error) {
	outputPath := filepath.Join(workDir, fmt.Sprintf("scene_%d.mp4", index))

	var err error
	switch spec.Kind {
	case scene.KindClip:
		err = o.realizeClip(ctx, spec, outputPath)
	case scene.KindSpeech:
		err = o.realizeSpeech(ctx, spec, index, workDir, outputPath)
	case scene.KindDirect:
		err = o.realizeDirect(ctx, spec, index, model, workDir, outputPath)
	case scene.KindComposite:
		err = o.realizeComposite(ctx, spec, index, workDir, outputPath)
	default:
		err = fmt.Errorf("unknown scene kind %q", spec.Kind)
	}

	if err != nil {
		return scene.Realized{}, &SceneError{Scene: spec.Name, Index: index, Err: err}
	}
	return scene.Realized{Spec: spec, Path: outputPath}, nil
}

// realizeClip downloads a pre-recorded clip. A dead URL is terminal: there
// is nothing to regenerate.
func (o *Orchestrator) realizeClip(ctx context.Context, spec scene.Spec, outputPath string) error {
	if spec.VideoURL == "" {
		return fmt.Errorf("clip scene has no video URL")
	}
	if err := o.fetcher.Fetch(ctx, spec.VideoURL, outputPath); err != nil {
		return fmt.Errorf("failed to download clip: %w", err)
	}
	return nil
}

// realizeSpeech synthesizes the script, stages the audio where the
// generation API can reach it, and drives the lip-sync model with it.
func (o *Orchestrator) realizeSpeech(ctx context.Context, spec scene.Spec, index int, workDir, outputPath string) error {
	audioPath := filepath.Join(workDir, fmt.Sprintf("scene_%d_voice.mp3", index))
	if err := o.synthesize(ctx, spec.SubtitleText, spec.VoiceID, audioPath); err != nil {
		return err
	}

	audioURL, err := o.stager.Stage(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("failed to stage audio: %w", err)
	}

	task := generation_service.Task{
		Kind:              generation_service.TaskLipSync,
		Model:             o.cfg.LipSyncModel,
		ReferenceImageURL: spec.ReferenceImageURL,
		AudioURL:          audioURL,
		Resolution:        o.cfg.LipSyncQuality,
	}
	artifactURL, err := o.generate(ctx, task, o.cfg.VideoPoll)
	if err != nil {
		return err
	}

	if err := o.fetcher.Fetch(ctx, artifactURL, outputPath); err != nil {
		return fmt.Errorf("failed to download lip-sync video: %w", err)
	}
	return nil
}

// realizeDirect generates a speaking scene straight from the performance
// prompt. Silent models get the voiceover overlaid afterwards.
func (o *Orchestrator) realizeDirect(ctx context.Context, spec scene.Spec, index int, model, workDir, outputPath string) error {
	if model == "" {
		model = o.cfg.VideoModel
	}

	task := generation_service.Task{
		Kind:              generation_service.TaskVideo,
		Model:             config.ResolveModel(model),
		Prompt:            spec.Prompt,
		ReferenceImageURL: spec.ReferenceImageURL,
		AspectRatio:       o.cfg.AspectRatio,
		Resolution:        o.cfg.VideoResolution,
		DurationSeconds:   o.requestedSeconds(spec.TargetDuration),
	}
	artifactURL, err := o.generate(ctx, task, o.cfg.VideoPoll)
	if err != nil {
		return err
	}

	if !config.IsSilentModel(model) || spec.SubtitleText == "" {
		if err := o.fetcher.Fetch(ctx, artifactURL, outputPath); err != nil {
			return fmt.Errorf("failed to download video: %w", err)
		}
		return nil
	}

	silentPath := filepath.Join(workDir, fmt.Sprintf("scene_%d_silent.mp4", index))
	if err := o.fetcher.Fetch(ctx, artifactURL, silentPath); err != nil {
		return fmt.Errorf("failed to download video: %w", err)
	}
	return o.addVoiceover(ctx, spec, index, workDir, silentPath, outputPath)
}

// realizeComposite builds the persona+product still first, animates it, and
// overlays the synthesized voiceover since the animation model is silent.
func (o *Orchestrator) realizeComposite(ctx context.Context, spec scene.Spec, index int, workDir, outputPath string) error {
	imageTask := generation_service.Task{
		Kind:              generation_service.TaskImage,
		Model:             o.cfg.ImageModel,
		Prompt:            spec.ImagePrompt,
		ReferenceImageURL: spec.ReferenceImageURL,
		ProductImageURL:   spec.ProductImageURL,
		Seed:              spec.Seed,
	}
	compositeURL, err := o.generate(ctx, imageTask, o.cfg.ImagePoll)
	if err != nil {
		return fmt.Errorf("composite image: %w", err)
	}

	animateTask := generation_service.Task{
		Kind:              generation_service.TaskVideo,
		Model:             config.ResolveModel(o.cfg.AnimateModel),
		Prompt:            spec.Prompt,
		ReferenceImageURL: compositeURL,
		AspectRatio:       o.cfg.AspectRatio,
		DurationSeconds:   o.requestedSeconds(spec.TargetDuration),
	}
	artifactURL, err := o.generate(ctx, animateTask, o.cfg.VideoPoll)
	if err != nil {
		return fmt.Errorf("animation: %w", err)
	}

	silentPath := filepath.Join(workDir, fmt.Sprintf("scene_%d_silent.mp4", index))
	if err := o.fetcher.Fetch(ctx, artifactURL, silentPath); err != nil {
		return fmt.Errorf("failed to download animation: %w", err)
	}

	if spec.SubtitleText == "" {
		return moveOrError(silentPath, outputPath)
	}
	return o.addVoiceover(ctx, spec, index, workDir, silentPath, outputPath)
}

// GenerateMusic produces a background track for the theme and downloads it
// to workDir. Callers treat failure as non-fatal: the video ships without
// music rather than not at all.
func (o *Orchestrator) GenerateMusic(ctx context.Context, theme, workDir string) (string, error) {
	task := generation_service.Task{
		Kind:   generation_service.TaskMusic,
		Prompt: generation_service.MusicPrompt(theme),
	}
	artifactURL, err := o.generate(ctx, task, o.cfg.MusicPoll)
	if err != nil {
		return "", err
	}

	musicPath := filepath.Join(workDir, "music.mp3")
	if err := o.fetcher.Fetch(ctx, artifactURL, musicPath); err != nil {
		return "", fmt.Errorf("failed to download music: %w", err)
	}
	return musicPath, nil
}

// generate submits a task to the backend serving it and polls until the
// artifact URL is available.
func (o *Orchestrator) generate(ctx context.Context, task generation_service.Task, schedule poll.Schedule) (string, error) {
	backend, err := o.backends.BackendFor(task)
	if err != nil {
		return "", err
	}

	taskID, err := backend.Submit(ctx, task)
	if err != nil {
		return "", err
	}
	o.logger.Info("Generation task submitted",
		slog.String("task_id", taskID),
		slog.String("model", task.Model))

	return poll.Until(ctx, o.logger, schedule, func(ctx context.Context) (poll.Result, error) {
		return backend.Poll(ctx, taskID)
	})
}

// synthesize runs TTS, retrying once on the fallback voice when the account
// is out of quota on the requested one.
func (o *Orchestrator) synthesize(ctx context.Context, text, voiceID, outputPath string) error {
	err := o.speech.Synthesize(ctx, text, voiceID, outputPath)
	if err == nil {
		return nil
	}

	var httpErr *speech_service.HTTPError
	if errors.As(err, &httpErr) && httpErr.IsQuota() && voiceID != o.cfg.FallbackVoiceID {
		o.logger.Warn("Voice quota reached, retrying with fallback voice",
			slog.String("voice_id", voiceID),
			slog.String("fallback_voice_id", o.cfg.FallbackVoiceID))
		return o.speech.Synthesize(ctx, text, o.cfg.FallbackVoiceID, outputPath)
	}
	return err
}

func (o *Orchestrator) addVoiceover(ctx context.Context, spec scene.Spec, index int, workDir, silentPath, outputPath string) error {
	audioPath := filepath.Join(workDir, fmt.Sprintf("scene_%d_voice.mp3", index))
	if err := o.synthesize(ctx, spec.SubtitleText, spec.VoiceID, audioPath); err != nil {
		return fmt.Errorf("voiceover synthesis: %w", err)
	}
	if err := o.overlay.OverlayAudio(ctx, silentPath, audioPath, outputPath); err != nil {
		return fmt.Errorf("voiceover overlay: %w", err)
	}
	return nil
}

// requestedSeconds rounds a scene's planned duration up to whole seconds
// and caps it at the configured per-clip maximum the generation APIs accept.
func (o *Orchestrator) requestedSeconds(target float64) int {
	seconds := int(math.Ceil(target))
	if o.cfg.ClipDuration > 0 && seconds > o.cfg.ClipDuration {
		seconds = o.cfg.ClipDuration
	}
	return seconds
}

func moveOrError(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move scene file: %w", err)
	}
	return nil
}
