package video

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	outputWidth  = 1080
	outputHeight = 1920
	outputFPS    = 30
	audioRate    = 44100

	musicVolume  = 0.15
	musicFadeSec = 2.0
)

// CheckBinaries verifies that ffmpeg and ffprobe are on PATH. Called once at
// startup so a missing install fails fast instead of mid-run.
func CheckBinaries() error {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("required binary %q not found in PATH: %w", bin, err)
		}
	}
	return nil
}

// FFmpegExecutor implements Executor by shelling out to ffmpeg and ffprobe.
type FFmpegExecutor struct {
	logger *slog.Logger
}

func NewFFmpegExecutor(logger *slog.Logger) *FFmpegExecutor {
	return &FFmpegExecutor{logger: logger}
}

// Probe returns the duration of a media file in seconds.
func (fe *FFmpegExecutor) Probe(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-i", path, "-show_entries", "format=duration", "-v", "quiet", "-of", "csv=p=0")
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", durationStr, err)
	}

	return duration, nil
}

// Trim cuts a clip down to targetDuration. The mode decides which window of
// the source survives. Clips already at or under the target are stream-copied
// untouched.
func (fe *FFmpegExecutor) Trim(ctx context.Context, inputPath, outputPath string, targetDuration float64, mode TrimSpec) error {
	actual, err := fe.Probe(ctx, inputPath)
	if err != nil {
		return err
	}

	start, needed := trimWindow(actual, targetDuration, mode)
	if !needed {
		return fe.run(ctx, "-y", "-i", inputPath, "-c", "copy", outputPath)
	}

	return fe.run(ctx,
		"-y",
		"-ss", fmt.Sprintf("%.3f", start),
		"-i", inputPath,
		"-t", fmt.Sprintf("%.3f", targetDuration),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-preset", "fast",
		outputPath,
	)
}

// trimWindow computes the -ss offset that keeps the wanted window of an
// over-long clip, or reports that the clip already fits and can be
// stream-copied. TrimFromStart keeps the leading window, TrimFromEnd the
// trailing one, TrimFromCenter the middle.
func trimWindow(actual, target float64, mode TrimSpec) (start float64, needed bool) {
	if actual <= target {
		return 0, false
	}
	switch mode {
	case TrimFromStart:
		start = 0
	case TrimFromEnd:
		start = actual - target
	case TrimFromCenter:
		start = (actual - target) / 2
	}
	return start, true
}

// Normalize re-encodes a clip to the shared vertical format so concat can
// stream-copy: 1080x1920 letterboxed, 30fps, 44.1kHz audio.
func (fe *FFmpegExecutor) Normalize(ctx context.Context, inputPath, outputPath string) error {
	scaleFilter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black",
		outputWidth, outputHeight, outputWidth, outputHeight,
	)
	return fe.run(ctx,
		"-y",
		"-i", inputPath,
		"-vf", scaleFilter,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-ar", strconv.Itoa(audioRate),
		"-r", strconv.Itoa(outputFPS),
		"-preset", "fast",
		outputPath,
	)
}

// Concat joins pre-normalized clips with the concat demuxer, stream-copying
// both tracks. Inputs must share codec parameters.
func (fe *FFmpegExecutor) Concat(ctx context.Context, inputPaths []string, outputPath string) error {
	if len(inputPaths) == 0 {
		return fmt.Errorf("no input clips to concatenate")
	}

	listPath := filepath.Join(filepath.Dir(outputPath), "concat_list.txt")
	var list strings.Builder
	for _, p := range inputPaths {
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(p, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	defer os.Remove(listPath)

	return fe.run(ctx,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	)
}

// BurnSubtitles renders an ASS track into the video. Audio is stream-copied.
func (fe *FFmpegExecutor) BurnSubtitles(ctx context.Context, inputPath, assPath, outputPath string) error {
	escaped := strings.ReplaceAll(assPath, "'", `\'`)
	return fe.run(ctx,
		"-y",
		"-i", inputPath,
		"-vf", fmt.Sprintf("ass='%s'", escaped),
		"-c:v", "libx264",
		"-c:a", "copy",
		"-preset", "fast",
		outputPath,
	)
}

// MixMusic ducks a background track under the existing audio. The music is
// trimmed to the video duration with a fade-out over the last two seconds.
func (fe *FFmpegExecutor) MixMusic(ctx context.Context, videoPath, musicPath, outputPath string, videoDuration float64) error {
	fadeStart := videoDuration - musicFadeSec
	if fadeStart < 0 {
		fadeStart = 0
	}
	filter := fmt.Sprintf(
		"[1:a]atrim=0:%.3f,afade=t=out:st=%.3f:d=%.1f,volume=%.2f[bg];[0:a][bg]amix=inputs=2:duration=first:dropout_transition=2[a]",
		videoDuration, fadeStart, musicFadeSec, musicVolume,
	)
	return fe.run(ctx,
		"-y",
		"-i", videoPath,
		"-i", musicPath,
		"-filter_complex", filter,
		"-map", "0:v",
		"-map", "[a]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outputPath,
	)
}

// Truncate enforces a hard duration ceiling with a stream copy.
func (fe *FFmpegExecutor) Truncate(ctx context.Context, inputPath, outputPath string, limit float64) error {
	return fe.run(ctx,
		"-y",
		"-i", inputPath,
		"-t", fmt.Sprintf("%.3f", limit),
		"-c", "copy",
		outputPath,
	)
}

// OverlayAudio replaces a clip's audio track with a voiceover, keeping the
// video stream untouched and cutting at whichever track ends first.
func (fe *FFmpegExecutor) OverlayAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	return fe.run(ctx,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outputPath,
	)
}

func (fe *FFmpegExecutor) run(ctx context.Context, args ...string) error {
	fe.logger.Debug("Executing FFmpeg command", slog.Any("args", args))

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start FFmpeg: %w", err)
	}

	stderrOutput, _ := io.ReadAll(stderr)

	if err := cmd.Wait(); err != nil {
		fe.logger.Error("FFmpeg execution failed",
			slog.String("error", err.Error()),
			slog.String("stderr", tail(string(stderrOutput), 2000)))
		return fmt.Errorf("FFmpeg execution failed: %w", err)
	}

	return nil
}

// tail keeps the last n bytes of ffmpeg stderr, which is where the actual
// error message lands.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
