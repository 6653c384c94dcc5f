package video

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AitomaLab/ugc-engine/scene"
)

// Assembler turns a set of realized scene clips into the final vertical video.
// Stages run in a fixed order: per-scene trim, per-scene normalize, concat,
// subtitle burn, optional music mix, and a hard duration cap.
type Assembler struct {
	exec   Executor
	logger *slog.Logger
}

func NewAssembler(exec Executor, logger *slog.Logger) *Assembler {
	return &Assembler{exec: exec, logger: logger}
}

// Assemble builds the final video from realized scenes. assPath and musicPath
// may be empty, which skips the subtitle and music stages. Intermediate files
// land in workDir; the caller owns cleanup.
func (a *Assembler) Assemble(ctx context.Context, scenes []scene.Realized, assPath, musicPath, workDir, outputPath string) error {
	if len(scenes) == 0 {
		return &AssemblyError{Stage: "trim", Err: fmt.Errorf("no scenes to assemble")}
	}

	trimmed := make([]string, len(scenes))
	for i, sc := range scenes {
		out := filepath.Join(workDir, fmt.Sprintf("trimmed_%d.mp4", i))
		if err := a.exec.Trim(ctx, sc.Path, out, sc.TargetDuration, trimSpecFor(sc.Trim)); err != nil {
			return &AssemblyError{Stage: "trim", Err: fmt.Errorf("scene %s: %w", sc.Name, err)}
		}
		trimmed[i] = out
	}

	normalized := make([]string, len(trimmed))
	for i, p := range trimmed {
		out := filepath.Join(workDir, fmt.Sprintf("normalized_%d.mp4", i))
		if err := a.exec.Normalize(ctx, p, out); err != nil {
			return &AssemblyError{Stage: "normalize", Err: fmt.Errorf("scene %s: %w", scenes[i].Name, err)}
		}
		normalized[i] = out
	}

	concatPath := filepath.Join(workDir, "concat.mp4")
	if err := a.exec.Concat(ctx, normalized, concatPath); err != nil {
		return &AssemblyError{Stage: "concat", Err: err}
	}

	current := concatPath

	if assPath != "" {
		subtitled := filepath.Join(workDir, "subtitled.mp4")
		if err := a.exec.BurnSubtitles(ctx, current, assPath, subtitled); err != nil {
			return &AssemblyError{Stage: "subtitles", Err: err}
		}
		current = subtitled
	}

	if musicPath != "" {
		duration, err := a.exec.Probe(ctx, current)
		if err != nil {
			return &AssemblyError{Stage: "music", Err: err}
		}
		mixed := filepath.Join(workDir, "mixed.mp4")
		if err := a.exec.MixMusic(ctx, current, musicPath, mixed, duration); err != nil {
			return &AssemblyError{Stage: "music", Err: err}
		}
		current = mixed
	}

	duration, err := a.exec.Probe(ctx, current)
	if err != nil {
		return &AssemblyError{Stage: "duration cap", Err: err}
	}
	if duration > scene.HardCap {
		a.logger.Warn("Final video exceeds duration cap, truncating",
			slog.Float64("duration", duration),
			slog.Float64("cap", scene.HardCap))
		if err := a.exec.Truncate(ctx, current, outputPath, scene.HardCap); err != nil {
			return &AssemblyError{Stage: "duration cap", Err: err}
		}
		return nil
	}

	if err := moveFile(current, outputPath); err != nil {
		return &AssemblyError{Stage: "duration cap", Err: err}
	}
	return nil
}

// moveFile renames when source and destination share a filesystem and falls
// back to a copy across mounts.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open assembled video: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to copy assembled video: %w", err)
	}
	return nil
}

func trimSpecFor(mode scene.TrimMode) TrimSpec {
	switch mode {
	case scene.TrimStart:
		return TrimFromStart
	case scene.TrimCenter:
		return TrimFromCenter
	default:
		return TrimFromEnd
	}
}
