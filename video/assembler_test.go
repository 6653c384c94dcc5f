package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/AitomaLab/ugc-engine/scene"
)

type fakeExecutor struct {
	calls     []string
	trimModes []TrimSpec
	durations map[string]float64
	failStage string
}

func (f *fakeExecutor) touch(t string) error {
	return os.WriteFile(t, []byte("x"), 0644)
}

func (f *fakeExecutor) Probe(ctx context.Context, path string) (float64, error) {
	f.calls = append(f.calls, "probe")
	if f.failStage == "probe" {
		return 0, errors.New("probe failed")
	}
	if d, ok := f.durations[filepath.Base(path)]; ok {
		return d, nil
	}
	return 30, nil
}

func (f *fakeExecutor) Trim(ctx context.Context, in, out string, target float64, mode TrimSpec) error {
	f.calls = append(f.calls, "trim")
	f.trimModes = append(f.trimModes, mode)
	if f.failStage == "trim" {
		return errors.New("trim failed")
	}
	return f.touch(out)
}

func (f *fakeExecutor) Normalize(ctx context.Context, in, out string) error {
	f.calls = append(f.calls, "normalize")
	if f.failStage == "normalize" {
		return errors.New("normalize failed")
	}
	return f.touch(out)
}

func (f *fakeExecutor) Concat(ctx context.Context, in []string, out string) error {
	f.calls = append(f.calls, fmt.Sprintf("concat:%d", len(in)))
	if f.failStage == "concat" {
		return errors.New("concat failed")
	}
	return f.touch(out)
}

func (f *fakeExecutor) BurnSubtitles(ctx context.Context, in, ass, out string) error {
	f.calls = append(f.calls, "subtitles")
	if f.failStage == "subtitles" {
		return errors.New("subtitles failed")
	}
	return f.touch(out)
}

func (f *fakeExecutor) MixMusic(ctx context.Context, video, music, out string, dur float64) error {
	f.calls = append(f.calls, "music")
	if f.failStage == "music" {
		return errors.New("music failed")
	}
	return f.touch(out)
}

func (f *fakeExecutor) Truncate(ctx context.Context, in, out string, limit float64) error {
	f.calls = append(f.calls, fmt.Sprintf("truncate:%.0f", limit))
	if f.failStage == "truncate" {
		return errors.New("truncate failed")
	}
	return f.touch(out)
}

func (f *fakeExecutor) OverlayAudio(ctx context.Context, video, audio, out string) error {
	f.calls = append(f.calls, "overlay")
	return f.touch(out)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testScenes(dir string) []scene.Realized {
	return []scene.Realized{
		{Spec: scene.Spec{Name: "hook", TargetDuration: 8, Trim: scene.TrimStart}, Path: filepath.Join(dir, "hook.mp4")},
		{Spec: scene.Spec{Name: "app_demo", TargetDuration: 7, Trim: scene.TrimEnd}, Path: filepath.Join(dir, "demo.mp4")},
	}
}

func TestAssembleStageOrder(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExecutor{}
	a := NewAssembler(exec, testLogger())

	err := a.Assemble(context.Background(), testScenes(dir),
		filepath.Join(dir, "subs.ass"), filepath.Join(dir, "music.mp3"),
		dir, filepath.Join(dir, "final.mp4"))
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	want := []string{"trim", "trim", "normalize", "normalize", "concat:2", "subtitles", "probe", "music", "probe"}
	if len(exec.calls) != len(want) {
		t.Fatalf("call sequence = %v, want %v", exec.calls, want)
	}
	for i := range want {
		if exec.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, exec.calls[i], want[i])
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "final.mp4")); err != nil {
		t.Errorf("final output not written: %v", err)
	}
}

func TestAssembleTrimModesFollowScenes(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExecutor{}
	a := NewAssembler(exec, testLogger())

	if err := a.Assemble(context.Background(), testScenes(dir), "", "", dir, filepath.Join(dir, "final.mp4")); err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	if exec.trimModes[0] != TrimFromStart {
		t.Errorf("hook trim mode = %v, want TrimFromStart", exec.trimModes[0])
	}
	if exec.trimModes[1] != TrimFromEnd {
		t.Errorf("clip trim mode = %v, want TrimFromEnd", exec.trimModes[1])
	}
}

func TestAssembleSkipsOptionalStages(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExecutor{}
	a := NewAssembler(exec, testLogger())

	if err := a.Assemble(context.Background(), testScenes(dir), "", "", dir, filepath.Join(dir, "final.mp4")); err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	for _, c := range exec.calls {
		if c == "subtitles" || c == "music" {
			t.Errorf("stage %q ran without an input path", c)
		}
	}
}

func TestAssembleTruncatesOverCap(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExecutor{durations: map[string]float64{"concat.mp4": 38}}
	a := NewAssembler(exec, testLogger())

	if err := a.Assemble(context.Background(), testScenes(dir), "", "", dir, filepath.Join(dir, "final.mp4")); err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	found := false
	for _, c := range exec.calls {
		if c == "truncate:35" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected truncate at 35s, calls = %v", exec.calls)
	}
}

func TestAssembleErrorAttribution(t *testing.T) {
	tests := []struct {
		failStage string
		wantStage string
	}{
		{"trim", "trim"},
		{"normalize", "normalize"},
		{"concat", "concat"},
		{"subtitles", "subtitles"},
	}

	for _, tt := range tests {
		t.Run(tt.failStage, func(t *testing.T) {
			dir := t.TempDir()
			exec := &fakeExecutor{failStage: tt.failStage}
			a := NewAssembler(exec, testLogger())

			err := a.Assemble(context.Background(), testScenes(dir),
				filepath.Join(dir, "subs.ass"), "", dir, filepath.Join(dir, "final.mp4"))
			if err == nil {
				t.Fatal("expected error")
			}
			var ae *AssemblyError
			if !errors.As(err, &ae) {
				t.Fatalf("error type = %T, want *AssemblyError", err)
			}
			if ae.Stage != tt.wantStage {
				t.Errorf("stage = %q, want %q", ae.Stage, tt.wantStage)
			}
		})
	}
}

func TestAssembleEmptyScenes(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(&fakeExecutor{}, testLogger())
	if err := a.Assemble(context.Background(), nil, "", "", dir, filepath.Join(dir, "final.mp4")); err == nil {
		t.Fatal("expected error for empty scene list")
	}
}
