package video

import "context"

// Executor runs the media commands the assembler needs. The production
// implementation shells out to ffmpeg and ffprobe; tests substitute a fake.
type Executor interface {
	Probe(ctx context.Context, path string) (float64, error)
	Trim(ctx context.Context, inputPath, outputPath string, targetDuration float64, mode TrimSpec) error
	Normalize(ctx context.Context, inputPath, outputPath string) error
	Concat(ctx context.Context, inputPaths []string, outputPath string) error
	BurnSubtitles(ctx context.Context, inputPath, assPath, outputPath string) error
	MixMusic(ctx context.Context, videoPath, musicPath, outputPath string, videoDuration float64) error
	Truncate(ctx context.Context, inputPath, outputPath string, limit float64) error
	OverlayAudio(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// TrimSpec selects which part of an over-long clip survives a trim: the
// window measured from the start, from the end, or around the middle.
type TrimSpec int

const (
	TrimFromStart TrimSpec = iota
	TrimFromEnd
	TrimFromCenter
)

// AssemblyError attributes a failure to the assembly stage that produced it.
type AssemblyError struct {
	Stage string
	Err   error
}

func (e *AssemblyError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}
