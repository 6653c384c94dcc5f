package subtitle

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AitomaLab/ugc-engine/scene"
)

func TestCompileSpanMatchesSceneDurations(t *testing.T) {
	tests := []struct {
		name  string
		specs []scene.Spec
		want  float64
	}{
		{
			name: "speaking and silent scenes",
			specs: []scene.Spec{
				{SubtitleText: "This app planned my entire trip", TargetDuration: 8},
				{SubtitleText: "", TargetDuration: 7},
			},
			want: 15,
		},
		{
			name: "uneven chunking does not drift",
			specs: []scene.Spec{
				{SubtitleText: "one two three four five six seven", TargetDuration: 8},
				{SubtitleText: "word", TargetDuration: 8},
				{SubtitleText: "", TargetDuration: 8},
				{SubtitleText: "a b c d e", TargetDuration: 8},
			},
			want: 32,
		},
		{
			name: "all silent",
			specs: []scene.Spec{
				{SubtitleText: "", TargetDuration: 7.5},
				{SubtitleText: "", TargetDuration: 7.5},
			},
			want: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track := Compile(tt.specs)
			if math.Abs(track.Span-tt.want) > 1e-9 {
				t.Errorf("expected span %v, got %v", tt.want, track.Span)
			}
			if len(track.Cues) > 0 {
				last := track.Cues[len(track.Cues)-1]
				// The final cue ends when its scene ends, never past the span.
				if last.End > track.Span+1e-9 {
					t.Errorf("last cue end %v exceeds span %v", last.End, track.Span)
				}
			}
		})
	}
}

func TestCompileChunking(t *testing.T) {
	specs := []scene.Spec{
		{SubtitleText: "one two three four five six seven", TargetDuration: 7},
	}

	track := Compile(specs)

	if len(track.Cues) != 3 {
		t.Fatalf("expected 3 cues for 7 words, got %d", len(track.Cues))
	}
	for i, cue := range track.Cues {
		words := strings.Fields(stripTags(cue.Text))
		if len(words) > 3 {
			t.Errorf("cue %d has %d words, max is 3", i, len(words))
		}
	}
	// 7 words in chunks of 3 gives 3/3/1, each cue spanning a third of
	// the scene.
	for i, cue := range track.Cues {
		got := cue.End - cue.Start
		if math.Abs(got-7.0/3.0) > 1e-9 {
			t.Errorf("cue %d duration = %v, want %v", i, got, 7.0/3.0)
		}
	}
}

func TestCompileSilentSceneEmitsNoCues(t *testing.T) {
	specs := []scene.Spec{
		{SubtitleText: "hello there friend", TargetDuration: 8},
		{SubtitleText: "", TargetDuration: 7},
		{SubtitleText: "goodbye now", TargetDuration: 8},
	}

	track := Compile(specs)

	// The scene after the silent one must start where the silent scene
	// ended, not where the previous cues stopped.
	var thirdSceneStart float64
	for _, cue := range track.Cues {
		if cue.Start >= 15 {
			thirdSceneStart = cue.Start
			break
		}
	}
	if math.Abs(thirdSceneStart-15) > 1e-9 {
		t.Errorf("expected scene after silent gap to start at 15, got %v", thirdSceneStart)
	}
}

func TestHighlightPowerWords(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		highlight bool
	}{
		{name: "plain word", text: "hello", highlight: false},
		{name: "power word", text: "amazing", highlight: true},
		{name: "uppercase with punctuation", text: "INSANE!", highlight: true},
		{name: "hyphenated entry", text: "mind-blowing", highlight: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := highlightPowerWords(tt.text)
			has := strings.Contains(got, highlightColor)
			if has != tt.highlight {
				t.Errorf("highlightPowerWords(%q) = %q, highlight = %v, want %v",
					tt.text, got, has, tt.highlight)
			}
			if tt.highlight && !strings.Contains(got, tt.text) {
				t.Errorf("original word lost in %q", got)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00:00.00"},
		{7.5, "0:00:07.50"},
		{65.25, "0:01:05.25"},
		{3600, "1:00:00.00"},
	}

	for _, tt := range tests {
		if got := formatTime(tt.seconds); got != tt.want {
			t.Errorf("formatTime(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestWriteASS(t *testing.T) {
	specs := []scene.Spec{
		{SubtitleText: "This is literally amazing", TargetDuration: 8},
	}
	track := Compile(specs)

	path := filepath.Join(t.TempDir(), "subs", "subtitles.ass")
	if err := WriteASS(track, path); err != nil {
		t.Fatalf("WriteASS failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read subtitle file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "[Script Info]") {
		t.Error("missing ASS header")
	}
	if !strings.Contains(content, "PlayResX: 1080") || !strings.Contains(content, "PlayResY: 1920") {
		t.Error("missing vertical play resolution")
	}
	if !strings.Contains(content, "Dialogue: 0,0:00:00.00,") {
		t.Error("missing first dialogue line")
	}
	if !strings.Contains(content, "Style: Hormozi,Impact,140,") {
		t.Error("missing caption style definition")
	}
}

func stripTags(s string) string {
	for {
		open := strings.Index(s, "{")
		if open < 0 {
			return s
		}
		close := strings.Index(s[open:], "}")
		if close < 0 {
			return s
		}
		s = s[:open] + s[open+close+1:]
	}
}
