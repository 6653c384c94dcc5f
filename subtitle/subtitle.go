// Package subtitle compiles the per-scene script text into a burned-in
// caption track in ASS (Advanced SubStation Alpha) format: large centered
// cues of two to three words with emphasized power words.
package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AitomaLab/ugc-engine/scene"
)

const (
	fontName       = "Impact"
	fontSize       = 140
	primaryColor   = "&H0000FFFF" // yellow
	outlineColor   = "&H00000000"
	highlightColor = "&H00FFFFFF" // white, for power words
	shadowColor    = "&H80000000"
	outlineWidth   = 8
	shadowDepth    = 5

	maxWordsPerCue = 3
)

// Words that get the enlarged white highlight.
var powerWords = map[string]bool{
	"literally": true, "insane": true, "incredible": true, "amazing": true,
	"seriously": true, "actually": true, "never": true, "best": true,
	"perfect": true, "every": true, "entire": true, "changed": true,
	"life": true, "free": true, "now": true, "download": true, "need": true,
	"seconds": true, "fast": true, "easy": true, "simple": true, "just": true,
	"wow": true, "unbelievable": true, "mind-blowing": true,
	"game-changer": true, "instantly": true,
}

// Cue is one timed caption.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// Track is the compiled caption track for one run.
type Track struct {
	Cues []Cue
	// Span is the summed duration of all scenes, spoken or not.
	Span float64
}

// Compile walks the scenes in order, splitting each scene's subtitle text
// into cues that evenly divide the scene's target duration. Scenes with no
// text advance the clock silently. The track's span always equals the sum
// of all scene durations.
func Compile(specs []scene.Spec) Track {
	var track Track
	clock := 0.0

	for _, s := range specs {
		text := strings.TrimSpace(s.SubtitleText)
		if text == "" {
			clock += s.TargetDuration
			track.Span = clock
			continue
		}

		chunks := splitChunks(text, maxWordsPerCue)
		sceneStart := clock
		for i, chunk := range chunks {
			// End times are computed from the scene start so rounding
			// never accumulates across chunks.
			end := sceneStart + s.TargetDuration*float64(i+1)/float64(len(chunks))
			track.Cues = append(track.Cues, Cue{
				Start: clock,
				End:   end,
				Text:  highlightPowerWords(chunk),
			})
			clock = end
		}
		track.Span = clock
	}

	return track
}

// WriteASS renders the track to an .ass file ffmpeg can burn in.
func WriteASS(track Track, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create subtitle directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(assHeader())
	for _, cue := range track.Cues {
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Hormozi,,0,0,0,,%s\n",
			formatTime(cue.Start), formatTime(cue.End), cue.Text)
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write subtitle file: %w", err)
	}
	return nil
}

func splitChunks(text string, maxWords int) []string {
	words := strings.Fields(text)
	var chunks []string
	for i := 0; i < len(words); i += maxWords {
		end := i + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

// highlightPowerWords wraps matching words in ASS override tags switching
// to the highlight color at 130% scale, then back.
func highlightPowerWords(text string) string {
	words := strings.Fields(text)
	for i, word := range words {
		if powerWords[cleanWord(word)] {
			words[i] = fmt.Sprintf("{\\c%s\\fscx130\\fscy130}%s{\\c%s\\fscx100\\fscy100}",
				highlightColor, word, primaryColor)
		}
	}
	return strings.Join(words, " ")
}

// cleanWord lowercases and strips leading/trailing punctuation so
// "INSANE!" matches "insane". Inner hyphens survive for entries like
// "mind-blowing".
func cleanWord(word string) string {
	return strings.TrimFunc(strings.ToLower(word), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

// formatTime renders seconds as the ASS timestamp H:MM:SS.cc.
func formatTime(seconds float64) string {
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := int(seconds) % 60
	cs := int((seconds - float64(int(seconds))) * 100)
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

func assHeader() string {
	return fmt.Sprintf(`[Script Info]
Title: UGC Engine Subtitles
ScriptType: v4.00+
PlayResX: 1080
PlayResY: 1920
WrapStyle: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Hormozi,%s,%d,%s,&H000000FF,%s,%s,-1,0,0,0,100,100,1,0,1,%d,%d,5,40,40,0,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`, fontName, fontSize, primaryColor, outlineColor, shadowColor, outlineWidth, shadowDepth)
}
