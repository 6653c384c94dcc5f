// Package scene builds the ordered scene plan for a video run: which
// segments exist, how each one is produced, how long it runs and what is
// spoken over it. Everything in this package is pure; generation and
// assembly happen elsewhere.
package scene

// Kind is the closed set of ways a scene's footage can be produced.
type Kind int

const (
	// KindSpeech is a lip-sync scene: speech is synthesized from the
	// subtitle text, staged, and driven onto the persona's reference image.
	KindSpeech Kind = iota
	// KindDirect is a prompt-to-video scene submitted straight to the
	// selected video model, optionally seeded with a reference image.
	KindDirect
	// KindClip is pre-recorded footage fetched from a URL.
	KindClip
	// KindComposite first composes a persona+product still image, then
	// animates it into video.
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindSpeech:
		return "speech"
	case KindDirect:
		return "direct"
	case KindClip:
		return "clip"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// TrimMode selects which portion of an over-long source clip survives
// trimming to the scene's target duration.
type TrimMode string

const (
	TrimStart  TrimMode = "start"
	TrimEnd    TrimMode = "end"
	TrimCenter TrimMode = "center"
)

// ContentRequest is the immutable job input the plan is built from.
type ContentRequest struct {
	Hook     string
	Length   string
	Category string
	Caption  string
	Theme    string
	Model    string
	// LipSync routes speaking scenes through the speech-driven lip-sync
	// path instead of direct prompt-to-video generation.
	LipSync bool
}

// Persona describes the on-camera character. Supplied per request and
// never mutated here.
type Persona struct {
	Name              string
	Age               string
	Gender            string
	VisualDescription string
	Personality       string
	Energy            string
	Accent            string
	Tone              string
	VoiceID           string
	ReferenceImageURL string
}

// Clip is a pre-recorded footage reference, typically an app screen
// recording.
type Clip struct {
	Name     string
	VideoURL string
	Duration float64
}

// Product describes a physical product for the composite variant.
type Product struct {
	Name        string
	Description string
	ImageURL    string
}

// Spec is one planned scene. Specs are immutable once built; generation
// produces a Realized from each one.
type Spec struct {
	Name              string
	Kind              Kind
	Prompt            string
	ImagePrompt       string
	ReferenceImageURL string
	ProductImageURL   string
	VideoURL          string
	TargetDuration    float64
	SubtitleText      string
	VoiceID           string
	Trim              TrimMode
	Seed              int64
}

// Realized is a Spec plus the local file its generation produced.
type Realized struct {
	Spec
	Path string
}

// Scene durations per length class. Speaking scenes always run the full
// generated clip; the app demo is trimmed to fit.
const (
	speakingDuration = 8
	demoShort        = 7
	demoLong         = 8
	compositeHalf    = 7.5

	// HardCap bounds the assembled video regardless of how long the
	// generated clips actually came back.
	HardCap = 35
)

const (
	LengthShort = "15s"
	LengthLong  = "30s"
)

// NormalizeLength maps an unrecognized length class to the shortest
// supported one.
func NormalizeLength(length string) string {
	if length == LengthLong {
		return LengthLong
	}
	return LengthShort
}

// TotalDuration sums the target durations of a plan.
func TotalDuration(specs []Spec) float64 {
	var total float64
	for _, s := range specs {
		total += s.TargetDuration
	}
	return total
}
