package store

import "strings"

const maxFailureLen = 500

// CleanFailure maps a pipeline error to the operator-facing message stored on
// the job row. Known upstream failures get a readable summary; everything
// else is truncated raw. The full wrapped chain still goes to the log.
func CleanFailure(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	switch {
	case strings.Contains(s, "402"):
		return "ElevenLabs Payment Required (quota reached)"
	case strings.Contains(s, "image_url is required"):
		return "Kie.ai: Missing image URL for influencer"
	case strings.Contains(strings.ToLower(s), "audio file is unavailable"):
		return "Audio file not reachable by AI service"
	}
	if len(s) > maxFailureLen {
		return s[:maxFailureLen]
	}
	return s
}
