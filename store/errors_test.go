package store

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCleanFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "elevenlabs quota",
			err:  fmt.Errorf("voiceover synthesis: ElevenLabs API error (HTTP 402): quota exceeded"),
			want: "ElevenLabs Payment Required (quota reached)",
		},
		{
			name: "missing reference image",
			err:  errors.New("API error: image_url is required"),
			want: "Kie.ai: Missing image URL for influencer",
		},
		{
			name: "unreachable audio case insensitive",
			err:  errors.New("generation failed: Audio File Is Unavailable"),
			want: "Audio file not reachable by AI service",
		},
		{
			name: "plain error passes through",
			err:  errors.New("concat: FFmpeg execution failed"),
			want: "concat: FFmpeg execution failed",
		},
		{
			name: "nil",
			err:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanFailure(tt.err); got != tt.want {
				t.Errorf("CleanFailure() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanFailureTruncatesLongErrors(t *testing.T) {
	err := errors.New(strings.Repeat("x", 900))
	got := CleanFailure(err)
	if len(got) != maxFailureLen {
		t.Errorf("len = %d, want %d", len(got), maxFailureLen)
	}
}
