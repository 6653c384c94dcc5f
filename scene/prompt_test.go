package scene

import (
	"strings"
	"testing"
)

func TestHookScriptDeterministic(t *testing.T) {
	hook := "This app planned my trip"
	if HookScript(hook) != HookScript(hook) {
		t.Error("identical hooks should produce identical scripts")
	}
	if !strings.Contains(HookScript(hook), hook) {
		t.Errorf("hook text should appear verbatim in script: %q", HookScript(hook))
	}
}

func TestReactionScript(t *testing.T) {
	travel := ReactionScript("Travel")
	if !strings.Contains(travel, "viaje") {
		t.Errorf("expected the travel reaction line, got %q", travel)
	}

	unknown := ReactionScript("Gardening")
	if !strings.Contains(unknown, defaultReaction) {
		t.Errorf("unknown category should use the default reaction, got %q", unknown)
	}
}

func TestCTAScript(t *testing.T) {
	tests := []struct {
		name    string
		caption string
		want    string
	}{
		{
			name:    "first sentence of caption",
			caption: "Get that glow. More text here.",
			want:    "Get that glow",
		},
		{
			name:    "empty caption uses default",
			caption: "",
			want:    "Descarga la app",
		},
		{
			name:    "over-long first sentence is truncated",
			caption: strings.Repeat("word ", 30),
			want:    strings.TrimSpace(strings.Repeat("word ", 20)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CTAScript(tt.caption)
			if !strings.Contains(got, tt.want) {
				t.Errorf("CTAScript(%q) = %q, want it to contain %q", tt.caption, got, tt.want)
			}
			if !strings.Contains(got, "bio") {
				t.Errorf("CTA should end with the bio push, got %q", got)
			}
		})
	}
}

func TestCTAScriptTruncatesAtCap(t *testing.T) {
	got := CTAScript(strings.Repeat("palabra ", 30))

	if !strings.Contains(got, "palabra") {
		t.Fatalf("truncated caption should still open the CTA, got %q", got)
	}
	if strings.Contains(got, strings.Repeat("palabra ", 13)) {
		t.Errorf("caption should be cut at the cap, got %q", got)
	}
}

func TestComposePerformancePrompt(t *testing.T) {
	persona := testPersona()
	script := "¡Madre mía! Check this out. ¡Es BRUTAL!"

	prompt := ComposePerformancePrompt("hook", persona, script, "Travel")

	for _, section := range []string{
		"## 1. Core Concept",
		"## 2. Visual Style",
		"## 3. Performance - Visual",
		"## 4. Performance - Vocal",
		"## 5. Script",
		"## 6. Technical Specifications",
	} {
		if !strings.Contains(prompt, section) {
			t.Errorf("prompt missing section %q", section)
		}
	}

	if !strings.Contains(prompt, script) {
		t.Error("literal script text missing from prompt")
	}
	if !strings.Contains(prompt, environments["Travel"]) {
		t.Error("category environment missing from prompt")
	}
	if !strings.Contains(prompt, persona.Name) {
		t.Error("persona name missing from prompt")
	}
	if !strings.Contains(prompt, "9:16") {
		t.Error("aspect ratio constraint missing from prompt")
	}
}

func TestComposePerformancePromptDefaults(t *testing.T) {
	prompt := ComposePerformancePrompt("hook", testPersona(), "", "Gardening")

	if !strings.Contains(prompt, defaultEnvironment) {
		t.Error("unknown category should fall back to the default environment")
	}
	if !strings.Contains(prompt, DefaultLine("Gardening")) {
		t.Error("empty script should substitute the category default line")
	}
}

func TestComposePerformancePromptBeatSchedules(t *testing.T) {
	persona := testPersona()

	hook := ComposePerformancePrompt("hook", persona, "script", "Travel")
	cta := ComposePerformancePrompt("cta", persona, "script", "Travel")

	if !strings.Contains(hook, "thumbs up") {
		t.Error("hook prompt should carry the hook gesture schedule")
	}
	if !strings.Contains(cta, "towards 'bio'") {
		t.Error("cta prompt should carry the cta gesture schedule")
	}
	if hook == cta {
		t.Error("different beats should produce different prompts")
	}
}

func TestComposeProductAnimationPromptGuardrails(t *testing.T) {
	persona := testPersona()

	for i := 0; i < 2; i++ {
		prompt := ComposeProductAnimationPrompt(i, persona)
		if !strings.Contains(prompt, "NEGATIVE PROMPT") {
			t.Errorf("scene %d: missing negative-prompt guardrails", i)
		}
		if !strings.Contains(prompt, "exactly two arms") {
			t.Errorf("scene %d: missing anatomical constraints", i)
		}
	}
}

func TestComposeCompositeImagePromptIdentity(t *testing.T) {
	product := Product{Name: "GlowUp", Description: "a hydrating face cream"}

	prompt := ComposeCompositeImagePrompt(0, testPersona(), product)

	if !strings.Contains(prompt, "exact same person from the reference image") {
		t.Error("missing identity-preservation constraint")
	}
	if !strings.Contains(prompt, product.Description) {
		t.Error("product description missing from prompt")
	}
}
