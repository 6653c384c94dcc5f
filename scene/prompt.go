package scene

import (
	"fmt"
	"strings"
)

// Category-specific filming environments for speaking scenes.
var environments = map[string]string{
	"Travel":  "cozy bedroom with a bookshelf and a travel map on the wall",
	"Shop":    "modern living room with a shopping bag and clothes visible in the background",
	"Fitness": "bright home gym setting with a yoga mat and weights",
}

const defaultEnvironment = "cozy, lived-in apartment"

var hookInterjections = []string{
	"¡Eh, ESCUCHA!",
	"¡Tío, PARA TODO!",
	"¡No te lo vas a creer!",
	"¡Madre mía!",
}

var reactions = map[string]string{
	"Travel":  "¡Me ha organizado TODO el viaje en SEGUNDOS! O sea, vuelos... hoteles... ¡brutal!",
	"Shop":    "¡Me ha encontrado unos precios que son una LOCURA! De verdad, flipante.",
	"Fitness": "¡El plan es INCREÍBLE! Se adapta a lo que necesito, en plan, perfecto.",
}

const defaultReaction = "¡Esta app es una PASADA! De verdad, me encanta."

var defaultLines = map[string]string{
	"Travel":  "This app just planned my entire trip in seconds!",
	"Shop":    "This app finds deals I never knew existed!",
	"Fitness": "This app built my perfect workout plan!",
}

const ctaCaptionCap = 100

// DefaultLine returns a category-appropriate script line for requests
// that arrive with no hook text.
func DefaultLine(category string) string {
	if line, ok := defaultLines[category]; ok {
		return line
	}
	return "Check this out!"
}

// HookScript builds the spoken hook line: a deterministic colloquial
// interjection, the hook text verbatim, and a closing push. The
// interjection is picked by hashing the hook so identical requests always
// produce identical scripts.
func HookScript(hook string) string {
	var sum int
	for _, r := range hook {
		sum += int(r)
	}
	interjection := hookInterjections[sum%len(hookInterjections)]
	return fmt.Sprintf("%s %s. ¡Es BRUTAL! Tienes que probarla.", interjection, hook)
}

// ReactionScript returns the category-specific reaction line.
func ReactionScript(category string) string {
	reaction, ok := reactions[category]
	if !ok {
		reaction = defaultReaction
	}
	return fmt.Sprintf("¡O sea, FLIPANTE! %s De verdad, me ha cambiado la vida.", reaction)
}

// CTAScript derives the call-to-action line from the first sentence of the
// request caption, truncated to the length cap.
func CTAScript(caption string) string {
	base := "Descarga la app"
	if caption != "" {
		first := strings.TrimSpace(strings.SplitN(caption, ".", 2)[0])
		if runes := []rune(first); len(runes) > ctaCaptionCap {
			first = strings.TrimSpace(string(runes[:ctaCaptionCap]))
		}
		if first != "" {
			base = first
		}
	}
	return fmt.Sprintf("En serio, no te lo pienses. %s. ¡Descárgala YA, el link está en mi bio!", base)
}

// performanceBeat holds the time-coded expression and gesture schedule
// for one narrative beat of a speaking scene.
type performanceBeat struct {
	expressions string
	gestures    string
}

var beats = map[string]performanceBeat{
	"hook": {
		expressions: "- [0-2s]: Opens with wide eyes and raised eyebrows in disbelief.\n- [2-5s]: Transitions to a huge, genuine smile showing teeth.\n- [5-8s]: Confident nod and knowing smirk.",
		gestures:    "- [1s]: Places hand on chest in disbelief.\n- [4s]: Points directly at the viewer.\n- [7s]: Gives an enthusiastic thumbs up.",
	},
	"reaction": {
		expressions: "- [0-3s]: Look of total amazement, shaking head slightly.\n- [3-6s]: Huge crinkly-eyed smile of joy.\n- [6-8s]: Genuine, warm eye contact.",
		gestures:    "- [2s]: Hand to cheek in amazement.\n- [5s]: Both hands palms up in a 'can you believe it?' gesture.",
	},
	"cta": {
		expressions: "- [0-3s]: Warm, encouraging smile.\n- [3-6s]: Direct, friendly eye contact with a wink.\n- [6-8s]: Enthusiastic final nod.",
		gestures:    "- [2s]: Points to the side (towards 'bio').\n- [5s]: Friendly wave or heart gesture.",
	},
}

// ComposePerformancePrompt renders the structured instruction block for a
// speaking scene: concept, visual style, time-coded performance, vocal
// delivery, the literal script, and technical constraints.
func ComposePerformancePrompt(sceneName string, persona Persona, script, category string) string {
	if script == "" {
		script = DefaultLine(category)
	}

	env, ok := environments[category]
	if !ok {
		env = defaultEnvironment
	}

	beat, ok := beats[sceneName]
	if !ok {
		beat = beats["hook"]
	}

	possessive := "Her"
	if persona.Gender == "Male" {
		possessive = "His"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## 1. Core Concept\n")
	fmt.Fprintf(&sb, "An authentic, high-energy, handheld smartphone selfie video. %s, a %s %s with %s, is excitedly sharing an amazing discovery.\n\n",
		persona.Name, persona.Age, strings.ToLower(persona.Gender), persona.VisualDescription)
	fmt.Fprintf(&sb, "## 2. Visual Style\n")
	fmt.Fprintf(&sb, "- **Camera**: Close-up shot, arm's length, slight arm movement and natural handheld shake.\n")
	fmt.Fprintf(&sb, "- **Lighting**: Bright natural light from a window, creating a sparkle in %s eyes.\n", strings.ToLower(possessive))
	fmt.Fprintf(&sb, "- **Environment**: %s. Slightly blurry background.\n", env)
	fmt.Fprintf(&sb, "- **Aesthetic**: Raw, genuine TikTok/Reels style. Spontaneous, not polished.\n\n")
	fmt.Fprintf(&sb, "## 3. Performance - Visual\n")
	fmt.Fprintf(&sb, "- **Eye Contact**: CRITICAL: %s MUST maintain direct eye contact with the lens throughout.\n", persona.Name)
	fmt.Fprintf(&sb, "**Expressions**:\n%s\n", beat.expressions)
	fmt.Fprintf(&sb, "- **Body**: Leans INTO the camera for emphasis. Highly animated.\n")
	fmt.Fprintf(&sb, "**Gestures**:\n%s\n\n", beat.gestures)
	fmt.Fprintf(&sb, "## 4. Performance - Vocal\n")
	fmt.Fprintf(&sb, "- **Language**: Natural, colloquial %s (informal 'tú').\n", persona.Accent)
	fmt.Fprintf(&sb, "- **Tone**: EXCITED and AMAZED. Rising pitch on capitalized words.\n")
	fmt.Fprintf(&sb, "- **Pacing**: Fast start, dramatic micro-pauses, punchy ending.\n")
	fmt.Fprintf(&sb, "- **Colloquialisms**: 'o sea', 'brutal', 'flipante', 'uff', 'serio'.\n\n")
	fmt.Fprintf(&sb, "## 5. Script\n\"%s\"\n\n", script)
	fmt.Fprintf(&sb, "## 6. Technical Specifications\n")
	fmt.Fprintf(&sb, "Vertical 9:16, handheld (fixed_lens: false), audio enabled.")
	return sb.String()
}

// ComposeCompositeImagePrompt renders the image-composition instruction
// for one of the two product scenes, with explicit identity-preservation
// constraints against the persona's reference image.
func ComposeCompositeImagePrompt(sceneIndex int, persona Persona, product Product) string {
	actions := []string{
		"holding the product up close to the camera with an excited expression",
		"demonstrating the product's texture on her hand",
	}
	action := actions[sceneIndex%len(actions)]

	desc := product.Description
	if desc == "" {
		desc = product.Name
	}
	if desc == "" {
		desc = "the product"
	}

	return fmt.Sprintf(
		"A realistic, high-quality UGC-style photo using the exact person from the reference image. "+
			"The person is %s. "+
			"They are holding a %s. "+
			"The style is a natural, authentic selfie shot in a well-lit, casual environment. "+
			"The influencer is looking directly at the camera with a positive, %s expression. "+
			"IMPORTANT: Use the exact same person from the reference image, maintaining their facial features, skin tone, and appearance. Do not change the person.",
		action, desc, strings.ToLower(persona.Energy))
}

// ComposeProductAnimationPrompt renders the video-animation instruction
// paired with a composite image, including negative-prompt guardrails
// against anatomical and duplication artifacts.
func ComposeProductAnimationPrompt(sceneIndex int, persona Persona) string {
	if sceneIndex == 0 {
		return fmt.Sprintf(
			"A realistic, high-quality, authentic UGC video selfie of a %s %s %s influencer. "+
				"Upper body shot from chest up, filmed in a well-lit, casual home environment. "+
				"The influencer is holding exactly one product at chest level between their face and the camera. "+
				"The product label is facing the camera and clearly visible. "+
				"The shot shows exactly two arms and exactly two hands. "+
				"Both hands are anatomically correct with five fingers each. "+
				"There is exactly one product in the scene. "+
				"The product does not float, duplicate, merge, or change position unnaturally. "+
				"All objects obey gravity. No objects are floating in mid-air. "+
				"The influencer is looking directly at the camera with a positive, %s expression. "+
				"Natural, authentic UGC-style movements. Professional quality with realistic human proportions. "+
				"NEGATIVE PROMPT: extra limbs, extra hands, extra fingers, third hand, deformed hands, mutated hands, "+
				"anatomical errors, multiple arms, distorted body, unnatural proportions, floating objects, objects in mid-air, "+
				"duplicate products, extra products, merged objects, product duplication, disembodied hands, "+
				"blurry, low quality, unrealistic, artificial, CGI-looking, unnatural movements.",
			persona.Age, persona.VisualDescription, strings.ToLower(persona.Gender), strings.ToLower(persona.Energy))
	}

	return fmt.Sprintf(
		"A realistic, high-quality, cinematic video of a %s %s %s influencer named %s. "+
			"The scene shows the upper body from the chest up, demonstrating the product's texture on their hand. "+
			"The shot must be anatomically correct with exactly two arms and two hands visible. "+
			"The style is a natural, authentic, UGC-style shot in a well-lit, casual environment. "+
			"The influencer is looking directly at the camera with a positive, %s expression. "+
			"Ensure the product is clearly visible and held naturally. High-fidelity, professional quality with realistic human proportions. "+
			"NEGATIVE PROMPT: extra limbs, extra hands, extra fingers, deformed hands, mutated hands, anatomical errors, "+
			"multiple arms, distorted body, unnatural proportions, blurry, low quality.",
		persona.Age, persona.VisualDescription, strings.ToLower(persona.Gender), persona.Name, strings.ToLower(persona.Energy))
}
