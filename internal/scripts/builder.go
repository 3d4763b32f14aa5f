// Package scripts builds narration text for achievement videos. Output feeds
// generation.Input.ScriptText; nothing here reaches the provider payload
// except through that field.
package scripts

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"runreel/internal/generation"
)

// Stat is a single labeled metric shown off in the narration.
type Stat struct {
	Label string
	Value string
}

// Subject is the achievement being narrated.
type Subject struct {
	Name        string
	Achievement string
	Stats       []Stat
}

// Build renders a deterministic narration script for the subject. Tone picks
// the sentence template, IncludeStats appends the metric lines, and
// IncludeBranding appends the sign-off. Unknown tones fall back to the
// energetic template.
func Build(subject Subject, custom generation.Customization) (string, error) {
	name := strings.TrimSpace(subject.Name)
	achievement := strings.TrimSpace(subject.Achievement)
	if name == "" {
		return "", fmt.Errorf("subject name is required")
	}
	if achievement == "" {
		return "", fmt.Errorf("achievement is required")
	}
	// Casers carry transform state, so build one per call.
	titleCaser := cases.Title(language.English)
	name = titleCaser.String(name)

	var b strings.Builder
	switch strings.ToLower(strings.TrimSpace(custom.VoiceTone)) {
	case "calm":
		fmt.Fprintf(&b, "%s, take a moment. %s. That happened because you showed up.", name, achievement)
	case "professional":
		fmt.Fprintf(&b, "%s has reached a new milestone: %s.", name, achievement)
	default:
		fmt.Fprintf(&b, "Huge news, %s! You just did it: %s!", name, achievement)
	}

	if custom.IncludeStats && len(subject.Stats) > 0 {
		b.WriteString(" The numbers tell the story.")
		for _, stat := range subject.Stats {
			label := strings.TrimSpace(stat.Label)
			value := strings.TrimSpace(stat.Value)
			if label == "" || value == "" {
				continue
			}
			fmt.Fprintf(&b, " %s: %s.", titleCaser.String(label), value)
		}
	}

	if custom.IncludeBranding {
		b.WriteString(" Keep moving with RunReel.")
	}
	return b.String(), nil
}
