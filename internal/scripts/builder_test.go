package scripts

import (
	"strings"
	"testing"

	"runreel/internal/generation"
)

func testSubject() Subject {
	return Subject{
		Name:        "jordan reyes",
		Achievement: "a sub-4 marathon",
		Stats: []Stat{
			{Label: "distance", Value: "26.2 miles"},
			{Label: "time", Value: "3:58:41"},
		},
	}
}

func TestBuildTonesProduceDistinctScripts(t *testing.T) {
	seen := map[string]string{}
	for _, tone := range []string{"energetic", "calm", "professional"} {
		script, err := Build(testSubject(), generation.Customization{VoiceTone: tone})
		if err != nil {
			t.Fatalf("Build(%s): %v", tone, err)
		}
		if !strings.Contains(script, "Jordan Reyes") {
			t.Fatalf("tone %s should title-case the name: %q", tone, script)
		}
		for other, otherScript := range seen {
			if otherScript == script {
				t.Fatalf("tones %s and %s produced identical scripts", tone, other)
			}
		}
		seen[tone] = script
	}
}

func TestBuildUnknownToneFallsBack(t *testing.T) {
	fallback, err := Build(testSubject(), generation.Customization{VoiceTone: "growly"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	energetic, err := Build(testSubject(), generation.Customization{VoiceTone: "energetic"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if fallback != energetic {
		t.Fatalf("unknown tone should use the energetic template:\n%q\n%q", fallback, energetic)
	}
}

func TestBuildStatsAndBranding(t *testing.T) {
	bare, err := Build(testSubject(), generation.Customization{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Contains(bare, "26.2 miles") || strings.Contains(bare, "RunReel") {
		t.Fatalf("stats and branding should be opt-in: %q", bare)
	}

	full, err := Build(testSubject(), generation.Customization{IncludeStats: true, IncludeBranding: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(full, "Distance: 26.2 miles.") {
		t.Fatalf("stats missing: %q", full)
	}
	if !strings.Contains(full, "Keep moving with RunReel.") {
		t.Fatalf("branding missing: %q", full)
	}
}

func TestBuildValidatesSubject(t *testing.T) {
	if _, err := Build(Subject{Achievement: "something"}, generation.Customization{}); err == nil {
		t.Fatal("missing name should error")
	}
	if _, err := Build(Subject{Name: "sam"}, generation.Customization{}); err == nil {
		t.Fatal("missing achievement should error")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	custom := generation.Customization{VoiceTone: "calm", IncludeStats: true}
	first, err := Build(testSubject(), custom)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := Build(testSubject(), custom)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if first != second {
		t.Fatal("identical input should yield identical scripts")
	}
}
