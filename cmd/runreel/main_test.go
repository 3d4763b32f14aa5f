package main

import (
	"strings"
	"testing"

	"runreel/internal/generation"
)

func TestParseStatFlags(t *testing.T) {
	stats, err := parseStatFlags([]string{"distance=26.2 miles", "time=3:58:41"})
	if err != nil {
		t.Fatalf("parseStatFlags: %v", err)
	}
	if len(stats) != 2 || stats[0].Label != "distance" || stats[1].Value != "3:58:41" {
		t.Fatalf("stats = %+v", stats)
	}

	if _, err := parseStatFlags([]string{"no-separator"}); err == nil {
		t.Fatal("stat without = should error")
	}
	if _, err := parseStatFlags([]string{"=value"}); err == nil {
		t.Fatal("stat without a label should error")
	}
}

func TestResolveScriptPrecedence(t *testing.T) {
	got, err := resolveScript("explicit text", "", "sam", "a 5k", nil, generation.Customization{})
	if err != nil {
		t.Fatalf("resolveScript: %v", err)
	}
	if got != "explicit text" {
		t.Fatalf("explicit script should win, got %q", got)
	}

	built, err := resolveScript("", "", "sam", "a 5k personal best", nil, generation.Customization{})
	if err != nil {
		t.Fatalf("resolveScript via builder: %v", err)
	}
	if !strings.Contains(built, "Sam") {
		t.Fatalf("built script should mention the subject, got %q", built)
	}

	if _, err := resolveScript("", "", "", "", nil, generation.Customization{}); err == nil {
		t.Fatal("no script source should error")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate(short) = %q", got)
	}
	if got := truncate("a long value that keeps going", 10); got != "a long ..." {
		t.Fatalf("truncate = %q", got)
	}
}

func TestRenderTableIncludesHeadersAndRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1", "2"}, {"3"}}, nil)
	for _, want := range []string{"A", "B", "1", "2", "3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("no headers should render nothing")
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"generate", "jobs", "daemon", "config", "test-notify"} {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("root command missing subcommand %q", name)
		}
	}
}
