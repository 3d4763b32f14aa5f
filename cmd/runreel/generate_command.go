package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"runreel/internal/generation"
	"runreel/internal/scripts"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		subjectID       string
		scriptText      string
		scriptFile      string
		subjectName     string
		achievement     string
		statFlags       []string
		tone            string
		format          string
		includeStats    bool
		includeBranding bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an achievement video and wait for the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			custom := generation.Customization{
				VoiceTone:       tone,
				IncludeStats:    includeStats,
				IncludeBranding: includeBranding,
			}
			text, err := resolveScript(scriptText, scriptFile, subjectName, achievement, statFlags, custom)
			if err != nil {
				return err
			}
			input := generation.Input{
				SubjectID:     strings.TrimSpace(subjectID),
				ScriptText:    text,
				Customization: custom,
			}
			if format != "" {
				parsed, ok := generation.ParseOutputFormat(format)
				if !ok {
					return fmt.Errorf("unknown output format %q", format)
				}
				input.OutputFormat = parsed
			}
			if err := input.Validate(); err != nil {
				return err
			}

			orch, store, err := ctx.buildOrchestrator()
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			progressDone := make(chan struct{})
			go renderProgress(runCtx, cmd, orch, progressDone)

			result, genErr := orch.Generate(runCtx, input)
			close(progressDone)

			snap := orch.Snapshot()
			if genErr != nil {
				if snap.ProgressMessage != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), snap.ProgressMessage)
				}
				return genErr
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Field", "Value"},
				[][]string{
					{"Job", result.JobID},
					{"Video", result.VideoURL},
					{"Thumbnail", result.ThumbnailURL},
					{"Elapsed", fmt.Sprintf("%ds", snap.ElapsedSeconds)},
				},
				nil,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&subjectID, "subject", "", "Subject identifier the video belongs to")
	cmd.Flags().StringVar(&scriptText, "script", "", "Narration script text")
	cmd.Flags().StringVar(&scriptFile, "script-file", "", "Read the narration script from a file")
	cmd.Flags().StringVar(&subjectName, "name", "", "Subject display name for the built-in script builder")
	cmd.Flags().StringVar(&achievement, "achievement", "", "Achievement sentence for the built-in script builder")
	cmd.Flags().StringArrayVar(&statFlags, "stat", nil, "Stat to narrate as label=value, repeatable")
	cmd.Flags().StringVar(&tone, "tone", "", "Voice tone: energetic, calm, or professional")
	cmd.Flags().StringVar(&format, "format", "", "Output format: square, vertical, or horizontal")
	cmd.Flags().BoolVar(&includeStats, "include-stats", false, "Include stats in a built script")
	cmd.Flags().BoolVar(&includeBranding, "include-branding", false, "Include the branded sign-off in a built script")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

// resolveScript picks the narration source: explicit text wins, then a file,
// then the script builder fed by --name/--achievement/--stat.
func resolveScript(text, file, name, achievement string, statFlags []string, custom generation.Customization) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}
	if strings.TrimSpace(file) != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read script file: %w", err)
		}
		return string(data), nil
	}
	if strings.TrimSpace(name) == "" && strings.TrimSpace(achievement) == "" {
		return "", fmt.Errorf("provide --script, --script-file, or --name with --achievement")
	}

	stats, err := parseStatFlags(statFlags)
	if err != nil {
		return "", err
	}
	return scripts.Build(scripts.Subject{
		Name:        name,
		Achievement: achievement,
		Stats:       stats,
	}, custom)
}

func parseStatFlags(flags []string) ([]scripts.Stat, error) {
	stats := make([]scripts.Stat, 0, len(flags))
	for _, raw := range flags {
		label, value, found := strings.Cut(raw, "=")
		if !found || strings.TrimSpace(label) == "" || strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("invalid --stat %q, expected label=value", raw)
		}
		stats = append(stats, scripts.Stat{Label: label, Value: value})
	}
	return stats, nil
}

// renderProgress prints progress updates while a generation runs. On a
// terminal the current line is rewritten in place; otherwise each distinct
// message is printed once.
func renderProgress(ctx context.Context, cmd *cobra.Command, orch *generation.Orchestrator, done <-chan struct{}) {
	interactive := stdoutIsTerminal()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastLine string
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			if interactive && lastLine != "" {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return
		case <-ticker.C:
			snap := orch.Snapshot()
			if !snap.State.IsActive() || snap.ProgressMessage == "" {
				continue
			}
			line := fmt.Sprintf("%3d%%  %s", snap.ProgressPercent, snap.ProgressMessage)
			if snap.EstimatedRemainingSeconds > 0 {
				line += fmt.Sprintf(" (~%ds left)", snap.EstimatedRemainingSeconds)
			}
			if line == lastLine {
				continue
			}
			if interactive {
				fmt.Fprintf(cmd.OutOrStdout(), "\r\033[K%s", line)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			lastLine = line
		}
	}
}
