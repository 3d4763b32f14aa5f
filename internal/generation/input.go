package generation

import (
	"errors"
	"strings"
)

// OutputFormat selects the aspect ratio the UI wants to share.
type OutputFormat string

const (
	FormatSquare     OutputFormat = "square"
	FormatVertical   OutputFormat = "vertical"
	FormatHorizontal OutputFormat = "horizontal"
)

// ParseOutputFormat converts a string into a known OutputFormat.
func ParseOutputFormat(value string) (OutputFormat, bool) {
	normalized := OutputFormat(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case FormatSquare, FormatVertical, FormatHorizontal:
		return normalized, true
	}
	return "", false
}

// Customization carries presentation options. These drive local script and
// template selection only; the provider rejects unrecognized fields, so none
// of them ever reach the wire payload.
type Customization struct {
	VoiceTone       string
	BackgroundTheme string
	MusicMood       string
	IncludeStats    bool
	IncludeBranding bool
}

// Input describes one generation attempt. Immutable once passed to Generate.
type Input struct {
	SubjectID     string
	ScriptText    string
	OutputFormat  OutputFormat
	Customization Customization
}

func (i Input) normalized() Input {
	i.SubjectID = strings.TrimSpace(i.SubjectID)
	i.ScriptText = strings.TrimSpace(i.ScriptText)
	if i.OutputFormat == "" {
		i.OutputFormat = FormatVertical
	}
	return i
}

// Validate checks the input is complete enough to submit.
func (i Input) Validate() error {
	n := i.normalized()
	if n.SubjectID == "" {
		return errors.New("subject id is required")
	}
	if n.ScriptText == "" {
		return errors.New("script text is required")
	}
	if _, ok := ParseOutputFormat(string(n.OutputFormat)); !ok {
		return errors.New("unknown output format " + string(i.OutputFormat))
	}
	return nil
}
