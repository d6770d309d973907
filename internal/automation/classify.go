package automation

import "strings"

// DiagnosticKind tags the recognized failure signatures of the scripting
// transport's captured output.
type DiagnosticKind int

const (
	// DiagnosticOther is any failure without a recognized signature.
	DiagnosticOther DiagnosticKind = iota
	// DiagnosticParseError is an AppleScript syntax/parse failure (-2741).
	DiagnosticParseError
	// DiagnosticAuthDenied is the macOS Apple-events permission denial (-1743).
	DiagnosticAuthDenied
)

// ClassifyDiagnostic matches the known error-code substrings the automation
// surface embeds in free-text output. Best effort: osascript exposes no
// structured error channel, so this is the single place the heuristic lives.
func ClassifyDiagnostic(text string) DiagnosticKind {
	switch {
	case strings.Contains(text, "(-1743)"), strings.Contains(text, "Not authorized to send Apple events"):
		return DiagnosticAuthDenied
	case strings.Contains(text, "(-2741)"), strings.Contains(text, "Expected end of line"):
		return DiagnosticParseError
	default:
		return DiagnosticOther
	}
}
