package automation

import "fmt"

// ExportError is raised when an export fails after exhausting retries. It
// carries the last underlying cause.
type ExportError struct {
	Document string
	Dest     string
	Attempts int
	Err      error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("automation: export %s -> %s failed after %d attempt(s): %v", e.Document, e.Dest, e.Attempts, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// IntegrityError is raised when the application reports success but the
// expected artifact is missing or zero-length. Never silently ignored.
type IntegrityError struct {
	Path string
	Op   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("automation: %s reported success but output missing/empty: %s", e.Op, e.Path)
}

// AuthorizationError is raised when the OS blocked the automation request.
// It is never retried and carries user-actionable remediation guidance.
type AuthorizationError struct {
	Err error
}

func (e *AuthorizationError) Error() string {
	return "automation: blocked by macOS (-1743). Enable permission in " +
		"System Settings > Privacy & Security > Automation, allow your " +
		"terminal app to control Microsoft PowerPoint, then rerun.\n" +
		fmt.Sprintf("Underlying error: %v", e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// RunError is a failed subprocess invocation with its captured streams.
// Classification reads the combined text, so both streams are preserved.
type RunError struct {
	Cmd    string
	Stdout string
	Stderr string
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s: %v", e.Cmd, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// DiagnosticText flattens an error into the text scanned by
// ClassifyDiagnostic: the error string plus any captured streams.
func DiagnosticText(err error) string {
	if err == nil {
		return ""
	}
	if re, ok := err.(*RunError); ok {
		return re.Error() + "\n" + re.Stderr + "\n" + re.Stdout
	}
	return err.Error()
}
