package automation

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"slidegauge/internal/compiler"
)

//go:embed scripts/*.applescript
var scriptFS embed.FS

// Pre-authored AppleScript entry points. Invoking files (rather than inline
// -e bodies) keeps the osascript invocation identical across runs, which is
// what macOS keys its automation permission grants on.
const (
	scriptRunRoutineExport = "run_macro_export.applescript"
	scriptRunRoutineOnly   = "run_macro_only.applescript"
	scriptExportDocument   = "export_pptx_to_pdf.applescript"
)

// Runner executes a subprocess. Failures must be *RunError so the captured
// streams stay available for diagnostic classification. Injectable for tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec, capturing both streams.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &RunError{Cmd: name, Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
	}
	return nil
}

// ScriptTransport drives PowerPoint on macOS through osascript.
type ScriptTransport struct {
	scriptDir string
	runner    Runner
}

// NewScriptTransport materializes the pre-authored scripts into scriptDir
// and returns the transport. runner may be nil to use ExecRunner.
func NewScriptTransport(scriptDir string, runner Runner) (*ScriptTransport, error) {
	if runner == nil {
		runner = ExecRunner{}
	}
	if err := materializeScripts(scriptDir); err != nil {
		return nil, err
	}
	return &ScriptTransport{scriptDir: scriptDir, runner: runner}, nil
}

func materializeScripts(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("automation: create script dir: %w", err)
	}
	return fs.WalkDir(scriptFS, "scripts", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := scriptFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("automation: read embedded script: %w", err)
		}
		dest := filepath.Join(dir, filepath.Base(path))
		if existing, err := os.ReadFile(dest); err == nil && bytes.Equal(existing, data) {
			return nil
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("automation: write script %q: %w", dest, err)
		}
		return nil
	})
}

// LineEnding: AppleScript reads the spec with LF fine.
func (t *ScriptTransport) LineEnding() compiler.LineEnding { return compiler.LF }

// Close is a no-op; each osascript invocation is its own process.
func (t *ScriptTransport) Close() error { return nil }

func (t *ScriptTransport) ExportDocument(ctx context.Context, document, dest string) error {
	script := filepath.Join(t.scriptDir, scriptExportDocument)
	err := t.runner.Run(ctx, "osascript", script, document, dest)
	if err != nil && ClassifyDiagnostic(DiagnosticText(err)) == DiagnosticAuthDenied {
		return &AuthorizationError{Err: err}
	}
	return err
}

// RunRoutine invokes the pre-authored script first. A recognized parse
// failure triggers exactly one fallback through the inline-templated form;
// a recognized authorization denial, wherever it appears, surfaces as
// AuthorizationError instead of the raw failure.
func (t *ScriptTransport) RunRoutine(ctx context.Context, call RoutineCall) error {
	var primary []string
	if call.ExportAfter && call.ExportPath != "" {
		script := filepath.Join(t.scriptDir, scriptRunRoutineExport)
		primary = append([]string{script, call.HostDocument, call.Routine}, call.Params...)
		primary = append(primary, call.ExportPath)
	} else {
		script := filepath.Join(t.scriptDir, scriptRunRoutineOnly)
		primary = append([]string{script, call.HostDocument, call.Routine}, call.Params...)
	}
	fallback := inlineRoutineArgs(call)
	return t.runWithParseFallback(ctx, primary, fallback)
}

func (t *ScriptTransport) runWithParseFallback(ctx context.Context, primary, fallback []string) error {
	err := t.runner.Run(ctx, "osascript", primary...)
	if err == nil {
		return nil
	}
	switch ClassifyDiagnostic(DiagnosticText(err)) {
	case DiagnosticParseError:
		fbErr := t.runner.Run(ctx, "osascript", fallback...)
		if fbErr == nil {
			return nil
		}
		if ClassifyDiagnostic(DiagnosticText(fbErr)) == DiagnosticAuthDenied {
			return &AuthorizationError{Err: fbErr}
		}
		return fbErr
	case DiagnosticAuthDenied:
		return &AuthorizationError{Err: err}
	default:
		return err
	}
}

// inlineRoutineArgs templates the routine call into -e script lines with
// literal-escaped parameters. Used only as the parse-error fallback.
func inlineRoutineArgs(call RoutineCall) []string {
	literals := make([]string, 0, len(call.Params))
	for _, p := range call.Params {
		literals = append(literals, appleScriptLiteral(p))
	}

	lines := []string{
		"set inPptmPath to " + appleScriptLiteral(call.HostDocument),
		"set macroName to " + appleScriptLiteral(call.Routine),
		"set macroParams to {" + strings.Join(literals, ", ") + "}",
	}
	exporting := call.ExportAfter && call.ExportPath != ""
	if exporting {
		lines = append(lines, "set outPdfPath to "+appleScriptLiteral(call.ExportPath))
	}
	lines = append(lines,
		`tell application "Microsoft PowerPoint"`,
		"set inPptm to POSIX file inPptmPath",
		"open inPptm",
		"run VB macro macro name macroName list of parameters macroParams",
	)
	if exporting {
		lines = append(lines,
			"set outPdf to POSIX file outPdfPath",
			"save active presentation in outPdf as save as PDF",
		)
	}
	lines = append(lines,
		"close active presentation saving no",
		"end tell",
	)

	args := make([]string, 0, 2*len(lines))
	for _, line := range lines {
		args = append(args, "-e", line)
	}
	return args
}

func appleScriptLiteral(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}
