// Package automation drives the reference authoring application
// (Microsoft PowerPoint) through one of two platform transports, with the
// retry and fallback semantics its failure modes require.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"slidegauge/internal/compiler"
	"slidegauge/internal/logging"
)

// RoutineCall describes one invocation of a named VBA routine inside a
// macro-enabled host document.
type RoutineCall struct {
	HostDocument string
	Routine      string
	Params       []string // positional string parameters
	ExportPath   string   // expected output artifact; "" = none expected
	ExportAfter  bool     // export the active document after the routine
}

// Transport is the platform automation surface. Implementations: the
// osascript transport on macOS and the persistent COM transport on Windows.
// Callers depend only on this interface; the concrete transport is chosen
// once at construction.
type Transport interface {
	RunRoutine(ctx context.Context, call RoutineCall) error
	ExportDocument(ctx context.Context, document, dest string) error
	LineEnding() compiler.LineEnding
	// Close releases any session the transport holds. The persistent COM
	// transport quits its application instance here; the script transport
	// holds nothing.
	Close() error
}

// ExportResult reports a successful export and how many attempts it took.
type ExportResult struct {
	Dest     string
	Attempts int
}

// Driver wraps a Transport with retry, integrity checking and logging.
type Driver struct {
	transport Transport
	retries   int
	backoff   time.Duration
	log       *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithRetries sets how many times Export retries after the first failure.
func WithRetries(n int) Option { return func(d *Driver) { d.retries = n } }

// WithBackoff sets the fixed sleep between export attempts.
func WithBackoff(b time.Duration) Option { return func(d *Driver) { d.backoff = b } }

// NewDriver returns a driver over t. Defaults: 2 retries, 1s backoff.
func NewDriver(t Transport, opts ...Option) *Driver {
	d := &Driver{
		transport: t,
		retries:   2,
		backoff:   time.Second,
		log:       logging.New("automation"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// LineEnding reports the script terminator the transport's consumer expects.
func (d *Driver) LineEnding() compiler.LineEnding { return d.transport.LineEnding() }

// Export exports document to dest, retrying transient failures with fixed
// backoff. A reported success with a missing or empty dest is an
// IntegrityError; it counts as a failed attempt like any other. After
// exhausting retries the last cause is surfaced inside an ExportError.
func (d *Driver) Export(ctx context.Context, document, dest string) (*ExportResult, error) {
	if _, err := os.Stat(document); err != nil {
		return nil, fmt.Errorf("automation: source document not found: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("automation: create export dir: %w", err)
	}

	attempts := 0
	err := Retry(ctx, d.retries+1, FixedBackoff(d.backoff), nil, func() error {
		attempts++
		if err := d.transport.ExportDocument(ctx, document, dest); err != nil {
			d.log.Warn("export attempt failed", "attempt", attempts, "error", err)
			return err
		}
		return checkArtifact(dest, "export")
	})
	if err != nil {
		return nil, &ExportError{Document: document, Dest: dest, Attempts: attempts, Err: err}
	}
	return &ExportResult{Dest: dest, Attempts: attempts}, nil
}

// RunRoutine opens the macro-enabled host, runs the routine and verifies the
// expected output artifact. Routine failures are never retried; the script
// transport applies its own single parse-error fallback underneath.
func (d *Driver) RunRoutine(ctx context.Context, call RoutineCall) error {
	if _, err := os.Stat(call.HostDocument); err != nil {
		return fmt.Errorf("automation: macro host not found: %w", err)
	}
	if call.ExportPath != "" {
		if err := os.MkdirAll(filepath.Dir(call.ExportPath), 0o755); err != nil {
			return fmt.Errorf("automation: create output dir: %w", err)
		}
	}

	d.log.Debug("run routine", "host", call.HostDocument, "routine", call.Routine, "params", len(call.Params))
	if err := d.transport.RunRoutine(ctx, call); err != nil {
		return err
	}

	if call.ExportPath != "" {
		return checkArtifact(call.ExportPath, "routine "+call.Routine)
	}
	return nil
}

func checkArtifact(path, op string) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return &IntegrityError{Path: path, Op: op}
	}
	return nil
}
