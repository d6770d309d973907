package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"slidegauge/internal/compiler"
)

type fakeTransport struct {
	exportOutcomes []error // consumed per ExportDocument call; empty = success
	routineErr     error
	writeDest      bool // write a non-empty dest on successful calls
	exportCalls    int
	routineCalls   int
}

func (f *fakeTransport) ExportDocument(_ context.Context, _, dest string) error {
	f.exportCalls++
	if len(f.exportOutcomes) > 0 {
		out := f.exportOutcomes[0]
		f.exportOutcomes = f.exportOutcomes[1:]
		if out != nil {
			return out
		}
	}
	if f.writeDest {
		return os.WriteFile(dest, []byte("%PDF-1.7"), 0o644)
	}
	return nil
}

func (f *fakeTransport) RunRoutine(_ context.Context, call RoutineCall) error {
	f.routineCalls++
	if f.routineErr != nil {
		return f.routineErr
	}
	if f.writeDest && call.ExportPath != "" {
		return os.WriteFile(call.ExportPath, []byte("%PDF-1.7"), 0o644)
	}
	return nil
}

func (f *fakeTransport) LineEnding() compiler.LineEnding { return compiler.LF }
func (f *fakeTransport) Close() error                    { return nil }

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
	return path
}

func TestExport_RetriesThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, filepath.Join(dir, "deck.pptx"))
	dest := filepath.Join(dir, "out", "deck.pdf")

	busy := errors.New("application busy")
	tr := &fakeTransport{exportOutcomes: []error{busy, busy, nil}, writeDest: true}
	d := NewDriver(tr, WithRetries(2), WithBackoff(0))

	res, err := d.Export(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	if tr.exportCalls != 3 {
		t.Errorf("transport calls = %d, want 3", tr.exportCalls)
	}
}

func TestExport_ExhaustionWrapsLastCause(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, filepath.Join(dir, "deck.pptx"))
	dest := filepath.Join(dir, "deck.pdf")

	busy := errors.New("application busy")
	tr := &fakeTransport{exportOutcomes: []error{busy, busy, busy}}
	d := NewDriver(tr, WithRetries(2), WithBackoff(0))

	_, err := d.Export(context.Background(), src, dest)
	var exportE *ExportError
	if !errors.As(err, &exportE) {
		t.Fatalf("want ExportError, got %v", err)
	}
	if exportE.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", exportE.Attempts)
	}
	if !errors.Is(err, busy) {
		t.Errorf("ExportError must carry the last underlying cause, got %v", err)
	}
}

func TestExport_MissingOutputIsIntegrityError(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, filepath.Join(dir, "deck.pptx"))
	dest := filepath.Join(dir, "deck.pdf")

	// Transport reports success on every call but never writes dest.
	tr := &fakeTransport{}
	d := NewDriver(tr, WithRetries(1), WithBackoff(0))

	_, err := d.Export(context.Background(), src, dest)
	var integrityE *IntegrityError
	if !errors.As(err, &integrityE) {
		t.Fatalf("want IntegrityError inside the export failure, got %v", err)
	}
}

func TestRunRoutine_NoRetry(t *testing.T) {
	dir := t.TempDir()
	host := touch(t, filepath.Join(dir, "host.pptm"))

	tr := &fakeTransport{routineErr: errors.New("macro blew up")}
	d := NewDriver(tr, WithBackoff(0))

	err := d.RunRoutine(context.Background(), RoutineCall{HostDocument: host, Routine: "Probe"})
	if err == nil {
		t.Fatal("want error")
	}
	if tr.routineCalls != 1 {
		t.Errorf("routine must not be retried, got %d calls", tr.routineCalls)
	}
}

func TestRunRoutine_VerifiesExpectedArtifact(t *testing.T) {
	dir := t.TempDir()
	host := touch(t, filepath.Join(dir, "host.pptm"))
	out := filepath.Join(dir, "out.pdf")

	tr := &fakeTransport{} // succeeds but writes nothing
	d := NewDriver(tr)

	err := d.RunRoutine(context.Background(), RoutineCall{HostDocument: host, Routine: "Probe", ExportPath: out})
	var integrityE *IntegrityError
	if !errors.As(err, &integrityE) {
		t.Fatalf("want IntegrityError for missing routine output, got %v", err)
	}

	// Zero-length output is just as bad as missing.
	if err := os.WriteFile(out, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	err = d.RunRoutine(context.Background(), RoutineCall{HostDocument: host, Routine: "Probe", ExportPath: out})
	if !errors.As(err, &integrityE) {
		t.Fatalf("want IntegrityError for empty routine output, got %v", err)
	}
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	err := Retry(context.Background(), 5, FixedBackoff(0), func(err error) bool { return !errors.Is(err, fatal) }, func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("want fatal, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error must stop immediately, got %d calls", calls)
	}
}

func TestLinearBackoff(t *testing.T) {
	b := LinearBackoff(10)
	if b(1) != 10 || b(3) != 30 {
		t.Errorf("LinearBackoff: got %v, %v", b(1), b(3))
	}
}
