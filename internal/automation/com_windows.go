//go:build windows

package automation

import (
	"context"
	"fmt"
	"path/filepath"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"slidegauge/internal/compiler"
)

const (
	ppSaveAsPDF              = 32
	msoAutomationSecurityLow = 1
)

// COMTransport keeps a single PowerPoint COM instance alive across a batch.
// Documents are opened and closed inside that instance; Close tears the
// instance and the COM runtime down.
type COMTransport struct {
	app *ole.IDispatch
}

// NewCOMTransport initializes COM and launches an invisible,
// alert-suppressed PowerPoint instance with automation security lowered so
// the probe macro is allowed to run.
func NewCOMTransport() (*COMTransport, error) {
	if err := ole.CoInitialize(0); err != nil {
		// S_FALSE (1): COM already initialized on this thread. Fine.
		if oleErr, ok := err.(*ole.OleError); !ok || oleErr.Code() != 1 {
			return nil, fmt.Errorf("automation: CoInitialize: %w", err)
		}
	}
	unknown, err := oleutil.CreateObject("PowerPoint.Application")
	if err != nil {
		ole.CoUninitialize()
		return nil, fmt.Errorf("automation: launch PowerPoint: %w", err)
	}
	app, err := unknown.QueryInterface(ole.IID_IDispatch)
	unknown.Release()
	if err != nil {
		ole.CoUninitialize()
		return nil, fmt.Errorf("automation: query IDispatch: %w", err)
	}

	for _, p := range []struct {
		name  string
		value any
	}{
		{"Visible", false},
		{"DisplayAlerts", false},
		{"AutomationSecurity", msoAutomationSecurityLow},
	} {
		if _, err := oleutil.PutProperty(app, p.name, p.value); err != nil {
			quitAndRelease(app)
			ole.CoUninitialize()
			return nil, fmt.Errorf("automation: set %s: %w", p.name, err)
		}
	}
	return &COMTransport{app: app}, nil
}

// Close quits the application instance, releases the reference and tears
// down the COM runtime. Safe to call more than once.
func (t *COMTransport) Close() error {
	if t.app != nil {
		quitAndRelease(t.app)
		t.app = nil
		ole.CoUninitialize()
	}
	return nil
}

func quitAndRelease(app *ole.IDispatch) {
	_, _ = oleutil.CallMethod(app, "Quit")
	app.Release()
}

// LineEnding: the VBA Line Input consumer on Windows requires CRLF.
func (t *COMTransport) LineEnding() compiler.LineEnding { return compiler.CRLF }

func (t *COMTransport) ExportDocument(_ context.Context, document, dest string) error {
	pres, err := t.open(document)
	if err != nil {
		return err
	}
	defer closePresentation(pres)

	absOut, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("automation: resolve export path: %w", err)
	}
	if _, err := oleutil.CallMethod(pres, "SaveAs", absOut, ppSaveAsPDF); err != nil {
		return fmt.Errorf("automation: SaveAs PDF: %w", err)
	}
	return nil
}

// RunRoutine opens the host inside the persistent instance, runs the
// routine qualified by document name, optionally exports, and always
// attempts to close the document without saving. A close failure is
// swallowed so it cannot mask the routine's own error.
func (t *COMTransport) RunRoutine(_ context.Context, call RoutineCall) error {
	pres, err := t.open(call.HostDocument)
	if err != nil {
		return err
	}
	defer closePresentation(pres)

	nameV, err := oleutil.GetProperty(pres, "Name")
	if err != nil {
		return fmt.Errorf("automation: read presentation name: %w", err)
	}
	routineRef := nameV.ToString() + "!" + call.Routine

	args := make([]any, 0, len(call.Params)+1)
	args = append(args, routineRef)
	for _, p := range call.Params {
		args = append(args, p)
	}
	if _, err := oleutil.CallMethod(t.app, "Run", args...); err != nil {
		return fmt.Errorf("automation: run %s: %w", routineRef, err)
	}

	if call.ExportAfter && call.ExportPath != "" {
		absOut, err := filepath.Abs(call.ExportPath)
		if err != nil {
			return fmt.Errorf("automation: resolve export path: %w", err)
		}
		if _, err := oleutil.CallMethod(pres, "SaveAs", absOut, ppSaveAsPDF); err != nil {
			return fmt.Errorf("automation: SaveAs PDF: %w", err)
		}
	}
	return nil
}

func (t *COMTransport) open(document string) (*ole.IDispatch, error) {
	abs, err := filepath.Abs(document)
	if err != nil {
		return nil, fmt.Errorf("automation: resolve document path: %w", err)
	}
	presentationsV, err := oleutil.GetProperty(t.app, "Presentations")
	if err != nil {
		return nil, fmt.Errorf("automation: Presentations: %w", err)
	}
	presentations := presentationsV.ToIDispatch()
	defer presentations.Release()

	// Open(FileName, ReadOnly, Untitled, WithWindow)
	presV, err := oleutil.CallMethod(presentations, "Open", abs, false, false, false)
	if err != nil {
		return nil, fmt.Errorf("automation: open %s: %w", abs, err)
	}
	return presV.ToIDispatch(), nil
}

func closePresentation(pres *ole.IDispatch) {
	_, _ = oleutil.CallMethod(pres, "Close")
	pres.Release()
}

func newPlatformTransport(scriptDir string, runner Runner) (Transport, error) {
	return NewCOMTransport()
}
