// Package generate composes the case compiler and the automation driver
// across a directory of cases, with artifact reuse and resilient
// batch-failure collection.
package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"slidegauge/internal/automation"
	"slidegauge/internal/caseir"
	"slidegauge/internal/compiler"
	"slidegauge/internal/logging"
)

// RoutineName is the VBA entry point that reads a spec file and builds the
// probe deck.
const RoutineName = "GenerateProbeDeck_FromSpec"

// Sink file names under the runtime dir. Fixed and reused across the batch
// so macOS ties its write-permission grants to stable file identities.
const (
	runtimeDirName  = "oracle-runtime"
	sinkSpecName    = "_macro-spec.txt"
	sinkDeckName    = "_macro-output.pptx"
	sinkExportName  = "_macro-output.pdf"
	sinkSlidePrefix = "_macro-output"
)

// RoutineRunner is the slice of the automation driver the orchestrator
// needs. Satisfied by *automation.Driver.
type RoutineRunner interface {
	RunRoutine(ctx context.Context, call automation.RoutineCall) error
	LineEnding() compiler.LineEnding
}

// Options configure a generation batch.
type Options struct {
	MacroHost   string          // macro-enabled host document
	CasesDir    string          // directory of case descriptor files
	TestdataDir string          // artifact root; cases/<stem>/ created below it
	CaseNames   map[string]bool // nil or empty = every case in CasesDir
	Force       bool            // regenerate even when artifacts exist
	ExportPNG   bool            // also export one PNG per slide
	PNGWidth    int
	PNGHeight   int
}

// FailureRecord captures one failed case in resilient mode, with the script
// that produced the failure for postmortem.
type FailureRecord struct {
	Case       string `json:"case"`
	Error      string `json:"error"`
	ScriptPath string `json:"spec_path"`
}

// Orchestrator serializes automation calls over a batch of cases. The
// authoring application is not safely multi-instance-automatable, so there
// is exactly one document cycle in flight at any time.
type Orchestrator struct {
	driver RoutineRunner
	opts   Options
	log    *slog.Logger
}

// New returns an orchestrator for the given driver and options.
func New(driver RoutineRunner, opts Options) *Orchestrator {
	return &Orchestrator{driver: driver, opts: opts, log: logging.New("generate")}
}

// GenerateAll runs every selected case, stopping at the first failure.
// Returns the source-document path per generated case, in case order.
func (o *Orchestrator) GenerateAll(ctx context.Context) ([]string, error) {
	paths, err := o.listCasePaths()
	if err != nil {
		return nil, err
	}
	var generated []string
	for _, casePath := range paths {
		src, err := o.runCase(ctx, casePath)
		if err != nil {
			return generated, err
		}
		generated = append(generated, src)
	}
	return generated, nil
}

// GenerateAllResilient runs every selected case regardless of prior
// failures, collecting one FailureRecord per failing case.
func (o *Orchestrator) GenerateAllResilient(ctx context.Context) ([]string, []FailureRecord, error) {
	paths, err := o.listCasePaths()
	if err != nil {
		return nil, nil, err
	}
	var generated []string
	var failures []FailureRecord
	for _, casePath := range paths {
		stem := stemOf(casePath)
		src, err := o.runCase(ctx, casePath)
		if err != nil {
			o.log.Warn("case generation failed", "case", stem, "error", err)
			failures = append(failures, FailureRecord{
				Case:       stem,
				Error:      FormatGenerationError(err),
				ScriptPath: filepath.Join(o.opts.TestdataDir, runtimeDirName, sinkSpecName),
			})
			continue
		}
		generated = append(generated, src)
	}
	return generated, failures, nil
}

func (o *Orchestrator) listCasePaths() ([]string, error) {
	entries, err := os.ReadDir(o.opts.CasesDir)
	if err != nil {
		return nil, fmt.Errorf("generate: read cases dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		if len(o.opts.CaseNames) > 0 && !o.opts.CaseNames[stemOf(e.Name())] {
			continue
		}
		paths = append(paths, filepath.Join(o.opts.CasesDir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// runCase generates one case's artifacts, reusing existing ones unless
// forced. Raster artifacts specifically regenerate when requested but
// absent, even if the document pair is reusable.
func (o *Orchestrator) runCase(ctx context.Context, casePath string) (string, error) {
	stem := stemOf(casePath)
	caseDir := filepath.Join(o.opts.TestdataDir, "cases", stem)
	deckPath := filepath.Join(caseDir, "source.pptx")
	exportPath := filepath.Join(caseDir, "ground-truth.pdf")
	slidesDir := filepath.Join(caseDir, "slides")

	if !o.opts.Force && exists(deckPath) && exists(exportPath) {
		if !o.opts.ExportPNG || exists(filepath.Join(slidesDir, "slide1.png")) {
			o.log.Debug("reusing artifacts", "case", stem)
			return deckPath, nil
		}
		// PNG requested but absent: fall through and regenerate.
	}

	runtimeDir := filepath.Join(o.opts.TestdataDir, runtimeDirName)
	if err := os.MkdirAll(runtimeDir, 0o755); err != nil {
		return "", fmt.Errorf("generate: create runtime dir: %w", err)
	}
	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		return "", fmt.Errorf("generate: create case dir: %w", err)
	}

	specPath := filepath.Join(runtimeDir, sinkSpecName)
	sinkDeck := filepath.Join(runtimeDir, sinkDeckName)
	sinkExport := filepath.Join(runtimeDir, sinkExportName)
	if err := removeStaleSinks(runtimeDir, sinkDeck, sinkExport); err != nil {
		return "", err
	}

	c, err := caseir.LoadFromPath(casePath)
	if err != nil {
		return "", err
	}

	sinks := compiler.Sinks{DocumentPath: sinkDeck, ExportPath: sinkExport}
	if o.opts.ExportPNG {
		sinks.RasterPrefix = filepath.Join(runtimeDir, sinkSlidePrefix)
		sinks.RasterWidth = o.opts.PNGWidth
		sinks.RasterHeight = o.opts.PNGHeight
	}
	if err := compiler.WriteScript(specPath, c, sinks, o.driver.LineEnding()); err != nil {
		return "", err
	}

	o.log.Info("generating case", "case", stem, "png", o.opts.ExportPNG)
	err = o.driver.RunRoutine(ctx, automation.RoutineCall{
		HostDocument: o.opts.MacroHost,
		Routine:      RoutineName,
		Params:       []string{specPath},
		ExportPath:   sinkExport, // the routine writes the sinks itself
	})
	if err != nil {
		return "", err
	}
	if !exists(sinkDeck) {
		return "", fmt.Errorf("generate: routine finished but deck sink missing for %s", stem)
	}

	if err := copyFile(sinkDeck, deckPath); err != nil {
		return "", err
	}
	if err := copyFile(sinkExport, exportPath); err != nil {
		return "", err
	}
	if err := collectSlideRasters(runtimeDir, slidesDir); err != nil {
		return "", err
	}
	return deckPath, nil
}

func removeStaleSinks(runtimeDir string, sinks ...string) error {
	for _, s := range sinks {
		if err := os.Remove(s); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("generate: remove stale sink %q: %w", s, err)
		}
	}
	stale, err := filepath.Glob(filepath.Join(runtimeDir, sinkSlidePrefix+"_slide*.png"))
	if err != nil {
		return fmt.Errorf("generate: glob stale rasters: %w", err)
	}
	for _, s := range stale {
		if err := os.Remove(s); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("generate: remove stale raster %q: %w", s, err)
		}
	}
	return nil
}

// collectSlideRasters renames the sink naming convention
// (_macro-output_slideN.png) into the per-case layout (slides/slideN.png).
func collectSlideRasters(runtimeDir, slidesDir string) error {
	rasters, err := filepath.Glob(filepath.Join(runtimeDir, sinkSlidePrefix+"_slide*.png"))
	if err != nil {
		return fmt.Errorf("generate: glob rasters: %w", err)
	}
	sort.Strings(rasters)
	for _, src := range rasters {
		base := filepath.Base(src)
		idx := strings.TrimSuffix(strings.TrimPrefix(base, sinkSlidePrefix+"_slide"), ".png")
		if idx == "" {
			continue
		}
		if err := os.MkdirAll(slidesDir, 0o755); err != nil {
			return fmt.Errorf("generate: create slides dir: %w", err)
		}
		if err := copyFile(src, filepath.Join(slidesDir, "slide"+idx+".png")); err != nil {
			return err
		}
	}
	return nil
}

// FormatGenerationError flattens an error for a FailureRecord, including any
// captured diagnostic streams.
func FormatGenerationError(err error) string {
	parts := []string{err.Error()}
	var re *automation.RunError
	if errors.As(err, &re) {
		if s := strings.TrimSpace(re.Stderr); s != "" {
			parts = append(parts, "stderr: "+s)
		}
		if s := strings.TrimSpace(re.Stdout); s != "" {
			parts = append(parts, "stdout: "+s)
		}
	}
	return strings.Join(parts, " | ")
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("generate: open %q: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("generate: create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("generate: copy %q -> %q: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("generate: close %q: %w", dst, err)
	}
	return nil
}
