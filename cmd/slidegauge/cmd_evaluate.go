package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"slidegauge/internal/capture"
	"slidegauge/internal/caseir"
	"slidegauge/internal/catalog"
	"slidegauge/internal/evaluate"
	"slidegauge/internal/gate"
	"slidegauge/internal/metrics"
)

var evaluateFlags struct {
	casesDir     string
	testdata     string
	catalogPath  string
	scope        string
	candidateDir string
	renderURL    string
	harnessURL   string
	concurrency  int
	reportDir    string
	writeReports bool
	jsonOut      string
	csvOut       string
	merge        bool
	attentionTop int
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score candidate renderings against the ground truth",
	Long: `Evaluate captures how the engine under test renders each case in scope,
scores every slide against the ground-truth rasters, and aggregates a
run-level quality gate verdict.

The candidate rasters come from one of:
  --candidate-dir   rasters already exported to disk
  --render-url      a render service answering GET /render
  --harness-url     the engine's browser harness, driven headlessly`,
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evaluateFlags.casesDir, "cases", "cases", "Directory of case descriptor files")
	f.StringVar(&evaluateFlags.testdata, "testdata", "testdata", "Artifact root directory")
	f.StringVar(&evaluateFlags.catalogPath, "catalog", "testdata/support-catalog.json", "Support catalog path")
	f.StringVar(&evaluateFlags.scope, "scope", "all", "Case scope: all, unsupported or unknown")
	f.StringVar(&evaluateFlags.candidateDir, "candidate-dir", "", "Directory of candidate rasters")
	f.StringVar(&evaluateFlags.renderURL, "render-url", "", "Base URL of a render service")
	f.StringVar(&evaluateFlags.harnessURL, "harness-url", "", "Base URL of the browser harness")
	f.IntVar(&evaluateFlags.concurrency, "concurrency", evaluate.DefaultConcurrency, "Cases evaluated in parallel")
	f.StringVar(&evaluateFlags.reportDir, "report-dir", "reports", "Directory for triage rasters")
	f.BoolVar(&evaluateFlags.writeReports, "write-reports", false, "Write diff and side-by-side rasters for flagged slides")
	f.StringVarP(&evaluateFlags.jsonOut, "output", "o", "", "Write the full run result as JSON")
	f.StringVar(&evaluateFlags.csvOut, "csv", "", "Write a per-slide CSV summary")
	f.BoolVar(&evaluateFlags.merge, "merge-catalog", false, "Merge run results into the support catalog")
	f.IntVar(&evaluateFlags.attentionTop, "attention", 10, "How many attention items to print")
}

func candidateCapturer(cmd *cobra.Command) (capture.Capturer, func() error, error) {
	noop := func() error { return nil }
	switch {
	case evaluateFlags.candidateDir != "":
		return capture.DirCapturer{Root: evaluateFlags.candidateDir}, noop, nil
	case evaluateFlags.renderURL != "":
		return capture.RemoteCapturer{BaseURL: evaluateFlags.renderURL}, noop, nil
	case evaluateFlags.harnessURL != "":
		s, err := capture.NewSession(cmd.Context(), capture.SessionConfig{BaseURL: evaluateFlags.harnessURL})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("a candidate source is required: --candidate-dir, --render-url or --harness-url")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cat, err := catalog.LoadOrInit(evaluateFlags.catalogPath, evaluateFlags.casesDir)
	if err != nil {
		return err
	}
	names, err := cat.Select(evaluateFlags.scope)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No cases in scope %q\n", evaluateFlags.scope)
		return nil
	}

	cases := make([]*caseir.Case, 0, len(names))
	for _, name := range names {
		c, err := loadCaseByName(evaluateFlags.casesDir, name)
		if err != nil {
			return err
		}
		cases = append(cases, c)
	}

	candidate, closeCandidate, err := candidateCapturer(cmd)
	if err != nil {
		return err
	}
	defer closeCandidate()

	e := evaluate.New(
		capture.DirCapturer{Root: evaluateFlags.testdata},
		candidate,
		evaluate.Options{
			TestdataDir:  evaluateFlags.testdata,
			ReportDir:    evaluateFlags.reportDir,
			Concurrency:  evaluateFlags.concurrency,
			Metrics:      metrics.DefaultConfig(),
			Verdict:      gate.DefaultVerdictThresholds(),
			Gate:         gate.DefaultThresholds(),
			WriteReports: evaluateFlags.writeReports,
		},
	)
	run, err := e.EvaluateBatch(cmd.Context(), cases)
	if err != nil {
		return err
	}

	if evaluateFlags.jsonOut != "" {
		if err := evaluate.WriteJSONReport(evaluateFlags.jsonOut, run); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run result written to: %s\n", evaluateFlags.jsonOut)
	}
	if evaluateFlags.csvOut != "" {
		if err := evaluate.WriteCSVReport(evaluateFlags.csvOut, run); err != nil {
			return err
		}
	}
	if evaluateFlags.merge {
		cat.Merge(run.CatalogResults())
		if err := cat.Save(evaluateFlags.catalogPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Catalog updated: %s\n", evaluateFlags.catalogPath)
	}

	printRunSummary(cmd, run)
	if !run.Gate.Passed {
		return fmt.Errorf("quality gate failed: %v", run.Gate.Reasons)
	}
	return nil
}

func printRunSummary(cmd *cobra.Command, run evaluate.RunResult) {
	out := cmd.OutOrStdout()
	passed := 0
	for _, cr := range run.Cases {
		if cr.Passed {
			passed++
		}
	}
	fmt.Fprintf(out, "Cases: %d passed / %d total\n", passed, len(run.Cases))
	for _, cr := range run.Cases {
		if cr.Passed {
			continue
		}
		fmt.Fprintf(out, "  FAIL %s [%s] %v\n", cr.Case, cr.Bucket, cr.Reasons)
	}
	if len(run.Attention) > 0 {
		fmt.Fprintln(out, "Attention:")
		for i, item := range run.Attention {
			if i >= evaluateFlags.attentionTop {
				break
			}
			fmt.Fprintf(out, "  %.4f %s#%d %v\n", item.Severity, item.Case, item.SlideIdx, item.Reasons)
		}
	}
	if run.Gate.Passed {
		fmt.Fprintln(out, "Quality gate: PASS")
	} else {
		fmt.Fprintf(out, "Quality gate: FAIL %v\n", run.Gate.Reasons)
	}
}

// loadCaseByName finds a case descriptor by stem, whatever its extension.
func loadCaseByName(casesDir, name string) (*caseir.Case, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(casesDir, name+ext)
		c, err := caseir.LoadFromPath(path)
		if err == nil {
			return c, nil
		}
		var verr *caseir.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no descriptor for case %q in %s", name, casesDir)
}
