package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"slidegauge/internal/automation"
	"slidegauge/internal/generate"
)

var generateFlags struct {
	casesDir  string
	testdata  string
	macroHost string
	scriptDir string
	cases     []string
	force     bool
	png       bool
	pngWidth  int
	pngHeight int
	resilient bool
	retries   int
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate ground-truth decks and exports for the case corpus",
	Long: `Generate drives the native authoring application to build a probe deck
per case descriptor, exports each deck to PDF (and optionally per-slide
PNGs), and files the artifacts under testdata/cases/<case>/.

Existing artifacts are reused unless --force is given. With --resilient a
failing case is recorded and the batch continues.`,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateFlags.casesDir, "cases", "cases", "Directory of case descriptor files")
	f.StringVar(&generateFlags.testdata, "testdata", "testdata", "Artifact root directory")
	f.StringVar(&generateFlags.macroHost, "host", "probe-host.pptm", "Macro-enabled host document")
	f.StringVar(&generateFlags.scriptDir, "script-dir", "", "Directory for the automation scripts (default: <testdata>/oracle-runtime)")
	f.StringSliceVar(&generateFlags.cases, "case", nil, "Limit to specific case names (repeatable)")
	f.BoolVar(&generateFlags.force, "force", false, "Regenerate even when artifacts exist")
	f.BoolVar(&generateFlags.png, "png", false, "Also export one PNG per slide")
	f.IntVar(&generateFlags.pngWidth, "png-width", 1280, "PNG export width in pixels")
	f.IntVar(&generateFlags.pngHeight, "png-height", 0, "PNG export height in pixels (0: keep aspect)")
	f.BoolVar(&generateFlags.resilient, "resilient", false, "Continue past failing cases and record them")
	f.IntVar(&generateFlags.retries, "retries", 2, "Export retry attempts after the first failure")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	scriptDir := generateFlags.scriptDir
	if scriptDir == "" {
		scriptDir = filepath.Join(generateFlags.testdata, "oracle-runtime")
	}
	transport, err := automation.NewPlatformTransport(scriptDir, nil)
	if err != nil {
		return err
	}
	defer transport.Close()
	driver := automation.NewDriver(transport, automation.WithRetries(generateFlags.retries))

	var names map[string]bool
	if len(generateFlags.cases) > 0 {
		names = make(map[string]bool, len(generateFlags.cases))
		for _, n := range generateFlags.cases {
			names[n] = true
		}
	}
	orch := generate.New(driver, generate.Options{
		MacroHost:   generateFlags.macroHost,
		CasesDir:    generateFlags.casesDir,
		TestdataDir: generateFlags.testdata,
		CaseNames:   names,
		Force:       generateFlags.force,
		ExportPNG:   generateFlags.png,
		PNGWidth:    generateFlags.pngWidth,
		PNGHeight:   generateFlags.pngHeight,
	})

	ctx := cmd.Context()
	if !generateFlags.resilient {
		generated, err := orch.GenerateAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated %d case(s)\n", len(generated))
		return nil
	}

	generated, failures, err := orch.GenerateAllResilient(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Generated %d case(s), %d failure(s)\n", len(generated), len(failures))
	if len(failures) == 0 {
		return nil
	}
	failPath := filepath.Join(generateFlags.testdata, "generation-failures.json")
	data, err := json.MarshalIndent(failures, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}
	if err := os.WriteFile(failPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write failures: %w", err)
	}
	for _, f := range failures {
		fmt.Fprintf(cmd.OutOrStdout(), "  FAIL %s: %s\n", f.Case, f.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Failure records written to: %s\n", failPath)
	return nil
}
