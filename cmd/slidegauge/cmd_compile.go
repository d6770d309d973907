package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"slidegauge/internal/caseir"
	"slidegauge/internal/compiler"
)

var compileFlags struct {
	output    string
	eol       string
	deckSink  string
	pdfSink   string
	pngPrefix string
	pngWidth  int
	pngHeight int
}

var compileCmd = &cobra.Command{
	Use:   "compile <case-file>",
	Short: "Compile a case descriptor into a macro spec file",
	Long: `Compile a case descriptor (JSON or YAML) into the line-oriented spec
the deck-building macro consumes.

Usage:
  slidegauge compile cases/smartart-cycle.json -o runtime/_macro-spec.txt
  slidegauge compile cases/x.yaml --eol crlf --png-prefix runtime/out`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	f := compileCmd.Flags()
	f.StringVarP(&compileFlags.output, "output", "o", "", "Spec output path (default: stdout)")
	f.StringVar(&compileFlags.eol, "eol", "lf", "Line terminator: lf or crlf (match the consuming platform)")
	f.StringVar(&compileFlags.deckSink, "deck-sink", "_macro-output.pptx", "Deck sink path the macro writes")
	f.StringVar(&compileFlags.pdfSink, "pdf-sink", "_macro-output.pdf", "PDF sink path the macro writes")
	f.StringVar(&compileFlags.pngPrefix, "png-prefix", "", "Also export per-slide PNGs with this path prefix")
	f.IntVar(&compileFlags.pngWidth, "png-width", 0, "PNG export width in pixels")
	f.IntVar(&compileFlags.pngHeight, "png-height", 0, "PNG export height in pixels")
}

func runCompile(cmd *cobra.Command, args []string) error {
	c, err := caseir.LoadFromPath(args[0])
	if err != nil {
		return err
	}

	var eol compiler.LineEnding
	switch strings.ToLower(compileFlags.eol) {
	case "lf":
		eol = compiler.LF
	case "crlf":
		eol = compiler.CRLF
	default:
		return fmt.Errorf("unknown eol %q (want lf or crlf)", compileFlags.eol)
	}

	sinks := compiler.Sinks{
		DocumentPath: compileFlags.deckSink,
		ExportPath:   compileFlags.pdfSink,
		RasterPrefix: compileFlags.pngPrefix,
		RasterWidth:  compileFlags.pngWidth,
		RasterHeight: compileFlags.pngHeight,
	}

	if compileFlags.output == "" {
		lines, err := compiler.Compile(c, sinks)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), strings.Join(lines, string(eol))+string(eol))
		return nil
	}
	if err := compiler.WriteScript(compileFlags.output, c, sinks, eol); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Spec written to: %s\n", compileFlags.output)
	return nil
}
