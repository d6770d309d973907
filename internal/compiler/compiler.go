// Package compiler turns a typed case into the line-oriented automation
// script consumed by the deck-generation routine.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"slidegauge/internal/caseir"
)

// LineEnding selects the script terminator for the target transport.
// The Windows automation surface reads lines with Line Input and requires
// CRLF; the osascript surface handles LF.
type LineEnding string

const (
	CRLF LineEnding = "\r\n"
	LF   LineEnding = "\n"
)

// Sinks declares the output targets the generated deck is written to.
type Sinks struct {
	DocumentPath string // OUT_PPTX
	ExportPath   string // OUT_PDF
	RasterPrefix string // OUT_PNG prefix; empty = no raster export
	RasterWidth  int    // 0 = application default
	RasterHeight int
}

// Compile renders the script lines for c. Header lines declare the sinks,
// then one SLIDE block per slide with one pipe-delimited line per node.
func Compile(c *caseir.Case, sinks Sinks) ([]string, error) {
	if len(c.Slides) == 0 {
		return nil, &caseir.ValidationError{Case: c.Name, Msg: "case must contain a non-empty 'slides' array"}
	}

	lines := []string{
		"OUT_PPTX|" + sinks.DocumentPath,
		"OUT_PDF|" + sinks.ExportPath,
	}
	if sinks.RasterPrefix != "" {
		parts := []string{sinks.RasterPrefix}
		if sinks.RasterWidth > 0 {
			parts = append(parts, strconv.Itoa(sinks.RasterWidth))
			if sinks.RasterHeight > 0 {
				parts = append(parts, strconv.Itoa(sinks.RasterHeight))
			}
		}
		lines = append(lines, "OUT_PNG|"+strings.Join(parts, "|"))
	}

	for _, slide := range c.Slides {
		lines = append(lines, "SLIDE")
		for _, node := range slide.Nodes {
			line, err := nodeLine(c.Name, node)
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func nodeLine(caseName string, node caseir.Node) (string, error) {
	switch n := node.(type) {
	case *caseir.ShapeNode:
		return join("SHAPE", n.TypeID, num(n.Left), num(n.Top), num(n.Width), num(n.Height)), nil
	case *caseir.SmartArtNode:
		return join("SMARTART", n.Layout, num(n.Left), num(n.Top), num(n.Width), num(n.Height)), nil
	case *caseir.ChartNode:
		return join("CHART", n.TypeID, num(n.Left), num(n.Top), num(n.Width), num(n.Height)), nil
	case *caseir.TableNode:
		return join("TABLE", strconv.Itoa(n.Rows), strconv.Itoa(n.Cols), num(n.Left), num(n.Top), num(n.Width), num(n.Height)), nil
	case *caseir.ConnectorNode:
		return join("CONNECTOR", n.Type, num(n.BeginX), num(n.BeginY), num(n.EndX), num(n.EndY)), nil
	case *caseir.FillStrokeNode:
		return join("FILLSTROKE", n.FillKind, n.StrokeKind, num(n.Left), num(n.Top), num(n.Width), num(n.Height)), nil
	case *caseir.TextBoxNode:
		// The delimiter cannot be escaped in the line format, so literal
		// pipes are replaced with a slash. Lossy on purpose.
		text := strings.ReplaceAll(n.Text, "|", "/")
		return join("TEXTBOX", text, num(n.Left), num(n.Top), num(n.Width), num(n.Height)), nil
	default:
		return "", &caseir.ValidationError{Case: caseName, Field: string(node.Kind()), Msg: "unsupported node kind"}
	}
}

// WriteScript compiles c and writes the script to path with the given line
// ending, creating parent directories as needed. The file always ends with
// a trailing terminator.
func WriteScript(path string, c *caseir.Case, sinks Sinks, eol LineEnding) error {
	lines, err := Compile(c, sinks)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("compiler: create script dir: %w", err)
	}
	body := strings.Join(lines, string(eol)) + string(eol)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("compiler: write script %q: %w", path, err)
	}
	return nil
}

// num renders a field value: floats with zero fractional part drop the
// decimal point ("100.0" → "100"), everything else renders as-is.
func num(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func join(fields ...string) string {
	return strings.Join(fields, "|")
}
