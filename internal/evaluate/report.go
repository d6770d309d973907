package evaluate

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"slidegauge/internal/metrics"
)

func documentPath(testdataDir, caseName string) string {
	return filepath.Join(testdataDir, "cases", caseName, "source.pptx")
}

// writeSlideReports renders the triage rasters for one flagged slide.
func (e *Evaluator) writeSlideReports(ctx context.Context, caseName string, slideIdx int) error {
	ref, err := e.ground.CaptureSlide(ctx, caseName, slideIdx)
	if err != nil {
		return err
	}
	cand, err := e.candidate.CaptureSlide(ctx, caseName, slideIdx)
	if err != nil {
		return err
	}
	base := filepath.Join(e.opts.ReportDir, caseName)
	diff := metrics.DiffHeatmap(ref, cand)
	if err := metrics.WritePNG(filepath.Join(base, fmt.Sprintf("slide%d-diff.png", slideIdx)), diff); err != nil {
		return err
	}
	side := metrics.SideBySide(ref, cand)
	return metrics.WritePNG(filepath.Join(base, fmt.Sprintf("slide%d-side.png", slideIdx)), side)
}

// WriteJSONReport persists the full run result.
func WriteJSONReport(path string, run RunResult) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("evaluate: marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("evaluate: create report dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("evaluate: write %q: %w", path, err)
	}
	return nil
}

// WriteCSVReport writes one row per slide for spreadsheet triage.
func WriteCSVReport(path string, run RunResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("evaluate: create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("evaluate: create %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"case", "slide", "passed", "ssim", "fg_iou", "color_hist_corr", "edge_iou", "chamfer_score", "reasons", "error"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("evaluate: write csv header: %w", err)
	}
	for _, cr := range run.Cases {
		for _, sr := range cr.Slides {
			row := []string{cr.Case, strconv.Itoa(sr.SlideIdx)}
			if sr.Metrics == nil {
				row = append(row, "false", "", "", "", "", "", "", sr.Error)
			} else {
				m := sr.Metrics.Map()
				passed := sr.Verdict != nil && sr.Verdict.Passed
				var reasons []string
				if sr.Verdict != nil {
					reasons = sr.Verdict.Reasons()
				}
				row = append(row,
					strconv.FormatBool(passed),
					formatMetric(m["ssim"]),
					formatMetric(m["fg_iou"]),
					formatMetric(m["color_hist_corr"]),
					formatMetric(m["edge_iou"]),
					formatMetric(m["chamfer_score"]),
					strings.Join(reasons, ";"),
					"",
				)
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("evaluate: write csv row: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("evaluate: flush csv: %w", err)
	}
	return nil
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
