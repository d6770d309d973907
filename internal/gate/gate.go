// Package gate turns metric vectors into pass/fail verdicts, triage
// reasons, and attention rankings. Reason strings are stable identifiers:
// downstream tooling and the support catalog key off them.
package gate

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Thresholds gate the run-level aggregates.
type Thresholds struct {
	TextCoverage float64
	ShapeRecall  float64
	SSIM         float64
}

// DefaultThresholds are the calibrated floor values for a healthy run.
func DefaultThresholds() Thresholds {
	return Thresholds{TextCoverage: 0.90, ShapeRecall: 0.90, SSIM: 0.95}
}

// GateResult is the outcome of the run-level gate, carrying the
// thresholds it was checked against.
type GateResult struct {
	Passed     bool       `json:"passed"`
	Reasons    []string   `json:"reasons,omitempty"`
	Thresholds Thresholds `json:"thresholds"`
}

// AggregateQualityGate checks the run-level aggregate metrics against the
// thresholds. A metric the run did not produce fails the gate outright.
func AggregateQualityGate(agg map[string]float64, th Thresholds) GateResult {
	var reasons []string
	for _, check := range []struct {
		key string
		min float64
	}{
		{"text_coverage", th.TextCoverage},
		{"shape_recall", th.ShapeRecall},
		{"ssim", th.SSIM},
	} {
		v, ok := agg[check.key]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("missing metric: %s", check.key))
			continue
		}
		if v < check.min {
			reasons = append(reasons, fmt.Sprintf("%s %.3f < %.3f", check.key, v, check.min))
		}
	}
	return GateResult{Passed: len(reasons) == 0, Reasons: reasons, Thresholds: th}
}

// VerdictThresholds gate a single slide comparison.
type VerdictThresholds struct {
	SSIM          float64
	ColorHistCorr float64
	// SSIMReview flags passing slides that still sit below a stricter bar
	// for manual review.
	SSIMReview float64
}

// DefaultVerdictThresholds are the calibrated per-slide floors.
func DefaultVerdictThresholds() VerdictThresholds {
	return VerdictThresholds{SSIM: 0.95, ColorHistCorr: 0.80, SSIMReview: 0.99}
}

// Heuristic cutoffs separating "renderer drew the wrong thing" from
// "renderer drew almost nothing where ink was expected".
const (
	fgIoUMissingShape = 0.12
	ssimMissingShape  = 0.50
	fgIoULowOverlap   = 0.15
)

// BlankStddevMax is the luminance spread below which an exported page
// reads as blank, pointing at the oracle rather than the candidate.
const BlankStddevMax = 1.0

// Verdict is the gate decision for one slide comparison.
type Verdict struct {
	Passed      bool     `json:"passed"`
	NeedsReview bool     `json:"needs_review"`
	HardReasons []string `json:"hard_reasons,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Reasons is the full ordered reason list, hard failures first.
func (v Verdict) Reasons() []string {
	return append(append([]string{}, v.HardReasons...), v.Warnings...)
}

// EvaluateSlide gates one metric vector. Hard reasons fail the slide;
// warnings keep it passing but mark it for review.
func EvaluateSlide(m map[string]float64, th VerdictThresholds) Verdict {
	var v Verdict
	for _, check := range []struct {
		key string
		min float64
	}{
		{"ssim", th.SSIM},
		{"color_hist_corr", th.ColorHistCorr},
	} {
		val, ok := m[check.key]
		if !ok {
			v.HardReasons = append(v.HardReasons, "metric:missing:"+check.key)
			continue
		}
		if val < check.min {
			v.HardReasons = append(v.HardReasons, "metric:"+check.key)
		}
	}

	ssim := m["ssim"]
	fgIoU, haveFG := m["fg_iou"]
	if haveFG {
		switch {
		case fgIoU < fgIoUMissingShape && ssim < ssimMissingShape:
			v.HardReasons = append(v.HardReasons, "likely:shape_missing_or_wrong_geometry")
		case fgIoU < fgIoULowOverlap && ssim >= th.SSIM:
			v.Warnings = append(v.Warnings, "warn:low_foreground_overlap_check_manually")
			v.NeedsReview = true
		}
	}

	v.Passed = len(v.HardReasons) == 0
	if ssim < th.SSIMReview {
		v.Warnings = append(v.Warnings, "warn:ssim_below_review_threshold")
		v.NeedsReview = true
	}
	return v
}

// ClassifyCaseOutcome folds per-slide verdicts into a case-level reason
// list. A near-uniform ground-truth raster means the export itself is
// suspect, so that reason leads. Order is preserved and duplicates
// collapse to their first occurrence.
func ClassifyCaseOutcome(refStddevs []float64, verdicts []Verdict) []string {
	var reasons []string
	for _, std := range refStddevs {
		if std < BlankStddevMax {
			reasons = append(reasons, "oracle:pdf_probably_blank")
			break
		}
	}
	for _, v := range verdicts {
		reasons = append(reasons, v.HardReasons...)
	}
	for _, v := range verdicts {
		reasons = append(reasons, v.Warnings...)
	}
	return dedupe(reasons)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// AttentionItem ranks one failing or suspicious slide for manual triage.
type AttentionItem struct {
	Case     string   `json:"case"`
	SlideIdx int      `json:"slide_idx"`
	Severity float64  `json:"severity"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Severity scores how much a slide deviates, weighted toward foreground
// placement over texture and color. A metric that was never measured
// contributes no deviation.
func Severity(m map[string]float64) float64 {
	s := 0.50*(1-metricOr(m, "fg_iou", 1)) +
		0.25*(1-metricOr(m, "ssim", 1)) +
		0.25*(1-metricOr(m, "color_hist_corr", 1))
	return math.Round(s*10000) / 10000
}

func metricOr(m map[string]float64, key string, fallback float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

// BuildAttentionRanking orders items by descending severity, stable across
// equal severities by case and slide.
func BuildAttentionRanking(items []AttentionItem) []AttentionItem {
	out := append([]AttentionItem{}, items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		if out[i].Case != out[j].Case {
			return out[i].Case < out[j].Case
		}
		return out[i].SlideIdx < out[j].SlideIdx
	})
	return out
}

// Failure buckets for case-level triage.
const (
	BucketOracleFailure      = "oracle_generation_failure"
	BucketFidelityRegression = "fidelity_regression"
	BucketUnsupported        = "unsupported_candidate"
)

// BucketFailure assigns a failing case to a triage bucket. A pure SSIM
// failure reads as a fidelity regression in an otherwise supported
// feature; anything else points at missing candidate support.
func BucketFailure(reasons []string) string {
	if len(reasons) == 0 {
		return BucketUnsupported
	}
	onlySSIM := true
	for _, r := range reasons {
		if strings.HasPrefix(r, "oracle:") {
			return BucketOracleFailure
		}
		if r != "metric:ssim" {
			onlySSIM = false
		}
	}
	if onlySSIM {
		return BucketFidelityRegression
	}
	return BucketUnsupported
}

// DiagnoseFidelityGap suggests probable causes for a failing case from its
// name and the measured slide metrics.
func DiagnoseFidelityGap(caseName string, m map[string]float64) []string {
	var reasons []string
	if metricOr(m, "fg_iou", 1) < fgIoUMissingShape {
		reasons = append(reasons, "possible:smartart_subshape_geometry_mismatch")
	}
	lower := strings.ToLower(caseName)
	if strings.Contains(lower, "picture") && metricOr(m, "ssim", 1) < 0.56 {
		reasons = append(reasons, "possible:smartart_picture_fill_or_mask_mismatch")
	}
	if strings.Contains(lower, "hierarchy") {
		reasons = append(reasons, "possible:smartart_hierarchy_connector_routing_mismatch")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "possible:general_smartart_style_or_effect_mismatch")
	}
	return reasons
}
