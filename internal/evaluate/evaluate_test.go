package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"slidegauge/internal/caseir"
	"slidegauge/internal/gate"
	"slidegauge/internal/metrics"
	"slidegauge/internal/structural"
)

// fakeCapturer serves canned rasters keyed "<case>#<slide>" and counts
// captures. A missing key is a capture failure.
type fakeCapturer struct {
	rasters map[string]image.Image
	calls   atomic.Int64
}

func (f *fakeCapturer) CaptureSlide(_ context.Context, caseName string, slideIdx int) (image.Image, error) {
	f.calls.Add(1)
	img, ok := f.rasters[fmt.Sprintf("%s#%d", caseName, slideIdx)]
	if !ok {
		return nil, errors.New("raster unavailable")
	}
	return img, nil
}

func inkSlide() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(12, 10, 52, 40), image.NewUniform(color.NRGBA{R: 40, G: 40, B: 40, A: 255}), image.Point{}, draw.Src)
	return img
}

func blankSlide() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255}), image.Point{}, draw.Src)
	return img
}

func oneSlideCase(name string) *caseir.Case {
	return &caseir.Case{Name: name, Slides: []caseir.Slide{{Nodes: []caseir.Node{
		&caseir.ShapeNode{TypeID: "1", Box: caseir.Box{Left: 12, Top: 10, Width: 40, Height: 30}},
	}}}}
}

func testOptions() Options {
	return Options{
		Metrics: metrics.DefaultConfig(),
		Verdict: gate.DefaultVerdictThresholds(),
		Gate:    gate.DefaultThresholds(),
	}
}

func TestEvaluateBatch_CollectsPerCaseFailures(t *testing.T) {
	good := inkSlide()
	ground := &fakeCapturer{rasters: map[string]image.Image{
		"alpha#1": good, "beta#1": good, "gamma#1": good,
	}}
	// beta's candidate raster is unavailable; the other two match.
	candidate := &fakeCapturer{rasters: map[string]image.Image{
		"alpha#1": good, "gamma#1": good,
	}}

	e := New(ground, candidate, testOptions())
	run, err := e.EvaluateBatch(context.Background(), []*caseir.Case{
		oneSlideCase("alpha"), oneSlideCase("beta"), oneSlideCase("gamma"),
	})
	if err != nil {
		t.Fatalf("EvaluateBatch: %v", err)
	}

	if got := run.FailingCases(); len(got) != 1 || got[0] != "beta" {
		t.Fatalf("failing cases = %v, want [beta]", got)
	}
	var beta CaseResult
	for _, cr := range run.Cases {
		if cr.Case == "beta" {
			beta = cr
		}
	}
	if beta.Slides[0].Error == "" || !strings.Contains(beta.Slides[0].Error, "raster unavailable") {
		t.Errorf("slide failure must be recorded inline, got %+v", beta.Slides[0])
	}
	found := false
	for _, r := range beta.Reasons {
		if r == "error:slide_evaluation_failed" {
			found = true
		}
	}
	if !found {
		t.Errorf("case reasons = %v, want error:slide_evaluation_failed", beta.Reasons)
	}
	// Results come back sorted by case name regardless of scheduling.
	for i, name := range []string{"alpha", "beta", "gamma"} {
		if run.Cases[i].Case != name {
			t.Errorf("result %d = %q, want %q", i, run.Cases[i].Case, name)
		}
	}
}

func TestEvaluateCase_MismatchFailsWithBucket(t *testing.T) {
	ground := &fakeCapturer{rasters: map[string]image.Image{"alpha#1": inkSlide()}}
	candidate := &fakeCapturer{rasters: map[string]image.Image{"alpha#1": blankSlide()}}

	e := New(ground, candidate, testOptions())
	cr := e.EvaluateCase(context.Background(), oneSlideCase("alpha"))
	if cr.Passed {
		t.Fatal("blank candidate against inked ground truth must fail")
	}
	if cr.Bucket == "" {
		t.Error("failing case must be bucketed")
	}
	hasSSIM := false
	for _, r := range cr.Reasons {
		if r == "metric:ssim" {
			hasSSIM = true
		}
	}
	if !hasSSIM {
		t.Errorf("reasons = %v, want metric:ssim among them", cr.Reasons)
	}
}

func TestEvaluateCase_BlankGroundTruthFails(t *testing.T) {
	ground := &fakeCapturer{rasters: map[string]image.Image{"alpha#1": blankSlide()}}
	candidate := &fakeCapturer{rasters: map[string]image.Image{"alpha#1": blankSlide()}}

	e := New(ground, candidate, testOptions())
	cr := e.EvaluateCase(context.Background(), oneSlideCase("alpha"))
	if cr.Passed {
		t.Fatal("a blank reference raster must fail the case")
	}
	if cr.Bucket != gate.BucketOracleFailure {
		t.Errorf("bucket = %q, want %q", cr.Bucket, gate.BucketOracleFailure)
	}
}

func TestEvaluateCase_CacheSkipsRecapture(t *testing.T) {
	ground := &fakeCapturer{rasters: map[string]image.Image{"alpha#1": inkSlide()}}
	candidate := &fakeCapturer{rasters: map[string]image.Image{"alpha#1": inkSlide()}}

	cache := NewMemoryCache()
	e := New(ground, candidate, testOptions(), WithCache(cache))

	first := e.EvaluateCase(context.Background(), oneSlideCase("alpha"))
	if !first.Passed {
		t.Fatalf("identical rasters must pass, got %+v", first)
	}
	before := ground.calls.Load()

	again := e.EvaluateCase(context.Background(), oneSlideCase("alpha"))
	if !again.Passed {
		t.Fatal("cached re-evaluation must pass")
	}
	if ground.calls.Load() != before {
		t.Errorf("cache hit must not recapture, captures went %d -> %d", before, ground.calls.Load())
	}
}

// passEverything reports every expected element rendered with its text.
type passEverything struct{}

func (passEverything) Extract(_ context.Context, _ string) (*structural.Presentation, error) {
	return &structural.Presentation{Slides: []structural.Slide{{Shapes: []structural.Shape{
		{Kind: caseir.KindShape},
	}}}}, nil
}

func TestEvaluateBatch_AggregatesAndGate(t *testing.T) {
	good := inkSlide()
	ground := &fakeCapturer{rasters: map[string]image.Image{"alpha#1": good}}
	candidate := &fakeCapturer{rasters: map[string]image.Image{"alpha#1": good}}

	opts := testOptions()
	opts.Extractor = passEverything{}
	e := New(ground, candidate, opts)
	run, err := e.EvaluateBatch(context.Background(), []*caseir.Case{oneSlideCase("alpha")})
	if err != nil {
		t.Fatal(err)
	}
	if !run.Gate.Passed {
		t.Fatalf("perfect run must pass the gate, reasons: %v", run.Gate.Reasons)
	}
	for _, key := range []string{"ssim", "text_coverage", "shape_recall"} {
		if run.Aggregates[key] < 0.99 {
			t.Errorf("aggregate %s = %v, want ~1", key, run.Aggregates[key])
		}
	}
	if len(run.Attention) != 0 {
		t.Errorf("clean run must not demand attention, got %v", run.Attention)
	}
}

func TestEvaluateBatch_AttentionRanksWorstFirst(t *testing.T) {
	ground := &fakeCapturer{rasters: map[string]image.Image{
		"bad#1": inkSlide(), "worse#1": inkSlide(),
	}}
	shifted := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	draw.Draw(shifted, shifted.Bounds(), image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255}), image.Point{}, draw.Src)
	draw.Draw(shifted, image.Rect(20, 18, 60, 48), image.NewUniform(color.NRGBA{R: 40, G: 40, B: 40, A: 255}), image.Point{}, draw.Src)
	candidate := &fakeCapturer{rasters: map[string]image.Image{
		"bad#1": shifted, "worse#1": blankSlide(),
	}}

	e := New(ground, candidate, testOptions())
	run, err := e.EvaluateBatch(context.Background(), []*caseir.Case{
		oneSlideCase("bad"), oneSlideCase("worse"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(run.Attention) < 2 {
		t.Fatalf("want both slides ranked, got %v", run.Attention)
	}
	if run.Attention[0].Case != "worse" {
		t.Errorf("blank candidate must rank above shifted one, got %v", run.Attention)
	}
	if run.Attention[0].Severity <= run.Attention[1].Severity {
		t.Errorf("ranking not descending: %v", run.Attention)
	}
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()
	good := inkSlide()
	ground := &fakeCapturer{rasters: map[string]image.Image{"alpha#1": good}}
	candidate := &fakeCapturer{rasters: map[string]image.Image{"alpha#1": blankSlide()}}

	opts := testOptions()
	opts.ReportDir = filepath.Join(dir, "reports")
	opts.WriteReports = true
	e := New(ground, candidate, opts)
	run, err := e.EvaluateBatch(context.Background(), []*caseir.Case{oneSlideCase("alpha")})
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"slide1-diff.png", "slide1-side.png"} {
		if _, err := os.Stat(filepath.Join(opts.ReportDir, "alpha", name)); err != nil {
			t.Errorf("missing report raster %s: %v", name, err)
		}
	}

	jsonPath := filepath.Join(dir, "run.json")
	if err := WriteJSONReport(jsonPath, run); err != nil {
		t.Fatalf("WriteJSONReport: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var decoded RunResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if len(decoded.Cases) != 1 || decoded.Cases[0].Case != "alpha" {
		t.Errorf("decoded report lost the case results: %+v", decoded.Cases)
	}

	csvPath := filepath.Join(dir, "run.csv")
	if err := WriteCSVReport(csvPath, run); err != nil {
		t.Fatalf("WriteCSVReport: %v", err)
	}
	csvData, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	if len(lines) != 2 {
		t.Fatalf("want header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "alpha,1,false,") {
		t.Errorf("csv row = %q", lines[1])
	}
}

func TestCatalogResults(t *testing.T) {
	run := RunResult{Cases: []CaseResult{
		{Case: "a", Passed: true},
		{Case: "b", Passed: false, Reasons: []string{"metric:ssim"}},
	}}
	got := run.CatalogResults()
	if !got["a"].Passed || got["b"].Passed {
		t.Errorf("catalog results wrong: %+v", got)
	}
	if len(got["b"].Reasons) != 1 || got["b"].Reasons[0] != "metric:ssim" {
		t.Errorf("reasons lost: %+v", got["b"])
	}
}
