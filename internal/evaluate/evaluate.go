// Package evaluate runs the comparison pipeline: capture rendered slides,
// score them against the ground truth, gate the results and aggregate a
// run-level verdict.
package evaluate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"slidegauge/internal/capture"
	"slidegauge/internal/caseir"
	"slidegauge/internal/catalog"
	"slidegauge/internal/gate"
	"slidegauge/internal/logging"
	"slidegauge/internal/metrics"
	"slidegauge/internal/structural"
)

// DefaultConcurrency bounds how many cases are compared at once. Capture
// and comparison are CPU and browser bound; eight keeps a workstation
// responsive.
const DefaultConcurrency = 8

// Options configure an evaluation run.
type Options struct {
	TestdataDir string
	ReportDir   string
	// Concurrency caps parallel case evaluation; zero means
	// DefaultConcurrency.
	Concurrency int
	Metrics     metrics.Config
	Verdict     gate.VerdictThresholds
	Gate        gate.Thresholds
	// WriteReports emits diff heatmaps and side-by-side rasters for
	// slides that fail or need review.
	WriteReports bool
	// Extractor, when set, adds structural text coverage and shape
	// recall to the aggregates.
	Extractor structural.Extractor
}

// SlideResult is one slide's comparison outcome. A capture or comparison
// failure is recorded inline so the rest of the case still evaluates.
type SlideResult struct {
	SlideIdx int             `json:"slide_idx"`
	Metrics  *metrics.Result `json:"metrics,omitempty"`
	Verdict  *gate.Verdict   `json:"verdict,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// CaseResult is one case's outcome.
type CaseResult struct {
	Case        string             `json:"case"`
	Slides      []SlideResult      `json:"slides"`
	Averages    map[string]float64 `json:"averages,omitempty"`
	Passed      bool               `json:"passed"`
	NeedsReview bool               `json:"needs_review"`
	Reasons     []string           `json:"reasons,omitempty"`
	Bucket      string             `json:"bucket,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// RunResult is the whole run's outcome. Cases are sorted by name.
type RunResult struct {
	Cases      []CaseResult         `json:"cases"`
	Aggregates map[string]float64   `json:"aggregates,omitempty"`
	Gate       gate.GateResult      `json:"gate"`
	Attention  []gate.AttentionItem `json:"attention,omitempty"`
}

// Cache memoizes slide comparisons within a run, keyed "<case>#<slide>".
// Re-evaluating a scope after a partial failure skips finished work.
type Cache interface {
	Get(key string) (metrics.Result, bool)
	Put(key string, r metrics.Result)
}

// MemoryCache is the default run-scoped Cache.
type MemoryCache struct {
	mu sync.Mutex
	m  map[string]metrics.Result
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{m: map[string]metrics.Result{}} }

func (c *MemoryCache) Get(key string) (metrics.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[key]
	return r, ok
}

func (c *MemoryCache) Put(key string, r metrics.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = r
}

// Evaluator compares candidate renderings against ground truth.
type Evaluator struct {
	ground    capture.Capturer
	candidate capture.Capturer
	opts      Options
	cache     Cache
	log       *slog.Logger
}

// Option adjusts an Evaluator.
type Option func(*Evaluator)

// WithCache injects a comparison cache.
func WithCache(c Cache) Option {
	return func(e *Evaluator) { e.cache = c }
}

// New builds an evaluator. ground supplies the reference rasters,
// candidate the rasters of the engine under test.
func New(ground, candidate capture.Capturer, opts Options, extra ...Option) *Evaluator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	e := &Evaluator{
		ground:    ground,
		candidate: candidate,
		opts:      opts,
		cache:     NewMemoryCache(),
		log:       logging.New("evaluate"),
	}
	for _, o := range extra {
		o(e)
	}
	return e
}

// EvaluateCase scores every slide of one case. Slide failures are inline;
// the returned result always covers all slides.
func (e *Evaluator) EvaluateCase(ctx context.Context, c *caseir.Case) CaseResult {
	res := CaseResult{Case: c.Name}
	var verdicts []gate.Verdict
	var refStds []float64
	sums := map[string]float64{}
	var scored int
	hadSlideError := false

	for i := range c.Slides {
		slideIdx := i + 1
		sr := SlideResult{SlideIdx: slideIdx}
		m, err := e.compareSlide(ctx, c.Name, slideIdx)
		if err != nil {
			e.log.Warn("slide evaluation failed", "case", c.Name, "slide", slideIdx, "error", err)
			sr.Error = err.Error()
			hadSlideError = true
			res.Slides = append(res.Slides, sr)
			continue
		}
		v := gate.EvaluateSlide(m.Map(), e.opts.Verdict)
		sr.Metrics = &m
		sr.Verdict = &v
		res.Slides = append(res.Slides, sr)

		verdicts = append(verdicts, v)
		refStds = append(refStds, m.RefStddev)
		for k, val := range m.Map() {
			sums[k] += val
		}
		scored++

		if e.opts.WriteReports && (!v.Passed || v.NeedsReview) {
			if err := e.writeSlideReports(ctx, c.Name, slideIdx); err != nil {
				e.log.Warn("report raster write failed", "case", c.Name, "slide", slideIdx, "error", err)
			}
		}
	}

	if scored > 0 {
		res.Averages = make(map[string]float64, len(sums))
		for k, sum := range sums {
			res.Averages[k] = sum / float64(scored)
		}
	}

	res.Reasons = gate.ClassifyCaseOutcome(refStds, verdicts)
	if hadSlideError {
		res.Reasons = append(res.Reasons, "error:slide_evaluation_failed")
	}
	res.Passed = !hadSlideError && scored > 0
	for _, v := range verdicts {
		if !v.Passed {
			res.Passed = false
		}
		if v.NeedsReview {
			res.NeedsReview = true
		}
	}
	// A near-uniform ground truth means the reference itself is broken;
	// nothing measured against it can be trusted.
	for _, std := range refStds {
		if std < gate.BlankStddevMax {
			res.Passed = false
		}
	}
	if !res.Passed {
		res.Bucket = gate.BucketFailure(res.Reasons)
	}
	return res
}

// compareSlide captures both rasters and scores them, consulting the run
// cache first.
func (e *Evaluator) compareSlide(ctx context.Context, caseName string, slideIdx int) (metrics.Result, error) {
	key := fmt.Sprintf("%s#%d", caseName, slideIdx)
	if m, ok := e.cache.Get(key); ok {
		return m, nil
	}
	ref, err := e.ground.CaptureSlide(ctx, caseName, slideIdx)
	if err != nil {
		return metrics.Result{}, fmt.Errorf("ground truth: %w", err)
	}
	cand, err := e.candidate.CaptureSlide(ctx, caseName, slideIdx)
	if err != nil {
		return metrics.Result{}, fmt.Errorf("candidate: %w", err)
	}
	m, err := metrics.Compare(ref, cand, e.opts.Metrics)
	if err != nil {
		return metrics.Result{}, err
	}
	e.cache.Put(key, m)
	return m, nil
}

// EvaluateBatch evaluates cases with bounded concurrency. Per-case
// failures are recorded in the result, never propagated; the error return
// covers only context cancellation.
func (e *Evaluator) EvaluateBatch(ctx context.Context, cases []*caseir.Case) (RunResult, error) {
	results := make([]CaseResult, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.EvaluateCase(gctx, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RunResult{}, err
	}
	return e.assemble(cases, results), nil
}

func (e *Evaluator) assemble(cases []*caseir.Case, results []CaseResult) RunResult {
	sort.Slice(results, func(i, j int) bool { return results[i].Case < results[j].Case })
	run := RunResult{Cases: results}

	sums := map[string]float64{}
	counts := map[string]int{}
	var attention []gate.AttentionItem
	for _, cr := range results {
		for _, sr := range cr.Slides {
			if sr.Metrics == nil {
				continue
			}
			for k, v := range sr.Metrics.Map() {
				sums[k] += v
				counts[k]++
			}
			if sr.Verdict != nil && (!sr.Verdict.Passed || sr.Verdict.NeedsReview) {
				attention = append(attention, gate.AttentionItem{
					Case:     cr.Case,
					SlideIdx: sr.SlideIdx,
					Severity: gate.Severity(sr.Metrics.Map()),
					Reasons:  sr.Verdict.Reasons(),
				})
			}
		}
	}
	run.Aggregates = make(map[string]float64, len(sums)+2)
	for k, sum := range sums {
		run.Aggregates[k] = sum / float64(counts[k])
	}

	if e.opts.Extractor != nil {
		e.addStructuralAggregates(cases, run.Aggregates)
	}

	run.Gate = gate.AggregateQualityGate(run.Aggregates, e.opts.Gate)
	run.Attention = gate.BuildAttentionRanking(attention)
	return run
}

// addStructuralAggregates extracts each case's structural tree and folds
// text coverage and shape recall into the run aggregates. Extraction
// failures degrade those metrics instead of aborting the run.
func (e *Evaluator) addStructuralAggregates(cases []*caseir.Case, agg map[string]float64) {
	var coverage, recall float64
	var n int
	for _, c := range cases {
		pres, err := e.opts.Extractor.Extract(context.Background(), documentPath(e.opts.TestdataDir, c.Name))
		if err != nil {
			e.log.Warn("structural extraction failed", "case", c.Name, "error", err)
			pres = nil
		}
		coverage += structural.TextCoverage(c, pres)
		recall += structural.ShapeRecall(c, pres)
		n++
	}
	if n > 0 {
		agg["text_coverage"] = coverage / float64(n)
		agg["shape_recall"] = recall / float64(n)
	}
}

// CatalogResults converts a run into the per-case records the support
// catalog merges.
func (r RunResult) CatalogResults() map[string]catalog.RunResult {
	out := make(map[string]catalog.RunResult, len(r.Cases))
	for _, cr := range r.Cases {
		out[cr.Case] = catalog.RunResult{Passed: cr.Passed, Reasons: cr.Reasons}
	}
	return out
}

// FailingCases lists failing case names, sorted.
func (r RunResult) FailingCases() []string {
	var out []string
	for _, cr := range r.Cases {
		if !cr.Passed {
			out = append(out, cr.Case)
		}
	}
	sort.Strings(out)
	return out
}
