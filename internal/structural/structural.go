// Package structural models what a rendering engine reports about a
// produced document, independent of pixels, and scores it against the
// case description. Pixel metrics tell you the slide looks right;
// structural metrics tell you the content survived.
package structural

import (
	"context"
	"strings"

	"slidegauge/internal/caseir"
)

// Shape is one rendered element as the engine under test reports it.
type Shape struct {
	Kind     caseir.Kind `json:"kind"`
	Box      caseir.Box  `json:"box"`
	Rotation float64     `json:"rotation,omitempty"`
	FlipH    bool        `json:"flip_h,omitempty"`
	FlipV    bool        `json:"flip_v,omitempty"`
	Text     string      `json:"text,omitempty"`
	// Rows carries cell text for table elements, row-major.
	Rows     [][]string `json:"rows,omitempty"`
	Children []Shape    `json:"children,omitempty"`
}

// Slide is the rendered element list for one slide.
type Slide struct {
	Shapes []Shape `json:"shapes"`
}

// Presentation is the structural tree of a rendered document.
type Presentation struct {
	Slides []Slide `json:"slides"`
}

// Extractor pulls the structural tree out of a rendered document. The
// browser-based extractor implements this; tests supply fakes.
type Extractor interface {
	Extract(ctx context.Context, documentPath string) (*Presentation, error)
}

// TextCoverage is the fraction of expected text runs found on their slide,
// compared case-insensitively with whitespace collapsed. A case that
// expects no text is fully covered.
func TextCoverage(c *caseir.Case, got *Presentation) float64 {
	var want, found int
	for i, slide := range c.Slides {
		var rendered []string
		if got != nil && i < len(got.Slides) {
			for _, s := range got.Slides[i].Shapes {
				if t := normalizeText(s.Text); t != "" {
					rendered = append(rendered, t)
				}
			}
		}
		haystack := strings.Join(rendered, " ")
		for _, node := range slide.Nodes {
			tb, ok := node.(*caseir.TextBoxNode)
			if !ok {
				continue
			}
			want++
			if strings.Contains(haystack, normalizeText(tb.Text)) {
				found++
			}
		}
	}
	if want == 0 {
		return 1.0
	}
	return float64(found) / float64(want)
}

// ShapeRecall is the fraction of expected elements the engine reports on
// the right slide, matched by kind and counted with multiplicity. A case
// that expects nothing scores full recall.
func ShapeRecall(c *caseir.Case, got *Presentation) float64 {
	var want, matched int
	for i, slide := range c.Slides {
		wantByKind := map[caseir.Kind]int{}
		for _, node := range slide.Nodes {
			wantByKind[node.Kind()]++
			want++
		}
		gotByKind := map[caseir.Kind]int{}
		if got != nil && i < len(got.Slides) {
			for _, s := range got.Slides[i].Shapes {
				gotByKind[s.Kind]++
			}
		}
		for kind, n := range wantByKind {
			m := gotByKind[kind]
			if m > n {
				m = n
			}
			matched += m
		}
	}
	if want == 0 {
		return 1.0
	}
	return float64(matched) / float64(want)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
