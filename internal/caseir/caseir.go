// Package caseir holds the typed intermediate representation of a declarative
// slide-layout case: one case, ordered slides, ordered tagged nodes per slide.
package caseir

import "fmt"

// Kind tags a node variant.
type Kind string

const (
	KindShape      Kind = "shape"
	KindSmartArt   Kind = "smartart"
	KindTextBox    Kind = "textbox"
	KindChart      Kind = "chart"
	KindTable      Kind = "table"
	KindConnector  Kind = "connector"
	KindFillStroke Kind = "fillstroke"
)

var supportedKinds = map[Kind]bool{
	KindShape:      true,
	KindSmartArt:   true,
	KindTextBox:    true,
	KindChart:      true,
	KindTable:      true,
	KindConnector:  true,
	KindFillStroke: true,
}

// Case is a single declarative test input.
type Case struct {
	Name   string
	Slides []Slide
}

// Slide is an ordered list of nodes.
type Slide struct {
	Nodes []Node
}

// Node is a tagged variant; concrete types below carry kind-specific fields.
type Node interface {
	Kind() Kind
}

// Box is the shared position/size quad, in points.
type Box struct {
	Left, Top, Width, Height float64
}

// ShapeNode places a preset auto-shape by type identifier.
type ShapeNode struct {
	TypeID string
	Box
}

func (ShapeNode) Kind() Kind { return KindShape }

// SmartArtNode places a SmartArt graphic by layout key.
type SmartArtNode struct {
	Layout string
	Box
}

func (SmartArtNode) Kind() Kind { return KindSmartArt }

// TextBoxNode places free text. Text is escaped by the compiler.
type TextBoxNode struct {
	Text string
	Box
}

func (TextBoxNode) Kind() Kind { return KindTextBox }

// ChartNode places a chart by type identifier.
type ChartNode struct {
	TypeID string
	Box
}

func (ChartNode) Kind() Kind { return KindChart }

// TableNode places a rows×cols table.
type TableNode struct {
	Rows, Cols int
	Box
}

func (TableNode) Kind() Kind { return KindTable }

// ConnectorNode places a connector between two anchor points.
type ConnectorNode struct {
	Type                     string
	BeginX, BeginY, EndX, EndY float64
}

func (ConnectorNode) Kind() Kind { return KindConnector }

// FillStrokeNode places a rectangle probing a fill/stroke combination.
type FillStrokeNode struct {
	FillKind, StrokeKind string
	Box
}

func (FillStrokeNode) Kind() Kind { return KindFillStroke }

// ValidationError reports a malformed case descriptor. It always fails the
// case before any automation call is attempted.
type ValidationError struct {
	Case  string
	Field string // offending field or node kind; empty for structural problems
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("case %s: %s (%s)", e.Case, e.Msg, e.Field)
	}
	return fmt.Sprintf("case %s: %s", e.Case, e.Msg)
}
