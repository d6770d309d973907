package caseir

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_OneShapeJSON(t *testing.T) {
	data := []byte(`{"slides":[{"nodes":[{"kind":"shape","shapeTypeId":1,"left":120,"top":80,"width":400,"height":280}]}]}`)
	c, err := Load("one-shape", data, ".json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := &Case{Name: "one-shape", Slides: []Slide{{Nodes: []Node{
		&ShapeNode{TypeID: "1", Box: Box{Left: 120, Top: 80, Width: 400, Height: 280}},
	}}}}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("case mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_YAMLDetectedByContent(t *testing.T) {
	data := []byte("slides:\n  - nodes:\n      - kind: textbox\n        text: hello\n        left: 10\n        top: 20\n        width: 100\n        height: 50\n")
	c, err := Load("textbox", data, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	node, ok := c.Slides[0].Nodes[0].(*TextBoxNode)
	if !ok {
		t.Fatalf("want *TextBoxNode, got %T", c.Slides[0].Nodes[0])
	}
	if node.Text != "hello" || node.Width != 100 {
		t.Errorf("unexpected node: %+v", node)
	}
}

func TestLoad_EmptySlides(t *testing.T) {
	_, err := Load("empty", []byte(`{"slides":[]}`), ".json")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestLoad_UnknownKind(t *testing.T) {
	data := []byte(`{"slides":[{"nodes":[{"kind":"hologram","left":0,"top":0,"width":1,"height":1}]}]}`)
	_, err := Load("bad", data, ".json")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if verr.Field != "hologram" {
		t.Errorf("error should name the offending kind, got field %q", verr.Field)
	}
}

func TestLoad_MissingField(t *testing.T) {
	data := []byte(`{"slides":[{"nodes":[{"kind":"connector","connectorType":2,"beginX":0,"beginY":0,"endX":50}]}]}`)
	_, err := Load("conn", data, ".json")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if verr.Field != "endY" {
		t.Errorf("want missing field endY, got %q", verr.Field)
	}
}

func TestLoad_AllKinds(t *testing.T) {
	data := []byte(`{"slides":[{"nodes":[
		{"kind":"shape","shapeTypeId":9,"left":0,"top":0,"width":10,"height":10},
		{"kind":"smartart","layout":"hierarchy1","left":0,"top":0,"width":10,"height":10},
		{"kind":"chart","chartTypeId":51,"left":0,"top":0,"width":10,"height":10},
		{"kind":"table","rows":3,"cols":4,"left":0,"top":0,"width":10,"height":10},
		{"kind":"connector","connectorType":2,"beginX":1,"beginY":2,"endX":3,"endY":4},
		{"kind":"fillstroke","fillKind":"gradient","strokeKind":"dash","left":0,"top":0,"width":10,"height":10},
		{"kind":"textbox","text":"t","left":0,"top":0,"width":10,"height":10}
	]}]}`)
	c, err := Load("all", data, ".json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	kinds := []Kind{KindShape, KindSmartArt, KindChart, KindTable, KindConnector, KindFillStroke, KindTextBox}
	if len(c.Slides[0].Nodes) != len(kinds) {
		t.Fatalf("want %d nodes, got %d", len(kinds), len(c.Slides[0].Nodes))
	}
	for i, want := range kinds {
		if got := c.Slides[0].Nodes[i].Kind(); got != want {
			t.Errorf("node %d: kind %q, want %q", i, got, want)
		}
	}
	tbl := c.Slides[0].Nodes[3].(*TableNode)
	if tbl.Rows != 3 || tbl.Cols != 4 {
		t.Errorf("table rows/cols = %d/%d, want 3/4", tbl.Rows, tbl.Cols)
	}
}

func TestLoad_ShapeLegacyToken(t *testing.T) {
	data := []byte(`{"slides":[{"nodes":[{"kind":"shape","shape":"star5","left":0,"top":0,"width":10,"height":10}]}]}`)
	c, err := Load("legacy", data, ".json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Slides[0].Nodes[0].(*ShapeNode).TypeID; got != "star5" {
		t.Errorf("TypeID = %q, want star5", got)
	}
}
