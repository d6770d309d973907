package caseir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

type rawCase struct {
	Slides []rawSlide `json:"slides" yaml:"slides"`
}

type rawSlide struct {
	Nodes []map[string]any `json:"nodes" yaml:"nodes"`
}

// LoadFromPath reads a case file (JSON or YAML) and returns the validated Case.
// The case name is the file stem. Format is detected by extension
// (.json → JSON, .yaml/.yml → YAML) or by content (leading '{' → JSON).
func LoadFromPath(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Load(name, data, filepath.Ext(path))
}

// Load parses and validates a case from bytes. ext is the file extension for
// format hint; empty = detect from content.
func Load(name string, data []byte, ext string) (*Case, error) {
	var raw rawCase
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	switch ext {
	case ".yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse case yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse case json: %w", err)
		}
	default:
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			if err := json.Unmarshal(data, &raw); err != nil {
				return nil, fmt.Errorf("parse case json: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse case yaml: %w", err)
		}
	}
	return build(name, raw)
}

func build(name string, raw rawCase) (*Case, error) {
	if len(raw.Slides) == 0 {
		return nil, &ValidationError{Case: name, Msg: "case must contain a non-empty 'slides' array"}
	}
	c := &Case{Name: name, Slides: make([]Slide, 0, len(raw.Slides))}
	for _, rs := range raw.Slides {
		slide := Slide{Nodes: make([]Node, 0, len(rs.Nodes))}
		for _, rn := range rs.Nodes {
			node, err := buildNode(name, rn)
			if err != nil {
				return nil, err
			}
			slide.Nodes = append(slide.Nodes, node)
		}
		c.Slides = append(c.Slides, slide)
	}
	return c, nil
}

func buildNode(caseName string, m map[string]any) (Node, error) {
	kind := Kind(strings.ToLower(fmt.Sprintf("%v", m["kind"])))
	if !supportedKinds[kind] {
		return nil, &ValidationError{Case: caseName, Field: string(kind), Msg: "unsupported node kind"}
	}

	f := fieldReader{caseName: caseName, kind: kind, m: m}
	switch kind {
	case KindShape:
		// Accept either the numeric MsoAutoShapeType id or a legacy "shape" token.
		token, ok := f.optToken("shapeTypeId")
		if !ok {
			token = f.token("shape")
		}
		return &ShapeNode{TypeID: token, Box: f.box()}, f.err
	case KindSmartArt:
		return &SmartArtNode{Layout: f.token("layout"), Box: f.box()}, f.err
	case KindChart:
		return &ChartNode{TypeID: f.token("chartTypeId"), Box: f.box()}, f.err
	case KindTable:
		return &TableNode{Rows: f.intField("rows"), Cols: f.intField("cols"), Box: f.box()}, f.err
	case KindConnector:
		return &ConnectorNode{
			Type:   f.token("connectorType"),
			BeginX: f.num("beginX"),
			BeginY: f.num("beginY"),
			EndX:   f.num("endX"),
			EndY:   f.num("endY"),
		}, f.err
	case KindFillStroke:
		return &FillStrokeNode{FillKind: f.token("fillKind"), StrokeKind: f.token("strokeKind"), Box: f.box()}, f.err
	default: // textbox; text defaults to empty rather than erroring
		text := ""
		if v, ok := m["text"]; ok {
			text = fmt.Sprintf("%v", v)
		}
		return &TextBoxNode{Text: text, Box: f.box()}, f.err
	}
}

// fieldReader accumulates the first missing-field error while reading the
// kind-specific required fields.
type fieldReader struct {
	caseName string
	kind     Kind
	m        map[string]any
	err      error
}

func (f *fieldReader) fail(field, msg string) {
	if f.err == nil {
		f.err = &ValidationError{Case: f.caseName, Field: field, Msg: fmt.Sprintf("%s node: %s", f.kind, msg)}
	}
}

func (f *fieldReader) num(field string) float64 {
	v, ok := f.m[field]
	if !ok {
		f.fail(field, "missing required field")
		return 0
	}
	n, ok := toFloat(v)
	if !ok {
		f.fail(field, "field is not numeric")
		return 0
	}
	return n
}

func (f *fieldReader) intField(field string) int {
	v, ok := f.m[field]
	if !ok {
		f.fail(field, "missing required field")
		return 0
	}
	n, ok := toFloat(v)
	if !ok || n != float64(int(n)) {
		f.fail(field, "field is not an integer")
		return 0
	}
	return int(n)
}

// token reads a field that may be a string or a number; numbers with zero
// fractional part normalize to their integer string.
func (f *fieldReader) token(field string) string {
	t, ok := f.optToken(field)
	if !ok {
		f.fail(field, "missing required field")
	}
	return t
}

func (f *fieldReader) optToken(field string) (string, bool) {
	v, ok := f.m[field]
	if !ok {
		return "", false
	}
	if n, isNum := toFloat(v); isNum && n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10), true
	}
	return fmt.Sprintf("%v", v), true
}

func (f *fieldReader) box() Box {
	return Box{
		Left:   f.num("left"),
		Top:    f.num("top"),
		Width:  f.num("width"),
		Height: f.num("height"),
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
