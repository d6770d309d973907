package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"slidegauge/internal/caseir"
)

func oneShapeCase(t *testing.T) *caseir.Case {
	t.Helper()
	data := []byte(`{"slides":[{"nodes":[{"kind":"shape","shapeTypeId":1,"left":120,"top":80,"width":400,"height":280}]}]}`)
	c, err := caseir.Load("one-shape", data, ".json")
	if err != nil {
		t.Fatalf("load case: %v", err)
	}
	return c
}

func TestCompile_HeaderOrderAndShapeLine(t *testing.T) {
	lines, err := Compile(oneShapeCase(t), Sinks{DocumentPath: "/tmp/out.pptx", ExportPath: "/tmp/out.pdf"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []string{
		"OUT_PPTX|/tmp/out.pptx",
		"OUT_PDF|/tmp/out.pdf",
		"SLIDE",
		"SHAPE|1|120|80|400|280",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("script mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_PNGHeaderOnlyWhenRequested(t *testing.T) {
	c := oneShapeCase(t)

	lines, err := Compile(c, Sinks{DocumentPath: "a.pptx", ExportPath: "a.pdf"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, l := range lines {
		if strings.HasPrefix(l, "OUT_PNG|") {
			t.Errorf("OUT_PNG emitted without raster prefix: %q", l)
		}
	}

	lines, err = Compile(c, Sinks{
		DocumentPath: "a.pptx", ExportPath: "a.pdf",
		RasterPrefix: "/tmp/out", RasterWidth: 1920, RasterHeight: 1080,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if lines[2] != "OUT_PNG|/tmp/out|1920|1080" {
		t.Errorf("OUT_PNG line = %q", lines[2])
	}
}

func TestCompile_PNGWidthWithoutHeight(t *testing.T) {
	lines, err := Compile(oneShapeCase(t), Sinks{
		DocumentPath: "a.pptx", ExportPath: "a.pdf", RasterPrefix: "p", RasterWidth: 960,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if lines[2] != "OUT_PNG|p|960" {
		t.Errorf("OUT_PNG line = %q", lines[2])
	}
}

func TestCompile_IntegralFloatsDropDecimalPoint(t *testing.T) {
	data := []byte(`{"slides":[{"nodes":[{"kind":"connector","connectorType":2,"beginX":100.0,"beginY":50.5,"endX":300,"endY":200}]}]}`)
	c, err := caseir.Load("conn", data, ".json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	lines, err := Compile(c, Sinks{DocumentPath: "a.pptx", ExportPath: "a.pdf"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := lines[3]; got != "CONNECTOR|2|100|50.5|300|200" {
		t.Errorf("connector line = %q", got)
	}
}

func TestCompile_TextboxPipeEscaping(t *testing.T) {
	data := []byte(`{"slides":[{"nodes":[{"kind":"textbox","text":"a|b|c","left":0,"top":0,"width":10,"height":10}]}]}`)
	c, err := caseir.Load("tb", data, ".json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	lines, err := Compile(c, Sinks{DocumentPath: "a.pptx", ExportPath: "a.pdf"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := lines[3]; got != "TEXTBOX|a/b/c|0|0|10|10" {
		t.Errorf("textbox line = %q", got)
	}
}

func TestCompile_MultiSlideBlocks(t *testing.T) {
	data := []byte(`{"slides":[
		{"nodes":[{"kind":"shape","shapeTypeId":5,"left":0,"top":0,"width":10,"height":10}]},
		{"nodes":[{"kind":"table","rows":2,"cols":2,"left":0,"top":0,"width":10,"height":10}]}
	]}`)
	c, err := caseir.Load("multi", data, ".json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	lines, err := Compile(c, Sinks{DocumentPath: "a.pptx", ExportPath: "a.pdf"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []string{
		"OUT_PPTX|a.pptx",
		"OUT_PDF|a.pdf",
		"SLIDE",
		"SHAPE|5|0|0|10|10",
		"SLIDE",
		"TABLE|2|2|0|0|10|10",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("script mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteScript_CreatesDirsAndTerminates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "spec.txt")
	if err := WriteScript(path, oneShapeCase(t), Sinks{DocumentPath: "a.pptx", ExportPath: "a.pdf"}, CRLF); err != nil {
		t.Fatalf("WriteScript: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	text := string(data)
	if !strings.HasSuffix(text, "\r\n") {
		t.Error("script should end with trailing CRLF")
	}
	if strings.Contains(strings.ReplaceAll(text, "\r\n", ""), "\n") {
		t.Error("found bare LF in CRLF-terminated script")
	}
	if !strings.HasPrefix(text, "OUT_PPTX|a.pptx\r\nOUT_PDF|a.pdf\r\n") {
		t.Errorf("unexpected header: %q", text)
	}
}
