package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDirCapturer(t *testing.T) {
	root := t.TempDir()
	slides := filepath.Join(root, "cases", "alpha", "slides")
	if err := os.MkdirAll(slides, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(slides, "slide2.png"), pngBytes(t, 16, 9), 0o644); err != nil {
		t.Fatal(err)
	}

	d := DirCapturer{Root: root}
	img, err := d.CaptureSlide(context.Background(), "alpha", 2)
	if err != nil {
		t.Fatalf("CaptureSlide: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 9 {
		t.Errorf("bounds = %v, want 16x9", img.Bounds())
	}

	if _, err := d.CaptureSlide(context.Background(), "alpha", 3); err == nil {
		t.Error("missing slide raster must error")
	}
}

func TestRemoteCapturer(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if strings.HasSuffix(r.URL.Path, "/9.png") {
			http.Error(w, "no such slide", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes(t, 32, 18))
	}))
	defer srv.Close()

	c := RemoteCapturer{BaseURL: srv.URL, Client: srv.Client()}
	img, err := c.CaptureSlide(context.Background(), "alpha", 1)
	if err != nil {
		t.Fatalf("CaptureSlide: %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("bounds = %v, want width 32", img.Bounds())
	}
	if gotPath != "/render/alpha/slide/1.png" {
		t.Errorf("request path = %q, want /render/alpha/slide/1.png", gotPath)
	}

	_, err = c.CaptureSlide(context.Background(), "alpha", 9)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("want status error carrying the code, got %v", err)
	}
}
