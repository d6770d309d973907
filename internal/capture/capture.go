// Package capture obtains rasters of rendered slides, from the browser
// harness of the engine under test, from a remote render service, or from
// rasters already on disk.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"path/filepath"

	"slidegauge/internal/metrics"
)

// Capturer obtains the rendered raster for one slide of a case. Slide
// indices are 1-based.
type Capturer interface {
	CaptureSlide(ctx context.Context, caseName string, slideIdx int) (image.Image, error)
}

// DirCapturer serves rasters already exported to disk under
// <root>/cases/<case>/slides/slideN.png. Used for ground-truth slides and
// for offline re-evaluation of a previous capture run.
type DirCapturer struct {
	Root string
}

func (d DirCapturer) CaptureSlide(_ context.Context, caseName string, slideIdx int) (image.Image, error) {
	path := filepath.Join(d.Root, "cases", caseName, "slides", fmt.Sprintf("slide%d.png", slideIdx))
	return metrics.LoadImage(path)
}

// RemoteCapturer fetches rasters from a render service that answers
// GET /render/<case>/slide/<n>.png with a PNG body.
type RemoteCapturer struct {
	BaseURL string
	Client  *http.Client
}

func (r RemoteCapturer) CaptureSlide(ctx context.Context, caseName string, slideIdx int) (image.Image, error) {
	u := fmt.Sprintf("%s/render/%s/slide/%d.png",
		r.BaseURL, url.PathEscape(caseName), slideIdx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("capture: build request: %w", err)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capture: fetch %s slide %d: %w", caseName, slideIdx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("capture: render service returned %d for %s slide %d: %s",
			resp.StatusCode, caseName, slideIdx, bytes.TrimSpace(body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("capture: read render response: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("capture: decode render response: %w", err)
	}
	return img, nil
}

// documentPath is the harness-relative path of a case's source document.
func documentPath(caseName string) string {
	return "testdata/cases/" + caseName + "/source.pptx"
}
