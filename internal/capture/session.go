package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
)

// Defaults for the browser session.
const (
	defaultRenderTimeout = 45 * time.Second
	slideSelector        = "#slide-container"
)

// SessionConfig configures the headless browser capture session.
type SessionConfig struct {
	// BaseURL is where the render harness is served, without trailing
	// slash.
	BaseURL string
	// RenderTimeout bounds one slide's render wait. Zero means the
	// default.
	RenderTimeout time.Duration
}

// Session drives the engine's browser harness headlessly. One browser
// process serves the whole run; per-slide navigation is cheap.
type Session struct {
	cfg    SessionConfig
	ctx    context.Context
	cancel func()
}

// NewSession launches a headless browser. Close releases it.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.RenderTimeout == 0 {
		cfg.RenderTimeout = defaultRenderTimeout
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so a missing binary fails here, not on
	// the first slide.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("capture: launch browser: %w", err)
	}
	cancel := func() {
		browserCancel()
		allocCancel()
	}
	return &Session{cfg: cfg, ctx: browserCtx, cancel: cancel}, nil
}

// Close shuts the browser down.
func (s *Session) Close() error {
	s.cancel()
	return nil
}

// CaptureSlide renders one slide in the harness page and screenshots the
// slide container. The harness signals completion through
// window.__renderDone and failure through window.__renderError.
func (s *Session) CaptureSlide(ctx context.Context, caseName string, slideIdx int) (image.Image, error) {
	pageURL := fmt.Sprintf("%s/test/pages/render-slide.html?file=%s&slide=%d",
		s.cfg.BaseURL, url.QueryEscape(documentPath(caseName)), slideIdx)

	runCtx, cancel := context.WithTimeout(s.ctx, s.cfg.RenderTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var settled bool
	var renderErr string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Poll(
			`window.__renderDone === true || typeof window.__renderError === "string"`,
			&settled,
			chromedp.WithPollingTimeout(s.cfg.RenderTimeout),
		),
		chromedp.Evaluate(`window.__renderError || ""`, &renderErr),
	)
	if err != nil {
		return nil, fmt.Errorf("capture: render %s slide %d: %w", caseName, slideIdx, err)
	}
	if renderErr != "" {
		return nil, fmt.Errorf("capture: harness failed rendering %s slide %d: %s", caseName, slideIdx, renderErr)
	}

	var buf []byte
	err = chromedp.Run(runCtx, chromedp.Screenshot(slideSelector, &buf, chromedp.NodeVisible))
	if err != nil {
		// Harness variants without the container id fall back to the
		// whole viewport.
		if fullErr := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); fullErr != nil {
			return nil, fmt.Errorf("capture: screenshot %s slide %d: %w", caseName, slideIdx, err)
		}
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("capture: decode screenshot: %w", err)
	}
	return img, nil
}
