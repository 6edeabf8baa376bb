package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Browser wraps a single headless Chromium instance shared by all scrape
// sessions. Pages are cheap; the browser itself is expensive, so it is
// launched once and reused.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	logger  *slog.Logger

	// pages bounds how many browser pages may be open at once. Acquire
	// blocks when the pool is saturated.
	pages chan struct{}

	renderTimeout time.Duration
}

type Options struct {
	Headless       bool
	RenderTimeout  time.Duration
	MaxPages       int
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		RenderTimeout:  30 * time.Second,
		MaxPages:       3,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		ViewportWidth:  1280,
		ViewportHeight: 720,
		Locale:         "en-US",
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultOptions().MaxPages
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = DefaultOptions().RenderTimeout
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-extensions",
			"--disable-background-networking",
			"--mute-audio",
			"--no-first-run",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	ctx, err := b.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		Locale:            &opts.Locale,
		JavaScriptEnabled: playwright.Bool(true),
		AcceptDownloads:   playwright.Bool(false),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	})
	if err != nil {
		b.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:            pw,
		browser:       b,
		context:       ctx,
		logger:        slog.Default().With("component", "browser"),
		pages:         make(chan struct{}, opts.MaxPages),
		renderTimeout: opts.RenderTimeout,
	}, nil
}

// Render navigates a pooled page to url, waits for network idle up to the
// render timeout, and returns the rendered DOM. On a render timeout it
// returns whatever DOM was captured instead of failing outright.
func (b *Browser) Render(ctx context.Context, url string) (string, error) {
	if err := b.acquire(ctx); err != nil {
		return "", err
	}
	defer b.release()

	page, err := b.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	timeoutMs := float64(b.renderTimeout.Milliseconds())
	page.SetDefaultTimeout(timeoutMs)

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(timeoutMs),
	}); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}

	// Best-effort settle: a timeout here is fine, we capture whatever the
	// page managed to render.
	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(timeoutMs),
	}); err != nil {
		b.logger.Warn("render did not reach network idle", "url", url, "error", err)
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to capture rendered dom: %w", err)
	}
	return html, nil
}

func (b *Browser) acquire(ctx context.Context) error {
	select {
	case b.pages <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Browser) release() {
	<-b.pages
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
