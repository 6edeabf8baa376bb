// Package fetch retrieves storefront pages. It always tries a fast static
// HTTP fetch first and escalates to headless-browser rendering when the
// static response looks like a JavaScript shell, lacks product markup, or
// was blocked by bot protection.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rekohub/storefront-scraper/internal/models"
	"github.com/rekohub/storefront-scraper/internal/platform"
)

// Renderer produces a fully rendered DOM for a URL. The browser package
// implements it; tests substitute fakes.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// userAgents is rotated per request to avoid a static fingerprint.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-US,en;q=0.8,fr;q=0.6",
	"en-GB,en;q=0.9",
}

// blockKeywords mark interstitial / challenge pages that came back with a
// 200 status.
var blockKeywords = []string{
	"bot detection",
	"access denied",
	"just a moment",
	"captcha",
	"are you human",
	"verify your identity",
	"request blocked",
}

const maxBodyBytes = 4 << 20

type Options struct {
	Timeout     time.Duration
	RequestsPer time.Duration // interval between outbound requests
	Client      *http.Client
	Renderer    Renderer
	Cache       *Cache
}

type Fetcher struct {
	client   *http.Client
	renderer Renderer
	cache    *Cache
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPer > 0 {
		limit = rate.Every(opts.RequestsPer)
	}

	return &Fetcher{
		client:   client,
		renderer: opts.Renderer,
		cache:    opts.Cache,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   slog.Default().With("component", "fetcher"),
	}
}

// Fetch retrieves a page, static-first with render escalation. The returned
// error, when non-nil, is always a *FetchError and is per-URL: callers skip
// the URL and keep going.
func (f *Fetcher) Fetch(ctx context.Context, url string) (models.PageContent, error) {
	if html, ok := f.cache.Get(ctx, url); ok {
		return models.PageContent{URL: url, HTML: html, FetchedAt: time.Now()}, nil
	}

	html, err := f.fetchStatic(ctx, url)
	if err != nil {
		if KindOf(err) == KindBlocked && f.renderer != nil {
			return f.render(ctx, url)
		}
		return models.PageContent{}, err
	}

	// A page with no product markup, or with SPA framework markers, is
	// assumed to need JavaScript to produce its real DOM.
	if f.renderer != nil && (platform.LooksRendered(html) || !platform.HasProductMarkers(html)) {
		if page, rerr := f.render(ctx, url); rerr == nil {
			return page, nil
		}
		f.logger.Warn("render escalation failed, using static html", "url", url)
	}

	f.cache.Set(ctx, url, html)
	return models.PageContent{URL: url, HTML: html, FetchedAt: time.Now()}, nil
}

// FetchStatic retrieves a page without ever escalating to the renderer.
// Discovery uses it for sitemaps and category probes.
func (f *Fetcher) FetchStatic(ctx context.Context, url string) (models.PageContent, error) {
	if html, ok := f.cache.Get(ctx, url); ok {
		return models.PageContent{URL: url, HTML: html, FetchedAt: time.Now()}, nil
	}
	html, err := f.fetchStatic(ctx, url)
	if err != nil {
		return models.PageContent{}, err
	}
	f.cache.Set(ctx, url, html)
	return models.PageContent{URL: url, HTML: html, FetchedAt: time.Now()}, nil
}

// CanRender reports whether a renderer is wired in.
func (f *Fetcher) CanRender() bool {
	return f.renderer != nil
}

func (f *Fetcher) fetchStatic(ctx context.Context, url string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", newFetchError(KindTimeout, url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", newFetchError(KindNetwork, url, err)
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguages[rand.Intn(len(acceptLanguages))])

	resp, err := f.client.Do(req)
	if err != nil {
		return "", newFetchError(classify(err, 0), url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", newFetchError(classify(err, 0), url, err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := classify(nil, resp.StatusCode)
		return "", newFetchError(kind, url, fmt.Errorf("http status %d", resp.StatusCode))
	}

	html := string(body)
	if looksBlocked(html) {
		return "", newFetchError(KindBlocked, url, fmt.Errorf("bot challenge page"))
	}
	return html, nil
}

func (f *Fetcher) render(ctx context.Context, url string) (models.PageContent, error) {
	html, err := f.renderer.Render(ctx, url)
	if err != nil {
		return models.PageContent{}, newFetchError(classify(err, 0), url, err)
	}
	f.cache.Set(ctx, url, html)
	return models.PageContent{URL: url, HTML: html, Rendered: true, FetchedAt: time.Now()}, nil
}

func looksBlocked(html string) bool {
	lower := strings.ToLower(html)
	for _, keyword := range blockKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
