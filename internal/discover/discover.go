// Package discover finds candidate product URLs for a storefront. It tries
// the cheap sources first (sitemaps, well-known category paths) and only
// falls back to a bounded breadth-first crawl of same-host links when those
// come up empty.
package discover

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rekohub/storefront-scraper/internal/models"
)

// staticFetcher is the slice of the fetch layer discovery needs. Sitemaps
// and category probes never justify spinning up the renderer.
type staticFetcher interface {
	FetchStatic(ctx context.Context, url string) (models.PageContent, error)
}

const (
	defaultMaxLinks  = 300
	defaultCrawlSize = 2048
	crawlDepth       = 2
	crawlDelay       = 300 * time.Millisecond
)

type Options struct {
	MaxLinks  int
	Transport http.RoundTripper // injected by tests
	UserAgent string
}

type Discoverer struct {
	fetcher   staticFetcher
	maxLinks  int
	transport http.RoundTripper
	userAgent string
	logger    *slog.Logger
}

func New(fetcher staticFetcher, opts Options) *Discoverer {
	maxLinks := opts.MaxLinks
	if maxLinks <= 0 {
		maxLinks = defaultMaxLinks
	}
	return &Discoverer{
		fetcher:   fetcher,
		maxLinks:  maxLinks,
		transport: opts.Transport,
		userAgent: opts.UserAgent,
		logger:    slog.Default().With("component", "discoverer"),
	}
}

// Discover returns up to MaxLinks candidate product URLs for the storefront
// root, deduplicated after normalization. rootPage is the already-fetched
// root so its links are mined without a second fetch. onProgress, when
// non-nil, is invoked with the running count as candidates accumulate.
func (d *Discoverer) Discover(ctx context.Context, root string, rootPage models.PageContent, onProgress func(count int)) []models.CandidateLink {
	seen, _ := lru.New[string, struct{}](defaultCrawlSize)
	var out []models.CandidateLink

	add := func(raw, from string) bool {
		norm := NormalizeURL(raw)
		if norm == "" || !sameHost(norm, root) {
			return len(out) < d.maxLinks
		}
		if dup, _ := seen.ContainsOrAdd(norm, struct{}{}); dup {
			return len(out) < d.maxLinks
		}
		out = append(out, models.CandidateLink{NormalizedURL: norm, DiscoveredFrom: from})
		if onProgress != nil {
			onProgress(len(out))
		}
		return len(out) < d.maxLinks
	}

	for _, loc := range d.fromSitemaps(ctx, root) {
		if !add(loc, "sitemap") {
			return out
		}
	}
	if len(out) > 0 {
		d.logger.Info("discovery satisfied by sitemap", "root", root, "count", len(out))
		return out
	}

	d.fromHTML(rootPage, root, "root", add)
	d.fromCategoryProbes(ctx, root, add)

	// BFS is the expensive last resort: only when the cheap sources found
	// nothing at all.
	if len(out) == 0 {
		d.crawl(ctx, root, add)
	}

	d.logger.Info("discovery finished", "root", root, "count", len(out))
	return out
}

// fromHTML mines product links out of an already-fetched page.
func (d *Discoverer) fromHTML(page models.PageContent, root, from string, add func(raw, from string) bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return
	}
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		abs := absoluteURL(page.URL, href)
		if abs == "" || !looksLikeProductURL(abs) {
			return true
		}
		return add(abs, from)
	})
}

// fromCategoryProbes fetches the conventional listing paths directly and
// mines them for product links.
func (d *Discoverer) fromCategoryProbes(ctx context.Context, root string, add func(raw, from string) bool) {
	base := strings.TrimSuffix(root, "/")
	for _, path := range categoryProbePaths {
		if ctx.Err() != nil {
			return
		}
		page, err := d.fetcher.FetchStatic(ctx, base+path)
		if err != nil {
			continue
		}
		d.fromHTML(page, root, "category", add)
	}
}

// crawl runs a depth-bounded same-host BFS, following category-looking
// links and collecting product-looking ones.
func (d *Discoverer) crawl(ctx context.Context, root string, add func(raw, from string) bool) {
	rootURL, err := url.Parse(root)
	if err != nil {
		return
	}
	host := stripWWW(rootURL.Host)

	c := colly.NewCollector(
		colly.AllowedDomains(host, "www."+host),
		colly.MaxDepth(crawlDepth),
	)
	if d.transport != nil {
		c.WithTransport(d.transport)
	}
	if d.userAgent != "" {
		c.UserAgent = d.userAgent
	}
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: crawlDelay}); err != nil {
		d.logger.Warn("crawl limit rule rejected", "error", err)
	}

	done := false
	c.OnRequest(func(r *colly.Request) {
		if done || ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if done {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		if looksLikeProductURL(link) {
			if !add(link, "crawl") {
				done = true
			}
			return
		}
		if looksLikeCategoryURL(link) {
			// Visit errors here mean depth or revisit limits; not worth logging.
			_ = e.Request.Visit(link)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		d.logger.Debug("crawl fetch failed", "url", r.Request.URL.String(), "error", err)
	})

	if err := c.Visit(root); err != nil {
		d.logger.Warn("crawl could not start", "root", root, "error", err)
		return
	}
	c.Wait()
}

func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	refURL, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}
