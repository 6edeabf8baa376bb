// Package scrape coordinates a full storefront scrape: root fetch, platform
// detection, link discovery, concurrent per-page extraction, and delivery.
// Only an unreachable root is fatal; every later failure is per-URL and the
// session finishes with whatever it managed to collect.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rekohub/storefront-scraper/internal/deliver"
	"github.com/rekohub/storefront-scraper/internal/extract"
	"github.com/rekohub/storefront-scraper/internal/fetch"
	"github.com/rekohub/storefront-scraper/internal/models"
	"github.com/rekohub/storefront-scraper/internal/platform"
	"github.com/rekohub/storefront-scraper/internal/price"
	"github.com/rekohub/storefront-scraper/internal/session"
)

// Fetcher is the slice of the fetch layer the orchestrator uses.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (models.PageContent, error)
	FetchStatic(ctx context.Context, url string) (models.PageContent, error)
}

// Discoverer yields candidate product links for a storefront root.
type Discoverer interface {
	Discover(ctx context.Context, root string, rootPage models.PageContent, onProgress func(count int)) []models.CandidateLink
}

const (
	defaultWorkers  = 4
	defaultItemCap  = 300
	defaultDeadline = 300 * time.Second

	// discovery progress is emitted every discoveryEmitEvery candidates to
	// keep the sink queue small on large stores.
	discoveryEmitEvery = 10
)

type Options struct {
	Workers  int
	ItemCap  int
	Deadline time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.ItemCap <= 0 || o.ItemCap > defaultItemCap {
		o.ItemCap = defaultItemCap
	}
	if o.Deadline <= 0 || o.Deadline > defaultDeadline {
		o.Deadline = defaultDeadline
	}
	return o
}

// Request is one scrape invocation. Sink may be nil when the caller only
// wants the synchronous result.
type Request struct {
	StoreURL string
	Sink     *deliver.Sink
}

// Result is the complete outcome of a session. Products are in completion
// order, which is not discovery order under concurrency.
type Result struct {
	SessionID string                     `json:"sessionId"`
	StoreURL  string                     `json:"storeUrl"`
	Platform  models.Platform            `json:"platform"`
	Products  []models.NormalizedProduct `json:"products"`
	Elapsed   time.Duration              `json:"-"`
}

type Orchestrator struct {
	fetcher    Fetcher
	discoverer Discoverer
	opts       Options
	logger     *slog.Logger
}

func New(fetcher Fetcher, discoverer Discoverer, opts Options) *Orchestrator {
	return &Orchestrator{
		fetcher:    fetcher,
		discoverer: discoverer,
		opts:       opts.withDefaults(),
		logger:     slog.Default().With("component", "orchestrator"),
	}
}

// Run executes one session. The returned error is non-nil only when the
// root URL itself could not be fetched; partial results under the deadline
// are a success.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.Deadline)
	defer cancel()

	sessionsActive.Inc()
	defer sessionsActive.Dec()

	sess := session.New(req.StoreURL, req.Sink)
	logger := o.logger.With("session_id", sess.ID, "store_url", req.StoreURL)

	sess.Emit(models.PhaseDiscovery, "fetching storefront", nil)

	rootPage, err := o.fetcher.Fetch(ctx, req.StoreURL)
	if err != nil {
		fetchFailures.WithLabelValues(string(fetch.KindOf(err))).Inc()
		sess.Emit(models.PhaseError, "storefront unreachable", nil)
		logger.Error("root fetch failed", "error", err)
		return nil, fmt.Errorf("storefront unreachable: %w", err)
	}
	pagesFetched.WithLabelValues(strconv.FormatBool(rootPage.Rendered)).Inc()

	detected := platform.Detect(rootPage)
	logger.Info("platform detected", "platform", detected)

	links := o.discoverer.Discover(ctx, req.StoreURL, rootPage, func(count int) {
		sess.RecordDiscovered(int64(count))
		if count%discoveryEmitEvery == 0 {
			sess.Emit(models.PhaseDiscovery, "discovering products", nil)
		}
	})
	sess.RecordDiscovered(int64(len(links)))

	// A storefront whose root is itself a product page has nothing to
	// discover; scrape the root directly.
	if len(links) == 0 {
		links = []models.CandidateLink{{NormalizedURL: rootPage.URL, DiscoveredFrom: "root"}}
		sess.RecordDiscovered(1)
	}

	total := int64(len(links))
	sess.Emit(models.PhaseScraping, fmt.Sprintf("scraping %d pages", total), &total)

	products := o.scrapeAll(ctx, sess, detected, links, rootPage, req.Sink)

	sess.Emit(models.PhaseComplete, fmt.Sprintf("imported %d products", len(products)), &total)
	sessionDuration.WithLabelValues(string(detected)).Observe(sess.Elapsed().Seconds())
	logger.Info("session complete",
		"platform", detected,
		"discovered", sess.Discovered(),
		"products", len(products),
		"elapsed", sess.Elapsed())

	return &Result{
		SessionID: sess.ID,
		StoreURL:  req.StoreURL,
		Platform:  detected,
		Products:  products,
		Elapsed:   sess.Elapsed(),
	}, nil
}

// scrapeAll fans candidate links out over the worker pool and collects
// normalized products up to the item cap.
func (o *Orchestrator) scrapeAll(ctx context.Context, sess *session.Session, detected models.Platform, links []models.CandidateLink, rootPage models.PageContent, sink *deliver.Sink) []models.NormalizedProduct {
	var (
		mu       sync.Mutex
		products []models.NormalizedProduct
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for _, link := range links {
		link := link
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			mu.Lock()
			full := len(products) >= o.opts.ItemCap
			mu.Unlock()
			if full {
				return nil
			}

			page := rootPage
			if link.NormalizedURL != rootPage.URL {
				var err error
				page, err = o.fetcher.Fetch(gctx, link.NormalizedURL)
				if err != nil {
					fetchFailures.WithLabelValues(string(fetch.KindOf(err))).Inc()
					o.logger.Warn("page fetch failed, skipping", "url", link.NormalizedURL, "error", err)
					return nil
				}
				pagesFetched.WithLabelValues(strconv.FormatBool(page.Rendered)).Inc()
			}

			for _, raw := range extractSimple(page, detected) {
				product := normalize(raw)
				mu.Lock()
				if len(products) >= o.opts.ItemCap {
					mu.Unlock()
					return nil
				}
				products = append(products, product)
				mu.Unlock()

				productsExtracted.Inc()
				sess.RecordSent()
				sink.DeliverItem(product)
				sess.Emit(models.PhaseImporting, "importing "+product.Name, nil)
			}
			return nil
		})
	}
	// Workers never return errors; Wait just joins the pool.
	_ = g.Wait()
	return products
}

// extractSimple runs the platform strategy and applies the simple-product
// filter.
func extractSimple(page models.PageContent, detected models.Platform) []models.RawProductRecord {
	var kept []models.RawProductRecord
	for _, raw := range extract.Extract(page, detected) {
		if raw.Name == "" || !raw.IsSimple {
			productsFiltered.Inc()
			continue
		}
		kept = append(kept, raw)
	}
	return kept
}

// normalize converts a raw record into the canonical product shape.
func normalize(raw models.RawProductRecord) models.NormalizedProduct {
	var image string
	if len(raw.ImageURLs) > 0 {
		image = raw.ImageURLs[0]
	}
	return models.NormalizedProduct{
		Name:         strings.TrimSpace(raw.Name),
		Description:  strings.TrimSpace(raw.Description),
		Price:        price.Normalize(raw.RawPrice),
		ImageURL:     image,
		SourceURL:    raw.SourceURL,
		SourceItemID: sourceItemID(raw.SourceURL),
		RawPrice:     raw.RawPrice,
	}
}

// sourceItemID is the last path segment of the product URL, the closest
// thing to a stable external ID every platform shares.
func sourceItemID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}
	segments := strings.Split(path, "/")
	return strings.TrimSuffix(segments[len(segments)-1], ".html")
}
