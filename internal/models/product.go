package models

import (
	"time"
)

// Platform identifies which storefront software rendered a page. Detection
// never fails: PlatformStaticHTML is the universal fallback.
type Platform string

const (
	PlatformWix         Platform = "wix"
	PlatformShopify     Platform = "shopify"
	PlatformWooCommerce Platform = "woocommerce"
	PlatformMagento     Platform = "magento"
	PlatformGenericSPA  Platform = "generic_spa"
	PlatformStaticHTML  Platform = "static_html"
)

// NeedsRender reports whether pages from this platform are expected to be
// JavaScript-rendered and should go through the headless browser.
func (p Platform) NeedsRender() bool {
	return p == PlatformWix || p == PlatformGenericSPA
}

// PriceUnit is the unit of measure a price applies to. UnitOrder means a
// fixed order total; everything else is a per-unit price.
type PriceUnit string

const (
	UnitOrder    PriceUnit = "order"
	UnitEach     PriceUnit = "each"
	UnitPound    PriceUnit = "pound"
	UnitKilogram PriceUnit = "kilogram"
	UnitOunce    PriceUnit = "ounce"
	UnitGram     PriceUnit = "gram"
)

// PriceSpec is the canonical price representation. Currency is implicitly USD
// and never transmitted. A per-unit price (Unit != UnitOrder) is approximate
// unless the extractor explicitly overrode the flag.
type PriceSpec struct {
	AmountCents int64     `json:"amountCents"`
	Unit        PriceUnit `json:"unit"`
	Approximate bool      `json:"isApproximate"`
}

// ZeroPrice is the default PriceSpec used when no price information could be
// extracted. Price absence is a valid, common case, not an error.
func ZeroPrice() PriceSpec {
	return PriceSpec{AmountCents: 0, Unit: UnitOrder, Approximate: false}
}

// RawProductRecord is the platform extractor's output before normalization.
// It is ephemeral: the orchestrator consumes it immediately.
type RawProductRecord struct {
	Name         string
	RawPrice     string
	Description  string
	ImageURLs    []string
	SourceURL    string
	PlatformHint Platform
	// IsSimple is false when the page shows variant selectors, "select
	// options" affordances, or bundle/grouped markup. Non-simple records
	// are dropped.
	IsSimple bool
}

// NormalizedProduct is the canonical record returned to the caller and
// streamed to the sink. Immutable once created.
type NormalizedProduct struct {
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Price        PriceSpec `json:"price"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	SourceURL    string    `json:"sourceUrl"`
	SourceItemID string    `json:"sourceItemId,omitempty"`

	// RawPrice keeps the price text as found on the page. The sink
	// transmits this flexible form so the backend can canonicalize it
	// itself; it is never part of the JSON response.
	RawPrice string `json:"-"`
}

// Phase is the coarse progress phase of a scrape session.
type Phase string

const (
	PhaseDiscovery Phase = "discovery"
	PhaseScraping  Phase = "scraping"
	PhaseImporting Phase = "importing"
	PhaseComplete  Phase = "complete"
	PhaseError     Phase = "error"
)

// ProgressEvent is a counter snapshot streamed to the sink. Within one
// session all counters are monotonically non-decreasing and
// SentCount <= DiscoveredCount at every point.
type ProgressEvent struct {
	DiscoveredCount int64  `json:"discoveredCount"`
	SentCount       int64  `json:"sentCount"`
	CreatedCount    *int64 `json:"createdCount,omitempty"`
	TotalCount      *int64 `json:"totalCount,omitempty"`
	Phase           Phase  `json:"phase"`
	Message         string `json:"message"`
}

// CandidateLink is a discovered product-page URL. Deduplicated by normalized
// URL within a session; ordering is discovery order.
type CandidateLink struct {
	NormalizedURL  string
	DiscoveredFrom string
}

// PageContent is a fetched page plus how it was obtained.
type PageContent struct {
	URL       string
	HTML      string
	Rendered  bool
	FetchedAt time.Time
}
