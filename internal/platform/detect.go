// Package platform classifies fetched pages by storefront signature. The
// rules run most-specific-first; the first match wins and StaticHTML is the
// universal fallback, so detection never fails.
package platform

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rekohub/storefront-scraper/internal/models"
)

type signature struct {
	platform models.Platform
	match    func(html string, doc *goquery.Document) bool
}

// Named platforms are checked before the generic SPA/static fallback. The
// ordering doubles as the tie-break rule when a page carries markers for more
// than one platform.
var signatures = []signature{
	{models.PlatformWix, matchWix},
	{models.PlatformShopify, matchShopify},
	{models.PlatformWooCommerce, matchWooCommerce},
	{models.PlatformMagento, matchMagento},
}

// spaMarkers are framework fingerprints that indicate a JavaScript-rendered
// page even when no named storefront matches.
var spaMarkers = []string{
	"__next_data__",
	"/_next/",
	"data-reactroot",
	"__react_devtools",
	"__nuxt__",
	"ng-app",
	"ng-controller",
	"data-v-",
}

// Detect classifies a page. It parses the HTML at most once and shares the
// document with the string-level checks.
func Detect(page models.PageContent) models.Platform {
	html := strings.ToLower(page.HTML)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		doc = nil
	}

	for _, sig := range signatures {
		if sig.match(html, doc) {
			return sig.platform
		}
	}
	if LooksRendered(page.HTML) {
		return models.PlatformGenericSPA
	}
	return models.PlatformStaticHTML
}

// LooksRendered reports whether a static response appears to be a JS-rendered
// shell that needs browser rendering: either a framework root marker is
// present, or the page is script-heavy with almost no visible text.
func LooksRendered(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range spaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	if strings.Contains(lower, "wix.com") || strings.Contains(lower, "wixstatic.com") || strings.Contains(lower, "parastorage") {
		return true
	}

	scriptCount := strings.Count(lower, "<script")
	visible := len(html) - scriptCount*500
	return scriptCount > 20 && visible < 5000
}

// HasProductMarkers reports whether the page contains any recognizable
// product-listing or product-detail markup. A static response without them
// is escalated to the renderer.
func HasProductMarkers(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range []string{
		"woocommerce-loopproduct-link",
		"product-item-link",
		"data-hook=\"product-title\"",
		"itemtype=\"http://schema.org/product\"",
		"itemtype=\"https://schema.org/product\"",
		"og:type\" content=\"product",
		"product_title",
		"product-title",
		"\"@type\":\"product\"",
		"\"@type\": \"product\"",
		"/product/",
		"/products/",
		"/product-page/",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func matchWix(html string, doc *goquery.Document) bool {
	if strings.Contains(html, "wix.com") || strings.Contains(html, "wixstatic.com") || strings.Contains(html, "parastorage") {
		return true
	}
	if doc == nil {
		return false
	}
	return doc.Find(`meta[name="generator"][content*="Wix"]`).Length() > 0 ||
		doc.Find(`[data-hook="product-title"]`).Length() > 0
}

func matchShopify(html string, doc *goquery.Document) bool {
	if strings.Contains(html, "cdn.shopify.com") || strings.Contains(html, "shopify.theme") || strings.Contains(html, "shopify-section") {
		return true
	}
	if doc == nil {
		return false
	}
	return doc.Find(`meta[name="generator"][content*="Shopify"]`).Length() > 0
}

func matchWooCommerce(html string, doc *goquery.Document) bool {
	if strings.Contains(html, "woocommerce") {
		return true
	}
	if doc == nil {
		return false
	}
	return doc.Find(`meta[name="generator"][content*="WooCommerce"]`).Length() > 0 ||
		doc.Find("body.woocommerce-page").Length() > 0
}

func matchMagento(html string, doc *goquery.Document) bool {
	if strings.Contains(html, "mage/cookies") || strings.Contains(html, "magento_") || strings.Contains(html, "mage-init") {
		return true
	}
	if doc == nil {
		return false
	}
	return doc.Find(`meta[name="generator"][content*="Magento"]`).Length() > 0 ||
		doc.Find("body.catalog-product-view, body.cms-index-index").Length() > 0
}
