// Package extract turns fetched pages into raw product records. Each
// supported storefront platform has its own strategy; the strategy set is
// closed, so adding a platform means adding one file here without touching
// the orchestrator.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rekohub/storefront-scraper/internal/models"
)

// Strategy is the per-platform capability set. Extract must never fail on
// malformed markup: it returns zero records and the caller logs a warning.
type Strategy interface {
	Platform() models.Platform
	MatchesListingPage(doc *goquery.Document) bool
	MatchesDetailPage(doc *goquery.Document) bool
	Extract(doc *goquery.Document, pageURL string) []models.RawProductRecord
}

var strategies = map[models.Platform]Strategy{
	models.PlatformWix:         wixStrategy{},
	models.PlatformShopify:     shopifyStrategy{},
	models.PlatformWooCommerce: wooCommerceStrategy{},
	models.PlatformMagento:     magentoStrategy{},
}

// ForPlatform returns the strategy for a platform. GenericSPA and StaticHTML
// share the structured-data fallback strategy.
func ForPlatform(p models.Platform) Strategy {
	if s, ok := strategies[p]; ok {
		return s
	}
	return genericStrategy{platform: p}
}

// Extract parses a page and runs the platform's strategy over it.
func Extract(page models.PageContent, p models.Platform) []models.RawProductRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil
	}
	return ForPlatform(p).Extract(doc, page.URL)
}

// priceTextRe matches a currency amount with an optional per-unit suffix, so
// unit information ("$2.49/lb") survives into the raw price text.
var priceTextRe = regexp.MustCompile(`(?i)(?:rs\.?\s*|[$₹€£¥])?\s*\d[\d,]*(?:\.\d{1,2})?(?:\s*(?:/|per\s+)?\s*(?:ea|each|lbs?|pounds?|kgs?|kilograms?|oz|ounces?|g|grams?)\b)?`)

var priceLabelRe = regexp.MustCompile(`(?i)regular price|sale price|unit price|sold out`)

var currencyMarkRe = regexp.MustCompile(`(?i)rs\.?\s*\d|[$₹€£¥]`)

// cleanPriceText strips storefront labels and keeps the last price-looking
// fragment, which on sale markup is the current price.
func cleanPriceText(s string) string {
	s = priceLabelRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	matches := priceTextRe.FindAllString(s, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := strings.TrimSpace(matches[i])
		if currencyMarkRe.MatchString(m) || strings.ContainsAny(m, "0123456789") {
			return m
		}
	}
	return strings.TrimSpace(s)
}

// firstText returns the trimmed text of the first selector that matches.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if text := strings.TrimSpace(node.Text()); text != "" {
				return strings.Join(strings.Fields(text), " ")
			}
		}
	}
	return ""
}

// imageURL walks the selector ladder and pulls the first usable image
// source, preferring lazy-load attributes over src. Placeholder and logo
// assets are rejected.
func imageURL(doc *goquery.Document, pageURL string, selectors ...string) string {
	for _, sel := range selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, node *goquery.Selection) bool {
			src := imageSrc(node)
			if src == "" || badImage(src) {
				return true
			}
			found = resolveURL(pageURL, src)
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func imageSrc(node *goquery.Selection) string {
	for _, attr := range []string{"data-src", "src", "data-lazy-src", "content"} {
		if v, ok := node.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func badImage(src string) bool {
	lower := strings.ToLower(src)
	for _, skip := range []string{"logo", "transparent", "placeholder", "default", "stripe", "payment"} {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// fallbackDescription looks for the first paragraph that reads like product
// copy rather than navigation or boilerplate.
func fallbackDescription(doc *goquery.Document) string {
	skip := []string{"cookie", "copyright", "menu", "navigation", "quick view", "mailing list", "all products"}
	var desc string
	doc.Find("p").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		text := strings.Join(strings.Fields(node.Text()), " ")
		if len(text) <= 50 || len(text) >= 1000 {
			return true
		}
		lower := strings.ToLower(text)
		for _, s := range skip {
			if strings.Contains(lower, s) {
				return true
			}
		}
		desc = text
		return false
	})
	return desc
}

func descriptionText(doc *goquery.Document, selectors ...string) string {
	if text := firstText(doc, selectors...); text != "" {
		return text
	}
	return fallbackDescription(doc)
}

// record assembles a single detail-page result with the shared shape every
// strategy produces.
func record(platform models.Platform, pageURL, name, rawPrice, desc, image string, simple bool) []models.RawProductRecord {
	if name == "" {
		return nil
	}
	var images []string
	if image != "" {
		images = []string{image}
	}
	return []models.RawProductRecord{{
		Name:         name,
		RawPrice:     rawPrice,
		Description:  desc,
		ImageURLs:    images,
		SourceURL:    pageURL,
		PlatformHint: platform,
		IsSimple:     simple,
	}}
}
