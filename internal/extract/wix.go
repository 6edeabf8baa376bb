package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/rekohub/storefront-scraper/internal/models"
)

// wixStrategy relies on Wix Stores data-hook attributes, which survive theme
// changes because the storefront widget renders them itself. Wix pages are
// almost always renderer output by the time they reach extraction.
type wixStrategy struct{}

func (wixStrategy) Platform() models.Platform { return models.PlatformWix }

func (wixStrategy) MatchesListingPage(doc *goquery.Document) bool {
	return doc.Find("[data-hook='product-list'], [data-hook='product-item-root'], [data-hook='gallery-root']").Length() > 0
}

func (wixStrategy) MatchesDetailPage(doc *goquery.Document) bool {
	return doc.Find("[data-hook='product-title'], [data-hook='product-page']").Length() > 0
}

func (s wixStrategy) Extract(doc *goquery.Document, pageURL string) []models.RawProductRecord {
	if !s.MatchesDetailPage(doc) {
		return nil
	}

	name := firstText(doc, "[data-hook='product-title']", "h1[data-hook]", "h1")

	price := firstText(doc,
		"[data-hook='formatted-primary-price']",
		"[data-hook='product-price']",
		"[data-hook='price-range']",
		"span[data-hook*='price']",
	)

	desc := descriptionText(doc,
		"[data-hook='description']",
		"[data-hook='info-section-description']",
		"pre[data-hook='description']",
	)

	image := imageURL(doc, pageURL,
		"[data-hook='product-image'] img",
		"[data-hook='main-media-image-wrapper'] img",
		"[data-hook='product-page'] img",
		"meta[property='og:image']",
	)

	return record(s.Platform(), pageURL, name, cleanPriceText(price), desc, image, isSimpleProduct(doc))
}
