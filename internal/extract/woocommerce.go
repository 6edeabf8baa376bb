package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/rekohub/storefront-scraper/internal/models"
)

type wooCommerceStrategy struct{}

func (wooCommerceStrategy) Platform() models.Platform { return models.PlatformWooCommerce }

func (wooCommerceStrategy) MatchesListingPage(doc *goquery.Document) bool {
	return doc.Find("ul.products li.product, .woocommerce-loop-product__link").Length() > 0
}

func (wooCommerceStrategy) MatchesDetailPage(doc *goquery.Document) bool {
	return doc.Find("div.product .product_title, body.single-product, .woocommerce-product-gallery").Length() > 0
}

func (s wooCommerceStrategy) Extract(doc *goquery.Document, pageURL string) []models.RawProductRecord {
	if !s.MatchesDetailPage(doc) {
		return nil
	}

	name := firstText(doc, "h1.product_title", ".product_title", "h1.entry-title", "h1")

	// On sale markup the current price lives inside <ins>; the struck-out
	// regular price inside <del> must not win.
	price := firstText(doc,
		"p.price ins .woocommerce-Price-amount",
		"p.price ins",
		"p.price .woocommerce-Price-amount",
		"p.price",
		".summary .price",
		".price",
	)

	desc := descriptionText(doc,
		".woocommerce-product-details__short-description",
		"#tab-description",
		".woocommerce-Tabs-panel--description",
		".product .entry-content",
	)

	image := imageURL(doc, pageURL,
		".woocommerce-product-gallery__image img",
		".woocommerce-product-gallery img",
		".product .images img",
		"meta[property='og:image']",
	)

	return record(s.Platform(), pageURL, name, cleanPriceText(price), desc, image, isSimpleProduct(doc))
}
