package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/rekohub/storefront-scraper/internal/models"
)

type shopifyStrategy struct{}

func (shopifyStrategy) Platform() models.Platform { return models.PlatformShopify }

func (shopifyStrategy) MatchesListingPage(doc *goquery.Document) bool {
	return doc.Find(".collection .grid__item, .product-grid .grid__item, [data-collection-id]").Length() > 0
}

func (shopifyStrategy) MatchesDetailPage(doc *goquery.Document) bool {
	return doc.Find("form[action*='/cart/add'], .product__title, product-info").Length() > 0 ||
		doc.Find("meta[property='og:type'][content='product']").Length() > 0
}

func (s shopifyStrategy) Extract(doc *goquery.Document, pageURL string) []models.RawProductRecord {
	if !s.MatchesDetailPage(doc) {
		return nil
	}

	name := firstText(doc, "h1.product__title", ".product__title h1", ".product-single__title", "h1")

	// Sale price first; Dawn-era themes tag it .price-item--sale, older
	// themes use .product__price--sale.
	price := firstText(doc,
		".price-item--sale",
		".price__sale .price-item",
		".product__price--sale",
		".price-item--regular",
		".product__price",
		".price__regular .price-item",
		".price",
	)

	desc := descriptionText(doc,
		".product__description",
		".product-single__description",
		".product__text",
		"[data-product-description]",
	)

	image := imageURL(doc, pageURL,
		".product__media img",
		".product-single__photo img",
		".product__image",
		"meta[property='og:image']",
	)

	return record(s.Platform(), pageURL, name, cleanPriceText(price), desc, image, isSimpleProduct(doc))
}
