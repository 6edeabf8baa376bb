package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/rekohub/storefront-scraper/internal/models"
)

type magentoStrategy struct{}

func (magentoStrategy) Platform() models.Platform { return models.PlatformMagento }

func (magentoStrategy) MatchesListingPage(doc *goquery.Document) bool {
	return doc.Find(".products-grid .product-item, ol.product-items, .product-item-link").Length() > 0
}

func (magentoStrategy) MatchesDetailPage(doc *goquery.Document) bool {
	return doc.Find(".product-info-main, body.catalog-product-view").Length() > 0
}

func (s magentoStrategy) Extract(doc *goquery.Document, pageURL string) []models.RawProductRecord {
	if !s.MatchesDetailPage(doc) {
		return nil
	}

	name := firstText(doc,
		".product-info-main .page-title .base",
		".page-title-wrapper .base",
		"h1.page-title",
		"h1",
	)

	price := firstText(doc,
		".product-info-main [data-price-type='finalPrice'] .price",
		".product-info-main .special-price .price",
		".product-info-main .price-box .price",
		".price-box .price",
	)

	desc := descriptionText(doc,
		".product-info-main .overview",
		".product.attribute.description .value",
		".product.attribute.overview .value",
		"#description",
	)

	image := imageURL(doc, pageURL,
		".gallery-placeholder img",
		".fotorama__stage img",
		".product.media img",
		"meta[property='og:image']",
	)

	return record(s.Platform(), pageURL, name, cleanPriceText(price), desc, image, isSimpleProduct(doc))
}
