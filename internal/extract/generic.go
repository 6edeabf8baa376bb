package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rekohub/storefront-scraper/internal/models"
)

// genericStrategy handles sites with no recognized storefront platform. It
// works down a ladder of decreasing confidence: schema.org JSON-LD, then
// OpenGraph / microdata, then a bare heading-plus-price heuristic.
type genericStrategy struct {
	platform models.Platform
}

func (s genericStrategy) Platform() models.Platform { return s.platform }

func (genericStrategy) MatchesListingPage(doc *goquery.Document) bool {
	return doc.Find("[class*='product-grid'], [class*='product-list'], [class*='collection-grid']").Length() > 0
}

func (genericStrategy) MatchesDetailPage(doc *goquery.Document) bool {
	if _, ok := findJSONLDProduct(doc); ok {
		return true
	}
	if doc.Find("meta[property='og:type'][content='product'], [itemtype*='schema.org/Product']").Length() > 0 {
		return true
	}
	return doc.Find("h1").Length() > 0 && doc.Find("[class*='price'], [id*='price']").Length() > 0
}

func (s genericStrategy) Extract(doc *goquery.Document, pageURL string) []models.RawProductRecord {
	if ld, ok := findJSONLDProduct(doc); ok {
		if recs := s.fromJSONLD(ld, doc, pageURL); recs != nil {
			return recs
		}
	}
	if recs := s.fromMeta(doc, pageURL); recs != nil {
		return recs
	}
	return s.fromHeuristics(doc, pageURL)
}

// jsonLDProduct is the subset of a schema.org Product node we read. Image
// and offers vary wildly in shape across sites, so both are raw.
type jsonLDProduct struct {
	Type        any             `json:"@type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       json.RawMessage `json:"image"`
	Offers      json.RawMessage `json:"offers"`
}

func findJSONLDProduct(doc *goquery.Document) (jsonLDProduct, bool) {
	var found jsonLDProduct
	ok := false
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		for _, candidate := range decodeJSONLD(node.Text()) {
			if isProductType(candidate.Type) && candidate.Name != "" {
				found, ok = candidate, true
				return false
			}
		}
		return true
	})
	return found, ok
}

// decodeJSONLD flattens the three shapes sites emit: a single node, a top
// level array, or an @graph wrapper.
func decodeJSONLD(raw string) []jsonLDProduct {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var single jsonLDProduct
	if err := json.Unmarshal([]byte(raw), &single); err == nil && single.Type != nil {
		return []jsonLDProduct{single}
	}
	var list []jsonLDProduct
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}
	var graph struct {
		Graph []jsonLDProduct `json:"@graph"`
	}
	if err := json.Unmarshal([]byte(raw), &graph); err == nil {
		return graph.Graph
	}
	return nil
}

func isProductType(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.EqualFold(v, "Product")
	case []any:
		for _, entry := range v {
			if s, ok := entry.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

func (s genericStrategy) fromJSONLD(ld jsonLDProduct, doc *goquery.Document, pageURL string) []models.RawProductRecord {
	price := jsonLDPrice(ld.Offers)
	if price == "" {
		price = s.domPrice(doc)
	}
	image := jsonLDImage(ld.Image)
	if image == "" {
		image = imageURL(doc, pageURL, "meta[property='og:image']")
	} else {
		image = resolveURL(pageURL, image)
	}
	desc := strings.Join(strings.Fields(ld.Description), " ")
	if desc == "" {
		desc = fallbackDescription(doc)
	}
	return record(s.platform, pageURL, strings.TrimSpace(ld.Name), price, desc, image, isSimpleProduct(doc))
}

// jsonLDPrice digs price out of offers, which may be an object, an array of
// objects, or nested AggregateOffer shapes. Prices arrive as string or
// number depending on the generator.
func jsonLDPrice(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	type offer struct {
		Price    any             `json:"price"`
		LowPrice any             `json:"lowPrice"`
		Offers   json.RawMessage `json:"offers"`
	}
	var one offer
	if err := json.Unmarshal(raw, &one); err == nil {
		if p := anyToPrice(one.Price); p != "" {
			return p
		}
		if p := anyToPrice(one.LowPrice); p != "" {
			return p
		}
		if len(one.Offers) > 0 {
			return jsonLDPrice(one.Offers)
		}
	}
	var many []json.RawMessage
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, entry := range many {
			if p := jsonLDPrice(entry); p != "" {
				return p
			}
		}
	}
	return ""
}

func anyToPrice(v any) string {
	switch p := v.(type) {
	case string:
		return strings.TrimSpace(p)
	case float64:
		data, _ := json.Marshal(p)
		return string(data)
	}
	return ""
}

func jsonLDImage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0])
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.URL)
	}
	return ""
}

func (s genericStrategy) fromMeta(doc *goquery.Document, pageURL string) []models.RawProductRecord {
	name := ""
	if v, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		name = strings.TrimSpace(v)
	}
	if name == "" {
		name = firstText(doc, "[itemprop='name']")
	}
	if name == "" {
		return nil
	}

	price := ""
	for _, sel := range []string{"meta[property='product:price:amount']", "meta[property='og:price:amount']", "meta[itemprop='price']"} {
		if v, ok := doc.Find(sel).Attr("content"); ok && strings.TrimSpace(v) != "" {
			price = strings.TrimSpace(v)
			break
		}
	}
	if price == "" {
		price = firstText(doc, "[itemprop='price']")
	}
	if price == "" {
		price = s.domPrice(doc)
	}

	desc := ""
	if v, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
		desc = strings.Join(strings.Fields(v), " ")
	}
	if desc == "" {
		desc = fallbackDescription(doc)
	}

	image := imageURL(doc, pageURL, "meta[property='og:image']", "[itemprop='image']")

	return record(s.platform, pageURL, name, cleanPriceText(price), desc, image, isSimpleProduct(doc))
}

// fromHeuristics is the last rung: the main heading plus the first element
// that looks like a price.
func (s genericStrategy) fromHeuristics(doc *goquery.Document, pageURL string) []models.RawProductRecord {
	name := firstText(doc, "h1", "h2")
	if name == "" || len(name) > 200 {
		return nil
	}
	price := s.domPrice(doc)
	if price == "" {
		return nil
	}
	image := imageURL(doc, pageURL, "main img", "article img", "img")
	return record(s.platform, pageURL, name, price, fallbackDescription(doc), image, isSimpleProduct(doc))
}

// domPrice scans price-classed elements and keeps the first text that
// actually contains a digit.
func (genericStrategy) domPrice(doc *goquery.Document) string {
	var price string
	doc.Find("[class*='price'], [id*='price']").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		text := cleanPriceText(node.Text())
		if text == "" || !strings.ContainsAny(text, "0123456789") {
			return true
		}
		price = text
		return false
	})
	return price
}
