package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// isSimpleProduct reports whether a detail page sells a single purchasable
// item. Pages with variant pickers, grouped children, or bundles need a
// human to resolve the choice and are filtered out upstream.
func isSimpleProduct(doc *goquery.Document) bool {
	// WooCommerce variable, grouped, and bundled products.
	if doc.Find("form.variations_form, table.variations, .single_variation_wrap").Length() > 0 {
		return false
	}
	if doc.Find(".grouped_form, table.group_table, .woocommerce-grouped-product-list").Length() > 0 {
		return false
	}
	if doc.Find(".bundle_form, .bundled_products, .woocommerce-product-bundle").Length() > 0 {
		return false
	}

	// Shopify variant selects and radio groups.
	if selectHasChoices(doc, "select[name='id']") ||
		selectHasChoices(doc, ".product-form__variants select") ||
		selectHasChoices(doc, "variant-selects select") {
		return false
	}
	if radioGroupHasChoices(doc, "variant-radios input[type='radio'], .product-form__input input[type='radio']") {
		return false
	}

	// Magento configurable products.
	if doc.Find(".swatch-attribute, .configurable-options").Length() > 0 {
		return false
	}
	if selectHasChoices(doc, "#product-options-wrapper select") {
		return false
	}

	// Wix option pickers.
	if doc.Find("[data-hook='product-options'] select, [data-hook='product-options'] [role='listbox']").Length() > 0 {
		return false
	}

	// Generic size / color / variant dropdowns.
	if selectHasChoices(doc, "select[name*='size'], select[name*='color'], select[name*='variant'], select[id*='size'], select[id*='color']") {
		return false
	}

	if body, ok := doc.Find("body").Attr("class"); ok {
		lower := strings.ToLower(body)
		for _, cls := range []string{"product-type-variable", "product-type-grouped", "product-type-bundle", "product-type-composite", "page-product-configurable", "page-product-grouped", "page-product-bundle"} {
			if strings.Contains(lower, cls) {
				return false
			}
		}
	}

	return true
}

// selectHasChoices is true when a matched <select> offers a real decision,
// meaning more than one non-placeholder option.
func selectHasChoices(doc *goquery.Document, selector string) bool {
	found := false
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		count := 0
		sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
			value, _ := opt.Attr("value")
			text := strings.ToLower(strings.TrimSpace(opt.Text()))
			if strings.TrimSpace(value) == "" && (text == "" || strings.HasPrefix(text, "select") || strings.HasPrefix(text, "choose")) {
				return
			}
			count++
		})
		if count > 1 {
			found = true
			return false
		}
		return true
	})
	return found
}

// radioGroupHasChoices is true when any radio name appears more than once.
func radioGroupHasChoices(doc *goquery.Document, selector string) bool {
	counts := map[string]int{}
	doc.Find(selector).Each(func(_ int, input *goquery.Selection) {
		if name, ok := input.Attr("name"); ok {
			counts[name]++
		}
	})
	for _, n := range counts {
		if n > 1 {
			return true
		}
	}
	return false
}
