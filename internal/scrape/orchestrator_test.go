package scrape

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rekohub/storefront-scraper/internal/deliver"
	"github.com/rekohub/storefront-scraper/internal/discover"
	"github.com/rekohub/storefront-scraper/internal/fetch"
	"github.com/rekohub/storefront-scraper/internal/models"
)

const storefrontRoot = `<html>
<head><meta name="generator" content="WooCommerce 8.4"></head>
<body class="woocommerce-page home">
<ul class="products">
<li class="product"><a class="woocommerce-loop-product__link" href="/product/apples">Apples</a></li>
</ul>
</body></html>`

func productPageHTML(name, priceText string) string {
	return `<html><body class="single-product woocommerce-page"><div class="product">
	<h1 class="product_title">` + name + `</h1>
	<p class="price"><span class="woocommerce-Price-amount">` + priceText + `</span></p>
	</div></body></html>`
}

// newStorefront mocks a WooCommerce shop with a sitemap and product pages.
func newStorefront(transport *httpmock.MockTransport, products map[string]string) {
	transport.RegisterResponder("GET", "https://shop.example.com/",
		httpmock.NewStringResponder(200, storefrontRoot))

	sitemap := `<?xml version="1.0"?><urlset>`
	for slug := range products {
		sitemap += `<url><loc>https://shop.example.com/product/` + slug + `</loc></url>`
	}
	sitemap += `</urlset>`
	transport.RegisterResponder("GET", "https://shop.example.com/sitemap.xml",
		httpmock.NewStringResponder(200, sitemap))

	for slug, html := range products {
		transport.RegisterResponder("GET", "https://shop.example.com/product/"+slug,
			httpmock.NewStringResponder(200, html))
	}
}

func newTestOrchestrator(transport *httpmock.MockTransport, opts Options) *Orchestrator {
	fetcher := fetch.New(fetch.Options{Client: &http.Client{Transport: transport}})
	discoverer := discover.New(fetcher, discover.Options{Transport: transport})
	return New(fetcher, discoverer, opts)
}

func TestRunScrapesStaticStorefront(t *testing.T) {
	transport := httpmock.NewMockTransport()
	newStorefront(transport, map[string]string{
		"apples": productPageHTML("Honeycrisp Apples", "$3.00"),
		"cider":  productPageHTML("Fresh Cider", "$6.50"),
		"jam":    productPageHTML("Strawberry Jam", "$5.00"),
	})

	o := newTestOrchestrator(transport, Options{Workers: 2})
	result, err := o.Run(context.Background(), Request{StoreURL: "https://shop.example.com/"})

	require.NoError(t, err)
	assert.Equal(t, models.PlatformWooCommerce, result.Platform)
	assert.NotEmpty(t, result.SessionID)
	require.Len(t, result.Products, 3)

	names := make([]string, 0, 3)
	for _, p := range result.Products {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"Fresh Cider", "Honeycrisp Apples", "Strawberry Jam"}, names)

	for _, p := range result.Products {
		if p.Name == "Fresh Cider" {
			assert.Equal(t, int64(650), p.Price.AmountCents)
			assert.Equal(t, models.UnitOrder, p.Price.Unit)
			assert.Equal(t, "cider", p.SourceItemID)
		}
	}
}

func TestRunRootUnreachableIsFatal(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://gone.example.com/",
		httpmock.NewStringResponder(404, "not found"))

	o := newTestOrchestrator(transport, Options{})
	result, err := o.Run(context.Background(), Request{StoreURL: "https://gone.example.com/"})

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestRunBrokenProductPageIsSkipped(t *testing.T) {
	transport := httpmock.NewMockTransport()
	newStorefront(transport, map[string]string{
		"apples": productPageHTML("Honeycrisp Apples", "$3.00"),
	})
	// One sitemap URL 500s; the session still completes.
	transport.RegisterResponder("GET", "https://shop.example.com/sitemap.xml",
		httpmock.NewStringResponder(200, `<?xml version="1.0"?><urlset>
		<url><loc>https://shop.example.com/product/apples</loc></url>
		<url><loc>https://shop.example.com/product/broken</loc></url>
		</urlset>`))
	transport.RegisterResponder("GET", "https://shop.example.com/product/broken",
		httpmock.NewStringResponder(500, "boom"))

	o := newTestOrchestrator(transport, Options{Workers: 1})
	result, err := o.Run(context.Background(), Request{StoreURL: "https://shop.example.com/"})

	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "Honeycrisp Apples", result.Products[0].Name)
}

func TestRunHonorsItemCap(t *testing.T) {
	transport := httpmock.NewMockTransport()
	newStorefront(transport, map[string]string{
		"apples": productPageHTML("Honeycrisp Apples", "$3.00"),
		"cider":  productPageHTML("Fresh Cider", "$6.50"),
		"jam":    productPageHTML("Strawberry Jam", "$5.00"),
	})

	o := newTestOrchestrator(transport, Options{Workers: 1, ItemCap: 2})
	result, err := o.Run(context.Background(), Request{StoreURL: "https://shop.example.com/"})

	require.NoError(t, err)
	assert.Len(t, result.Products, 2)
}

func TestRunVariantProductsFilteredOut(t *testing.T) {
	variable := `<html><body class="single-product"><div class="product">
	<h1 class="product_title">T-Shirt</h1>
	<form class="variations_form"><table class="variations"><tr><td>
	<select name="attribute_size"><option value="">Choose</option><option>S</option><option>M</option></select>
	</td></tr></table></form>
	<p class="price">$20.00</p>
	</div></body></html>`

	transport := httpmock.NewMockTransport()
	newStorefront(transport, map[string]string{
		"apples": productPageHTML("Honeycrisp Apples", "$3.00"),
		"tshirt": variable,
	})

	o := newTestOrchestrator(transport, Options{Workers: 1})
	result, err := o.Run(context.Background(), Request{StoreURL: "https://shop.example.com/"})

	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "Honeycrisp Apples", result.Products[0].Name)
}

func TestRunDeliversItemsAndMonotoneProgress(t *testing.T) {
	transport := httpmock.NewMockTransport()
	newStorefront(transport, map[string]string{
		"apples": productPageHTML("Honeycrisp Apples", "$3.00"),
		"cider":  productPageHTML("Fresh Cider", "$6.50"),
	})

	var mu sync.Mutex
	var items []map[string]any
	var progress []models.ProgressEvent
	transport.RegisterResponder("POST", "https://api.example.com/v4/auto-onboard/items",
		func(req *http.Request) (*http.Response, error) {
			mu.Lock()
			defer mu.Unlock()
			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			items = append(items, body)
			return httpmock.NewStringResponse(202, ""), nil
		})
	transport.RegisterResponder("POST", "https://api.example.com/v4/auto-onboard/progress",
		func(req *http.Request) (*http.Response, error) {
			mu.Lock()
			defer mu.Unlock()
			var event models.ProgressEvent
			require.NoError(t, json.NewDecoder(req.Body).Decode(&event))
			progress = append(progress, event)
			return httpmock.NewStringResponse(202, ""), nil
		})

	sink := deliver.New(deliver.Options{
		BaseURL: "https://api.example.com",
		Token:   "agent-token",
		Client:  &http.Client{Transport: transport},
	})

	o := newTestOrchestrator(transport, Options{Workers: 2})
	result, err := o.Run(context.Background(), Request{StoreURL: "https://shop.example.com/", Sink: sink})
	sink.Close()

	require.NoError(t, err)
	require.Len(t, result.Products, 2)
	assert.Len(t, items, 2)

	require.NotEmpty(t, progress)
	assert.Equal(t, models.PhaseComplete, progress[len(progress)-1].Phase)
	var lastSent, lastDiscovered int64
	for _, event := range progress {
		assert.GreaterOrEqual(t, event.SentCount, lastSent)
		assert.GreaterOrEqual(t, event.DiscoveredCount, lastDiscovered)
		assert.LessOrEqual(t, event.SentCount, event.DiscoveredCount)
		lastSent = event.SentCount
		lastDiscovered = event.DiscoveredCount
	}
}

func TestRunSinkFailuresDoNotAffectResult(t *testing.T) {
	transport := httpmock.NewMockTransport()
	newStorefront(transport, map[string]string{
		"apples": productPageHTML("Honeycrisp Apples", "$3.00"),
		"cider":  productPageHTML("Fresh Cider", "$6.50"),
	})
	transport.RegisterResponder("POST", "https://api.example.com/v4/auto-onboard/items",
		httpmock.NewStringResponder(500, "backend down"))
	transport.RegisterResponder("POST", "https://api.example.com/v4/auto-onboard/progress",
		httpmock.NewStringResponder(500, "backend down"))

	sink := deliver.New(deliver.Options{
		BaseURL: "https://api.example.com",
		Token:   "agent-token",
		Client:  &http.Client{Transport: transport},
	})

	o := newTestOrchestrator(transport, Options{Workers: 2})
	result, err := o.Run(context.Background(), Request{StoreURL: "https://shop.example.com/", Sink: sink})
	sink.Close()

	require.NoError(t, err)
	assert.Len(t, result.Products, 2)
}

type stubRenderer struct {
	html string
}

func (r stubRenderer) Render(_ context.Context, _ string) (string, error) {
	return r.html, nil
}

func TestRunEscalatesSPAStorefront(t *testing.T) {
	spaShell := `<html><body><div id="root" data-reactroot=""></div></body></html>`

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://spa.example.com/",
		httpmock.NewStringResponder(200, spaShell))
	transport.RegisterResponder("GET", "https://spa.example.com/sitemap.xml",
		httpmock.NewStringResponder(200, `<?xml version="1.0"?><urlset>
		<url><loc>https://spa.example.com/product/apples</loc></url>
		</urlset>`))
	transport.RegisterResponder("GET", "https://spa.example.com/product/apples",
		httpmock.NewStringResponder(200, spaShell))

	// The renderer stands in for the headless browser and produces the real
	// DOM for both the root and the product page.
	fetcher := fetch.New(fetch.Options{
		Client:   &http.Client{Transport: transport},
		Renderer: stubRenderer{html: productPageHTML("Honeycrisp Apples", "$3.00")},
	})
	discoverer := discover.New(fetcher, discover.Options{Transport: transport})
	o := New(fetcher, discoverer, Options{Workers: 1})

	result, err := o.Run(context.Background(), Request{StoreURL: "https://spa.example.com/"})

	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "Honeycrisp Apples", result.Products[0].Name)
	assert.Equal(t, int64(300), result.Products[0].Price.AmountCents)
}

func TestRunRootIsProductPage(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://solo.example.com/",
		httpmock.NewStringResponder(200, productPageHTML("The Only Thing We Sell", "$99.00")))

	o := newTestOrchestrator(transport, Options{Workers: 1})
	result, err := o.Run(context.Background(), Request{StoreURL: "https://solo.example.com/"})

	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "The Only Thing We Sell", result.Products[0].Name)
}

func TestSourceItemID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://shop.example.com/product/apples", "apples"},
		{"https://shop.example.com/steel-bottle.html", "steel-bottle"},
		{"https://shop.example.com/", ""},
		{"https://shop.example.com/p/123/", "123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sourceItemID(tt.in), tt.in)
	}
}
