package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rekohub/storefront-scraper/internal/config"
	"github.com/rekohub/storefront-scraper/internal/models"
	"github.com/rekohub/storefront-scraper/internal/scrape"
)

type fakeRunner struct {
	lastReq scrape.Request
	result  *scrape.Result
	err     error
}

func (f *fakeRunner) Run(_ context.Context, req scrape.Request) (*scrape.Result, error) {
	f.lastReq = req
	return f.result, f.err
}

func newTestRouter(runner Runner) *chi.Mux {
	h := NewHandlers(runner, config.DeliveryConfig{}, slog.Default())
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func okResult() *scrape.Result {
	return &scrape.Result{
		SessionID: "session-1",
		StoreURL:  "https://shop.example.com",
		Platform:  models.PlatformWooCommerce,
		Products: []models.NormalizedProduct{{
			Name:      "Honeycrisp Apples",
			Price:     models.PriceSpec{AmountCents: 300, Unit: models.UnitOrder},
			SourceURL: "https://shop.example.com/product/apples",
		}},
	}
}

func TestScrapePostReturnsProducts(t *testing.T) {
	runner := &fakeRunner{result: okResult()}
	router := newTestRouter(runner)

	body := `{"url":"https://shop.example.com","apiBaseUrl":"","agentToken":""}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Result, 1)
	assert.Equal(t, "Honeycrisp Apples", resp.Result[0].Name)
	assert.Equal(t, int64(300), resp.Result[0].Price.AmountCents)
	assert.Equal(t, models.PlatformWooCommerce, resp.Platform)
}

func TestScrapeGetWithQueryParam(t *testing.T) {
	runner := &fakeRunner{result: okResult()}
	router := newTestRouter(runner)

	req := httptest.NewRequest(http.MethodGet, "/?url=shop.example.com", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// Scheme is defaulted to https before the scrape starts.
	assert.Equal(t, "https://shop.example.com", runner.lastReq.StoreURL)
}

func TestScrapeMissingURLIs400(t *testing.T) {
	router := newTestRouter(&fakeRunner{result: okResult()})

	for _, body := range []string{`{}`, `{"url":"   "}`, `{"url":"ftp://x"}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestScrapeInvalidBodyIs400(t *testing.T) {
	router := newTestRouter(&fakeRunner{result: okResult()})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeRootUnreachableIsStructuredError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("storefront unreachable: connection refused")}
	router := newTestRouter(runner)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"https://gone.example.com"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Empty(t, resp.Result)
	assert.NotEmpty(t, resp.Error)
}
