package deliver

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rekohub/storefront-scraper/internal/models"
)

type recordedRequest struct {
	auth string
	body map[string]any
}

// recordingResponder captures request bodies and replies with a fixed
// status per call index (last status repeats).
func recordingResponder(t *testing.T, mu *sync.Mutex, got *[]recordedRequest, statuses ...int) httpmock.Responder {
	t.Helper()
	calls := 0
	return func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		var body map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		*got = append(*got, recordedRequest{auth: req.Header.Get("Authorization"), body: body})
		status := statuses[min(calls, len(statuses)-1)]
		calls++
		return httpmock.NewStringResponse(status, ""), nil
	}
}

func newTestSink(transport *httpmock.MockTransport) *Sink {
	return New(Options{
		BaseURL: "https://api.example.com",
		Token:   "agent-token",
		Client:  &http.Client{Transport: transport},
	})
}

func TestSinkDeliversItemWithRawPrice(t *testing.T) {
	var mu sync.Mutex
	var got []recordedRequest
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("POST", "https://api.example.com/v4/auto-onboard/items",
		recordingResponder(t, &mu, &got, 202))

	s := newTestSink(transport)
	s.DeliverItem(models.NormalizedProduct{
		Name:         "Honeycrisp Apples",
		Price:        models.PriceSpec{AmountCents: 300, Unit: models.UnitPound, Approximate: true},
		RawPrice:     "3 per pound",
		SourceURL:    "https://shop.example.com/product/apples",
		SourceItemID: "apples",
	})
	s.Close()

	require.Len(t, got, 1)
	assert.Equal(t, "Bearer agent-token", got[0].auth)
	assert.Equal(t, "Honeycrisp Apples", got[0].body["name"])
	assert.Equal(t, "3 per pound", got[0].body["price"])
	assert.Equal(t, "apples", got[0].body["sourceItemId"])
}

func TestSinkProgressArrivesInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []recordedRequest
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("POST", "https://api.example.com/v4/auto-onboard/progress",
		recordingResponder(t, &mu, &got, 202))

	s := newTestSink(transport)
	for i := int64(1); i <= 5; i++ {
		s.ReportProgress(models.ProgressEvent{
			DiscoveredCount: 10,
			SentCount:       i,
			Phase:           models.PhaseImporting,
		})
	}
	s.Close()

	require.Len(t, got, 5)
	for i, r := range got {
		assert.Equal(t, float64(i+1), r.body["sentCount"])
	}
}

func TestSinkRetriesOnceOn429(t *testing.T) {
	prev := retryBackoff
	retryBackoff = 10 * time.Millisecond
	defer func() { retryBackoff = prev }()

	var mu sync.Mutex
	var got []recordedRequest
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("POST", "https://api.example.com/v4/auto-onboard/items",
		recordingResponder(t, &mu, &got, 429, 202))

	s := newTestSink(transport)
	s.DeliverItem(models.NormalizedProduct{Name: "Cider", RawPrice: "$6.50"})
	s.Close()

	assert.Len(t, got, 2)
}

func TestSinkDropsOnPersistentFailure(t *testing.T) {
	var mu sync.Mutex
	var got []recordedRequest
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("POST", "https://api.example.com/v4/auto-onboard/items",
		recordingResponder(t, &mu, &got, 500))

	s := newTestSink(transport)
	s.DeliverItem(models.NormalizedProduct{Name: "Cider", RawPrice: "$6.50"})
	s.DeliverItem(models.NormalizedProduct{Name: "Jam", RawPrice: "$5.00"})
	s.Close()

	// 500 is not retried; both items attempted once, neither blocks the
	// other.
	assert.Len(t, got, 2)
}

func TestSinkNilIsNoOp(t *testing.T) {
	var s *Sink
	s.DeliverItem(models.NormalizedProduct{Name: "Cider"})
	s.ReportProgress(models.ProgressEvent{})
	s.Close()
}

func TestSinkUnconfiguredReturnsNil(t *testing.T) {
	assert.Nil(t, New(Options{BaseURL: "  "}))
}
