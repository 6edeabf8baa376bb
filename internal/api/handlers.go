package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rekohub/storefront-scraper/internal/config"
	"github.com/rekohub/storefront-scraper/internal/deliver"
	"github.com/rekohub/storefront-scraper/internal/models"
	"github.com/rekohub/storefront-scraper/internal/scrape"
)

var (
	errMissingURL  = errors.New("url parameter is required")
	errInvalidBody = errors.New("invalid request body")
)

// Runner executes a scrape session. Satisfied by *scrape.Orchestrator.
type Runner interface {
	Run(ctx context.Context, req scrape.Request) (*scrape.Result, error)
}

type Handlers struct {
	runner   Runner
	delivery config.DeliveryConfig
	client   *http.Client // sink client override, tests only
	logger   *slog.Logger
}

func NewHandlers(runner Runner, delivery config.DeliveryConfig, logger *slog.Logger) *Handlers {
	return &Handlers{
		runner:   runner,
		delivery: delivery,
		logger:   logger,
	}
}

// ScrapeRequest carries the storefront URL plus an optional per-request
// delivery destination overriding the configured fallback.
type ScrapeRequest struct {
	URL        string `json:"url"`
	APIBaseURL string `json:"apiBaseUrl"`
	AgentToken string `json:"agentToken"`
}

// ScrapeResponse is the synchronous result envelope. Status is "ok" or
// "error"; a failed scrape is still a well-formed JSON response.
type ScrapeResponse struct {
	Status    string                     `json:"status"`
	Result    []models.NormalizedProduct `json:"result,omitempty"`
	SessionID string                     `json:"sessionId,omitempty"`
	Platform  models.Platform            `json:"platform,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

func (h *Handlers) Register(r chi.Router) {
	r.Post("/", h.Scrape)
	r.Get("/", h.Scrape)
}

// Scrape runs a full session synchronously and returns every product it
// collected. GET passes parameters as query strings, POST as a JSON body.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	req, err := decodeScrapeRequest(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	storeURL, err := canonicalStoreURL(req.URL)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	sink := h.newSink(req)
	defer sink.Close()

	result, err := h.runner.Run(r.Context(), scrape.Request{StoreURL: storeURL, Sink: sink})
	if err != nil {
		// Root unreachable is reported in-band: the caller gets a
		// structured verdict, not a transport error.
		h.logger.Error("scrape failed", "store_url", storeURL, "error", err)
		h.respondJSON(w, http.StatusOK, ScrapeResponse{Status: "error", Error: err.Error()})
		return
	}

	h.respondJSON(w, http.StatusOK, ScrapeResponse{
		Status:    "ok",
		Result:    result.Products,
		SessionID: result.SessionID,
		Platform:  result.Platform,
	})
}

func decodeScrapeRequest(r *http.Request) (ScrapeRequest, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		return ScrapeRequest{
			URL:        q.Get("url"),
			APIBaseURL: q.Get("apiBaseUrl"),
			AgentToken: q.Get("agentToken"),
		}, nil
	}

	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ScrapeRequest{}, errInvalidBody
	}
	return req, nil
}

// canonicalStoreURL validates the storefront URL, defaulting the scheme to
// https when the caller omitted it.
func canonicalStoreURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errMissingURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", errMissingURL
	}
	return u.String(), nil
}

// newSink builds the delivery sink for one request: per-request credentials
// win over the configured fallback, and no destination means a nil no-op
// sink.
func (h *Handlers) newSink(req ScrapeRequest) *deliver.Sink {
	baseURL, token := req.APIBaseURL, req.AgentToken
	if baseURL == "" {
		baseURL, token = h.delivery.APIBaseURL, h.delivery.AgentToken
	}
	return deliver.New(deliver.Options{BaseURL: baseURL, Token: token, Client: h.client})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
