// Package deliver streams scraped items and progress snapshots to the
// onboarding backend. Delivery is strictly best-effort: the scrape result
// returned to the caller is identical whether or not a sink is configured,
// and no delivery failure ever fails a scrape.
package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rekohub/storefront-scraper/internal/models"
)

const (
	itemsPath    = "/v4/auto-onboard/items"
	progressPath = "/v4/auto-onboard/progress"

	queueSize      = 256
	requestTimeout = 10 * time.Second
)

// retryBackoff is a var so tests can shrink it.
var retryBackoff = 2 * time.Second

// itemPayload is the outbound item shape. Price travels as the raw text
// found on the page; the backend canonicalizes it with the same rules we
// use locally.
type itemPayload struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Price        string `json:"price"`
	ImageURL     string `json:"imageUrl,omitempty"`
	SourceItemID string `json:"sourceItemId,omitempty"`
}

// Sink posts items and progress to {baseURL}/v4/auto-onboard/*. A single
// worker goroutine drains a FIFO queue, so progress snapshots arrive in the
// order they were taken and counters never appear to move backwards.
//
// A nil *Sink is valid and drops everything silently.
type Sink struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger

	queue chan deliveryJob
	once  sync.Once
	done  chan struct{}
}

type deliveryJob struct {
	path string
	body []byte
}

type Options struct {
	BaseURL string
	Token   string
	Client  *http.Client // injected by tests
}

// New returns a running sink, or nil when no base URL is configured.
func New(opts Options) *Sink {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	s := &Sink{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		token:   opts.Token,
		client:  client,
		logger:  slog.Default().With("component", "sink"),
		queue:   make(chan deliveryJob, queueSize),
		done:    make(chan struct{}),
	}
	go s.worker()
	return s
}

// DeliverItem enqueues one product for delivery. Drops with a warning when
// the queue is full.
func (s *Sink) DeliverItem(product models.NormalizedProduct) {
	if s == nil {
		return
	}
	payload := itemPayload{
		Name:         product.Name,
		Description:  product.Description,
		Price:        product.RawPrice,
		ImageURL:     product.ImageURL,
		SourceItemID: product.SourceItemID,
	}
	s.enqueue(itemsPath, payload)
}

// ReportProgress enqueues a progress snapshot.
func (s *Sink) ReportProgress(event models.ProgressEvent) {
	if s == nil {
		return
	}
	s.enqueue(progressPath, event)
}

// Close stops accepting work, drains what was already queued, and waits for
// the worker to finish.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.queue)
	})
	<-s.done
}

func (s *Sink) enqueue(path string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("sink payload not serializable", "path", path, "error", err)
		return
	}
	select {
	case s.queue <- deliveryJob{path: path, body: body}:
	default:
		s.logger.Warn("sink queue full, dropping delivery", "path", path)
	}
}

func (s *Sink) worker() {
	defer close(s.done)
	for job := range s.queue {
		s.post(job)
	}
}

// post sends one payload. A 429 gets exactly one retry after a fixed
// backoff; every other failure is logged and dropped.
func (s *Sink) post(job deliveryJob) {
	status, err := s.send(job)
	if err == nil && status != http.StatusTooManyRequests {
		return
	}
	if status == http.StatusTooManyRequests {
		time.Sleep(retryBackoff)
		if status, err := s.send(job); err != nil || status == http.StatusTooManyRequests {
			s.logger.Warn("sink delivery dropped after retry", "path", job.path, "status", status, "error", err)
		}
		return
	}
	s.logger.Warn("sink delivery dropped", "path", job.path, "error", err)
}

func (s *Sink) send(job deliveryJob) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+job.path, bytes.NewReader(job.body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
