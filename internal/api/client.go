// Package api is the JSON client for the lead-management REST backend. All
// calls are single-attempt; failure handling is the caller's rollback, not a
// retry loop.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	httpx "leadflow/internal/common/http"
	"leadflow/internal/common/metrics"

	"leadflow/internal/common/errors"
	"leadflow/internal/models"
)

// Client is the surface the queue cache and inbox are written against. The
// HTTP implementation talks to the real backend; the mock implementation
// backs the api.mock config toggle.
type Client interface {
	FetchQueue(ctx context.Context, q models.QueueQuery) (*models.QueuePage, error)

	UpdateStatus(ctx context.Context, id string, status models.LeadStatus) error
	UpdateNotes(ctx context.Context, id, notes string) error
	UpdateSellerPhone(ctx context.Context, id, phone string) error
	SubmitEvaluation(ctx context.Context, id string, input EvaluationInput) (*models.Lead, error)
	ScheduleFollowUp(ctx context.Context, id, dateISO string) error
	CancelFollowUp(ctx context.Context, id string) error
	DeleteLead(ctx context.Context, id string) error

	ScoreFromURL(ctx context.Context, listingURL string) (*models.Lead, error)
	EnrichComparables(ctx context.Context, id string) ([]models.Comparable, error)

	GetConversation(ctx context.Context, leadID string) (*models.Conversation, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
	SendMessage(ctx context.Context, leadID, body string) (*models.Message, error)
}

// EvaluationInput carries the manually edited estimate fields. Nil means
// "leave unchanged".
type EvaluationInput struct {
	ARV   *float64 `json:"arv,omitempty"`
	Rehab *float64 `json:"rehab,omitempty"`
	Rent  *float64 `json:"rent,omitempty"`
	Notes *string  `json:"notes,omitempty"`
}

// Empty reports whether the input changes nothing.
func (e EvaluationInput) Empty() bool {
	return e.ARV == nil && e.Rehab == nil && e.Rent == nil && e.Notes == nil
}

// HTTPClient implements Client against the REST backend.
type HTTPClient struct {
	baseURL    string
	httpClient *httpx.Client
}

// NewHTTPClient creates the backend client. tokens may be nil for an
// unauthenticated backend (local dev).
func NewHTTPClient(baseURL string, timeout time.Duration, tokens httpx.TokenSource) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpx.NewAuthenticatedClient(timeout, tokens),
	}
}

// doJSON performs one request and decodes a JSON response into out (out may
// be nil for empty responses). Error mapping: transport failures become
// NETWORK_FAILURE, 404 RESOURCE_NOT_FOUND, 429 RATE_LIMITED, any other
// non-2xx REQUEST_FAILED.
func (c *HTTPClient) doJSON(ctx context.Context, operation, method, path string, payload, out interface{}) error {
	start := time.Now()
	defer func() {
		metrics.APIRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", operation, err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return errors.NewNetworkFailureError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewNetworkFailureError(err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NewNotFoundError(operation, path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.NewRateLimitedError(operation)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.NewRequestFailedError(resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal %s response: %w", operation, err)
		}
	}
	return nil
}
