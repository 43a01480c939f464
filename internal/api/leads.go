package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"leadflow/internal/common/errors"
	"leadflow/internal/models"
)

// FetchQueue pulls one page of the filtered lead queue.
func (c *HTTPClient) FetchQueue(ctx context.Context, q models.QueueQuery) (*models.QueuePage, error) {
	if q.Queue != "" && !q.Queue.Valid() {
		return nil, errors.NewValidationError("queue", string(q.Queue))
	}

	params := url.Values{}
	if q.Queue != "" {
		params.Set("queue", string(q.Queue))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}

	path := "/queue"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var page models.QueuePage
	if err := c.doJSON(ctx, "fetch_queue", http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UpdateStatus moves a lead to a new lifecycle state.
func (c *HTTPClient) UpdateStatus(ctx context.Context, id string, status models.LeadStatus) error {
	if !status.Valid() {
		return errors.NewValidationError("status", string(status))
	}
	payload := map[string]string{"status": string(status)}
	return c.doJSON(ctx, "update_status", http.MethodPut,
		fmt.Sprintf("/leads/%s/status", url.PathEscape(id)), payload, nil)
}

// UpdateNotes replaces the free-form notes on a lead.
func (c *HTTPClient) UpdateNotes(ctx context.Context, id, notes string) error {
	payload := map[string]string{"notes": notes}
	return c.doJSON(ctx, "update_notes", http.MethodPut,
		fmt.Sprintf("/leads/%s/notes", url.PathEscape(id)), payload, nil)
}

// UpdateSellerPhone replaces the seller contact number.
func (c *HTTPClient) UpdateSellerPhone(ctx context.Context, id, phone string) error {
	payload := map[string]string{"sellerPhone": phone}
	return c.doJSON(ctx, "update_phone", http.MethodPut,
		fmt.Sprintf("/leads/%s/phone", url.PathEscape(id)), payload, nil)
}

// SubmitEvaluation sends manual estimate edits. The response carries the
// full lead with server-derived MAO/spread, which the cache adopts verbatim.
func (c *HTTPClient) SubmitEvaluation(ctx context.Context, id string, input EvaluationInput) (*models.Lead, error) {
	if input.Empty() {
		return nil, errors.NewValidationError("evaluation", "no fields to update")
	}
	var lead models.Lead
	if err := c.doJSON(ctx, "submit_evaluation", http.MethodPost,
		fmt.Sprintf("/leads/%s/evaluation", url.PathEscape(id)), input, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// ScheduleFollowUp sets the follow-up date, YYYY-MM-DD.
func (c *HTTPClient) ScheduleFollowUp(ctx context.Context, id, dateISO string) error {
	payload := map[string]string{"date": dateISO}
	return c.doJSON(ctx, "schedule_follow_up", http.MethodPost,
		fmt.Sprintf("/leads/%s/follow-up", url.PathEscape(id)), payload, nil)
}

// CancelFollowUp clears any scheduled follow-up.
func (c *HTTPClient) CancelFollowUp(ctx context.Context, id string) error {
	return c.doJSON(ctx, "cancel_follow_up", http.MethodDelete,
		fmt.Sprintf("/leads/%s/follow-up", url.PathEscape(id)), nil, nil)
}

// DeleteLead removes a lead permanently.
func (c *HTTPClient) DeleteLead(ctx context.Context, id string) error {
	return c.doJSON(ctx, "delete_lead", http.MethodDelete,
		fmt.Sprintf("/leads/%s", url.PathEscape(id)), nil, nil)
}

// ScoreFromURL ingests a listing URL (Zillow) and returns the scored lead.
func (c *HTTPClient) ScoreFromURL(ctx context.Context, listingURL string) (*models.Lead, error) {
	if _, err := url.ParseRequestURI(listingURL); err != nil {
		return nil, errors.NewValidationError("url", err.Error())
	}
	payload := map[string]string{"url": listingURL}
	var lead models.Lead
	if err := c.doJSON(ctx, "score_from_url", http.MethodPost, "/leads/score", payload, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// EnrichComparables asks the backend to pull RentCast comps for a lead. The
// provider rate limit (429) surfaces as a dedicated error so callers can
// show the right message.
func (c *HTTPClient) EnrichComparables(ctx context.Context, id string) ([]models.Comparable, error) {
	var comps []models.Comparable
	err := c.doJSON(ctx, "enrich_comparables", http.MethodPost,
		fmt.Sprintf("/leads/%s/comparables", url.PathEscape(id)), nil, &comps)
	if err != nil {
		if errors.IsRateLimited(err) {
			return nil, errors.NewRateLimitedError("RentCast")
		}
		return nil, err
	}
	return comps, nil
}
