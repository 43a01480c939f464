package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"leadflow/internal/common/errors"
	"leadflow/internal/models"
)

// GetConversation returns the SMS thread for a lead. A lead with no
// conversation yet is not an error: 404 maps to (nil, nil).
func (c *HTTPClient) GetConversation(ctx context.Context, leadID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := c.doJSON(ctx, "get_conversation", http.MethodGet,
		fmt.Sprintf("/leads/%s/conversation", url.PathEscape(leadID)), nil, &conv)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// ListTemplates returns the canned SMS templates.
func (c *HTTPClient) ListTemplates(ctx context.Context) ([]models.Template, error) {
	var templates []models.Template
	if err := c.doJSON(ctx, "list_templates", http.MethodGet, "/templates", nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// SendMessage sends an outbound SMS on a lead's conversation and returns the
// created message with its delivery status.
func (c *HTTPClient) SendMessage(ctx context.Context, leadID, body string) (*models.Message, error) {
	if body == "" {
		return nil, errors.NewValidationError("body", "message body is empty")
	}
	payload := map[string]string{"body": body}
	var msg models.Message
	if err := c.doJSON(ctx, "send_message", http.MethodPost,
		fmt.Sprintf("/leads/%s/messages", url.PathEscape(leadID)), payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
