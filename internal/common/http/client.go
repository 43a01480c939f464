package http

import (
	"context"
	"net/http"
	"time"
)

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	httpClient *http.Client
	tokens     TokenSource
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewAuthenticatedClient returns a client that stamps Authorization headers
// from the given token source.
func NewAuthenticatedClient(timeout time.Duration, tokens TokenSource) *Client {
	c := NewClient(timeout)
	c.tokens = tokens
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.tokens != nil {
		tok, err := c.tokens.Token(req.Context())
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.Do(req)
}
