package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Skryldev/reviewkit/models"
)

type updateResult struct {
	Modified int64           `json:"modified"`
	Original []models.Review `json:"original"`
}

type apiError struct {
	Error string `json:"error"`
}

type client struct {
	http *resty.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// updateReview calls PATCH /rest/products/reviews as the bearer of token.
func (c *client) updateReview(ctx context.Context, token, id, message string) (*updateResult, error) {
	var (
		out    updateResult
		apiErr apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]string{"id": id, "message": message}).
		SetResult(&out).
		SetError(&apiErr).
		Patch("/rest/products/reviews")
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return nil, fmt.Errorf("update review: %s: %s", resp.Status(), apiErr.Error)
		}
		return nil, fmt.Errorf("update review: %s", resp.Status())
	}
	return &out, nil
}
