// Package push delivers notifications to the platform's push gateway.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Bounds of the Retry-After header value, seconds.
const (
	minRetryAfter     = 1
	maxRetryAfter     = 120
	defaultRetryAfter = 60
)

type Payload struct {
	ID         uuid.UUID `json:"id"`
	UserID     int64     `json:"user_id"`
	AuctionID  *int64    `json:"auction_id,omitempty"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	Importance int16     `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// Client posts every notification as JSON to a single webhook URL.
type Client struct {
	url        string
	httpClient *http.Client
}

func New(url string) *Client {
	return &Client{
		url:        url,
		httpClient: http.DefaultClient,
	}
}

// Deliver sends n once. Any 2xx answer is success, 429 gives TooManyRequestError and every other status
// StatusCodeError.
//
//nolint:nonamedreturns
func (c *Client) Deliver(ctx context.Context, n domain.Notification) (err error) {
	body, err := json.Marshal(Payload{
		ID:         n.ID,
		UserID:     n.UserID,
		AuctionID:  n.AuctionID,
		Type:       string(n.Type),
		Message:    n.Message,
		Importance: int16(n.Importance),
		CreatedAt:  n.CreatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", n.ID.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "close body")
		}
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewTooManyRequestError(parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return NewStatusCodeError(resp.StatusCode)
	}
	return nil
}

func parseRetryAfter(value string) time.Duration {
	retryAfter, err := decimal.NewFromString(value)
	if err != nil || retryAfter.LessThan(decimal.NewFromInt(minRetryAfter)) ||
		retryAfter.GreaterThan(decimal.NewFromInt(maxRetryAfter)) {
		retryAfter = decimal.NewFromInt(defaultRetryAfter)
	}
	return time.Duration(retryAfter.IntPart()) * time.Second
}
