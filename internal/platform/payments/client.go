// Package payments talks to the hosted payment provider: checkout session
// creation, price lookups for the service catalog, and webhook signature
// verification for payment confirmations.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// LineItem is one billable line of a checkout session.
type LineItem struct {
	Description string `json:"description"`
	UnitAmount  int64  `json:"unit_amount"` // cents
	Quantity    int64  `json:"quantity"`
	Currency    string `json:"currency"`
}

// CheckoutSession is the provider's hosted payment session.
type CheckoutSession struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	AmountTotal int64  `json:"amount_total"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

// Price is a catalog price object from the provider.
type Price struct {
	ID         string `json:"id"`
	ProductID  string `json:"product"`
	Nickname   string `json:"nickname"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

type priceList struct {
	Data    []Price `json:"data"`
	HasMore bool    `json:"has_more"`
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment provider returned %d: %s", e.StatusCode, e.Message)
}

// Client is a thin HTTP client for the provider API. Requests are
// form-encoded and authenticated with the secret key, matching the
// provider's wire format.
type Client struct {
	baseURL    string
	secretKey  string
	successURL string
	cancelURL  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey, successURL, cancelURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateCheckoutSession creates a hosted checkout session for the given line
// items. Metadata is echoed back on the confirmation webhook and is how the
// draft lab script is recovered.
func (c *Client) CreateCheckoutSession(ctx context.Context, items []LineItem, metadata map[string]string) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.successURL)
	form.Set("cancel_url", c.cancelURL)

	for i, item := range items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", item.Currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Description)
		form.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
	}
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var session CheckoutSession
	if err := c.post(ctx, "/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetPrice fetches a single catalog price by provider id.
func (c *Client) GetPrice(ctx context.Context, priceID string) (*Price, error) {
	var price Price
	if err := c.get(ctx, "/prices/"+url.PathEscape(priceID), &price); err != nil {
		return nil, err
	}
	return &price, nil
}

// ListPrices fetches the active price catalog, following pagination.
func (c *Client) ListPrices(ctx context.Context) ([]Price, error) {
	var all []Price
	startingAfter := ""
	for {
		path := "/prices?active=true&limit=100"
		if startingAfter != "" {
			path += "&starting_after=" + url.QueryEscape(startingAfter)
		}
		var page priceList
		if err := c.get(ctx, path, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			return all, nil
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := providerErrorMessage(body)
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func providerErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}
