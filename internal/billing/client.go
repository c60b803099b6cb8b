package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultTimeout = 3 * time.Second

// Client talks to the billing service for purchase and subscription state.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a billing client. When a client id and token url are
// configured, requests carry an oauth2 client-credentials bearer token.
func NewClient(cfg config.BillingConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := &http.Client{Timeout: timeout}

	httpClient := base
	if cfg.ClientID != "" && cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       []string{"billing.read"},
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = cc.Client(ctx)
		httpClient.Timeout = timeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
	}
}

type purchaseResponse struct {
	Purchased bool `json:"purchased"`
}

// HasPurchased reports whether userID bought collectionID.
func (c *Client) HasPurchased(ctx context.Context, userID, collectionID string) (bool, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("collection_id", collectionID)

	var resp purchaseResponse
	found, err := c.getJSON(ctx, "/v1/purchases?"+q.Encode(), &resp)
	if err != nil || !found {
		return false, err
	}
	return resp.Purchased, nil
}

// ActiveSubscription returns the user's active plan, or nil when there is none.
func (c *Client) ActiveSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	found, err := c.getJSON(ctx, "/v1/subscriptions/"+url.PathEscape(userID)+"/active", &sub)
	if err != nil || !found {
		return nil, err
	}
	if !sub.Active {
		return nil, nil
	}
	return &sub, nil
}

// getJSON decodes a 2xx body into out. A 404 is reported as found=false.
func (c *Client) getJSON(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("billing: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, domain.WrapError(domain.KindUpstreamUnavailable, err, "billing service unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, domain.WrapError(domain.KindUpstreamUnavailable,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			"billing service error")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("billing: decode %s: %w", path, err)
	}
	return true, nil
}
