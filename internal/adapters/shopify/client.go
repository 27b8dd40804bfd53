package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"catalog-sync/internal/adapters/shopify/dto"
	"catalog-sync/internal/config"
	"catalog-sync/internal/throttle"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// BulkResult is the outcome of one bulk mutation: the per-item user errors
// keyed by input index, and the throttle telemetry of the call.
type BulkResult struct {
	ItemErrors map[int]string
	Throttle   throttle.Status
}

type Client struct {
	config     config.ShopifyConfig
	httpClient *http.Client
	// Enforces the minimum spacing between GraphQL calls; one token per call.
	limiter *rate.Limiter

	locationMu sync.Mutex
	locationID string
}

func NewClient(cfg config.ShopifyConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	interval := cfg.MinRequestInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Client{
		config:     cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (c *Client) endpoint() (string, error) {
	domain := strings.TrimSpace(c.config.ShopDomain)
	if domain == "" {
		return "", errors.New("shopify shop domain is empty")
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	domain = strings.TrimRight(domain, "/")
	if c.config.APIVer == "" {
		return "", errors.New("shopify api version is empty")
	}
	return domain + "/admin/api/" + c.config.APIVer + "/graphql.json", nil
}

func (c *Client) shopifyAPIRequest(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPStatusError(resp, respBody)
	}

	return respBody, nil
}

// graphqlRequest posts one GraphQL document, retrying transport-level
// failures (429, 5xx) and THROTTLED GraphQL errors with exponential backoff,
// honoring the Retry-After header on rate-limited responses. It returns the
// throttle telemetry of the final attempt so callers can pace the next one.
func (c *Client) graphqlRequest(ctx context.Context, query string, variables map[string]any, out any) (throttle.Status, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return throttle.Status{}, err
	}

	payload := graphQLRequest{
		Query:     strings.TrimSpace(query),
		Variables: variables,
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return throttle.Status{}, err
	}

	var lastErr error
	for attempt := 0; attempt <= graphqlRetryMax; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, retryDelay(attempt-1, lastErr)); err != nil {
				return throttle.Status{}, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return throttle.Status{}, err
		}

		raw, err := c.shopifyAPIRequest(ctx, endpoint, bodyBytes)
		if err != nil {
			if isRetryableHTTPError(err) {
				lastErr = err
				continue
			}
			return throttle.Status{}, err
		}

		var resp dto.GraphQLResponse[json.RawMessage]
		if err := json.Unmarshal(raw, &resp); err != nil {
			return throttle.Status{}, fmt.Errorf("shopify graphql decode: %w", err)
		}

		status := throttleStatusFromExtensions(resp.Extensions)

		if len(resp.Errors) > 0 {
			if isThrottleGraphQLError(resp.Errors) {
				lastErr = fmt.Errorf("shopify graphql throttled: %s", formatGraphQLErrors(resp.Errors))
				continue
			}
			return status, fmt.Errorf("shopify graphql errors: %s", formatGraphQLErrors(resp.Errors))
		}
		if out == nil {
			return status, nil
		}
		if len(resp.Data) == 0 {
			return status, errors.New("shopify graphql response missing data")
		}
		return status, json.Unmarshal(resp.Data, out)
	}

	return throttle.Status{}, fmt.Errorf("shopify request retries exhausted: %w", lastErr)
}

func throttleStatusFromExtensions(ext *dto.Extensions) throttle.Status {
	if ext == nil || ext.Cost == nil {
		return throttle.Status{}
	}
	status := throttle.Status{
		ActualQueryCost: ext.Cost.ActualQueryCost,
	}
	if ts := ext.Cost.ThrottleStatus; ts != nil {
		status.CurrentlyAvailable = ts.CurrentlyAvailable
		status.MaximumAvailable = ts.MaximumAvailable
		status.RestoreRate = ts.RestoreRate
	}
	return status
}

func formatGraphQLErrors(errs []dto.GraphQLError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		message := strings.TrimSpace(e.Message)
		if message == "" {
			continue
		}
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "unknown error"
	}
	return strings.Join(parts, "; ")
}

// LocationID returns the configured inventory location, falling back to the
// shop's first active location. The lookup result is cached for the life of
// the client.
func (c *Client) LocationID(ctx context.Context) (string, error) {
	if configured := strings.TrimSpace(c.config.LocationID); configured != "" {
		return configured, nil
	}

	c.locationMu.Lock()
	if c.locationID != "" {
		locationID := c.locationID
		c.locationMu.Unlock()
		return locationID, nil
	}
	c.locationMu.Unlock()

	query := `
	query locations($first: Int!) {
		locations(first: $first) {
			nodes { id name isActive }
		}
	}`

	var data dto.LocationsQueryData
	if _, err := c.graphqlRequest(ctx, query, map[string]any{"first": 50}, &data); err != nil {
		return "", err
	}
	locationID := ""
	for _, location := range data.Locations.Nodes {
		if location.ID == "" {
			continue
		}
		if location.IsActive {
			locationID = location.ID
			break
		}
	}
	if locationID == "" && len(data.Locations.Nodes) > 0 {
		locationID = data.Locations.Nodes[0].ID
	}
	if locationID == "" {
		return "", errors.New("shopify location not found")
	}
	locationID = gidTail(locationID)

	c.locationMu.Lock()
	c.locationID = locationID
	c.locationMu.Unlock()
	return locationID, nil
}
