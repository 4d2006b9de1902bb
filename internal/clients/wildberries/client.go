package wildberries

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"pricing-service/internal/clients"
)

const (
	contentAPIURL     = "https://content-api.wildberries.ru"
	contentAPISandbox = "https://content-api-sandbox.wildberries.ru"

	pricesEndpoint = "/public/api/v1/prices"
	pingEndpoint   = "/ping"

	// The pricing API accepts up to 1000 positions per request and allows
	// 100 requests per minute per seller key.
	defaultMaxChunkSize = 1000
	requestsPerMinute   = 100
)

// Config configures a Wildberries pricing client.
type Config struct {
	APIKey       string
	BaseURL      string // overrides the standard endpoints when set
	Sandbox      bool
	MaxChunkSize int
	Retry        *clients.RetryConfig
	HTTPTimeout  time.Duration
}

// Client implements clients.PricingClient against the Wildberries pricing
// API for one seller's API key.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	maxChunkSize int
	rateLimiter  *rate.Limiter
	retrier      *clients.Retrier
	breaker      *clients.CircuitBreaker
}

// NewClient creates a new Wildberries pricing client
func NewClient(cfg Config) *Client {
	baseURL := contentAPIURL
	if cfg.Sandbox {
		baseURL = contentAPISandbox
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	maxChunk := cfg.MaxChunkSize
	if maxChunk <= 0 {
		maxChunk = defaultMaxChunkSize
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		apiKey:       cfg.APIKey,
		maxChunkSize: maxChunk,
		rateLimiter:  rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 5),
		retrier:      clients.NewRetrier(cfg.Retry),
		breaker:      clients.NewCircuitBreaker(5, 60*time.Second),
	}
}

// MaxChunkSize returns the largest number of updates one submission may carry
func (c *Client) MaxChunkSize() int {
	return c.maxChunkSize
}

// wbErrorResponse is the error envelope the pricing API wraps refusals in.
type wbErrorResponse struct {
	Error     bool   `json:"error"`
	ErrorText string `json:"errorText"`
	Data      struct {
		Errors []struct {
			NmID    int64  `json:"nmID"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"data"`
}

// SubmitPriceUpdate pushes one chunk of price updates. Connectivity failures,
// auth refusals and exhausted retries come back as *clients.TransportError;
// per-item refusals are reported in the result with the remaining items
// accepted.
func (c *Client) SubmitPriceUpdate(ctx context.Context, updates []clients.PriceUpdate) (*clients.PriceUpdateResult, error) {
	if len(updates) == 0 {
		return &clients.PriceUpdateResult{}, nil
	}
	if len(updates) > c.maxChunkSize {
		return nil, fmt.Errorf("chunk of %d updates exceeds maximum of %d", len(updates), c.maxChunkSize)
	}

	if !c.breaker.Allow() {
		return nil, &clients.TransportError{
			Operation: "submit prices",
			Err:       fmt.Errorf("circuit breaker open"),
		}
	}

	body, err := json.Marshal(updates)
	if err != nil {
		return nil, fmt.Errorf("marshal price updates: %w", err)
	}

	resp, bodyBytes, err := c.doRequest(ctx, http.MethodPost, pricesEndpoint, body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, &clients.TransportError{Operation: "submit prices", Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.breaker.RecordSuccess()
		return buildResult(updates, bodyBytes), nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.breaker.RecordFailure()
		return nil, &clients.TransportError{
			Operation:  "submit prices",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("authorization rejected: %s", errorText(bodyBytes)),
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The API refused the whole payload but the endpoint itself is fine:
		// surface every item as rejected so the caller can fail them
		// individually and move on to the next chunk.
		c.breaker.RecordSuccess()
		reason := errorText(bodyBytes)
		result := &clients.PriceUpdateResult{}
		for _, u := range updates {
			result.Rejected = append(result.Rejected, clients.ItemRejection{NmID: u.NmID, Reason: reason})
		}
		return result, nil

	default:
		c.breaker.RecordFailure()
		return nil, &clients.TransportError{
			Operation:  "submit prices",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("server error: %s", errorText(bodyBytes)),
		}
	}
}

// TestConnection verifies the API key against the ping endpoint
func (c *Client) TestConnection(ctx context.Context) error {
	resp, bodyBytes, err := c.doRequest(ctx, http.MethodGet, pingEndpoint, nil)
	if err != nil {
		return &clients.TransportError{Operation: "test connection", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &clients.TransportError{
			Operation:  "test connection",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("ping failed: %s", errorText(bodyBytes)),
		}
	}
	return nil
}

// doRequest performs one rate-limited request with retries. The response body
// is fully read and returned alongside the (closed) response.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body []byte) (*http.Response, []byte, error) {
	var lastBody []byte

	resp, result := c.retrier.DoHTTP(ctx, method+" "+endpoint, func(ctx context.Context) (*http.Response, error) {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		return c.httpClient.Do(req)
	})

	if resp != nil {
		lastBody, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
	}
	if resp == nil {
		return nil, nil, result.LastError
	}
	return resp, lastBody, nil
}

// buildResult splits the submitted updates into accepted and rejected based
// on the per-item errors in the response body (if any).
func buildResult(updates []clients.PriceUpdate, body []byte) *clients.PriceUpdateResult {
	rejectedReasons := map[int64]string{}

	var parsed wbErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, e := range parsed.Data.Errors {
			reason := e.Message
			if reason == "" {
				reason = parsed.ErrorText
			}
			rejectedReasons[e.NmID] = reason
		}
	}

	result := &clients.PriceUpdateResult{}
	for _, u := range updates {
		if reason, ok := rejectedReasons[u.NmID]; ok {
			result.Rejected = append(result.Rejected, clients.ItemRejection{NmID: u.NmID, Reason: reason})
		} else {
			result.Accepted = append(result.Accepted, u.NmID)
		}
	}
	return result
}

func errorText(body []byte) string {
	var parsed wbErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.ErrorText != "" {
		return parsed.ErrorText
	}
	if len(body) > 0 {
		const max = 300
		if len(body) > max {
			return string(body[:max])
		}
		return string(body)
	}
	return "no response body"
}
