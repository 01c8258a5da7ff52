package dexscreener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"solwatch/internal/logger"
)

const (
	DefaultBaseURL = "https://api.dexscreener.com"
	// MaxAddressesPerRequest is the upstream limit for comma-joined token queries.
	MaxAddressesPerRequest = 30

	maxBodyBytes = 4 << 20
)

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dexscreener http %d: %s", e.Status, e.Body)
}

type Options struct {
	BaseURL        string
	Timeout        time.Duration
	RetryMax       int
	RequestsPerMin int
	Logger         *zap.Logger
}

type Client struct {
	host    string
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

func NewClient(opts Options) *Client {
	host := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if host == "" {
		host = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: timeout}
	rc.RetryMax = opts.RetryMax
	if rc.RetryMax < 0 {
		rc.RetryMax = 0
	}
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = logger.Leveled{L: opts.Logger}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limit := rate.Inf
	if opts.RequestsPerMin > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMin))
	}

	return &Client{
		host:    host,
		http:    rc,
		limiter: rate.NewLimiter(limit, 5),
	}
}

// TokenPairs returns every pair referencing any of the given base token
// addresses. Callers must keep len(addresses) <= MaxAddressesPerRequest.
func (c *Client) TokenPairs(ctx context.Context, addresses []string) ([]Pair, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	if len(addresses) > MaxAddressesPerRequest {
		return nil, fmt.Errorf("too many addresses: %d > %d", len(addresses), MaxAddressesPerRequest)
	}
	escaped := make([]string, 0, len(addresses))
	for _, a := range addresses {
		escaped = append(escaped, url.PathEscape(a))
	}
	body, err := c.get(ctx, "/latest/dex/tokens/"+strings.Join(escaped, ","))
	if err != nil {
		return nil, err
	}
	var resp TokensResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode token pairs: %w", err)
	}
	return resp.Pairs, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.host+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp == nil {
		return nil, errors.New("request failed: empty response")
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
