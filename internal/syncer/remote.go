package syncer

import (
	"bytes"
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

	"solwatch/internal/logger"
	"solwatch/internal/models"
)

// ErrNotConfigured means no remote store is available at all, as opposed to
// a transient failure talking to one.
var ErrNotConfigured = errors.New("remote store not configured")

// RemoteStore is the shared key-value persistence contract. Get reports
// found=false for an identifier that has never been written.
type RemoteStore interface {
	Get(ctx context.Context, id string) (models.Watchlist, bool, error)
	Put(ctx context.Context, id string, w models.Watchlist) error
}

type HTTPRemoteOptions struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	RetryMax int
	Logger   *zap.Logger
}

// HTTPRemote talks to the cloud service's /api/watchlist endpoint.
type HTTPRemote struct {
	base  string
	token string
	http  *retryablehttp.Client
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func NewHTTPRemote(opts HTTPRemoteOptions) *HTTPRemote {
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
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = logger.Leveled{L: opts.Logger}
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPRemote{
		base:  strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		token: strings.TrimSpace(opts.Token),
		http:  rc,
	}
}

// 503 is how the cloud service says it has no backing store; retrying will
// not change that.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusServiceUnavailable {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (r *HTTPRemote) Get(ctx context.Context, id string) (models.Watchlist, bool, error) {
	env, err := r.do(ctx, http.MethodGet, id, nil)
	if err != nil {
		return nil, false, err
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, false, nil
	}
	var w models.Watchlist
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, false, fmt.Errorf("decode watchlist %s: %w", id, err)
	}
	return w, true, nil
}

func (r *HTTPRemote) Put(ctx context.Context, id string, w models.Watchlist) error {
	if w == nil {
		w = models.Watchlist{}
	}
	body, err := json.Marshal(w)
	if err != nil {
		return err
	}
	_, err = r.do(ctx, http.MethodPost, id, body)
	return err
}

func (r *HTTPRemote) do(ctx context.Context, method, id string, body []byte) (envelope, error) {
	if r == nil || r.base == "" {
		return envelope{}, ErrNotConfigured
	}
	endpoint := r.base + "/api/watchlist?id=" + url.QueryEscape(id)
	var payload any
	if body != nil {
		payload = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("remote %s: %w", strings.ToLower(method), err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return envelope{}, fmt.Errorf("read remote response: %w", err)
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return envelope{}, ErrNotConfigured
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return envelope{}, fmt.Errorf("remote http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return envelope{}, fmt.Errorf("decode remote response: %w", err)
	}
	if env.Code != 0 {
		return envelope{}, fmt.Errorf("remote error %d: %s", env.Code, env.Message)
	}
	return env, nil
}
