package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dealscout/backend/internal/domain"
)

// DefaultBaseURL is the SerpAPI search endpoint host
const DefaultBaseURL = "https://serpapi.com"

const (
	defaultMaxAttempts    = 5
	defaultConnectTimeout = 20 * time.Second
	defaultReadTimeout    = 45 * time.Second
	maxErrorBodyBytes     = 4096
)

var (
	// ErrMissingAPIKey is returned by Fetch when no API key is configured
	ErrMissingAPIKey = errors.New("serpapi: api key not set")

	// ErrInvalidResponse is returned when a successful response is not JSON
	ErrInvalidResponse = errors.New("serpapi: response is not valid JSON")
)

// Config holds configuration for the SerpAPI client
type Config struct {
	APIKey         string
	BaseURL        string
	MaxAttempts    int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// RequestsPerSecond caps outgoing calls; zero means unlimited
	RequestsPerSecond float64
	Debug             bool
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Client issues SerpAPI GET requests with retry and backoff
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	maxAttempts int
	rateLimiter *rate.Limiter
	jitter      func() float64
	sleep       Sleeper
	debug       bool
}

// NewClient creates a new SerpAPI client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   8,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		},
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		maxAttempts: cfg.MaxAttempts,
		rateLimiter: limiter,
		jitter:      rand.Float64,
		sleep:       sleepContext,
		debug:       cfg.Debug,
	}
}

// SetDebug enables or disables per-attempt logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// SetJitter replaces the random jitter source; fn must return values in [0,1)
func (c *Client) SetJitter(fn func() float64) {
	c.jitter = fn
}

// SetSleeper replaces the backoff sleeper
func (c *Client) SetSleeper(fn Sleeper) {
	c.sleep = fn
}

// fetchState is the retry loop state
type fetchState int

const (
	stateAttempting fetchState = iota
	stateSucceeded
	stateFailed
)

// outcome classifies a single attempt
type outcome int

const (
	outcomeOK outcome = iota
	outcomeRateLimited
	outcomeTimeout
	outcomeNetwork
	outcomeStatus
)

// transition describes what a failed attempt leads to
type transition struct {
	kind        domain.UpstreamErrorKind
	retryable   bool
	backoffBase float64 // seconds, doubled per attempt
}

var transitions = map[outcome]transition{
	outcomeRateLimited: {kind: domain.UpstreamRateLimited, retryable: true, backoffBase: 1.5},
	outcomeTimeout:     {kind: domain.UpstreamTimeout, retryable: true, backoffBase: 0.8},
	outcomeNetwork:     {kind: domain.UpstreamNetworkFailure, retryable: true, backoffBase: 0.6},
	outcomeStatus:      {kind: domain.UpstreamHTTPStatus},
}

type attemptResult struct {
	outcome outcome
	status  int
	body    []byte
	err     error
}

// Fetch performs a GET on path with params plus api_key and no_cache=true.
// The body is returned verbatim on success. Failures are *domain.UpstreamError
// except for context cancellation, which is returned as is.
func (c *Client) Fetch(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = append([]string(nil), v...)
	}
	query.Set("api_key", c.apiKey)
	query.Set("no_cache", "true")
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
	engine := params.Get("engine")

	var (
		state   = stateAttempting
		attempt int
		body    []byte
		failure *domain.UpstreamError
	)

	for state == stateAttempting {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		res := c.attempt(ctx, reqURL)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if res.outcome == outcomeOK {
			body = res.body
			state = stateSucceeded
			continue
		}

		t := transitions[res.outcome]
		if !t.retryable || attempt >= c.maxAttempts-1 {
			failure = &domain.UpstreamError{
				Kind:   t.kind,
				Status: res.status,
				Body:   string(res.body),
				Err:    res.err,
			}
			state = stateFailed
			continue
		}

		delay := c.backoff(t.backoffBase, attempt)
		log.Printf("[SERPAPI] %s attempt %d/%d failed (%s), retrying in %v",
			engine, attempt+1, c.maxAttempts, t.kind, delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		attempt++
	}

	if state == stateFailed {
		log.Printf("[SERPAPI] %s failed after %d attempt(s): %v", engine, attempt+1, failure)
		return nil, failure
	}

	if !json.Valid(body) {
		return nil, ErrInvalidResponse
	}
	if c.debug {
		log.Printf("[SERPAPI] %s succeeded on attempt %d (%d bytes)", engine, attempt+1, len(body))
	}
	return json.RawMessage(body), nil
}

// attempt executes one request and classifies the result
func (c *Client) attempt(ctx context.Context, reqURL string) attemptResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return attemptResult{outcome: outcomeStatus, err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", "DealScout/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return attemptResult{outcome: classifyTransportError(err), err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptResult{outcome: classifyTransportError(err), status: resp.StatusCode, err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return attemptResult{outcome: outcomeRateLimited, status: resp.StatusCode, body: truncate(body)}
	case resp.StatusCode >= 400:
		return attemptResult{outcome: outcomeStatus, status: resp.StatusCode, body: truncate(body)}
	default:
		return attemptResult{outcome: outcomeOK, status: resp.StatusCode, body: body}
	}
}

// backoff returns base*2^attempt seconds plus jitter
func (c *Client) backoff(base float64, attempt int) time.Duration {
	seconds := base*math.Pow(2, float64(attempt)) + c.jitter()
	return time.Duration(seconds * float64(time.Second))
}

// classifyTransportError separates read timeouts from connection failures.
// Dial errors count as connection failures even when they time out.
func classifyTransportError(err error) outcome {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return outcomeNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return outcomeTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return outcomeTimeout
	}
	return outcomeNetwork
}

func truncate(body []byte) []byte {
	if len(body) > maxErrorBodyBytes {
		return body[:maxErrorBodyBytes]
	}
	return body
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
