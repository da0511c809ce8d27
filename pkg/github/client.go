// Package github is the issue tracker client: it creates issues and stores
// attachments through the repository contents API.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
	"github.com/kerlexov/bugreport-go-sdk/pkg/retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.github.com"
	userAgent      = "bugreport-go-sdk/1.0.0"
	maxErrorBody   = 64 * 1024
)

// RateLimitConfig bounds how fast issues and uploads are sent.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" validate:"min=0,max=5000"`
	BurstSize         int  `yaml:"burst_size" validate:"min=0,max=100"`
}

type Config struct {
	Token     string
	Owner     string
	Repo      string
	BaseURL   string
	Timeout   time.Duration
	Retry     retry.ExponentialBackoffConfig
	RateLimit RateLimitConfig
	// MaxFailures opens the circuit breaker after that many consecutive
	// retryable failures; zero disables the breaker.
	MaxFailures  int
	BreakerReset time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 10 * time.Second,
		Retry:   retry.DefaultExponentialBackoffConfig(),
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
		MaxFailures:  5,
		BreakerReset: time.Minute,
	}
}

// RequestObserver is told about every request sent to the API.
type RequestObserver interface {
	TrackerRequest(operation string, statusCode int, duration time.Duration, err error)
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithObserver(observer RequestObserver) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

type credentials struct {
	token string
	owner string
	repo  string
}

// Client talks to the GitHub REST API. Credentials may be set at any time
// with Configure; until then every call fails with a config error.
type Client struct {
	mu    sync.RWMutex
	creds credentials

	baseURL        string
	client         *http.Client
	retryer        retry.Retryer
	postRetryer    retry.Retryer
	circuitBreaker *retry.CircuitBreaker
	limiter        *rate.Limiter
	observer       RequestObserver
	logger         *zap.Logger
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		creds: credentials{
			token: cfg.Token,
			owner: cfg.Owner,
			repo:  cfg.Repo,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryer:     retry.NewExponentialBackoff(cfg.Retry).WithShouldRetry(errs.IsRetryable),
		postRetryer: retry.NewExponentialBackoff(cfg.Retry).WithShouldRetry(serverRejected),
		logger:      zap.NewNop(),
	}

	if cfg.MaxFailures > 0 {
		c.circuitBreaker = retry.NewCircuitBreaker(cfg.MaxFailures, cfg.BreakerReset).CountOnly(errs.IsRetryable)
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute > 0 {
		burst := cfg.RateLimit.BurstSize
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimit.RequestsPerMinute)/60.0), burst)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configure replaces the token and target repository.
func (c *Client) Configure(token, owner, repo string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = credentials{
		token: strings.TrimSpace(token),
		owner: strings.TrimSpace(owner),
		repo:  strings.TrimSpace(repo),
	}
}

func (c *Client) Configured() bool {
	creds := c.credentials()
	return creds.token != "" && creds.owner != "" && creds.repo != ""
}

// Repository returns "owner/repo", or "" when unset.
func (c *Client) Repository() string {
	creds := c.credentials()
	if creds.owner == "" || creds.repo == "" {
		return ""
	}
	return creds.owner + "/" + creds.repo
}

func (c *Client) credentials() credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// CreateIssue opens an issue and returns its html_url.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (string, error) {
	creds := c.credentials()
	if err := creds.validate(); err != nil {
		return "", err
	}

	payload := struct {
		Title  string   `json:"title"`
		Body   string   `json:"body"`
		Labels []string `json:"labels,omitempty"`
	}{
		Title:  title,
		Body:   body,
		Labels: labels,
	}

	var result struct {
		HTMLURL string `json:"html_url"`
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues", c.baseURL, creds.owner, creds.repo)
	if err := c.send(ctx, "create_issue", http.MethodPost, endpoint, creds.token, payload, &result); err != nil {
		return "", err
	}

	c.logger.Debug("issue created", zap.String("url", result.HTMLURL))
	return result.HTMLURL, nil
}

// UploadFile stores content at path in the repository and returns its
// download_url.
func (c *Client) UploadFile(ctx context.Context, path string, content []byte, message string) (string, error) {
	return c.PutFile(ctx, path, content, message, "")
}

// PutFile creates or, when sha names the current blob, replaces a file.
func (c *Client) PutFile(ctx context.Context, path string, content []byte, message, sha string) (string, error) {
	creds := c.credentials()
	if err := creds.validate(); err != nil {
		return "", err
	}
	if path == "" {
		return "", errs.InvalidArgument("upload path is empty")
	}

	payload := struct {
		Message string `json:"message"`
		Content string `json:"content"`
		SHA     string `json:"sha,omitempty"`
	}{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     sha,
	}

	var result struct {
		Content struct {
			DownloadURL string `json:"download_url"`
		} `json:"content"`
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, creds.owner, creds.repo, strings.TrimLeft(path, "/"))
	if err := c.send(ctx, "upload_file", http.MethodPut, endpoint, creds.token, payload, &result); err != nil {
		return "", err
	}

	if result.Content.DownloadURL == "" {
		return "", errs.SerializationError("upload response has no download_url", nil)
	}
	return result.Content.DownloadURL, nil
}

func (creds credentials) validate() error {
	if creds.token == "" || creds.owner == "" || creds.repo == "" {
		return errs.ConfigError("github token, owner and repo must be set")
	}
	return nil
}

func (c *Client) send(ctx context.Context, operation, method, endpoint, token string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errs.SerializationError("failed to marshal request", err)
	}

	retryer := c.retryer
	if method == http.MethodPost {
		retryer = c.postRetryer
	}

	attempt := func() error {
		return retryer.Do(ctx, func() error {
			return c.do(ctx, operation, method, endpoint, token, data, out)
		})
	}

	if c.circuitBreaker != nil {
		return c.circuitBreaker.Do(ctx, attempt)
	}
	return attempt()
}

// serverRejected limits POST retries to responses the server sent back. A
// transport failure may come after the issue was created.
func serverRejected(err error) bool {
	return errs.Is(err, errs.ErrTypeAPI) && errs.IsRetryable(err)
}

func (c *Client) do(ctx context.Context, operation, method, endpoint, token string, data []byte, out any) (err error) {
	if c.limiter != nil {
		if waitErr := c.limiter.Wait(ctx); waitErr != nil {
			return errs.Timeout("rate limiter wait aborted", waitErr)
		}
	}

	start := time.Now()
	status := 0
	defer func() {
		if c.observer != nil {
			c.observer.TrackerRequest(operation, status, time.Since(start), err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return errs.TransportError("failed to create request", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errs.Timeout("request timed out", err)
		}
		return errs.TransportError("failed to send request", err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("github api error",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode))
		return errs.APIError(resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.SerializationError("failed to decode response", err)
	}
	return nil
}
