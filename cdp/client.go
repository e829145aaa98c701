package cdp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0xWizop/incubator-sub002/retry"
)

// DefaultBaseURL is the CDP API endpoint.
const DefaultBaseURL = "https://" + apiHost

// DefaultRetry is the backoff for rate-limited and failed requests.
var DefaultRetry = retry.Config{
	MaxAttempts:  5,
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// Client calls the CDP REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       *Auth
	retry      retry.Config
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// WithBaseURL points the client at another API host.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) error {
		if baseURL == "" {
			return fmt.Errorf("cdp: base url cannot be empty")
		}
		c.baseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		if httpClient == nil {
			return fmt.Errorf("cdp: http client cannot be nil")
		}
		c.httpClient = httpClient
		return nil
	}
}

// WithRetry sets the retry policy.
func WithRetry(config retry.Config) ClientOption {
	return func(c *Client) error {
		c.retry = config
		return nil
	}
}

// NewClient creates a client authenticating with auth.
func NewClient(auth *Auth, opts ...ClientOption) (*Client, error) {
	if auth == nil {
		return nil, fmt.Errorf("cdp: credentials not provided")
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		auth:       auth,
		retry:      DefaultRetry,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// do sends one request with retries. walletAuth adds the X-Wallet-Auth token
// required by signing endpoints.
func (c *Client) do(ctx context.Context, method, path string, body, result any, walletAuth bool) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("cdp: marshal request: %w", err)
		}
	}
	return retry.Run(ctx, c.retry, isRetryable, func(ctx context.Context) error {
		return c.send(ctx, method, path, payload, result, walletAuth)
	})
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, result any, walletAuth bool) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("cdp: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	token, err := c.auth.BearerToken(method, path)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	if walletAuth {
		walletToken, err := c.auth.WalletToken(method, path, payload)
		if err != nil {
			return err
		}
		req.Header.Set("X-Wallet-Auth", walletToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cdp: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind, fallback := classify(resp.StatusCode)
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Kind:       kind,
			Message:    fallback,
			RequestID:  resp.Header.Get("X-Request-ID"),
			Method:     method,
			Path:       path,
		}
		if text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)); len(text) > 0 {
			apiErr.Message = strings.TrimSpace(string(text))
		}
		return apiErr
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("cdp: decode response: %w", err)
	}
	return nil
}
