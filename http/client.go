package http

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

	"github.com/0xWizop/incubator-sub002"
)

// ErrConnectionFailed is what a 401 from the server unwraps to.
var ErrConnectionFailed = errors.New(ConnectionFailedMessage)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       walletsession.ErrorCode
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("walletsession api: %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the response back onto the session's sentinel errors.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrConnectionFailed
	}
	switch e.Code {
	case walletsession.ErrCodeDuplicateWallet:
		return walletsession.ErrDuplicateWallet
	case walletsession.ErrCodeNotFound:
		return walletsession.ErrNotFound
	case walletsession.ErrCodeInvalidWallet:
		return walletsession.ErrInvalidWallet
	case walletsession.ErrCodeNotUnlocked:
		return walletsession.ErrNotUnlocked
	case walletsession.ErrCodeClosed:
		return walletsession.ErrClosed
	}
	return nil
}

// Client talks to a Server.
type Client struct {
	*http.Client
	baseURL *url.URL
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	client := &Client{
		Client:  &http.Client{},
		baseURL: u,
	}
	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}
	return client, nil
}

// WithHTTPClient sets a custom underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		if httpClient == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		c.Client = httpClient
		return nil
	}
}

// Status returns the session projection.
func (c *Client) Status(ctx context.Context) (walletsession.Projection, error) {
	var p walletsession.Projection
	err := c.do(ctx, http.MethodGet, "/session", nil, &p)
	return p, err
}

// Connect blocks until the session is unlocked or the attempt fails.
func (c *Client) Connect(ctx context.Context) (walletsession.Projection, error) {
	var p walletsession.Projection
	err := c.do(ctx, http.MethodPost, "/session/connect", nil, &p)
	return p, err
}

// Lock locks the session.
func (c *Client) Lock(ctx context.Context) (walletsession.Projection, error) {
	var p walletsession.Projection
	err := c.do(ctx, http.MethodPost, "/session/lock", nil, &p)
	return p, err
}

// SignOut locks the session and forgets every wallet.
func (c *Client) SignOut(ctx context.Context) (walletsession.Projection, error) {
	var p walletsession.Projection
	err := c.do(ctx, http.MethodPost, "/session/signout", nil, &p)
	return p, err
}

// Switch makes another registered wallet active.
func (c *Client) Switch(ctx context.Context, chain walletsession.Chain, address string) (walletsession.Projection, error) {
	var p walletsession.Projection
	err := c.do(ctx, http.MethodPost, "/session/switch", WalletRequest{Chain: chain, Address: address}, &p)
	return p, err
}

// Wallets lists registered wallets, optionally filtered by chain.
func (c *Client) Wallets(ctx context.Context, chains ...walletsession.Chain) ([]walletsession.Wallet, error) {
	path := "/wallets"
	if len(chains) > 0 {
		q := url.Values{}
		for _, chain := range chains {
			q.Add("chain", string(chain))
		}
		path += "?" + q.Encode()
	}
	var resp WalletsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Wallets, nil
}

// AddWallet registers a wallet.
func (c *Client) AddWallet(ctx context.Context, wallet walletsession.Wallet) (walletsession.Wallet, error) {
	var added walletsession.Wallet
	err := c.do(ctx, http.MethodPost, "/wallets", wallet, &added)
	return added, err
}

// RemoveWallet unregisters a wallet.
func (c *Client) RemoveWallet(ctx context.Context, chain walletsession.Chain, address string) (walletsession.Wallet, error) {
	var removed walletsession.Wallet
	path := "/wallets/" + url.PathEscape(string(chain)) + "/" + url.PathEscape(address)
	err := c.do(ctx, http.MethodDelete, path, nil, &removed)
	return removed, err
}

// Prompt returns the open modal prompt, or nil when none is open.
func (c *Client) Prompt(ctx context.Context) (*PromptView, error) {
	var view PromptView
	found := false
	err := c.doStatus(ctx, http.MethodGet, "/prompt", nil, func(status int, body io.Reader) error {
		if status == http.StatusNoContent {
			return nil
		}
		found = true
		return json.NewDecoder(body).Decode(&view)
	})
	if err != nil || !found {
		return nil, err
	}
	return &view, nil
}

// ResolvePrompt answers the prompt with a registered wallet.
func (c *Client) ResolvePrompt(ctx context.Context, id string, chain walletsession.Chain, address string) error {
	return c.do(ctx, http.MethodPost, "/prompt/"+url.PathEscape(id)+"/resolve", WalletRequest{Chain: chain, Address: address}, nil)
}

// CancelPrompt dismisses the prompt.
func (c *Client) CancelPrompt(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/prompt/"+url.PathEscape(id)+"/cancel", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	return c.doStatus(ctx, method, path, in, func(status int, body io.Reader) error {
		if out == nil || status == http.StatusNoContent {
			return nil
		}
		return json.NewDecoder(body).Decode(out)
	})
}

func (c *Client) doStatus(ctx context.Context, method, path string, in any, decode func(int, io.Reader) error) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var er errorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&er); err == nil && er.Error != "" {
			apiErr.Message = er.Error
			apiErr.Code = er.Code
		}
		return apiErr
	}
	if err := decode(resp.StatusCode, resp.Body); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
