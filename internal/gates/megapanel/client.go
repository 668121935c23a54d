package megapanel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// Panel tokens expire after 60 minutes, refresh 5 minutes early
	tokenLifetime = 55 * time.Minute

	defaultTimeout = 30 * time.Second
)

type Config struct {
	BaseURL  string
	Email    string
	Password string
	Timeout  time.Duration
}

// Client talks to the mega-panel proxy provisioning API. The JWT is kept in
// an explicit token cache guarded by a mutex; concurrent callers needing a
// refresh trigger at most one login through the singleflight group.
type Client struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	loginGroup  singleflight.Group

	now func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("megapanel: base URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		email:      cfg.Email,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// authToken returns a cached token or logs in when it is missing or stale.
func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	v, err, _ := c.loginGroup.Do("login", func() (interface{}, error) {
		return c.login(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	var resp loginResponse
	if err := c.request(ctx, http.MethodPost, "/login", loginRequest{
		Email:    c.email,
		Password: c.password,
	}, "", &resp); err != nil {
		return "", fmt.Errorf("megapanel login: %w", err)
	}

	if resp.Token == "" {
		return "", fmt.Errorf("megapanel login: empty token in response")
	}

	c.mu.Lock()
	c.token = resp.Token
	c.tokenExpiry = c.now().Add(tokenLifetime)
	c.mu.Unlock()

	slog.Info("Authenticated to proxy panel", "token_valid_until", c.tokenExpiry.Format(time.RFC3339))
	return resp.Token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

func (c *Client) request(ctx context.Context, method, endpoint string, body interface{}, token string, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Force a re-login on the next call
		c.invalidateToken()
		return fmt.Errorf("panel rejected token (status 401): %s", string(respBody))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("panel error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// authorized runs one bearer-authenticated call.
func (c *Client) authorized(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	token, err := c.authToken(ctx)
	if err != nil {
		return err
	}
	return c.request(ctx, method, endpoint, body, token, out)
}

type RenewResponse struct {
	ProxyID   int64     `json:"proxy_id"`
	NewExpiry time.Time `json:"expires_at"`
	Cost      float64   `json:"cost"`
}

type ProxyInfo struct {
	ProxyID   int64     `json:"proxy_id"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"active"`
}

type CreateProxyRequest struct {
	Type         string `json:"type"`
	DurationDays int    `json:"duration_days"`
	Country      string `json:"country,omitempty"`
}

type renewRequest struct {
	DurationDays int `json:"duration_days"`
}

// RenewProxy extends a proxy on the panel side and returns the new expiry
// and the charged cost.
func (c *Client) RenewProxy(ctx context.Context, proxyID int64, durationDays int) (*RenewResponse, error) {
	if durationDays <= 0 {
		return nil, fmt.Errorf("megapanel: renewal duration must be positive, got %d", durationDays)
	}

	var resp RenewResponse
	endpoint := fmt.Sprintf("/proxies/%d/renew", proxyID)
	if err := c.authorized(ctx, http.MethodPost, endpoint, renewRequest{DurationDays: durationDays}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetProxy returns the panel's current view of a proxy, used to reconcile
// renewals whose store update may have been lost.
func (c *Client) GetProxy(ctx context.Context, proxyID int64) (*ProxyInfo, error) {
	var resp ProxyInfo
	endpoint := fmt.Sprintf("/proxies/%d", proxyID)
	if err := c.authorized(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateProxy(ctx context.Context, req CreateProxyRequest) (*ProxyInfo, error) {
	var resp ProxyInfo
	if err := c.authorized(ctx, http.MethodPost, "/proxies", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteProxy(ctx context.Context, proxyID int64) error {
	endpoint := fmt.Sprintf("/proxies/%d", proxyID)
	return c.authorized(ctx, http.MethodDelete, endpoint, nil, nil)
}
