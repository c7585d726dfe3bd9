// Package brokerconnect is a minimal REST client for the broker's trading
// API: TOTP-based session login, order placement, and session refresh. It is
// the live implementation behind the order gateway; everything else in the
// engine talks to the OrderGateway interface, not to this package.
package brokerconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/pquerna/otp/totp"

	"breakout-systemv1/internal/model"
)

const (
	defaultRoot    = "https://api.broker.example.com"
	defaultTimeout = 7 * time.Second

	routeLogin  = "/rest/auth/login"
	routeLogout = "/rest/auth/logout"
	routeOrder  = "/rest/secure/orders"
)

// ErrNotLoggedIn is returned when an order is placed without a session.
var ErrNotLoggedIn = errors.New("brokerconnect: no active session")

// Config holds the broker API credentials and transport options.
type Config struct {
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string // base32 secret for two-factor login

	RootURL string        // default: defaultRoot
	Timeout time.Duration // default: 7s
	Debug   bool
}

// Client is a broker API client. Safe for concurrent use after Login.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	accessToken string

	// SessionExpiryHook, if set, is called when the broker rejects the
	// session token (HTTP 401/403).
	SessionExpiryHook func()
}

// New creates a Client. Call Login before placing orders.
func New(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Login authenticates with password + a freshly generated TOTP code and
// stores the session token.
func (c *Client) Login(ctx context.Context) error {
	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("brokerconnect: totp generate: %w", err)
	}

	var resp struct {
		Status      bool   `json:"status"`
		Message     string `json:"message"`
		AccessToken string `json:"access_token"`
	}
	if err := c.post(ctx, routeLogin, map[string]string{
		"clientcode": c.cfg.ClientCode,
		"password":   c.cfg.Password,
		"totp":       code,
	}, &resp); err != nil {
		return err
	}
	if !resp.Status || resp.AccessToken == "" {
		return fmt.Errorf("brokerconnect: login rejected: %s", resp.Message)
	}

	c.accessToken = resp.AccessToken
	log.Printf("[broker] logged in as %s", c.cfg.ClientCode)
	return nil
}

// Logout invalidates the session token.
func (c *Client) Logout(ctx context.Context) error {
	if c.accessToken == "" {
		return nil
	}
	err := c.post(ctx, routeLogout, map[string]string{"clientcode": c.cfg.ClientCode}, nil)
	c.accessToken = ""
	return err
}

// PlaceOrder submits a market order with attached stop-loss and take-profit.
// Returns the broker order ID.
func (c *Client) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	if c.accessToken == "" {
		return "", ErrNotLoggedIn
	}

	var resp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			OrderID string `json:"order_id"`
		} `json:"data"`
	}
	err := c.post(ctx, routeOrder, map[string]interface{}{
		"symboltoken":     req.Token,
		"exchange":        req.Exchange,
		"transactiontype": string(req.Direction),
		"ordertype":       "MARKET",
		"quantity":        req.Volume,
		"stoploss":        req.StopLoss,
		"squareoff":       req.TakeProfit,
	}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Status {
		return "", fmt.Errorf("brokerconnect: order rejected: %s", resp.Message)
	}
	return resp.Data.OrderID, nil
}

func (c *Client) post(ctx context.Context, route string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("brokerconnect: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RootURL+route, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("brokerconnect: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	if c.cfg.Debug {
		log.Printf("[broker] POST %s %s", route, payload)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brokerconnect: %s: %w", route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("brokerconnect: read body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.accessToken = ""
		if c.SessionExpiryHook != nil {
			c.SessionExpiryHook()
		}
		return fmt.Errorf("brokerconnect: session expired (%d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("brokerconnect: %s: HTTP %d: %s", route, resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("brokerconnect: decode: %w", err)
		}
	}
	return nil
}
