// Package jellyfin implements a minimal REST client for the Jellyfin server
// API, covering the session query and user resolution calls the presence
// pipeline consumes.
//
// API reference: https://api.jellyfin.org/
package jellyfin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrAccessDenied indicates the server rejected the API key (401/403), as
// opposed to being unreachable or failing. Callers branch on it with
// [errors.Is] to separate credential problems from outages.
var ErrAccessDenied = errors.New("jellyfin: access denied")

// requestTimeout bounds every call to the server. Failed cycles are never
// retried; the next resolution cycle self-heals.
const requestTimeout = 5 * time.Second

// clientName identifies Jellycord to the server in auth headers.
const clientName = "Jellycord"

// Client provides access to the Jellyfin REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
}

// NewClient creates a Jellyfin API client for the given base URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0 // one attempt per cycle
	rc.HTTPClient.Timeout = requestTimeout
	rc.Logger = nil

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    rc,
	}
}

// BaseURL returns the normalized server base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// APIKey returns the configured API key.
func (c *Client) APIKey() string { return c.apiKey }

// ///////////////////////////////////////////////
// API Calls
// ///////////////////////////////////////////////

// Ping tests connectivity to the server.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, "/System/Ping")
	if err != nil {
		return fmt.Errorf("jellyfin ping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jellyfin ping: status %d", resp.StatusCode)
	}
	return nil
}

// Sessions retrieves all active sessions visible to the API key, including
// idle ones. Filtering to playing sessions is the selector's job.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	resp, err := c.get(ctx, "/Sessions")
	if err != nil {
		return nil, fmt.Errorf("jellyfin sessions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("jellyfin sessions", resp)
	}

	var sessions []Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decode jellyfin sessions: %w", err)
	}
	return sessions, nil
}

// CurrentUser resolves the user the API token belongs to via /Users/Me.
// Access tokens issued per-user resolve directly; admin API keys are not
// bound to a user and return a non-2xx status here.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := c.get(ctx, "/Users/Me")
	if err != nil {
		return nil, fmt.Errorf("jellyfin current user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		// Jellyfin answers 400 when the token is not bound to a user
		// (admin API key): there is no principal to resolve.
		return nil, fmt.Errorf("jellyfin current user: %w: token is not bound to a user", ErrAccessDenied)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("jellyfin current user", resp)
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode jellyfin user: %w", err)
	}
	return &u, nil
}

// ///////////////////////////////////////////////
// Request Plumbing
// ///////////////////////////////////////////////

// get performs an authenticated GET against the server.
func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("X-Emby-Client", clientName)
	req.Header.Set("X-Emby-Device-Name", clientName)
	req.Header.Set("X-Emby-Device-Id", strings.ToLower(clientName))
	req.Header.Set("Accept", "application/json")

	return c.http.Do(req)
}

// statusError builds an error from a non-2xx response, including a short
// body excerpt when one can be read. 401 and 403 wrap [ErrAccessDenied];
// every other status stays an untyped upstream failure.
func statusError(op string, resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := ""
	if err == nil {
		detail = strings.TrimSpace(string(body))
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if detail == "" {
			return fmt.Errorf("%s: %w: status %d", op, ErrAccessDenied, resp.StatusCode)
		}
		return fmt.Errorf("%s: %w: status %d: %s", op, ErrAccessDenied, resp.StatusCode, detail)
	}

	if detail == "" {
		return fmt.Errorf("%s: status %d", op, resp.StatusCode)
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, detail)
}
