package opensubtitles

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/angelospk/osdfxp/internal/constants"
	"github.com/angelospk/osdfxp/internal/httpclient"
	coreErrors "github.com/angelospk/osdfxp/pkg/core/errors"
)

// Config holds the settings used to build a Client.
type Config struct {
	APIKey     string
	UserAgent  string       // Defaults to constants.DefaultUserAgent
	BaseURL    string       // Defaults to constants.DefaultBaseURL
	HTTPClient *http.Client // Optional; tests point this at an httptest server
}

// Client manages communication with the OpenSubtitles REST API.
type Client struct {
	api *httpclient.Client

	mu       sync.RWMutex // Protects username
	username string
}

// NewClient creates a new OpenSubtitles API client.
func NewClient(cfg Config) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = constants.DefaultUserAgent
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.DefaultBaseURL
	}
	return &Client{
		api: httpclient.New(strings.TrimRight(cfg.BaseURL, "/"), cfg.APIKey, cfg.UserAgent, cfg.HTTPClient),
	}
}

// IsLoggedIn reports whether a session token is held.
func (c *Client) IsLoggedIn() bool {
	return c.api.AuthToken() != ""
}

// Username returns the account name of the current session, or "".
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// BaseURL returns the API base URL in use, which Login may have switched.
func (c *Client) BaseURL() string {
	return c.api.BaseURL()
}

// Login authenticates the user and stores the returned token. When the API
// names a dedicated host for the account the client switches to it.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.api.Post(ctx, "/login", LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		c.api.SetAuthToken("")
		return nil, fmt.Errorf("login failed: %w", apiError(err))
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login failed: response carried no token")
	}

	if resp.BaseURL != "" {
		base, err := normalizeBaseURL(resp.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("login failed: %w", err)
		}
		c.api.SetBaseURL(base)
	}
	c.api.SetAuthToken(resp.Token)

	c.mu.Lock()
	c.username = username
	c.mu.Unlock()

	return &resp, nil
}

// Token returns the session token, or "" when not logged in.
func (c *Client) Token() string {
	return c.api.AuthToken()
}

// Resume restores a session saved from an earlier Login. baseURL may be
// empty to keep the configured host.
func (c *Client) Resume(username, token, baseURL string) error {
	if token == "" {
		return coreErrors.ErrNotLoggedIn
	}
	if baseURL != "" {
		base, err := normalizeBaseURL(baseURL)
		if err != nil {
			return fmt.Errorf("resume session: %w", err)
		}
		c.api.SetBaseURL(base)
	}
	c.api.SetAuthToken(token)

	c.mu.Lock()
	c.username = username
	c.mu.Unlock()
	return nil
}

// normalizeBaseURL turns the bare host returned by /login into a full API URL.
func normalizeBaseURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = constants.ApiPath
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// Logout invalidates the current session token. Logging out without a token
// is a no-op, and a 401 from the API still counts as logged out.
func (c *Client) Logout(ctx context.Context) error {
	if !c.IsLoggedIn() {
		return nil
	}

	err := c.api.Delete(ctx, "/logout", nil)

	// The user intent is to be logged out, so drop the token regardless.
	c.api.SetAuthToken("")
	c.mu.Lock()
	c.username = ""
	c.mu.Unlock()

	if err != nil {
		err = apiError(err)
		if errors.Is(err, coreErrors.ErrUnauthorized) {
			return nil
		}
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

// GetUserInfo retrieves information about the currently authenticated user.
func (c *Client) GetUserInfo(ctx context.Context) (*UserInfo, error) {
	if !c.IsLoggedIn() {
		return nil, coreErrors.ErrNotLoggedIn
	}
	var resp getUserInfoResponse
	if err := c.api.Get(ctx, "/infos/user", nil, &resp); err != nil {
		return nil, fmt.Errorf("user info request failed: %w", apiError(err))
	}
	return &resp.Data, nil
}

// SearchSubtitles searches for subtitles matching params.
func (c *Client) SearchSubtitles(ctx context.Context, params SearchSubtitlesParams) (*SearchSubtitlesResponse, error) {
	var resp SearchSubtitlesResponse
	if err := c.api.Get(ctx, "/subtitles", params, &resp); err != nil {
		return nil, fmt.Errorf("subtitle search failed: %w", apiError(err))
	}
	return &resp, nil
}

// RequestDownload requests a temporary download link for a subtitle file.
// The format defaults to SRT since that is what gets converted locally.
func (c *Client) RequestDownload(ctx context.Context, req DownloadRequest) (*DownloadResponse, error) {
	if req.SubFormat == "" {
		req.SubFormat = constants.SubtitleFormatSRT
	}
	var resp DownloadResponse
	if err := c.api.Post(ctx, "/download", req, &resp); err != nil {
		return nil, fmt.Errorf("download request for file %d failed: %w", req.FileID, apiError(err))
	}
	if resp.Link == "" {
		return nil, fmt.Errorf("download request for file %d failed: response carried no link", req.FileID)
	}
	return &resp, nil
}

// FetchFile downloads the body behind a link returned by RequestDownload.
// Gzip compressed bodies are inflated transparently.
func (c *Client) FetchFile(ctx context.Context, link string) ([]byte, error) {
	body, err := c.api.Fetch(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subtitle file: %w", apiError(err))
	}
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip subtitle: %w", err)
		}
		defer zr.Close()
		if body, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("failed to inflate gzip subtitle: %w", err)
		}
	}
	return body, nil
}

// apiError converts a raw status failure into an *ErrorResponse.
func apiError(err error) error {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	resp := &ErrorResponse{}
	if jsonErr := json.Unmarshal(statusErr.Body, resp); jsonErr != nil {
		resp.Message = strings.TrimSpace(string(statusErr.Body))
	}
	if resp.Status == 0 {
		resp.Status = statusErr.StatusCode
	}
	return resp
}
