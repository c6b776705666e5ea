package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidCredentials = errors.New("email or password incorrect")
	ErrAccountInactive    = errors.New("account is inactive")
	// ErrSessionExpired means the refresh token was rejected; all session
	// state has been cleared and the caller must log in again.
	ErrSessionExpired = errors.New("session expired")
)

// Principal mirrors the server's user summary.
type Principal struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName string  `json:"displayName"`
	Role        string  `json:"role"`
	Status      string  `json:"status"`
	CreatedBy   *string `json:"createdBy,omitempty"`
}

type Option func(*Client)

func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

func WithStore(store TokenStore) Option {
	return func(c *Client) { c.store = store }
}

// Client owns one logical session. The in-memory pair is the source of
// truth; the TokenStore mirrors it so a restarted process can bootstrap.
type Client struct {
	baseURL string
	httpc   *http.Client
	store   TokenStore

	mu        sync.Mutex
	access    string
	refresh   string
	principal *Principal

	// Concurrent callers discovering an expired access token at the same
	// moment must share one refresh call, never race to issue their own.
	flight singleflight.Group
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		store:   &MemoryStore{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bootstrap restores a persisted session. It fetches the profile with the
// stored access token, transparently refreshing exactly once if that token
// is rejected. A second rejection clears everything and the session is
// anonymous (nil principal, nil error). Transport failures are returned
// as-is and leave the stored pair alone.
func (c *Client) Bootstrap(ctx context.Context) (*Principal, error) {
	access, refresh, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load persisted tokens: %w", err)
	}
	if access == "" && refresh == "" {
		return nil, nil
	}

	c.mu.Lock()
	c.access, c.refresh = access, refresh
	c.mu.Unlock()

	principal, status, err := c.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		if _, err := c.Refresh(ctx); err != nil {
			if errors.Is(err, ErrSessionExpired) {
				return nil, nil
			}
			return nil, err
		}
		principal, status, err = c.fetchProfile(ctx)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			if err := c.clear(); err != nil {
				return nil, err
			}
			return nil, nil
		}
	}
	if principal == nil {
		return nil, fmt.Errorf("profile fetch failed with status %d", status)
	}

	c.mu.Lock()
	c.principal = principal
	c.mu.Unlock()
	return principal, nil
}

func (c *Client) fetchProfile(ctx context.Context) (*Principal, int, error) {
	var out struct {
		User Principal `json:"user"`
	}
	status, err := c.call(ctx, http.MethodGet, "/api/users/profile", nil, &out, c.CurrentAccessToken())
	if err != nil {
		return nil, 0, err
	}
	if status != http.StatusOK {
		return nil, status, nil
	}
	return &out.User, status, nil
}

// Login exchanges credentials for a token pair and records both in memory
// and in the durable store.
func (c *Client) Login(ctx context.Context, email, password string) (*Principal, error) {
	body := map[string]string{"email": email, "password": password}
	var out struct {
		User         Principal `json:"user"`
		AccessToken  string    `json:"accessToken"`
		RefreshToken string    `json:"refreshToken"`
	}

	status, err := c.call(ctx, http.MethodPost, "/api/auth/login", body, &out, "")
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	case http.StatusForbidden:
		return nil, ErrAccountInactive
	default:
		return nil, fmt.Errorf("login failed with status %d", status)
	}

	if err := c.setPair(out.AccessToken, out.RefreshToken); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.principal = &out.User
	c.mu.Unlock()
	return &out.User, nil
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers
// share a single in-flight exchange and all observe its result; a new
// exchange starts only after the previous one has resolved. On rejection
// the whole session is cleared and ErrSessionExpired is returned; Refresh
// never retries on its own.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	token, err, _ := c.flight.Do("refresh", func() (any, error) {
		return c.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	refresh := c.refresh
	c.mu.Unlock()

	if refresh == "" {
		return "", ErrSessionExpired
	}

	var out struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	status, err := c.call(ctx, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": refresh}, &out, "")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		if cerr := c.clear(); cerr != nil {
			return "", cerr
		}
		return "", ErrSessionExpired
	}

	if err := c.setPair(out.AccessToken, out.RefreshToken); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Logout invalidates the refresh token server-side on a best-effort basis,
// then unconditionally clears local and durable state.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refresh
	c.mu.Unlock()

	if refresh != "" {
		// Failure here is ignored; the token ages out on its own.
		_, _ = c.call(ctx, http.MethodPost, "/api/auth/logout", map[string]string{"refreshToken": refresh}, nil, "")
	}

	return c.clear()
}

// CurrentAccessToken is a synchronous accessor with no side effects.
func (c *Client) CurrentAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access
}

// CurrentPrincipal returns the principal recorded by the last successful
// Bootstrap or Login, or nil when anonymous.
func (c *Client) CurrentPrincipal() *Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.principal
}

// Do performs an authenticated API call. A 401 triggers one refresh and
// one retry; a second 401 surfaces as ErrSessionExpired.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	status, err := c.call(ctx, method, path, body, out, c.CurrentAccessToken())
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if _, err := c.Refresh(ctx); err != nil {
			return err
		}
		status, err = c.call(ctx, method, path, body, out, c.CurrentAccessToken())
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return ErrSessionExpired
		}
	}
	if status >= 400 {
		return fmt.Errorf("api call %s %s failed with status %d", method, path, status)
	}
	return nil
}

func (c *Client) setPair(access, refresh string) error {
	c.mu.Lock()
	c.access, c.refresh = access, refresh
	c.mu.Unlock()

	if err := c.store.Save(access, refresh); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	return nil
}

func (c *Client) clear() error {
	c.mu.Lock()
	c.access, c.refresh, c.principal = "", "", nil
	c.mu.Unlock()

	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clear persisted tokens: %w", err)
	}
	return nil
}

// call sends one JSON request and decodes the body when out is non-nil and
// the status is 2xx. Non-2xx statuses are returned for the caller to map;
// only transport-level failures are errors.
func (c *Client) call(ctx context.Context, method, path string, body, out any, bearer string) (int, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}
