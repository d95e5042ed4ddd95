package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client is the portal API client. Construct it once at startup, call
// Rehydrate before the first protected call, and route every protected call
// through Do (or the typed helpers) so the pipeline can manage the session.
type Client struct {
	baseURL  string
	store    *Store
	pipeline *Pipeline
	http     *http.Client
}

// New builds a client persisting session state at statePath. A nil
// httpClient uses http.DefaultClient.
func New(baseURL, statePath string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	store := NewStore(statePath)
	c := &Client{baseURL: baseURL, store: store, http: httpClient}
	c.pipeline = NewPipeline(store, c, httpClient)
	return c
}

// Rehydrate loads any persisted session. Call once before protected calls.
func (c *Client) Rehydrate() error {
	return c.store.Rehydrate()
}

// LoggedIn reports whether a session is present.
func (c *Client) LoggedIn() bool {
	_, ok := c.store.AccessToken()
	return ok
}

// Identity returns the stored identity, if logged in.
func (c *Client) Identity() (Identity, bool) {
	identity, _, ok := c.store.Snapshot()
	return identity, ok
}

// Do sends a protected request through the pipeline.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.pipeline.Do(req)
}

// Login authenticates and persists the returned session.
func (c *Client) Login(ctx context.Context, email, password string) (Identity, error) {
	var out struct {
		Data struct {
			User    Identity `json:"user"`
			Session Session  `json:"session"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out); err != nil {
		return Identity{}, err
	}
	if err := c.store.Set(out.Data.User, out.Data.Session); err != nil {
		return Identity{}, err
	}
	return out.Data.User, nil
}

// Logout revokes the session upstream on a best-effort basis and always
// clears local state: logout never appears to fail.
func (c *Client) Logout(ctx context.Context) {
	if _, session, ok := c.store.Snapshot(); ok {
		body, _ := json.Marshal(map[string]string{"refreshToken": session.RefreshToken})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+session.AccessToken)
			if resp, err := c.http.Do(req); err == nil {
				drain(resp)
			}
		}
	}
	c.store.Clear()
}

// Me fetches the caller's identity from the server through the pipeline.
func (c *Client) Me(ctx context.Context) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return Identity{}, err
	}
	resp, err := c.pipeline.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("client: me returned %d", resp.StatusCode)
	}

	var out struct {
		Data Identity `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Identity{}, err
	}
	return out.Data, nil
}

// Refresh implements Refresher against the server's refresh endpoint. The
// pipeline is the intended caller.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	var out struct {
		Data struct {
			Session Session `json:"session"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/auth/refresh-token", map[string]string{
		"refreshToken": refreshToken,
	}, &out); err != nil {
		return Session{}, err
	}
	return out.Data.Session, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
