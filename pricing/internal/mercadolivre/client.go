// Package mercadolivre talks to the Mercado Livre API: seller login, category
// listings and category sale fees.
package mercadolivre

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultAuthURL = "https://auth.mercadolivre.com.br/authorization"
	DefaultBaseURL = "https://api.mercadolibre.com"
	DefaultSiteID  = "MLB"

	requestTimeout = 10 * time.Second
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Optional overrides, mostly for tests.
	AuthURL    string
	BaseURL    string
	SiteID     string
	HTTPClient *http.Client
}

type Client struct {
	http    *http.Client
	baseURL string
	siteID  string
	oauth   *oauth2.Config
}

func NewClient(cfg Config) *Client {
	c := &Client{
		http:    cfg.HTTPClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		siteID:  cfg.SiteID,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: requestTimeout}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.siteID == "" {
		c.siteID = DefaultSiteID
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	c.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  c.baseURL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return c
}

// Configured reports whether OAuth credentials are present.
func (c *Client) Configured() bool {
	return c.oauth.ClientID != "" && c.oauth.RedirectURL != ""
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status int
	Body   string
	URL    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadolivre: %s returned %d", e.URL, e.Status)
}

// getJSON issues an authenticated (when token is set) GET and decodes the body into dst.
func (c *Client) getJSON(ctx context.Context, path, token string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mercadolivre: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(body), URL: url}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("mercadolivre: decode %s: %w", url, err)
	}
	return nil
}
