// Package gerrit implements a minimal REST client for a Gerrit server.
//
// Gerrit's REST responses carry an XSSI guard prefix ()]}') ahead of the JSON
// body; the client strips it before decoding. Authenticated endpoints live
// under the /a/ path prefix and use HTTP basic auth with the account's HTTP
// password.
package gerrit

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gerrit-tools/serviceuser-cli/internal/config"
)

// xssiPrefix guards Gerrit JSON responses against cross-site script inclusion.
const xssiPrefix = ")]}'"

// Client talks to a single Gerrit site.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// New builds a Client from a SiteConfig.
func New(cfg *config.SiteConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("site URL is not set")
	}
	if cfg.Username == "" || cfg.HTTPPassword == "" {
		return nil, fmt.Errorf("site has no authentication configured (need username+http-password)")
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: !cfg.VerifyTLS, //nolint:gosec
			},
		},
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.HTTPPassword,
		http:     httpClient,
	}, nil
}

// Get issues a GET and decodes the JSON response into v (when v is non-nil).
func (c *Client) Get(ctx context.Context, path string, v interface{}) error {
	return c.do(ctx, http.MethodGet, path, "", nil, v)
}

// Put issues a PUT with an optional JSON body and decodes the response into v.
func (c *Client) Put(ctx context.Context, path string, body, v interface{}) error {
	return c.do(ctx, http.MethodPut, path, "application/json", body, v)
}

// Post issues a POST with an optional JSON body and decodes the response into v.
func (c *Client) Post(ctx context.Context, path string, body, v interface{}) error {
	return c.do(ctx, http.MethodPost, path, "application/json", body, v)
}

// PostText issues a POST with a plain-text body and decodes the response into v.
// Gerrit's SSH key collection endpoint takes the raw key material, not JSON.
func (c *Client) PostText(ctx context.Context, path, body string, v interface{}) error {
	return c.do(ctx, http.MethodPost, path, "text/plain", body, v)
}

// Delete issues a DELETE. Gerrit answers 204 with no body.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, "", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body, v interface{}) error {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	// All endpoints this client uses require authentication, so everything
	// goes through the /a/ prefix.
	url := c.baseURL + "/a" + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	if contentType != "" && reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if v == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}

	payload := bytes.TrimPrefix(data, []byte(xssiPrefix))
	payload = bytes.TrimLeft(payload, "\n")
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// BaseURL returns the configured server URL without the /a prefix.
func (c *Client) BaseURL() string {
	return c.baseURL
}
