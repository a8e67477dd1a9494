// Package cloudflare implements the credential provider client used by the
// rotation phases: API token lifecycle (create, roll, renew, clone, verify),
// origin tunnel service keys, and origin certificate issuance for Argo tunnel
// tokens.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/systmms/cfrotate/internal/config"
)

// DefaultBaseURL is the public Cloudflare v4 API endpoint.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// codeTokenNotFound is the Cloudflare error code returned when a token id
// does not exist. Existence checks map it to a present/absent result instead
// of surfacing it as an error.
const codeTokenNotFound = 1003

// authStyle selects which credential a request is signed with. Token
// endpoints accept a scoped API token, the user service key endpoints require
// the global key and email, and the certificates endpoint requires the Origin
// CA key.
type authStyle int

const (
	authToken authStyle = iota
	authKey
	authOriginCA
)

// Client is an HTTP client for the Cloudflare v4 API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      config.CloudflareConfig
}

// NewClient creates a Cloudflare API client from the configured credentials.
func NewClient(creds config.CloudflareConfig) *Client {
	baseURL := creds.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		creds:      creds,
	}
}

// APIError is a single error entry from the Cloudflare response envelope.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloudflare api error %d: %s", e.Code, e.Message)
}

// envelope is the standard Cloudflare v4 response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Errors  []APIError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

// do issues a request and decodes the envelope result into out. A response
// with success=false becomes the first envelope error.
func (c *Client) do(ctx context.Context, method, path string, auth authStyle, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.setAuth(req, auth); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err)
	}

	if !env.Success {
		if len(env.Errors) > 0 {
			return &env.Errors[0]
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}
	return nil
}

// setAuth signs a request. Token endpoints prefer the scoped API token and
// fall back to the global key; the global key and Origin CA key are never
// substituted for each other.
func (c *Client) setAuth(req *http.Request, auth authStyle) error {
	switch auth {
	case authToken:
		if c.creds.HasTokenAuth() {
			req.Header.Set("Authorization", "Bearer "+c.creds.APIToken)
			return nil
		}
		if c.creds.HasKeyAuth() {
			req.Header.Set("X-Auth-Key", c.creds.APIKey)
			req.Header.Set("X-Auth-Email", c.creds.APIEmail)
			return nil
		}
		return fmt.Errorf("no cloudflare api token or key configured")
	case authKey:
		if !c.creds.HasKeyAuth() {
			return fmt.Errorf("cloudflare api key and email not configured")
		}
		req.Header.Set("X-Auth-Key", c.creds.APIKey)
		req.Header.Set("X-Auth-Email", c.creds.APIEmail)
		return nil
	case authOriginCA:
		if !c.creds.HasOriginCAKey() {
			return fmt.Errorf("cloudflare origin ca key not configured")
		}
		req.Header.Set("X-Auth-User-Service-Key", c.creds.OriginCAKey)
		return nil
	default:
		return fmt.Errorf("unknown auth style %d", auth)
	}
}

// CreateServiceKey requests a fresh origin tunnel service key. Requesting the
// key rotates it upstream; the previous value stops working.
func (c *Client) CreateServiceKey(ctx context.Context) (string, error) {
	var result struct {
		ServiceKey string `json:"service_key"`
	}
	if err := c.do(ctx, http.MethodGet, "/user/service_keys/origintunnel", authKey, nil, &result); err != nil {
		return "", err
	}
	if result.ServiceKey == "" {
		return "", fmt.Errorf("origin tunnel service key response contained no key")
	}
	return result.ServiceKey, nil
}

// CreateOriginCertificate submits a CSR and returns the PEM encoded origin
// certificate signed for the given hostname.
func (c *Client) CreateOriginCertificate(ctx context.Context, csrPEM, hostname string, validDays int) (string, error) {
	body := map[string]interface{}{
		"hostnames":          []string{hostname},
		"requested_validity": validDays,
		"request_type":       "origin-ecc",
		"csr":                csrPEM,
	}
	var result struct {
		Certificate string `json:"certificate"`
	}
	if err := c.do(ctx, http.MethodPost, "/certificates", authOriginCA, body, &result); err != nil {
		return "", err
	}
	if result.Certificate == "" {
		return "", fmt.Errorf("certificate response contained no certificate")
	}
	return trimPEM(result.Certificate), nil
}
