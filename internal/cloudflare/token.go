package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// timestampFormat is the layout Cloudflare uses for token timestamps.
const timestampFormat = "2006-01-02T15:04:05Z"

// Token is an API token as represented by the Cloudflare API. Value is only
// populated on responses that disclose the secret (create, clone, roll).
type Token struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Status     string            `json:"status,omitempty"`
	Value      string            `json:"value,omitempty"`
	NotBefore  string            `json:"not_before,omitempty"`
	ExpiresOn  string            `json:"expires_on,omitempty"`
	IssuedOn   string            `json:"issued_on,omitempty"`
	ModifiedOn string            `json:"modified_on,omitempty"`
	Policies   []json.RawMessage `json:"policies,omitempty"`
	Condition  json.RawMessage   `json:"condition,omitempty"`
}

// formatTimestamp renders t in the Cloudflare timestamp layout.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

// validityWindow returns the duration between a token's issued_on and
// expires_on timestamps. Both must be present together; a token carrying
// expires_on without issued_on is rejected rather than guessed at.
func validityWindow(tok Token) (time.Duration, error) {
	if tok.ExpiresOn == "" {
		return 0, nil
	}
	if tok.IssuedOn == "" {
		return 0, fmt.Errorf("token %s has expires_on but no issued_on", tok.ID)
	}
	issued, err := time.Parse(timestampFormat, tok.IssuedOn)
	if err != nil {
		return 0, fmt.Errorf("token %s has malformed issued_on %q: %w", tok.ID, tok.IssuedOn, err)
	}
	expires, err := time.Parse(timestampFormat, tok.ExpiresOn)
	if err != nil {
		return 0, fmt.Errorf("token %s has malformed expires_on %q: %w", tok.ID, tok.ExpiresOn, err)
	}
	return expires.Sub(issued), nil
}

// stripPolicyIDs removes the server-assigned id field from each policy object
// so the set can be resubmitted on a new token.
func stripPolicyIDs(policies []json.RawMessage) ([]json.RawMessage, error) {
	stripped := make([]json.RawMessage, 0, len(policies))
	for _, raw := range policies {
		var policy map[string]interface{}
		if err := json.Unmarshal(raw, &policy); err != nil {
			return nil, fmt.Errorf("malformed policy object: %w", err)
		}
		delete(policy, "id")
		clean, err := json.Marshal(policy)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode policy: %w", err)
		}
		stripped = append(stripped, clean)
	}
	return stripped, nil
}

// CreateToken issues a brand-new token with the given name and policy set,
// valid from now. A validDays of zero or less creates a non-expiring token.
func (c *Client) CreateToken(ctx context.Context, name string, policies []json.RawMessage, validDays int) (Token, error) {
	clean, err := stripPolicyIDs(policies)
	if err != nil {
		return Token{}, err
	}

	now := time.Now().UTC()
	newToken := Token{
		Name:      name,
		NotBefore: formatTimestamp(now),
		Policies:  clean,
	}
	if validDays > 0 {
		newToken.ExpiresOn = formatTimestamp(now.AddDate(0, 0, validDays))
	}

	var created Token
	if err := c.do(ctx, http.MethodPost, "/user/tokens", authToken, newToken, &created); err != nil {
		return Token{}, err
	}
	return created, nil
}

// GetToken fetches a token's details. The secret value is never included.
func (c *Client) GetToken(ctx context.Context, tokenID string) (Token, error) {
	var tok Token
	if err := c.do(ctx, http.MethodGet, "/user/tokens/"+tokenID, authToken, nil, &tok); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// TokenExists reports whether a token id still exists upstream. The
// not-found error code becomes a plain absent result; everything else is an
// error.
func (c *Client) TokenExists(ctx context.Context, tokenID string) (bool, error) {
	_, err := c.GetToken(ctx, tokenID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeTokenNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RollToken rolls a token's secret value and returns the new value. The
// token's id, policies, and validity are unchanged.
func (c *Client) RollToken(ctx context.Context, tokenID string) (string, error) {
	var value string
	if err := c.do(ctx, http.MethodPut, "/user/tokens/"+tokenID+"/value", authToken, struct{}{}, &value); err != nil {
		return "", err
	}
	return value, nil
}

// RenewToken reactivates an existing token and rolls its value: not_before
// is reset to now, the expiry is recomputed to preserve the token's original
// validity duration, and the status is forced back to active. Returns the
// rolled secret value.
func (c *Client) RenewToken(ctx context.Context, tokenID string) (string, error) {
	tok, err := c.GetToken(ctx, tokenID)
	if err != nil {
		return "", err
	}

	window, err := validityWindow(tok)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	tok.NotBefore = formatTimestamp(now)
	tok.Status = "active"
	if window > 0 {
		tok.ExpiresOn = formatTimestamp(now.Add(window))
	}

	if err := c.do(ctx, http.MethodPut, "/user/tokens/"+tokenID, authToken, tok, nil); err != nil {
		return "", err
	}
	return c.RollToken(ctx, tokenID)
}

// CloneToken creates a new token with the same name, policies, and condition
// as an existing one. The clone's expiry preserves the source token's
// validity duration counted from now, not its calendar expiry date.
func (c *Client) CloneToken(ctx context.Context, tokenID string) (Token, error) {
	existing, err := c.GetToken(ctx, tokenID)
	if err != nil {
		return Token{}, err
	}

	clean, err := stripPolicyIDs(existing.Policies)
	if err != nil {
		return Token{}, err
	}

	window, err := validityWindow(existing)
	if err != nil {
		return Token{}, err
	}

	now := time.Now().UTC()
	newToken := Token{
		Name:      existing.Name,
		NotBefore: formatTimestamp(now),
		Policies:  clean,
		Condition: existing.Condition,
	}
	if window > 0 {
		newToken.ExpiresOn = formatTimestamp(now.Add(window))
	}

	var created Token
	if err := c.do(ctx, http.MethodPost, "/user/tokens", authToken, newToken, &created); err != nil {
		return Token{}, err
	}
	return created, nil
}

// VerifyToken checks that a token value authenticates and is active. An
// inactive or rejected token is a false result, not an error.
func (c *Client) VerifyToken(ctx context.Context, tokenValue string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/tokens/verify", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tokenValue)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var verifyResp struct {
		Success bool `json:"success"`
		Result  struct {
			Status string `json:"status"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return false, fmt.Errorf("unexpected verify response (status %d): %w", resp.StatusCode, err)
	}
	return verifyResp.Success && verifyResp.Result.Status == "active", nil
}
