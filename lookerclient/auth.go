package lookerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lookervault/lookervault/iox"
)

// loginResponse is Looker's POST /login response shape.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login exchanges a client_id/client_secret pair for a bearer access
// token via Looker's API3 login endpoint, for callers building a Config
// from LOOKER_CLIENT_ID/LOOKER_CLIENT_SECRET rather than a pre-issued
// token. httpClient defaults to a 30s-timeout client when nil.
func Login(ctx context.Context, baseURL, clientID, clientSecret string, httpClient *http.Client) (string, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/login", nil)
	if err != nil {
		return "", fmt.Errorf("lookerclient: build login request: %w", err)
	}
	req.URL.RawQuery = form.Encode()

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("lookerclient: login request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("lookerclient: read login response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("lookerclient: login failed with status %d: %s", resp.StatusCode, body)
	}

	var parsed loginResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("lookerclient: decode login response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("lookerclient: login response missing access_token")
	}
	return parsed.AccessToken, nil
}
