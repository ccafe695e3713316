// Package lookerclient is a typed facade over the Looker REST API (spec
// §4.4). Its retry/backoff shape is grounded on the teacher's webhook
// adapter (adapter/webhook/webhook.go): an attempts loop with exponential
// backoff, a StatusError distinguishing retriable from non-retriable
// responses, and context-aware sleeps between attempts — generalized here
// to also acquire the shared RateLimiter before every call and to report
// outcomes back into it.
package lookerclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/lookervault/lookervault/codec"
	"github.com/lookervault/lookervault/iox"
	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/ratelimiter"
	"github.com/lookervault/lookervault/types"
)

const (
	maxAttempts  = 5
	callDeadline = 10 * time.Minute
	baseBackoff  = 1 * time.Second
	maxBackoff   = 60 * time.Second
)

// Config configures a Client.
type Config struct {
	// BaseURL is the Looker instance root, e.g. "https://instance.looker.com/api/4.0".
	BaseURL string
	// Token is the bearer credential sent with every request.
	Token string
	// HTTPClient overrides the default *http.Client (tests inject one
	// pointed at an httptest.Server).
	HTTPClient *http.Client
	// RateLimiter coordinates this client across all its callers. Required.
	RateLimiter *ratelimiter.RateLimiter
}

// Client is a typed facade over the Looker REST API, shared by every
// extraction/restoration worker. Its only mutable shared state lives in
// the injected RateLimiter (spec §8: "LookerClient is shared across
// workers; its mutability is confined to the adaptive multiplier inside
// RateLimiter").
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	rl      *ratelimiter.RateLimiter
}

// New builds a Client. Panics if cfg.RateLimiter is nil — callers must
// inject a shared limiter, never construct one implicitly per client.
func New(cfg Config) *Client {
	if cfg.RateLimiter == nil {
		panic("lookerclient: Config.RateLimiter is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    httpClient,
		rl:      cfg.RateLimiter,
	}
}

// endpoints maps each ContentType to its Looker API collection path.
// lookml_model, permission_set and model_set keep their underscored
// form; the rest pluralize with a trailing 's'.
var endpoints = map[types.ContentType]string{
	types.ContentTypeDashboard:     "dashboards",
	types.ContentTypeLook:          "looks",
	types.ContentTypeLookMLModel:   "lookml_models",
	types.ContentTypeExplore:       "explores",
	types.ContentTypeFolder:        "folders",
	types.ContentTypeBoard:         "boards",
	types.ContentTypeUser:          "users",
	types.ContentTypeGroup:         "groups",
	types.ContentTypeRole:          "roles",
	types.ContentTypePermissionSet: "permission_sets",
	types.ContentTypeModelSet:      "model_sets",
	types.ContentTypeScheduledPlan: "scheduled_plans",
}

func endpointFor(t types.ContentType) (string, error) {
	e, ok := endpoints[t]
	if !ok {
		return "", fmt.Errorf("lookerclient: no endpoint for content type %s", t)
	}
	return e, nil
}

// SelfInfo calls the Looker "me" endpoint as a connection check, returning
// the decoded response tree.
func (c *Client) SelfInfo(ctx context.Context) (codec.Value, error) {
	return c.doJSON(ctx, http.MethodGet, "/user", nil)
}

// Get fetches a single item by type and ID, for callers that need more
// than existence (e.g. restoration's skip_if_modified comparison against
// the destination's updated_at).
func (c *Client) Get(ctx context.Context, t types.ContentType, id string) (codec.Value, error) {
	endpoint, err := endpointFor(t)
	if err != nil {
		return codec.Value{}, err
	}
	return c.doJSON(ctx, http.MethodGet, "/"+endpoint+"/"+id, nil)
}

// Exists reports whether an item of the given type and ID exists at the
// destination.
func (c *Client) Exists(ctx context.Context, t types.ContentType, id string) (bool, error) {
	_, err := c.Get(ctx, t, id)
	if err == nil {
		return true, nil
	}
	var apiErr *lverrors.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// Create posts payload as a new item, returning the destination ID Looker
// assigns it.
func (c *Client) Create(ctx context.Context, t types.ContentType, payload codec.Value) (string, error) {
	endpoint, err := endpointFor(t)
	if err != nil {
		return "", err
	}
	resp, err := c.doJSON(ctx, http.MethodPost, "/"+endpoint, &payload)
	if err != nil {
		return "", err
	}
	if resp.Kind != codec.KindMap {
		return "", fmt.Errorf("lookerclient: create response is not an object")
	}
	idVal, ok := resp.Map.Get("id")
	if !ok {
		return "", fmt.Errorf("lookerclient: create response has no id field")
	}
	return valueToString(idVal), nil
}

// Update overwrites an existing item by ID.
func (c *Client) Update(ctx context.Context, t types.ContentType, id string, payload codec.Value) error {
	endpoint, err := endpointFor(t)
	if err != nil {
		return err
	}
	_, err = c.doJSON(ctx, http.MethodPatch, "/"+endpoint+"/"+id, &payload)
	return err
}

func valueToString(v codec.Value) string {
	switch v.Kind {
	case codec.KindString:
		return v.Str
	case codec.KindInt:
		return fmt.Sprintf("%d", v.Int)
	case codec.KindFloat:
		return fmt.Sprintf("%v", v.Float)
	default:
		return ""
	}
}

// retriableStatus reports whether a response status should be retried.
func retriableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// doJSON performs one logical API call: RateLimiter.Acquire, then the
// attempts loop with backoff+jitter, reporting 429s and successes back to
// the limiter. 422 and 404 fail fast without retry per spec §4.4.
func (c *Client) doJSON(ctx context.Context, method, path string, body *codec.Value) (codec.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	var bodyBytes []byte
	if body != nil {
		b, err := codec.ToJSON(*body)
		if err != nil {
			return codec.Value{}, &lverrors.SerializationError{Err: err}
		}
		bodyBytes = b
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return codec.Value{}, fmt.Errorf("lookerclient: %w", lverrors.Cancelled)
		}

		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return codec.Value{}, err
			}
		}

		if err := c.rl.Acquire(ctx); err != nil {
			return codec.Value{}, fmt.Errorf("lookerclient: rate limiter acquire: %w", err)
		}

		resp, err := c.doRequest(ctx, method, path, bodyBytes)
		if err == nil {
			c.rl.OnSuccess()
			return resp, nil
		}
		lastErr = err

		var apiErr *lverrors.APIError
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusTooManyRequests {
				c.rl.On429()
			}
			if apiErr.StatusCode == http.StatusUnprocessableEntity || apiErr.StatusCode == http.StatusNotFound {
				return codec.Value{}, err
			}
			if !apiErr.Transient {
				return codec.Value{}, err
			}
			continue
		}
		// Network/IO errors are transient: retry.
	}

	return codec.Value{}, fmt.Errorf("lookerclient: failed after %d attempts: %w", maxAttempts, lastErr)
}

func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := baseBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
	wait := backoff/2 + jitter

	select {
	case <-ctx.Done():
		return fmt.Errorf("lookerclient: context canceled during backoff: %w", ctx.Err())
	case <-time.After(wait):
		return nil
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (codec.Value, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return codec.Value{}, fmt.Errorf("lookerclient: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return codec.Value{}, fmt.Errorf("lookerclient: request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return codec.Value{}, fmt.Errorf("lookerclient: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return codec.Value{}, &lverrors.APIError{
			StatusCode: resp.StatusCode,
			Transient:  retriableStatus(resp.StatusCode),
			Body:       string(respBody),
		}
	}

	if len(respBody) == 0 {
		return codec.Null(), nil
	}
	v, err := codec.FromJSON(respBody)
	if err != nil {
		return codec.Value{}, &lverrors.DeserializationError{Err: err}
	}
	return v, nil
}
