package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"solarkiosk/pkg/logger"
)

// ErrMissingCredentials is returned before any network or signing work when
// either vendor credential is unset.
var ErrMissingCredentials = errors.New("missing credentials")

// APIError is a non-2xx response from the vendor API. It preserves the
// upstream status and body so handlers can mirror them to the browser.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
	Header     http.Header
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("vendor API error: %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("vendor API error: %s", e.Status)
}

// Cache is the response cache consulted by the client. Implementations must
// be safe for concurrent use.
type Cache interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, value json.RawMessage)
}

// Client issues signed GET requests to the vendor API. It is the sole point
// of network I/O and the sole component touching the cache.
type Client struct {
	baseURL    string
	accessKey  string
	secretKey  string
	httpClient *http.Client
	cache      Cache
	group      singleflight.Group
	now        func() time.Time
}

// NewClient creates a vendor API client. cache may not be nil.
func NewClient(baseURL, accessKey, secretKey string, timeout time.Duration, cache Cache) *Client {
	return &Client{
		baseURL:    baseURL,
		accessKey:  accessKey,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		now:        time.Now,
	}
}

// CacheKey builds the deterministic cache key for an endpoint and parameter
// set. url.Values.Encode sorts by key, so identical parameter sets always
// collide and differing ones never do.
func CacheKey(endpoint string, params url.Values) string {
	return endpoint + "?" + params.Encode()
}

// Request returns the vendor payload for endpoint+params, serving from cache
// when a fresh entry exists. Cached responses bypass signing entirely.
// Concurrent misses for the same key are coalesced into one upstream call.
func (c *Client) Request(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if c.accessKey == "" || c.secretKey == "" {
		return nil, ErrMissingCredentials
	}

	key := CacheKey(endpoint, params)
	if payload, ok := c.cache.Get(key); ok {
		logger.Debugf("cache hit: %s", key)
		return payload, nil
	}

	payload, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.fetch(ctx, key, endpoint, params)
	})
	if err != nil {
		return nil, err
	}
	return payload.(json.RawMessage), nil
}

func (c *Client) fetch(ctx context.Context, key, endpoint string, params url.Values) (json.RawMessage, error) {
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	paramString := params.Encode()
	signature := Sign(c.secretKey, timestamp, endpoint, paramString)

	target := c.baseURL + endpoint
	if paramString != "" {
		target += "?" + paramString
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Access-Key", c.accessKey)
	req.Header.Set("Timestamp", timestamp)
	req.Header.Set("Signature", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Errorf("vendor call failed: %s -> %s", key, resp.Status)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
			Header:     resp.Header,
		}
	}

	c.cache.Set(key, body)
	logger.Debugf("cache fill: %s (%d bytes)", key, len(body))
	return json.RawMessage(body), nil
}
