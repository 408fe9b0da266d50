package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/janelia-flyem/libdvid-go/dvid"
)

const (
	// DefaultTimeout bounds each HTTP request, including large volume transfers.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxParallel is the number of concurrent requests used for one volume transfer.
	DefaultMaxParallel = 4

	// DefaultChunkDepth is the Z depth in voxels of each request in a volume transfer.
	DefaultChunkDepth = 64

	// APIPath is the root of the DVID HTTP API on a server.
	APIPath = "/api"
)

// Option configures a Connection.
type Option func(*Connection)

// WithHTTPClient overrides the HTTP client.  Its Timeout is left as is.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Connection) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the timeout of each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Connection) {
		c.timeout = d
	}
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Connection) {
		c.retry = policy
	}
}

// WithToken sets a JWT sent as "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Connection) {
		c.token = strings.TrimSpace(token)
	}
}

// WithUser adds the "u" query string DVID uses to attribute mutations.
func WithUser(user string) Option {
	return func(c *Connection) {
		c.user = user
	}
}

// WithCache enables a client-side cache of keyvalue values of the given size in bytes.
// Values are keyed by full node UUID, so node services opened with different UUID
// prefixes share entries.  Only writes through this connection invalidate the cache,
// so it should be used for committed (locked) nodes or when this client is the only
// writer.
func WithCache(sizeBytes int) Option {
	return func(c *Connection) {
		c.cacheSize = sizeBytes
	}
}

// WithMaxParallel sets the number of concurrent requests for a volume transfer.
func WithMaxParallel(n int) Option {
	return func(c *Connection) {
		c.maxParallel = n
	}
}

// WithChunkDepth sets the Z depth in voxels of each request in a volume transfer.
func WithChunkDepth(nz int32) Option {
	return func(c *Connection) {
		c.chunkDepth = nz
	}
}

// Connection holds the address and transport settings for a DVID server.
// It is safe for concurrent use.
type Connection struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	retry      RetryPolicy
	backoff    *backoff
	token      string
	tokenUser  string
	user       string

	cacheSize int
	cache     *valueCache

	maxParallel int
	chunkDepth  int32
}

// NewConnection returns a connection to the DVID server at address, which is either
// "host:port" or a full URL like "http://host:port".
func NewConnection(address string, opts ...Option) (*Connection, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, invalidArgf("server address is required")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	parsed, err := url.Parse(address)
	if err != nil {
		return nil, invalidArgf("bad server address %q: %v", address, err)
	}
	if parsed.Host == "" {
		return nil, invalidArgf("server address %q has no host", address)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	parsed.RawQuery = ""

	c := &Connection{
		baseURL:     parsed,
		timeout:     DefaultTimeout,
		retry:       DefaultRetryPolicy,
		maxParallel: DefaultMaxParallel,
		chunkDepth:  DefaultChunkDepth,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.retry.MaxRetries < 0 {
		c.retry.MaxRetries = 0
	}
	c.backoff = newBackoff(c.retry)
	if c.maxParallel < 1 {
		c.maxParallel = 1
	}
	if c.chunkDepth < 1 {
		return nil, invalidArgf("chunk depth must be positive, not %d", c.chunkDepth)
	}
	if c.token != "" {
		if c.tokenUser, err = tokenUser(c.token); err != nil {
			return nil, invalidArgf("bad JWT: %v", err)
		}
	}
	if c.cacheSize > 0 {
		c.cache = newValueCache(c.cacheSize)
	}
	return c, nil
}

// tokenUser returns the "user" claim of a JWT without verifying its signature, which
// only the server can do.
func tokenUser(tokenStr string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return "", err
	}
	if user, ok := claims["user"].(string); ok {
		return user, nil
	}
	return "", nil
}

// Address returns the server's base URL, e.g., "http://127.0.0.1:8000".
func (c *Connection) Address() string {
	return c.baseURL.String()
}

// User returns the user attributed to requests, either set by WithUser or from the JWT.
func (c *Connection) User() string {
	if c.user != "" {
		return c.user
	}
	return c.tokenUser
}

// buildURL joins an endpoint, whose elements are already path escaped, to the API root.
func (c *Connection) buildURL(endpoint string, query url.Values) string {
	urlStr := c.baseURL.String() + APIPath + "/" + strings.TrimPrefix(endpoint, "/")
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if c.user != "" && q.Get("u") == "" {
		q.Set("u", c.user)
	}
	if len(q) > 0 {
		urlStr += "?" + q.Encode()
	}
	return urlStr
}

// Do sends a request to the API endpoint, e.g., "node/3f8c/mykv/key/foo", relative to
// the server's API root and returns the response body.  Transient failures are retried
// under the connection's RetryPolicy.  A non-2xx response is returned as *ResponseError.
func (c *Connection) Do(ctx context.Context, method, endpoint string, query url.Values, body []byte) ([]byte, error) {
	return c.do(ctx, method, endpoint, query, body, c.retry.MaxRetries)
}

// doNoRetry sends a request that must not be repeated, like one creating a repo.
func (c *Connection) doNoRetry(ctx context.Context, method, endpoint string, query url.Values, body []byte) ([]byte, error) {
	return c.do(ctx, method, endpoint, query, body, 0)
}

func (c *Connection) do(ctx context.Context, method, endpoint string, query url.Values, body []byte, maxRetries int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	urlStr := c.buildURL(endpoint, query)
	for attempt := 0; ; attempt++ {
		data, err := c.doOnce(ctx, method, urlStr, body)
		if err == nil {
			return data, nil
		}
		if attempt >= maxRetries || !c.shouldRetry(ctx, err) {
			return nil, err
		}
		delay := c.backoff.forAttempt(attempt)
		dvid.Debugf("retrying %s %s in %s after error: %v\n", method, urlStr, delay, err)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Connection) doOnce(ctx context.Context, method, urlStr string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, fmt.Errorf("can't create %s request for %q: %w", method, urlStr, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response to %s %s: %w", method, urlStr, err)
	}
	dvid.Debugf("%s %s -> %d (%d bytes sent, %d received)\n", method, urlStr, resp.StatusCode, len(body), len(data))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ResponseError{
			Method:     method,
			URL:        urlStr,
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}
	return data, nil
}

func (c *Connection) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.Retryable()
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
