// Package fetch provides the rate-limited HTTP client shared by all site
// adapters. Every request goes through a token bucket and a bounded retry
// loop; failures come back as *Error values the caller can degrade on
// instead of aborting a build.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"setbuilder/log"
)

const (
	defaultRequestsPerSecond = 40
	defaultRetryCount        = 3
	defaultTimeout           = 30 * time.Second
	retryWaitTime            = 250 * time.Millisecond
	retryMaxWaitTime         = 2 * time.Second
)

// Kind classifies a fetch failure.
type Kind int

const (
	// KindNetwork is a connection, timeout or TLS failure after the retry
	// budget is exhausted.
	KindNetwork Kind = iota
	// KindStatus is a non-2xx response. 4xx responses land here too: "not
	// found" is a result for the caller to interpret, not a program error.
	KindStatus
)

// Error is a failed fetch. Callers treat it as "this page is unavailable".
type Error struct {
	Kind Kind
	// Status is the HTTP status code, set only for KindStatus
	Status int
	URL    string
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("received status code %d from %s", e.Status, e.URL)
	}
	return fmt.Sprintf("couldn't fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client performs GET requests against one site. The rate limiter is shared
// by every goroutine using the same Client, so a site never sees more than
// the configured request rate no matter how many fetches run concurrently.
type Client struct {
	http  *resty.Client
	cache *pageCache
}

type clientOptions struct {
	baseURL          string
	client           *http.Client
	requestsPerSec   float64
	retryCount       int
	timeout          time.Duration
	insecureTLS      bool
	cloudflareBypass bool
	cacheDB          *badger.DB
	cacheTTL         time.Duration
}

// ClientOption configures the fetch client.
type ClientOption func(*clientOptions)

// WithBaseURL returns an option which overrides the base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient returns an option which overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.client = client
	}
}

// WithRateLimit returns an option which overrides the default rate of 40
// requests per second.
func WithRateLimit(requestsPerSec float64) ClientOption {
	return func(o *clientOptions) {
		o.requestsPerSec = requestsPerSec
	}
}

// WithRetryCount returns an option which overrides the default retry count.
func WithRetryCount(count int) ClientOption {
	return func(o *clientOptions) {
		o.retryCount = count
	}
}

// WithTimeout returns an option which overrides the default request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// WithInsecureTLS returns an option which disables certificate verification.
// The card database site has served invalid certificate chains for years.
func WithInsecureTLS() ClientOption {
	return func(o *clientOptions) {
		o.insecureTLS = true
	}
}

// WithCloudflareBypass returns an option which wraps the transport with
// browser-like headers for sites behind anti-bot protection.
func WithCloudflareBypass() ClientOption {
	return func(o *clientOptions) {
		o.cloudflareBypass = true
	}
}

// WithCacheDB returns an option which caches response bodies in the given
// badger database. Several clients can share one database; entries are
// keyed by the absolute request URL.
func WithCacheDB(db *badger.DB) ClientOption {
	return func(o *clientOptions) {
		o.cacheDB = db
	}
}

// WithCacheTTL returns an option which overrides the default 48 hour
// lifetime of cached pages.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.cacheTTL = ttl
	}
}

// NewClient builds a fetch client.
func NewClient(options ...ClientOption) *Client {
	co := &clientOptions{
		requestsPerSec: defaultRequestsPerSecond,
		retryCount:     defaultRetryCount,
		timeout:        defaultTimeout,
		cacheTTL:       defaultCacheTTL,
	}
	for _, option := range options {
		option(co)
	}

	var httpClient *resty.Client
	if co.client != nil {
		httpClient = resty.NewWithClient(co.client)
	} else {
		httpClient = resty.New()
	}

	if len(co.baseURL) > 0 {
		httpClient.SetBaseURL(co.baseURL)
	}
	httpClient.SetTimeout(co.timeout)
	httpClient.SetRetryCount(co.retryCount)
	httpClient.SetRetryWaitTime(retryWaitTime)
	httpClient.SetRetryMaxWaitTime(retryMaxWaitTime)
	httpClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		// Only transport errors and 5xx are transient
		return err != nil || r.StatusCode() >= http.StatusInternalServerError
	})

	if co.insecureTLS {
		httpClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	if co.cloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	burst := int(co.requestsPerSec)
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(co.requestsPerSec), burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	client := &Client{http: httpClient}
	if co.cacheDB != nil {
		base, err := url.Parse(co.baseURL)
		if err != nil {
			log.Warnw("couldn't parse the base URL for cache keys, caching disabled", "baseURL", co.baseURL, "error", err)
		} else {
			client.cache = &pageCache{db: co.cacheDB, baseURL: base, ttl: co.cacheTTL}
		}
	}

	return client
}

// Get requests path (resolved against the base URL) with the given query
// parameters and returns the response body.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.cache != nil {
		body, err := c.cache.get(path, params)
		if err == nil {
			log.Debugw("cache hit", "url", path, "params", params.Encode())
			return body, nil
		}
		if err != errPageNotFound {
			log.Warnw("couldn't read the page cache", "url", path, "error", err)
		}
	}

	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParamsFromValues(params)
	}

	resp, err := req.Get(path)

	requestURL := path
	if resp != nil && resp.Request != nil {
		requestURL = resp.Request.URL
	}

	if err != nil {
		log.Warnw("request failed", "url", requestURL, "error", err)
		return nil, &Error{Kind: KindNetwork, URL: requestURL, Err: err}
	}
	if !resp.IsSuccess() {
		log.Warnw("request failed", "url", requestURL, "status", resp.StatusCode())
		return nil, &Error{Kind: KindStatus, Status: resp.StatusCode(), URL: requestURL}
	}

	log.Debugw("request succeeded", "url", requestURL, "status", resp.StatusCode(), "size", len(resp.Body()))

	body := resp.Body()
	if c.cache != nil {
		if err := c.cache.set(path, params, body); err != nil {
			log.Warnw("couldn't write the page cache", "url", path, "error", err)
		}
	}

	return body, nil
}
