package upstream

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const DefaultHost = "https://e621.net"

// Credentials for the upstream API. Both fields must be set for requests to be
// authenticated.
type Credentials struct {
	Login  string
	APIKey string
}

func (c Credentials) Complete() bool {
	return c.Login != "" && c.APIKey != ""
}

// Config describes how the client talks to the upstream
type Config struct {
	Host        string
	UserAgent   string
	Credentials Credentials
	ExcludedExt string

	// Timeout applies to every single upstream request
	Timeout time.Duration
	// LookupTimeout applies to each avatar lookup
	LookupTimeout time.Duration
	// CommentsDeadline bounds the whole comment fallback chain, zero disables it
	CommentsDeadline time.Duration

	MaxComments      int
	MaxAvatarLookups int

	RequestsPerSecond float64
	Burst             int

	// HTTPClient overrides the default transport, mostly for tests
	HTTPClient *http.Client
}

type Client struct {
	host             string
	userAgent        string
	creds            Credentials
	excludedExt      string
	lookupTimeout    time.Duration
	commentsDeadline time.Duration
	maxComments      int
	maxAvatarLookups int
	http             *http.Client
	limiter          *rate.Limiter
}

func New(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.LookupTimeout == 0 {
		cfg.LookupTimeout = 4 * time.Second
	}
	if cfg.MaxComments <= 0 {
		cfg.MaxComments = 50
	}
	if cfg.MaxAvatarLookups < 0 {
		cfg.MaxAvatarLookups = 0
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   20,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		}
	}

	return &Client{
		host:             strings.TrimRight(cfg.Host, "/"),
		userAgent:        cfg.UserAgent,
		creds:            cfg.Credentials,
		excludedExt:      strings.ToLower(strings.TrimSpace(cfg.ExcludedExt)),
		lookupTimeout:    cfg.LookupTimeout,
		commentsDeadline: cfg.CommentsDeadline,
		maxComments:      cfg.MaxComments,
		maxAvatarLookups: cfg.MaxAvatarLookups,
		http:             httpClient,
		limiter:          rate.NewLimiter(limit, burst),
	}
}

func (c *Client) Host() string {
	return c.host
}

// Authenticated reports whether server-side credentials are configured
func (c *Client) Authenticated() bool {
	return c.creds.Complete()
}

// response is a fully read upstream reply
type response struct {
	Url         string
	Status      int
	ContentType string
	Body        []byte
}

func (r *response) ok() bool {
	return r.Status >= 200 && r.Status < 300
}

// do sends a request to the upstream and reads the whole body. The request is
// authenticated with creds when they are complete.
func (c *Client) do(ctx context.Context, endpoint, method, url string, body io.Reader, contentType string, creds Credentials) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if creds.Complete() {
		req.SetBasicAuth(creds.Login, creds.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	upstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		upstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.WithFields(log.Fields{
		"endpoint": endpoint,
		"method":   method,
		"status":   resp.StatusCode,
		"latency":  time.Since(start),
	}).Debug("Upstream request")

	return &response{
		Url:         url,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
