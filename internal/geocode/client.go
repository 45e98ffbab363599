// Package geocode resolves facility coordinates through Nominatim with
// country-table fallbacks.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/sharckhai/neo-command/internal/geo"
)

const (
	// BaseURL is the public Nominatim endpoint.
	BaseURL = "https://nominatim.openstreetmap.org"

	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// RateLimit is one request per second per the Nominatim usage policy.
	RateLimit = 1.0

	// DefaultUserAgent identifies the client to Nominatim.
	DefaultUserAgent = "neo-command-geocoder"
)

// Errors returned by the client.
var (
	ErrNoResult    = errors.New("no geocoding result")
	ErrRateLimited = errors.New("nominatim rate limit exceeded")
	ErrNetwork     = errors.New("network error communicating with nominatim")
)

// APIError is a non-success HTTP response.
type APIError struct {
	StatusCode int
	Query      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nominatim error (status %d) for %q", e.StatusCode, e.Query)
}

// Searcher resolves a free-form address to a point.
type Searcher interface {
	Search(ctx context.Context, query string) (geo.Point, error)
}

// Client is a rate-limited Nominatim search client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRateLimit overrides the requests-per-second limit.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates a Nominatim client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Search returns the first match for query, or ErrNoResult.
func (c *Client) Search(ctx context.Context, query string) (geo.Point, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return geo.Point{}, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return geo.Point{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geo.Point{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return geo.Point{}, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return geo.Point{}, &APIError{StatusCode: resp.StatusCode, Query: query}
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return geo.Point{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(places) == 0 {
		return geo.Point{}, fmt.Errorf("%w: %q", ErrNoResult, query)
	}
	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("parsing latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("parsing longitude: %w", err)
	}
	return geo.Point{Lat: lat, Lng: lng}, nil
}
