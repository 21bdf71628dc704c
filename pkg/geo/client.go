// Package geo resolves free-form addresses to coordinates through Nominatim
// and measures distances between them.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/agriconnect/agriconnect-backend/pkg/config"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/metrics"
)

const (
	defaultBaseURL              = "https://nominatim.openstreetmap.org"
	defaultUserAgent            = "AgriConnect/1.0"
	providerName                = "nominatim"
	responseBodyReadLimit int64 = 1024
)

// Point is a WGS84 coordinate.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Geocoder resolves an address to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

// Cache stores resolved coordinates. The redis client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GeocodeKey(query string) string
}

// Client wraps the Nominatim search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	cache      Cache
	cacheTTL   time.Duration
	logger     *logger.Logger
	metrics    *metrics.GatewayMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCache memoizes lookups in the provided cache.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithMetrics records call outcomes on the provided gateway metrics.
func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds the Nominatim client.
func NewClient(cfg config.GeocoderConfig, logg *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		userAgent: strings.TrimSpace(cfg.UserAgent),
		cacheTTL:  cfg.CacheTTL,
		logger:    logg,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.httpClient = &http.Client{Timeout: timeout}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Geocode resolves address to its best Nominatim match.
func (c *Client) Geocode(ctx context.Context, address string) (Point, error) {
	if c == nil {
		return Point{}, pkgerrors.New(pkgerrors.CodeDependency, "geocoder not configured")
	}
	query := strings.TrimSpace(address)
	if query == "" {
		return Point{}, pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}

	if p, ok := c.cached(ctx, query); ok {
		return p, nil
	}

	start := time.Now()
	p, err := c.search(ctx, query)
	c.metrics.Observe(providerName, "search", time.Since(start), err)
	if err != nil {
		return Point{}, err
	}
	c.store(ctx, query, p)
	return p, nil
}

func (c *Client) search(ctx context.Context, query string) (Point, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	endpoint := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Point{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build geocode request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Point{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute geocode request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return Point{}, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "geocode request failed")
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Point{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode geocode response")
	}
	if len(results) == 0 {
		return Point{}, pkgerrors.Newf(pkgerrors.CodeValidation, "address %q could not be located", query).WithDetails(map[string]any{"address": query})
	}
	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lng, errLng := strconv.ParseFloat(results[0].Lon, 64)
	if err := multierr.Combine(errLat, errLng); err != nil {
		return Point{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse geocode coordinates")
	}
	return Point{Latitude: lat, Longitude: lng}, nil
}

func (c *Client) cached(ctx context.Context, query string) (Point, bool) {
	if c.cache == nil {
		return Point{}, false
	}
	raw, err := c.cache.Get(ctx, c.cache.GeocodeKey(query))
	if err != nil || raw == "" {
		return Point{}, false
	}
	var p Point
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Point{}, false
	}
	return p, true
}

func (c *Client) store(ctx context.Context, query string, p Point) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, c.cache.GeocodeKey(query), string(encoded), c.cacheTTL); err != nil && c.logger != nil {
		c.logger.Warn(c.logger.WithField(ctx, "error", err.Error()), "geocode cache write failed")
	}
}
