// Package nominatim resolves place names with an OpenStreetMap Nominatim server.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/logger"
)

// Ensure Geocoder implements the interface.
var _ driven.Geocoder = (*Geocoder)(nil)

// Default configuration values.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "sercha-rec"

	// DefaultRate follows the public server's one request per second policy.
	DefaultRate = 1.0
)

// Config holds configuration for the Nominatim geocoder.
type Config struct {
	// BaseURL is the server root (default: domain.DefaultNominatimURL).
	BaseURL string

	// UserAgent identifies the application, as the usage policy requires.
	UserAgent string

	// Timeout is the request timeout (default: 10s).
	Timeout time.Duration

	// RequestsPerSecond throttles calls (default: 1).
	RequestsPerSecond float64
}

// Geocoder calls the Nominatim search API and caches answers for the
// lifetime of the process, including misses.
type Geocoder struct {
	client    *http.Client
	baseURL   string
	userAgent string
	bucket    *rate.Limiter

	mu    sync.Mutex
	cache map[string]*domain.Place
}

// searchResult is one entry of the jsonv2 search response.
type searchResult struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"`
}

// New creates a Nominatim geocoder.
func New(cfg Config) *Geocoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = domain.DefaultNominatimURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRate
	}

	return &Geocoder{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		bucket:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cache:     make(map[string]*domain.Place),
	}
}

// Geocode resolves name, or returns domain.ErrNotFound when the server
// knows no such place.
func (g *Geocoder) Geocode(ctx context.Context, name string) (*domain.Place, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("%w: place %q", domain.ErrNotFound, name)
	}

	g.mu.Lock()
	cached, ok := g.cache[key]
	g.mu.Unlock()
	if ok {
		if cached == nil {
			return nil, fmt.Errorf("%w: place %q", domain.ErrNotFound, name)
		}
		p := *cached
		return &p, nil
	}

	place, err := g.search(ctx, name)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.cache[key] = place
	g.mu.Unlock()

	if place == nil {
		return nil, fmt.Errorf("%w: place %q", domain.ErrNotFound, name)
	}
	p := *place
	return &p, nil
}

// search returns nil, nil when the server has no result.
func (g *Geocoder) search(ctx context.Context, name string) (*domain.Place, error) {
	if err := g.bucket.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", name)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("nominatim: create request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("nominatim error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("nominatim: decode response: %w", err)
	}
	if len(results) == 0 {
		logger.Debug("Nominatim has no result for %q", name)
		return nil, nil
	}

	return toPlace(name, results[0])
}

func toPlace(name string, r searchResult) (*domain.Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: invalid latitude %q: %w", r.Lat, err)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: invalid longitude %q: %w", r.Lon, err)
	}

	place := &domain.Place{Name: name, Lat: lat, Lng: lng}

	// boundingbox is [south, north, west, east].
	if len(r.BoundingBox) == 4 {
		var box [4]float64
		valid := true
		for i, s := range r.BoundingBox {
			box[i], err = strconv.ParseFloat(s, 64)
			if err != nil {
				valid = false
				break
			}
		}
		if valid {
			place.Bounds = &domain.BoundingBox{South: box[0], North: box[1], West: box[2], East: box[3]}
		}
	}
	return place, nil
}
