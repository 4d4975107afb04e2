package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
)

const nominatimUserAgent = "whatsapp-delivery-bot/1.0"

var geocodeLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "geocode_lookups_total",
	Help: "Geocode lookups by source (cache or upstream).",
}, []string{"source"})

// GeocodePlace is one resolved geocoding result.
type GeocodePlace struct {
	Coord       models.Coordinate
	DisplayName string
	City        string
}

// GeocodeClient resolves an address query to a place. A nil place with
// a nil error means the geocoder returned no result.
type GeocodeClient interface {
	Search(ctx context.Context, query string) (*GeocodePlace, error)
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		County  string `json:"county"`
		State   string `json:"state"`
		Region  string `json:"region"`
	} `json:"address"`
}

// NominatimClient talks to the OSM Nominatim search API.
type NominatimClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewNominatimClient(baseURL string, timeout time.Duration) *NominatimClient {
	return &NominatimClient{
		baseURL:   baseURL,
		userAgent: nominatimUserAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (c *NominatimClient) Search(ctx context.Context, query string) (*GeocodePlace, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("nominatim status %d: %s", resp.StatusCode, string(body))
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("nominatim decode: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	r := results[0]
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim lat %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim lon %q: %w", r.Lon, err)
	}

	return &GeocodePlace{
		Coord:       models.Coordinate{Lat: lat, Lon: lon},
		DisplayName: r.DisplayName,
		City:        firstNonEmpty(r.Address.City, r.Address.Town, r.Address.Village, r.Address.County, r.Address.State, r.Address.Region),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GeocodeCache memoizes resolved coordinates per normalized address
// string for the process lifetime. A populated entry is never
// invalidated: addresses are treated as immutable facts. The origin
// coordinate has a dedicated slot, resolved once.
type GeocodeCache struct {
	mu      sync.RWMutex
	entries map[string]models.Coordinate
	origin  *models.Coordinate
}

func NewGeocodeCache() *GeocodeCache {
	return &GeocodeCache{entries: make(map[string]models.Coordinate)}
}

func (c *GeocodeCache) Get(address string) (models.Coordinate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coord, ok := c.entries[address]
	return coord, ok
}

func (c *GeocodeCache) Put(address string, coord models.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[address] = coord
}

func (c *GeocodeCache) Origin() (models.Coordinate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.origin == nil {
		return models.Coordinate{}, false
	}
	return *c.origin, true
}

func (c *GeocodeCache) SetOrigin(coord models.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.origin = &coord
}
