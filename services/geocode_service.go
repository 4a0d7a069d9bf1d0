package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	geocodeCacheSize    = 1024
	geocodeCacheTTL     = 24 * time.Hour
)

// GeocodeService turns coordinates into a short place name.
type GeocodeService struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client
	Log       zerolog.Logger

	cache *expirable.LRU[string, string]
}

type nominatimResponse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		County  string `json:"county"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

// NewGeocodeService returns a reverse geocoder against a Nominatim compatible
// endpoint. Place names are cached for a day.
func NewGeocodeService(baseURL, userAgent string, log zerolog.Logger) (*GeocodeService, error) {
	return newGeocodeService(baseURL, userAgent, geocodeCacheTTL, log)
}

func newGeocodeService(baseURL, userAgent string, ttl time.Duration, log zerolog.Logger) (*GeocodeService, error) {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, errors.Wrap(err, "parse geocode url")
	}
	return &GeocodeService{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: userAgent,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		Log:       log.With().Str("component", "geocode").Logger(),
		cache:     expirable.NewLRU[string, string](geocodeCacheSize, nil, ttl),
	}, nil
}

// FormatCoordinates is the display used when no place name is available.
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lon)
}

// ReverseGeocode returns "<place>, <country>" for the coordinates. Any lookup
// failure falls back to FormatCoordinates.
func (g *GeocodeService) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	key := FormatCoordinates(lat, lon)
	if display, ok := g.cache.Get(key); ok {
		return display
	}

	display, err := g.lookup(ctx, lat, lon)
	if err != nil {
		g.Log.Warn().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("⚠️ reverse geocoding failed, using coordinates")
		return key
	}
	g.cache.Add(key, display)
	return display
}

func (g *GeocodeService) lookup(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "10")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", errors.Wrap(err, "build geocode request")
	}
	req.Header.Set("User-Agent", g.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "geocode request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("geocode request: status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "decode geocode response")
	}

	place := firstNonEmpty(body.Address.City, body.Address.Town, body.Address.County, body.Address.State)
	parts := make([]string, 0, 2)
	if place != "" {
		parts = append(parts, place)
	}
	if body.Address.Country != "" {
		parts = append(parts, body.Address.Country)
	}
	if len(parts) == 0 {
		return "", errors.New("geocode response has no address")
	}
	return strings.Join(parts, ", "), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
