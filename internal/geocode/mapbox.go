package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nyashahama/hazard-query-backend/internal/observability"
)

const mapboxBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// MapboxClient implements Geocoder using the Mapbox Geocoding API.
type MapboxClient struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewMapboxClient creates a Mapbox geocoding client.
func NewMapboxClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *MapboxClient {
	return &MapboxClient{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: mapboxBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ForwardGeocode converts a place name to coordinates. Cities, localities,
// neighbourhoods and districts are accepted; countries and continents are
// left to region matching.
func (c *MapboxClient) ForwardGeocode(ctx context.Context, place string) (Result, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(place))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality,district,neighborhood"},
	}

	result, err := c.doRequest(ctx, u+"?"+params.Encode())
	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
	case !result.Found():
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	return result, err
}

func (c *MapboxClient) doRequest(ctx context.Context, fullURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error prints the full URL, access token included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return Result{}, fmt.Errorf("forward geocode request: %s: %w", urlErr.Op, urlErr.Err)
		}
		return Result{}, fmt.Errorf("forward geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&mapboxResp); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		return Result{}, nil
	}

	f := mapboxResp.Features[0]
	result := Result{
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}
	if len(f.Center) == 2 {
		result.Lon = f.Center[0]
		result.Lat = f.Center[1]
	}
	c.logger.Debug("geocode: resolved", "place", f.Text, "lon", result.Lon, "lat", result.Lat)
	return result, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
