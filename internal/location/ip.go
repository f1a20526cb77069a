package location

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kjstillabower/weather-now/internal/models"
)

// DefaultIPAPIURL is the free ip-api.com JSON endpoint.
const DefaultIPAPIURL = "http://ip-api.com/json"

// IPSource approximates the host position from its public IP address.
type IPSource struct {
	apiURL string
	http   *resty.Client
}

func NewIPSource(apiURL string, timeout time.Duration) *IPSource {
	if apiURL == "" {
		apiURL = DefaultIPAPIURL
	}
	httpClient := resty.New().SetHeader("Accept", "application/json")
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}
	return &IPSource{apiURL: apiURL, http: httpClient}
}

func (s *IPSource) Name() string { return "ip" }

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (s *IPSource) Position(ctx context.Context) (models.GeoCoordinate, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("fields", "status,message,lat,lon").
		Get(s.apiURL)
	if err != nil {
		return models.GeoCoordinate{}, fmt.Errorf("%w: ip lookup: %w", ErrPositionUnavailable, err)
	}
	if !resp.IsSuccess() {
		return models.GeoCoordinate{}, fmt.Errorf("%w: ip lookup: HTTP %d", ErrPositionUnavailable, resp.StatusCode())
	}

	var body ipAPIResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return models.GeoCoordinate{}, fmt.Errorf("%w: parse ip lookup: %v", ErrPositionUnavailable, err)
	}
	if body.Status != "success" {
		return models.GeoCoordinate{}, fmt.Errorf("%w: ip lookup: %s", ErrPositionUnavailable, body.Message)
	}

	return models.GeoCoordinate{Latitude: body.Lat, Longitude: body.Lon}, nil
}
