package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-now/internal/models"
	"github.com/kjstillabower/weather-now/internal/observability"
)

// WeatherClient looks up current conditions for a coordinate.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, coord models.GeoCoordinate) (models.WeatherSnapshot, error)
}

var (
	ErrTransport   = errors.New("weather transport failure")
	ErrParse       = errors.New("weather response parse failure")
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// UpstreamError is a non-2xx response. Message is the upstream "message" field, unmodified.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream HTTP %d: %s", e.StatusCode, e.Message)
}

type OpenWeatherClient struct {
	apiKey  string
	apiURL  string
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

// NewOpenWeatherClient returns a client for the current-weather endpoint at apiURL.
// The API key is sent as-is; an empty or invalid key shows up as the upstream's error response.
// timeout <= 0 leaves the transport without a deadline.
func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: scheme and host required", apiURL)
	}

	httpClient := resty.New().
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}

	return &OpenWeatherClient{
		apiKey: apiKey,
		apiURL: apiURL,
		http:   httpClient,
	}, nil
}

// SetCircuitBreaker wraps every call in cb. Calls rejected by an open breaker return ErrCircuitOpen.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// NewCircuitBreaker builds the breaker used around the weather API, reporting transitions to metrics.
func NewCircuitBreaker(failureThreshold uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker {
	if failureThreshold == 0 {
		failureThreshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weather_api",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		IsSuccessful:  breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})
}

// breakerSuccess treats caller mistakes (bad key, unknown place) as a healthy upstream.
// 429 and 5xx still count against the breaker.
func breakerSuccess(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode >= 400 && upstream.StatusCode < 500 && upstream.StatusCode != 429
	}
	return err == nil
}

type openWeatherMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Humidity  int     `json:"humidity"`
}

type openWeatherResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main    openWeatherMain `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type openWeatherError struct {
	Message string `json:"message"`
}

// GetCurrentWeather issues exactly one request; there are no automatic retries.
func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, coord models.GeoCoordinate) (models.WeatherSnapshot, error) {
	if c.breaker == nil {
		return c.callAPI(ctx, coord)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.callAPI(ctx, coord)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	return result.(models.WeatherSnapshot), nil
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, coord models.GeoCoordinate) (models.WeatherSnapshot, error) {
	start := time.Now()

	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(c.queryParams(coord))
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.SetHeader("X-Correlation-ID", corrID)
	}

	resp, err := req.Get(c.apiURL)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return models.WeatherSnapshot{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	status := statusLabel(resp.StatusCode())
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if !resp.IsSuccess() {
		var apiErr openWeatherError
		if err := json.Unmarshal(resp.Body(), &apiErr); err != nil {
			return models.WeatherSnapshot{}, fmt.Errorf("%w: error body for HTTP %d: %v", ErrParse, resp.StatusCode(), err)
		}
		return models.WeatherSnapshot{}, &UpstreamError{StatusCode: resp.StatusCode(), Message: apiErr.Message}
	}

	var apiResp openWeatherResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if apiResp.Name == "" && apiResp.Main == (openWeatherMain{}) {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: success body has neither name nor main", ErrParse)
	}

	return mapResponse(apiResp, coord), nil
}

func (c *OpenWeatherClient) queryParams(coord models.GeoCoordinate) map[string]string {
	return map[string]string{
		"lat":   strconv.FormatFloat(coord.Latitude, 'f', -1, 64),
		"lon":   strconv.FormatFloat(coord.Longitude, 'f', -1, 64),
		"units": "metric",
		"appid": c.apiKey,
	}
}

func mapResponse(apiResp openWeatherResponse, coord models.GeoCoordinate) models.WeatherSnapshot {
	snapshot := models.WeatherSnapshot{
		Place:       apiResp.Name,
		Country:     apiResp.Sys.Country,
		Temperature: apiResp.Main.Temp,
		FeelsLike:   apiResp.Main.FeelsLike,
		TempMin:     apiResp.Main.TempMin,
		TempMax:     apiResp.Main.TempMax,
		Humidity:    apiResp.Main.Humidity,
		WindSpeed:   apiResp.Wind.Speed,
		Coordinate:  coord,
	}
	if len(apiResp.Weather) > 0 {
		snapshot.Description = apiResp.Weather[0].Description
		snapshot.Icon = apiResp.Weather[0].Icon
	}
	return snapshot
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
