package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kjstillabower/weather-now/internal/models"
	"github.com/kjstillabower/weather-now/internal/observability"
)

var london = models.GeoCoordinate{Latitude: 51.5, Longitude: -0.12}

func londonPayload() map[string]interface{} {
	return map[string]interface{}{
		"name": "London",
		"sys":  map[string]interface{}{"country": "GB"},
		"main": map[string]interface{}{
			"temp":       18.4,
			"feels_like": 17.9,
			"temp_min":   16.0,
			"temp_max":   20.2,
			"humidity":   65,
		},
		"weather": []map[string]interface{}{
			{"main": "Clear", "description": "clear sky", "icon": "01d"},
		},
		"wind": map[string]interface{}{"speed": 3.1},
	}
}

func TestNewOpenWeatherClient(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		apiURL  string
		wantErr bool
	}{
		{name: "valid", apiKey: "key-1234567890", apiURL: "https://api.test.com/data/2.5/weather"},
		{name: "empty key is accepted", apiKey: "", apiURL: "https://api.test.com/data/2.5/weather"},
		{name: "missing scheme", apiKey: "key", apiURL: "api.test.com/weather", wantErr: true},
		{name: "unparseable", apiKey: "key", apiURL: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewOpenWeatherClient(tt.apiKey, tt.apiURL, 2*time.Second)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewOpenWeatherClient() expected error, got nil")
				}
				if client != nil {
					t.Error("NewOpenWeatherClient() expected nil client on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOpenWeatherClient() unexpected error: %v", err)
			}
			if client == nil {
				t.Fatal("NewOpenWeatherClient() expected client, got nil")
			}
		})
	}
}

func TestOpenWeatherClient_GetCurrentWeather_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		q := r.URL.Query()
		if q.Get("lat") != "51.5" || q.Get("lon") != "-0.12" {
			t.Errorf("lat/lon = %q/%q, want 51.5/-0.12", q.Get("lat"), q.Get("lon"))
		}
		if q.Get("units") != "metric" {
			t.Errorf("units = %q, want metric", q.Get("units"))
		}
		if q.Get("appid") != "test-api-key-12345" {
			t.Errorf("appid = %q, want test key", q.Get("appid"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(londonPayload())
	}))
	defer server.Close()

	client, err := NewOpenWeatherClient("test-api-key-12345", server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	got, err := client.GetCurrentWeather(context.Background(), london)
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}

	if got.Place != "London" || got.Country != "GB" {
		t.Errorf("Place/Country = %q/%q, want London/GB", got.Place, got.Country)
	}
	if got.Temperature != 18.4 || got.FeelsLike != 17.9 {
		t.Errorf("Temperature/FeelsLike = %v/%v, want 18.4/17.9", got.Temperature, got.FeelsLike)
	}
	if got.TempMin != 16.0 || got.TempMax != 20.2 {
		t.Errorf("TempMin/TempMax = %v/%v, want 16/20.2", got.TempMin, got.TempMax)
	}
	if got.Humidity != 65 {
		t.Errorf("Humidity = %d, want 65", got.Humidity)
	}
	if got.WindSpeed != 3.1 {
		t.Errorf("WindSpeed = %v, want 3.1", got.WindSpeed)
	}
	if got.Description != "clear sky" || got.Icon != "01d" {
		t.Errorf("Description/Icon = %q/%q, want clear sky/01d", got.Description, got.Icon)
	}
	if got.Coordinate != london {
		t.Errorf("Coordinate = %+v, want %+v", got.Coordinate, london)
	}
}

func TestOpenWeatherClient_GetCurrentWeather_UpstreamError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantMsg    string
	}{
		{
			name:       "401 invalid key",
			statusCode: http.StatusUnauthorized,
			body:       `{"cod":401,"message":"Invalid API key. Please see https://openweathermap.org/faq#error401 for more info."}`,
			wantMsg:    "Invalid API key. Please see https://openweathermap.org/faq#error401 for more info.",
		},
		{
			name:       "400 wrong latitude",
			statusCode: http.StatusBadRequest,
			body:       `{"cod":"400","message":"wrong latitude"}`,
			wantMsg:    "wrong latitude",
		},
		{
			name:       "500 without message",
			statusCode: http.StatusInternalServerError,
			body:       `{}`,
			wantMsg:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewOpenWeatherClient("test-api-key-12345", server.URL, 2*time.Second)
			if err != nil {
				t.Fatalf("NewOpenWeatherClient() error = %v", err)
			}

			_, err = client.GetCurrentWeather(context.Background(), london)
			var upstream *UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("GetCurrentWeather() error = %v, want *UpstreamError", err)
			}
			if upstream.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", upstream.StatusCode, tt.statusCode)
			}
			if upstream.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", upstream.Message, tt.wantMsg)
			}
		})
	}
}

func TestOpenWeatherClient_GetCurrentWeather_ParseFailures(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
	}{
		{name: "malformed success body", statusCode: http.StatusOK, body: "{malformed json"},
		{name: "malformed error body", statusCode: http.StatusBadGateway, body: "<html>bad gateway</html>"},
		{name: "null success body", statusCode: http.StatusOK, body: "null"},
		{name: "empty object success body", statusCode: http.StatusOK, body: "{}"},
		{name: "success body without name or main", statusCode: http.StatusOK, body: `{"weather":[{"description":"clear sky"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewOpenWeatherClient("test-api-key-12345", server.URL, 2*time.Second)
			if err != nil {
				t.Fatalf("NewOpenWeatherClient() error = %v", err)
			}

			_, err = client.GetCurrentWeather(context.Background(), london)
			if !errors.Is(err, ErrParse) {
				t.Errorf("GetCurrentWeather() error = %v, want ErrParse", err)
			}
		})
	}
}

func TestOpenWeatherClient_GetCurrentWeather_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewOpenWeatherClient("test-api-key-12345", url, 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	_, err = client.GetCurrentWeather(context.Background(), london)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("GetCurrentWeather() error = %v, want ErrTransport", err)
	}
}

func TestOpenWeatherClient_GetCurrentWeather_NoRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"busy"}`))
	}))
	defer server.Close()

	client, err := NewOpenWeatherClient("test-api-key-12345", server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	_, err = client.GetCurrentWeather(context.Background(), london)
	if err == nil {
		t.Fatal("GetCurrentWeather() expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestOpenWeatherClient_GetCurrentWeather_CorrelationID(t *testing.T) {
	var capturedCorrID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedCorrID = r.Header.Get("X-Correlation-ID")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(londonPayload())
	}))
	defer server.Close()

	client, err := NewOpenWeatherClient("test-api-key-12345", server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	ctx := observability.WithCorrelationID(context.Background(), "test-correlation-id-123")
	if _, err := client.GetCurrentWeather(ctx, london); err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}

	if capturedCorrID != "test-correlation-id-123" {
		t.Errorf("X-Correlation-ID header = %q, want %q", capturedCorrID, "test-correlation-id-123")
	}
}

func TestOpenWeatherClient_CircuitBreakerOpens(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"internal error"}`))
	}))
	defer server.Close()

	client, err := NewOpenWeatherClient("test-api-key-12345", server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	client.SetCircuitBreaker(NewCircuitBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		_, err := client.GetCurrentWeather(context.Background(), london)
		var upstream *UpstreamError
		if !errors.As(err, &upstream) {
			t.Fatalf("call %d: error = %v, want *UpstreamError", i, err)
		}
	}

	_, err = client.GetCurrentWeather(context.Background(), london)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("GetCurrentWeather() error = %v, want ErrCircuitOpen", err)
	}
	if attempts != 2 {
		t.Errorf("upstream attempts = %d, want 2 (third call rejected by breaker)", attempts)
	}
}

func TestBreakerSuccess(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"invalid key", &UpstreamError{StatusCode: 401, Message: "Invalid API key"}, true},
		{"not found", &UpstreamError{StatusCode: 404, Message: "city not found"}, true},
		{"rate limited", &UpstreamError{StatusCode: 429}, false},
		{"server error", &UpstreamError{StatusCode: 503}, false},
		{"transport", ErrTransport, false},
		{"parse", ErrParse, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := breakerSuccess(tt.err); got != tt.want {
				t.Errorf("breakerSuccess(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMapResponse_NoWeatherEntries(t *testing.T) {
	var resp openWeatherResponse
	resp.Name = "Nowhere"
	resp.Main.Temp = 3.3

	got := mapResponse(resp, london)
	if got.Description != "" || got.Icon != "" {
		t.Errorf("Description/Icon = %q/%q, want empty", got.Description, got.Icon)
	}
	if got.Place != "Nowhere" || got.Temperature != 3.3 {
		t.Errorf("Place/Temperature = %q/%v, want Nowhere/3.3", got.Place, got.Temperature)
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "success"},
		{204, "success"},
		{429, "rate_limited"},
		{401, "client_error"},
		{503, "server_error"},
		{302, "error"},
	}
	for _, tt := range tests {
		if got := statusLabel(tt.code); got != tt.want {
			t.Errorf("statusLabel(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
