//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/weather-now/internal/client"
	"github.com/kjstillabower/weather-now/internal/location"
	"github.com/kjstillabower/weather-now/internal/models"
	"github.com/kjstillabower/weather-now/internal/screen"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey     string
	APIURL     string
	Coordinate models.GeoCoordinate
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if WEATHER_API_KEY is not set. INTEGRATION_LAT/INTEGRATION_LON default to London.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = "https://api.openweathermap.org/data/2.5/weather"
	}

	return IntegrationTestConfig{
		APIKey: apiKey,
		APIURL: apiURL,
		Coordinate: models.GeoCoordinate{
			Latitude:  envFloat("INTEGRATION_LAT", 51.5074),
			Longitude: envFloat("INTEGRATION_LON", -0.1278),
		},
	}
}

// SetupIntegrationController wires a controller against the live weather API with a fixed position.
func SetupIntegrationController(t *testing.T, cfg IntegrationTestConfig, consent location.Authorization) *screen.Controller {
	t.Helper()
	weatherClient, err := client.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	logger := zaptest.NewLogger(t)
	source := location.NewStaticSource(cfg.Coordinate.Latitude, cfg.Coordinate.Longitude)
	return screen.NewController(location.NewDevice(consent, source, logger), weatherClient, logger)
}

func envFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}
