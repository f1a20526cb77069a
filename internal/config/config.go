package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	UIModeTerminal = "terminal"
	UIModeHTTP     = "http"

	LocationSourceStatic = "static"
	LocationSourceIP     = "ip"

	defaultWeatherAPIURL = "https://api.openweathermap.org/data/2.5/weather"
	defaultIPAPIURL      = "http://ip-api.com/json"
)

// Config holds application configuration loaded from YAML and env.
type Config struct {
	UIMode     string `validate:"oneof=terminal http"`
	ServerPort string `validate:"required,numeric"`
	LogFile    string

	WeatherAPIKey     string
	WeatherAPIURL     string        `validate:"required,url"`
	WeatherAPITimeout time.Duration `validate:"gt=0"`

	LocationSource     string  `validate:"oneof=static ip"`
	LocationPermission string  `validate:"oneof=granted denied"`
	Latitude           float64 `validate:"gte=-90,lte=90"`
	Longitude          float64 `validate:"gte=-180,lte=180"`
	IPAPIURL           string  `validate:"omitempty,url"`
	LocationTimeout    time.Duration

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold uint32 `validate:"gte=1"`
	CircuitBreakerTimeout          time.Duration
	RateLimitRPS                   int `validate:"gte=0"`
	RateLimitBurst                 int `validate:"gte=0"`

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	UI struct {
		Mode string `yaml:"mode"`
	} `yaml:"ui"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		File *string `yaml:"file"`
	} `yaml:"log"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Location struct {
		Source     string   `yaml:"source"`
		Permission string   `yaml:"permission"`
		Latitude   *float64 `yaml:"latitude"`
		Longitude  *float64 `yaml:"longitude"`
		IPAPIURL   string   `yaml:"ip_api_url"`
		Timeout    string   `yaml:"timeout"`
	} `yaml:"location"`

	Reliability struct {
		CircuitBreakerEnabled          bool   `yaml:"circuit_breaker_enabled"`
		CircuitBreakerFailureThreshold int    `yaml:"circuit_breaker_failure_threshold"`
		CircuitBreakerTimeout          string `yaml:"circuit_breaker_timeout"`
		RateLimitRPS                   *int   `yaml:"rate_limit_rps"`
		RateLimitBurst                 int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

var validate = validator.New()

// Load reads .env (if present), config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml,
// then applies env overrides. Call from project root.
// A missing API key is not an error: the weather service rejects the request and the screen shows it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.UIMode = firstNonEmpty(os.Getenv("UI_MODE"), fc.UI.Mode, UIModeTerminal)
	cfg.UIMode = strings.ToLower(cfg.UIMode)
	cfg.ServerPort = firstNonEmpty(fc.Server.Port, "8080")
	cfg.LogFile = "weather-now.log"
	if fc.Log.File != nil {
		cfg.LogFile = strings.TrimSpace(*fc.Log.File)
	}

	cfg.WeatherAPIKey, err = loadAPIKey(cwd)
	if err != nil {
		return nil, err
	}
	cfg.WeatherAPIURL = firstNonEmpty(fc.WeatherAPI.URL, defaultWeatherAPIURL)
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)

	cfg.LocationSource = strings.ToLower(firstNonEmpty(fc.Location.Source, LocationSourceStatic))
	cfg.LocationPermission = strings.ToLower(firstNonEmpty(os.Getenv("LOCATION_PERMISSION"), fc.Location.Permission, "granted"))
	cfg.Latitude = 51.5074
	if fc.Location.Latitude != nil {
		cfg.Latitude = *fc.Location.Latitude
	}
	cfg.Longitude = -0.1278
	if fc.Location.Longitude != nil {
		cfg.Longitude = *fc.Location.Longitude
	}
	cfg.IPAPIURL = firstNonEmpty(fc.Location.IPAPIURL, defaultIPAPIURL)
	cfg.LocationTimeout = parseDuration(fc.Location.Timeout, 5*time.Second)

	cfg.CircuitBreakerEnabled = fc.Reliability.CircuitBreakerEnabled
	cfg.CircuitBreakerFailureThreshold = 5
	if n := fc.Reliability.CircuitBreakerFailureThreshold; n > 0 {
		cfg.CircuitBreakerFailureThreshold = uint32(n)
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.Reliability.CircuitBreakerTimeout, 30*time.Second)
	// rate_limit_rps: 0 turns the limiter off; unset means the default.
	cfg.RateLimitRPS = 5
	if fc.Reliability.RateLimitRPS != nil {
		cfg.RateLimitRPS = *fc.Reliability.RateLimitRPS
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// loadAPIKey prefers WEATHER_API_KEY (process env or .env) over config/secrets.yaml.
func loadAPIKey(cwd string) (string, error) {
	if key := os.Getenv("WEATHER_API_KEY"); key != "" {
		return key, nil
	}
	data, err := os.ReadFile(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return sec.WeatherAPIKey, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses s and returns defaultVal if parsing fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero returns defaultVal on empty or unparsable s. Zero and negative values pass
// through so validation can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
