package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-now/internal/client"
	"github.com/kjstillabower/weather-now/internal/config"
	httphandler "github.com/kjstillabower/weather-now/internal/http"
	"github.com/kjstillabower/weather-now/internal/location"
	"github.com/kjstillabower/weather-now/internal/observability"
	"github.com/kjstillabower/weather-now/internal/screen"
	"github.com/kjstillabower/weather-now/internal/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// The terminal owns stdout in terminal mode.
	logFile := ""
	if cfg.UIMode == config.UIModeTerminal {
		logFile = cfg.LogFile
	}
	logger, err := observability.NewLogger(logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.WeatherAPIKey == "" {
		logger.Warn("WEATHER_API_KEY not set (env, .env or config/secrets.yaml); weather requests will be rejected upstream")
	}

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	if cfg.CircuitBreakerEnabled {
		weatherClient.SetCircuitBreaker(client.NewCircuitBreaker(cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerTimeout))
		logger.Info("circuit breaker enabled",
			zap.Uint32("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	consent, err := location.ParseAuthorization(cfg.LocationPermission)
	if err != nil {
		logger.Fatal("location permission", zap.Error(err))
	}
	var source location.Source
	switch cfg.LocationSource {
	case config.LocationSourceIP:
		source = location.NewIPSource(cfg.IPAPIURL, cfg.LocationTimeout)
	default:
		source = location.NewStaticSource(cfg.Latitude, cfg.Longitude)
	}
	logger.Info("location configured", zap.String("source", source.Name()), zap.Stringer("permission", consent))
	locator := location.NewDevice(consent, source, logger)

	controller := screen.NewController(locator, weatherClient, logger)

	switch cfg.UIMode {
	case config.UIModeHTTP:
		runHTTP(cfg, controller, logger)
	default:
		runTerminal(controller, logger)
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func runTerminal(controller *screen.Controller, logger *zap.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	program := tea.NewProgram(tui.New(ctx, controller), tea.WithContext(ctx))
	controller.OnChange(func(s screen.State) { program.Send(tui.StateMsg(s)) })

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Error("terminal ui", zap.Error(err))
	}
}

func runHTTP(cfg *config.Config, controller *screen.Controller, logger *zap.Logger) {
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(controller, logger)
	router := httphandler.NewRouter(handler, logger, limiter)

	// Cycles are bounded by the client timeouts, so the write deadline leaves room for a full one.
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.WeatherAPITimeout + cfg.LocationTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go controller.Initialize(ctx)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	handler.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}
}
